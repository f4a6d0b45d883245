package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"wbzero-canvas/application/services"
	"wbzero-canvas/infrastructure/config"
	"wbzero-canvas/infrastructure/llm"
	"wbzero-canvas/infrastructure/persistence/sqlite"
	"wbzero-canvas/interfaces/http/rest"
	"wbzero-canvas/pkg/auth"
	"wbzero-canvas/pkg/observability"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}

	// Open storage
	store, err := sqlite.Open(cfg.DatabasePath)
	if err != nil {
		logger.Fatal("Failed to open database", zap.Error(err))
	}
	defer store.Close()

	validator, err := auth.NewJWTValidator(auth.JWTConfig{
		SecretKey: cfg.JWTSecret,
		Issuer:    cfg.JWTIssuer,
	})
	if err != nil {
		logger.Fatal("Failed to create token validator", zap.Error(err))
	}

	var metrics *observability.Collector
	if cfg.EnableMetrics {
		metrics = observability.NewCollector("wbzero")
	}

	// Generation settings, optionally live-reloaded from a file
	settings := func() services.GenerationSettings {
		return services.DefaultGenerationSettings()
	}
	if cfg.GenerationSettingsPath != "" {
		watcher, err := config.NewSettingsWatcher(cfg.GenerationSettingsPath, logger)
		if err != nil {
			logger.Fatal("Failed to load generation settings", zap.Error(err))
		}
		watcher.Start()
		defer watcher.Stop()
		settings = func() services.GenerationSettings {
			current := watcher.Current()
			return services.GenerationSettings{
				Temperature: current.Temperature,
				MaxNodes:    current.MaxNodes,
			}
		}
	}

	completer := llm.NewOpenRouterClient(llm.Config{
		APIKey:   cfg.OpenRouterAPIKey,
		Model:    cfg.OpenRouterModel,
		BaseURL:  cfg.OpenRouterBaseURL,
		Referer:  cfg.OpenRouterReferer,
		AppTitle: cfg.AppTitle,
	}, logger)

	canvasService := services.NewCanvasService(store, metrics, logger)
	generator := services.NewGenerator(store, completer, metrics, logger, settings)

	router := rest.NewRouter(
		canvasService,
		generator,
		validator,
		metrics,
		func() error { return store.Ping(context.Background()) },
		cfg.EnableCORS,
		logger,
	)
	handler := router.Setup()

	srv := &http.Server{
		Addr:         cfg.ServerAddress,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 75 * time.Second, // generation calls wait on the model
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("Starting server",
			zap.String("address", cfg.ServerAddress),
			zap.String("environment", cfg.Environment),
		)

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", zap.Error(err))
	}

	if err := logger.Sync(); err != nil {
		log.Printf("Failed to sync logger: %v", err)
	}

	log.Println("Server stopped")
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	var zapCfg zap.Config
	if cfg.IsProduction() {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
	}
	if level, err := zap.ParseAtomicLevel(cfg.LogLevel); err == nil {
		zapCfg.Level = level
	}
	return zapCfg.Build()
}
