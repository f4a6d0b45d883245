package rest

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"wbzero-canvas/application/services"
	"wbzero-canvas/interfaces/http/rest/handlers"
	"wbzero-canvas/interfaces/http/rest/middleware"
	"wbzero-canvas/pkg/auth"
	"wbzero-canvas/pkg/observability"
)

// Router creates and configures the HTTP router
type Router struct {
	canvasService *services.CanvasService
	generator     *services.Generator
	validator     *auth.JWTValidator
	metrics       *observability.Collector
	readyCheck    func() error
	enableCORS    bool
	logger        *zap.Logger
}

// NewRouter creates a new router instance. readyCheck is probed by the
// readiness endpoint; nil means always ready. metrics may be nil.
func NewRouter(
	canvasService *services.CanvasService,
	generator *services.Generator,
	validator *auth.JWTValidator,
	metrics *observability.Collector,
	readyCheck func() error,
	enableCORS bool,
	logger *zap.Logger,
) *Router {
	return &Router{
		canvasService: canvasService,
		generator:     generator,
		validator:     validator,
		metrics:       metrics,
		readyCheck:    readyCheck,
		enableCORS:    enableCORS,
		logger:        logger,
	}
}

// Setup configures all routes and middleware
func (rt *Router) Setup() http.Handler {
	router := chi.NewRouter()

	// Global middleware
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(chimiddleware.Recoverer)
	router.Use(middleware.Logger(rt.logger))
	if rt.metrics != nil {
		router.Use(middleware.Metrics(rt.metrics))
	}

	if rt.enableCORS {
		router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   []string{"http://localhost:3000", "https://*.wbzero.app"},
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	// Health and metrics
	router.Get("/health", rt.healthCheck)
	router.Get("/ready", rt.readinessCheck)
	if rt.metrics != nil {
		router.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(rt.metrics.Registry(), promhttp.HandlerOpts{}))
	}

	canvasHandler := handlers.NewCanvasHandler(rt.canvasService, rt.logger)
	nodeHandler := handlers.NewNodeHandler(rt.canvasService, rt.logger)
	edgeHandler := handlers.NewEdgeHandler(rt.canvasService, rt.logger)
	generateHandler := handlers.NewGenerateHandler(rt.generator, rt.logger)

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Authenticate(rt.validator, rt.logger))

		r.Route("/projects/{projectID}/canvases", func(r chi.Router) {
			r.Get("/", canvasHandler.ListCanvases)
			r.Post("/", canvasHandler.CreateCanvas)
		})

		r.Route("/canvases/{canvasID}", func(r chi.Router) {
			r.Get("/", canvasHandler.GetCanvas)
			r.Put("/", canvasHandler.UpdateCanvas)
			r.Delete("/", canvasHandler.DeleteCanvas)
			r.Get("/data", canvasHandler.GetCanvasData)

			r.Post("/nodes", nodeHandler.CreateNode)
			r.Put("/nodes/{nodeID}", nodeHandler.UpdateNode)
			r.Delete("/nodes/{nodeID}", nodeHandler.DeleteNode)

			r.Post("/edges", edgeHandler.CreateEdge)
			r.Delete("/edges/{edgeID}", edgeHandler.DeleteEdge)

			r.Post("/generate", generateHandler.Generate)
		})
	})

	return router
}

// healthCheck handles health check requests
func (rt *Router) healthCheck(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy"}`))
}

// readinessCheck handles readiness check requests
func (rt *Router) readinessCheck(w http.ResponseWriter, req *http.Request) {
	if rt.readyCheck != nil {
		if err := rt.readyCheck(); err != nil {
			rt.logger.Warn("readiness check failed", zap.Error(err))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ready"}`))
}
