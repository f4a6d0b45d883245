package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// GenerationSettings is the runtime-changeable part of the configuration.
// It lives in its own YAML file so operators can tune generation without a
// restart.
type GenerationSettings struct {
	Temperature float64 `yaml:"temperature"`
	MaxNodes    int     `yaml:"max_nodes"`
}

// DefaultGenerationSettings returns the settings used when no file is
// configured.
func DefaultGenerationSettings() GenerationSettings {
	return GenerationSettings{Temperature: 0.7, MaxNodes: 50}
}

// SettingsWatcher watches the generation settings file and swaps in new
// values on change. Reads are lock-protected snapshots.
type SettingsWatcher struct {
	path    string
	watcher *fsnotify.Watcher
	current GenerationSettings
	mu      sync.RWMutex
	logger  *zap.Logger
	stopCh  chan struct{}
}

// NewSettingsWatcher loads the settings file and starts tracking it. The
// file must parse and validate at startup.
func NewSettingsWatcher(path string, logger *zap.Logger) (*SettingsWatcher, error) {
	settings, err := loadSettingsFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load generation settings: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := watcher.Add(path); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch settings file: %w", err)
	}
	// Editors and config tools often replace the file via rename, which
	// drops the original watch. Watching the directory catches those.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		logger.Warn("failed to watch settings directory", zap.Error(err))
	}

	return &SettingsWatcher{
		path:    path,
		watcher: watcher,
		current: settings,
		logger:  logger,
		stopCh:  make(chan struct{}),
	}, nil
}

// Start begins watching for changes.
func (w *SettingsWatcher) Start() {
	go w.watchLoop()
	w.logger.Info("generation settings watcher started", zap.String("path", w.path))
}

// Stop stops the watcher.
func (w *SettingsWatcher) Stop() {
	close(w.stopCh)
	w.watcher.Close()
}

// Current returns the active settings.
func (w *SettingsWatcher) Current() GenerationSettings {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

func (w *SettingsWatcher) watchLoop() {
	var debounce *time.Timer
	const debounceDuration = 100 * time.Millisecond

	for {
		select {
		case <-w.stopCh:
			if debounce != nil {
				debounce.Stop()
			}
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != filepath.Base(w.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				if debounce != nil {
					debounce.Stop()
				}
				debounce = time.AfterFunc(debounceDuration, w.reload)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("settings watcher error", zap.Error(err))
		}
	}
}

func (w *SettingsWatcher) reload() {
	settings, err := loadSettingsFile(w.path)
	if err != nil {
		w.logger.Error("failed to reload generation settings, keeping current", zap.Error(err))
		return
	}

	w.mu.Lock()
	old := w.current
	w.current = settings
	w.mu.Unlock()

	if old != settings {
		w.logger.Info("generation settings reloaded",
			zap.Float64("temperature", settings.Temperature),
			zap.Int("max_nodes", settings.MaxNodes))
	}
}

func loadSettingsFile(path string) (GenerationSettings, error) {
	settings := DefaultGenerationSettings()

	data, err := os.ReadFile(path)
	if err != nil {
		return settings, fmt.Errorf("failed to read settings file: %w", err)
	}
	if err := yaml.Unmarshal(data, &settings); err != nil {
		return settings, fmt.Errorf("failed to parse settings YAML: %w", err)
	}

	if settings.Temperature < 0 || settings.Temperature > 2 {
		return settings, fmt.Errorf("temperature must be between 0 and 2")
	}
	if settings.MaxNodes <= 0 {
		return settings, fmt.Errorf("max_nodes must be positive")
	}
	return settings, nil
}
