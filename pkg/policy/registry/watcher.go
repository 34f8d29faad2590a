package registry

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// WatcherConfig contains configuration for the policy file watcher.
type WatcherConfig struct {
	// Path is the policy file to watch.
	Path string

	// DebounceInterval is the quiet period before a detected change
	// triggers a reload. Editors often emit several events per save.
	// Default: 100ms.
	DebounceInterval time.Duration
}

// DefaultWatcherConfig returns the default watcher configuration.
func DefaultWatcherConfig(path string) *WatcherConfig {
	return &WatcherConfig{
		Path:             path,
		DebounceInterval: 100 * time.Millisecond,
	}
}

// Watcher watches a policy file for changes and triggers registry reloads.
// Reload storms are debounced.
type Watcher struct {
	watcher *fsnotify.Watcher
	config  *WatcherConfig
	logger  *slog.Logger

	mu      sync.Mutex
	running bool
}

// NewWatcher creates a policy file watcher.
func NewWatcher(config *WatcherConfig, logger *slog.Logger) (*Watcher, error) {
	if config == nil || config.Path == "" {
		return nil, fmt.Errorf("watcher requires a policy file path")
	}
	if config.DebounceInterval <= 0 {
		config.DebounceInterval = 100 * time.Millisecond
	}
	if logger == nil {
		logger = slog.Default()
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	return &Watcher{
		watcher: fsw,
		config:  config,
		logger:  logger.With("component", "policy.watcher"),
	}, nil
}

// Watch blocks, reloading through onReload whenever the watched file
// changes, until the context is cancelled.
func (w *Watcher) Watch(ctx context.Context, onReload func() error) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("watcher already running")
	}
	w.running = true
	w.mu.Unlock()

	defer func() {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
	}()

	// Watch the parent directory: editors replace files via rename, which
	// drops a watch placed on the file itself.
	dir := filepath.Dir(w.config.Path)
	if err := w.watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %q: %w", dir, err)
	}

	w.logger.Info("policy file watcher started",
		"path", w.config.Path,
		"debounce_ms", w.config.DebounceInterval.Milliseconds(),
	)

	var timer *time.Timer
	var timerCh <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("policy file watcher stopped")
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if !w.relevant(event) {
				continue
			}
			w.logger.Debug("policy file changed", "op", event.Op.String(), "path", event.Name)
			if timer == nil {
				timer = time.NewTimer(w.config.DebounceInterval)
			} else {
				timer.Reset(w.config.DebounceInterval)
			}
			timerCh = timer.C

		case <-timerCh:
			timerCh = nil
			if err := onReload(); err != nil {
				w.logger.Error("policy reload after file change failed", "error", err)
				continue
			}
			w.logger.Info("policies reloaded after file change", "path", w.config.Path)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("policy file watcher error", "error", err)
		}
	}
}

// relevant reports whether an fsnotify event concerns the watched file.
func (w *Watcher) relevant(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
		return false
	}
	name := filepath.Base(event.Name)
	if strings.HasPrefix(name, ".") {
		return false
	}
	return name == filepath.Base(w.config.Path)
}

// Close releases the underlying fsnotify watcher.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}
