package costs

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ReloadFunc reads the current pricing from the config source.
// It is called by the watcher after the watched file changes.
type ReloadFunc func() (Rates, error)

// Watcher reloads model pricing when the config file changes on disk.
//
// Editors and config-management tools often replace files atomically
// (write temp file, rename over target), so the watcher watches the
// parent directory and filters events for the target file. Events are
// debounced because a single save can emit several write events.
type Watcher struct {
	model    *Model
	path     string
	reload   ReloadFunc
	watcher  *fsnotify.Watcher
	debounce time.Duration
	done     chan struct{}
	logger   *slog.Logger
}

// NewWatcher creates a pricing watcher for the given file path.
// Call Start to begin watching and Close to stop.
func NewWatcher(model *Model, path string, reload ReloadFunc) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	return &Watcher{
		model:    model,
		path:     filepath.Clean(path),
		reload:   reload,
		watcher:  fw,
		debounce: 250 * time.Millisecond,
		done:     make(chan struct{}),
		logger:   slog.Default().With("component", "costs.watcher"),
	}, nil
}

// Start begins watching the config file for pricing changes.
func (w *Watcher) Start() error {
	dir := filepath.Dir(w.path)
	if err := w.watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %q: %w", dir, err)
	}

	go w.run()

	w.logger.Info("pricing watcher started", "path", w.path)
	return nil
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	close(w.done)
	return w.watcher.Close()
}

func (w *Watcher) run() {
	var timer *time.Timer
	fire := make(chan struct{}, 1)

	for {
		select {
		case <-w.done:
			if timer != nil {
				timer.Stop()
			}
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !w.relevant(event) {
				continue
			}
			// Debounce bursts of events from a single save.
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(w.debounce, func() {
				select {
				case fire <- struct{}{}:
				default:
				}
			})

		case <-fire:
			w.applyReload()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch error", "error", err)
		}
	}
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if filepath.Clean(event.Name) != w.path {
		return false
	}
	return event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0
}

func (w *Watcher) applyReload() {
	rates, err := w.reload()
	if err != nil {
		// Keep the previous pricing; a broken config edit must not
		// zero out cost attribution.
		w.logger.Error("pricing reload failed, keeping previous rates", "error", err)
		return
	}

	w.model.UpdateRates(rates)
	w.logger.Info("pricing reloaded",
		"input_per_million", rates.InputPerMillion,
		"output_per_million", rates.OutputPerMillion,
	)
}
