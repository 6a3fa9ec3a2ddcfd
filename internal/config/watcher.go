package config

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"quizsolver/internal/logging"
)

// Watcher watches the config file for changes and reloads it at runtime,
// so logging debug mode and solver policy can be flipped without a restart.
type Watcher struct {
	mu          sync.Mutex
	watcher     *fsnotify.Watcher
	path        string
	onChange    func(*Config)
	debounceMap map[string]time.Time
	debounceDur time.Duration
	stopCh      chan struct{}
	doneCh      chan struct{}
	running     bool
}

// NewWatcher creates a watcher for the given config file path.
// onChange is invoked with the freshly loaded config after each settled edit.
func NewWatcher(path string, onChange func(*Config)) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		watcher:     fw,
		path:        path,
		onChange:    onChange,
		debounceMap: make(map[string]time.Time),
		debounceDur: 500 * time.Millisecond,
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}, nil
}

// Start begins watching. Non-blocking; the event loop runs in a goroutine.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	// Watch the parent directory: editors replace files on save.
	dir := filepath.Dir(w.path)
	if err := w.watcher.Add(dir); err != nil {
		logging.BootWarn("config watcher: watch failed for %s: %v", dir, err)
	} else {
		logging.Boot("config watcher: watching %s", dir)
	}

	go w.run(ctx)
	return nil
}

// Stop stops the watcher and waits for the event loop to exit.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh
	_ = w.watcher.Close()
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logging.BootError("config watcher: %v", err)
		case <-ticker.C:
			w.processSettled()
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if filepath.Clean(event.Name) != filepath.Clean(w.path) {
		return
	}
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
		return
	}
	w.mu.Lock()
	w.debounceMap[event.Name] = time.Now()
	w.mu.Unlock()
}

func (w *Watcher) processSettled() {
	w.mu.Lock()
	now := time.Now()
	settled := false
	for path, at := range w.debounceMap {
		if now.Sub(at) >= w.debounceDur {
			delete(w.debounceMap, path)
			settled = true
		}
	}
	w.mu.Unlock()

	if !settled {
		return
	}

	cfg, err := Load(w.path)
	if err != nil {
		logging.BootError("config watcher: reload failed: %v", err)
		return
	}
	logging.Boot("config watcher: reloaded %s", w.path)
	if w.onChange != nil {
		w.onChange(cfg)
	}
}
