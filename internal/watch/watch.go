// Package watch triggers configuration reloads when files in the active
// config directory change on disk.
package watch

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/linnemanlabs/go-core/log"
)

// Reload is called after a debounced batch of config file changes. It
// returns collected warnings; a non-nil error means the previous snapshot
// stayed active.
type Reload func(ctx context.Context) ([]string, error)

// Watcher monitors a config directory and fires a debounced reload when
// taxonomy, severity, or routing files change. Editors and config
// management tools often write in several events, so changes are coalesced
// before reloading.
type Watcher struct {
	mu      sync.Mutex
	watcher *fsnotify.Watcher
	dir     string
	reload  Reload
	logger  log.Logger

	debounce time.Duration
	timer    *time.Timer

	stopCh  chan struct{}
	doneCh  chan struct{}
	running bool
}

// New creates a watcher over dir. Start must be called to begin watching.
func New(dir string, reload Reload, logger log.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.Nop()
	}
	return &Watcher{
		watcher:  fw,
		dir:      dir,
		reload:   reload,
		logger:   logger,
		debounce: 500 * time.Millisecond,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// Start begins watching the config directory. Non-blocking; the event loop
// runs in its own goroutine until Stop or ctx cancellation.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	if err := w.watcher.Add(w.dir); err != nil {
		// the loop never launched, so Stop must not wait on doneCh
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
		_ = w.watcher.Close()
		return err
	}

	go w.loop(ctx)
	return nil
}

// Stop halts the watcher and waits for the event loop to exit. Safe to call
// more than once.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	close(w.stopCh)
	w.mu.Unlock()

	<-w.doneCh
	_ = w.watcher.Close()
}

func (w *Watcher) loop(ctx context.Context) {
	defer close(w.doneCh)

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
			if !relevant(event) {
				continue
			}
			w.logger.Info(ctx, "config file changed",
				"file", filepath.Base(event.Name), "op", event.Op.String())
			w.scheduleReload(ctx)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error(ctx, err, "config watcher error")
		}
	}
}

// scheduleReload (re)arms the debounce timer so a burst of writes produces
// one reload.
func (w *Watcher) scheduleReload(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return
	}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		warnings, err := w.reload(ctx)
		if err != nil {
			w.logger.Error(ctx, err, "reload after config change failed, keeping active snapshot")
			return
		}
		w.logger.Info(ctx, "config reloaded after file change", "warnings", len(warnings))
	})
}

// relevant filters to writes of the three rule files; chmod and other
// noise is ignored.
func relevant(event fsnotify.Event) bool {
	if !event.Op.Has(fsnotify.Write) && !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Rename) {
		return false
	}
	switch filepath.Base(event.Name) {
	case "taxonomy.json", "severity.yaml", "routing.json":
		return true
	}
	return false
}
