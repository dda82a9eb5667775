// Package watcher reports changes to the loaded config file so a
// running editor can reload it.
package watcher

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/dshills/skiff/internal/logging"
)

// DefaultDebounce is how long the watcher waits after the last change
// before firing. Editors save with several events in quick succession
// (write, chmod, rename); one reload should cover the burst.
const DefaultDebounce = 250 * time.Millisecond

// Watcher watches one config file and invokes a callback after it
// changes. Deletes count as changes; the loader treats a missing file
// as defaults, so a deleted config reverts the editor.
type Watcher struct {
	watcher  *fsnotify.Watcher
	path     string
	base     string
	debounce time.Duration
	onChange func()
	logger   *logging.Logger

	closeOnce sync.Once
	closeCh   chan struct{}
	closedWg  sync.WaitGroup
	closeErr  error
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets the quiet period before the callback fires.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		w.debounce = d
	}
}

// WithLogger sets the logger for watch errors.
func WithLogger(l *logging.Logger) Option {
	return func(w *Watcher) {
		w.logger = l
	}
}

// New watches path and calls onChange after each burst of changes.
// The callback runs on the watcher goroutine; it must not block for
// long and must not call Close.
func New(path string, onChange func(), opts ...Option) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	// Watch the directory, not the file. Editors that save by rename
	// would silently drop a watch on the file itself.
	if err := fsw.Add(filepath.Dir(abs)); err != nil {
		_ = fsw.Close()
		return nil, err
	}

	w := &Watcher{
		watcher:  fsw,
		path:     abs,
		base:     filepath.Base(abs),
		debounce: DefaultDebounce,
		onChange: onChange,
		logger:   logging.Null,
		closeCh:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	w.closedWg.Add(1)
	go w.processLoop()

	return w, nil
}

// Path returns the absolute path being watched.
func (w *Watcher) Path() string { return w.path }

// Close stops the watcher. Safe to call more than once.
func (w *Watcher) Close() error {
	w.closeOnce.Do(func() {
		close(w.closeCh)
		w.closedWg.Wait()
		w.closeErr = w.watcher.Close()
	})
	return w.closeErr
}

func (w *Watcher) processLoop() {
	defer w.closedWg.Done()

	// fire is nil until a change arms the debounce timer; a nil
	// channel never selects.
	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-w.closeCh:
			if timer != nil {
				timer.Stop()
			}
			return

		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !w.relevant(ev) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				fire = timer.C
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.debounce)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("config watch: %v", err)

		case <-fire:
			timer = nil
			fire = nil
			w.onChange()
		}
	}
}

// relevant reports whether the event concerns the watched file and is
// a change worth reloading for.
func (w *Watcher) relevant(ev fsnotify.Event) bool {
	if filepath.Base(ev.Name) != w.base {
		return false
	}
	return ev.Op.Has(fsnotify.Write) ||
		ev.Op.Has(fsnotify.Create) ||
		ev.Op.Has(fsnotify.Rename) ||
		ev.Op.Has(fsnotify.Remove)
}
