package app

import (
	"context"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"github.com/dshills/skiff/internal/config"
	"github.com/dshills/skiff/internal/config/loader"
	"github.com/dshills/skiff/internal/logging"
	"github.com/dshills/skiff/internal/lsp"
	"github.com/dshills/skiff/internal/ui"
)

// Options configures New. Zero fields fall back to defaults.
type Options struct {
	// Config is the effective configuration. Nil means built-in defaults.
	Config *config.Config
	// ConfigPath is the file Config was loaded from. The app re-reads it
	// when NotifyReload fires; empty disables hot reload.
	ConfigPath string
	// Logger receives application logs. Nil means the default logger.
	Logger *logging.Logger
	// Screen is the terminal surface. Nil opens the real terminal.
	Screen ui.Screen
	// RootPath is the workspace root reported to language servers. Empty
	// falls back to the config's lsp.root, then the working directory.
	RootPath string
}

// App is the editor shell. All of its state belongs to the goroutine
// running Run; the exported lifecycle methods may only be called from that
// goroutine (or before Run starts, as tests do).
type App struct {
	cfg     *config.Config
	cfgPath string
	loader  *loader.Loader
	logger  *logging.Logger

	bridge  *lsp.Bridge
	manager *lsp.Manager

	screen ui.Screen
	view   ui.View

	buffers  []*Buffer
	active   int
	selected int
	editSeq  int

	store   *DiagnosticsStore
	metrics *Metrics
	status  string

	reloadCh chan struct{}
	running  atomic.Bool
}

// New assembles the editor from its parts.
func New(opts Options) (*App, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	log := opts.Logger
	if log == nil {
		log = logging.Default()
	}

	screen := opts.Screen
	if screen == nil {
		term, err := ui.NewTerminal()
		if err != nil {
			return nil, &InitError{Component: "screen", Err: err}
		}
		screen = term
	}

	root := opts.RootPath
	if root == "" {
		root = cfg.LSP.Root
	}
	if root == "" {
		if wd, err := os.Getwd(); err == nil {
			root = wd
		}
	}

	bridge := lsp.NewBridge()
	manager := lsp.NewManager(bridge,
		lsp.WithLogger(log.WithComponent("lsp")),
		lsp.WithConfigs(cfg.ServerConfigs()),
		lsp.WithRootPath(root),
	)

	return &App{
		cfg:      cfg,
		cfgPath:  opts.ConfigPath,
		loader:   loader.New(),
		logger:   log,
		bridge:   bridge,
		manager:  manager,
		screen:   screen,
		store:    NewDiagnosticsStore(),
		metrics:  &Metrics{},
		reloadCh: make(chan struct{}, 1),
	}, nil
}

// Manager returns the language server registry.
func (a *App) Manager() *lsp.Manager { return a.manager }

// Metrics returns a snapshot of the frame-loop counters.
func (a *App) Metrics() MetricsSnapshot { return a.metrics.Snapshot() }

// Status returns the current status line.
func (a *App) Status() string { return a.status }

func (a *App) setStatus(s string) { a.status = s }

// NotifyReload schedules a config reload on the next loop turn. Safe to
// call from any goroutine; this is the config watcher's callback.
func (a *App) NotifyReload() {
	select {
	case a.reloadCh <- struct{}{}:
	default:
	}
}

// Run drives the frame loop until the user quits, the context is
// cancelled, or the screen goes away. It returns ErrQuit on a user quit.
func (a *App) Run(ctx context.Context) error {
	if !a.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer a.running.Store(false)

	if err := a.screen.Init(); err != nil {
		return &InitError{Component: "screen", Err: err}
	}
	defer a.screen.Fini()

	done := make(chan struct{})
	defer close(done)
	events := make(chan ui.Event, 16)
	go a.pollInput(events, done)

	ticker := time.NewTicker(a.cfg.FrameInterval())
	defer ticker.Stop()

	a.render()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if err := a.handleEvent(ctx, ev); err != nil {
				return err
			}
			a.render()
		case <-ticker.C:
			a.drainBridge()
			a.render()
		case <-a.reloadCh:
			a.reloadConfig(ctx)
			ticker.Reset(a.cfg.FrameInterval())
			a.render()
		}
	}
}

// Close stops every language server. Call after Run returns.
func (a *App) Close(ctx context.Context) error {
	return a.manager.ShutdownAll(ctx)
}

// pollInput forwards terminal events to the frame loop. It exits when the
// screen is finalized or the loop is done.
func (a *App) pollInput(events chan<- ui.Event, done <-chan struct{}) {
	for {
		ev := a.screen.PollEvent()
		if ev.Type == ui.EventClosed {
			close(events)
			return
		}
		select {
		case events <- ev:
		case <-done:
			return
		}
	}
}

// handleEvent maps one input event to an editor action. Only quit bubbles
// up as an error; language server failures degrade to status messages.
func (a *App) handleEvent(ctx context.Context, ev ui.Event) error {
	if ev.Type != ui.EventKey {
		return nil
	}
	switch {
	case ev.Key == ui.KeyCtrlC,
		ev.Key == ui.KeyRune && ev.Rune == 'q':
		return ErrQuit
	case ev.Key == ui.KeyTab:
		a.nextBuffer()
	case ev.Key == ui.KeyDown,
		ev.Key == ui.KeyRune && ev.Rune == 'j':
		a.selected++
	case ev.Key == ui.KeyUp,
		ev.Key == ui.KeyRune && ev.Rune == 'k':
		a.selected--
	case ev.Key == ui.KeyRune && ev.Rune == 't':
		if b := a.activeBuffer(); b != nil {
			if err := a.ToggleLSP(ctx, b); err != nil {
				a.logger.Warn("toggle lsp: %v", err)
			}
		}
	case ev.Key == ui.KeyRune && ev.Rune == 'R':
		if b := a.activeBuffer(); b != nil {
			a.RestartLSP(ctx, b.Language)
		}
	case ev.Key == ui.KeyRune && ev.Rune == 'e':
		if b := a.activeBuffer(); b != nil {
			a.editSeq++
			edit := fmt.Sprintf("// edit %d\n", a.editSeq)
			if err := a.EditBuffer(b, b.Text()+edit); err != nil {
				a.logger.Warn("edit: %v", err)
			}
		}
	}
	return nil
}

// activeBuffer returns the buffer under focus, nil with none open.
func (a *App) activeBuffer() *Buffer {
	if len(a.buffers) == 0 {
		return nil
	}
	return a.buffers[a.active]
}

func (a *App) nextBuffer() {
	if len(a.buffers) < 2 {
		return
	}
	a.active = (a.active + 1) % len(a.buffers)
	a.selected = 0
}

// render draws one frame. The selection is clamped while building.
func (a *App) render() {
	a.view.Render(a.screen, a.buildFrame())
	a.metrics.RecordFrame()
}
