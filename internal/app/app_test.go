package app

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/dshills/skiff/internal/config"
	"github.com/dshills/skiff/internal/logging"
	"github.com/dshills/skiff/internal/lsp"
	"github.com/dshills/skiff/internal/lsptest"
	"github.com/dshills/skiff/internal/ui"
)

func TestMain(m *testing.M) {
	if os.Getenv(lsptest.EnvServer) == "1" {
		lsptest.Main()
		return
	}
	os.Exit(m.Run())
}

const waitTimeout = 10 * time.Second

func quietLogger() *logging.Logger {
	return logging.New(logging.Config{Level: logging.LevelError, Output: io.Discard})
}

// newTestApp builds an app whose go language server is the re-exec fake.
// Nothing is spawned until a go buffer is added.
func newTestApp(t *testing.T, mode string, mutate func(*config.Config)) (*App, string) {
	t.Helper()

	transcript := filepath.Join(t.TempDir(), "transcript")
	t.Setenv(lsptest.EnvServer, "1")
	t.Setenv(lsptest.EnvMode, mode)
	t.Setenv(lsptest.EnvTranscript, transcript)
	t.Setenv(lsptest.EnvRecordText, "1")

	cfg := config.Default()
	cfg.LSP.Servers = map[string]config.ServerEntry{
		"go": {Command: os.Args[0]},
	}
	if mutate != nil {
		mutate(cfg)
	}

	term, _ := ui.NewSimTerminal()
	a, err := New(Options{
		Config:   cfg,
		Logger:   quietLogger(),
		Screen:   term,
		RootPath: t.TempDir(),
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
		defer cancel()
		_ = a.Close(ctx)
	})
	return a, transcript
}

// drainUntil pumps the bridge into the app until cond holds.
func drainUntil(t *testing.T, a *App, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(waitTimeout)
	for time.Now().Before(deadline) {
		a.drainBridge()
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("%s never happened", what)
}

func transcriptLines(path string) []string {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	var lines []string
	for _, line := range strings.Split(string(data), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

func waitForLine(t *testing.T, path, want string) {
	t.Helper()
	deadline := time.Now().Add(waitTimeout)
	for time.Now().Before(deadline) {
		for _, line := range transcriptLines(path) {
			if line == want {
				return
			}
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("transcript never contained %q, has %v", want, transcriptLines(path))
}

func countExact(lines []string, want string) int {
	n := 0
	for _, line := range lines {
		if line == want {
			n++
		}
	}
	return n
}

func countPrefix(lines []string, prefix string) int {
	n := 0
	for _, line := range lines {
		if strings.HasPrefix(line, prefix) {
			n++
		}
	}
	return n
}

func TestNew_Defaults(t *testing.T) {
	term, _ := ui.NewSimTerminal()
	a, err := New(Options{Screen: term, Logger: quietLogger(), RootPath: t.TempDir()})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if a.cfg == nil {
		t.Fatal("nil config not replaced with defaults")
	}
	if a.Manager() == nil {
		t.Fatal("no manager")
	}
	if langs := a.Manager().Languages(); len(langs) == 0 {
		t.Error("manager has no configured languages")
	}
}

func TestRun_QuitKey(t *testing.T) {
	term, sim := ui.NewSimTerminal()
	if err := term.Init(); err != nil {
		t.Fatalf("init: %v", err)
	}
	a, err := New(Options{Config: config.Default(), Logger: quietLogger(), Screen: term, RootPath: t.TempDir()})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- a.Run(context.Background()) }()
	sim.InjectKey(tcell.KeyRune, 'q', tcell.ModNone)

	select {
	case err := <-done:
		if !errors.Is(err, ErrQuit) {
			t.Fatalf("Run() = %v, want ErrQuit", err)
		}
	case <-time.After(waitTimeout):
		t.Fatal("Run() did not return after quit key")
	}
}

func TestRun_AlreadyRunning(t *testing.T) {
	term, sim := ui.NewSimTerminal()
	if err := term.Init(); err != nil {
		t.Fatalf("init: %v", err)
	}
	a, err := New(Options{Config: config.Default(), Logger: quietLogger(), Screen: term, RootPath: t.TempDir()})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- a.Run(context.Background()) }()

	deadline := time.Now().Add(waitTimeout)
	for !a.running.Load() {
		if time.Now().After(deadline) {
			t.Fatal("Run() never started")
		}
		time.Sleep(time.Millisecond)
	}
	if err := a.Run(context.Background()); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("second Run() = %v, want ErrAlreadyRunning", err)
	}

	sim.InjectKey(tcell.KeyCtrlC, 0, tcell.ModCtrl)
	select {
	case err := <-done:
		if !errors.Is(err, ErrQuit) {
			t.Fatalf("Run() = %v, want ErrQuit", err)
		}
	case <-time.After(waitTimeout):
		t.Fatal("Run() did not return after ctrl-c")
	}
}

func TestRun_ContextCancel(t *testing.T) {
	term, _ := ui.NewSimTerminal()
	if err := term.Init(); err != nil {
		t.Fatalf("init: %v", err)
	}
	a, err := New(Options{Config: config.Default(), Logger: quietLogger(), Screen: term, RootPath: t.TempDir()})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Run() = %v, want context.Canceled", err)
		}
	case <-time.After(waitTimeout):
		t.Fatal("Run() did not return after cancel")
	}
}

func TestHandleEvent_Keys(t *testing.T) {
	a, _ := newTestApp(t, "", nil)
	ctx := context.Background()
	a.buffers = []*Buffer{NewBuffer("/w/a.txt", ""), NewBuffer("/w/b.txt", "")}

	key := func(r rune) ui.Event {
		return ui.Event{Type: ui.EventKey, Key: ui.KeyRune, Rune: r}
	}

	if err := a.handleEvent(ctx, ui.Event{Type: ui.EventKey, Key: ui.KeyTab}); err != nil {
		t.Fatalf("tab: %v", err)
	}
	if a.active != 1 {
		t.Errorf("active = %d after tab, want 1", a.active)
	}

	if err := a.handleEvent(ctx, key('j')); err != nil {
		t.Fatalf("j: %v", err)
	}
	if a.selected != 1 {
		t.Errorf("selected = %d after j, want 1", a.selected)
	}
	if err := a.handleEvent(ctx, key('k')); err != nil {
		t.Fatalf("k: %v", err)
	}
	if a.selected != 0 {
		t.Errorf("selected = %d after k, want 0", a.selected)
	}

	if err := a.handleEvent(ctx, key('q')); !errors.Is(err, ErrQuit) {
		t.Errorf("q = %v, want ErrQuit", err)
	}
	if err := a.handleEvent(ctx, ui.Event{Type: ui.EventKey, Key: ui.KeyCtrlC}); !errors.Is(err, ErrQuit) {
		t.Errorf("ctrl-c = %v, want ErrQuit", err)
	}
	// Resize events pass through without an action.
	if err := a.handleEvent(ctx, ui.Event{Type: ui.EventResize, Width: 80, Height: 24}); err != nil {
		t.Errorf("resize: %v", err)
	}
}

func TestDrainBridge_AppliesEvents(t *testing.T) {
	a, _ := newTestApp(t, "", nil)
	b := NewBuffer("/w/main.go", "x")
	a.buffers = append(a.buffers, b)

	sender := a.bridge.Sender()
	sender.Send(lsp.DiagnosticsEvent{URI: b.URI, Items: []lsp.Diagnostic{{Message: "boom"}}})
	sender.Send(lsp.InitializedEvent{Language: "go"})

	if n := a.drainBridge(); n != 2 {
		t.Fatalf("drainBridge() = %d, want 2", n)
	}
	if got := a.store.Diagnostics(b.URI); len(got) != 1 || got[0].Message != "boom" {
		t.Errorf("diagnostics = %+v", got)
	}
	if a.Status() != "LSP ready: go" {
		t.Errorf("status = %q", a.Status())
	}
	if snap := a.Metrics(); snap.BridgeEvents != 2 {
		t.Errorf("BridgeEvents = %d, want 2", snap.BridgeEvents)
	}
}

func TestNotifyReload_Coalesces(t *testing.T) {
	a, _ := newTestApp(t, "", nil)
	a.NotifyReload()
	a.NotifyReload()
	a.NotifyReload()
	if n := len(a.reloadCh); n != 1 {
		t.Errorf("reload queue depth = %d, want 1", n)
	}
}
