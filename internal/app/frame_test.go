package app

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/dshills/skiff/internal/config"
	"github.com/dshills/skiff/internal/lsp"
	"github.com/dshills/skiff/internal/ui"
)

// newFrameApp builds an app that never talks to a server, for pure view
// assembly tests.
func newFrameApp(t *testing.T) *App {
	t.Helper()
	term, _ := ui.NewSimTerminal()
	a, err := New(Options{
		Config:   config.Default(),
		Logger:   quietLogger(),
		Screen:   term,
		RootPath: t.TempDir(),
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return a
}

func addLocalBuffer(a *App, path, text string) *Buffer {
	b := NewBuffer(path, text)
	a.buffers = append(a.buffers, b)
	a.active = len(a.buffers) - 1
	return b
}

func TestBuildFrame_NoBuffers(t *testing.T) {
	a := newFrameApp(t)
	f := a.buildFrame()
	if f.Header != "skiff  (no buffers)" {
		t.Errorf("Header = %q", f.Header)
	}
	if f.Status != keyHelp {
		t.Errorf("Status = %q, want the key help", f.Status)
	}
	if len(f.Lines) != 0 || f.Selected != -1 {
		t.Errorf("Lines = %d, Selected = %d, want empty frame", len(f.Lines), f.Selected)
	}
}

func TestBuildFrame_SortsAndStyles(t *testing.T) {
	a := newFrameApp(t)
	b := addLocalBuffer(a, filepath.Join(t.TempDir(), "main.go"), "package main\n")

	// Stored out of order; the frame sorts by position.
	a.store.SetDiagnostics(b.URI, []lsp.Diagnostic{
		{
			Range:    lsp.Range{Start: lsp.Position{Line: 5, Character: 2}},
			Severity: lsp.DiagnosticSeverityWarning,
			Message:  "later",
		},
		{
			Range:    lsp.Range{Start: lsp.Position{Line: 0, Character: 1}},
			Severity: lsp.DiagnosticSeverityError,
			Message:  "first",
		},
	})
	a.store.SetFoldingRanges(b.URI, []lsp.FoldingRange{{StartLine: 0, EndLine: 2}})
	a.store.SetInlayHints(b.URI, []lsp.InlayHint{{}, {}})
	a.selected = 10

	f := a.buildFrame()

	if !strings.Contains(f.Header, "main.go [go]") || !strings.Contains(f.Header, "lsp:off") {
		t.Errorf("Header = %q, want file, language, and lsp:off", f.Header)
	}

	want := []ui.Line{
		{Text: "E 1:2  first", Style: ui.StyleError},
		{Text: "W 6:3  later", Style: ui.StyleWarning},
		{Text: "1 folding ranges", Style: ui.StyleDim},
		{Text: "2 inlay hints", Style: ui.StyleHint},
	}
	if len(f.Lines) != len(want) {
		t.Fatalf("got %d lines, want %d: %+v", len(f.Lines), len(want), f.Lines)
	}
	for i, w := range want {
		if f.Lines[i] != w {
			t.Errorf("Lines[%d] = %+v, want %+v", i, f.Lines[i], w)
		}
	}

	// Out-of-range selection clamps to the last line.
	if f.Selected != len(want)-1 {
		t.Errorf("Selected = %d, want %d", f.Selected, len(want)-1)
	}
}

func TestBuildFrame_EmptyDiagnostics(t *testing.T) {
	a := newFrameApp(t)
	addLocalBuffer(a, "/tmp/empty.go", "")
	a.setStatus("hello")

	f := a.buildFrame()
	if len(f.Lines) != 1 || f.Lines[0].Text != "no diagnostics" || f.Lines[0].Style != ui.StyleDim {
		t.Errorf("Lines = %+v, want only the dim placeholder", f.Lines)
	}
	if f.Status != "hello" {
		t.Errorf("Status = %q, want the set status over the key help", f.Status)
	}
}

func TestBuildFrame_SessionStates(t *testing.T) {
	a := newFrameApp(t)
	b := addLocalBuffer(a, "/tmp/state.go", "")

	if got := a.sessionState(b); got != "off" {
		t.Errorf("sessionState() = %q, want off", got)
	}

	// Enabled but no session: the server died and was never respawned.
	b.lspEnabled = true
	if got := a.sessionState(b); got != "down" {
		t.Errorf("sessionState() = %q, want down", got)
	}
}
