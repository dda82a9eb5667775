package app

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/dshills/skiff/internal/lsp"
	"github.com/dshills/skiff/internal/ui"
)

const keyHelp = "tab:buffer  j/k:select  t:lsp  R:restart  e:edit  q:quit"

// buildFrame assembles the diagnostics console view for the active buffer:
// header with file, language, and session state; the diagnostics list
// sorted by position; folding and hint summaries; the status line.
func (a *App) buildFrame() ui.Frame {
	f := ui.Frame{Selected: -1, Status: a.status}
	if f.Status == "" {
		f.Status = keyHelp
	}
	if len(a.buffers) == 0 {
		f.Header = "skiff  (no buffers)"
		return f
	}
	b := a.buffers[a.active]
	f.Header = fmt.Sprintf("skiff  %d/%d  %s [%s]  lsp:%s",
		a.active+1, len(a.buffers), filepath.Base(b.Path), b.Language, a.sessionState(b))

	diags := append([]lsp.Diagnostic(nil), a.store.Diagnostics(b.URI)...)
	sort.SliceStable(diags, func(i, j int) bool {
		if diags[i].Range.Start.Line != diags[j].Range.Start.Line {
			return diags[i].Range.Start.Line < diags[j].Range.Start.Line
		}
		return diags[i].Range.Start.Character < diags[j].Range.Start.Character
	})
	for _, d := range diags {
		f.Lines = append(f.Lines, ui.Line{
			Text: fmt.Sprintf("%s %d:%d  %s",
				d.Severity, d.Range.Start.Line+1, d.Range.Start.Character+1, d.Message),
			Style: severityStyle(d.Severity),
		})
	}
	if len(diags) == 0 {
		f.Lines = append(f.Lines, ui.Line{Text: "no diagnostics", Style: ui.StyleDim})
	}
	if folds := a.store.FoldingRanges(b.URI); len(folds) > 0 {
		f.Lines = append(f.Lines, ui.Line{
			Text:  fmt.Sprintf("%d folding ranges", len(folds)),
			Style: ui.StyleDim,
		})
	}
	if hints := a.store.InlayHints(b.URI); len(hints) > 0 {
		f.Lines = append(f.Lines, ui.Line{
			Text:  fmt.Sprintf("%d inlay hints", len(hints)),
			Style: ui.StyleHint,
		})
	}

	if a.selected >= len(f.Lines) {
		a.selected = len(f.Lines) - 1
	}
	if a.selected < 0 {
		a.selected = 0
	}
	f.Selected = a.selected
	return f
}

// sessionState summarizes the buffer's relationship to its language session
// for the header.
func (a *App) sessionState(b *Buffer) string {
	if !b.lspEnabled {
		return "off"
	}
	h, ok := a.manager.Handle(b.Language)
	if !ok {
		return "down"
	}
	if b.openedWith != h.ID() {
		return "stale"
	}
	return h.Status().String()
}

func severityStyle(s lsp.DiagnosticSeverity) ui.Style {
	switch s {
	case lsp.DiagnosticSeverityError:
		return ui.StyleError
	case lsp.DiagnosticSeverityWarning:
		return ui.StyleWarning
	case lsp.DiagnosticSeverityHint:
		return ui.StyleHint
	default:
		return ui.StyleInfo
	}
}
