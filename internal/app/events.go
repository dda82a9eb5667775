package app

import (
	"fmt"
	"time"

	"github.com/dshills/skiff/internal/lsp"
)

// drainBridge empties the bridge queue and applies every event to editor
// state. Called once per frame tick; returns the number of events applied.
func (a *App) drainBridge() int {
	start := time.Now()
	events := a.bridge.TryRecvAll()
	for _, ev := range events {
		a.applyEvent(ev)
	}
	a.metrics.RecordDrain(len(events), time.Since(start))
	return len(events)
}

// applyEvent folds one session event into editor state.
func (a *App) applyEvent(ev lsp.Event) {
	switch ev := ev.(type) {
	case lsp.DiagnosticsEvent:
		a.store.SetDiagnostics(ev.URI, ev.Items)

	case lsp.InitializedEvent:
		a.setStatus(fmt.Sprintf("LSP ready: %s", ev.Language))

	case lsp.ErrorEvent:
		a.logger.Error("%s session: %v", ev.Language, ev.Err)
		a.setStatus(fmt.Sprintf("LSP error (%s): %v", ev.Language, ev.Err))
		// The session is gone. Buffers opened against it must not send
		// didChange to a successor that never saw their didOpen; dropping
		// the identity makes the next enable or edit re-open them.
		for _, b := range a.buffersFor(ev.Language) {
			b.dropIdentity()
		}

	case lsp.ShowMessageEvent:
		a.showMessage(ev)

	case lsp.DiagnosticReportEvent:
		ref, ok := a.claimPull(ev.RequestID, pullDiagnostics, string(ev.URI))
		if !ok {
			return
		}
		if ev.Err != nil {
			a.logger.Warn("diagnostic pull %s: %v", ref.uri, ev.Err)
			return
		}
		a.store.ApplyReport(ev.URI, ev.Report)

	case lsp.InlayHintsEvent:
		_, ok := a.claimPull(ev.RequestID, pullInlayHints, string(ev.URI))
		if !ok {
			return
		}
		if ev.Err != nil {
			a.logger.Warn("inlay hint pull %s: %v", ev.URI, ev.Err)
			return
		}
		a.store.SetInlayHints(ev.URI, ev.Hints)

	case lsp.FoldingRangesEvent:
		_, ok := a.claimPull(ev.RequestID, pullFoldingRanges, string(ev.URI))
		if !ok {
			return
		}
		if ev.Err != nil {
			a.logger.Warn("folding range pull %s: %v", ev.URI, ev.Err)
			return
		}
		a.store.SetFoldingRanges(ev.URI, ev.Ranges)
	}
}

// claimPull matches a pull reply to its in-flight entry. Replies nothing is
// waiting on (superseded, cancelled, or post-disable stragglers) are
// counted and dropped, never an error.
func (a *App) claimPull(id uint64, want pullKind, uri string) (pullRef, bool) {
	ref, ok := a.store.Claim(id)
	if !ok {
		a.metrics.RecordStaleReply()
		a.logger.Debug("stale %s reply %d for %s", want, id, uri)
		return pullRef{}, false
	}
	if ref.kind != want {
		a.logger.Warn("reply %d for %s arrived as %s, tracked as %s", id, uri, want, ref.kind)
		return pullRef{}, false
	}
	return ref, true
}

// showMessage surfaces a window/showMessage notification on the status
// line, logged at the mapped severity.
func (a *App) showMessage(ev lsp.ShowMessageEvent) {
	switch ev.Type {
	case lsp.MessageTypeError:
		a.logger.Error("%s server: %s", ev.Language, ev.Message)
	case lsp.MessageTypeWarning:
		a.logger.Warn("%s server: %s", ev.Language, ev.Message)
	default:
		a.logger.Info("%s server: %s", ev.Language, ev.Message)
	}
	a.setStatus(fmt.Sprintf("%s: %s", ev.Language, ev.Message))
}
