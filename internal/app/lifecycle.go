package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/dshills/skiff/internal/lsp"
)

// EnableLSP turns language support on for a buffer: spawn the session if
// needed, didOpen with the buffer's current text, record the handle
// identity, and fire the initial document pulls. explicit marks a direct
// user action, which overrides auto_start but not enabled.
//
// Enabling a buffer already open with the live session is a no-op; a
// didClose must come between any two didOpens for the same path.
func (a *App) EnableLSP(ctx context.Context, b *Buffer, explicit bool) error {
	outcome, err := a.manager.TrySpawn(ctx, b.Language, explicit)
	if err != nil {
		a.setStatus(fmt.Sprintf("failed to start %s language server: %v", b.Language, err))
		return err
	}
	switch outcome {
	case lsp.OutcomeNotConfigured:
		if explicit {
			a.setStatus(fmt.Sprintf("no language server configured for %s", b.Language))
		}
		return nil
	case lsp.OutcomeDisabled:
		if explicit {
			a.setStatus(fmt.Sprintf("%s language server is disabled", b.Language))
		}
		return nil
	}

	h, ok := a.manager.Handle(b.Language)
	if !ok {
		return nil
	}
	if b.openedWith == h.ID() {
		b.lspEnabled = true
		return nil
	}
	if err := h.DidOpen(b.Path, b.text); err != nil {
		a.setStatus(fmt.Sprintf("open %s with %s server: %v", filepath.Base(b.Path), b.Language, err))
		return err
	}
	b.openedWith = h.ID()
	b.lspEnabled = true
	a.requestPulls(h, b)
	if explicit {
		a.setStatus(fmt.Sprintf("LSP enabled for %s", filepath.Base(b.Path)))
	}
	return nil
}

// DisableLSP turns language support off for a buffer. The didClose goes out
// before the flag flips: the session's version table must forget the path,
// otherwise a later enable's didOpen would be a duplicate and the document
// would desync. Cached diagnostics, hints, folds, and the pull result id
// are dropped with it.
func (a *App) DisableLSP(b *Buffer) error {
	var closeErr error
	h, live := a.liveHandle(b)
	if live {
		for _, id := range a.store.Forget(b.URI) {
			_ = h.CancelPull(id)
		}
		closeErr = h.DidClose(b.Path)
	} else {
		a.store.Forget(b.URI)
	}
	b.dropIdentity()
	b.lspEnabled = false
	a.setStatus(fmt.Sprintf("LSP disabled for %s", filepath.Base(b.Path)))
	return closeErr
}

// ToggleLSP flips language support for a buffer as a direct user action.
func (a *App) ToggleLSP(ctx context.Context, b *Buffer) error {
	if b.lspEnabled {
		return a.DisableLSP(b)
	}
	return a.EnableLSP(ctx, b, true)
}

// EditBuffer replaces a buffer's content and syncs the session. Edits on a
// disabled buffer touch only local state. A stale handle identity means the
// session restarted behind us; the document is re-opened with the current
// text instead of sending a didChange the session would drop.
func (a *App) EditBuffer(b *Buffer, text string) error {
	b.SetText(text)
	if !b.lspEnabled {
		return nil
	}
	h, ok := a.manager.Handle(b.Language)
	if !ok {
		return nil
	}
	if h.ID() != b.openedWith {
		if err := h.DidOpen(b.Path, b.text); err != nil {
			a.logger.Debug("reopen %s after restart: %v", b.Path, err)
			return err
		}
		b.openedWith = h.ID()
		a.store.ForgetResult(b.URI)
		a.requestPulls(h, b)
		return nil
	}
	if err := h.DidChange(b.Path, b.text); err != nil {
		a.logger.Debug("didChange %s: %v", b.Path, err)
		return err
	}
	a.pullDiagnostics(h, b)
	return nil
}

// RestartLSP restarts the language's server and re-opens every enabled
// buffer of that language with its current content. Each reopened buffer
// records the new handle identity; the old one is dead either way.
func (a *App) RestartLSP(ctx context.Context, language string) {
	ok, msg := a.manager.ManualRestart(ctx, language)
	a.setStatus(msg)
	if !ok {
		for _, b := range a.buffersFor(language) {
			b.dropIdentity()
		}
		return
	}
	h, hok := a.manager.Handle(language)
	if !hok {
		return
	}
	for _, b := range a.buffersFor(language) {
		if !b.lspEnabled {
			continue
		}
		if err := h.DidOpen(b.Path, b.text); err != nil {
			a.logger.Warn("reopen %s after restart: %v", b.Path, err)
			b.dropIdentity()
			continue
		}
		b.openedWith = h.ID()
		a.store.ForgetResult(b.URI)
		a.requestPulls(h, b)
	}
}

// AddBuffer registers an in-memory document, makes it active, and enables
// language support per the auto-start policy.
func (a *App) AddBuffer(ctx context.Context, path, text string) *Buffer {
	b := NewBuffer(path, text)
	a.buffers = append(a.buffers, b)
	a.active = len(a.buffers) - 1
	a.selected = 0
	if err := a.EnableLSP(ctx, b, false); err != nil {
		a.logger.Warn("lsp for %s: %v", path, err)
	}
	return b
}

// OpenFile reads a file from disk and adds it as a buffer.
func (a *App) OpenFile(ctx context.Context, path string) (*Buffer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return a.AddBuffer(ctx, path, string(data)), nil
}

// liveHandle returns the current handle for the buffer's language if the
// buffer was opened against exactly that session.
func (a *App) liveHandle(b *Buffer) (*lsp.Handle, bool) {
	if b.openedWith == uuid.Nil {
		return nil, false
	}
	h, ok := a.manager.Handle(b.Language)
	if !ok || h.ID() != b.openedWith {
		return nil, false
	}
	return h, true
}

// buffersFor returns every buffer of a language.
func (a *App) buffersFor(language string) []*Buffer {
	var out []*Buffer
	for _, b := range a.buffers {
		if b.Language == language {
			out = append(out, b)
		}
	}
	return out
}

// requestPulls fires the whole-document requests for a freshly opened
// buffer: diagnostics and folding ranges always, inlay hints when
// configured.
func (a *App) requestPulls(h *lsp.Handle, b *Buffer) {
	a.pullDiagnostics(h, b)
	a.pullFoldingRanges(h, b)
	if a.cfg.UI.InlayHints {
		a.pullInlayHints(h, b)
	}
}

func (a *App) pullDiagnostics(h *lsp.Handle, b *Buffer) {
	id := a.trackPull(h, b.URI, pullDiagnostics)
	if err := h.DocumentDiagnostic(id, b.URI, a.store.ResultID(b.URI)); err != nil {
		a.store.Drop(id)
		a.logger.Debug("pull diagnostics %s: %v", b.Path, err)
	}
}

func (a *App) pullInlayHints(h *lsp.Handle, b *Buffer) {
	id := a.trackPull(h, b.URI, pullInlayHints)
	if err := h.InlayHints(id, b.URI, fullRange(b.text)); err != nil {
		a.store.Drop(id)
		a.logger.Debug("pull inlay hints %s: %v", b.Path, err)
	}
}

func (a *App) pullFoldingRanges(h *lsp.Handle, b *Buffer) {
	id := a.trackPull(h, b.URI, pullFoldingRanges)
	if err := h.FoldingRange(id, b.URI); err != nil {
		a.store.Drop(id)
		a.logger.Debug("pull folding ranges %s: %v", b.Path, err)
	}
}

// trackPull allocates a request id for a pull, cancelling any pull of the
// same kind still in flight for the document. The newer request supersedes
// the older one.
func (a *App) trackPull(h *lsp.Handle, uri lsp.DocumentURI, kind pullKind) uint64 {
	if prev, ok := a.store.InflightFor(uri, kind); ok {
		a.store.Drop(prev)
		_ = h.CancelPull(prev)
	}
	id := a.store.NextRequestID()
	a.store.Track(id, kind, uri)
	return id
}

// fullRange spans the whole document, for whole-file inlay hint requests.
func fullRange(text string) lsp.Range {
	lines := strings.Count(text, "\n")
	if len(text) > 0 && !strings.HasSuffix(text, "\n") {
		lines++
	}
	return lsp.Range{End: lsp.Position{Line: lines}}
}
