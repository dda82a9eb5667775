package lsp

import (
	"context"

	"github.com/google/uuid"
)

// Handle is the synchronous side of a session. Methods enqueue commands on
// the session's bounded queue and return immediately, except Initialize and
// Shutdown which block until the session answers. Handles are cheap to copy
// around; all of them feed the same queue.
//
// A handle is identified by ID. After a restart the manager hands out a new
// handle with a new ID, so holders can tell a stale handle from the live one.
type Handle struct {
	id       uuid.UUID
	language string
	session  *Session
}

func newHandle(language string, session *Session) *Handle {
	return &Handle{
		id:       uuid.New(),
		language: language,
		session:  session,
	}
}

// ID returns the unique identity of this handle.
func (h *Handle) ID() uuid.UUID { return h.id }

// Language returns the language this handle serves.
func (h *Handle) Language() string { return h.language }

// Status reports the session's lifecycle state.
func (h *Handle) Status() SessionStatus { return h.session.Status() }

// enqueue places a command on the session queue. It blocks while the queue
// is full and fails fast once the session event loop has exited.
func (h *Handle) enqueue(c command) error {
	select {
	case h.session.commands <- c:
		return nil
	case <-h.session.done:
		return &LanguageError{Language: h.language, Err: ErrChannelClosed}
	}
}

// Initialize spawns the server process and blocks until the initialize
// handshake completes, the server reports an error, or ctx expires.
func (h *Handle) Initialize(ctx context.Context, rootURI DocumentURI) error {
	reply := NewSlot()
	if err := h.enqueue(cmdInitialize{rootURI: rootURI, reply: reply}); err != nil {
		return err
	}
	o, err := reply.Wait(ctx)
	if err != nil {
		return &LanguageError{Language: h.language, Err: err}
	}
	if err := o.Failure(); err != nil {
		return &LanguageError{Language: h.language, Err: err}
	}
	return nil
}

// DidOpen tells the server a document is now open with the given full text.
// The session records version 1 for the document.
func (h *Handle) DidOpen(path, text string) error {
	if err := h.checkReady(); err != nil {
		return err
	}
	return h.enqueue(cmdDidOpen{path: path, text: text})
}

// DidChange sends the full replacement text for an open document, bumping
// its version. Changes for documents that were never opened are dropped by
// the session.
func (h *Handle) DidChange(path, text string) error {
	if err := h.checkReady(); err != nil {
		return err
	}
	return h.enqueue(cmdDidChange{path: path, text: text})
}

// DidClose tells the server a document closed and forgets its version.
func (h *Handle) DidClose(path string) error {
	if err := h.checkReady(); err != nil {
		return err
	}
	return h.enqueue(cmdDidClose{path: path})
}

// DocumentDiagnostic fires a pull diagnostics request. The result arrives on
// the bridge as a DiagnosticReportEvent tagged with requestID.
func (h *Handle) DocumentDiagnostic(requestID uint64, uri DocumentURI, previousResultID string) error {
	if err := h.checkReady(); err != nil {
		return err
	}
	return h.enqueue(cmdDiagnostic{requestID: requestID, uri: uri, previousResultID: previousResultID})
}

// InlayHints fires an inlay hint request for the given range. The result
// arrives on the bridge as an InlayHintsEvent tagged with requestID.
func (h *Handle) InlayHints(requestID uint64, uri DocumentURI, rng Range) error {
	if err := h.checkReady(); err != nil {
		return err
	}
	return h.enqueue(cmdInlayHints{requestID: requestID, uri: uri, rng: rng})
}

// FoldingRange fires a folding range request. The result arrives on the
// bridge as a FoldingRangesEvent tagged with requestID.
func (h *Handle) FoldingRange(requestID uint64, uri DocumentURI) error {
	if err := h.checkReady(); err != nil {
		return err
	}
	return h.enqueue(cmdFoldingRange{requestID: requestID, uri: uri})
}

// CancelPull asks the server to cancel an in-flight pull request previously
// fired with the same requestID. The entry still resolves through the
// bridge, either with a result or a cancellation error.
func (h *Handle) CancelPull(requestID uint64) error {
	return h.enqueue(cmdCancelPull{requestID: requestID})
}

// Shutdown runs the shutdown handshake and terminates the server process.
// It is safe to call on an already-terminated session.
func (h *Handle) Shutdown(ctx context.Context) error {
	done := make(chan error, 1)
	if err := h.enqueue(cmdShutdown{done: done}); err != nil {
		// Event loop already exited; nothing left to stop.
		return nil
	}
	select {
	case err := <-done:
		return err
	case <-h.session.done:
		return nil
	case <-ctx.Done():
		return &LanguageError{Language: h.language, Err: ctx.Err()}
	}
}

func (h *Handle) checkReady() error {
	if h.session.Status() != StatusReady {
		return &LanguageError{Language: h.language, Err: ErrNotInitialized}
	}
	return nil
}
