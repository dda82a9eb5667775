package app

import (
	"github.com/google/uuid"

	"github.com/dshills/skiff/internal/lsp"
)

// Buffer is one open document. Text lives here; document versions live in
// the language session, which derives them from the didOpen/didChange
// traffic this buffer generates.
//
// openedWith records which session handle the buffer's didOpen went to.
// After a server restart the manager hands out a handle with a new identity,
// so a mismatch here means the session no longer knows this document and it
// must be re-opened before any didChange.
type Buffer struct {
	Path     string
	URI      lsp.DocumentURI
	Language string

	text       string
	dirty      bool
	lspEnabled bool
	openedWith uuid.UUID
}

// NewBuffer creates a buffer for path holding text. The language is derived
// from the file name.
func NewBuffer(path, text string) *Buffer {
	return &Buffer{
		Path:     path,
		URI:      lsp.FilePathToURI(path),
		Language: lsp.DetectLanguageID(path),
		text:     text,
	}
}

// Text returns the current content.
func (b *Buffer) Text() string { return b.text }

// SetText replaces the content and marks the buffer dirty.
func (b *Buffer) SetText(text string) {
	b.text = text
	b.dirty = true
}

// Append appends to the content and marks the buffer dirty.
func (b *Buffer) Append(text string) {
	b.text += text
	b.dirty = true
}

// Dirty reports whether the buffer has unsaved edits.
func (b *Buffer) Dirty() bool { return b.dirty }

// LSPEnabled reports whether the user wants LSP for this buffer.
func (b *Buffer) LSPEnabled() bool { return b.lspEnabled }

// OpenedWith returns the handle identity the buffer was opened against, or
// uuid.Nil when it is not open with any session.
func (b *Buffer) OpenedWith() uuid.UUID { return b.openedWith }

// dropIdentity forgets the session the buffer was opened with. The next
// enable or edit re-opens the document from scratch.
func (b *Buffer) dropIdentity() { b.openedWith = uuid.Nil }
