package app

import (
	"github.com/dshills/skiff/internal/lsp"
)

// pullKind discriminates the in-flight pull request table.
type pullKind int

const (
	pullDiagnostics pullKind = iota + 1
	pullInlayHints
	pullFoldingRanges
)

// String returns the string representation of the kind.
func (k pullKind) String() string {
	switch k {
	case pullDiagnostics:
		return "diagnostics"
	case pullInlayHints:
		return "inlay-hints"
	case pullFoldingRanges:
		return "folding-ranges"
	default:
		return "unknown"
	}
}

// pullRef ties an editor request id to the document and request kind that
// allocated it.
type pullRef struct {
	kind pullKind
	uri  lsp.DocumentURI
}

// DiagnosticsStore holds everything the editor caches per document:
// diagnostics (pushed or pulled), the pull result id to send back as
// previousResultId, folding ranges, inlay hints, and the table of in-flight
// pull requests. It is owned by the editor goroutine and takes no locks.
type DiagnosticsStore struct {
	diags     map[lsp.DocumentURI][]lsp.Diagnostic
	resultIDs map[lsp.DocumentURI]string
	folds     map[lsp.DocumentURI][]lsp.FoldingRange
	hints     map[lsp.DocumentURI][]lsp.InlayHint
	inflight  map[uint64]pullRef
	nextID    uint64
}

// NewDiagnosticsStore creates an empty store.
func NewDiagnosticsStore() *DiagnosticsStore {
	return &DiagnosticsStore{
		diags:     make(map[lsp.DocumentURI][]lsp.Diagnostic),
		resultIDs: make(map[lsp.DocumentURI]string),
		folds:     make(map[lsp.DocumentURI][]lsp.FoldingRange),
		hints:     make(map[lsp.DocumentURI][]lsp.InlayHint),
		inflight:  make(map[uint64]pullRef),
	}
}

// NextRequestID allocates a fresh editor-side request id.
func (s *DiagnosticsStore) NextRequestID() uint64 {
	s.nextID++
	return s.nextID
}

// Track records an in-flight pull so its reply can be matched later.
func (s *DiagnosticsStore) Track(id uint64, kind pullKind, uri lsp.DocumentURI) {
	s.inflight[id] = pullRef{kind: kind, uri: uri}
}

// Claim removes and returns the in-flight entry for a reply. The second
// return is false for replies nothing is waiting on.
func (s *DiagnosticsStore) Claim(id uint64) (pullRef, bool) {
	ref, ok := s.inflight[id]
	if ok {
		delete(s.inflight, id)
	}
	return ref, ok
}

// Drop removes an in-flight entry without a reply, after a cancel or a send
// failure.
func (s *DiagnosticsStore) Drop(id uint64) {
	delete(s.inflight, id)
}

// InflightFor returns the id of the pending pull of the given kind for a
// document, if one exists. A new pull for the same document supersedes it.
func (s *DiagnosticsStore) InflightFor(uri lsp.DocumentURI, kind pullKind) (uint64, bool) {
	for id, ref := range s.inflight {
		if ref.uri == uri && ref.kind == kind {
			return id, true
		}
	}
	return 0, false
}

// SetDiagnostics stores server-pushed diagnostics for a document.
func (s *DiagnosticsStore) SetDiagnostics(uri lsp.DocumentURI, items []lsp.Diagnostic) {
	s.diags[uri] = items
}

// Diagnostics returns the stored diagnostics for a document.
func (s *DiagnosticsStore) Diagnostics(uri lsp.DocumentURI) []lsp.Diagnostic {
	return s.diags[uri]
}

// ApplyReport folds a pull-diagnostic report into the store. An unchanged
// report keeps the stored items and refreshes only the result id; a full
// report replaces them. Unknown kinds are treated as full, which is the
// safe direction: worst case we redraw items the server re-sent.
func (s *DiagnosticsStore) ApplyReport(uri lsp.DocumentURI, report lsp.DocumentDiagnosticReport) {
	if report.Kind == lsp.DiagnosticReportUnchanged {
		if report.ResultID != "" {
			s.resultIDs[uri] = report.ResultID
		}
		return
	}
	s.diags[uri] = report.Items
	if report.ResultID != "" {
		s.resultIDs[uri] = report.ResultID
	} else {
		delete(s.resultIDs, uri)
	}
}

// ResultID returns the previousResultId to send on the next pull for a
// document. Empty when the server never reported one.
func (s *DiagnosticsStore) ResultID(uri lsp.DocumentURI) string {
	return s.resultIDs[uri]
}

// ForgetResult drops only the cached result id. Used after a restart: the
// new server process does not know the old id.
func (s *DiagnosticsStore) ForgetResult(uri lsp.DocumentURI) {
	delete(s.resultIDs, uri)
}

// SetInlayHints stores the hints for a document.
func (s *DiagnosticsStore) SetInlayHints(uri lsp.DocumentURI, hints []lsp.InlayHint) {
	s.hints[uri] = hints
}

// InlayHints returns the stored hints for a document.
func (s *DiagnosticsStore) InlayHints(uri lsp.DocumentURI) []lsp.InlayHint {
	return s.hints[uri]
}

// SetFoldingRanges stores the folding ranges for a document.
func (s *DiagnosticsStore) SetFoldingRanges(uri lsp.DocumentURI, ranges []lsp.FoldingRange) {
	s.folds[uri] = ranges
}

// FoldingRanges returns the stored folding ranges for a document.
func (s *DiagnosticsStore) FoldingRanges(uri lsp.DocumentURI) []lsp.FoldingRange {
	return s.folds[uri]
}

// Forget clears every cached entry for a document and returns the ids of
// any pulls that were still in flight, so the caller can cancel them.
func (s *DiagnosticsStore) Forget(uri lsp.DocumentURI) []uint64 {
	delete(s.diags, uri)
	delete(s.resultIDs, uri)
	delete(s.folds, uri)
	delete(s.hints, uri)

	var dropped []uint64
	for id, ref := range s.inflight {
		if ref.uri == uri {
			dropped = append(dropped, id)
			delete(s.inflight, id)
		}
	}
	return dropped
}
