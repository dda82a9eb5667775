package app

import (
	"testing"

	"github.com/dshills/skiff/internal/lsp"
)

func diag(line, char int, msg string) lsp.Diagnostic {
	return lsp.Diagnostic{
		Range: lsp.Range{
			Start: lsp.Position{Line: line, Character: char},
			End:   lsp.Position{Line: line, Character: char + 1},
		},
		Severity: lsp.DiagnosticSeverityError,
		Message:  msg,
	}
}

func TestStoreRequestIDs(t *testing.T) {
	s := NewDiagnosticsStore()
	for want := uint64(1); want <= 3; want++ {
		if got := s.NextRequestID(); got != want {
			t.Fatalf("NextRequestID() = %d, want %d", got, want)
		}
	}
}

func TestStoreTrackClaim(t *testing.T) {
	s := NewDiagnosticsStore()
	uri := lsp.DocumentURI("file:///a.go")

	s.Track(7, pullDiagnostics, uri)
	ref, ok := s.Claim(7)
	if !ok {
		t.Fatal("Claim() missed a tracked id")
	}
	if ref.kind != pullDiagnostics || ref.uri != uri {
		t.Errorf("Claim() = %+v, want kind=diagnostics uri=%s", ref, uri)
	}

	// Claim removes the entry; a second reply with the same id is stale.
	if _, ok := s.Claim(7); ok {
		t.Error("Claim() succeeded twice for one id")
	}
	if _, ok := s.Claim(99); ok {
		t.Error("Claim() succeeded for an id never tracked")
	}
}

func TestStoreInflightFor(t *testing.T) {
	s := NewDiagnosticsStore()
	uri := lsp.DocumentURI("file:///a.go")

	s.Track(1, pullDiagnostics, uri)
	s.Track(2, pullInlayHints, uri)

	id, ok := s.InflightFor(uri, pullDiagnostics)
	if !ok || id != 1 {
		t.Errorf("InflightFor(diagnostics) = %d, %v, want 1, true", id, ok)
	}
	id, ok = s.InflightFor(uri, pullInlayHints)
	if !ok || id != 2 {
		t.Errorf("InflightFor(inlay-hints) = %d, %v, want 2, true", id, ok)
	}
	if _, ok := s.InflightFor(uri, pullFoldingRanges); ok {
		t.Error("InflightFor(folding-ranges) found a pull that was never sent")
	}

	s.Drop(1)
	if _, ok := s.InflightFor(uri, pullDiagnostics); ok {
		t.Error("InflightFor() found a dropped pull")
	}
}

func TestStoreApplyReport(t *testing.T) {
	uri := lsp.DocumentURI("file:///a.go")

	t.Run("full replaces and caches result id", func(t *testing.T) {
		s := NewDiagnosticsStore()
		s.SetDiagnostics(uri, []lsp.Diagnostic{diag(0, 0, "old")})
		s.ApplyReport(uri, lsp.DocumentDiagnosticReport{
			Kind:     lsp.DiagnosticReportFull,
			ResultID: "r1",
			Items:    []lsp.Diagnostic{diag(1, 0, "new")},
		})
		got := s.Diagnostics(uri)
		if len(got) != 1 || got[0].Message != "new" {
			t.Errorf("Diagnostics() = %+v, want the one new item", got)
		}
		if s.ResultID(uri) != "r1" {
			t.Errorf("ResultID() = %q, want r1", s.ResultID(uri))
		}
	})

	t.Run("unchanged keeps items", func(t *testing.T) {
		s := NewDiagnosticsStore()
		s.SetDiagnostics(uri, []lsp.Diagnostic{diag(0, 0, "keep")})
		s.ApplyReport(uri, lsp.DocumentDiagnosticReport{
			Kind:     lsp.DiagnosticReportUnchanged,
			ResultID: "r2",
		})
		got := s.Diagnostics(uri)
		if len(got) != 1 || got[0].Message != "keep" {
			t.Errorf("Diagnostics() = %+v, want items untouched", got)
		}
		if s.ResultID(uri) != "r2" {
			t.Errorf("ResultID() = %q, want the refreshed r2", s.ResultID(uri))
		}
	})

	t.Run("unchanged without id keeps the old id", func(t *testing.T) {
		s := NewDiagnosticsStore()
		s.ApplyReport(uri, lsp.DocumentDiagnosticReport{Kind: lsp.DiagnosticReportFull, ResultID: "r1"})
		s.ApplyReport(uri, lsp.DocumentDiagnosticReport{Kind: lsp.DiagnosticReportUnchanged})
		if s.ResultID(uri) != "r1" {
			t.Errorf("ResultID() = %q, want r1 preserved", s.ResultID(uri))
		}
	})

	t.Run("full without id forgets the old id", func(t *testing.T) {
		s := NewDiagnosticsStore()
		s.ApplyReport(uri, lsp.DocumentDiagnosticReport{Kind: lsp.DiagnosticReportFull, ResultID: "r1"})
		s.ApplyReport(uri, lsp.DocumentDiagnosticReport{Kind: lsp.DiagnosticReportFull})
		if s.ResultID(uri) != "" {
			t.Errorf("ResultID() = %q, want empty after a full report with no id", s.ResultID(uri))
		}
	})

	t.Run("unknown kind treated as full", func(t *testing.T) {
		s := NewDiagnosticsStore()
		s.SetDiagnostics(uri, []lsp.Diagnostic{diag(0, 0, "old")})
		s.ApplyReport(uri, lsp.DocumentDiagnosticReport{
			Kind:  "experimental",
			Items: []lsp.Diagnostic{diag(2, 0, "replacement")},
		})
		got := s.Diagnostics(uri)
		if len(got) != 1 || got[0].Message != "replacement" {
			t.Errorf("Diagnostics() = %+v, want the replacement item", got)
		}
	})
}

func TestStoreForget(t *testing.T) {
	s := NewDiagnosticsStore()
	uri := lsp.DocumentURI("file:///a.go")
	other := lsp.DocumentURI("file:///b.go")

	s.SetDiagnostics(uri, []lsp.Diagnostic{diag(0, 0, "x")})
	s.ApplyReport(uri, lsp.DocumentDiagnosticReport{Kind: lsp.DiagnosticReportFull, ResultID: "r1"})
	s.SetFoldingRanges(uri, []lsp.FoldingRange{{StartLine: 0, EndLine: 2}})
	s.SetInlayHints(uri, []lsp.InlayHint{{}})
	s.Track(1, pullDiagnostics, uri)
	s.Track(2, pullFoldingRanges, uri)
	s.Track(3, pullDiagnostics, other)

	dropped := s.Forget(uri)
	if len(dropped) != 2 {
		t.Fatalf("Forget() dropped %d pulls, want 2", len(dropped))
	}
	seen := map[uint64]bool{}
	for _, id := range dropped {
		seen[id] = true
	}
	if !seen[1] || !seen[2] {
		t.Errorf("Forget() dropped %v, want ids 1 and 2", dropped)
	}

	if got := s.Diagnostics(uri); got != nil {
		t.Errorf("Diagnostics() = %+v after Forget, want nil", got)
	}
	if s.ResultID(uri) != "" {
		t.Error("ResultID() survived Forget")
	}
	if s.FoldingRanges(uri) != nil || s.InlayHints(uri) != nil {
		t.Error("folds or hints survived Forget")
	}

	// The other document is untouched.
	if _, ok := s.InflightFor(other, pullDiagnostics); !ok {
		t.Error("Forget() dropped another document's pull")
	}
}
