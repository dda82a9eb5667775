package lsp

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestLedger_IDsAreMonotonic(t *testing.T) {
	l := NewLedger()
	prev := l.NextID()
	for i := 0; i < 100; i++ {
		id := l.NextID()
		if id <= prev {
			t.Fatalf("NextID() = %d after %d, want strictly increasing", id, prev)
		}
		prev = id
	}
}

func TestLedger_RegisterResolve(t *testing.T) {
	l := NewLedger()
	id := l.NextID()
	p := &Pending{Method: "shutdown", Slot: NewSlot()}
	l.Register(id, p)

	if got := l.Len(); got != 1 {
		t.Fatalf("Len() = %d, want 1", got)
	}
	if got := l.Resolve(id); got != p {
		t.Fatalf("Resolve(%d) = %v, want registered entry", id, got)
	}
	if got := l.Resolve(id); got != nil {
		t.Fatalf("second Resolve(%d) = %v, want nil", id, got)
	}
}

func TestLedger_ResolveUnknownIsNil(t *testing.T) {
	l := NewLedger()
	if got := l.Resolve(999); got != nil {
		t.Fatalf("Resolve(999) = %v, want nil", got)
	}
}

func TestLedger_Drain(t *testing.T) {
	l := NewLedger()
	for i := 0; i < 3; i++ {
		l.Register(l.NextID(), &Pending{Method: "textDocument/diagnostic"})
	}

	drained := l.Drain()
	if len(drained) != 3 {
		t.Fatalf("Drain() returned %d entries, want 3", len(drained))
	}
	if got := l.Len(); got != 0 {
		t.Fatalf("Len() after Drain = %d, want 0", got)
	}
}

func TestSlot_FirstFulfillWins(t *testing.T) {
	s := NewSlot()
	s.Fulfill(Outcome{Result: json.RawMessage(`"first"`)})
	s.Fulfill(Outcome{Result: json.RawMessage(`"second"`)})

	o, err := s.Wait(context.Background())
	if err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if string(o.Result) != `"first"` {
		t.Errorf("Result = %s, want \"first\"", o.Result)
	}
}

func TestSlot_WaitHonorsContext(t *testing.T) {
	s := NewSlot()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := s.Wait(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Wait() error = %v, want deadline exceeded", err)
	}
}

func TestSlot_WaitAfterFulfill(t *testing.T) {
	s := NewSlot()
	go func() {
		time.Sleep(10 * time.Millisecond)
		s.Fulfill(Outcome{Err: ErrSessionFailed})
	}()

	o, err := s.Wait(context.Background())
	if err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if !errors.Is(o.Failure(), ErrSessionFailed) {
		t.Errorf("Failure() = %v, want ErrSessionFailed", o.Failure())
	}
}

func TestOutcome_Failure(t *testing.T) {
	tests := []struct {
		name    string
		outcome Outcome
		wantErr bool
	}{
		{"success", Outcome{Result: json.RawMessage(`{}`)}, false},
		{"rpc error", Outcome{RPCErr: &RPCError{Code: CodeInternalError, Message: "boom"}}, true},
		{"local error", Outcome{Err: ErrChannelClosed}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.outcome.Failure(); (got != nil) != tt.wantErr {
				t.Errorf("Failure() = %v, wantErr %v", got, tt.wantErr)
			}
		})
	}
}
