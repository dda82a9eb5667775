package lsp

import (
	"context"
	"encoding/json"
)

// Outcome is the terminal result of one correlated request: a raw result, a
// JSON-RPC error object, or a session-fatal error. At most one of RPCErr and
// Err is set.
type Outcome struct {
	Result json.RawMessage
	RPCErr *RPCError
	Err    error
}

// Failure returns the outcome's error, if any.
func (o Outcome) Failure() error {
	if o.Err != nil {
		return o.Err
	}
	if o.RPCErr != nil {
		return o.RPCErr
	}
	return nil
}

// Slot is a single-use completion cell. The session goroutine fulfills it;
// the waiter may be another goroutine or the editor thread blocking on Wait.
type Slot struct {
	ch chan Outcome
}

// NewSlot creates an unfulfilled slot.
func NewSlot() *Slot {
	return &Slot{ch: make(chan Outcome, 1)}
}

// Fulfill completes the slot. Only the first call takes effect.
func (s *Slot) Fulfill(o Outcome) {
	select {
	case s.ch <- o:
	default:
	}
}

// Wait blocks until the slot is fulfilled or the context ends.
func (s *Slot) Wait(ctx context.Context) (Outcome, error) {
	select {
	case o := <-s.ch:
		return o, nil
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
}

// Done exposes the completion channel for use in select statements.
func (s *Slot) Done() <-chan Outcome {
	return s.ch
}

// PullKind identifies which request family a bridge-delivered reply belongs to.
type PullKind int

const (
	PullDiagnostic PullKind = iota + 1
	PullInlayHint
	PullFoldingRange
)

// String returns the string representation of the pull kind.
func (k PullKind) String() string {
	switch k {
	case PullDiagnostic:
		return "diagnostic"
	case PullInlayHint:
		return "inlayHint"
	case PullFoldingRange:
		return "foldingRange"
	default:
		return "unknown"
	}
}

// PullTag carries the editor-side identity of a request whose reply is
// delivered through the bridge rather than awaited in-line.
type PullTag struct {
	Kind      PullKind
	RequestID uint64 // allocated by the editor, echoed on the bridge event
	URI       DocumentURI
}

// Pending is one in-flight request awaiting its response. Exactly one of
// Slot and Pull is set: Slot for synchronously awaited requests (initialize,
// shutdown), Pull for requests resolved onto the bridge.
type Pending struct {
	Method string
	Slot   *Slot
	Pull   *PullTag
}

// Ledger correlates outgoing request ids with their pending entries. It is
// owned exclusively by the session goroutine and needs no locking. Ids are
// strictly increasing from zero and never reused within a session.
type Ledger struct {
	nextID  int64
	pending map[int64]*Pending
}

// NewLedger creates an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{pending: make(map[int64]*Pending)}
}

// NextID allocates the next request id.
func (l *Ledger) NextID() int64 {
	id := l.nextID
	l.nextID++
	return id
}

// Register records a pending entry under the given id.
func (l *Ledger) Register(id int64, p *Pending) {
	l.pending[id] = p
}

// Resolve removes and returns the entry for id, or nil when the id is
// unknown. Unknown ids are expected (post-shutdown stragglers) and must be
// handled by logging, never by failing the session.
func (l *Ledger) Resolve(id int64) *Pending {
	p, ok := l.pending[id]
	if !ok {
		return nil
	}
	delete(l.pending, id)
	return p
}

// Drain removes and returns every outstanding entry. Used when the session
// terminates so waiters can be failed without panicking.
func (l *Ledger) Drain() []*Pending {
	if len(l.pending) == 0 {
		return nil
	}
	out := make([]*Pending, 0, len(l.pending))
	for _, p := range l.pending {
		out = append(out, p)
	}
	l.pending = make(map[int64]*Pending)
	return out
}

// Len reports the number of outstanding entries.
func (l *Ledger) Len() int {
	return len(l.pending)
}
