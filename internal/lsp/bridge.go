package lsp

import "sync"

// Event is a message pushed by a session goroutine for the editor thread to
// consume on its next frame. The concrete types below are the only
// implementations.
type Event interface {
	sessionEvent()
}

// DiagnosticsEvent carries server-pushed diagnostics for one document.
type DiagnosticsEvent struct {
	URI   DocumentURI
	Items []Diagnostic
}

// InitializedEvent signals that a session finished its handshake and is Ready.
type InitializedEvent struct {
	Language string
}

// ErrorEvent reports a fatal session failure. Exactly one is pushed per
// failure; the session is gone afterwards and must be respawned explicitly.
type ErrorEvent struct {
	Language string
	Err      error
}

// ShowMessageEvent surfaces a window/showMessage notification for the
// status line.
type ShowMessageEvent struct {
	Language string
	Type     MessageType
	Message  string
}

// DiagnosticReportEvent delivers the reply to a textDocument/diagnostic
// pull, tagged with the editor-allocated request id.
type DiagnosticReportEvent struct {
	RequestID uint64
	URI       DocumentURI
	Report    DocumentDiagnosticReport
	Err       error
}

// InlayHintsEvent delivers the reply to a textDocument/inlayHint request.
type InlayHintsEvent struct {
	RequestID uint64
	URI       DocumentURI
	Hints     []InlayHint
	Err       error
}

// FoldingRangesEvent delivers the reply to a textDocument/foldingRange request.
type FoldingRangesEvent struct {
	RequestID uint64
	URI       DocumentURI
	Ranges    []FoldingRange
	Err       error
}

func (DiagnosticsEvent) sessionEvent()      {}
func (InitializedEvent) sessionEvent()      {}
func (ErrorEvent) sessionEvent()            {}
func (ShowMessageEvent) sessionEvent()      {}
func (DiagnosticReportEvent) sessionEvent() {}
func (InlayHintsEvent) sessionEvent()       {}
func (FoldingRangesEvent) sessionEvent()    {}

// bridgeCapacity bounds the event backlog. The editor drains the bridge
// completely every frame, so the buffer only fills if the UI thread is gone;
// a blocked sender then applies backpressure instead of growing without
// bound.
const bridgeCapacity = 256

// Bridge carries events from many session goroutines to the single editor
// thread. Senders are cheap handles that may be cloned freely; the receiver
// is drained non-blocking once per frame.
type Bridge struct {
	mu sync.Mutex // serializes drains; held only for non-blocking receives
	ch chan Event
}

// NewBridge creates a bridge.
func NewBridge() *Bridge {
	return &Bridge{ch: make(chan Event, bridgeCapacity)}
}

// Sender returns a handle session goroutines use to push events.
func (b *Bridge) Sender() *Sender {
	return &Sender{ch: b.ch}
}

// TryRecv pops one event without blocking.
func (b *Bridge) TryRecv() (Event, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	select {
	case ev := <-b.ch:
		return ev, true
	default:
		return nil, false
	}
}

// TryRecvAll drains every queued event without blocking. Called once per
// frame on the editor thread.
func (b *Bridge) TryRecvAll() []Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	var out []Event
	for {
		select {
		case ev := <-b.ch:
			out = append(out, ev)
		default:
			return out
		}
	}
}

// Sender pushes events onto the bridge. Safe for concurrent use.
type Sender struct {
	ch chan<- Event
}

// Send enqueues an event, blocking only when the bridge backlog is full.
func (s *Sender) Send(ev Event) {
	s.ch <- ev
}
