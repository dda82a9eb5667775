package app

import (
	"sync/atomic"
	"time"
)

// Metrics counts frame-loop activity. All methods are safe for concurrent
// use, though in practice only the editor goroutine writes.
type Metrics struct {
	frames       atomic.Uint64
	bridgeEvents atomic.Uint64
	staleReplies atomic.Uint64

	drainTotalNanos atomic.Int64
	drainMaxNanos   atomic.Int64
	drains          atomic.Uint64
}

// RecordFrame counts one rendered frame.
func (m *Metrics) RecordFrame() {
	m.frames.Add(1)
}

// RecordDrain counts one bridge drain of n events taking d.
func (m *Metrics) RecordDrain(n int, d time.Duration) {
	m.bridgeEvents.Add(uint64(n))
	m.drains.Add(1)
	m.drainTotalNanos.Add(int64(d))
	for {
		max := m.drainMaxNanos.Load()
		if int64(d) <= max || m.drainMaxNanos.CompareAndSwap(max, int64(d)) {
			return
		}
	}
}

// RecordStaleReply counts a pull reply that nothing was waiting on.
func (m *Metrics) RecordStaleReply() {
	m.staleReplies.Add(1)
}

// MetricsSnapshot is a point-in-time copy of the counters.
type MetricsSnapshot struct {
	Frames       uint64
	BridgeEvents uint64
	StaleReplies uint64
	DrainMax     time.Duration
	DrainAvg     time.Duration
}

// Snapshot returns a copy of the current counters.
func (m *Metrics) Snapshot() MetricsSnapshot {
	s := MetricsSnapshot{
		Frames:       m.frames.Load(),
		BridgeEvents: m.bridgeEvents.Load(),
		StaleReplies: m.staleReplies.Load(),
		DrainMax:     time.Duration(m.drainMaxNanos.Load()),
	}
	if drains := m.drains.Load(); drains > 0 {
		s.DrainAvg = time.Duration(uint64(m.drainTotalNanos.Load()) / drains)
	}
	return s
}
