package app

import (
	"testing"
	"time"
)

func TestMetricsSnapshot(t *testing.T) {
	var m Metrics
	m.RecordFrame()
	m.RecordFrame()
	m.RecordDrain(3, 10*time.Millisecond)
	m.RecordDrain(1, 30*time.Millisecond)
	m.RecordStaleReply()

	s := m.Snapshot()
	if s.Frames != 2 {
		t.Errorf("Frames = %d, want 2", s.Frames)
	}
	if s.BridgeEvents != 4 {
		t.Errorf("BridgeEvents = %d, want 4", s.BridgeEvents)
	}
	if s.StaleReplies != 1 {
		t.Errorf("StaleReplies = %d, want 1", s.StaleReplies)
	}
	if s.DrainMax != 30*time.Millisecond {
		t.Errorf("DrainMax = %v, want 30ms", s.DrainMax)
	}
	if s.DrainAvg != 20*time.Millisecond {
		t.Errorf("DrainAvg = %v, want 20ms", s.DrainAvg)
	}
}

func TestMetricsZeroValue(t *testing.T) {
	var m Metrics
	s := m.Snapshot()
	if s != (MetricsSnapshot{}) {
		t.Errorf("Snapshot() = %+v, want all zero", s)
	}
}
