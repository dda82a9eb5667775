package lsp

import (
	"fmt"
	"testing"
)

func TestBridge_TryRecvEmpty(t *testing.T) {
	b := NewBridge()
	if ev, ok := b.TryRecv(); ok || ev != nil {
		t.Fatalf("TryRecv() on empty bridge = %v, %v; want nil, false", ev, ok)
	}
}

func TestBridge_PreservesSendOrder(t *testing.T) {
	b := NewBridge()
	sender := b.Sender()
	for i := 0; i < 10; i++ {
		sender.Send(ShowMessageEvent{Language: "go", Message: fmt.Sprintf("m%d", i)})
	}

	events := b.TryRecvAll()
	if len(events) != 10 {
		t.Fatalf("TryRecvAll() returned %d events, want 10", len(events))
	}
	for i, ev := range events {
		sm, ok := ev.(ShowMessageEvent)
		if !ok {
			t.Fatalf("event %d has type %T, want ShowMessageEvent", i, ev)
		}
		if want := fmt.Sprintf("m%d", i); sm.Message != want {
			t.Errorf("event %d message = %q, want %q", i, sm.Message, want)
		}
	}
}

func TestBridge_TryRecvAllDrains(t *testing.T) {
	b := NewBridge()
	sender := b.Sender()
	sender.Send(InitializedEvent{Language: "go"})
	sender.Send(InitializedEvent{Language: "rust"})

	if events := b.TryRecvAll(); len(events) != 2 {
		t.Fatalf("first drain returned %d events, want 2", len(events))
	}
	if events := b.TryRecvAll(); len(events) != 0 {
		t.Fatalf("second drain returned %d events, want 0", len(events))
	}
}

func TestBridge_ManySenders(t *testing.T) {
	b := NewBridge()
	const senders = 8
	const perSender = 16

	done := make(chan struct{})
	for i := 0; i < senders; i++ {
		go func(n int) {
			defer func() { done <- struct{}{} }()
			sender := b.Sender()
			for j := 0; j < perSender; j++ {
				sender.Send(DiagnosticsEvent{URI: DocumentURI(fmt.Sprintf("file:///s%d-%d.go", n, j))})
			}
		}(i)
	}

	got := 0
	finished := 0
	for finished < senders || got < senders*perSender {
		select {
		case <-done:
			finished++
		default:
		}
		got += len(b.TryRecvAll())
	}
	if got != senders*perSender {
		t.Fatalf("received %d events, want %d", got, senders*perSender)
	}
}
