package event

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestPublish_delivers_to_topic_subscribers(t *testing.T) {
	bus := NewBus(zap.NewNop())

	var got []Event
	bus.Subscribe("dashboard.snapshot", func(_ context.Context, ev Event) {
		got = append(got, ev)
	})
	bus.Subscribe("other.topic", func(_ context.Context, _ Event) {
		t.Error("handler on unrelated topic invoked")
	})

	bus.Publish(context.Background(), Event{Topic: "dashboard.snapshot", Payload: 42})

	if len(got) != 1 {
		t.Fatalf("deliveries = %d, want 1", len(got))
	}
	if got[0].Payload != 42 {
		t.Errorf("Payload = %v, want 42", got[0].Payload)
	}
}

func TestUnsubscribe(t *testing.T) {
	bus := NewBus(zap.NewNop())

	calls := 0
	unsub := bus.Subscribe("t", func(_ context.Context, _ Event) { calls++ })

	bus.Publish(context.Background(), Event{Topic: "t"})
	unsub()
	bus.Publish(context.Background(), Event{Topic: "t"})

	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestPublish_survives_handler_panic(t *testing.T) {
	bus := NewBus(zap.NewNop())

	bus.Subscribe("t", func(_ context.Context, _ Event) { panic("boom") })
	after := false
	bus.Subscribe("t", func(_ context.Context, _ Event) { after = true })

	bus.Publish(context.Background(), Event{Topic: "t"})

	if !after {
		t.Error("handler after the panicking one was not invoked")
	}
}

func TestPublishAsync(t *testing.T) {
	bus := NewBus(zap.NewNop())

	var wg sync.WaitGroup
	wg.Add(2)
	for range 2 {
		bus.Subscribe("t", func(_ context.Context, _ Event) { wg.Done() })
	}

	bus.PublishAsync(context.Background(), Event{Topic: "t", Time: time.Now()})

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("async handlers never ran")
	}
}
