package bus

import (
	"context"
	"testing"
)

func TestPublishSubscribe(t *testing.T) {
	b := New(4)
	b.Publish(context.Background(), Event{Kind: KindSignOutcome, TraceID: "t1"})
	ev := <-b.Subscribe()
	if ev.Kind != KindSignOutcome || ev.TraceID != "t1" {
		t.Fatalf("event = %+v", ev)
	}
}

func TestPublish_DropsOnBackpressure(t *testing.T) {
	b := New(1)
	b.Publish(context.Background(), Event{TraceID: "first"})
	b.Publish(context.Background(), Event{TraceID: "dropped"}) // buffer full; must not block
	ev := <-b.Subscribe()
	if ev.TraceID != "first" {
		t.Fatalf("event = %+v", ev)
	}
	select {
	case ev := <-b.Subscribe():
		t.Fatalf("unexpected second event %+v", ev)
	default:
	}
}
