package bus

import (
	"context"
)

type Kind string

const (
	// KindSignOutcome carries the per-request outcome record (accepted shares,
	// signer response log) from the combiner to the audit sink.
	KindSignOutcome Kind = "sign_outcome"
)

type Event struct {
	Kind    Kind
	Body    any
	TraceID string
}

type Subscriber chan Event

type Bus struct {
	pub chan Event
}

func New(size int) *Bus {
	if size <= 0 {
		size = 128
	}
	return &Bus{pub: make(chan Event, size)}
}

func (b *Bus) Publish(_ context.Context, ev Event) {
	select {
	case b.pub <- ev:
	default: // drop on backpressure
	}
}

func (b *Bus) Subscribe() Subscriber { return b.pub }
