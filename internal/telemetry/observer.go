package telemetry

import (
	"context"
	"time"
)

// Event describes one completed operation.
type Event struct {
	Op       string
	Rows     int
	Duration time.Duration
	// NoResult marks an operation that ran but had too little data to answer.
	NoResult bool
	Err      error
}

// Observer receives operation events. Implementations must be safe for
// concurrent use.
type Observer interface {
	Observe(ctx context.Context, ev Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, ev Event)

func (f ObserverFunc) Observe(ctx context.Context, ev Event) { f(ctx, ev) }

// Nop discards every event.
var Nop Observer = ObserverFunc(func(context.Context, Event) {})

type multi []Observer

func (m multi) Observe(ctx context.Context, ev Event) {
	for _, o := range m {
		o.Observe(ctx, ev)
	}
}

// Multi fans an event out to every non-nil observer.
func Multi(obs ...Observer) Observer {
	var out multi
	for _, o := range obs {
		if o != nil {
			out = append(out, o)
		}
	}
	if len(out) == 0 {
		return Nop
	}
	if len(out) == 1 {
		return out[0]
	}
	return out
}

// Track starts timing op over rows input rows. Call the returned func once
// with the outcome to emit the event.
func Track(ctx context.Context, obs Observer, op string, rows int) func(ok bool, err error) {
	if obs == nil {
		obs = Nop
	}
	start := time.Now()
	return func(ok bool, err error) {
		obs.Observe(ctx, Event{
			Op:       op,
			Rows:     rows,
			Duration: time.Since(start),
			NoResult: !ok && err == nil,
			Err:      err,
		})
	}
}
