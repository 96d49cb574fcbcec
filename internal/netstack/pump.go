package netstack

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/danmuck/edgelink/internal/events"
)

var (
	ErrStackRequired = errors.New("netstack: stack required")
	ErrPumpClaimed   = errors.New("netstack: stack already has a pump")
	ErrPumpRunning   = errors.New("netstack: pump already running")
	ErrEngineStopped = errors.New("netstack: engine stopped")
)

// Pump is the sole driver of a Stack's Engine.
type Pump struct {
	stack   *Stack
	sink    events.Sink
	running atomic.Bool
}

// NewPump claims stack. A second call for the same stack fails with ErrPumpClaimed.
func NewPump(stack *Stack, sink events.Sink) (*Pump, error) {
	if stack == nil {
		return nil, ErrStackRequired
	}
	if !stack.pumpClaimed.CompareAndSwap(false, true) {
		return nil, ErrPumpClaimed
	}
	if sink == nil {
		sink = events.Discard
	}
	return &Pump{stack: stack, sink: sink}, nil
}

// Run services the engine until ctx is cancelled (returns nil). An engine that
// returns on its own means the device is gone; that is reported as
// ErrEngineStopped and is not retried here.
func (p *Pump) Run(ctx context.Context) error {
	if !p.running.CompareAndSwap(false, true) {
		return ErrPumpRunning
	}
	defer p.running.Store(false)

	p.sink.Emit(events.Stamp(events.Event{Kind: events.PumpStarted}))
	err := p.stack.engine.Run(ctx)
	if ctx.Err() != nil {
		p.sink.Emit(events.Stamp(events.Event{Kind: events.PumpStopped, Detail: "shutdown"}))
		return nil
	}
	p.sink.Emit(events.Stamp(events.Event{Kind: events.PumpStopped, Detail: "engine_exit", Err: err}))
	if err == nil {
		return ErrEngineStopped
	}
	return fmt.Errorf("%w: %w", ErrEngineStopped, err)
}
