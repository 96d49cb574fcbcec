package sim

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/danmuck/edgelink/internal/link"
)

var (
	ErrAssociateRejected = errors.New("sim: association rejected")
	ErrNotConfigured     = errors.New("sim: radio not configured")
)

type RadioOptions struct {
	// AssociateDelay is how long Connect takes to succeed.
	AssociateDelay time.Duration
	// RejectFirst fails that many Connect calls before accepting.
	RejectFirst int
	// StartErr, when set, is returned by Start.
	StartErr error
}

// Radio is a simulated station-mode controller.
type Radio struct {
	opts RadioOptions

	mu       sync.Mutex
	cfg      link.Config
	conf     bool
	started  bool
	state    link.State
	rejected int
	connects int
	changed  chan struct{}
}

var _ link.Controller = (*Radio)(nil)

func NewRadio(opts RadioOptions) *Radio {
	return &Radio{opts: opts, changed: make(chan struct{})}
}

func (r *Radio) Capabilities() link.Capabilities {
	return link.Capabilities(link.ModeStation | link.ModeAccessPoint)
}

func (r *Radio) State() link.State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *Radio) IsStarted() (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.started, nil
}

func (r *Radio) Configure(cfg link.Config) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cfg = cfg
	r.conf = true
	return nil
}

func (r *Radio) Start(ctx context.Context) error {
	if r.opts.StartErr != nil {
		return r.opts.StartErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.conf {
		return ErrNotConfigured
	}
	r.started = true
	r.notifyLocked()
	return nil
}

func (r *Radio) Connect(ctx context.Context) error {
	r.mu.Lock()
	if !r.started {
		r.mu.Unlock()
		return ErrNotConfigured
	}
	r.connects++
	r.state = link.StateConnecting
	r.notifyLocked()
	r.mu.Unlock()

	if r.opts.AssociateDelay > 0 {
		timer := time.NewTimer(r.opts.AssociateDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			r.setState(link.StateDisconnected)
			return ctx.Err()
		case <-timer.C:
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.rejected < r.opts.RejectFirst {
		r.rejected++
		r.state = link.StateDisconnected
		r.notifyLocked()
		return ErrAssociateRejected
	}
	r.state = link.StateConnected
	r.notifyLocked()
	return nil
}

func (r *Radio) WaitForEvent(ctx context.Context, ev link.ControllerEvent) error {
	for {
		r.mu.Lock()
		ok := r.matchesLocked(ev)
		changed := r.changed
		r.mu.Unlock()
		if ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-changed:
		}
	}
}

// Drop simulates the access point going away.
func (r *Radio) Drop() {
	r.setState(link.StateDisconnected)
}

func (r *Radio) Connects() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.connects
}

func (r *Radio) SSID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cfg.SSID()
}

// Changed returns a channel closed on the next state change.
func (r *Radio) Changed() <-chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.changed
}

func (r *Radio) setState(s link.State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = s
	r.notifyLocked()
}

func (r *Radio) notifyLocked() {
	close(r.changed)
	r.changed = make(chan struct{})
}

func (r *Radio) matchesLocked(ev link.ControllerEvent) bool {
	switch ev {
	case link.EventStaStarted:
		return r.started
	case link.EventStaStopped:
		return !r.started
	case link.EventStaConnected:
		return r.state == link.StateConnected
	case link.EventStaDisconnected:
		return r.state != link.StateConnected
	default:
		return false
	}
}
