package link

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/danmuck/edgelink/internal/events"
)

var (
	ErrControllerRequired = errors.New("link: controller required")
	ErrControllerClaimed  = errors.New("link: controller already managed")
	ErrControllerIdentity = errors.New("link: controller must be comparable")
	ErrConfigureFailed    = errors.New("link: configure failed")
	ErrStartFailed        = errors.New("link: start failed")
)

// DefaultCoolDown is the fixed pause after a drop or a failed association.
const DefaultCoolDown = 5 * time.Second

var (
	claimMu sync.Mutex
	claimed = make(map[Controller]struct{})
)

// ManagerOptions tunes a Manager. Zero values take defaults.
type ManagerOptions struct {
	CoolDown time.Duration
	Sink     events.Sink
}

// Manager keeps one Controller associated for the life of Run.
type Manager struct {
	ctrl     Controller
	cfg      Config
	coolDown time.Duration
	sink     events.Sink
	sleep    func(context.Context, time.Duration) error

	closeOnce sync.Once
}

// NewManager claims ctrl. A controller can back at most one Manager until Close.
// Controllers are keyed by value, so a non-comparable one is rejected.
func NewManager(ctrl Controller, cfg Config, opts ManagerOptions) (*Manager, error) {
	if ctrl == nil {
		return nil, ErrControllerRequired
	}
	if cfg.SSID() == "" {
		return nil, ErrSSIDRequired
	}

	if !reflect.ValueOf(ctrl).Comparable() {
		return nil, fmt.Errorf("%w: %T", ErrControllerIdentity, ctrl)
	}

	claimMu.Lock()
	defer claimMu.Unlock()
	if _, ok := claimed[ctrl]; ok {
		return nil, ErrControllerClaimed
	}
	claimed[ctrl] = struct{}{}

	if opts.CoolDown <= 0 {
		opts.CoolDown = DefaultCoolDown
	}
	if opts.Sink == nil {
		opts.Sink = events.Discard
	}
	return &Manager{
		ctrl:     ctrl,
		cfg:      cfg,
		coolDown: opts.CoolDown,
		sink:     opts.Sink,
		sleep:    sleepContext,
	}, nil
}

// Close releases the controller claim.
func (m *Manager) Close() {
	m.closeOnce.Do(func() {
		claimMu.Lock()
		defer claimMu.Unlock()
		delete(claimed, m.ctrl)
	})
}

// Run drives association until ctx is cancelled, then returns nil. Configure
// and start failures are returned; association failures are retried forever
// after a fixed cool-down.
func (m *Manager) Run(ctx context.Context) error {
	m.emit(events.Event{Kind: events.LinkStart, Detail: "capabilities=" + m.ctrl.Capabilities().String()})
	for {
		if ctx.Err() != nil {
			return nil
		}

		if m.ctrl.State() == StateConnected {
			if err := m.ctrl.WaitForEvent(ctx, EventStaDisconnected); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				m.emit(events.Event{Kind: events.LinkError, Detail: "wait_disconnect", Err: err})
			} else {
				m.emit(events.Event{Kind: events.LinkDisconnected, Detail: m.cfg.String()})
			}
			if m.sleep(ctx, m.coolDown) != nil {
				return nil
			}
			continue
		}

		if started, err := m.ctrl.IsStarted(); err != nil || !started {
			if err := m.start(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return err
			}
		}

		m.emit(events.Event{Kind: events.LinkConnecting, Detail: m.cfg.String()})
		if err := m.ctrl.Connect(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			m.emit(events.Event{Kind: events.LinkError, Detail: "connect", Err: err})
			if m.sleep(ctx, m.coolDown) != nil {
				return nil
			}
			continue
		}
		m.emit(events.Event{Kind: events.LinkConnected, Detail: m.cfg.String()})
	}
}

func (m *Manager) start(ctx context.Context) error {
	if err := m.ctrl.Configure(m.cfg); err != nil {
		m.emit(events.Event{Kind: events.LinkError, Detail: "configure", Err: err})
		return fmt.Errorf("%w: %v", ErrConfigureFailed, err)
	}
	if err := m.ctrl.Start(ctx); err != nil {
		m.emit(events.Event{Kind: events.LinkError, Detail: "start", Err: err})
		return fmt.Errorf("%w: %v", ErrStartFailed, err)
	}
	m.emit(events.Event{Kind: events.LinkStarted})
	return nil
}

func (m *Manager) emit(ev events.Event) {
	m.sink.Emit(events.Stamp(ev))
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
