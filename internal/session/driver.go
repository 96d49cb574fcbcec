package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/danmuck/edgelink/internal/events"
	"github.com/danmuck/edgelink/internal/netstack"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	ErrStackRequired   = errors.New("session: stack required")
	ErrBuffersRequired = errors.New("session: buffers required")
)

// Outcome is how one attempt ended.
type Outcome int

const (
	OutcomeEOF Outcome = iota
	OutcomeSocketError
	OutcomeConnectError
	OutcomeWriteError
	OutcomeReadError
	OutcomeCancelled
)

func (o Outcome) String() string {
	switch o {
	case OutcomeEOF:
		return "eof"
	case OutcomeSocketError:
		return "socket_error"
	case OutcomeConnectError:
		return "connect_error"
	case OutcomeWriteError:
		return "write_error"
	case OutcomeReadError:
		return "read_error"
	case OutcomeCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Connected reports whether the attempt got past connect.
func (o Outcome) Connected() bool {
	switch o {
	case OutcomeEOF, OutcomeWriteError, OutcomeReadError:
		return true
	default:
		return false
	}
}

// Option configures a Driver.
type Option func(*Driver)

func WithSink(sink events.Sink) Option {
	return func(d *Driver) {
		if sink != nil {
			d.sink = sink
		}
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(d *Driver) {
		if tracer != nil {
			d.tracer = tracer
		}
	}
}

// Driver runs exchanges against cfg.Remote over a shared Stack. One Driver
// holds at most one socket at a time.
type Driver struct {
	stack   *netstack.Stack
	cfg     Config
	bufs    *Buffers
	sink    events.Sink
	tracer  trace.Tracer
	decoder textDecoder
	sleep   func(context.Context, time.Duration) error

	attempts atomic.Uint64
}

func NewDriver(stack *netstack.Stack, cfg Config, bufs *Buffers, opts ...Option) (*Driver, error) {
	if stack == nil {
		return nil, ErrStackRequired
	}
	if bufs == nil {
		return nil, ErrBuffersRequired
	}
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	d := &Driver{
		stack:   stack,
		cfg:     cfg,
		bufs:    bufs,
		sink:    events.Discard,
		tracer:  otel.Tracer("edgelink/session"),
		decoder: newTextDecoder(len(bufs.Read)),
		sleep:   sleepContext,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Attempts returns how many attempts have started.
func (d *Driver) Attempts() uint64 {
	return d.attempts.Load()
}

// Run passes the readiness gate once, then loops over attempts until ctx is
// cancelled or MaxAttempts is reached. It returns nil in both cases.
func (d *Driver) Run(ctx context.Context) error {
	if _, err := d.WaitReady(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}

	for {
		if d.cfg.MaxAttempts > 0 && d.attempts.Load() >= uint64(d.cfg.MaxAttempts) {
			return nil
		}
		if d.sleep(ctx, d.cfg.Pace) != nil {
			return nil
		}

		outcome := d.Attempt(ctx)
		if outcome == OutcomeCancelled {
			return nil
		}
		if !outcome.Connected() {
			continue
		}
		if d.sleep(ctx, d.cfg.CoolDown) != nil {
			return nil
		}
	}
}

// WaitReady blocks until the stack reports link up and then an IPv4 address.
func (d *Driver) WaitReady(ctx context.Context) (netstack.IPv4Config, error) {
	announced := false
	for !d.stack.IsLinkUp() {
		if !announced {
			d.emit(events.Event{Kind: events.WaitingForLink})
			announced = true
		}
		if err := d.sleep(ctx, d.cfg.ReadyPoll); err != nil {
			return netstack.IPv4Config{}, err
		}
	}

	announced = false
	for {
		if cfg, ok := d.stack.IPv4Config(); ok {
			d.emit(events.Event{Kind: events.AddressAcquired, Addr: cfg.Address.String()})
			return cfg, nil
		}
		if !announced {
			d.emit(events.Event{Kind: events.WaitingForAddress})
			announced = true
		}
		if err := d.sleep(ctx, d.cfg.ReadyPoll); err != nil {
			return netstack.IPv4Config{}, err
		}
	}
}

// Attempt performs one open/connect/exchange/close cycle. The socket is closed
// on every path before Attempt returns.
func (d *Driver) Attempt(ctx context.Context) Outcome {
	n := d.attempts.Add(1)
	id := uuid.NewString()
	ctx, span := d.tracer.Start(ctx, "session.attempt", trace.WithAttributes(
		attribute.Int64("session.attempt", int64(n)),
		attribute.String("session.id", id),
		attribute.String("session.remote", d.cfg.Remote.String()),
	))
	defer span.End()

	outcome, err := d.attempt(ctx, events.Event{Attempt: n, SessionID: id, Addr: d.cfg.Remote.String()})
	span.SetAttributes(attribute.String("session.outcome", outcome.String()))
	if err != nil && outcome != OutcomeCancelled {
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome.String())
	}
	return outcome
}

func (d *Driver) attempt(ctx context.Context, base events.Event) (Outcome, error) {
	sock, err := d.stack.Open(d.bufs.RX, d.bufs.TX)
	if err != nil {
		if ctx.Err() != nil {
			return OutcomeCancelled, ctx.Err()
		}
		d.emitFrom(base, events.SocketError, err)
		return OutcomeSocketError, err
	}
	defer func() {
		_ = sock.Close()
		d.emitFrom(base, events.SessionClosed, nil)
	}()

	sock.SetTimeout(d.cfg.IdleTimeout)
	d.emitFrom(base, events.SessionConnecting, nil)
	if err := sock.Connect(ctx, d.cfg.Remote); err != nil {
		if ctx.Err() != nil {
			return OutcomeCancelled, ctx.Err()
		}
		d.emitFrom(base, events.ConnectError, err)
		return OutcomeConnectError, err
	}
	d.emitFrom(base, events.SessionConnected, nil)
	return d.exchange(ctx, sock, base)
}

func (d *Driver) exchange(ctx context.Context, sock netstack.Socket, base events.Event) (Outcome, error) {
	d.decoder.Reset()
	if err := sock.WriteAll(ctx, d.cfg.Request); err != nil {
		if ctx.Err() != nil {
			return OutcomeCancelled, ctx.Err()
		}
		d.emitFrom(base, events.WriteError, err)
		return OutcomeWriteError, err
	}

	for {
		n, err := sock.Read(ctx, d.bufs.Read)
		eof := errors.Is(err, io.EOF)
		if err != nil && !eof {
			if ctx.Err() != nil {
				return OutcomeCancelled, ctx.Err()
			}
			if n > 0 {
				d.surface(base, d.bufs.Read[:n])
			}
			d.emitFrom(base, events.ReadError, err)
			return OutcomeReadError, err
		}
		if n > 0 {
			d.surface(base, d.bufs.Read[:n])
		}
		if n == 0 || eof {
			if err := d.decoder.Flush(); err != nil {
				d.emitFrom(base, events.DecodeError, err)
			}
			d.emitFrom(base, events.ReadEOF, nil)
			return OutcomeEOF, nil
		}
	}
}

func (d *Driver) surface(base events.Event, chunk []byte) {
	text, err := d.decoder.Decode(chunk)
	if err != nil {
		ev := base
		ev.Kind = events.DecodeError
		ev.Bytes = len(chunk)
		ev.Err = fmt.Errorf("%w: chunk of %d bytes skipped", err, len(chunk))
		d.emit(ev)
		return
	}
	ev := base
	ev.Kind = events.Response
	ev.Bytes = len(chunk)
	ev.Text = text
	d.emit(ev)
}

func (d *Driver) emitFrom(base events.Event, kind events.Kind, err error) {
	ev := base
	ev.Kind = kind
	ev.Err = err
	d.emit(ev)
}

func (d *Driver) emit(ev events.Event) {
	d.sink.Emit(events.Stamp(ev))
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
