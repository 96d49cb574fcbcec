// Package fakestack provides a scripted packet engine and sockets for tests.
package fakestack

import (
	"context"
	"errors"
	"net/netip"
	"sync"
	"time"

	"github.com/danmuck/edgelink/internal/netstack"
)

var ErrStopped = errors.New("fakestack: engine stopped")

// Op is one recorded engine or socket operation.
type Op struct {
	Name   string
	Tick   int
	At     time.Time
	Socket int
	Bytes  []byte
	Dur    time.Duration
}

// Read scripts one Socket.Read result. An empty Data with nil Err is EOF.
// Data is delivered alongside Err when both are set.
type Read struct {
	Data string
	Err  error
}

// Socket is a scripted netstack.Socket. Zero value connects, writes and then
// reads EOF.
type Socket struct {
	ConnectErr error
	WriteErr   error
	Reads      []Read

	id     int
	engine *Engine

	mu      sync.Mutex
	timeout time.Duration
	rx, tx  []byte
	closes  int
}

func (s *Socket) SetTimeout(d time.Duration) {
	s.mu.Lock()
	s.timeout = d
	s.mu.Unlock()
}

func (s *Socket) Timeout() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timeout
}

func (s *Socket) Connect(ctx context.Context, remote netip.AddrPort) error {
	s.engine.record(Op{Name: "connect", Socket: s.id})
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.ConnectErr
}

func (s *Socket) WriteAll(ctx context.Context, p []byte) error {
	s.engine.record(Op{Name: "write", Socket: s.id, Bytes: append([]byte(nil), p...)})
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.WriteErr
}

func (s *Socket) Read(ctx context.Context, p []byte) (int, error) {
	s.mu.Lock()
	var next Read
	if len(s.Reads) > 0 {
		next = s.Reads[0]
		s.Reads = s.Reads[1:]
	}
	s.mu.Unlock()

	s.engine.record(Op{Name: "read", Socket: s.id, Bytes: []byte(next.Data)})
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return copy(p, next.Data), next.Err
}

func (s *Socket) Close() error {
	s.mu.Lock()
	s.closes++
	s.mu.Unlock()
	s.engine.record(Op{Name: "close", Socket: s.id})
	return nil
}

func (s *Socket) Closes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closes
}

// Buffers returns the rx/tx regions the socket was bound to.
func (s *Socket) Buffers() (rx, tx []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rx, s.tx
}

// Engine is a scripted netstack.Engine driven by a logical tick counter.
type Engine struct {
	// LinkUpAt and AddressAt are the ticks at which readiness flips true.
	LinkUpAt  int
	AddressAt int
	Address   netip.Prefix
	Gateway   netip.Addr

	mu      sync.Mutex
	tick    int
	script  []*Socket
	created []*Socket
	ops     []Op
	stop    chan error
}

func NewEngine() *Engine {
	return &Engine{
		Address: netip.MustParsePrefix("192.168.4.2/24"),
		Gateway: netip.MustParseAddr("192.168.4.1"),
		stop:    make(chan error, 1),
	}
}

func (e *Engine) Run(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-e.stop:
		return err
	}
}

// Stop makes Run return err, as if the device went away.
func (e *Engine) Stop(err error) {
	if err == nil {
		err = ErrStopped
	}
	select {
	case e.stop <- err:
	default:
	}
}

func (e *Engine) IsLinkUp() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ops = append(e.ops, Op{Name: "link_up?", Tick: e.tick, At: time.Now()})
	return e.tick >= e.LinkUpAt
}

func (e *Engine) IPv4Config() (netstack.IPv4Config, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ops = append(e.ops, Op{Name: "ipv4?", Tick: e.tick, At: time.Now()})
	if e.tick < e.AddressAt {
		return netstack.IPv4Config{}, false
	}
	return netstack.IPv4Config{Address: e.Address, Gateway: e.Gateway}, true
}

func (e *Engine) NewSocket(rx, tx []byte) (netstack.Socket, error) {
	e.mu.Lock()
	var s *Socket
	if len(e.script) > 0 {
		s = e.script[0]
		e.script = e.script[1:]
	} else {
		s = &Socket{}
	}
	s.id = len(e.created) + 1
	s.engine = e
	s.rx, s.tx = rx, tx
	e.created = append(e.created, s)
	e.mu.Unlock()

	e.record(Op{Name: "socket", Socket: s.id})
	return s, nil
}

// Script queues sockets handed out by NewSocket in order.
func (e *Engine) Script(socks ...*Socket) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.script = append(e.script, socks...)
}

// Advance moves the logical clock forward by one tick.
func (e *Engine) Advance() {
	e.mu.Lock()
	e.tick++
	e.mu.Unlock()
}

func (e *Engine) Tick() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tick
}

// Sleep is a session sleep hook: it records the pause and advances the tick.
func (e *Engine) Sleep(ctx context.Context, d time.Duration) error {
	e.record(Op{Name: "sleep", Dur: d})
	e.Advance()
	return ctx.Err()
}

func (e *Engine) Created() []*Socket {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*Socket, len(e.created))
	copy(out, e.created)
	return out
}

func (e *Engine) Ops() []Op {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Op, len(e.ops))
	copy(out, e.ops)
	return out
}

// OpsNamed filters Ops by name.
func (e *Engine) OpsNamed(names ...string) []Op {
	want := make(map[string]struct{}, len(names))
	for _, n := range names {
		want[n] = struct{}{}
	}
	out := make([]Op, 0)
	for _, op := range e.Ops() {
		if _, ok := want[op.Name]; ok {
			out = append(out, op)
		}
	}
	return out
}

func (e *Engine) record(op Op) {
	e.mu.Lock()
	defer e.mu.Unlock()
	op.Tick = e.tick
	op.At = time.Now()
	e.ops = append(e.ops, op)
}

var (
	_ netstack.Engine = (*Engine)(nil)
	_ netstack.Socket = (*Socket)(nil)
)
