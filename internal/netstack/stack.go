package netstack

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

const DefaultMaxSockets = 3

var (
	ErrEngineRequired = errors.New("netstack: engine required")
	ErrSocketLimit    = errors.New("netstack: socket limit reached")
	ErrBufferRequired = errors.New("netstack: rx and tx buffers required")
)

// Options tunes a Stack. Zero values take defaults.
type Options struct {
	MaxSockets int
}

// Stats is a snapshot of socket accounting.
type Stats struct {
	Open     int
	Opened   uint64
	Released uint64
}

// Stack is the shared handle to one Engine. Build it once and pass the pointer
// to the Pump and to every session.
type Stack struct {
	engine     Engine
	maxSockets int

	pumpClaimed atomic.Bool

	mu       sync.Mutex
	open     int
	opened   uint64
	released uint64
}

func New(engine Engine, opts Options) (*Stack, error) {
	if engine == nil {
		return nil, ErrEngineRequired
	}
	if opts.MaxSockets <= 0 {
		opts.MaxSockets = DefaultMaxSockets
	}
	return &Stack{engine: engine, maxSockets: opts.MaxSockets}, nil
}

func (s *Stack) MaxSockets() int {
	return s.maxSockets
}

func (s *Stack) IsLinkUp() bool {
	return s.engine.IsLinkUp()
}

func (s *Stack) IPv4Config() (IPv4Config, bool) {
	return s.engine.IPv4Config()
}

// Open creates a socket over the caller's buffers. The returned socket releases
// its slot on the first Close.
func (s *Stack) Open(rx, tx []byte) (Socket, error) {
	if len(rx) == 0 || len(tx) == 0 {
		return nil, ErrBufferRequired
	}

	s.mu.Lock()
	if s.open >= s.maxSockets {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: max=%d", ErrSocketLimit, s.maxSockets)
	}
	s.open++
	s.mu.Unlock()

	sock, err := s.engine.NewSocket(rx, tx)
	if err != nil {
		s.mu.Lock()
		s.open--
		s.mu.Unlock()
		return nil, err
	}

	s.mu.Lock()
	s.opened++
	s.mu.Unlock()
	return &trackedSocket{Socket: sock, stack: s}, nil
}

func (s *Stack) OpenSockets() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open
}

func (s *Stack) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{Open: s.open, Opened: s.opened, Released: s.released}
}

func (s *Stack) release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.open--
	s.released++
}

type trackedSocket struct {
	Socket
	stack *Stack
	once  sync.Once
	err   error
}

func (t *trackedSocket) Close() error {
	t.once.Do(func() {
		t.err = t.Socket.Close()
		t.stack.release()
	})
	return t.err
}

// Unwrap exposes the engine socket.
func (t *trackedSocket) Unwrap() Socket {
	return t.Socket
}

var _ Socket = (*trackedSocket)(nil)
