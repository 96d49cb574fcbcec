package sim

import (
	"context"
	"net/netip"
	"sync"
	"time"

	"github.com/danmuck/edgelink/internal/hostnet"
	"github.com/danmuck/edgelink/internal/link"
	"github.com/danmuck/edgelink/internal/netstack"
)

var (
	DefaultAddress = netip.MustParsePrefix("192.168.4.2/24")
	DefaultGateway = netip.MustParseAddr("192.168.4.1")
)

// SocketFactory creates the sockets handed out by the engine.
type SocketFactory func(rx, tx []byte) (netstack.Socket, error)

type EngineOptions struct {
	// DHCPDelay is the time between link up and address assignment.
	DHCPDelay time.Duration
	Address   netip.Prefix
	Gateway   netip.Addr
	DNS       []netip.Addr
	// Sockets defaults to kernel TCP sockets.
	Sockets SocketFactory
}

// Engine follows a Radio: the link is up while the radio is associated and an
// address is leased DHCPDelay after each association.
type Engine struct {
	radio *Radio
	opts  EngineOptions

	mu      sync.Mutex
	linkUp  bool
	upSince time.Time
	now     func() time.Time
	sockets int
}

var _ netstack.Engine = (*Engine)(nil)

func NewEngine(radio *Radio, opts EngineOptions) *Engine {
	if !opts.Address.IsValid() {
		opts.Address = DefaultAddress
	}
	if !opts.Gateway.IsValid() {
		opts.Gateway = DefaultGateway
	}
	if opts.Sockets == nil {
		opts.Sockets = func(rx, tx []byte) (netstack.Socket, error) {
			return hostnet.NewTCPSocket(rx, tx), nil
		}
	}
	return &Engine{radio: radio, opts: opts, now: time.Now}
}

// Run tracks radio state changes until ctx is done.
func (e *Engine) Run(ctx context.Context) error {
	for {
		changed := e.radio.Changed()
		e.sync()
		select {
		case <-ctx.Done():
			return nil
		case <-changed:
		}
	}
}

func (e *Engine) IsLinkUp() bool {
	e.sync()
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.linkUp
}

func (e *Engine) IPv4Config() (netstack.IPv4Config, bool) {
	e.sync()
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.linkUp || e.now().Sub(e.upSince) < e.opts.DHCPDelay {
		return netstack.IPv4Config{}, false
	}
	return netstack.IPv4Config{
		Address: e.opts.Address,
		Gateway: e.opts.Gateway,
		DNS:     append([]netip.Addr(nil), e.opts.DNS...),
	}, true
}

func (e *Engine) NewSocket(rx, tx []byte) (netstack.Socket, error) {
	sock, err := e.opts.Sockets(rx, tx)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	e.sockets++
	e.mu.Unlock()
	return sock, nil
}

// SocketsCreated counts sockets handed out so far.
func (e *Engine) SocketsCreated() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sockets
}

func (e *Engine) sync() {
	up := e.radio.State() == link.StateConnected
	e.mu.Lock()
	defer e.mu.Unlock()
	switch {
	case up && !e.linkUp:
		e.linkUp = true
		e.upSince = e.now()
	case !up && e.linkUp:
		e.linkUp = false
	}
}
