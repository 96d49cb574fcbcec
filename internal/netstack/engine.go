package netstack

import (
	"context"
	"net/netip"
	"time"
)

// IPv4Config is the address configuration negotiated by the engine (DHCP or static).
type IPv4Config struct {
	Address netip.Prefix
	Gateway netip.Addr
	DNS     []netip.Addr
}

// Engine is the packet engine bound to one link device.
type Engine interface {
	// Run services queues and protocol timers. It returns only when ctx is
	// cancelled or the device is gone.
	Run(ctx context.Context) error
	IsLinkUp() bool
	IPv4Config() (IPv4Config, bool)
	// NewSocket binds a TCP socket to caller-owned rx/tx buffers.
	NewSocket(rx, tx []byte) (Socket, error)
}

// Socket is a TCP socket scoped to one session attempt.
type Socket interface {
	// SetTimeout bounds how long any single operation may stay idle. Zero disables it.
	SetTimeout(d time.Duration)
	Connect(ctx context.Context, remote netip.AddrPort) error
	WriteAll(ctx context.Context, p []byte) error
	// Read returns 0, nil once the peer has closed its side.
	Read(ctx context.Context, p []byte) (int, error)
	Close() error
}
