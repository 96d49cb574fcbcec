package session

import (
	"errors"
	"fmt"
	"net/netip"
	"time"
)

var ErrInvalidConfig = errors.New("session: invalid config")

const (
	DefaultBufferSize = 4096
	DefaultReadChunk  = 1024
	DefaultRequest    = "GET / HTTP/1.0\r\nHost: www.mobile-j.de\r\n\r\n"
)

var DefaultRemote = netip.MustParseAddrPort("142.250.185.115:80")

// Config defines the exchange target and loop pacing.
type Config struct {
	Remote  netip.AddrPort
	Request []byte

	// Pace precedes every attempt; CoolDown follows every attempt that connected.
	Pace     time.Duration
	CoolDown time.Duration
	// ReadyPoll is the readiness gate check interval. The engine exposes no
	// link/address notification, so the gate polls.
	ReadyPoll   time.Duration
	IdleTimeout time.Duration

	// MaxAttempts stops Run after that many attempts. Zero runs forever.
	MaxAttempts int
}

func DefaultConfig() Config {
	return Config{
		Remote:      DefaultRemote,
		Request:     []byte(DefaultRequest),
		Pace:        time.Second,
		CoolDown:    3 * time.Second,
		ReadyPoll:   500 * time.Millisecond,
		IdleTimeout: 10 * time.Second,
	}
}

// WithDefaults fills fields that have no usable zero value. Pace and CoolDown
// may legitimately be zero.
func (c Config) WithDefaults() Config {
	def := DefaultConfig()
	if !c.Remote.IsValid() {
		c.Remote = def.Remote
	}
	if len(c.Request) == 0 {
		c.Request = def.Request
	}
	if c.ReadyPoll <= 0 {
		c.ReadyPoll = def.ReadyPoll
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = def.IdleTimeout
	}
	return c
}

func (c Config) Validate() error {
	if !c.Remote.IsValid() || c.Remote.Port() == 0 {
		return fmt.Errorf("%w: remote %q", ErrInvalidConfig, c.Remote)
	}
	if len(c.Request) == 0 {
		return fmt.Errorf("%w: empty request", ErrInvalidConfig)
	}
	if c.Pace < 0 || c.CoolDown < 0 {
		return fmt.Errorf("%w: negative pacing", ErrInvalidConfig)
	}
	if c.ReadyPoll <= 0 {
		return fmt.Errorf("%w: ready poll must be positive", ErrInvalidConfig)
	}
	if c.MaxAttempts < 0 {
		return fmt.Errorf("%w: negative max attempts", ErrInvalidConfig)
	}
	return nil
}
