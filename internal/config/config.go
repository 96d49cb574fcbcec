package config

import (
	"errors"
	"fmt"
	"net/netip"
	"os"
	"strings"
	"time"

	"github.com/danmuck/edgelink/internal/link"
	"github.com/danmuck/edgelink/internal/netstack"
	"github.com/danmuck/edgelink/internal/session"
)

const (
	EnvSSID       = "EDGELINK_SSID"
	EnvPassphrase = "EDGELINK_PASSPHRASE"
)

var ErrInvalidConfig = errors.New("config: invalid")

// Config is the full process configuration. It is read once at startup.
type Config struct {
	Link    LinkConfig
	Stack   StackConfig
	Session SessionConfig
	Status  StatusConfig
	Log     LogConfig
}

type LinkConfig struct {
	SSID       string
	Passphrase string
	Interface  string
	// Supplicant is the wpa_cli path used to hand over credentials. Empty
	// leaves authentication to the host.
	Supplicant       string
	CoolDown         time.Duration
	AssociateTimeout time.Duration
}

type StackConfig struct {
	MaxSockets int
	RXBuffer   int
	TXBuffer   int
}

type SessionConfig struct {
	Remote      string
	Request     string
	Pace        time.Duration
	CoolDown    time.Duration
	ReadyPoll   time.Duration
	IdleTimeout time.Duration
	ReadChunk   int
	MaxAttempts int
}

type StatusConfig struct {
	Listen      string
	CorsOrigins []string
	Token       string
}

type LogConfig struct {
	Level   string
	File    string
	NoColor bool
}

func Default() Config {
	sess := session.DefaultConfig()
	return Config{
		Link: LinkConfig{
			Interface:        "wlan0",
			CoolDown:         link.DefaultCoolDown,
			AssociateTimeout: 15 * time.Second,
		},
		Stack: StackConfig{
			MaxSockets: netstack.DefaultMaxSockets,
			RXBuffer:   session.DefaultBufferSize,
			TXBuffer:   session.DefaultBufferSize,
		},
		Session: SessionConfig{
			Remote:      sess.Remote.String(),
			Request:     string(sess.Request),
			Pace:        sess.Pace,
			CoolDown:    sess.CoolDown,
			ReadyPoll:   sess.ReadyPoll,
			IdleTimeout: sess.IdleTimeout,
			ReadChunk:   session.DefaultReadChunk,
		},
		Status: StatusConfig{CorsOrigins: []string{}},
		Log:    LogConfig{Level: "info"},
	}
}

// ApplyEnv overrides credentials from the environment.
func ApplyEnv(cfg *Config) {
	if v, ok := os.LookupEnv(EnvSSID); ok {
		cfg.Link.SSID = v
	}
	if v, ok := os.LookupEnv(EnvPassphrase); ok {
		cfg.Link.Passphrase = v
	}
}

func (c Config) Validate() error {
	if _, err := c.LinkConfig(); err != nil {
		return err
	}
	if c.Link.CoolDown <= 0 {
		return fmt.Errorf("%w: link.cooldown must be positive", ErrInvalidConfig)
	}
	if c.Stack.MaxSockets <= 0 {
		return fmt.Errorf("%w: stack.max_sockets must be positive", ErrInvalidConfig)
	}
	if c.Stack.RXBuffer <= 0 || c.Stack.TXBuffer <= 0 || c.Session.ReadChunk <= 0 {
		return fmt.Errorf("%w: buffer sizes must be positive", ErrInvalidConfig)
	}
	sess, err := c.SessionConfig()
	if err != nil {
		return err
	}
	if err := sess.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// LinkConfig builds the validated station credentials.
func (c Config) LinkConfig() (link.Config, error) {
	cfg, err := link.NewConfig(c.Link.SSID, c.Link.Passphrase)
	if err != nil {
		return link.Config{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return cfg, nil
}

func (c Config) SessionConfig() (session.Config, error) {
	remote, err := netip.ParseAddrPort(strings.TrimSpace(c.Session.Remote))
	if err != nil {
		return session.Config{}, fmt.Errorf("%w: session.remote: %w", ErrInvalidConfig, err)
	}
	return session.Config{
		Remote:      remote,
		Request:     []byte(c.Session.Request),
		Pace:        c.Session.Pace,
		CoolDown:    c.Session.CoolDown,
		ReadyPoll:   c.Session.ReadyPoll,
		IdleTimeout: c.Session.IdleTimeout,
		MaxAttempts: c.Session.MaxAttempts,
	}, nil
}

func (c Config) Buffers() (*session.Buffers, error) {
	return session.NewBuffers(c.Stack.RXBuffer, c.Stack.TXBuffer, c.Session.ReadChunk)
}
