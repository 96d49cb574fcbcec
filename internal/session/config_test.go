package session

import (
	"errors"
	"net/netip"
	"testing"
	"time"

	"github.com/danmuck/edgelink/internal/testutil/testlog"
)

func TestDefaultConfigMatchesFirmwareTiming(t *testing.T) {
	testlog.Start(t)
	cfg := DefaultConfig()
	if cfg.Pace != time.Second || cfg.CoolDown != 3*time.Second {
		t.Fatalf("unexpected pacing: pace=%v cooldown=%v", cfg.Pace, cfg.CoolDown)
	}
	if cfg.ReadyPoll != 500*time.Millisecond || cfg.IdleTimeout != 10*time.Second {
		t.Fatalf("unexpected gate/idle: %v %v", cfg.ReadyPoll, cfg.IdleTimeout)
	}
	if cfg.Remote != DefaultRemote || string(cfg.Request) != DefaultRequest {
		t.Fatalf("unexpected target: %v %q", cfg.Remote, cfg.Request)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestWithDefaultsKeepsZeroPacing(t *testing.T) {
	testlog.Start(t)
	cfg := Config{Remote: netip.MustParseAddrPort("10.0.0.1:8080")}.WithDefaults()
	if cfg.Pace != 0 || cfg.CoolDown != 0 {
		t.Fatalf("zero pacing should be preserved: %v %v", cfg.Pace, cfg.CoolDown)
	}
	if cfg.ReadyPoll <= 0 || cfg.IdleTimeout <= 0 || len(cfg.Request) == 0 {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
	if cfg.Remote.Port() != 8080 {
		t.Fatalf("remote overwritten: %v", cfg.Remote)
	}
}

func TestValidateRejectsBadConfig(t *testing.T) {
	testlog.Start(t)
	bad := []Config{
		{Remote: netip.AddrPort{}, Request: []byte("x"), ReadyPoll: time.Second},
		{Remote: DefaultRemote, Request: nil, ReadyPoll: time.Second},
		{Remote: DefaultRemote, Request: []byte("x"), ReadyPoll: time.Second, Pace: -1},
		{Remote: DefaultRemote, Request: []byte("x"), ReadyPoll: 0},
		{Remote: DefaultRemote, Request: []byte("x"), ReadyPoll: time.Second, MaxAttempts: -1},
	}
	for i, cfg := range bad {
		if err := cfg.Validate(); !errors.Is(err, ErrInvalidConfig) {
			t.Fatalf("case %d: expected ErrInvalidConfig, got %v", i, err)
		}
	}
}

func TestNewBuffers(t *testing.T) {
	testlog.Start(t)
	b, err := NewBuffers(4096, 4096, 1024)
	if err != nil {
		t.Fatalf("new buffers: %v", err)
	}
	if b.Footprint() != 4096+4096+1024 {
		t.Fatalf("unexpected footprint: %d", b.Footprint())
	}
	if _, err := NewBuffers(0, 1, 1); !errors.Is(err, ErrInvalidBufferSize) {
		t.Fatalf("expected ErrInvalidBufferSize, got %v", err)
	}
	if DefaultBuffers().Footprint() != b.Footprint() {
		t.Fatalf("default buffers differ from firmware sizes")
	}
}
