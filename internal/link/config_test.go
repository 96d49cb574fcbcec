package link

import (
	"errors"
	"strings"
	"testing"

	"github.com/danmuck/edgelink/internal/testutil/testlog"
)

func TestNewConfigAcceptsBoundedCredentials(t *testing.T) {
	testlog.Start(t)
	cfg, err := NewConfig(strings.Repeat("s", MaxSSIDLen), strings.Repeat("p", MaxPassphraseLen))
	if err != nil {
		t.Fatalf("new config: %v", err)
	}
	if len(cfg.SSID()) != MaxSSIDLen || len(cfg.Passphrase()) != MaxPassphraseLen {
		t.Fatalf("credentials not preserved: %q", cfg.SSID())
	}
	if cfg.Open() {
		t.Fatalf("expected secured network")
	}
}

func TestNewConfigRejectsOverLength(t *testing.T) {
	testlog.Start(t)
	if _, err := NewConfig(strings.Repeat("s", MaxSSIDLen+1), ""); !errors.Is(err, ErrSSIDTooLong) {
		t.Fatalf("expected ErrSSIDTooLong, got %v", err)
	}
	if _, err := NewConfig("lab", strings.Repeat("p", MaxPassphraseLen+1)); !errors.Is(err, ErrPassphraseTooLong) {
		t.Fatalf("expected ErrPassphraseTooLong, got %v", err)
	}
	if _, err := NewConfig("", "secret"); !errors.Is(err, ErrSSIDRequired) {
		t.Fatalf("expected ErrSSIDRequired, got %v", err)
	}
}

func TestConfigStringHidesPassphrase(t *testing.T) {
	testlog.Start(t)
	cfg, err := NewConfig("lab", "hunter22")
	if err != nil {
		t.Fatalf("new config: %v", err)
	}
	if strings.Contains(cfg.String(), "hunter22") {
		t.Fatalf("passphrase leaked: %s", cfg)
	}
}

func TestCapabilitiesString(t *testing.T) {
	testlog.Start(t)
	c := Capabilities(ModeStation | ModeAccessPoint)
	if c.String() != "station|access_point" {
		t.Fatalf("unexpected capabilities: %s", c)
	}
	if Capabilities(0).String() != "none" {
		t.Fatalf("unexpected empty capabilities: %s", Capabilities(0))
	}
}
