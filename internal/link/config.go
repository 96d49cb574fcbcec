package link

import (
	"errors"
	"fmt"
)

const (
	MaxSSIDLen       = 32
	MaxPassphraseLen = 64
)

var (
	ErrSSIDRequired      = errors.New("link: ssid required")
	ErrSSIDTooLong       = errors.New("link: ssid too long")
	ErrPassphraseTooLong = errors.New("link: passphrase too long")
)

// Config holds station credentials. It is immutable once built by NewConfig.
type Config struct {
	ssid       string
	passphrase string
}

// NewConfig validates the credential lengths against the radio's fixed capacity.
func NewConfig(ssid, passphrase string) (Config, error) {
	if ssid == "" {
		return Config{}, ErrSSIDRequired
	}
	if len(ssid) > MaxSSIDLen {
		return Config{}, fmt.Errorf("%w: %d bytes (max %d)", ErrSSIDTooLong, len(ssid), MaxSSIDLen)
	}
	if len(passphrase) > MaxPassphraseLen {
		return Config{}, fmt.Errorf("%w: %d bytes (max %d)", ErrPassphraseTooLong, len(passphrase), MaxPassphraseLen)
	}
	return Config{ssid: ssid, passphrase: passphrase}, nil
}

func (c Config) SSID() string {
	return c.ssid
}

func (c Config) Passphrase() string {
	return c.passphrase
}

// Open reports whether the network has no passphrase.
func (c Config) Open() bool {
	return c.passphrase == ""
}

// String never includes the passphrase.
func (c Config) String() string {
	return fmt.Sprintf("ssid=%q open=%v", c.ssid, c.Open())
}
