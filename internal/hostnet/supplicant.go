package hostnet

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/danmuck/edgelink/internal/link"
	"github.com/danmuck/edgelink/internal/tools"
)

const DefaultSupplicantCLI = "wpa_cli"

var (
	ErrSupplicantRejected = errors.New("hostnet: supplicant rejected command")
	ErrNoNetwork          = errors.New("hostnet: no supplicant network configured")
)

// Supplicant hands station credentials to wpa_supplicant through its CLI.
type Supplicant struct {
	iface  string
	cli    string
	runner tools.CommandRunner

	mu        sync.Mutex
	networkID int
	hasID     bool
}

func NewSupplicant(iface, cli string, runner tools.CommandRunner) *Supplicant {
	if strings.TrimSpace(cli) == "" {
		cli = DefaultSupplicantCLI
	}
	if runner == nil {
		runner = tools.ExecRunner{}
	}
	return &Supplicant{iface: iface, cli: cli, runner: runner}
}

// Configure replaces any network added earlier with one for cfg. The network
// is left disabled until Select.
func (s *Supplicant) Configure(ctx context.Context, cfg link.Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.hasID {
		if _, err := s.expectOK(ctx, "remove_network", strconv.Itoa(s.networkID)); err != nil {
			return err
		}
		s.hasID = false
	}

	out, err := s.wpa(ctx, "add_network")
	if err != nil {
		return err
	}
	id, err := strconv.Atoi(out)
	if err != nil {
		return fmt.Errorf("%w: add_network returned %q", ErrSupplicantRejected, out)
	}
	s.networkID, s.hasID = id, true

	netID := strconv.Itoa(id)
	if _, err := s.expectOK(ctx, "set_network", netID, "ssid", hex.EncodeToString([]byte(cfg.SSID()))); err != nil {
		return err
	}
	if cfg.Open() {
		_, err = s.expectOK(ctx, "set_network", netID, "key_mgmt", "NONE")
	} else {
		_, err = s.expectOK(ctx, "set_network", netID, "psk", pskValue(cfg.Passphrase()))
	}
	return err
}

// Select enables the configured network and disables all others.
func (s *Supplicant) Select(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.hasID {
		return ErrNoNetwork
	}
	_, err := s.expectOK(ctx, "select_network", strconv.Itoa(s.networkID))
	return err
}

func (s *Supplicant) Disconnect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.expectOK(ctx, "disconnect")
	return err
}

func (s *Supplicant) expectOK(ctx context.Context, args ...string) (string, error) {
	out, err := s.wpa(ctx, args...)
	if err != nil {
		return out, err
	}
	if out != "OK" {
		return out, fmt.Errorf("%w: %s: %q", ErrSupplicantRejected, args[0], out)
	}
	return out, nil
}

func (s *Supplicant) wpa(ctx context.Context, args ...string) (string, error) {
	full := append([]string{"-i", s.iface}, args...)
	res, err := s.runner.Run(ctx, s.cli, full...)
	out := strings.TrimSpace(string(res.Stdout))
	if err != nil {
		msg := strings.TrimSpace(string(res.Stderr))
		if msg == "" {
			msg = out
		}
		return out, fmt.Errorf("%s %s: %w (exit=%d %s)", s.cli, args[0], err, res.ExitCode, msg)
	}
	if out == "FAIL" {
		return out, fmt.Errorf("%w: %s", ErrSupplicantRejected, args[0])
	}
	return out, nil
}

// pskValue quotes an ASCII passphrase; a 64-digit hex string is a raw key.
func pskValue(passphrase string) string {
	if len(passphrase) == 64 {
		if _, err := hex.DecodeString(passphrase); err == nil {
			return passphrase
		}
	}
	return `"` + passphrase + `"`
}
