//go:build linux

package hostnet

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/danmuck/edgelink/internal/link"
	"github.com/rs/zerolog/log"
	"github.com/vishvananda/netlink"
	"golang.org/x/sys/unix"
)

var ErrAssociateTimeout = errors.New("hostnet: association timed out")

const supplicantTimeout = 5 * time.Second

// Controller drives a host wireless interface. It manages admin state, hands
// credentials to the supplicant when one is attached, and follows operstate.
type Controller struct {
	iface            string
	associateTimeout time.Duration
	supplicant       *Supplicant

	mu  sync.Mutex
	cfg link.Config
}

var _ link.Controller = (*Controller)(nil)

// NewController binds iface. A nil supplicant leaves authentication to
// whatever already manages the interface.
func NewController(iface string, associateTimeout time.Duration, supplicant *Supplicant) (*Controller, error) {
	if _, err := netlink.LinkByName(iface); err != nil {
		return nil, fmt.Errorf("find interface %q: %w", iface, err)
	}
	if associateTimeout <= 0 {
		associateTimeout = 15 * time.Second
	}
	return &Controller{iface: iface, associateTimeout: associateTimeout, supplicant: supplicant}, nil
}

func (c *Controller) Capabilities() link.Capabilities {
	return link.Capabilities(link.ModeStation)
}

func (c *Controller) State() link.State {
	l, err := netlink.LinkByName(c.iface)
	if err != nil {
		return link.StateDisconnected
	}
	switch {
	case operUp(l):
		return link.StateConnected
	case adminUp(l):
		return link.StateConnecting
	default:
		return link.StateDisconnected
	}
}

func (c *Controller) IsStarted() (bool, error) {
	l, err := netlink.LinkByName(c.iface)
	if err != nil {
		return false, fmt.Errorf("find interface %q: %w", c.iface, err)
	}
	return adminUp(l), nil
}

func (c *Controller) Configure(cfg link.Config) error {
	if c.supplicant != nil {
		ctx, cancel := context.WithTimeout(context.Background(), supplicantTimeout)
		defer cancel()
		if err := c.supplicant.Configure(ctx, cfg); err != nil {
			return err
		}
	}
	c.mu.Lock()
	c.cfg = cfg
	c.mu.Unlock()
	log.Info().Str("iface", c.iface).Str("ssid", cfg.SSID()).Bool("open", cfg.Open()).Msg("station configured")
	return nil
}

func (c *Controller) Start(ctx context.Context) error {
	l, err := netlink.LinkByName(c.iface)
	if err != nil {
		return fmt.Errorf("find interface %q: %w", c.iface, err)
	}
	if adminUp(l) {
		return nil
	}
	if err := netlink.LinkSetUp(l); err != nil {
		return fmt.Errorf("set interface %q up: %w", c.iface, err)
	}
	return c.WaitForEvent(ctx, link.EventStaStarted)
}

func (c *Controller) Connect(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.associateTimeout)
	defer cancel()
	if c.supplicant != nil {
		if err := c.supplicant.Select(ctx); err != nil {
			return err
		}
	}
	err := c.WaitForEvent(ctx, link.EventStaConnected)
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s after %s", ErrAssociateTimeout, c.iface, c.associateTimeout)
	}
	return err
}

// WaitForEvent subscribes before sampling the current state so no
// transition between the two is missed.
func (c *Controller) WaitForEvent(ctx context.Context, ev link.ControllerEvent) error {
	updates := make(chan netlink.LinkUpdate, 16)
	done := make(chan struct{})
	defer close(done)
	if err := netlink.LinkSubscribe(updates, done); err != nil {
		return fmt.Errorf("subscribe link updates: %w", err)
	}

	l, err := netlink.LinkByName(c.iface)
	if err != nil {
		return fmt.Errorf("find interface %q: %w", c.iface, err)
	}
	index := l.Attrs().Index
	if matches(l, ev) {
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return fmt.Errorf("link subscription closed")
			}
			if update.Link == nil || update.Attrs().Index != index {
				continue
			}
			if update.Header.Type == unix.RTM_DELLINK {
				return fmt.Errorf("%w: %s", ErrLinkRemoved, c.iface)
			}
			if matches(update.Link, ev) {
				return nil
			}
		}
	}
}

func matches(l netlink.Link, ev link.ControllerEvent) bool {
	switch ev {
	case link.EventStaStarted:
		return adminUp(l)
	case link.EventStaStopped:
		return !adminUp(l)
	case link.EventStaConnected:
		return operUp(l)
	case link.EventStaDisconnected:
		return !operUp(l)
	default:
		return false
	}
}

func adminUp(l netlink.Link) bool {
	return l.Attrs().RawFlags&unix.IFF_UP != 0
}
