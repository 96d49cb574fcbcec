//go:build linux

package hostnet

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"syscall"

	"github.com/danmuck/edgelink/internal/netstack"
	"github.com/rs/zerolog/log"
	"github.com/vishvananda/netlink"
	"golang.org/x/sys/unix"
)

var ErrLinkRemoved = errors.New("hostnet: interface removed")

// Engine observes one interface through netlink. Packet processing stays in
// the kernel; Run only watches for the device going away.
type Engine struct {
	iface string
}

var _ netstack.Engine = (*Engine)(nil)

func NewEngine(iface string) (*Engine, error) {
	if _, err := netlink.LinkByName(iface); err != nil {
		return nil, fmt.Errorf("find interface %q: %w", iface, err)
	}
	return &Engine{iface: iface}, nil
}

func (e *Engine) Run(ctx context.Context) error {
	link, err := netlink.LinkByName(e.iface)
	if err != nil {
		return fmt.Errorf("find interface %q: %w", e.iface, err)
	}
	index := link.Attrs().Index

	updates := make(chan netlink.LinkUpdate, 16)
	done := make(chan struct{})
	defer close(done)
	subErr := make(chan error, 1)
	if err := netlink.LinkSubscribeWithOptions(updates, done, netlink.LinkSubscribeOptions{
		ErrorCallback: func(err error) {
			select {
			case subErr <- err:
			default:
			}
		},
	}); err != nil {
		return fmt.Errorf("subscribe link updates: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-subErr:
			return fmt.Errorf("link subscription: %w", err)
		case update, ok := <-updates:
			if !ok {
				return fmt.Errorf("link subscription closed")
			}
			if update.Link == nil || update.Attrs().Index != index {
				continue
			}
			if update.Header.Type == unix.RTM_DELLINK {
				return fmt.Errorf("%w: %s", ErrLinkRemoved, e.iface)
			}
			log.Debug().
				Str("iface", e.iface).
				Str("oper", update.Attrs().OperState.String()).
				Msg("link update")
		}
	}
}

func (e *Engine) IsLinkUp() bool {
	link, err := netlink.LinkByName(e.iface)
	if err != nil {
		return false
	}
	return operUp(link)
}

func (e *Engine) IPv4Config() (netstack.IPv4Config, bool) {
	link, err := netlink.LinkByName(e.iface)
	if err != nil {
		return netstack.IPv4Config{}, false
	}
	addrs, err := netlink.AddrList(link, netlink.FAMILY_V4)
	if err != nil {
		return netstack.IPv4Config{}, false
	}
	var cfg netstack.IPv4Config
	for _, addr := range addrs {
		if addr.IPNet == nil {
			continue
		}
		pref, err := ipNetToPrefix(*addr.IPNet)
		if err != nil || !pref.Addr().Is4() {
			continue
		}
		cfg.Address = pref
		break
	}
	if !cfg.Address.IsValid() {
		return netstack.IPv4Config{}, false
	}
	cfg.Gateway = defaultGateway(link)
	return cfg, true
}

func (e *Engine) NewSocket(rx, tx []byte) (netstack.Socket, error) {
	sock := NewTCPSocket(rx, tx)
	sock.dialer.Control = bindToDevice(e.iface)
	return sock, nil
}

func defaultGateway(link netlink.Link) netip.Addr {
	routes, err := netlink.RouteList(link, netlink.FAMILY_V4)
	if err != nil {
		return netip.Addr{}
	}
	for _, route := range routes {
		if route.Gw == nil {
			continue
		}
		if route.Dst != nil {
			if ones, _ := route.Dst.Mask.Size(); ones != 0 {
				continue
			}
		}
		if gw, ok := netip.AddrFromSlice(route.Gw); ok {
			return gw.Unmap()
		}
	}
	return netip.Addr{}
}

func operUp(link netlink.Link) bool {
	attrs := link.Attrs()
	if attrs.OperState == netlink.OperUp {
		return true
	}
	// Some drivers never report operstate; fall back to the running flag.
	return attrs.OperState == netlink.OperUnknown && attrs.RawFlags&unix.IFF_RUNNING != 0
}

func bindToDevice(iface string) func(network, address string, c syscall.RawConn) error {
	return func(_, _ string, c syscall.RawConn) error {
		var serr error
		err := c.Control(func(fd uintptr) {
			serr = unix.SetsockoptString(int(fd), unix.SOL_SOCKET, unix.SO_BINDTODEVICE, iface)
		})
		if err != nil {
			return err
		}
		return serr
	}
}

func ipNetToPrefix(n net.IPNet) (netip.Prefix, error) {
	a, ok := netip.AddrFromSlice(n.IP)
	if !ok {
		return netip.Prefix{}, fmt.Errorf("invalid IP %v", n.IP)
	}
	ones, _ := n.Mask.Size()
	return netip.PrefixFrom(a.Unmap(), ones), nil
}
