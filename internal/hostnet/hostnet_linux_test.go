//go:build linux

package hostnet

import (
	"net"
	"testing"

	"github.com/danmuck/edgelink/internal/link"
	"github.com/danmuck/edgelink/internal/testutil/testlog"
	"github.com/vishvananda/netlink"
	"golang.org/x/sys/unix"
)

func device(oper netlink.LinkOperState, flags uint32) netlink.Link {
	return &netlink.Device{LinkAttrs: netlink.LinkAttrs{Name: "wlan0", OperState: oper, RawFlags: flags}}
}

func TestLinkStateMatching(t *testing.T) {
	testlog.Start(t)
	down := device(netlink.OperDown, 0)
	started := device(netlink.OperDormant, unix.IFF_UP)
	associated := device(netlink.OperUp, unix.IFF_UP|unix.IFF_RUNNING)
	noOperstate := device(netlink.OperUnknown, unix.IFF_UP|unix.IFF_RUNNING)

	cases := []struct {
		name string
		l    netlink.Link
		ev   link.ControllerEvent
		want bool
	}{
		{"down not started", down, link.EventStaStarted, false},
		{"down is stopped", down, link.EventStaStopped, true},
		{"down is disconnected", down, link.EventStaDisconnected, true},
		{"admin up started", started, link.EventStaStarted, true},
		{"admin up not connected", started, link.EventStaConnected, false},
		{"oper up connected", associated, link.EventStaConnected, true},
		{"oper up not disconnected", associated, link.EventStaDisconnected, false},
		{"running flag counts as up", noOperstate, link.EventStaConnected, true},
	}
	for _, tc := range cases {
		if got := matches(tc.l, tc.ev); got != tc.want {
			t.Fatalf("%s: matches(%s)=%v want %v", tc.name, tc.ev, got, tc.want)
		}
	}
}

func TestIPNetToPrefix(t *testing.T) {
	testlog.Start(t)
	_, n, err := net.ParseCIDR("192.168.4.17/24")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	n.IP = net.ParseIP("192.168.4.17")
	pref, err := ipNetToPrefix(*n)
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if pref.String() != "192.168.4.17/24" || !pref.Addr().Is4() {
		t.Fatalf("unexpected prefix: %s", pref)
	}
	if _, err := ipNetToPrefix(net.IPNet{}); err == nil {
		t.Fatalf("expected invalid ip error")
	}
}

func TestUnknownInterfaceRejected(t *testing.T) {
	testlog.Start(t)
	if _, err := NewEngine("edgelink-missing0"); err == nil {
		t.Fatalf("expected engine error for missing interface")
	}
	if _, err := NewController("edgelink-missing0", 0, nil); err == nil {
		t.Fatalf("expected controller error for missing interface")
	}
}
