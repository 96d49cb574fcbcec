//go:build !linux

package hostnet

import (
	"errors"
	"time"

	"github.com/danmuck/edgelink/internal/link"
	"github.com/danmuck/edgelink/internal/netstack"
)

var ErrUnsupported = errors.New("hostnet: host mode requires linux")

func NewEngine(iface string) (netstack.Engine, error) {
	return nil, ErrUnsupported
}

func NewController(iface string, associateTimeout time.Duration, supplicant *Supplicant) (link.Controller, error) {
	return nil, ErrUnsupported
}
