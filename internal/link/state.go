package link

import "strings"

// State is the association state reported by a Controller.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "unknown"
	}
}

// ControllerEvent names a notification a Controller can be waited on for.
type ControllerEvent int

const (
	EventStaStarted ControllerEvent = iota
	EventStaConnected
	EventStaDisconnected
	EventStaStopped
)

func (e ControllerEvent) String() string {
	switch e {
	case EventStaStarted:
		return "sta_started"
	case EventStaConnected:
		return "sta_connected"
	case EventStaDisconnected:
		return "sta_disconnected"
	case EventStaStopped:
		return "sta_stopped"
	default:
		return "unknown"
	}
}

// Mode is one operating mode a radio supports.
type Mode uint8

const (
	ModeStation Mode = 1 << iota
	ModeAccessPoint
)

// Capabilities is a set of Modes.
type Capabilities uint8

func (c Capabilities) Has(m Mode) bool {
	return uint8(c)&uint8(m) != 0
}

func (c Capabilities) String() string {
	parts := make([]string, 0, 2)
	if c.Has(ModeStation) {
		parts = append(parts, "station")
	}
	if c.Has(ModeAccessPoint) {
		parts = append(parts, "access_point")
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}
