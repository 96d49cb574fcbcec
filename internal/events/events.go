package events

import (
	"sync"
	"time"
)

// Kind identifies one lifecycle transition or diagnostic.
type Kind int

const (
	KindUnknown Kind = iota

	LinkStart
	LinkStarted
	LinkConnecting
	LinkConnected
	LinkDisconnected
	LinkError

	PumpStarted
	PumpStopped

	WaitingForLink
	WaitingForAddress
	AddressAcquired

	SessionConnecting
	SessionConnected
	SessionClosed
	SocketError
	ConnectError
	WriteError
	ReadError
	ReadEOF
	Response
	DecodeError
)

func (k Kind) String() string {
	switch k {
	case LinkStart:
		return "link.start"
	case LinkStarted:
		return "link.started"
	case LinkConnecting:
		return "link.connecting"
	case LinkConnected:
		return "link.connected"
	case LinkDisconnected:
		return "link.disconnected"
	case LinkError:
		return "link.error"
	case PumpStarted:
		return "pump.started"
	case PumpStopped:
		return "pump.stopped"
	case WaitingForLink:
		return "net.waiting_link"
	case WaitingForAddress:
		return "net.waiting_address"
	case AddressAcquired:
		return "net.address_acquired"
	case SessionConnecting:
		return "session.connecting"
	case SessionConnected:
		return "session.connected"
	case SessionClosed:
		return "session.closed"
	case SocketError:
		return "session.socket_error"
	case ConnectError:
		return "session.connect_error"
	case WriteError:
		return "session.write_error"
	case ReadError:
		return "session.read_error"
	case ReadEOF:
		return "session.read_eof"
	case Response:
		return "session.response"
	case DecodeError:
		return "session.decode_error"
	default:
		return "unknown"
	}
}

// IsFailure reports whether the kind describes a failed operation.
func (k Kind) IsFailure() bool {
	switch k {
	case LinkError, SocketError, ConnectError, WriteError, ReadError, DecodeError:
		return true
	default:
		return false
	}
}

// Event is one emitted lifecycle record. Only the fields relevant to Kind are set.
type Event struct {
	Kind      Kind
	At        time.Time
	Attempt   uint64
	SessionID string
	Addr      string
	Bytes     int
	Text      string
	Detail    string
	Err       error
}

// Sink receives events. Implementations must be safe for concurrent use.
type Sink interface {
	Emit(Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Event)

func (f SinkFunc) Emit(ev Event) {
	f(ev)
}

// Discard drops every event.
var Discard Sink = SinkFunc(func(Event) {})

type multi []Sink

func (m multi) Emit(ev Event) {
	for _, s := range m {
		s.Emit(ev)
	}
}

// Multi fans one event out to every non-nil sink in order.
func Multi(sinks ...Sink) Sink {
	out := make(multi, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	if len(out) == 1 {
		return out[0]
	}
	return out
}

// Stamp fills At when the emitter did not.
func Stamp(ev Event) Event {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	return ev
}

// Recorder keeps every emitted event in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func NewRecorder() *Recorder {
	return &Recorder{events: make([]Event, 0)}
}

func (r *Recorder) Emit(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, Stamp(ev))
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Kinds returns the recorded kinds in emission order.
func (r *Recorder) Kinds() []Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Kind, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Kind)
	}
	return out
}

// Count returns how many events of kind were recorded.
func (r *Recorder) Count(kind Kind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, ev := range r.events {
		if ev.Kind == kind {
			n++
		}
	}
	return n
}
