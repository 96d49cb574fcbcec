package statusapi

import (
	"sync"
	"time"

	"github.com/danmuck/edgelink/internal/events"
)

// Snapshot is the JSON body of GET /status.
type Snapshot struct {
	Link        string    `json:"link"`
	Pump        string    `json:"pump"`
	Address     string    `json:"address,omitempty"`
	Attempts    uint64    `json:"attempts"`
	Exchanges   uint64    `json:"exchanges"`
	Failures    uint64    `json:"failures"`
	Bytes       uint64    `json:"bytes"`
	LastEvent   string    `json:"last_event,omitempty"`
	LastError   string    `json:"last_error,omitempty"`
	LastSession string    `json:"last_session,omitempty"`
	Updated     time.Time `json:"updated"`
	Started     time.Time `json:"started"`
}

// Tracker is an events.Sink that keeps the latest lifecycle state.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

var _ events.Sink = (*Tracker)(nil)

func NewTracker() *Tracker {
	return &Tracker{snap: Snapshot{
		Link:    "disconnected",
		Pump:    "idle",
		Started: time.Now(),
	}}
}

func (t *Tracker) Emit(ev events.Event) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := &t.snap
	s.LastEvent = ev.Kind.String()
	s.Updated = ev.At
	if s.Updated.IsZero() {
		s.Updated = time.Now()
	}
	if ev.Attempt > s.Attempts {
		s.Attempts = ev.Attempt
	}
	if ev.SessionID != "" {
		s.LastSession = ev.SessionID
	}

	switch ev.Kind {
	case events.LinkConnecting:
		s.Link = "connecting"
	case events.LinkConnected:
		s.Link = "connected"
	case events.LinkDisconnected:
		s.Link = "disconnected"
		s.Address = ""
	case events.PumpStarted:
		s.Pump = "running"
	case events.PumpStopped:
		s.Pump = "stopped"
	case events.AddressAcquired:
		s.Address = ev.Addr
	case events.SessionConnected:
		s.Exchanges++
	case events.Response:
		s.Bytes += uint64(ev.Bytes)
	}
	if ev.Kind.IsFailure() {
		s.Failures++
		if ev.Err != nil {
			s.LastError = ev.Err.Error()
		} else {
			s.LastError = ev.Kind.String()
		}
	}
}

func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.snap
}

// Ready reports whether the link is up and an address has been observed.
func (t *Tracker) Ready() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.snap.Link == "connected" && t.snap.Address != ""
}
