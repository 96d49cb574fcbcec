package observability

import (
	"sync"

	"github.com/danmuck/edgelink/internal/events"
	"github.com/rs/zerolog"
)

// EventLogger writes one log line per lifecycle event.
type EventLogger struct {
	mu     sync.Mutex
	logger zerolog.Logger
}

func NewEventLogger(logger zerolog.Logger) *EventLogger {
	return &EventLogger{logger: logger}
}

func (l *EventLogger) Emit(ev events.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry := l.level(ev.Kind)
	entry = entry.Str("event", ev.Kind.String())
	if !ev.At.IsZero() {
		entry = entry.Time("at", ev.At)
	}
	if ev.Attempt > 0 {
		entry = entry.Uint64("attempt", ev.Attempt)
	}
	if ev.SessionID != "" {
		entry = entry.Str("session_id", ev.SessionID)
	}
	if ev.Addr != "" {
		entry = entry.Str("addr", ev.Addr)
	}
	if ev.Bytes > 0 {
		entry = entry.Int("bytes", ev.Bytes)
	}
	if ev.Detail != "" {
		entry = entry.Str("detail", ev.Detail)
	}
	if ev.Err != nil {
		entry = entry.Err(ev.Err)
	}
	if ev.Kind == events.Response {
		entry = entry.Str("text", ev.Text)
	}
	entry.Msg(message(ev.Kind))
}

func (l *EventLogger) level(kind events.Kind) *zerolog.Event {
	switch {
	case kind == events.PumpStopped:
		return l.logger.Error()
	case kind.IsFailure():
		return l.logger.Warn()
	case kind == events.SessionConnecting, kind == events.SessionClosed:
		return l.logger.Debug()
	default:
		return l.logger.Info()
	}
}

func message(kind events.Kind) string {
	switch kind {
	case events.LinkStart:
		return "start connection task"
	case events.LinkStarted:
		return "link started"
	case events.LinkConnecting:
		return "about to connect"
	case events.LinkConnected:
		return "link connected"
	case events.LinkDisconnected:
		return "link disconnected"
	case events.LinkError:
		return "link error"
	case events.PumpStarted:
		return "stack pump started"
	case events.PumpStopped:
		return "stack pump stopped"
	case events.WaitingForLink:
		return "waiting for link up"
	case events.WaitingForAddress:
		return "waiting to get ip address"
	case events.AddressAcquired:
		return "got ip"
	case events.SessionConnecting:
		return "connecting"
	case events.SessionConnected:
		return "connected"
	case events.SessionClosed:
		return "socket released"
	case events.SocketError:
		return "socket error"
	case events.ConnectError:
		return "connect error"
	case events.WriteError:
		return "write error"
	case events.ReadError:
		return "read error"
	case events.ReadEOF:
		return "read eof"
	case events.Response:
		return "response"
	case events.DecodeError:
		return "decode error"
	default:
		return "event"
	}
}
