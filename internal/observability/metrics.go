package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/danmuck/edgelink/internal/events"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	linkEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "edgelink",
			Subsystem: "link",
			Name:      "events_total",
			Help:      "Link manager lifecycle events.",
		},
		[]string{"event"},
	)
	pumpStops = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "edgelink",
			Subsystem: "pump",
			Name:      "stops_total",
			Help:      "Stack pump exits.",
		},
	)
	sessionOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "edgelink",
			Subsystem: "session",
			Name:      "outcomes_total",
			Help:      "Session attempt results by kind.",
		},
		[]string{"event"},
	)
	sessionBytes = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "edgelink",
			Subsystem: "session",
			Name:      "response_bytes_total",
			Help:      "Response bytes received.",
		},
	)
	addressAcquired = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "edgelink",
			Subsystem: "net",
			Name:      "address_acquired",
			Help:      "1 once an IPv4 address has been observed.",
		},
	)
	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "edgelink",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total status API requests.",
		},
		[]string{"node", "access", "method", "route", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "edgelink",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Status API request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"node", "access", "method", "route", "status"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(linkEvents, pumpStops, sessionOutcomes, sessionBytes, addressAcquired, httpRequests, httpDuration)
	})
}

// RecordHTTPRequest counts one status API request. access names the route
// group that served it.
func RecordHTTPRequest(node, access, method, route string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(node, access, method, route, statusLabel).Inc()
	httpDuration.WithLabelValues(node, access, method, route, statusLabel).Observe(duration.Seconds())
}

// MetricsSink counts lifecycle events.
type MetricsSink struct{}

func NewMetricsSink() MetricsSink {
	RegisterMetrics()
	return MetricsSink{}
}

func (MetricsSink) Emit(ev events.Event) {
	switch ev.Kind {
	case events.LinkStart, events.LinkStarted, events.LinkConnecting, events.LinkConnected,
		events.LinkDisconnected, events.LinkError:
		linkEvents.WithLabelValues(ev.Kind.String()).Inc()
	case events.PumpStopped:
		pumpStops.Inc()
	case events.AddressAcquired:
		addressAcquired.Set(1)
	case events.SocketError, events.ConnectError, events.WriteError, events.ReadError,
		events.ReadEOF, events.DecodeError:
		sessionOutcomes.WithLabelValues(ev.Kind.String()).Inc()
	case events.Response:
		sessionBytes.Add(float64(ev.Bytes))
	}
}
