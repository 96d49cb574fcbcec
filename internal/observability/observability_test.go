package observability

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/danmuck/edgelink/internal/events"
	"github.com/danmuck/edgelink/internal/testutil/testlog"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

func TestRegisterMetricsAndRecordersAreSafe(t *testing.T) {
	testlog.Start(t)
	RegisterMetrics()
	RegisterMetrics()
	RecordHTTPRequest("edgelink", AccessGuarded, "GET", "/status", 200, 12*time.Millisecond)
}

func TestMetricsSinkCountsOutcomes(t *testing.T) {
	testlog.Start(t)
	sink := NewMetricsSink()
	before := testutil.ToFloat64(sessionOutcomes.WithLabelValues("session.connect_error"))
	bytesBefore := testutil.ToFloat64(sessionBytes)

	sink.Emit(events.Event{Kind: events.ConnectError, Err: errors.New("refused")})
	sink.Emit(events.Event{Kind: events.Response, Bytes: 42})
	sink.Emit(events.Event{Kind: events.AddressAcquired})

	if got := testutil.ToFloat64(sessionOutcomes.WithLabelValues("session.connect_error")); got != before+1 {
		t.Fatalf("connect errors got=%v want=%v", got, before+1)
	}
	if got := testutil.ToFloat64(sessionBytes); got != bytesBefore+42 {
		t.Fatalf("response bytes got=%v want=%v", got, bytesBefore+42)
	}
	if testutil.ToFloat64(addressAcquired) != 1 {
		t.Fatalf("address gauge not set")
	}
}

func TestEventLoggerLevelsAndFields(t *testing.T) {
	testlog.Start(t)
	var buf bytes.Buffer
	l := NewEventLogger(zerolog.New(&buf).Level(zerolog.DebugLevel))

	l.Emit(events.Event{Kind: events.ConnectError, Attempt: 3, Addr: "10.0.0.9:80", Err: errors.New("refused")})
	l.Emit(events.Event{Kind: events.Response, Attempt: 3, Bytes: 3, Text: "abc"})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %q", buf.String())
	}
	if !strings.Contains(lines[0], `"level":"warn"`) || !strings.Contains(lines[0], `"error":"refused"`) ||
		!strings.Contains(lines[0], `"message":"connect error"`) {
		t.Fatalf("unexpected connect error line: %s", lines[0])
	}
	if !strings.Contains(lines[1], `"text":"abc"`) || !strings.Contains(lines[1], `"level":"info"`) {
		t.Fatalf("unexpected response line: %s", lines[1])
	}
}

func TestSpanLoggerWritesFinishedSpans(t *testing.T) {
	testlog.Start(t)
	var buf bytes.Buffer
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(NewSpanLogger(zerolog.New(&buf).Level(zerolog.DebugLevel))))
	defer func() { _ = tp.Shutdown(context.Background()) }()

	_, span := tp.Tracer("test").Start(context.Background(), "session.attempt",
		trace.WithAttributes(attribute.String("session.outcome", "eof")))
	span.End()

	out := buf.String()
	if !strings.Contains(out, `"span":"session.attempt"`) || !strings.Contains(out, `"session.outcome":"eof"`) {
		t.Fatalf("unexpected span log: %s", out)
	}
}

func TestStatusRequestsTagsAccessClass(t *testing.T) {
	testlog.Start(t)
	gin.SetMode(gin.TestMode)
	var buf bytes.Buffer
	r := gin.New()
	r.Use(StatusRequests("edge-7", zerolog.New(&buf).Level(zerolog.DebugLevel)))
	guarded := r.Group("/", MarkAccess(AccessGuarded))
	guarded.GET("/status", func(c *gin.Context) {
		c.AbortWithStatus(http.StatusUnauthorized)
	})

	denied := httpRequests.WithLabelValues("edge-7", AccessGuarded, "GET", "/status", "401")
	unmatched := httpRequests.WithLabelValues("edge-7", accessNone, "GET", unmatchedRoute, "404")
	deniedBefore, unmatchedBefore := testutil.ToFloat64(denied), testutil.ToFloat64(unmatched)

	for _, path := range []string{"/status", "/nope/123"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	if got := testutil.ToFloat64(denied); got != deniedBefore+1 {
		t.Fatalf("guarded 401 count got=%v want=%v", got, deniedBefore+1)
	}
	if got := testutil.ToFloat64(unmatched); got != unmatchedBefore+1 {
		t.Fatalf("unmatched count got=%v want=%v", got, unmatchedBefore+1)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 log lines, got %q", buf.String())
	}
	for _, want := range []string{`"node":"edge-7"`, `"access":"guarded"`, `"token_rejected":true`, `"level":"warn"`} {
		if !strings.Contains(lines[0], want) {
			t.Fatalf("missing %s in %s", want, lines[0])
		}
	}
	if !strings.Contains(lines[1], `"route":"unmatched"`) || strings.Contains(lines[1], "/nope/123") {
		t.Fatalf("unmatched path leaked into log: %s", lines[1])
	}
}
