package statusapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/danmuck/edgelink/internal/events"
	"github.com/danmuck/edgelink/internal/testutil/testlog"
)

func get(t *testing.T, s *Server, path string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range header {
		req.Header[k] = v
	}
	rr := httptest.NewRecorder()
	s.HTTPRouter().ServeHTTP(rr, req)
	return rr
}

func TestTrackerFollowsLifecycle(t *testing.T) {
	testlog.Start(t)
	tr := NewTracker()
	for _, ev := range []events.Event{
		{Kind: events.PumpStarted},
		{Kind: events.LinkConnecting},
		{Kind: events.LinkConnected},
		{Kind: events.AddressAcquired, Addr: "192.168.4.2/24"},
		{Kind: events.ConnectError, Attempt: 1, SessionID: "a", Err: errors.New("refused")},
		{Kind: events.SessionConnected, Attempt: 2, SessionID: "b"},
		{Kind: events.Response, Attempt: 2, SessionID: "b", Bytes: 12},
		{Kind: events.ReadEOF, Attempt: 2, SessionID: "b"},
	} {
		tr.Emit(ev)
	}
	snap := tr.Snapshot()
	if snap.Link != "connected" || snap.Pump != "running" {
		t.Fatalf("unexpected state: %+v", snap)
	}
	if snap.Address != "192.168.4.2/24" || !tr.Ready() {
		t.Fatalf("expected ready with address: %+v", snap)
	}
	if snap.Attempts != 2 || snap.Exchanges != 1 || snap.Failures != 1 || snap.Bytes != 12 {
		t.Fatalf("unexpected counters: %+v", snap)
	}
	if snap.LastError != "refused" || snap.LastSession != "b" || snap.LastEvent != "session.read_eof" {
		t.Fatalf("unexpected last fields: %+v", snap)
	}

	tr.Emit(events.Event{Kind: events.LinkDisconnected})
	if tr.Ready() || tr.Snapshot().Address != "" {
		t.Fatalf("expected address cleared on disconnect")
	}
}

func TestRoutes(t *testing.T) {
	testlog.Start(t)
	tr := NewTracker()
	s, err := New("node-a", tr, Options{})
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	rr := get(t, s, "/health", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("health: %d", rr.Code)
	}
	var health map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &health); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	if health["status"] != "ok" || health["service"] != "node-a" {
		t.Fatalf("unexpected health body: %#v", health)
	}

	if rr := get(t, s, "/ready", nil); rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected not ready, got %d", rr.Code)
	}
	tr.Emit(events.Event{Kind: events.LinkConnected})
	tr.Emit(events.Event{Kind: events.AddressAcquired, Addr: "10.0.0.2/24"})
	if rr := get(t, s, "/ready", nil); rr.Code != http.StatusOK {
		t.Fatalf("expected ready, got %d", rr.Code)
	}

	rr = get(t, s, "/status", nil)
	var snap Snapshot
	if err := json.Unmarshal(rr.Body.Bytes(), &snap); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if snap.Link != "connected" || snap.Address != "10.0.0.2/24" {
		t.Fatalf("unexpected status: %+v", snap)
	}

	rr = get(t, s, "/metrics", nil)
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "edgelink_http_requests_total") {
		t.Fatalf("metrics missing request counter: %d", rr.Code)
	}
}

func TestCorsOnlyWhenConfigured(t *testing.T) {
	testlog.Start(t)
	origin := http.Header{"Origin": []string{"http://localhost:3000"}}

	plain, err := New("", NewTracker(), Options{CorsOrigins: []string{" ", ""}})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if plain.ID != "edgelink" {
		t.Fatalf("unexpected default id: %q", plain.ID)
	}
	if h := get(t, plain, "/health", origin).Header().Get("Access-Control-Allow-Origin"); h != "" {
		t.Fatalf("unexpected cors header: %q", h)
	}

	withCors, err := New("x", NewTracker(), Options{CorsOrigins: []string{"http://localhost:3000"}})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if h := get(t, withCors, "/health", origin).Header().Get("Access-Control-Allow-Origin"); h != "http://localhost:3000" {
		t.Fatalf("expected cors header, got %q", h)
	}

	if _, err := New("x", nil, Options{}); !errors.Is(err, ErrTrackerRequired) {
		t.Fatalf("expected tracker error, got %v", err)
	}
}

func TestServeShutsDownOnCancel(t *testing.T) {
	testlog.Start(t)
	s, err := New("x", NewTracker(), Options{})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/health")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("serve: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("serve did not stop")
	}
}

func TestTokenGuardsAllButHealth(t *testing.T) {
	testlog.Start(t)
	s, err := New("x", NewTracker(), Options{Token: "s3cret"})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if rr := get(t, s, "/health", nil); rr.Code != http.StatusOK {
		t.Fatalf("health should stay open, got %d", rr.Code)
	}
	for _, path := range []string{"/status", "/ready", "/metrics"} {
		if rr := get(t, s, path, nil); rr.Code != http.StatusUnauthorized {
			t.Fatalf("%s without token: expected 401, got %d", path, rr.Code)
		}
	}
	bearer := http.Header{"Authorization": []string{"Bearer s3cret"}}
	if rr := get(t, s, "/status", bearer); rr.Code != http.StatusOK {
		t.Fatalf("status with token: expected 200, got %d", rr.Code)
	}
}

func TestMetricsLabelRouteGroups(t *testing.T) {
	testlog.Start(t)
	s, err := New("grouped-node", NewTracker(), Options{Token: "s3cret"})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	get(t, s, "/health", nil)
	get(t, s, "/status", nil)

	rr := get(t, s, "/metrics", http.Header{"Authorization": []string{"Bearer s3cret"}})
	body := rr.Body.String()
	for _, want := range []string{
		`edgelink_http_requests_total{access="open",method="GET",node="grouped-node",route="/health",status="200"} 1`,
		`edgelink_http_requests_total{access="guarded",method="GET",node="grouped-node",route="/status",status="401"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("metrics missing %s", want)
		}
	}
}
