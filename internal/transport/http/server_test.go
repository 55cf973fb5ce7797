package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-tcp/internal/banlog"
	"github.com/vovakirdan/wirechat-tcp/internal/config"
	"github.com/vovakirdan/wirechat-tcp/internal/core"
	"github.com/vovakirdan/wirechat-tcp/internal/metrics"
	"github.com/vovakirdan/wirechat-tcp/internal/store"
	"github.com/vovakirdan/wirechat-tcp/internal/store/sqlite"
)

type nopConn struct {
	mu     sync.Mutex
	closed bool
}

func (c *nopConn) Send([]byte) bool { return true }

func (c *nopConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

type testEnv struct {
	hub   *core.Hub
	audit *sqlite.SQLiteStore
	ts    *httptest.Server
	ctx   context.Context
}

func newTestEnv(t *testing.T, cfg config.Config, withAudit bool) *testEnv {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)

	var (
		audit    *sqlite.SQLiteStore
		auditArg store.AuditStore
		rec      core.BanRecorder
	)
	if withAudit {
		s, err := sqlite.New(":memory:")
		if err != nil {
			t.Fatalf("failed to create store: %v", err)
		}
		t.Cleanup(func() { _ = s.Close() })
		audit, auditArg, rec = s, s, s
	}

	disabledLogger := zerolog.Nop()
	m := metrics.New()
	hub := core.NewHub(core.NewRegistry(8), core.NewBanStore(rec, &disabledLogger), &disabledLogger, core.WithMetrics(m))
	go hub.Run(ctx)

	ts := httptest.NewServer(NewServer(hub, auditArg, m, cfg, &disabledLogger).Handler)
	t.Cleanup(ts.Close)

	return &testEnv{hub: hub, audit: audit, ts: ts, ctx: ctx}
}

func (e *testEnv) join(t *testing.T, ip, name string) {
	t.Helper()

	id, err := e.hub.Accept(e.ctx, &nopConn{}, ip)
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if err := e.hub.Deliver(e.ctx, id, []byte(name+"\n")); err != nil {
		t.Fatalf("deliver: %v", err)
	}

	// the name is applied asynchronously
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		st, err := e.hub.Stats(e.ctx)
		if err != nil {
			t.Fatalf("stats: %v", err)
		}
		for _, c := range st.Clients {
			if c.ID == id && c.Named {
				return
			}
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("client %s never got named", name)
}

func getJSON(t *testing.T, url string, wantStatus int, out any) {
	t.Helper()

	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("GET %s: expected status %d, got %d: %s", url, wantStatus, resp.StatusCode, body)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, config.Default(), false)

	var body map[string]string
	getJSON(t, env.ts.URL+"/health", http.StatusOK, &body)
	if body["status"] != "ok" {
		t.Fatalf("unexpected health body: %v", body)
	}
}

func TestListClientsAndBans(t *testing.T) {
	env := newTestEnv(t, config.Default(), false)
	env.join(t, "10.0.0.1", "alice")
	env.join(t, "10.0.0.2", "bob")

	if res, err := env.hub.Exec(env.ctx, "ban 10.0.0.2"); err != nil || res.Err != nil {
		t.Fatalf("ban: %v / %v", err, res.Err)
	}

	var clients ClientsResponse
	getJSON(t, env.ts.URL+"/api/clients", http.StatusOK, &clients)
	if clients.Count != 1 || clients.Capacity != 8 {
		t.Fatalf("unexpected clients response: %+v", clients)
	}
	if clients.Clients[0].Name != "alice" || clients.Clients[0].IP != "10.0.0.1" {
		t.Fatalf("unexpected client: %+v", clients.Clients[0])
	}

	var bans BansResponse
	getJSON(t, env.ts.URL+"/api/bans", http.StatusOK, &bans)
	if bans.Count != 1 || bans.Bans[0] != "10.0.0.2" {
		t.Fatalf("unexpected bans response: %+v", bans)
	}
}

func TestEmptyListsAreArrays(t *testing.T) {
	env := newTestEnv(t, config.Default(), false)

	for _, path := range []string{"/api/clients", "/api/bans"} {
		resp, err := http.Get(env.ts.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		if strings.Contains(string(body), "null") {
			t.Errorf("%s: empty list should encode as [], got %s", path, body)
		}
	}
}

func TestBanEvents(t *testing.T) {
	env := newTestEnv(t, config.Default(), true)

	for _, line := range []string{"ban 10.0.0.5", "unban 10.0.0.5", "ban 10.0.0.6"} {
		if res, err := env.hub.Exec(env.ctx, line); err != nil || res.Err != nil {
			t.Fatalf("%s: %v / %v", line, err, res.Err)
		}
	}

	var all BanEventsResponse
	getJSON(t, env.ts.URL+"/api/ban-events", http.StatusOK, &all)
	if len(all.Events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(all.Events))
	}
	if all.Events[0].IP != "10.0.0.6" || all.Events[0].Action != banlog.ActionBan {
		t.Fatalf("newest event should come first: %+v", all.Events[0])
	}

	var forIP BanEventsResponse
	getJSON(t, env.ts.URL+"/api/ban-events?ip=10.0.0.5&limit=1", http.StatusOK, &forIP)
	if len(forIP.Events) != 1 || forIP.Events[0].Action != banlog.ActionUnban {
		t.Fatalf("unexpected events for ip: %+v", forIP.Events)
	}

	getJSON(t, env.ts.URL+"/api/ban-events?limit=zero", http.StatusBadRequest, nil)
	getJSON(t, env.ts.URL+"/api/ban-events?ip=not-an-ip", http.StatusBadRequest, nil)
}

func TestBanEventsWithoutAudit(t *testing.T) {
	env := newTestEnv(t, config.Default(), false)

	var body ErrorResponse
	getJSON(t, env.ts.URL+"/api/ban-events", http.StatusServiceUnavailable, &body)
	if body.Error == "" {
		t.Fatalf("expected error message")
	}
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t, config.Default(), false)
	env.join(t, "10.0.0.1", "alice")

	resp, err := http.Get(env.ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	for _, want := range []string{"wirechat_connections_total", "wirechat_clients_connected"} {
		if !strings.Contains(string(body), want) {
			t.Errorf("metrics output missing %s", want)
		}
	}
}

func TestRateLimit(t *testing.T) {
	cfg := config.Default()
	cfg.MonitorRateLimit = 2
	env := newTestEnv(t, cfg, false)

	getJSON(t, env.ts.URL+"/api/bans", http.StatusOK, nil)
	getJSON(t, env.ts.URL+"/api/clients", http.StatusOK, nil)
	getJSON(t, env.ts.URL+"/api/bans", http.StatusTooManyRequests, nil)

	// health is outside the limited group
	getJSON(t, env.ts.URL+"/health", http.StatusOK, nil)
}

func TestRateLimiterWindow(t *testing.T) {
	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	r := newRateLimiter(1)
	r.now = func() time.Time { return now }

	if !r.allow() {
		t.Fatalf("first request should pass")
	}
	if r.allow() {
		t.Fatalf("second request in the window should be limited")
	}
	now = now.Add(time.Minute)
	if !r.allow() {
		t.Fatalf("new window should reset the counter")
	}

	if !newRateLimiter(0).allow() {
		t.Fatalf("zero limit should allow everything")
	}
}
