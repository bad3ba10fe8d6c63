package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"wayfact.ai/config"
	"wayfact.ai/fact"
	"wayfact.ai/geo"
	"wayfact.ai/tracker"
)

type stubProducer struct {
	mu       sync.Mutex
	lastSeen []string
	calls    int
}

func (p *stubProducer) Produce(ctx context.Context, lat, lon float64, history []string) (*fact.Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	p.lastSeen = append([]string(nil), history...)
	return &fact.Result{
		Place:    fmt.Sprintf("place-%d", p.calls),
		Body:     "something interesting",
		Position: geo.Position{Lat: lat, Lon: lon},
		Verified: true,
	}, nil
}

func (p *stubProducer) history() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastSeen
}

type testEnv struct {
	srv      *Server
	registry *tracker.Registry
	http     *httptest.Server
	producer *stubProducer
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	producer := &stubProducer{}
	srv := New()
	registry := tracker.NewRegistry(producer, srv, time.Second)
	cache := geo.NewCache(24*time.Hour, 100, nil)

	h := NewHandler(registry, producer, cache, srv, config.Default().Track)
	mux := http.NewServeMux()
	h.Register(mux)

	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)

	return &testEnv{srv: srv, registry: registry, http: ts, producer: producer}
}

func (e *testEnv) post(t *testing.T, path string, body interface{}) (*http.Response, map[string]interface{}) {
	t.Helper()
	b, _ := json.Marshal(body)
	resp, err := http.Post(e.http.URL+path, "application/json", bytes.NewReader(b))
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	defer resp.Body.Close()
	var out map[string]interface{}
	json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

// waitMessages polls the delivery history until want messages of the
// given type have arrived.
func (e *testEnv) waitMessages(t *testing.T, subject, typ string, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if countMessages(e.srv.History(subject), typ) >= want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("never saw %d %q messages for %s", want, typ, subject)
}

func countMessages(h []*Message, typ string) int {
	n := 0
	for _, m := range h {
		if m.Type == typ {
			n++
		}
	}
	return n
}

func TestOneShotFact(t *testing.T) {
	e := newTestEnv(t)

	req := map[string]interface{}{"subject": "alice", "lat": 48.8584, "lon": 2.2945}
	resp, out := e.post(t, "/location", req)
	if resp.StatusCode != 200 {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if out["place"] != "place-1" || out["verified"] != true {
		t.Errorf("response = %v", out)
	}

	// the fact went into the cell cache, the next request avoids it
	e.post(t, "/location", req)
	if h := e.producer.history(); len(h) != 1 || h[0] != "place-1: something interesting" {
		t.Errorf("second produce saw history %v", h)
	}
}

func TestLiveSessionLifecycle(t *testing.T) {
	e := newTestEnv(t)

	start := map[string]interface{}{
		"subject": "bob", "lat": 48.8584, "lon": 2.2945,
		"live_period": 3600, "interval": 600,
	}

	resp, out := e.post(t, "/location", start)
	if resp.StatusCode != 200 || out["status"] != "tracking" {
		t.Fatalf("start: %d %v", resp.StatusCode, out)
	}

	if resp, _ := e.post(t, "/location", start); resp.StatusCode != 409 {
		t.Errorf("second start status = %d, want 409", resp.StatusCode)
	}

	// the immediate first fact
	e.waitMessages(t, "bob", "fact", 1)

	r, err := http.Get(e.http.URL + "/session?subject=bob")
	if err != nil {
		t.Fatalf("session: %v", err)
	}
	if r.StatusCode != 200 {
		t.Fatalf("session status = %d", r.StatusCode)
	}
	r.Body.Close()

	r, _ = http.Get(e.http.URL + "/sessions")
	var counts map[string]int
	json.NewDecoder(r.Body).Decode(&counts)
	r.Body.Close()
	if counts["active"] != 1 {
		t.Errorf("active = %d, want 1", counts["active"])
	}

	if resp, out := e.post(t, "/location/update", map[string]interface{}{"subject": "bob", "lat": 48.86, "lon": 2.33}); resp.StatusCode != 200 || out["tracked"] != true {
		t.Errorf("update: %d %v", resp.StatusCode, out)
	}

	if resp, _ := e.post(t, "/location/stop", map[string]interface{}{"subject": "bob"}); resp.StatusCode != 200 {
		t.Errorf("stop status = %d", resp.StatusCode)
	}
	e.waitMessages(t, "bob", "stopped", 1)

	if resp, _ := e.post(t, "/location/stop", map[string]interface{}{"subject": "bob"}); resp.StatusCode != 404 {
		t.Errorf("second stop status = %d, want 404", resp.StatusCode)
	}
}

func TestStaticLocationStopsLiveSession(t *testing.T) {
	e := newTestEnv(t)

	e.post(t, "/location", map[string]interface{}{
		"subject": "carol", "lat": 48.8584, "lon": 2.2945, "live_period": 3600,
	})
	e.waitMessages(t, "carol", "fact", 1)

	resp, out := e.post(t, "/location", map[string]interface{}{
		"subject": "carol", "lat": 48.8584, "lon": 2.2945,
	})
	if resp.StatusCode != 200 || out["status"] != "stopped" {
		t.Fatalf("implicit stop: %d %v", resp.StatusCode, out)
	}

	e.waitMessages(t, "carol", "stopped", 1)
	time.Sleep(100 * time.Millisecond)
	if n := countMessages(e.srv.History("carol"), "stopped"); n != 1 {
		t.Errorf("%d stopped notifications, want exactly 1", n)
	}
	if e.registry.Active("carol") {
		t.Error("session still active after implicit stop")
	}
}

func TestStartRejectsBadInput(t *testing.T) {
	e := newTestEnv(t)

	tests := []struct {
		name string
		body map[string]interface{}
		want int
	}{
		{"missing subject", map[string]interface{}{"lat": 1.0, "lon": 1.0}, 400},
		{"invalid interval", map[string]interface{}{"subject": "d", "lat": 48.85, "lon": 2.29, "live_period": 3600, "interval": 42}, 400},
		{"null island", map[string]interface{}{"subject": "d", "lat": 0.0, "lon": 0.0, "live_period": 3600}, 400},
		{"out of range", map[string]interface{}{"subject": "d", "lat": 123.0, "lon": 2.29, "live_period": 3600}, 400},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if resp, _ := e.post(t, "/location", tc.body); resp.StatusCode != tc.want {
				t.Errorf("status = %d, want %d", resp.StatusCode, tc.want)
			}
		})
	}
}

func TestEventsHistoryOverPlainGet(t *testing.T) {
	e := newTestEnv(t)

	e.srv.NotifyExpired("erin")

	r, err := http.Get(e.http.URL + "/events?subject=erin")
	if err != nil {
		t.Fatalf("GET /events: %v", err)
	}
	defer r.Body.Close()

	var msgs []*Message
	if err := json.NewDecoder(r.Body).Decode(&msgs); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(msgs) != 1 || msgs[0].Type != "expired" {
		t.Errorf("messages = %+v", msgs)
	}
}
