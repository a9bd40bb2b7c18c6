package web

import (
	"bytes"
	"context"
	"encoding/json"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sweeney/tickdemo/internal/metrics"
	"github.com/sweeney/tickdemo/internal/render"
	"github.com/sweeney/tickdemo/internal/status"
)

type testEnv struct {
	ts      *httptest.Server
	srv     *Server
	tracker *status.Tracker
	canvas  *render.Canvas
	metrics *metrics.Metrics
}

func newTestServer(t *testing.T) *testEnv {
	t.Helper()
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cfg := status.Config{
		TickRateHz:       1000,
		DebounceTicks:    200,
		Policy:           "keyed",
		ResetPeriodTicks: 10000,
		Periods:          []uint64{1, 2, 3, 4},
		HorizonTicks:     15,
		Broker:           "tcp://192.168.1.200:1883",
		HTTPAddr:         ":8080",
	}
	tr := status.NewTracker("run-1", start, cfg)

	reg := prom.NewRegistry()
	m, err := metrics.New("test", reg)
	if err != nil {
		t.Fatalf("metrics.New: %v", err)
	}
	canvas := render.NewCanvas(64, 48)

	srv := New(":0", tr, Options{
		Frames:       canvas,
		Metrics:      promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		PushInterval: 20 * time.Millisecond,
	})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return &testEnv{ts: ts, srv: srv, tracker: tr, canvas: canvas, metrics: m}
}

func getJSON(t *testing.T, url string) status.StatusJSON {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()

	var sj status.StatusJSON
	if err := json.NewDecoder(resp.Body).Decode(&sj); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	return sj
}

func TestJSONEndpoint(t *testing.T) {
	env := newTestServer(t)
	env.tracker.SetMode("A")
	env.tracker.UpdateFrame(1200, 5, 50)
	env.tracker.SetMQTTConnected(true)

	resp, err := http.Get(env.ts.URL + "/index.json")
	if err != nil {
		t.Fatalf("GET /index.json: %v", err)
	}
	resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type: got %q, want application/json", ct)
	}

	sj := getJSON(t, env.ts.URL+"/index.json")
	if sj.Status.Mode != "A" {
		t.Errorf("Mode: got %q, want A", sj.Status.Mode)
	}
	if sj.Status.Counter != 5 {
		t.Errorf("Counter: got %d, want 5", sj.Status.Counter)
	}
	if sj.Status.RunID != "run-1" {
		t.Errorf("RunID: got %q, want run-1", sj.Status.RunID)
	}
	if !sj.Status.MQTT.Connected {
		t.Error("expected MQTT.Connected=true")
	}
	if sj.Status.Config.Broker != "tcp://192.168.1.200:1883" {
		t.Errorf("Config.Broker: got %q", sj.Status.Config.Broker)
	}
	if len(sj.Status.Config.Periods) != 4 {
		t.Errorf("Config.Periods: got %v", sj.Status.Config.Periods)
	}
}

func TestStateChangesReflectedInResponse(t *testing.T) {
	env := newTestServer(t)

	if sj := getJSON(t, env.ts.URL+"/index.json"); sj.Status.Mode != "UNKNOWN" {
		t.Errorf("Mode before start: got %q, want UNKNOWN", sj.Status.Mode)
	}

	env.tracker.RecordTransition("B")
	env.tracker.SetRows([]string{" 1: 1"})

	sj := getJSON(t, env.ts.URL+"/index.json")
	if sj.Status.Mode != "B" {
		t.Errorf("Mode: got %q, want B", sj.Status.Mode)
	}
	if sj.Status.Counts.Transitions != 1 {
		t.Errorf("Transitions: got %d, want 1", sj.Status.Counts.Transitions)
	}
	if len(sj.Status.Rows) != 1 {
		t.Errorf("Rows: got %v", sj.Status.Rows)
	}
}

func TestHTMLEndpoint(t *testing.T) {
	env := newTestServer(t)
	env.tracker.SetMode("B")
	env.tracker.SetTasks([]status.TaskStatus{{Name: "producer-1", Priority: 1, State: "SUSPENDED"}})

	for _, path := range []string{"/", "/index.html"} {
		resp, err := http.Get(env.ts.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		if resp.StatusCode != 200 {
			t.Errorf("%s status: got %d, want 200", path, resp.StatusCode)
		}
		if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
			t.Errorf("%s Content-Type: got %q, want text/html", path, ct)
		}
		for _, want := range []string{`<td id="mode">B</td>`, "producer-1 (1)", `src="/frame.png"`} {
			if !strings.Contains(string(body), want) {
				t.Errorf("%s: body missing %q", path, want)
			}
		}
	}
}

func TestNotFoundForUnknownPath(t *testing.T) {
	env := newTestServer(t)

	resp, err := http.Get(env.ts.URL + "/nonexistent")
	if err != nil {
		t.Fatalf("GET /nonexistent: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 404 {
		t.Errorf("status: got %d, want 404", resp.StatusCode)
	}
}

func TestFrameEndpoint(t *testing.T) {
	env := newTestServer(t)

	resp, err := http.Get(env.ts.URL + "/frame.png")
	if err != nil {
		t.Fatalf("GET /frame.png: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "image/png" {
		t.Errorf("Content-Type: got %q, want image/png", ct)
	}
	img, err := png.Decode(resp.Body)
	if err != nil {
		t.Fatalf("decode png: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 64 || b.Dy() != 48 {
		t.Errorf("bounds: got %v, want 64x48", b)
	}
}

func TestFrameEndpointWithoutCanvas(t *testing.T) {
	tr := status.NewTracker("", time.Now(), status.Config{})
	srv := New(":0", tr, Options{})
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/frame.png")
	if err != nil {
		t.Fatalf("GET /frame.png: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != 404 {
		t.Errorf("status: got %d, want 404", resp.StatusCode)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestServer(t)
	env.metrics.RecordIncrement("semaphore")

	resp, err := http.Get(env.ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()

	var buf bytes.Buffer
	buf.ReadFrom(resp.Body)
	if !strings.Contains(buf.String(), `test_counter_increments_total{source="semaphore"} 1`) {
		t.Errorf("metrics output missing increment counter:\n%s", buf.String())
	}
}

func TestWebSocketPushesStatus(t *testing.T) {
	env := newTestServer(t)
	env.tracker.SetMode("A")

	url := "ws" + strings.TrimPrefix(env.ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var sj status.StatusJSON
	if err := conn.ReadJSON(&sj); err != nil {
		t.Fatalf("read first message: %v", err)
	}
	if sj.Status.Mode != "A" {
		t.Errorf("first push Mode: got %q, want A", sj.Status.Mode)
	}

	env.tracker.RecordTransition("B")
	deadline := time.Now().Add(5 * time.Second)
	for sj.Status.Mode != "B" && time.Now().Before(deadline) {
		if err := conn.ReadJSON(&sj); err != nil {
			t.Fatalf("read: %v", err)
		}
	}
	if sj.Status.Mode != "B" {
		t.Errorf("push after transition Mode: got %q, want B", sj.Status.Mode)
	}
}

func TestShutdownClosesWebSocket(t *testing.T) {
	env := newTestServer(t)

	url := "ws" + strings.TrimPrefix(env.ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	env.srv.Shutdown(ctx)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseGoingAway) {
				t.Errorf("expected going-away close, got %v", err)
			}
			return
		}
	}
}
