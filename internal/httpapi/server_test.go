package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ent0n29/mockinterview/internal/config"
	"github.com/ent0n29/mockinterview/internal/interview"
	"github.com/ent0n29/mockinterview/internal/llm"
	"github.com/ent0n29/mockinterview/internal/observability"
	"github.com/ent0n29/mockinterview/internal/problem"
	"github.com/ent0n29/mockinterview/internal/session"
	"github.com/ent0n29/mockinterview/internal/voice"
)

func newTestServer(t *testing.T, withEngine bool) (*httptest.Server, *session.Manager) {
	t.Helper()
	cfg := config.Config{
		SessionInactivityTimeout: 2 * time.Minute,
		LLMProvider:              "mock",
		VoiceProvider:            "mock",
	}
	sessions := session.NewManager(cfg.SessionInactivityTimeout)
	reg := prometheus.NewRegistry()
	metrics := observability.NewMetricsWith("test_httpapi", reg, reg)

	var runner Runner
	if withEngine {
		engine, err := interview.NewEngine(interview.Config{Bootstrap: interview.BootstrapModel}, interview.Dependencies{
			Sessions:    sessions,
			Problems:    problem.NewStaticSource(problem.Builtin),
			Generator:   llm.NewMockGenerator(),
			Transcriber: voice.NewMockProvider(),
			Synthesizer: voice.NewMockProvider(),
			Metrics:     metrics,
		})
		if err != nil {
			t.Fatalf("NewEngine() error = %v", err)
		}
		runner = engine
	}

	srv := New(cfg, sessions, runner, metrics, nil)
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return ts, sessions
}

func TestCreateGetAndEndSession(t *testing.T) {
	ts, _ := newTestServer(t, false)

	res, err := http.Post(ts.URL+"/v1/interview/session", "application/json", bytes.NewReader(nil))
	if err != nil {
		t.Fatalf("create session request error = %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d, want %d", res.StatusCode, http.StatusCreated)
	}
	var created session.CreateResponse
	if err := json.NewDecoder(res.Body).Decode(&created); err != nil {
		t.Fatalf("decode create response: %v", err)
	}
	if created.SessionID == "" {
		t.Fatalf("missing session_id in create response: %+v", created)
	}
	if created.InactivityTTLMS != (2 * time.Minute).Milliseconds() {
		t.Fatalf("inactivity_ttl_ms = %d", created.InactivityTTLMS)
	}

	getRes, err := http.Get(ts.URL + "/v1/interview/session/" + created.SessionID)
	if err != nil {
		t.Fatalf("get session request error = %v", err)
	}
	defer getRes.Body.Close()
	if getRes.StatusCode != http.StatusOK {
		t.Fatalf("get status = %d, want %d", getRes.StatusCode, http.StatusOK)
	}
	var status map[string]any
	if err := json.NewDecoder(getRes.Body).Decode(&status); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if status["status"] != "active" {
		t.Fatalf("status = %v, want active", status["status"])
	}
	if _, ok := status["transcript"].([]any); !ok {
		t.Fatalf("transcript missing from status: %+v", status)
	}

	endRes, err := http.Post(ts.URL+"/v1/interview/session/"+created.SessionID+"/end", "application/json", bytes.NewReader(nil))
	if err != nil {
		t.Fatalf("end session request error = %v", err)
	}
	defer endRes.Body.Close()
	if endRes.StatusCode != http.StatusOK {
		t.Fatalf("end status = %d, want %d", endRes.StatusCode, http.StatusOK)
	}
}

func TestUnknownSession(t *testing.T) {
	ts, _ := newTestServer(t, true)

	res, err := http.Get(ts.URL + "/v1/interview/session/missing")
	if err != nil {
		t.Fatalf("GET error = %v", err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusNotFound)
	}

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/interview/ws?session_id=missing"
	_, wsRes, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err == nil {
		t.Fatal("expected dial to fail for unknown session")
	}
	if wsRes == nil || wsRes.StatusCode != http.StatusNotFound {
		t.Fatalf("ws status = %v, want %d", wsRes, http.StatusNotFound)
	}
}

func TestHealthAndReadiness(t *testing.T) {
	ts, _ := newTestServer(t, false)

	res, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz error = %v", err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("healthz status = %d", res.StatusCode)
	}

	res, err = http.Get(ts.URL + "/readyz")
	if err != nil {
		t.Fatalf("GET /readyz error = %v", err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("readyz without engine status = %d, want %d", res.StatusCode, http.StatusServiceUnavailable)
	}
}

func TestMetricsAndPerfEndpoints(t *testing.T) {
	ts, _ := newTestServer(t, false)

	if _, err := http.Post(ts.URL+"/v1/interview/session", "application/json", nil); err != nil {
		t.Fatalf("create session error = %v", err)
	}

	res, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics error = %v", err)
	}
	defer res.Body.Close()
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(res.Body); err != nil {
		t.Fatalf("read metrics: %v", err)
	}
	if !strings.Contains(buf.String(), "test_httpapi_session_events_total") {
		t.Fatalf("metrics output missing session events:\n%s", buf.String())
	}

	perf, err := http.Get(ts.URL + "/v1/perf/latency")
	if err != nil {
		t.Fatalf("GET /v1/perf/latency error = %v", err)
	}
	defer perf.Body.Close()
	var snapshot observability.LatencySnapshot
	if err := json.NewDecoder(perf.Body).Decode(&snapshot); err != nil {
		t.Fatalf("decode perf snapshot: %v", err)
	}
	if snapshot.WindowSize <= 0 {
		t.Fatalf("window_size = %d, want > 0", snapshot.WindowSize)
	}

	reset, err := http.Post(ts.URL+"/v1/perf/latency/reset", "application/json", nil)
	if err != nil {
		t.Fatalf("POST reset error = %v", err)
	}
	reset.Body.Close()
	if reset.StatusCode != http.StatusNoContent {
		t.Fatalf("reset status = %d", reset.StatusCode)
	}
}

func TestRejectsCrossOriginWebsocket(t *testing.T) {
	ts, _ := newTestServer(t, true)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/interview/ws"
	header := http.Header{}
	header.Set("Origin", "https://evil.example")
	_, res, err := websocket.DefaultDialer.Dial(wsURL, header)
	if err == nil {
		t.Fatal("expected cross-origin dial to fail")
	}
	if res == nil || res.StatusCode != http.StatusForbidden {
		t.Fatalf("status = %v, want %d", res, http.StatusForbidden)
	}
}

type wsClient struct {
	t    *testing.T
	conn *websocket.Conn
}

func (c *wsClient) send(v any) {
	c.t.Helper()
	if err := c.conn.WriteJSON(v); err != nil {
		c.t.Fatalf("write: %v", err)
	}
}

// waitFor reads until a message matches msgType and, when given, code or
// state.
func (c *wsClient) waitFor(msgType, field, value string) map[string]any {
	c.t.Helper()
	_ = c.conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	for {
		var msg map[string]any
		if err := c.conn.ReadJSON(&msg); err != nil {
			c.t.Fatalf("waiting for %s: %v", msgType, err)
		}
		if msg["type"] != msgType {
			continue
		}
		if field == "" || msg[field] == value {
			return msg
		}
	}
}

func TestWebsocketInterviewRoundTrip(t *testing.T) {
	ts, sessions := newTestServer(t, true)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/interview/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	c := &wsClient{t: t, conn: conn}

	started := c.waitFor("system_event", "code", "session_started")
	sessionID, _ := started["session_id"].(string)
	if sessionID == "" {
		t.Fatalf("session_started without session id: %+v", started)
	}

	c.send(map[string]any{"type": "bogus"})
	c.waitFor("error_event", "code", "invalid_client_message")

	c.send(map[string]any{"type": "start"})
	c.waitFor("problem", "", "")
	c.waitFor("assistant_audio", "", "")
	c.send(map[string]any{"type": "playback", "state": "started"})
	c.send(map[string]any{"type": "playback", "state": "ended"})
	c.waitFor("turn_state", "state", "user_turn")

	c.send(map[string]any{"type": "utterance", "text": "I would use a hash map"})
	c.waitFor("user_text", "text", "I would use a hash map")
	reply := c.waitFor("assistant_text", "", "")
	if text, _ := reply["text"].(string); !strings.Contains(text, "hash map") {
		t.Fatalf("reply = %q, want it to reference the answer", text)
	}

	transcript, err := sessions.Transcript(sessionID)
	if err != nil {
		t.Fatalf("Transcript() error = %v", err)
	}
	if len(transcript) != 3 {
		t.Fatalf("transcript len = %d, want 3: %+v", len(transcript), transcript)
	}

	c.send(map[string]any{"type": "stop"})
	c.waitFor("system_event", "code", "stopped")

	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, err := sessions.Get(sessionID); err != nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("session still registered after stop")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
