package main

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ent0n29/mockinterview/internal/config"
	"github.com/ent0n29/mockinterview/internal/httpapi"
	"github.com/ent0n29/mockinterview/internal/interview"
	"github.com/ent0n29/mockinterview/internal/llm"
	"github.com/ent0n29/mockinterview/internal/observability"
	"github.com/ent0n29/mockinterview/internal/problem"
	"github.com/ent0n29/mockinterview/internal/session"
	"github.com/ent0n29/mockinterview/internal/voice"
)

func TestParseFlags(t *testing.T) {
	cfg, err := parseFlags([]string{"-base-url", "http://localhost:9000/", "-sessions", "3", "-texts", " one | | two "})
	if err != nil {
		t.Fatalf("parseFlags() error = %v", err)
	}
	if cfg.baseURL != "http://localhost:9000" {
		t.Fatalf("baseURL = %q", cfg.baseURL)
	}
	if cfg.sessions != 3 || len(cfg.texts) != 2 || cfg.texts[1] != "two" {
		t.Fatalf("unexpected options: %+v", cfg)
	}

	if _, err := parseFlags([]string{"-turns", "0"}); err == nil {
		t.Fatal("expected error for zero turns")
	}
}

func TestWSURLForSession(t *testing.T) {
	got, err := wsURLForSession("https://interview.example/base", "abc")
	if err != nil {
		t.Fatalf("wsURLForSession() error = %v", err)
	}
	if want := "wss://interview.example/base/v1/interview/ws?session_id=abc"; got != want {
		t.Fatalf("url = %q, want %q", got, want)
	}
	if _, err := wsURLForSession("ftp://x", "abc"); err == nil {
		t.Fatal("expected error for unsupported scheme")
	}
}

func TestSummarize(t *testing.T) {
	var samples []time.Duration
	for i := 1; i <= 20; i++ {
		samples = append(samples, time.Duration(i)*time.Millisecond)
	}
	s := summarize(samples)
	if s.count != 20 || s.max != 20*time.Millisecond {
		t.Fatalf("summary = %+v", s)
	}
	if s.p50 != 11*time.Millisecond || s.p95 != 19*time.Millisecond {
		t.Fatalf("p50=%s p95=%s", s.p50, s.p95)
	}
	if (summarize(nil) != latencySummary{}) {
		t.Fatal("empty input should give a zero summary")
	}
}

func TestRunAgainstMockServer(t *testing.T) {
	sessions := session.NewManager(time.Minute)
	reg := prometheus.NewRegistry()
	metrics := observability.NewMetricsWith("test_perf", reg, reg)
	engine, err := interview.NewEngine(interview.Config{}, interview.Dependencies{
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
	srv := httpapi.New(config.Config{}, sessions, engine, metrics, nil)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	latencies, err := run(context.Background(), options{
		baseURL:     ts.URL,
		sessions:    2,
		turns:       2,
		turnTimeout: 5 * time.Second,
		texts:       defaultUtterances,
	})
	if err != nil {
		t.Fatalf("run() error = %v", err)
	}
	if len(latencies) != 4 {
		t.Fatalf("latencies = %d, want 4", len(latencies))
	}
}
