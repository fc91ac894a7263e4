package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/ent0n29/mockinterview/internal/protocol"
)

type options struct {
	baseURL     string
	sessions    int
	turns       int
	startDelay  time.Duration
	turnTimeout time.Duration
	texts       []string
	verbose     bool
}

type createSessionResponse struct {
	SessionID string `json:"session_id"`
}

type wsEnvelope struct {
	Type   string `json:"type"`
	Code   string `json:"code,omitempty"`
	Detail string `json:"detail,omitempty"`
	Text   string `json:"text,omitempty"`
	State  string `json:"state,omitempty"`
}

var defaultUtterances = []string{
	"I would start with a brute force solution.",
	"Then I can use a hash map to get linear time.",
	"The space complexity is linear as well.",
	"I think an edge case is an empty input.",
}

func main() {
	cfg, err := parseFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "perfinterview: %v\n", err)
		os.Exit(2)
	}
	latencies, err := run(context.Background(), cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "perfinterview: %v\n", err)
		os.Exit(1)
	}
	s := summarize(latencies)
	fmt.Printf("perfinterview: replies=%d p50=%s p95=%s max=%s\n", s.count, s.p50, s.p95, s.max)
	if err := printServerLatency(cfg.baseURL); err != nil {
		fmt.Fprintf(os.Stderr, "perfinterview: fetch server latency: %v\n", err)
	}
}

func parseFlags(args []string) (options, error) {
	var cfg options
	var textsRaw string
	var startDelayMS int
	var turnTimeoutMS int

	fs := flag.NewFlagSet("perfinterview", flag.ContinueOnError)
	fs.StringVar(&cfg.baseURL, "base-url", "http://127.0.0.1:8080", "interview server base URL")
	fs.IntVar(&cfg.sessions, "sessions", 1, "number of concurrent candidates")
	fs.IntVar(&cfg.turns, "turns", 4, "candidate turns per session")
	fs.IntVar(&startDelayMS, "start-delay-ms", 0, "delay before each candidate starts in milliseconds")
	fs.IntVar(&turnTimeoutMS, "turn-timeout-ms", 20000, "timeout waiting for the floor per turn in milliseconds")
	fs.StringVar(&textsRaw, "texts", "", "utterances separated by '|' (optional)")
	fs.BoolVar(&cfg.verbose, "verbose", false, "print replay progress")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}

	cfg.baseURL = strings.TrimRight(strings.TrimSpace(cfg.baseURL), "/")
	if cfg.baseURL == "" {
		return options{}, fmt.Errorf("base-url is required")
	}
	if cfg.sessions <= 0 {
		return options{}, fmt.Errorf("sessions must be > 0")
	}
	if cfg.turns <= 0 {
		return options{}, fmt.Errorf("turns must be > 0")
	}
	if startDelayMS < 0 {
		startDelayMS = 0
	}
	if turnTimeoutMS < 1000 {
		turnTimeoutMS = 1000
	}
	cfg.startDelay = time.Duration(startDelayMS) * time.Millisecond
	cfg.turnTimeout = time.Duration(turnTimeoutMS) * time.Millisecond

	if strings.TrimSpace(textsRaw) == "" {
		cfg.texts = append([]string(nil), defaultUtterances...)
	} else {
		for _, part := range strings.Split(textsRaw, "|") {
			if t := strings.TrimSpace(part); t != "" {
				cfg.texts = append(cfg.texts, t)
			}
		}
		if len(cfg.texts) == 0 {
			return options{}, fmt.Errorf("texts produced no non-empty utterances")
		}
	}
	return cfg, nil
}

// run drives cfg.sessions candidates at once and returns every observed
// utterance-to-reply latency.
func run(ctx context.Context, cfg options) ([]time.Duration, error) {
	ctx, cancel := context.WithTimeout(ctx, 8*time.Minute)
	defer cancel()

	var (
		mu        sync.Mutex
		latencies []time.Duration
	)
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < cfg.sessions; i++ {
		g.Go(func() error {
			got, err := candidate(gctx, cfg, i)
			mu.Lock()
			latencies = append(latencies, got...)
			mu.Unlock()
			if err != nil {
				return fmt.Errorf("candidate %d: %w", i, err)
			}
			return nil
		})
	}
	err := g.Wait()
	return latencies, err
}

// candidate plays one interview: it plays back every clip instantly and
// answers whenever it gets the floor.
func candidate(ctx context.Context, cfg options, idx int) ([]time.Duration, error) {
	httpClient := &http.Client{Timeout: 30 * time.Second}
	sessionID, err := createSession(ctx, httpClient, cfg.baseURL)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	defer func() {
		_ = endSession(context.Background(), httpClient, cfg.baseURL, sessionID)
	}()

	wsURL, err := wsURLForSession(cfg.baseURL, sessionID)
	if err != nil {
		return nil, fmt.Errorf("build ws URL: %w", err)
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("open websocket: %w", err)
	}
	defer conn.Close()

	if cfg.startDelay > 0 {
		time.Sleep(cfg.startDelay)
	}
	if err := conn.WriteJSON(protocol.Start{Type: protocol.TypeStart}); err != nil {
		return nil, fmt.Errorf("send start: %w", err)
	}

	var (
		latencies []time.Duration
		sent      int
		submitted time.Time
	)
	for {
		_ = conn.SetReadDeadline(time.Now().Add(cfg.turnTimeout))
		_, data, err := conn.ReadMessage()
		if err != nil {
			return latencies, fmt.Errorf("ws read after %d turns: %w", sent, err)
		}
		var env wsEnvelope
		if err := json.Unmarshal(data, &env); err != nil {
			continue
		}

		switch protocol.MessageType(env.Type) {
		case protocol.TypeAssistantText:
			if !submitted.IsZero() {
				latencies = append(latencies, time.Since(submitted))
				submitted = time.Time{}
			}
			if cfg.verbose {
				fmt.Printf("perfinterview[%d]: interviewer %q\n", idx, env.Text)
			}
		case protocol.TypeAssistantAudio:
			for _, state := range []string{protocol.PlaybackStarted, protocol.PlaybackEnded} {
				if err := conn.WriteJSON(protocol.Playback{Type: protocol.TypePlayback, State: state}); err != nil {
					return latencies, fmt.Errorf("send playback: %w", err)
				}
			}
		case protocol.TypeTurnState:
			if env.State != "user_turn" {
				continue
			}
			if sent == cfg.turns {
				if err := conn.WriteJSON(protocol.Stop{Type: protocol.TypeStop}); err != nil {
					return latencies, fmt.Errorf("send stop: %w", err)
				}
				continue
			}
			text := cfg.texts[sent%len(cfg.texts)]
			if err := conn.WriteJSON(protocol.Utterance{Type: protocol.TypeUtterance, Text: text}); err != nil {
				return latencies, fmt.Errorf("send utterance: %w", err)
			}
			submitted = time.Now()
			sent++
		case protocol.TypeErrorEvent:
			fmt.Fprintf(os.Stderr, "perfinterview[%d]: error_event code=%s detail=%s\n", idx, env.Code, env.Detail)
		case protocol.TypeSystemEvent:
			if env.Code == protocol.EventStopped {
				return latencies, nil
			}
		}
	}
}

func createSession(ctx context.Context, client *http.Client, baseURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/v1/interview/session", nil)
	if err != nil {
		return "", err
	}
	res, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer res.Body.Close()
	body, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return "", err
	}
	if res.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("HTTP %d: %s", res.StatusCode, strings.TrimSpace(string(body)))
	}

	var out createSessionResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", err
	}
	if strings.TrimSpace(out.SessionID) == "" {
		return "", fmt.Errorf("missing session_id in response")
	}
	return out.SessionID, nil
}

func endSession(ctx context.Context, client *http.Client, baseURL, sessionID string) error {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/v1/interview/session/"+url.PathEscape(sessionID)+"/end", nil)
	if err != nil {
		return err
	}
	res, err := client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(res.Body, 1<<20))
	return nil
}

func wsURLForSession(baseURL, sessionID string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return "", err
	}
	switch strings.ToLower(u.Scheme) {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported base-url scheme %q", u.Scheme)
	}
	if strings.TrimSpace(u.Host) == "" {
		return "", fmt.Errorf("base-url host is required")
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/v1/interview/ws"
	q := u.Query()
	q.Set("session_id", sessionID)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

type latencySummary struct {
	count int
	p50   time.Duration
	p95   time.Duration
	max   time.Duration
}

func summarize(samples []time.Duration) latencySummary {
	if len(samples) == 0 {
		return latencySummary{}
	}
	sorted := append([]time.Duration(nil), samples...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	at := func(q float64) time.Duration {
		idx := int(q*float64(len(sorted)-1) + 0.5)
		return sorted[idx]
	}
	return latencySummary{
		count: len(sorted),
		p50:   at(0.50),
		p95:   at(0.95),
		max:   sorted[len(sorted)-1],
	}
}

func printServerLatency(baseURL string) error {
	res, err := http.Get(baseURL + "/v1/perf/latency")
	if err != nil {
		return err
	}
	defer res.Body.Close()
	body, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return err
	}
	fmt.Printf("perfinterview: server stages %s\n", strings.TrimSpace(string(body)))
	return nil
}
