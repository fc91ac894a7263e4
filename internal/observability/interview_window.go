package observability

import (
	"maps"
	"math"
	"slices"
	"sync"
	"time"
)

// Interview stages timed by the engine.
const (
	StageTranscribe      = "audio_to_transcript"
	StageUtteranceToText = "utterance_to_reply_text"
	StageReplyToAudio    = "reply_text_to_audio"
	StageTurnTotal       = "turn_total"
	StageOpening         = "start_to_opening"
)

// Outcomes for a finished utterance or transcript.
const (
	InputAccepted      = "accepted"
	InputNoise         = "noise"
	InputEcho          = "echo"
	InputCaptureClosed = "capture_closed"
)

const (
	IndicatorSilentReply      = "silent_reply"
	IndicatorReplyRetried     = "reply_retried"
	IndicatorRetriesExhausted = "llm_retries_exhausted"
)

// stageBudgets is the latency a candidate tolerates before the pause feels
// like the interviewer has stalled.
var stageBudgets = map[string]time.Duration{
	StageTranscribe:      1500 * time.Millisecond,
	StageUtteranceToText: 2500 * time.Millisecond,
	StageReplyToAudio:    1200 * time.Millisecond,
	StageTurnTotal:       4 * time.Second,
	StageOpening:         5 * time.Second,
}

type StageLatency struct {
	Stage      string  `json:"stage"`
	Samples    int     `json:"samples"`
	LastMS     float64 `json:"last_ms"`
	MeanMS     float64 `json:"mean_ms"`
	P50MS      float64 `json:"p50_ms"`
	P90MS      float64 `json:"p90_ms"`
	MaxMS      float64 `json:"max_ms"`
	BudgetMS   float64 `json:"budget_ms,omitempty"`
	OverBudget int     `json:"over_budget"`
}

type InputStats struct {
	Accepted int            `json:"accepted"`
	Dropped  map[string]int `json:"dropped,omitempty"`
	DropRate float64        `json:"drop_rate"`
}

type QueueStats struct {
	LastDepth int `json:"last_depth"`
	PeakDepth int `json:"peak_depth"`
}

// LatencySnapshot is served on /v1/perf/latency.
type LatencySnapshot struct {
	GeneratedAt time.Time      `json:"generated_at"`
	WindowSize  int            `json:"window_size"`
	Stages      []StageLatency `json:"stages"`
	Inputs      InputStats     `json:"inputs"`
	Queue       QueueStats     `json:"queue"`
	Indicators  map[string]int `json:"indicators,omitempty"`
}

// interviewWindow keeps the latest samples per stage and running counts of
// what happened to candidate input since the last reset.
type interviewWindow struct {
	mu   sync.Mutex
	size int

	samples    map[string][]time.Duration
	overBudget map[string]int
	accepted   int
	dropped    map[string]int
	queueLast  int
	queuePeak  int
	indicators map[string]int
}

func newInterviewWindow(size int) *interviewWindow {
	if size <= 0 {
		size = 256
	}
	w := &interviewWindow{size: size}
	w.clear()
	return w
}

func (w *interviewWindow) clear() {
	w.samples = make(map[string][]time.Duration)
	w.overBudget = make(map[string]int)
	w.accepted = 0
	w.dropped = make(map[string]int)
	w.queueLast, w.queuePeak = 0, 0
	w.indicators = make(map[string]int)
}

func (w *interviewWindow) stage(stage string, d time.Duration) {
	if stage == "" || d < 0 {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	s := append(w.samples[stage], d)
	if len(s) > w.size {
		s = s[len(s)-w.size:]
	}
	w.samples[stage] = s
	if budget, ok := stageBudgets[stage]; ok && d > budget {
		w.overBudget[stage]++
	}
}

func (w *interviewWindow) input(outcome string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if outcome == InputAccepted {
		w.accepted++
		return
	}
	w.dropped[outcome]++
}

func (w *interviewWindow) queueDepth(n int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.queueLast = n
	w.queuePeak = max(w.queuePeak, n)
}

func (w *interviewWindow) indicator(name string) {
	if name == "" {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.indicators[name]++
}

func (w *interviewWindow) reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.clear()
}

func (w *interviewWindow) snapshot() LatencySnapshot {
	w.mu.Lock()
	defer w.mu.Unlock()

	snap := LatencySnapshot{
		GeneratedAt: time.Now().UTC(),
		WindowSize:  w.size,
		Stages:      make([]StageLatency, 0, len(w.samples)),
		Queue:       QueueStats{LastDepth: w.queueLast, PeakDepth: w.queuePeak},
	}
	for _, stage := range slices.Sorted(maps.Keys(w.samples)) {
		s := slices.Clone(w.samples[stage])
		if len(s) == 0 {
			continue
		}
		last := s[len(s)-1]
		slices.Sort(s)
		var sum time.Duration
		for _, d := range s {
			sum += d
		}
		snap.Stages = append(snap.Stages, StageLatency{
			Stage:      stage,
			Samples:    len(s),
			LastMS:     millis(last),
			MeanMS:     millis(sum / time.Duration(len(s))),
			P50MS:      millis(nearestRank(s, 0.50)),
			P90MS:      millis(nearestRank(s, 0.90)),
			MaxMS:      millis(s[len(s)-1]),
			BudgetMS:   millis(stageBudgets[stage]),
			OverBudget: w.overBudget[stage],
		})
	}

	dropped := 0
	for _, n := range w.dropped {
		dropped += n
	}
	snap.Inputs = InputStats{Accepted: w.accepted}
	if dropped > 0 {
		snap.Inputs.Dropped = maps.Clone(w.dropped)
		snap.Inputs.DropRate = math.Round(float64(dropped)/float64(dropped+w.accepted)*1000) / 1000
	}
	if len(w.indicators) > 0 {
		snap.Indicators = maps.Clone(w.indicators)
	}
	return snap
}

// nearestRank expects sorted input.
func nearestRank(sorted []time.Duration, q float64) time.Duration {
	idx := int(math.Ceil(q*float64(len(sorted)))) - 1
	return sorted[min(max(idx, 0), len(sorted)-1)]
}

func millis(d time.Duration) float64 {
	return math.Round(float64(d.Microseconds())/10) / 100
}

