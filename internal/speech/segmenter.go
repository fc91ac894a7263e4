package speech

import (
	"strings"
	"sync"
	"time"
)

// DefaultPauseThreshold is the trailing silence after which buffered speech
// is submitted in editor mode.
const DefaultPauseThreshold = 5 * time.Second

// Flush reasons reported on emitted utterances.
const (
	ReasonPause     = "pause"
	ReasonImmediate = "immediate"
	ReasonForced    = "forced"
)

// Utterance is a complete block of user speech ready for submission.
type Utterance struct {
	Text      string
	Fragments int
	Reason    string
}

// Segmenter turns finalized recognition fragments into utterances using a
// trailing-silence countdown. Every fragment restarts the countdown; when it
// expires the buffered text is emitted once and the buffer is cleared.
//
// A zero threshold emits every fragment immediately (streaming-audio mode).
// The emit callback runs outside the segmenter's state lock but is serialized;
// it must not call back into the segmenter.
type Segmenter struct {
	clock     Clock
	threshold time.Duration
	emit      func(Utterance)

	emitMu sync.Mutex

	mu       sync.Mutex
	parts    []string
	timer    Timer
	deadline time.Time
	gen      uint64
	closed   bool
}

type SegmenterOption func(*Segmenter)

func WithClock(c Clock) SegmenterOption {
	return func(s *Segmenter) {
		if c != nil {
			s.clock = c
		}
	}
}

func NewSegmenter(threshold time.Duration, emit func(Utterance), opts ...SegmenterOption) *Segmenter {
	if threshold < 0 {
		threshold = 0
	}
	s := &Segmenter{
		clock:     SystemClock,
		threshold: threshold,
		emit:      emit,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Segmenter) Threshold() time.Duration { return s.threshold }

// Push appends a fragment to the buffer and restarts the countdown. Blank
// fragments are ignored. It reports whether the fragment was accepted.
func (s *Segmenter) Push(fragment string) bool {
	fragment = strings.TrimSpace(fragment)
	if fragment == "" {
		return false
	}

	if s.threshold <= 0 {
		s.emitMu.Lock()
		defer s.emitMu.Unlock()
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return false
		}
		s.parts = append(s.parts, fragment)
		u, ok := s.takeLocked(ReasonImmediate)
		s.mu.Unlock()
		if ok {
			s.deliver(u)
		}
		return true
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.parts = append(s.parts, fragment)
	s.scheduleLocked()
	return true
}

// Touch restarts a pending countdown without adding text. Editor activity
// uses it: the candidate is still in turn while typing.
func (s *Segmenter) Touch() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.timer == nil {
		return false
	}
	s.scheduleLocked()
	return true
}

// Flush emits whatever is buffered right away.
func (s *Segmenter) Flush() (Utterance, bool) {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()

	s.mu.Lock()
	s.cancelLocked()
	u, ok := s.takeLocked(ReasonForced)
	s.mu.Unlock()
	if ok {
		s.deliver(u)
	}
	return u, ok
}

// Discard drops the buffer and any pending countdown without emitting.
func (s *Segmenter) Discard() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelLocked()
	s.parts = nil
}

// Close cancels the countdown and rejects further fragments. Safe to call
// more than once.
func (s *Segmenter) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.cancelLocked()
	s.parts = nil
}

// Pending returns the buffered, not yet submitted text.
func (s *Segmenter) Pending() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return strings.Join(s.parts, " ")
}

// Deadline returns when the buffer will auto-submit if left untouched.
func (s *Segmenter) Deadline() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer == nil {
		return time.Time{}, false
	}
	return s.deadline, true
}

func (s *Segmenter) scheduleLocked() {
	s.cancelLocked()
	s.gen++
	gen := s.gen
	s.deadline = s.clock.Now().Add(s.threshold)
	s.timer = s.clock.AfterFunc(s.threshold, func() { s.fire(gen) })
}

// cancelLocked stops the countdown. Stopping a timer that already fired is
// harmless: the generation check in fire discards stale callbacks.
func (s *Segmenter) cancelLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.gen++
	s.deadline = time.Time{}
}

func (s *Segmenter) fire(gen uint64) {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()

	s.mu.Lock()
	if s.closed || gen != s.gen {
		s.mu.Unlock()
		return
	}
	s.timer = nil
	s.deadline = time.Time{}
	u, ok := s.takeLocked(ReasonPause)
	s.mu.Unlock()
	if ok {
		s.deliver(u)
	}
}

func (s *Segmenter) takeLocked(reason string) (Utterance, bool) {
	n := len(s.parts)
	text := strings.TrimSpace(strings.Join(s.parts, " "))
	s.parts = nil
	if text == "" {
		return Utterance{}, false
	}
	return Utterance{Text: text, Fragments: n, Reason: reason}, true
}

func (s *Segmenter) deliver(u Utterance) {
	if s.emit != nil {
		s.emit(u)
	}
}
