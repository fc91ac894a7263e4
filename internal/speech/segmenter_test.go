package speech

import (
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	clock   *fakeClock
	at      time.Time
	f       func()
	stopped bool
	fired   bool
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, at: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

// Advance moves time forward and runs due callbacks in deadline order.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due []*fakeTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fired && !t.at.After(c.now) {
			t.fired = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()

	sort.Slice(due, func(i, j int) bool { return due[i].at.Before(due[j].at) })
	for _, t := range due {
		t.f()
	}
}

type collector struct {
	mu  sync.Mutex
	got []Utterance
}

func (c *collector) emit(u Utterance) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.got = append(c.got, u)
}

func (c *collector) all() []Utterance {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Utterance(nil), c.got...)
}

func TestSegmenterDebouncesFragmentsIntoOneUtterance(t *testing.T) {
	clock := newFakeClock()
	out := &collector{}
	s := NewSegmenter(5*time.Second, out.emit, WithClock(clock))

	require.True(t, s.Push("I would"))
	clock.Advance(2 * time.Second)
	assert.Empty(t, out.all())

	require.True(t, s.Push("use a hash map"))
	clock.Advance(4 * time.Second)
	assert.Empty(t, out.all(), "countdown restarts on each fragment")

	clock.Advance(time.Second)
	got := out.all()
	require.Len(t, got, 1)
	assert.Equal(t, "I would use a hash map", got[0].Text)
	assert.Equal(t, 2, got[0].Fragments)
	assert.Equal(t, ReasonPause, got[0].Reason)
	assert.Empty(t, s.Pending())

	clock.Advance(time.Minute)
	assert.Len(t, out.all(), 1, "one utterance per quiescent period")
}

func TestSegmenterManyFastFragments(t *testing.T) {
	clock := newFakeClock()
	out := &collector{}
	s := NewSegmenter(time.Second, out.emit, WithClock(clock))

	words := []string{"first", "we", "sort", "the", "array", "then", "scan"}
	for _, w := range words {
		s.Push(w)
		clock.Advance(900 * time.Millisecond)
	}
	assert.Empty(t, out.all())

	clock.Advance(100 * time.Millisecond)
	got := out.all()
	require.Len(t, got, 1)
	assert.Equal(t, "first we sort the array then scan", got[0].Text)
}

func TestSegmenterIgnoresBlankFragments(t *testing.T) {
	clock := newFakeClock()
	out := &collector{}
	s := NewSegmenter(time.Second, out.emit, WithClock(clock))

	assert.False(t, s.Push("   "))
	_, pending := s.Deadline()
	assert.False(t, pending)
	clock.Advance(time.Minute)
	assert.Empty(t, out.all())
}

func TestSegmenterTouchExtendsCountdown(t *testing.T) {
	clock := newFakeClock()
	out := &collector{}
	s := NewSegmenter(5*time.Second, out.emit, WithClock(clock))

	assert.False(t, s.Touch(), "nothing pending to extend")

	s.Push("let me write the loop")
	clock.Advance(4 * time.Second)
	require.True(t, s.Touch())
	deadline, ok := s.Deadline()
	require.True(t, ok)
	assert.Equal(t, clock.Now().Add(5*time.Second), deadline)

	clock.Advance(4 * time.Second)
	assert.Empty(t, out.all())
	clock.Advance(time.Second)
	require.Len(t, out.all(), 1)
}

func TestSegmenterFlushAndDiscard(t *testing.T) {
	clock := newFakeClock()
	out := &collector{}
	s := NewSegmenter(5*time.Second, out.emit, WithClock(clock))

	s.Push("two pointers")
	u, ok := s.Flush()
	require.True(t, ok)
	assert.Equal(t, "two pointers", u.Text)
	assert.Equal(t, ReasonForced, u.Reason)

	clock.Advance(10 * time.Second)
	assert.Len(t, out.all(), 1, "flush cancels the pending countdown")

	_, ok = s.Flush()
	assert.False(t, ok, "empty flush emits nothing")

	s.Push("scratch that")
	s.Discard()
	clock.Advance(10 * time.Second)
	assert.Len(t, out.all(), 1)
}

func TestSegmenterImmediateMode(t *testing.T) {
	out := &collector{}
	s := NewSegmenter(0, out.emit)

	s.Push("chunk one")
	s.Push("chunk two")
	got := out.all()
	require.Len(t, got, 2)
	assert.Equal(t, "chunk one", got[0].Text)
	assert.Equal(t, ReasonImmediate, got[1].Reason)
}

func TestSegmenterCloseCancelsTimer(t *testing.T) {
	clock := newFakeClock()
	out := &collector{}
	s := NewSegmenter(time.Second, out.emit, WithClock(clock))

	s.Push("about to hang up")
	s.Close()
	s.Close()
	clock.Advance(time.Minute)
	assert.Empty(t, out.all())
	assert.False(t, s.Push("after close"))
}

func TestSegmenterStaleTimerCallbackIsNoop(t *testing.T) {
	clock := newFakeClock()
	out := &collector{}
	s := NewSegmenter(time.Second, out.emit, WithClock(clock))

	s.Push("hello world")
	stale := clock.timers[0]
	s.Push("again")
	// A callback that was already running when it got rescheduled.
	stale.f()
	assert.Empty(t, out.all())

	clock.Advance(time.Second)
	require.Len(t, out.all(), 1)
	assert.Equal(t, "hello world again", out.all()[0].Text)
}
