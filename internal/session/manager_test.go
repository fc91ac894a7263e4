package session

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ent0n29/mockinterview/internal/conversation"
)

func TestManagerCreateGetEnd(t *testing.T) {
	m := NewManager(time.Minute)
	s := m.Create()
	if s.ID == "" {
		t.Fatalf("session ID should not be empty")
	}

	got, err := m.Get(s.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Status != StatusActive || got.TurnState != "idle" {
		t.Fatalf("unexpected session state: %+v", got)
	}

	ended, err := m.End(s.ID)
	if err != nil {
		t.Fatalf("End() error = %v", err)
	}
	if ended.Status != StatusEnded {
		t.Fatalf("ended status = %q, want %q", ended.Status, StatusEnded)
	}
	if m.ActiveCount() != 0 {
		t.Fatalf("ActiveCount() = %d, want 0", m.ActiveCount())
	}

	m.Remove(s.ID)
	if _, err := m.Get(s.ID); err != ErrNotFound {
		t.Fatalf("Get() after Remove error = %v, want ErrNotFound", err)
	}
}

func TestManagerAttachIsExclusive(t *testing.T) {
	m := NewManager(time.Minute)
	s := m.Create()

	var stops atomic.Int32
	a := Attachment{
		Stop: func() { stops.Add(1) },
		Transcript: func() []conversation.TranscriptLine {
			return []conversation.TranscriptLine{{Role: conversation.RoleAssistant, Content: "hi"}}
		},
	}
	if err := m.Attach(s.ID, a); err != nil {
		t.Fatalf("Attach() error = %v", err)
	}
	if err := m.Attach(s.ID, a); err != ErrAlreadyAttached {
		t.Fatalf("second Attach() error = %v, want ErrAlreadyAttached", err)
	}
	if err := m.Attach("missing", a); err != ErrNotFound {
		t.Fatalf("Attach(missing) error = %v, want ErrNotFound", err)
	}

	lines, err := m.Transcript(s.ID)
	if err != nil || len(lines) != 1 {
		t.Fatalf("Transcript() = %v, %v", lines, err)
	}

	if _, err := m.End(s.ID); err != nil {
		t.Fatalf("End() error = %v", err)
	}
	if _, err := m.End(s.ID); err != nil {
		t.Fatalf("second End() error = %v", err)
	}
	if stops.Load() != 1 {
		t.Fatalf("Stop called %d times, want 1", stops.Load())
	}
	if err := m.Attach(s.ID, a); err != ErrEnded {
		t.Fatalf("Attach() after End error = %v, want ErrEnded", err)
	}
}

func TestManagerRecordTurnState(t *testing.T) {
	m := NewManager(time.Minute)
	s := m.Create()

	if err := m.SetProblem(s.ID, "two-sum", "Two Sum"); err != nil {
		t.Fatalf("SetProblem() error = %v", err)
	}
	if err := m.RecordTurnState(s.ID, "user_turn", 3); err != nil {
		t.Fatalf("RecordTurnState() error = %v", err)
	}
	if err := m.RecordTurnState(s.ID, "awaiting_model", 2); err != nil {
		t.Fatalf("RecordTurnState() error = %v", err)
	}

	got, _ := m.Get(s.ID)
	if got.ProblemTitle != "Two Sum" || got.TurnState != "awaiting_model" || got.TurnCount != 3 {
		t.Fatalf("unexpected session state: %+v", got)
	}
	if err := m.RecordTurnState("missing", "idle", 0); err != ErrNotFound {
		t.Fatalf("RecordTurnState(missing) error = %v, want ErrNotFound", err)
	}
}

func TestManagerJanitorExpiresInactive(t *testing.T) {
	m := NewManager(30 * time.Millisecond)
	s := m.Create()

	var stopped atomic.Bool
	if err := m.Attach(s.ID, Attachment{Stop: func() { stopped.Store(true) }}); err != nil {
		t.Fatalf("Attach() error = %v", err)
	}
	expired := make(chan string, 1)
	m.SetExpireHook(func(s *Session) { expired <- s.ID })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.StartJanitor(ctx, 10*time.Millisecond)

	select {
	case id := <-expired:
		if id != s.ID {
			t.Fatalf("expired %q, want %q", id, s.ID)
		}
	case <-time.After(time.Second):
		t.Fatalf("session was not expired")
	}
	got, err := m.Get(s.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Status != StatusEnded {
		t.Fatalf("Status = %q, want %q", got.Status, StatusEnded)
	}
	if !stopped.Load() {
		t.Fatalf("live connection was not stopped")
	}
}

func TestManagerActiveIDs(t *testing.T) {
	m := NewManager(time.Minute)
	a := m.Create()
	b := m.Create()
	if _, err := m.End(a.ID); err != nil {
		t.Fatalf("End() error = %v", err)
	}

	ids := m.ActiveIDs()
	if len(ids) != 1 || ids[0] != b.ID {
		t.Fatalf("ActiveIDs() = %v, want [%s]", ids, b.ID)
	}
}
