package conversation

import (
	"errors"
	"sync"
	"time"
)

var ErrClosed = errors.New("conversation closed")

// Store is the ordered turn log of one interview session. It is used both as
// model context (Snapshot) and as the candidate-facing transcript.
type Store struct {
	mu     sync.RWMutex
	turns  []Turn
	closed bool
}

func NewStore() *Store {
	return &Store{turns: make([]Turn, 0, 16)}
}

// Append adds a turn at the end of the log. Once Close has been called the
// log is sealed and Append returns ErrClosed.
func (s *Store) Append(t Turn) error {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.turns = append(s.turns, t)
	return nil
}

// Snapshot returns a copy of every turn in insertion order, including the
// hidden system turn.
func (s *Store) Snapshot() []Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Turn, len(s.turns))
	copy(out, s.turns)
	return out
}

// Last returns the most recent turn.
func (s *Store) Last() (Turn, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.turns) == 0 {
		return Turn{}, false
	}
	return s.turns[len(s.turns)-1], true
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.turns)
}

// Transcript returns the visible part of the conversation: every turn except
// system turns.
func (s *Store) Transcript() []TranscriptLine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]TranscriptLine, 0, len(s.turns))
	for _, t := range s.turns {
		if t.Role == RoleSystem {
			continue
		}
		out = append(out, TranscriptLine{Role: t.Role, Content: t.Content})
	}
	return out
}

// Ready reports whether the opening has completed: a system turn followed by
// at least one assistant turn.
func (s *Store) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.turns) < 2 || s.turns[0].Role != RoleSystem {
		return false
	}
	for _, t := range s.turns[1:] {
		if t.Role == RoleAssistant {
			return true
		}
	}
	return false
}

// Close seals the log. Closing twice is a no-op.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

func (s *Store) Closed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}
