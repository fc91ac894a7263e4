package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ent0n29/mockinterview/internal/conversation"
)

type Status string

const (
	StatusActive Status = "active"
	StatusEnded  Status = "ended"
)

var (
	ErrNotFound        = errors.New("session not found")
	ErrAlreadyAttached = errors.New("session already has a live connection")
	ErrEnded           = errors.New("session ended")
)

type Session struct {
	ID             string    `json:"session_id"`
	Status         Status    `json:"status"`
	Connected      bool      `json:"connected"`
	ProblemSlug    string    `json:"problem_slug,omitempty"`
	ProblemTitle   string    `json:"problem_title,omitempty"`
	TurnState      string    `json:"turn_state"`
	TurnCount      int       `json:"turn_count"`
	StartedAt      time.Time `json:"started_at"`
	LastActivityAt time.Time `json:"last_activity_at"`
}

type entry struct {
	session    *Session
	attachment *Attachment
}

// Manager is the registry of interview sessions keyed by id. Each session is
// driven by at most one live connection.
type Manager struct {
	mu                sync.RWMutex
	sessions          map[string]*entry
	inactivityTimeout time.Duration
	onExpire          func(*Session)
}

func NewManager(inactivityTimeout time.Duration) *Manager {
	if inactivityTimeout <= 0 {
		inactivityTimeout = 10 * time.Minute
	}
	return &Manager{
		sessions:          make(map[string]*entry),
		inactivityTimeout: inactivityTimeout,
	}
}

func (m *Manager) InactivityTimeout() time.Duration { return m.inactivityTimeout }

func (m *Manager) SetExpireHook(hook func(*Session)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onExpire = hook
}

func (m *Manager) Create() *Session {
	now := time.Now().UTC()
	s := &Session{
		ID:             uuid.NewString(),
		Status:         StatusActive,
		TurnState:      "idle",
		StartedAt:      now,
		LastActivityAt: now,
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = &entry{session: s}
	return clone(s)
}

func (m *Manager) Get(sessionID string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.sessions[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(e.session), nil
}

// Attach binds a live connection. A session accepts one connection for its
// whole life and none after it ends.
func (m *Manager) Attach(sessionID string, a Attachment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.sessions[sessionID]
	if !ok {
		return ErrNotFound
	}
	if e.session.Status != StatusActive {
		return ErrEnded
	}
	if e.attachment != nil {
		return ErrAlreadyAttached
	}
	e.attachment = &a
	e.session.Connected = true
	e.session.LastActivityAt = time.Now().UTC()
	return nil
}

func (m *Manager) Touch(sessionID string) error {
	return m.update(sessionID, func(s *Session) {})
}

func (m *Manager) SetProblem(sessionID, slug, title string) error {
	return m.update(sessionID, func(s *Session) {
		s.ProblemSlug = slug
		s.ProblemTitle = title
	})
}

// RecordTurnState mirrors the coordinator state and log length for status
// queries.
func (m *Manager) RecordTurnState(sessionID, state string, turns int) error {
	return m.update(sessionID, func(s *Session) {
		s.TurnState = state
		if turns > s.TurnCount {
			s.TurnCount = turns
		}
	})
}

func (m *Manager) Transcript(sessionID string) ([]conversation.TranscriptLine, error) {
	m.mu.RLock()
	e, ok := m.sessions[sessionID]
	var fn func() []conversation.TranscriptLine
	if ok && e.attachment != nil {
		fn = e.attachment.Transcript
	}
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	if fn == nil {
		return []conversation.TranscriptLine{}, nil
	}
	return fn(), nil
}

// End marks the session ended and stops its live connection, if any.
func (m *Manager) End(sessionID string) (*Session, error) {
	m.mu.Lock()
	e, ok := m.sessions[sessionID]
	if !ok {
		m.mu.Unlock()
		return nil, ErrNotFound
	}
	stop := m.endLocked(e, time.Now().UTC())
	out := clone(e.session)
	m.mu.Unlock()

	if stop != nil {
		stop()
	}
	return out, nil
}

// Remove forgets the session entirely.
func (m *Manager) Remove(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, sessionID)
}

func (m *Manager) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.expireInactive()
			}
		}
	}()
}

// ActiveIDs lists sessions that have not ended.
func (m *Manager) ActiveIDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.sessions))
	for id, e := range m.sessions {
		if e.session.Status == StatusActive {
			ids = append(ids, id)
		}
	}
	return ids
}

func (m *Manager) ActiveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for _, e := range m.sessions {
		if e.session.Status == StatusActive {
			count++
		}
	}
	return count
}

func (m *Manager) update(sessionID string, fn func(*Session)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.sessions[sessionID]
	if !ok {
		return ErrNotFound
	}
	fn(e.session)
	e.session.LastActivityAt = time.Now().UTC()
	return nil
}

func (m *Manager) endLocked(e *entry, now time.Time) func() {
	var stop func()
	if e.session.Status == StatusActive && e.attachment != nil {
		stop = e.attachment.Stop
	}
	e.session.Status = StatusEnded
	e.session.Connected = false
	e.session.LastActivityAt = now
	return stop
}

func (m *Manager) expireInactive() {
	now := time.Now().UTC()
	var expired []*Session
	var stops []func()

	m.mu.Lock()
	for _, e := range m.sessions {
		if e.session.Status != StatusActive {
			continue
		}
		if now.Sub(e.session.LastActivityAt) < m.inactivityTimeout {
			continue
		}
		if stop := m.endLocked(e, now); stop != nil {
			stops = append(stops, stop)
		}
		expired = append(expired, clone(e.session))
	}
	hook := m.onExpire
	m.mu.Unlock()

	for _, stop := range stops {
		stop()
	}
	if hook != nil {
		for _, s := range expired {
			hook(s)
		}
	}
}

func clone(s *Session) *Session {
	c := *s
	return &c
}
