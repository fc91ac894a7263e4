package session

import (
	"time"

	"github.com/ent0n29/mockinterview/internal/conversation"
)

// CreateResponse returns created session metadata.
type CreateResponse struct {
	SessionID       string    `json:"session_id"`
	Status          Status    `json:"status"`
	StartedAt       time.Time `json:"started_at"`
	LastActivityAt  time.Time `json:"last_activity_at"`
	InactivityTTLMS int64     `json:"inactivity_ttl_ms"`
}

// Attachment binds a live connection to a registered session.
type Attachment struct {
	// Stop ends the live interview. It must be safe to call more than once.
	Stop func()
	// Transcript returns the visible turns so far.
	Transcript func() []conversation.TranscriptLine
}
