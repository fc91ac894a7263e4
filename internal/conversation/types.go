package conversation

import "time"

// Role tags who produced a turn.
type Role string

const (
	RoleSystem    Role = "system"
	RoleAssistant Role = "assistant"
	RoleUser      Role = "user"
)

// Turn is a single role-tagged message. It is never modified after Append.
type Turn struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// TranscriptLine is a turn as shown to the candidate.
type TranscriptLine struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}
