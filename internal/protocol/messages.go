package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// MessageType identifies websocket payload variants.
type MessageType string

const (
	TypeStart          MessageType = "start"
	TypeUtterance      MessageType = "utterance"
	TypeSpeechFragment MessageType = "speech_fragment"
	TypeAudioChunk     MessageType = "audio_chunk"
	TypeEditorActivity MessageType = "editor_activity"
	TypePlayback       MessageType = "playback"
	TypeStop           MessageType = "stop"

	TypeAssistantText  MessageType = "assistant_text"
	TypeAssistantAudio MessageType = "assistant_audio"
	TypeUserText       MessageType = "user_text"
	TypeSpeakingState  MessageType = "speaking_state"
	TypeTurnState      MessageType = "turn_state"
	TypeProblem        MessageType = "problem"
	TypeSystemEvent    MessageType = "system_event"
	TypeErrorEvent     MessageType = "error_event"
)

const (
	PlaybackStarted = "started"
	PlaybackEnded   = "ended"
)

// System event codes.
const (
	EventSessionStarted = "session_started"
	EventTimeUp         = "time_up"
	EventStopped        = "stopped"
	EventStopPlayback   = "stop_playback"
)

var ErrUnsupportedType = errors.New("unsupported message type")

type Envelope struct {
	Type MessageType `json:"type"`
}

// MaxDurationMinutes bounds the interview length a client may request.
const MaxDurationMinutes = 24 * 60

type Start struct {
	Type            MessageType `json:"type"`
	DurationMinutes int         `json:"duration_minutes,omitempty"`
}

type Utterance struct {
	Type MessageType `json:"type"`
	Text string      `json:"text"`
}

type SpeechFragment struct {
	Type MessageType `json:"type"`
	Text string      `json:"text"`
}

type AudioChunk struct {
	Type        MessageType `json:"type"`
	AudioBase64 string      `json:"audio_base64"`
	Format      string      `json:"format,omitempty"`
}

type EditorActivity struct {
	Type MessageType `json:"type"`
	// Code is nil when the client only signals typing.
	Code *string `json:"code,omitempty"`
}

type Playback struct {
	Type  MessageType `json:"type"`
	State string      `json:"state"`
}

type Stop struct {
	Type MessageType `json:"type"`
}

type AssistantText struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	Text      string      `json:"text"`
	Display   string      `json:"display"`
}

type AssistantAudio struct {
	Type        MessageType `json:"type"`
	SessionID   string      `json:"session_id"`
	AudioBase64 string      `json:"audio_base64"`
	Format      string      `json:"format"`
}

type UserText struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	Text      string      `json:"text"`
}

type SpeakingState struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	Speaking  bool        `json:"speaking"`
}

type TurnState struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	State     string      `json:"state"`
	Listening bool        `json:"listening"`
}

type ProblemInfo struct {
	Type       MessageType `json:"type"`
	SessionID  string      `json:"session_id"`
	Title      string      `json:"title"`
	Difficulty string      `json:"difficulty"`
	Question   string      `json:"question"`
}

type SystemEvent struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	Code      string      `json:"code"`
	Detail    string      `json:"detail,omitempty"`
}

type ErrorEvent struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	Code      string      `json:"code"`
	Source    string      `json:"source"`
	Retryable bool        `json:"retryable"`
	Detail    string      `json:"detail"`
}

func ParseClientMessage(raw []byte) (any, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("invalid envelope: %w", err)
	}

	switch env.Type {
	case TypeStart:
		var msg Start
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if msg.DurationMinutes < 0 {
			return nil, errors.New("invalid start: negative duration")
		}
		if msg.DurationMinutes > MaxDurationMinutes {
			return nil, fmt.Errorf("invalid start: duration over %d minutes", MaxDurationMinutes)
		}
		return msg, nil
	case TypeUtterance:
		var msg Utterance
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		return msg, nil
	case TypeSpeechFragment:
		var msg SpeechFragment
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		return msg, nil
	case TypeAudioChunk:
		var msg AudioChunk
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if msg.AudioBase64 == "" {
			return nil, errors.New("invalid audio_chunk")
		}
		return msg, nil
	case TypeEditorActivity:
		var msg EditorActivity
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		return msg, nil
	case TypePlayback:
		var msg Playback
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		msg.State = strings.ToLower(strings.TrimSpace(msg.State))
		if msg.State != PlaybackStarted && msg.State != PlaybackEnded {
			return nil, errors.New("invalid playback state")
		}
		return msg, nil
	case TypeStop:
		return Stop{Type: TypeStop}, nil
	default:
		return nil, ErrUnsupportedType
	}
}
