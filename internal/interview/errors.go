package interview

import (
	"errors"
	"fmt"

	"github.com/ent0n29/mockinterview/internal/reliability"
)

// Collaborator names used as error sources.
const (
	SourceLLM      = "llm"
	SourceTTS      = "tts"
	SourceSTT      = "stt"
	SourceProblems = "problems"
	SourceClient   = "client"
)

var (
	ErrAlreadyStarted = errors.New("interview already started")
	ErrNotStarted     = errors.New("interview not started")
	ErrEnded          = errors.New("interview ended")
)

// ExternalError is a failed call to an outside collaborator. The turn it
// belonged to is abandoned but the session stays usable.
type ExternalError struct {
	Source string
	Err    error
	// Final is set when resending the request cannot redo the failed step.
	Final bool
}

func (e *ExternalError) Error() string {
	return fmt.Sprintf("%s: %v", e.Source, e.Err)
}

func (e *ExternalError) Unwrap() error { return e.Err }

// Retryable reports whether the same request may succeed if sent again.
func (e *ExternalError) Retryable() bool {
	return !e.Final && reliability.IsRetryable(e.Err)
}

func external(source string, err error) error {
	if err == nil {
		return nil
	}
	return &ExternalError{Source: source, Err: err}
}

func errorCode(source string) string {
	switch source {
	case SourceLLM:
		return "llm_failed"
	case SourceTTS:
		return "tts_failed"
	case SourceSTT:
		return "stt_failed"
	case SourceProblems:
		return "problem_unavailable"
	default:
		return "internal_error"
	}
}
