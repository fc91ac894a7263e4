package turn

import (
	"sync"

	"go.uber.org/zap"
)

// State is whose turn it is to speak.
type State string

const (
	StateIdle          State = "idle"
	StateBotSpeaking   State = "bot_speaking"
	StateUserTurn      State = "user_turn"
	StateAwaitingModel State = "awaiting_model"
	StateEnded         State = "ended"
)

// Event names reported on transitions.
const (
	EventStart              = "start"
	EventAudioQueued        = "audio_queued"
	EventPlaybackStarted    = "playback_started"
	EventPlaybackEnded      = "playback_ended"
	EventUtteranceSubmitted = "utterance_submitted"
	EventReplyReady         = "reply_ready"
	EventReplyFailed        = "reply_failed"
	EventOpeningDone        = "opening_done"
	EventStop               = "stop"
)

// Recognizer is the speech capture the coordinator switches on and off.
type Recognizer interface {
	StartRecognition() error
	StopRecognition() error
}

// Player is the bot audio output.
type Player interface {
	Speaking() bool
	StopPlayback() error
}

type Transition struct {
	From  State
	To    State
	Event string
}

// Status is a point-in-time view of the coordinator.
type Status struct {
	State       State `json:"state"`
	Playing     bool  `json:"playing"`
	QueuedAudio int   `json:"queued_audio"`
	InFlight    bool  `json:"in_flight"`
	Listening   bool  `json:"listening"`
}

// Coordinator is the single source of truth for who may capture speech.
// The state is derived from what is outstanding: any queued or playing bot
// audio means BotSpeaking, an outstanding model call means AwaitingModel, and
// only when neither holds is it the user's turn. Capture runs only in
// UserTurn.
type Coordinator struct {
	notifyMu sync.Mutex

	mu          sync.Mutex
	started     bool
	opening     bool
	ended       bool
	playing     bool
	queuedAudio int
	inFlight    bool
	listening   bool

	recognizer Recognizer
	player     Player
	onChange   func(Transition)
	logger     *zap.Logger
}

type Option func(*Coordinator)

func WithRecognizer(r Recognizer) Option { return func(c *Coordinator) { c.recognizer = r } }

func WithPlayer(p Player) Option { return func(c *Coordinator) { c.player = p } }

// WithOnChange registers a callback for state changes. Callbacks are
// delivered in transition order and must not call back into the coordinator.
func WithOnChange(fn func(Transition)) Option { return func(c *Coordinator) { c.onChange = fn } }

func WithLogger(l *zap.Logger) Option {
	return func(c *Coordinator) {
		if l != nil {
			c.logger = l
		}
	}
}

func NewCoordinator(opts ...Option) *Coordinator {
	c := &Coordinator{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start begins the interview opening. Capture stays off until the opening
// audio has played. It returns false if the session has ended or an opening
// is already running.
func (c *Coordinator) Start() bool {
	return c.apply(EventStart, func() bool {
		if c.ended || c.opening {
			return false
		}
		c.started = true
		c.opening = true
		return true
	})
}

// OpeningDone marks the end of the opening turns, successful or not.
func (c *Coordinator) OpeningDone() {
	c.apply(EventOpeningDone, func() bool {
		if !c.opening {
			return false
		}
		c.opening = false
		return true
	})
}

// AudioQueued records a bot clip sent for playback.
func (c *Coordinator) AudioQueued() {
	c.apply(EventAudioQueued, func() bool {
		if !c.active() {
			return false
		}
		c.queuedAudio++
		return true
	})
}

func (c *Coordinator) PlaybackStarted() {
	c.apply(EventPlaybackStarted, func() bool {
		if !c.active() {
			return false
		}
		c.playing = true
		return true
	})
}

// PlaybackEnded is the normal way back to the user's turn.
func (c *Coordinator) PlaybackEnded() {
	c.apply(EventPlaybackEnded, func() bool {
		if !c.active() {
			return false
		}
		if !c.playing && c.queuedAudio == 0 {
			return false
		}
		c.playing = false
		if c.queuedAudio > 0 {
			c.queuedAudio--
		}
		return true
	})
}

// UtteranceSubmitted disables capture the moment a user utterance is handed
// to the model, before any reply exists.
func (c *Coordinator) UtteranceSubmitted() bool {
	return c.apply(EventUtteranceSubmitted, func() bool {
		if !c.active() {
			return false
		}
		c.inFlight = true
		return true
	})
}

// ReplyReady clears the outstanding model call. With audio the bot keeps the
// floor until playback ends; without audio the floor returns to the user.
func (c *Coordinator) ReplyReady(hasAudio bool) {
	c.apply(EventReplyReady, func() bool {
		if !c.active() {
			return false
		}
		c.inFlight = false
		if hasAudio {
			c.queuedAudio++
		}
		return true
	})
}

// ReplyFailed clears the outstanding model call after an external failure so
// the user can retry.
func (c *Coordinator) ReplyFailed() {
	c.apply(EventReplyFailed, func() bool {
		if !c.active() {
			return false
		}
		c.inFlight = false
		return true
	})
}

// StartRecognition turns capture on. Overlapping starts are no-ops: it does
// nothing when already listening, when it is not the user's turn, or when the
// player reports it is speaking.
func (c *Coordinator) StartRecognition() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.startRecognitionLocked()
}

// Stop ends the session: capture first, then playback. Teardown failures are
// logged and never block termination. Stopping twice is a no-op.
func (c *Coordinator) Stop() {
	c.apply(EventStop, func() bool {
		if c.ended {
			return false
		}
		c.stopRecognitionLocked()
		if c.player != nil {
			if err := c.player.StopPlayback(); err != nil {
				c.logger.Warn("stop playback failed", zap.Error(err))
			}
		}
		c.ended = true
		c.opening = false
		c.playing = false
		c.queuedAudio = 0
		c.inFlight = false
		return true
	})
}

func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateLocked()
}

func (c *Coordinator) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Status{
		State:       c.stateLocked(),
		Playing:     c.playing,
		QueuedAudio: c.queuedAudio,
		InFlight:    c.inFlight,
		Listening:   c.listening,
	}
}

// CaptureEnabled reports whether user speech may be captured right now.
func (c *Coordinator) CaptureEnabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.listening && c.stateLocked() == StateUserTurn
}

// BotSpeaking reports whether the bot holds the floor.
func (c *Coordinator) BotSpeaking() bool {
	return c.State() == StateBotSpeaking
}

func (c *Coordinator) active() bool {
	return c.started && !c.ended
}

func (c *Coordinator) stateLocked() State {
	switch {
	case c.ended:
		return StateEnded
	case !c.started:
		return StateIdle
	case c.opening || c.playing || c.queuedAudio > 0:
		return StateBotSpeaking
	case c.inFlight:
		return StateAwaitingModel
	default:
		return StateUserTurn
	}
}

func (c *Coordinator) apply(event string, mutate func() bool) bool {
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()

	c.mu.Lock()
	from := c.stateLocked()
	if !mutate() {
		c.mu.Unlock()
		c.logger.Debug("turn event ignored", zap.String("event", event), zap.String("state", string(from)))
		return false
	}
	to := c.stateLocked()
	if to == StateUserTurn {
		c.startRecognitionLocked()
	} else {
		c.stopRecognitionLocked()
	}
	onChange := c.onChange
	c.mu.Unlock()

	if from != to && onChange != nil {
		onChange(Transition{From: from, To: to, Event: event})
	}
	return true
}

func (c *Coordinator) startRecognitionLocked() bool {
	if c.listening || c.stateLocked() != StateUserTurn {
		return false
	}
	if c.player != nil && c.player.Speaking() {
		return false
	}
	if c.recognizer != nil {
		if err := c.recognizer.StartRecognition(); err != nil {
			c.logger.Warn("start recognition failed", zap.Error(err))
			return false
		}
	}
	c.listening = true
	return true
}

func (c *Coordinator) stopRecognitionLocked() {
	if !c.listening {
		return
	}
	c.listening = false
	if c.recognizer != nil {
		if err := c.recognizer.StopRecognition(); err != nil {
			c.logger.Warn("stop recognition failed", zap.Error(err))
		}
	}
}
