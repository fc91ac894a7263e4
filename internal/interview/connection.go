package interview

import (
	"context"
	"encoding/base64"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/ent0n29/mockinterview/internal/conversation"
	"github.com/ent0n29/mockinterview/internal/observability"
	"github.com/ent0n29/mockinterview/internal/protocol"
	"github.com/ent0n29/mockinterview/internal/speech"
	"github.com/ent0n29/mockinterview/internal/turn"
)

const finalSendTimeout = 600 * time.Millisecond

// connection is the full state of one live interview.
type connection struct {
	e        *Engine
	id       string
	ctx      context.Context
	cancel   context.CancelFunc
	outbound chan<- any
	logger   *zap.Logger

	store     *conversation.Store
	coord     *turn.Coordinator
	segmenter *speech.Segmenter
	jobs      *jobQueue
	capture   *captureGate

	mu      sync.Mutex
	code    string
	timeUp  speech.Timer
	started bool

	// sendMu orders regular sends before the final stopped event.
	sendMu    sync.RWMutex
	outClosed bool

	stopOnce      sync.Once
	stopRequested chan struct{}
	workerDone    chan struct{}
}

func (e *Engine) newConnection(ctx context.Context, cancel context.CancelFunc, id string, outbound chan<- any) *connection {
	c := &connection{
		e:             e,
		id:            id,
		ctx:           ctx,
		cancel:        cancel,
		outbound:      outbound,
		logger:        e.logger.With(zap.String("session_id", id)),
		store:         conversation.NewStore(),
		jobs:          newJobQueue(),
		capture:       &captureGate{},
		stopRequested: make(chan struct{}),
		workerDone:    make(chan struct{}),
	}
	c.coord = turn.NewCoordinator(
		turn.WithRecognizer(c.capture),
		turn.WithPlayer(&clientPlayer{c: c}),
		turn.WithOnChange(c.onTurnChange),
		turn.WithLogger(c.logger),
	)
	c.segmenter = speech.NewSegmenter(e.cfg.PauseThreshold, c.submitUtterance, speech.WithClock(e.cfg.Clock))
	return c
}

// requestStop ends the interview from outside the connection loop.
func (c *connection) requestStop() {
	c.stopOnce.Do(func() { close(c.stopRequested) })
}

// dispatch handles one client event on the connection loop. It reports
// whether the interview is over.
func (c *connection) dispatch(msg any) bool {
	_ = c.e.sessions.Touch(c.id)

	switch m := msg.(type) {
	case protocol.Start:
		c.handleStart(m)
	case protocol.Utterance:
		c.enqueue(job{kind: jobUtterance, text: m.Text, source: "client"})
	case protocol.SpeechFragment:
		if !c.capture.Open() {
			c.drop(observability.InputCaptureClosed)
			return false
		}
		c.segmenter.Push(m.Text)
	case protocol.AudioChunk:
		c.handleAudio(m)
	case protocol.EditorActivity:
		if m.Code != nil {
			c.mu.Lock()
			c.code = *m.Code
			c.mu.Unlock()
		}
		c.segmenter.Touch()
	case protocol.Playback:
		if m.State == protocol.PlaybackStarted {
			// Speech buffered before the bot talks belongs to the turn that
			// is ending, so submit it now rather than merge it later.
			c.segmenter.Flush()
			c.coord.PlaybackStarted()
		} else {
			c.coord.PlaybackEnded()
		}
	case protocol.Stop:
		return true
	default:
		c.misuse("unknown", protocol.ErrUnsupportedType)
	}
	return false
}

func (c *connection) handleStart(m protocol.Start) {
	if c.store.Ready() || !c.coord.Start() {
		c.misuse(string(protocol.TypeStart), ErrAlreadyStarted)
		return
	}

	c.mu.Lock()
	first := !c.started
	c.started = true
	c.mu.Unlock()
	if first {
		duration := c.e.cfg.DefaultDuration
		if m.DurationMinutes > 0 {
			duration = time.Duration(m.DurationMinutes) * time.Minute
		}
		c.armTimeUp(duration)
	}
	c.enqueue(job{kind: jobStart})
}

func (c *connection) handleAudio(m protocol.AudioChunk) {
	if !c.capture.Open() {
		c.drop(observability.InputCaptureClosed)
		return
	}
	if c.e.transcriber == nil {
		c.sendError(SourceSTT, "stt_unavailable", false, "speech recognition is not configured")
		return
	}
	audio, err := base64.StdEncoding.DecodeString(m.AudioBase64)
	if err != nil {
		c.sendError(SourceClient, "invalid_audio", false, err.Error())
		return
	}
	c.enqueue(job{kind: jobTranscribe, audio: audio, format: m.Format})
}

func (c *connection) enqueue(j job) {
	if c.jobs.push(j) {
		c.e.metrics.ObserveQueueDepth(c.jobs.len())
	}
}

// submitUtterance is the segmenter's emit callback. It runs on the timer
// goroutine or the connection loop and must not block.
func (c *connection) submitUtterance(u speech.Utterance) {
	c.logger.Debug("utterance segmented", zap.String("reason", u.Reason), zap.Int("fragments", u.Fragments))
	c.enqueue(job{kind: jobUtterance, text: u.Text, source: u.Reason})
}

func (c *connection) armTimeUp(d time.Duration) {
	if d <= 0 {
		return
	}
	t := c.e.cfg.Clock.AfterFunc(d, func() {
		c.send(protocol.SystemEvent{
			Type:      protocol.TypeSystemEvent,
			SessionID: c.id,
			Code:      protocol.EventTimeUp,
			Detail:    d.String(),
		})
	})
	c.mu.Lock()
	c.timeUp = t
	c.mu.Unlock()
}

func (c *connection) currentCode() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.code
}

// teardown releases everything in order: capture, playback, timers, the
// conversation log, the worker. The transport is closed by the caller.
func (c *connection) teardown() {
	c.coord.Stop()
	c.segmenter.Close()
	c.mu.Lock()
	if c.timeUp != nil {
		c.timeUp.Stop()
	}
	c.mu.Unlock()
	c.store.Close()

	c.sendMu.Lock()
	c.outClosed = true
	c.sendMu.Unlock()
	c.sendFinal(protocol.SystemEvent{
		Type:      protocol.TypeSystemEvent,
		SessionID: c.id,
		Code:      protocol.EventStopped,
	})

	c.jobs.close()
	c.cancel()
	<-c.workerDone

	if _, err := c.e.sessions.End(c.id); err != nil {
		c.logger.Debug("end session", zap.Error(err))
	}
	c.e.sessions.Remove(c.id)
	c.e.metrics.ActiveSessions.Set(float64(c.e.sessions.ActiveCount()))
	c.e.metrics.SessionEvents.WithLabelValues("ended").Inc()
	c.logger.Info("interview ended", zap.Int("turns", c.store.Len()))
}

func (c *connection) onTurnChange(t turn.Transition) {
	c.e.metrics.TurnTransitions.WithLabelValues(string(t.To)).Inc()
	status := c.coord.Status()
	_ = c.e.sessions.RecordTurnState(c.id, string(t.To), c.store.Len())

	c.send(protocol.TurnState{
		Type:      protocol.TypeTurnState,
		SessionID: c.id,
		State:     string(t.To),
		Listening: status.Listening,
	})
	wasSpeaking := t.From == turn.StateBotSpeaking
	speaking := t.To == turn.StateBotSpeaking
	if wasSpeaking != speaking {
		c.send(protocol.SpeakingState{
			Type:      protocol.TypeSpeakingState,
			SessionID: c.id,
			Speaking:  speaking,
		})
	}
}

func (c *connection) drop(reason string) {
	c.e.metrics.ObserveInput(reason)
	c.logger.Debug("input dropped", zap.String("reason", reason))
}

func (c *connection) misuse(msgType string, err error) {
	c.e.metrics.ProtocolMisuse.WithLabelValues(msgType).Inc()
	c.logger.Warn("event ignored in current state",
		zap.String("type", msgType),
		zap.String("state", string(c.coord.State())),
		zap.Error(err),
	)
}

// captureGate is the server side of speech capture: fragments are accepted
// only while it is open.
type captureGate struct {
	open atomic.Bool
}

func (g *captureGate) StartRecognition() error {
	g.open.Store(true)
	return nil
}

func (g *captureGate) StopRecognition() error {
	g.open.Store(false)
	return nil
}

func (g *captureGate) Open() bool { return g.open.Load() }

// clientPlayer is the browser's audio element as seen from the server. The
// client reports playback itself, so Speaking never overrides the
// coordinator; StopPlayback asks the client to cut audio.
type clientPlayer struct {
	c *connection
}

func (p *clientPlayer) Speaking() bool { return false }

func (p *clientPlayer) StopPlayback() error {
	if !p.c.sendFinal(protocol.SystemEvent{
		Type:      protocol.TypeSystemEvent,
		SessionID: p.c.id,
		Code:      protocol.EventStopPlayback,
	}) {
		return errOutboundUnavailable
	}
	return nil
}
