package interview

import (
	"encoding/base64"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ent0n29/mockinterview/internal/conversation"
	"github.com/ent0n29/mockinterview/internal/llm"
	"github.com/ent0n29/mockinterview/internal/observability"
	"github.com/ent0n29/mockinterview/internal/protocol"
	"github.com/ent0n29/mockinterview/internal/speech"
	"github.com/ent0n29/mockinterview/internal/voice"
)

// work is the session's only consumer of external collaborators. Jobs run one
// at a time in arrival order, so a second utterance waits until the reply to
// the first has been appended.
func (c *connection) work() {
	defer close(c.workerDone)
	for {
		j, ok := c.jobs.pop(c.ctx)
		if !ok {
			return
		}
		switch j.kind {
		case jobStart:
			c.runOpening()
		case jobUtterance:
			c.runUtterance(j.text, j.source)
		case jobTranscribe:
			c.runTranscribe(j.audio, j.format)
		}
	}
}

func (c *connection) runOpening() {
	defer c.coord.OpeningDone()
	started := time.Now()

	if c.store.Ready() {
		c.misuse(string(protocol.TypeStart), ErrAlreadyStarted)
		return
	}
	if c.store.Len() == 0 {
		p, err := c.e.problems.Random(c.ctx)
		if err != nil {
			c.fail(external(SourceProblems, err))
			return
		}
		if err := c.store.Append(conversation.Turn{Role: conversation.RoleSystem, Content: llm.SystemPrompt(p)}); err != nil {
			return
		}
		_ = c.e.sessions.SetProblem(c.id, p.Slug, p.Title)
		c.send(protocol.ProblemInfo{
			Type:       protocol.TypeProblem,
			SessionID:  c.id,
			Title:      p.Title,
			Difficulty: p.Difficulty,
			Question:   p.FormattedQuestion(),
		})
		c.logger.Info("problem selected", zap.String("slug", p.Slug), zap.String("title", p.Title))
	}

	var kickoff *conversation.Turn
	if c.e.cfg.Bootstrap == BootstrapGreeting {
		if c.store.Len() == 1 {
			if !c.emitAssistant(llm.Greeting, true) {
				return
			}
		}
		kickoff = &conversation.Turn{Role: conversation.RoleUser, Content: llm.IntroducePrompt}
	}

	reply, err := c.generate(kickoff)
	if err != nil {
		c.fail(err)
		return
	}
	if c.emitAssistant(reply, true) {
		c.e.metrics.ObserveStage(observability.StageOpening, time.Since(started))
	}
}

func (c *connection) runUtterance(text, source string) {
	text = strings.TrimSpace(text)
	if !c.store.Ready() {
		c.misuse(string(protocol.TypeUtterance), ErrNotStarted)
		return
	}
	if c.e.noise.IsNoise(text) {
		c.drop(observability.InputNoise)
		return
	}
	last, hasLast := c.store.Last()
	var lastTurn *conversation.Turn
	if hasLast {
		lastTurn = &last
	}
	if speech.IsEcho(lastTurn, text) {
		c.drop(observability.InputEcho)
		return
	}

	if !c.coord.UtteranceSubmitted() {
		c.misuse(string(protocol.TypeUtterance), ErrEnded)
		return
	}
	started := time.Now()

	// A failed reply leaves the user turn as the last entry. Sending the same
	// text again regenerates without appending it twice.
	retry := hasLast && last.Role == conversation.RoleUser && last.Content == text
	if !retry {
		if err := c.store.Append(conversation.Turn{Role: conversation.RoleUser, Content: text}); err != nil {
			c.coord.ReplyFailed()
			return
		}
		c.send(protocol.UserText{Type: protocol.TypeUserText, SessionID: c.id, Text: text})
		c.e.metrics.ObserveInput(observability.InputAccepted)
	} else {
		c.e.metrics.ObserveIndicator(observability.IndicatorReplyRetried)
	}
	c.logger.Debug("utterance accepted", zap.String("source", source), zap.Bool("retry", retry))

	reply, err := c.generate(nil)
	if err != nil {
		c.coord.ReplyFailed()
		c.fail(err)
		return
	}
	c.e.metrics.ObserveStage(observability.StageUtteranceToText, time.Since(started))

	if c.emitAssistant(reply, false) {
		c.e.metrics.ObserveStage(observability.StageTurnTotal, time.Since(started))
	}
}

func (c *connection) runTranscribe(audio []byte, format string) {
	started := time.Now()
	text, err := c.e.transcriber.Transcribe(c.ctx, audio, format)
	if err != nil {
		c.fail(external(SourceSTT, err))
		return
	}
	c.e.metrics.ObserveStage(observability.StageTranscribe, time.Since(started))
	if c.e.noise.IsNoise(text) {
		c.drop(observability.InputNoise)
		return
	}
	c.segmenter.Push(text)
}

// generate asks the model for the next line. extra is sent after the log but
// never stored.
func (c *connection) generate(extra *conversation.Turn) (string, error) {
	turns := c.store.Snapshot()
	if extra != nil {
		turns = append(turns, *extra)
	}
	started := time.Now()
	reply, err := c.e.generator.Generate(c.ctx, llm.Request{
		SessionID: c.id,
		Turns:     turns,
		Code:      c.currentCode(),
	})
	c.e.metrics.ObserveModelLatency(time.Since(started))
	if err != nil {
		return "", external(SourceLLM, err)
	}
	reply = llm.ShapeReply(reply, c.e.cfg.ReplyMaxChars)
	if reply == "" {
		return "", external(SourceLLM, llm.ErrEmptyReply)
	}
	return reply, nil
}

// emitAssistant synthesizes an interviewer line, stores it, then sends its
// text and audio. A reply whose audio fails is abandoned and the user turn
// stays last so the same utterance can be resent. An opening line is kept
// without audio. Opening lines queue audio directly; replies settle the
// outstanding model call. It reports whether the line was stored.
func (c *connection) emitAssistant(reply string, opening bool) bool {
	stored := reply
	if reply == llm.TokenEncourage {
		stored = llm.EncourageSpoken
	}
	rendering := llm.Render(stored)

	clip, hasAudio, err := c.synthesize(rendering.Speak)
	if err != nil && !opening {
		c.coord.ReplyFailed()
		c.fail(external(SourceTTS, err))
		return false
	}
	if err := c.store.Append(conversation.Turn{Role: conversation.RoleAssistant, Content: stored}); err != nil {
		if !opening {
			c.coord.ReplyFailed()
		}
		return false
	}

	c.send(protocol.AssistantText{
		Type:      protocol.TypeAssistantText,
		SessionID: c.id,
		Text:      stored,
		Display:   rendering.Display,
	})
	if rendering.Speak == "" {
		c.e.metrics.ObserveIndicator(observability.IndicatorSilentReply)
	}
	switch {
	case opening && hasAudio:
		c.coord.AudioQueued()
	case !opening:
		c.coord.ReplyReady(hasAudio)
	}
	if hasAudio {
		c.send(protocol.AssistantAudio{
			Type:        protocol.TypeAssistantAudio,
			SessionID:   c.id,
			AudioBase64: base64.StdEncoding.EncodeToString(clip.Audio),
			Format:      clip.Format,
		})
	}
	if err != nil {
		// The opening is already in the log; a second start is ignored.
		c.fail(&ExternalError{Source: SourceTTS, Err: err, Final: true})
	}
	return true
}

func (c *connection) synthesize(text string) (voice.Clip, bool, error) {
	if strings.TrimSpace(text) == "" {
		return voice.Clip{}, false, nil
	}
	started := time.Now()
	clip, err := c.e.synthesizer.Synthesize(c.ctx, text)
	if err != nil {
		return voice.Clip{}, false, err
	}
	c.e.metrics.ObserveStage(observability.StageReplyToAudio, time.Since(started))
	return clip, true, nil
}

// fail reports an external failure to the client unless the interview is
// already over.
func (c *connection) fail(err error) {
	if c.ctx.Err() != nil || c.store.Closed() {
		c.logger.Debug("failure after teardown", zap.Error(err))
		return
	}
	var ext *ExternalError
	if !errors.As(err, &ext) {
		ext = &ExternalError{Source: "internal", Err: err}
	}
	c.logger.Warn("external call failed", zap.String("source", ext.Source), zap.Error(ext.Err))
	c.sendError(ext.Source, errorCode(ext.Source), ext.Retryable(), ext.Err.Error())
}
