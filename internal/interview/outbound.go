package interview

import (
	"errors"
	"time"

	"github.com/ent0n29/mockinterview/internal/protocol"
)

var errOutboundUnavailable = errors.New("outbound queue unavailable")

// send queues msg for the client, waiting as long as the connection lives.
// Nothing is sent once the stopped event is on its way.
func (c *connection) send(msg any) bool {
	msgType := messageType(msg)
	c.sendMu.RLock()
	defer c.sendMu.RUnlock()
	if c.outClosed {
		c.e.metrics.ObserveOutboundMessage(msgType, "closed")
		return false
	}
	select {
	case <-c.ctx.Done():
		c.e.metrics.ObserveOutboundMessage(msgType, "canceled")
		return false
	default:
	}
	select {
	case c.outbound <- msg:
		c.e.metrics.ObserveOutboundMessage(msgType, "delivered")
		return true
	case <-c.ctx.Done():
		c.e.metrics.ObserveOutboundMessage(msgType, "canceled")
		return false
	}
}

// sendFinal is used during teardown, when the connection context may already
// be gone. It gives up after a short wait.
func (c *connection) sendFinal(msg any) bool {
	msgType := messageType(msg)
	timer := time.NewTimer(finalSendTimeout)
	defer timer.Stop()
	select {
	case c.outbound <- msg:
		c.e.metrics.ObserveOutboundMessage(msgType, "delivered")
		return true
	case <-timer.C:
		c.e.metrics.ObserveOutboundMessage(msgType, "timeout")
		return false
	}
}

func (c *connection) sendError(source, code string, retryable bool, detail string) {
	c.e.metrics.ProviderErrors.WithLabelValues(source, code).Inc()
	c.send(protocol.ErrorEvent{
		Type:      protocol.TypeErrorEvent,
		SessionID: c.id,
		Code:      code,
		Source:    source,
		Retryable: retryable,
		Detail:    detail,
	})
}

func messageType(v any) string {
	switch m := v.(type) {
	case protocol.AssistantText:
		return string(m.Type)
	case protocol.AssistantAudio:
		return string(m.Type)
	case protocol.UserText:
		return string(m.Type)
	case protocol.SpeakingState:
		return string(m.Type)
	case protocol.TurnState:
		return string(m.Type)
	case protocol.ProblemInfo:
		return string(m.Type)
	case protocol.SystemEvent:
		return string(m.Type)
	case protocol.ErrorEvent:
		return string(m.Type)
	default:
		return "unknown"
	}
}
