// Package consume reacts to relay events pulled off the broker. Malformed or
// unknown input is dropped here; only real handler failures travel back to
// the MQ client for redelivery.
package consume

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/Andres3232/telegram-conversations/internal/event"
	"github.com/Andres3232/telegram-conversations/internal/metrics"
)

// Replier generates and sends exactly one reply for an inbound message.
type Replier interface {
	GenerateReply(ctx context.Context, chatID string, conversationID int64, incomingText string) error
}

// Deduper reports whether a message id is seen for the first time.
type Deduper interface {
	FirstSeen(ctx context.Context, messageID int64) (bool, error)
}

type Router struct {
	replier Replier
	dedupe  Deduper // optional
	log     *zap.Logger
}

func NewRouter(replier Replier, dedupe Deduper, log *zap.Logger) *Router {
	return &Router{replier: replier, dedupe: dedupe, log: log}
}

// Handle processes one raw broker payload.
//
// Drop policy: payloads that cannot be decoded and events with an unknown
// name are logged and acked — they are unrecoverable, redelivery would only
// loop. A failure from the reply path is returned so the broker retries.
func (r *Router) Handle(ctx context.Context, body []byte) error {
	metrics.EventsConsumed.Inc()

	var env event.Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		metrics.EventDecodeFailures.Inc()
		r.log.Warn("dropping undecodable event", zap.Error(err))
		return nil
	}

	switch env.EventName {
	case event.MessageReceived:
		return r.handleMessageReceived(ctx, env.Payload)
	default:
		// Forward compatibility: newer producers may emit names we do not
		// know yet.
		metrics.UnknownEvents.Inc()
		r.log.Debug("dropping unknown event", zap.String("event_name", env.EventName))
		return nil
	}
}

func (r *Router) handleMessageReceived(ctx context.Context, raw json.RawMessage) error {
	var p event.MessageReceivedPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		metrics.EventDecodeFailures.Inc()
		r.log.Warn("dropping event with undecodable payload", zap.Error(err))
		return nil
	}
	if p.TelegramChatID == "" {
		metrics.EventDecodeFailures.Inc()
		r.log.Warn("dropping event without chat id", zap.Int64("message_id", p.MessageID))
		return nil
	}

	if r.dedupe != nil && p.MessageID > 0 {
		first, err := r.dedupe.FirstSeen(ctx, p.MessageID)
		if err != nil {
			// Dedupe is best-effort; on a store error keep the at-least-once
			// path and handle the event anyway.
			r.log.Warn("dedupe check failed, handling anyway",
				zap.Int64("message_id", p.MessageID),
				zap.Error(err),
			)
		} else if !first {
			metrics.DedupeHits.Inc()
			return nil
		}
	}

	return r.replier.GenerateReply(ctx, p.TelegramChatID, p.ConversationID, p.Text)
}
