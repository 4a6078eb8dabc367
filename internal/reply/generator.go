// Package reply turns an inbound message into exactly one outbound send.
package reply

import (
	"context"
	"math/rand"
	"strings"

	"go.uber.org/zap"

	"github.com/Andres3232/telegram-conversations/internal/metrics"
	"github.com/Andres3232/telegram-conversations/internal/repo"
)

// pool is used whenever the AI responder is disabled or fails. The reply path
// must always produce something to send.
var pool = []string{
	"Recibido.",
	"Dale, lo anoto.",
	"Buenísimo.",
	"Ok ok.",
	"Gracias por tu mensaje.",
	"Anotado!",
	"Genial 😄",
	"Perfecto.",
}

type MessageSender interface {
	SendMessage(ctx context.Context, chatID, text string) error
}

type OutboundStore interface {
	InsertOutbound(ctx context.Context, conversationID int64, content string) (*repo.Message, error)
}

// Responder is the optional text-generation collaborator.
type Responder interface {
	GenerateReply(ctx context.Context, incomingText string) (string, error)
}

type Generator struct {
	sender    MessageSender
	outbound  OutboundStore
	responder Responder // nil = pool only
	log       *zap.Logger
}

func NewGenerator(sender MessageSender, outbound OutboundStore, responder Responder, log *zap.Logger) *Generator {
	return &Generator{sender: sender, outbound: outbound, responder: responder, log: log}
}

// GenerateReply produces reply text and sends it to chatID. Responder
// failures (errors or empty output) fall back to the static pool instead of
// propagating: the send must happen regardless of how the text was produced.
// Only the send itself can fail this call.
func (g *Generator) GenerateReply(ctx context.Context, chatID string, conversationID int64, incomingText string) error {
	text := ""
	if g.responder != nil {
		t, err := g.responder.GenerateReply(ctx, incomingText)
		if err != nil {
			metrics.ReplyFallbacks.Inc()
			g.log.Warn("ai responder failed, using pool", zap.Error(err))
		} else {
			text = strings.TrimSpace(t)
			if text == "" {
				metrics.ReplyFallbacks.Inc()
				g.log.Warn("ai responder returned empty text, using pool")
			}
		}
	}
	if text == "" {
		text = pool[rand.Intn(len(pool))]
	}

	if conversationID > 0 {
		// Best-effort record; a store hiccup should not block the reply.
		if _, err := g.outbound.InsertOutbound(ctx, conversationID, text); err != nil {
			g.log.Warn("outbound message not recorded",
				zap.Int64("conversation_id", conversationID),
				zap.Error(err),
			)
		}
	} else {
		g.log.Warn("event carried no conversation id, reply not recorded", zap.String("chat_id", chatID))
	}

	if err := g.sender.SendMessage(ctx, chatID, text); err != nil {
		return err
	}
	metrics.RepliesSent.Inc()
	return nil
}
