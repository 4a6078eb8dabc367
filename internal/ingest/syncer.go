// Package ingest drives the getUpdates -> store -> publish loop. It owns the
// cursor: every update seen advances the watermark, processed or not.
package ingest

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/Andres3232/telegram-conversations/internal/event"
	"github.com/Andres3232/telegram-conversations/internal/metrics"
	"github.com/Andres3232/telegram-conversations/internal/repo"
	"github.com/Andres3232/telegram-conversations/internal/telegram"
)

const maxContentLen = 4096

// chat ids are integer-like strings, negative for groups/supergroups
var chatIDPattern = regexp.MustCompile(`^-?\d+$`)

type UpdateFetcher interface {
	FetchUpdates(ctx context.Context, offset int64, limit, timeoutSeconds int) ([]telegram.Update, error)
}

type ConversationStore interface {
	FindByChatID(ctx context.Context, chatID string) (*repo.Conversation, error)
	Create(ctx context.Context, chatID string) (*repo.Conversation, error)
}

type MessageStore interface {
	InsertInboundIfAbsent(ctx context.Context, conversationID, updateID int64, content string) (*repo.Message, bool, error)
}

type CursorStore interface {
	Get(ctx context.Context) (int64, error)
	Set(ctx context.Context, lastUpdateID int64) error
}

type EventPublisher interface {
	Publish(ctx context.Context, env event.Envelope, key string) error
}

// Result reports one ingestion run.
type Result struct {
	ProcessedUpdates  int
	ProcessedMessages int
	CursorBefore      int64
	CursorAfter       int64
}

type Syncer struct {
	tg            UpdateFetcher
	cursor        CursorStore
	conversations ConversationStore
	messages      MessageStore
	publisher     EventPublisher
	log           *zap.Logger
}

func NewSyncer(tg UpdateFetcher, cursor CursorStore, conversations ConversationStore, messages MessageStore, publisher EventPublisher, log *zap.Logger) *Syncer {
	return &Syncer{
		tg:            tg,
		cursor:        cursor,
		conversations: conversations,
		messages:      messages,
		publisher:     publisher,
		log:           log,
	}
}

// Run executes one fetch/process cycle.
//
// Delivery semantics: the cursor is advanced past an update before that update
// is processed, and persisted even when processing fails. A store or publish
// error therefore aborts the remaining batch but the failing update is NOT
// retried on the next run: at-least-once into the store, with a known window
// where a stored message's event is lost if the publish after it fails. Do not
// reorder the cursor writes without revisiting that.
func (s *Syncer) Run(ctx context.Context, limit, timeoutSeconds int) (Result, error) {
	before, err := s.cursor.Get(ctx)
	if err != nil {
		return Result{}, err
	}

	updates, err := s.tg.FetchUpdates(ctx, before+1, limit, timeoutSeconds)
	if err != nil {
		metrics.SyncFailures.Inc()
		return Result{CursorBefore: before, CursorAfter: before}, err
	}
	metrics.UpdatesFetched.Add(float64(len(updates)))

	res := Result{
		ProcessedUpdates: len(updates),
		CursorBefore:     before,
		CursorAfter:      before,
	}

	for _, u := range updates {
		// Seen before processed: the watermark covers this update even if
		// handling it below fails.
		if u.ID > res.CursorAfter {
			res.CursorAfter = u.ID
		}

		procErr := s.processUpdate(ctx, u, &res)

		if err := s.cursor.Set(ctx, res.CursorAfter); err != nil {
			metrics.SyncFailures.Inc()
			if procErr != nil {
				return res, procErr
			}
			return res, err
		}
		if procErr != nil {
			metrics.SyncFailures.Inc()
			return res, procErr
		}
	}

	return res, nil
}

func (s *Syncer) processUpdate(ctx context.Context, u telegram.Update, res *Result) error {
	if u.Message == nil {
		return nil
	}
	text := strings.TrimSpace(u.Message.Text)
	chatID := u.Message.ChatID
	if text == "" || chatID == "" {
		return nil
	}
	if !chatIDPattern.MatchString(chatID) {
		s.log.Warn("skipping update with malformed chat id",
			zap.Int64("update_id", u.ID),
			zap.String("chat_id", chatID),
		)
		return nil
	}
	if len(text) > maxContentLen {
		// The limit counts runes, not bytes; never cut a multi-byte
		// sequence in half.
		if r := []rune(text); len(r) > maxContentLen {
			text = string(r[:maxContentLen])
		}
	}

	conv, err := s.conversations.FindByChatID(ctx, chatID)
	if err != nil {
		return err
	}
	if conv == nil {
		conv, err = s.conversations.Create(ctx, chatID)
		if err != nil {
			return err
		}
		s.log.Info("conversation created",
			zap.Int64("conversation_id", conv.ID),
			zap.String("chat_id", chatID),
		)
	}

	msg, inserted, err := s.messages.InsertInboundIfAbsent(ctx, conv.ID, u.ID, text)
	if err != nil {
		return err
	}
	if !inserted {
		// Already stored on a previous run; no recount, no re-publish.
		metrics.DuplicatesSuppressed.Inc()
		return nil
	}

	res.ProcessedMessages++
	metrics.MessagesIngested.Inc()

	env, err := event.NewMessageReceived(event.MessageReceivedPayload{
		MessageID:        msg.ID,
		ConversationID:   conv.ID,
		TelegramChatID:   chatID,
		TelegramUpdateID: u.ID,
		Text:             text,
		ReceivedAt:       event.FormatReceivedAt(msg.CreatedAt),
	})
	if err != nil {
		return err
	}
	if err := s.publisher.Publish(ctx, env, formatConvKey(conv.ID)); err != nil {
		metrics.PublishFailures.Inc()
		return err
	}
	metrics.EventsPublished.Inc()
	return nil
}

func formatConvKey(id int64) string {
	// sharding key for the broker; one conversation, one queue
	return "conv:" + strconv.FormatInt(id, 10)
}
