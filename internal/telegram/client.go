// Package telegram is the thin adapter over the Bot API. It does no business
// logic: fetch updates for an explicit offset, send a message, map the wire
// types to internal DTOs.
package telegram

import (
	"context"
	"fmt"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// Update is the external DTO handed to the ingestion loop. Message is nil for
// update kinds that carry no chat message (edits, callbacks, ...).
type Update struct {
	ID      int64
	Message *IncomingMessage
}

type IncomingMessage struct {
	MessageID int64
	ChatID    string // signed integer as string; groups are negative
	Text      string
	Date      time.Time
}

type Client struct {
	bot *tgbotapi.BotAPI
	log *zap.Logger
}

type Options struct {
	Token       string
	APIEndpoint string // empty = api.telegram.org
}

func NewClient(opt Options, log *zap.Logger) (*Client, error) {
	endpoint := opt.APIEndpoint
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	bot, err := tgbotapi.NewBotAPIWithAPIEndpoint(opt.Token, endpoint)
	if err != nil {
		return nil, fmt.Errorf("telegram bot init: %w", err)
	}
	log.Info("telegram bot connected",
		zap.String("username", bot.Self.UserName),
		zap.Int64("id", bot.Self.ID),
	)
	return &Client{bot: bot, log: log}, nil
}

// FetchUpdates long-polls getUpdates starting at offset. The timeout is a
// server-side long-poll hint, not a local deadline; the underlying HTTP client
// enforces its own transport timeout.
func (c *Client) FetchUpdates(_ context.Context, offset int64, limit, timeoutSeconds int) ([]Update, error) {
	cfg := tgbotapi.UpdateConfig{
		Offset:  int(offset),
		Limit:   limit,
		Timeout: timeoutSeconds,
	}
	raw, err := c.bot.GetUpdates(cfg)
	if err != nil {
		return nil, fmt.Errorf("telegram getUpdates: %w", err)
	}

	out := make([]Update, 0, len(raw))
	for _, u := range raw {
		out = append(out, mapUpdate(u))
	}
	return out, nil
}

// SendMessage posts text to a chat. Transport failures and not-ok API
// responses both come back as errors.
func (c *Client) SendMessage(_ context.Context, chatID, text string) error {
	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid chat id %q: %w", chatID, err)
	}
	if _, err := c.bot.Send(tgbotapi.NewMessage(id, text)); err != nil {
		return fmt.Errorf("telegram sendMessage: %w", err)
	}
	return nil
}

func mapUpdate(u tgbotapi.Update) Update {
	out := Update{ID: int64(u.UpdateID)}
	if u.Message == nil || u.Message.Chat == nil {
		return out
	}
	out.Message = &IncomingMessage{
		MessageID: int64(u.Message.MessageID),
		ChatID:    strconv.FormatInt(u.Message.Chat.ID, 10),
		Text:      u.Message.Text,
		Date:      time.Unix(int64(u.Message.Date), 0),
	}
	return out
}
