package repo

import "time"

// Direction of a stored message relative to this service.
const (
	DirectionIn  = "IN"
	DirectionOut = "OUT"
)

// Conversation maps a Telegram chat to an internal conversation.
// telegram_chat_id is kept as a string: chat ids can be negative (groups) and
// large enough that callers should not round-trip them through floats.
type Conversation struct {
	ID             int64
	TelegramChatID string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Message is one stored inbound or outbound message. TelegramUpdateID is set
// only for inbound messages sourced from getUpdates; its UNIQUE key is the
// single idempotency checkpoint of the ingestion path.
type Message struct {
	ID               int64
	ConversationID   int64
	Direction        string
	Content          string
	TelegramUpdateID int64 // 0 when not sourced from an update
	CreatedAt        time.Time
}

// IDGen produces message/conversation ids (sonyflake in production).
type IDGen interface {
	NextID() (uint64, error)
}
