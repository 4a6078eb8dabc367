// Package event defines the MQ envelope shared by the producer and consumer
// sides of the relay. Treat the wire shapes as a contract: consumers must
// accept unknown extra fields and tolerate missing optional ones.
package event

import (
	"encoding/json"
	"time"
)

const (
	// DefaultTopic is the MQ topic updates are relayed onto.
	DefaultTopic = "telegram.updates"

	// MessageReceived is published once per newly stored inbound message.
	MessageReceived = "telegram.message.received"
)

// Envelope is the `{eventName, payload}` wrapper used for all published events.
type Envelope struct {
	EventName string          `json:"eventName"`
	Payload   json.RawMessage `json:"payload"`
}

// MessageReceivedPayload carries the stored inbound message.
// ConversationID and MessageID may be absent on older producers.
type MessageReceivedPayload struct {
	MessageID        int64  `json:"messageId,omitempty"`
	ConversationID   int64  `json:"conversationId,omitempty"`
	TelegramChatID   string `json:"telegramChatId"`
	TelegramUpdateID int64  `json:"telegramUpdateId,omitempty"`
	Text             string `json:"text"`
	ReceivedAt       string `json:"receivedAt,omitempty"` // RFC3339
}

// NewMessageReceived builds the envelope for a stored inbound message.
func NewMessageReceived(p MessageReceivedPayload) (Envelope, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{EventName: MessageReceived, Payload: b}, nil
}

// FormatReceivedAt renders a receipt timestamp the way the payload expects it.
func FormatReceivedAt(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
