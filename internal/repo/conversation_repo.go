package repo

import (
	"context"
	"database/sql"
	"time"
)

type ConversationRepo struct {
	db  *sql.DB
	ids IDGen
}

func NewConversationRepo(db *sql.DB, ids IDGen) *ConversationRepo {
	return &ConversationRepo{db: db, ids: ids}
}

// FindByChatID returns nil when no conversation exists for the chat.
func (r *ConversationRepo) FindByChatID(ctx context.Context, chatID string) (*Conversation, error) {
	var c Conversation
	err := r.db.QueryRowContext(ctx, `
SELECT id, telegram_chat_id, created_at, updated_at
FROM conversations
WHERE telegram_chat_id = ?
`, chatID).Scan(&c.ID, &c.TelegramChatID, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// Create inserts a conversation for chatID. The UNIQUE key on
// telegram_chat_id makes this safe under concurrent first contact: when the
// insert is a no-op the already-present row is returned instead.
func (r *ConversationRepo) Create(ctx context.Context, chatID string) (*Conversation, error) {
	id, err := r.ids.NextID()
	if err != nil {
		return nil, err
	}
	now := time.Now()

	res, err := r.db.ExecContext(ctx, `
INSERT IGNORE INTO conversations (id, telegram_chat_id, created_at, updated_at)
VALUES (?, ?, ?, ?)
`, int64(id), chatID, now, now)
	if err != nil {
		return nil, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		// Lost the race: another ingester created it first.
		return r.FindByChatID(ctx, chatID)
	}
	return &Conversation{ID: int64(id), TelegramChatID: chatID, CreatedAt: now, UpdatedAt: now}, nil
}
