package repo

import (
	"context"
	"database/sql"
	"time"
)

type MessageRepo struct {
	db  *sql.DB
	ids IDGen
}

func NewMessageRepo(db *sql.DB, ids IDGen) *MessageRepo {
	return &MessageRepo{db: db, ids: ids}
}

// InsertInboundIfAbsent stores an inbound message keyed by its Telegram update
// id. A duplicate update id makes the INSERT IGNORE a no-op and returns
// (nil, false, nil): not an error, just "already stored". This is the only
// duplicate-suppression point in the pipeline, so it must stay a single
// atomic statement rather than a read-then-write.
func (r *MessageRepo) InsertInboundIfAbsent(ctx context.Context, conversationID, updateID int64, content string) (*Message, bool, error) {
	id, err := r.ids.NextID()
	if err != nil {
		return nil, false, err
	}
	now := time.Now()

	res, err := r.db.ExecContext(ctx, `
INSERT IGNORE INTO messages (id, conversation_id, direction, content, telegram_update_id, created_at)
VALUES (?, ?, ?, ?, ?, ?)
`, int64(id), conversationID, DirectionIn, content, updateID, now)
	if err != nil {
		return nil, false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, false, err
	}
	if n == 0 {
		return nil, false, nil
	}

	_, _ = r.db.ExecContext(ctx, `UPDATE conversations SET updated_at = ? WHERE id = ?`, now, conversationID)

	return &Message{
		ID:               int64(id),
		ConversationID:   conversationID,
		Direction:        DirectionIn,
		Content:          content,
		TelegramUpdateID: updateID,
		CreatedAt:        now,
	}, true, nil
}

// InsertOutbound stores a reply sent back to Telegram. There is no external
// identifier to dedupe on, so this is a plain insert.
func (r *MessageRepo) InsertOutbound(ctx context.Context, conversationID int64, content string) (*Message, error) {
	id, err := r.ids.NextID()
	if err != nil {
		return nil, err
	}
	now := time.Now()

	_, err = r.db.ExecContext(ctx, `
INSERT INTO messages (id, conversation_id, direction, content, telegram_update_id, created_at)
VALUES (?, ?, ?, ?, NULL, ?)
`, int64(id), conversationID, DirectionOut, content, now)
	if err != nil {
		return nil, err
	}
	return &Message{
		ID:             int64(id),
		ConversationID: conversationID,
		Direction:      DirectionOut,
		Content:        content,
		CreatedAt:      now,
	}, nil
}
