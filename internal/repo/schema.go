package repo

import (
	"context"
	"database/sql"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS conversations (
		id               BIGINT NOT NULL,
		telegram_chat_id VARCHAR(32) NOT NULL,
		created_at       DATETIME(3) NOT NULL,
		updated_at       DATETIME(3) NOT NULL,
		PRIMARY KEY (id),
		UNIQUE KEY uk_conversations_chat (telegram_chat_id)
	)`,
	`CREATE TABLE IF NOT EXISTS messages (
		id                 BIGINT NOT NULL,
		conversation_id    BIGINT NOT NULL,
		direction          VARCHAR(3) NOT NULL,
		content            VARCHAR(4096) NOT NULL,
		telegram_update_id BIGINT NULL,
		created_at         DATETIME(3) NOT NULL,
		PRIMARY KEY (id),
		UNIQUE KEY uk_messages_update (telegram_update_id),
		KEY idx_messages_conv (conversation_id, created_at)
	)`,
	`CREATE TABLE IF NOT EXISTS telegram_sync_state (
		id             VARCHAR(32) NOT NULL,
		last_update_id BIGINT NOT NULL,
		updated_at     DATETIME(3) NOT NULL,
		PRIMARY KEY (id)
	)`,
}

// EnsureSchema creates the relay tables when missing. Real schema migration
// lives outside this service; this only bootstraps a fresh database.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
