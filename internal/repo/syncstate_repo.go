package repo

import (
	"context"
	"database/sql"
	"time"
)

// syncStateID keys the single cursor row. The service polls one bot, so the
// watermark is a singleton.
const syncStateID = "bot"

// SyncStateRepo persists the last Telegram update id known to be processed.
type SyncStateRepo struct {
	db *sql.DB
}

func NewSyncStateRepo(db *sql.DB) *SyncStateRepo {
	return &SyncStateRepo{db: db}
}

// Get returns the current watermark, 0 when the row does not exist yet.
func (r *SyncStateRepo) Get(ctx context.Context) (int64, error) {
	var v int64
	err := r.db.QueryRowContext(ctx, `
SELECT last_update_id FROM telegram_sync_state WHERE id = ?
`, syncStateID).Scan(&v)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return v, nil
}

// Set advances the watermark. GREATEST keeps it monotonic even if two runs
// ever raced: the cursor never moves backwards.
func (r *SyncStateRepo) Set(ctx context.Context, lastUpdateID int64) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO telegram_sync_state (id, last_update_id, updated_at)
VALUES (?, ?, ?)
ON DUPLICATE KEY UPDATE
  last_update_id = GREATEST(last_update_id, VALUES(last_update_id)),
  updated_at = VALUES(updated_at)
`, syncStateID, lastUpdateID, time.Now())
	return err
}
