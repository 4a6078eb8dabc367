// Package db opens the MySQL pool backing the relay's conversation store.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// Options mirrors the mysql section of the relay config; pool defaults are
// applied there, not here.
type Options struct {
	DSN          string
	MaxOpenConns int
	MaxIdleConns int
	ConnMaxLife  time.Duration
	ConnMaxIdle  time.Duration
}

// Open connects, applies the pool limits, and verifies the connection with a
// ping bounded by ctx. The DSN needs parseTime=true: the repositories scan
// DATETIME columns into time.Time.
func Open(ctx context.Context, opt Options) (*sql.DB, error) {
	if opt.DSN == "" {
		return nil, fmt.Errorf("mysql: missing dsn")
	}

	pool, err := sql.Open("mysql", opt.DSN)
	if err != nil {
		return nil, err
	}
	pool.SetMaxOpenConns(opt.MaxOpenConns)
	pool.SetMaxIdleConns(opt.MaxIdleConns)
	pool.SetConnMaxLifetime(opt.ConnMaxLife)
	pool.SetConnMaxIdleTime(opt.ConnMaxIdle)

	if err := pool.PingContext(ctx); err != nil {
		_ = pool.Close()
		return nil, fmt.Errorf("mysql ping: %w", err)
	}
	return pool, nil
}
