package consume

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisDeduper suppresses duplicate deliveries of the same message id across
// consumer restarts and broker redeliveries. SETNX with a TTL: the first
// writer wins, later ones see the key and skip.
type RedisDeduper struct {
	cli *redis.Client
	ttl time.Duration
}

type RedisOptions struct {
	Addr     string
	Password string
	Database int
	TTL      time.Duration
}

func NewRedisDeduper(opt RedisOptions) (*RedisDeduper, error) {
	if opt.Addr == "" {
		return nil, fmt.Errorf("redis: missing addr")
	}
	if opt.TTL <= 0 {
		opt.TTL = 24 * time.Hour
	}
	cli := redis.NewClient(&redis.Options{
		Addr:     opt.Addr,
		Password: opt.Password,
		DB:       opt.Database,
	})
	return &RedisDeduper{cli: cli, ttl: opt.TTL}, nil
}

func (d *RedisDeduper) FirstSeen(ctx context.Context, messageID int64) (bool, error) {
	key := fmt.Sprintf("relay:dedupe:msg:%d", messageID)
	return d.cli.SetNX(ctx, key, "1", d.ttl).Result()
}

func (d *RedisDeduper) Close() error { return d.cli.Close() }
