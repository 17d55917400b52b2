package processed

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

const defaultSetKey = "bountyd:processed"

// Redis tracks processed task IDs in a shared set so a restarted daemon
// does not redo settled work. The ledger's idempotent approve remains the
// real dedup guard; this is an optimization on top.
type Redis struct {
	client *redis.Client
	key    string
}

func NewRedis(addr, password string, db int, key string) (*Redis, error) {
	if addr == "" {
		return nil, errors.New("redis addr is required")
	}
	if key == "" {
		key = defaultSetKey
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &Redis{client: client, key: key}, nil
}

func (r *Redis) Seen(ctx context.Context, taskID string) (bool, error) {
	return r.client.SIsMember(ctx, r.key, taskID).Result()
}

func (r *Redis) MarkProcessed(ctx context.Context, taskID string) error {
	return r.client.SAdd(ctx, r.key, taskID).Err()
}
