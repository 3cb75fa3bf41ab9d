package session

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

type redisKV struct {
	rdb *redis.Client
}

// NewRedisStore keeps each user's session in the hash "session:{userID}".
// ttl is refreshed on every write; it should match the refresh token lifetime.
func NewRedisStore(rdb *redis.Client, ttl time.Duration) *Store {
	return &Store{kv: redisKV{rdb: rdb}, ttl: ttl}
}

func redisKey(userID string) string { return "session:" + userID }

func (r redisKV) set(ctx context.Context, userID string, fields map[string]string, ttl time.Duration) error {
	key := redisKey(userID)
	args := make([]any, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, k, v)
	}
	pipe := r.rdb.TxPipeline()
	pipe.HSet(ctx, key, args...)
	if ttl > 0 {
		pipe.Expire(ctx, key, ttl)
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (r redisKV) getAll(ctx context.Context, userID string) (map[string]string, error) {
	return r.rdb.HGetAll(ctx, redisKey(userID)).Result()
}

func (r redisKV) del(ctx context.Context, userID string, fields ...string) error {
	return r.rdb.HDel(ctx, redisKey(userID), fields...).Err()
}
