package repositories

import (
	"context"
	"fmt"

	"github.com/desertthunder/orbitune/internal/shared"
	goredis "github.com/redis/go-redis/v9"
)

// RedisStateRepository stores client state as plain Redis string keys.
type RedisStateRepository struct {
	rc     *goredis.Client
	prefix string
}

// NewRedisStateRepository returns a repository using rc. Keys are stored as prefix:key.
func NewRedisStateRepository(rc *goredis.Client, prefix string) *RedisStateRepository {
	return &RedisStateRepository{rc: rc, prefix: prefix}
}

func (r *RedisStateRepository) key(k string) string {
	if r.prefix == "" {
		return k
	}
	return fmt.Sprintf("%s:%s", r.prefix, k)
}

// Load fetches all keys with a single MGET.
func (r *RedisStateRepository) Load(ctx context.Context, keys ...string) (map[string]string, error) {
	out := make(map[string]string, len(keys))
	if len(keys) == 0 {
		return out, nil
	}

	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = r.key(k)
	}

	vals, err := r.rc.MGet(ctx, full...).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: redis mget: %v", shared.ErrStorage, err)
	}

	for i, v := range vals {
		if s, ok := v.(string); ok {
			out[keys[i]] = s
		}
	}
	return out, nil
}

// Save writes all values with a single MSET.
func (r *RedisStateRepository) Save(ctx context.Context, values map[string]string) error {
	if len(values) == 0 {
		return nil
	}

	pairs := make([]any, 0, len(values)*2)
	for k, v := range values {
		pairs = append(pairs, r.key(k), v)
	}

	if err := r.rc.MSet(ctx, pairs...).Err(); err != nil {
		return fmt.Errorf("%w: redis mset: %v", shared.ErrStorage, err)
	}
	return nil
}

// Remove deletes all keys with a single DEL.
func (r *RedisStateRepository) Remove(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = r.key(k)
	}

	if err := r.rc.Del(ctx, full...).Err(); err != nil {
		return fmt.Errorf("%w: redis del: %v", shared.ErrStorage, err)
	}
	return nil
}

// Close closes the Redis client.
func (r *RedisStateRepository) Close() error {
	return r.rc.Close()
}
