package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisBytes is a BytesCache on a shared redis client.
type RedisBytes struct {
	cli     *redis.Client
	prefix  string
	timeout time.Duration
}

func NewRedisBytes(cli *redis.Client, prefix string) *RedisBytes {
	return &RedisBytes{cli: cli, prefix: prefix, timeout: 2 * time.Second}
}

func (r *RedisBytes) GetBytes(key string) ([]byte, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	b, err := r.cli.Get(ctx, r.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

func (r *RedisBytes) SetBytes(key string, value []byte, ttl time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	return r.cli.Set(ctx, r.prefix+key, value, ttl).Err()
}
