package clientstate

import (
	"context"
	"errors"
	"time"

	"storefront/internal/domain"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "storefront:"

type redisRepo struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedis stores values as plain strings under storefront:<owner>:<key>.
// A zero ttl keeps keys until deleted.
func NewRedis(rdb *redis.Client, ttl time.Duration) Repository {
	return &redisRepo{rdb: rdb, ttl: ttl}
}

// ConnectRedis parses redisURL and verifies connectivity with a ping.
func ConnectRedis(ctx context.Context, redisURL string) (*redis.Client, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}
	return rdb, nil
}

func redisKey(owner, key string) string {
	return redisKeyPrefix + owner + ":" + key
}

func (r *redisRepo) Get(ctx context.Context, owner, key string) ([]byte, error) {
	value, err := r.rdb.Get(ctx, redisKey(owner, key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return value, nil
}

func (r *redisRepo) Set(ctx context.Context, owner, key string, value []byte) error {
	return r.rdb.Set(ctx, redisKey(owner, key), value, r.ttl).Err()
}

func (r *redisRepo) Delete(ctx context.Context, owner, key string) error {
	return r.rdb.Del(ctx, redisKey(owner, key)).Err()
}

func (r *redisRepo) Ping(ctx context.Context) error {
	return r.rdb.Ping(ctx).Err()
}
