// Package cache holds short-lived state shared across API instances.
package cache

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/trezcool/escola/core"
)

const revokedKeyPrefix = "escola:session:revoked:"

// OpenRedis connects to redis and checks the connection.
func OpenRedis(ctx context.Context, conf core.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         conf.Addr,
		Password:     conf.Password,
		DB:           conf.DB,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "pinging redis")
	}
	return client, nil
}

type RedisRevocationStore struct {
	client redis.Cmdable
}

func NewRedisRevocationStore(client redis.Cmdable) *RedisRevocationStore {
	return &RedisRevocationStore{client: client}
}

func (s *RedisRevocationStore) Revoke(ctx context.Context, sid string, ttl time.Duration) error {
	if err := s.client.Set(ctx, revokedKeyPrefix+sid, time.Now().UTC().Unix(), ttl).Err(); err != nil {
		return errors.Wrap(err, "setting revoked session")
	}
	return nil
}

func (s *RedisRevocationStore) IsRevoked(ctx context.Context, sid string) (bool, error) {
	n, err := s.client.Exists(ctx, revokedKeyPrefix+sid).Result()
	if err != nil {
		return false, errors.Wrap(err, "checking revoked session")
	}
	return n > 0, nil
}
