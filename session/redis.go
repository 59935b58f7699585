package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps the session in Redis so several processes can share one
// aveslog account: the headless-ingestion setup, where a fleet of workers
// logs sightings under a single service account and any of them may renew
// the token for all.
type RedisStore struct {
	redis  redis.UniversalClient
	prefix string
}

// NewRedisStore creates a store on client under the given key prefix.
func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "avesclient"
	}
	return &RedisStore{
		redis:  client,
		prefix: prefix,
	}
}

func (r *RedisStore) sessionKey() string {
	return r.prefix + ":session"
}

func (r *RedisStore) versionKey() string {
	return r.prefix + ":app-version"
}

func (r *RedisStore) Load(ctx context.Context) (*Session, error) {
	data, err := r.redis.Get(ctx, r.sessionKey()).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNoSession
		}
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return Decode(data)
}

func (r *RedisStore) Save(ctx context.Context, s *Session) error {
	data, err := Encode(s)
	if err != nil {
		return err
	}

	// Expiring tokens expire their key with them, so a dead session never
	// outlives its usefulness in a shared store.
	var ttl time.Duration
	if s.ExpiresAt != 0 {
		ttl = time.Until(time.Unix(s.ExpiresAt, 0))
		if ttl <= 0 {
			return errors.New("session already expired")
		}
	}

	if err := r.redis.Set(ctx, r.sessionKey(), data, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return nil
}

func (r *RedisStore) Clear(ctx context.Context) error {
	if err := r.redis.Del(ctx, r.sessionKey()).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return nil
}

func (r *RedisStore) AppVersion(ctx context.Context) (string, error) {
	version, err := r.redis.Get(ctx, r.versionKey()).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", nil
		}
		return "", fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return version, nil
}

func (r *RedisStore) SetAppVersion(ctx context.Context, version string) error {
	if err := r.redis.Set(ctx, r.versionKey(), version, 0).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return nil
}

func (r *RedisStore) Wipe(ctx context.Context) error {
	if err := r.redis.Del(ctx, r.sessionKey(), r.versionKey()).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return nil
}
