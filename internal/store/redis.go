package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"attendboard/internal/auth"
)

// Redis wraps redis client.
type Redis struct {
	Client *redis.Client
}

// NewRedis connects to redis with short timeouts.
func NewRedis(addr string) *Redis {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  1 * time.Second,
		WriteTimeout: 1 * time.Second,
	})
	return &Redis{Client: client}
}

// Healthy verifies redis connectivity.
func (r *Redis) Healthy(ctx context.Context) bool {
	return r.Ping(ctx) == nil
}

// Ping returns the connectivity error, if any.
func (r *Redis) Ping(ctx context.Context) error {
	if r == nil || r.Client == nil {
		return errors.New("redis not configured")
	}
	return r.Client.Ping(ctx).Err()
}

// Close closes the client.
func (r *Redis) Close() error {
	if r == nil || r.Client == nil {
		return nil
	}
	return r.Client.Close()
}

// RedisSessions stores sessions as JSON values that expire with the token.
type RedisSessions struct {
	*Redis
	Prefix string
}

// NewRedisSessions builds a session store under the given key prefix.
func NewRedisSessions(r *Redis, prefix string) *RedisSessions {
	if prefix == "" {
		prefix = "attendboard:session:"
	}
	return &RedisSessions{Redis: r, Prefix: prefix}
}

func (s *RedisSessions) Save(ctx context.Context, sess auth.Session) error {
	b, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	var ttl time.Duration
	if !sess.ExpiresAt.IsZero() {
		ttl = time.Until(sess.ExpiresAt)
		if ttl <= 0 {
			return nil
		}
	}
	return s.Client.Set(ctx, s.Prefix+sess.Token, b, ttl).Err()
}

func (s *RedisSessions) Load(ctx context.Context, token string) (auth.Session, error) {
	b, err := s.Client.Get(ctx, s.Prefix+token).Bytes()
	if errors.Is(err, redis.Nil) {
		return auth.Session{}, auth.ErrSessionNotFound
	}
	if err != nil {
		return auth.Session{}, fmt.Errorf("redis get session: %w", err)
	}
	var sess auth.Session
	if err := json.Unmarshal(b, &sess); err != nil {
		return auth.Session{}, fmt.Errorf("decode session: %w", err)
	}
	return sess, nil
}

func (s *RedisSessions) Delete(ctx context.Context, token string) error {
	return s.Client.Del(ctx, s.Prefix+token).Err()
}
