package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/goccy/go-json"

	"github.com/hichers/hichers/internal/model"
)

const (
	sessionKeyPrefix = "hichers:session:"
	pendingKeyPrefix = "hichers:otp:"
	pendingTTL       = 10 * time.Minute
)

// RedisProvider stores sessions in Redis, one key per browser session id.
type RedisProvider struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisProvider creates a provider; ttl bounds how long an idle session lives.
func NewRedisProvider(client *redis.Client, ttl time.Duration) *RedisProvider {
	return &RedisProvider{client: client, ttl: ttl}
}

// For returns the store for sid.
func (p *RedisProvider) For(sid string) Store {
	return &RedisStore{client: p.client, sid: sid, ttl: p.ttl}
}

// RedisStore is the Store for a single session id.
type RedisStore struct {
	client *redis.Client
	sid    string
	ttl    time.Duration
}

func (r *RedisStore) getJSON(ctx context.Context, key string, v any) (bool, error) {
	data, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("redis get %s: %w", key, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("decoding %s: %w", key, err)
	}
	return true, nil
}

func (r *RedisStore) setJSON(ctx context.Context, key string, v any, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", key, err)
	}
	if err := r.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// Load reads the session and refreshes its TTL.
func (r *RedisStore) Load(ctx context.Context) (model.Session, error) {
	var s model.Session
	key := sessionKeyPrefix + r.sid
	found, err := r.getJSON(ctx, key, &s)
	if err != nil || !found {
		return model.Session{}, err
	}
	if s.AuthToken != "" && s.UserID <= 0 {
		return model.Session{}, ErrInconsistent
	}
	if r.ttl > 0 {
		r.client.Expire(ctx, key, r.ttl)
	}
	return s, nil
}

// Save writes the session.
func (r *RedisStore) Save(ctx context.Context, s model.Session) error {
	if err := checkInvariant(s); err != nil {
		return err
	}
	return r.setJSON(ctx, sessionKeyPrefix+r.sid, s, r.ttl)
}

// Clear removes the session and pending OTP state.
func (r *RedisStore) Clear(ctx context.Context) error {
	if err := r.client.Del(ctx, sessionKeyPrefix+r.sid, pendingKeyPrefix+r.sid).Err(); err != nil {
		return fmt.Errorf("redis del session: %w", err)
	}
	return nil
}

// LoadPending reads the pending OTP state.
func (r *RedisStore) LoadPending(ctx context.Context) (model.PendingOTP, error) {
	var p model.PendingOTP
	if _, err := r.getJSON(ctx, pendingKeyPrefix+r.sid, &p); err != nil {
		return model.PendingOTP{}, err
	}
	return p, nil
}

// SavePending writes the pending OTP state with a short TTL.
func (r *RedisStore) SavePending(ctx context.Context, p model.PendingOTP) error {
	return r.setJSON(ctx, pendingKeyPrefix+r.sid, p, pendingTTL)
}

// ClearPending removes the pending OTP state.
func (r *RedisStore) ClearPending(ctx context.Context) error {
	if err := r.client.Del(ctx, pendingKeyPrefix+r.sid).Err(); err != nil {
		return fmt.Errorf("redis del pending: %w", err)
	}
	return nil
}
