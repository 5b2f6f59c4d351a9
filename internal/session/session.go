// Package session holds the authenticated-session context. A Session is created at login,
// persisted in Redis for its lifetime, loaded once per request and destroyed at logout.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/fieldops/taskboard/internal/domain"
)

// ErrNotFound is returned for unknown, expired or revoked sessions.
var ErrNotFound = errors.New("session not found")

// Session is the explicit context of one authenticated user.
type Session struct {
	ID        string      `json:"id"`
	UserID    string      `json:"user_id"`
	Role      domain.Role `json:"role"`
	IssuedAt  time.Time   `json:"issued_at"`
	ExpiresAt time.Time   `json:"expires_at"`

	// User is loaded per request and never persisted.
	User *domain.User `json:"-"`
}

// New starts a session for user lasting ttl.
func New(user *domain.User, ttl time.Duration, now time.Time) *Session {
	return &Session{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		Role:      user.Role,
		IssuedAt:  now,
		ExpiresAt: now.Add(ttl),
		User:      user,
	}
}

// Expired reports whether the session is past its expiry at now.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// Store persists sessions.
type Store interface {
	Save(ctx context.Context, s *Session) error
	Get(ctx context.Context, id string) (*Session, error)
	Delete(ctx context.Context, s *Session) error
	DeleteForUser(ctx context.Context, userID string) error
}

type redisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore returns a Store keeping sessions under prefix.
func NewRedisStore(client *redis.Client, prefix string) Store {
	if prefix == "" {
		prefix = "taskboard"
	}
	return &redisStore{client: client, prefix: prefix}
}

func (r *redisStore) sessionKey(id string) string {
	return r.prefix + ":session:" + id
}

func (r *redisStore) userKey(userID string) string {
	return r.prefix + ":user-sessions:" + userID
}

func (r *redisStore) Save(ctx context.Context, s *Session) error {
	ttl := time.Until(s.ExpiresAt)
	if ttl <= 0 {
		return errors.New("session already expired")
	}
	payload, err := json.Marshal(s)
	if err != nil {
		return err
	}
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, r.sessionKey(s.ID), payload, ttl)
		pipe.SAdd(ctx, r.userKey(s.UserID), s.ID)
		pipe.Expire(ctx, r.userKey(s.UserID), ttl)
		return nil
	})
	return err
}

func (r *redisStore) Get(ctx context.Context, id string) (*Session, error) {
	payload, err := r.client.Get(ctx, r.sessionKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	var s Session
	if err := json.Unmarshal(payload, &s); err != nil {
		return nil, err
	}
	if s.Expired(time.Now()) {
		return nil, ErrNotFound
	}
	return &s, nil
}

func (r *redisStore) Delete(ctx context.Context, s *Session) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, r.sessionKey(s.ID))
		pipe.SRem(ctx, r.userKey(s.UserID), s.ID)
		return nil
	})
	return err
}

// DeleteForUser revokes every session of userID, e.g. after deactivation or a role change.
func (r *redisStore) DeleteForUser(ctx context.Context, userID string) error {
	ids, err := r.client.SMembers(ctx, r.userKey(userID)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	keys := make([]string, 0, len(ids)+1)
	for _, id := range ids {
		keys = append(keys, r.sessionKey(id))
	}
	keys = append(keys, r.userKey(userID))
	return r.client.Del(ctx, keys...).Err()
}
