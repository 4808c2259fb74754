package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// SessionStore is a session registry shared by every instance pointing at the
// same Redis. Session keys expire with their token, so no sweeper is needed.
type SessionStore struct {
	client *redis.Client
	now    func() time.Time
}

// NewSessionStore creates a new Redis-backed session registry
func NewSessionStore(client *redis.Client) *SessionStore {
	return &SessionStore{
		client: client,
		now:    time.Now,
	}
}

// Add stores a session until expiresAt
func (s *SessionStore) Add(ctx context.Context, tokenID, userID string, expiresAt time.Time) error {
	ttl := expiresAt.Sub(s.now())
	if ttl <= 0 {
		return nil
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, SessionKey(tokenID), userID, ttl)
	pipe.SAdd(ctx, UserSessionsKey(userID), tokenID)
	// The index set lives at least as long as the newest session.
	pipe.ExpireGT(ctx, UserSessionsKey(userID), ttl)
	pipe.ExpireNX(ctx, UserSessionsKey(userID), ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// Active reports whether tokenID is still registered
func (s *SessionStore) Active(ctx context.Context, tokenID string) (bool, error) {
	_, err := s.client.Get(ctx, SessionKey(tokenID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("failed to get session: %w", err)
	}
	return true, nil
}

// Revoke removes a single session
func (s *SessionStore) Revoke(ctx context.Context, tokenID string) error {
	userID, err := s.client.GetDel(ctx, SessionKey(tokenID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	if err := s.client.SRem(ctx, UserSessionsKey(userID), tokenID).Err(); err != nil {
		return fmt.Errorf("failed to unindex session: %w", err)
	}
	return nil
}

// RevokeUser removes every session of userID
func (s *SessionStore) RevokeUser(ctx context.Context, userID string) (int, error) {
	ids, err := s.client.SMembers(ctx, UserSessionsKey(userID)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to list sessions: %w", err)
	}

	keys := make([]string, 0, len(ids)+1)
	for _, id := range ids {
		keys = append(keys, SessionKey(id))
	}
	keys = append(keys, UserSessionsKey(userID))

	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return 0, fmt.Errorf("failed to revoke sessions: %w", err)
	}
	return len(ids), nil
}

// Count returns the number of live sessions
func (s *SessionStore) Count(ctx context.Context) (int, error) {
	n := 0
	iter := s.client.Scan(ctx, 0, KeyPrefixSession+"*", 0).Iterator()
	for iter.Next(ctx) {
		if _, err := ExtractTokenID(iter.Val()); err == nil {
			n++
		}
	}
	if err := iter.Err(); err != nil {
		return 0, fmt.Errorf("failed to count sessions: %w", err)
	}
	return n, nil
}
