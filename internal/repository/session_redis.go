package repository

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"bnka/portal/internal/models"
)

const sessionKeyPrefix = "session:"

// RedisSessionStore keeps sessions as JSON values whose key TTL matches the
// session expiry. Reads still check ExpiresAt.
type RedisSessionStore struct {
	client *redis.Client
	now    func() time.Time
}

func NewRedisSessionStore(client *redis.Client) *RedisSessionStore {
	return &RedisSessionStore{client: client, now: time.Now}
}

type redisSession struct {
	ID        string    `json:"id"`
	UserID    int64     `json:"userId"`
	IPAddress string    `json:"ipAddress"`
	UserAgent string    `json:"userAgent"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func (s *RedisSessionStore) Create(ctx context.Context, session models.Session) error {
	now := s.now()
	ttl := session.ExpiresAt.Sub(now)
	if ttl <= 0 {
		return fmt.Errorf("session already expired")
	}

	payload, err := json.Marshal(redisSession{
		ID:        session.ID,
		UserID:    session.UserID,
		IPAddress: session.IPAddress,
		UserAgent: session.UserAgent,
		CreatedAt: now.UTC(),
		ExpiresAt: session.ExpiresAt.UTC(),
	})
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}

	return s.client.Set(ctx, sessionKey(session.TokenHash), payload, ttl).Err()
}

func (s *RedisSessionStore) GetByTokenHash(ctx context.Context, tokenHash []byte) (models.Session, error) {
	raw, err := s.client.Get(ctx, sessionKey(tokenHash)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return models.Session{}, ErrSessionNotFound
		}
		return models.Session{}, err
	}

	var stored redisSession
	if err := json.Unmarshal(raw, &stored); err != nil {
		return models.Session{}, fmt.Errorf("decode session: %w", err)
	}

	return models.Session{
		ID:        stored.ID,
		UserID:    stored.UserID,
		TokenHash: tokenHash,
		IPAddress: stored.IPAddress,
		UserAgent: stored.UserAgent,
		CreatedAt: stored.CreatedAt,
		ExpiresAt: stored.ExpiresAt,
	}, nil
}

func (s *RedisSessionStore) DeleteByTokenHash(ctx context.Context, tokenHash []byte) error {
	n, err := s.client.Del(ctx, sessionKey(tokenHash)).Result()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrSessionNotFound
	}
	return nil
}

func sessionKey(tokenHash []byte) string {
	return sessionKeyPrefix + hex.EncodeToString(tokenHash)
}
