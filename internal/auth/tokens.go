package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/stocklane/stocklane/internal/shared"
)

const tokenKeyPrefix = "auth_token_"

// TokenStore keeps opaque bearer tokens in Redis. A token maps straight to
// the actor it was issued for, so requests never touch postgres after login.
type TokenStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewTokenStore constructs TokenStore.
func NewTokenStore(client *redis.Client, ttl time.Duration) *TokenStore {
	return &TokenStore{client: client, ttl: ttl}
}

// Issue mints a fresh token for the actor.
func (s *TokenStore) Issue(ctx context.Context, actor shared.Actor) (string, error) {
	token := uuid.NewString()
	payload, err := json.Marshal(actor)
	if err != nil {
		return "", fmt.Errorf("marshal actor: %w", err)
	}
	if err := s.client.Set(ctx, tokenKeyPrefix+token, payload, s.ttl).Err(); err != nil {
		return "", fmt.Errorf("store token: %w", err)
	}
	return token, nil
}

// Resolve returns the actor bound to the token and slides its expiry.
func (s *TokenStore) Resolve(ctx context.Context, token string) (shared.Actor, error) {
	payload, err := s.client.GetEx(ctx, tokenKeyPrefix+token, s.ttl).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return shared.Actor{}, ErrTokenNotFound
		}
		return shared.Actor{}, fmt.Errorf("resolve token: %w", err)
	}
	var actor shared.Actor
	if err := json.Unmarshal(payload, &actor); err != nil {
		return shared.Actor{}, fmt.Errorf("unmarshal actor: %w", err)
	}
	return actor, nil
}

// Revoke deletes the token. Revoking an unknown token is not an error.
func (s *TokenStore) Revoke(ctx context.Context, token string) error {
	return s.client.Del(ctx, tokenKeyPrefix+token).Err()
}
