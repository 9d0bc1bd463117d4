package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	loginStateKeyPrefix = "dashboard:login:"
	loginStateTTL       = 5 * time.Minute
)

// ErrLoginStateNotFound is returned for unknown, expired or already used states.
var ErrLoginStateNotFound = errors.New("login state not found")

// LoginStateStore remembers the PKCE verifier of each pending sign-in, keyed
// by its OAuth state. Every state can be taken exactly once.
type LoginStateStore struct {
	client *redis.Client
}

func NewLoginStateStore(client *redis.Client) *LoginStateStore {
	return &LoginStateStore{client: client}
}

func (s *LoginStateStore) Put(ctx context.Context, state, verifier string) error {
	if err := s.client.Set(ctx, loginStateKeyPrefix+state, verifier, loginStateTTL).Err(); err != nil {
		return fmt.Errorf("login state save: %w", err)
	}
	return nil
}

// Take returns and deletes the verifier stored for state.
func (s *LoginStateStore) Take(ctx context.Context, state string) (string, error) {
	if state == "" {
		return "", ErrLoginStateNotFound
	}
	verifier, err := s.client.GetDel(ctx, loginStateKeyPrefix+state).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrLoginStateNotFound
	}
	if err != nil {
		return "", fmt.Errorf("login state take: %w", err)
	}
	return verifier, nil
}
