package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rapidrecall/dashboard/internal/core/domain"
	"github.com/rapidrecall/dashboard/internal/core/ports"
)

const sessionKeyPrefix = "dashboard:session:"

// Hash fields of a session entry. Clearing a session deletes the whole hash.
const (
	fieldUID          = "uid"
	fieldEmail        = "email"
	fieldDisplayName  = "displayName"
	fieldPhotoURL     = "photoURL"
	fieldIDToken      = "idToken"
	fieldRefreshToken = "refreshToken"
	fieldRole         = "userRole"
	fieldExpiresAt    = "expiresAt"
)

// SessionStore keeps one Redis hash per dashboard session.
// Key format: dashboard:session:<session_id>
type SessionStore struct {
	client *redis.Client
	ttl    time.Duration
}

var _ ports.SessionStore = (*SessionStore)(nil)

// NewSessionStore creates a SessionStore. An entry expires at the deadline
// given to SaveIdentity, or ttl after its first write when there is none.
func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{client: client, ttl: ttl}
}

// Load returns nil, nil when the session has no entry.
func (s *SessionStore) Load(ctx context.Context, sessionID string) (*ports.PersistedSession, error) {
	fields, err := s.client.HGetAll(ctx, s.key(sessionID)).Result()
	if err != nil {
		return nil, fmt.Errorf("session load: %w", err)
	}
	if len(fields) == 0 {
		return nil, nil
	}
	return decodeSession(fields), nil
}

// SaveIdentity writes the identity and pins the entry's expiry to expiresAt.
func (s *SessionStore) SaveIdentity(ctx context.Context, sessionID string, identity domain.Identity, expiresAt time.Time) error {
	key := s.key(sessionID)
	pairs := []any{
		fieldUID, identity.UID,
		fieldEmail, identity.Email,
		fieldDisplayName, identity.DisplayName,
		fieldPhotoURL, identity.PhotoURL,
	}
	if !expiresAt.IsZero() {
		pairs = append(pairs, fieldExpiresAt, strconv.FormatInt(expiresAt.Unix(), 10))
	}
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, pairs...)
		switch {
		case !expiresAt.IsZero():
			pipe.ExpireAt(ctx, key, expiresAt)
		case s.ttl > 0:
			pipe.ExpireNX(ctx, key, s.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("session save: %w", err)
	}
	return nil
}

func (s *SessionStore) SaveRefreshToken(ctx context.Context, sessionID, refreshToken string) error {
	return s.set(ctx, sessionID, fieldRefreshToken, refreshToken)
}

func (s *SessionStore) SaveToken(ctx context.Context, sessionID, idToken string) error {
	return s.set(ctx, sessionID, fieldIDToken, idToken)
}

func (s *SessionStore) SaveRole(ctx context.Context, sessionID string, role domain.Role) error {
	return s.set(ctx, sessionID, fieldRole, role.String())
}

// Clear deletes every field of the session in one command.
func (s *SessionStore) Clear(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, s.key(sessionID)).Err(); err != nil {
		return fmt.Errorf("session clear: %w", err)
	}
	return nil
}

// set writes the field/value pairs. The TTL is only set when the entry has
// none, so token and role writes never extend a session.
func (s *SessionStore) set(ctx context.Context, sessionID string, pairs ...any) error {
	key := s.key(sessionID)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, pairs...)
		if s.ttl > 0 {
			pipe.ExpireNX(ctx, key, s.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("session save: %w", err)
	}
	return nil
}

func (s *SessionStore) key(sessionID string) string {
	return sessionKeyPrefix + sessionID
}

func decodeSession(fields map[string]string) *ports.PersistedSession {
	p := &ports.PersistedSession{
		Identity: domain.Identity{
			UID:         fields[fieldUID],
			Email:       fields[fieldEmail],
			DisplayName: fields[fieldDisplayName],
			PhotoURL:    fields[fieldPhotoURL],
		},
		IDToken:      fields[fieldIDToken],
		RefreshToken: fields[fieldRefreshToken],
	}
	if raw, ok := fields[fieldRole]; ok && raw != "" {
		p.Role = domain.ParseRole(raw)
		p.HasRole = true
	}
	if sec, err := strconv.ParseInt(fields[fieldExpiresAt], 10, 64); err == nil && sec > 0 {
		p.ExpiresAt = time.Unix(sec, 0)
	}
	return p
}
