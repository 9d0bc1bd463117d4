package ports

import (
	"context"
	"time"

	"github.com/rapidrecall/dashboard/internal/core/domain"
)

// PersistedSession is everything a session keeps in persistent storage.
// Role is meaningful only when HasRole is set. ExpiresAt is zero for entries
// written without a lifetime.
type PersistedSession struct {
	Identity     domain.Identity
	IDToken      string
	RefreshToken string
	Role         domain.Role
	HasRole      bool
	ExpiresAt    time.Time
}

// SessionStore is the persistent cache behind a session. Clear removes every
// entry in one step. SaveIdentity fixes the entry's expiry; later writes never
// extend it.
type SessionStore interface {
	Load(ctx context.Context, sessionID string) (*PersistedSession, error)
	SaveIdentity(ctx context.Context, sessionID string, identity domain.Identity, expiresAt time.Time) error
	SaveRefreshToken(ctx context.Context, sessionID, refreshToken string) error
	SaveToken(ctx context.Context, sessionID, idToken string) error
	SaveRole(ctx context.Context, sessionID string, role domain.Role) error
	Clear(ctx context.Context, sessionID string) error
}
