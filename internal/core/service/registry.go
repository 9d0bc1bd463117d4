package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/rapidrecall/dashboard/internal/api/metrics"
	"github.com/rapidrecall/dashboard/internal/core/domain"
	"github.com/rapidrecall/dashboard/internal/core/ports"
)

// IdentityResumer rebuilds the identity and provider handle of a session
// persisted by another process.
type IdentityResumer interface {
	Resume(ctx context.Context, sessionID string, persisted *ports.PersistedSession) (domain.Identity, ports.IdentitySource, error)
}

// Registry owns the live Reconciler of every dashboard session.
type Registry struct {
	store    ports.SessionStore
	authz    ports.AuthorizationService
	resumer  IdentityResumer
	interval time.Duration
	lifetime time.Duration
	log      zerolog.Logger

	mu       sync.Mutex
	sessions map[string]*Reconciler
}

// NewRegistry creates an empty Registry. Sessions end on their own lifetime
// after sign-in; a zero lifetime keeps them until sign-out.
func NewRegistry(
	store ports.SessionStore,
	authz ports.AuthorizationService,
	resumer IdentityResumer,
	interval time.Duration,
	lifetime time.Duration,
	log zerolog.Logger,
) *Registry {
	return &Registry{
		store:    store,
		authz:    authz,
		resumer:  resumer,
		interval: interval,
		lifetime: lifetime,
		log:      log,
		sessions: make(map[string]*Reconciler),
	}
}

// NewSessionID generates a cryptographically secure session id (256 bits).
func NewSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("session: failed to generate id: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// Create starts a session for a freshly signed-in identity.
// A token refresh failure is logged by the reconciler and does not prevent
// the session from being created.
func (g *Registry) Create(ctx context.Context, sessionID string, identity domain.Identity, source ports.IdentitySource) *Reconciler {
	r := g.newReconciler(sessionID)
	g.mu.Lock()
	g.sessions[sessionID] = r
	g.mu.Unlock()
	metrics.ActiveSessions.Inc()

	_ = r.OnIdentityEstablished(ctx, identity, source)
	g.log.Info().Str("uid", identity.UID).Msg("session started")
	return r
}

// Get returns the live reconciler of sessionID, resuming it from persistent
// storage when this process has not seen it yet.
func (g *Registry) Get(ctx context.Context, sessionID string) (*Reconciler, error) {
	if sessionID == "" {
		return nil, domain.ErrSessionNotFound
	}
	g.mu.Lock()
	r, ok := g.sessions[sessionID]
	g.mu.Unlock()
	if ok {
		if r.expire(ctx) {
			return nil, domain.ErrSessionNotFound
		}
		return r, nil
	}
	return g.resume(ctx, sessionID)
}

// Lookup is Get for callers that only run foreground actions.
func (g *Registry) Lookup(ctx context.Context, sessionID string) (Caller, error) {
	r, err := g.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (g *Registry) resume(ctx context.Context, sessionID string) (*Reconciler, error) {
	persisted, err := g.store.Load(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("resume session: %w", err)
	}
	if persisted == nil || persisted.RefreshToken == "" {
		return nil, domain.ErrSessionNotFound
	}
	if !persisted.ExpiresAt.IsZero() && !time.Now().Before(persisted.ExpiresAt) {
		if err := g.store.Clear(ctx, sessionID); err != nil {
			g.log.Warn().Err(err).Msg("failed to clear expired session")
		}
		return nil, domain.ErrSessionNotFound
	}
	identity, source, err := g.resumer.Resume(ctx, sessionID, persisted)
	if err != nil {
		return nil, fmt.Errorf("resume session: %w", err)
	}
	if identity.UID == "" {
		return nil, domain.ErrSessionNotFound
	}

	r := g.newReconciler(sessionID)
	r.Restore(persisted)

	g.mu.Lock()
	if existing, ok := g.sessions[sessionID]; ok {
		g.mu.Unlock()
		return existing, nil
	}
	g.sessions[sessionID] = r
	g.mu.Unlock()
	metrics.ActiveSessions.Inc()

	_ = r.OnIdentityEstablished(ctx, identity, source)
	g.log.Info().Str("uid", identity.UID).Msg("session resumed")
	return r, nil
}

// End signs the session out. Unknown sessions still have their persisted
// entries cleared.
func (g *Registry) End(ctx context.Context, sessionID string) error {
	g.mu.Lock()
	r, ok := g.sessions[sessionID]
	g.mu.Unlock()
	if !ok {
		return g.store.Clear(ctx, sessionID)
	}
	return r.SignOut(ctx)
}

// Shutdown stops every reconciliation loop. Persisted sessions survive and are
// resumed by the next process.
func (g *Registry) Shutdown() {
	g.mu.Lock()
	all := make([]*Reconciler, 0, len(g.sessions))
	for _, r := range g.sessions {
		all = append(all, r)
	}
	g.mu.Unlock()

	for _, r := range all {
		r.Stop()
	}
}

// Len returns the number of live sessions.
func (g *Registry) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.sessions)
}

func (g *Registry) newReconciler(sessionID string) *Reconciler {
	r := NewReconciler(ReconcilerConfig{
		SessionID: sessionID,
		Store:     g.store,
		Authz:     g.authz,
		Interval:  g.interval,
		Lifetime:  g.lifetime,
		Log:       g.log,
		OnEnd:     g.forget,
	})
	r.Subscribe(func(c domain.RoleChange) {
		g.log.Info().
			Str("session", c.SessionID).
			Str("from", c.Previous.String()).
			Bool("had_role", c.HadRole).
			Str("to", c.Current.String()).
			Msg("role reconciled")
	})
	return r
}

func (g *Registry) forget(sessionID string) {
	g.mu.Lock()
	_, ok := g.sessions[sessionID]
	delete(g.sessions, sessionID)
	g.mu.Unlock()
	if ok {
		metrics.ActiveSessions.Dec()
	}
}
