package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"

	"github.com/rapidrecall/dashboard/internal/api/metrics"
	"github.com/rapidrecall/dashboard/internal/core/domain"
	"github.com/rapidrecall/dashboard/internal/core/ports"
)

const defaultReconcileInterval = 30 * time.Second

var errReconcileBusy = errors.New("reconciliation already in flight")

// ReconcilerConfig wires a Reconciler to its collaborators.
type ReconcilerConfig struct {
	SessionID string
	Store     ports.SessionStore
	Authz     ports.AuthorizationService
	Interval  time.Duration
	// Lifetime bounds a session from sign-in; zero means unbounded.
	Lifetime time.Duration
	Log      zerolog.Logger
	// OnEnd is called once each time the session leaves the signed-in state.
	OnEnd func(sessionID string)
}

// Snapshot is a consistent read of a session's cached state.
type Snapshot struct {
	SessionID string              `json:"session_id"`
	State     domain.SessionState `json:"state"`
	Identity  *domain.Identity    `json:"identity,omitempty"`
	Role      domain.Role         `json:"role"`
	RoleKnown bool                `json:"role_known"`
	HasToken  bool                `json:"has_token"`
}

// Authenticated reports whether an identity is present.
func (s Snapshot) Authenticated() bool {
	return s.State != domain.StateSignedOut && s.Identity != nil
}

// Reconciler keeps one session's cached role aligned with the Authorization
// Service. It is the only writer of the session's token and role cache.
//
// Every reconciliation attempt is tagged with the session epoch and a sequence
// number taken when it starts. A result is applied only while its epoch is
// current and only if no later-started attempt has already been applied, so a
// slow response can never overwrite a fresher one.
type Reconciler struct {
	sessionID string
	store     ports.SessionStore
	authz     ports.AuthorizationService
	interval  time.Duration
	lifetime  time.Duration
	log       zerolog.Logger
	onEnd     func(string)

	mu         sync.Mutex
	state      domain.SessionState
	identity   domain.Identity
	source     ports.IdentitySource
	token      string
	role       domain.Role
	hasRole    bool
	deadline   time.Time
	epoch      uint64
	seq        uint64
	appliedSeq uint64
	inFlight   int
	loop       *loopHandle
	subs       map[int]func(domain.RoleChange)
	nextSub    int
}

type loopHandle struct {
	cancel context.CancelFunc
	done   chan struct{}
}

type attempt struct {
	epoch    uint64
	seq      uint64
	identity domain.Identity
	source   ports.IdentitySource
}

// NewReconciler returns a signed-out Reconciler.
func NewReconciler(cfg ReconcilerConfig) *Reconciler {
	interval := cfg.Interval
	if interval <= 0 {
		interval = defaultReconcileInterval
	}
	return &Reconciler{
		sessionID: cfg.SessionID,
		store:     cfg.Store,
		authz:     cfg.Authz,
		interval:  interval,
		lifetime:  cfg.Lifetime,
		log:       cfg.Log.With().Str("session", cfg.SessionID).Logger(),
		onEnd:     cfg.OnEnd,
		subs:      make(map[int]func(domain.RoleChange)),
	}
}

// Restore seeds the in-memory cache from persisted state without touching the
// network. It is used when a session outlives the process that created it.
func (r *Reconciler) Restore(p *ports.PersistedSession) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.token = p.IDToken
	r.role = p.Role
	r.hasRole = p.HasRole
	r.deadline = p.ExpiresAt
}

// OnIdentityEstablished records a signed-in identity, persists a forcibly
// refreshed token and starts periodic reconciliation, the first attempt
// running immediately. The session ends on its own once its lifetime, counted
// from sign-in or taken from restored state, has passed. A failed token refresh is logged and returned; the
// cached role is left alone and the loop still starts so the next tick retries.
func (r *Reconciler) OnIdentityEstablished(ctx context.Context, identity domain.Identity, source ports.IdentitySource) error {
	r.mu.Lock()
	old := r.detachLoopLocked()
	r.epoch++
	epoch := r.epoch
	r.identity = identity
	r.source = source
	r.state = domain.StateAwaitingReconciliation
	if r.deadline.IsZero() && r.lifetime > 0 {
		r.deadline = time.Now().Add(r.lifetime)
	}
	deadline := r.deadline
	r.mu.Unlock()
	old.wait()

	if err := r.store.SaveIdentity(ctx, r.sessionID, identity, deadline); err != nil {
		r.log.Warn().Err(err).Msg("failed to persist identity")
	}

	token, err := source.Token(ctx, true)
	if err != nil {
		r.log.Warn().Err(err).Str("uid", identity.UID).Msg("token refresh after sign-in failed")
		r.startLoop(epoch)
		return fmt.Errorf("establish identity: %w", err)
	}
	r.storeToken(ctx, epoch, token)
	r.startLoop(epoch)
	return nil
}

// OnIdentityCleared drops every cached session field. The in-memory cache is
// cleared before this returns, so no navigation decision made afterwards can
// see privileged state. It is unconditional and idempotent.
func (r *Reconciler) OnIdentityCleared(ctx context.Context) error {
	r.mu.Lock()
	wasActive := r.state != domain.StateSignedOut
	h := r.resetLocked()
	r.mu.Unlock()
	h.wait()

	err := r.store.Clear(ctx, r.sessionID)
	if err != nil {
		r.log.Error().Err(err).Msg("failed to clear persisted session")
	}
	if wasActive {
		r.ended()
	}
	return err
}

// SignOut ends the provider session and clears the cache.
func (r *Reconciler) SignOut(ctx context.Context) error {
	r.mu.Lock()
	source := r.source
	r.mu.Unlock()

	if source != nil {
		if err := source.SignOut(ctx); err != nil {
			r.log.Warn().Err(err).Msg("identity provider sign-out failed")
		}
	}
	return r.OnIdentityCleared(ctx)
}

// Reconcile runs one reconciliation attempt. Failures other than an
// unauthorized response leave the cache untouched and are returned for the
// caller to log.
func (r *Reconciler) Reconcile(ctx context.Context) error {
	a, err := r.begin(false)
	if err != nil {
		return err
	}
	defer r.finish()
	return r.run(ctx, a)
}

// ReportUnauthenticated ends the session after a foreground call was rejected
// with 401. It is a no-op when the session is already signed out.
func (r *Reconciler) ReportUnauthenticated(ctx context.Context) {
	r.mu.Lock()
	epoch := r.epoch
	seq := r.seq
	r.mu.Unlock()
	r.invalidate(ctx, epoch, seq)
}

// Expired reports whether the session has outlived its deadline.
func (r *Reconciler) Expired() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.expiredLocked(time.Now())
}

// Deadline returns when the session ends on its own. It is zero for
// unbounded or signed-out sessions.
func (r *Reconciler) Deadline() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.deadline
}

// Snapshot returns the cached state.
func (r *Reconciler) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := Snapshot{
		SessionID: r.sessionID,
		State:     r.state,
		Role:      r.role,
		RoleKnown: r.hasRole,
		HasToken:  r.token != "",
	}
	if r.state != domain.StateSignedOut {
		id := r.identity
		s.Identity = &id
	}
	return s
}

// Subscribe registers fn for role changes and returns a function removing it.
func (r *Reconciler) Subscribe(fn func(domain.RoleChange)) func() {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.nextSub
	r.nextSub++
	r.subs[id] = fn
	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.subs, id)
	}
}

// Stop tears down the periodic loop without touching the cache.
func (r *Reconciler) Stop() {
	r.mu.Lock()
	h := r.detachLoopLocked()
	r.mu.Unlock()
	h.wait()
}

// TokenSource yields a freshly refreshed identity token on every call and
// persists it, for use as the Bearer credential of foreground requests.
func (r *Reconciler) TokenSource(ctx context.Context) oauth2.TokenSource {
	return &sessionTokenSource{ctx: ctx, r: r}
}

type sessionTokenSource struct {
	ctx context.Context
	r   *Reconciler
}

func (s *sessionTokenSource) Token() (*oauth2.Token, error) {
	s.r.mu.Lock()
	epoch := s.r.epoch
	source := s.r.source
	signedOut := s.r.state == domain.StateSignedOut
	s.r.mu.Unlock()

	if signedOut || source == nil {
		return nil, domain.ErrNoIdentity
	}
	token, err := source.Token(s.ctx, true)
	if err != nil {
		return nil, fmt.Errorf("refresh identity token: %w", err)
	}
	s.r.storeToken(s.ctx, epoch, token)
	return &oauth2.Token{AccessToken: token, TokenType: "Bearer"}, nil
}

func (r *Reconciler) begin(skipIfBusy bool) (attempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == domain.StateSignedOut || r.source == nil || r.expiredLocked(time.Now()) {
		return attempt{}, domain.ErrNoIdentity
	}
	if skipIfBusy && r.inFlight > 0 {
		return attempt{}, errReconcileBusy
	}
	r.seq++
	r.inFlight++
	return attempt{epoch: r.epoch, seq: r.seq, identity: r.identity, source: r.source}, nil
}

func (r *Reconciler) finish() {
	r.mu.Lock()
	r.inFlight--
	r.mu.Unlock()
}

func (r *Reconciler) run(ctx context.Context, a attempt) error {
	start := time.Now()
	defer func() { metrics.ReconcileDuration.Observe(time.Since(start).Seconds()) }()

	token, err := a.source.Token(ctx, true)
	if err != nil {
		metrics.ReconciliationsTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("reconcile: refresh token: %w", err)
	}
	r.storeToken(ctx, a.epoch, token)

	role, err := r.authz.VerifyToken(ctx, ports.VerifyRequest{
		Token:       token,
		UID:         a.identity.UID,
		Email:       a.identity.Email,
		DisplayName: a.identity.DisplayName,
		PhotoURL:    a.identity.PhotoURL,
	})
	switch {
	case err == nil:
		r.apply(ctx, a, role)
		return nil
	case errors.Is(err, domain.ErrUnauthenticated):
		metrics.ReconciliationsTotal.WithLabelValues("unauthorized").Inc()
		r.invalidate(ctx, a.epoch, a.seq)
		return err
	default:
		metrics.ReconciliationsTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("reconcile: verify token: %w", err)
	}
}

func (r *Reconciler) apply(ctx context.Context, a attempt, role domain.Role) {
	r.mu.Lock()
	if a.epoch != r.epoch || r.state == domain.StateSignedOut || a.seq < r.appliedSeq {
		r.mu.Unlock()
		metrics.ReconciliationsTotal.WithLabelValues("discarded").Inc()
		r.log.Debug().Uint64("seq", a.seq).Msg("discarding superseded reconciliation result")
		return
	}
	r.appliedSeq = a.seq
	r.state = domain.StateReconciled

	if r.hasRole && r.role == role {
		r.mu.Unlock()
		metrics.ReconciliationsTotal.WithLabelValues("unchanged").Inc()
		return
	}

	change := domain.RoleChange{SessionID: r.sessionID, Previous: r.role, HadRole: r.hasRole, Current: role}
	r.role = role
	r.hasRole = true
	// Held across the write so it cannot land after resetLocked; Snapshot waits on it.
	if err := r.store.SaveRole(ctx, r.sessionID, role); err != nil {
		r.log.Warn().Err(err).Msg("failed to persist role")
	}
	subs := make([]func(domain.RoleChange), 0, len(r.subs))
	for _, fn := range r.subs {
		subs = append(subs, fn)
	}
	r.mu.Unlock()

	metrics.ReconciliationsTotal.WithLabelValues("changed").Inc()
	metrics.RoleChangesTotal.WithLabelValues(role.String()).Inc()
	r.log.Info().Str("role", role.String()).Bool("had_role", change.HadRole).Msg("cached role updated")
	for _, fn := range subs {
		fn(change)
	}
}

// invalidate handles proof that the session's token is no longer accepted.
// Only the first call for a given epoch has any effect.
func (r *Reconciler) invalidate(ctx context.Context, epoch, seq uint64) {
	r.mu.Lock()
	if epoch != r.epoch || r.state == domain.StateSignedOut {
		r.mu.Unlock()
		r.log.Debug().Msg("unauthorized response for a session already signed out")
		return
	}
	if seq < r.appliedSeq {
		r.mu.Unlock()
		r.log.Debug().Uint64("seq", seq).Msg("ignoring unauthorized response from a superseded attempt")
		return
	}
	r.terminateLocked(ctx)
	metrics.ForcedSignOutsTotal.Inc()
	r.log.Info().Msg("session terminated: identity token rejected")
	r.ended()
}

// expire ends the session once its deadline has passed. It is safe to call
// from the loop and is a no-op for live or signed-out sessions.
func (r *Reconciler) expire(ctx context.Context) bool {
	r.mu.Lock()
	if r.state == domain.StateSignedOut || !r.expiredLocked(time.Now()) {
		r.mu.Unlock()
		return false
	}
	r.terminateLocked(ctx)
	metrics.SessionsExpiredTotal.Inc()
	r.log.Info().Msg("session terminated: lifetime exceeded")
	r.ended()
	return true
}

// terminateLocked resets the cache, releases r.mu and ends the provider
// session and the persisted entry.
func (r *Reconciler) terminateLocked(ctx context.Context) {
	source := r.source
	h := r.resetLocked()
	r.mu.Unlock()
	// The loop may be the caller; cancel it but never wait for it here.
	h.cancelOnly()

	cleanup := context.WithoutCancel(ctx)
	if source != nil {
		if err := source.SignOut(cleanup); err != nil {
			r.log.Warn().Err(err).Msg("identity provider sign-out failed")
		}
	}
	if err := r.store.Clear(cleanup, r.sessionID); err != nil {
		r.log.Error().Err(err).Msg("failed to clear persisted session")
	}
}

func (r *Reconciler) expiredLocked(now time.Time) bool {
	return !r.deadline.IsZero() && !now.Before(r.deadline)
}

func (r *Reconciler) storeToken(ctx context.Context, epoch uint64, token string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if epoch != r.epoch || r.state == domain.StateSignedOut {
		return
	}
	r.token = token
	// Held across the write so it cannot land after resetLocked; Snapshot waits on it.
	if err := r.store.SaveToken(ctx, r.sessionID, token); err != nil {
		r.log.Warn().Err(err).Msg("failed to persist identity token")
	}
}

func (r *Reconciler) resetLocked() *loopHandle {
	h := r.detachLoopLocked()
	r.epoch++
	r.state = domain.StateSignedOut
	r.identity = domain.Identity{}
	r.source = nil
	r.token = ""
	r.role = domain.RoleUser
	r.hasRole = false
	r.deadline = time.Time{}
	r.appliedSeq = r.seq
	return h
}

func (r *Reconciler) ended() {
	if r.onEnd != nil {
		r.onEnd(r.sessionID)
	}
}

func (r *Reconciler) startLoop(epoch uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if epoch != r.epoch || r.state == domain.StateSignedOut || r.loop != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	h := &loopHandle{cancel: cancel, done: make(chan struct{})}
	r.loop = h
	go r.loopRun(ctx, h, r.deadline)
}

func (r *Reconciler) loopRun(ctx context.Context, h *loopHandle, deadline time.Time) {
	defer close(h.done)

	var expired <-chan time.Time
	if !deadline.IsZero() {
		timer := time.NewTimer(time.Until(deadline))
		defer timer.Stop()
		expired = timer.C
	}

	if r.expire(ctx) {
		return
	}
	r.tick(ctx)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-expired:
			r.expire(ctx)
			return
		case <-ticker.C:
			r.tick(ctx)
		}
	}
}

func (r *Reconciler) tick(ctx context.Context) {
	a, err := r.begin(true)
	if errors.Is(err, errReconcileBusy) {
		metrics.ReconciliationsTotal.WithLabelValues("skipped").Inc()
		r.log.Debug().Msg("reconciliation tick skipped: previous attempt still running")
		return
	}
	if err != nil {
		return
	}
	defer r.finish()

	if err := r.run(ctx, a); err != nil && !errors.Is(err, domain.ErrUnauthenticated) && ctx.Err() == nil {
		r.log.Warn().Err(err).Msg("background reconciliation failed, keeping cached role")
	}
}

func (r *Reconciler) detachLoopLocked() *loopHandle {
	h := r.loop
	r.loop = nil
	return h
}

func (h *loopHandle) wait() {
	if h == nil {
		return
	}
	h.cancel()
	<-h.done
}

func (h *loopHandle) cancelOnly() {
	if h == nil {
		return
	}
	h.cancel()
}
