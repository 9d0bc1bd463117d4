package service

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"golang.org/x/oauth2"

	"github.com/rapidrecall/dashboard/internal/core/domain"
	"github.com/rapidrecall/dashboard/internal/core/ports"
)

// ---- In-memory session store ----

type memStore struct {
	mu       sync.Mutex
	sessions map[string]*ports.PersistedSession
	clears   int
	roleSets int
}

func newMemStore() *memStore {
	return &memStore{sessions: make(map[string]*ports.PersistedSession)}
}

func (m *memStore) entry(sid string) *ports.PersistedSession {
	p, ok := m.sessions[sid]
	if !ok {
		p = &ports.PersistedSession{}
		m.sessions[sid] = p
	}
	return p
}

func (m *memStore) Load(_ context.Context, sid string) (*ports.PersistedSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.sessions[sid]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (m *memStore) SaveIdentity(_ context.Context, sid string, id domain.Identity, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.entry(sid)
	p.Identity = id
	p.ExpiresAt = expiresAt
	return nil
}

func (m *memStore) SaveRefreshToken(_ context.Context, sid, rt string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entry(sid).RefreshToken = rt
	return nil
}

func (m *memStore) SaveToken(_ context.Context, sid, tok string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entry(sid).IDToken = tok
	return nil
}

func (m *memStore) SaveRole(_ context.Context, sid string, role domain.Role) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.entry(sid)
	p.Role = role
	p.HasRole = true
	m.roleSets++
	return nil
}

func (m *memStore) Clear(_ context.Context, sid string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, sid)
	m.clears++
	return nil
}

func (m *memStore) get(sid string) (ports.PersistedSession, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.sessions[sid]
	if !ok {
		return ports.PersistedSession{}, false
	}
	return *p, true
}

func (m *memStore) roleSetCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.roleSets
}

func (m *memStore) clearCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.clears
}

// ---- Identity source stub ----

type stubSource struct {
	mu       sync.Mutex
	tokenErr error
	calls    int
	forced   int
	signOuts int
}

func (s *stubSource) Token(_ context.Context, force bool) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if force {
		s.forced++
	}
	if s.tokenErr != nil {
		return "", s.tokenErr
	}
	return "tok-" + strconv.Itoa(s.calls), nil
}

func (s *stubSource) SignOut(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.signOuts++
	return nil
}

func (s *stubSource) setTokenErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokenErr = err
}

func (s *stubSource) signOutCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.signOuts
}

func (s *stubSource) forcedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.forced
}

// ---- Authorization service stub ----

// stubAuthz answers call n (1-based) with verify(ctx, n, req).
type stubAuthz struct {
	mu     sync.Mutex
	n      int
	reqs   []ports.VerifyRequest
	verify func(ctx context.Context, n int, req ports.VerifyRequest) (domain.Role, error)
}

func (s *stubAuthz) VerifyToken(ctx context.Context, req ports.VerifyRequest) (domain.Role, error) {
	s.mu.Lock()
	s.n++
	n := s.n
	s.reqs = append(s.reqs, req)
	fn := s.verify
	s.mu.Unlock()
	if fn == nil {
		return domain.RoleUser, nil
	}
	return fn(ctx, n, req)
}

func (s *stubAuthz) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.n
}

func (s *stubAuthz) lastRequest() ports.VerifyRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.reqs) == 0 {
		return ports.VerifyRequest{}
	}
	return s.reqs[len(s.reqs)-1]
}

func fixedRole(role domain.Role, err error) func(context.Context, int, ports.VerifyRequest) (domain.Role, error) {
	return func(context.Context, int, ports.VerifyRequest) (domain.Role, error) { return role, err }
}

// ---- Caller stub ----

type stubCaller struct {
	snap     Snapshot
	mu       sync.Mutex
	reported int
}

func signedInCaller(role domain.Role, known bool) *stubCaller {
	return &stubCaller{snap: Snapshot{
		SessionID: "sid",
		State:     domain.StateReconciled,
		Identity:  &domain.Identity{UID: "u1", Email: "u1@example.com"},
		Role:      role,
		RoleKnown: known,
		HasToken:  true,
	}}
}

func (c *stubCaller) TokenSource(context.Context) oauth2.TokenSource {
	return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "tok"})
}

func (c *stubCaller) Snapshot() Snapshot { return c.snap }

func (c *stubCaller) ReportUnauthenticated(context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reported++
}

func (c *stubCaller) reports() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reported
}

// ---- Helpers ----

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

var errBoom = errors.New("boom")
