package handler

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"

	"github.com/rapidrecall/dashboard/internal/api/middleware"
	"github.com/rapidrecall/dashboard/internal/core/domain"
	"github.com/rapidrecall/dashboard/internal/core/service"
)

type stubCaller struct {
	snap service.Snapshot
}

func (s *stubCaller) TokenSource(context.Context) oauth2.TokenSource { return nil }
func (s *stubCaller) Snapshot() service.Snapshot                     { return s.snap }
func (s *stubCaller) ReportUnauthenticated(context.Context)          {}

func signedIn(role domain.Role, known bool) *stubCaller {
	return &stubCaller{snap: service.Snapshot{
		SessionID: "sid",
		State:     domain.StateReconciled,
		Identity:  &domain.Identity{UID: "u1", Email: "u1@example.com"},
		Role:      role,
		RoleKnown: known,
	}}
}

type fixedSessions struct {
	caller service.Caller
}

func (f fixedSessions) Lookup(context.Context, string) (service.Caller, error) {
	return f.caller, nil
}

func newContext(method, target string, body io.Reader) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	e.Validator = NewValidator()
	req := httptest.NewRequest(method, target, body)
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

// withCaller attaches caller to c the way the session middleware does.
func withCaller(t *testing.T, c echo.Context, caller service.Caller) {
	t.Helper()
	c.Request().AddCookie(&http.Cookie{Name: middleware.SessionCookieName, Value: "sid"})
	attach := middleware.Session(fixedSessions{caller: caller}, middleware.CookieOptions{}, zerolog.Nop())
	if err := attach(func(echo.Context) error { return nil })(c); err != nil {
		t.Fatalf("attach caller: %v", err)
	}
}
