package handler

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/rapidrecall/dashboard/internal/api/middleware"
	"github.com/rapidrecall/dashboard/internal/core/domain"
	"github.com/rapidrecall/dashboard/internal/core/ports"
	"github.com/rapidrecall/dashboard/internal/core/service"
	"github.com/rapidrecall/dashboard/internal/infrastructure/identity"
)

// LoginProvider runs the two legs of the provider sign-in.
type LoginProvider interface {
	BeginLogin() (identity.LoginRequest, error)
	CompleteLogin(ctx context.Context, sessionID, code, verifier string) (domain.Identity, ports.IdentitySource, error)
}

// LoginStates keeps the PKCE verifier of pending sign-ins.
type LoginStates interface {
	Put(ctx context.Context, state, verifier string) error
	Take(ctx context.Context, state string) (string, error)
}

// SessionManager starts and ends dashboard sessions.
type SessionManager interface {
	Create(ctx context.Context, sessionID string, identity domain.Identity, source ports.IdentitySource) *service.Reconciler
	End(ctx context.Context, sessionID string) error
}

type AuthHandler struct {
	provider   LoginProvider
	states     LoginStates
	sessions   SessionManager
	cookie     middleware.CookieOptions
	sessionTTL time.Duration
	log        zerolog.Logger
	newID      func() (string, error)
	now        func() time.Time
}

func NewAuthHandler(
	provider LoginProvider,
	states LoginStates,
	sessions SessionManager,
	cookie middleware.CookieOptions,
	sessionTTL time.Duration,
	log zerolog.Logger,
) *AuthHandler {
	return &AuthHandler{
		provider:   provider,
		states:     states,
		sessions:   sessions,
		cookie:     cookie,
		sessionTTL: sessionTTL,
		log:        log,
		newID:      service.NewSessionID,
		now:        time.Now,
	}
}

// Login starts a provider sign-in.
//
// @Summary      Start sign-in
// @Tags         auth
// @Success      302
// @Failure      500  {object}  map[string]string
// @Router       /auth/login [get]
func (h *AuthHandler) Login(c echo.Context) error {
	req, err := h.provider.BeginLogin()
	if err != nil {
		return err
	}
	if err := h.states.Put(c.Request().Context(), req.State, req.Verifier); err != nil {
		return err
	}
	middleware.SetLoginStateCookie(c.Response(), req.State, h.cookie)
	return c.Redirect(http.StatusFound, req.URL)
}

type callbackQuery struct {
	State            string `query:"state"`
	Code             string `query:"code"`
	Error            string `query:"error"`
	ErrorDescription string `query:"error_description"`
}

// Callback completes a provider sign-in, starts the session and its
// reconciliation, and sends the browser to the landing route. The state must
// match the one this browser was given by Login. A session the browser already
// held is ended.
//
// @Summary      Finish sign-in
// @Tags         auth
// @Param        state  query  string  true  "OAuth state"
// @Param        code   query  string  true  "Authorization code"
// @Success      302
// @Failure      400  {object}  map[string]string
// @Failure      401  {object}  map[string]string
// @Router       /auth/callback [get]
func (h *AuthHandler) Callback(c echo.Context) error {
	var q callbackQuery
	if err := (&echo.DefaultBinder{}).BindQueryParams(c, &q); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid callback")
	}
	browserState := middleware.LoginState(c.Request())
	middleware.ClearLoginStateCookie(c.Response(), h.cookie)
	if q.Error != "" {
		h.log.Info().Str("error", q.Error).Str("description", q.ErrorDescription).Msg("provider refused sign-in")
		return echo.NewHTTPError(http.StatusUnauthorized, "sign-in was cancelled or refused")
	}
	if q.State == "" || q.Code == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "missing state or code")
	}
	if browserState == "" || subtle.ConstantTimeCompare([]byte(browserState), []byte(q.State)) != 1 {
		h.log.Warn().Bool("cookie_present", browserState != "").Msg("login state does not belong to this browser")
		return echo.NewHTTPError(http.StatusBadRequest, "invalid or expired login state")
	}

	ctx := c.Request().Context()
	verifier, err := h.states.Take(ctx, q.State)
	if err != nil {
		h.log.Debug().Err(err).Msg("unknown login state")
		return echo.NewHTTPError(http.StatusBadRequest, "invalid or expired login state")
	}

	sid, err := h.newID()
	if err != nil {
		return err
	}
	ident, source, err := h.provider.CompleteLogin(ctx, sid, q.Code, verifier)
	if err != nil {
		h.log.Warn().Err(err).Msg("sign-in failed")
		return echo.NewHTTPError(http.StatusUnauthorized, "sign-in failed")
	}

	if previous := middleware.SessionID(c.Request()); previous != "" {
		if err := h.sessions.End(ctx, previous); err != nil && !errors.Is(err, domain.ErrSessionNotFound) {
			h.log.Warn().Err(err).Msg("failed to end replaced session")
		}
	}

	expiresAt := h.now().Add(h.sessionTTL)
	if r := h.sessions.Create(ctx, sid, ident, source); r != nil {
		if d := r.Deadline(); !d.IsZero() {
			expiresAt = d
		}
	}
	middleware.SetSessionCookie(c.Response(), sid, expiresAt, h.cookie)
	return c.Redirect(http.StatusFound, "/")
}

// Logout ends the session. It succeeds for anonymous callers too.
//
// @Summary      Sign out
// @Tags         auth
// @Success      204
// @Router       /auth/logout [post]
func (h *AuthHandler) Logout(c echo.Context) error {
	if sid := middleware.SessionID(c.Request()); sid != "" {
		if err := h.sessions.End(c.Request().Context(), sid); err != nil && !errors.Is(err, domain.ErrSessionNotFound) {
			h.log.Warn().Err(err).Msg("sign-out cleanup failed")
		}
	}
	middleware.ClearSessionCookie(c.Response(), h.cookie)
	return c.NoContent(http.StatusNoContent)
}
