package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/rapidrecall/dashboard/internal/core/domain"
	"github.com/rapidrecall/dashboard/internal/core/service"
)

const ctxKeyCaller = "caller"

// Sessions resolves a session id to the session's live state.
type Sessions interface {
	Lookup(ctx context.Context, sessionID string) (service.Caller, error)
}

// Session attaches the caller identified by the session cookie to the request.
// Requests without a usable session continue anonymously; a stale cookie is
// removed.
func Session(sessions Sessions, cookie CookieOptions, log zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			sid := SessionID(c.Request())
			if sid == "" {
				return next(c)
			}

			caller, err := sessions.Lookup(c.Request().Context(), sid)
			switch {
			case err == nil:
				c.Set(ctxKeyCaller, caller)
			case errors.Is(err, domain.ErrSessionNotFound):
				ClearSessionCookie(c.Response(), cookie)
			default:
				log.Warn().Err(err).Msg("session lookup failed, continuing signed out")
			}
			return next(c)
		}
	}
}

// CallerFrom returns the caller attached by Session.
func CallerFrom(c echo.Context) (service.Caller, bool) {
	caller, ok := c.Get(ctxKeyCaller).(service.Caller)
	return caller, ok && caller != nil
}

// RequireIdentity rejects requests without a signed-in identity. It never
// looks at the cached role: the Authorization Service judges every action.
func RequireIdentity() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			caller, ok := CallerFrom(c)
			if !ok || !caller.Snapshot().Authenticated() {
				return echo.NewHTTPError(http.StatusUnauthorized, "not signed in")
			}
			return next(c)
		}
	}
}
