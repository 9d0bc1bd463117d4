package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/rapidrecall/dashboard/internal/core/guard"
)

const (
	ctxKeyDecision = "decision"

	loginPath = "/auth/login"
)

// SignInResponse is the sign-in surface shown to anonymous visitors.
type SignInResponse struct {
	View     guard.View `json:"view"`
	LoginURL string     `json:"login_url"`
}

// Guard decides every page navigation from the caller's cached state.
// Anonymous visitors get the sign-in surface, disallowed paths are redirected
// and allowed ones continue with the Decision attached.
func Guard() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := guard.Request{Path: c.Request().URL.Path}
			if caller, ok := CallerFrom(c); ok {
				snap := caller.Snapshot()
				req.Authenticated = snap.Authenticated()
				req.Role = snap.Role
				req.RoleKnown = snap.RoleKnown
			}

			d := guard.Evaluate(req)
			switch d.Outcome {
			case guard.OutcomeRedirect:
				return c.Redirect(http.StatusFound, d.Target)
			case guard.OutcomeRender:
				c.Set(ctxKeyDecision, d)
				return next(c)
			default:
				return c.JSON(http.StatusUnauthorized, SignInResponse{View: guard.ViewSignIn, LoginURL: loginPath})
			}
		}
	}
}

// DecisionFrom returns the render decision attached by Guard.
func DecisionFrom(c echo.Context) (guard.Decision, bool) {
	d, ok := c.Get(ctxKeyDecision).(guard.Decision)
	return d, ok
}
