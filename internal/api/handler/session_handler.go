package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/rapidrecall/dashboard/internal/core/domain"
	"github.com/rapidrecall/dashboard/internal/core/guard"
	"github.com/rapidrecall/dashboard/internal/core/service"
)

type SessionHandler struct {
	classifications []string
}

func NewSessionHandler(classifications []string) *SessionHandler {
	return &SessionHandler{classifications: classifications}
}

type sessionResponse struct {
	service.Snapshot
	Navigation      []guard.NavItem `json:"navigation"`
	Classifications []string        `json:"classifications"`
}

// Get returns the caller's cached session state. The role in it is a display
// hint only.
//
// @Summary      Current session
// @Tags         session
// @Produce      json
// @Success      200  {object}  sessionResponse
// @Failure      401  {object}  map[string]string
// @Router       /api/session [get]
func (h *SessionHandler) Get(c echo.Context) error {
	caller, err := callerFrom(c)
	if err != nil {
		return err
	}
	snap := caller.Snapshot()
	navRole := domain.RoleUser
	if snap.RoleKnown && snap.Role.IsAdmin() {
		navRole = domain.RoleAdmin
	}
	return c.JSON(http.StatusOK, sessionResponse{
		Snapshot:        snap,
		Navigation:      guard.Navigation(navRole, guard.DefaultRoute),
		Classifications: h.classifications,
	})
}
