package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/rapidrecall/dashboard/internal/core/service"
)

// UserActions are the user management table's actions.
type UserActions interface {
	UserLister
	SetRole(ctx context.Context, caller service.Caller, uid, role string) error
}

type UserHandler struct {
	service UserActions
}

func NewUserHandler(s UserActions) *UserHandler {
	return &UserHandler{service: s}
}

type setRoleRequest struct {
	Role string `json:"role" validate:"required"`
}

// List returns the users matching q.
//
// @Summary      List users
// @Tags         users
// @Produce      json
// @Param        q    query     string  false  "Email or name contains"
// @Success      200  {array}   domain.UserAccount
// @Failure      401  {object}  map[string]string
// @Failure      403  {object}  map[string]string
// @Router       /api/users [get]
func (h *UserHandler) List(c echo.Context) error {
	caller, err := callerFrom(c)
	if err != nil {
		return err
	}
	var q userQuery
	if err := (&echo.DefaultBinder{}).BindQueryParams(c, &q); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid query")
	}
	if err := c.Validate(&q); err != nil {
		return err
	}
	users, err := h.service.List(c.Request().Context(), caller, q.Search)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, users)
}

// SetRole asks the Authorization Service to change a user's role. Whether the
// caller may do so is decided there, not from the dashboard's cached role.
//
// @Summary      Set a user's role
// @Tags         users
// @Accept       json
// @Param        uid   path  string          true  "User ID"
// @Param        body  body  setRoleRequest  true  "user or admin"
// @Success      204
// @Failure      400  {object}  map[string]string
// @Failure      401  {object}  map[string]string
// @Failure      403  {object}  map[string]string
// @Router       /api/users/{uid}/role [post]
func (h *UserHandler) SetRole(c echo.Context) error {
	caller, err := callerFrom(c)
	if err != nil {
		return err
	}
	uid := c.Param("uid")
	if uid == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "uid is required")
	}
	var req setRoleRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	if err := h.service.SetRole(c.Request().Context(), caller, uid, req.Role); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
