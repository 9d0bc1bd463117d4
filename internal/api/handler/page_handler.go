package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/rapidrecall/dashboard/internal/api/middleware"
	"github.com/rapidrecall/dashboard/internal/core/domain"
	"github.com/rapidrecall/dashboard/internal/core/guard"
	"github.com/rapidrecall/dashboard/internal/core/service"
)

const recentRecallCount = 5

// RecallLister backs the recall views.
type RecallLister interface {
	List(ctx context.Context, caller service.Caller, q service.RecallQuery) (*service.RecallList, error)
}

// UserLister backs the user management view.
type UserLister interface {
	List(ctx context.Context, caller service.Caller, search string) ([]domain.UserAccount, error)
}

// UploadLister backs the documents view.
type UploadLister interface {
	Recent(ctx context.Context, caller service.Caller, limit int) ([]*domain.UploadRecord, error)
}

// PageHandler renders the view model of every guarded page.
type PageHandler struct {
	recalls RecallLister
	users   UserLister
	uploads UploadLister
	log     zerolog.Logger
}

func NewPageHandler(recalls RecallLister, users UserLister, uploads UploadLister, log zerolog.Logger) *PageHandler {
	return &PageHandler{recalls: recalls, users: users, uploads: uploads, log: log}
}

type pageResponse struct {
	View       guard.View       `json:"view"`
	Privileged bool             `json:"privileged"`
	Navigation []guard.NavItem  `json:"navigation"`
	User       *domain.Identity `json:"user"`
	Role       string           `json:"role,omitempty"`
	Data       any              `json:"data,omitempty"`
	Error      string           `json:"error,omitempty"`
}

type recallSummary struct {
	Total        int                   `json:"total"`
	Acknowledged int                   `json:"acknowledged"`
	Reviewed     int                   `json:"reviewed"`
	Pending      int                   `json:"pending"`
	Recent       []domain.RecallRecord `json:"recent"`
}

type adminSummary struct {
	recallSummary
	Users int `json:"users"`
}

type usersPage struct {
	Users []domain.UserAccount `json:"users"`
	Roles []string             `json:"roles"`
}

type userQuery struct {
	Search string `query:"q" validate:"max=200"`
}

// Render serves every page route once Guard has allowed it.
//
// @Summary      Render a dashboard page
// @Tags         pages
// @Produce      json
// @Success      200  {object}  pageResponse
// @Success      302
// @Failure      401  {object}  middleware.SignInResponse
// @Router       / [get]
// @Router       /documents [get]
// @Router       /recalls [get]
// @Router       /settings [get]
// @Router       /admin/users [get]
// @Router       /admin/recalls [get]
func (h *PageHandler) Render(c echo.Context) error {
	d, ok := middleware.DecisionFrom(c)
	if !ok {
		return echo.NewHTTPError(http.StatusInternalServerError, "page rendered without a route decision")
	}
	caller, err := callerFrom(c)
	if err != nil {
		return signInSurface(c)
	}

	snap := caller.Snapshot()
	navRole := domain.RoleUser
	if d.Privileged {
		navRole = domain.RoleAdmin
	}
	resp := pageResponse{
		View:       d.View,
		Privileged: d.Privileged,
		Navigation: guard.Navigation(navRole, c.Request().URL.Path),
		User:       snap.Identity,
	}
	if snap.RoleKnown {
		resp.Role = snap.Role.Label()
	}

	data, err := h.load(c, caller, d.View)
	if err != nil {
		if signedOut(err) {
			return signInSurface(c)
		}
		_, msg, known := ResolveError(err)
		if !known {
			h.log.Error().Err(err).Str("view", string(d.View)).Msg("failed to load page data")
		}
		resp.Error = msg
	}
	resp.Data = data
	return c.JSON(http.StatusOK, resp)
}

func (h *PageHandler) load(c echo.Context, caller service.Caller, view guard.View) (any, error) {
	ctx := c.Request().Context()
	switch view {
	case guard.ViewDashboard:
		list, err := h.recalls.List(ctx, caller, service.RecallQuery{})
		if err != nil {
			return nil, err
		}
		return summarize(list.Recalls), nil

	case guard.ViewAdminDashboard:
		list, err := h.recalls.List(ctx, caller, service.RecallQuery{})
		if err != nil {
			return nil, err
		}
		users, err := h.users.List(ctx, caller, "")
		if err != nil {
			return nil, err
		}
		return adminSummary{recallSummary: summarize(list.Recalls), Users: len(users)}, nil

	case guard.ViewRecalls, guard.ViewRecallDatabase:
		var q service.RecallQuery
		if err := (&echo.DefaultBinder{}).BindQueryParams(c, &q); err != nil {
			return nil, &ValidationError{Message: "invalid query"}
		}
		if err := c.Validate(&q); err != nil {
			return nil, err
		}
		return h.recalls.List(ctx, caller, q)

	case guard.ViewDocuments:
		recent, err := h.uploads.Recent(ctx, caller, 0)
		if err != nil {
			return nil, err
		}
		return map[string]any{"uploads": recent}, nil

	case guard.ViewUserManagement:
		var q userQuery
		if err := (&echo.DefaultBinder{}).BindQueryParams(c, &q); err != nil {
			return nil, &ValidationError{Message: "invalid query"}
		}
		if err := c.Validate(&q); err != nil {
			return nil, err
		}
		users, err := h.users.List(ctx, caller, q.Search)
		if err != nil {
			return nil, err
		}
		return usersPage{Users: users, Roles: []string{domain.RoleUser.String(), domain.RoleAdmin.String()}}, nil

	case guard.ViewSettings:
		return nil, nil
	}
	return nil, nil
}

func summarize(recalls []domain.RecallRecord) recallSummary {
	s := recallSummary{Total: len(recalls)}
	for _, r := range recalls {
		if r.Acknowledged() {
			s.Acknowledged++
		}
		if r.Reviewed() {
			s.Reviewed++
		} else {
			s.Pending++
		}
	}
	recent := service.FilterRecalls(recalls, service.RecallQuery{})
	if len(recent) > recentRecallCount {
		recent = recent[:recentRecallCount]
	}
	s.Recent = recent
	return s
}

func signInSurface(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, middleware.SignInResponse{View: guard.ViewSignIn, LoginURL: "/auth/login"})
}
