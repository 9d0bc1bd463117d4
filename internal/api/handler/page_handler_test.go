package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/rapidrecall/dashboard/internal/api/middleware"
	"github.com/rapidrecall/dashboard/internal/core/domain"
	"github.com/rapidrecall/dashboard/internal/core/guard"
	"github.com/rapidrecall/dashboard/internal/core/service"
)

// ---- Service stubs ----

type stubRecalls struct {
	listFn     func(ctx context.Context, caller service.Caller, q service.RecallQuery) (*service.RecallList, error)
	ackFn      func(ctx context.Context, caller service.Caller, id string, ack bool) error
	reviewFn   func(ctx context.Context, caller service.Caller, id string, reviewed bool) error
	classifyFn func(ctx context.Context, caller service.Caller, id, classification string) error
}

func (s *stubRecalls) List(ctx context.Context, caller service.Caller, q service.RecallQuery) (*service.RecallList, error) {
	return s.listFn(ctx, caller, q)
}

func (s *stubRecalls) SetAcknowledged(ctx context.Context, caller service.Caller, id string, ack bool) error {
	return s.ackFn(ctx, caller, id, ack)
}

func (s *stubRecalls) SetReviewed(ctx context.Context, caller service.Caller, id string, reviewed bool) error {
	return s.reviewFn(ctx, caller, id, reviewed)
}

func (s *stubRecalls) UpdateClassification(ctx context.Context, caller service.Caller, id, classification string) error {
	return s.classifyFn(ctx, caller, id, classification)
}

type stubUsers struct {
	listFn    func(ctx context.Context, caller service.Caller, search string) ([]domain.UserAccount, error)
	setRoleFn func(ctx context.Context, caller service.Caller, uid, role string) error
}

func (s *stubUsers) List(ctx context.Context, caller service.Caller, search string) ([]domain.UserAccount, error) {
	return s.listFn(ctx, caller, search)
}

func (s *stubUsers) SetRole(ctx context.Context, caller service.Caller, uid, role string) error {
	return s.setRoleFn(ctx, caller, uid, role)
}

type stubUploads struct {
	uploadFn func(ctx context.Context, caller service.Caller, in service.UploadInput) (*domain.UploadRecord, error)
	recentFn func(ctx context.Context, caller service.Caller, limit int) ([]*domain.UploadRecord, error)
}

func (s *stubUploads) Upload(ctx context.Context, caller service.Caller, in service.UploadInput) (*domain.UploadRecord, error) {
	return s.uploadFn(ctx, caller, in)
}

func (s *stubUploads) Recent(ctx context.Context, caller service.Caller, limit int) ([]*domain.UploadRecord, error) {
	return s.recentFn(ctx, caller, limit)
}

func recallsReturning(records []domain.RecallRecord, err error) *stubRecalls {
	return &stubRecalls{listFn: func(context.Context, service.Caller, service.RecallQuery) (*service.RecallList, error) {
		if err != nil {
			return nil, err
		}
		return &service.RecallList{Recalls: records, Total: len(records)}, nil
	}}
}

func usersReturning(users []domain.UserAccount) *stubUsers {
	return &stubUsers{listFn: func(context.Context, service.Caller, string) ([]domain.UserAccount, error) {
		return users, nil
	}}
}

// ---- Helpers ----

type pageBody struct {
	View       guard.View       `json:"view"`
	Privileged bool             `json:"privileged"`
	Navigation []guard.NavItem  `json:"navigation"`
	Role       string           `json:"role"`
	Data       json.RawMessage  `json:"data"`
	Error      string           `json:"error"`
	LoginURL   string           `json:"login_url"`
	User       *domain.Identity `json:"user"`
}

func renderPage(t *testing.T, h *PageHandler, target string, caller service.Caller) (*httptest.ResponseRecorder, pageBody) {
	t.Helper()
	c, rec := newContext(http.MethodGet, target, nil)
	if caller != nil {
		withCaller(t, c, caller)
	}
	if err := middleware.Guard()(h.Render)(c); err != nil {
		t.Fatalf("render error: %v", err)
	}
	var body pageBody
	if rec.Code != http.StatusFound {
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("invalid json: %v", err)
		}
	}
	return rec, body
}

// ---- Tests ----

func TestPageHandler_AdminDashboard(t *testing.T) {
	h := NewPageHandler(
		recallsReturning([]domain.RecallRecord{{ID: "r1"}, {ID: "r2"}}, nil),
		usersReturning([]domain.UserAccount{{UID: "u1"}, {UID: "u2"}, {UID: "u3"}}),
		&stubUploads{},
		zerolog.Nop(),
	)

	rec, body := renderPage(t, h, "/", signedIn(domain.RoleAdmin, true))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if body.View != guard.ViewAdminDashboard || !body.Privileged || body.Role != "Admin" {
		t.Fatalf("unexpected page: %+v", body)
	}
	if body.Navigation[len(body.Navigation)-1].Href != "/admin/users" {
		t.Fatalf("admin navigation missing: %+v", body.Navigation)
	}
	var data struct {
		Total int `json:"total"`
		Users int `json:"users"`
	}
	if err := json.Unmarshal(body.Data, &data); err != nil || data.Total != 2 || data.Users != 3 {
		t.Fatalf("unexpected data: %s", body.Data)
	}
}

func TestPageHandler_UnreconciledRoleGetsStandardView(t *testing.T) {
	h := NewPageHandler(recallsReturning(nil, nil), &stubUsers{}, &stubUploads{}, zerolog.Nop())

	_, body := renderPage(t, h, "/", signedIn(domain.RoleAdmin, false))
	if body.View != guard.ViewDashboard || body.Privileged || body.Role != "" {
		t.Fatalf("unexpected page: %+v", body)
	}
	for _, item := range body.Navigation {
		if item.Href == "/admin/users" {
			t.Fatalf("standard navigation lists admin entries")
		}
	}
}

func TestPageHandler_RecallsPassesQuery(t *testing.T) {
	var got service.RecallQuery
	recalls := &stubRecalls{listFn: func(_ context.Context, _ service.Caller, q service.RecallQuery) (*service.RecallList, error) {
		got = q
		return &service.RecallList{}, nil
	}}
	h := NewPageHandler(recalls, &stubUsers{}, &stubUploads{}, zerolog.Nop())

	_, body := renderPage(t, h, "/recalls?q=pump&status=pending&sort=created_asc", signedIn(domain.RoleUser, true))
	if body.View != guard.ViewRecalls {
		t.Fatalf("expected recalls view, got %s", body.View)
	}
	if got.Search != "pump" || got.Status != service.StatusPending || got.Sort != service.SortCreatedAsc {
		t.Fatalf("query not bound: %+v", got)
	}
}

func TestPageHandler_InvalidQueryShownInline(t *testing.T) {
	recalls := &stubRecalls{listFn: func(context.Context, service.Caller, service.RecallQuery) (*service.RecallList, error) {
		t.Fatalf("list should not be called")
		return nil, nil
	}}
	h := NewPageHandler(recalls, &stubUsers{}, &stubUploads{}, zerolog.Nop())

	rec, body := renderPage(t, h, "/recalls?status=archived", signedIn(domain.RoleUser, true))
	if rec.Code != http.StatusOK || !strings.Contains(body.Error, "status must be one of") {
		t.Fatalf("expected inline validation error, got %d %+v", rec.Code, body)
	}
}

func TestPageHandler_UserIsRedirectedFromAdminRoutes(t *testing.T) {
	users := &stubUsers{listFn: func(context.Context, service.Caller, string) ([]domain.UserAccount, error) {
		t.Fatalf("user list must not load for a non-admin")
		return nil, nil
	}}
	h := NewPageHandler(recallsReturning(nil, nil), users, &stubUploads{}, zerolog.Nop())

	rec, _ := renderPage(t, h, "/admin/users", signedIn(domain.RoleUser, true))
	if rec.Code != http.StatusFound || rec.Header().Get(echo.HeaderLocation) != "/" {
		t.Fatalf("expected redirect to /, got %d %s", rec.Code, rec.Header().Get(echo.HeaderLocation))
	}
}

func TestPageHandler_AnonymousGetsSignIn(t *testing.T) {
	h := NewPageHandler(recallsReturning(nil, nil), &stubUsers{}, &stubUploads{}, zerolog.Nop())

	rec, body := renderPage(t, h, "/recalls", nil)
	if rec.Code != http.StatusUnauthorized || body.View != guard.ViewSignIn || body.LoginURL == "" {
		t.Fatalf("expected sign-in surface, got %d %+v", rec.Code, body)
	}
}

func TestPageHandler_RejectedTokenFallsBackToSignIn(t *testing.T) {
	h := NewPageHandler(recallsReturning(nil, domain.ErrUnauthenticated), &stubUsers{}, &stubUploads{}, zerolog.Nop())

	rec, body := renderPage(t, h, "/", signedIn(domain.RoleUser, true))
	if rec.Code != http.StatusUnauthorized || body.View != guard.ViewSignIn {
		t.Fatalf("expected sign-in surface, got %d %+v", rec.Code, body)
	}
}

func TestPageHandler_ServerErrorShownInline(t *testing.T) {
	h := NewPageHandler(recallsReturning(nil, errors.New("upstream exploded")), &stubUsers{}, &stubUploads{}, zerolog.Nop())

	rec, body := renderPage(t, h, "/recalls", signedIn(domain.RoleUser, true))
	if rec.Code != http.StatusOK || body.Error != "internal server error" || body.View != guard.ViewRecalls {
		t.Fatalf("expected inline generic error, got %d %+v", rec.Code, body)
	}
	if body.User == nil || body.User.UID != "u1" {
		t.Fatalf("page lost the signed-in user: %+v", body.User)
	}
}

func TestPageHandler_UserManagement(t *testing.T) {
	var search string
	users := &stubUsers{listFn: func(_ context.Context, _ service.Caller, s string) ([]domain.UserAccount, error) {
		search = s
		return []domain.UserAccount{{UID: "u2", Role: domain.RoleAdmin}}, nil
	}}
	h := NewPageHandler(recallsReturning(nil, nil), users, &stubUploads{}, zerolog.Nop())

	_, body := renderPage(t, h, "/admin/users?q=ann", signedIn(domain.RoleAdmin, true))
	if body.View != guard.ViewUserManagement || search != "ann" {
		t.Fatalf("unexpected page %s for search %q", body.View, search)
	}
	var data usersPage
	if err := json.Unmarshal(body.Data, &data); err != nil || len(data.Users) != 1 || len(data.Roles) != 2 {
		t.Fatalf("unexpected data: %s", body.Data)
	}
}

func TestPageHandler_RenderRequiresDecision(t *testing.T) {
	h := NewPageHandler(&stubRecalls{}, &stubUsers{}, &stubUploads{}, zerolog.Nop())
	c, _ := newContext(http.MethodGet, "/", nil)
	withCaller(t, c, signedIn(domain.RoleUser, true))

	var he *echo.HTTPError
	if err := h.Render(c); !errors.As(err, &he) || he.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %v", err)
	}
}

func TestSummarize(t *testing.T) {
	records := make([]domain.RecallRecord, 7)
	for i := range records {
		records[i].ID = string(rune('a' + i))
	}
	s := summarize(records)
	if s.Total != 7 || s.Pending != 7 || s.Reviewed != 0 || len(s.Recent) != recentRecallCount {
		t.Fatalf("unexpected summary: %+v", s)
	}
}
