package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/rapidrecall/dashboard/internal/core/domain"
	"github.com/rapidrecall/dashboard/internal/core/service"
)

// ---- Recalls ----

func TestRecallHandler_ActionsForwardIDAndFlag(t *testing.T) {
	type call struct {
		id   string
		flag bool
		kind string
	}
	var got []call
	recalls := &stubRecalls{
		ackFn: func(_ context.Context, _ service.Caller, id string, ack bool) error {
			got = append(got, call{id, ack, "ack"})
			return nil
		},
		reviewFn: func(_ context.Context, _ service.Caller, id string, reviewed bool) error {
			got = append(got, call{id, reviewed, "review"})
			return nil
		},
	}
	h := NewRecallHandler(recalls)

	for _, fn := range []echo.HandlerFunc{h.Acknowledge, h.Unacknowledge, h.Review, h.Unreview} {
		c, rec := newContext(http.MethodPut, "/", nil)
		c.SetParamNames("id")
		c.SetParamValues("r1")
		withCaller(t, c, signedIn(domain.RoleUser, true))
		if err := fn(c); err != nil {
			t.Fatalf("handler error: %v", err)
		}
		if rec.Code != http.StatusNoContent {
			t.Fatalf("expected 204, got %d", rec.Code)
		}
	}

	want := []call{{"r1", true, "ack"}, {"r1", false, "ack"}, {"r1", true, "review"}, {"r1", false, "review"}}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("call %d: expected %+v, got %+v", i, want[i], got[i])
		}
	}
}

func TestRecallHandler_ForbiddenIsReturned(t *testing.T) {
	recalls := &stubRecalls{ackFn: func(context.Context, service.Caller, string, bool) error {
		return domain.ErrForbidden
	}}
	h := NewRecallHandler(recalls)

	c, _ := newContext(http.MethodPut, "/", nil)
	c.SetParamNames("id")
	c.SetParamValues("r1")
	withCaller(t, c, signedIn(domain.RoleAdmin, true))
	if err := h.Acknowledge(c); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestRecallHandler_RequiresCaller(t *testing.T) {
	h := NewRecallHandler(&stubRecalls{})
	c, _ := newContext(http.MethodPut, "/", nil)
	c.SetParamNames("id")
	c.SetParamValues("r1")
	expectHTTPError(t, h.Review(c), http.StatusUnauthorized)
}

func TestRecallHandler_Classify(t *testing.T) {
	var got string
	recalls := &stubRecalls{classifyFn: func(_ context.Context, _ service.Caller, id, classification string) error {
		got = id + "=" + classification
		return nil
	}}
	h := NewRecallHandler(recalls)

	c, rec := newContext(http.MethodPut, "/", strings.NewReader(`{"classification":"Class II"}`))
	c.SetParamNames("id")
	c.SetParamValues("r7")
	withCaller(t, c, signedIn(domain.RoleAdmin, true))
	if err := h.Classify(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusNoContent || got != "r7=Class II" {
		t.Fatalf("unexpected result %d %q", rec.Code, got)
	}

	c, _ = newContext(http.MethodPut, "/", strings.NewReader(`{}`))
	c.SetParamNames("id")
	c.SetParamValues("r7")
	withCaller(t, c, signedIn(domain.RoleAdmin, true))
	var ve *ValidationError
	if err := h.Classify(c); !errors.As(err, &ve) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestRecallHandler_ListValidatesQuery(t *testing.T) {
	h := NewRecallHandler(&stubRecalls{listFn: func(context.Context, service.Caller, service.RecallQuery) (*service.RecallList, error) {
		t.Fatalf("list should not be called")
		return nil, nil
	}})
	c, _ := newContext(http.MethodGet, "/api/recalls?sort=random", nil)
	withCaller(t, c, signedIn(domain.RoleUser, true))
	var ve *ValidationError
	if err := h.List(c); !errors.As(err, &ve) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

// ---- Users ----

func TestUserHandler_SetRoleIgnoresCachedRole(t *testing.T) {
	var got string
	users := &stubUsers{setRoleFn: func(_ context.Context, _ service.Caller, uid, role string) error {
		got = uid + "=" + role
		return nil
	}}
	h := NewUserHandler(users)

	c, rec := newContext(http.MethodPost, "/", strings.NewReader(`{"role":"admin"}`))
	c.SetParamNames("uid")
	c.SetParamValues("u2")
	withCaller(t, c, signedIn(domain.RoleUser, true))
	if err := h.SetRole(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusNoContent || got != "u2=admin" {
		t.Fatalf("request not forwarded: %d %q", rec.Code, got)
	}
}

func TestUserHandler_SetRoleRequiresRole(t *testing.T) {
	h := NewUserHandler(&stubUsers{setRoleFn: func(context.Context, service.Caller, string, string) error {
		t.Fatalf("should not be called")
		return nil
	}})
	c, _ := newContext(http.MethodPost, "/", strings.NewReader(`{}`))
	c.SetParamNames("uid")
	c.SetParamValues("u2")
	withCaller(t, c, signedIn(domain.RoleAdmin, true))
	var ve *ValidationError
	if err := h.SetRole(c); !errors.As(err, &ve) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestUserHandler_List(t *testing.T) {
	h := NewUserHandler(usersReturning([]domain.UserAccount{{UID: "u1", Role: domain.RoleAdmin}}))
	c, rec := newContext(http.MethodGet, "/api/users?q=a", nil)
	withCaller(t, c, signedIn(domain.RoleAdmin, true))
	if err := h.List(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	var users []map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &users); err != nil || len(users) != 1 || users[0]["role"] != "admin" {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
}

// ---- Documents ----

func multipartUpload(t *testing.T, field, name string, content []byte) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile(field, name)
	if err != nil {
		t.Fatalf("create part: %v", err)
	}
	_, _ = part.Write(content)
	if err := w.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return &buf, w.FormDataContentType()
}

func uploadContext(t *testing.T, field string) (echo.Context, *httptest.ResponseRecorder, *bytes.Buffer) {
	t.Helper()
	body, ctype := multipartUpload(t, field, "notice.pdf", []byte("%PDF-1.7 test"))
	c, rec := newContext(http.MethodPost, "/api/documents", body)
	c.Request().Header.Set(echo.HeaderContentType, ctype)
	withCaller(t, c, signedIn(domain.RoleUser, true))
	return c, rec, rec.Body
}

func TestDocumentHandler_Upload(t *testing.T) {
	uploads := &stubUploads{uploadFn: func(_ context.Context, _ service.Caller, in service.UploadInput) (*domain.UploadRecord, error) {
		b, _ := io.ReadAll(in.Content)
		if in.FileName != "notice.pdf" || string(b) != "%PDF-1.7 test" || in.Size != int64(len(b)) {
			t.Fatalf("unexpected input: %s %q %d", in.FileName, b, in.Size)
		}
		return &domain.UploadRecord{UID: "u1", FileName: in.FileName, OK: true}, nil
	}}
	h := NewDocumentHandler(uploads)

	c, rec, body := uploadContext(t, "recall")
	if err := h.Upload(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	var got domain.UploadRecord
	if err := json.Unmarshal(body.Bytes(), &got); err != nil || !got.OK {
		t.Fatalf("unexpected body: %s", body.String())
	}
}

func TestDocumentHandler_UploadFailureKeepsRecord(t *testing.T) {
	uploads := &stubUploads{uploadFn: func(context.Context, service.Caller, service.UploadInput) (*domain.UploadRecord, error) {
		return &domain.UploadRecord{FileName: "notice.pdf", Error: "unreadable"}, domain.ErrUploadFailed
	}}
	h := NewDocumentHandler(uploads)

	c, rec, body := uploadContext(t, "recall")
	if err := h.Upload(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rec.Code)
	}
	var got uploadFailure
	if err := json.Unmarshal(body.Bytes(), &got); err != nil || got.Record == nil || got.Record.Error != "unreadable" {
		t.Fatalf("unexpected body: %s", body.String())
	}
}

func TestDocumentHandler_UnauthorizedUploadIsReturned(t *testing.T) {
	uploads := &stubUploads{uploadFn: func(context.Context, service.Caller, service.UploadInput) (*domain.UploadRecord, error) {
		return &domain.UploadRecord{}, domain.ErrUnauthenticated
	}}
	h := NewDocumentHandler(uploads)

	c, _, _ := uploadContext(t, "recall")
	if err := h.Upload(c); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
}

func TestDocumentHandler_UploadRequiresFile(t *testing.T) {
	h := NewDocumentHandler(&stubUploads{})
	c, _, _ := uploadContext(t, "attachment")
	expectHTTPError(t, h.Upload(c), http.StatusBadRequest)
}

func TestDocumentHandler_History(t *testing.T) {
	var limit int
	uploads := &stubUploads{recentFn: func(_ context.Context, _ service.Caller, n int) ([]*domain.UploadRecord, error) {
		limit = n
		return []*domain.UploadRecord{}, nil
	}}
	h := NewDocumentHandler(uploads)

	c, rec := newContext(http.MethodGet, "/api/documents?limit=5", nil)
	withCaller(t, c, signedIn(domain.RoleUser, true))
	if err := h.History(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK || limit != 5 {
		t.Fatalf("unexpected result: %d limit=%d", rec.Code, limit)
	}

	c, _ = newContext(http.MethodGet, "/api/documents?limit=500", nil)
	withCaller(t, c, signedIn(domain.RoleUser, true))
	expectHTTPError(t, h.History(c), http.StatusBadRequest)
}

// ---- Session ----

func TestSessionHandler_Get(t *testing.T) {
	h := NewSessionHandler([]string{"Class I", "Class II"})

	c, rec := newContext(http.MethodGet, "/api/session", nil)
	withCaller(t, c, signedIn(domain.RoleAdmin, true))
	if err := h.Get(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	var resp struct {
		Role            string           `json:"role"`
		RoleKnown       bool             `json:"role_known"`
		Navigation      []map[string]any `json:"navigation"`
		Classifications []string         `json:"classifications"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if resp.Role != "admin" || !resp.RoleKnown || len(resp.Classifications) != 2 {
		t.Fatalf("unexpected session: %s", rec.Body.String())
	}
	if resp.Navigation[len(resp.Navigation)-1]["href"] != "/admin/users" {
		t.Fatalf("admin navigation missing: %v", resp.Navigation)
	}

	c, _ = newContext(http.MethodGet, "/api/session", nil)
	expectHTTPError(t, h.Get(c), http.StatusUnauthorized)
}
