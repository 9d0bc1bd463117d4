// Package authapi is the HTTP client of the RapidRecall Authorization Service.
// The service owns roles and recall records; this client only forwards
// requests and maps status codes onto domain errors.
package authapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/rapidrecall/dashboard/internal/core/domain"
	"github.com/rapidrecall/dashboard/internal/core/ports"
)

const (
	defaultTimeout       = 15 * time.Second
	defaultUploadTimeout = 2 * time.Minute
	maxErrorBody         = 4 << 10
)

// APIError is a non-2xx answer that does not map onto a domain error.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("authorization service returned %d", e.Status)
	}
	return fmt.Sprintf("authorization service returned %d: %s", e.Status, e.Message)
}

// Client talks JSON to the Authorization Service.
type Client struct {
	baseURL       string
	httpClient    *http.Client
	uploadTimeout time.Duration
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the base transport. Bearer-authenticated calls wrap
// its Transport.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithUploadTimeout bounds document uploads.
func WithUploadTimeout(d time.Duration) Option {
	return func(c *Client) { c.uploadTimeout = d }
}

// New returns a Client for baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:       strings.TrimRight(baseURL, "/"),
		httpClient:    &http.Client{Timeout: defaultTimeout},
		uploadTimeout: defaultUploadTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var (
	_ ports.AuthorizationService = (*Client)(nil)
	_ ports.RecallAPI            = (*Client)(nil)
	_ ports.UserAPI              = (*Client)(nil)
	_ ports.DocumentAPI          = (*Client)(nil)
)

type verifyResponse struct {
	Role string `json:"role"`
}

// VerifyToken posts the identity token and claims to /auth/verify-token and
// returns the role the server assigns. A missing or unknown role is "user".
func (c *Client) VerifyToken(ctx context.Context, req ports.VerifyRequest) (domain.Role, error) {
	var resp verifyResponse
	if err := c.do(ctx, c.httpClient, http.MethodPost, "/auth/verify-token", req, &resp); err != nil {
		return domain.RoleUser, fmt.Errorf("verify token: %w", err)
	}
	return domain.ParseRole(resp.Role), nil
}

type recallsResponse struct {
	Recalls []domain.RecallRecord `json:"recalls"`
}

// ListRecalls fetches /admin/recalls for ScopeAll and /user/recalls otherwise.
func (c *Client) ListRecalls(ctx context.Context, ts oauth2.TokenSource, scope ports.RecallScope) ([]domain.RecallRecord, error) {
	path := "/user/recalls"
	if scope == ports.ScopeAll {
		path = "/admin/recalls"
	}
	var resp recallsResponse
	if err := c.do(ctx, c.bearer(ctx, ts), http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	if resp.Recalls == nil {
		return []domain.RecallRecord{}, nil
	}
	return resp.Recalls, nil
}

type recallRequest struct {
	RecallID string `json:"recallId"`
}

func (c *Client) Acknowledge(ctx context.Context, ts oauth2.TokenSource, recallID string) error {
	return c.do(ctx, c.bearer(ctx, ts), http.MethodPut, "/admin/recall-acknowledge", recallRequest{RecallID: recallID}, nil)
}

func (c *Client) Unacknowledge(ctx context.Context, ts oauth2.TokenSource, recallID string) error {
	return c.do(ctx, c.bearer(ctx, ts), http.MethodPut, "/admin/recall-unacknowledge", recallRequest{RecallID: recallID}, nil)
}

func (c *Client) MarkReviewed(ctx context.Context, ts oauth2.TokenSource, recallID string) error {
	return c.do(ctx, c.bearer(ctx, ts), http.MethodPut, "/admin/recall-review", recallRequest{RecallID: recallID}, nil)
}

func (c *Client) MarkPending(ctx context.Context, ts oauth2.TokenSource, recallID string) error {
	return c.do(ctx, c.bearer(ctx, ts), http.MethodPut, "/admin/recall-unreview", recallRequest{RecallID: recallID}, nil)
}

type classificationRequest struct {
	RecallID       string `json:"recallId"`
	Classification string `json:"classification"`
}

func (c *Client) UpdateClassification(ctx context.Context, ts oauth2.TokenSource, recallID, classification string) error {
	body := classificationRequest{RecallID: recallID, Classification: classification}
	return c.do(ctx, c.bearer(ctx, ts), http.MethodPut, "/admin/recall-classification", body, nil)
}

type usersResponse struct {
	Users []domain.UserAccount `json:"users"`
}

func (c *Client) ListUsers(ctx context.Context, ts oauth2.TokenSource) ([]domain.UserAccount, error) {
	var resp usersResponse
	if err := c.do(ctx, c.bearer(ctx, ts), http.MethodGet, "/admin/users", nil, &resp); err != nil {
		return nil, err
	}
	if resp.Users == nil {
		return []domain.UserAccount{}, nil
	}
	return resp.Users, nil
}

type setRoleRequest struct {
	UID  string      `json:"uid"`
	Role domain.Role `json:"role"`
}

func (c *Client) SetRole(ctx context.Context, ts oauth2.TokenSource, uid string, role domain.Role) error {
	return c.do(ctx, c.bearer(ctx, ts), http.MethodPost, "/admin/set-role", setRoleRequest{UID: uid, Role: role}, nil)
}

// bearer returns an HTTP client that sets "Authorization: Bearer <token>"
// from ts on every request.
func (c *Client) bearer(ctx context.Context, ts oauth2.TokenSource) *http.Client {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	return oauth2.NewClient(ctx, ts)
}

func (c *Client) do(ctx context.Context, hc *http.Client, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := hc.Do(req)
	if err != nil {
		return unwrapTransportError(method, path, err)
	}
	defer resp.Body.Close()

	if err := statusError(resp); err != nil {
		return err
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

// unwrapTransportError surfaces domain errors raised by the token source
// (for instance ErrNoIdentity) through the *url.Error the transport wraps
// them in.
func unwrapTransportError(method, path string, err error) error {
	var ue *url.Error
	if errors.As(err, &ue) {
		var inner error = ue.Err
		if errors.Is(inner, domain.ErrNoIdentity) || errors.Is(inner, domain.ErrUnauthenticated) {
			return inner
		}
	}
	return fmt.Errorf("%s %s: %w", method, path, err)
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func statusError(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	msg := readErrorMessage(resp.Body)
	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return domain.ErrUnauthenticated
	case http.StatusForbidden:
		return domain.ErrForbidden
	case http.StatusNotFound:
		return domain.ErrNotFound
	default:
		return &APIError{Status: resp.StatusCode, Message: msg}
	}
}

func readErrorMessage(r io.Reader) string {
	raw, _ := io.ReadAll(io.LimitReader(r, maxErrorBody))
	var eb errorBody
	if err := json.Unmarshal(raw, &eb); err == nil {
		if eb.Error != "" {
			return eb.Error
		}
		if eb.Message != "" {
			return eb.Message
		}
	}
	return strings.TrimSpace(string(raw))
}
