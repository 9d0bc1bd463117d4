package ports

import (
	"context"

	"github.com/rapidrecall/dashboard/internal/core/domain"
)

// VerifyRequest is the body of POST /auth/verify-token.
type VerifyRequest struct {
	Token       string `json:"token"`
	UID         string `json:"uid"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	PhotoURL    string `json:"photoURL,omitempty"`
}

// AuthorizationService resolves the authoritative role for an identity token.
// Implementations return domain.ErrUnauthenticated when the server rejects the
// token (HTTP 401); every other failure is returned as-is.
type AuthorizationService interface {
	VerifyToken(ctx context.Context, req VerifyRequest) (domain.Role, error)
}
