package identity

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/rapidrecall/dashboard/internal/core/domain"
)

// Claims is what a stored identity token says about its subject.
type Claims struct {
	Identity domain.Identity
	Expiry   time.Time
}

type idTokenClaims struct {
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
	jwt.RegisteredClaims
}

// ClaimsFromToken reads the claims of an identity token WITHOUT verifying its
// signature. Use it only on tokens this process stored after verification.
func ClaimsFromToken(raw string) (Claims, error) {
	var c idTokenClaims
	if _, _, err := jwt.NewParser().ParseUnverified(raw, &c); err != nil {
		return Claims{}, fmt.Errorf("parse identity token: %w", err)
	}
	out := Claims{
		Identity: domain.Identity{
			UID:         c.Subject,
			Email:       c.Email,
			DisplayName: c.Name,
			PhotoURL:    c.Picture,
		},
	}
	if c.ExpiresAt != nil {
		out.Expiry = c.ExpiresAt.Time
	}
	return out, nil
}
