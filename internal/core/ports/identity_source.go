package ports

import "context"

// IdentitySource is a session's handle on the Identity Provider.
type IdentitySource interface {
	// Token returns a signed identity token. With forceRefresh the provider is
	// asked for a new token even if a cached one has not expired yet.
	Token(ctx context.Context, forceRefresh bool) (string, error)
	// SignOut ends the provider session. Calling it twice is harmless.
	SignOut(ctx context.Context) error
}
