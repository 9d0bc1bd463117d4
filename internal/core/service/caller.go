package service

import (
	"context"
	"errors"

	"golang.org/x/oauth2"

	"github.com/rapidrecall/dashboard/internal/core/domain"
)

// Caller is the session on whose behalf a foreground action runs.
// *Reconciler implements it.
type Caller interface {
	TokenSource(ctx context.Context) oauth2.TokenSource
	Snapshot() Snapshot
	ReportUnauthenticated(ctx context.Context)
}

// checkUnauthenticated ends the caller's session when err proves its token is
// no longer accepted, and returns err unchanged.
func checkUnauthenticated(ctx context.Context, caller Caller, err error) error {
	if errors.Is(err, domain.ErrUnauthenticated) {
		caller.ReportUnauthenticated(ctx)
	}
	return err
}

func requireIdentity(caller Caller) (*domain.Identity, error) {
	snap := caller.Snapshot()
	if !snap.Authenticated() {
		return nil, domain.ErrNoIdentity
	}
	return snap.Identity, nil
}
