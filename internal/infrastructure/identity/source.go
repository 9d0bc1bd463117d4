package identity

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/rapidrecall/dashboard/internal/core/domain"
)

// expiryLeeway makes a token that is about to expire count as expired.
const expiryLeeway = time.Minute

// source is one session's handle on the provider. Refreshes are serialized so
// that a rotating refresh token is never presented twice.
type source struct {
	p         *Provider
	sessionID string

	mu           sync.Mutex
	refreshToken string
	idToken      string
	expiry       time.Time
	signedOut    bool
}

func (s *source) Token(ctx context.Context, forceRefresh bool) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.signedOut {
		return "", domain.ErrNoIdentity
	}
	if !forceRefresh && s.idToken != "" && s.p.now().Add(expiryLeeway).Before(s.expiry) {
		return s.idToken, nil
	}
	if s.refreshToken == "" {
		return "", errNoRefreshToken
	}

	tok, err := s.p.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: s.refreshToken}).Token()
	if err != nil {
		return "", fmt.Errorf("refresh identity token: %w", err)
	}
	raw, ok := tok.Extra("id_token").(string)
	if !ok || raw == "" {
		return "", errNoIDToken
	}
	idTok, err := s.p.verifier.Verify(ctx, raw)
	if err != nil {
		return "", fmt.Errorf("refreshed id_token verification failed: %w", err)
	}

	if tok.RefreshToken != "" && tok.RefreshToken != s.refreshToken {
		s.refreshToken = tok.RefreshToken
		s.p.persistRefreshToken(ctx, s.sessionID, tok.RefreshToken)
	}
	s.idToken = raw
	s.expiry = idTok.Expiry
	return raw, nil
}

// SignOut forgets every credential and revokes the refresh token when the
// provider supports it.
func (s *source) SignOut(ctx context.Context) error {
	s.mu.Lock()
	if s.signedOut {
		s.mu.Unlock()
		return nil
	}
	s.signedOut = true
	rt := s.refreshToken
	s.refreshToken = ""
	s.idToken = ""
	s.mu.Unlock()

	if rt == "" {
		return nil
	}
	return s.p.revoke(ctx, rt)
}
