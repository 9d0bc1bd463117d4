// Package identity signs users in against an OpenID Connect provider and
// hands each dashboard session a handle that can mint fresh identity tokens.
package identity

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"

	"github.com/rapidrecall/dashboard/internal/core/domain"
	"github.com/rapidrecall/dashboard/internal/core/ports"
)

var (
	errNoIDToken      = errors.New("provider did not return an id_token")
	errNoRefreshToken = errors.New("provider did not return a refresh token")
	errMissingClaims  = errors.New("id_token is missing the subject claim")
)

// Config describes the OIDC client registration.
type Config struct {
	Issuer       string
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string
}

// RefreshTokenStore persists rotated refresh tokens so that another process
// can resume the session.
type RefreshTokenStore interface {
	SaveRefreshToken(ctx context.Context, sessionID, refreshToken string) error
}

// LoginRequest is the first leg of the authorization-code flow. State and
// Verifier must be kept until the callback arrives.
type LoginRequest struct {
	URL      string
	State    string
	Verifier string
}

// Provider is the dashboard's OIDC client.
type Provider struct {
	oauth         *oauth2.Config
	verifier      *oidc.IDTokenVerifier
	revocationURL string
	httpClient    *http.Client
	store         RefreshTokenStore
	log           zerolog.Logger
	now           func() time.Time
}

// New discovers the issuer's endpoints and keys.
func New(ctx context.Context, cfg Config, store RefreshTokenStore, log zerolog.Logger) (*Provider, error) {
	if cfg.Issuer == "" || cfg.ClientID == "" || cfg.RedirectURL == "" {
		return nil, errors.New("oidc config missing required fields")
	}

	op, err := oidc.NewProvider(ctx, cfg.Issuer)
	if err != nil {
		return nil, fmt.Errorf("failed to init oidc provider: %w", err)
	}

	var meta struct {
		RevocationEndpoint string `json:"revocation_endpoint"`
	}
	if err := op.Claims(&meta); err != nil {
		log.Warn().Err(err).Msg("could not read provider metadata, token revocation disabled")
	}

	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = []string{oidc.ScopeOpenID, "profile", "email"}
	}
	oauthCfg := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURL,
		Endpoint:     op.Endpoint(),
		Scopes:       scopes,
	}

	verifier := op.Verifier(&oidc.Config{ClientID: cfg.ClientID})
	return newProvider(oauthCfg, verifier, meta.RevocationEndpoint, store, log), nil
}

func newProvider(oauthCfg *oauth2.Config, verifier *oidc.IDTokenVerifier, revocationURL string, store RefreshTokenStore, log zerolog.Logger) *Provider {
	return &Provider{
		oauth:         oauthCfg,
		verifier:      verifier,
		revocationURL: revocationURL,
		httpClient:    &http.Client{Timeout: 10 * time.Second},
		store:         store,
		log:           log,
		now:           time.Now,
	}
}

// BeginLogin builds the provider URL for a new sign-in with a random state and
// an S256 PKCE challenge.
func (p *Provider) BeginLogin() (LoginRequest, error) {
	state, err := randomToken()
	if err != nil {
		return LoginRequest{}, err
	}
	verifier := oauth2.GenerateVerifier()
	authURL := p.oauth.AuthCodeURL(
		state,
		oauth2.AccessTypeOffline,
		oauth2.S256ChallengeOption(verifier),
	)
	return LoginRequest{URL: authURL, State: state, Verifier: verifier}, nil
}

// CompleteLogin exchanges the authorization code, verifies the returned
// id_token and returns the signed-in identity with its session handle.
func (p *Provider) CompleteLogin(ctx context.Context, sessionID, code, verifier string) (domain.Identity, ports.IdentitySource, error) {
	tok, err := p.oauth.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return domain.Identity{}, nil, fmt.Errorf("token exchange failed: %w", err)
	}

	raw, ok := tok.Extra("id_token").(string)
	if !ok || raw == "" {
		return domain.Identity{}, nil, errNoIDToken
	}
	idTok, err := p.verifier.Verify(ctx, raw)
	if err != nil {
		return domain.Identity{}, nil, fmt.Errorf("id_token verification failed: %w", err)
	}

	var claims struct {
		Subject string `json:"sub"`
		Email   string `json:"email"`
		Name    string `json:"name"`
		Picture string `json:"picture"`
	}
	if err := idTok.Claims(&claims); err != nil {
		return domain.Identity{}, nil, fmt.Errorf("id_token claims parse failed: %w", err)
	}
	if claims.Subject == "" {
		return domain.Identity{}, nil, errMissingClaims
	}
	if tok.RefreshToken == "" {
		return domain.Identity{}, nil, errNoRefreshToken
	}

	identity := domain.Identity{
		UID:         claims.Subject,
		Email:       claims.Email,
		DisplayName: claims.Name,
		PhotoURL:    claims.Picture,
	}
	p.persistRefreshToken(ctx, sessionID, tok.RefreshToken)

	p.log.Info().
		Str("issuer", idTok.Issuer).
		Bool("email_present", claims.Email != "").
		Int64("expiry_unix", idTok.Expiry.Unix()).
		Msg("oidc sign-in verified")

	return identity, &source{
		p:            p,
		sessionID:    sessionID,
		refreshToken: tok.RefreshToken,
		idToken:      raw,
		expiry:       idTok.Expiry,
	}, nil
}

// Resume rebuilds a session handle from persisted state. Identity fields the
// store lost are recovered from the last identity token.
func (p *Provider) Resume(_ context.Context, sessionID string, persisted *ports.PersistedSession) (domain.Identity, ports.IdentitySource, error) {
	if persisted == nil || persisted.RefreshToken == "" {
		return domain.Identity{}, nil, errNoRefreshToken
	}

	identity := persisted.Identity
	src := &source{
		p:            p,
		sessionID:    sessionID,
		refreshToken: persisted.RefreshToken,
	}

	if persisted.IDToken != "" {
		claims, err := ClaimsFromToken(persisted.IDToken)
		if err != nil {
			p.log.Debug().Err(err).Str("session", sessionID).Msg("stored identity token unreadable")
		} else {
			identity = mergeIdentity(identity, claims.Identity)
			src.idToken = persisted.IDToken
			src.expiry = claims.Expiry
		}
	}
	return identity, src, nil
}

func (p *Provider) persistRefreshToken(ctx context.Context, sessionID, refreshToken string) {
	if p.store == nil {
		return
	}
	if err := p.store.SaveRefreshToken(ctx, sessionID, refreshToken); err != nil {
		p.log.Warn().Err(err).Str("session", sessionID).Msg("failed to persist refresh token")
	}
}

// revoke asks the provider to invalidate refreshToken (RFC 7009).
func (p *Provider) revoke(ctx context.Context, refreshToken string) error {
	if p.revocationURL == "" {
		return nil
	}
	form := url.Values{
		"token":           {refreshToken},
		"token_type_hint": {"refresh_token"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.revocationURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build revocation request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(url.QueryEscape(p.oauth.ClientID), url.QueryEscape(p.oauth.ClientSecret))

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("revoke refresh token: provider returned %d", resp.StatusCode)
	}
	return nil
}

func mergeIdentity(stored, fromToken domain.Identity) domain.Identity {
	if stored.UID == "" {
		stored.UID = fromToken.UID
	}
	if stored.Email == "" {
		stored.Email = fromToken.Email
	}
	if stored.DisplayName == "" {
		stored.DisplayName = fromToken.DisplayName
	}
	if stored.PhotoURL == "" {
		stored.PhotoURL = fromToken.PhotoURL
	}
	return stored
}

func randomToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate oauth state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
