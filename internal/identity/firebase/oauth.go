package firebase

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"donation_match_backend/internal/config"
	"donation_match_backend/internal/identity"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const (
	googleIssuer     = "https://accounts.google.com"
	googleProviderID = "google.com"
)

// oauthFlow runs the authorization code flow against an OAuth provider.
type oauthFlow interface {
	AuthCodeURL(p identity.PendingOAuth, params map[string]string) string
	// Exchange trades the code for a verified id_token.
	Exchange(ctx context.Context, code string, p identity.PendingOAuth) (string, error)
	RedirectURL() string
}

type googleOAuth struct {
	config   *oauth2.Config
	verifier *oidc.IDTokenVerifier
}

func newGoogleOAuth(ctx context.Context, cfg *config.Config) (*googleOAuth, error) {
	// Discovery supplies the signing keys used to verify id_tokens.
	provider, err := oidc.NewProvider(ctx, googleIssuer)
	if err != nil {
		return nil, fmt.Errorf("failed to discover Google OIDC provider: %w", err)
	}
	return &googleOAuth{
		config: &oauth2.Config{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  cfg.OAuthRedirectURL,
			Endpoint:     google.Endpoint,
			Scopes:       []string{oidc.ScopeOpenID, "email", "profile"},
		},
		verifier: provider.Verifier(&oidc.Config{ClientID: cfg.GoogleClientID}),
	}, nil
}

func (g *googleOAuth) RedirectURL() string { return g.config.RedirectURL }

func (g *googleOAuth) AuthCodeURL(p identity.PendingOAuth, params map[string]string) string {
	opts := []oauth2.AuthCodeOption{
		oauth2.S256ChallengeOption(p.CodeVerifier),
		oauth2.SetAuthURLParam("nonce", p.Nonce),
	}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		opts = append(opts, oauth2.SetAuthURLParam(k, params[k]))
	}
	return g.config.AuthCodeURL(p.State, opts...)
}

func (g *googleOAuth) Exchange(ctx context.Context, code string, p identity.PendingOAuth) (string, error) {
	tok, err := g.config.Exchange(ctx, code, oauth2.VerifierOption(p.CodeVerifier))
	if err != nil {
		var rerr *oauth2.RetrieveError
		if errors.As(err, &rerr) {
			return "", fmt.Errorf("%w: %s", identity.ErrInvalidOAuthState, rerr.ErrorCode)
		}
		return "", fmt.Errorf("%w: code exchange: %w", identity.ErrUnavailable, err)
	}
	raw, ok := tok.Extra("id_token").(string)
	if !ok || raw == "" {
		return "", fmt.Errorf("%w: token response has no id_token", identity.ErrInvalidOAuthState)
	}
	idToken, err := g.verifier.Verify(ctx, raw)
	if err != nil {
		return "", fmt.Errorf("%w: %w", identity.ErrInvalidOAuthState, err)
	}
	if idToken.Nonce != p.Nonce {
		return "", fmt.Errorf("%w: nonce mismatch", identity.ErrInvalidOAuthState)
	}
	return raw, nil
}
