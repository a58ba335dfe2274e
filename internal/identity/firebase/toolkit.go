package firebase

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"google.golang.org/api/identitytoolkit/v3"
	"google.golang.org/api/option"
)

// signInResult is what a successful Identity Toolkit sign-in yields.
type signInResult struct {
	LocalID      string
	Email        string
	IDToken      string
	RefreshToken string
	IsNewUser    bool
}

// signInAPI is the end-user sign-in surface of Firebase Authentication.
type signInAPI interface {
	VerifyPassword(ctx context.Context, email, password string) (*signInResult, error)
	// VerifyAssertion signs in with an identity provider's id_token.
	VerifyAssertion(ctx context.Context, providerID, idToken, requestURI string) (*signInResult, error)
}

type identityToolkit struct {
	svc *identitytoolkit.Service
}

func newIdentityToolkit(ctx context.Context, apiKey string) (*identityToolkit, error) {
	if apiKey == "" {
		return nil, errors.New("firebase web API key is required")
	}
	svc, err := identitytoolkit.NewService(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("error creating identity toolkit client: %w", err)
	}
	return &identityToolkit{svc: svc}, nil
}

func (t *identityToolkit) VerifyPassword(ctx context.Context, email, password string) (*signInResult, error) {
	resp, err := t.svc.Relyingparty.VerifyPassword(&identitytoolkit.IdentitytoolkitRelyingpartyVerifyPasswordRequest{
		Email:             email,
		Password:          password,
		ReturnSecureToken: true,
	}).Context(ctx).Do()
	if err != nil {
		return nil, classifySignInError(err)
	}
	return &signInResult{
		LocalID:      resp.LocalId,
		Email:        resp.Email,
		IDToken:      resp.IdToken,
		RefreshToken: resp.RefreshToken,
	}, nil
}

func (t *identityToolkit) VerifyAssertion(ctx context.Context, providerID, idToken, requestURI string) (*signInResult, error) {
	body := url.Values{}
	body.Set("id_token", idToken)
	body.Set("providerId", providerID)

	resp, err := t.svc.Relyingparty.VerifyAssertion(&identitytoolkit.IdentitytoolkitRelyingpartyVerifyAssertionRequest{
		PostBody:          body.Encode(),
		RequestUri:        requestURI,
		ReturnSecureToken: true,
	}).Context(ctx).Do()
	if err != nil {
		return nil, classifySignInError(err)
	}
	return &signInResult{
		LocalID:      resp.LocalId,
		Email:        resp.Email,
		IDToken:      resp.IdToken,
		RefreshToken: resp.RefreshToken,
		IsNewUser:    resp.IsNewUser,
	}, nil
}

// defaultSessionLifetime is Firebase's id token lifetime, used when the token
// carries no readable expiry.
const defaultSessionLifetime = time.Hour

// tokenExpiry reads the exp claim of a Firebase id token. The signature is not
// checked: the token came straight from Firebase over TLS.
func tokenExpiry(idToken string, now time.Time) time.Time {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(idToken, claims); err != nil {
		return now.Add(defaultSessionLifetime)
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return now.Add(defaultSessionLifetime)
	}
	return exp.Time
}
