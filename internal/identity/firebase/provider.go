package firebase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"donation_match_backend/internal/identity"
	"donation_match_backend/internal/platform/crypto"

	"firebase.google.com/go/v4/auth"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// oauthTokenBytes sizes the state and nonce of a redirect flow.
const oauthTokenBytes = 32

// Provider is the identity.Provider for a single client session.
type Provider struct {
	client   *Client
	clientID string
	events   *identity.Broadcaster
}

var _ identity.Provider = (*Provider)(nil)

// CurrentSession returns the stored session. An expired session counts as none
// and is discarded.
func (p *Provider) CurrentSession(ctx context.Context) (*identity.Session, error) {
	s, err := p.client.store.LoadSession(ctx, p.clientID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", identity.ErrUnavailable, err)
	}
	if s == nil {
		return nil, nil
	}
	if s.Expired(p.client.now()) {
		if err := p.client.store.DeleteSession(ctx, p.clientID); err != nil {
			p.client.logger.Warn("Failed to discard expired session", zap.String("clientID", p.clientID), zap.Error(err))
		}
		return nil, nil
	}
	return s, nil
}

// SignInWithPassword checks the credentials with Firebase and starts a session.
func (p *Provider) SignInWithPassword(ctx context.Context, email, password string) (*identity.Session, error) {
	res, err := p.client.toolkit.VerifyPassword(ctx, email, password)
	if err != nil {
		return nil, err
	}
	return p.establish(ctx, res)
}

// SignInWithOAuth records a pending authorization and returns the consent URL.
func (p *Provider) SignInWithOAuth(ctx context.Context, req identity.OAuthRequest) (string, error) {
	if !strings.EqualFold(req.Provider, "google") || p.client.google == nil {
		return "", fmt.Errorf("%w: %s", identity.ErrUnsupportedOAuth, req.Provider)
	}
	state, err := crypto.RandomToken(oauthTokenBytes)
	if err != nil {
		return "", fmt.Errorf("%w: %w", identity.ErrUnavailable, err)
	}
	nonce, err := crypto.RandomToken(oauthTokenBytes)
	if err != nil {
		return "", fmt.Errorf("%w: %w", identity.ErrUnavailable, err)
	}
	pending := identity.PendingOAuth{
		State:        state,
		CodeVerifier: oauth2.GenerateVerifier(),
		Nonce:        nonce,
		Provider:     "google",
		RedirectTo:   req.RedirectTo,
		ExpiresAt:    p.client.now().Add(pendingOAuthTTL),
	}
	if err := p.client.store.SavePendingOAuth(ctx, p.clientID, pending); err != nil {
		return "", fmt.Errorf("%w: %w", identity.ErrUnavailable, err)
	}
	return p.client.google.AuthCodeURL(pending, req.QueryParams), nil
}

// CompleteOAuth finishes a redirect sign-in started by SignInWithOAuth. It
// returns where the user asked to land afterwards.
func (p *Provider) CompleteOAuth(ctx context.Context, code, state string) (string, error) {
	if p.client.google == nil {
		return "", identity.ErrUnsupportedOAuth
	}
	pending, err := p.client.store.TakePendingOAuth(ctx, p.clientID, state)
	if err != nil {
		return "", fmt.Errorf("%w: %w", identity.ErrUnavailable, err)
	}
	if pending == nil {
		return "", identity.ErrInvalidOAuthState
	}
	rawIDToken, err := p.client.google.Exchange(ctx, code, *pending)
	if err != nil {
		return pending.RedirectTo, err
	}
	res, err := p.client.toolkit.VerifyAssertion(ctx, googleProviderID, rawIDToken, p.client.google.RedirectURL())
	if err != nil {
		return pending.RedirectTo, err
	}
	if _, err := p.establish(ctx, res); err != nil {
		return pending.RedirectTo, err
	}
	return pending.RedirectTo, nil
}

// SignUp creates the identity, runs provisioning, and signs the new user in.
func (p *Provider) SignUp(ctx context.Context, email, password string, metadata identity.Metadata) (*identity.Session, error) {
	toCreate := (&auth.UserToCreate{}).Email(email).Password(password)
	if name := metadata.FullName(); name != "" {
		toCreate = toCreate.DisplayName(name)
	}
	if avatar := metadata.AvatarURL(); avatar != "" {
		toCreate = toCreate.PhotoURL(avatar)
	}
	rec, err := p.client.admin.CreateUser(ctx, toCreate)
	if err != nil {
		if auth.IsEmailAlreadyExists(err) {
			return nil, fmt.Errorf("%w: %s", identity.ErrEmailExists, email)
		}
		if strings.Contains(err.Error(), "password must be") {
			return nil, fmt.Errorf("%w: %w", identity.ErrWeakPassword, err)
		}
		return nil, fmt.Errorf("%w: create user: %w", identity.ErrUnavailable, err)
	}

	if role := metadata.RequestedRole(); role != "" {
		if err := p.client.admin.SetCustomUserClaims(ctx, rec.UID, map[string]interface{}{identity.MetaRole: role}); err != nil {
			p.client.logger.Warn("Failed to store requested role claim", zap.String("identityID", rec.UID), zap.Error(err))
		}
	}

	created := identityFromRecord(rec)
	for k, v := range metadata {
		if _, set := created.Metadata[k]; !set {
			created.Metadata[k] = v
		}
	}
	if err := p.client.runHooks(ctx, *created); err != nil {
		// Without its profile the identity is unusable; remove it so the
		// address can be registered again.
		if delErr := p.client.admin.DeleteUser(ctx, rec.UID); delErr != nil {
			p.client.logger.Error("Failed to roll back identity after provisioning failure",
				zap.String("identityID", rec.UID), zap.Error(delErr))
		}
		return nil, fmt.Errorf("provisioning failed: %w", err)
	}

	res, err := p.client.toolkit.VerifyPassword(ctx, email, password)
	if err != nil {
		return nil, err
	}
	return p.establish(ctx, res)
}

// SignOut revokes the user's refresh tokens and ends the local session. The
// session is dropped and SignedOut published even when revocation fails.
func (p *Provider) SignOut(ctx context.Context) error {
	s, loadErr := p.client.store.LoadSession(ctx, p.clientID)

	var revokeErr error
	if s != nil {
		revokeErr = p.client.admin.RevokeRefreshTokens(ctx, s.Identity.ID)
	}
	delErr := p.client.store.DeleteSession(ctx, p.clientID)
	p.events.Publish(identity.Event{Type: identity.SignedOut})

	if err := errors.Join(loadErr, revokeErr, delErr); err != nil {
		return fmt.Errorf("%w: sign out: %w", identity.ErrUnavailable, err)
	}
	return nil
}

// Subscribe returns a subscription to this client's session events.
func (p *Provider) Subscribe(ctx context.Context) (*identity.Subscription, error) {
	return p.events.Subscribe(ctx), nil
}

// establish turns a Firebase sign-in into a stored session. New identities are
// provisioned before SignedIn is published.
func (p *Provider) establish(ctx context.Context, res *signInResult) (*identity.Session, error) {
	id, err := p.client.LookupIdentity(ctx, res.LocalID)
	if err != nil {
		return nil, err
	}
	if res.IsNewUser {
		if err := p.client.runHooks(ctx, *id); err != nil {
			return nil, fmt.Errorf("provisioning failed: %w", err)
		}
	}

	now := p.client.now()
	session := &identity.Session{
		AccessToken:  res.IDToken,
		RefreshToken: res.RefreshToken,
		ExpiresAt:    tokenExpiry(res.IDToken, now),
		Identity:     *id,
	}
	if err := p.client.store.SaveSession(ctx, p.clientID, session); err != nil {
		return nil, fmt.Errorf("%w: save session: %w", identity.ErrUnavailable, err)
	}

	p.client.logger.Info("Session established",
		zap.String("clientID", p.clientID),
		zap.String("identityID", id.ID),
		zap.Bool("newIdentity", res.IsNewUser),
	)
	p.events.Publish(identity.Event{Type: identity.SignedIn, Session: session})
	return session, nil
}
