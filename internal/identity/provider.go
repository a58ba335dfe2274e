package identity

import (
	"context"
	"errors"
)

// Provider is the identity provider surface consumed by the session layer.
// An implementation is scoped to a single client session.
type Provider interface {
	// CurrentSession returns the active session, or nil when signed out.
	CurrentSession(ctx context.Context) (*Session, error)
	SignInWithPassword(ctx context.Context, email, password string) (*Session, error)
	// SignInWithOAuth starts a redirect flow and returns the URL to send the user to.
	// The session arrives later as a SignedIn event.
	SignInWithOAuth(ctx context.Context, req OAuthRequest) (string, error)
	SignUp(ctx context.Context, email, password string, metadata Metadata) (*Session, error)
	SignOut(ctx context.Context) error
	Subscribe(ctx context.Context) (*Subscription, error)
}

// OAuthRequest describes a redirect sign-in.
type OAuthRequest struct {
	Provider    string
	RedirectTo  string
	QueryParams map[string]string
}

// GoogleOAuthRequest is the redirect request used for "continue with Google":
// offline access with an explicit consent prompt so a refresh token is issued.
func GoogleOAuthRequest(redirectTo string) OAuthRequest {
	return OAuthRequest{
		Provider:   "google",
		RedirectTo: redirectTo,
		QueryParams: map[string]string{
			"access_type": "offline",
			"prompt":      "consent",
		},
	}
}

// ProvisioningHook runs synchronously inside the provider whenever a new
// identity is created, before any SignedIn event for it is published.
type ProvisioningHook interface {
	OnIdentityCreated(ctx context.Context, id Identity) error
}

// ProvisioningHookFunc adapts a function to ProvisioningHook.
type ProvisioningHookFunc func(ctx context.Context, id Identity) error

func (f ProvisioningHookFunc) OnIdentityCreated(ctx context.Context, id Identity) error {
	return f(ctx, id)
}

// Lookup resolves identities by id with administrative rights.
type Lookup interface {
	LookupIdentity(ctx context.Context, id string) (*Identity, error)
}

// Provider errors. Implementations wrap these so callers can branch with errors.Is.
var (
	ErrInvalidCredentials = errors.New("identity: invalid credentials")
	ErrEmailExists        = errors.New("identity: email already registered")
	ErrWeakPassword       = errors.New("identity: password does not meet requirements")
	ErrInvalidOAuthState  = errors.New("identity: oauth state mismatch or expired")
	ErrUnsupportedOAuth   = errors.New("identity: unsupported oauth provider")
	ErrIdentityNotFound   = errors.New("identity: identity not found")
	ErrUnavailable        = errors.New("identity: provider unavailable")
)
