package session

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"donation_match_backend/internal/identity"

	"go.uber.org/zap"
)

// fakeProvider is an in-memory identity.Provider. Sign-up runs the configured
// provisioning hook before announcing the session, like the real provider.
type fakeProvider struct {
	mu         sync.Mutex
	events     *identity.Broadcaster
	session    *identity.Session
	accounts   map[string]fakeAccount // by email
	hook       identity.ProvisioningHook
	confirmAll bool

	signInErr    error
	signUpErr    error
	signOutErr   error
	oauthErr     error
	completeErr  error
	subscribeErr error
	sessionErr   error

	signUpCalls  int
	signOutCalls int
	oauthReq     *identity.OAuthRequest
}

type fakeAccount struct {
	password string
	identity identity.Identity
}

var _ identity.Provider = (*fakeProvider)(nil)
var _ OAuthCompleter = (*fakeProvider)(nil)

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		events:   identity.NewBroadcaster(zap.NewNop()),
		accounts: make(map[string]fakeAccount),
	}
}

// addAccount registers an existing identity that can sign in.
func (f *fakeProvider) addAccount(id identity.Identity, password string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.accounts[id.Email] = fakeAccount{password: password, identity: id}
}

func (f *fakeProvider) startSession(id identity.Identity) *identity.Session {
	s := &identity.Session{
		AccessToken: "token-" + id.ID,
		ExpiresAt:   time.Now().Add(time.Hour),
		Identity:    id,
	}
	f.mu.Lock()
	f.session = s
	f.mu.Unlock()
	f.events.Publish(identity.Event{Type: identity.SignedIn, Session: s})
	return s
}

func (f *fakeProvider) CurrentSession(context.Context) (*identity.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sessionErr != nil {
		return nil, f.sessionErr
	}
	return f.session, nil
}

func (f *fakeProvider) SignInWithPassword(_ context.Context, email, password string) (*identity.Session, error) {
	f.mu.Lock()
	acct, ok := f.accounts[email]
	err := f.signInErr
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if !ok || acct.password != password {
		return nil, identity.ErrInvalidCredentials
	}
	return f.startSession(acct.identity), nil
}

func (f *fakeProvider) SignInWithOAuth(_ context.Context, req identity.OAuthRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.oauthErr != nil {
		return "", f.oauthErr
	}
	f.oauthReq = &req
	return "https://accounts.example/auth?state=s1", nil
}

// CompleteOAuth signs in the account registered under code, provisioning it
// first, the way a first-time Google sign-in does.
func (f *fakeProvider) CompleteOAuth(ctx context.Context, code, state string) (string, error) {
	if f.completeErr != nil {
		return "/", f.completeErr
	}
	if state != "s1" {
		return "", identity.ErrInvalidOAuthState
	}
	f.mu.Lock()
	acct, ok := f.accounts[code]
	redirect := ""
	if f.oauthReq != nil {
		redirect = f.oauthReq.RedirectTo
	}
	f.mu.Unlock()
	if !ok {
		return redirect, identity.ErrInvalidOAuthState
	}
	if f.hook != nil {
		if err := f.hook.OnIdentityCreated(ctx, acct.identity); err != nil {
			return redirect, err
		}
	}
	f.startSession(acct.identity)
	return redirect, nil
}

func (f *fakeProvider) SignUp(ctx context.Context, email, password string, metadata identity.Metadata) (*identity.Session, error) {
	f.mu.Lock()
	f.signUpCalls++
	if f.signUpErr != nil {
		err := f.signUpErr
		f.mu.Unlock()
		return nil, err
	}
	if _, exists := f.accounts[email]; exists {
		f.mu.Unlock()
		return nil, identity.ErrEmailExists
	}
	id := identity.Identity{
		ID:       fmt.Sprintf("u-%s", strings.SplitN(email, "@", 2)[0]),
		Email:    email,
		Metadata: metadata,
	}
	if f.confirmAll {
		now := time.Now()
		id.EmailConfirmedAt = &now
	}
	f.accounts[email] = fakeAccount{password: password, identity: id}
	hook := f.hook
	f.mu.Unlock()

	if hook != nil {
		if err := hook.OnIdentityCreated(ctx, id); err != nil {
			return nil, err
		}
	}
	return f.startSession(id), nil
}

func (f *fakeProvider) SignOut(context.Context) error {
	f.mu.Lock()
	f.signOutCalls++
	f.session = nil
	err := f.signOutErr
	f.mu.Unlock()
	f.events.Publish(identity.Event{Type: identity.SignedOut})
	return err
}

func (f *fakeProvider) Subscribe(ctx context.Context) (*identity.Subscription, error) {
	if f.subscribeErr != nil {
		return nil, f.subscribeErr
	}
	return f.events.Subscribe(ctx), nil
}
