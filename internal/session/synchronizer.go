package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"donation_match_backend/internal/common"
	"donation_match_backend/internal/identity"
	"donation_match_backend/internal/profile"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

const (
	bootstrapTimeout = 10 * time.Second
	eventTimeout     = 15 * time.Second
)

// OAuthCompleter is implemented by providers whose redirect flow finishes on
// this server rather than in the browser.
type OAuthCompleter interface {
	CompleteOAuth(ctx context.Context, code, state string) (string, error)
}

type registerInput struct {
	Email    string `validate:"required,email,max=255"`
	Password string `validate:"required,min=6,max=128"`
}

var validate = validator.New()

// Synchronizer mirrors one client's provider session into a User view and
// carries out the identity operations on its behalf.
//
// State is guarded by mu. Operations may overlap (an event can race a
// bootstrap fetch); whichever assignment lands last wins.
type Synchronizer struct {
	provider   identity.Provider
	profiles   profile.Repository
	logger     *zap.Logger
	redirectTo string

	mu        sync.RWMutex
	user      *User
	loading   bool
	lastError string

	startOnce sync.Once
	startErr  error
	closeOnce sync.Once
	sub       *identity.Subscription
	done      chan struct{}
	handled   atomic.Int64 // events processed by the loop
}

// NewSynchronizer creates a synchronizer in its initial state: loading, no user.
// redirectTo is where the browser lands after a Google sign-in.
func NewSynchronizer(provider identity.Provider, profiles profile.Repository, redirectTo string, logger *zap.Logger) *Synchronizer {
	return &Synchronizer{
		provider:   provider,
		profiles:   profiles,
		logger:     logger,
		redirectTo: redirectTo,
		loading:    true,
	}
}

// Start subscribes to session events and bootstraps from any existing session.
// It runs once; later calls return the first result. Bootstrap failures are
// logged and leave the user signed out.
func (s *Synchronizer) Start(ctx context.Context) error {
	s.startOnce.Do(func() {
		// The subscription lives until Close, not until ctx is done.
		sub, err := s.provider.Subscribe(context.Background())
		if err != nil {
			s.setLoading(false)
			s.startErr = err
			return
		}
		s.mu.Lock()
		s.sub = sub
		s.done = make(chan struct{})
		s.mu.Unlock()
		go s.run(sub, s.done)

		s.bootstrap(ctx)
	})
	return s.startErr
}

func (s *Synchronizer) bootstrap(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, bootstrapTimeout)
	defer cancel()
	defer s.setLoading(false)

	sess, err := s.provider.CurrentSession(ctx)
	if err != nil {
		s.logger.Warn("Session check failed during bootstrap", zap.Error(err))
		return
	}
	if sess == nil {
		return
	}
	s.FetchProfile(ctx, sess.Identity.ID)
}

func (s *Synchronizer) run(sub *identity.Subscription, done chan struct{}) {
	defer close(done)
	for ev := range sub.Events() {
		s.handleEvent(ev)
		s.handled.Add(1)
	}
}

func (s *Synchronizer) handleEvent(ev identity.Event) {
	switch ev.Type {
	case identity.SignedIn:
		if ev.Session == nil {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), eventTimeout)
		s.FetchProfile(ctx, ev.Session.Identity.ID)
		cancel()
		s.setLoading(false)
	case identity.SignedOut:
		s.mu.Lock()
		s.user = nil
		s.loading = false
		s.mu.Unlock()
	}
}

// Close releases the event subscription and waits for the event loop to exit.
// It is safe to call more than once and before Start.
func (s *Synchronizer) Close() {
	s.closeOnce.Do(func() {
		s.mu.RLock()
		sub, done := s.sub, s.done
		s.mu.RUnlock()
		if sub == nil {
			return
		}
		sub.Close()
		<-done
	})
}

// FetchProfile loads the profile for identityID into the user view. A missing
// row is expected while provisioning is pending and changes nothing. Query
// failures are recorded in LastError and logged, never returned.
func (s *Synchronizer) FetchProfile(ctx context.Context, identityID string) {
	p, err := s.profiles.FindByID(profile.WithActor(ctx, identityID), identityID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			s.logger.Debug("Profile not provisioned yet", zap.String("identityID", identityID))
			return
		}
		s.logger.Error("Failed to fetch profile", zap.String("identityID", identityID), zap.Error(err))
		s.setError(UserError(err).Message)
		return
	}

	s.mu.Lock()
	s.user = UserFromProfile(p)
	s.mu.Unlock()
}

// Login signs in with email and password.
func (s *Synchronizer) Login(ctx context.Context, email, password string) error {
	s.begin()
	defer s.setLoading(false)

	sess, err := s.provider.SignInWithPassword(ctx, profile.NormalizeEmail(email), password)
	if err != nil {
		return s.fail("Login failed", err)
	}
	s.FetchProfile(ctx, sess.Identity.ID)
	return nil
}

// LoginWithGoogle starts the Google redirect flow and returns the URL to send
// the browser to. On success loading stays set until the SignedIn event for
// the completed flow arrives.
func (s *Synchronizer) LoginWithGoogle(ctx context.Context) (string, error) {
	s.begin()
	url, err := s.provider.SignInWithOAuth(ctx, identity.GoogleOAuthRequest(s.redirectTo))
	if err != nil {
		apiErr := s.fail("Google sign-in could not be started", err)
		s.setLoading(false)
		return "", apiErr
	}
	return url, nil
}

// CompleteGoogleLogin finishes the redirect flow. The profile itself arrives
// through the SignedIn event; on failure loading is cleared here.
func (s *Synchronizer) CompleteGoogleLogin(ctx context.Context, code, state string) (string, error) {
	completer, ok := s.provider.(OAuthCompleter)
	if !ok {
		apiErr := s.fail("Google sign-in callback rejected", identity.ErrUnsupportedOAuth)
		s.setLoading(false)
		return "", apiErr
	}
	landing, err := completer.CompleteOAuth(ctx, code, state)
	if err != nil {
		apiErr := s.fail("Google sign-in failed", err)
		s.setLoading(false)
		return landing, apiErr
	}
	return landing, nil
}

// CancelGoogleLogin ends a redirect flow the provider reported as failed
// before any code was issued.
func (s *Synchronizer) CancelGoogleLogin(reason string) {
	s.logger.Info("Google sign-in cancelled", zap.String("reason", reason))
	s.mu.Lock()
	s.loading = false
	s.lastError = "Google sign-in was cancelled."
	s.mu.Unlock()
}

// Register creates an account with a self-assignable role and provisions its
// profile. The provider may already have provisioned it; that is not an error.
func (s *Synchronizer) Register(ctx context.Context, email, password string, role profile.Role) error {
	if !role.SelfAssignable() {
		s.setError(ErrRoleNotAllowed.Message)
		return ErrRoleNotAllowed
	}
	email = profile.NormalizeEmail(email)
	if err := validate.Struct(registerInput{Email: email, Password: password}); err != nil {
		var verrs validator.ValidationErrors
		apiErr := common.ErrValidation
		if errors.As(err, &verrs) {
			apiErr = common.NewValidationAPIError(common.FormatValidationErrors(verrs))
		}
		s.setError(apiErr.Message)
		return apiErr
	}

	s.begin()
	defer s.setLoading(false)

	fullName := profile.EmailLocalPart(email)
	sess, err := s.provider.SignUp(ctx, email, password, identity.Metadata{
		identity.MetaFullName: fullName,
		identity.MetaRole:     string(role),
	})
	if err != nil {
		return s.fail("Registration failed", err)
	}

	id := sess.Identity.ID
	row := profile.NewProfileFromIdentity(sess.Identity)
	row.FullName = &fullName
	row.Role = role
	row.Verified = false
	row.ProfileComplete = false
	if err := s.profiles.Create(profile.WithActor(ctx, id), row); err != nil {
		if !s.alreadyProvisioned(ctx, id, err) {
			return s.fail("Profile creation failed", err)
		}
		s.logger.Debug("Profile already provisioned for new identity", zap.String("identityID", id))
	}

	s.FetchProfile(ctx, id)
	return nil
}

// alreadyProvisioned reports whether a failed insert lost to an existing row
// for the same identity. The database may name either the id or the email
// constraint when both collide, so a duplicate email is checked against the id.
func (s *Synchronizer) alreadyProvisioned(ctx context.Context, id string, err error) bool {
	if errors.Is(err, common.ErrConflict) {
		return true
	}
	if !errors.Is(err, common.ErrValidation) {
		return false
	}
	_, findErr := s.profiles.FindByID(profile.WithActor(ctx, id), id)
	return findErr == nil
}

// UpdateProfile saves a partial edit of the signed-in user's profile and
// marks it complete. Without a signed-in user it does nothing.
func (s *Synchronizer) UpdateProfile(ctx context.Context, upd profile.Update) error {
	current := s.CurrentUser()
	if current == nil {
		return nil
	}

	s.begin()
	defer s.setLoading(false)

	if err := upd.Validate(current.Role); err != nil {
		return s.fail("Profile update rejected", err)
	}
	if err := s.profiles.Update(profile.WithActor(ctx, current.ID), current.ID, upd.Columns()); err != nil {
		return s.fail("Profile update failed", err)
	}
	s.FetchProfile(ctx, current.ID)
	return nil
}

// Logout clears the user view and then signs out with the provider. A
// provider failure is only logged.
func (s *Synchronizer) Logout(ctx context.Context) {
	s.mu.Lock()
	s.user = nil
	s.mu.Unlock()

	if err := s.provider.SignOut(ctx); err != nil {
		s.logger.Warn("Provider sign-out failed", zap.Error(err))
	}
}

// CurrentUser returns a copy of the signed-in user, or nil.
func (s *Synchronizer) CurrentUser() *User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

func (s *Synchronizer) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

func (s *Synchronizer) LastError() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastError
}

// Snapshot returns user, loading and last error read together.
func (s *Synchronizer) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := Snapshot{Loading: s.loading, LastError: s.lastError}
	if s.user != nil {
		u := *s.user
		snap.User = &u
	}
	return snap
}

func (s *Synchronizer) begin() {
	s.mu.Lock()
	s.loading = true
	s.lastError = ""
	s.mu.Unlock()
}

func (s *Synchronizer) setLoading(v bool) {
	s.mu.Lock()
	s.loading = v
	s.mu.Unlock()
}

func (s *Synchronizer) setError(msg string) {
	s.mu.Lock()
	s.lastError = msg
	s.mu.Unlock()
}

// fail records err as the user-facing last error and returns it as an APIError.
func (s *Synchronizer) fail(msg string, err error) *common.APIError {
	apiErr := UserError(err)
	if apiErr.StatusCode >= 500 {
		s.logger.Error(msg, zap.Error(err))
	} else {
		s.logger.Info(msg, zap.Error(err))
	}
	s.setError(apiErr.Message)
	return apiErr
}
