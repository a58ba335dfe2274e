// Package firebase implements identity.Provider on top of Firebase
// Authentication: the Admin SDK for account management, the Identity Toolkit
// REST API for sign-in, and Google OAuth for redirect sign-in.
package firebase

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"donation_match_backend/internal/config"
	"donation_match_backend/internal/identity"

	firebasesdk "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

// pendingOAuthTTL bounds how long a user may take on the consent screen.
const pendingOAuthTTL = 10 * time.Minute

// adminAuth is the subset of the Admin SDK auth client used here.
type adminAuth interface {
	CreateUser(ctx context.Context, user *auth.UserToCreate) (*auth.UserRecord, error)
	GetUser(ctx context.Context, uid string) (*auth.UserRecord, error)
	DeleteUser(ctx context.Context, uid string) error
	SetCustomUserClaims(ctx context.Context, uid string, customClaims map[string]interface{}) error
	RevokeRefreshTokens(ctx context.Context, uid string) error
}

// Client holds the connections shared by every per-client Provider.
type Client struct {
	admin   adminAuth
	toolkit signInAPI
	google  oauthFlow // nil when Google sign-in is not configured
	store   identity.SessionStore
	hooks   []identity.ProvisioningHook
	logger  *zap.Logger
	now     func() time.Time
}

var _ identity.Lookup = (*Client)(nil)

// NewClient initializes the Firebase Admin SDK, the Identity Toolkit client and,
// when credentials are configured, Google OAuth.
func NewClient(ctx context.Context, cfg *config.Config, store identity.SessionStore, hook identity.ProvisioningHook, logger *zap.Logger) (*Client, error) {
	logger = logger.Named("firebase")
	if cfg.FirebaseServiceAccountKeyPath == "" {
		return nil, errors.New("firebase service account key path is required")
	}
	keyPath := filepath.Clean(cfg.FirebaseServiceAccountKeyPath)

	var appConf *firebasesdk.Config
	if cfg.FirebaseProjectID != "" {
		appConf = &firebasesdk.Config{ProjectID: cfg.FirebaseProjectID}
	}
	app, err := firebasesdk.NewApp(ctx, appConf, option.WithCredentialsFile(keyPath))
	if err != nil {
		logger.Error("Failed to initialize Firebase Admin SDK app", zap.Error(err), zap.String("keyPath", keyPath))
		return nil, fmt.Errorf("error initializing Firebase app: %w", err)
	}
	authClient, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting Firebase Auth client: %w", err)
	}

	tk, err := newIdentityToolkit(ctx, cfg.FirebaseWebAPIKey)
	if err != nil {
		return nil, err
	}

	var google oauthFlow
	if cfg.GoogleClientID != "" {
		g, err := newGoogleOAuth(ctx, cfg)
		if err != nil {
			return nil, err
		}
		google = g
	} else {
		logger.Warn("GOOGLE_CLIENT_ID not set; Google sign-in is disabled")
	}

	var hooks []identity.ProvisioningHook
	if hook != nil {
		hooks = append(hooks, hook)
	}

	logger.Info("Firebase identity provider initialized")
	return newClient(authClient, tk, google, store, hooks, logger), nil
}

func newClient(admin adminAuth, tk signInAPI, google oauthFlow, store identity.SessionStore, hooks []identity.ProvisioningHook, logger *zap.Logger) *Client {
	return &Client{
		admin:   admin,
		toolkit: tk,
		google:  google,
		store:   store,
		hooks:   hooks,
		logger:  logger,
		now:     time.Now,
	}
}

// ForClient returns a Provider bound to one client session.
func (c *Client) ForClient(clientID string) *Provider {
	return &Provider{
		client:   c,
		clientID: clientID,
		events:   identity.NewBroadcaster(c.logger.With(zap.String("clientID", clientID))),
	}
}

// LookupIdentity fetches an identity with administrative rights.
func (c *Client) LookupIdentity(ctx context.Context, id string) (*identity.Identity, error) {
	rec, err := c.admin.GetUser(ctx, id)
	if err != nil {
		if auth.IsUserNotFound(err) {
			return nil, fmt.Errorf("%w: %s", identity.ErrIdentityNotFound, id)
		}
		return nil, fmt.Errorf("%w: get user: %w", identity.ErrUnavailable, err)
	}
	return identityFromRecord(rec), nil
}

// runHooks calls every provisioning hook in order and stops at the first failure.
func (c *Client) runHooks(ctx context.Context, id identity.Identity) error {
	for _, h := range c.hooks {
		if err := h.OnIdentityCreated(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// identityFromRecord maps an Admin SDK user record onto an Identity. Firebase
// keeps only a verified flag, so the account creation time stands in for the
// confirmation time.
func identityFromRecord(rec *auth.UserRecord) *identity.Identity {
	id := &identity.Identity{Metadata: identity.Metadata{}}
	if rec.UserInfo != nil {
		id.ID = rec.UID
		id.Email = rec.Email
		if rec.DisplayName != "" {
			id.Metadata[identity.MetaFullName] = rec.DisplayName
		}
		if rec.PhotoURL != "" {
			id.Metadata[identity.MetaAvatarURL] = rec.PhotoURL
		}
	}
	if role, ok := rec.CustomClaims[identity.MetaRole]; ok {
		id.Metadata[identity.MetaRole] = role
	}
	if rec.EmailVerified {
		confirmed := time.Now().UTC()
		if rec.UserMetadata != nil && rec.UserMetadata.CreationTimestamp > 0 {
			confirmed = time.UnixMilli(rec.UserMetadata.CreationTimestamp).UTC()
		}
		id.EmailConfirmedAt = &confirmed
	}
	return id
}
