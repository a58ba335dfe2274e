package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"donation_match_backend/internal/auth"
	"donation_match_backend/internal/config"
	"donation_match_backend/internal/identity"
	"donation_match_backend/internal/jobs"
	"donation_match_backend/internal/profile"
	"donation_match_backend/internal/session"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// signedOutProvider never has a session; enough to resolve clients.
type signedOutProvider struct {
	events *identity.Broadcaster
}

func (p *signedOutProvider) CurrentSession(context.Context) (*identity.Session, error) {
	return nil, nil
}

func (p *signedOutProvider) SignInWithPassword(context.Context, string, string) (*identity.Session, error) {
	return nil, identity.ErrInvalidCredentials
}

func (p *signedOutProvider) SignInWithOAuth(context.Context, identity.OAuthRequest) (string, error) {
	return "", identity.ErrUnsupportedOAuth
}

func (p *signedOutProvider) SignUp(context.Context, string, string, identity.Metadata) (*identity.Session, error) {
	return nil, identity.ErrUnavailable
}

func (p *signedOutProvider) SignOut(context.Context) error { return nil }

func (p *signedOutProvider) Subscribe(ctx context.Context) (*identity.Subscription, error) {
	return p.events.Subscribe(ctx), nil
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&profile.Profile{}))

	cfg := &config.Config{
		GinMode:           gin.TestMode,
		ServerHost:        "127.0.0.1",
		ServerPort:        "0",
		AppBaseURL:        "https://app.example.com",
		SessionCookieName: "dm_client",
		ClientIdleTimeout: time.Hour,
	}
	log := zap.NewNop()
	repo := profile.NewGORMRepository(db)
	registry := session.NewRegistry(func(string) identity.Provider {
		return &signedOutProvider{events: identity.NewBroadcaster(log)}
	}, repo, cfg.AppBaseURL, log)
	scheduler := jobs.NewScheduler(cfg,
		jobs.NewVerificationSyncJob(repo, nil, log),
		jobs.NewClientSweepJob(registry, cfg.ClientIdleTimeout, log),
		log)

	s, err := NewServer(cfg, log, registry, auth.NewHandler(cfg, log), scheduler)
	require.NoError(t, err)
	return s
}

func TestServer_Health(t *testing.T) {
	s := newTestServer(t)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"UP"`)
	assert.Empty(t, rec.Result().Cookies(), "health checks do not open client sessions")
}

func TestServer_CORSAllowsAppOriginWithCredentials(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/auth/session", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))

	req = httptest.NewRequest(http.MethodOptions, "/api/v1/auth/session", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rec = httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestServer_SessionRouteAndShutdown(t *testing.T) {
	s := newTestServer(t)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/auth/session", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, s.registry.Len())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Shutdown(ctx))
	assert.Equal(t, 0, s.registry.Len())
}
