package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"donation_match_backend/internal/config"
	"donation_match_backend/internal/identity"
	"donation_match_backend/internal/middleware"
	"donation_match_backend/internal/profile"
	"donation_match_backend/internal/session"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testLanding = "https://app.example.com/welcome"

// accountBook is the identity backend shared by every client's provider.
type accountBook struct {
	mu        sync.Mutex
	passwords map[string]string
	byEmail   map[string]identity.Identity
}

type fakeProvider struct {
	book   *accountBook
	hook   identity.ProvisioningHook
	events *identity.Broadcaster

	mu       sync.Mutex
	session  *identity.Session
	oauthReq *identity.OAuthRequest
}

func (f *fakeProvider) start(id identity.Identity) *identity.Session {
	s := &identity.Session{AccessToken: "t-" + id.ID, ExpiresAt: time.Now().Add(time.Hour), Identity: id}
	f.mu.Lock()
	f.session = s
	f.mu.Unlock()
	f.events.Publish(identity.Event{Type: identity.SignedIn, Session: s})
	return s
}

func (f *fakeProvider) CurrentSession(context.Context) (*identity.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.session, nil
}

func (f *fakeProvider) SignInWithPassword(_ context.Context, email, password string) (*identity.Session, error) {
	f.book.mu.Lock()
	id, ok := f.book.byEmail[email]
	pw := f.book.passwords[email]
	f.book.mu.Unlock()
	if !ok || pw != password {
		return nil, identity.ErrInvalidCredentials
	}
	return f.start(id), nil
}

func (f *fakeProvider) SignInWithOAuth(_ context.Context, req identity.OAuthRequest) (string, error) {
	f.mu.Lock()
	f.oauthReq = &req
	f.mu.Unlock()
	return "https://accounts.google.test/auth?state=st-1", nil
}

// CompleteOAuth treats the code as the Google account's email.
func (f *fakeProvider) CompleteOAuth(ctx context.Context, code, state string) (string, error) {
	f.mu.Lock()
	req := f.oauthReq
	f.oauthReq = nil
	f.mu.Unlock()
	if req == nil || state != "st-1" {
		return "", identity.ErrInvalidOAuthState
	}

	f.book.mu.Lock()
	id, exists := f.book.byEmail[code]
	if !exists {
		id = identity.Identity{
			ID:       "g-" + strings.SplitN(code, "@", 2)[0],
			Email:    code,
			Metadata: identity.Metadata{identity.MetaName: "Google User"},
		}
		f.book.byEmail[code] = id
	}
	f.book.mu.Unlock()

	if !exists {
		if err := f.hook.OnIdentityCreated(ctx, id); err != nil {
			return req.RedirectTo, err
		}
	}
	f.start(id)
	return req.RedirectTo, nil
}

func (f *fakeProvider) SignUp(ctx context.Context, email, password string, metadata identity.Metadata) (*identity.Session, error) {
	f.book.mu.Lock()
	if _, exists := f.book.byEmail[email]; exists {
		f.book.mu.Unlock()
		return nil, identity.ErrEmailExists
	}
	id := identity.Identity{ID: "u-" + strings.SplitN(email, "@", 2)[0], Email: email, Metadata: metadata}
	f.book.byEmail[email] = id
	f.book.passwords[email] = password
	f.book.mu.Unlock()

	if err := f.hook.OnIdentityCreated(ctx, id); err != nil {
		return nil, err
	}
	return f.start(id), nil
}

func (f *fakeProvider) SignOut(context.Context) error {
	f.mu.Lock()
	f.session = nil
	f.mu.Unlock()
	f.events.Publish(identity.Event{Type: identity.SignedOut})
	return nil
}

func (f *fakeProvider) Subscribe(ctx context.Context) (*identity.Subscription, error) {
	return f.events.Subscribe(ctx), nil
}

// HandlerTestSuite drives the routes through the client session middleware.
type HandlerTestSuite struct {
	suite.Suite
	Router   *gin.Engine
	Registry *session.Registry
	Cfg      *config.Config
	sqlDB    interface{ Close() error }
}

func (s *HandlerTestSuite) SetupTest() {
	gin.SetMode(gin.TestMode)
	name := strings.NewReplacer("/", "_", " ", "_").Replace(s.T().Name())
	db, err := gorm.Open(sqlite.Open("file:"+name+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	s.Require().NoError(err)
	s.Require().NoError(db.AutoMigrate(&profile.Profile{}))
	sqlDB, err := db.DB()
	s.Require().NoError(err)
	sqlDB.SetMaxOpenConns(1)
	s.sqlDB = sqlDB

	log := zap.NewNop()
	repo := profile.NewGORMRepository(db)
	hook := profile.NewProvisioner(repo, log)
	book := &accountBook{passwords: map[string]string{}, byEmail: map[string]identity.Identity{}}

	s.Cfg = &config.Config{
		GinMode:           gin.TestMode,
		AppBaseURL:        testLanding,
		SessionCookieName: "dm_client",
		ClientIdleTimeout: time.Hour,
	}
	s.Registry = session.NewRegistry(func(string) identity.Provider {
		return &fakeProvider{book: book, hook: hook, events: identity.NewBroadcaster(log)}
	}, repo, testLanding, log)

	router := gin.New()
	router.Use(middleware.ZapLogger(log, s.Cfg))
	router.Use(middleware.ErrorHandler(log))
	v1 := router.Group("/api/v1")
	v1.Use(middleware.ClientSession(s.Registry, s.Cfg, log))
	NewHandler(s.Cfg, log).RegisterRoutes(v1)
	s.Router = router
}

func (s *HandlerTestSuite) TearDownTest() {
	s.Registry.Close()
	_ = s.sqlDB.Close()
}

func TestHandlerTestSuite(t *testing.T) {
	suite.Run(t, new(HandlerTestSuite))
}

type envelope struct {
	Status  string          `json:"status"`
	Code    string          `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (s *HandlerTestSuite) do(method, path string, body interface{}, cookies []*http.Cookie) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		s.Require().NoError(json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	s.Router.ServeHTTP(rec, req)
	return rec
}

func (s *HandlerTestSuite) decode(rec *httptest.ResponseRecorder) (envelope, session.Snapshot) {
	var env envelope
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &env))
	var snap session.Snapshot
	if len(env.Data) > 0 {
		s.Require().NoError(json.Unmarshal(env.Data, &snap))
	}
	return env, snap
}

// newClient opens a session and returns the issued client cookie.
func (s *HandlerTestSuite) newClient() []*http.Cookie {
	rec := s.do(http.MethodGet, "/api/v1/auth/session", nil, nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	cookies := rec.Result().Cookies()
	s.Require().Len(cookies, 1)
	s.Equal(s.Cfg.SessionCookieName, cookies[0].Name)
	s.True(cookies[0].HttpOnly)
	return cookies
}

func (s *HandlerTestSuite) register(cookies []*http.Cookie, email, role string) *httptest.ResponseRecorder {
	return s.do(http.MethodPost, "/api/v1/auth/register", RegisterRequest{Email: email, Password: "secret123", Role: role}, cookies)
}

func (s *HandlerTestSuite) TestSession_NewClientIsSignedOut() {
	cookies := s.newClient()
	_, snap := s.decode(s.do(http.MethodGet, "/api/v1/auth/session", nil, cookies))
	s.Nil(snap.User)
	s.False(snap.Loading)
	s.Equal(1, s.Registry.Len(), "the cookie maps back to the same client")
}

func (s *HandlerTestSuite) TestSession_InvalidCookieIsReplaced() {
	rec := s.do(http.MethodGet, "/api/v1/auth/session", nil, []*http.Cookie{{Name: "dm_client", Value: "not-a-uuid"}})
	s.Equal(http.StatusOK, rec.Code)
	cookies := rec.Result().Cookies()
	s.Require().Len(cookies, 1)
	s.NotEqual("not-a-uuid", cookies[0].Value)
}

func (s *HandlerTestSuite) TestRegister_CreatesProfileAndSignsIn() {
	cookies := s.newClient()
	rec := s.register(cookies, "Food.Bank@Example.com", "receiver")
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())

	_, snap := s.decode(rec)
	s.Require().NotNil(snap.User)
	s.Equal("food.bank@example.com", snap.User.Email)
	s.Equal(profile.RoleReceiver, snap.User.Role)
	s.Equal("food.bank", snap.User.DisplayName)
	s.False(snap.User.ProfileComplete)

	_, again := s.decode(s.do(http.MethodGet, "/api/v1/auth/session", nil, cookies))
	s.Require().NotNil(again.User)
	s.Equal(snap.User.ID, again.User.ID)
}

func (s *HandlerTestSuite) TestRegister_RejectsAdminRole() {
	cookies := s.newClient()
	rec := s.register(cookies, "sneaky@example.com", "admin")
	s.Equal(http.StatusUnprocessableEntity, rec.Code)

	env, _ := s.decode(rec)
	s.Equal("VALIDATION_ERROR", env.Code)
	_, snap := s.decode(s.do(http.MethodGet, "/api/v1/auth/session", nil, cookies))
	s.Nil(snap.User)
	s.Equal("Role must be either donor or receiver.", snap.LastError)
}

func (s *HandlerTestSuite) TestRegister_MissingFields() {
	rec := s.do(http.MethodPost, "/api/v1/auth/register", map[string]string{"email": "a@b.com"}, s.newClient())
	s.Equal(http.StatusUnprocessableEntity, rec.Code)
}

func (s *HandlerTestSuite) TestLogin_LogoutRoundTrip() {
	first := s.newClient()
	s.Require().Equal(http.StatusCreated, s.register(first, "donor@example.com", "donor").Code)

	second := s.newClient()
	rec := s.do(http.MethodPost, "/api/v1/auth/login", LoginRequest{Email: "donor@example.com", Password: "wrong"}, second)
	s.Equal(http.StatusUnauthorized, rec.Code)

	rec = s.do(http.MethodPost, "/api/v1/auth/login", LoginRequest{Email: "donor@example.com", Password: "secret123"}, second)
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
	_, snap := s.decode(rec)
	s.Require().NotNil(snap.User)
	s.Equal(profile.RoleDonor, snap.User.Role)
	s.Empty(snap.LastError)

	rec = s.do(http.MethodPost, "/api/v1/auth/logout", nil, second)
	s.Equal(http.StatusOK, rec.Code)
	_, snap = s.decode(rec)
	s.Nil(snap.User)

	_, other := s.decode(s.do(http.MethodGet, "/api/v1/auth/session", nil, first))
	s.NotNil(other.User, "signing out one client leaves the others alone")
}

func (s *HandlerTestSuite) TestLogin_MalformedBody() {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader("{"))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Router.ServeHTTP(rec, req)
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *HandlerTestSuite) TestProfile_RequiresSignedInUser() {
	cookies := s.newClient()
	s.Equal(http.StatusUnauthorized, s.do(http.MethodGet, "/api/v1/profile", nil, cookies).Code)
	s.Equal(http.StatusUnauthorized, s.do(http.MethodPatch, "/api/v1/profile", map[string]string{"name": "X"}, cookies).Code)
}

func (s *HandlerTestSuite) TestProfile_UpdateMarksComplete() {
	cookies := s.newClient()
	s.Require().Equal(http.StatusCreated, s.register(cookies, "pantry@example.com", "receiver").Code)

	rec := s.do(http.MethodPatch, "/api/v1/profile", map[string]interface{}{
		"name":              "  Community Pantry ",
		"organization_name": "Pantry Org",
		"category":          "community_kitchen",
	}, cookies)
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
	_, snap := s.decode(rec)
	s.Require().NotNil(snap.User)
	s.Equal("Community Pantry", snap.User.DisplayName)
	s.True(snap.User.ProfileComplete)

	rec = s.do(http.MethodPatch, "/api/v1/profile", map[string]interface{}{"phone": "555"}, cookies)
	s.Equal(http.StatusUnprocessableEntity, rec.Code)

	_, fetched := s.decode(s.do(http.MethodGet, "/api/v1/profile", nil, cookies))
	s.Require().NotNil(fetched.User)
	s.Equal("Community Pantry", fetched.User.DisplayName)
}

func (s *HandlerTestSuite) TestGoogle_FullRedirectFlow() {
	cookies := s.newClient()
	rec := s.do(http.MethodPost, "/api/v1/auth/oauth/google", nil, cookies)
	s.Require().Equal(http.StatusOK, rec.Code)
	var env struct {
		Data GoogleLoginResponse `json:"data"`
	}
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &env))
	s.Contains(env.Data.URL, "accounts.google.test")

	rec = s.do(http.MethodGet, "/api/v1/auth/oauth/google/callback?code="+url.QueryEscape("grace@example.com")+"&state=st-1", nil, cookies)
	s.Equal(http.StatusFound, rec.Code)
	s.Equal(testLanding, rec.Header().Get("Location"))

	s.Eventually(func() bool {
		_, snap := s.decode(s.do(http.MethodGet, "/api/v1/auth/session", nil, cookies))
		return snap.User != nil && snap.User.Email == "grace@example.com" && !snap.Loading
	}, 2*time.Second, 10*time.Millisecond)

	_, snap := s.decode(s.do(http.MethodGet, "/api/v1/auth/session", nil, cookies))
	s.Equal("Google User", snap.User.DisplayName)
	s.Equal(profile.RoleDonor, snap.User.Role)
}

func (s *HandlerTestSuite) TestGoogle_CallbackFailuresRedirectWithError() {
	cookies := s.newClient()
	s.Require().Equal(http.StatusOK, s.do(http.MethodPost, "/api/v1/auth/oauth/google", nil, cookies).Code)

	rec := s.do(http.MethodGet, "/api/v1/auth/oauth/google/callback?error=access_denied", nil, cookies)
	s.Equal(http.StatusFound, rec.Code)
	loc, err := url.Parse(rec.Header().Get("Location"))
	s.Require().NoError(err)
	s.Equal("access_denied", loc.Query().Get("auth_error"))
	_, snap := s.decode(s.do(http.MethodGet, "/api/v1/auth/session", nil, cookies))
	s.False(snap.Loading)
	s.NotEmpty(snap.LastError)

	rec = s.do(http.MethodGet, "/api/v1/auth/oauth/google/callback?code=x@example.com&state=forged", nil, cookies)
	s.Equal(http.StatusFound, rec.Code)
	loc, err = url.Parse(rec.Header().Get("Location"))
	s.Require().NoError(err)
	s.Equal("BAD_REQUEST", loc.Query().Get("auth_error"))

	rec = s.do(http.MethodGet, "/api/v1/auth/oauth/google/callback", nil, cookies)
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *HandlerTestSuite) TestUnknownRoute() {
	rec := s.do(http.MethodGet, "/nope", nil, nil)
	s.Equal(http.StatusNotFound, rec.Code)
	s.NotEmpty(rec.Header().Get(middleware.RequestIDHeader))
}
