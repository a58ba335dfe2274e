package auth

import (
	"errors"
	"net/http"
	"net/url"

	"donation_match_backend/internal/common"
	"donation_match_backend/internal/config"
	"donation_match_backend/internal/middleware"
	"donation_match_backend/internal/profile"
	"donation_match_backend/internal/session"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// Handler exposes the client's session operations over HTTP. Every route
// expects middleware.ClientSession to have resolved the calling client.
type Handler struct {
	landingURL string
	logger     *zap.Logger
}

// NewHandler creates a new auth handler.
func NewHandler(cfg *config.Config, logger *zap.Logger) *Handler {
	return &Handler{
		landingURL: cfg.AppBaseURL,
		logger:     logger.Named("auth_handler"),
	}
}

// RegisterRoutes sets up the session and profile routes.
func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	authGroup := router.Group("/auth")
	{
		authGroup.GET("/session", h.currentSession)
		authGroup.POST("/login", h.login)
		authGroup.POST("/register", h.register)
		authGroup.POST("/logout", h.logout)
		authGroup.POST("/oauth/google", h.googleLogin)
		authGroup.GET("/oauth/google/callback", h.googleCallback)
	}

	profileGroup := router.Group("/profile")
	{
		profileGroup.GET("", h.getProfile)
		profileGroup.PATCH("", h.updateProfile)
	}
}

func (h *Handler) currentSession(c *gin.Context) {
	s, ok := h.synchronizer(c)
	if !ok {
		return
	}
	common.RespondOK(c, "", s.Snapshot())
}

func (h *Handler) login(c *gin.Context) {
	var req LoginRequest
	if !h.bindJSON(c, &req, "Login") {
		return
	}
	s, ok := h.synchronizer(c)
	if !ok {
		return
	}

	if err := s.Login(c.Request.Context(), req.Email, req.Password); err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondOK(c, "Login successful.", s.Snapshot())
}

func (h *Handler) register(c *gin.Context) {
	var req RegisterRequest
	if !h.bindJSON(c, &req, "Register") {
		return
	}
	s, ok := h.synchronizer(c)
	if !ok {
		return
	}

	if err := s.Register(c.Request.Context(), req.Email, req.Password, profile.Role(req.Role)); err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondCreated(c, "Registration successful.", s.Snapshot())
}

func (h *Handler) logout(c *gin.Context) {
	s, ok := h.synchronizer(c)
	if !ok {
		return
	}
	s.Logout(c.Request.Context())
	common.RespondOK(c, "Logged out.", s.Snapshot())
}

func (h *Handler) googleLogin(c *gin.Context) {
	s, ok := h.synchronizer(c)
	if !ok {
		return
	}
	authURL, err := s.LoginWithGoogle(c.Request.Context())
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondOK(c, "Continue sign-in with Google.", GoogleLoginResponse{URL: authURL})
}

// googleCallback finishes the redirect flow and sends the browser back to the
// app. Failures are reported to the app through the auth_error query parameter.
func (h *Handler) googleCallback(c *gin.Context) {
	s, ok := h.synchronizer(c)
	if !ok {
		return
	}

	if errorParam := c.Query("error"); errorParam != "" {
		h.logger.Warn("Google OAuth callback error",
			zap.String("error", errorParam),
			zap.String("description", c.Query("error_description")))
		s.CancelGoogleLogin(errorParam)
		c.Redirect(http.StatusFound, h.landingWithError(h.landingURL, errorParam))
		return
	}

	code, state := c.Query("code"), c.Query("state")
	if code == "" || state == "" {
		h.logger.Warn("Google callback missing code or state")
		common.RespondWithError(c, common.ErrBadRequest.WithDetails("Missing authorization code or state from Google."))
		return
	}

	landing, err := s.CompleteGoogleLogin(c.Request.Context(), code, state)
	if landing == "" {
		landing = h.landingURL
	}
	if err != nil {
		var apiErr *common.APIError
		errCode := "sign_in_failed"
		if errors.As(err, &apiErr) {
			errCode = apiErr.Code
		}
		c.Redirect(http.StatusFound, h.landingWithError(landing, errCode))
		return
	}
	c.Redirect(http.StatusFound, landing)
}

func (h *Handler) getProfile(c *gin.Context) {
	s, ok := h.synchronizer(c)
	if !ok {
		return
	}
	current := s.CurrentUser()
	if current == nil {
		common.RespondWithError(c, common.ErrUnauthorized.WithDetails("Sign in to view your profile."))
		return
	}
	s.FetchProfile(c.Request.Context(), current.ID)
	common.RespondOK(c, "", s.Snapshot())
}

func (h *Handler) updateProfile(c *gin.Context) {
	var req profile.Update
	if !h.bindJSON(c, &req, "Update profile") {
		return
	}
	s, ok := h.synchronizer(c)
	if !ok {
		return
	}
	if s.CurrentUser() == nil {
		common.RespondWithError(c, common.ErrUnauthorized.WithDetails("Sign in to edit your profile."))
		return
	}

	if err := s.UpdateProfile(c.Request.Context(), req); err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondOK(c, "Profile updated.", s.Snapshot())
}

func (h *Handler) synchronizer(c *gin.Context) (*session.Synchronizer, bool) {
	client, ok := middleware.ClientFromContext(c)
	if !ok {
		h.logger.Error("Client session missing from request context", zap.String("path", c.Request.URL.Path))
		common.RespondWithError(c, common.ErrInternalServer)
		return nil, false
	}
	return client.Synchronizer, true
}

func (h *Handler) bindJSON(c *gin.Context, req interface{}, op string) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		h.logger.Warn(op+": Invalid request body", zap.Error(err))
		var ve validator.ValidationErrors
		if errors.As(err, &ve) {
			common.RespondWithError(c, common.NewValidationAPIError(common.FormatValidationErrors(ve)))
			return false
		}
		common.RespondWithError(c, common.ErrBadRequest.WithDetails(err.Error()))
		return false
	}
	return true
}

func (h *Handler) landingWithError(landing, code string) string {
	u, err := url.Parse(landing)
	if err != nil {
		return h.landingURL
	}
	q := u.Query()
	q.Set("auth_error", code)
	u.RawQuery = q.Encode()
	return u.String()
}
