package middleware

import (
	"net/http"

	"donation_match_backend/internal/common"
	"donation_match_backend/internal/config"
	"donation_match_backend/internal/session"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// clientCookieMaxAge keeps the client id for 30 days; the stored provider
// session decides whether the client is still signed in.
const clientCookieMaxAge = 30 * 24 * 60 * 60

// ClientSession identifies the browser by its client cookie, issuing one when
// missing, and attaches that client's session to the context.
func ClientSession(registry *session.Registry, cfg *config.Config, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		clientID, err := c.Cookie(cfg.SessionCookieName)
		if err != nil || !validClientID(clientID) {
			clientID = uuid.NewString()
		}
		// Lax so the cookie rides along on the OAuth provider's redirect back.
		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(cfg.SessionCookieName, clientID, clientCookieMaxAge, "/", "", cfg.SessionCookieSecure, true)

		client, err := registry.Get(c.Request.Context(), clientID)
		if err != nil {
			logger.Error("Failed to resolve client session", zap.String("client_id", clientID), zap.Error(err))
			common.RespondWithError(c, common.ErrServiceUnavailable)
			return
		}

		c.Set(common.ClientIDKey, clientID)
		c.Set(common.ClientSessionKey, client)
		c.Next()
	}
}

// ClientFromContext returns the client attached by ClientSession.
func ClientFromContext(c *gin.Context) (*session.Client, bool) {
	v, ok := c.Get(common.ClientSessionKey)
	if !ok {
		return nil, false
	}
	client, ok := v.(*session.Client)
	return client, ok
}

func validClientID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
