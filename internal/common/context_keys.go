// File: internal/common/context_keys.go
package common

const (
	// ClientIDKey is the gin context key holding the opaque client session id.
	ClientIDKey = "clientID"
	// ClientSessionKey is the gin context key holding the resolved *session.Client.
	ClientSessionKey = "clientSession"
	// LoggerKey is the gin context key for a request-scoped *zap.Logger.
	LoggerKey = "logger"
)
