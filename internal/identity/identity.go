// Package identity describes the authentication identities and sessions issued
// by the external identity provider, and the contract the rest of the
// application uses to talk to it.
package identity

import (
	"strings"
	"time"
)

// Well-known metadata keys supplied at signup or by an OAuth provider.
const (
	MetaFullName  = "full_name"
	MetaName      = "name"
	MetaAvatarURL = "avatar_url"
	MetaPicture   = "picture"
	MetaRole      = "role"
)

// Metadata is provider-supplied, caller-controlled data attached to an identity.
// Nothing in it is trusted without validation.
type Metadata map[string]interface{}

func (m Metadata) str(keys ...string) string {
	for _, k := range keys {
		if v, ok := m[k].(string); ok {
			if v = strings.TrimSpace(v); v != "" {
				return v
			}
		}
	}
	return ""
}

// FullName returns the display name the provider or the user supplied, if any.
func (m Metadata) FullName() string { return m.str(MetaFullName, MetaName) }

// AvatarURL returns the picture URL supplied by the provider, if any.
func (m Metadata) AvatarURL() string { return m.str(MetaAvatarURL, MetaPicture) }

// RequestedRole returns the raw role the signup asked for. Callers validate it.
func (m Metadata) RequestedRole() string { return strings.ToLower(m.str(MetaRole)) }

// Identity is a provider-managed authentication record.
type Identity struct {
	ID               string     `json:"id"`
	Email            string     `json:"email"`
	EmailConfirmedAt *time.Time `json:"email_confirmed_at,omitempty"`
	Metadata         Metadata   `json:"metadata,omitempty"`
}

// EmailConfirmed reports whether the provider has confirmed the address.
func (i Identity) EmailConfirmed() bool {
	return i.EmailConfirmedAt != nil && !i.EmailConfirmedAt.IsZero()
}

// Session is an authenticated provider session.
type Session struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	ExpiresAt    time.Time `json:"expires_at"`
	Identity     Identity  `json:"identity"`
}

// Expired reports whether the session is past its expiry at now.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// EventType enumerates session lifecycle notifications.
type EventType string

const (
	SignedIn  EventType = "SIGNED_IN"
	SignedOut EventType = "SIGNED_OUT"
)

// Event is a session lifecycle notification. Session is set for SignedIn only.
type Event struct {
	Type    EventType
	Session *Session
}
