package firebase

import (
	"errors"
	"fmt"
	"strings"

	"donation_match_backend/internal/identity"

	"google.golang.org/api/googleapi"
)

// classifySignInError maps Identity Toolkit error codes onto identity errors.
// Firebase reports the reason as the leading word of the message, e.g.
// "WEAK_PASSWORD : Password should be at least 6 characters".
func classifySignInError(err error) error {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return fmt.Errorf("%w: %w", identity.ErrUnavailable, err)
	}

	reasons := []string{gerr.Message}
	for _, item := range gerr.Errors {
		reasons = append(reasons, item.Message, item.Reason)
	}
	for _, r := range reasons {
		code := strings.TrimSpace(strings.SplitN(r, ":", 2)[0])
		switch code {
		case "INVALID_PASSWORD", "EMAIL_NOT_FOUND", "INVALID_LOGIN_CREDENTIALS", "INVALID_EMAIL", "USER_DISABLED":
			return fmt.Errorf("%w: %s", identity.ErrInvalidCredentials, code)
		case "EMAIL_EXISTS":
			return fmt.Errorf("%w: %s", identity.ErrEmailExists, code)
		case "WEAK_PASSWORD":
			return fmt.Errorf("%w: %s", identity.ErrWeakPassword, code)
		case "INVALID_IDP_RESPONSE", "INVALID_ID_TOKEN":
			return fmt.Errorf("%w: %s", identity.ErrInvalidOAuthState, code)
		}
	}
	return fmt.Errorf("%w: %w", identity.ErrUnavailable, err)
}
