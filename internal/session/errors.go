package session

import (
	"errors"

	"donation_match_backend/internal/common"
	"donation_match_backend/internal/identity"
)

// ErrRoleNotAllowed is returned when registration asks for a role users cannot pick.
var ErrRoleNotAllowed = common.ErrValidation.WithMessage("Role must be either donor or receiver.")

// UserError converts err into the APIError whose message is shown to the user.
func UserError(err error) *common.APIError {
	if apiErr, ok := common.IsAPIError(err); ok {
		return apiErr
	}
	switch {
	case errors.Is(err, identity.ErrInvalidCredentials):
		return common.ErrUnauthorized.WithMessage("Invalid email or password.")
	case errors.Is(err, identity.ErrEmailExists):
		return common.ErrValidation.WithMessage("An account with this email already exists.")
	case errors.Is(err, identity.ErrWeakPassword):
		return common.ErrValidation.WithMessage("Password must be at least 6 characters long.")
	case errors.Is(err, identity.ErrInvalidOAuthState):
		return common.ErrBadRequest.WithMessage("The sign-in attempt expired or was not recognised. Please try again.")
	case errors.Is(err, identity.ErrUnsupportedOAuth):
		return common.ErrBadRequest.WithMessage("This sign-in method is not available.")
	case errors.Is(err, identity.ErrUnavailable):
		return common.ErrServiceUnavailable
	}
	return common.ErrInternalServer
}
