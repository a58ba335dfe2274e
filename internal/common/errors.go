// File: internal/common/errors.go
package common

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
)

// APIError represents a standard structure for API errors.
// Message is safe to show to end users; Details carries extra context.
type APIError struct {
	StatusCode int         `json:"-"`
	Code       string      `json:"code"`
	Message    string      `json:"message"`
	Details    interface{} `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("APIError: StatusCode=%d, Code=%s, Message=%s", e.StatusCode, e.Code, e.Message)
}

// Is matches any APIError carrying the same code, so errors.Is(err, ErrNotFound)
// holds for copies produced by WithDetails.
func (e *APIError) Is(target error) bool {
	t, ok := target.(*APIError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

func NewAPIError(statusCode int, code, message string) *APIError {
	return &APIError{StatusCode: statusCode, Code: code, Message: message}
}

// WithDetails returns a copy of the error with details attached. The
// package-level sentinels are never mutated.
func (e *APIError) WithDetails(details interface{}) *APIError {
	cp := *e
	cp.Details = details
	return &cp
}

// WithMessage returns a copy of the error with a different user-facing message.
func (e *APIError) WithMessage(message string) *APIError {
	cp := *e
	cp.Message = message
	return &cp
}

var (
	ErrBadRequest          = NewAPIError(http.StatusBadRequest, "BAD_REQUEST", "The request is invalid.")
	ErrUnauthorized        = NewAPIError(http.StatusUnauthorized, "UNAUTHORIZED", "Authentication is required and has failed or has not yet been provided.")
	ErrForbidden           = NewAPIError(http.StatusForbidden, "FORBIDDEN", "You do not have permission to access this resource.")
	ErrNotFound            = NewAPIError(http.StatusNotFound, "NOT_FOUND", "The requested resource could not be found.")
	ErrConflict            = NewAPIError(http.StatusConflict, "CONFLICT", "A conflict occurred with the current state of the resource.")
	ErrValidation          = NewAPIError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Input validation failed.")
	ErrUnprocessableEntity = NewAPIError(http.StatusUnprocessableEntity, "UNPROCESSABLE_ENTITY", "The request was well-formed but was unable to be followed due to semantic errors.")
	ErrInternalServer      = NewAPIError(http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "An unexpected error occurred on the server.")
	ErrServiceUnavailable  = NewAPIError(http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "The service is temporarily unavailable. Please try again.")
)

func IsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// UserMessage returns the user-facing message for err. Anything that is not an
// APIError is reported with the generic internal error message.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	if apiErr, ok := IsAPIError(err); ok {
		return apiErr.Message
	}
	return ErrInternalServer.Message
}

func NewValidationAPIError(details interface{}) *APIError {
	return ErrValidation.WithDetails(details)
}

// FormatValidationErrors converts validator.ValidationErrors into a map.
func FormatValidationErrors(errs validator.ValidationErrors) map[string]string {
	errorMap := make(map[string]string)
	for _, e := range errs {
		field := e.Field()
		var message string
		switch e.Tag() {
		case "required":
			message = fmt.Sprintf("The %s field is required.", strings.ToLower(field))
		case "email":
			message = fmt.Sprintf("The %s field must be a valid email address.", strings.ToLower(field))
		case "min":
			message = fmt.Sprintf("The %s field must be at least %s characters long.", strings.ToLower(field), e.Param())
		case "max":
			message = fmt.Sprintf("The %s field may not be greater than %s characters.", strings.ToLower(field), e.Param())
		case "oneof":
			message = fmt.Sprintf("The %s field must be one of the following values: %s.", strings.ToLower(field), e.Param())
		case "url":
			message = fmt.Sprintf("The %s field must be a valid URL.", strings.ToLower(field))
		case "e164":
			message = fmt.Sprintf("The %s field must be a phone number in international format.", strings.ToLower(field))
		case "latitude":
			message = fmt.Sprintf("The %s field must be a valid latitude.", strings.ToLower(field))
		case "longitude":
			message = fmt.Sprintf("The %s field must be a valid longitude.", strings.ToLower(field))
		default:
			message = fmt.Sprintf("Field validation for '%s' failed on the '%s' tag.", field, e.Tag())
		}
		errorMap[field] = message
	}
	return errorMap
}
