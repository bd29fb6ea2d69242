package util

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5"
)

// Stable machine-readable error codes surfaced to callers. Codes group into
// the taxonomy: validation, authentication, authorization, not-found and
// conflict; everything else maps to INTERNAL_ERROR.
const (
	CodeValidationFailed         = "VALIDATION_FAILED"
	CodeWeakPassword             = "WEAK_PASSWORD"
	CodeInvalidResetToken        = "INVALID_OR_EXPIRED_TOKEN"
	CodeInvalidCredentials       = "INVALID_CREDENTIALS"
	CodeUnauthorized             = "UNAUTHORIZED"
	CodeIncorrectCurrentPassword = "INCORRECT_CURRENT_PASSWORD"
	CodeForbidden                = "FORBIDDEN"
	CodeNotFound                 = "NOT_FOUND"
	CodeConflict                 = "CONFLICT"
	CodeTicketClosed             = "TICKET_CLOSED"
	CodePasswordReuse            = "PASSWORD_REUSE"
	CodeSelfDemotionForbidden    = "SELF_DEMOTION_FORBIDDEN"
	CodeInternalError            = "INTERNAL_ERROR"
)

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError(CodeValidationFailed, message, http.StatusBadRequest, details)
}

func NewWeakPassword(minLength int) error {
	return NewDomainError(CodeWeakPassword,
		fmt.Sprintf("password must be at least %d characters", minLength),
		http.StatusBadRequest, nil)
}

func NewInvalidResetToken() error {
	return NewDomainError(CodeInvalidResetToken, "invalid or expired reset token", http.StatusBadRequest, nil)
}

// NewInvalidCredentials is returned for both unknown accounts and wrong
// passwords so a caller cannot probe which emails exist.
func NewInvalidCredentials() error {
	return NewDomainError(CodeInvalidCredentials, "invalid credentials", http.StatusUnauthorized, nil)
}

func NewUnauthorized(message string) error {
	return NewDomainError(CodeUnauthorized, message, http.StatusUnauthorized, nil)
}

func NewIncorrectCurrentPassword() error {
	return NewDomainError(CodeIncorrectCurrentPassword, "current password is incorrect", http.StatusBadRequest, nil)
}

func NewForbidden(message string) error {
	return NewDomainError(CodeForbidden, message, http.StatusForbidden, nil)
}

func NewNotFound(resource string) error {
	return NewDomainError(CodeNotFound, fmt.Sprintf("%s not found", resource), http.StatusNotFound, nil)
}

func NewConflict(message string, details map[string]any) error {
	return NewDomainError(CodeConflict, message, http.StatusConflict, details)
}

func NewTicketClosed() error {
	return NewDomainError(CodeTicketClosed, "ticket is closed", http.StatusConflict, nil)
}

func NewPasswordReuse() error {
	return NewDomainError(CodePasswordReuse, "new password must differ from the current password", http.StatusConflict, nil)
}

func NewSelfDemotionForbidden() error {
	return NewDomainError(CodeSelfDemotionForbidden, "admins cannot revoke their own admin role", http.StatusConflict, nil)
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       CodeInternalError,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// ToDomainError converts generic errors to DomainError. Bare pgx row misses
// become NOT_FOUND; anything unrecognized is an internal error.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return NewNotFound("resource").(*DomainError)
	}
	return NewInternalError(err).(*DomainError)
}

// HasCode reports whether err carries the given domain error code.
func HasCode(err error, code string) bool {
	var domainErr *DomainError
	return errors.As(err, &domainErr) && domainErr.Code == code
}
