package auth

import (
	"errors"

	"github.com/samber/oops"
)

// MaxUsernameLen caps usernames chosen at registration or profile update.
const MaxUsernameLen = 50

var (
	ErrMissingFields   = errors.New("missing required fields")
	ErrMissingAddress  = errors.New("wallet address is required")
	ErrInvalidAddress  = errors.New("invalid wallet address")
	ErrEmptyPassword   = errors.New("password cannot be empty")
	ErrPasswordTooLong = errors.New("password exceeds 72 bytes")
	ErrUsernameTaken   = errors.New("username already exists")
	ErrUsernameTooLong = errors.New("username is too long")
	ErrUserNotFound    = errors.New("user not found")
	ErrInvalidPassword = errors.New("invalid password")

	ErrSignatureInvalid = errors.New("signature verification failed")

	ErrTokenInvalid = errors.New("token invalid")
	ErrTokenExpired = errors.New("token expired")
	ErrNoCredential = errors.New("no token provided")

	ErrMissingSecret = errors.New("token signing secret is not configured")

	ErrWalletUsernameImmutable = errors.New("wallet accounts cannot change username")
)

// Kind classifies an error for callers that need to pick a response shape.
type Kind string

const (
	KindValidation        Kind = "validation"
	KindNotFound          Kind = "not_found"
	KindInvalidCredential Kind = "invalid_credential"
	KindTokenInvalid      Kind = "token_invalid"
	KindTokenExpired      Kind = "token_expired"
	KindNoCredential      Kind = "no_credential"
	KindConfig            Kind = "config"
	KindConflict          Kind = "conflict"
	KindInternal          Kind = "internal"
)

func KindOf(err error) Kind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrMissingFields), errors.Is(err, ErrMissingAddress),
		errors.Is(err, ErrInvalidAddress), errors.Is(err, ErrEmptyPassword), errors.Is(err, ErrPasswordTooLong),
		errors.Is(err, ErrUsernameTooLong), errors.Is(err, ErrWalletUsernameImmutable):
		return KindValidation
	case errors.Is(err, ErrUserNotFound):
		return KindNotFound
	case errors.Is(err, ErrInvalidPassword), errors.Is(err, ErrSignatureInvalid):
		return KindInvalidCredential
	case errors.Is(err, ErrTokenExpired):
		return KindTokenExpired
	case errors.Is(err, ErrTokenInvalid):
		return KindTokenInvalid
	case errors.Is(err, ErrNoCredential):
		return KindNoCredential
	case errors.Is(err, ErrMissingSecret):
		return KindConfig
	case errors.Is(err, ErrUsernameTaken):
		return KindConflict
	}
	return KindInternal
}

// internalError wraps an infrastructure failure with an oops code and the
// operation that failed.
func internalError(code, operation string, err error) error {
	return oops.Code(code).With("operation", operation).Wrap(err)
}
