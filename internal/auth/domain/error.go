package domain

import "errors"

var (
	ErrInvalidUsername = errors.New("username must be 3-32 chars of letters, digits, underscore, dash or dot")
	ErrInvalidEmail    = errors.New("invalid email address")
	ErrInvalidPassword = errors.New("password must be at least 8 characters")

	ErrInvalidCredentials       = errors.New("invalid credentials")
	ErrEmailNotVerified         = errors.New("email not verified")
	ErrPasswordLoginUnavailable = errors.New("password login unavailable")
	ErrUserNotFound             = errors.New("user not found")
	ErrUserExists               = errors.New("user already exists")
	ErrSessionNotFound          = errors.New("session not found")
	ErrProviderLinkNotFound     = errors.New("provider link not found")
	ErrInvalidSession           = errors.New("invalid session")
	ErrInvalidVerification      = errors.New("invalid verification code")

	// Social identity resolution.
	ErrEmailMissing         = errors.New("provider returned no email")
	ErrRegistrationRequired = errors.New("registration required")
)
