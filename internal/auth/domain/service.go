package domain

import "context"

// RegisterRequest creates a new account. Password is empty for accounts
// staged from a social callback, in which case Provider carries the link to
// create atomically with the user row.
type RegisterRequest struct {
	Username string
	Email    string
	Password string

	Provider *ProviderLinkRequest
}

// ProviderLinkRequest attaches an external identity during registration.
type ProviderLinkRequest struct {
	Provider          string
	ProviderAccountID string
	Email             string
	EmailVerified     bool
}

// LoginRequest authenticates by username or email.
type LoginRequest struct {
	Identifier string
	Password   string
}

// SessionMeta carries request attributes recorded on new sessions.
type SessionMeta struct {
	UserAgent string
	IPAddress string
}

// SessionResult is a freshly minted session. Token is the raw cookie value
// and is never stored.
type SessionResult struct {
	Token   string
	Session *Session
	User    *User
}

// Service exposes account and session operations.
type Service interface {
	Register(ctx context.Context, req RegisterRequest) (*User, error)
	Login(ctx context.Context, req LoginRequest) (*User, error)
	VerifyEmail(ctx context.Context, email, code string) (*User, error)

	CreateSession(ctx context.Context, user *User, meta SessionMeta) (*SessionResult, error)
	// Authenticate resolves the session behind a raw cookie token. Expired
	// sessions are deleted on sight.
	Authenticate(ctx context.Context, token string) (*User, *Session, error)
	// Logout deletes the session behind token. Unknown tokens are a no-op.
	Logout(ctx context.Context, token string) error
}
