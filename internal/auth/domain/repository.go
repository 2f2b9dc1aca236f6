package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
)

// Repository persists users and their provider links.
type Repository interface {
	CreateUser(ctx context.Context, user *User) error
	UserByID(ctx context.Context, id snowflake.ID) (*User, error)
	UserByEmail(ctx context.Context, email string) (*User, error)
	UserByUsername(ctx context.Context, username string) (*User, error)
	// UserByIdentifier resolves a login identifier as username or email.
	UserByIdentifier(ctx context.Context, identifier string) (*User, error)
	UpdateUserFields(ctx context.Context, id snowflake.ID, fields map[string]interface{}) error
	DeleteUser(ctx context.Context, id snowflake.ID) error

	ProviderLink(ctx context.Context, provider, providerAccountID string) (*UserProvider, error)
	CreateProviderLink(ctx context.Context, link *UserProvider) error

	// Transaction runs fn against a transactional repository. A returned
	// error rolls the transaction back.
	Transaction(ctx context.Context, fn func(Repository) error) error
}

// SessionRepository persists browser sessions.
type SessionRepository interface {
	CreateSession(ctx context.Context, session *Session) error
	SessionByTokenHash(ctx context.Context, tokenHash string) (*Session, error)
	DeleteSessionByTokenHash(ctx context.Context, tokenHash string) error
	DeleteSessionByID(ctx context.Context, id snowflake.ID) error
}
