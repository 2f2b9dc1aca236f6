package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// User is a registered account. PasswordHash is nil for social-only accounts.
type User struct {
	ID               snowflake.ID `gorm:"primaryKey" json:"-"`
	AccountID        string       `gorm:"type:varchar(36);uniqueIndex" json:"account_id"`
	Username         string       `gorm:"type:varchar(32);uniqueIndex" json:"username"`
	Email            string       `gorm:"type:varchar(255);uniqueIndex" json:"email"`
	PasswordHash     *string      `gorm:"type:varchar(255)" json:"-"`
	EmailVerified    bool         `json:"email_verified"`
	VerificationCode *string      `gorm:"type:varchar(16)" json:"-"`
	CreatedAt        time.Time    `json:"created_at"`
	UpdatedAt        time.Time    `json:"updated_at"`
}

func (User) TableName() string { return "users" }

// UserProvider links a user to an external identity provider account.
type UserProvider struct {
	ID                snowflake.ID `gorm:"primaryKey" json:"-"`
	Provider          string       `gorm:"type:varchar(32);uniqueIndex:idx_provider_account;uniqueIndex:idx_user_provider" json:"provider"`
	ProviderAccountID string       `gorm:"type:varchar(255);uniqueIndex:idx_provider_account" json:"provider_account_id"`
	UserID            snowflake.ID `gorm:"uniqueIndex:idx_user_provider" json:"-"`
	Email             string       `gorm:"type:varchar(255)" json:"email"`
	CreatedAt         time.Time    `json:"created_at"`
}

func (UserProvider) TableName() string { return "user_providers" }

// Session is a browser session. Only the SHA-256 hash of the cookie token is
// stored.
type Session struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"-"`
	UserID    snowflake.ID `gorm:"index" json:"-"`
	TokenHash string       `gorm:"type:varchar(64);uniqueIndex" json:"-"`
	UserAgent string       `gorm:"type:varchar(512)" json:"user_agent"`
	IPAddress string       `gorm:"type:varchar(64)" json:"ip_address"`
	ExpiresAt time.Time    `json:"expires_at"`
	CreatedAt time.Time    `json:"created_at"`
}

func (Session) TableName() string { return "sessions" }
