package oauth2provider

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Client is a registered OAuth client. SecretHash is the SHA-256 of the raw
// secret, which is shown once at creation.
type Client struct {
	ID           string       `gorm:"primaryKey;type:varchar(64)" json:"client_id"`
	Name         string       `gorm:"type:varchar(255)" json:"name"`
	SecretHash   string       `gorm:"type:varchar(64)" json:"-"`
	RedirectURIs []string     `gorm:"serializer:json" json:"redirect_uris"`
	Scopes       string       `gorm:"type:varchar(512)" json:"scopes"`
	IsActive     bool         `json:"is_active"`
	CreatedAt    time.Time    `json:"created_at"`
}

func (Client) TableName() string { return "oauth_clients" }

// AuthorizationCode is a single-use grant. Keyed by the hash of the raw code.
type AuthorizationCode struct {
	CodeHash    string       `gorm:"primaryKey;type:varchar(64)"`
	UserID      snowflake.ID `gorm:"index"`
	ClientID    string       `gorm:"type:varchar(64);index"`
	RedirectURI string       `gorm:"type:varchar(2048)"`
	Scope       string       `gorm:"type:varchar(512)"`
	ExpiresAt   time.Time
	UsedAt      *time.Time
	CreatedAt   time.Time
}

func (AuthorizationCode) TableName() string { return "oauth_authorization_codes" }

// AccessToken holds one access/refresh pair, keyed by token hashes.
type AccessToken struct {
	TokenHash        string       `gorm:"primaryKey;type:varchar(64)"`
	UserID           snowflake.ID `gorm:"index"`
	ClientID         string       `gorm:"type:varchar(64);index"`
	Scope            string       `gorm:"type:varchar(512)"`
	ExpiresAt        time.Time
	RefreshTokenHash string `gorm:"type:varchar(64);uniqueIndex"`
	RefreshExpiresAt time.Time
	CreatedAt        time.Time
}

func (AccessToken) TableName() string { return "oauth_access_tokens" }
