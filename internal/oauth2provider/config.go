package oauth2provider

import "time"

// Config holds token lifetimes.
type Config struct {
	CodeTTL    time.Duration
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// DefaultConfig returns the standard lifetimes.
func DefaultConfig() Config {
	return Config{
		CodeTTL:    5 * time.Minute,
		AccessTTL:  time.Hour,
		RefreshTTL: 30 * 24 * time.Hour,
	}
}
