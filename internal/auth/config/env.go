package config

import (
	"os"
	"strings"
)

// LoadRegistry reads provider credentials from the environment. Endpoint
// URLs default to the public provider endpoints and can be overridden.
func LoadRegistry() *Registry {
	google := Provider{
		Name:         "google",
		ClientID:     env("AUTH_GOOGLE_CLIENT_ID"),
		ClientSecret: env("AUTH_GOOGLE_CLIENT_SECRET"),
		AuthURL:      envDefault("AUTH_GOOGLE_AUTH_URL", "https://accounts.google.com/o/oauth2/v2/auth"),
		TokenURL:     envDefault("AUTH_GOOGLE_TOKEN_URL", "https://oauth2.googleapis.com/token"),
		UserInfoURL:  envDefault("AUTH_GOOGLE_USERINFO_URL", "https://www.googleapis.com/oauth2/v3/userinfo"),
		Scopes:       []string{"openid", "email", "profile"},
	}

	discord := Provider{
		Name:         "discord",
		ClientID:     env("AUTH_DISCORD_CLIENT_ID"),
		ClientSecret: env("AUTH_DISCORD_CLIENT_SECRET"),
		AuthURL:      envDefault("AUTH_DISCORD_AUTH_URL", "https://discord.com/oauth2/authorize"),
		TokenURL:     envDefault("AUTH_DISCORD_TOKEN_URL", "https://discord.com/api/oauth2/token"),
		UserInfoURL:  envDefault("AUTH_DISCORD_USERINFO_URL", "https://discord.com/api/v10/users/@me"),
		Scopes:       []string{"identify", "email"},
	}

	return NewRegistry(google, discord)
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func envDefault(key, def string) string {
	if value := env(key); value != "" {
		return value
	}
	return def
}
