package server

import (
	"errors"

	authdomain "github.com/dreamland-studio/dreamland/internal/auth/domain"
	"github.com/dreamland-studio/dreamland/internal/oauth2provider"
)

// classifyError buckets handler errors for request logs.
func classifyError(err error) (string, string) {
	switch {
	case err == nil:
		return "", ""
	case errors.Is(err, oauth2provider.ErrInvalidRequest):
		return "oauth", "invalid_request"
	case errors.Is(err, oauth2provider.ErrInvalidClient):
		return "oauth", "invalid_client"
	case errors.Is(err, oauth2provider.ErrInvalidGrant):
		return "oauth", "invalid_grant"
	case errors.Is(err, oauth2provider.ErrInvalidRedirectURI):
		return "oauth", "invalid_redirect"
	case errors.Is(err, oauth2provider.ErrUnsupportedGrantType):
		return "oauth", "unsupported_grant_type"
	case errors.Is(err, oauth2provider.ErrInvalidToken):
		return "oauth", "invalid_token"
	case errors.Is(err, authdomain.ErrInvalidCredentials),
		errors.Is(err, authdomain.ErrInvalidSession):
		return "auth", "unauthenticated"
	case errors.Is(err, authdomain.ErrEmailNotVerified),
		errors.Is(err, authdomain.ErrPasswordLoginUnavailable):
		return "auth", "forbidden"
	case errors.Is(err, authdomain.ErrUserExists):
		return "auth", "conflict"
	default:
		return "internal", "error"
	}
}
