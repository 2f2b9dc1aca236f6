package oauth2provider

import "errors"

// Sentinel errors mirror the OAuth error vocabulary returned on the wire.
var (
	ErrInvalidRequest       = errors.New("invalid_request")
	ErrInvalidClient        = errors.New("invalid_client")
	ErrInvalidRedirectURI   = errors.New("invalid_redirect")
	ErrInvalidGrant         = errors.New("invalid_grant")
	ErrUnsupportedGrantType = errors.New("unsupported_grant_type")
	ErrInvalidToken         = errors.New("invalid_token")
	ErrAccessDenied         = errors.New("access_denied")
)
