package oauth2provider

import (
	"net/url"
	"strings"
)

// IsRedirectURIAllowed reports whether candidate matches one of the client's
// registered redirect URIs. Both sides are normalized before an exact string
// comparison; no wildcard or prefix matching.
func IsRedirectURIAllowed(client *Client, candidate string) bool {
	normalized := normalizeRedirectURI(candidate)
	for _, registered := range client.RedirectURIs {
		if normalizeRedirectURI(registered) == normalized {
			return true
		}
	}
	return false
}

// normalizeRedirectURI keeps scheme, host, path and query, drops the
// fragment, and strips a trailing slash unless the path is exactly "/".
// A host-only URI has an empty path and is equivalent to its "/" form.
// Unparseable values fall back to trimmed-string comparison.
func normalizeRedirectURI(raw string) string {
	raw = strings.TrimSpace(raw)
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return raw
	}

	path := parsed.EscapedPath()
	if path == "" {
		path = "/"
	}
	if path != "/" {
		path = strings.TrimSuffix(path, "/")
	}

	normalized := parsed.Scheme + "://" + parsed.Host + path
	if parsed.RawQuery != "" {
		normalized += "?" + parsed.RawQuery
	}
	return normalized
}

// BuildRedirectResponseURI appends params onto base, preserving any query
// already present. Empty values are skipped.
func BuildRedirectResponseURI(base string, params map[string]string) (string, error) {
	parsed, err := url.Parse(base)
	if err != nil {
		return "", err
	}

	query := parsed.Query()
	for key, value := range params {
		if value == "" {
			continue
		}
		query.Set(key, value)
	}
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}
