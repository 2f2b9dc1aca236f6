package oauth2provider

import (
	"net/url"
	"testing"
)

func TestIsRedirectURIAllowed(t *testing.T) {
	client := &Client{
		RedirectURIs: []string{
			"https://app.example.com/callback",
			"https://other.example.com/cb?env=prod",
			"http://localhost:3000/",
		},
	}

	allowed := []string{
		"https://app.example.com/callback",
		"https://app.example.com/callback/",
		"https://app.example.com/callback#fragment",
		"https://other.example.com/cb?env=prod",
		"http://localhost:3000/",
		"http://localhost:3000",
	}
	for _, uri := range allowed {
		if !IsRedirectURIAllowed(client, uri) {
			t.Errorf("expected %q allowed", uri)
		}
	}

	denied := []string{
		"https://app.example.com/other",
		"https://evil.example.com/callback",
		"http://app.example.com/callback",
		"https://app.example.com/callback/deeper",
		"https://app.example.com/callback?extra=1",
		"https://other.example.com/cb?env=dev",
		"",
	}
	for _, uri := range denied {
		if IsRedirectURIAllowed(client, uri) {
			t.Errorf("expected %q denied", uri)
		}
	}
}

func TestHostOnlyRedirectURIMatchesSlashForm(t *testing.T) {
	// A host-only URI and its "/" form are the same location; registration
	// in either shape must accept both.
	for _, registered := range []string{"http://localhost:3000", "http://localhost:3000/"} {
		client := &Client{RedirectURIs: []string{registered}}
		for _, candidate := range []string{"http://localhost:3000", "http://localhost:3000/"} {
			if !IsRedirectURIAllowed(client, candidate) {
				t.Errorf("registered %q should allow %q", registered, candidate)
			}
		}
		if IsRedirectURIAllowed(client, "http://localhost:3000/path") {
			t.Errorf("registered %q must not allow a deeper path", registered)
		}
	}
}

func TestIsRedirectURIAllowedReflexive(t *testing.T) {
	uris := []string{
		"https://app.example.com/callback",
		"https://app.example.com/callback/",
		"http://localhost:8080/cb?a=1&b=2",
		"myapp://callback",
		"not a url at all",
	}
	for _, uri := range uris {
		client := &Client{RedirectURIs: []string{uri}}
		if !IsRedirectURIAllowed(client, uri) {
			t.Errorf("registered URI %q should match itself", uri)
		}
	}
}

func TestBuildRedirectResponseURI(t *testing.T) {
	result, err := BuildRedirectResponseURI("https://app.example.com/cb?keep=1", map[string]string{
		"code":  "abc",
		"state": "xyz",
		"empty": "",
	})
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	parsed, err := url.Parse(result)
	if err != nil {
		t.Fatalf("parse result: %v", err)
	}
	query := parsed.Query()
	if query.Get("keep") != "1" {
		t.Error("existing query param lost")
	}
	if query.Get("code") != "abc" || query.Get("state") != "xyz" {
		t.Error("missing appended params")
	}
	if _, ok := query["empty"]; ok {
		t.Error("empty values must be skipped")
	}
}

func TestBuildRedirectResponseURIOverwrites(t *testing.T) {
	result, err := BuildRedirectResponseURI("https://app.example.com/cb?code=old", map[string]string{
		"code": "new",
	})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	parsed, _ := url.Parse(result)
	if got := parsed.Query().Get("code"); got != "new" {
		t.Fatalf("expected overwritten code, got %q", got)
	}
}
