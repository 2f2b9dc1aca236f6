package social

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	authconfig "github.com/dreamland-studio/dreamland/internal/auth/config"
	"github.com/dreamland-studio/dreamland/internal/observability/tracing"
)

// Identity is a normalized provider profile.
type Identity struct {
	Provider      string
	AccountID     string
	Email         string
	EmailVerified bool
	DisplayName   string
}

var ErrProviderRejected = errors.New("provider rejected request")

// Client talks to external identity providers.
type Client struct {
	http *http.Client
}

// NewClient builds a provider client with traced outbound requests.
func NewClient() *Client {
	return &Client{http: tracing.WrapHTTPClient(&http.Client{Timeout: 10 * time.Second})}
}

// Exchange trades an authorization code for a provider access token.
func (c *Client) Exchange(ctx context.Context, provider authconfig.Provider, code, redirectURI string) (string, error) {
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("redirect_uri", redirectURI)
	form.Set("client_id", provider.ClientID)
	form.Set("client_secret", provider.ClientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, provider.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("%w: token endpoint returned %d", ErrProviderRejected, resp.StatusCode)
	}

	var payload struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", err
	}
	if payload.AccessToken == "" {
		return "", fmt.Errorf("%w: empty access token", ErrProviderRejected)
	}
	return payload.AccessToken, nil
}

// Profile fetches and normalizes the provider profile.
func (c *Client) Profile(ctx context.Context, provider authconfig.Provider, accessToken string) (Identity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, provider.UserInfoURL, nil)
	if err != nil {
		return Identity{}, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return Identity{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return Identity{}, fmt.Errorf("%w: userinfo returned %d", ErrProviderRejected, resp.StatusCode)
	}

	switch provider.Name {
	case "google":
		return decodeGoogleProfile(resp.Body)
	case "discord":
		return decodeDiscordProfile(resp.Body)
	default:
		return Identity{}, fmt.Errorf("unsupported provider %q", provider.Name)
	}
}

func decodeGoogleProfile(r io.Reader) (Identity, error) {
	var profile struct {
		Sub           string `json:"sub"`
		Email         string `json:"email"`
		EmailVerified bool   `json:"email_verified"`
		Name          string `json:"name"`
	}
	if err := json.NewDecoder(r).Decode(&profile); err != nil {
		return Identity{}, err
	}
	if profile.Sub == "" {
		return Identity{}, fmt.Errorf("%w: profile missing subject", ErrProviderRejected)
	}
	return Identity{
		Provider:      "google",
		AccountID:     profile.Sub,
		Email:         strings.ToLower(profile.Email),
		EmailVerified: profile.EmailVerified,
		DisplayName:   profile.Name,
	}, nil
}

func decodeDiscordProfile(r io.Reader) (Identity, error) {
	var profile struct {
		ID         string `json:"id"`
		Username   string `json:"username"`
		GlobalName string `json:"global_name"`
		Email      string `json:"email"`
		Verified   bool   `json:"verified"`
	}
	if err := json.NewDecoder(r).Decode(&profile); err != nil {
		return Identity{}, err
	}
	if profile.ID == "" {
		return Identity{}, fmt.Errorf("%w: profile missing id", ErrProviderRejected)
	}
	display := profile.GlobalName
	if display == "" {
		display = profile.Username
	}
	return Identity{
		Provider:      "discord",
		AccountID:     profile.ID,
		Email:         strings.ToLower(profile.Email),
		EmailVerified: profile.Verified,
		DisplayName:   display,
	}, nil
}
