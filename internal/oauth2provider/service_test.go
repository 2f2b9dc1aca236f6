package oauth2provider

import (
	"context"
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"gorm.io/gorm"

	authdomain "github.com/dreamland-studio/dreamland/internal/auth/domain"
	"github.com/dreamland-studio/dreamland/internal/auth/repository"
	"github.com/dreamland-studio/dreamland/internal/clock"
	"github.com/dreamland-studio/dreamland/pkg/db"
)

const testRedirectURI = "https://app.example.com/callback"

type fixture struct {
	service *Service
	store   Store
	db      *gorm.DB
	clock   *clock.FakeClock
	user    *authdomain.User
	client  *CreateClientResult
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	gdb, err := db.NewTest()
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := gdb.AutoMigrate(&authdomain.User{}, &Client{}, &AuthorizationCode{}, &AccessToken{}); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	users := repository.New(gdb)
	store := NewStore(gdb)
	clk := clock.NewFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	service := NewService(DefaultConfig(), store, users, clk, nil)

	node, err := snowflake.NewNode(3)
	if err != nil {
		t.Fatalf("snowflake: %v", err)
	}
	user := &authdomain.User{
		ID:            node.Generate(),
		AccountID:     uuid.NewString(),
		Username:      "alice",
		Email:         "alice@example.com",
		EmailVerified: true,
	}
	if err := users.CreateUser(context.Background(), user); err != nil {
		t.Fatalf("seed user: %v", err)
	}

	client, err := service.CreateClient(context.Background(), CreateClientRequest{
		Name:         "Test App",
		RedirectURIs: []string{testRedirectURI},
		Scopes:       "profile email",
	})
	if err != nil {
		t.Fatalf("seed client: %v", err)
	}

	return &fixture{service: service, store: store, db: gdb, clock: clk, user: user, client: client}
}

// approve runs the consent decision and returns the issued code.
func (f *fixture) approve(t *testing.T) string {
	t.Helper()
	redirectURL, err := f.service.Decide(context.Background(), f.user.ID, DecisionRequest{
		ClientID:    f.client.ClientID,
		RedirectURI: testRedirectURI,
		Scope:       "profile",
		State:       "st-1",
		Decision:    "approve",
	})
	if err != nil {
		t.Fatalf("decide: %v", err)
	}

	parsed, err := url.Parse(redirectURL)
	if err != nil {
		t.Fatalf("parse redirect: %v", err)
	}
	code := parsed.Query().Get("code")
	if code == "" {
		t.Fatalf("no code in %s", redirectURL)
	}
	return code
}

func (f *fixture) exchangeCode(code string) (*TokenResponse, error) {
	return f.service.Exchange(context.Background(), ExchangeRequest{
		GrantType:    "authorization_code",
		ClientID:     f.client.ClientID,
		ClientSecret: f.client.ClientSecret,
		Code:         code,
		RedirectURI:  testRedirectURI,
	})
}

func TestAuthorizeContextValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cases := []struct {
		name  string
		query AuthorizeQuery
		want  error
	}{
		{"missing client", AuthorizeQuery{RedirectURI: testRedirectURI}, ErrInvalidRequest},
		{"missing redirect", AuthorizeQuery{ClientID: f.client.ClientID}, ErrInvalidRequest},
		{"unknown client", AuthorizeQuery{ClientID: "nope", RedirectURI: testRedirectURI}, ErrInvalidClient},
		{"unregistered redirect", AuthorizeQuery{ClientID: f.client.ClientID, RedirectURI: "https://evil.example.com/cb"}, ErrInvalidRedirectURI},
		{"bad response type", AuthorizeQuery{ClientID: f.client.ClientID, RedirectURI: testRedirectURI, ResponseType: "token"}, ErrInvalidRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := f.service.AuthorizeContext(ctx, tc.query); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}

	consent, err := f.service.AuthorizeContext(ctx, AuthorizeQuery{
		ClientID:    f.client.ClientID,
		RedirectURI: testRedirectURI,
		State:       "st",
	})
	if err != nil {
		t.Fatalf("authorize: %v", err)
	}
	if consent.Scope != "profile email" {
		t.Fatalf("expected client default scope, got %q", consent.Scope)
	}
}

func TestDecideDenyHasNoSideEffects(t *testing.T) {
	f := newFixture(t)

	redirectURL, err := f.service.Decide(context.Background(), f.user.ID, DecisionRequest{
		ClientID:    f.client.ClientID,
		RedirectURI: testRedirectURI,
		State:       "st-deny",
		Decision:    "deny",
	})
	if err != nil {
		t.Fatalf("decide: %v", err)
	}

	parsed, _ := url.Parse(redirectURL)
	if parsed.Query().Get("error") != "access_denied" {
		t.Fatalf("expected access_denied in %s", redirectURL)
	}
	if parsed.Query().Get("state") != "st-deny" {
		t.Fatal("state not echoed")
	}
	if parsed.Query().Get("code") != "" {
		t.Fatal("deny must not issue a code")
	}
}

func TestDecideRejectsUnregisteredRedirect(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.Decide(context.Background(), f.user.ID, DecisionRequest{
		ClientID:    f.client.ClientID,
		RedirectURI: "https://evil.example.com/cb",
	})
	if !errors.Is(err, ErrInvalidRedirectURI) {
		t.Fatalf("expected ErrInvalidRedirectURI, got %v", err)
	}
}

func TestExchangeCodeHappyPath(t *testing.T) {
	f := newFixture(t)
	code := f.approve(t)

	resp, err := f.exchangeCode(code)
	if err != nil {
		t.Fatalf("exchange: %v", err)
	}
	if resp.AccessToken == "" || resp.RefreshToken == "" {
		t.Fatal("missing tokens")
	}
	if resp.TokenType != "Bearer" {
		t.Fatalf("expected Bearer, got %s", resp.TokenType)
	}
	if resp.ExpiresIn != 3600 {
		t.Fatalf("expected 3600, got %d", resp.ExpiresIn)
	}
	if resp.Scope != "profile" {
		t.Fatalf("expected requested scope, got %q", resp.Scope)
	}
}

func TestExchangeCodeSingleUse(t *testing.T) {
	f := newFixture(t)
	code := f.approve(t)

	if _, err := f.exchangeCode(code); err != nil {
		t.Fatalf("first exchange: %v", err)
	}
	if _, err := f.exchangeCode(code); !errors.Is(err, ErrInvalidGrant) {
		t.Fatalf("expected invalid_grant on reuse, got %v", err)
	}
}

func TestExchangeCodeExpiryBoundary(t *testing.T) {
	f := newFixture(t)

	code := f.approve(t)
	f.clock.Advance(5*time.Minute - time.Second)
	if _, err := f.exchangeCode(code); err != nil {
		t.Fatalf("code should still be valid at T+299s: %v", err)
	}

	code = f.approve(t)
	f.clock.Advance(5*time.Minute + time.Second)
	if _, err := f.exchangeCode(code); !errors.Is(err, ErrInvalidGrant) {
		t.Fatalf("expected invalid_grant after expiry, got %v", err)
	}
}

func TestExchangeCodeBoundToClientAndRedirect(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	other, err := f.service.CreateClient(ctx, CreateClientRequest{
		Name:         "Other App",
		RedirectURIs: []string{testRedirectURI},
	})
	if err != nil {
		t.Fatalf("second client: %v", err)
	}

	code := f.approve(t)
	_, err = f.service.Exchange(ctx, ExchangeRequest{
		GrantType:    "authorization_code",
		ClientID:     other.ClientID,
		ClientSecret: other.ClientSecret,
		Code:         code,
		RedirectURI:  testRedirectURI,
	})
	if !errors.Is(err, ErrInvalidGrant) {
		t.Fatalf("expected invalid_grant for foreign client, got %v", err)
	}

	// The losing attempt must not have consumed the code.
	if _, err := f.exchangeCode(code); err != nil {
		t.Fatalf("owner exchange after foreign attempt: %v", err)
	}
}

func TestExchangeCodeRedirectMismatch(t *testing.T) {
	f := newFixture(t)
	code := f.approve(t)

	_, err := f.service.Exchange(context.Background(), ExchangeRequest{
		GrantType:    "authorization_code",
		ClientID:     f.client.ClientID,
		ClientSecret: f.client.ClientSecret,
		Code:         code,
		// Normalization-equivalent is not enough; the stored value is
		// compared verbatim.
		RedirectURI: testRedirectURI + "/",
	})
	if !errors.Is(err, ErrInvalidGrant) {
		t.Fatalf("expected invalid_grant, got %v", err)
	}
}

func TestExchangeClientAuthentication(t *testing.T) {
	f := newFixture(t)
	code := f.approve(t)

	cases := []struct {
		name   string
		id     string
		secret string
	}{
		{"wrong secret", f.client.ClientID, "wrong"},
		{"unknown client", "unknown", f.client.ClientSecret},
		{"missing secret", f.client.ClientID, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.service.Exchange(context.Background(), ExchangeRequest{
				GrantType:    "authorization_code",
				ClientID:     tc.id,
				ClientSecret: tc.secret,
				Code:         code,
				RedirectURI:  testRedirectURI,
			})
			if !errors.Is(err, ErrInvalidClient) {
				t.Fatalf("expected invalid_client, got %v", err)
			}
		})
	}
}

func TestExchangeUnsupportedGrantType(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.Exchange(context.Background(), ExchangeRequest{
		GrantType:    "password",
		ClientID:     f.client.ClientID,
		ClientSecret: f.client.ClientSecret,
	})
	if !errors.Is(err, ErrUnsupportedGrantType) {
		t.Fatalf("expected unsupported_grant_type, got %v", err)
	}

	_, err = f.service.Exchange(context.Background(), ExchangeRequest{
		ClientID:     f.client.ClientID,
		ClientSecret: f.client.ClientSecret,
	})
	if !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected invalid_request for missing grant_type, got %v", err)
	}
}

func TestRefreshRotation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.exchangeCode(f.approve(t))
	if err != nil {
		t.Fatalf("exchange: %v", err)
	}

	refresh := func(token string) (*TokenResponse, error) {
		return f.service.Exchange(ctx, ExchangeRequest{
			GrantType:    "refresh_token",
			ClientID:     f.client.ClientID,
			ClientSecret: f.client.ClientSecret,
			RefreshToken: token,
		})
	}

	second, err := refresh(first.RefreshToken)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if second.AccessToken == first.AccessToken || second.RefreshToken == first.RefreshToken {
		t.Fatal("rotation must mint fresh tokens")
	}
	if second.Scope != first.Scope {
		t.Fatal("scope must carry over")
	}

	// The rotated-away refresh token is dead.
	if _, err := refresh(first.RefreshToken); !errors.Is(err, ErrInvalidGrant) {
		t.Fatalf("expected invalid_grant on reuse, got %v", err)
	}
	// And so is the old access token.
	if _, err := f.service.UserInfo(ctx, first.AccessToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected invalid_token for rotated access token, got %v", err)
	}
}

func TestRefreshExpiredIsCleanedUp(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	pair, err := f.exchangeCode(f.approve(t))
	if err != nil {
		t.Fatalf("exchange: %v", err)
	}

	f.clock.Advance(30*24*time.Hour + time.Minute)
	_, err = f.service.Exchange(ctx, ExchangeRequest{
		GrantType:    "refresh_token",
		ClientID:     f.client.ClientID,
		ClientSecret: f.client.ClientSecret,
		RefreshToken: pair.RefreshToken,
	})
	if !errors.Is(err, ErrInvalidGrant) {
		t.Fatalf("expected invalid_grant, got %v", err)
	}

	// Cleanup deleted the record, so the failure mode is stable.
	_, err = f.service.Exchange(ctx, ExchangeRequest{
		GrantType:    "refresh_token",
		ClientID:     f.client.ClientID,
		ClientSecret: f.client.ClientSecret,
		RefreshToken: pair.RefreshToken,
	})
	if !errors.Is(err, ErrInvalidGrant) {
		t.Fatalf("expected invalid_grant, got %v", err)
	}
}

func TestUserInfo(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	pair, err := f.exchangeCode(f.approve(t))
	if err != nil {
		t.Fatalf("exchange: %v", err)
	}

	info, err := f.service.UserInfo(ctx, pair.AccessToken)
	if err != nil {
		t.Fatalf("userinfo: %v", err)
	}
	if info.Subject != f.user.AccountID {
		t.Fatalf("expected stable subject %s, got %s", f.user.AccountID, info.Subject)
	}
	if info.Username != "alice" || info.Email != "alice@example.com" {
		t.Fatal("profile claims missing")
	}

	if _, err := f.service.UserInfo(ctx, "not-a-token"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected invalid_token, got %v", err)
	}
}

func TestUserInfoRejectsAccessExpired(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	pair, err := f.exchangeCode(f.approve(t))
	if err != nil {
		t.Fatalf("exchange: %v", err)
	}

	// Past access expiry but still inside the refresh window.
	f.clock.Advance(time.Hour + time.Minute)
	if _, err := f.service.UserInfo(ctx, pair.AccessToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected invalid_token, got %v", err)
	}
}

func TestCreateClientValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cases := []CreateClientRequest{
		{Name: "", RedirectURIs: []string{testRedirectURI}},
		{Name: "App", RedirectURIs: nil},
		{Name: "App", RedirectURIs: []string{""}},
	}
	for _, req := range cases {
		if _, err := f.service.CreateClient(ctx, req); !errors.Is(err, ErrInvalidRequest) {
			t.Fatalf("expected ErrInvalidRequest for %+v, got %v", req, err)
		}
	}
}

func TestInactiveClientIsRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	err := f.db.Model(&Client{}).
		Where("id = ?", f.client.ClientID).
		Update("is_active", false).Error
	if err != nil {
		t.Fatalf("deactivate client: %v", err)
	}

	if _, err := f.service.AuthorizeContext(ctx, AuthorizeQuery{
		ClientID:    f.client.ClientID,
		RedirectURI: testRedirectURI,
	}); !errors.Is(err, ErrInvalidClient) {
		t.Fatalf("expected invalid_client, got %v", err)
	}

	if _, err := f.service.Exchange(ctx, ExchangeRequest{
		GrantType:    "authorization_code",
		ClientID:     f.client.ClientID,
		ClientSecret: f.client.ClientSecret,
		Code:         "anything",
		RedirectURI:  testRedirectURI,
	}); !errors.Is(err, ErrInvalidClient) {
		t.Fatalf("expected invalid_client, got %v", err)
	}
}
