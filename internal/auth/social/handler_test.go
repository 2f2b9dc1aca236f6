package social

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	authconfig "github.com/dreamland-studio/dreamland/internal/auth/config"
	"github.com/dreamland-studio/dreamland/internal/auth/domain"
	"github.com/dreamland-studio/dreamland/internal/auth/repository"
	"github.com/dreamland-studio/dreamland/internal/auth/service"
	"github.com/dreamland-studio/dreamland/internal/auth/session"
	"github.com/dreamland-studio/dreamland/internal/clock"
	"github.com/dreamland-studio/dreamland/internal/config"
	"github.com/dreamland-studio/dreamland/internal/providers/email"
	"github.com/dreamland-studio/dreamland/pkg/db"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// fakeProvider serves the token and userinfo endpoints of a Google-shaped
// identity provider.
type fakeProvider struct {
	server  *httptest.Server
	profile map[string]interface{}
}

func newFakeProvider(t *testing.T) *fakeProvider {
	t.Helper()
	p := &fakeProvider{}
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		if r.FormValue("code") == "" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"access_token": "provider-access-token"})
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer provider-access-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(p.profile)
	})
	p.server = httptest.NewServer(mux)
	t.Cleanup(p.server.Close)
	return p
}

type socialEnv struct {
	t        *testing.T
	ts       *httptest.Server
	client   *http.Client
	repo     domain.Repository
	provider *fakeProvider
	node     *snowflake.Node
}

func newSocialEnv(t *testing.T) *socialEnv {
	t.Helper()

	provider := newFakeProvider(t)

	gdb, err := db.NewTest()
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := gdb.AutoMigrate(&domain.User{}, &domain.UserProvider{}, &domain.Session{}); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	repo := repository.New(gdb)
	sessionRepo := repository.NewSessionRepository(gdb)

	node, err := snowflake.NewNode(9)
	if err != nil {
		t.Fatalf("snowflake: %v", err)
	}
	clk := clock.NewSystemClock()
	authSvc := service.New(repo, sessionRepo, &email.NoOpProvider{}, clk, node)

	registry := authconfig.NewRegistry(authconfig.Provider{
		Name:         "google",
		ClientID:     "test-client",
		ClientSecret: "test-secret",
		AuthURL:      provider.server.URL + "/auth",
		TokenURL:     provider.server.URL + "/token",
		UserInfoURL:  provider.server.URL + "/userinfo",
		Scopes:       []string{"openid", "email"},
	})

	cfg := config.Config{StateSecret: "handler-test-secret"}
	manager := session.NewManager(authSvc, cfg)
	codec := NewStateCodec(cfg.StateSecret, clk, false)
	resolver := NewResolver(repo, node, clk)
	handler := NewHandler(registry, NewClient(), resolver, authSvc, manager, codec, nil, cfg)

	engine := gin.New()
	engine.Use(manager.Middleware())
	handler.RegisterRoutes(engine)

	ts := httptest.NewServer(engine)
	t.Cleanup(ts.Close)
	handler.baseURL = ts.URL

	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookie jar: %v", err)
	}
	client := &http.Client{
		Jar: jar,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	return &socialEnv{t: t, ts: ts, client: client, repo: repo, provider: provider, node: node}
}

// begin starts the flow and returns the state parameter handed to the
// provider.
func (e *socialEnv) begin(returnTo string) string {
	e.t.Helper()

	target := e.ts.URL + "/api/auth/social/google"
	if returnTo != "" {
		target += "?return_to=" + url.QueryEscape(returnTo)
	}
	resp, err := e.client.Get(target)
	if err != nil {
		e.t.Fatalf("start: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusFound {
		e.t.Fatalf("start status %d", resp.StatusCode)
	}

	location, err := url.Parse(resp.Header.Get("Location"))
	if err != nil {
		e.t.Fatalf("parse location: %v", err)
	}
	state := location.Query().Get("state")
	if state == "" {
		e.t.Fatal("no state in provider redirect")
	}
	return state
}

func (e *socialEnv) callback(code, state string) *http.Response {
	e.t.Helper()
	resp, err := e.client.Get(e.ts.URL + "/api/auth/social/google/callback?code=" + code + "&state=" + url.QueryEscape(state))
	if err != nil {
		e.t.Fatalf("callback: %v", err)
	}
	resp.Body.Close()
	return resp
}

func (e *socialEnv) sessionCookie() string {
	serverURL, _ := url.Parse(e.ts.URL)
	for _, cookie := range e.client.Jar.Cookies(serverURL) {
		if cookie.Name == session.DefaultCookieName {
			return cookie.Value
		}
	}
	return ""
}

func TestCallbackLinksExistingAccountAndUpgradesVerified(t *testing.T) {
	e := newSocialEnv(t)
	ctx := context.Background()

	user := &domain.User{
		ID:        e.node.Generate(),
		AccountID: uuid.NewString(),
		Username:  "alice",
		Email:     "alice@example.com",
	}
	if err := e.repo.CreateUser(ctx, user); err != nil {
		t.Fatalf("seed user: %v", err)
	}

	e.provider.profile = map[string]interface{}{
		"sub":            "goog-42",
		"email":          "alice@example.com",
		"email_verified": true,
		"name":           "Alice",
	}

	state := e.begin("/dashboard")
	resp := e.callback("provider-code", state)
	if resp.StatusCode != http.StatusFound {
		t.Fatalf("callback status %d", resp.StatusCode)
	}
	if got := resp.Header.Get("Location"); got != "/dashboard" {
		t.Fatalf("expected redirect to /dashboard, got %s", got)
	}
	if e.sessionCookie() == "" {
		t.Fatal("no session cookie after social login")
	}

	link, err := e.repo.ProviderLink(ctx, "google", "goog-42")
	if err != nil {
		t.Fatalf("expected link: %v", err)
	}
	if link.UserID != user.ID {
		t.Fatal("link points at wrong user")
	}

	fresh, err := e.repo.UserByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if !fresh.EmailVerified {
		t.Fatal("expected verified upgrade from provider assertion")
	}
}

func TestCallbackStagesRegistrationForUnknownIdentity(t *testing.T) {
	e := newSocialEnv(t)

	e.provider.profile = map[string]interface{}{
		"sub":            "goog-new",
		"email":          "newcomer@example.com",
		"email_verified": true,
		"name":           "Newcomer",
	}

	state := e.begin("")
	resp := e.callback("provider-code", state)
	if resp.StatusCode != http.StatusFound {
		t.Fatalf("callback status %d", resp.StatusCode)
	}
	if got := resp.Header.Get("Location"); !strings.HasPrefix(got, "/oauth/register") {
		t.Fatalf("expected registration redirect, got %s", got)
	}
	if e.sessionCookie() != "" {
		t.Fatal("no session may be created before explicit registration")
	}

	serverURL, _ := url.Parse(e.ts.URL)
	var staged bool
	for _, cookie := range e.client.Jar.Cookies(serverURL) {
		if cookie.Name == RegisterStateCookie && cookie.Value != "" {
			staged = true
		}
	}
	if !staged {
		t.Fatal("registration state cookie not set")
	}
}

func TestCallbackRejectsStateMismatch(t *testing.T) {
	e := newSocialEnv(t)

	e.provider.profile = map[string]interface{}{"sub": "goog-1", "email": "x@example.com"}

	e.begin("")
	resp := e.callback("provider-code", "forged-state")
	if resp.StatusCode != http.StatusFound {
		t.Fatalf("callback status %d", resp.StatusCode)
	}
	location, _ := url.Parse(resp.Header.Get("Location"))
	if location.Query().Get("social_error") != "google_state" {
		t.Fatalf("expected google_state error, got %s", resp.Header.Get("Location"))
	}
	if e.sessionCookie() != "" {
		t.Fatal("no session on state mismatch")
	}
}

func TestCallbackRejectsMissingEmail(t *testing.T) {
	e := newSocialEnv(t)

	e.provider.profile = map[string]interface{}{"sub": "goog-no-email"}

	state := e.begin("/somewhere")
	resp := e.callback("provider-code", state)
	location, _ := url.Parse(resp.Header.Get("Location"))
	if location.Query().Get("social_error") != "google_no_email" {
		t.Fatalf("expected google_no_email, got %s", resp.Header.Get("Location"))
	}
}

func TestCallbackProviderDenied(t *testing.T) {
	e := newSocialEnv(t)

	e.begin("")
	resp, err := e.client.Get(e.ts.URL + "/api/auth/social/google/callback?error=access_denied")
	if err != nil {
		t.Fatalf("callback: %v", err)
	}
	resp.Body.Close()
	location, _ := url.Parse(resp.Header.Get("Location"))
	if location.Query().Get("social_error") != "google_denied" {
		t.Fatalf("expected google_denied, got %s", resp.Header.Get("Location"))
	}
}
