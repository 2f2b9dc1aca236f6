package oauth2provider

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"

	authdomain "github.com/dreamland-studio/dreamland/internal/auth/domain"
	"github.com/dreamland-studio/dreamland/internal/clock"
	"github.com/dreamland-studio/dreamland/internal/observability/logger"
	"github.com/dreamland-studio/dreamland/internal/observability/metrics"
	"github.com/dreamland-studio/dreamland/internal/token"
)

const (
	clientIDBytes     = 16
	clientSecretBytes = 32
	codeBytes         = 32
	accessTokenBytes  = 32
	refreshTokenBytes = 32
)

// Service implements the authorization server: consent, code issuance, token
// exchange and introspection.
type Service struct {
	cfg     Config
	store   Store
	users   authdomain.Repository
	clock   clock.Clock
	metrics *metrics.Metrics
}

// NewService builds the authorization server service.
func NewService(cfg Config, store Store, users authdomain.Repository, clk clock.Clock, m *metrics.Metrics) *Service {
	return &Service{
		cfg:     cfg,
		store:   store,
		users:   users,
		clock:   clk,
		metrics: m,
	}
}

// AuthorizeQuery is the GET entry into the consent flow.
type AuthorizeQuery struct {
	ClientID     string
	RedirectURI  string
	Scope        string
	State        string
	ResponseType string
}

// ConsentContext is what the consent page needs to render.
type ConsentContext struct {
	Client      *Client
	RedirectURI string
	Scope       string
	State       string
}

// AuthorizeContext validates an authorization request and returns the
// context for the consent page. No side effects.
func (s *Service) AuthorizeContext(ctx context.Context, query AuthorizeQuery) (*ConsentContext, error) {
	client, scope, err := s.validateAuthorizeRequest(ctx, query.ClientID, query.RedirectURI, query.Scope)
	if err != nil {
		return nil, err
	}
	if rt := strings.TrimSpace(query.ResponseType); rt != "" && rt != "code" {
		return nil, ErrInvalidRequest
	}
	return &ConsentContext{
		Client:      client,
		RedirectURI: query.RedirectURI,
		Scope:       scope,
		State:       query.State,
	}, nil
}

// DecisionRequest is the authenticated user's consent decision.
type DecisionRequest struct {
	ClientID    string
	RedirectURI string
	Scope       string
	State       string
	Decision    string
}

// Decide turns a consent decision into a redirect target. Approval mints an
// authorization code bound to the exact redirect URI supplied; denial carries
// error=access_denied back to the client. State is echoed either way.
func (s *Service) Decide(ctx context.Context, userID snowflake.ID, req DecisionRequest) (string, error) {
	client, scope, err := s.validateAuthorizeRequest(ctx, req.ClientID, req.RedirectURI, req.Scope)
	if err != nil {
		return "", err
	}

	if strings.EqualFold(strings.TrimSpace(req.Decision), "deny") {
		return BuildRedirectResponseURI(req.RedirectURI, map[string]string{
			"error": "access_denied",
			"state": req.State,
		})
	}

	rawCode, err := token.Generate(codeBytes)
	if err != nil {
		return "", err
	}

	now := s.clock.Now()
	code := &AuthorizationCode{
		CodeHash:    token.Hash(rawCode),
		UserID:      userID,
		ClientID:    client.ID,
		RedirectURI: req.RedirectURI,
		Scope:       scope,
		ExpiresAt:   now.Add(s.cfg.CodeTTL),
		CreatedAt:   now,
	}
	if err := s.store.CreateAuthorizationCode(ctx, code); err != nil {
		return "", err
	}

	s.metrics.RecordCodeIssued(ctx, client.ID)
	logger.FromContext(ctx).Info("authorization code issued",
		zap.String("client_id", client.ID),
		zap.Int64("user_id", int64(userID)),
	)

	return BuildRedirectResponseURI(req.RedirectURI, map[string]string{
		"code":  rawCode,
		"state": req.State,
	})
}

func (s *Service) validateAuthorizeRequest(ctx context.Context, clientID, redirectURI, scope string) (*Client, string, error) {
	if strings.TrimSpace(clientID) == "" || strings.TrimSpace(redirectURI) == "" {
		return nil, "", ErrInvalidRequest
	}

	client, err := s.store.ClientByID(ctx, clientID)
	if errors.Is(err, ErrNotFound) {
		return nil, "", ErrInvalidClient
	}
	if err != nil {
		return nil, "", err
	}
	if !client.IsActive {
		return nil, "", ErrInvalidClient
	}

	if !IsRedirectURIAllowed(client, redirectURI) {
		return nil, "", ErrInvalidRedirectURI
	}

	scope = strings.TrimSpace(scope)
	if scope == "" {
		scope = client.Scopes
	}
	return client, scope, nil
}

// ExchangeRequest covers both token endpoint grants.
type ExchangeRequest struct {
	GrantType    string
	ClientID     string
	ClientSecret string
	Code         string
	RedirectURI  string
	RefreshToken string
}

// TokenResponse is the token endpoint success payload.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	Scope        string `json:"scope"`
}

// Exchange redeems an authorization code or rotates a refresh token.
func (s *Service) Exchange(ctx context.Context, req ExchangeRequest) (*TokenResponse, error) {
	grantType := strings.TrimSpace(req.GrantType)
	if grantType == "" {
		s.metrics.RecordTokenDenied(ctx, "invalid_request")
		return nil, ErrInvalidRequest
	}

	client, err := s.authenticateClient(ctx, req.ClientID, req.ClientSecret)
	if err != nil {
		s.metrics.RecordTokenDenied(ctx, "invalid_client")
		return nil, err
	}

	var resp *TokenResponse
	switch grantType {
	case "authorization_code":
		resp, err = s.redeemCode(ctx, client, req)
	case "refresh_token":
		resp, err = s.rotateRefreshToken(ctx, client, req)
	default:
		s.metrics.RecordTokenDenied(ctx, "unsupported_grant_type")
		return nil, ErrUnsupportedGrantType
	}
	if err != nil {
		s.metrics.RecordTokenDenied(ctx, errorCode(err))
		return nil, err
	}

	s.metrics.RecordTokenIssued(ctx, grantType)
	return resp, nil
}

// authenticateClient verifies client credentials. Unknown clients and wrong
// secrets are indistinguishable to the caller.
func (s *Service) authenticateClient(ctx context.Context, clientID, clientSecret string) (*Client, error) {
	if strings.TrimSpace(clientID) == "" || clientSecret == "" {
		return nil, ErrInvalidClient
	}

	client, err := s.store.ClientByID(ctx, clientID)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrInvalidClient
	}
	if err != nil {
		return nil, err
	}
	if !client.IsActive {
		return nil, ErrInvalidClient
	}
	if !token.SafeEqual(client.SecretHash, token.Hash(clientSecret)) {
		return nil, ErrInvalidClient
	}
	return client, nil
}

func (s *Service) redeemCode(ctx context.Context, client *Client, req ExchangeRequest) (*TokenResponse, error) {
	if strings.TrimSpace(req.Code) == "" || strings.TrimSpace(req.RedirectURI) == "" {
		return nil, ErrInvalidRequest
	}

	code, err := s.store.AuthorizationCodeByHash(ctx, token.Hash(req.Code))
	if errors.Is(err, ErrNotFound) {
		return nil, ErrInvalidGrant
	}
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	switch {
	case code.ClientID != client.ID:
		return nil, ErrInvalidGrant
	case code.UsedAt != nil:
		return nil, ErrInvalidGrant
	case now.After(code.ExpiresAt):
		return nil, ErrInvalidGrant
	case code.RedirectURI != req.RedirectURI:
		// Exact equality against the value stored at issuance, not the
		// allow-list: the code is bound to the original request.
		return nil, ErrInvalidGrant
	}

	// Conditional update is the single-writer guard: of two concurrent
	// redemptions only one flips used_at.
	ok, err := s.store.MarkAuthorizationCodeUsed(ctx, code.CodeHash, now)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInvalidGrant
	}

	return s.issueTokens(ctx, code.UserID, client.ID, code.Scope)
}

func (s *Service) rotateRefreshToken(ctx context.Context, client *Client, req ExchangeRequest) (*TokenResponse, error) {
	if strings.TrimSpace(req.RefreshToken) == "" {
		return nil, ErrInvalidRequest
	}

	record, err := s.store.AccessTokenByRefreshHash(ctx, token.Hash(req.RefreshToken))
	if errors.Is(err, ErrNotFound) {
		return nil, ErrInvalidGrant
	}
	if err != nil {
		return nil, err
	}
	if record.ClientID != client.ID {
		return nil, ErrInvalidGrant
	}

	if s.clock.Now().After(record.RefreshExpiresAt) {
		_, _ = s.store.DeleteAccessToken(ctx, record.TokenHash)
		return nil, ErrInvalidGrant
	}

	// Rotation: the delete doubles as the race guard, so a concurrent
	// reuse of the same refresh token loses here.
	ok, err := s.store.DeleteAccessToken(ctx, record.TokenHash)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInvalidGrant
	}

	return s.issueTokens(ctx, record.UserID, client.ID, record.Scope)
}

func (s *Service) issueTokens(ctx context.Context, userID snowflake.ID, clientID, scope string) (*TokenResponse, error) {
	rawAccess, err := token.Generate(accessTokenBytes)
	if err != nil {
		return nil, err
	}
	rawRefresh, err := token.Generate(refreshTokenBytes)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	record := &AccessToken{
		TokenHash:        token.Hash(rawAccess),
		UserID:           userID,
		ClientID:         clientID,
		Scope:            scope,
		ExpiresAt:        now.Add(s.cfg.AccessTTL),
		RefreshTokenHash: token.Hash(rawRefresh),
		RefreshExpiresAt: now.Add(s.cfg.RefreshTTL),
		CreatedAt:        now,
	}
	if err := s.store.CreateAccessToken(ctx, record); err != nil {
		return nil, err
	}

	return &TokenResponse{
		AccessToken:  rawAccess,
		RefreshToken: rawRefresh,
		TokenType:    "Bearer",
		ExpiresIn:    int64(s.cfg.AccessTTL.Seconds()),
		Scope:        scope,
	}, nil
}

// UserInfoResponse carries the stable subject plus public profile claims.
type UserInfoResponse struct {
	Subject       string `json:"sub"`
	Username      string `json:"username"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Scope         string `json:"scope"`
}

// UserInfo resolves a bearer access token. Access expiry is enforced even
// when the refresh window is still open.
func (s *Service) UserInfo(ctx context.Context, rawToken string) (*UserInfoResponse, error) {
	if strings.TrimSpace(rawToken) == "" {
		return nil, ErrInvalidToken
	}

	record, err := s.store.AccessTokenByHash(ctx, token.Hash(rawToken))
	if errors.Is(err, ErrNotFound) {
		return nil, ErrInvalidToken
	}
	if err != nil {
		return nil, err
	}
	if s.clock.Now().After(record.ExpiresAt) {
		return nil, ErrInvalidToken
	}

	user, err := s.users.UserByID(ctx, record.UserID)
	if err != nil {
		return nil, ErrInvalidToken
	}

	return &UserInfoResponse{
		Subject:       user.AccountID,
		Username:      user.Username,
		Email:         user.Email,
		EmailVerified: user.EmailVerified,
		Scope:         record.Scope,
	}, nil
}

// CreateClientRequest registers a new OAuth client.
type CreateClientRequest struct {
	Name         string
	RedirectURIs []string
	Scopes       string
}

// CreateClientResult returns the credentials. Secret is shown exactly once.
type CreateClientResult struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	Name         string `json:"name"`
}

// CreateClient mints client credentials and stores only the secret hash.
func (s *Service) CreateClient(ctx context.Context, req CreateClientRequest) (*CreateClientResult, error) {
	if strings.TrimSpace(req.Name) == "" || len(req.RedirectURIs) == 0 {
		return nil, ErrInvalidRequest
	}
	for _, uri := range req.RedirectURIs {
		if strings.TrimSpace(uri) == "" {
			return nil, ErrInvalidRequest
		}
	}

	clientID, err := token.Generate(clientIDBytes)
	if err != nil {
		return nil, err
	}
	clientSecret, err := token.Generate(clientSecretBytes)
	if err != nil {
		return nil, err
	}

	client := &Client{
		ID:           clientID,
		Name:         strings.TrimSpace(req.Name),
		SecretHash:   token.Hash(clientSecret),
		RedirectURIs: req.RedirectURIs,
		Scopes:       strings.TrimSpace(req.Scopes),
		IsActive:     true,
		CreatedAt:    s.clock.Now(),
	}
	if err := s.store.CreateClient(ctx, client); err != nil {
		return nil, err
	}

	logger.FromContext(ctx).Info("oauth client registered", zap.String("client_id", clientID))
	return &CreateClientResult{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Name:         client.Name,
	}, nil
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return "invalid_request"
	case errors.Is(err, ErrInvalidClient):
		return "invalid_client"
	case errors.Is(err, ErrInvalidGrant):
		return "invalid_grant"
	case errors.Is(err, ErrUnsupportedGrantType):
		return "unsupported_grant_type"
	default:
		return "server_error"
	}
}
