package social

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	authconfig "github.com/dreamland-studio/dreamland/internal/auth/config"
	"github.com/dreamland-studio/dreamland/internal/auth/domain"
	"github.com/dreamland-studio/dreamland/internal/auth/service"
	"github.com/dreamland-studio/dreamland/internal/auth/session"
	"github.com/dreamland-studio/dreamland/internal/config"
	"github.com/dreamland-studio/dreamland/internal/observability/logger"
	"github.com/dreamland-studio/dreamland/internal/observability/metrics"
	"github.com/dreamland-studio/dreamland/internal/token"
)

const stateTokenBytes = 16

// Handler serves the social login redirect and callback.
type Handler struct {
	registry *authconfig.Registry
	client   *Client
	resolver *Resolver
	auth     domain.Service
	sessions *session.Manager
	codec    *StateCodec
	metrics  *metrics.Metrics
	baseURL  string
}

// NewHandler builds the social login handler.
func NewHandler(
	registry *authconfig.Registry,
	client *Client,
	resolver *Resolver,
	auth domain.Service,
	sessions *session.Manager,
	codec *StateCodec,
	m *metrics.Metrics,
	cfg config.Config,
) *Handler {
	return &Handler{
		registry: registry,
		client:   client,
		resolver: resolver,
		auth:     auth,
		sessions: sessions,
		codec:    codec,
		metrics:  m,
		baseURL:  cfg.BaseURL,
	}
}

// RegisterRoutes mounts the social login endpoints.
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/api/auth/social/:provider", h.start)
	r.GET("/api/auth/social/:provider/callback", h.callback)
}

func (h *Handler) start(c *gin.Context) {
	name := c.Param("provider")
	provider, ok := h.registry.Get(name)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown provider"})
		return
	}

	state, err := token.Generate(stateTokenBytes)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	returnTo := sanitizeReturnTo(c.Query("return_to"))
	err = h.codec.SetCookie(c, LoginStateCookie, LoginState{
		Provider: name,
		State:    state,
		ReturnTo: returnTo,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	query := url.Values{}
	query.Set("client_id", provider.ClientID)
	query.Set("redirect_uri", h.callbackURL(name))
	query.Set("response_type", "code")
	query.Set("scope", joinScopes(provider))
	query.Set("state", state)

	c.Redirect(http.StatusFound, provider.AuthURL+"?"+query.Encode())
}

func (h *Handler) callback(c *gin.Context) {
	name := c.Param("provider")
	provider, ok := h.registry.Get(name)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown provider"})
		return
	}

	if c.Query("error") != "" {
		h.fail(c, name, "/", "denied")
		return
	}

	var st LoginState
	if err := h.codec.ReadCookie(c, LoginStateCookie, &st); err != nil {
		_ = c.Error(err)
		h.fail(c, name, "/", "state")
		return
	}
	returnTo := sanitizeReturnTo(st.ReturnTo)

	if st.Provider != name || !token.SafeEqual(st.State, c.Query("state")) {
		h.fail(c, name, returnTo, "state")
		return
	}

	code := c.Query("code")
	if code == "" {
		h.fail(c, name, returnTo, "exchange")
		return
	}

	ctx := c.Request.Context()
	accessToken, err := h.client.Exchange(ctx, provider, code, h.callbackURL(name))
	if err != nil {
		_ = c.Error(err)
		logger.FromContext(ctx).Warn("social exchange failed", zap.String("provider", name), zap.Error(err))
		h.fail(c, name, returnTo, "exchange")
		return
	}

	identity, err := h.client.Profile(ctx, provider, accessToken)
	if err != nil {
		_ = c.Error(err)
		logger.FromContext(ctx).Warn("social profile fetch failed", zap.String("provider", name), zap.Error(err))
		h.fail(c, name, returnTo, "profile")
		return
	}

	user, err := h.resolver.Resolve(ctx, identity)
	switch {
	case errors.Is(err, domain.ErrEmailMissing):
		h.fail(c, name, returnTo, "no_email")
		return
	case errors.Is(err, domain.ErrRegistrationRequired):
		regErr := h.codec.SetCookie(c, RegisterStateCookie, RegisterState{
			Provider:          identity.Provider,
			ProviderAccountID: identity.AccountID,
			Email:             identity.Email,
			EmailVerified:     identity.EmailVerified,
			DisplayName:       identity.DisplayName,
			ReturnTo:          returnTo,
		})
		if regErr != nil {
			h.fail(c, name, returnTo, "internal")
			return
		}
		c.Redirect(http.StatusFound, "/oauth/register?provider="+url.QueryEscape(name))
		return
	case err != nil:
		_ = c.Error(err)
		logger.FromContext(ctx).Error("social resolve failed", zap.String("provider", name), zap.Error(err))
		h.fail(c, name, returnTo, "internal")
		return
	}

	result, err := h.auth.CreateSession(ctx, user, domain.SessionMeta{
		UserAgent: c.Request.UserAgent(),
		IPAddress: c.ClientIP(),
	})
	if err != nil {
		_ = c.Error(err)
		logger.FromContext(ctx).Error("social session create failed", zap.Error(err))
		h.fail(c, name, returnTo, "internal")
		return
	}

	h.sessions.Write(c, result.Token, service.SessionTTL)
	h.metrics.RecordLogin(ctx, name)
	c.Redirect(http.StatusFound, returnTo)
}

// fail redirects back into the site with a social_error code the frontend
// can surface.
func (h *Handler) fail(c *gin.Context, provider, returnTo, reason string) {
	target, err := url.Parse(returnTo)
	if err != nil || target.Path == "" {
		target = &url.URL{Path: "/"}
	}
	query := target.Query()
	query.Set("social_error", provider+"_"+reason)
	target.RawQuery = query.Encode()
	c.Redirect(http.StatusFound, target.String())
}

func (h *Handler) callbackURL(provider string) string {
	return h.baseURL + "/api/auth/social/" + provider + "/callback"
}

func joinScopes(p authconfig.Provider) string {
	return strings.Join(p.Scopes, " ")
}
