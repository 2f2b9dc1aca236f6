package session

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"

	"github.com/dreamland-studio/dreamland/internal/auth/domain"
	"github.com/dreamland-studio/dreamland/internal/config"
)

// DefaultCookieName is the browser session cookie.
const DefaultCookieName = "dl_session"

const (
	userKey    = "session.user"
	sessionKey = "session.session"
)

// Module wires the cookie manager.
var Module = fx.Module("auth.session",
	fx.Provide(NewManager),
)

// Manager reads and writes the session cookie and resolves the user behind
// it.
type Manager struct {
	service domain.Service
	secure  bool
}

// NewManager builds the session cookie manager.
func NewManager(svc domain.Service, cfg config.Config) *Manager {
	return &Manager{service: svc, secure: cfg.AuthCookieSecure}
}

// Write sets the session cookie for maxAge derived from ttl.
func (m *Manager) Write(c *gin.Context, token string, ttl time.Duration) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(DefaultCookieName, token, int(ttl.Seconds()), "/", "", m.secure, true)
}

// Clear removes the session cookie.
func (m *Manager) Clear(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(DefaultCookieName, "", -1, "/", "", m.secure, true)
}

// Token returns the raw cookie value, or empty when absent.
func (m *Manager) Token(c *gin.Context) string {
	token, err := c.Cookie(DefaultCookieName)
	if err != nil {
		return ""
	}
	return token
}

// Middleware resolves the session cookie into the request context. Requests
// without a valid session pass through unauthenticated.
func (m *Manager) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := m.Token(c)
		if token == "" {
			c.Next()
			return
		}
		user, sess, err := m.service.Authenticate(c.Request.Context(), token)
		if err != nil {
			c.Next()
			return
		}
		c.Set(userKey, user)
		c.Set(sessionKey, sess)
		c.Next()
	}
}

// CurrentUser returns the authenticated user, if any.
func CurrentUser(c *gin.Context) (*domain.User, bool) {
	value, ok := c.Get(userKey)
	if !ok {
		return nil, false
	}
	user, ok := value.(*domain.User)
	return user, ok
}

// CurrentSession returns the resolved session, if any.
func CurrentSession(c *gin.Context) (*domain.Session, bool) {
	value, ok := c.Get(sessionKey)
	if !ok {
		return nil, false
	}
	sess, ok := value.(*domain.Session)
	return sess, ok
}
