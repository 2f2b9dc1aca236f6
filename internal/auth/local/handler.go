package local

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/dreamland-studio/dreamland/internal/auth/domain"
	"github.com/dreamland-studio/dreamland/internal/auth/service"
	"github.com/dreamland-studio/dreamland/internal/auth/session"
	"github.com/dreamland-studio/dreamland/internal/auth/social"
	"github.com/dreamland-studio/dreamland/internal/observability/logger"
	"github.com/dreamland-studio/dreamland/internal/observability/metrics"
)

// Handler serves registration, login and session endpoints.
type Handler struct {
	auth     domain.Service
	sessions *session.Manager
	codec    *social.StateCodec
	metrics  *metrics.Metrics
}

// NewHandler builds the local auth handler.
func NewHandler(auth domain.Service, sessions *session.Manager, codec *social.StateCodec, m *metrics.Metrics) *Handler {
	return &Handler{auth: auth, sessions: sessions, codec: codec, metrics: m}
}

// RegisterRoutes mounts the account endpoints.
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.POST("/api/auth/register", h.register)
	r.POST("/api/auth/login", h.login)
	r.POST("/api/auth/logout", h.logout)
	r.POST("/api/auth/verify", h.verify)
	r.GET("/api/auth/me", h.me)
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Social   bool   `json:"social"`
}

func (h *Handler) register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	domainReq := domain.RegisterRequest{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	}

	// A social-staged registration carries its identity in the signed
	// cookie set by the callback, never in the request body.
	if req.Social {
		var staged social.RegisterState
		if err := h.codec.ReadCookie(c, social.RegisterStateCookie, &staged); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "social registration expired, start over"})
			return
		}
		domainReq.Email = staged.Email
		domainReq.Password = ""
		domainReq.Provider = &domain.ProviderLinkRequest{
			Provider:          staged.Provider,
			ProviderAccountID: staged.ProviderAccountID,
			Email:             staged.Email,
			EmailVerified:     staged.EmailVerified,
		}
	}

	ctx := c.Request.Context()
	user, err := h.auth.Register(ctx, domainReq)
	if err != nil {
		h.writeRegisterError(c, err)
		return
	}

	// Social accounts are signed in immediately; password accounts must
	// verify their email first.
	if domainReq.Provider != nil {
		result, err := h.auth.CreateSession(ctx, user, sessionMeta(c))
		if err != nil {
			_ = c.Error(err)
			logger.FromContext(ctx).Error("session after social registration", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		h.sessions.Write(c, result.Token, service.SessionTTL)
		h.metrics.RecordLogin(ctx, domainReq.Provider.Provider)
	}

	c.JSON(http.StatusCreated, userResponse(user))
}

type loginRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

func (h *Handler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	ctx := c.Request.Context()
	user, err := h.auth.Login(ctx, domain.LoginRequest{Identifier: req.Identifier, Password: req.Password})
	if err != nil {
		_ = c.Error(err)
		switch {
		case errors.Is(err, domain.ErrEmailNotVerified):
			c.JSON(http.StatusForbidden, gin.H{"error": "email not verified"})
		case errors.Is(err, domain.ErrPasswordLoginUnavailable):
			c.JSON(http.StatusForbidden, gin.H{"error": "account uses social login"})
		default:
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		}
		return
	}

	result, err := h.auth.CreateSession(ctx, user, sessionMeta(c))
	if err != nil {
		_ = c.Error(err)
		logger.FromContext(ctx).Error("session after login", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	h.sessions.Write(c, result.Token, service.SessionTTL)
	h.metrics.RecordLogin(ctx, "password")
	c.JSON(http.StatusOK, userResponse(user))
}

func (h *Handler) logout(c *gin.Context) {
	if err := h.auth.Logout(c.Request.Context(), h.sessions.Token(c)); err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	h.sessions.Clear(c)
	c.Status(http.StatusNoContent)
}

type verifyRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

func (h *Handler) verify(c *gin.Context) {
	var req verifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	user, err := h.auth.VerifyEmail(c.Request.Context(), req.Email, req.Code)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid verification code"})
		return
	}
	c.JSON(http.StatusOK, userResponse(user))
}

func (h *Handler) me(c *gin.Context) {
	user, ok := session.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}
	c.JSON(http.StatusOK, userResponse(user))
}

func (h *Handler) writeRegisterError(c *gin.Context, err error) {
	_ = c.Error(err)
	switch {
	case errors.Is(err, domain.ErrUserExists):
		c.JSON(http.StatusConflict, gin.H{"error": "username or email already taken"})
	case errors.Is(err, domain.ErrInvalidUsername),
		errors.Is(err, domain.ErrInvalidEmail),
		errors.Is(err, domain.ErrInvalidPassword):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		logger.FromContext(c.Request.Context()).Error("registration failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func sessionMeta(c *gin.Context) domain.SessionMeta {
	return domain.SessionMeta{
		UserAgent: c.Request.UserAgent(),
		IPAddress: c.ClientIP(),
	}
}

func userResponse(user *domain.User) gin.H {
	return gin.H{
		"account_id":     user.AccountID,
		"username":       user.Username,
		"email":          user.Email,
		"email_verified": user.EmailVerified,
		"created_at":     user.CreatedAt,
	}
}
