package oauth2provider

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/dreamland-studio/dreamland/internal/auth/session"
	"github.com/dreamland-studio/dreamland/internal/config"
	"github.com/dreamland-studio/dreamland/internal/observability/logger"
	"github.com/dreamland-studio/dreamland/internal/token"
)

// Handler serves the authorization server endpoints.
type Handler struct {
	service    *Service
	adminToken string
}

// NewHandler builds the authorization server handler.
func NewHandler(service *Service, cfg config.Config) *Handler {
	return &Handler{service: service, adminToken: cfg.AdminToken}
}

// RegisterRoutes mounts the OAuth endpoints.
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/api/oauth/authorize", h.authorizePage)
	r.POST("/api/oauth/authorize", h.authorizeDecision)
	r.POST("/api/oauth/token", h.exchange)
	r.GET("/api/oauth/userinfo", h.userinfo)
	r.POST("/api/oauth/clients", h.createClient)
}

func (h *Handler) authorizePage(c *gin.Context) {
	if _, ok := session.CurrentUser(c); !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "login_required"})
		return
	}

	consent, err := h.service.AuthorizeContext(c.Request.Context(), AuthorizeQuery{
		ClientID:     c.Query("client_id"),
		RedirectURI:  c.Query("redirect_uri"),
		Scope:        c.Query("scope"),
		State:        c.Query("state"),
		ResponseType: c.Query("response_type"),
	})
	if err != nil {
		h.writeAuthorizeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"client_id":    consent.Client.ID,
		"client_name":  consent.Client.Name,
		"redirect_uri": consent.RedirectURI,
		"scope":        consent.Scope,
		"state":        consent.State,
	})
}

type decisionRequest struct {
	ClientID    string `json:"clientId"`
	RedirectURI string `json:"redirectUri"`
	Scope       string `json:"scope"`
	State       string `json:"state"`
	Decision    string `json:"decision"`
}

func (h *Handler) authorizeDecision(c *gin.Context) {
	user, ok := session.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "login_required"})
		return
	}

	var req decisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.writeAuthorizeError(c, ErrInvalidRequest)
		return
	}

	redirectURL, err := h.service.Decide(c.Request.Context(), user.ID, DecisionRequest{
		ClientID:    req.ClientID,
		RedirectURI: req.RedirectURI,
		Scope:       req.Scope,
		State:       req.State,
		Decision:    req.Decision,
	})
	if err != nil {
		h.writeAuthorizeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"redirectUrl": redirectURL})
}

type tokenRequest struct {
	GrantType    string `json:"grant_type" form:"grant_type"`
	ClientID     string `json:"client_id" form:"client_id"`
	ClientSecret string `json:"client_secret" form:"client_secret"`
	Code         string `json:"code" form:"code"`
	RedirectURI  string `json:"redirect_uri" form:"redirect_uri"`
	RefreshToken string `json:"refresh_token" form:"refresh_token"`
}

func (h *Handler) exchange(c *gin.Context) {
	req, ok := parseTokenRequest(c)
	if !ok {
		writeOAuthError(c, ErrInvalidRequest)
		return
	}

	// RFC 6749 also allows client credentials via HTTP basic auth.
	if basicID, basicSecret, ok := c.Request.BasicAuth(); ok {
		req.ClientID = basicID
		req.ClientSecret = basicSecret
	}

	resp, err := h.service.Exchange(c.Request.Context(), ExchangeRequest{
		GrantType:    req.GrantType,
		ClientID:     req.ClientID,
		ClientSecret: req.ClientSecret,
		Code:         req.Code,
		RedirectURI:  req.RedirectURI,
		RefreshToken: req.RefreshToken,
	})
	if err != nil {
		writeOAuthError(c, err)
		return
	}

	c.Header("Cache-Control", "no-store")
	c.Header("Pragma", "no-cache")
	c.JSON(http.StatusOK, resp)
}

func parseTokenRequest(c *gin.Context) (tokenRequest, bool) {
	var req tokenRequest
	contentType := c.ContentType()
	switch {
	case strings.HasPrefix(contentType, "application/json"):
		if err := json.NewDecoder(c.Request.Body).Decode(&req); err != nil {
			return req, false
		}
	default:
		if err := c.Request.ParseForm(); err != nil {
			return req, false
		}
		req.GrantType = c.Request.PostFormValue("grant_type")
		req.ClientID = c.Request.PostFormValue("client_id")
		req.ClientSecret = c.Request.PostFormValue("client_secret")
		req.Code = c.Request.PostFormValue("code")
		req.RedirectURI = c.Request.PostFormValue("redirect_uri")
		req.RefreshToken = c.Request.PostFormValue("refresh_token")
	}
	return req, true
}

func (h *Handler) userinfo(c *gin.Context) {
	raw := bearerToken(c.GetHeader("Authorization"))
	resp, err := h.service.UserInfo(c.Request.Context(), raw)
	if err != nil {
		_ = c.Error(err)
		c.Header("WWW-Authenticate", `Bearer error="invalid_token"`)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid_token"})
		return
	}
	c.JSON(http.StatusOK, resp)
}

type createClientRequest struct {
	Name         string   `json:"name"`
	RedirectURIs []string `json:"redirectUris"`
	Scopes       string   `json:"scopes"`
}

func (h *Handler) createClient(c *gin.Context) {
	if h.adminToken == "" || !token.SafeEqual(bearerToken(c.GetHeader("Authorization")), h.adminToken) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req createClientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	result, err := h.service.CreateClient(c.Request.Context(), CreateClientRequest{
		Name:         req.Name,
		RedirectURIs: req.RedirectURIs,
		Scopes:       req.Scopes,
	})
	if errors.Is(err, ErrInvalidRequest) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name and redirectUris are required"})
		return
	}
	if err != nil {
		logger.FromContext(c.Request.Context()).Error("client registration failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusCreated, result)
}

// writeAuthorizeError maps consent flow errors for the authorize page and
// decision endpoints.
func (h *Handler) writeAuthorizeError(c *gin.Context, err error) {
	_ = c.Error(err)
	switch {
	case errors.Is(err, ErrInvalidRequest):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
	case errors.Is(err, ErrInvalidClient):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_client"})
	case errors.Is(err, ErrInvalidRedirectURI):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_redirect"})
	default:
		logger.FromContext(c.Request.Context()).Error("authorize failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "server_error"})
	}
}

// writeOAuthError emits the standard token endpoint error body.
func writeOAuthError(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Header("Cache-Control", "no-store")
	c.Header("Pragma", "no-cache")

	code := errorCode(err)
	status := http.StatusBadRequest
	switch code {
	case "invalid_client":
		status = http.StatusUnauthorized
		c.Header("WWW-Authenticate", `Basic realm="oauth"`)
	case "server_error":
		status = http.StatusInternalServerError
		logger.FromContext(c.Request.Context()).Error("token endpoint failed", zap.Error(err))
	}
	c.JSON(status, gin.H{"error": code})
}

func bearerToken(header string) string {
	const prefix = "Bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}
