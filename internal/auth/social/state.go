package social

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dreamland-studio/dreamland/internal/clock"
	"github.com/dreamland-studio/dreamland/internal/token"
)

// Social flow state lives in short-lived signed cookies, so a callback can be
// validated without server-side storage.
const (
	LoginStateCookie    = "dl_social_state"
	RegisterStateCookie = "dl_social_reg_state"

	StateTTL = 10 * time.Minute
)

var (
	ErrStateInvalid = errors.New("invalid state")
	ErrStateExpired = errors.New("state expired")
)

// LoginState is staged before redirecting to the provider.
type LoginState struct {
	Provider string `json:"provider"`
	State    string `json:"state"`
	ReturnTo string `json:"return_to"`
}

// RegisterState is staged when a callback identity has no account yet.
type RegisterState struct {
	Provider          string `json:"provider"`
	ProviderAccountID string `json:"provider_account_id"`
	Email             string `json:"email"`
	EmailVerified     bool   `json:"email_verified"`
	DisplayName       string `json:"display_name"`
	ReturnTo          string `json:"return_to"`
}

type envelope struct {
	ExpiresAt int64           `json:"exp"`
	Data      json.RawMessage `json:"data"`
}

// StateCodec signs and verifies cookie-borne flow state.
type StateCodec struct {
	secret []byte
	clock  clock.Clock
	secure bool
}

// NewStateCodec builds a codec over the shared signing secret.
func NewStateCodec(secret string, clk clock.Clock, secure bool) *StateCodec {
	return &StateCodec{secret: []byte(secret), clock: clk, secure: secure}
}

// Encode serializes payload with an expiry and signs it.
func (c *StateCodec) Encode(payload interface{}, ttl time.Duration) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	body, err := json.Marshal(envelope{
		ExpiresAt: c.clock.Now().Add(ttl).Unix(),
		Data:      data,
	})
	if err != nil {
		return "", err
	}

	encoded := base64.RawURLEncoding.EncodeToString(body)
	return encoded + "." + c.sign(encoded), nil
}

// Decode verifies the signature and expiry, then unmarshals into out.
func (c *StateCodec) Decode(value string, out interface{}) error {
	encoded, mac, found := strings.Cut(value, ".")
	if !found || encoded == "" {
		return ErrStateInvalid
	}
	if !token.SafeEqual(c.sign(encoded), mac) {
		return ErrStateInvalid
	}

	body, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return ErrStateInvalid
	}
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return ErrStateInvalid
	}
	if c.clock.Now().Unix() > env.ExpiresAt {
		return ErrStateExpired
	}
	return json.Unmarshal(env.Data, out)
}

// SetCookie writes a signed state cookie.
func (c *StateCodec) SetCookie(g *gin.Context, name string, payload interface{}) error {
	value, err := c.Encode(payload, StateTTL)
	if err != nil {
		return err
	}
	g.SetSameSite(http.SameSiteLaxMode)
	g.SetCookie(name, value, int(StateTTL.Seconds()), "/", "", c.secure, true)
	return nil
}

// ReadCookie decodes and clears a state cookie.
func (c *StateCodec) ReadCookie(g *gin.Context, name string, out interface{}) error {
	value, err := g.Cookie(name)
	if err != nil {
		return ErrStateInvalid
	}
	c.ClearCookie(g, name)
	return c.Decode(value, out)
}

// ClearCookie removes a state cookie.
func (c *StateCodec) ClearCookie(g *gin.Context, name string) {
	g.SetSameSite(http.SameSiteLaxMode)
	g.SetCookie(name, "", -1, "/", "", c.secure, true)
}

func (c *StateCodec) sign(encoded string) string {
	mac := hmac.New(sha256.New, c.secret)
	mac.Write([]byte(encoded))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// sanitizeReturnTo restricts post-login redirects to local paths.
func sanitizeReturnTo(returnTo string) string {
	if !strings.HasPrefix(returnTo, "/") || strings.HasPrefix(returnTo, "//") {
		return "/"
	}
	return returnTo
}
