package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"net/mail"
	"regexp"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/dreamland-studio/dreamland/internal/auth/domain"
	"github.com/dreamland-studio/dreamland/internal/auth/password"
	"github.com/dreamland-studio/dreamland/internal/clock"
	"github.com/dreamland-studio/dreamland/internal/observability/logger"
	"github.com/dreamland-studio/dreamland/internal/providers/email"
	"github.com/dreamland-studio/dreamland/internal/token"
)

// SessionTTL bounds browser session lifetime.
const SessionTTL = 7 * 24 * time.Hour

const sessionTokenBytes = 32

var usernameRe = regexp.MustCompile(`^[a-zA-Z0-9_\-.]{3,32}$`)

// Module wires the auth service.
var Module = fx.Module("auth.service",
	fx.Provide(New),
)

// Service implements domain.Service.
type Service struct {
	repo     domain.Repository
	sessions domain.SessionRepository
	mailer   email.Provider
	clock    clock.Clock
	node     *snowflake.Node
}

// New builds the auth service.
func New(
	repo domain.Repository,
	sessions domain.SessionRepository,
	mailer email.Provider,
	clk clock.Clock,
	node *snowflake.Node,
) domain.Service {
	return &Service{
		repo:     repo,
		sessions: sessions,
		mailer:   mailer,
		clock:    clk,
		node:     node,
	}
}

// Register creates an account. Social-staged registrations carry a provider
// link and skip the password and verification mail.
func (s *Service) Register(ctx context.Context, req domain.RegisterRequest) (*domain.User, error) {
	username := strings.TrimSpace(req.Username)
	emailAddr := strings.ToLower(strings.TrimSpace(req.Email))

	if !usernameRe.MatchString(username) {
		return nil, domain.ErrInvalidUsername
	}
	if _, err := mail.ParseAddress(emailAddr); err != nil {
		return nil, domain.ErrInvalidEmail
	}
	if req.Provider == nil && len(req.Password) < 8 {
		return nil, domain.ErrInvalidPassword
	}

	now := s.clock.Now()
	user := &domain.User{
		ID:        s.node.Generate(),
		AccountID: uuid.NewString(),
		Username:  username,
		Email:     emailAddr,
		CreatedAt: now,
		UpdatedAt: now,
	}

	var verificationCode string
	if req.Provider != nil {
		user.EmailVerified = req.Provider.EmailVerified
	} else {
		hash, err := password.Hash(req.Password)
		if err != nil {
			return nil, err
		}
		user.PasswordHash = &hash

		code, err := sixDigitCode()
		if err != nil {
			return nil, err
		}
		verificationCode = code
		user.VerificationCode = &verificationCode
	}

	err := s.repo.Transaction(ctx, func(tx domain.Repository) error {
		if err := tx.CreateUser(ctx, user); err != nil {
			return err
		}
		if req.Provider != nil {
			return tx.CreateProviderLink(ctx, &domain.UserProvider{
				ID:                s.node.Generate(),
				Provider:          req.Provider.Provider,
				ProviderAccountID: req.Provider.ProviderAccountID,
				UserID:            user.ID,
				Email:             strings.ToLower(strings.TrimSpace(req.Provider.Email)),
				CreatedAt:         now,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if verificationCode != "" {
		if err := s.sendVerificationMail(ctx, user, verificationCode); err != nil {
			// Without the mail the account can never verify; undo it so the
			// username and email stay claimable.
			if delErr := s.repo.DeleteUser(ctx, user.ID); delErr != nil {
				logger.FromContext(ctx).Error("rollback after mail failure",
					zap.String("account_id", user.AccountID), zap.Error(delErr))
			}
			return nil, fmt.Errorf("send verification mail: %w", err)
		}
	}

	logger.FromContext(ctx).Info("user registered",
		zap.String("account_id", user.AccountID),
		zap.Bool("social", req.Provider != nil),
	)
	return user, nil
}

// Login authenticates by username or email.
func (s *Service) Login(ctx context.Context, req domain.LoginRequest) (*domain.User, error) {
	identifier := strings.TrimSpace(req.Identifier)
	if strings.Contains(identifier, "@") {
		identifier = strings.ToLower(identifier)
	}

	user, err := s.repo.UserByIdentifier(ctx, identifier)
	if err != nil {
		return nil, domain.ErrInvalidCredentials
	}
	if user.PasswordHash == nil {
		return nil, domain.ErrPasswordLoginUnavailable
	}

	ok, err := password.Verify(req.Password, *user.PasswordHash)
	if err != nil || !ok {
		return nil, domain.ErrInvalidCredentials
	}
	if !user.EmailVerified {
		return nil, domain.ErrEmailNotVerified
	}
	return user, nil
}

// VerifyEmail marks the account verified when code matches.
func (s *Service) VerifyEmail(ctx context.Context, emailAddr, code string) (*domain.User, error) {
	user, err := s.repo.UserByEmail(ctx, strings.ToLower(strings.TrimSpace(emailAddr)))
	if err != nil {
		return nil, domain.ErrInvalidVerification
	}
	if user.EmailVerified {
		return user, nil
	}
	if user.VerificationCode == nil || !token.SafeEqual(*user.VerificationCode, strings.TrimSpace(code)) {
		return nil, domain.ErrInvalidVerification
	}

	err = s.repo.UpdateUserFields(ctx, user.ID, map[string]interface{}{
		"email_verified":    true,
		"verification_code": nil,
		"updated_at":        s.clock.Now(),
	})
	if err != nil {
		return nil, err
	}
	user.EmailVerified = true
	user.VerificationCode = nil
	return user, nil
}

// CreateSession mints a session token for user.
func (s *Service) CreateSession(ctx context.Context, user *domain.User, meta domain.SessionMeta) (*domain.SessionResult, error) {
	raw, err := token.Generate(sessionTokenBytes)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	session := &domain.Session{
		ID:        s.node.Generate(),
		UserID:    user.ID,
		TokenHash: token.Hash(raw),
		UserAgent: meta.UserAgent,
		IPAddress: meta.IPAddress,
		ExpiresAt: now.Add(SessionTTL),
		CreatedAt: now,
	}
	if err := s.sessions.CreateSession(ctx, session); err != nil {
		return nil, err
	}

	return &domain.SessionResult{Token: raw, Session: session, User: user}, nil
}

// Authenticate resolves a raw session token. Expired sessions are removed.
func (s *Service) Authenticate(ctx context.Context, rawToken string) (*domain.User, *domain.Session, error) {
	if rawToken == "" {
		return nil, nil, domain.ErrInvalidSession
	}

	session, err := s.sessions.SessionByTokenHash(ctx, token.Hash(rawToken))
	if err != nil {
		return nil, nil, domain.ErrInvalidSession
	}
	if !session.ExpiresAt.After(s.clock.Now()) {
		_ = s.sessions.DeleteSessionByID(ctx, session.ID)
		return nil, nil, domain.ErrInvalidSession
	}

	user, err := s.repo.UserByID(ctx, session.UserID)
	if err != nil {
		return nil, nil, domain.ErrInvalidSession
	}
	return user, session, nil
}

// Logout removes the session behind rawToken. Unknown tokens succeed.
func (s *Service) Logout(ctx context.Context, rawToken string) error {
	if rawToken == "" {
		return nil
	}
	return s.sessions.DeleteSessionByTokenHash(ctx, token.Hash(rawToken))
}

func (s *Service) sendVerificationMail(ctx context.Context, user *domain.User, code string) error {
	body := fmt.Sprintf(
		"<p>Hi %s,</p><p>Your verification code is <strong>%s</strong>.</p>",
		user.Username, code,
	)
	return s.mailer.Send(ctx, []string{user.Email}, "Verify your email", body)
}

func sixDigitCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
