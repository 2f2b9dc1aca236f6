package social

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"

	"github.com/dreamland-studio/dreamland/internal/auth/domain"
	"github.com/dreamland-studio/dreamland/internal/clock"
	"github.com/dreamland-studio/dreamland/internal/observability/logger"
)

// Resolver maps a provider identity onto a local account. It never creates
// accounts itself; unknown identities are sent through explicit registration.
type Resolver struct {
	repo  domain.Repository
	node  *snowflake.Node
	clock clock.Clock
}

// NewResolver builds the identity resolver.
func NewResolver(repo domain.Repository, node *snowflake.Node, clk clock.Clock) *Resolver {
	return &Resolver{repo: repo, node: node, clock: clk}
}

// Resolve finds the user behind id.
//
// Resolution order: an existing provider link wins; otherwise a verified
// email match links the identity to the existing account. Anything else
// returns ErrRegistrationRequired. A provider-verified email upgrades the
// local verified flag, never the reverse.
func (r *Resolver) Resolve(ctx context.Context, id Identity) (*domain.User, error) {
	link, err := r.repo.ProviderLink(ctx, id.Provider, id.AccountID)
	if err == nil {
		user, err := r.repo.UserByID(ctx, link.UserID)
		if err != nil {
			return nil, err
		}
		return user, r.upgradeVerified(ctx, user, id)
	}
	if !errors.Is(err, domain.ErrProviderLinkNotFound) {
		return nil, err
	}

	email := strings.ToLower(strings.TrimSpace(id.Email))
	if email == "" {
		return nil, domain.ErrEmailMissing
	}

	user, err := r.repo.UserByEmail(ctx, email)
	if errors.Is(err, domain.ErrUserNotFound) {
		return nil, domain.ErrRegistrationRequired
	}
	if err != nil {
		return nil, err
	}

	err = r.repo.CreateProviderLink(ctx, &domain.UserProvider{
		ID:                r.node.Generate(),
		Provider:          id.Provider,
		ProviderAccountID: id.AccountID,
		UserID:            user.ID,
		Email:             email,
		CreatedAt:         r.clock.Now(),
	})
	if err != nil {
		return nil, err
	}

	logger.FromContext(ctx).Info("provider linked to existing account",
		zap.String("provider", id.Provider),
		zap.String("account_id", user.AccountID),
	)
	return user, r.upgradeVerified(ctx, user, id)
}

func (r *Resolver) upgradeVerified(ctx context.Context, user *domain.User, id Identity) error {
	if user.EmailVerified || !id.EmailVerified {
		return nil
	}
	if !strings.EqualFold(user.Email, id.Email) {
		return nil
	}
	err := r.repo.UpdateUserFields(ctx, user.ID, map[string]interface{}{
		"email_verified":    true,
		"verification_code": nil,
		"updated_at":        r.clock.Now(),
	})
	if err != nil {
		return err
	}
	user.EmailVerified = true
	user.VerificationCode = nil
	return nil
}
