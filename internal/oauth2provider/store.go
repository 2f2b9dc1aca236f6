package oauth2provider

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

// Store persists clients, authorization codes and token records.
type Store interface {
	CreateClient(ctx context.Context, client *Client) error
	ClientByID(ctx context.Context, id string) (*Client, error)

	CreateAuthorizationCode(ctx context.Context, code *AuthorizationCode) error
	AuthorizationCodeByHash(ctx context.Context, codeHash string) (*AuthorizationCode, error)
	// MarkAuthorizationCodeUsed flips the used marker iff it is still unset.
	// Returns false when another redemption won the race.
	MarkAuthorizationCodeUsed(ctx context.Context, codeHash string, usedAt time.Time) (bool, error)

	CreateAccessToken(ctx context.Context, token *AccessToken) error
	AccessTokenByHash(ctx context.Context, tokenHash string) (*AccessToken, error)
	AccessTokenByRefreshHash(ctx context.Context, refreshHash string) (*AccessToken, error)
	// DeleteAccessToken removes the record and reports whether this call
	// deleted it. Concurrent rotation losers observe false.
	DeleteAccessToken(ctx context.Context, tokenHash string) (bool, error)
}

var ErrNotFound = errors.New("not found")

type gormStore struct {
	db *gorm.DB
}

// NewStore builds the gorm-backed store.
func NewStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) CreateClient(ctx context.Context, client *Client) error {
	return s.db.WithContext(ctx).Create(client).Error
}

func (s *gormStore) ClientByID(ctx context.Context, id string) (*Client, error) {
	var client Client
	err := s.db.WithContext(ctx).First(&client, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &client, nil
}

func (s *gormStore) CreateAuthorizationCode(ctx context.Context, code *AuthorizationCode) error {
	return s.db.WithContext(ctx).Create(code).Error
}

func (s *gormStore) AuthorizationCodeByHash(ctx context.Context, codeHash string) (*AuthorizationCode, error) {
	var code AuthorizationCode
	err := s.db.WithContext(ctx).First(&code, "code_hash = ?", codeHash).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &code, nil
}

func (s *gormStore) MarkAuthorizationCodeUsed(ctx context.Context, codeHash string, usedAt time.Time) (bool, error) {
	result := s.db.WithContext(ctx).
		Model(&AuthorizationCode{}).
		Where("code_hash = ? AND used_at IS NULL", codeHash).
		Update("used_at", usedAt)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (s *gormStore) CreateAccessToken(ctx context.Context, token *AccessToken) error {
	return s.db.WithContext(ctx).Create(token).Error
}

func (s *gormStore) AccessTokenByHash(ctx context.Context, tokenHash string) (*AccessToken, error) {
	var token AccessToken
	err := s.db.WithContext(ctx).First(&token, "token_hash = ?", tokenHash).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &token, nil
}

func (s *gormStore) AccessTokenByRefreshHash(ctx context.Context, refreshHash string) (*AccessToken, error) {
	var token AccessToken
	err := s.db.WithContext(ctx).First(&token, "refresh_token_hash = ?", refreshHash).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &token, nil
}

func (s *gormStore) DeleteAccessToken(ctx context.Context, tokenHash string) (bool, error) {
	result := s.db.WithContext(ctx).Delete(&AccessToken{}, "token_hash = ?", tokenHash)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}
