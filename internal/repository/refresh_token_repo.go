package repository

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"gorm.io/gorm"

	"vaultgate/internal/domain"
)

// ErrTokenNotFound covers unknown, already-consumed and expired opaque tokens.
var ErrTokenNotFound = errors.New("token not found")

// DigestKey maps a raw opaque token to its storage key. The prefix makes
// digest rows distinguishable from legacy plaintext rows.
func DigestKey(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return "sha256:" + hex.EncodeToString(sum[:])
}

// RefreshTokenRepository provides DB access for single-use refresh tokens.
type RefreshTokenRepository struct {
	db *gorm.DB
}

func NewRefreshTokenRepository(db *gorm.DB) *RefreshTokenRepository {
	return &RefreshTokenRepository{db: db}
}

func (r *RefreshTokenRepository) Create(ctx context.Context, raw, userID string, expiresAt time.Time) error {
	return r.db.WithContext(ctx).Create(&domain.RefreshToken{
		TokenKey:  DigestKey(raw),
		UserID:    userID,
		ExpiresAt: expiresAt,
	}).Error
}

// Consume redeems a refresh token: it resolves the row by digest key (falling
// back to the legacy plaintext key), deletes it, and returns it. The delete
// checks RowsAffected so two concurrent redeems of the same token cannot both
// win. Expired rows are deleted but still reported as not found.
func (r *RefreshTokenRepository) Consume(ctx context.Context, raw string, now time.Time) (*domain.RefreshToken, error) {
	var t domain.RefreshToken
	err := r.db.WithContext(ctx).
		First(&t, "token = ?", DigestKey(raw)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		err = r.db.WithContext(ctx).First(&t, "token = ?", raw).Error
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTokenNotFound
	}
	if err != nil {
		return nil, err
	}

	res := r.db.WithContext(ctx).Delete(&domain.RefreshToken{}, "token = ?", t.TokenKey)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrTokenNotFound
	}
	if t.IsExpired(now) {
		return nil, ErrTokenNotFound
	}
	return &t, nil
}

// Revoke deletes a token without redeeming it. Best effort: unknown tokens
// are not an error.
func (r *RefreshTokenRepository) Revoke(ctx context.Context, raw string) error {
	return r.db.WithContext(ctx).
		Where("token IN ?", []string{DigestKey(raw), raw}).
		Delete(&domain.RefreshToken{}).Error
}

func (r *RefreshTokenRepository) RevokeByUser(ctx context.Context, userID string) error {
	return r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Delete(&domain.RefreshToken{}).Error
}

func (r *RefreshTokenRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("expires_at < ?", now).
		Delete(&domain.RefreshToken{})
	return res.RowsAffected, res.Error
}
