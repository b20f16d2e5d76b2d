package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"vaultgate/internal/domain"
)

// UsedTokenRepository records spent single-use download token jtis.
type UsedTokenRepository struct {
	db *gorm.DB
}

func NewUsedTokenRepository(db *gorm.DB) *UsedTokenRepository {
	return &UsedTokenRepository{db: db}
}

// MarkUsed claims the jti. It returns false when the jti was already spent:
// the insert runs with ON CONFLICT DO NOTHING and the claim is decided by
// whether a row was actually written, so concurrent redeems of the same
// token resolve to exactly one winner.
func (r *UsedTokenRepository) MarkUsed(ctx context.Context, jti string, expiresAt time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).
		Create(&domain.UsedFileToken{JTI: jti, ExpiresAt: expiresAt})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *UsedTokenRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("expires_at < ?", now).
		Delete(&domain.UsedFileToken{})
	return res.RowsAffected, res.Error
}
