package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"vaultgate/internal/domain"
)

// TrustedDeviceRepository stores long-lived "remember this device" tokens
// that bypass the TOTP challenge.
type TrustedDeviceRepository struct {
	db *gorm.DB
}

func NewTrustedDeviceRepository(db *gorm.DB) *TrustedDeviceRepository {
	return &TrustedDeviceRepository{db: db}
}

func (r *TrustedDeviceRepository) Create(ctx context.Context, raw, userID, deviceID string, expiresAt time.Time) error {
	return r.db.WithContext(ctx).Create(&domain.TrustedDeviceToken{
		TokenKey:         DigestKey(raw),
		UserID:           userID,
		DeviceIdentifier: deviceID,
		ExpiresAt:        expiresAt,
	}).Error
}

// Valid reports whether the presented token authorizes a TOTP bypass for this
// exact (user, device) pair. Legacy plaintext rows are honored and rewritten
// to digest form in place. Unlike refresh tokens these are reusable until
// expiry, so a hit does not consume the row.
func (r *TrustedDeviceRepository) Valid(ctx context.Context, raw, userID, deviceID string, now time.Time) (bool, error) {
	var t domain.TrustedDeviceToken
	legacy := false
	err := r.db.WithContext(ctx).First(&t, "token = ?", DigestKey(raw)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		legacy = true
		err = r.db.WithContext(ctx).First(&t, "token = ?", raw).Error
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if t.UserID != userID || t.DeviceIdentifier != deviceID || now.After(t.ExpiresAt) {
		return false, nil
	}
	if legacy {
		err = r.db.WithContext(ctx).Model(&domain.TrustedDeviceToken{}).
			Where("token = ?", raw).
			Update("token", DigestKey(raw)).Error
		if err != nil {
			return false, err
		}
	}
	return true, nil
}

func (r *TrustedDeviceRepository) DeleteByUser(ctx context.Context, userID string) error {
	return r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Delete(&domain.TrustedDeviceToken{}).Error
}

func (r *TrustedDeviceRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("expires_at < ?", now).
		Delete(&domain.TrustedDeviceToken{})
	return res.RowsAffected, res.Error
}
