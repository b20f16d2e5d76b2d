package domain

import "time"

// RefreshToken is a single-use opaque credential.
//
// Security notes:
// - We never store the raw token in DB, only its digest key ("sha256:<hex>").
// - Redeeming a token deletes the row; a replay observes "not found".
// - Rows written before digest storage was introduced hold the raw token and
//   are migrated to digest form in place on first lookup.
type RefreshToken struct {
	TokenKey  string    `gorm:"column:token;primaryKey;size:128"`
	UserID    string    `gorm:"index;not null;size:36"`
	ExpiresAt time.Time `gorm:"index;not null"`
}

func (RefreshToken) TableName() string { return "refresh_tokens" }

func (t *RefreshToken) IsExpired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}

// TrustedDeviceToken lets a device that already passed a TOTP challenge skip
// repeat prompts. Digest-stored like refresh tokens, and bound to the
// (user, device identifier) pair: a token minted for one device never
// authorizes another.
type TrustedDeviceToken struct {
	TokenKey         string    `gorm:"column:token;primaryKey;size:128"`
	UserID           string    `gorm:"index:idx_trusted_user_device;not null;size:36"`
	DeviceIdentifier string    `gorm:"index:idx_trusted_user_device;not null;size:128"`
	ExpiresAt        time.Time `gorm:"not null"`
}

func (TrustedDeviceToken) TableName() string { return "trusted_two_factor_device_tokens" }

// UsedFileToken records a redeemed file-download token jti. Row existence
// means the token was already spent; the insert's duplicate-key failure is
// the replay signal.
type UsedFileToken struct {
	JTI       string    `gorm:"primaryKey;size:64"`
	ExpiresAt time.Time `gorm:"not null"`
}

func (UsedFileToken) TableName() string { return "used_attachment_download_tokens" }
