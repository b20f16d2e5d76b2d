package domain

import "time"

// Device is a (user, device identifier) pair upserted on every successful
// password-grant login that presents a device identifier. Existence implies
// "known device" for the passive probe endpoint.
type Device struct {
	UserID           string    `json:"user_id" gorm:"primaryKey;size:36"`
	DeviceIdentifier string    `json:"identifier" gorm:"primaryKey;size:128"`
	Name             string    `json:"name" gorm:"not null"`
	Type             int       `json:"type" gorm:"not null"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at" gorm:"index"`
}
