package domain

import "time"

// LoginAttempt tracks failed password-grant attempts per client identifier
// (forwarded-for aware IP). Created on first failure, deleted on success or
// once an expired lockout is observed.
type LoginAttempt struct {
	IP          string     `gorm:"primaryKey;size:64"`
	Attempts    int        `gorm:"not null"`
	LockedUntil *time.Time ``
	UpdatedAt   time.Time  `gorm:"not null"`
}

func (LoginAttempt) TableName() string { return "login_attempts_ip" }

// RateLimitWindow is one fixed-window counter row per (identifier, window).
// Count only ever moves up within a window; the conditional upsert in the
// rate-limit engine guarantees it never passes the configured maximum.
type RateLimitWindow struct {
	Identifier  string `gorm:"primaryKey;size:160"`
	WindowStart int64  `gorm:"primaryKey;index"`
	Count       int    `gorm:"not null"`
}

func (RateLimitWindow) TableName() string { return "api_rate_limits" }
