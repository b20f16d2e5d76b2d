package ratelimit

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"gorm.io/gorm"

	"vaultgate/internal/config"
	"vaultgate/internal/domain"
)

// Engine enforces the login lockout and the fixed-window request budgets.
//
// All counters live in the database rather than in process memory, so the
// decisions stay correct across restarts and across replicas sharing the
// store. Every increment is a single conditional upsert: the database is the
// arbiter, and concurrent requests can never over-admit past a limit.
type Engine struct {
	db  *gorm.DB
	cfg config.RateLimits

	now func() time.Time

	mu                sync.Mutex
	lastLoginCleanup  time.Time
	lastWindowCleanup time.Time
}

func NewEngine(db *gorm.DB, cfg config.RateLimits) *Engine {
	return &Engine{db: db, cfg: cfg, now: time.Now}
}

// CheckLoginAttempt reports whether the client identifier is currently locked
// out, and for how much longer. An expired lockout is cleared on observation
// so the next failure starts a fresh count.
func (e *Engine) CheckLoginAttempt(ctx context.Context, ip string) (bool, time.Duration, error) {
	var attempt domain.LoginAttempt
	err := e.db.WithContext(ctx).First(&attempt, "ip = ?", ip).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, 0, nil
	}
	if err != nil {
		return false, 0, err
	}
	if attempt.LockedUntil == nil {
		return false, 0, nil
	}
	now := e.now()
	if now.Before(*attempt.LockedUntil) {
		return true, attempt.LockedUntil.Sub(now), nil
	}
	// Lockout served; forget the history.
	err = e.db.WithContext(ctx).Delete(&domain.LoginAttempt{}, "ip = ?", ip).Error
	return false, 0, err
}

// RecordFailedLogin bumps the failure counter and arms the lockout once the
// threshold is reached. Reports whether this failure is at or past the
// threshold, plus the lockout duration, so the caller can answer the locking
// attempt itself with a retry delay. The increment is an atomic upsert so two
// racing failures both count.
func (e *Engine) RecordFailedLogin(ctx context.Context, ip string) (bool, time.Duration, error) {
	now := e.now().UTC()
	res := e.db.WithContext(ctx).Exec(
		`INSERT INTO login_attempts_ip (ip, attempts, locked_until, updated_at)
		 VALUES (?, 1, NULL, ?)
		 ON CONFLICT(ip) DO UPDATE SET
		   attempts = login_attempts_ip.attempts + 1,
		   updated_at = excluded.updated_at`,
		ip, now,
	)
	if res.Error != nil {
		return false, 0, res.Error
	}

	var attempt domain.LoginAttempt
	if err := e.db.WithContext(ctx).First(&attempt, "ip = ?", ip).Error; err != nil {
		return false, 0, err
	}
	if attempt.Attempts >= e.cfg.LoginMaxAttempts {
		// Re-armed on every failure at or past the threshold: hammering a
		// locked identifier keeps extending the lockout.
		lockedUntil := now.Add(e.cfg.LoginLockout)
		err := e.db.WithContext(ctx).Model(&domain.LoginAttempt{}).
			Where("ip = ?", ip).
			Update("locked_until", lockedUntil).Error
		if err != nil {
			return false, 0, err
		}
		e.maybeCleanupLogins(ctx, now)
		return true, e.cfg.LoginLockout, nil
	}

	e.maybeCleanupLogins(ctx, now)
	return false, 0, nil
}

// ClearLoginAttempts forgets the failure history after a successful login.
func (e *Engine) ClearLoginAttempts(ctx context.Context, ip string) error {
	return e.db.WithContext(ctx).Delete(&domain.LoginAttempt{}, "ip = ?", ip).Error
}

// ConsumeWriteBudget spends one unit of the per-identity write budget.
// Returns whether the request is admitted and, when it is not, the seconds
// until the current window rolls over.
func (e *Engine) ConsumeWriteBudget(ctx context.Context, identifier string) (bool, int64, error) {
	return e.consume(ctx, identifier+":write", e.cfg.WriteRequestsPerWindow)
}

// ConsumeSyncReadBudget spends one unit of the sync-read budget, which is
// deliberately far looser than the write budget.
func (e *Engine) ConsumeSyncReadBudget(ctx context.Context, identifier string) (bool, int64, error) {
	return e.consume(ctx, identifier+":sync", e.cfg.SyncRequestsPerWindow)
}

func (e *Engine) consume(ctx context.Context, identifier string, max int) (bool, int64, error) {
	now := e.now().UTC()
	windowStart := now.Unix() - now.Unix()%e.cfg.WindowSeconds
	retryAfter := windowStart + e.cfg.WindowSeconds - now.Unix()

	// The WHERE clause on the conflict update makes the row refuse to count
	// past max: a denied request affects zero rows.
	res := e.db.WithContext(ctx).Exec(
		`INSERT INTO api_rate_limits (identifier, window_start, count)
		 VALUES (?, ?, 1)
		 ON CONFLICT(identifier, window_start) DO UPDATE SET
		   count = api_rate_limits.count + 1
		 WHERE api_rate_limits.count < ?`,
		identifier, windowStart, max,
	)
	if res.Error != nil {
		return false, 0, res.Error
	}
	if res.RowsAffected == 0 {
		return false, retryAfter, nil
	}

	e.maybeCleanupWindows(ctx, now)
	return true, 0, nil
}

// SweepExpired deletes stale counters. The cleanup binary calls this on a
// schedule; request paths also trigger it probabilistically so a server that
// never runs the sweeper still does not grow without bound.
func (e *Engine) SweepExpired(ctx context.Context, now time.Time) (int64, error) {
	var total int64

	loginCutoff := now.Add(-e.cfg.LoginRetention)
	res := e.db.WithContext(ctx).
		Where("updated_at < ? AND (locked_until IS NULL OR locked_until < ?)", loginCutoff, now).
		Delete(&domain.LoginAttempt{})
	if res.Error != nil {
		return total, res.Error
	}
	total += res.RowsAffected

	windowCutoff := now.Unix() - e.cfg.WindowRetentionCount*e.cfg.WindowSeconds
	res = e.db.WithContext(ctx).
		Where("window_start < ?", windowCutoff).
		Delete(&domain.RateLimitWindow{})
	if res.Error != nil {
		return total, res.Error
	}
	total += res.RowsAffected

	return total, nil
}

// maybeCleanupLogins opportunistically sweeps stale login rows. Probabilistic
// and time-gated per instance so the hot path almost never pays the delete.
func (e *Engine) maybeCleanupLogins(ctx context.Context, now time.Time) {
	if rand.Float64() >= e.cfg.CleanupProbability {
		return
	}
	e.mu.Lock()
	due := now.Sub(e.lastLoginCleanup) >= e.cfg.LoginCleanupInterval
	if due {
		e.lastLoginCleanup = now
	}
	e.mu.Unlock()
	if !due {
		return
	}
	cutoff := now.Add(-e.cfg.LoginRetention)
	e.db.WithContext(ctx).
		Where("updated_at < ? AND (locked_until IS NULL OR locked_until < ?)", cutoff, now).
		Delete(&domain.LoginAttempt{})
}

func (e *Engine) maybeCleanupWindows(ctx context.Context, now time.Time) {
	if rand.Float64() >= e.cfg.CleanupProbability {
		return
	}
	e.mu.Lock()
	due := now.Sub(e.lastWindowCleanup) >= e.cfg.WindowCleanupInterval
	if due {
		e.lastWindowCleanup = now
	}
	e.mu.Unlock()
	if !due {
		return
	}
	cutoff := now.Unix() - e.cfg.WindowRetentionCount*e.cfg.WindowSeconds
	e.db.WithContext(ctx).
		Where("window_start < ?", cutoff).
		Delete(&domain.RateLimitWindow{})
}
