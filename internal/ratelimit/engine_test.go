package ratelimit

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gormsqlite "gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	_ "modernc.org/sqlite"

	"vaultgate/internal/config"
	"vaultgate/internal/domain"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(
		gormsqlite.New(gormsqlite.Config{DriverName: "sqlite", DSN: ":memory:"}),
		&gorm.Config{Logger: logger.Default.LogMode(logger.Silent)},
	)
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&domain.LoginAttempt{}, &domain.RateLimitWindow{}))
	return db
}

func testLimits() config.RateLimits {
	return config.RateLimits{
		LoginMaxAttempts:       10,
		LoginLockout:           2 * time.Minute,
		WriteRequestsPerWindow: 120,
		SyncRequestsPerWindow:  1000,
		WindowSeconds:          60,
		CleanupProbability:     0, // keep the hot paths deterministic in tests
		LoginCleanupInterval:   10 * time.Minute,
		LoginRetention:         30 * 24 * time.Hour,
		WindowCleanupInterval:  5 * time.Minute,
		WindowRetentionCount:   120,
	}
}

func TestLoginLockoutAfterThreshold(t *testing.T) {
	ctx := context.Background()
	e := NewEngine(newTestDB(t), testLimits())

	for i := 0; i < 9; i++ {
		locking, _, err := e.RecordFailedLogin(ctx, "1.2.3.4")
		require.NoError(t, err)
		assert.False(t, locking, "attempt %d must not report locked", i+1)
		locked, _, err := e.CheckLoginAttempt(ctx, "1.2.3.4")
		require.NoError(t, err)
		assert.False(t, locked, "attempt %d should not lock", i+1)
	}

	// The tenth failure is the one reporting the lockout, retry delay
	// included, so the caller can answer 429 on that very request.
	locking, lockFor, err := e.RecordFailedLogin(ctx, "1.2.3.4")
	require.NoError(t, err)
	assert.True(t, locking)
	assert.Equal(t, 2*time.Minute, lockFor)

	locked, retryAfter, err := e.CheckLoginAttempt(ctx, "1.2.3.4")
	require.NoError(t, err)
	assert.True(t, locked)
	assert.Greater(t, retryAfter, time.Duration(0))
	assert.LessOrEqual(t, retryAfter, 2*time.Minute)
}

func TestLoginLockoutExpiresAndResets(t *testing.T) {
	ctx := context.Background()
	e := NewEngine(newTestDB(t), testLimits())

	now := time.Now().UTC()
	e.now = func() time.Time { return now }

	for i := 0; i < 10; i++ {
		_, _, err := e.RecordFailedLogin(ctx, "1.2.3.4")
		require.NoError(t, err)
	}
	locked, _, err := e.CheckLoginAttempt(ctx, "1.2.3.4")
	require.NoError(t, err)
	require.True(t, locked)

	now = now.Add(2*time.Minute + time.Second)
	locked, _, err = e.CheckLoginAttempt(ctx, "1.2.3.4")
	require.NoError(t, err)
	assert.False(t, locked)

	// History was cleared, one more failure must not re-lock.
	_, _, err = e.RecordFailedLogin(ctx, "1.2.3.4")
	require.NoError(t, err)
	locked, _, err = e.CheckLoginAttempt(ctx, "1.2.3.4")
	require.NoError(t, err)
	assert.False(t, locked)
}

func TestClearLoginAttempts(t *testing.T) {
	ctx := context.Background()
	e := NewEngine(newTestDB(t), testLimits())

	for i := 0; i < 9; i++ {
		_, _, err := e.RecordFailedLogin(ctx, "1.2.3.4")
		require.NoError(t, err)
	}
	require.NoError(t, e.ClearLoginAttempts(ctx, "1.2.3.4"))

	// Fresh count after a success: nine more failures stay unlocked.
	for i := 0; i < 9; i++ {
		_, _, err := e.RecordFailedLogin(ctx, "1.2.3.4")
		require.NoError(t, err)
	}
	locked, _, err := e.CheckLoginAttempt(ctx, "1.2.3.4")
	require.NoError(t, err)
	assert.False(t, locked)
}

func TestLockoutIsPerIdentifier(t *testing.T) {
	ctx := context.Background()
	e := NewEngine(newTestDB(t), testLimits())

	for i := 0; i < 10; i++ {
		_, _, err := e.RecordFailedLogin(ctx, "1.2.3.4")
		require.NoError(t, err)
	}
	locked, _, err := e.CheckLoginAttempt(ctx, "5.6.7.8")
	require.NoError(t, err)
	assert.False(t, locked)
}

func TestWriteBudgetExhaustion(t *testing.T) {
	ctx := context.Background()
	e := NewEngine(newTestDB(t), testLimits())

	for i := 0; i < 120; i++ {
		ok, _, err := e.ConsumeWriteBudget(ctx, "user:ip")
		require.NoError(t, err)
		require.True(t, ok, "request %d should be admitted", i+1)
	}

	ok, retryAfter, err := e.ConsumeWriteBudget(ctx, "user:ip")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Greater(t, retryAfter, int64(0))
	assert.LessOrEqual(t, retryAfter, int64(60))

	// A different identifier has its own budget.
	ok, _, err = e.ConsumeWriteBudget(ctx, "other:ip")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestBudgetResetsNextWindow(t *testing.T) {
	ctx := context.Background()
	limits := testLimits()
	limits.WriteRequestsPerWindow = 2
	e := NewEngine(newTestDB(t), limits)

	now := time.Unix(1_700_000_000, 0).UTC()
	e.now = func() time.Time { return now }

	for i := 0; i < 2; i++ {
		ok, _, err := e.ConsumeWriteBudget(ctx, "user:ip")
		require.NoError(t, err)
		require.True(t, ok)
	}
	ok, _, err := e.ConsumeWriteBudget(ctx, "user:ip")
	require.NoError(t, err)
	require.False(t, ok)

	now = now.Add(61 * time.Second)
	ok, _, err = e.ConsumeWriteBudget(ctx, "user:ip")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestWriteAndSyncBudgetsAreIndependent(t *testing.T) {
	ctx := context.Background()
	limits := testLimits()
	limits.WriteRequestsPerWindow = 1
	e := NewEngine(newTestDB(t), limits)

	ok, _, err := e.ConsumeWriteBudget(ctx, "user:ip")
	require.NoError(t, err)
	require.True(t, ok)
	ok, _, err = e.ConsumeWriteBudget(ctx, "user:ip")
	require.NoError(t, err)
	require.False(t, ok)

	ok, _, err = e.ConsumeSyncReadBudget(ctx, "user:ip")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestConcurrentConsumeNeverOverAdmits(t *testing.T) {
	ctx := context.Background()
	limits := testLimits()
	limits.WriteRequestsPerWindow = 50
	e := NewEngine(newTestDB(t), limits)

	var admitted int64
	var wg sync.WaitGroup
	for i := 0; i < 80; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, _, err := e.ConsumeWriteBudget(ctx, "user:ip")
			assert.NoError(t, err)
			if ok {
				atomic.AddInt64(&admitted, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(50), admitted)
}

func TestSweepExpired(t *testing.T) {
	ctx := context.Background()
	e := NewEngine(newTestDB(t), testLimits())

	now := time.Now().UTC()
	e.now = func() time.Time { return now }

	_, _, err := e.RecordFailedLogin(ctx, "1.2.3.4")
	require.NoError(t, err)
	ok, _, err := e.ConsumeWriteBudget(ctx, "user:ip")
	require.NoError(t, err)
	require.True(t, ok)

	// Nothing is old enough yet.
	n, err := e.SweepExpired(ctx, now)
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = e.SweepExpired(ctx, now.Add(31*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}
