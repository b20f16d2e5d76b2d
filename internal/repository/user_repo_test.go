package repository

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gormsqlite "gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	_ "modernc.org/sqlite"

	"vaultgate/internal/domain"
)

func newUserTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(
		gormsqlite.New(gormsqlite.Config{DriverName: "sqlite", DSN: ":memory:"}),
		&gorm.Config{Logger: logger.Default.LogMode(logger.Silent)},
	)
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&domain.User{}))
	return db
}

func testAccount(id, email string) *domain.User {
	return &domain.User{
		ID:                 id,
		Email:              email,
		MasterPasswordHash: "client-hash",
		Key:                "2.iv|userkey|mac",
		KdfIterations:      600000,
		SecurityStamp:      "stamp-1",
	}
}

func TestCreateFirstAdmitsExactlyOneUser(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository(newUserTestDB(t))

	first := testAccount("11111111-1111-4111-8111-111111111111", "a@example.com")
	require.NoError(t, repo.CreateFirst(ctx, first))

	// A different email is not saved by the unique index; the emptiness
	// guard inside the insert has to reject it.
	second := testAccount("22222222-2222-4222-8222-222222222222", "b@example.com")
	assert.ErrorIs(t, repo.CreateFirst(ctx, second), gorm.ErrDuplicatedKey)

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestCreateFirstConcurrentRegistrations(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository(newUserTestDB(t))

	var created int64
	var wg sync.WaitGroup
	ids := []string{
		"11111111-1111-4111-8111-111111111111",
		"22222222-2222-4222-8222-222222222222",
		"33333333-3333-4333-8333-333333333333",
		"44444444-4444-4444-8444-444444444444",
	}
	for i, id := range ids {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			u := testAccount(id, fmt.Sprintf("user%d@example.com", i))
			if err := repo.CreateFirst(ctx, u); err == nil {
				atomic.AddInt64(&created, 1)
			}
		}(i, id)
	}
	wg.Wait()

	assert.Equal(t, int64(1), created)
	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}
