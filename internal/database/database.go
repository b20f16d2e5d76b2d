package database

import (
	"log"
	"strings"

	"gorm.io/driver/postgres"
	gormsqlite "gorm.io/driver/sqlite"
	"gorm.io/gorm"
	_ "modernc.org/sqlite"

	"vaultgate/internal/domain"
)

func Connect(dsn string) (*gorm.DB, error) {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		log.Println("Connecting to PostgreSQL...")
		return gorm.Open(postgres.Open(dsn), &gorm.Config{})
	}

	dsn = strings.TrimPrefix(dsn, "sqlite://")
	log.Println("Using SQLite:", dsn)

	return gorm.Open(
		gormsqlite.New(gormsqlite.Config{
			DriverName: "sqlite",
			DSN:        dsn,
		}),
		&gorm.Config{},
	)
}

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.User{},
		&domain.UserRevision{},
		&domain.Device{},
		&domain.RefreshToken{},
		&domain.TrustedDeviceToken{},
		&domain.UsedFileToken{},
		&domain.LoginAttempt{},
		&domain.RateLimitWindow{},
		&domain.Cipher{},
		&domain.Folder{},
		&domain.Attachment{},
	)
}
