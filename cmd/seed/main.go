package main

import (
	"context"
	"log"
	"os"

	"github.com/joho/godotenv"

	"vaultgate/internal/config"
	"vaultgate/internal/database"
	"vaultgate/internal/modules/accounts"
	"vaultgate/internal/repository"
)

// Bootstraps the server's single account from the environment, for
// deployments where the registration endpoint is fronted by nothing and the
// operator prefers not to expose it at all.
//
// Required: SEED_EMAIL, SEED_MASTER_PASSWORD_HASH (client-side KDF output),
// SEED_USER_KEY (encrypted user key). Optional: SEED_NAME,
// SEED_KDF_ITERATIONS.
func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	email := os.Getenv("SEED_EMAIL")
	hash := os.Getenv("SEED_MASTER_PASSWORD_HASH")
	key := os.Getenv("SEED_USER_KEY")
	if email == "" || hash == "" || key == "" {
		log.Fatal("SEED_EMAIL, SEED_MASTER_PASSWORD_HASH and SEED_USER_KEY are required")
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatalf("migrate failed: %v", err)
	}

	userRepo := repository.NewUserRepository(db)
	svc := accounts.NewService(
		userRepo,
		repository.NewRefreshTokenRepository(db),
		repository.NewTrustedDeviceRepository(db),
		repository.NewRevisionRepository(db),
		cfg.TOTPSecret != "",
		cfg.KdfDefaultIterations,
	)

	user, err := svc.Register(context.Background(), accounts.RegisterRequest{
		Email:              email,
		Name:               os.Getenv("SEED_NAME"),
		MasterPasswordHash: hash,
		Key:                key,
	})
	if err != nil {
		log.Fatalf("seed failed: %v", err)
	}

	log.Printf("account created: id=%s email=%s", user.ID, user.Email)
}
