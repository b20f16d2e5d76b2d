package main

import (
	"context"
	"log"
	"time"

	"github.com/joho/godotenv"

	"vaultgate/internal/config"
	"vaultgate/internal/database"
	"vaultgate/internal/ratelimit"
	"vaultgate/internal/repository"
)

// Sweeps expired session state: refresh tokens, remembered 2FA devices,
// spent download tokens, and stale rate-limit counters. The request paths
// clean up opportunistically; this binary exists for cron so the tables
// stay small even on an idle server.
func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}

	ctx := context.Background()
	now := time.Now().UTC()

	refresh, err := repository.NewRefreshTokenRepository(db).DeleteExpired(ctx, now)
	if err != nil {
		log.Fatalf("cleanup refresh_tokens failed: %v", err)
	}

	trusted, err := repository.NewTrustedDeviceRepository(db).DeleteExpired(ctx, now)
	if err != nil {
		log.Fatalf("cleanup trusted device tokens failed: %v", err)
	}

	used, err := repository.NewUsedTokenRepository(db).DeleteExpired(ctx, now)
	if err != nil {
		log.Fatalf("cleanup used download tokens failed: %v", err)
	}

	limits, err := ratelimit.NewEngine(db, cfg.RateLimits).SweepExpired(ctx, now)
	if err != nil {
		log.Fatalf("cleanup rate limit counters failed: %v", err)
	}

	log.Printf("cleanup completed: refresh_tokens=%d trusted_devices=%d used_tokens=%d rate_limits=%d",
		refresh, trusted, used, limits)
}
