package main

import (
	"context"
	"log"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"vaultgate/internal/config"
	"vaultgate/internal/database"
	"vaultgate/internal/middleware"
	"vaultgate/internal/modules/accounts"
	"vaultgate/internal/modules/identity"
	"vaultgate/internal/modules/meta"
	"vaultgate/internal/modules/vault"
	"vaultgate/internal/notifications"
	"vaultgate/internal/pkg/token"
	"vaultgate/internal/ratelimit"
	"vaultgate/internal/repository"
	"vaultgate/internal/storage"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	if issue := cfg.SigningSecretIssue(); issue != "" {
		// Start anyway so /api/config and /api/alive answer, but every
		// protected endpoint will refuse to run on an unsafe secret.
		log.Printf("WARNING: %s - all authenticated endpoints are disabled", issue)
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal(err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatal(err)
	}

	userRepo := repository.NewUserRepository(db)
	refreshRepo := repository.NewRefreshTokenRepository(db)
	trustedRepo := repository.NewTrustedDeviceRepository(db)
	deviceRepo := repository.NewDeviceRepository(db)
	usedTokenRepo := repository.NewUsedTokenRepository(db)
	cipherRepo := repository.NewCipherRepository(db)
	folderRepo := repository.NewFolderRepository(db)
	attachmentRepo := repository.NewAttachmentRepository(db)
	revisionRepo := repository.NewRevisionRepository(db)

	tokens := token.New(cfg.JWTSecret, cfg.TokenIssuer, cfg.AccessTokenTTL, cfg.FileTokenTTL)
	limiter := ratelimit.NewEngine(db, cfg.RateLimits)

	blobs, err := storage.NewS3Store(context.Background(), cfg)
	if err != nil {
		log.Fatal(err)
	}

	hub := notifications.NewHub()
	defer hub.Close()

	identityService := identity.NewService(
		userRepo, refreshRepo, trustedRepo, deviceRepo, limiter, tokens,
		cfg.TOTPSecret, cfg.RefreshTTL, cfg.TrustedDeviceTTL, cfg.KdfDefaultIterations,
	)
	identityHandler := identity.NewHandler(identityService, cfg)

	accountsService := accounts.NewService(
		userRepo, refreshRepo, trustedRepo, revisionRepo,
		cfg.TOTPSecret != "", cfg.KdfDefaultIterations,
	)
	accountsHandler := accounts.NewHandler(accountsService, cfg)

	vaultService := vault.NewService(
		cipherRepo, folderRepo, attachmentRepo, revisionRepo, usedTokenRepo,
		blobs, tokens, hub,
	)
	vaultHandler := vault.NewHandler(vaultService, accountsService)

	metaHandler := meta.NewHandler(cfg.TOTPSecret != "")
	wsHandler := notifications.NewWSHandler(hub, tokens)

	r := gin.New()
	r.Use(gin.Logger(), middleware.ErrorLogger(), middleware.CORS())

	// public
	identityHandler.RegisterRoutes(r)
	accountsHandler.RegisterPublicRoutes(r)
	vaultHandler.RegisterPublicRoutes(r)
	metaHandler.RegisterPublicRoutes(r)
	r.GET("/notifications/hub", wsHandler.HandleWebSocket)
	r.POST("/notifications/hub/negotiate", func(c *gin.Context) { c.Status(200) })

	// protected
	api := r.Group("/api")
	api.Use(middleware.JWTAuth(tokens, userRepo, cfg))
	api.Use(middleware.WriteBudget(limiter))
	{
		accountsHandler.RegisterRoutes(api)
		identityHandler.RegisterProtectedRoutes(api)
		vaultHandler.RegisterRoutes(api, middleware.SyncBudget(limiter))
		metaHandler.RegisterRoutes(api)
	}

	log.Printf("listening on %s", cfg.ListenAddr)
	if err := r.Run(cfg.ListenAddr); err != nil {
		log.Fatal(err)
	}
}
