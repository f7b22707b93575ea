package main

import (
	"log"
	"os"

	api "leduo-backend/cmd/api"
	campaigndomain "leduo-backend/internal/campaign/domain"
	campaignRepo "leduo-backend/internal/campaign/repository"
	campaignScheduler "leduo-backend/internal/campaign/scheduler"
	campaignUsecase "leduo-backend/internal/campaign/usecase"
	loyaltydomain "leduo-backend/internal/loyalty/domain"
	loyaltyRepo "leduo-backend/internal/loyalty/repository"
	walletdomain "leduo-backend/internal/wallet/domain"
	walletRepo "leduo-backend/internal/wallet/repository"
	walletUsecase "leduo-backend/internal/wallet/usecase"
	"leduo-backend/pkg/apns"
	"leduo-backend/pkg/config"
	"leduo-backend/pkg/database"
	"leduo-backend/pkg/fcm"
	"leduo-backend/pkg/googlewallet"
	"leduo-backend/pkg/passkit"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize database
	db, err := database.NewPostgresConnection(cfg)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	// Auto-migrate database schemas
	if err := db.AutoMigrate(&loyaltydomain.User{}, &loyaltydomain.LoyaltyState{}, &walletdomain.DeviceRegistration{}, &walletdomain.PassAuthToken{}, &campaigndomain.Promotion{}, &campaigndomain.WebPushToken{}); err != nil {
		log.Fatal("Failed to migrate database:", err)
	}

	// Initialize repositories (dependency injection)
	users := loyaltyRepo.NewUserRepository(db)
	registrations := walletRepo.NewRegistrationRepository(db)
	authTokens := walletRepo.NewAuthTokenRepository(db)
	promotions := campaignRepo.NewPromotionRepository(db)
	webTokens := campaignRepo.NewWebPushTokenRepository(db)

	// Pass document builder; the signer is required for real devices but
	// the server still serves every JSON surface without it.
	var signer *passkit.Signer
	if cfg.AppleCertPath != "" {
		signer, err = passkit.NewSignerFromFiles(cfg.AppleCertPath, cfg.AppleCertPassword, cfg.AppleWWDRCertPath)
		if err != nil {
			log.Printf("[WARN] Failed to load pass signing certificate (pass downloads disabled): %v", err)
		}
	} else {
		log.Printf("[WARN] APPLE_CERT_PATH not configured, pass downloads disabled")
	}
	builder := passkit.NewBuilder(cfg.AppleTeamID, cfg.ApplePassTypeID, cfg.AppleOrgName, cfg.PassBaseURL, cfg.PassAssetDir, signer)

	// APNs pusher: connection is built lazily on the first push
	pusher := apns.NewClient(cfg.AppleCertPath, cfg.AppleCertPassword, cfg.ApplePassTypeID)
	defer pusher.Close()

	// Google Wallet client
	saKey, err := os.ReadFile(cfg.GoogleSAPrivateKeyPath)
	if err != nil {
		log.Printf("[WARN] Failed to read Google service-account key (wallet sync degraded): %v", err)
	}
	googleClient := googlewallet.NewClient(cfg.GoogleIssuerID, cfg.GoogleSAEmail, saKey, cfg.ExternalCallTimeout)
	walletClient := api.WalletClientAdapter(googleClient)

	// FCM client for storefront web push (optional)
	var webPusher campaignUsecase.WebPusher
	if cfg.FirebaseCredentials != "" {
		fcmClient, err := fcm.NewClient(cfg.FirebaseCredentials)
		if err != nil {
			log.Printf("[WARN] Failed to initialize FCM client (web push disabled): %v", err)
		} else {
			webPusher = fcmClient
		}
	} else {
		log.Printf("[WARN] No Firebase credentials configured, web push disabled")
	}

	// Initialize use cases (dependency injection)
	issueService := walletUsecase.NewIssueService(users, authTokens, builder, googleClient)
	syncService := walletUsecase.NewSyncService(users, registrations, pusher, walletClient)
	campaignService := campaignUsecase.NewCampaignService(users, registrations, pusher, walletClient, webPusher, webTokens, promotions)

	// Birthday scheduler
	birthdays := campaignScheduler.NewBirthdayScheduler(users, syncService, cfg.BirthdayCheckInterval)
	birthdays.Start()
	defer birthdays.Stop()

	// Initialize HTTP handler
	handler := api.NewHandler(cfg, users, registrations, authTokens, promotions, webTokens, issueService, syncService, campaignService)

	// Start server
	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.Port
	}

	log.Printf("Server starting on port %s", port)
	if err := handler.Start(":" + port); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}
