package api

import (
	"context"

	campaignDelivery "leduo-backend/internal/campaign/delivery"
	campaignRepo "leduo-backend/internal/campaign/repository"
	campaignUsecase "leduo-backend/internal/campaign/usecase"
	loyaltyRepo "leduo-backend/internal/loyalty/repository"
	proxyDelivery "leduo-backend/internal/proxy/delivery"
	walletDelivery "leduo-backend/internal/wallet/delivery"
	walletRepo "leduo-backend/internal/wallet/repository"
	walletUsecase "leduo-backend/internal/wallet/usecase"
	"leduo-backend/pkg/config"
	"leduo-backend/pkg/googlewallet"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	config          *config.Config
	passKitHandler  *walletDelivery.PassKitHandler
	issueHandler    *walletDelivery.IssueHandler
	campaignHandler *campaignDelivery.CampaignHandler
	proxyHandler    *proxyDelivery.ProxyHandler
}

// walletClientAdapter narrows *googlewallet.Client to the usecase-side
// interfaces (sessions come back concrete, interfaces go in).
type walletClientAdapter struct {
	client *googlewallet.Client
}

func (a *walletClientAdapter) NewSession(ctx context.Context) (walletUsecase.WalletSession, error) {
	session, err := a.client.NewSession(ctx)
	if err != nil {
		return nil, err
	}
	return session, nil
}

func (a *walletClientAdapter) ObjectID(userID string) string {
	return a.client.ObjectID(userID)
}

// WalletClientAdapter wraps the concrete Google client for injection into
// the sync and campaign services.
func WalletClientAdapter(client *googlewallet.Client) walletUsecase.WalletClient {
	return &walletClientAdapter{client: client}
}

func NewHandler(
	cfg *config.Config,
	users loyaltyRepo.UserRepository,
	registrations walletRepo.RegistrationRepository,
	authTokens walletRepo.AuthTokenRepository,
	promotions campaignRepo.PromotionRepository,
	webTokens campaignRepo.WebPushTokenRepository,
	issueService walletUsecase.IssueService,
	syncService walletUsecase.SyncService,
	campaignService campaignUsecase.CampaignService,
) *Handler {
	return &Handler{
		config:          cfg,
		passKitHandler:  walletDelivery.NewPassKitHandler(registrations, authTokens, issueService),
		issueHandler:    walletDelivery.NewIssueHandler(issueService),
		campaignHandler: campaignDelivery.NewCampaignHandler(campaignService, promotions, syncService, registrations),
		proxyHandler:    proxyDelivery.NewProxyHandler(users, registrations, authTokens, promotions, webTokens, syncService),
	}
}

func (h *Handler) Start(addr string) error {
	r := gin.Default()
	gin.SetMode(gin.ReleaseMode)

	// CORS middleware
	r.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin != "" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		} else {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		}

		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, X-Proxy-Secret, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE, PATCH")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	SetupRoutes(r, h.config, h.passKitHandler, h.issueHandler, h.campaignHandler, h.proxyHandler)

	return r.Run(addr)
}
