package api

import (
	"net/http"

	authDelivery "leduo-backend/internal/auth/delivery"
	campaignDelivery "leduo-backend/internal/campaign/delivery"
	proxyDelivery "leduo-backend/internal/proxy/delivery"
	walletDelivery "leduo-backend/internal/wallet/delivery"
	"leduo-backend/pkg/config"

	"github.com/gin-gonic/gin"
)

func SetupRoutes(r *gin.Engine, cfg *config.Config, passKitHandler *walletDelivery.PassKitHandler, issueHandler *walletDelivery.IssueHandler, campaignHandler *campaignDelivery.CampaignHandler, proxyHandler *proxyDelivery.ProxyHandler) {
	// Apple PassKit web service. Wallet devices call these paths verbatim;
	// webServiceURL in pass.json points at this group's root.
	v1 := r.Group("/v1")
	{
		v1.POST("/devices/:deviceId/registrations/:passTypeId/:serial", passKitHandler.RegisterDevice)
		v1.GET("/devices/:deviceId/registrations/:passTypeId", passKitHandler.ListUpdatedSerials)
		v1.DELETE("/devices/:deviceId/registrations/:passTypeId/:serial", passKitHandler.UnregisterDevice)
		v1.GET("/passes/:passTypeId/:serial", passKitHandler.FetchUpdatedPass)
		v1.POST("/log", passKitHandler.DeviceLog)
	}

	api := r.Group("/api")
	{
		// Health check (no auth required)
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})

		// Staff surface (protected by storefront-issued JWTs)
		admin := api.Group("/admin")
		admin.Use(authDelivery.AdminMiddleware(cfg.AdminJWTSecret))
		{
			admin.POST("/campaigns", campaignHandler.LaunchCampaign)
			admin.POST("/sync/:userId", campaignHandler.ResyncUser)
			admin.GET("/devices", campaignHandler.DeviceStats)
		}

		// Data-proxy RPC for the storefront's serverless functions
		proxy := api.Group("/proxy")
		proxy.Use(authDelivery.ProxySecretMiddleware(cfg.ProxySecret))
		{
			proxy.POST("/get-user-state", proxyHandler.GetUserState)
			proxy.POST("/register-device", proxyHandler.RegisterDevice)
			proxy.POST("/verify-token", proxyHandler.VerifyToken)
			proxy.POST("/notify-devices", proxyHandler.NotifyDevices)
			proxy.POST("/get-all-devices", proxyHandler.GetAllDevices)
			proxy.POST("/mark-promotion-sent", proxyHandler.MarkPromotionSent)
			proxy.POST("/subscribe-web-push", proxyHandler.SubscribeWebPush)
			proxy.POST("/issue-apple-pass/:userId", issueHandler.ApplePass)
			proxy.POST("/issue-google-link/:userId", issueHandler.GoogleLink)
		}
	}
}
