package delivery

import (
	"net/http"

	campaigndomain "leduo-backend/internal/campaign/domain"
	campaignrepo "leduo-backend/internal/campaign/repository"
	campaignusecase "leduo-backend/internal/campaign/usecase"
	walletrepo "leduo-backend/internal/wallet/repository"
	walletusecase "leduo-backend/internal/wallet/usecase"

	"github.com/gin-gonic/gin"
)

// CampaignHandler is the staff-facing surface: launch campaigns, resync a
// single customer, inspect the device registry.
type CampaignHandler struct {
	campaigns     campaignusecase.CampaignService
	promotions    campaignrepo.PromotionRepository
	sync          walletusecase.SyncService
	registrations walletrepo.RegistrationRepository
}

func NewCampaignHandler(campaigns campaignusecase.CampaignService, promotions campaignrepo.PromotionRepository, sync walletusecase.SyncService, registrations walletrepo.RegistrationRepository) *CampaignHandler {
	return &CampaignHandler{
		campaigns:     campaigns,
		promotions:    promotions,
		sync:          sync,
		registrations: registrations,
	}
}

type launchCampaignRequest struct {
	Title   string `json:"title" binding:"required"`
	Body    string `json:"body" binding:"required"`
	Segment string `json:"segment" binding:"required,oneof=all new near_reward inactive"`
}

// LaunchCampaign handles POST /api/admin/campaigns
func (h *CampaignHandler) LaunchCampaign(c *gin.Context) {
	var req launchCampaignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	promo := &campaigndomain.Promotion{
		Title:   req.Title,
		Body:    req.Body,
		Segment: req.Segment,
	}
	if err := h.promotions.Create(promo); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	result, err := h.campaigns.Run(c.Request.Context(), promo)
	if err != nil {
		// Credential failure: nothing was sent
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error(), "promotion_id": promo.ID})
		return
	}

	c.JSON(http.StatusOK, gin.H{"promotion_id": promo.ID, "result": result})
}

// ResyncUser handles POST /api/admin/sync/:userId — a manual nudge when a
// customer reports a stale pass.
func (h *CampaignHandler) ResyncUser(c *gin.Context) {
	summary := h.sync.SyncUser(c.Request.Context(), c.Param("userId"), walletusecase.TriggerPromotion, nil)
	c.JSON(http.StatusOK, summary)
}

// DeviceStats handles GET /api/admin/devices
func (h *CampaignHandler) DeviceStats(c *gin.Context) {
	registrations, users, err := h.registrations.CountByUser()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"registrations":    registrations,
		"registered_users": users,
	})
}
