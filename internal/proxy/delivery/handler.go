package delivery

import (
	"net/http"

	campaignrepo "leduo-backend/internal/campaign/repository"
	loyaltyrepo "leduo-backend/internal/loyalty/repository"
	proxydto "leduo-backend/internal/proxy/dto"
	walletrepo "leduo-backend/internal/wallet/repository"
	walletusecase "leduo-backend/internal/wallet/usecase"
	"leduo-backend/pkg/googlewallet"

	"github.com/gin-gonic/gin"
)

// ProxyHandler is the RPC surface the storefront's serverless functions
// call. The most important action is notify-devices: the storefront
// commits its loyalty mutation first, then fires this hook, so a sync
// failure can never undo a purchase.
type ProxyHandler struct {
	users         loyaltyrepo.UserRepository
	registrations walletrepo.RegistrationRepository
	authTokens    walletrepo.AuthTokenRepository
	promotions    campaignrepo.PromotionRepository
	webTokens     campaignrepo.WebPushTokenRepository
	sync          walletusecase.SyncService
}

func NewProxyHandler(
	users loyaltyrepo.UserRepository,
	registrations walletrepo.RegistrationRepository,
	authTokens walletrepo.AuthTokenRepository,
	promotions campaignrepo.PromotionRepository,
	webTokens campaignrepo.WebPushTokenRepository,
	sync walletusecase.SyncService,
) *ProxyHandler {
	return &ProxyHandler{
		users:         users,
		registrations: registrations,
		authTokens:    authTokens,
		promotions:    promotions,
		webTokens:     webTokens,
		sync:          sync,
	}
}

// GetUserState handles POST /api/proxy/get-user-state
func (h *ProxyHandler) GetUserState(c *gin.Context) {
	var req proxydto.GetUserStateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.users.FindByID(req.UserID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if user == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}
	state, err := h.users.GetState(req.UserID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, proxydto.GetUserStateResponse{User: user, State: state})
}

// RegisterDevice handles POST /api/proxy/register-device
func (h *ProxyHandler) RegisterDevice(c *gin.Context) {
	var req proxydto.RegisterDeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.registrations.Save(req.DeviceLibraryID, req.SerialNumber, req.PassTypeID, req.PushToken, req.UserID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, proxydto.OKResponse{OK: true})
}

// VerifyToken handles POST /api/proxy/verify-token
func (h *ProxyHandler) VerifyToken(c *gin.Context) {
	var req proxydto.VerifyTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	stored, err := h.authTokens.FindBySerial(req.SerialNumber)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if stored == nil || stored.Token != req.Token {
		c.JSON(http.StatusOK, proxydto.VerifyTokenResponse{Valid: false})
		return
	}
	c.JSON(http.StatusOK, proxydto.VerifyTokenResponse{Valid: true, UserID: stored.UserID})
}

// NotifyDevices handles POST /api/proxy/notify-devices
func (h *ProxyHandler) NotifyDevices(c *gin.Context) {
	var req proxydto.NotifyDevicesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var msg *googlewallet.Message
	if req.Header != "" || req.Body != "" {
		msg = &googlewallet.Message{Header: req.Header, Body: req.Body}
	}

	summary := h.sync.SyncUser(c.Request.Context(), req.UserID, walletusecase.Trigger(req.Trigger), msg)
	c.JSON(http.StatusOK, proxydto.NotifyDevicesResponse{Summary: summary})
}

// GetAllDevices handles POST /api/proxy/get-all-devices
func (h *ProxyHandler) GetAllDevices(c *gin.Context) {
	devices, err := h.registrations.All()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, proxydto.GetAllDevicesResponse{Devices: devices})
}

// MarkPromotionSent handles POST /api/proxy/mark-promotion-sent
func (h *ProxyHandler) MarkPromotionSent(c *gin.Context) {
	var req proxydto.MarkPromotionSentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.promotions.MarkSent(req.PromotionID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, proxydto.OKResponse{OK: true})
}

// SubscribeWebPush handles POST /api/proxy/subscribe-web-push
func (h *ProxyHandler) SubscribeWebPush(c *gin.Context) {
	var req proxydto.SubscribeWebPushRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.webTokens.Save(req.UserID, req.Token); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, proxydto.OKResponse{OK: true})
}
