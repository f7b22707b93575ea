package delivery

import (
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	walletdomain "leduo-backend/internal/wallet/domain"
	walletrepo "leduo-backend/internal/wallet/repository"
	walletusecase "leduo-backend/internal/wallet/usecase"

	"github.com/gin-gonic/gin"
)

// PassKitHandler implements Apple's pass web service: the four verbs a
// Wallet device calls, plus the diagnostic log sink. Paths and status
// codes follow the PassKit spec exactly; devices are unforgiving about
// both.
type PassKitHandler struct {
	registrations walletrepo.RegistrationRepository
	authTokens    walletrepo.AuthTokenRepository
	issue         walletusecase.IssueService
}

func NewPassKitHandler(registrations walletrepo.RegistrationRepository, authTokens walletrepo.AuthTokenRepository, issue walletusecase.IssueService) *PassKitHandler {
	return &PassKitHandler{
		registrations: registrations,
		authTokens:    authTokens,
		issue:         issue,
	}
}

type registerDeviceRequest struct {
	PushToken string `json:"pushToken"`
}

type serialsResponse struct {
	SerialNumbers []string `json:"serialNumbers"`
	LastUpdated   string   `json:"lastUpdated"`
}

// RegisterDevice handles POST /v1/devices/:deviceId/registrations/:passTypeId/:serial
func (h *PassKitHandler) RegisterDevice(c *gin.Context) {
	serial := c.Param("serial")
	token := h.authorized(c, serial)
	if token == nil {
		return
	}

	var req registerDeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.PushToken == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "pushToken required"})
		return
	}

	if err := h.registrations.Save(c.Param("deviceId"), serial, c.Param("passTypeId"), req.PushToken, token.UserID); err != nil {
		log.Printf("[PassKit] Failed to save registration: %v", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	c.Status(http.StatusCreated)
}

// ListUpdatedSerials handles GET /v1/devices/:deviceId/registrations/:passTypeId
func (h *PassKitHandler) ListUpdatedSerials(c *gin.Context) {
	var since *time.Time
	if raw := c.Query("passesUpdatedSince"); raw != "" {
		if epoch, err := strconv.ParseInt(raw, 10, 64); err == nil {
			t := time.Unix(epoch, 0)
			since = &t
		}
	}

	serials, watermark, err := h.registrations.ListSerials(c.Param("deviceId"), c.Param("passTypeId"), since)
	if err != nil {
		log.Printf("[PassKit] Failed to list serials: %v", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	// Apple distinguishes "nothing changed" (204) from "here is the list"
	// (200); an empty 200 would make devices poll forever.
	if len(serials) == 0 {
		c.Status(http.StatusNoContent)
		return
	}

	c.JSON(http.StatusOK, serialsResponse{
		SerialNumbers: serials,
		LastUpdated:   strconv.FormatInt(watermark, 10),
	})
}

// FetchUpdatedPass handles GET /v1/passes/:passTypeId/:serial
func (h *PassKitHandler) FetchUpdatedPass(c *gin.Context) {
	serial := c.Param("serial")
	token := h.authorized(c, serial)
	if token == nil {
		return
	}

	archive, renderedAt, err := h.issue.IssueApplePass(token.UserID)
	if err != nil {
		log.Printf("[PassKit] Failed to build pass %s: %v", serial, err)
		c.Status(http.StatusNotFound)
		return
	}

	c.Header("Last-Modified", renderedAt.UTC().Format(http.TimeFormat))
	c.Data(http.StatusOK, "application/vnd.apple.pkpass", archive)
}

// UnregisterDevice handles DELETE /v1/devices/:deviceId/registrations/:passTypeId/:serial
func (h *PassKitHandler) UnregisterDevice(c *gin.Context) {
	if err := h.registrations.Delete(c.Param("deviceId"), c.Param("serial")); err != nil {
		log.Printf("[PassKit] Failed to delete registration: %v", err)
	}
	// Idempotent by contract: unregistering a missing row is still OK
	c.Status(http.StatusOK)
}

// DeviceLog handles POST /v1/log, Apple's diagnostic sink. Always 200.
func (h *PassKitHandler) DeviceLog(c *gin.Context) {
	var body struct {
		Logs []string `json:"logs"`
	}
	if err := c.ShouldBindJSON(&body); err == nil {
		for _, line := range body.Logs {
			log.Printf("[PassKit] device log: %s", line)
		}
	}
	c.Status(http.StatusOK)
}

// authorized verifies the ApplePass bearer token for a serial and
// returns the matching credential, loaded once for the whole request.
// On any mismatch it answers a bare 401 that does not reveal whether
// the serial exists.
func (h *PassKitHandler) authorized(c *gin.Context, serial string) *walletdomain.PassAuthToken {
	presented := parseApplePassToken(c.GetHeader("Authorization"))
	if presented == "" {
		c.Status(http.StatusUnauthorized)
		return nil
	}

	stored, err := h.authTokens.FindBySerial(serial)
	if err != nil || stored == nil || stored.Token != presented {
		c.Status(http.StatusUnauthorized)
		return nil
	}
	return stored
}

// parseApplePassToken strips the "ApplePass" scheme from an Authorization
// header. The PassKit spec allows arbitrary whitespace and any casing of
// the scheme; nothing else about the token is normalized.
func parseApplePassToken(header string) string {
	trimmed := strings.TrimSpace(header)
	if trimmed == "" {
		return ""
	}
	fields := strings.Fields(trimmed)
	if len(fields) != 2 || !strings.EqualFold(fields[0], "ApplePass") {
		return ""
	}
	return fields[1]
}
