package dto

import (
	loyaltydomain "leduo-backend/internal/loyalty/domain"
	walletdomain "leduo-backend/internal/wallet/domain"
	walletusecase "leduo-backend/internal/wallet/usecase"
)

// One explicit request/response pair per proxy action. The storefront's
// serverless functions speak this surface; every body is validated at the
// boundary instead of threading an untyped map through a switch.

type GetUserStateRequest struct {
	UserID string `json:"userId" binding:"required"`
}

type GetUserStateResponse struct {
	User  *loyaltydomain.User         `json:"user"`
	State *loyaltydomain.LoyaltyState `json:"state"`
}

type RegisterDeviceRequest struct {
	DeviceLibraryID string `json:"deviceLibraryId" binding:"required"`
	SerialNumber    string `json:"serialNumber" binding:"required"`
	PassTypeID      string `json:"passTypeId" binding:"required"`
	PushToken       string `json:"pushToken" binding:"required"`
	UserID          string `json:"userId" binding:"required"`
}

type VerifyTokenRequest struct {
	SerialNumber string `json:"serialNumber" binding:"required"`
	Token        string `json:"token" binding:"required"`
}

type VerifyTokenResponse struct {
	Valid  bool   `json:"valid"`
	UserID string `json:"userId,omitempty"`
}

type NotifyDevicesRequest struct {
	UserID  string `json:"userId" binding:"required"`
	Trigger string `json:"trigger" binding:"required,oneof=purchase redemption birthday promotion"`
	// Optional override for the wallet message
	Header string `json:"header"`
	Body   string `json:"body"`
}

type NotifyDevicesResponse struct {
	Summary walletusecase.Summary `json:"summary"`
}

type GetAllDevicesResponse struct {
	Devices []walletdomain.DeviceRegistration `json:"devices"`
}

type MarkPromotionSentRequest struct {
	PromotionID string `json:"promotionId" binding:"required"`
}

type SubscribeWebPushRequest struct {
	UserID string `json:"userId" binding:"required"`
	Token  string `json:"token" binding:"required"`
}

type OKResponse struct {
	OK bool `json:"ok"`
}
