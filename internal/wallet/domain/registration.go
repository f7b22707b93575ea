package domain

import "time"

// DeviceRegistration maps an Apple Wallet device to a pass it holds.
// The (DeviceLibraryID, SerialNumber) pair is the natural key; UpdatedAt
// is the dirty flag Apple's passesUpdatedSince polling relies on.
type DeviceRegistration struct {
	ID              string    `json:"id" gorm:"primaryKey"`
	DeviceLibraryID string    `json:"device_library_id" gorm:"uniqueIndex:idx_device_serial;not null"`
	SerialNumber    string    `json:"serial_number" gorm:"uniqueIndex:idx_device_serial;index;not null"`
	PassTypeID      string    `json:"pass_type_id" gorm:"not null"`
	PushToken       string    `json:"-" gorm:"not null"` // APNs token, never exposed
	UserID          string    `json:"user_id" gorm:"index;not null"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at" gorm:"index"`
}

// PassAuthToken is the bearer credential baked into an issued pass.
// Minted once per user; the device echoes it on every web-service call.
type PassAuthToken struct {
	SerialNumber string    `json:"serial_number" gorm:"primaryKey"`
	UserID       string    `json:"user_id" gorm:"uniqueIndex;not null"`
	Token        string    `json:"-" gorm:"uniqueIndex;not null"`
	CreatedAt    time.Time `json:"created_at"`
}
