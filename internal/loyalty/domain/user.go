package domain

import "time"

// User is the customer profile as the storefront backend persists it.
// This service only ever reads it.
type User struct {
	ID               string     `json:"id" gorm:"primaryKey"`
	Email            string     `json:"email" gorm:"uniqueIndex;not null"`
	Name             string     `json:"name"`
	BirthDate        *time.Time `json:"birth_date"`
	BirthdayGiftYear int        `json:"-"` // year the last birthday gift was applied
	LastVisitAt      *time.Time `json:"last_visit_at"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// LoyaltyState is the authoritative loyalty counter row for a user.
// Rendered pass content must always be derived from this row at render
// time; nothing in this service caches a rendered representation.
type LoyaltyState struct {
	UserID         string    `json:"user_id" gorm:"primaryKey"`
	Stamps         int       `json:"stamps"`
	CashbackPoints int       `json:"cashback_points"`
	LevelPoints    int       `json:"level_points"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// StampsTarget is the stamp count that completes a card.
const StampsTarget = 8

// LegendThreshold is the level-point count above which a customer gets
// the distinguished pass styling.
const LegendThreshold = 150

// RewardReady reports whether the stamp card is complete.
func (s *LoyaltyState) RewardReady() bool {
	return s.Stamps >= StampsTarget
}
