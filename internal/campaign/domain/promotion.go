package domain

import "time"

// Promotion is a broadcast or segmented campaign message.
type Promotion struct {
	ID        string     `json:"id" gorm:"primaryKey"`
	Title     string     `json:"title" gorm:"not null"`
	Body      string     `json:"body" gorm:"not null"`
	Segment   string     `json:"segment" gorm:"not null"`
	SentAt    *time.Time `json:"sent_at"`
	CreatedAt time.Time  `json:"created_at"`
}

// WebPushToken is a storefront PWA push subscription. Separate world from
// wallet registrations: these reach browsers, not passes.
type WebPushToken struct {
	ID        string    `json:"id" gorm:"primaryKey"`
	UserID    string    `json:"user_id" gorm:"index;not null"`
	Token     string    `json:"-" gorm:"uniqueIndex;not null"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Result aggregates one fan-out run. Skipped and QuotaExceeded are
// expected platform answers and counted apart from Errors.
type Result struct {
	Total                 int `json:"total"`
	PassesUpdated         int `json:"passesUpdated"`
	PushNotificationsSent int `json:"pushNotificationsSent"`
	Skipped               int `json:"skipped"`
	QuotaExceeded         int `json:"quotaExceeded"`
	Errors                int `json:"errors"`
}
