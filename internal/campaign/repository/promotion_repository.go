package repository

import (
	"time"

	campaigndomain "leduo-backend/internal/campaign/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PromotionRepository interface {
	Create(promo *campaigndomain.Promotion) error
	MarkSent(id string) error
}

type promotionRepository struct {
	db *gorm.DB
}

func NewPromotionRepository(db *gorm.DB) PromotionRepository {
	return &promotionRepository{db: db}
}

func (r *promotionRepository) Create(promo *campaigndomain.Promotion) error {
	if promo.ID == "" {
		promo.ID = uuid.New().String()
	}
	promo.CreatedAt = time.Now()
	return r.db.Create(promo).Error
}

func (r *promotionRepository) MarkSent(id string) error {
	now := time.Now()
	return r.db.Model(&campaigndomain.Promotion{}).Where("id = ?", id).
		Update("sent_at", now).Error
}

// WebPushTokenRepository stores storefront push subscriptions.
type WebPushTokenRepository interface {
	Save(userID, token string) error
	TokensForUsers(userIDs []string) ([]string, error)
	Delete(token string) error
}

type webPushTokenRepository struct {
	db *gorm.DB
}

func NewWebPushTokenRepository(db *gorm.DB) WebPushTokenRepository {
	return &webPushTokenRepository{db: db}
}

// Save upserts on the token itself so a browser re-subscribing after a
// login swap moves the token to the new user.
func (r *webPushTokenRepository) Save(userID, token string) error {
	row := &campaigndomain.WebPushToken{
		ID:        uuid.New().String(),
		UserID:    userID,
		Token:     token,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "token"}},
		DoUpdates: clause.AssignmentColumns([]string{"user_id", "updated_at"}),
	}).Create(row).Error
}

func (r *webPushTokenRepository) TokensForUsers(userIDs []string) ([]string, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	var tokens []string
	err := r.db.Model(&campaigndomain.WebPushToken{}).
		Where("user_id IN ?", userIDs).
		Pluck("token", &tokens).Error
	return tokens, err
}

func (r *webPushTokenRepository) Delete(token string) error {
	return r.db.Where("token = ?", token).Delete(&campaigndomain.WebPushToken{}).Error
}
