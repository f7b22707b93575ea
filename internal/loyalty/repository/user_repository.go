package repository

import (
	"time"

	loyaltydomain "leduo-backend/internal/loyalty/domain"

	"gorm.io/gorm"
)

// Segment identifies a campaign audience filter.
type Segment string

const (
	SegmentAll        Segment = "all"
	SegmentNew        Segment = "new"
	SegmentNearReward Segment = "near_reward"
	SegmentInactive   Segment = "inactive"
)

const (
	newUserWindow    = 30 * 24 * time.Hour
	inactivityWindow = 45 * 24 * time.Hour
	nearRewardStamps = 6
)

// UserRepository is the read-side view of the storefront's customer data.
// Loyalty mutations happen elsewhere; this service only reads state to
// render passes, plus the two bookkeeping writes for campaigns.
type UserRepository interface {
	FindByID(id string) (*loyaltydomain.User, error)
	GetState(userID string) (*loyaltydomain.LoyaltyState, error)
	FindSegment(segment Segment) ([]string, error)
	FindBirthdaysToday(now time.Time) ([]*loyaltydomain.User, error)
	MarkBirthdayGifted(userID string, year int) error
}

type userRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) FindByID(id string) (*loyaltydomain.User, error) {
	var user loyaltydomain.User
	err := r.db.Where("id = ?", id).First(&user).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) GetState(userID string) (*loyaltydomain.LoyaltyState, error) {
	var state loyaltydomain.LoyaltyState
	err := r.db.Where("user_id = ?", userID).First(&state).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &state, nil
}

// FindSegment resolves a campaign audience to user ids with a single query.
func (r *userRepository) FindSegment(segment Segment) ([]string, error) {
	var ids []string
	now := time.Now()

	query := r.db.Model(&loyaltydomain.User{})
	switch segment {
	case SegmentNew:
		query = query.Where("created_at >= ?", now.Add(-newUserWindow))
	case SegmentNearReward:
		query = query.Joins("JOIN loyalty_states ON loyalty_states.user_id = users.id").
			Where("loyalty_states.stamps >= ?", nearRewardStamps)
	case SegmentInactive:
		query = query.Where("last_visit_at IS NULL OR last_visit_at < ?", now.Add(-inactivityWindow))
	case SegmentAll:
		// no filter
	}

	err := query.Pluck("users.id", &ids).Error
	return ids, err
}

func (r *userRepository) FindBirthdaysToday(now time.Time) ([]*loyaltydomain.User, error) {
	var users []*loyaltydomain.User
	err := r.db.Where(
		"birth_date IS NOT NULL AND EXTRACT(MONTH FROM birth_date) = ? AND EXTRACT(DAY FROM birth_date) = ? AND birthday_gift_year < ?",
		int(now.Month()), now.Day(), now.Year(),
	).Find(&users).Error
	return users, err
}

func (r *userRepository) MarkBirthdayGifted(userID string, year int) error {
	return r.db.Model(&loyaltydomain.User{}).Where("id = ?", userID).
		Updates(map[string]interface{}{
			"birthday_gift_year": year,
			"updated_at":         time.Now(),
		}).Error
}
