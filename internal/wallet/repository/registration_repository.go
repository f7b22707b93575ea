package repository

import (
	"time"

	walletdomain "leduo-backend/internal/wallet/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RegistrationRepository is the durable "who to notify and how" store for
// Apple Wallet devices.
type RegistrationRepository interface {
	// Save upserts on the (deviceLibraryID, serial) key. Re-registering the
	// same device for the same pass overwrites the push token in place.
	Save(deviceLibraryID, serial, passTypeID, pushToken, userID string) error
	// ListSerials returns the serials registered to a device whose pass
	// content changed after since (all of them when since is nil), plus the
	// maximum updated-at across the result as an epoch-seconds watermark.
	// An empty result is (nil, 0, nil) so callers can answer 204.
	ListSerials(deviceLibraryID, passTypeID string, since *time.Time) ([]string, int64, error)
	// Delete removes a registration; deleting a missing row is not an error.
	Delete(deviceLibraryID, serial string) error
	// DeleteByPushToken prunes a registration whose APNs token came back dead.
	DeleteByPushToken(pushToken string) error
	// Touch bulk-advances updated-at for every registration of a user and
	// returns the distinct push tokens to notify.
	Touch(userID string) ([]string, error)
	All() ([]walletdomain.DeviceRegistration, error)
	CountByUser() (int64, int64, error)
}

type registrationRepository struct {
	db *gorm.DB
}

func NewRegistrationRepository(db *gorm.DB) RegistrationRepository {
	return &registrationRepository{db: db}
}

func (r *registrationRepository) Save(deviceLibraryID, serial, passTypeID, pushToken, userID string) error {
	// updated_at is compared against an epoch-seconds watermark echoed by
	// the device; sub-second precision would make an echoed watermark
	// match its own update forever.
	now := time.Now().Truncate(time.Second)
	reg := &walletdomain.DeviceRegistration{
		ID:              uuid.New().String(),
		DeviceLibraryID: deviceLibraryID,
		SerialNumber:    serial,
		PassTypeID:      passTypeID,
		PushToken:       pushToken,
		UserID:          userID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	// Atomic upsert: INSERT ... ON CONFLICT (device_library_id, serial_number) DO UPDATE
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "device_library_id"}, {Name: "serial_number"}},
		DoUpdates: clause.AssignmentColumns([]string{"push_token", "pass_type_id", "user_id", "updated_at"}),
	}).Create(reg).Error
}

func (r *registrationRepository) ListSerials(deviceLibraryID, passTypeID string, since *time.Time) ([]string, int64, error) {
	var regs []walletdomain.DeviceRegistration
	query := r.db.Where("device_library_id = ? AND pass_type_id = ?", deviceLibraryID, passTypeID)
	if since != nil {
		query = query.Where("updated_at > ?", *since)
	}
	if err := query.Find(&regs).Error; err != nil {
		return nil, 0, err
	}
	if len(regs) == 0 {
		return nil, 0, nil
	}

	serials := make([]string, 0, len(regs))
	var watermark int64
	for _, reg := range regs {
		serials = append(serials, reg.SerialNumber)
		if ts := reg.UpdatedAt.Unix(); ts > watermark {
			watermark = ts
		}
	}
	return serials, watermark, nil
}

func (r *registrationRepository) Delete(deviceLibraryID, serial string) error {
	return r.db.Where("device_library_id = ? AND serial_number = ?", deviceLibraryID, serial).
		Delete(&walletdomain.DeviceRegistration{}).Error
}

func (r *registrationRepository) DeleteByPushToken(pushToken string) error {
	return r.db.Where("push_token = ?", pushToken).
		Delete(&walletdomain.DeviceRegistration{}).Error
}

func (r *registrationRepository) Touch(userID string) ([]string, error) {
	// A touch must land strictly after any watermark a device already
	// echoed, or the change stays invisible until the next touch. Two
	// touches in the same wall-clock second would otherwise collide, so
	// the new value is at least one second past the previous one.
	if err := r.db.Model(&walletdomain.DeviceRegistration{}).
		Where("user_id = ?", userID).
		Update("updated_at", gorm.Expr("GREATEST(?, updated_at + INTERVAL '1 second')", time.Now().Truncate(time.Second))).Error; err != nil {
		return nil, err
	}

	var tokens []string
	err := r.db.Model(&walletdomain.DeviceRegistration{}).
		Where("user_id = ?", userID).
		Distinct().Pluck("push_token", &tokens).Error
	return tokens, err
}

func (r *registrationRepository) All() ([]walletdomain.DeviceRegistration, error) {
	var regs []walletdomain.DeviceRegistration
	err := r.db.Order("updated_at DESC").Find(&regs).Error
	return regs, err
}

// CountByUser returns total registrations and distinct registered users,
// for the admin stats endpoint.
func (r *registrationRepository) CountByUser() (int64, int64, error) {
	var total int64
	if err := r.db.Model(&walletdomain.DeviceRegistration{}).Count(&total).Error; err != nil {
		return 0, 0, err
	}
	var users int64
	err := r.db.Model(&walletdomain.DeviceRegistration{}).
		Distinct("user_id").Count(&users).Error
	return total, users, err
}
