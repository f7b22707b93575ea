package repository

import (
	"crypto/rand"
	"encoding/hex"
	"time"

	walletdomain "leduo-backend/internal/wallet/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AuthTokenRepository manages the bearer credentials embedded in issued
// passes. Tokens are minted once per serial and never rotated; a leaked
// token is revoked by reissuing the pass under a new serial.
type AuthTokenRepository interface {
	// EnsureForUser returns the user's pass credential, minting a fresh
	// serial and token on the first issue.
	EnsureForUser(userID string) (*walletdomain.PassAuthToken, error)
	FindBySerial(serial string) (*walletdomain.PassAuthToken, error)
}

type authTokenRepository struct {
	db *gorm.DB
}

func NewAuthTokenRepository(db *gorm.DB) AuthTokenRepository {
	return &authTokenRepository{db: db}
}

func (r *authTokenRepository) EnsureForUser(userID string) (*walletdomain.PassAuthToken, error) {
	var existing walletdomain.PassAuthToken
	err := r.db.Where("user_id = ?", userID).First(&existing).Error
	if err == nil {
		return &existing, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}

	token := &walletdomain.PassAuthToken{
		SerialNumber: uuid.New().String(),
		UserID:       userID,
		Token:        newToken(),
		CreatedAt:    time.Now(),
	}

	// First writer wins; a concurrent issue for the same user keeps the
	// already stored credential.
	if err := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoNothing: true,
	}).Create(token).Error; err != nil {
		return nil, err
	}

	err = r.db.Where("user_id = ?", userID).First(&existing).Error
	if err != nil {
		return nil, err
	}
	return &existing, nil
}

func (r *authTokenRepository) FindBySerial(serial string) (*walletdomain.PassAuthToken, error) {
	var token walletdomain.PassAuthToken
	err := r.db.Where("serial_number = ?", serial).First(&token).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &token, nil
}

func newToken() string {
	buf := make([]byte, 16)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}
