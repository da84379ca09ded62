package repo

import (
	"errors"
	"strconv"

	"impaai/pkg/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// QuotaRepository handles quota override and system default data access
type QuotaRepository struct {
	db *gorm.DB
}

// NewQuotaRepository creates a new quota repository
func NewQuotaRepository(db *gorm.DB) *QuotaRepository {
	return &QuotaRepository{db: db}
}

// GetOverride gets the quota override for a user, or nil if none exists
func (r *QuotaRepository) GetOverride(userID uuid.UUID) (*models.QuotaOverride, error) {
	var override models.QuotaOverride
	err := r.db.Where("user_id = ?", userID).First(&override).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &override, nil
}

// UpsertOverride creates or updates the quota override for a user
func (r *QuotaRepository) UpsertOverride(override *models.QuotaOverride) error {
	existing, err := r.GetOverride(override.UserID)
	if err != nil {
		return err
	}
	if existing != nil {
		existing.AgentsLimit = override.AgentsLimit
		existing.ConnectionsLimit = override.ConnectionsLimit
		return r.db.Save(existing).Error
	}
	return r.db.Create(override).Error
}

// DeleteOverride removes the quota override for a user
func (r *QuotaRepository) DeleteOverride(userID uuid.UUID) error {
	return r.db.Where("user_id = ?", userID).Delete(&models.QuotaOverride{}).Error
}

// GetSystemDefault reads an integer system default by key; found is false when
// the key is missing or not numeric.
func (r *QuotaRepository) GetSystemDefault(key string) (int, bool, error) {
	var setting models.SystemSetting
	err := r.db.Where("key = ?", key).First(&setting).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	value, convErr := strconv.Atoi(setting.Value)
	if convErr != nil {
		return 0, false, nil
	}
	return value, true, nil
}

// SetSystemDefault writes an integer system default by key
func (r *QuotaRepository) SetSystemDefault(key string, value int) error {
	var setting models.SystemSetting
	err := r.db.Where("key = ?", key).First(&setting).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		setting = models.SystemSetting{Key: key, Value: strconv.Itoa(value)}
		return r.db.Create(&setting).Error
	}
	if err != nil {
		return err
	}
	setting.Value = strconv.Itoa(value)
	return r.db.Save(&setting).Error
}
