package repo

import (
	"impaai/pkg/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ConnectionRepository handles connection data access
type ConnectionRepository struct {
	db *gorm.DB
}

// NewConnectionRepository creates a new connection repository
func NewConnectionRepository(db *gorm.DB) *ConnectionRepository {
	return &ConnectionRepository{db: db}
}

// GetByID gets a connection by ID
func (r *ConnectionRepository) GetByID(id uuid.UUID) (*models.Connection, error) {
	var connection models.Connection
	err := r.db.Where("id = ?", id).First(&connection).Error
	if err != nil {
		return nil, err
	}
	return &connection, nil
}

// GetByInstanceName gets a connection by its gateway instance name
func (r *ConnectionRepository) GetByInstanceName(instanceName string) (*models.Connection, error) {
	var connection models.Connection
	err := r.db.Where("instance_name = ?", instanceName).First(&connection).Error
	if err != nil {
		return nil, err
	}
	return &connection, nil
}

// Create creates a new connection
func (r *ConnectionRepository) Create(connection *models.Connection) error {
	return r.db.Create(connection).Error
}

// Update updates a connection
func (r *ConnectionRepository) Update(connection *models.Connection) error {
	return r.db.Save(connection).Error
}

// UpdateStatus updates only the status of a connection
func (r *ConnectionRepository) UpdateStatus(id uuid.UUID, status string) error {
	return r.db.Model(&models.Connection{}).Where("id = ?", id).Update("status", status).Error
}

// UpdateStatusAndPhone updates the status and paired phone number of a connection
func (r *ConnectionRepository) UpdateStatusAndPhone(id uuid.UUID, status string, phoneNumber *string) error {
	return r.db.Model(&models.Connection{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":       status,
		"phone_number": phoneNumber,
	}).Error
}

// UpdateOwner reassigns a connection to another user
func (r *ConnectionRepository) UpdateOwner(id uuid.UUID, userID uuid.UUID) error {
	return r.db.Model(&models.Connection{}).Where("id = ?", id).Update("user_id", userID).Error
}

// Delete removes a connection and clears agent bindings to it
func (r *ConnectionRepository) Delete(id uuid.UUID) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Agent{}).Where("connection_id = ?", id).Update("connection_id", nil).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&models.Connection{}).Error
	})
}

// ListByUser lists connections owned by a user
func (r *ConnectionRepository) ListByUser(userID uuid.UUID, limit, offset int) ([]models.Connection, error) {
	var connections []models.Connection
	err := r.db.Where("user_id = ?", userID).Limit(limit).Offset(offset).
		Order("created_at DESC").Find(&connections).Error
	return connections, err
}

// ListByStatus lists connections with a given status
func (r *ConnectionRepository) ListByStatus(status string) ([]models.Connection, error) {
	var connections []models.Connection
	err := r.db.Where("status = ?", status).Find(&connections).Error
	return connections, err
}

// CountByUser counts connections owned by a user
func (r *ConnectionRepository) CountByUser(userID uuid.UUID) (int, error) {
	var count int64
	err := r.db.Model(&models.Connection{}).Where("user_id = ?", userID).Count(&count).Error
	return int(count), err
}
