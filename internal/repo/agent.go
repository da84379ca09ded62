package repo

import (
	"impaai/pkg/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AgentRepository handles agent data access
type AgentRepository struct {
	db *gorm.DB
}

// NewAgentRepository creates a new agent repository
func NewAgentRepository(db *gorm.DB) *AgentRepository {
	return &AgentRepository{db: db}
}

// GetByID gets an agent by ID
func (r *AgentRepository) GetByID(id uuid.UUID) (*models.Agent, error) {
	var agent models.Agent
	err := r.db.Where("id = ?", id).First(&agent).Error
	if err != nil {
		return nil, err
	}
	return &agent, nil
}

// Create creates a new agent
func (r *AgentRepository) Create(agent *models.Agent) error {
	return r.db.Create(agent).Error
}

// Update updates an agent
func (r *AgentRepository) Update(agent *models.Agent) error {
	return r.db.Save(agent).Error
}

// Delete removes an agent
func (r *AgentRepository) Delete(id uuid.UUID) error {
	return r.db.Where("id = ?", id).Delete(&models.Agent{}).Error
}

// ListByUser lists agents owned by a user
func (r *AgentRepository) ListByUser(userID uuid.UUID, limit, offset int) ([]models.Agent, error) {
	var agents []models.Agent
	err := r.db.Where("user_id = ?", userID).Limit(limit).Offset(offset).
		Order("created_at DESC").Find(&agents).Error
	return agents, err
}

// CountByUser counts agents owned by a user
func (r *AgentRepository) CountByUser(userID uuid.UUID) (int, error) {
	var count int64
	err := r.db.Model(&models.Agent{}).Where("user_id = ?", userID).Count(&count).Error
	return int(count), err
}

// SetDefault marks an agent as the user's default, clearing any previous default
// in the same transaction so at most one default exists per user.
func (r *AgentRepository) SetDefault(userID, agentID uuid.UUID) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Agent{}).
			Where("user_id = ? AND is_default = ?", userID, true).
			Update("is_default", false).Error; err != nil {
			return err
		}
		return tx.Model(&models.Agent{}).
			Where("id = ? AND user_id = ?", agentID, userID).
			Update("is_default", true).Error
	})
}
