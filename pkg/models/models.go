package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// BaseModel is the base model for all entities
type BaseModel struct {
	ID        uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
	DeletedAt *gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

// BeforeCreate hook to generate UUID if not set
func (b *BaseModel) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

// User represents a dashboard user (admin or regular)
type User struct {
	BaseModel
	Name     string `gorm:"not null" json:"name" validate:"required"`
	Email    string `gorm:"unique;not null" json:"email" validate:"required,email"`
	Role     string `gorm:"default:'user'" json:"role"` // admin, user
	IsActive bool   `gorm:"default:true" json:"is_active"`
}

// Connection status values
const (
	ConnectionStatusDisconnected = "disconnected"
	ConnectionStatusConnecting   = "connecting"
	ConnectionStatusConnected    = "connected"
	ConnectionStatusError        = "error"
)

// Connection represents one WhatsApp pairing instance owned by a user
type Connection struct {
	BaseModel
	UserID       uuid.UUID `gorm:"type:uuid;not null;index;constraint:OnDelete:RESTRICT" json:"user_id"`
	Name         string    `gorm:"not null" json:"name" validate:"required"`
	InstanceName string    `gorm:"not null;uniqueIndex" json:"instance_name" validate:"required"` // addressing key at the gateway
	Status       string    `gorm:"default:'disconnected'" json:"status"`                          // disconnected, connecting, connected, error
	PhoneNumber  *string   `json:"phone_number,omitempty"`                                        // null until paired

	// Relations
	User *User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

// Agent represents a configured conversational AI, optionally bound to a connection
type Agent struct {
	BaseModel
	UserID       uuid.UUID  `gorm:"type:uuid;not null;index;constraint:OnDelete:RESTRICT" json:"user_id"`
	Name         string     `gorm:"not null" json:"name" validate:"required"`
	Config       string     `gorm:"type:text" json:"config"` // opaque behavioral configuration (prompt, tone, model parameters)
	ConnectionID *uuid.UUID `gorm:"type:uuid;index;constraint:OnDelete:SET NULL" json:"connection_id"`
	IsDefault    bool       `gorm:"default:false" json:"is_default"`
	GatewayBotID string     `json:"gateway_bot_id"` // remote bot id, provisioned lazily on first use

	// Relations
	User       *User       `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Connection *Connection `gorm:"foreignKey:ConnectionID" json:"connection,omitempty"`
}

// QuotaOverride holds per-user resource limits; nil fields fall back to system defaults
type QuotaOverride struct {
	BaseModel
	UserID           uuid.UUID `gorm:"type:uuid;not null;uniqueIndex;constraint:OnDelete:CASCADE" json:"user_id"`
	AgentsLimit      *int      `json:"agents_limit"`
	ConnectionsLimit *int      `json:"connections_limit"`
}

// SystemSetting is a key/value row for system-wide defaults
type SystemSetting struct {
	BaseModel
	Key   string `gorm:"uniqueIndex;not null" json:"key"`
	Value string `gorm:"not null" json:"value"`
}

// Well-known system setting keys
const (
	SettingDefaultAgentsLimit      = "default_agents_limit"
	SettingDefaultConnectionsLimit = "default_connections_limit"
)

// GetAllModels returns all models for AutoMigrate
func GetAllModels() []interface{} {
	return []interface{}{
		&User{},
		&Connection{},
		&Agent{},
		&QuotaOverride{},
		&SystemSetting{},
	}
}

// PaginationResult represents paginated results
type PaginationResult[T any] struct {
	Data       []T   `json:"data"`
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	PerPage    int   `json:"per_page"`
	TotalPages int   `json:"total_pages"`
}
