package services

import (
	"errors"
	"strings"

	"impaai/internal/repo"
	"impaai/pkg/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Hard-coded quota fallbacks, used when neither a per-user override nor a
// system default is configured
const (
	FallbackAgentsLimit      = 5
	FallbackConnectionsLimit = 2
)

// QuotaCheck is the result of a read-only capacity check
type QuotaCheck struct {
	Allowed      bool `json:"allowed"`
	CurrentCount int  `json:"current_count"`
	Limit        int  `json:"limit"`
}

// OwnershipGuard gates mutations that create resources or change resource
// ownership against per-user capacity quotas. Quota checks and the following
// mutation are sequential queries, not one transaction: concurrent writers can
// race past a limit. That matches human-paced dashboard usage and is a
// documented limitation, not a target to silently harden.
type OwnershipGuard struct {
	users       *repo.UserRepository
	connections *repo.ConnectionRepository
	agents      *repo.AgentRepository
	quotas      *repo.QuotaRepository

	// EnforceQuotaOnDuplicate makes DuplicateAgent apply the same capacity
	// check as direct creation. Off by default to preserve the historical
	// behavior where only direct creation was gated.
	EnforceQuotaOnDuplicate bool
}

// NewOwnershipGuard creates a new ownership/capacity guard
func NewOwnershipGuard(users *repo.UserRepository, connections *repo.ConnectionRepository, agents *repo.AgentRepository, quotas *repo.QuotaRepository) *OwnershipGuard {
	return &OwnershipGuard{
		users:       users,
		connections: connections,
		agents:      agents,
		quotas:      quotas,
	}
}

// ResolveAgentsLimit resolves a user's agent quota: per-user override, then
// system default, then the hard-coded fallback.
func (g *OwnershipGuard) ResolveAgentsLimit(userID uuid.UUID) (int, error) {
	override, err := g.quotas.GetOverride(userID)
	if err != nil {
		return 0, &StoreError{Op: "get quota override", Err: err}
	}
	if override != nil && override.AgentsLimit != nil {
		return *override.AgentsLimit, nil
	}

	value, found, err := g.quotas.GetSystemDefault(models.SettingDefaultAgentsLimit)
	if err != nil {
		return 0, &StoreError{Op: "get system default", Err: err}
	}
	if found {
		return value, nil
	}
	return FallbackAgentsLimit, nil
}

// ResolveConnectionsLimit resolves a user's connection quota through the same
// override, system default, fallback chain.
func (g *OwnershipGuard) ResolveConnectionsLimit(userID uuid.UUID) (int, error) {
	override, err := g.quotas.GetOverride(userID)
	if err != nil {
		return 0, &StoreError{Op: "get quota override", Err: err}
	}
	if override != nil && override.ConnectionsLimit != nil {
		return *override.ConnectionsLimit, nil
	}

	value, found, err := g.quotas.GetSystemDefault(models.SettingDefaultConnectionsLimit)
	if err != nil {
		return 0, &StoreError{Op: "get system default", Err: err}
	}
	if found {
		return value, nil
	}
	return FallbackConnectionsLimit, nil
}

// CheckAgentCreationAllowed reports whether a user may create another agent.
// Read-only: callers re-check right before insert; the window between check
// and insert is an accepted race.
func (g *OwnershipGuard) CheckAgentCreationAllowed(userID uuid.UUID) (*QuotaCheck, error) {
	if _, err := g.users.GetByID(userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, &StoreError{Op: "get user", Err: err}
	}

	limit, err := g.ResolveAgentsLimit(userID)
	if err != nil {
		return nil, err
	}

	count, err := g.agents.CountByUser(userID)
	if err != nil {
		return nil, &StoreError{Op: "count agents", Err: err}
	}

	return &QuotaCheck{
		Allowed:      count < limit,
		CurrentCount: count,
		Limit:        limit,
	}, nil
}

// CheckConnectionCreationAllowed reports whether a user may create another connection
func (g *OwnershipGuard) CheckConnectionCreationAllowed(userID uuid.UUID) (*QuotaCheck, error) {
	if _, err := g.users.GetByID(userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, &StoreError{Op: "get user", Err: err}
	}

	limit, err := g.ResolveConnectionsLimit(userID)
	if err != nil {
		return nil, err
	}

	count, err := g.connections.CountByUser(userID)
	if err != nil {
		return nil, &StoreError{Op: "count connections", Err: err}
	}

	return &QuotaCheck{
		Allowed:      count < limit,
		CurrentCount: count,
		Limit:        limit,
	}, nil
}

// TransferConnection reassigns a connection from one owner to another after
// verifying the target is a different existing user with spare capacity.
func (g *OwnershipGuard) TransferConnection(connectionID, fromUserID, toUserID uuid.UUID) error {
	if toUserID == fromUserID {
		return ErrSameOwner
	}

	connection, err := g.connections.GetByID(connectionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return &StoreError{Op: "get connection", Err: err}
	}
	if connection.UserID != fromUserID {
		return &ValidationError{Field: "from_user_id", Message: "connection is not owned by the given user"}
	}

	if _, err := g.users.GetByID(toUserID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return &StoreError{Op: "get target user", Err: err}
	}

	limit, err := g.ResolveConnectionsLimit(toUserID)
	if err != nil {
		return err
	}
	count, err := g.connections.CountByUser(toUserID)
	if err != nil {
		return &StoreError{Op: "count connections", Err: err}
	}
	if count >= limit {
		return &QuotaError{Resource: "connections", Current: count, Limit: limit}
	}

	if err := g.connections.UpdateOwner(connectionID, toUserID); err != nil {
		return &StoreError{Op: "update connection owner", Err: err}
	}
	return nil
}

// DuplicateAgent copies an agent under a new name. The copy gets a fresh
// identifier, is never the default, and its gateway bot id is cleared so a
// new remote bot is provisioned on first real use.
func (g *OwnershipGuard) DuplicateAgent(agentID uuid.UUID, newName string) (*models.Agent, error) {
	if strings.TrimSpace(newName) == "" {
		return nil, &ValidationError{Field: "name", Message: "name is required"}
	}

	source, err := g.agents.GetByID(agentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, &StoreError{Op: "get agent", Err: err}
	}

	if g.EnforceQuotaOnDuplicate {
		check, err := g.CheckAgentCreationAllowed(source.UserID)
		if err != nil {
			return nil, err
		}
		if !check.Allowed {
			return nil, &QuotaError{Resource: "agents", Current: check.CurrentCount, Limit: check.Limit}
		}
	}

	duplicate := &models.Agent{
		UserID:       source.UserID,
		Name:         newName,
		Config:       source.Config,
		ConnectionID: source.ConnectionID,
		IsDefault:    false,
		GatewayBotID: "",
	}
	if err := g.agents.Create(duplicate); err != nil {
		return nil, &StoreError{Op: "create agent", Err: err}
	}
	return duplicate, nil
}
