package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"impaai/internal/repo"
	"impaai/internal/services"
	"impaai/pkg/models"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type AgentHandler struct {
	agentRepo *repo.AgentRepository
	guard     *services.OwnershipGuard
}

func NewAgentHandler(agentRepo *repo.AgentRepository, guard *services.OwnershipGuard) *AgentHandler {
	return &AgentHandler{agentRepo: agentRepo, guard: guard}
}

// DuplicateAgentRequest is the body for duplicating an agent
type DuplicateAgentRequest struct {
	Name string `json:"name" validate:"required"`
}

// UpdateAgentRequest is the body for updating an agent; omitted fields keep
// their current values.
type UpdateAgentRequest struct {
	Name         *string    `json:"name"`
	Config       *string    `json:"config"`
	ConnectionID *uuid.UUID `json:"connection_id"`
}

// Create godoc
// @Summary Create an agent
// @Description Creation is gated by the owner's agent quota
// @Tags agents
// @Accept json
// @Produce json
// @Param agent body models.Agent true "Agent data"
// @Success 201 {object} models.Agent
// @Failure 409 {object} map[string]interface{}
// @Router /agents [post]
func (h *AgentHandler) Create(c echo.Context) error {
	var agent models.Agent
	if err := c.Bind(&agent); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid agent data"})
	}
	if err := c.Validate(&agent); err != nil {
		return err
	}

	check, err := h.guard.CheckAgentCreationAllowed(agent.UserID)
	if err != nil {
		return respondServiceError(c, err)
	}
	if !check.Allowed {
		return respondServiceError(c, &services.QuotaError{
			Resource: "agents",
			Current:  check.CurrentCount,
			Limit:    check.Limit,
		})
	}

	// A new agent never carries a remote bot id; it is provisioned lazily
	agent.GatewayBotID = ""
	agent.IsDefault = false

	if err := h.agentRepo.Create(&agent); err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	return c.JSON(http.StatusCreated, agent)
}

// GetByID godoc
// @Summary Get an agent by ID
// @Tags agents
// @Produce json
// @Param id path string true "Agent ID"
// @Success 200 {object} models.Agent
// @Router /agents/{id} [get]
func (h *AgentHandler) GetByID(c echo.Context) error {
	agentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid agent ID"})
	}

	agent, err := h.agentRepo.GetByID(agentID)
	if err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Agent not found"})
	}

	return c.JSON(http.StatusOK, agent)
}

// ListByUser godoc
// @Summary List agents owned by a user
// @Tags agents
// @Produce json
// @Param user_id path string true "User ID"
// @Success 200 {array} models.Agent
// @Router /users/{user_id}/agents [get]
func (h *AgentHandler) ListByUser(c echo.Context) error {
	userID, err := uuid.Parse(c.Param("user_id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid user ID"})
	}

	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	offset, _ := strconv.Atoi(c.QueryParam("offset"))
	if limit <= 0 {
		limit = 20
	}

	agents, err := h.agentRepo.ListByUser(userID, limit, offset)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	return c.JSON(http.StatusOK, agents)
}

// Update godoc
// @Summary Update an agent
// @Tags agents
// @Accept json
// @Produce json
// @Param id path string true "Agent ID"
// @Param agent body UpdateAgentRequest true "Agent fields to change"
// @Success 200 {object} models.Agent
// @Router /agents/{id} [put]
func (h *AgentHandler) Update(c echo.Context) error {
	agentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid agent ID"})
	}

	existing, err := h.agentRepo.GetByID(agentID)
	if err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Agent not found"})
	}

	var req UpdateAgentRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid agent data"})
	}

	if req.Name != nil {
		if strings.TrimSpace(*req.Name) == "" {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "Agent name cannot be empty"})
		}
		existing.Name = *req.Name
	}
	if req.Config != nil {
		existing.Config = *req.Config
	}
	if req.ConnectionID != nil {
		existing.ConnectionID = req.ConnectionID
	}

	if err := h.agentRepo.Update(existing); err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	return c.JSON(http.StatusOK, existing)
}

// Delete godoc
// @Summary Delete an agent
// @Tags agents
// @Param id path string true "Agent ID"
// @Success 204
// @Router /agents/{id} [delete]
func (h *AgentHandler) Delete(c echo.Context) error {
	agentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid agent ID"})
	}

	if err := h.agentRepo.Delete(agentID); err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	return c.NoContent(http.StatusNoContent)
}

// Duplicate godoc
// @Summary Duplicate an agent under a new name
// @Description The copy gets a fresh id, is not the default, and has no remote bot id
// @Tags agents
// @Accept json
// @Produce json
// @Param id path string true "Agent ID"
// @Param body body DuplicateAgentRequest true "New agent name"
// @Success 201 {object} models.Agent
// @Failure 400 {object} map[string]interface{}
// @Router /agents/{id}/duplicate [post]
func (h *AgentHandler) Duplicate(c echo.Context) error {
	agentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid agent ID"})
	}

	var req DuplicateAgentRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request data"})
	}

	duplicate, err := h.guard.DuplicateAgent(agentID, req.Name)
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(http.StatusCreated, duplicate)
}

// SetDefault godoc
// @Summary Mark an agent as its owner's default
// @Description Clears any previous default for the same owner
// @Tags agents
// @Param id path string true "Agent ID"
// @Success 200 {object} models.Agent
// @Router /agents/{id}/default [post]
func (h *AgentHandler) SetDefault(c echo.Context) error {
	agentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid agent ID"})
	}

	agent, err := h.agentRepo.GetByID(agentID)
	if err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Agent not found"})
	}

	if err := h.agentRepo.SetDefault(agent.UserID, agentID); err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	agent.IsDefault = true
	return c.JSON(http.StatusOK, agent)
}
