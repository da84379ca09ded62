package handlers

import (
	"errors"
	"net/http"
	"os"

	"impaai/internal/evolution"
	"impaai/internal/repo"
	"impaai/internal/services"
	"impaai/pkg/models"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

type AdminHandler struct {
	db            *gorm.DB
	quotaRepo     *repo.QuotaRepository
	settingsCache *services.SettingsCache
	monitor       *services.ConnectionMonitor
	gatewayClient *evolution.Client
}

func NewAdminHandler(db *gorm.DB, quotaRepo *repo.QuotaRepository, settingsCache *services.SettingsCache, monitor *services.ConnectionMonitor, gatewayClient *evolution.Client) *AdminHandler {
	return &AdminHandler{
		db:            db,
		quotaRepo:     quotaRepo,
		settingsCache: settingsCache,
		monitor:       monitor,
		gatewayClient: gatewayClient,
	}
}

// QuotaOverrideRequest is the body for setting a user's quota override
type QuotaOverrideRequest struct {
	AgentsLimit      *int `json:"agents_limit"`
	ConnectionsLimit *int `json:"connections_limit"`
}

// SystemDefaultsRequest is the body for updating system default limits
type SystemDefaultsRequest struct {
	DefaultAgentsLimit      *int `json:"default_agents_limit"`
	DefaultConnectionsLimit *int `json:"default_connections_limit"`
}

// GetQuotaOverride godoc
// @Summary Get the quota override for a user
// @Tags admin
// @Produce json
// @Param user_id path string true "User ID"
// @Success 200 {object} models.QuotaOverride
// @Router /admin/users/{user_id}/quota [get]
func (h *AdminHandler) GetQuotaOverride(c echo.Context) error {
	userID, err := uuid.Parse(c.Param("user_id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid user ID"})
	}

	override, err := h.quotaRepo.GetOverride(userID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	if override == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "No quota override for this user"})
	}

	return c.JSON(http.StatusOK, override)
}

// SetQuotaOverride godoc
// @Summary Create or update the quota override for a user
// @Tags admin
// @Accept json
// @Produce json
// @Param user_id path string true "User ID"
// @Param quota body QuotaOverrideRequest true "Quota limits"
// @Success 200 {object} models.QuotaOverride
// @Router /admin/users/{user_id}/quota [put]
func (h *AdminHandler) SetQuotaOverride(c echo.Context) error {
	userID, err := uuid.Parse(c.Param("user_id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid user ID"})
	}

	var req QuotaOverrideRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid quota data"})
	}

	override := &models.QuotaOverride{
		UserID:           userID,
		AgentsLimit:      req.AgentsLimit,
		ConnectionsLimit: req.ConnectionsLimit,
	}
	if err := h.quotaRepo.UpsertOverride(override); err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	return c.JSON(http.StatusOK, override)
}

// DeleteQuotaOverride godoc
// @Summary Remove the quota override for a user
// @Tags admin
// @Param user_id path string true "User ID"
// @Success 204
// @Router /admin/users/{user_id}/quota [delete]
func (h *AdminHandler) DeleteQuotaOverride(c echo.Context) error {
	userID, err := uuid.Parse(c.Param("user_id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid user ID"})
	}

	if err := h.quotaRepo.DeleteOverride(userID); err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	return c.NoContent(http.StatusNoContent)
}

// GetSystemDefaults godoc
// @Summary Get system default quota limits
// @Tags admin
// @Produce json
// @Success 200 {object} map[string]string
// @Router /admin/settings/defaults [get]
func (h *AdminHandler) GetSystemDefaults(c echo.Context) error {
	agents, err := h.settingsCache.Get(models.SettingDefaultAgentsLimit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	connections, err := h.settingsCache.Get(models.SettingDefaultConnectionsLimit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	return c.JSON(http.StatusOK, map[string]string{
		models.SettingDefaultAgentsLimit:      agents,
		models.SettingDefaultConnectionsLimit: connections,
	})
}

// SetSystemDefaults godoc
// @Summary Update system default quota limits
// @Tags admin
// @Accept json
// @Produce json
// @Param defaults body SystemDefaultsRequest true "Default limits"
// @Success 200 {object} map[string]string
// @Router /admin/settings/defaults [put]
func (h *AdminHandler) SetSystemDefaults(c echo.Context) error {
	var req SystemDefaultsRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid settings data"})
	}

	if req.DefaultAgentsLimit != nil {
		if err := h.quotaRepo.SetSystemDefault(models.SettingDefaultAgentsLimit, *req.DefaultAgentsLimit); err != nil {
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
		}
		h.settingsCache.Invalidate(models.SettingDefaultAgentsLimit)
	}
	if req.DefaultConnectionsLimit != nil {
		if err := h.quotaRepo.SetSystemDefault(models.SettingDefaultConnectionsLimit, *req.DefaultConnectionsLimit); err != nil {
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
		}
		h.settingsCache.Invalidate(models.SettingDefaultConnectionsLimit)
	}

	return c.JSON(http.StatusOK, map[string]string{"status": "updated"})
}

// GetMonitorStatus godoc
// @Summary Get connection monitor status
// @Tags admin
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /admin/monitor/status [get]
func (h *AdminHandler) GetMonitorStatus(c echo.Context) error {
	return c.JSON(http.StatusOK, h.monitor.GetMonitoringStatus())
}

// GetDiagnostics godoc
// @Summary Run basic configuration and connectivity diagnostics
// @Tags admin
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /admin/diagnostics [get]
func (h *AdminHandler) GetDiagnostics(c echo.Context) error {
	diagnostics := map[string]interface{}{
		"evolution_api_url_set": os.Getenv("EVOLUTION_API_URL") != "",
		"evolution_api_key_set": os.Getenv("EVOLUTION_API_KEY") != "",
		"database_ok":           false,
		"gateway_ok":            false,
	}

	if sqlDB, err := h.db.DB(); err == nil {
		diagnostics["database_ok"] = sqlDB.Ping() == nil
	}

	// A details call for a nonexistent instance still proves the gateway is
	// reachable and the credential is accepted.
	if _, err := h.gatewayClient.FetchInstanceDetails("diagnostics-probe"); err != nil {
		var apiErr *evolution.APIError
		diagnostics["gateway_ok"] = errors.As(err, &apiErr)
	} else {
		diagnostics["gateway_ok"] = true
	}

	return c.JSON(http.StatusOK, diagnostics)
}
