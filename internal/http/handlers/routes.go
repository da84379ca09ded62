package handlers

import (
	"impaai/internal/app"

	"github.com/labstack/echo/v4"
)

// SetupRoutes sets up all API routes
func SetupRoutes(api *echo.Group, services *app.Services) {
	// Users
	userHandler := NewUserHandler(services.UserRepo)
	api.GET("/users", userHandler.List)
	api.POST("/users", userHandler.Create)
	api.GET("/users/:id", userHandler.GetByID)
	api.PUT("/users/:id", userHandler.Update)
	api.DELETE("/users/:id", userHandler.Delete)

	// Connections and pairing lifecycle
	connectionHandler := NewConnectionHandler(
		services.ConnectionRepo,
		services.OwnershipGuard,
		services.PairingManager,
		services.Gateway,
		services.GatewayClient,
	)
	api.POST("/connections", connectionHandler.Create)
	api.GET("/connections/:id", connectionHandler.GetByID)
	api.DELETE("/connections/:id", connectionHandler.Delete)
	api.GET("/users/:user_id/connections", connectionHandler.ListByUser)
	api.POST("/connections/:id/transfer", connectionHandler.Transfer)
	api.GET("/connections/:id/status", connectionHandler.GetStatus)
	api.GET("/connections/:id/details", connectionHandler.GetDetails)

	api.POST("/connections/:id/pairing", connectionHandler.OpenPairing)
	api.GET("/connections/:id/pairing", connectionHandler.GetPairing)
	api.POST("/connections/:id/pairing/refresh", connectionHandler.RefreshPairing)
	api.DELETE("/connections/:id/pairing", connectionHandler.ClosePairing)

	// Agents
	agentHandler := NewAgentHandler(services.AgentRepo, services.OwnershipGuard)
	api.POST("/agents", agentHandler.Create)
	api.GET("/agents/:id", agentHandler.GetByID)
	api.PUT("/agents/:id", agentHandler.Update)
	api.DELETE("/agents/:id", agentHandler.Delete)
	api.GET("/users/:user_id/agents", agentHandler.ListByUser)
	api.POST("/agents/:id/duplicate", agentHandler.Duplicate)
	api.POST("/agents/:id/default", agentHandler.SetDefault)

	// Admin: quotas, defaults, monitoring, diagnostics
	adminHandler := NewAdminHandler(
		services.DB,
		services.QuotaRepo,
		services.SettingsCache,
		services.ConnectionMonitor,
		services.GatewayClient,
	)
	admin := api.Group("/admin")
	admin.GET("/users/:user_id/quota", adminHandler.GetQuotaOverride)
	admin.PUT("/users/:user_id/quota", adminHandler.SetQuotaOverride)
	admin.DELETE("/users/:user_id/quota", adminHandler.DeleteQuotaOverride)
	admin.GET("/settings/defaults", adminHandler.GetSystemDefaults)
	admin.PUT("/settings/defaults", adminHandler.SetSystemDefaults)
	admin.GET("/monitor/status", adminHandler.GetMonitorStatus)
	admin.GET("/diagnostics", adminHandler.GetDiagnostics)
}
