package app

import (
	"os"
	"strconv"
	"time"

	"impaai/internal/evolution"
	"impaai/internal/repo"
	"impaai/internal/services"
	"impaai/pkg/models"

	"gorm.io/gorm"
)

// Services holds all application services
type Services struct {
	DB                *gorm.DB
	UserRepo          *repo.UserRepository
	ConnectionRepo    *repo.ConnectionRepository
	AgentRepo         *repo.AgentRepository
	QuotaRepo         *repo.QuotaRepository
	Gateway           services.PairingGateway
	GatewayClient     *evolution.Client
	StatusPoller      *services.StatusPoller
	PairingManager    *services.PairingManager
	OwnershipGuard    *services.OwnershipGuard
	ConnectionMonitor *services.ConnectionMonitor
	SettingsCache     *services.SettingsCache
}

// NewServices creates a new services container
func NewServices(db *gorm.DB) *Services {
	// Initialize repositories
	userRepo := repo.NewUserRepository(db)
	connectionRepo := repo.NewConnectionRepository(db)
	agentRepo := repo.NewAgentRepository(db)
	quotaRepo := repo.NewQuotaRepository(db)

	// Gateway client for the Evolution API
	gatewayClient := evolution.GetClient()
	gateway := services.NewEvolutionGateway(gatewayClient)

	// Lifecycle services
	statusPoller := services.NewStatusPoller(gateway, envInt("PAIRING_MAX_POLL_FAILURES", 10))
	pairingManager := services.NewPairingManager(
		gateway,
		connectionRepo,
		statusPoller,
		envDuration("PAIRING_QR_TTL", 40*time.Second),
		envDuration("PAIRING_POLL_INTERVAL", 3*time.Second),
	)

	ownershipGuard := services.NewOwnershipGuard(userRepo, connectionRepo, agentRepo, quotaRepo)
	ownershipGuard.EnforceQuotaOnDuplicate = os.Getenv("ENFORCE_QUOTA_ON_DUPLICATE") == "true"

	connectionMonitor := services.NewConnectionMonitor(gateway, connectionRepo)

	// System settings cache; admin writes invalidate through this object
	settingsCache := services.NewSettingsCache(func(key string) (string, error) {
		value, found, err := quotaRepo.GetSystemDefault(key)
		if err != nil {
			return "", err
		}
		if !found {
			return "", nil
		}
		return strconv.Itoa(value), nil
	}, envDuration("SETTINGS_CACHE_TTL", 5*time.Minute), nil)

	return &Services{
		DB:                db,
		UserRepo:          userRepo,
		ConnectionRepo:    connectionRepo,
		AgentRepo:         agentRepo,
		QuotaRepo:         quotaRepo,
		Gateway:           gateway,
		GatewayClient:     gatewayClient,
		StatusPoller:      statusPoller,
		PairingManager:    pairingManager,
		OwnershipGuard:    ownershipGuard,
		ConnectionMonitor: connectionMonitor,
		SettingsCache:     settingsCache,
	}
}

// SeedSystemDefaults writes the default quota settings when missing
func SeedSystemDefaults(quotaRepo *repo.QuotaRepository) error {
	defaults := map[string]int{
		models.SettingDefaultAgentsLimit:      services.FallbackAgentsLimit,
		models.SettingDefaultConnectionsLimit: services.FallbackConnectionsLimit,
	}
	for key, value := range defaults {
		_, found, err := quotaRepo.GetSystemDefault(key)
		if err != nil {
			return err
		}
		if !found {
			if err := quotaRepo.SetSystemDefault(key, value); err != nil {
				return err
			}
		}
	}
	return nil
}

func envInt(name string, fallback int) int {
	if raw := os.Getenv(name); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil {
			return value
		}
	}
	return fallback
}

func envDuration(name string, fallback time.Duration) time.Duration {
	if raw := os.Getenv(name); raw != "" {
		if value, err := time.ParseDuration(raw); err == nil {
			return value
		}
	}
	return fallback
}
