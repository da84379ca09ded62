package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"impaai/internal/repo"
	"impaai/pkg/models"

	"github.com/rs/zerolog/log"
)

// ConnectionMonitor periodically reconciles connected connections against the
// gateway's authoritative state and marks them disconnected when the gateway
// disagrees. It complements the pairing flow, which only covers connections
// with an open pairing session.
type ConnectionMonitor struct {
	gateway       PairingGateway
	connections   *repo.ConnectionRepository
	checkInterval time.Duration

	mutex             sync.RWMutex
	isRunning         bool
	stopChan          chan struct{}
	failedConnections map[string]*FailedConnection
}

// FailedConnection represents a connection that failed a monitoring check
type FailedConnection struct {
	ConnectionID string
	InstanceName string
	LastError    string
	FirstFailed  time.Time
}

// NewConnectionMonitor creates a new connection monitor
func NewConnectionMonitor(gateway PairingGateway, connections *repo.ConnectionRepository) *ConnectionMonitor {
	return &ConnectionMonitor{
		gateway:           gateway,
		connections:       connections,
		checkInterval:     1 * time.Minute,
		stopChan:          make(chan struct{}),
		failedConnections: make(map[string]*FailedConnection),
	}
}

// Start begins the monitoring process
func (cm *ConnectionMonitor) Start(ctx context.Context) {
	cm.mutex.Lock()
	if cm.isRunning {
		cm.mutex.Unlock()
		return
	}
	cm.isRunning = true
	// A fresh channel per run; the previous one was closed by Stop
	cm.stopChan = make(chan struct{})
	stopChan := cm.stopChan
	cm.mutex.Unlock()

	log.Info().Msg("Starting WhatsApp connection monitoring")

	go func() {
		ticker := time.NewTicker(cm.checkInterval)
		defer ticker.Stop()

		// First check runs immediately
		cm.checkAllConnections()

		for {
			select {
			case <-ticker.C:
				cm.checkAllConnections()
			case <-stopChan:
				log.Info().Msg("Stopping connection monitoring")
				return
			case <-ctx.Done():
				log.Info().Msg("Context cancelled, stopping connection monitoring")
				return
			}
		}
	}()
}

// Stop stops the monitoring process
func (cm *ConnectionMonitor) Stop() {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()

	if !cm.isRunning {
		return
	}

	cm.isRunning = false
	close(cm.stopChan)
}

// checkAllConnections verifies all connections currently marked connected
func (cm *ConnectionMonitor) checkAllConnections() {
	connections, err := cm.connections.ListByStatus(models.ConnectionStatusConnected)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list connected connections")
		return
	}

	if len(connections) == 0 {
		return
	}

	var wg sync.WaitGroup
	newFailures := make(map[string]*FailedConnection)
	var mutex sync.Mutex

	for _, connection := range connections {
		wg.Add(1)
		go func(conn models.Connection) {
			defer wg.Done()

			if err := cm.checkConnection(&conn); err != nil {
				key := conn.ID.String()
				cm.mutex.RLock()
				_, known := cm.failedConnections[key]
				cm.mutex.RUnlock()

				if !known {
					mutex.Lock()
					newFailures[key] = &FailedConnection{
						ConnectionID: key,
						InstanceName: conn.InstanceName,
						LastError:    err.Error(),
						FirstFailed:  time.Now(),
					}
					mutex.Unlock()
				}

				if err := cm.connections.UpdateStatus(conn.ID, models.ConnectionStatusDisconnected); err != nil {
					log.Error().Err(err).Str("instance", conn.InstanceName).
						Msg("Failed to update connection status")
				}
				log.Warn().Str("instance", conn.InstanceName).Err(err).
					Msg("Connection failed monitoring check")
			} else {
				cm.mutex.Lock()
				delete(cm.failedConnections, conn.ID.String())
				cm.mutex.Unlock()
			}
		}(connection)
	}

	wg.Wait()

	if len(newFailures) > 0 {
		cm.mutex.Lock()
		for key, failure := range newFailures {
			cm.failedConnections[key] = failure
		}
		cm.mutex.Unlock()
	}
}

// checkConnection verifies a single connection's state with the gateway
func (cm *ConnectionMonitor) checkConnection(connection *models.Connection) error {
	status, err := cm.gateway.FetchInstanceStatus(connection.InstanceName)
	if err != nil {
		return fmt.Errorf("failed to fetch instance status: %w", err)
	}

	if status.Status != models.ConnectionStatusConnected {
		return fmt.Errorf("instance state is %s", status.Status)
	}

	return nil
}

// GetMonitoringStatus returns current monitoring status
func (cm *ConnectionMonitor) GetMonitoringStatus() map[string]interface{} {
	cm.mutex.RLock()
	defer cm.mutex.RUnlock()

	return map[string]interface{}{
		"is_running":         cm.isRunning,
		"check_interval":     cm.checkInterval.String(),
		"failed_connections": len(cm.failedConnections),
		"last_check":         time.Now().Format("2006-01-02 15:04:05"),
	}
}
