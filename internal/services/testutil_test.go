package services

import (
	"sync"
	"testing"

	"impaai/internal/repo"
	"impaai/pkg/models"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(models.GetAllModels()...))
	return db
}

func createTestUser(t *testing.T, db *gorm.DB, name string) *models.User {
	t.Helper()

	user := &models.User{Name: name, Email: name + "@example.com", Role: "user", IsActive: true}
	require.NoError(t, repo.NewUserRepository(db).Create(user))
	return user
}

func createTestConnection(t *testing.T, db *gorm.DB, user *models.User, instanceName string) *models.Connection {
	t.Helper()

	connection := &models.Connection{
		UserID:       user.ID,
		Name:         instanceName,
		InstanceName: instanceName,
		Status:       models.ConnectionStatusDisconnected,
	}
	require.NoError(t, repo.NewConnectionRepository(db).Create(connection))
	return connection
}

// fakeGateway is a scriptable in-memory PairingGateway
type fakeGateway struct {
	mu sync.Mutex

	qrCodes []string // returned in order; the last repeats
	qrErr   error
	qrCalls int

	statusFn    func(call int) (*InstanceStatus, error)
	statusCalls int
}

func (g *fakeGateway) FetchQRCode(instanceName string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.qrCalls++
	if g.qrErr != nil {
		return "", g.qrErr
	}
	if len(g.qrCodes) == 0 {
		return "qr-payload", nil
	}
	idx := g.qrCalls - 1
	if idx >= len(g.qrCodes) {
		idx = len(g.qrCodes) - 1
	}
	return g.qrCodes[idx], nil
}

func (g *fakeGateway) FetchInstanceStatus(instanceName string) (*InstanceStatus, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.statusCalls++
	if g.statusFn != nil {
		return g.statusFn(g.statusCalls)
	}
	return &InstanceStatus{Status: models.ConnectionStatusConnecting}, nil
}

func (g *fakeGateway) qrCallCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.qrCalls
}

func (g *fakeGateway) statusCallCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.statusCalls
}
