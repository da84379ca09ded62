package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"impaai/internal/repo"
	"impaai/internal/services"
	"impaai/pkg/models"

	"github.com/glebarez/sqlite"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type testValidator struct {
	validator *validator.Validate
}

func (v *testValidator) Validate(i interface{}) error {
	if err := v.validator.Struct(i); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}

type handlerFixture struct {
	db    *gorm.DB
	echo  *echo.Echo
	guard *services.OwnershipGuard
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(models.GetAllModels()...))

	e := echo.New()
	e.Validator = &testValidator{validator: validator.New()}

	guard := services.NewOwnershipGuard(
		repo.NewUserRepository(db),
		repo.NewConnectionRepository(db),
		repo.NewAgentRepository(db),
		repo.NewQuotaRepository(db),
	)
	return &handlerFixture{db: db, echo: e, guard: guard}
}

func (f *handlerFixture) seedUser(t *testing.T, name string) *models.User {
	t.Helper()

	user := &models.User{Name: name, Email: name + "@example.com", Role: "user", IsActive: true}
	require.NoError(t, repo.NewUserRepository(f.db).Create(user))
	return user
}

func (f *handlerFixture) seedConnection(t *testing.T, user *models.User, instanceName string) *models.Connection {
	t.Helper()

	connection := &models.Connection{
		UserID:       user.ID,
		Name:         instanceName,
		InstanceName: instanceName,
		Status:       models.ConnectionStatusDisconnected,
	}
	require.NoError(t, repo.NewConnectionRepository(f.db).Create(connection))
	return connection
}

func (f *handlerFixture) request(method, path, body string) (echo.Context, *httptest.ResponseRecorder) {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	return f.echo.NewContext(req, rec), rec
}

func TestTransferEndpoint(t *testing.T) {
	f := newHandlerFixture(t)
	alice := f.seedUser(t, "alice")
	bob := f.seedUser(t, "bob")
	conn := f.seedConnection(t, alice, "alice-shop")

	handler := NewConnectionHandler(repo.NewConnectionRepository(f.db), f.guard, nil, nil, nil)

	body := fmt.Sprintf(`{"from_user_id":%q,"to_user_id":%q}`, alice.ID, bob.ID)
	c, rec := f.request(http.MethodPost, "/connections/"+conn.ID.String()+"/transfer", body)
	c.SetParamNames("id")
	c.SetParamValues(conn.ID.String())

	require.NoError(t, handler.Transfer(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var result models.Connection
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, bob.ID, result.UserID)
}

func TestTransferEndpointSameOwner(t *testing.T) {
	f := newHandlerFixture(t)
	alice := f.seedUser(t, "alice")
	conn := f.seedConnection(t, alice, "alice-shop")

	handler := NewConnectionHandler(repo.NewConnectionRepository(f.db), f.guard, nil, nil, nil)

	body := fmt.Sprintf(`{"from_user_id":%q,"to_user_id":%q}`, alice.ID, alice.ID)
	c, rec := f.request(http.MethodPost, "/connections/"+conn.ID.String()+"/transfer", body)
	c.SetParamNames("id")
	c.SetParamValues(conn.ID.String())

	require.NoError(t, handler.Transfer(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTransferEndpointQuotaExceeded(t *testing.T) {
	f := newHandlerFixture(t)
	alice := f.seedUser(t, "alice")
	bob := f.seedUser(t, "bob")
	conn := f.seedConnection(t, alice, "alice-shop")

	// Fill bob to the fallback connection limit
	for i := 0; i < services.FallbackConnectionsLimit; i++ {
		f.seedConnection(t, bob, fmt.Sprintf("bob-shop-%d", i))
	}

	handler := NewConnectionHandler(repo.NewConnectionRepository(f.db), f.guard, nil, nil, nil)

	body := fmt.Sprintf(`{"from_user_id":%q,"to_user_id":%q}`, alice.ID, bob.ID)
	c, rec := f.request(http.MethodPost, "/connections/"+conn.ID.String()+"/transfer", body)
	c.SetParamNames("id")
	c.SetParamValues(conn.ID.String())

	require.NoError(t, handler.Transfer(c))
	assert.Equal(t, http.StatusConflict, rec.Code)

	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.EqualValues(t, services.FallbackConnectionsLimit, payload["limit"])

	// Connection still belongs to alice
	reloaded, err := repo.NewConnectionRepository(f.db).GetByID(conn.ID)
	require.NoError(t, err)
	assert.Equal(t, alice.ID, reloaded.UserID)
}

func TestDuplicateEndpoint(t *testing.T) {
	f := newHandlerFixture(t)
	alice := f.seedUser(t, "alice")
	agents := repo.NewAgentRepository(f.db)

	source := &models.Agent{
		UserID:       alice.ID,
		Name:         "sales",
		Config:       `{"prompt":"help customers"}`,
		IsDefault:    true,
		GatewayBotID: "bot-42",
	}
	require.NoError(t, agents.Create(source))

	handler := NewAgentHandler(agents, f.guard)

	c, rec := f.request(http.MethodPost, "/agents/"+source.ID.String()+"/duplicate", `{"name":"sales copy"}`)
	c.SetParamNames("id")
	c.SetParamValues(source.ID.String())

	require.NoError(t, handler.Duplicate(c))
	assert.Equal(t, http.StatusCreated, rec.Code)

	var copy models.Agent
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &copy))
	assert.NotEqual(t, source.ID, copy.ID)
	assert.Equal(t, "sales copy", copy.Name)
	assert.Equal(t, source.Config, copy.Config)
	assert.False(t, copy.IsDefault)
	assert.Empty(t, copy.GatewayBotID)
}

func TestDuplicateEndpointEmptyName(t *testing.T) {
	f := newHandlerFixture(t)
	alice := f.seedUser(t, "alice")
	agents := repo.NewAgentRepository(f.db)

	source := &models.Agent{UserID: alice.ID, Name: "sales"}
	require.NoError(t, agents.Create(source))

	handler := NewAgentHandler(agents, f.guard)

	c, rec := f.request(http.MethodPost, "/agents/"+source.ID.String()+"/duplicate", `{"name":"   "}`)
	c.SetParamNames("id")
	c.SetParamValues(source.ID.String())

	require.NoError(t, handler.Duplicate(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateAgentEndpointQuotaExceeded(t *testing.T) {
	f := newHandlerFixture(t)
	alice := f.seedUser(t, "alice")
	agents := repo.NewAgentRepository(f.db)

	one := 1
	require.NoError(t, repo.NewQuotaRepository(f.db).UpsertOverride(&models.QuotaOverride{
		UserID:      alice.ID,
		AgentsLimit: &one,
	}))
	require.NoError(t, agents.Create(&models.Agent{UserID: alice.ID, Name: "existing"}))

	handler := NewAgentHandler(agents, f.guard)

	body := fmt.Sprintf(`{"user_id":%q,"name":"one too many"}`, alice.ID)
	c, rec := f.request(http.MethodPost, "/agents", body)

	require.NoError(t, handler.Create(c))
	assert.Equal(t, http.StatusConflict, rec.Code)

	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.EqualValues(t, 1, payload["limit"])
	assert.EqualValues(t, 1, payload["current"])
}

func TestUpdateAgentKeepsOmittedFields(t *testing.T) {
	f := newHandlerFixture(t)
	alice := f.seedUser(t, "alice")
	agents := repo.NewAgentRepository(f.db)

	agent := &models.Agent{UserID: alice.ID, Name: "sales", Config: `{"tone":"formal"}`}
	require.NoError(t, agents.Create(agent))

	handler := NewAgentHandler(agents, f.guard)

	c, rec := f.request(http.MethodPut, "/agents/"+agent.ID.String(), `{"config":"{\"tone\":\"casual\"}"}`)
	c.SetParamNames("id")
	c.SetParamValues(agent.ID.String())

	require.NoError(t, handler.Update(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	reloaded, err := agents.GetByID(agent.ID)
	require.NoError(t, err)
	assert.Equal(t, "sales", reloaded.Name)
	assert.Equal(t, `{"tone":"casual"}`, reloaded.Config)
}

func TestUpdateAgentRejectsBlankName(t *testing.T) {
	f := newHandlerFixture(t)
	alice := f.seedUser(t, "alice")
	agents := repo.NewAgentRepository(f.db)

	agent := &models.Agent{UserID: alice.ID, Name: "sales"}
	require.NoError(t, agents.Create(agent))

	handler := NewAgentHandler(agents, f.guard)

	c, rec := f.request(http.MethodPut, "/agents/"+agent.ID.String(), `{"name":"  "}`)
	c.SetParamNames("id")
	c.SetParamValues(agent.ID.String())

	require.NoError(t, handler.Update(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	reloaded, err := agents.GetByID(agent.ID)
	require.NoError(t, err)
	assert.Equal(t, "sales", reloaded.Name)
}

func TestGetConnectionNotFound(t *testing.T) {
	f := newHandlerFixture(t)

	handler := NewConnectionHandler(repo.NewConnectionRepository(f.db), f.guard, nil, nil, nil)

	c, rec := f.request(http.MethodGet, "/connections/"+uuid.NewString(), "")
	c.SetParamNames("id")
	c.SetParamValues(uuid.NewString())

	require.NoError(t, handler.GetByID(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
