package handlers

import (
	"net/http"
	"strconv"

	"impaai/internal/evolution"
	"impaai/internal/repo"
	"impaai/internal/services"
	"impaai/pkg/models"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

type ConnectionHandler struct {
	connectionRepo *repo.ConnectionRepository
	guard          *services.OwnershipGuard
	pairing        *services.PairingManager
	gateway        services.PairingGateway
	gatewayClient  *evolution.Client
}

func NewConnectionHandler(connectionRepo *repo.ConnectionRepository, guard *services.OwnershipGuard, pairing *services.PairingManager, gateway services.PairingGateway, gatewayClient *evolution.Client) *ConnectionHandler {
	return &ConnectionHandler{
		connectionRepo: connectionRepo,
		guard:          guard,
		pairing:        pairing,
		gateway:        gateway,
		gatewayClient:  gatewayClient,
	}
}

// CreateConnectionRequest is the body for creating a connection
type CreateConnectionRequest struct {
	UserID       uuid.UUID `json:"user_id" validate:"required"`
	Name         string    `json:"name" validate:"required"`
	InstanceName string    `json:"instance_name" validate:"required"`
}

// TransferConnectionRequest is the body for transferring a connection
type TransferConnectionRequest struct {
	FromUserID uuid.UUID `json:"from_user_id" validate:"required"`
	ToUserID   uuid.UUID `json:"to_user_id" validate:"required"`
}

// Create godoc
// @Summary Create a WhatsApp connection
// @Description Creates the connection record and provisions the instance at the gateway
// @Tags connections
// @Accept json
// @Produce json
// @Param connection body CreateConnectionRequest true "Connection data"
// @Success 201 {object} models.Connection
// @Failure 409 {object} map[string]interface{}
// @Router /connections [post]
func (h *ConnectionHandler) Create(c echo.Context) error {
	var req CreateConnectionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid connection data"})
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	check, err := h.guard.CheckConnectionCreationAllowed(req.UserID)
	if err != nil {
		return respondServiceError(c, err)
	}
	if !check.Allowed {
		return respondServiceError(c, &services.QuotaError{
			Resource: "connections",
			Current:  check.CurrentCount,
			Limit:    check.Limit,
		})
	}

	if _, err := h.connectionRepo.GetByInstanceName(req.InstanceName); err == nil {
		return c.JSON(http.StatusConflict, map[string]string{"error": "Instance name already in use"})
	}

	if err := h.gatewayClient.CreateInstance(req.InstanceName); err != nil {
		return c.JSON(http.StatusBadGateway, map[string]string{"error": "Failed to provision instance at gateway"})
	}

	connection := &models.Connection{
		UserID:       req.UserID,
		Name:         req.Name,
		InstanceName: req.InstanceName,
		Status:       models.ConnectionStatusDisconnected,
	}
	if err := h.connectionRepo.Create(connection); err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	return c.JSON(http.StatusCreated, connection)
}

// GetByID godoc
// @Summary Get a connection by ID
// @Tags connections
// @Produce json
// @Param id path string true "Connection ID"
// @Success 200 {object} models.Connection
// @Router /connections/{id} [get]
func (h *ConnectionHandler) GetByID(c echo.Context) error {
	connectionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid connection ID"})
	}

	connection, err := h.connectionRepo.GetByID(connectionID)
	if err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Connection not found"})
	}

	return c.JSON(http.StatusOK, connection)
}

// ListByUser godoc
// @Summary List connections owned by a user
// @Tags connections
// @Produce json
// @Param user_id path string true "User ID"
// @Success 200 {array} models.Connection
// @Router /users/{user_id}/connections [get]
func (h *ConnectionHandler) ListByUser(c echo.Context) error {
	userID, err := uuid.Parse(c.Param("user_id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid user ID"})
	}

	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	offset, _ := strconv.Atoi(c.QueryParam("offset"))
	if limit <= 0 {
		limit = 20
	}

	connections, err := h.connectionRepo.ListByUser(userID, limit, offset)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	return c.JSON(http.StatusOK, connections)
}

// Delete godoc
// @Summary Delete a connection
// @Description Closes any open pairing session, removes the instance at the gateway and deletes the record
// @Tags connections
// @Param id path string true "Connection ID"
// @Success 204
// @Router /connections/{id} [delete]
func (h *ConnectionHandler) Delete(c echo.Context) error {
	connectionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid connection ID"})
	}

	connection, err := h.connectionRepo.GetByID(connectionID)
	if err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Connection not found"})
	}

	h.pairing.CloseSession(connectionID)

	// Gateway removal is best effort; the row is removed regardless
	if err := h.gatewayClient.DeleteInstance(connection.InstanceName); err != nil {
		log.Warn().Err(err).Str("instance", connection.InstanceName).
			Msg("Failed to delete instance at gateway")
	}

	if err := h.connectionRepo.Delete(connectionID); err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	return c.NoContent(http.StatusNoContent)
}

// Transfer godoc
// @Summary Transfer a connection to another owner
// @Tags connections
// @Accept json
// @Produce json
// @Param id path string true "Connection ID"
// @Param transfer body TransferConnectionRequest true "Transfer data"
// @Success 200 {object} models.Connection
// @Failure 409 {object} map[string]interface{}
// @Router /connections/{id}/transfer [post]
func (h *ConnectionHandler) Transfer(c echo.Context) error {
	connectionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid connection ID"})
	}

	var req TransferConnectionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid transfer data"})
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	if err := h.guard.TransferConnection(connectionID, req.FromUserID, req.ToUserID); err != nil {
		return respondServiceError(c, err)
	}

	connection, err := h.connectionRepo.GetByID(connectionID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to retrieve transferred connection"})
	}

	return c.JSON(http.StatusOK, connection)
}

// OpenPairing godoc
// @Summary Open a QR pairing session for a connection
// @Tags pairing
// @Produce json
// @Param id path string true "Connection ID"
// @Success 200 {object} services.PairingSession
// @Failure 502 {object} map[string]string
// @Router /connections/{id}/pairing [post]
func (h *ConnectionHandler) OpenPairing(c echo.Context) error {
	connectionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid connection ID"})
	}

	session, err := h.pairing.OpenSession(connectionID)
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(http.StatusOK, session)
}

// RefreshPairing godoc
// @Summary Refresh the QR code of an open pairing session
// @Tags pairing
// @Produce json
// @Param id path string true "Connection ID"
// @Success 200 {object} services.PairingSession
// @Router /connections/{id}/pairing/refresh [post]
func (h *ConnectionHandler) RefreshPairing(c echo.Context) error {
	connectionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid connection ID"})
	}

	session, err := h.pairing.RefreshSession(connectionID)
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(http.StatusOK, session)
}

// ClosePairing godoc
// @Summary Close the pairing session for a connection
// @Tags pairing
// @Param id path string true "Connection ID"
// @Success 204
// @Router /connections/{id}/pairing [delete]
func (h *ConnectionHandler) ClosePairing(c echo.Context) error {
	connectionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid connection ID"})
	}

	h.pairing.CloseSession(connectionID)
	return c.NoContent(http.StatusNoContent)
}

// GetPairing godoc
// @Summary Get the state of the pairing session for a connection
// @Tags pairing
// @Produce json
// @Param id path string true "Connection ID"
// @Success 200 {object} services.PairingSession
// @Router /connections/{id}/pairing [get]
func (h *ConnectionHandler) GetPairing(c echo.Context) error {
	connectionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid connection ID"})
	}

	session := h.pairing.GetSession(connectionID)
	return c.JSON(http.StatusOK, session)
}

// GetStatus godoc
// @Summary Get the live gateway status of a connection
// @Description Queries the gateway and persists the status when it changed
// @Tags connections
// @Produce json
// @Param id path string true "Connection ID"
// @Success 200 {object} services.InstanceStatus
// @Router /connections/{id}/status [get]
func (h *ConnectionHandler) GetStatus(c echo.Context) error {
	connectionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid connection ID"})
	}

	connection, err := h.connectionRepo.GetByID(connectionID)
	if err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Connection not found"})
	}

	status, err := h.gateway.FetchInstanceStatus(connection.InstanceName)
	if err != nil {
		return respondServiceError(c, err)
	}

	if connection.Status != status.Status {
		if err := h.connectionRepo.UpdateStatusAndPhone(connectionID, status.Status, status.PhoneNumber); err != nil {
			log.Error().Err(err).Str("connection_id", connectionID.String()).
				Msg("Failed to update connection status")
		}
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":       status.Status,
		"phone_number": status.PhoneNumber,
	})
}

// GetDetails godoc
// @Summary Get gateway profile details for a connection
// @Tags connections
// @Produce json
// @Param id path string true "Connection ID"
// @Success 200 {object} evolution.InstanceDetails
// @Router /connections/{id}/details [get]
func (h *ConnectionHandler) GetDetails(c echo.Context) error {
	connectionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid connection ID"})
	}

	connection, err := h.connectionRepo.GetByID(connectionID)
	if err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Connection not found"})
	}

	details, err := h.gatewayClient.FetchInstanceDetails(connection.InstanceName)
	if err != nil {
		return c.JSON(http.StatusBadGateway, map[string]string{"error": "Failed to fetch instance details from gateway"})
	}

	return c.JSON(http.StatusOK, details)
}
