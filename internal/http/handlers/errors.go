package handlers

import (
	"errors"
	"net/http"

	"impaai/internal/services"

	"github.com/labstack/echo/v4"
)

// respondServiceError converts a typed service error into the matching HTTP
// response. Unknown errors become a generic 500.
func respondServiceError(c echo.Context, err error) error {
	var validationErr *services.ValidationError
	var quotaErr *services.QuotaError
	var storeErr *services.StoreError

	switch {
	case errors.Is(err, services.ErrNotFound):
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Record not found"})
	case errors.Is(err, services.ErrSameOwner):
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Target owner is already the current owner"})
	case errors.Is(err, services.ErrGatewayUnavailable):
		return c.JSON(http.StatusBadGateway, map[string]string{"error": "Pairing gateway unavailable"})
	case errors.As(err, &validationErr):
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": validationErr.Message,
			"field": validationErr.Field,
		})
	case errors.As(err, &quotaErr):
		return c.JSON(http.StatusConflict, map[string]interface{}{
			"error":   quotaErr.Error(),
			"current": quotaErr.Current,
			"limit":   quotaErr.Limit,
		})
	case errors.As(err, &storeErr):
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal error"})
	default:
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
}
