package handlers

import (
	"net/http"

	"github.com/frostdev-ops/pma-tvoverlay/internal/core/entities"
	"github.com/frostdev-ops/pma-tvoverlay/internal/core/payload"
	"github.com/frostdev-ops/pma-tvoverlay/internal/core/services"
	"github.com/frostdev-ops/pma-tvoverlay/internal/core/setup"
	"github.com/frostdev-ops/pma-tvoverlay/pkg/errors"
	"github.com/frostdev-ops/pma-tvoverlay/pkg/utils"
	"github.com/gin-gonic/gin"
)

// statusErrors maps sentinel errors to a status and reason key
var statusErrors = []struct {
	err    error
	status int
	key    string
}{
	{services.ErrServicesNotRegistered, http.StatusServiceUnavailable, "not_registered"},
	{services.ErrDeviceNotFound, http.StatusNotFound, "device_not_found"},
	{services.ErrNotificationFailed, http.StatusBadGateway, "notification_failed"},
	{services.ErrClearFailed, http.StatusBadGateway, "clear_failed"},
	{setup.ErrNotFound, http.StatusNotFound, "not_found"},
	{setup.ErrAlreadyConfigured, http.StatusConflict, "already_configured"},
	{setup.ErrCannotConnect, http.StatusBadGateway, "cannot_connect"},
	{setup.ErrInvalidHost, http.StatusBadRequest, "invalid_host"},
	{setup.ErrInvalidPort, http.StatusBadRequest, "invalid_port"},
	{setup.ErrInvalidIdentifier, http.StatusBadRequest, "invalid_identifier"},
	{entities.ErrUnknownEntity, http.StatusNotFound, "unknown_entity"},
	{entities.ErrReadOnly, http.StatusBadRequest, "read_only"},
	{entities.ErrSetFailed, http.StatusBadGateway, "set_failed"},
}

// toAppError translates a domain error into an API error
func toAppError(err error) *errors.AppError {
	var appErr *errors.AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	var validation *payload.ValidationError
	if errors.As(err, &validation) {
		return &errors.AppError{
			Code:    http.StatusBadRequest,
			Message: validation.Error(),
			Key:     validation.Key,
		}
	}
	var valueErr *entities.ValueError
	if errors.As(err, &valueErr) {
		return &errors.AppError{
			Code:    http.StatusBadRequest,
			Message: valueErr.Error(),
			Key:     "invalid_value",
		}
	}

	for _, se := range statusErrors {
		if errors.Is(err, se.err) {
			return &errors.AppError{Code: se.status, Message: err.Error(), Key: se.key}
		}
	}
	return errors.WithDetails(errors.ErrInternalServer, err.Error())
}

// fail attaches err to the request and writes the error response
func (h *Handlers) fail(c *gin.Context, err error) {
	appErr := toAppError(err)
	_ = c.Error(appErr)
	utils.SendAppError(c, appErr)
}
