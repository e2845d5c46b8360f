package handlers

import (
	"io"

	"github.com/frostdev-ops/pma-tvoverlay/internal/core/coordinator"
	"github.com/frostdev-ops/pma-tvoverlay/internal/core/payload"
	"github.com/frostdev-ops/pma-tvoverlay/internal/core/registry"
	"github.com/frostdev-ops/pma-tvoverlay/internal/core/setup"
	"github.com/frostdev-ops/pma-tvoverlay/pkg/errors"
	"github.com/frostdev-ops/pma-tvoverlay/pkg/utils"
	"github.com/gin-gonic/gin"
)

// DeviceResponse represents a registration in API responses
type DeviceResponse struct {
	registry.Registration
	DeviceID              string            `json:"device_id"`
	State                 coordinator.State `json:"state"`
	ActiveNotificationIDs []string          `json:"active_notification_ids"`
	LocalSettings         payload.Defaults  `json:"local_settings"`
}

func deviceResponse(e *registry.Entry) DeviceResponse {
	resp := DeviceResponse{
		Registration:          e.Registration,
		DeviceID:              e.DeviceID,
		ActiveNotificationIDs: []string{},
		LocalSettings:         e.Defaults(),
	}
	if e.Coordinator != nil {
		resp.State = e.Coordinator.State()
	}
	if e.IDs != nil {
		resp.ActiveNotificationIDs = e.IDs.IDs()
	}
	return resp
}

// GetDevices godoc
// @Summary List registered overlay devices
// @Tags devices
// @Produce json
// @Router /api/v1/devices [get]
func (h *Handlers) GetDevices(c *gin.Context) {
	entries := h.setup.Entries()
	devices := make([]DeviceResponse, 0, len(entries))
	for _, e := range entries {
		devices = append(devices, deviceResponse(e))
	}
	utils.SendSuccessWithMeta(c, devices, gin.H{"count": len(devices)})
}

// GetDevice returns one registration
func (h *Handlers) GetDevice(c *gin.Context) {
	entry, ok := h.entry(c)
	if !ok {
		return
	}
	utils.SendSuccess(c, deviceResponse(entry))
}

// CreateDevice godoc
// @Summary Register an overlay device
// @Description Tests the connection before the registration is stored
// @Tags devices
// @Accept json
// @Produce json
// @Router /api/v1/devices [post]
func (h *Handlers) CreateDevice(c *gin.Context) {
	var input setup.Input
	if err := c.ShouldBindJSON(&input); err != nil {
		h.fail(c, errors.WithDetails(errors.WithKey(errors.ErrBadRequest, "invalid_body"), err.Error()))
		return
	}

	entry, err := h.setup.Register(c.Request.Context(), input)
	if err != nil {
		h.fail(c, err)
		return
	}
	utils.SendCreated(c, deviceResponse(entry))
}

// UpdateDevice changes host, port and identifier of a registration
func (h *Handlers) UpdateDevice(c *gin.Context) {
	var opts setup.Options
	if err := c.ShouldBindJSON(&opts); err != nil && !errors.Is(err, io.EOF) {
		h.fail(c, errors.WithDetails(errors.WithKey(errors.ErrBadRequest, "invalid_body"), err.Error()))
		return
	}

	entry, err := h.setup.Reconfigure(c.Request.Context(), c.Param("id"), opts)
	if err != nil {
		h.fail(c, err)
		return
	}
	utils.SendSuccess(c, deviceResponse(entry))
}

// DeleteDevice removes a registration with its stored data
func (h *Handlers) DeleteDevice(c *gin.Context) {
	id := c.Param("id")
	if err := h.setup.Remove(c.Request.Context(), id); err != nil {
		h.fail(c, err)
		return
	}
	utils.SendSuccess(c, gin.H{"id": id, "removed": true})
}

// RefreshDevice polls the device now and returns the resulting state
func (h *Handlers) RefreshDevice(c *gin.Context) {
	entry, ok := h.entry(c)
	if !ok {
		return
	}
	if err := entry.Coordinator.Refresh(c.Request.Context()); err != nil {
		h.fail(c, errors.WithDetails(errors.WithKey(errors.ErrBadGateway, "update_failed"), err.Error()))
		return
	}
	utils.SendSuccess(c, entry.Coordinator.State())
}

func (h *Handlers) entry(c *gin.Context) (*registry.Entry, bool) {
	entry, ok := h.setup.Get(c.Param("id"))
	if !ok {
		h.fail(c, setup.ErrNotFound)
		return nil, false
	}
	return entry, true
}
