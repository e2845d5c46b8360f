package handlers

import (
	"github.com/frostdev-ops/pma-tvoverlay/internal/core/entities"
	"github.com/frostdev-ops/pma-tvoverlay/pkg/errors"
	"github.com/frostdev-ops/pma-tvoverlay/pkg/utils"
	"github.com/gin-gonic/gin"
)

// EntityValueRequest is the body of an entity update
type EntityValueRequest struct {
	Value interface{} `json:"value"`
}

// GetEntities godoc
// @Summary List the controls and sensors of a device
// @Tags entities
// @Produce json
// @Router /api/v1/devices/{id}/entities [get]
func (h *Handlers) GetEntities(c *gin.Context) {
	entry, ok := h.entry(c)
	if !ok {
		return
	}
	utils.SendSuccess(c, h.controller.List(c.Request.Context(), entry))
}

// GetEntity returns one control or sensor
func (h *Handlers) GetEntity(c *gin.Context) {
	entry, ok := h.entry(c)
	if !ok {
		return
	}
	state, err := h.controller.Get(c.Request.Context(), entry, c.Param("key"))
	if err != nil {
		h.fail(c, err)
		return
	}
	utils.SendSuccess(c, state)
}

// SetEntity godoc
// @Summary Change a device setting
// @Description Writes the value to the device and returns the entity state
// @Tags entities
// @Accept json
// @Produce json
// @Router /api/v1/devices/{id}/entities/{key} [put]
func (h *Handlers) SetEntity(c *gin.Context) {
	entry, ok := h.entry(c)
	if !ok {
		return
	}

	var req EntityValueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, errors.WithDetails(errors.WithKey(errors.ErrBadRequest, "invalid_body"), err.Error()))
		return
	}

	key := c.Param("key")
	if err := h.controller.Set(c.Request.Context(), entry, key, req.Value); err != nil {
		h.fail(c, err)
		return
	}

	state, err := h.controller.Get(c.Request.Context(), entry, key)
	if err != nil {
		h.fail(c, err)
		return
	}
	utils.SendSuccess(c, state)
}

// GetDiagnostics returns the support dump of a device
func (h *Handlers) GetDiagnostics(c *gin.Context) {
	entry, ok := h.entry(c)
	if !ok {
		return
	}
	utils.SendSuccess(c, entities.BuildDiagnostics(entry))
}
