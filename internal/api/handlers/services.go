package handlers

import (
	"context"
	"io"
	"net/http"

	"github.com/frostdev-ops/pma-tvoverlay/internal/core/services"
	"github.com/frostdev-ops/pma-tvoverlay/pkg/errors"
	"github.com/frostdev-ops/pma-tvoverlay/pkg/utils"
	"github.com/gin-gonic/gin"
)

type serviceCall func(ctx context.Context, data map[string]any) (*services.Result, error)

// Notify godoc
// @Summary Send a transient notification
// @Tags services
// @Accept json
// @Produce json
// @Router /api/v1/services/notify [post]
func (h *Handlers) Notify(c *gin.Context) {
	h.callService(c, h.dispatcher.Notify)
}

// NotifyFixed godoc
// @Summary Show or update a fixed notification
// @Tags services
// @Accept json
// @Produce json
// @Router /api/v1/services/notify_fixed [post]
func (h *Handlers) NotifyFixed(c *gin.Context) {
	h.callService(c, h.dispatcher.NotifyFixed)
}

// ClearFixed godoc
// @Summary Hide a fixed notification
// @Tags services
// @Accept json
// @Produce json
// @Router /api/v1/services/clear_fixed [post]
func (h *Handlers) ClearFixed(c *gin.Context) {
	h.callService(c, h.dispatcher.ClearFixed)
}

func (h *Handlers) callService(c *gin.Context, call serviceCall) {
	data := map[string]any{}
	if err := c.ShouldBindJSON(&data); err != nil && !errors.Is(err, io.EOF) {
		h.fail(c, errors.WithDetails(errors.WithKey(errors.ErrBadRequest, "invalid_body"), err.Error()))
		return
	}

	result, err := call(c.Request.Context(), data)
	if err != nil {
		h.fail(c, err)
		return
	}
	utils.SendSuccess(c, result)
}

// ServiceStatus reports whether the notification services are available
func (h *Handlers) ServiceStatus(c *gin.Context) {
	status := http.StatusOK
	if !h.dispatcher.Registered() {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{
		"success":    status == http.StatusOK,
		"registered": h.dispatcher.Registered(),
		"services":   []string{services.ServiceNotify, services.ServiceNotifyFixed, services.ServiceClearFixed},
	})
}
