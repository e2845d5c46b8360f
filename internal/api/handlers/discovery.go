package handlers

import (
	"net/http"

	"github.com/frostdev-ops/pma-tvoverlay/internal/adapters/tvoverlay"
	"github.com/frostdev-ops/pma-tvoverlay/internal/core/registry"
	"github.com/frostdev-ops/pma-tvoverlay/pkg/errors"
	"github.com/frostdev-ops/pma-tvoverlay/pkg/utils"
	"github.com/gin-gonic/gin"
)

// DiscoveredDeviceResponse is an announced device and whether it is
// registered already
type DiscoveredDeviceResponse struct {
	tvoverlay.DiscoveredDevice
	Configured bool   `json:"configured"`
	EntryID    string `json:"entry_id,omitempty"`
}

// Discover godoc
// @Summary Browse the local network for overlay devices
// @Tags discovery
// @Produce json
// @Router /api/v1/discovery [get]
func (h *Handlers) Discover(c *gin.Context) {
	if h.discoverer == nil {
		h.fail(c, errors.WithKey(errors.New(http.StatusServiceUnavailable, "Discovery is disabled"), "discovery_disabled"))
		return
	}

	found, err := h.discoverer.Discover(c.Request.Context())
	if err != nil {
		h.fail(c, errors.WithDetails(errors.WithKey(errors.ErrBadGateway, "discovery_failed"), err.Error()))
		return
	}

	configured := make(map[string]string)
	for _, e := range h.setup.Entries() {
		configured[registry.AddressKey(e.Registration.Host, e.Registration.Port)] = e.ID()
	}

	devices := make([]DiscoveredDeviceResponse, 0, len(found))
	for _, d := range found {
		entryID, ok := configured[registry.AddressKey(d.Host, d.Port)]
		devices = append(devices, DiscoveredDeviceResponse{
			DiscoveredDevice: d,
			Configured:       ok,
			EntryID:          entryID,
		})
	}
	utils.SendSuccessWithMeta(c, devices, gin.H{"count": len(devices)})
}
