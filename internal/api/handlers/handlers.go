package handlers

import (
	"github.com/frostdev-ops/pma-tvoverlay/internal/adapters/tvoverlay"
	"github.com/frostdev-ops/pma-tvoverlay/internal/config"
	"github.com/frostdev-ops/pma-tvoverlay/internal/core/entities"
	"github.com/frostdev-ops/pma-tvoverlay/internal/core/metrics"
	"github.com/frostdev-ops/pma-tvoverlay/internal/core/services"
	"github.com/frostdev-ops/pma-tvoverlay/internal/core/setup"
	"github.com/frostdev-ops/pma-tvoverlay/internal/websocket"
	"github.com/sirupsen/logrus"
)

// Handlers holds all HTTP handlers and their dependencies
type Handlers struct {
	cfg        *config.Config
	log        *logrus.Logger
	dispatcher *services.Dispatcher
	setup      *setup.Manager
	controller *entities.Controller
	discoverer *tvoverlay.Discoverer
	health     *metrics.HealthChecker
	wsHub      *websocket.Hub
}

// Dependencies are the services the handlers call into. Discoverer may be
// nil when discovery is disabled.
type Dependencies struct {
	Dispatcher *services.Dispatcher
	Setup      *setup.Manager
	Controller *entities.Controller
	Discoverer *tvoverlay.Discoverer
	Health     *metrics.HealthChecker
	Hub        *websocket.Hub
}

// NewHandlers creates a new handlers instance
func NewHandlers(cfg *config.Config, deps Dependencies, logger *logrus.Logger) *Handlers {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Handlers{
		cfg:        cfg,
		log:        logger,
		dispatcher: deps.Dispatcher,
		setup:      deps.Setup,
		controller: deps.Controller,
		discoverer: deps.Discoverer,
		health:     deps.Health,
		wsHub:      deps.Hub,
	}
}
