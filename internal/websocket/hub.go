package websocket

import (
	"context"
	"sync"
	"time"

	"github.com/frostdev-ops/pma-tvoverlay/internal/core/coordinator"
	"github.com/frostdev-ops/pma-tvoverlay/internal/core/metrics"
	"github.com/frostdev-ops/pma-tvoverlay/internal/core/registry"
	"github.com/sirupsen/logrus"
)

// outbound is a serialized message and the registration it concerns. An
// empty entryID reaches every client.
type outbound struct {
	entryID string
	data    []byte
}

// Hub maintains the set of active clients and broadcasts messages to the clients
type Hub struct {
	// Registered clients
	clients map[*Client]bool

	// Outbound messages
	broadcast chan outbound

	// Register requests from the clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	// Closed when Run returns
	done chan struct{}

	config  Config
	logger  *logrus.Logger
	metrics metrics.MetricsCollector

	mu    sync.RWMutex
	stats *HubStats
}

// HubStats contains hub statistics
type HubStats struct {
	ConnectedClients int       `json:"connected_clients"`
	TotalConnections int64     `json:"total_connections"`
	MessagesSent     int64     `json:"messages_sent"`
	MessagesReceived int64     `json:"messages_received"`
	MessagesDropped  int64     `json:"messages_dropped"`
	LastActivity     time.Time `json:"last_activity"`
}

// Config holds connection timings
type Config struct {
	PingInterval time.Duration
	PongTimeout  time.Duration
	WriteTimeout time.Duration
	// HeartbeatInterval is how often the hub broadcasts a heartbeat
	HeartbeatInterval time.Duration
}

// DefaultConfig returns the default connection timings
func DefaultConfig() Config {
	return Config{
		PingInterval:      54 * time.Second,
		PongTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Second,
		HeartbeatInterval: 30 * time.Second,
	}
}

// NewHub creates a new WebSocket hub
func NewHub(cfg Config, logger *logrus.Logger, collector metrics.MetricsCollector) *Hub {
	defaults := DefaultConfig()
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = defaults.PingInterval
	}
	if cfg.PongTimeout <= 0 {
		cfg.PongTimeout = defaults.PongTimeout
	}
	if cfg.PingInterval >= cfg.PongTimeout {
		cfg.PingInterval = cfg.PongTimeout * 9 / 10
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = defaults.WriteTimeout
	}
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = defaults.HeartbeatInterval
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if collector == nil {
		collector = metrics.NoopCollector{}
	}
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan outbound, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		config:     cfg,
		logger:     logger,
		metrics:    collector,
		stats: &HubStats{
			LastActivity: time.Now(),
		},
	}
}

// Run handles client registration, unregistration and broadcasting until
// ctx is done. Remaining clients are disconnected on return.
func (h *Hub) Run(ctx context.Context) {
	h.logger.Info("WebSocket hub started")

	ticker := time.NewTicker(h.config.HeartbeatInterval)
	defer ticker.Stop()
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			h.logger.Info("WebSocket hub stopped")
			return

		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case msg := <-h.broadcast:
			h.broadcastMessage(msg)

		case <-ticker.C:
			h.sendHeartbeat()
		}
	}
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	h.stats.TotalConnections++
	h.stats.ConnectedClients = len(h.clients)
	h.stats.LastActivity = time.Now()
	count := len(h.clients)
	h.mu.Unlock()

	h.metrics.RecordWebSocketConnection("connect")
	h.logger.WithFields(logrus.Fields{
		"client_id":         client.ID,
		"remote_addr":       client.RemoteAddr,
		"connected_clients": count,
	}).Info("WebSocket client connected")

	welcome := Message{
		Type: MessageTypeConnection,
		Data: map[string]interface{}{
			"status":    "connected",
			"client_id": client.ID,
		},
	}
	client.enqueue(welcome.ToJSON())
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	_, ok := h.clients[client]
	if ok {
		delete(h.clients, client)
		client.closeSend()
		h.stats.ConnectedClients = len(h.clients)
		h.stats.LastActivity = time.Now()
	}
	count := len(h.clients)
	h.mu.Unlock()

	if !ok {
		return
	}
	h.metrics.RecordWebSocketConnection("disconnect")
	h.logger.WithFields(logrus.Fields{
		"client_id":         client.ID,
		"connected_clients": count,
	}).Info("WebSocket client disconnected")
}

func (h *Hub) closeAll() {
	for _, client := range h.GetAllClients() {
		h.unregisterClient(client)
	}
}

func (h *Hub) broadcastMessage(msg outbound) {
	var slow []*Client
	sent := 0

	for _, client := range h.GetAllClients() {
		if !client.IsSubscribed(msg.entryID) {
			continue
		}
		if !client.enqueue(msg.data) {
			slow = append(slow, client)
			continue
		}
		sent++
	}

	// A client whose send buffer is full is disconnected
	for _, client := range slow {
		h.unregisterClient(client)
	}

	h.mu.Lock()
	h.stats.MessagesSent++
	h.stats.LastActivity = time.Now()
	h.mu.Unlock()

	h.logger.WithFields(logrus.Fields{
		"message_size": len(msg.data),
		"clients_sent": sent,
		"entry_id":     msg.entryID,
	}).Debug("Message broadcasted to WebSocket clients")
}

func (h *Hub) sendHeartbeat() {
	heartbeat := Message{
		Type: MessageTypeHeartbeat,
		Data: map[string]interface{}{
			"clients": h.GetClientCount(),
		},
	}
	h.broadcastMessage(outbound{data: heartbeat.ToJSON()})
}

// BroadcastToAll broadcasts a message to all connected clients
func (h *Hub) BroadcastToAll(message Message) {
	h.queue(outbound{data: message.ToJSON()})
}

// BroadcastToEntry broadcasts a message to the clients following entryID
func (h *Hub) BroadcastToEntry(entryID string, message Message) {
	h.queue(outbound{entryID: entryID, data: message.ToJSON()})
}

func (h *Hub) queue(msg outbound) {
	select {
	case h.broadcast <- msg:
	default:
		h.mu.Lock()
		h.stats.MessagesDropped++
		h.mu.Unlock()
		h.logger.Warn("Broadcast channel is full, message dropped")
	}
}

// PublishDeviceState broadcasts a coordinator update
func (h *Hub) PublishDeviceState(entryID string, state coordinator.State) {
	h.BroadcastToEntry(entryID, DeviceStateMessage(entryID, state))
}

// PublishNotificationIDs broadcasts the visible fixed notification ids of a
// registration
func (h *Hub) PublishNotificationIDs(entryID string, ids []string) {
	h.BroadcastToEntry(entryID, NotificationIDsMessage(entryID, ids))
}

// PublishRegistration broadcasts a registration lifecycle event
func (h *Hub) PublishRegistration(event string, reg registry.Registration) {
	h.BroadcastToAll(RegistrationMessage(event, reg))
}

// GetStats returns current hub statistics
func (h *Hub) GetStats() *HubStats {
	h.mu.RLock()
	defer h.mu.RUnlock()

	statsCopy := *h.stats
	statsCopy.ConnectedClients = len(h.clients)
	return &statsCopy
}

// GetClientCount returns the current number of connected clients
func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// GetAllClients returns a copy of all connected clients
func (h *Hub) GetAllClients() []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()

	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	return clients
}

func (h *Hub) countReceived() {
	h.mu.Lock()
	h.stats.MessagesReceived++
	h.mu.Unlock()
}
