package websocket

import (
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// Maximum message size allowed from peer
const maxMessageSize = 512

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origins are enforced by the CORS middleware
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Client is a middleman between the websocket connection and the hub
type Client struct {
	// Unique client identifier
	ID string

	conn *websocket.Conn
	hub  *Hub

	// Buffered channel of outbound messages
	send chan []byte

	logger *logrus.Logger

	UserAgent   string    `json:"user_agent"`
	RemoteAddr  string    `json:"remote_addr"`
	ConnectedAt time.Time `json:"connected_at"`

	mu sync.Mutex
	// entries the client follows; none means all of them
	entries map[string]bool
	closed  bool
}

// HandleWebSocket upgrades the request and attaches the connection to hub
func HandleWebSocket(hub *Hub, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		hub.logger.WithError(err).Error("Failed to upgrade WebSocket connection")
		return
	}

	client := &Client{
		ID:          uuid.New().String(),
		conn:        conn,
		hub:         hub,
		send:        make(chan []byte, 256),
		logger:      hub.logger,
		UserAgent:   r.Header.Get("User-Agent"),
		RemoteAddr:  r.RemoteAddr,
		ConnectedAt: time.Now(),
		entries:     make(map[string]bool),
	}
	for _, id := range r.URL.Query()["entry_id"] {
		client.entries[id] = true
	}

	select {
	case hub.register <- client:
	case <-hub.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// HandleWebSocketGin is a Gin-compatible wrapper for HandleWebSocket
func HandleWebSocketGin(hub *Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		HandleWebSocket(hub, c.Writer, c.Request)
	}
}

// readPump pumps messages from the websocket connection to the hub
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	pongWait := c.hub.config.PongTimeout
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.WithError(err).Error("WebSocket connection error")
			}
			break
		}

		c.hub.countReceived()
		c.handleMessage(message)
	}
}

// writePump pumps messages from the hub to the websocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(c.hub.config.PingInterval)
	writeWait := c.hub.config.WriteTimeout
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			// One JSON document per frame
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage processes incoming messages from the client
func (c *Client) handleMessage(raw []byte) {
	var msg Message
	if err := msg.UnmarshalJSON(raw); err != nil {
		c.logger.WithError(err).Warn("Failed to unmarshal WebSocket message")
		return
	}

	switch msg.Type {
	case MessageTypeSubscribe:
		if id, ok := msg.Data["entry_id"].(string); ok && id != "" {
			c.Subscribe(id)
			c.sendSubscriptions()
		}
	case MessageTypeUnsubscribe:
		if id, ok := msg.Data["entry_id"].(string); ok && id != "" {
			c.Unsubscribe(id)
			c.sendSubscriptions()
		}
	case MessageTypePing:
		pong := Message{Type: MessageTypePong, Data: map[string]interface{}{}}
		c.enqueue(pong.ToJSON())
	default:
		c.logger.WithField("message_type", msg.Type).Warn("Unknown WebSocket message type")
	}
}

func (c *Client) sendSubscriptions() {
	update := Message{
		Type: MessageTypeSubscriptionUpdate,
		Data: map[string]interface{}{"entry_ids": c.Subscriptions()},
	}
	c.enqueue(update.ToJSON())
}

// enqueue queues data for the write pump. It reports false when the buffer
// is full. Data for a closed client is discarded.
func (c *Client) enqueue(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return true
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// Subscribe limits the client to updates of the given registrations
func (c *Client) Subscribe(entryID string) {
	c.mu.Lock()
	c.entries[entryID] = true
	c.mu.Unlock()
	c.logger.WithFields(logrus.Fields{
		"client_id": c.ID,
		"entry_id":  entryID,
	}).Debug("Client subscribed to device")
}

// Unsubscribe stops following a registration. A client following nothing
// receives every update again.
func (c *Client) Unsubscribe(entryID string) {
	c.mu.Lock()
	delete(c.entries, entryID)
	c.mu.Unlock()
	c.logger.WithFields(logrus.Fields{
		"client_id": c.ID,
		"entry_id":  entryID,
	}).Debug("Client unsubscribed from device")
}

// IsSubscribed reports whether updates of entryID reach the client
func (c *Client) IsSubscribed(entryID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return entryID == "" || len(c.entries) == 0 || c.entries[entryID]
}

// Subscriptions returns the followed registration ids, sorted
func (c *Client) Subscriptions() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	ids := make([]string, 0, len(c.entries))
	for id := range c.entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
