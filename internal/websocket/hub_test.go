package websocket

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/frostdev-ops/pma-tvoverlay/internal/core/coordinator"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startHub(t *testing.T) (*Hub, string) {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	hub := NewHub(Config{HeartbeatInterval: time.Hour}, logger, nil)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(cancel)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		HandleWebSocket(hub, w, r)
	}))
	t.Cleanup(server.Close)
	return hub, "ws" + strings.TrimPrefix(server.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	welcome := readMessage(t, conn)
	require.Equal(t, MessageTypeConnection, welcome.Type)
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	var msg Message
	require.NoError(t, json.Unmarshal(raw, &msg))
	return msg
}

func waitForClients(t *testing.T, hub *Hub, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return hub.GetClientCount() == n }, 5*time.Second, 10*time.Millisecond)
}

func TestHubBroadcastsDeviceUpdates(t *testing.T) {
	hub, url := startHub(t)
	conn := dial(t, url)
	waitForClients(t, hub, 1)

	hub.PublishDeviceState("e1", coordinator.State{Name: "Living Room", Available: true})
	msg := readMessage(t, conn)
	assert.Equal(t, MessageTypeDeviceState, msg.Type)
	assert.Equal(t, "e1", msg.Data["entry_id"])

	hub.PublishNotificationIDs("e1", []string{"weather"})
	msg = readMessage(t, conn)
	assert.Equal(t, MessageTypeNotificationIDs, msg.Type)
	assert.Equal(t, []interface{}{"weather"}, msg.Data["notification_ids"])
}

func TestHubFiltersBySubscription(t *testing.T) {
	hub, url := startHub(t)
	following := dial(t, url+"?entry_id=e2")
	waitForClients(t, hub, 1)

	// e1 is filtered out, so the first message to arrive is the e2 update
	hub.PublishNotificationIDs("e1", []string{"a"})
	hub.PublishNotificationIDs("e2", []string{"b"})
	msg := readMessage(t, following)
	assert.Equal(t, "e2", msg.Data["entry_id"])

	require.NoError(t, following.WriteJSON(map[string]interface{}{
		"type": MessageTypeSubscribe,
		"data": map[string]interface{}{"entry_id": "e3"},
	}))
	msg = readMessage(t, following)
	assert.Equal(t, MessageTypeSubscriptionUpdate, msg.Type)
	assert.Equal(t, []interface{}{"e2", "e3"}, msg.Data["entry_ids"])
}

func TestHubPing(t *testing.T) {
	hub, url := startHub(t)
	conn := dial(t, url)
	waitForClients(t, hub, 1)

	require.NoError(t, conn.WriteJSON(map[string]interface{}{"type": MessageTypePing, "data": map[string]interface{}{}}))
	msg := readMessage(t, conn)
	assert.Equal(t, MessageTypePong, msg.Type)
	assert.Eventually(t, func() bool { return hub.GetStats().MessagesReceived == 1 }, 5*time.Second, 10*time.Millisecond)
}

func TestHubUnregistersClosedClients(t *testing.T) {
	hub, url := startHub(t)
	conn := dial(t, url)
	waitForClients(t, hub, 1)

	require.NoError(t, conn.Close())
	waitForClients(t, hub, 0)
	assert.EqualValues(t, 1, hub.GetStats().TotalConnections)
}

func TestClientSubscriptions(t *testing.T) {
	c := &Client{entries: map[string]bool{}, logger: logrus.New()}
	c.logger.SetOutput(io.Discard)

	assert.True(t, c.IsSubscribed("any"))
	c.Subscribe("e1")
	assert.True(t, c.IsSubscribed("e1"))
	assert.False(t, c.IsSubscribed("e2"))
	assert.True(t, c.IsSubscribed(""))
	c.Unsubscribe("e1")
	assert.True(t, c.IsSubscribed("e2"))
}
