package websocketadapter

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialHub(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func waitForClients(t *testing.T, hub *Hub, want int) {
	t.Helper()
	require.Eventually(t, func() bool { return hub.ClientCount() == want },
		2*time.Second, 10*time.Millisecond)
}

func TestBroadcastReachesEveryClient(t *testing.T) {
	hub := NewHub(nil)
	server := httptest.NewServer(hub)
	defer server.Close()
	defer hub.Close()

	first := dialHub(t, server)
	second := dialHub(t, server)
	waitForClients(t, hub, 2)

	require.NoError(t, hub.Broadcast(context.Background(), "products:updated"))

	for _, conn := range []*websocket.Conn{first, second} {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		var message liveMessage
		require.NoError(t, conn.ReadJSON(&message))
		assert.Equal(t, "products:updated", message.Event)
	}
}

func TestClientDisconnectUnregisters(t *testing.T) {
	hub := NewHub(nil)
	server := httptest.NewServer(hub)
	defer server.Close()
	defer hub.Close()

	conn := dialHub(t, server)
	waitForClients(t, hub, 1)

	require.NoError(t, conn.Close())
	waitForClients(t, hub, 0)
}

func TestBroadcastWithoutClientsSucceeds(t *testing.T) {
	hub := NewHub(nil)
	assert.NoError(t, hub.Broadcast(context.Background(), "orders:updated"))
	assert.Zero(t, hub.ClientCount())
}

func TestCloseDisconnectsClients(t *testing.T) {
	hub := NewHub(nil)
	server := httptest.NewServer(hub)
	defer server.Close()

	conn := dialHub(t, server)
	waitForClients(t, hub, 1)

	hub.Close()
	assert.Zero(t, hub.ClientCount())

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
}
