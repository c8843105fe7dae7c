package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iliyamo/section-queue/internal/queue"
)

func dialHub(t *testing.T, h *Hub) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = h.ServeWS(w, r)
	}))
	t.Cleanup(srv.Close)
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func waitClients(t *testing.T, h *Hub, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return h.Clients() == n }, time.Second, 5*time.Millisecond)
}

func TestHub_BroadcastsEventsInOrder(t *testing.T) {
	h := NewHub(zap.NewNop())
	a := dialHub(t, h)
	b := dialHub(t, h)
	waitClients(t, h, 2)

	require.NoError(t, h.Deliver(context.Background(), queue.QueueUpdated("Loan")))
	require.NoError(t, h.Deliver(context.Background(), queue.CheckStatusUpdated()))

	for _, conn := range []*websocket.Conn{a, b} {
		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var first, second queue.Event
		_, msg, err := conn.ReadMessage()
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(msg, &first))
		_, msg, err = conn.ReadMessage()
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(msg, &second))

		assert.Equal(t, queue.EventQueueUpdated, first.Name)
		assert.Equal(t, "Loan", first.Section)
		assert.Equal(t, queue.EventCheckStatusUpdated, second.Name)
	}
}

func TestHub_ClientDisconnectIsRemoved(t *testing.T) {
	h := NewHub(zap.NewNop())
	conn := dialHub(t, h)
	waitClients(t, h, 1)

	require.NoError(t, conn.Close())
	waitClients(t, h, 0)
	h.Broadcast([]byte(`{}`)) // no clients, no panic
}

func TestHub_Close(t *testing.T) {
	h := NewHub(zap.NewNop())
	conn := dialHub(t, h)
	waitClients(t, h, 1)

	h.Close()
	assert.Equal(t, 0, h.Clients())
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
}
