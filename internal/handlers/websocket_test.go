package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/macrolens/internal/interfaces"
	"github.com/ternarybob/macrolens/internal/services/events"
)

func dialStream(t *testing.T, h *WebSocketHandler, clients int) []*websocket.Conn {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(h.HandleWebSocket))
	t.Cleanup(server.Close)
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")

	conns := make([]*websocket.Conn, clients)
	for i := range conns {
		conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
		require.NoError(t, err)
		t.Cleanup(func() { conn.Close() })
		conns[i] = conn
	}

	// Registration happens on the server goroutine after the handshake
	require.Eventually(t, func() bool { return h.ClientCount() == clients }, 2*time.Second, 10*time.Millisecond)
	return conns
}

func TestWebSocketHandler_ForwardsRunEvents(t *testing.T) {
	h := NewWebSocketHandler(testLogger)
	bus := events.NewService(testLogger)
	defer bus.Close()
	require.NoError(t, h.SubscribeToRunEvents(bus))

	conns := dialStream(t, h, 3)

	require.NoError(t, bus.PublishSync(context.Background(), interfaces.Event{
		Type: interfaces.EventRunCompleted,
		Payload: interfaces.RunEventPayload{
			RunID:         "run_1",
			EffectiveDate: "2025-06-20",
			Redactions:    2,
		},
	}))

	for i, conn := range conns {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var msg struct {
			Type    string         `json:"type"`
			Payload RunEventUpdate `json:"payload"`
		}
		require.NoError(t, conn.ReadJSON(&msg), "client %d", i)
		assert.Equal(t, string(interfaces.EventRunCompleted), msg.Type)
		assert.Equal(t, "run_1", msg.Payload.RunID)
		assert.Equal(t, 2, msg.Payload.Redactions)
	}
}

func TestWebSocketHandler_FailureEvent(t *testing.T) {
	h := NewWebSocketHandler(testLogger)
	conns := dialStream(t, h, 1)

	require.NoError(t, h.handleEvent(context.Background(), interfaces.Event{
		Type: interfaces.EventPipelineFailed,
		Payload: interfaces.FailureEventPayload{
			EffectiveDate: "2025-06-20",
			Stage:         "render",
			Err:           errors.New("disk full"),
		},
	}))

	conns[0].SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg struct {
		Type    string         `json:"type"`
		Payload RunEventUpdate `json:"payload"`
	}
	require.NoError(t, conns[0].ReadJSON(&msg))
	assert.Equal(t, string(interfaces.EventPipelineFailed), msg.Type)
	assert.Equal(t, "render", msg.Payload.Stage)
	assert.Equal(t, "disk full", msg.Payload.Error)
}

func TestWebSocketHandler_DisconnectUnregisters(t *testing.T) {
	h := NewWebSocketHandler(testLogger)
	conns := dialStream(t, h, 2)

	require.NoError(t, conns[0].Close())
	assert.Eventually(t, func() bool { return h.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	// Unknown payloads are dropped without error
	assert.NoError(t, h.handleEvent(context.Background(), interfaces.Event{Type: "other", Payload: 42}))
}
