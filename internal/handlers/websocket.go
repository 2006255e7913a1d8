package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/macrolens/internal/interfaces"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // dashboard clients are served from other origins during local use
	},
}

// WSMessage is the envelope sent to stream clients
type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// RunEventUpdate is the wire form of a run lifecycle event
type RunEventUpdate struct {
	RunID         string   `json:"run_id,omitempty"`
	EffectiveDate string   `json:"effective_date"`
	Provider      string   `json:"provider,omitempty"`
	Redactions    int      `json:"redactions"`
	Files         []string `json:"files,omitempty"`
	Stage         string   `json:"stage,omitempty"`
	Error         string   `json:"error,omitempty"`
}

// WebSocketHandler streams audit lifecycle events to connected clients
type WebSocketHandler struct {
	logger      arbor.ILogger
	clients     map[*websocket.Conn]bool
	clientMutex map[*websocket.Conn]*sync.Mutex
	mu          sync.RWMutex
}

func NewWebSocketHandler(logger arbor.ILogger) *WebSocketHandler {
	return &WebSocketHandler{
		logger:      logger,
		clients:     make(map[*websocket.Conn]bool),
		clientMutex: make(map[*websocket.Conn]*sync.Mutex),
	}
}

// SubscribeToRunEvents forwards every run lifecycle event on the bus to clients
func (h *WebSocketHandler) SubscribeToRunEvents(eventService interfaces.EventService) error {
	for _, eventType := range []interfaces.EventType{
		interfaces.EventRunCompleted,
		interfaces.EventReportRendered,
		interfaces.EventPipelineFailed,
	} {
		if err := eventService.Subscribe(eventType, h.handleEvent); err != nil {
			return err
		}
	}
	return nil
}

func (h *WebSocketHandler) handleEvent(ctx context.Context, event interfaces.Event) error {
	var update RunEventUpdate
	switch p := event.Payload.(type) {
	case interfaces.RunEventPayload:
		update = RunEventUpdate{
			RunID:         p.RunID,
			EffectiveDate: p.EffectiveDate,
			Provider:      p.Provider,
			Redactions:    p.Redactions,
			Files:         p.Files,
		}
	case interfaces.FailureEventPayload:
		update = RunEventUpdate{
			EffectiveDate: p.EffectiveDate,
			Stage:         p.Stage,
		}
		if p.Err != nil {
			update.Error = p.Err.Error()
		}
	default:
		h.logger.Debug().Str("event", string(event.Type)).Msg("Ignoring event with unknown payload")
		return nil
	}

	h.Broadcast(WSMessage{Type: string(event.Type), Payload: update})
	return nil
}

// HandleWebSocket handles GET /ws
func (h *WebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to upgrade WebSocket connection")
		return
	}

	h.mu.Lock()
	h.clients[conn] = true
	h.clientMutex[conn] = &sync.Mutex{}
	clientCount := len(h.clients)
	h.mu.Unlock()

	h.logger.Debug().Int("clients", clientCount).Msg("WebSocket client connected")

	defer func() {
		h.mu.Lock()
		delete(h.clients, conn)
		delete(h.clientMutex, conn)
		remaining := len(h.clients)
		h.mu.Unlock()

		conn.Close()
		h.logger.Debug().Int("clients", remaining).Msg("WebSocket client disconnected")
	}()

	// Clients only listen; reading detects disconnects
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Warn().Err(err).Msg("WebSocket error")
			}
			return
		}
	}
}

// ClientCount returns the number of connected clients
func (h *WebSocketHandler) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast sends msg to every connected client
func (h *WebSocketHandler) Broadcast(msg WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error().Err(err).Str("type", msg.Type).Msg("Failed to marshal WebSocket message")
		return
	}

	h.mu.RLock()
	clients := make([]*websocket.Conn, 0, len(h.clients))
	mutexes := make([]*sync.Mutex, 0, len(h.clients))
	for conn := range h.clients {
		clients = append(clients, conn)
		mutexes = append(mutexes, h.clientMutex[conn])
	}
	h.mu.RUnlock()

	for i, conn := range clients {
		mutexes[i].Lock()
		err := conn.WriteMessage(websocket.TextMessage, data)
		mutexes[i].Unlock()

		if err != nil {
			h.logger.Warn().Err(err).Str("type", msg.Type).Msg("Failed to send message to client")
		}
	}
}
