package websocket

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gofiber/contrib/websocket"
	"go.uber.org/zap"

	"github.com/genstudio/api/internal/model"
)

const (
	sendBuffer   = 32
	pingInterval = 30 * time.Second
)

// Client is one websocket subscribed to a task.
type Client struct {
	TaskID string
	Conn   *websocket.Conn
	Send   chan []byte
}

// Hub fans task updates out to the websockets subscribed to each task.
type Hub struct {
	// Clients grouped by task ID, only touched by Run
	clients map[string]map[*Client]struct{}

	register   chan *Client
	unregister chan *Client
	broadcast  chan *BroadcastMessage
	done       chan struct{}

	logger *zap.Logger
}

// BroadcastMessage is an encoded message for the subscribers of a task.
type BroadcastMessage struct {
	TaskID  string
	Message []byte
}

func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		clients:    make(map[string]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *BroadcastMessage, 256),
		done:       make(chan struct{}),
		logger:     logger.Named("ws"),
	}
}

// Run owns the subscription table until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for _, clients := range h.clients {
				for client := range clients {
					close(client.Send)
				}
			}
			h.clients = make(map[string]map[*Client]struct{})
			return

		case client := <-h.register:
			if h.clients[client.TaskID] == nil {
				h.clients[client.TaskID] = make(map[*Client]struct{})
			}
			h.clients[client.TaskID][client] = struct{}{}
			h.logger.Debug("client subscribed", zap.String("task_id", client.TaskID))

		case client := <-h.unregister:
			h.drop(client)
			h.logger.Debug("client unsubscribed", zap.String("task_id", client.TaskID))

		case msg := <-h.broadcast:
			for client := range h.clients[msg.TaskID] {
				select {
				case client.Send <- msg.Message:
				default:
					// slow consumer
					h.drop(client)
				}
			}
		}
	}
}

func (h *Hub) drop(client *Client) {
	clients, ok := h.clients[client.TaskID]
	if !ok {
		return
	}
	if _, ok := clients[client]; !ok {
		return
	}
	delete(clients, client)
	close(client.Send)
	if len(clients) == 0 {
		delete(h.clients, client.TaskID)
	}
}

// Register subscribes client. It reports false once the hub has stopped.
func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// BroadcastProgress sends a non-terminal status update.
func (h *Hub) BroadcastProgress(taskID string, status model.TaskStatus, attempt int) {
	h.send(taskID, model.WSProgressMessage{
		Type:    model.WSMessageTypeProgress,
		TaskID:  taskID,
		Status:  string(status),
		Attempt: attempt,
	})
}

// BroadcastComplete sends the artifacts of a completed task.
func (h *Hub) BroadcastComplete(taskID string, artifacts []model.Artifact) {
	h.send(taskID, model.WSCompleteMessage{
		Type:   model.WSMessageTypeComplete,
		TaskID: taskID,
		Result: artifacts,
	})
}

// BroadcastError sends the failure of a task.
func (h *Hub) BroadcastError(taskID string, code, message string) {
	h.send(taskID, model.WSErrorMessage{
		Type:   model.WSMessageTypeError,
		TaskID: taskID,
		Error:  model.WSError{Code: code, Message: message},
	})
}

func (h *Hub) send(taskID string, msg any) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("failed to marshal ws message", zap.String("task_id", taskID), zap.Error(err))
		return
	}
	select {
	case h.broadcast <- &BroadcastMessage{TaskID: taskID, Message: data}:
	default:
		h.logger.Warn("ws broadcast queue full, dropping message", zap.String("task_id", taskID))
	}
}

// HandleConnection serves one websocket until the peer goes away.
func (h *Hub) HandleConnection(c *websocket.Conn, taskID string) {
	client := &Client{
		TaskID: taskID,
		Conn:   c,
		Send:   make(chan []byte, sendBuffer),
	}

	if !h.Register(client) {
		return
	}
	defer h.Unregister(client)

	pongs := make(chan struct{}, 1)
	go func() {
		ticker := time.NewTicker(pingInterval)
		defer ticker.Stop()

		for {
			select {
			case message, ok := <-client.Send:
				if !ok {
					_ = c.WriteMessage(websocket.CloseMessage, []byte{})
					return
				}
				if err := c.WriteMessage(websocket.TextMessage, message); err != nil {
					return
				}

			case <-pongs:
				data, _ := json.Marshal(model.WSMessage{Type: model.WSMessageTypePong})
				if err := c.WriteMessage(websocket.TextMessage, data); err != nil {
					return
				}

			case <-ticker.C:
				if err := c.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	for {
		_, message, err := c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Warn("websocket read error", zap.String("task_id", taskID), zap.Error(err))
			}
			break
		}

		var msg model.WSMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			continue
		}
		if msg.Type == model.WSMessageTypePing {
			select {
			case pongs <- struct{}{}:
			default:
			}
		}
	}
}
