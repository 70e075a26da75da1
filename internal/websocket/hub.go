package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Priya8975/socialproof-pipeline/internal/domain"
)

// Notification types.
const (
	TypeEventIngested  = "event_ingested"
	TypeSyncCompleted  = "sync_completed"
	TypePreviewUpdated = "preview_updated"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for development
	},
}

// Notification is one message on the live feed.
type Notification struct {
	Type        string    `json:"type"`
	ConnectorID string    `json:"connector_id,omitempty"`
	Provider    string    `json:"provider,omitempty"`
	EventID     string    `json:"event_id,omitempty"`
	Data        any       `json:"data,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// Hub fans notifications out to websocket clients and in-process
// subscribers. Publishers never block: a full buffer drops the message.
type Hub struct {
	clients     map[*client]struct{}
	mu          sync.RWMutex
	broadcast   chan Notification
	register    chan *client
	unregister  chan *client
	subscribers map[chan Notification]struct{}
	subMu       sync.Mutex
	done        chan struct{}
	logger      *slog.Logger
}

type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients:     make(map[*client]struct{}),
		broadcast:   make(chan Notification, 256),
		register:    make(chan *client),
		unregister:  make(chan *client),
		subscribers: make(map[chan Notification]struct{}),
		done:        make(chan struct{}),
		logger:      logger,
	}
}

// Run is the hub's event loop. It returns when ctx is cancelled, closing
// every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			n := len(h.clients)
			h.mu.Unlock()
			h.logger.Debug("websocket client connected", "total_clients", n)

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			n := len(h.clients)
			h.mu.Unlock()
			h.logger.Debug("websocket client disconnected", "total_clients", n)

		case n := <-h.broadcast:
			h.deliver(n)
		}
	}
}

func (h *Hub) deliver(n Notification) {
	h.subMu.Lock()
	for ch := range h.subscribers {
		select {
		case ch <- n:
		default:
		}
	}
	h.subMu.Unlock()

	data, err := json.Marshal(n)
	if err != nil {
		h.logger.Error("failed to marshal websocket notification", "type", n.Type, "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			// Slow client; drop it rather than stall everyone else.
			delete(h.clients, c)
			close(c.send)
		}
	}
}

// Publish queues n for every client and subscriber.
func (h *Hub) Publish(n Notification) {
	if n.Timestamp.IsZero() {
		n.Timestamp = time.Now().UTC()
	}
	select {
	case h.broadcast <- n:
	default:
		h.logger.Warn("websocket broadcast channel full, dropping notification", "type", n.Type)
	}
}

// Subscribe registers an in-process listener. The returned func
// unsubscribes and closes the channel.
func (h *Hub) Subscribe(buffer int) (<-chan Notification, func()) {
	ch := make(chan Notification, buffer)
	h.subMu.Lock()
	h.subscribers[ch] = struct{}{}
	h.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.subMu.Lock()
			delete(h.subscribers, ch)
			h.subMu.Unlock()
			close(ch)
		})
	}
}

func (h *Hub) EventIngested(ev domain.StoredEvent) {
	h.Publish(Notification{
		Type:        TypeEventIngested,
		ConnectorID: ev.ConnectorID,
		Provider:    ev.Provider,
		EventID:     ev.EventID,
		Data:        ev,
	})
}

func (h *Hub) SyncCompleted(connectorID string, result domain.SyncResult) {
	h.Publish(Notification{
		Type:        TypeSyncCompleted,
		ConnectorID: connectorID,
		Data:        result,
	})
}

// PreviewUpdated announces a freshly computed preview for a template.
func (h *Hub) PreviewUpdated(templateID string, preview any) {
	h.Publish(Notification{
		Type: TypePreviewUpdated,
		Data: map[string]any{"template_id": templateID, "preview": preview},
	})
}

// HandleWebSocket upgrades HTTP connections to WebSocket and registers the client.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	c := &client{
		hub:  h,
		conn: conn,
		send: make(chan []byte, 256),
	}

	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	}

	go c.writePump()
	go c.readPump()
}

// readPump only watches for disconnects and pongs; clients do not send
// anything meaningful.
func (c *client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ClientCount returns the number of connected WebSocket clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
