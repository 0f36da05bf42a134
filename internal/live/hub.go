// Package live pushes task events to connected WebSocket clients. A client
// only ever receives events for tasks it is allowed to read.
package live

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/taskpilot/internal/authz"
	"github.com/Skotchmaster/taskpilot/internal/models"
	"github.com/Skotchmaster/taskpilot/internal/mykafka"
	"github.com/Skotchmaster/taskpilot/pkg/logging"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 64
)

type client struct {
	id       uuid.UUID
	identity authz.Identity
	conn     *websocket.Conn
	send     chan []byte
	once     sync.Once
}

func (c *client) close() {
	c.once.Do(func() { close(c.send) })
}

type Hub struct {
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[uuid.UUID]*client
}

// NewHub accepts upgrades from the given origins; an empty list only allows
// same-host requests.
func NewHub(allowedOrigins []string) *Hub {
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = struct{}{}
	}

	h := &Hub{clients: make(map[uuid.UUID]*client)}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}
	if len(allowed) > 0 {
		h.upgrader.CheckOrigin = func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			_, ok := allowed[origin]
			return ok
		}
	}
	return h
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeWS upgrades an authenticated request. The identity bound by the auth
// gate is fixed for the lifetime of the socket.
func (h *Hub) ServeWS(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "live_ws")

	id, ok := authz.FromContext(ctx)
	if !ok {
		l.Warn("ws_rejected", "status", 401, "reason", "no identity")
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}

	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		l.Warn("ws_upgrade_failed", "error", err)
		return nil
	}

	cl := &client{
		id:       uuid.New(),
		identity: id,
		conn:     conn,
		send:     make(chan []byte, sendBuffer),
	}
	h.register(cl)
	l.Info("ws_connected", "client_id", cl.id.String())

	go h.writePump(cl)
	h.readPump(cl)

	l.Info("ws_disconnected", "client_id", cl.id.String())
	return nil
}

// PublishEvent lets the hub sit next to the Kafka producer. Non-task events
// are ignored.
func (h *Hub) PublishEvent(_ context.Context, topic, _ string, event any) error {
	if topic != mykafka.TopicTaskEvents {
		return nil
	}
	var ev mykafka.TaskEvent
	switch e := event.(type) {
	case mykafka.TaskEvent:
		ev = e
	case *mykafka.TaskEvent:
		ev = *e
	default:
		return nil
	}
	h.Broadcast(ev)
	return nil
}

func (h *Hub) Broadcast(ev mykafka.TaskEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}

	h.mu.RLock()
	var slow []*client
	for _, cl := range h.clients {
		if authz.RequireOwnerOrRole(cl.identity, ev.AssignedTo, models.RoleAdmin) != authz.Authorized {
			continue
		}
		select {
		case cl.send <- data:
		default:
			slow = append(slow, cl)
		}
	}
	h.mu.RUnlock()

	for _, cl := range slow {
		h.unregister(cl)
	}
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, cl := range h.clients {
		cl.close()
		delete(h.clients, id)
	}
}

func (h *Hub) register(cl *client) {
	h.mu.Lock()
	h.clients[cl.id] = cl
	h.mu.Unlock()
}

func (h *Hub) unregister(cl *client) {
	h.mu.Lock()
	if _, ok := h.clients[cl.id]; ok {
		delete(h.clients, cl.id)
		cl.close()
	}
	h.mu.Unlock()
}

func (h *Hub) readPump(cl *client) {
	defer func() {
		h.unregister(cl)
		_ = cl.conn.Close()
	}()

	cl.conn.SetReadLimit(512)
	_ = cl.conn.SetReadDeadline(time.Now().Add(pongWait))
	cl.conn.SetPongHandler(func(string) error {
		return cl.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := cl.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(cl *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = cl.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-cl.send:
			_ = cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = cl.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := cl.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := cl.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
