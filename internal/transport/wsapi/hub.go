package wsapi

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"ambutrack/internal/events"
	"ambutrack/internal/metrics"
)

// Hub fans incident events out to websocket trackers. Clients join the room
// for a single incident; an event for incident X reaches only X's room.
type Hub struct {
	logger     *log.Logger
	register   chan *client
	unregister chan *client
	broadcast  chan message
	done       chan struct{}
	rooms      map[string]map[*client]bool
}

type client struct {
	incidentID string
	conn       *websocket.Conn
	send       chan []byte
}

type message struct {
	incidentID string
	data       []byte
}

func NewHub(logger *log.Logger) *Hub {
	if logger == nil {
		logger = log.Default()
	}
	return &Hub{
		logger:     logger,
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan message, 64),
		done:       make(chan struct{}),
		rooms:      make(map[string]map[*client]bool),
	}
}

func (h *Hub) Run(ctx context.Context) {
	// done unblocks registration and pump teardown once the loop has
	// stopped draining the channels.
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for _, room := range h.rooms {
				for c := range room {
					close(c.send)
				}
			}
			return
		case c := <-h.register:
			room := h.rooms[c.incidentID]
			if room == nil {
				room = make(map[*client]bool)
				h.rooms[c.incidentID] = room
			}
			room[c] = true
			metrics.WebsocketConnections.Inc()
		case c := <-h.unregister:
			if room, ok := h.rooms[c.incidentID]; ok && room[c] {
				delete(room, c)
				close(c.send)
				if len(room) == 0 {
					delete(h.rooms, c.incidentID)
				}
				metrics.WebsocketConnections.Dec()
			}
		case msg := <-h.broadcast:
			for c := range h.rooms[msg.incidentID] {
				select {
				case c.send <- msg.data:
				default:
					// Slow consumer; drop it and let the client reconnect.
					delete(h.rooms[msg.incidentID], c)
					close(c.send)
					metrics.WebsocketConnections.Dec()
				}
			}
		}
	}
}

// Publish implements events.Publisher so the hub can sit behind the outbox
// fanout. Events are routed to the incident's room.
func (h *Hub) Publish(ctx context.Context, event events.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	select {
	case h.broadcast <- message{incidentID: event.AggregateID, data: data}:
	case <-h.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

func (h *Hub) Close() error {
	return nil
}

var _ events.Publisher = (*Hub)(nil)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	incidentID := chi.URLParam(r, "id")
	if incidentID == "" {
		http.Error(w, "missing incident id", http.StatusBadRequest)
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	c := &client{incidentID: incidentID, conn: conn, send: make(chan []byte, 256)}
	select {
	case h.register <- c:
	case <-h.done:
		_ = conn.Close()
		return
	}
	go c.readPump(h)
	go c.writePump(h)
}

func (c *client) readPump(h *Hub) {
	defer func() {
		select {
		case h.unregister <- c:
		case <-h.done:
		}
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(512)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Printf("websocket closed unexpectedly: %v", err)
			}
			return
		}
	}
}

func (c *client) writePump(h *Hub) {
	defer func() {
		select {
		case h.unregister <- c:
		case <-h.done:
		}
		_ = c.conn.Close()
	}()
	for {
		msg, ok := <-c.send
		if !ok {
			_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}
