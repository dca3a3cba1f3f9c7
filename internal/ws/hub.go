package ws

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/gorilla/websocket"

	"tone-curve-agent/internal/model"
)

const (
	writeWait  = 5 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	maxMsgSize = 1024
	sendBuffer = 128
)

// Hub fans every event out to all connected clients.
type Hub struct {
	clients    map[*Client]struct{}
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
}

func NewHub() *Hub {
	return &Hub{
		clients:    map[*Client]struct{}{},
		broadcast:  make(chan []byte, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

func (h *Hub) Register(c *Client) {
	select {
	case h.register <- c:
	case <-h.done:
		c.shutdown(websocket.CloseGoingAway, "server shutting down")
	}
}

func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Run serves registrations and broadcasts until ctx is cancelled, then
// closes every client's send queue.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for c := range h.clients {
				delete(h.clients, c)
				c.shutdown(websocket.CloseGoingAway, "server shutting down")
			}
			return
		case c := <-h.register:
			h.clients[c] = struct{}{}
		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				c.shutdown(websocket.CloseNormalClosure, "")
			}
		case msg := <-h.broadcast:
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					delete(h.clients, c)
					c.shutdown(websocket.CloseTryAgainLater, "event queue full")
				}
			}
		}
	}
}

// BroadcastEvent never blocks the caller: when the queue is full or the hub
// has stopped, the event is dropped and logged.
func (h *Hub) BroadcastEvent(evt model.Event) {
	if evt.CreatedAt == 0 {
		evt.CreatedAt = time.Now().UnixMilli()
	}
	b, err := json.Marshal(evt)
	if err != nil {
		log.Printf("marshal ws event: %v", err)
		return
	}
	select {
	case h.broadcast <- b:
	case <-h.done:
	default:
		log.Printf("ws broadcast queue full, dropped %s", evt.Type)
	}
}

// Client is one websocket watcher. Whoever owns its send queue (the Hub or
// the SessionHub) closes it through shutdown, never directly.
type Client struct {
	hub        *Hub
	conn       *websocket.Conn
	send       chan []byte
	onClose    func()
	closeFrame []byte
}

func NewClient(hub *Hub, conn *websocket.Conn) *Client {
	return &Client{hub: hub, conn: conn, send: make(chan []byte, sendBuffer)}
}

func NewClientWithClose(conn *websocket.Conn, onClose func()) *Client {
	return &Client{conn: conn, send: make(chan []byte, sendBuffer), onClose: onClose}
}

// shutdown records the close frame WritePump sends and closes the queue.
func (c *Client) shutdown(code int, reason string) {
	c.closeFrame = websocket.FormatCloseMessage(code, reason)
	close(c.send)
}

// ReadPump only drains control frames; clients never send commands over
// the socket.
func (c *Client) ReadPump() {
	defer func() {
		if c.hub != nil {
			c.hub.Unregister(c)
		}
		if c.onClose != nil {
			c.onClose()
		}
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMsgSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
	}
}

func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				frame := c.closeFrame
				if frame == nil {
					frame = websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
				}
				_ = c.conn.WriteMessage(websocket.CloseMessage, frame)
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
