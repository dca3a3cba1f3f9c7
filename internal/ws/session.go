package ws

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/gorilla/websocket"

	"tone-curve-agent/internal/model"
)

// SessionClosedReason is the close-frame text watchers see when their
// session is closed or expires.
const SessionClosedReason = "session closed"

// SessionHub delivers preview frames to the clients watching one editing
// session.
type SessionHub struct {
	mu      sync.RWMutex
	clients map[string]map[*Client]struct{}
}

func NewSessionHub() *SessionHub {
	return &SessionHub{clients: map[string]map[*Client]struct{}{}}
}

func (h *SessionHub) Register(sessionID string, conn *websocket.Conn) *Client {
	var c *Client
	c = NewClientWithClose(conn, func() { h.Unregister(sessionID, c) })
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[sessionID]; !ok {
		h.clients[sessionID] = map[*Client]struct{}{}
	}
	h.clients[sessionID][c] = struct{}{}
	return c
}

func (h *SessionHub) Unregister(sessionID string, c *Client) {
	h.drop(sessionID, c, websocket.CloseNormalClosure, "")
}

func (h *SessionHub) drop(sessionID string, c *Client, code int, reason string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if m, ok := h.clients[sessionID]; ok {
		if _, exist := m[c]; exist {
			delete(m, c)
			c.shutdown(code, reason)
		}
		if len(m) == 0 {
			delete(h.clients, sessionID)
		}
	}
}

func (h *SessionHub) Subscribers(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[sessionID])
}

func (h *SessionHub) PushPreview(frame model.PreviewFrame) {
	b, err := json.Marshal(model.Event{
		Type:      model.EventPreviewFrame,
		Payload:   frame,
		CreatedAt: frame.CreatedAt,
	})
	if err != nil {
		log.Printf("marshal preview frame: %v", err)
		return
	}

	// send queues are only closed under the write lock
	var slow []*Client
	h.mu.RLock()
	for c := range h.clients[frame.SessionID] {
		select {
		case c.send <- b:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()
	for _, c := range slow {
		h.drop(frame.SessionID, c, websocket.CloseTryAgainLater, "preview queue full")
	}
}

// CloseSession disconnects every watcher of sessionID with a
// "session closed" close frame.
func (h *SessionHub) CloseSession(sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients[sessionID] {
		c.shutdown(websocket.CloseNormalClosure, SessionClosedReason)
	}
	delete(h.clients, sessionID)
}
