package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"tone-curve-agent/internal/model"
)

var upgrader = websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) model.Event {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var evt model.Event
	if err := json.Unmarshal(msg, &evt); err != nil {
		t.Fatalf("unmarshal %q: %v", msg, err)
	}
	return evt
}

func TestHubBroadcastsToRegisteredClient(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub := NewHub()
	go hub.Run(ctx)

	registered := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		c := NewClient(hub, conn)
		hub.Register(c)
		close(registered)
		go c.WritePump()
		go c.ReadPump()
	}))
	defer srv.Close()

	conn := dial(t, srv)
	<-registered
	hub.BroadcastEvent(model.Event{Type: model.EventCurveChanged, Payload: map[string]int{"x": 1}})

	evt := readEvent(t, conn)
	if evt.Type != model.EventCurveChanged || evt.CreatedAt == 0 {
		t.Fatalf("event=%+v", evt)
	}
}

func TestHubBroadcastAfterStopDoesNotBlock(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub()
	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()
	cancel()
	<-stopped
	for i := 0; i < 300; i++ {
		hub.BroadcastEvent(model.Event{Type: "noise"})
	}
}

func TestSessionHubPushesOnlyToItsSession(t *testing.T) {
	hub := NewSessionHub()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		c := hub.Register(r.URL.Query().Get("session"), conn)
		go c.WritePump()
		go c.ReadPump()
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	a, _, err := websocket.DefaultDialer.Dial(url+"?session=a", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()
	b, _, err := websocket.DefaultDialer.Dial(url+"?session=b", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()

	deadline := time.Now().Add(2 * time.Second)
	for hub.Subscribers("a") != 1 || hub.Subscribers("b") != 1 {
		if time.Now().After(deadline) {
			t.Fatal("clients never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	hub.PushPreview(model.PreviewFrame{SessionID: "a", Width: 3, Height: 2, DataURI: "data:image/png;base64,AA==", CreatedAt: 42})

	evt := readEvent(t, a)
	if evt.Type != model.EventPreviewFrame || evt.CreatedAt != 42 {
		t.Fatalf("event=%+v", evt)
	}

	_ = b.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	if _, _, err := b.ReadMessage(); err == nil {
		t.Fatal("session b received a frame for session a")
	}

	hub.CloseSession("a")
	if n := hub.Subscribers("a"); n != 0 {
		t.Fatalf("subscribers after close=%d", n)
	}
	_ = a.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err = a.ReadMessage()
	var ce *websocket.CloseError
	if !errors.As(err, &ce) || ce.Code != websocket.CloseNormalClosure || ce.Text != SessionClosedReason {
		t.Fatalf("close err=%v", err)
	}
	if n := hub.Subscribers("b"); n != 1 {
		t.Fatalf("session b subscribers=%d", n)
	}
}

func TestHubStopSendsGoingAway(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub := NewHub()
	go hub.Run(ctx)

	registered := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		c := NewClient(hub, conn)
		hub.Register(c)
		close(registered)
		go c.WritePump()
		go c.ReadPump()
	}))
	defer srv.Close()

	conn := dial(t, srv)
	<-registered
	cancel()

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	var ce *websocket.CloseError
	if !errors.As(err, &ce) || ce.Code != websocket.CloseGoingAway {
		t.Fatalf("close err=%v", err)
	}
}
