package ws

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// dialTestWS creates a test HTTP server that upgrades to WebSocket and returns
// the server-side connection. The caller must close both the server and the
// returned connection.
func dialTestWS(t *testing.T) (*httptest.Server, *websocket.Conn) {
	t.Helper()

	connCh := make(chan *websocket.Conn, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		connCh <- c
	}))

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	clientConn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		srv.Close()
		t.Fatalf("dial: %v", err)
	}
	_ = clientConn.Close()

	select {
	case serverConn := <-connCh:
		return srv, serverConn
	case <-time.After(2 * time.Second):
		srv.Close()
		t.Fatal("timed out waiting for server-side WebSocket connection")
		return nil, nil
	}
}

// TestWritePump_UnregistersOnWriteError verifies that a failed write runs
// the full close-time cleanup for the connection.
func TestWritePump_UnregistersOnWriteError(t *testing.T) {
	srv, serverConn := dialTestWS(t)
	defer srv.Close()

	h := newTestHub(t)
	c := newConn(h, serverConn, "/ws")
	if err := h.register(c); err != nil {
		t.Fatalf("register: %v", err)
	}
	join(t, h, c, "p1", "a")

	if got := h.ClientCount(); got != 1 {
		t.Fatalf("expected 1 client before test, got %d", got)
	}

	// The welcome frame is already queued; writing it fails on a closed socket.
	serverConn.Close()
	go c.writePump()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if h.ClientCount() == 0 && h.presence.RoomCount() == 0 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}

	t.Fatalf("connection not removed after write error; ClientCount = %d, rooms = %d",
		h.ClientCount(), h.presence.RoomCount())
}

func TestAccept_MaxConnections(t *testing.T) {
	const maxConns = 2
	h := newTestHub(t)
	h.cfg.MaxConnections = maxConns

	for i := 0; i < maxConns; i++ {
		addTestConn(t, h, "/ws")
	}

	srv, conn := dialTestWS(t)
	defer srv.Close()
	defer conn.Close()

	if _, err := h.Accept(conn, "/ws"); !errors.Is(err, ErrTooManyConnections) {
		t.Fatalf("Accept over limit = %v, want ErrTooManyConnections", err)
	}
	if got := h.ClientCount(); got != maxConns {
		t.Errorf("ClientCount() = %d, want %d", got, maxConns)
	}
}

func TestSend_DropsWhenBufferFull(t *testing.T) {
	h := newTestHub(t)
	h.cfg.SendBuffer = 1
	c := addTestConn(t, h, "/ws")

	// The welcome frame fills the buffer.
	if c.Send([]byte(`{"type":"pong"}`)) {
		t.Error("Send succeeded on a full buffer")
	}
	if got := drain(t, c); len(got) != 1 || got[0].typ() != "welcome" {
		t.Errorf("buffered = %v, want only welcome", got)
	}
	if !c.Send([]byte(`{"type":"pong"}`)) {
		t.Error("Send failed after buffer drained")
	}
}
