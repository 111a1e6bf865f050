package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vibecode/collabhub/internal/config"
	"github.com/vibecode/collabhub/internal/protocol"
	"github.com/vibecode/collabhub/internal/ws"
)

func wsURL(srv *httptest.Server, path string) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + path
}

// newHubServer runs a real hub behind an httptest server.
func newHubServer(t *testing.T) *httptest.Server {
	t.Helper()
	cfg := config.Default()
	cfg.Hub.StatusInterval = time.Hour
	hub := ws.NewHub(cfg.Hub, cfg.Terminal)
	srv := httptest.NewServer(ws.NewServer(cfg, hub).Routes())
	t.Cleanup(func() {
		srv.Close()
		hub.Close()
	})
	return srv
}

// flakyServer rejects the first failures handshakes, then upgrades and
// hands each server-side connection to conns.
func flakyServer(t *testing.T, failures int32) (*httptest.Server, <-chan *websocket.Conn) {
	t.Helper()
	var seen atomic.Int32
	conns := make(chan *websocket.Conn, 4)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if seen.Add(1) <= failures {
			http.Error(w, "not yet", http.StatusServiceUnavailable)
			return
		}
		upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		conns <- c
	}))
	t.Cleanup(srv.Close)
	return srv, conns
}

func run(t *testing.T, cmd func() interface{}) interface{} {
	t.Helper()
	done := make(chan interface{}, 1)
	go func() { done <- cmd() }()
	select {
	case msg := <-done:
		return msg
	case <-time.After(5 * time.Second):
		t.Fatal("command did not return")
		return nil
	}
}

func TestListen_RetriesAtFixedDelay(t *testing.T) {
	const delay = 20 * time.Millisecond
	srv, conns := flakyServer(t, 4)

	c := NewWSClient(wsURL(srv, "/ws"), ChannelCollab)
	c.SetReconnectDelay(delay)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	start := time.Now()
	msg := run(t, func() interface{} { return c.Listen(ctx)() })
	elapsed := time.Since(start)

	if _, ok := msg.(WSConnectedMsg); !ok {
		t.Fatalf("Listen() = %#v, want WSConnectedMsg", msg)
	}
	if got := c.Dials(); got != 5 {
		t.Errorf("Dials() = %d, want 5", got)
	}
	// Four fixed waits; a doubling backoff would take 300ms.
	if elapsed < 4*delay {
		t.Errorf("connected after %v, want at least %v", elapsed, 4*delay)
	}
	if elapsed > 250*time.Millisecond {
		t.Errorf("connected after %v, delay appears to grow", elapsed)
	}
	(<-conns).Close()
	c.Close()
}

func TestListen_StopsOnCancel(t *testing.T) {
	c := NewWSClient("ws://127.0.0.1:1/ws", ChannelCollab)
	c.SetReconnectDelay(10 * time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()
	if msg := run(t, func() interface{} { return c.Listen(ctx)() }); msg != nil {
		t.Errorf("Listen() after cancel = %#v, want nil", msg)
	}
	if c.Dials() < 2 {
		t.Errorf("Dials() = %d, want repeated attempts", c.Dials())
	}
}

func TestReconnect_AfterServerClose(t *testing.T) {
	srv, conns := flakyServer(t, 0)
	c := NewWSClient(wsURL(srv, "/ws"), ChannelTerminal)
	c.SetReconnectDelay(10 * time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	defer c.Close()

	run(t, func() interface{} { return c.Listen(ctx)() })
	(<-conns).Close()

	msg := run(t, func() interface{} { return c.ReadLoop(ctx)() })
	dm, ok := msg.(WSDisconnectedMsg)
	if !ok || dm.From != ChannelTerminal {
		t.Fatalf("ReadLoop() = %#v, want WSDisconnectedMsg from terminal", msg)
	}
	if err := c.Command("p1", "ls"); err == nil {
		t.Error("Send succeeded while disconnected")
	}

	if _, ok := run(t, func() interface{} { return c.Reconnect(ctx)() }).(WSConnectedMsg); !ok {
		t.Fatal("Reconnect did not connect")
	}
	if got := c.Connections(); got != 2 {
		t.Errorf("Connections() = %d, want 2", got)
	}
	(<-conns).Close()
}

func TestHeartbeat_SentPeriodically(t *testing.T) {
	srv, conns := flakyServer(t, 0)
	c := NewWSClient(wsURL(srv, "/ws"), ChannelCollab)
	c.SetHeartbeatInterval(20 * time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	defer c.Close()

	run(t, func() interface{} { return c.Listen(ctx)() })
	server := <-conns
	defer server.Close()

	server.SetReadDeadline(time.Now().Add(2 * time.Second))
	for i := 0; i < 2; i++ {
		var got map[string]any
		if err := server.ReadJSON(&got); err != nil {
			t.Fatalf("read heartbeat %d: %v", i, err)
		}
		if got["type"] != "heartbeat" {
			t.Errorf("frame %d = %v, want heartbeat", i, got)
		}
	}
}

func TestClient_AgainstHub(t *testing.T) {
	srv := newHubServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	collab := NewWSClient(wsURL(srv, "/ws"), ChannelCollab)
	defer collab.Close()
	run(t, func() interface{} { return collab.Listen(ctx)() })

	welcome, ok := run(t, func() interface{} { return collab.ReadLoop(ctx)() }).(WSWelcomeMsg)
	if !ok || welcome.Payload.ClientID == "" {
		t.Fatalf("first message = %#v, want welcome", welcome)
	}

	me := protocol.User{ID: "u1", Name: "Ada"}
	if err := collab.Join("p1", me); err != nil {
		t.Fatalf("Join: %v", err)
	}
	list, ok := run(t, func() interface{} { return collab.ReadLoop(ctx)() }).(WSCollaboratorsMsg)
	if !ok || len(list.Users) != 0 {
		t.Fatalf("after join = %#v, want empty collaborators list", list)
	}

	// The pong reply is consumed without surfacing.
	if err := collab.Send(heartbeatRequest{Type: protocol.MsgHeartbeat}); err != nil {
		t.Fatalf("heartbeat: %v", err)
	}
	if err := collab.Chat("p1", me, "hello"); err != nil {
		t.Fatalf("Chat: %v", err)
	}
	chat, ok := run(t, func() interface{} { return collab.ReadLoop(ctx)() }).(WSChatMsg)
	if !ok || chat.Payload.Message != "hello" || chat.Payload.User.ID != "u1" {
		t.Fatalf("after chat = %#v", chat)
	}

	term := NewWSClient(wsURL(srv, "/ws/terminal/p1"), ChannelTerminal)
	defer term.Close()
	run(t, func() interface{} { return term.Listen(ctx)() })

	banner, ok := run(t, func() interface{} { return term.ReadLoop(ctx)() }).(WSTerminalMsg)
	if !ok || !strings.Contains(banner.Output, "project p1") {
		t.Fatalf("banner = %#v", banner)
	}
	if err := term.Command("p1", "echo hi"); err != nil {
		t.Fatalf("Command: %v", err)
	}
	out, ok := run(t, func() interface{} { return term.ReadLoop(ctx)() }).(WSTerminalMsg)
	if !ok || out.Output != "hi" || out.From != ChannelTerminal {
		t.Fatalf("output = %#v", out)
	}

	if err := collab.Leave("p1"); err != nil {
		t.Fatalf("Leave: %v", err)
	}
}

func TestDecode(t *testing.T) {
	c := NewWSClient("ws://unused", ChannelCollab)

	tests := []struct {
		name  string
		frame string
		check func(t *testing.T, msg interface{})
	}{
		{"pong is silent", `{"type":"pong","timestamp":"x"}`, func(t *testing.T, msg interface{}) {
			if msg != nil {
				t.Errorf("got %#v, want nil", msg)
			}
		}},
		{"unknown is silent", `{"type":"mystery"}`, func(t *testing.T, msg interface{}) {
			if msg != nil {
				t.Errorf("got %#v, want nil", msg)
			}
		}},
		{"user joined", `{"type":"user_joined","user":{"id":"b","name":"Bo"}}`, func(t *testing.T, msg interface{}) {
			m, ok := msg.(WSPresenceMsg)
			if !ok || !m.Joined || m.User.ID != "b" {
				t.Errorf("got %#v", msg)
			}
		}},
		{"user left", `{"type":"user_left","user":{"id":"b"}}`, func(t *testing.T, msg interface{}) {
			m, ok := msg.(WSPresenceMsg)
			if !ok || m.Joined {
				t.Errorf("got %#v", msg)
			}
		}},
		{"file change", `{"type":"file_change","projectId":"p","fileName":"a.js","content":""}`, func(t *testing.T, msg interface{}) {
			m, ok := msg.(WSFileChangeMsg)
			if !ok || m.Payload.FileName != "a.js" {
				t.Errorf("got %#v", msg)
			}
		}},
		{"cursor", `{"type":"cursor_position","user":{"id":"a"},"position":{"line":3}}`, func(t *testing.T, msg interface{}) {
			m, ok := msg.(WSCursorMsg)
			if !ok || string(m.Payload.Position) != `{"line":3}` {
				t.Errorf("got %#v", msg)
			}
		}},
		{"component", `{"type":"component_removed","projectId":"p","componentId":"c1"}`, func(t *testing.T, msg interface{}) {
			m, ok := msg.(WSComponentMsg)
			if !ok || m.Type != protocol.MsgComponentRemoved || !strings.Contains(string(m.Raw), "c1") {
				t.Errorf("got %#v", msg)
			}
		}},
		{"status", `{"type":"server_status","clients":4,"uptime":12.5,"memoryUsage":3.2}`, func(t *testing.T, msg interface{}) {
			m, ok := msg.(WSStatusMsg)
			if !ok || m.Payload.Clients != 4 || m.Payload.Uptime != 12.5 {
				t.Errorf("got %#v", msg)
			}
		}},
		{"error", `{"type":"error","message":"Unknown message type: x"}`, func(t *testing.T, msg interface{}) {
			m, ok := msg.(WSErrorMsg)
			if !ok || m.Message != "Unknown message type: x" || m.From != ChannelCollab {
				t.Errorf("got %#v", msg)
			}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := c.decode([]byte(tt.frame))
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			tt.check(t, msg)
		})
	}

	if _, err := c.decode([]byte(`not json`)); err == nil {
		t.Error("decode of garbage succeeded")
	}
}
