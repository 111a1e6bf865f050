package ws

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"

	"github.com/vibecode/collabhub/internal/config"
)

func TestSecurityHeaders(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	securityHeaders(inner).ServeHTTP(rec, req)

	want := map[string]string{
		"X-Content-Type-Options":  "nosniff",
		"X-Frame-Options":         "DENY",
		"Content-Security-Policy": "default-src 'self'",
	}

	for header, expected := range want {
		if got := rec.Header().Get(header); got != expected {
			t.Errorf("header %s = %q, want %q", header, got, expected)
		}
	}
}

// newTestServer serves the full router on an httptest server and returns
// its ws:// base URL.
func newTestServer(t *testing.T) (*httptest.Server, string) {
	t.Helper()
	cfg := config.Default()
	cfg.Hub.StatusInterval = time.Hour
	hub := NewHub(cfg.Hub, cfg.Terminal)
	srv := httptest.NewServer(NewServer(cfg, hub).Routes())
	t.Cleanup(func() {
		srv.Close()
		hub.Close()
	})
	return srv, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dialHub(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readType reads frames until one of type want arrives.
func readType(t *testing.T, conn *websocket.Conn, want string) frame {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("waiting for %s: %v", want, err)
		}
		f := decodeFrame(t, data)
		if f.typ() == want {
			return f
		}
	}
}

func writeFrame(t *testing.T, conn *websocket.Conn, raw string) {
	t.Helper()
	if err := conn.WriteMessage(websocket.TextMessage, []byte(raw)); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestServer_Health(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if got := resp.Header.Get("X-Frame-Options"); got != "DENY" {
		t.Errorf("X-Frame-Options = %q", got)
	}
	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("body = %v", body)
	}
}

func TestServer_Routes(t *testing.T) {
	cfg := config.Default()
	cfg.Hub.StatusInterval = time.Hour
	hub := NewHub(cfg.Hub, cfg.Terminal)
	t.Cleanup(hub.Close)
	r := NewServer(cfg, hub).Routes()

	tests := []struct {
		name           string
		path           string
		expectedStatus int
	}{
		{"collaboration endpoint exists", "/ws", http.StatusBadRequest},
		{"terminal endpoint exists", "/ws/terminal/p1", http.StatusBadRequest},
		{"nested terminal endpoint exists", "/ws/app/terminal/p1", http.StatusBadRequest},
		{"terminal outside /ws is not routed", "/terminal/p1", http.StatusNotFound},
		{"health", "/healthz", http.StatusOK},
		{"status", "/api/status", http.StatusOK},
		{"unknown path", "/api/nope", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			w := httptest.NewRecorder()

			r.ServeHTTP(w, req)

			// Plain GETs fail the upgrade, so routed ws paths answer 400.
			assert.Equal(t, tt.expectedStatus, w.Code, "GET %s should return status %d", tt.path, tt.expectedStatus)
		})
	}
}

func TestServer_NestedTerminalPath(t *testing.T) {
	_, base := newTestServer(t)
	f := readType(t, dialHub(t, base+"/ws/app/terminal/p3"), "terminal")
	assert.True(t, strings.HasPrefix(f.str("output"), "Connected to terminal for project p3."), "banner = %q", f.str("output"))
}

func TestServer_Status(t *testing.T) {
	srv, base := newTestServer(t)
	readType(t, dialHub(t, base+"/ws"), "welcome")
	readType(t, dialHub(t, base+"/ws/terminal/p2"), "terminal")

	resp, err := http.Get(srv.URL + "/api/status")
	if err != nil {
		t.Fatalf("GET /api/status: %v", err)
	}
	defer resp.Body.Close()

	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if _, ok := body["type"]; ok {
		t.Errorf("status body carries an envelope type: %v", body)
	}
	if body["clients"] != float64(2) || body["terminalSessions"] != float64(1) {
		t.Errorf("body = %v", body)
	}
}

func TestServer_CollaborationRoundTrip(t *testing.T) {
	_, base := newTestServer(t)
	a := dialHub(t, base+"/ws")
	b := dialHub(t, base+"/ws")

	if f := readType(t, a, "welcome"); f.str("clientId") == "" {
		t.Errorf("welcome without clientId: %v", f)
	}
	readType(t, b, "welcome")

	writeFrame(t, a, `{"type":"join_collaboration","projectId":"p1","user":{"id":"a","name":"Ada"}}`)
	readType(t, a, "collaborators_list")
	writeFrame(t, b, `{"type":"join_collaboration","projectId":"p1","user":{"id":"b","name":"Bo"}}`)
	list := readType(t, b, "collaborators_list")
	if users, _ := list["collaborators"].([]any); len(users) != 1 {
		t.Errorf("B collaborators = %v, want [a]", list["collaborators"])
	}
	if f := readType(t, a, "user_joined"); f["user"].(map[string]any)["id"] != "b" {
		t.Errorf("user_joined = %v", f)
	}

	writeFrame(t, a, `{"type":"chat_message","projectId":"p1","user":{"id":"a"},"message":"hi"}`)
	for _, c := range []*websocket.Conn{a, b} {
		if f := readType(t, c, "chat_message"); f.str("message") != "hi" {
			t.Errorf("chat = %v", f)
		}
	}

	writeFrame(t, b, `{"type":"file_change","projectId":"p1","fileName":"x.js","content":"1"}`)
	if f := readType(t, a, "file_change"); f.str("fileName") != "x.js" {
		t.Errorf("file_change = %v", f)
	}

	writeFrame(t, b, `{"type":"heartbeat"}`)
	readType(t, b, "pong")

	b.Close()
	if f := readType(t, a, "user_left"); f["user"].(map[string]any)["id"] != "b" {
		t.Errorf("user_left = %v", f)
	}
}

func TestServer_TerminalRoundTrip(t *testing.T) {
	_, base := newTestServer(t)
	term := dialHub(t, base+"/ws/terminal/p2")

	banner := readType(t, term, "terminal")
	if !strings.Contains(banner.str("output"), "project p2") {
		t.Errorf("banner = %q", banner.str("output"))
	}

	writeFrame(t, term, `{"type":"command","projectId":"p2","command":"echo hello"}`)
	if f := readType(t, term, "terminal"); f.str("output") != "hello" {
		t.Errorf("output = %q, want hello", f.str("output"))
	}

	writeFrame(t, term, `{"type":"bogus"}`)
	if f := readType(t, term, "error"); f.str("message") != "Unknown message type: bogus" {
		t.Errorf("error = %v", f)
	}
}

func TestCheckOrigin(t *testing.T) {
	tests := []struct {
		name    string
		allowed []string
		origin  string
		host    string
		want    bool
	}{
		{"no origin", nil, "", "hub:3000", true},
		{"same host", nil, "http://hub:3000", "hub:3000", true},
		{"localhost", nil, "http://localhost:5173", "hub:3000", true},
		{"loopback v4", nil, "http://127.0.0.1:5173", "hub:3000", true},
		{"loopback v6", nil, "http://[::1]:5173", "hub:3000", true},
		{"foreign", nil, "https://evil.example", "hub:3000", false},
		{"garbage", nil, "::not a url", "hub:3000", false},
		{"listed", []string{"https://app.example"}, "https://app.example", "hub:3000", true},
		{"listed host other scheme", []string{"https://app.example"}, "http://app.example", "hub:3000", true},
		{"unlisted localhost", []string{"https://app.example"}, "http://localhost:5173", "hub:3000", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.Server.AllowedOrigins = tt.allowed
			s := NewServer(cfg, nil)

			req := httptest.NewRequest(http.MethodGet, "/ws", nil)
			req.Host = tt.host
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			if got := s.checkOrigin(req); got != tt.want {
				t.Errorf("checkOrigin(%q) = %v, want %v", tt.origin, got, tt.want)
			}
		})
	}
}
