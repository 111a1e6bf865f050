package ws

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/vibecode/collabhub/internal/config"
)

type frame map[string]any

func (f frame) typ() string {
	s, _ := f["type"].(string)
	return s
}

func (f frame) str(key string) string {
	s, _ := f[key].(string)
	return s
}

func newTestHub(t *testing.T) *Hub {
	t.Helper()
	cfg := config.Default()
	cfg.Hub.StatusInterval = time.Hour
	h := NewHub(cfg.Hub, config.TerminalConfig{
		LogInterval: 10 * time.Millisecond,
		LogWindow:   50 * time.Millisecond,
	})
	t.Cleanup(h.Close)
	return h
}

// addTestConn registers a connection with no socket behind it; frames stay
// in its send buffer for the test to read.
func addTestConn(t *testing.T, h *Hub, path string) *Conn {
	t.Helper()
	c := newConn(h, nil, path)
	if err := h.register(c); err != nil {
		t.Fatalf("register: %v", err)
	}
	return c
}

func decodeFrame(t *testing.T, data []byte) frame {
	t.Helper()
	var f frame
	if err := json.Unmarshal(data, &f); err != nil {
		t.Fatalf("bad frame %s: %v", data, err)
	}
	return f
}

// drain returns every frame currently buffered for c.
func drain(t *testing.T, c *Conn) []frame {
	t.Helper()
	var out []frame
	for {
		select {
		case data, ok := <-c.send:
			if !ok {
				return out
			}
			out = append(out, decodeFrame(t, data))
		default:
			return out
		}
	}
}

func next(t *testing.T, c *Conn) frame {
	t.Helper()
	select {
	case data, ok := <-c.send:
		if !ok {
			t.Fatal("connection closed while waiting for frame")
		}
		return decodeFrame(t, data)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for frame")
		return nil
	}
}

func expectNone(t *testing.T, c *Conn) {
	t.Helper()
	if got := drain(t, c); len(got) != 0 {
		t.Errorf("expected no frames, got %v", got)
	}
}

// identity decodes a user object the way a frame's "user" field decodes.
func identity(t *testing.T, raw string) any {
	t.Helper()
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		t.Fatalf("bad identity %s: %v", raw, err)
	}
	return v
}

func dispatch(h *Hub, c *Conn, raw string) {
	h.Dispatch(c, []byte(raw))
}

func join(t *testing.T, h *Hub, c *Conn, projectID, userID string) {
	t.Helper()
	dispatch(h, c, `{"type":"join_collaboration","projectId":"`+projectID+`","user":{"id":"`+userID+`","name":"`+userID+`"}}`)
}
