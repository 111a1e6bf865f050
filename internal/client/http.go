package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/vibecode/collabhub/internal/protocol"
)

// HTTPClient makes REST calls to the hub.
type HTTPClient struct {
	baseURL string
	client  *http.Client
}

// NewHTTPClient creates a client targeting the given base URL (e.g. "http://127.0.0.1:3000").
func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// Health is the body of GET /healthz.
type Health struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// GetHealth fetches /healthz.
func (c *HTTPClient) GetHealth(ctx context.Context) (*Health, error) {
	var h Health
	if err := c.get(ctx, "/healthz", &h); err != nil {
		return nil, err
	}
	return &h, nil
}

// GetStatus fetches /api/status.
func (c *HTTPClient) GetStatus(ctx context.Context) (*protocol.ServerStatus, error) {
	var s protocol.ServerStatus
	if err := c.get(ctx, "/api/status", &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// FetchStatus returns a Bubble Tea command that loads the hub metrics once,
// so the status bar has numbers before the first server_status arrives.
func (c *HTTPClient) FetchStatus(ctx context.Context) tea.Cmd {
	return func() tea.Msg {
		s, err := c.GetStatus(ctx)
		if err != nil {
			log.Printf("status fetch: %v", err)
			return nil
		}
		return WSStatusMsg{Payload: *s}
	}
}

func (c *HTTPClient) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("GET %s: %d %s", path, resp.StatusCode, string(body))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
