package client

import (
	"fmt"
	"net/url"
	"strings"
)

// Endpoints are the hub URLs one project needs.
type Endpoints struct {
	Collab   string // ws://host/ws
	Terminal string // ws://host/ws/terminal/{project}
	HTTP     string // http://host
}

// ResolveEndpoints derives every endpoint from the hub's WebSocket base URL.
// A trailing "/ws" on base is accepted.
func ResolveEndpoints(base, projectID string) (Endpoints, error) {
	u, err := url.Parse(base)
	if err != nil {
		return Endpoints{}, fmt.Errorf("parse hub url: %w", err)
	}
	if u.Host == "" {
		return Endpoints{}, fmt.Errorf("hub url %q has no host", base)
	}
	if projectID == "" {
		return Endpoints{}, fmt.Errorf("project id is required")
	}

	httpScheme := "http"
	switch u.Scheme {
	case "ws":
	case "wss":
		httpScheme = "https"
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
		httpScheme = "https"
	default:
		return Endpoints{}, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}

	prefix := strings.TrimSuffix(strings.TrimSuffix(u.Path, "/"), "/ws")
	root := u.Scheme + "://" + u.Host + prefix
	return Endpoints{
		Collab:   root + "/ws",
		Terminal: root + "/ws/terminal/" + url.PathEscape(projectID),
		HTTP:     httpScheme + "://" + u.Host + prefix,
	}, nil
}
