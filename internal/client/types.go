// Package client provides the WebSocket and HTTP clients the terminal UI
// uses to talk to the collaboration hub.
package client

import (
	"encoding/json"

	"github.com/vibecode/collabhub/internal/protocol"
)

// Channel names which hub connection a message came from. The UI holds one
// collaboration connection and one terminal connection.
type Channel string

const (
	ChannelCollab   Channel = "collab"
	ChannelTerminal Channel = "terminal"
)

// --- outbound envelopes ---

type heartbeatRequest struct {
	Type protocol.MessageType `json:"type"`
}

type joinRequest struct {
	Type      protocol.MessageType `json:"type"`
	ProjectID string               `json:"projectId"`
	User      protocol.User        `json:"user"`
}

type leaveRequest struct {
	Type      protocol.MessageType `json:"type"`
	ProjectID string               `json:"projectId"`
}

type chatRequest struct {
	Type      protocol.MessageType `json:"type"`
	ProjectID string               `json:"projectId"`
	User      protocol.User        `json:"user"`
	Message   string               `json:"message"`
	Timestamp string               `json:"timestamp"`
}

type fileChangeRequest struct {
	Type      protocol.MessageType `json:"type"`
	ProjectID string               `json:"projectId"`
	FileName  string               `json:"fileName"`
	Content   string               `json:"content"`
}

type cursorRequest struct {
	Type      protocol.MessageType `json:"type"`
	ProjectID string               `json:"projectId"`
	User      protocol.User        `json:"user"`
	Position  json.RawMessage      `json:"position"`
}

type commandRequest struct {
	Type      protocol.MessageType `json:"type"`
	ProjectID string               `json:"projectId"`
	Command   string               `json:"command"`
}

// --- Bubble Tea messages ---

// WSConnectedMsg is sent when a connection to the hub opens.
type WSConnectedMsg struct{ From Channel }

// WSDisconnectedMsg is sent when a connection drops or a dial fails for good.
type WSDisconnectedMsg struct {
	From Channel
	Err  error
}

// WSWelcomeMsg carries the id the hub assigned to this connection.
type WSWelcomeMsg struct {
	From    Channel
	Payload protocol.Welcome
}

// WSCollaboratorsMsg is the room snapshot sent after joining.
type WSCollaboratorsMsg struct {
	From  Channel
	Users []protocol.User
}

// WSPresenceMsg reports another member joining or leaving the room.
type WSPresenceMsg struct {
	From   Channel
	Joined bool
	User   protocol.User
}

type WSChatMsg struct {
	From    Channel
	Payload protocol.ChatMessage
}

type WSFileChangeMsg struct {
	From    Channel
	Payload protocol.FileChangeMessage
}

type WSCursorMsg struct {
	From    Channel
	Payload protocol.CursorMessage
}

// WSComponentMsg is a relayed component_added, component_removed or
// component_updated envelope, kept raw.
type WSComponentMsg struct {
	From Channel
	Type protocol.MessageType
	Raw  json.RawMessage
}

// WSTerminalMsg is one line of terminal output.
type WSTerminalMsg struct {
	From   Channel
	Output string
}

// WSStatusMsg carries hub metrics from server_status or GET /api/status.
type WSStatusMsg struct {
	From    Channel
	Payload protocol.ServerStatus
}

// WSErrorMsg wraps a server-side error envelope.
type WSErrorMsg struct {
	From    Channel
	Message string
}
