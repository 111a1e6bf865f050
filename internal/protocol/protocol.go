// Package protocol defines the JSON envelopes exchanged between the
// collaboration hub and its clients. Every envelope is a single JSON object
// with a mandatory "type" field; unknown top-level fields are ignored.
package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

type MessageType string

// Inbound types accepted by the hub.
const (
	MsgHeartbeat         MessageType = "heartbeat"
	MsgJoinCollaboration MessageType = "join_collaboration"
	MsgLeaveCollab       MessageType = "leave_collaboration"
	MsgCommand           MessageType = "command"
)

// Types that flow in both directions.
const (
	MsgChat             MessageType = "chat_message"
	MsgFileChange       MessageType = "file_change"
	MsgCursorPosition   MessageType = "cursor_position"
	MsgComponentAdded   MessageType = "component_added"
	MsgComponentRemoved MessageType = "component_removed"
	MsgComponentUpdated MessageType = "component_updated"
)

// Outbound types produced by the hub.
const (
	MsgWelcome           MessageType = "welcome"
	MsgPong              MessageType = "pong"
	MsgCollaboratorsList MessageType = "collaborators_list"
	MsgUserJoined        MessageType = "user_joined"
	MsgUserLeft          MessageType = "user_left"
	MsgTerminal          MessageType = "terminal"
	MsgServerStatus      MessageType = "server_status"
	MsgError             MessageType = "error"
)

// TimeFormat matches JavaScript's Date.prototype.toISOString.
const TimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Now returns the current time as an envelope timestamp.
func Now() string {
	return time.Now().UTC().Format(TimeFormat)
}

// User is the identity a client presents when joining a room. It is not
// validated; two connections may present the same ID. The hub only reads
// ID and Name, and a decoded User marshals back to the exact bytes it was
// decoded from, so fields the hub does not know about survive the relay.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name,omitempty"`
	Color string `json:"color,omitempty"`

	raw json.RawMessage
}

// identityFields is the subset of an identity object the hub looks at.
type identityFields struct {
	ID          json.RawMessage `json:"id"`
	Name        json.RawMessage `json:"name"`
	DisplayName json.RawMessage `json:"displayName"`
	Color       json.RawMessage `json:"color"`
}

// UnmarshalJSON accepts any JSON value. Objects have id, name (or
// displayName) and color extracted; anything else is kept only as raw bytes.
func (u *User) UnmarshalJSON(data []byte) error {
	*u = User{raw: append(json.RawMessage(nil), data...)}
	if !bytes.HasPrefix(bytes.TrimSpace(data), []byte("{")) {
		return nil
	}
	var f identityFields
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	u.ID = scalar(f.ID)
	u.Name = scalar(f.Name)
	if u.Name == "" {
		u.Name = scalar(f.DisplayName)
	}
	u.Color = colorOf(f.Color)
	return nil
}

func (u User) MarshalJSON() ([]byte, error) {
	if len(u.raw) > 0 {
		return u.raw, nil
	}
	type plain User
	return json.Marshal(plain(u))
}

// scalar renders a JSON string as its value and any other non-null scalar
// as its literal text, so numeric ids still compare.
func scalar(v json.RawMessage) string {
	v = bytes.TrimSpace(v)
	if len(v) == 0 || bytes.Equal(v, []byte("null")) {
		return ""
	}
	var s string
	if json.Unmarshal(v, &s) == nil {
		return s
	}
	if v[0] == '{' || v[0] == '[' {
		return ""
	}
	return string(v)
}

// colorOf normalises "#rrggbb", {"r":..,"g":..,"b":..} and [r,g,b] to a
// hex string. Other shapes yield "".
func colorOf(v json.RawMessage) string {
	var s string
	if json.Unmarshal(v, &s) == nil {
		return s
	}
	var rgb struct{ R, G, B *float64 }
	if json.Unmarshal(v, &rgb) == nil && rgb.R != nil && rgb.G != nil && rgb.B != nil {
		return hexColor(*rgb.R, *rgb.G, *rgb.B)
	}
	var arr []float64
	if json.Unmarshal(v, &arr) == nil && len(arr) == 3 {
		return hexColor(arr[0], arr[1], arr[2])
	}
	return ""
}

func hexColor(r, g, b float64) string {
	clamp := func(f float64) int {
		return int(min(max(f, 0), 255))
	}
	return fmt.Sprintf("#%02x%02x%02x", clamp(r), clamp(g), clamp(b))
}

type Welcome struct {
	Type      MessageType `json:"type"`
	ClientID  string      `json:"clientId"`
	Message   string      `json:"message"`
	Timestamp string      `json:"timestamp"`
}

type Pong struct {
	Type      MessageType `json:"type"`
	Timestamp string      `json:"timestamp"`
}

type CollaboratorsList struct {
	Type          MessageType `json:"type"`
	Collaborators []User      `json:"collaborators"`
	Timestamp     string      `json:"timestamp"`
}

// Presence is used for both user_joined and user_left.
type Presence struct {
	Type      MessageType `json:"type"`
	User      User        `json:"user"`
	Timestamp string      `json:"timestamp"`
}

type ChatMessage struct {
	Type      MessageType `json:"type"`
	User      User        `json:"user"`
	Message   string      `json:"message"`
	Timestamp string      `json:"timestamp"`
}

// FileChangeMessage relays content as sent, which may be any JSON value
// including null.
type FileChangeMessage struct {
	Type      MessageType     `json:"type"`
	ProjectID string          `json:"projectId"`
	FileName  string          `json:"fileName"`
	Content   json.RawMessage `json:"content"`
	Timestamp string          `json:"timestamp"`
}

// Text returns the content as a string when it is one.
func (m FileChangeMessage) Text() string {
	var s string
	_ = json.Unmarshal(m.Content, &s)
	return s
}

type CursorMessage struct {
	Type      MessageType     `json:"type"`
	User      User            `json:"user"`
	Position  json.RawMessage `json:"position"`
	Timestamp string          `json:"timestamp"`
}

// Terminal carries one chunk of terminal output. It has no timestamp;
// log lines embed their own.
type Terminal struct {
	Type   MessageType `json:"type"`
	Output string      `json:"output"`
}

type ServerStatus struct {
	Type             MessageType `json:"type,omitempty"`
	Clients          int         `json:"clients"`
	Uptime           float64     `json:"uptime"`
	MemoryUsage      float64     `json:"memoryUsage"`
	RSSMB            float64     `json:"rssMB"`
	CPUPercent       float64     `json:"cpuPercent"`
	Rooms            int         `json:"rooms"`
	TerminalSessions int         `json:"terminalSessions"`
	Timestamp        string      `json:"timestamp"`
}

type ErrorMessage struct {
	Type      MessageType `json:"type"`
	Message   string      `json:"message"`
	Timestamp string      `json:"timestamp"`
}

func NewWelcome(clientID string) Welcome {
	return Welcome{
		Type:      MsgWelcome,
		ClientID:  clientID,
		Message:   "Welcome! You are connected as " + clientID,
		Timestamp: Now(),
	}
}

func NewPong() Pong {
	return Pong{Type: MsgPong, Timestamp: Now()}
}

func NewCollaboratorsList(users []User) CollaboratorsList {
	if users == nil {
		users = []User{}
	}
	return CollaboratorsList{Type: MsgCollaboratorsList, Collaborators: users, Timestamp: Now()}
}

func NewUserJoined(u User) Presence {
	return Presence{Type: MsgUserJoined, User: u, Timestamp: Now()}
}

func NewUserLeft(u User) Presence {
	return Presence{Type: MsgUserLeft, User: u, Timestamp: Now()}
}

func NewTerminal(output string) Terminal {
	return Terminal{Type: MsgTerminal, Output: output}
}

func NewError(message string) ErrorMessage {
	return ErrorMessage{Type: MsgError, Message: message, Timestamp: Now()}
}

// Encode marshals an outbound envelope.
func Encode(v any) ([]byte, error) {
	return json.Marshal(v)
}
