package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrMalformed is returned when a frame is not a JSON object.
	ErrMalformed = errors.New("malformed envelope")
	// ErrMissingType is returned when a JSON object has no usable type field.
	ErrMissingType = errors.New("message type is required")
)

// FieldError reports required fields that were absent, null or empty for
// a message type.
type FieldError struct {
	Type   MessageType
	Fields []string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s requires %s", e.Type, strings.Join(e.Fields, ", "))
}

// UnknownTypeError is returned for a well-formed envelope whose type the hub
// does not handle.
type UnknownTypeError struct {
	Type MessageType
}

func (e *UnknownTypeError) Error() string {
	return fmt.Sprintf("Unknown message type: %s", e.Type)
}

// Inbound is one decoded client envelope. The concrete types below are the
// only implementations.
type Inbound interface {
	Kind() MessageType
}

type Heartbeat struct{}

type Join struct {
	ProjectID string
	User      User
}

type Leave struct {
	ProjectID string
}

type Chat struct {
	ProjectID string
	User      User
	Message   string
	Timestamp string
}

// FileChange carries content exactly as sent. Only an absent content field
// is rejected; null and empty strings are relayed.
type FileChange struct {
	ProjectID string
	FileName  string
	Content   json.RawMessage
}

type CursorPosition struct {
	ProjectID string
	User      User
	Position  json.RawMessage
}

// ComponentAction is one of component_added, component_removed or
// component_updated. Fields holds the full original envelope so it can be
// relayed as-is.
type ComponentAction struct {
	Type      MessageType
	ProjectID string
	Fields    map[string]json.RawMessage
}

type Command struct {
	ProjectID string
	Command   string
}

func (Heartbeat) Kind() MessageType         { return MsgHeartbeat }
func (Join) Kind() MessageType              { return MsgJoinCollaboration }
func (Leave) Kind() MessageType             { return MsgLeaveCollab }
func (Chat) Kind() MessageType              { return MsgChat }
func (FileChange) Kind() MessageType        { return MsgFileChange }
func (CursorPosition) Kind() MessageType    { return MsgCursorPosition }
func (c ComponentAction) Kind() MessageType { return c.Type }
func (Command) Kind() MessageType           { return MsgCommand }

// Relay re-tags the original envelope with its type and a fresh timestamp.
func (c ComponentAction) Relay() ([]byte, error) {
	out := make(map[string]json.RawMessage, len(c.Fields)+2)
	for k, v := range c.Fields {
		out[k] = v
	}
	typ, _ := json.Marshal(c.Type)
	ts, _ := json.Marshal(Now())
	out["type"] = typ
	out["timestamp"] = ts
	return json.Marshal(out)
}

// fields wraps a raw envelope and collects the names of missing required
// fields as they are read.
type fields struct {
	raw     map[string]json.RawMessage
	missing []string
}

func (f *fields) present(name string) (json.RawMessage, bool) {
	v, ok := f.raw[name]
	if !ok || bytes.Equal(bytes.TrimSpace(v), []byte("null")) {
		return nil, false
	}
	return v, true
}

// str reads a required non-empty string.
func (f *fields) str(name string) string {
	v, ok := f.present(name)
	var s string
	if ok && json.Unmarshal(v, &s) == nil && s != "" {
		return s
	}
	f.missing = append(f.missing, name)
	return ""
}

// optionalStr reads a string that may be absent or empty.
func (f *fields) optionalStr(name string) string {
	var s string
	if v, ok := f.present(name); ok {
		_ = json.Unmarshal(v, &s)
	}
	return s
}

// defined reads a field that must be present; null is allowed.
func (f *fields) defined(name string) json.RawMessage {
	v, ok := f.raw[name]
	if !ok {
		f.missing = append(f.missing, name)
	}
	return v
}

// user reads a required identity. Any truthy JSON value is accepted and
// kept verbatim.
func (f *fields) user(name string) User {
	var u User
	if v := f.value(name); v != nil && json.Unmarshal(v, &u) != nil {
		return User{raw: v}
	}
	return u
}

// value reads a required field that must be truthy: present and not null,
// false, 0 or "".
func (f *fields) value(name string) json.RawMessage {
	v, ok := f.present(name)
	if !ok || !truthy(v) {
		f.missing = append(f.missing, name)
		return nil
	}
	return v
}

func truthy(v json.RawMessage) bool {
	v = bytes.TrimSpace(v)
	switch string(v) {
	case "", "null", "false", `""`:
		return false
	}
	if c := v[0]; c == '-' || (c >= '0' && c <= '9') {
		n, err := strconv.ParseFloat(string(v), 64)
		return err != nil || n != 0
	}
	return true
}

func (f *fields) err(t MessageType) error {
	if len(f.missing) == 0 {
		return nil
	}
	return &FieldError{Type: t, Fields: f.missing}
}

// Decode parses one inbound frame into its typed variant. It returns an
// error wrapping ErrMalformed, ErrMissingType, a *FieldError or an
// *UnknownTypeError.
func Decode(data []byte) (Inbound, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if raw == nil {
		return nil, ErrMalformed
	}

	var t MessageType
	if v, ok := raw["type"]; ok {
		if err := json.Unmarshal(v, &t); err != nil {
			return nil, fmt.Errorf("%w: type is not a string", ErrMalformed)
		}
	}
	if t == "" {
		return nil, ErrMissingType
	}

	f := &fields{raw: raw}
	switch t {
	case MsgHeartbeat:
		return Heartbeat{}, nil

	case MsgJoinCollaboration:
		m := Join{ProjectID: f.str("projectId"), User: f.user("user")}
		return m, f.err(t)

	case MsgLeaveCollab:
		m := Leave{ProjectID: f.str("projectId")}
		return m, f.err(t)

	case MsgChat:
		m := Chat{
			ProjectID: f.str("projectId"),
			User:      f.user("user"),
			Message:   f.str("message"),
			Timestamp: f.optionalStr("timestamp"),
		}
		return m, f.err(t)

	case MsgFileChange:
		m := FileChange{
			ProjectID: f.str("projectId"),
			FileName:  f.str("fileName"),
			Content:   f.defined("content"),
		}
		return m, f.err(t)

	case MsgCursorPosition:
		m := CursorPosition{
			ProjectID: f.str("projectId"),
			User:      f.user("user"),
			Position:  f.value("position"),
		}
		return m, f.err(t)

	case MsgComponentAdded, MsgComponentRemoved, MsgComponentUpdated:
		m := ComponentAction{Type: t, ProjectID: f.str("projectId"), Fields: raw}
		return m, f.err(t)

	case MsgCommand:
		m := Command{ProjectID: f.str("projectId"), Command: f.str("command")}
		return m, f.err(t)
	}

	return nil, &UnknownTypeError{Type: t}
}
