package ws

import (
	"errors"
	"log"

	"github.com/vibecode/collabhub/internal/protocol"
)

const malformedReply = "Failed to process message"

// Dispatch decodes one inbound frame from c and routes it. Invalid frames
// are answered with an error envelope to c alone and never broadcast.
func (h *Hub) Dispatch(c *Conn, data []byte) {
	msg, err := protocol.Decode(data)
	if err != nil {
		h.reject(c, err)
		return
	}

	switch m := msg.(type) {
	case protocol.Heartbeat:
		c.sendJSON(protocol.NewPong())

	case protocol.Join:
		h.presence.Join(c, m.ProjectID, m.User)
		c.bind(m.ProjectID, m.User)
		if c.isClosed() {
			// Unregister ran while we were joining.
			h.presence.Leave(c.id)
		}

	case protocol.Leave:
		h.presence.Leave(c.id)
		c.unbind()

	case protocol.Chat:
		ts := m.Timestamp
		if ts == "" {
			ts = protocol.Now()
		}
		h.relay(m.ProjectID, "", protocol.ChatMessage{
			Type:      protocol.MsgChat,
			User:      m.User,
			Message:   m.Message,
			Timestamp: ts,
		})

	case protocol.FileChange:
		h.relay(m.ProjectID, c.id, protocol.FileChangeMessage{
			Type:      protocol.MsgFileChange,
			ProjectID: m.ProjectID,
			FileName:  m.FileName,
			Content:   m.Content,
			Timestamp: protocol.Now(),
		})

	case protocol.CursorPosition:
		h.relay(m.ProjectID, c.id, protocol.CursorMessage{
			Type:      protocol.MsgCursorPosition,
			User:      m.User,
			Position:  m.Position,
			Timestamp: protocol.Now(),
		})

	case protocol.ComponentAction:
		out, err := m.Relay()
		if err != nil {
			log.Printf("component relay marshal error: %v", err)
			return
		}
		h.presence.Broadcast(m.ProjectID, c.id, out)

	case protocol.Command:
		h.terminals.Execute(c, m.ProjectID, m.Command)
	}
}

// relay fans v out to the project's room. A non-empty except skips that
// connection.
func (h *Hub) relay(projectID, except string, v any) {
	data, err := protocol.Encode(v)
	if err != nil {
		log.Printf("relay marshal error: %v", err)
		return
	}
	h.presence.Broadcast(projectID, except, data)
}

func (h *Hub) reject(c *Conn, err error) {
	var (
		fieldErr   *protocol.FieldError
		unknownErr *protocol.UnknownTypeError
		reply      string
	)
	switch {
	case errors.As(err, &fieldErr):
		reply = fieldErr.Error()
	case errors.As(err, &unknownErr):
		reply = unknownErr.Error()
	case errors.Is(err, protocol.ErrMissingType):
		reply = "Message type is required"
	default:
		log.Printf("Error handling WebSocket message from %s: %v", c.id, err)
		reply = malformedReply
	}
	c.sendJSON(protocol.NewError(reply))
}
