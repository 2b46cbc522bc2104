// internal/realtime/protocol.go
package realtime

import (
	"encoding/json"
	"fmt"
)

// Client-sent events.
const (
	EventHeartbeat  = "heartbeat"
	EventJoinGroup  = "join_group"
	EventLeaveGroup = "leave_group"
)

// Server-sent events.
const (
	EventDirectMessage       = "direct_message"
	EventGroupMessage        = "group_message"
	EventConversationUpdated = "conversation_updated"
	EventPresence            = "presence"
	EventReply               = "reply"
	EventError               = "error"
)

// Frame is the wire format for both directions: a named event with a
// JSON payload. Ref echoes the client's request id in replies.
type Frame struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Ref     string          `json:"ref,omitempty"`
}

// Encode serializes a frame for the wire.
func (f *Frame) Encode() ([]byte, error) {
	data, err := json.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("failed to encode frame: %w", err)
	}
	return data, nil
}

// DecodeFrame parses a client frame.
func DecodeFrame(data []byte) (*Frame, error) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to decode frame: %w", err)
	}
	if f.Event == "" {
		return nil, fmt.Errorf("frame has no event")
	}
	return &f, nil
}

// NewFrame builds a server frame with a marshaled payload.
func NewFrame(event string, payload any) (*Frame, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode payload: %w", err)
	}
	return &Frame{Event: event, Payload: data}, nil
}

// NewReply builds a response to a client request.
func NewReply(ref, status string) *Frame {
	payload, _ := json.Marshal(map[string]string{"status": status})
	return &Frame{Event: EventReply, Payload: payload, Ref: ref}
}

// NewErrorFrame builds an error response to a client request.
func NewErrorFrame(ref, code, message string) *Frame {
	payload, _ := json.Marshal(map[string]string{"code": code, "message": message})
	return &Frame{Event: EventError, Payload: payload, Ref: ref}
}

// groupRequest is the payload of join_group and leave_group.
type groupRequest struct {
	GroupID int64 `json:"group_id"`
}

// PresenceEvent is the payload of presence frames.
type PresenceEvent struct {
	UserID int64  `json:"user_id"`
	Status string `json:"status"` // "online" or "offline"
}
