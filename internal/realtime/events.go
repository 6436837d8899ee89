package realtime

import (
	"encoding/json"
	"fmt"
)

// Inbound event names.
const (
	EventJoinRoom    = "join_room"
	EventLeaveRoom   = "leave_room"
	EventSendMessage = "send_message"
	EventTyping      = "typing"
)

// Outbound event names.
const (
	EventConnected  = "connected"
	EventJoinedRoom = "joined_room"
	EventUserJoined = "user_joined"
	EventUserLeft   = "user_left"
	EventNewMessage = "new_message"
	EventUserTyping = "user_typing"
	EventError      = "error"
)

// Frame is the envelope of every message in both directions.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// EncodeFrame marshals payload and wraps it in a Frame.
func EncodeFrame(event string, payload any) ([]byte, error) {
	var data json.RawMessage
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode %s payload: %w", event, err)
		}
		data = raw
	}
	return json.Marshal(Frame{Event: event, Data: data})
}

// DecodeFrame parses a raw inbound frame.
func DecodeFrame(raw []byte) (Frame, error) {
	var f Frame
	if err := json.Unmarshal(raw, &f); err != nil {
		return Frame{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if f.Event == "" {
		return Frame{}, fmt.Errorf("%w: missing event", ErrInvalidPayload)
	}
	return f, nil
}

// RoomPayload is the data of join_room, leave_room and joined_room.
type RoomPayload struct {
	RoomID string `json:"roomId"`
}

// SendMessagePayload is the data of send_message.
type SendMessagePayload struct {
	Content  string `json:"content"`
	Type     string `json:"type,omitempty"`
	ImageURL string `json:"imageUrl,omitempty"`
}

// TypingPayload is the data of typing.
type TypingPayload struct {
	Typing bool `json:"typing"`
}

// ConnectedPayload acknowledges a successful handshake.
type ConnectedPayload struct {
	UserID string `json:"userId"`
}

// PresencePayload is the data of user_joined.
type PresencePayload struct {
	UserID      string `json:"userId"`
	UserName    string `json:"userName"`
	UserPicture string `json:"userPicture"`
}

// UserLeftPayload is the data of user_left.
type UserLeftPayload struct {
	UserID string `json:"userId"`
}

// NewMessagePayload is the broadcast form of a persisted message.
type NewMessagePayload struct {
	ID          string `json:"id"`
	RoomID      string `json:"roomId"`
	UserID      string `json:"userId"`
	UserName    string `json:"userName"`
	UserPicture string `json:"userPicture"`
	Content     string `json:"content"`
	Type        string `json:"type"`
	ImageURL    string `json:"imageUrl"`
	Timestamp   string `json:"timestamp"`
}

// UserTypingPayload is the data of user_typing.
type UserTypingPayload struct {
	UserID   string `json:"userId"`
	UserName string `json:"userName"`
	Typing   bool   `json:"typing"`
}

// ErrorPayload is the data of error.
type ErrorPayload struct {
	Message string `json:"message"`
}
