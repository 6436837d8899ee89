package realtime

import (
	"context"
	"strings"
	"time"
)

// Conn is a handle to one live client channel. Send must not block on a slow
// peer; implementations queue or fail fast.
type Conn interface {
	ID() string
	Send(frame []byte) error
	Close() error
}

// Verifier turns a bearer token into a user identity.
type Verifier interface {
	Verify(ctx context.Context, token string) (string, error)
}

// RoomDirectory answers room existence and access questions.
type RoomDirectory interface {
	// FindRoom returns ErrRoomNotFound when the room does not exist.
	FindRoom(ctx context.Context, roomID string) (Room, error)
	IsMember(ctx context.Context, roomID, userID string) (bool, error)
}

// MessageStore persists chat messages and assigns their id and timestamp.
type MessageStore interface {
	Persist(ctx context.Context, draft Draft) (Message, error)
}

// ProfileStore resolves display information for a user.
type ProfileStore interface {
	// FindProfile returns ErrUnknownUser when the user does not exist.
	FindProfile(ctx context.Context, userID string) (Profile, error)
}

// Room is the directory view of a chat room.
type Room struct {
	ID      string
	Name    string
	Private bool
}

// Profile is the public display information of a user.
type Profile struct {
	ID      string
	Name    string
	Picture string
}

// MessageType classifies message content.
type MessageType string

const (
	MessageText  MessageType = "TEXT"
	MessageImage MessageType = "IMAGE"
	MessageEmoji MessageType = "EMOJI"
)

// ParseMessageType normalizes a client supplied type. An empty value means
// text.
func ParseMessageType(s string) (MessageType, bool) {
	switch MessageType(strings.ToUpper(strings.TrimSpace(s))) {
	case "", MessageText:
		return MessageText, true
	case MessageImage:
		return MessageImage, true
	case MessageEmoji:
		return MessageEmoji, true
	default:
		return "", false
	}
}

// Draft is a validated message that has not been persisted yet.
type Draft struct {
	RoomID   string
	SenderID string
	Content  string
	Type     MessageType
	ImageURL string
}

// Message is a persisted chat message.
type Message struct {
	ID        string
	RoomID    string
	SenderID  string
	Content   string
	Type      MessageType
	ImageURL  string
	CreatedAt time.Time
}
