package realtime

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	// MaxContentLength bounds message content in bytes.
	MaxContentLength = 5000
	// MaxImageURLLength matches the message store's image_url column.
	MaxImageURLLength = 500
)

// Pipeline validates, persists and fans out chat messages.
type Pipeline struct {
	registry *Registry
	tracker  *Tracker
	groups   *Groups
	messages MessageStore
	profiles ProfileStore
}

// NewPipeline creates a Pipeline over the shared session state.
func NewPipeline(registry *Registry, tracker *Tracker, groups *Groups, messages MessageStore, profiles ProfileStore) *Pipeline {
	return &Pipeline{
		registry: registry,
		tracker:  tracker,
		groups:   groups,
		messages: messages,
		profiles: profiles,
	}
}

// Send persists the message sent on conn and broadcasts the stored version to
// every member of the sender's room, sender included. Nothing is broadcast
// when any step fails.
func (p *Pipeline) Send(ctx context.Context, conn Conn, in SendMessagePayload) (Message, error) {
	userID, ok := p.registry.UserOf(conn)
	if !ok {
		return Message{}, ErrNotAuthenticated
	}
	roomID, ok := p.tracker.RoomOf(userID, conn)
	if !ok {
		return Message{}, ErrNotInRoom
	}

	draft, err := buildDraft(roomID, userID, in)
	if err != nil {
		return Message{}, err
	}

	profile, err := p.profiles.FindProfile(ctx, userID)
	if err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrUnknownUser, err)
	}

	msg, err := p.messages.Persist(ctx, draft)
	if err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	p.groups.Broadcast(msg.RoomID, EventNewMessage, newMessagePayload(msg, profile), nil)
	return msg, nil
}

func buildDraft(roomID, userID string, in SendMessagePayload) (Draft, error) {
	msgType, ok := ParseMessageType(in.Type)
	if !ok {
		return Draft{}, fmt.Errorf("%w: unknown type %q", ErrInvalidMessage, in.Type)
	}
	content := strings.TrimSpace(in.Content)
	imageURL := strings.TrimSpace(in.ImageURL)

	if !utf8.ValidString(content) {
		return Draft{}, fmt.Errorf("%w: content is not valid UTF-8", ErrInvalidMessage)
	}
	if len(content) > MaxContentLength {
		return Draft{}, fmt.Errorf("%w: content exceeds %d bytes", ErrInvalidMessage, MaxContentLength)
	}
	if len(imageURL) > MaxImageURLLength {
		return Draft{}, fmt.Errorf("%w: image url exceeds %d bytes", ErrInvalidMessage, MaxImageURLLength)
	}
	switch {
	case msgType == MessageImage && imageURL == "":
		return Draft{}, fmt.Errorf("%w: image message without image url", ErrInvalidMessage)
	case msgType != MessageImage && content == "":
		return Draft{}, fmt.Errorf("%w: empty content", ErrInvalidMessage)
	}

	return Draft{
		RoomID:   roomID,
		SenderID: userID,
		Content:  content,
		Type:     msgType,
		ImageURL: imageURL,
	}, nil
}

func newMessagePayload(msg Message, sender Profile) NewMessagePayload {
	name := sender.Name
	if name == "" {
		name = msg.SenderID
	}
	return NewMessagePayload{
		ID:          msg.ID,
		RoomID:      msg.RoomID,
		UserID:      msg.SenderID,
		UserName:    name,
		UserPicture: sender.Picture,
		Content:     msg.Content,
		Type:        string(msg.Type),
		ImageURL:    msg.ImageURL,
		Timestamp:   msg.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}
