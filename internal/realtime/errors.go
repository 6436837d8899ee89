package realtime

import "errors"

var (
	// ErrAuthentication is returned when a connection presents a missing or
	// invalid token.
	ErrAuthentication = errors.New("authentication failed")
	// ErrNotAuthenticated is returned for events on a connection that has no
	// registered identity.
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrNotInRoom        = errors.New("not in any room")
	ErrRoomNotFound     = errors.New("room not found")
	ErrAccessDenied     = errors.New("access denied")
	// ErrPersistence wraps any Message Store failure.
	ErrPersistence    = errors.New("message persistence failed")
	ErrInvalidPayload = errors.New("invalid payload")
	ErrInvalidMessage = errors.New("invalid message")
	ErrUnknownUser    = errors.New("unknown user")
	ErrUnknownEvent   = errors.New("unknown event")
)

// clientMessage maps an error to the text sent in an error frame. Internal
// details never reach the client.
func clientMessage(err error, fallback string) string {
	switch {
	case errors.Is(err, ErrNotAuthenticated):
		return "Not authenticated"
	case errors.Is(err, ErrNotInRoom):
		return "Not in any room"
	case errors.Is(err, ErrRoomNotFound):
		return "Room not found"
	case errors.Is(err, ErrAccessDenied):
		return "Access denied"
	case errors.Is(err, ErrUnknownUser):
		return "Invalid user or room"
	case errors.Is(err, ErrInvalidMessage):
		return "Invalid message"
	case errors.Is(err, ErrInvalidPayload):
		return "Invalid payload"
	case errors.Is(err, ErrUnknownEvent):
		return "Unknown event"
	default:
		return fallback
	}
}
