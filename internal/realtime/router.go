package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
)

// Rejecter is implemented by connections that can tell the peer why the
// handshake was refused before closing.
type Rejecter interface {
	Reject(reason string) error
}

// Router owns the connection lifecycle and turns inbound events into
// registry, tracker and broadcast operations.
type Router struct {
	verifier Verifier
	rooms    RoomDirectory
	profiles ProfileStore

	registry *Registry
	tracker  *Tracker
	groups   *Groups
	pipeline *Pipeline
}

// Deps are the external collaborators of a Router.
type Deps struct {
	Verifier Verifier
	Rooms    RoomDirectory
	Messages MessageStore
	Profiles ProfileStore
}

// NewRouter builds a Router with fresh session state. Profile lookups are
// coalesced per user.
func NewRouter(deps Deps) *Router {
	registry := NewRegistry()
	groups := NewGroups()
	tracker := NewTracker(groups)
	profiles := NewCoalescedProfiles(deps.Profiles)

	return &Router{
		verifier: deps.Verifier,
		rooms:    deps.Rooms,
		profiles: profiles,
		registry: registry,
		tracker:  tracker,
		groups:   groups,
		pipeline: NewPipeline(registry, tracker, groups, deps.Messages, profiles),
	}
}

// Registry exposes the connection registry.
func (r *Router) Registry() *Registry { return r.registry }

// Tracker exposes the room membership tracker.
func (r *Router) Tracker() *Tracker { return r.tracker }

// Groups exposes the room broadcast groups.
func (r *Router) Groups() *Groups { return r.groups }

// Connect authenticates conn with token. On failure the connection is
// rejected and closed. On success any older connection of the same user is
// closed and the client receives a connected acknowledgement.
func (r *Router) Connect(ctx context.Context, conn Conn, token string) (*Session, error) {
	s := newSession(conn)

	userID, err := r.verify(ctx, token)
	if err != nil {
		s.markDisconnected()
		reject(conn)
		return s, err
	}

	s.userID = userID
	if old := r.registry.Register(conn, userID); old != nil {
		log.Printf("User %s reconnected on %s; closing superseded connection %s", userID, conn.ID(), old.ID())
		if err := old.Close(); err != nil {
			log.Printf("Error closing superseded connection %s: %v", old.ID(), err)
		}
	}
	s.setState(StateAuthenticated, "")

	emit(conn, EventConnected, ConnectedPayload{UserID: userID})
	log.Printf("User %s connected on %s", userID, conn.ID())
	return s, nil
}

func (r *Router) verify(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", fmt.Errorf("%w: missing token", ErrAuthentication)
	}
	userID, err := r.verifier.Verify(ctx, token)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAuthentication, err)
	}
	if userID == "" {
		return "", fmt.Errorf("%w: token has no subject", ErrAuthentication)
	}
	return userID, nil
}

func reject(conn Conn) {
	var err error
	if rj, ok := conn.(Rejecter); ok {
		err = rj.Reject("unauthorized")
	} else {
		err = conn.Close()
	}
	if err != nil {
		log.Printf("Error rejecting connection %s: %v", conn.ID(), err)
	}
}

// HandleFrame decodes and dispatches one raw inbound frame. Failures are
// reported to the sender as an error event and never end the session.
func (r *Router) HandleFrame(ctx context.Context, s *Session, raw []byte) {
	frame, err := DecodeFrame(raw)
	if err != nil {
		log.Printf("Invalid frame from %s: %v", s.conn.ID(), err)
		emitError(s.conn, err, "Invalid payload")
		return
	}
	if err := r.Dispatch(ctx, s, frame.Event, frame.Data); err != nil {
		log.Printf("Event %s from user %s failed: %v", frame.Event, s.userID, err)
		emitError(s.conn, err, failureText(frame.Event))
	}
}

func failureText(event string) string {
	switch event {
	case EventJoinRoom:
		return "Failed to join room"
	case EventLeaveRoom:
		return "Failed to leave room"
	case EventSendMessage:
		return "Failed to send message"
	default:
		return "Request failed"
	}
}

// Dispatch runs the transition for event. Stale operations return nil.
func (r *Router) Dispatch(ctx context.Context, s *Session, event string, data json.RawMessage) error {
	if err := r.authorized(s); err != nil {
		return err
	}

	switch event {
	case EventJoinRoom:
		var in RoomPayload
		if err := decodePayload(data, &in); err != nil {
			return err
		}
		return r.onJoinRoom(ctx, s, in.RoomID)
	case EventLeaveRoom:
		var in RoomPayload
		if err := decodePayload(data, &in); err != nil {
			return err
		}
		r.onLeaveRoom(s, in.RoomID)
		return nil
	case EventSendMessage:
		var in SendMessagePayload
		if err := decodePayload(data, &in); err != nil {
			return err
		}
		return r.onSendMessage(ctx, s, in)
	case EventTyping:
		var in TypingPayload
		if err := decodePayload(data, &in); err != nil {
			return err
		}
		r.onTyping(ctx, s, in.Typing)
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownEvent, event)
	}
}

// authorized checks that s is authenticated and still the user's live
// connection.
func (r *Router) authorized(s *Session) error {
	switch s.State() {
	case StateAuthenticated, StateInRoom:
	default:
		return ErrNotAuthenticated
	}
	if userID, ok := r.registry.UserOf(s.conn); !ok || userID != s.userID {
		return ErrNotAuthenticated
	}
	return nil
}

func decodePayload(data json.RawMessage, v any) error {
	if len(data) == 0 {
		return fmt.Errorf("%w: missing data", ErrInvalidPayload)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return nil
}

func (r *Router) onJoinRoom(ctx context.Context, s *Session, roomID string) error {
	if roomID == "" {
		return fmt.Errorf("%w: missing roomId", ErrInvalidPayload)
	}

	room, err := r.rooms.FindRoom(ctx, roomID)
	if err != nil {
		return fmt.Errorf("find room %s: %w", roomID, err)
	}
	if room.Private {
		member, err := r.rooms.IsMember(ctx, roomID, s.userID)
		if err != nil {
			return fmt.Errorf("check membership of %s: %w", roomID, err)
		}
		if !member {
			return ErrAccessDenied
		}
	}

	profile := displayProfile(ctx, r.profiles, s.userID)

	previous, changed := r.tracker.Join(s.userID, s.conn, roomID)
	if previous != "" {
		r.groups.Broadcast(previous, EventUserLeft, UserLeftPayload{UserID: s.userID}, nil)
	}
	if changed {
		r.groups.Broadcast(roomID, EventUserJoined, PresencePayload{
			UserID:      s.userID,
			UserName:    profile.Name,
			UserPicture: profile.Picture,
		}, nil)
	}
	s.setState(StateInRoom, roomID)

	emit(s.conn, EventJoinedRoom, RoomPayload{RoomID: roomID})
	log.Printf("User %s joined room %s", s.userID, roomID)
	return nil
}

func (r *Router) onLeaveRoom(s *Session, roomID string) {
	if !r.tracker.Leave(s.userID, s.conn, roomID) {
		return
	}
	s.setState(StateAuthenticated, "")
	r.groups.Broadcast(roomID, EventUserLeft, UserLeftPayload{UserID: s.userID}, nil)
	log.Printf("User %s left room %s", s.userID, roomID)
}

func (r *Router) onSendMessage(ctx context.Context, s *Session, in SendMessagePayload) error {
	_, err := r.pipeline.Send(ctx, s.conn, in)
	return err
}

func (r *Router) onTyping(ctx context.Context, s *Session, typing bool) {
	roomID, ok := r.tracker.RoomOf(s.userID, s.conn)
	if !ok {
		return
	}
	profile := displayProfile(ctx, r.profiles, s.userID)
	r.groups.Broadcast(roomID, EventUserTyping, UserTypingPayload{
		UserID:   s.userID,
		UserName: profile.Name,
		Typing:   typing,
	}, s.conn)
}

// Disconnect tears the session down. Only the first call has any effect.
func (r *Router) Disconnect(s *Session) {
	s.disconnect.Do(func() {
		if s.userID == "" {
			s.markDisconnected()
			return
		}
		if roomID, ok := r.tracker.LeaveCurrent(s.userID, s.conn); ok {
			r.groups.Broadcast(roomID, EventUserLeft, UserLeftPayload{UserID: s.userID}, nil)
		}
		if r.registry.Unregister(s.conn) {
			log.Printf("User %s disconnected from %s", s.userID, s.conn.ID())
		}
		s.markDisconnected()
	})
}

func emit(conn Conn, event string, payload any) {
	frame, err := EncodeFrame(event, payload)
	if err != nil {
		log.Printf("Error encoding %s for %s: %v", event, conn.ID(), err)
		return
	}
	if err := conn.Send(frame); err != nil {
		log.Printf("Error sending %s to %s: %v", event, conn.ID(), err)
	}
}

func emitError(conn Conn, err error, fallback string) {
	emit(conn, EventError, ErrorPayload{Message: clientMessage(err, fallback)})
}

// IsAuthError reports whether err came from a refused handshake.
func IsAuthError(err error) bool {
	return errors.Is(err, ErrAuthentication)
}
