package realtime

import "sync"

// State is the lifecycle position of a Session.
type State int

const (
	StateConnecting State = iota
	StateAuthenticated
	StateInRoom
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAuthenticated:
		return "authenticated"
	case StateInRoom:
		return "in_room"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// Session is the router's view of one connection.
type Session struct {
	conn   Conn
	userID string

	mu    sync.Mutex
	state State
	room  string

	disconnect sync.Once
}

func newSession(conn Conn) *Session {
	return &Session{conn: conn, state: StateConnecting}
}

// Conn returns the session's connection.
func (s *Session) Conn() Conn { return s.conn }

// UserID returns the authenticated identity, empty before authentication.
func (s *Session) UserID() string { return s.userID }

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Room returns the room the session last joined, empty when not in a room.
func (s *Session) Room() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.room
}

func (s *Session) setState(state State, room string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateDisconnected {
		return
	}
	s.state = state
	s.room = room
}

func (s *Session) markDisconnected() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateDisconnected
	s.room = ""
}
