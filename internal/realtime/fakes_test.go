package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

var errSendFailed = errors.New("send failed")

type fakeConn struct {
	id string

	mu       sync.Mutex
	frames   [][]byte
	closed   bool
	rejected string
	failSend bool
}

func newFakeConn(id string) *fakeConn {
	return &fakeConn{id: id}
}

func (c *fakeConn) ID() string { return c.id }

func (c *fakeConn) Send(frame []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failSend || c.closed {
		return errSendFailed
	}
	c.frames = append(c.frames, append([]byte(nil), frame...))
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) Reject(reason string) error {
	c.mu.Lock()
	c.rejected = reason
	c.mu.Unlock()
	return c.Close()
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeConn) received(t *testing.T) []Frame {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Frame, 0, len(c.frames))
	for _, raw := range c.frames {
		var f Frame
		if err := json.Unmarshal(raw, &f); err != nil {
			t.Fatalf("Frame sent to %s is not valid JSON: %v", c.id, err)
		}
		out = append(out, f)
	}
	return out
}

func (c *fakeConn) events(t *testing.T) []string {
	t.Helper()
	frames := c.received(t)
	names := make([]string, len(frames))
	for i, f := range frames {
		names[i] = f.Event
	}
	return names
}

func (c *fakeConn) count(t *testing.T, event string) int {
	t.Helper()
	n := 0
	for _, name := range c.events(t) {
		if name == event {
			n++
		}
	}
	return n
}

func (c *fakeConn) reset() {
	c.mu.Lock()
	c.frames = nil
	c.mu.Unlock()
}

func decodeData[T any](t *testing.T, f Frame) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(f.Data, &v); err != nil {
		t.Fatalf("Failed to decode %s data: %v", f.Event, err)
	}
	return v
}

func framesOf(t *testing.T, c *fakeConn, event string) []Frame {
	t.Helper()
	var out []Frame
	for _, f := range c.received(t) {
		if f.Event == event {
			out = append(out, f)
		}
	}
	return out
}

type fakeVerifier struct {
	tokens map[string]string
}

func (v fakeVerifier) Verify(_ context.Context, token string) (string, error) {
	userID, ok := v.tokens[token]
	if !ok {
		return "", errors.New("bad token")
	}
	return userID, nil
}

type fakeRooms struct {
	rooms   map[string]Room
	members map[string]map[string]bool
	err     error
}

func (d fakeRooms) FindRoom(_ context.Context, roomID string) (Room, error) {
	if d.err != nil {
		return Room{}, d.err
	}
	room, ok := d.rooms[roomID]
	if !ok {
		return Room{}, ErrRoomNotFound
	}
	return room, nil
}

func (d fakeRooms) IsMember(_ context.Context, roomID, userID string) (bool, error) {
	return d.members[roomID][userID], nil
}

type fakeMessages struct {
	mu    sync.Mutex
	seq   int
	saved []Message
	fail  error
	delay func(Draft) time.Duration
}

func (m *fakeMessages) Persist(_ context.Context, d Draft) (Message, error) {
	if m.delay != nil {
		time.Sleep(m.delay(d))
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return Message{}, m.fail
	}
	m.seq++
	msg := Message{
		ID:        fmt.Sprintf("msg-%d", m.seq),
		RoomID:    d.RoomID,
		SenderID:  d.SenderID,
		Content:   d.Content,
		Type:      d.Type,
		ImageURL:  d.ImageURL,
		CreatedAt: time.Date(2024, 1, 1, 12, 0, m.seq, 0, time.UTC),
	}
	m.saved = append(m.saved, msg)
	return msg, nil
}

func (m *fakeMessages) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.saved)
}

type fakeProfiles struct {
	calls    atomic.Int32
	profiles map[string]Profile
	wait     chan struct{}
}

func (p *fakeProfiles) FindProfile(_ context.Context, userID string) (Profile, error) {
	p.calls.Add(1)
	if p.wait != nil {
		<-p.wait
	}
	profile, ok := p.profiles[userID]
	if !ok {
		return Profile{}, ErrUnknownUser
	}
	return profile, nil
}

type fixture struct {
	router   *Router
	messages *fakeMessages
	profiles *fakeProfiles
}

func newFixture() *fixture {
	messages := &fakeMessages{}
	profiles := &fakeProfiles{profiles: map[string]Profile{
		"u1": {ID: "u1", Name: "Alice", Picture: "https://img.example/alice.png"},
		"u2": {ID: "u2", Name: "Bob"},
		"u3": {ID: "u3", Name: "Carol"},
	}}
	router := NewRouter(Deps{
		Verifier: fakeVerifier{tokens: map[string]string{
			"tok-u1": "u1",
			"tok-u2": "u2",
			"tok-u3": "u3",
		}},
		Rooms: fakeRooms{
			rooms: map[string]Room{
				"general": {ID: "general", Name: "General"},
				"random":  {ID: "random", Name: "Random"},
				"secret":  {ID: "secret", Name: "Secret", Private: true},
			},
			members: map[string]map[string]bool{
				"secret": {"u2": true},
			},
		},
		Messages: messages,
		Profiles: profiles,
	})
	return &fixture{router: router, messages: messages, profiles: profiles}
}

func (f *fixture) connect(t *testing.T, connID, token string) (*fakeConn, *Session) {
	t.Helper()
	conn := newFakeConn(connID)
	s, err := f.router.Connect(context.Background(), conn, token)
	if err != nil {
		t.Fatalf("Connect(%s) failed: %v", token, err)
	}
	return conn, s
}

func (f *fixture) send(t *testing.T, s *Session, event string, payload any) {
	t.Helper()
	frame, err := EncodeFrame(event, payload)
	if err != nil {
		t.Fatalf("Failed to encode %s: %v", event, err)
	}
	f.router.HandleFrame(context.Background(), s, frame)
}
