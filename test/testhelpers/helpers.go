// Package testhelpers provides common utilities and helper functions for testing the roomchat server.
//
// It assembles a complete chat environment (SQLite store, JWT verifier,
// HTTP server) and offers helpers for dialing sockets and exchanging
// protocol frames, so integration tests read as conversations.
package testhelpers

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Tyrowin/roomchat/internal/auth"
	"github.com/Tyrowin/roomchat/internal/realtime"
	"github.com/Tyrowin/roomchat/internal/server"
	"github.com/Tyrowin/roomchat/internal/store"
	"github.com/gorilla/websocket"
)

// TestOrigin is the Origin header sent by Dial.
const TestOrigin = "http://localhost:8080"

const defaultTimeout = 2 * time.Second

// ChatEnv is a running chat server backed by an in-memory store.
type ChatEnv struct {
	Server *server.Server
	HTTP   *httptest.Server
	Store  *store.Store
	Secret string
}

// NewChatEnv starts a server seeded with users alice, bob and carol, the
// public rooms general and random, and the private room secret (members:
// bob). customize may adjust the configuration before the server is built.
func NewChatEnv(t *testing.T, customize func(cfg *server.Config)) *ChatEnv {
	t.Helper()

	st, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	ctx := context.Background()
	if err := st.Seed(ctx); err != nil {
		t.Fatalf("Failed to seed store: %v", err)
	}
	for _, u := range []store.User{
		{ID: "alice", Email: "alice@example.com", Name: "Alice", Picture: "https://img.example/alice.png"},
		{ID: "bob", Email: "bob@example.com", Name: "Bob"},
		{ID: "carol", Email: "carol@example.com", Name: "Carol"},
	} {
		u := u
		if err := st.CreateUser(ctx, &u); err != nil {
			t.Fatalf("Failed to create user %s: %v", u.ID, err)
		}
	}
	if err := st.CreateRoom(ctx, &store.ChatRoom{ID: "random", Name: "Random"}); err != nil {
		t.Fatalf("Failed to create room: %v", err)
	}
	if err := st.CreateRoom(ctx, &store.ChatRoom{ID: "secret", Name: "Secret", IsPrivate: true}); err != nil {
		t.Fatalf("Failed to create room: %v", err)
	}
	if err := st.AddMember(ctx, "secret", "bob"); err != nil {
		t.Fatalf("Failed to add member: %v", err)
	}

	cfg := server.NewConfig()
	cfg.JWTSecret = "integration-secret"
	if customize != nil {
		customize(cfg)
	}

	srv := server.New(*cfg, realtime.Deps{
		Verifier: auth.NewJWTVerifier(cfg.JWTSecret, cfg.JWTIssuer),
		Rooms:    st,
		Messages: st,
		Profiles: st,
	})
	srv.StartHub()

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.ShutdownHub(ctx)
	})

	return &ChatEnv{Server: srv, HTTP: ts, Store: st, Secret: cfg.JWTSecret}
}

// Token issues a valid token for userID.
func (e *ChatEnv) Token(t *testing.T, userID string) string {
	t.Helper()
	token, err := auth.Issue(e.Secret, "", userID, time.Hour)
	if err != nil {
		t.Fatalf("Failed to issue token: %v", err)
	}
	return token
}

// WSURL returns the WebSocket endpoint URL carrying token.
func (e *ChatEnv) WSURL(token string) string {
	return "ws" + strings.TrimPrefix(e.HTTP.URL, "http") + "/ws?token=" + token
}

// Connect dials as userID and consumes the connected acknowledgement.
func (e *ChatEnv) Connect(t *testing.T, userID string) *websocket.Conn {
	t.Helper()
	conn, err := Dial(e.WSURL(e.Token(t, userID)), TestOrigin)
	if err != nil {
		t.Fatalf("Failed to connect as %s: %v", userID, err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	WaitForEvent(t, conn, realtime.EventConnected)
	return conn
}

// Dial opens a WebSocket connection with the given Origin header.
func Dial(url, origin string) (*websocket.Conn, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: 5 * time.Second,
	}

	headers := http.Header{}
	if origin != "" {
		headers.Set("Origin", origin)
	}

	conn, resp, err := dialer.Dial(url, headers)
	if resp != nil {
		_ = resp.Body.Close()
	}
	return conn, err
}

// Emit sends one event frame.
func Emit(conn *websocket.Conn, event string, data any) error {
	frame, err := realtime.EncodeFrame(event, data)
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, frame)
}

// ReadFrame reads the next frame within timeout.
func ReadFrame(conn *websocket.Conn, timeout time.Duration) (realtime.Frame, error) {
	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return realtime.Frame{}, err
	}
	_, raw, err := conn.ReadMessage()
	if err != nil {
		return realtime.Frame{}, err
	}
	return realtime.DecodeFrame(raw)
}

// WaitForEvent reads frames until one named event arrives, skipping others.
func WaitForEvent(t *testing.T, conn *websocket.Conn, event string) realtime.Frame {
	t.Helper()
	deadline := time.Now().Add(defaultTimeout)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			t.Fatalf("Timed out waiting for %s", event)
		}
		f, err := ReadFrame(conn, remaining)
		if err != nil {
			t.Fatalf("Error while waiting for %s: %v", event, err)
		}
		if f.Event == event {
			return f
		}
	}
}

// ExpectNoEvent fails if event arrives within timeout. A read that times out
// leaves the connection unusable, so this must be the last read on conn.
func ExpectNoEvent(t *testing.T, conn *websocket.Conn, event string, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return
		}
		f, err := ReadFrame(conn, remaining)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				return
			}
			t.Fatalf("Unexpected error while waiting for absence of %s: %v", event, err)
		}
		if f.Event == event {
			t.Fatalf("Unexpected %s frame: %s", event, f.Data)
		}
	}
}

// JoinRoom joins roomID and waits for the acknowledgement.
func JoinRoom(t *testing.T, conn *websocket.Conn, roomID string) {
	t.Helper()
	if err := Emit(conn, realtime.EventJoinRoom, realtime.RoomPayload{RoomID: roomID}); err != nil {
		t.Fatalf("Failed to send join_room: %v", err)
	}
	WaitForEvent(t, conn, realtime.EventJoinedRoom)
}

// CloseWebSocket gracefully closes a WebSocket connection.
func CloseWebSocket(conn *websocket.Conn) error {
	err := conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	if err != nil {
		return err
	}
	return conn.Close()
}

// MakeRequest creates and executes an HTTP request, returning the response.
// It includes a 5-second timeout and fails the test if the request cannot be
// created or executed successfully.
func MakeRequest(t *testing.T, method, url string) *http.Response {
	t.Helper()

	client := &http.Client{
		Timeout: 5 * time.Second,
	}

	req, err := http.NewRequest(method, url, http.NoBody)
	if err != nil {
		t.Fatalf("Failed to create request: %v", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("Failed to make request: %v", err)
	}

	return resp
}

// AssertStatusCode checks if the HTTP response has the expected status code.
func AssertStatusCode(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Errorf("Expected status code %d, got %d", expected, resp.StatusCode)
	}
}

// AssertContentType checks if the HTTP response has the expected Content-Type header.
func AssertContentType(t *testing.T, resp *http.Response, expected string) {
	t.Helper()
	contentType := resp.Header.Get("Content-Type")
	if contentType != expected {
		t.Errorf("Expected content type %s, got %s", expected, contentType)
	}
}
