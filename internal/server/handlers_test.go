package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Tyrowin/roomchat/internal/auth"
	"github.com/Tyrowin/roomchat/internal/realtime"
	"github.com/Tyrowin/roomchat/internal/store"
	"github.com/gorilla/websocket"
)

const testSecret = "handler-test-secret"

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()

	st, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	ctx := context.Background()
	if err := st.Seed(ctx); err != nil {
		t.Fatalf("Failed to seed store: %v", err)
	}
	if err := st.CreateUser(ctx, &store.User{ID: "alice", Email: "alice@example.com", Name: "Alice"}); err != nil {
		t.Fatalf("Failed to create user: %v", err)
	}

	cfg := NewConfig()
	cfg.JWTSecret = testSecret
	cfg.AllowedOrigins = []string{"*"}
	srv := New(*cfg, realtime.Deps{
		Verifier: auth.NewJWTVerifier(testSecret, ""),
		Rooms:    st,
		Messages: st,
		Profiles: st,
	})
	srv.StartHub()

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() { _ = st.Close() })
	t.Cleanup(ts.Close)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.ShutdownHub(ctx)
	})
	return srv, ts
}

func dial(t *testing.T, ts *httptest.Server, token string) *websocket.Conn {
	t.Helper()

	u := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws?token=" + token
	header := http.Header{}
	header.Set("Origin", "http://localhost:8080")
	conn, resp, err := websocket.DefaultDialer.Dial(u, header)
	if resp != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		t.Fatalf("Failed to dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) realtime.Frame {
	t.Helper()
	if err := conn.SetReadDeadline(time.Now().Add(2 * time.Second)); err != nil {
		t.Fatalf("Failed to set read deadline: %v", err)
	}
	var f realtime.Frame
	if err := conn.ReadJSON(&f); err != nil {
		t.Fatalf("Failed to read frame: %v", err)
	}
	return f
}

func issue(t *testing.T, userID string) string {
	t.Helper()
	token, err := auth.Issue(testSecret, "", userID, time.Hour)
	if err != nil {
		t.Fatalf("Failed to issue token: %v", err)
	}
	return token
}

// TestHealthHandler tests the health endpoint.
func TestHealthHandler(t *testing.T) {
	rr := httptest.NewRecorder()
	HealthHandler(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	if rr.Code != http.StatusOK {
		t.Errorf("Expected status %d, got %d", http.StatusOK, rr.Code)
	}
	if rr.Body.String() != "roomchat server is running!" {
		t.Errorf("Unexpected body %q", rr.Body.String())
	}
	if ct := rr.Header().Get("Content-Type"); ct != "text/plain" {
		t.Errorf("Expected text/plain, got %s", ct)
	}
}

// TestTestPageHandler tests that the test page speaks the event protocol.
func TestTestPageHandler(t *testing.T) {
	rr := httptest.NewRecorder()
	TestPageHandler(rr, httptest.NewRequest(http.MethodGet, "/test", nil))

	if ct := rr.Header().Get("Content-Type"); ct != "text/html" {
		t.Errorf("Expected text/html, got %s", ct)
	}
	for _, want := range []string{"join_room", "send_message", "typing", "/ws?token="} {
		if !strings.Contains(rr.Body.String(), want) {
			t.Errorf("Test page does not mention %q", want)
		}
	}
}

// TestWebSocketHandlerMethodNotAllowed tests that only GET is accepted.
func TestWebSocketHandlerMethodNotAllowed(t *testing.T) {
	srv := New(*NewConfig(), realtime.Deps{})
	rr := httptest.NewRecorder()
	srv.WebSocketHandler(rr, httptest.NewRequest(http.MethodPost, "/ws", nil))

	if rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected status %d, got %d", http.StatusMethodNotAllowed, rr.Code)
	}
}

// TestTokenFromRequest tests token extraction from the query and header.
func TestTokenFromRequest(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/ws?token=abc", nil)
	req.Header.Set("Authorization", "Bearer header-token")
	if got := tokenFromRequest(req); got != "abc" {
		t.Errorf("Query token should win, got %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/ws", nil)
	req.Header.Set("Authorization", "bearer header-token")
	if got := tokenFromRequest(req); got != "header-token" {
		t.Errorf("Expected header-token, got %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/ws", nil)
	req.Header.Set("Authorization", "Basic dXNlcg==")
	if got := tokenFromRequest(req); got != "" {
		t.Errorf("Expected no token, got %q", got)
	}
}

// TestWebSocketRejectsInvalidToken tests that a bad token closes the socket
// with a policy violation.
func TestWebSocketRejectsInvalidToken(t *testing.T) {
	srv, ts := newTestServer(t)
	conn := dial(t, ts, "forged")

	if err := conn.SetReadDeadline(time.Now().Add(2 * time.Second)); err != nil {
		t.Fatalf("Failed to set read deadline: %v", err)
	}
	_, _, err := conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.ClosePolicyViolation) {
		t.Fatalf("Expected policy violation close, got %v", err)
	}
	if srv.Router().Registry().Len() != 0 {
		t.Error("Rejected connection was registered")
	}
}

// TestWebSocketConnectAndJoin tests the handshake acknowledgement and a room
// join over a real socket.
func TestWebSocketConnectAndJoin(t *testing.T) {
	_, ts := newTestServer(t)
	conn := dial(t, ts, issue(t, "alice"))

	if f := readFrame(t, conn); f.Event != realtime.EventConnected {
		t.Fatalf("Expected connected, got %s", f.Event)
	}

	if err := conn.WriteJSON(map[string]any{"event": "join_room", "data": map[string]string{"roomId": "general"}}); err != nil {
		t.Fatalf("Failed to send join_room: %v", err)
	}
	if f := readFrame(t, conn); f.Event != realtime.EventUserJoined {
		t.Fatalf("Expected user_joined, got %s", f.Event)
	}
	if f := readFrame(t, conn); f.Event != realtime.EventJoinedRoom {
		t.Fatalf("Expected joined_room, got %s", f.Event)
	}
}

// TestHubShutdownClosesClients tests that shutting the hub down closes live
// sockets with going-away and tears their sessions down.
func TestHubShutdownClosesClients(t *testing.T) {
	srv, ts := newTestServer(t)
	conn := dial(t, ts, issue(t, "alice"))
	readFrame(t, conn)

	deadline := time.Now().Add(2 * time.Second)
	for srv.Hub().ClientCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if srv.Hub().ClientCount() != 1 {
		t.Fatalf("Expected 1 client, got %d", srv.Hub().ClientCount())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := srv.ShutdownHub(ctx); err != nil {
		t.Fatalf("ShutdownHub failed: %v", err)
	}

	if err := conn.SetReadDeadline(time.Now().Add(2 * time.Second)); err != nil {
		t.Fatalf("Failed to set read deadline: %v", err)
	}
	_, _, err := conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.CloseGoingAway) {
		t.Errorf("Expected going-away close, got %v", err)
	}
	if srv.Hub().ClientCount() != 0 {
		t.Errorf("Expected 0 clients after shutdown, got %d", srv.Hub().ClientCount())
	}
	if srv.Router().Registry().Len() != 0 {
		t.Error("Sessions should be torn down on shutdown")
	}
}

// TestClientSendAfterClose tests the closed guard on Send.
func TestClientSendAfterClose(t *testing.T) {
	client := NewClient(nil, nil, "test", *NewConfig())
	if err := client.Send([]byte("x")); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if err := client.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := client.Close(); err != nil {
		t.Errorf("Second Close should be a no-op, got %v", err)
	}
	if err := client.Send([]byte("y")); !errors.Is(err, ErrClientClosed) {
		t.Errorf("Expected ErrClientClosed, got %v", err)
	}
}

// TestClientSendBufferFull tests that a client that cannot keep up is closed.
func TestClientSendBufferFull(t *testing.T) {
	client := NewClient(nil, nil, "test", *NewConfig())
	for i := 0; i < sendBufferSize; i++ {
		if err := client.Send([]byte("x")); err != nil {
			t.Fatalf("Send %d failed: %v", i, err)
		}
	}
	if err := client.Send([]byte("overflow")); !errors.Is(err, ErrSendBufferFull) {
		t.Fatalf("Expected ErrSendBufferFull, got %v", err)
	}
	if !client.isClosed() {
		t.Error("Slow client should be closed")
	}
	if client.ID() == "" {
		t.Error("Client should have an id")
	}
}
