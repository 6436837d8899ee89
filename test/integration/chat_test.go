// Package integration contains integration tests for the roomchat server.
//
// These tests run the complete system: a real HTTP server, real WebSocket
// connections, JWT authentication and an in-memory SQLite store.
package integration

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/Tyrowin/roomchat/internal/realtime"
	"github.com/Tyrowin/roomchat/test/testhelpers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode[T any](t *testing.T, f realtime.Frame) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(f.Data, &v), "decode %s", f.Event)
	return v
}

// TestChatScenario walks alice from general to random and out, checking what
// the other rooms observe at every step.
func TestChatScenario(t *testing.T) {
	env := testhelpers.NewChatEnv(t, nil)

	bob := env.Connect(t, "bob")
	carol := env.Connect(t, "carol")
	testhelpers.JoinRoom(t, bob, "general")
	testhelpers.JoinRoom(t, carol, "random")

	alice := env.Connect(t, "alice")
	testhelpers.JoinRoom(t, alice, "general")

	joined := decode[realtime.PresencePayload](t, testhelpers.WaitForEvent(t, bob, realtime.EventUserJoined))
	assert.Equal(t, "alice", joined.UserID)
	assert.Equal(t, "Alice", joined.UserName)
	assert.Equal(t, "https://img.example/alice.png", joined.UserPicture)

	require.NoError(t, testhelpers.Emit(alice, realtime.EventSendMessage, realtime.SendMessagePayload{Content: "hi", Type: "TEXT"}))

	own := decode[realtime.NewMessagePayload](t, testhelpers.WaitForEvent(t, alice, realtime.EventNewMessage))
	seen := decode[realtime.NewMessagePayload](t, testhelpers.WaitForEvent(t, bob, realtime.EventNewMessage))
	assert.Equal(t, "hi", seen.Content)
	assert.Equal(t, "alice", seen.UserID)
	assert.Equal(t, "general", seen.RoomID)
	assert.Equal(t, own.ID, seen.ID)
	assert.NotEmpty(t, seen.ID)
	_, err := time.Parse(time.RFC3339Nano, seen.Timestamp)
	assert.NoError(t, err)

	history, err := env.Store.RecentMessages(context.Background(), "general", 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, seen.ID, history[0].ID)

	testhelpers.JoinRoom(t, alice, "random")
	left := decode[realtime.UserLeftPayload](t, testhelpers.WaitForEvent(t, bob, realtime.EventUserLeft))
	assert.Equal(t, "alice", left.UserID)
	arrived := decode[realtime.PresencePayload](t, testhelpers.WaitForEvent(t, carol, realtime.EventUserJoined))
	assert.Equal(t, "alice", arrived.UserID)

	require.NoError(t, testhelpers.CloseWebSocket(alice))
	gone := decode[realtime.UserLeftPayload](t, testhelpers.WaitForEvent(t, carol, realtime.EventUserLeft))
	assert.Equal(t, "alice", gone.UserID)

	assert.Eventually(t, func() bool {
		_, ok := env.Server.Router().Registry().Lookup("alice")
		return !ok
	}, 2*time.Second, 10*time.Millisecond)

	testhelpers.ExpectNoEvent(t, carol, realtime.EventNewMessage, 200*time.Millisecond)
}

// TestTypingIndicator tests that typing reaches the room but not the typist.
func TestTypingIndicator(t *testing.T) {
	env := testhelpers.NewChatEnv(t, nil)

	alice := env.Connect(t, "alice")
	bob := env.Connect(t, "bob")
	testhelpers.JoinRoom(t, alice, "general")
	testhelpers.JoinRoom(t, bob, "general")

	require.NoError(t, testhelpers.Emit(alice, realtime.EventTyping, realtime.TypingPayload{Typing: true}))

	typing := decode[realtime.UserTypingPayload](t, testhelpers.WaitForEvent(t, bob, realtime.EventUserTyping))
	assert.Equal(t, "alice", typing.UserID)
	assert.Equal(t, "Alice", typing.UserName)
	assert.True(t, typing.Typing)

	testhelpers.ExpectNoEvent(t, alice, realtime.EventUserTyping, 200*time.Millisecond)
}

// TestLeaveRoom tests explicit leave and the events it produces.
func TestLeaveRoom(t *testing.T) {
	env := testhelpers.NewChatEnv(t, nil)

	alice := env.Connect(t, "alice")
	bob := env.Connect(t, "bob")
	testhelpers.JoinRoom(t, alice, "general")
	testhelpers.JoinRoom(t, bob, "general")

	require.NoError(t, testhelpers.Emit(alice, realtime.EventLeaveRoom, realtime.RoomPayload{RoomID: "general"}))
	left := decode[realtime.UserLeftPayload](t, testhelpers.WaitForEvent(t, bob, realtime.EventUserLeft))
	assert.Equal(t, "alice", left.UserID)

	require.NoError(t, testhelpers.Emit(alice, realtime.EventSendMessage, realtime.SendMessagePayload{Content: "anyone?"}))
	errFrame := decode[realtime.ErrorPayload](t, testhelpers.WaitForEvent(t, alice, realtime.EventError))
	assert.Equal(t, "Not in any room", errFrame.Message)

	testhelpers.ExpectNoEvent(t, bob, realtime.EventNewMessage, 200*time.Millisecond)
}

// TestPrivateRoomAccess tests that only members can enter a private room.
func TestPrivateRoomAccess(t *testing.T) {
	env := testhelpers.NewChatEnv(t, nil)

	alice := env.Connect(t, "alice")
	bob := env.Connect(t, "bob")

	require.NoError(t, testhelpers.Emit(alice, realtime.EventJoinRoom, realtime.RoomPayload{RoomID: "secret"}))
	denied := decode[realtime.ErrorPayload](t, testhelpers.WaitForEvent(t, alice, realtime.EventError))
	assert.Equal(t, "Access denied", denied.Message)

	require.NoError(t, testhelpers.Emit(alice, realtime.EventJoinRoom, realtime.RoomPayload{RoomID: "atlantis"}))
	missing := decode[realtime.ErrorPayload](t, testhelpers.WaitForEvent(t, alice, realtime.EventError))
	assert.Equal(t, "Room not found", missing.Message)

	testhelpers.JoinRoom(t, bob, "secret")
	room, ok := env.Server.Router().Tracker().CurrentRoom("bob")
	assert.True(t, ok)
	assert.Equal(t, "secret", room)
}
