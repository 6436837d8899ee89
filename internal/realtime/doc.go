// Package realtime implements the session and room-broadcast core of the chat
// service.
//
// A connection is authenticated once by the Router, recorded in the Registry,
// and then moves between rooms through the Tracker. The Tracker is the only
// writer of room Groups, so "user is in room R" and "user's connection is a
// member of R's broadcast group" always agree. Chat messages flow through the
// Pipeline, which persists before it broadcasts.
//
// The package is transport agnostic: anything implementing Conn can be
// registered, which keeps the core testable without sockets.
package realtime
