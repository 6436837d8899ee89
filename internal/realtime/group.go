package realtime

import (
	"log"
	"sync"
)

// Groups holds the member connections of every room. Only the Tracker
// mutates it; everyone else broadcasts.
type Groups struct {
	mu    sync.RWMutex
	rooms map[string]map[Conn]struct{}
}

// NewGroups creates an empty set of broadcast groups.
func NewGroups() *Groups {
	return &Groups{rooms: make(map[string]map[Conn]struct{})}
}

// Add puts conn into roomID's group. Adding twice is a no-op.
func (g *Groups) Add(roomID string, conn Conn) {
	g.mu.Lock()
	defer g.mu.Unlock()

	members, ok := g.rooms[roomID]
	if !ok {
		members = make(map[Conn]struct{})
		g.rooms[roomID] = members
	}
	members[conn] = struct{}{}
}

// Remove takes conn out of roomID's group. Empty groups are dropped.
func (g *Groups) Remove(roomID string, conn Conn) {
	g.mu.Lock()
	defer g.mu.Unlock()

	members, ok := g.rooms[roomID]
	if !ok {
		return
	}
	delete(members, conn)
	if len(members) == 0 {
		delete(g.rooms, roomID)
	}
}

// Contains reports whether conn is in roomID's group.
func (g *Groups) Contains(roomID string, conn Conn) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()

	_, ok := g.rooms[roomID][conn]
	return ok
}

// Members returns a snapshot of roomID's group.
func (g *Groups) Members(roomID string) []Conn {
	g.mu.RLock()
	defer g.mu.RUnlock()

	members := make([]Conn, 0, len(g.rooms[roomID]))
	for conn := range g.rooms[roomID] {
		members = append(members, conn)
	}
	return members
}

// Rooms returns the ids of all non-empty groups.
func (g *Groups) Rooms() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	ids := make([]string, 0, len(g.rooms))
	for id := range g.rooms {
		ids = append(ids, id)
	}
	return ids
}

// Broadcast sends event to every member of roomID except exclude and returns
// the number of successful sends. A failed send is logged and skipped.
func (g *Groups) Broadcast(roomID, event string, payload any, exclude Conn) int {
	frame, err := EncodeFrame(event, payload)
	if err != nil {
		log.Printf("Error encoding %s for room %s: %v", event, roomID, err)
		return 0
	}

	delivered := 0
	for _, conn := range g.Members(roomID) {
		if exclude != nil && conn == exclude {
			continue
		}
		if err := conn.Send(frame); err != nil {
			log.Printf("Error delivering %s to %s in room %s: %v", event, conn.ID(), roomID, err)
			continue
		}
		delivered++
	}
	return delivered
}
