package realtime

import "sync"

type membership struct {
	roomID string
	conn   Conn
}

// Tracker records the single room each user occupies and keeps the
// broadcast Groups in step with it. Operations for one user are serialized;
// different users proceed in parallel.
type Tracker struct {
	groups *Groups
	locks  *keyedMutex

	mu      sync.RWMutex
	members map[string]membership
}

// NewTracker creates a Tracker that maintains groups.
func NewTracker(groups *Groups) *Tracker {
	return &Tracker{
		groups:  groups,
		locks:   newKeyedMutex(),
		members: make(map[string]membership),
	}
}

func (t *Tracker) load(userID string) (membership, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	m, ok := t.members[userID]
	return m, ok
}

func (t *Tracker) store(userID string, m membership) {
	t.mu.Lock()
	t.members[userID] = m
	t.mu.Unlock()
}

func (t *Tracker) remove(userID string) {
	t.mu.Lock()
	delete(t.members, userID)
	t.mu.Unlock()
}

// Join moves userID, speaking through conn, into roomID. It returns the room
// the user implicitly left (empty if none or the same room) and whether
// anything changed.
func (t *Tracker) Join(userID string, conn Conn, roomID string) (string, bool) {
	unlock := t.locks.Lock(userID)
	defer unlock()

	previous := ""
	cur, ok := t.load(userID)
	if ok {
		if cur.roomID == roomID && cur.conn == conn {
			return "", false
		}
		t.groups.Remove(cur.roomID, cur.conn)
		if cur.roomID != roomID {
			previous = cur.roomID
		}
	}
	t.groups.Add(roomID, conn)
	t.store(userID, membership{roomID: roomID, conn: conn})
	return previous, true
}

// Leave removes userID from roomID when that is still its current room and
// the membership belongs to conn. Stale leaves report false.
func (t *Tracker) Leave(userID string, conn Conn, roomID string) bool {
	unlock := t.locks.Lock(userID)
	defer unlock()

	cur, ok := t.load(userID)
	if !ok || cur.roomID != roomID || cur.conn != conn {
		return false
	}
	t.groups.Remove(cur.roomID, cur.conn)
	t.remove(userID)
	return true
}

// LeaveCurrent removes whatever room membership conn holds for userID.
func (t *Tracker) LeaveCurrent(userID string, conn Conn) (string, bool) {
	unlock := t.locks.Lock(userID)
	defer unlock()

	cur, ok := t.load(userID)
	if !ok || cur.conn != conn {
		return "", false
	}
	t.groups.Remove(cur.roomID, cur.conn)
	t.remove(userID)
	return cur.roomID, true
}

// CurrentRoom returns the room userID is in.
func (t *Tracker) CurrentRoom(userID string) (string, bool) {
	m, ok := t.load(userID)
	if !ok {
		return "", false
	}
	return m.roomID, true
}

// RoomOf returns the room userID occupies through conn. A membership held by
// another connection of the same user does not count.
func (t *Tracker) RoomOf(userID string, conn Conn) (string, bool) {
	m, ok := t.load(userID)
	if !ok || m.conn != conn {
		return "", false
	}
	return m.roomID, true
}

// Snapshot copies the user to room mapping.
func (t *Tracker) Snapshot() map[string]string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make(map[string]string, len(t.members))
	for userID, m := range t.members {
		out[userID] = m.roomID
	}
	return out
}

// consistent reports whether every membership has a matching group entry
// and every group entry has a matching membership. Used by tests.
func (t *Tracker) consistent() bool {
	t.mu.RLock()
	members := make(map[string]membership, len(t.members))
	for k, v := range t.members {
		members[k] = v
	}
	t.mu.RUnlock()

	total := 0
	for _, roomID := range t.groups.Rooms() {
		total += len(t.groups.Members(roomID))
	}
	if total != len(members) {
		return false
	}
	for _, m := range members {
		if !t.groups.Contains(m.roomID, m.conn) {
			return false
		}
	}
	return true
}
