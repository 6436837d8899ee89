package realtime

import "sync"

// Registry maps user identities to their single live connection and back.
// Registration is last-writer-wins per user.
type Registry struct {
	locks  *keyedMutex
	byUser sync.Map // userID -> Conn
	byConn sync.Map // Conn -> userID
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{locks: newKeyedMutex()}
}

// Register binds conn to userID and returns the connection it superseded, if
// any. The superseded connection no longer resolves to the user; closing it is
// the caller's decision.
func (r *Registry) Register(conn Conn, userID string) Conn {
	unlock := r.locks.Lock(userID)
	defer unlock()

	r.byConn.Store(conn, userID)
	prev, loaded := r.byUser.Swap(userID, conn)
	if !loaded {
		return nil
	}
	old := prev.(Conn)
	if old == conn {
		return nil
	}
	r.byConn.CompareAndDelete(old, userID)
	return old
}

// Unregister removes conn. It reports false when conn is unknown or was
// already superseded by a newer registration for the same user.
func (r *Registry) Unregister(conn Conn) bool {
	v, ok := r.byConn.Load(conn)
	if !ok {
		return false
	}
	userID := v.(string)

	unlock := r.locks.Lock(userID)
	defer unlock()

	if !r.byConn.CompareAndDelete(conn, userID) {
		return false
	}
	return r.byUser.CompareAndDelete(userID, conn)
}

// Lookup returns the live connection of userID.
func (r *Registry) Lookup(userID string) (Conn, bool) {
	v, ok := r.byUser.Load(userID)
	if !ok {
		return nil, false
	}
	return v.(Conn), true
}

// UserOf returns the identity conn is registered under.
func (r *Registry) UserOf(conn Conn) (string, bool) {
	v, ok := r.byConn.Load(conn)
	if !ok {
		return "", false
	}
	return v.(string), true
}

// Len returns the number of registered users.
func (r *Registry) Len() int {
	n := 0
	r.byUser.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
