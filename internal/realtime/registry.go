// internal/realtime/registry.go
package realtime

import (
	"errors"
	"hash/maphash"
	"sync"
)

var (
	ErrConnClosed     = errors.New("connection closed")
	ErrSendBufferFull = errors.New("send buffer full")
	ErrNotAuthorized  = errors.New("not a member of this group")
)

// Connection is the registry's view of a live client connection. The
// websocket Conn implements it; tests use in-memory fakes.
type Connection interface {
	ID() string
	UserID() int64
	Enqueue(frame []byte) error
}

const registryShards = 32

// userShard holds the connections of the users hashed to it.
type userShard struct {
	mu    sync.RWMutex
	conns map[int64]map[string]Connection // userID -> connID -> conn
}

// connShard indexes connections by id for reverse lookups.
type connShard struct {
	mu    sync.RWMutex
	conns map[string]Connection
}

// Registry tracks every live connection and which user owns it. State is
// split across fixed shards so concurrent connects and disconnects do not
// serialize on one lock.
type Registry struct {
	users [registryShards]*userShard
	byID  [registryShards]*connShard
	seed  maphash.Seed
}

func NewRegistry() *Registry {
	r := &Registry{seed: maphash.MakeSeed()}
	for i := 0; i < registryShards; i++ {
		r.users[i] = &userShard{conns: make(map[int64]map[string]Connection)}
		r.byID[i] = &connShard{conns: make(map[string]Connection)}
	}
	return r
}

func (r *Registry) userShardFor(userID int64) *userShard {
	return r.users[uint64(userID)&(registryShards-1)]
}

func (r *Registry) connShardFor(connID string) *connShard {
	return r.byID[maphash.String(r.seed, connID)&(registryShards-1)]
}

// Register adds a connection under its user. It reports whether this is
// the user's first live connection, which is the user's online
// transition. Both maps mutate while both shard locks are held, user
// shard first, so a reader holding either lock sees them in agreement.
func (r *Registry) Register(conn Connection) (first bool) {
	userID, connID := conn.UserID(), conn.ID()

	us := r.userShardFor(userID)
	cs := r.connShardFor(connID)

	us.mu.Lock()
	cs.mu.Lock()
	set, ok := us.conns[userID]
	if !ok {
		set = make(map[string]Connection)
		us.conns[userID] = set
	}
	first = len(set) == 0
	set[connID] = conn
	cs.conns[connID] = conn
	cs.mu.Unlock()
	us.mu.Unlock()

	return first
}

// Unregister removes a connection by id. It returns the owning user and
// whether this was the user's last live connection. Unknown ids are a
// no-op, so double unregistration during teardown is harmless.
func (r *Registry) Unregister(connID string) (userID int64, last bool, ok bool) {
	cs := r.connShardFor(connID)
	cs.mu.RLock()
	conn, ok := cs.conns[connID]
	cs.mu.RUnlock()
	if !ok {
		return 0, false, false
	}

	userID = conn.UserID()
	us := r.userShardFor(userID)

	us.mu.Lock()
	cs.mu.Lock()
	// re-check under the write locks, a concurrent Unregister may have won
	if _, ok = cs.conns[connID]; !ok {
		cs.mu.Unlock()
		us.mu.Unlock()
		return 0, false, false
	}
	delete(cs.conns, connID)
	if set, exists := us.conns[userID]; exists {
		delete(set, connID)
		if len(set) == 0 {
			delete(us.conns, userID)
			last = true
		}
	}
	cs.mu.Unlock()
	us.mu.Unlock()

	return userID, last, true
}

// Get returns a connection by id.
func (r *Registry) Get(connID string) (Connection, bool) {
	cs := r.connShardFor(connID)
	cs.mu.RLock()
	conn, ok := cs.conns[connID]
	cs.mu.RUnlock()
	return conn, ok
}

// OwnerOf returns the user that owns a connection.
func (r *Registry) OwnerOf(connID string) (int64, bool) {
	conn, ok := r.Get(connID)
	if !ok {
		return 0, false
	}
	return conn.UserID(), true
}

// ConnectionsFor returns a snapshot of a user's live connections.
func (r *Registry) ConnectionsFor(userID int64) []Connection {
	us := r.userShardFor(userID)
	us.mu.RLock()
	set := us.conns[userID]
	conns := make([]Connection, 0, len(set))
	for _, c := range set {
		conns = append(conns, c)
	}
	us.mu.RUnlock()
	return conns
}

// IsOnline reports whether a user has at least one live connection.
func (r *Registry) IsOnline(userID int64) bool {
	us := r.userShardFor(userID)
	us.mu.RLock()
	_, ok := us.conns[userID]
	us.mu.RUnlock()
	return ok
}

// OnlineCount returns the number of distinct users with a live
// connection.
func (r *Registry) OnlineCount() int {
	total := 0
	for _, us := range r.users {
		us.mu.RLock()
		total += len(us.conns)
		us.mu.RUnlock()
	}
	return total
}

// OnlineUsers returns a snapshot of the ids of all online users.
func (r *Registry) OnlineUsers() []int64 {
	var ids []int64
	for _, us := range r.users {
		us.mu.RLock()
		for id := range us.conns {
			ids = append(ids, id)
		}
		us.mu.RUnlock()
	}
	return ids
}

// ConnectionCount returns the total number of live connections.
func (r *Registry) ConnectionCount() int {
	total := 0
	for _, cs := range r.byID {
		cs.mu.RLock()
		total += len(cs.conns)
		cs.mu.RUnlock()
	}
	return total
}

// AllConnections returns a snapshot of every live connection.
func (r *Registry) AllConnections() []Connection {
	var conns []Connection
	for _, cs := range r.byID {
		cs.mu.RLock()
		for _, c := range cs.conns {
			conns = append(conns, c)
		}
		cs.mu.RUnlock()
	}
	return conns
}
