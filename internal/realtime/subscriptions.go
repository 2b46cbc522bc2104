// internal/realtime/subscriptions.go
package realtime

import (
	"hash/maphash"
	"sync"
)

// subShard holds the subscriber sets for the groups hashed to it.
type subShard struct {
	mu     sync.RWMutex
	groups map[int64]map[string]struct{} // groupID -> connIDs
}

// connSubShard indexes each connection's group set for fast teardown.
type connSubShard struct {
	mu    sync.RWMutex
	conns map[string]map[int64]struct{} // connID -> groupIDs
}

// SubscriptionMap is the routing cache for group fanout: which live
// connections currently receive a group's traffic. It holds no
// authorization state; callers verify membership before joining a
// connection.
type SubscriptionMap struct {
	groups   [registryShards]*subShard
	byConn   [registryShards]*connSubShard
	hashSeed maphash.Seed
}

func NewSubscriptionMap() *SubscriptionMap {
	m := &SubscriptionMap{hashSeed: maphash.MakeSeed()}
	for i := 0; i < registryShards; i++ {
		m.groups[i] = &subShard{groups: make(map[int64]map[string]struct{})}
		m.byConn[i] = &connSubShard{conns: make(map[string]map[int64]struct{})}
	}
	return m
}

func (m *SubscriptionMap) groupShardFor(groupID int64) *subShard {
	return m.groups[uint64(groupID)&(registryShards-1)]
}

func (m *SubscriptionMap) connShardFor(connID string) *connSubShard {
	return m.byConn[maphash.String(m.hashSeed, connID)&(registryShards-1)]
}

// Join subscribes a connection to a group. Joining twice is a no-op.
func (m *SubscriptionMap) Join(groupID int64, connID string) {
	gs := m.groupShardFor(groupID)
	gs.mu.Lock()
	set, ok := gs.groups[groupID]
	if !ok {
		set = make(map[string]struct{})
		gs.groups[groupID] = set
	}
	set[connID] = struct{}{}
	gs.mu.Unlock()

	cs := m.connShardFor(connID)
	cs.mu.Lock()
	groups, ok := cs.conns[connID]
	if !ok {
		groups = make(map[int64]struct{})
		cs.conns[connID] = groups
	}
	groups[groupID] = struct{}{}
	cs.mu.Unlock()
}

// Leave removes a connection from a group. Empty subscriber sets are
// dropped so the map never accumulates dead group keys.
func (m *SubscriptionMap) Leave(groupID int64, connID string) {
	gs := m.groupShardFor(groupID)
	gs.mu.Lock()
	if set, ok := gs.groups[groupID]; ok {
		delete(set, connID)
		if len(set) == 0 {
			delete(gs.groups, groupID)
		}
	}
	gs.mu.Unlock()

	cs := m.connShardFor(connID)
	cs.mu.Lock()
	if groups, ok := cs.conns[connID]; ok {
		delete(groups, groupID)
		if len(groups) == 0 {
			delete(cs.conns, connID)
		}
	}
	cs.mu.Unlock()
}

// LeaveAll removes a connection from every group it joined, returning
// the groups it was subscribed to. Used on disconnect.
func (m *SubscriptionMap) LeaveAll(connID string) []int64 {
	cs := m.connShardFor(connID)
	cs.mu.Lock()
	groups := cs.conns[connID]
	delete(cs.conns, connID)
	cs.mu.Unlock()

	if len(groups) == 0 {
		return nil
	}

	ids := make([]int64, 0, len(groups))
	for groupID := range groups {
		ids = append(ids, groupID)
		gs := m.groupShardFor(groupID)
		gs.mu.Lock()
		if set, ok := gs.groups[groupID]; ok {
			delete(set, connID)
			if len(set) == 0 {
				delete(gs.groups, groupID)
			}
		}
		gs.mu.Unlock()
	}
	return ids
}

// EvictUser drops the given connections from a group. Used when the
// store reports a membership removal or a group deletion, so routing
// stops immediately instead of waiting for the next reconnect.
func (m *SubscriptionMap) EvictUser(conns []Connection, groupID int64) {
	for _, c := range conns {
		m.Leave(groupID, c.ID())
	}
}

// Subscribers returns a snapshot of the connection ids subscribed to a
// group.
func (m *SubscriptionMap) Subscribers(groupID int64) []string {
	gs := m.groupShardFor(groupID)
	gs.mu.RLock()
	set := gs.groups[groupID]
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	gs.mu.RUnlock()
	return ids
}

// GroupsOf returns a snapshot of the groups a connection is subscribed
// to.
func (m *SubscriptionMap) GroupsOf(connID string) []int64 {
	cs := m.connShardFor(connID)
	cs.mu.RLock()
	groups := cs.conns[connID]
	ids := make([]int64, 0, len(groups))
	for id := range groups {
		ids = append(ids, id)
	}
	cs.mu.RUnlock()
	return ids
}
