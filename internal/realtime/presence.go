// internal/realtime/presence.go
package realtime

import "sync"

// PresenceTracker answers online queries from the registry and fans
// online/offline transitions out to watchers. Transitions are edge
// events: a user's second device connecting is not a transition.
type PresenceTracker struct {
	registry *Registry

	mu       sync.Mutex
	watchers map[chan PresenceEvent]struct{}
}

func NewPresenceTracker(registry *Registry) *PresenceTracker {
	return &PresenceTracker{
		registry: registry,
		watchers: make(map[chan PresenceEvent]struct{}),
	}
}

// IsOnline reports whether a user has at least one live connection.
func (p *PresenceTracker) IsOnline(userID int64) bool {
	return p.registry.IsOnline(userID)
}

// OnlineCount returns the number of distinct online users.
func (p *PresenceTracker) OnlineCount() int {
	return p.registry.OnlineCount()
}

// OnlineUsers returns a snapshot of all online user ids.
func (p *PresenceTracker) OnlineUsers() []int64 {
	return p.registry.OnlineUsers()
}

// Watch registers a channel that receives presence transitions. The
// returned stop function unregisters it and closes the channel.
func (p *PresenceTracker) Watch() (<-chan PresenceEvent, func()) {
	ch := make(chan PresenceEvent, 64)
	p.mu.Lock()
	p.watchers[ch] = struct{}{}
	p.mu.Unlock()

	stop := func() {
		p.mu.Lock()
		if _, ok := p.watchers[ch]; ok {
			delete(p.watchers, ch)
			close(ch)
		}
		p.mu.Unlock()
	}
	return ch, stop
}

// publish fans a transition out to all watchers. A watcher with a full
// channel misses the event rather than blocking the hub.
func (p *PresenceTracker) publish(event PresenceEvent) {
	p.mu.Lock()
	for ch := range p.watchers {
		select {
		case ch <- event:
		default:
		}
	}
	p.mu.Unlock()
}
