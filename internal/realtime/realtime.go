// internal/realtime/realtime.go
// Package realtime implements the live message layer: a sharded
// connection registry, group subscription routing, fanout delivery and
// presence tracking over websockets.
package realtime

import (
	"github.com/ihor-shndr/mychat/internal/log"
)

// MembershipVerifier answers whether a user may subscribe to a group's
// traffic. The store implements it.
type MembershipVerifier interface {
	IsActiveGroupMember(groupID, userID int64) (bool, error)
}

// Hub owns the realtime state and coordinates connection lifecycle:
// registration, group subscriptions, fanout and presence transitions.
type Hub struct {
	registry *Registry
	subs     *SubscriptionMap
	router   *Router
	presence *PresenceTracker
	verifier MembershipVerifier
}

// HubStats is a point-in-time snapshot for the admin surface.
type HubStats struct {
	Connections int `json:"connections"`
	OnlineUsers int `json:"online_users"`
}

func NewHub(verifier MembershipVerifier) *Hub {
	registry := NewRegistry()
	subs := NewSubscriptionMap()
	return &Hub{
		registry: registry,
		subs:     subs,
		router:   NewRouter(registry, subs),
		presence: NewPresenceTracker(registry),
		verifier: verifier,
	}
}

func (h *Hub) Router() *Router            { return h.router }
func (h *Hub) Presence() *PresenceTracker { return h.presence }
func (h *Hub) Registry() *Registry        { return h.registry }

// Stats returns current hub statistics.
func (h *Hub) Stats() HubStats {
	return HubStats{
		Connections: h.registry.ConnectionCount(),
		OnlineUsers: h.registry.OnlineCount(),
	}
}

// bind registers a connection and announces the online transition when
// it is the user's first.
func (h *Hub) bind(conn Connection) {
	if first := h.registry.Register(conn); first {
		h.announce(conn.UserID(), true)
	}
	log.Debug("realtime: connection registered", "conn_id", conn.ID(), "user_id", conn.UserID())
}

// remove is the single disconnect cleanup path: unregister and drop all
// group subscriptions, then announce the offline transition when it was
// the user's last connection. Safe to call more than once per id.
func (h *Hub) remove(connID string) {
	groups := h.subs.LeaveAll(connID)
	userID, last, ok := h.registry.Unregister(connID)
	if !ok {
		return
	}
	if last {
		h.announce(userID, false)
	}
	log.Debug("realtime: connection removed",
		"conn_id", connID, "user_id", userID, "groups", len(groups), "last", last)
}

// announce fans a presence transition out to in-process watchers and,
// as a presence frame, to every other user's connections.
func (h *Hub) announce(userID int64, online bool) {
	ev := PresenceEvent{UserID: userID, Status: "offline"}
	if online {
		ev.Status = "online"
	}
	h.presence.publish(ev)
	h.router.BroadcastExcept(userID, EventPresence, ev)
}

// Subscribe joins a connection to a group's traffic after verifying
// active membership. Unauthorized joins leave the subscription map
// untouched.
func (h *Hub) Subscribe(conn Connection, groupID int64) error {
	ok, err := h.verifier.IsActiveGroupMember(groupID, conn.UserID())
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotAuthorized
	}
	h.subs.Join(groupID, conn.ID())
	return nil
}

// Unsubscribe drops a connection's subscription. No authorization
// needed to stop receiving traffic.
func (h *Hub) Unsubscribe(conn Connection, groupID int64) {
	h.subs.Leave(groupID, conn.ID())
}

// EvictUserFromGroup drops all of a user's connections from a group's
// routing. Called when membership is revoked or the group is deleted.
func (h *Hub) EvictUserFromGroup(userID, groupID int64) {
	h.subs.EvictUser(h.registry.ConnectionsFor(userID), groupID)
}

// EvictGroup drops every subscription to a group. Called on group
// deletion.
func (h *Hub) EvictGroup(groupID int64) {
	for _, connID := range h.subs.Subscribers(groupID) {
		h.subs.Leave(groupID, connID)
	}
}

// CloseAll tears down every live connection. Used on server shutdown.
func (h *Hub) CloseAll() {
	for _, conn := range h.registry.AllConnections() {
		if closer, ok := conn.(interface{ Close() }); ok {
			closer.Close()
		} else {
			h.remove(conn.ID())
		}
	}
}
