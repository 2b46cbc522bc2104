// internal/realtime/router.go
package realtime

import (
	"github.com/ihor-shndr/mychat/internal/log"
)

// Router fans frames out to live connections. Delivery is fire and
// forget: a slow or closed target is logged and skipped, it never
// blocks the sender or the other targets.
type Router struct {
	registry *Registry
	subs     *SubscriptionMap
}

func NewRouter(registry *Registry, subs *SubscriptionMap) *Router {
	return &Router{registry: registry, subs: subs}
}

// DeliverDirect sends an event to every connection of the recipient and
// every connection of the sender, so all of the sender's devices see
// their own outgoing message. It returns the number of connections the
// frame was queued on.
func (rt *Router) DeliverDirect(senderID, recipientID int64, event string, payload any) int {
	frame, err := NewFrame(event, payload)
	if err != nil {
		log.Error("realtime: failed to build frame", "event", event, "error", err.Error())
		return 0
	}
	data, err := frame.Encode()
	if err != nil {
		log.Error("realtime: failed to encode frame", "event", event, "error", err.Error())
		return 0
	}

	targets := rt.registry.ConnectionsFor(recipientID)
	if senderID != recipientID {
		targets = append(targets, rt.registry.ConnectionsFor(senderID)...)
	}

	return rt.deliver(targets, data, event)
}

// DeliverGroup sends an event to every connection subscribed to the
// group, including the sender's own subscribed connections.
func (rt *Router) DeliverGroup(groupID int64, event string, payload any) int {
	frame, err := NewFrame(event, payload)
	if err != nil {
		log.Error("realtime: failed to build frame", "event", event, "error", err.Error())
		return 0
	}
	data, err := frame.Encode()
	if err != nil {
		log.Error("realtime: failed to encode frame", "event", event, "error", err.Error())
		return 0
	}

	connIDs := rt.subs.Subscribers(groupID)
	targets := make([]Connection, 0, len(connIDs))
	for _, id := range connIDs {
		if conn, ok := rt.registry.Get(id); ok {
			targets = append(targets, conn)
		}
	}

	return rt.deliver(targets, data, event)
}

// Notify sends an event to every connection of one user.
func (rt *Router) Notify(userID int64, event string, payload any) int {
	frame, err := NewFrame(event, payload)
	if err != nil {
		log.Error("realtime: failed to build frame", "event", event, "error", err.Error())
		return 0
	}
	data, err := frame.Encode()
	if err != nil {
		log.Error("realtime: failed to encode frame", "event", event, "error", err.Error())
		return 0
	}

	return rt.deliver(rt.registry.ConnectionsFor(userID), data, event)
}

// BroadcastExcept sends an event to every live connection except the
// given user's. Presence transitions use it so a user is not told about
// their own status.
func (rt *Router) BroadcastExcept(userID int64, event string, payload any) int {
	frame, err := NewFrame(event, payload)
	if err != nil {
		log.Error("realtime: failed to build frame", "event", event, "error", err.Error())
		return 0
	}
	data, err := frame.Encode()
	if err != nil {
		log.Error("realtime: failed to encode frame", "event", event, "error", err.Error())
		return 0
	}

	all := rt.registry.AllConnections()
	targets := make([]Connection, 0, len(all))
	for _, conn := range all {
		if conn.UserID() != userID {
			targets = append(targets, conn)
		}
	}

	return rt.deliver(targets, data, event)
}

// deliver enqueues one encoded frame on each target. Per-connection
// ordering is the send queue's ordering; a failed target does not stop
// the rest.
func (rt *Router) deliver(targets []Connection, data []byte, event string) int {
	delivered := 0
	seen := make(map[string]struct{}, len(targets))
	for _, conn := range targets {
		if _, dup := seen[conn.ID()]; dup {
			continue
		}
		seen[conn.ID()] = struct{}{}

		if err := conn.Enqueue(data); err != nil {
			log.Warn("realtime: dropping frame",
				"conn_id", conn.ID(), "user_id", conn.UserID(), "event", event, "error", err.Error())
			continue
		}
		delivered++
	}
	return delivered
}
