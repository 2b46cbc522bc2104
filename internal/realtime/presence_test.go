// internal/realtime/presence_test.go
package realtime

import (
	"testing"
	"time"
)

type allowAllVerifier struct{}

func (allowAllVerifier) IsActiveGroupMember(groupID, userID int64) (bool, error) {
	return true, nil
}

func waitEvent(t *testing.T, ch <-chan PresenceEvent) PresenceEvent {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for presence event")
		return PresenceEvent{}
	}
}

func TestPresenceTransitions(t *testing.T) {
	hub := NewHub(allowAllVerifier{})
	events, stop := hub.Presence().Watch()
	defer stop()

	c1 := newFakeConn("c1", 1)
	c2 := newFakeConn("c2", 1)

	hub.bind(c1)
	ev := waitEvent(t, events)
	if ev.UserID != 1 || ev.Status != "online" {
		t.Errorf("unexpected event: %+v", ev)
	}

	// second device is not a transition
	hub.bind(c2)
	select {
	case ev := <-events:
		t.Errorf("unexpected event for second device: %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}

	hub.remove("c1")
	select {
	case ev := <-events:
		t.Errorf("unexpected event, user still has a connection: %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}

	hub.remove("c2")
	ev = waitEvent(t, events)
	if ev.UserID != 1 || ev.Status != "offline" {
		t.Errorf("unexpected event: %+v", ev)
	}
}

func TestPresenceQueries(t *testing.T) {
	hub := NewHub(allowAllVerifier{})
	p := hub.Presence()

	if p.IsOnline(1) {
		t.Error("nobody should be online yet")
	}

	hub.bind(newFakeConn("c1", 1))
	hub.bind(newFakeConn("c2", 2))

	if !p.IsOnline(1) || !p.IsOnline(2) {
		t.Error("both users should be online")
	}
	if p.OnlineCount() != 2 {
		t.Errorf("expected 2 online users, got %d", p.OnlineCount())
	}
	if len(p.OnlineUsers()) != 2 {
		t.Errorf("expected 2 user ids, got %v", p.OnlineUsers())
	}
}

func TestPresenceStopIsIdempotent(t *testing.T) {
	hub := NewHub(allowAllVerifier{})
	_, stop := hub.Presence().Watch()
	stop()
	stop()

	// publishing with no watchers must not panic
	hub.bind(newFakeConn("c1", 1))
}
