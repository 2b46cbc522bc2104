// internal/realtime/subscriptions_test.go
package realtime

import (
	"sort"
	"testing"
)

func TestSubscriptionJoinLeave(t *testing.T) {
	m := NewSubscriptionMap()

	m.Join(10, "c1")
	m.Join(10, "c2")
	m.Join(20, "c1")
	m.Join(10, "c1") // duplicate join is a no-op

	subs := m.Subscribers(10)
	sort.Strings(subs)
	if len(subs) != 2 || subs[0] != "c1" || subs[1] != "c2" {
		t.Errorf("unexpected subscribers: %v", subs)
	}

	groups := m.GroupsOf("c1")
	if len(groups) != 2 {
		t.Errorf("expected c1 in 2 groups, got %v", groups)
	}

	m.Leave(10, "c1")
	if len(m.Subscribers(10)) != 1 {
		t.Error("c1 should have left group 10")
	}
	if len(m.GroupsOf("c1")) != 1 {
		t.Error("c1 should only be in group 20")
	}

	// leaving a group you never joined is harmless
	m.Leave(99, "c1")
}

func TestSubscriptionLeaveAll(t *testing.T) {
	m := NewSubscriptionMap()

	m.Join(10, "c1")
	m.Join(20, "c1")
	m.Join(10, "c2")

	groups := m.LeaveAll("c1")
	sort.Slice(groups, func(i, j int) bool { return groups[i] < groups[j] })
	if len(groups) != 2 || groups[0] != 10 || groups[1] != 20 {
		t.Errorf("unexpected groups: %v", groups)
	}

	if len(m.GroupsOf("c1")) != 0 {
		t.Error("c1 should have no subscriptions left")
	}
	if len(m.Subscribers(20)) != 0 {
		t.Error("group 20 should have no subscribers left")
	}
	if got := m.Subscribers(10); len(got) != 1 || got[0] != "c2" {
		t.Errorf("group 10 should still have c2, got %v", got)
	}

	if got := m.LeaveAll("c1"); got != nil {
		t.Errorf("second LeaveAll should return nothing, got %v", got)
	}
}

func TestSubscriptionEvictUser(t *testing.T) {
	m := NewSubscriptionMap()

	c1 := newFakeConn("c1", 1)
	c2 := newFakeConn("c2", 1)
	m.Join(10, "c1")
	m.Join(10, "c2")
	m.Join(10, "c3") // another user's connection

	m.EvictUser([]Connection{c1, c2}, 10)

	if got := m.Subscribers(10); len(got) != 1 || got[0] != "c3" {
		t.Errorf("only c3 should remain, got %v", got)
	}
}
