// internal/realtime/registry_test.go
package realtime

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

// fakeConn is an in-memory Connection for registry and router tests.
type fakeConn struct {
	id     string
	userID int64

	mu     sync.Mutex
	frames [][]byte
	full   bool
	closed bool
}

func newFakeConn(id string, userID int64) *fakeConn {
	return &fakeConn{id: id, userID: userID}
}

func (c *fakeConn) ID() string    { return c.id }
func (c *fakeConn) UserID() int64 { return c.userID }

func (c *fakeConn) Enqueue(frame []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrConnClosed
	}
	if c.full {
		return ErrSendBufferFull
	}
	c.frames = append(c.frames, frame)
	return nil
}

func (c *fakeConn) received() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([][]byte, len(c.frames))
	copy(out, c.frames)
	return out
}

func TestRegistryRegisterUnregister(t *testing.T) {
	r := NewRegistry()

	c1 := newFakeConn("c1", 1)
	if first := r.Register(c1); !first {
		t.Error("first connection should report the online transition")
	}

	c2 := newFakeConn("c2", 1)
	if first := r.Register(c2); first {
		t.Error("second device should not report a transition")
	}

	if got := len(r.ConnectionsFor(1)); got != 2 {
		t.Fatalf("expected 2 connections, got %d", got)
	}
	if !r.IsOnline(1) {
		t.Error("user should be online")
	}
	if r.OnlineCount() != 1 {
		t.Errorf("expected 1 online user, got %d", r.OnlineCount())
	}

	userID, last, ok := r.Unregister("c1")
	if !ok || userID != 1 || last {
		t.Errorf("unexpected unregister result: user=%d last=%v ok=%v", userID, last, ok)
	}

	userID, last, ok = r.Unregister("c2")
	if !ok || userID != 1 || !last {
		t.Errorf("last unregister should report the offline transition: user=%d last=%v ok=%v", userID, last, ok)
	}

	if r.IsOnline(1) {
		t.Error("user should be offline")
	}
	if len(r.ConnectionsFor(1)) != 0 {
		t.Error("offline user should have no connections")
	}
}

func TestRegistryUnknownUnregister(t *testing.T) {
	r := NewRegistry()

	if _, _, ok := r.Unregister("nope"); ok {
		t.Error("unknown connection id should be a no-op")
	}

	// double unregister during teardown is harmless
	r.Register(newFakeConn("c1", 1))
	r.Unregister("c1")
	if _, _, ok := r.Unregister("c1"); ok {
		t.Error("second unregister should be a no-op")
	}
}

func TestRegistryOwnerOf(t *testing.T) {
	r := NewRegistry()
	r.Register(newFakeConn("c1", 7))

	userID, ok := r.OwnerOf("c1")
	if !ok || userID != 7 {
		t.Errorf("expected owner 7, got %d ok=%v", userID, ok)
	}
	if _, ok := r.OwnerOf("missing"); ok {
		t.Error("missing connection should have no owner")
	}
}

// TestRegistryLookupConsistency churns one user's connections while an
// observer checks that every connection visible in ConnectionsFor also
// resolves through OwnerOf. The two indexes must never disagree. A
// failed lookup only counts when the connection is still visible
// afterwards: ids are unique per churn iteration, so a connection that
// was concurrently unregistered never reappears.
func TestRegistryLookupConsistency(t *testing.T) {
	r := NewRegistry()

	const userID = int64(42)
	const churners = 4

	stop := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < churners; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for n := 0; ; n++ {
				select {
				case <-stop:
					return
				default:
				}
				conn := newFakeConn(fmt.Sprintf("churn-%d-%d", i, n), userID)
				r.Register(conn)
				r.Unregister(conn.ID())
			}
		}(i)
	}

	stillVisible := func(connID string) bool {
		for _, c := range r.ConnectionsFor(userID) {
			if c.ID() == connID {
				return true
			}
		}
		return false
	}

	deadline := time.Now().Add(200 * time.Millisecond)
	for time.Now().Before(deadline) {
		for _, conn := range r.ConnectionsFor(userID) {
			if _, ok := r.OwnerOf(conn.ID()); !ok && stillVisible(conn.ID()) {
				close(stop)
				wg.Wait()
				t.Fatalf("connection %s visible in ConnectionsFor but OwnerOf unknown", conn.ID())
			}
		}
	}
	close(stop)
	wg.Wait()

	if got := len(r.ConnectionsFor(userID)); got != 0 {
		t.Errorf("expected no connections after churn, got %d", got)
	}
}

func TestRegistryConcurrentChurn(t *testing.T) {
	r := NewRegistry()

	const users = 100
	const connsPerUser = 4

	var wg sync.WaitGroup
	for u := 0; u < users; u++ {
		for c := 0; c < connsPerUser; c++ {
			wg.Add(1)
			go func(userID int64, connID string) {
				defer wg.Done()
				conn := newFakeConn(connID, userID)
				r.Register(conn)
				r.ConnectionsFor(userID)
				r.Unregister(connID)
				r.Register(conn)
			}(int64(u), fmt.Sprintf("u%d-c%d", u, c))
		}
	}
	wg.Wait()

	if got := r.OnlineCount(); got != users {
		t.Errorf("expected %d online users, got %d", users, got)
	}
	if got := r.ConnectionCount(); got != users*connsPerUser {
		t.Errorf("expected %d connections, got %d", users*connsPerUser, got)
	}

	var wg2 sync.WaitGroup
	for u := 0; u < users; u++ {
		for c := 0; c < connsPerUser; c++ {
			wg2.Add(1)
			go func(connID string) {
				defer wg2.Done()
				r.Unregister(connID)
			}(fmt.Sprintf("u%d-c%d", u, c))
		}
	}
	wg2.Wait()

	if got := r.OnlineCount(); got != 0 {
		t.Errorf("expected 0 online users after churn, got %d", got)
	}
	if got := r.ConnectionCount(); got != 0 {
		t.Errorf("expected 0 connections after churn, got %d", got)
	}
}
