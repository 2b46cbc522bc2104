// internal/server/server_test.go
package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/ihor-shndr/mychat/internal/db"
)

func setupTestServer(t *testing.T) *Server {
	t.Helper()

	database, err := db.NewMemory()
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	if err := database.RunMigrations(); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	return New(database, Config{JWTSecret: "test-secret"})
}

// doJSON performs a JSON request and returns the recorder.
func doJSON(t *testing.T, srv *Server, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)
	return w
}

func parseJSON(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var v map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("failed to parse response %q: %v", w.Body.String(), err)
	}
	return v
}

// registerUser creates a user through the API and returns its token
// and id.
func registerUser(t *testing.T, srv *Server, username string) (string, int64) {
	t.Helper()

	w := doJSON(t, srv, "POST", "/api/auth/register", "", map[string]string{
		"username": username,
		"password": "password1",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("register failed: %d %s", w.Code, w.Body.String())
	}

	resp := parseJSON(t, w)
	token, _ := resp["access_token"].(string)
	user, _ := resp["user"].(map[string]any)
	id, _ := user["id"].(float64)
	if token == "" || id == 0 {
		t.Fatalf("unexpected register response: %v", resp)
	}
	return token, int64(id)
}

// makeContacts runs the invitation handshake between two users.
func makeContacts(t *testing.T, srv *Server, tokenA string, idA int64, tokenB string, idB int64) {
	t.Helper()

	me := parseJSON(t, doJSON(t, srv, "GET", "/api/auth/me", tokenB, nil))
	w := doJSON(t, srv, "POST", "/api/contacts/invite", tokenA, map[string]any{"username": me["username"]})
	if w.Code != http.StatusCreated {
		t.Fatalf("invite failed: %d %s", w.Code, w.Body.String())
	}
	w = doJSON(t, srv, "POST", fmt.Sprintf("/api/contacts/%d/accept", idA), tokenB, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("accept failed: %d %s", w.Code, w.Body.String())
	}
}

// testConn is an in-memory realtime connection bound straight to the
// hub's registry, standing in for a websocket.
type testConn struct {
	id     string
	userID int64
	mu     sync.Mutex
	frames [][]byte
}

func (c *testConn) ID() string    { return c.id }
func (c *testConn) UserID() int64 { return c.userID }

func (c *testConn) Enqueue(frame []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = append(c.frames, frame)
	return nil
}

func (c *testConn) events(t *testing.T) []string {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	var events []string
	for _, data := range c.frames {
		var f struct {
			Event string `json:"event"`
		}
		if err := json.Unmarshal(data, &f); err != nil {
			t.Fatalf("bad frame: %v", err)
		}
		events = append(events, f.Event)
	}
	return events
}

func TestHealthEndpoint(t *testing.T) {
	srv := setupTestServer(t)

	w := doJSON(t, srv, "GET", "/health", "", nil)
	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
	body := parseJSON(t, w)
	if body["status"] != "healthy" {
		t.Errorf("unexpected status: %v", body["status"])
	}
	if body["connections"] != float64(0) {
		t.Errorf("expected zero connections, got %v", body["connections"])
	}
}

func TestRegisterAndLogin(t *testing.T) {
	srv := setupTestServer(t)

	token, _ := registerUser(t, srv, "alice")

	// duplicate username
	w := doJSON(t, srv, "POST", "/api/auth/register", "", map[string]string{
		"username": "alice", "password": "password1",
	})
	if w.Code != http.StatusConflict {
		t.Errorf("expected 409, got %d", w.Code)
	}

	// login with right and wrong credentials
	w = doJSON(t, srv, "POST", "/api/auth/login", "", map[string]string{
		"username": "alice", "password": "password1",
	})
	if w.Code != http.StatusOK {
		t.Errorf("login failed: %d %s", w.Code, w.Body.String())
	}
	w = doJSON(t, srv, "POST", "/api/auth/login", "", map[string]string{
		"username": "alice", "password": "wrong",
	})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}

	// authenticated whoami
	w = doJSON(t, srv, "GET", "/api/auth/me", token, nil)
	if w.Code != http.StatusOK {
		t.Errorf("me failed: %d", w.Code)
	}
	if me := parseJSON(t, w); me["username"] != "alice" {
		t.Errorf("unexpected user: %v", me)
	}

	// missing and garbage tokens are rejected
	w = doJSON(t, srv, "GET", "/api/auth/me", "", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without token, got %d", w.Code)
	}
	w = doJSON(t, srv, "GET", "/api/auth/me", "garbage", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 with bad token, got %d", w.Code)
	}
}

func TestContactFlow(t *testing.T) {
	srv := setupTestServer(t)

	tokenA, idA := registerUser(t, srv, "alice")
	tokenB, idB := registerUser(t, srv, "bob")

	makeContacts(t, srv, tokenA, idA, tokenB, idB)

	w := doJSON(t, srv, "GET", "/api/contacts", tokenA, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list contacts failed: %d", w.Code)
	}
	var contacts []map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &contacts); err != nil {
		t.Fatal(err)
	}
	if len(contacts) != 1 || contacts[0]["username"] != "bob" {
		t.Errorf("unexpected contacts: %v", contacts)
	}

	// inviting again conflicts
	w = doJSON(t, srv, "POST", "/api/contacts/invite", tokenA, map[string]any{"username": "bob"})
	if w.Code != http.StatusConflict {
		t.Errorf("expected 409, got %d", w.Code)
	}

	// inviting a stranger 404s
	w = doJSON(t, srv, "POST", "/api/contacts/invite", tokenA, map[string]any{"username": "nobody"})
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown username, got %d", w.Code)
	}

	w = doJSON(t, srv, "DELETE", fmt.Sprintf("/api/contacts/%d", idB), tokenA, nil)
	if w.Code != http.StatusOK {
		t.Errorf("remove failed: %d", w.Code)
	}
}

func TestDirectMessageEndpointFansOut(t *testing.T) {
	srv := setupTestServer(t)

	tokenA, idA := registerUser(t, srv, "alice")
	_, idB := registerUser(t, srv, "bob")
	tokenB, _ := loginUser(t, srv, "bob")
	makeContacts(t, srv, tokenA, idA, tokenB, idB)

	// bob online on two devices, alice on one
	bobPhone := &testConn{id: "bp", userID: idB}
	bobLaptop := &testConn{id: "bl", userID: idB}
	aliceConn := &testConn{id: "a", userID: idA}
	srv.Hub().Registry().Register(bobPhone)
	srv.Hub().Registry().Register(bobLaptop)
	srv.Hub().Registry().Register(aliceConn)

	w := doJSON(t, srv, "POST", fmt.Sprintf("/api/messages/direct/%d", idB), tokenA,
		map[string]any{"content": "hello bob"})
	if w.Code != http.StatusCreated {
		t.Fatalf("send failed: %d %s", w.Code, w.Body.String())
	}

	for _, c := range []*testConn{bobPhone, bobLaptop, aliceConn} {
		events := c.events(t)
		if len(events) != 1 || events[0] != "direct_message" {
			t.Errorf("conn %s: expected one direct_message, got %v", c.id, events)
		}
	}

	// strangers cannot message
	tokenC, _ := registerUser(t, srv, "carol")
	w = doJSON(t, srv, "POST", fmt.Sprintf("/api/messages/direct/%d", idB), tokenC,
		map[string]any{"content": "hi"})
	if w.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", w.Code)
	}

	// history is visible to both sides
	w = doJSON(t, srv, "GET", fmt.Sprintf("/api/messages/direct/%d", idA), tokenB, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("history failed: %d", w.Code)
	}
	var history []map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &history); err != nil {
		t.Fatal(err)
	}
	if len(history) != 1 || history[0]["content"] != "hello bob" {
		t.Errorf("unexpected history: %v", history)
	}
}

func loginUser(t *testing.T, srv *Server, username string) (string, int64) {
	t.Helper()
	w := doJSON(t, srv, "POST", "/api/auth/login", "", map[string]string{
		"username": username, "password": "password1",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("login failed: %d %s", w.Code, w.Body.String())
	}
	resp := parseJSON(t, w)
	token, _ := resp["access_token"].(string)
	user, _ := resp["user"].(map[string]any)
	id, _ := user["id"].(float64)
	return token, int64(id)
}

func TestGroupFlow(t *testing.T) {
	srv := setupTestServer(t)

	tokenA, idA := registerUser(t, srv, "alice")
	tokenB, idB := registerUser(t, srv, "bob")
	makeContacts(t, srv, tokenA, idA, tokenB, idB)

	w := doJSON(t, srv, "POST", "/api/groups", tokenA, map[string]string{"name": "team"})
	if w.Code != http.StatusCreated {
		t.Fatalf("create group failed: %d %s", w.Code, w.Body.String())
	}
	group := parseJSON(t, w)
	groupID := int64(group["id"].(float64))

	// non-contact cannot be added
	tokenC, idC := registerUser(t, srv, "carol")
	w = doJSON(t, srv, "POST", fmt.Sprintf("/api/groups/%d/members", groupID), tokenA,
		map[string]any{"user_id": idC})
	if w.Code != http.StatusForbidden {
		t.Errorf("expected 403 for non-contact, got %d", w.Code)
	}

	w = doJSON(t, srv, "POST", fmt.Sprintf("/api/groups/%d/members", groupID), tokenA,
		map[string]any{"user_id": idB})
	if w.Code != http.StatusOK {
		t.Fatalf("add member failed: %d %s", w.Code, w.Body.String())
	}

	// member can post, non-member cannot
	w = doJSON(t, srv, "POST", fmt.Sprintf("/api/messages/group/%d", groupID), tokenB,
		map[string]any{"content": "hi team"})
	if w.Code != http.StatusCreated {
		t.Errorf("group message failed: %d %s", w.Code, w.Body.String())
	}
	w = doJSON(t, srv, "POST", fmt.Sprintf("/api/messages/group/%d", groupID), tokenC,
		map[string]any{"content": "let me in"})
	if w.Code != http.StatusForbidden {
		t.Errorf("expected 403 for non-member, got %d", w.Code)
	}

	// only the owner deletes
	w = doJSON(t, srv, "DELETE", fmt.Sprintf("/api/groups/%d", groupID), tokenB, nil)
	if w.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", w.Code)
	}
	w = doJSON(t, srv, "DELETE", fmt.Sprintf("/api/groups/%d", groupID), tokenA, nil)
	if w.Code != http.StatusOK {
		t.Errorf("delete failed: %d %s", w.Code, w.Body.String())
	}
	w = doJSON(t, srv, "GET", fmt.Sprintf("/api/groups/%d", groupID), tokenA, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404 after delete, got %d", w.Code)
	}
}

func TestRemoveMemberEvictsSubscriptions(t *testing.T) {
	srv := setupTestServer(t)

	tokenA, idA := registerUser(t, srv, "alice")
	tokenB, idB := registerUser(t, srv, "bob")
	makeContacts(t, srv, tokenA, idA, tokenB, idB)

	w := doJSON(t, srv, "POST", "/api/groups", tokenA, map[string]string{"name": "team"})
	group := parseJSON(t, w)
	groupID := int64(group["id"].(float64))

	doJSON(t, srv, "POST", fmt.Sprintf("/api/groups/%d/members", groupID), tokenA,
		map[string]any{"user_id": idB})

	bobConn := &testConn{id: "b", userID: idB}
	srv.Hub().Registry().Register(bobConn)
	// direct subscription stands in for the websocket join_group frame
	srv.Hub().Subscribe(bobConn, groupID)

	w = doJSON(t, srv, "DELETE", fmt.Sprintf("/api/groups/%d/members/%d", groupID, idB), tokenA, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("remove member failed: %d %s", w.Code, w.Body.String())
	}

	// posting after eviction must not reach bob's connection
	before := len(bobConn.events(t))
	doJSON(t, srv, "POST", fmt.Sprintf("/api/messages/group/%d", groupID), tokenA,
		map[string]any{"content": "bob is gone"})
	after := bobConn.events(t)
	for _, ev := range after[before:] {
		if ev == "group_message" {
			t.Error("evicted member must not receive group messages")
		}
	}
}

func TestPresenceEndpoints(t *testing.T) {
	srv := setupTestServer(t)

	tokenA, idA := registerUser(t, srv, "alice")
	_, idB := registerUser(t, srv, "bob")

	srv.Hub().Registry().Register(&testConn{id: "a", userID: idA})

	w := doJSON(t, srv, "GET", fmt.Sprintf("/api/presence/%d", idA), tokenA, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("presence failed: %d", w.Code)
	}
	if resp := parseJSON(t, w); resp["online"] != true {
		t.Errorf("alice should be online: %v", resp)
	}

	w = doJSON(t, srv, "GET", fmt.Sprintf("/api/presence/%d", idB), tokenA, nil)
	if resp := parseJSON(t, w); resp["online"] != false {
		t.Errorf("bob should be offline: %v", resp)
	}

	w = doJSON(t, srv, "GET", "/api/presence", tokenA, nil)
	if resp := parseJSON(t, w); resp["online_count"] != float64(1) {
		t.Errorf("expected 1 online, got %v", resp)
	}
}
