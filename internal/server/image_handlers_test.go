// internal/server/image_handlers_test.go
package server

import (
	"bytes"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ihor-shndr/mychat/internal/db"
	"github.com/ihor-shndr/mychat/internal/storage"
	"github.com/ihor-shndr/mychat/internal/storage/backend"
)

func setupImageServer(t *testing.T) *Server {
	t.Helper()

	database, err := db.NewMemory()
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	if err := database.RunMigrations(); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	local, err := backend.NewLocal(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create local backend: %v", err)
	}
	return New(database, Config{JWTSecret: "test-secret", Images: storage.NewImages(local)})
}

func uploadImage(t *testing.T, srv *Server, token, filename, content string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("failed to create form file: %v", err)
	}
	if _, err := io.WriteString(part, content); err != nil {
		t.Fatalf("failed to write form file: %v", err)
	}
	mw.Close()

	req := httptest.NewRequest("POST", "/api/images/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)
	return w
}

func TestImageUploadAndFetch(t *testing.T) {
	srv := setupImageServer(t)
	token, _ := registerUser(t, srv, "alice")

	w := uploadImage(t, srv, token, "cat.png", "png-bytes")
	if w.Code != http.StatusCreated {
		t.Fatalf("upload failed: %d %s", w.Code, w.Body.String())
	}
	resp := parseJSON(t, w)
	key, _ := resp["key"].(string)
	if !strings.HasPrefix(key, "images/") || !strings.HasSuffix(key, ".png") {
		t.Fatalf("unexpected key %q", key)
	}

	// fetch is anonymous
	req := httptest.NewRequest("GET", "/api/"+key, nil)
	get := httptest.NewRecorder()
	srv.Router().ServeHTTP(get, req)
	if get.Code != http.StatusOK {
		t.Fatalf("fetch failed: %d %s", get.Code, get.Body.String())
	}
	if get.Body.String() != "png-bytes" {
		t.Errorf("unexpected body %q", get.Body.String())
	}
	if cc := get.Header().Get("Cache-Control"); !strings.Contains(cc, "immutable") {
		t.Errorf("expected immutable cache header, got %q", cc)
	}
}

func TestImageUploadRejections(t *testing.T) {
	srv := setupImageServer(t)
	token, _ := registerUser(t, srv, "alice")

	if w := uploadImage(t, srv, token, "script.exe", "MZ"); w.Code != http.StatusBadRequest {
		t.Errorf("exe upload should be rejected, got %d", w.Code)
	}
	if w := uploadImage(t, srv, "", "cat.png", "png-bytes"); w.Code != http.StatusUnauthorized {
		t.Errorf("anonymous upload should be rejected, got %d", w.Code)
	}

	req := httptest.NewRequest("GET", "/api/images/nope.png", nil)
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("missing image should 404, got %d", w.Code)
	}
}

func TestImageUploadWithoutStorage(t *testing.T) {
	srv := setupTestServer(t)
	token, _ := registerUser(t, srv, "alice")

	if w := uploadImage(t, srv, token, "cat.png", "png-bytes"); w.Code != http.StatusNotImplemented {
		t.Errorf("expected 501 when storage is disabled, got %d", w.Code)
	}
}
