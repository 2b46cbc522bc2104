package backend

import (
	"context"
	"io"
	"strings"
	"testing"
)

func newTestLocal(t *testing.T) *LocalBackend {
	t.Helper()
	b, err := NewLocal(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocal failed: %v", err)
	}
	return b
}

func TestLocalWriteReadDelete(t *testing.T) {
	b := newTestLocal(t)
	ctx := context.Background()

	content := "fake image bytes"
	info, err := b.Write(ctx, "images/abc.png", strings.NewReader(content), int64(len(content)), "image/png")
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if info.Size != int64(len(content)) {
		t.Errorf("expected size %d, got %d", len(content), info.Size)
	}

	exists, err := b.Exists(ctx, "images/abc.png")
	if err != nil || !exists {
		t.Fatalf("file should exist: exists=%v err=%v", exists, err)
	}

	r, info, err := b.Reader(ctx, "images/abc.png")
	if err != nil {
		t.Fatalf("Reader failed: %v", err)
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if string(data) != content {
		t.Errorf("content mismatch: %q", data)
	}
	if info.ContentType != "image/png" {
		t.Errorf("expected image/png, got %q", info.ContentType)
	}

	if err := b.Delete(ctx, "images/abc.png"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	exists, _ = b.Exists(ctx, "images/abc.png")
	if exists {
		t.Error("file should be gone")
	}

	// deleting again is a no-op
	if err := b.Delete(ctx, "images/abc.png"); err != nil {
		t.Errorf("second delete should succeed: %v", err)
	}
}

func TestLocalReaderNotFound(t *testing.T) {
	b := newTestLocal(t)

	_, _, err := b.Reader(context.Background(), "missing.png")
	if !IsNotFound(err) {
		t.Errorf("expected not found error, got %v", err)
	}
}

func TestLocalRejectsBadKeys(t *testing.T) {
	b := newTestLocal(t)
	ctx := context.Background()

	bad := []string{
		"",
		"../escape.png",
		"images/../../etc/passwd",
		"/absolute.png",
		"nul\x00byte.png",
	}
	for _, key := range bad {
		if _, err := b.Write(ctx, key, strings.NewReader("x"), 1, ""); !IsInvalidKey(err) {
			t.Errorf("key %q should be rejected, got %v", key, err)
		}
	}
}

func TestLocalShortContent(t *testing.T) {
	b := newTestLocal(t)

	_, err := b.Write(context.Background(), "short.png", strings.NewReader("abc"), 10, "image/png")
	if err == nil {
		t.Error("short content should fail when size is declared")
	}
}
