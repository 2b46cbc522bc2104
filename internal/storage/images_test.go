package storage

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/ihor-shndr/mychat/internal/storage/backend"
)

func newTestImages(t *testing.T) *Images {
	t.Helper()
	b, err := backend.NewLocal(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocal failed: %v", err)
	}
	return NewImages(b)
}

func TestStoreAndOpen(t *testing.T) {
	images := newTestImages(t)
	ctx := context.Background()

	content := "pretend this is a png"
	key, err := images.Store(ctx, "photo.PNG", strings.NewReader(content), int64(len(content)))
	if err != nil {
		t.Fatalf("Store failed: %v", err)
	}
	if !strings.HasPrefix(key, "images/") || !strings.HasSuffix(key, ".png") {
		t.Errorf("unexpected key: %q", key)
	}

	r, info, err := images.Open(ctx, key)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer r.Close()
	data, _ := io.ReadAll(r)
	if string(data) != content {
		t.Errorf("content mismatch: %q", data)
	}
	if info.ContentType != "image/png" {
		t.Errorf("expected image/png, got %q", info.ContentType)
	}

	// keys are unique per upload
	key2, err := images.Store(ctx, "photo.png", strings.NewReader(content), int64(len(content)))
	if err != nil {
		t.Fatal(err)
	}
	if key2 == key {
		t.Error("two uploads should never share a key")
	}
}

func TestStoreRejectsBadUploads(t *testing.T) {
	images := newTestImages(t)
	ctx := context.Background()

	_, err := images.Store(ctx, "malware.exe", strings.NewReader("x"), 1)
	if !errors.Is(err, ErrUnsupportedType) {
		t.Errorf("expected ErrUnsupportedType, got %v", err)
	}

	_, err = images.Store(ctx, "big.jpg", strings.NewReader("x"), MaxImageSize+1)
	if !errors.Is(err, ErrImageTooLarge) {
		t.Errorf("expected ErrImageTooLarge, got %v", err)
	}

	_, err = images.Store(ctx, "noext", strings.NewReader("x"), 1)
	if !errors.Is(err, ErrUnsupportedType) {
		t.Errorf("expected ErrUnsupportedType, got %v", err)
	}
}

func TestOpenRejectsForeignKeys(t *testing.T) {
	images := newTestImages(t)
	ctx := context.Background()

	bad := []string{
		"images/../secret.png",
		"other/file.png",
		"images/nested/file.png",
		"images/file.exe",
		"",
	}
	for _, key := range bad {
		if _, _, err := images.Open(ctx, key); !errors.Is(err, ErrImageNotFound) {
			t.Errorf("key %q should be rejected, got %v", key, err)
		}
	}

	_, _, err := images.Open(ctx, "images/00000000-0000-0000-0000-000000000000.png")
	if !errors.Is(err, ErrImageNotFound) {
		t.Errorf("missing image should be ErrImageNotFound, got %v", err)
	}
}
