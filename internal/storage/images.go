// Package storage implements attachment handling for chat messages:
// validation, key generation and access to the configured backend.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/ihor-shndr/mychat/internal/storage/backend"
)

// MaxImageSize is the upload limit for message images.
const MaxImageSize = 5 * 1024 * 1024 // 5MB

var (
	ErrImageTooLarge   = errors.New("image exceeds the size limit")
	ErrUnsupportedType = errors.New("unsupported image type")
	ErrImageNotFound   = errors.New("image not found")
)

// allowed image extensions and their MIME types
var imageTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
}

// Images stores and serves message image attachments.
type Images struct {
	backend backend.Backend
}

func NewImages(b backend.Backend) *Images {
	return &Images{backend: b}
}

// Store validates and persists an uploaded image, returning the
// generated key. The original filename only contributes its extension;
// the key is a fresh uuid so uploads can never collide or carry path
// segments.
func (s *Images) Store(ctx context.Context, filename string, content io.Reader, size int64) (string, error) {
	if size > MaxImageSize {
		return "", ErrImageTooLarge
	}

	ext := strings.ToLower(filepath.Ext(filename))
	contentType, ok := imageTypes[ext]
	if !ok {
		return "", ErrUnsupportedType
	}

	key := "images/" + uuid.New().String() + ext

	// enforce the limit even when the declared size lies
	limited := io.LimitReader(content, MaxImageSize+1)
	info, err := s.backend.Write(ctx, key, limited, -1, contentType)
	if err != nil {
		return "", fmt.Errorf("failed to store image: %w", err)
	}
	if info.Size > MaxImageSize {
		s.backend.Delete(ctx, key)
		return "", ErrImageTooLarge
	}

	return key, nil
}

// Open returns the image content and metadata for a stored key.
func (s *Images) Open(ctx context.Context, key string) (io.ReadCloser, *backend.FileInfo, error) {
	if !validKey(key) {
		return nil, nil, ErrImageNotFound
	}

	r, info, err := s.backend.Reader(ctx, key)
	if err != nil {
		if backend.IsNotFound(err) || backend.IsInvalidKey(err) {
			return nil, nil, ErrImageNotFound
		}
		return nil, nil, fmt.Errorf("failed to open image: %w", err)
	}

	if info.ContentType == "" {
		info.ContentType = imageTypes[strings.ToLower(filepath.Ext(key))]
	}
	return r, info, nil
}

// Delete removes a stored image. Missing keys are a no-op.
func (s *Images) Delete(ctx context.Context, key string) error {
	if !validKey(key) {
		return nil
	}
	return s.backend.Delete(ctx, key)
}

// validKey accepts only keys this service generates.
func validKey(key string) bool {
	if !strings.HasPrefix(key, "images/") {
		return false
	}
	rest := strings.TrimPrefix(key, "images/")
	if rest == "" || strings.Contains(rest, "/") || strings.Contains(rest, "..") {
		return false
	}
	_, ok := imageTypes[strings.ToLower(filepath.Ext(rest))]
	return ok
}
