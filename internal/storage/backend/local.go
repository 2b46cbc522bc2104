package backend

import (
	"context"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"
)

// LocalBackend implements Backend using the local filesystem.
type LocalBackend struct {
	basePath string
}

// NewLocal creates a new local filesystem backend rooted at basePath.
// The directory is created if it doesn't exist.
func NewLocal(basePath string) (*LocalBackend, error) {
	absPath, err := filepath.Abs(basePath)
	if err != nil {
		return nil, &Error{Op: "NewLocal", Err: fmt.Errorf("invalid path: %w", err)}
	}

	if err := os.MkdirAll(absPath, 0755); err != nil {
		return nil, &Error{Op: "NewLocal", Err: fmt.Errorf("create directory: %w", err)}
	}

	return &LocalBackend{basePath: absPath}, nil
}

// validateKey rejects keys that could escape the base directory.
func (b *LocalBackend) validateKey(key string) error {
	if key == "" || strings.ContainsRune(key, 0) {
		return &Error{Op: "validateKey", Key: key, Err: errInvalidKey{}}
	}
	if strings.Contains(key, "..") || filepath.IsAbs(key) {
		return &Error{Op: "validateKey", Key: key, Err: errInvalidKey{}}
	}
	if strings.HasPrefix(filepath.Clean(key), "..") {
		return &Error{Op: "validateKey", Key: key, Err: errInvalidKey{}}
	}
	return nil
}

func (b *LocalBackend) fullPath(key string) string {
	return filepath.Join(b.basePath, filepath.FromSlash(key))
}

// Exists checks if a file exists at the given key.
func (b *LocalBackend) Exists(ctx context.Context, key string) (bool, error) {
	if err := b.validateKey(key); err != nil {
		return false, err
	}

	_, err := os.Stat(b.fullPath(key))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, &Error{Op: "Exists", Key: key, Err: err}
}

// Reader returns a reader for the file content. The content type is
// derived from the key's extension since the filesystem doesn't store
// it.
func (b *LocalBackend) Reader(ctx context.Context, key string) (io.ReadCloser, *FileInfo, error) {
	if err := b.validateKey(key); err != nil {
		return nil, nil, err
	}

	f, err := os.Open(b.fullPath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, &Error{Op: "Reader", Key: key, Err: errNotFound{}}
		}
		return nil, nil, &Error{Op: "Reader", Key: key, Err: err}
	}

	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, &Error{Op: "Reader", Key: key, Err: err}
	}
	if stat.IsDir() {
		f.Close()
		return nil, nil, &Error{Op: "Reader", Key: key, Err: errNotFound{}}
	}

	info := &FileInfo{
		Key:         key,
		Size:        stat.Size(),
		ContentType: mime.TypeByExtension(filepath.Ext(key)),
		ModTime:     stat.ModTime(),
	}

	return f, info, nil
}

// Write stores content at the given key. It writes to a temp file and
// renames so readers never see a partial file.
func (b *LocalBackend) Write(ctx context.Context, key string, content io.Reader, size int64, contentType string) (*FileInfo, error) {
	if err := b.validateKey(key); err != nil {
		return nil, err
	}

	path := b.fullPath(key)
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, &Error{Op: "Write", Key: key, Err: fmt.Errorf("create directory: %w", err)}
	}

	tmpFile, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		return nil, &Error{Op: "Write", Key: key, Err: fmt.Errorf("create temp file: %w", err)}
	}
	tmpPath := tmpFile.Name()
	defer func() {
		if tmpFile != nil {
			tmpFile.Close()
			os.Remove(tmpPath)
		}
	}()

	var written int64
	if size >= 0 {
		written, err = io.CopyN(tmpFile, content, size)
		if err == io.EOF && written < size {
			return nil, &Error{Op: "Write", Key: key, Err: fmt.Errorf("short content: got %d of %d bytes", written, size)}
		}
	} else {
		written, err = io.Copy(tmpFile, content)
	}
	if err != nil && err != io.EOF {
		return nil, &Error{Op: "Write", Key: key, Err: fmt.Errorf("write content: %w", err)}
	}

	if err := tmpFile.Close(); err != nil {
		return nil, &Error{Op: "Write", Key: key, Err: fmt.Errorf("close temp file: %w", err)}
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return nil, &Error{Op: "Write", Key: key, Err: fmt.Errorf("rename: %w", err)}
	}
	tmpFile = nil

	stat, err := os.Stat(path)
	if err != nil {
		return nil, &Error{Op: "Write", Key: key, Err: err}
	}

	return &FileInfo{
		Key:         key,
		Size:        written,
		ContentType: contentType,
		ModTime:     stat.ModTime(),
	}, nil
}

// Delete removes a file. Deleting a missing file is not an error.
func (b *LocalBackend) Delete(ctx context.Context, key string) error {
	if err := b.validateKey(key); err != nil {
		return err
	}

	err := os.Remove(b.fullPath(key))
	if err != nil && !os.IsNotExist(err) {
		return &Error{Op: "Delete", Key: key, Err: err}
	}
	return nil
}

// Close is a no-op for the local backend.
func (b *LocalBackend) Close() error {
	return nil
}
