// internal/server/image_handlers.go
package server

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/ihor-shndr/mychat/internal/log"
	"github.com/ihor-shndr/mychat/internal/storage"
)

func (s *Server) handleUploadImage(w http.ResponseWriter, r *http.Request) {
	if s.images == nil {
		s.writeError(w, http.StatusNotImplemented, "storage_disabled", "Image storage is not configured")
		return
	}

	if err := r.ParseMultipartForm(storage.MaxImageSize); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid_request", "Form field 'file' is required")
		return
	}
	defer file.Close()

	key, err := s.images.Store(r.Context(), header.Filename, file, header.Size)
	switch {
	case errors.Is(err, storage.ErrUnsupportedType):
		s.writeError(w, http.StatusBadRequest, "unsupported_type", "Only jpg, jpeg, png and gif are allowed")
	case errors.Is(err, storage.ErrImageTooLarge):
		s.writeError(w, http.StatusRequestEntityTooLarge, "too_large", "Image exceeds the size limit")
	case err != nil:
		log.Error("image upload failed", "error", err.Error())
		s.writeError(w, http.StatusInternalServerError, "server_error", "Failed to store image")
	default:
		s.writeJSON(w, http.StatusCreated, map[string]string{
			"key": key,
			"url": "/api/" + key,
		})
	}
}

// handleGetImage serves a stored image. Anonymous access: keys are
// unguessable uuids generated by the upload path.
func (s *Server) handleGetImage(w http.ResponseWriter, r *http.Request) {
	if s.images == nil {
		s.writeError(w, http.StatusNotImplemented, "storage_disabled", "Image storage is not configured")
		return
	}

	key := "images/" + chi.URLParam(r, "key")
	reader, info, err := s.images.Open(r.Context(), key)
	switch {
	case errors.Is(err, storage.ErrImageNotFound):
		s.writeError(w, http.StatusNotFound, "not_found", "Image not found")
		return
	case err != nil:
		log.Error("image fetch failed", "error", err.Error())
		s.writeError(w, http.StatusInternalServerError, "server_error", "Failed to load image")
		return
	}
	defer reader.Close()

	if info.ContentType != "" {
		w.Header().Set("Content-Type", info.ContentType)
	}
	if info.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(info.Size, 10))
	}
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")

	if _, err := io.Copy(w, reader); err != nil {
		log.Debug("image stream interrupted", "key", key, "error", err.Error())
	}
}
