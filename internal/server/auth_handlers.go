// internal/server/auth_handlers.go
package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ihor-shndr/mychat/internal/auth"
	"github.com/ihor-shndr/mychat/internal/log"
)

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type tokenResponse struct {
	AccessToken string     `json:"access_token"`
	TokenType   string     `json:"token_type"`
	User        *auth.User `json:"user"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}

	if req.Username == "" || req.Password == "" {
		s.writeError(w, http.StatusBadRequest, "validation_failed", "Username and password are required")
		return
	}

	user, err := s.authService.CreateUser(req.Username, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrUserExists) {
			s.writeError(w, http.StatusConflict, "user_already_exists", "Username already taken")
			return
		}
		log.Error("register failed", "error", err.Error())
		s.writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	token, err := s.authService.GenerateAccessToken(user)
	if err != nil {
		log.Error("token generation failed", "error", err.Error())
		s.writeError(w, http.StatusInternalServerError, "server_error", "Failed to issue token")
		return
	}

	s.writeJSON(w, http.StatusCreated, tokenResponse{
		AccessToken: token,
		TokenType:   "bearer",
		User:        user,
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}

	user, err := s.authService.Authenticate(req.Username, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			s.writeError(w, http.StatusUnauthorized, "invalid_credentials", "Invalid username or password")
			return
		}
		log.Error("login failed", "error", err.Error())
		s.writeError(w, http.StatusInternalServerError, "server_error", "Login failed")
		return
	}

	token, err := s.authService.GenerateAccessToken(user)
	if err != nil {
		log.Error("token generation failed", "error", err.Error())
		s.writeError(w, http.StatusInternalServerError, "server_error", "Failed to issue token")
		return
	}

	s.writeJSON(w, http.StatusOK, tokenResponse{
		AccessToken: token,
		TokenType:   "bearer",
		User:        user,
	})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, currentUser(r))
}

func (s *Server) handleSearchUsers(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		s.writeError(w, http.StatusBadRequest, "validation_failed", "Query parameter q is required")
		return
	}

	results, err := s.store.SearchUsers(currentUser(r).ID, query, queryInt(r, "limit", 20))
	if err != nil {
		log.Error("user search failed", "error", err.Error())
		s.writeError(w, http.StatusInternalServerError, "server_error", "Search failed")
		return
	}

	s.writeJSON(w, http.StatusOK, results)
}
