// internal/server/contact_handlers.go
package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ihor-shndr/mychat/internal/auth"
	"github.com/ihor-shndr/mychat/internal/log"
	"github.com/ihor-shndr/mychat/internal/store"
)

type inviteRequest struct {
	Username string `json:"username"`
	Message  string `json:"message"`
}

func (s *Server) handleSendInvitation(w http.ResponseWriter, r *http.Request) {
	var req inviteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Username == "" {
		s.writeError(w, http.StatusBadRequest, "invalid_request", "username is required")
		return
	}

	invitee, err := s.authService.GetUserByUsername(req.Username)
	switch {
	case errors.Is(err, auth.ErrUserNotFound):
		s.writeError(w, http.StatusNotFound, "not_found", "No such user")
		return
	case err != nil:
		log.Error("invitee lookup failed", "error", err.Error())
		s.writeError(w, http.StatusInternalServerError, "server_error", "Failed to send invitation")
		return
	}

	user := currentUser(r)
	err = s.store.SendInvitation(user.ID, invitee.ID, req.Message)
	switch {
	case errors.Is(err, store.ErrSelfContact):
		s.writeError(w, http.StatusBadRequest, "invalid_request", "Cannot invite yourself")
	case errors.Is(err, store.ErrAlreadyContacts):
		s.writeError(w, http.StatusConflict, "already_exists", "Contact or invitation already exists")
	case err != nil:
		log.Error("invitation failed", "error", err.Error())
		s.writeError(w, http.StatusInternalServerError, "server_error", "Failed to send invitation")
	default:
		// ping the invitee's devices so the invitation shows up live
		s.hub.Router().Notify(invitee.ID, "contact_invitation", map[string]any{
			"from_user_id":  user.ID,
			"from_username": user.Username,
			"message":       req.Message,
		})
		s.writeJSON(w, http.StatusCreated, map[string]string{"status": "invited"})
	}
}

func (s *Server) handleAcceptInvitation(w http.ResponseWriter, r *http.Request) {
	fromID, ok := pathID(r, "userID")
	if !ok {
		s.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid user id")
		return
	}

	user := currentUser(r)
	err := s.store.AcceptInvitation(user.ID, fromID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		s.writeError(w, http.StatusNotFound, "not_found", "No pending invitation from this user")
	case err != nil:
		log.Error("accept invitation failed", "error", err.Error())
		s.writeError(w, http.StatusInternalServerError, "server_error", "Failed to accept invitation")
	default:
		s.hub.Router().Notify(fromID, "contact_accepted", map[string]any{
			"user_id":  user.ID,
			"username": user.Username,
		})
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "accepted"})
	}
}

func (s *Server) handleRejectInvitation(w http.ResponseWriter, r *http.Request) {
	fromID, ok := pathID(r, "userID")
	if !ok {
		s.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid user id")
		return
	}

	err := s.store.RejectInvitation(currentUser(r).ID, fromID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		s.writeError(w, http.StatusNotFound, "not_found", "No pending invitation from this user")
	case err != nil:
		log.Error("reject invitation failed", "error", err.Error())
		s.writeError(w, http.StatusInternalServerError, "server_error", "Failed to reject invitation")
	default:
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "rejected"})
	}
}

func (s *Server) handleRemoveContact(w http.ResponseWriter, r *http.Request) {
	contactID, ok := pathID(r, "userID")
	if !ok {
		s.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid user id")
		return
	}

	err := s.store.RemoveContact(currentUser(r).ID, contactID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		s.writeError(w, http.StatusNotFound, "not_found", "Not a contact")
	case err != nil:
		log.Error("remove contact failed", "error", err.Error())
		s.writeError(w, http.StatusInternalServerError, "server_error", "Failed to remove contact")
	default:
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "removed"})
	}
}

func (s *Server) handleBlockContact(w http.ResponseWriter, r *http.Request) {
	contactID, ok := pathID(r, "userID")
	if !ok {
		s.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid user id")
		return
	}

	err := s.store.BlockContact(currentUser(r).ID, contactID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		s.writeError(w, http.StatusNotFound, "not_found", "Not a contact")
	case err != nil:
		log.Error("block contact failed", "error", err.Error())
		s.writeError(w, http.StatusInternalServerError, "server_error", "Failed to block contact")
	default:
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "blocked"})
	}
}

func (s *Server) handleListContacts(w http.ResponseWriter, r *http.Request) {
	contacts, err := s.store.ListContacts(currentUser(r).ID)
	if err != nil {
		log.Error("list contacts failed", "error", err.Error())
		s.writeError(w, http.StatusInternalServerError, "server_error", "Failed to list contacts")
		return
	}
	if contacts == nil {
		contacts = []store.Contact{}
	}
	s.writeJSON(w, http.StatusOK, contacts)
}

func (s *Server) handleListInvitations(w http.ResponseWriter, r *http.Request) {
	invitations, err := s.store.ListPendingInvitations(currentUser(r).ID)
	if err != nil {
		log.Error("list invitations failed", "error", err.Error())
		s.writeError(w, http.StatusInternalServerError, "server_error", "Failed to list invitations")
		return
	}
	if invitations == nil {
		invitations = []store.Contact{}
	}
	s.writeJSON(w, http.StatusOK, invitations)
}

func (s *Server) handleListSentInvitations(w http.ResponseWriter, r *http.Request) {
	invitations, err := s.store.ListSentInvitations(currentUser(r).ID)
	if err != nil {
		log.Error("list sent invitations failed", "error", err.Error())
		s.writeError(w, http.StatusInternalServerError, "server_error", "Failed to list invitations")
		return
	}
	if invitations == nil {
		invitations = []store.Contact{}
	}
	s.writeJSON(w, http.StatusOK, invitations)
}
