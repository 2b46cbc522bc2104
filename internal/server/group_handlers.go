// internal/server/group_handlers.go
package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ihor-shndr/mychat/internal/log"
	"github.com/ihor-shndr/mychat/internal/realtime"
	"github.com/ihor-shndr/mychat/internal/store"
)

type groupRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type memberRequest struct {
	UserID int64 `json:"user_id"`
}

func (s *Server) handleCreateGroup(w http.ResponseWriter, r *http.Request) {
	var req groupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		s.writeError(w, http.StatusBadRequest, "invalid_request", "Group name is required")
		return
	}

	group, err := s.store.CreateGroup(currentUser(r).ID, req.Name, req.Description)
	if err != nil {
		log.Error("create group failed", "error", err.Error())
		s.writeError(w, http.StatusInternalServerError, "server_error", "Failed to create group")
		return
	}

	s.writeJSON(w, http.StatusCreated, group)
}

func (s *Server) handleGetGroup(w http.ResponseWriter, r *http.Request) {
	groupID, ok := pathID(r, "groupID")
	if !ok {
		s.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid group id")
		return
	}

	group, err := s.store.GetGroup(groupID)
	if errors.Is(err, store.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "not_found", "Group not found")
		return
	}
	if err != nil {
		log.Error("get group failed", "error", err.Error())
		s.writeError(w, http.StatusInternalServerError, "server_error", "Failed to load group")
		return
	}

	s.writeJSON(w, http.StatusOK, group)
}

func (s *Server) handleUpdateGroup(w http.ResponseWriter, r *http.Request) {
	groupID, ok := pathID(r, "groupID")
	if !ok {
		s.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid group id")
		return
	}

	var req groupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}

	err := s.store.UpdateGroup(groupID, currentUser(r).ID, req.Name, req.Description)
	if s.groupError(w, err, "update group") {
		return
	}

	s.hub.Router().DeliverGroup(groupID, realtime.EventConversationUpdated, map[string]any{
		"group_id": groupID,
		"name":     req.Name,
	})
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (s *Server) handleDeleteGroup(w http.ResponseWriter, r *http.Request) {
	groupID, ok := pathID(r, "groupID")
	if !ok {
		s.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid group id")
		return
	}

	memberIDs, _ := s.store.ActiveMemberIDs(groupID)

	err := s.store.DeleteGroup(groupID, currentUser(r).ID)
	if s.groupError(w, err, "delete group") {
		return
	}

	// tell every member, then cut off routing
	for _, memberID := range memberIDs {
		s.hub.Router().Notify(memberID, "group_deleted", map[string]any{"group_id": groupID})
	}
	s.hub.EvictGroup(groupID)

	s.writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleAddMember(w http.ResponseWriter, r *http.Request) {
	groupID, ok := pathID(r, "groupID")
	if !ok {
		s.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid group id")
		return
	}

	var req memberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID <= 0 {
		s.writeError(w, http.StatusBadRequest, "invalid_request", "user_id is required")
		return
	}

	err := s.store.AddMember(groupID, currentUser(r).ID, req.UserID)
	switch {
	case errors.Is(err, store.ErrNotContacts):
		s.writeError(w, http.StatusForbidden, "not_contacts", "Can only add your accepted contacts")
		return
	default:
		if s.groupError(w, err, "add member") {
			return
		}
	}

	s.hub.Router().Notify(req.UserID, "group_added", map[string]any{"group_id": groupID})
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "added"})
}

func (s *Server) handleRemoveMember(w http.ResponseWriter, r *http.Request) {
	groupID, ok := pathID(r, "groupID")
	if !ok {
		s.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid group id")
		return
	}
	userID, ok := pathID(r, "userID")
	if !ok {
		s.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid user id")
		return
	}

	err := s.store.RemoveMember(groupID, currentUser(r).ID, userID)
	switch {
	case errors.Is(err, store.ErrOwnerLeave):
		s.writeError(w, http.StatusBadRequest, "invalid_request", "The owner cannot be removed")
		return
	case errors.Is(err, store.ErrNotMember):
		s.writeError(w, http.StatusNotFound, "not_found", "Not an active member")
		return
	default:
		if s.groupError(w, err, "remove member") {
			return
		}
	}

	// revoked membership stops live traffic immediately
	s.hub.EvictUserFromGroup(userID, groupID)
	s.hub.Router().Notify(userID, "group_removed", map[string]any{"group_id": groupID})

	s.writeJSON(w, http.StatusOK, map[string]string{"status": "removed"})
}

func (s *Server) handleLeaveGroup(w http.ResponseWriter, r *http.Request) {
	groupID, ok := pathID(r, "groupID")
	if !ok {
		s.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid group id")
		return
	}

	user := currentUser(r)
	err := s.store.LeaveGroup(groupID, user.ID)
	switch {
	case errors.Is(err, store.ErrOwnerLeave):
		s.writeError(w, http.StatusBadRequest, "invalid_request", "The owner must delete the group instead")
		return
	case errors.Is(err, store.ErrNotMember):
		s.writeError(w, http.StatusNotFound, "not_found", "Not an active member")
		return
	default:
		if s.groupError(w, err, "leave group") {
			return
		}
	}

	s.hub.EvictUserFromGroup(user.ID, groupID)
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "left"})
}

func (s *Server) handleListGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := s.store.ListGroups(currentUser(r).ID)
	if err != nil {
		log.Error("list groups failed", "error", err.Error())
		s.writeError(w, http.StatusInternalServerError, "server_error", "Failed to list groups")
		return
	}
	if groups == nil {
		groups = []store.Group{}
	}
	s.writeJSON(w, http.StatusOK, groups)
}

func (s *Server) handleListMembers(w http.ResponseWriter, r *http.Request) {
	groupID, ok := pathID(r, "groupID")
	if !ok {
		s.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid group id")
		return
	}

	members, err := s.store.ListMembers(groupID, currentUser(r).ID)
	switch {
	case errors.Is(err, store.ErrNotMember):
		s.writeError(w, http.StatusForbidden, "not_a_member", "Only members can list members")
		return
	default:
		if s.groupError(w, err, "list members") {
			return
		}
	}

	s.writeJSON(w, http.StatusOK, members)
}

// groupError maps common group store errors. Returns true when the
// response has been written.
func (s *Server) groupError(w http.ResponseWriter, err error, op string) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, store.ErrNotFound):
		s.writeError(w, http.StatusNotFound, "not_found", "Group not found")
	case errors.Is(err, store.ErrNotOwner):
		s.writeError(w, http.StatusForbidden, "not_owner", "Only the owner can do this")
	default:
		log.Error(op+" failed", "error", err.Error())
		s.writeError(w, http.StatusInternalServerError, "server_error", "Operation failed")
	}
	return true
}
