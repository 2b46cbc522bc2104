// internal/server/message_handlers.go
package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ihor-shndr/mychat/internal/log"
	"github.com/ihor-shndr/mychat/internal/realtime"
	"github.com/ihor-shndr/mychat/internal/store"
)

type sendMessageRequest struct {
	Content       string `json:"content"`
	Type          int    `json:"type"`
	AttachmentURL string `json:"attachment_url"`
}

// handleSendDirectMessage persists the message and then fans it out to
// the recipient's and the sender's live connections. Delivery is fire
// and forget; the HTTP response reflects persistence only.
func (s *Server) handleSendDirectMessage(w http.ResponseWriter, r *http.Request) {
	recipientID, ok := pathID(r, "userID")
	if !ok {
		s.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid user id")
		return
	}

	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}

	user := currentUser(r)
	msg, err := s.store.SendDirectMessage(user.ID, recipientID, req.Content, req.Type, req.AttachmentURL)
	switch {
	case errors.Is(err, store.ErrNotContacts):
		s.writeError(w, http.StatusForbidden, "not_contacts", "You can only message your contacts")
		return
	case err != nil:
		log.Error("send direct message failed", "error", err.Error())
		s.writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	s.hub.Router().DeliverDirect(user.ID, recipientID, realtime.EventDirectMessage, msg)

	s.writeJSON(w, http.StatusCreated, msg)
}

// handleSendGroupMessage persists and fans out to the group's
// subscribed connections.
func (s *Server) handleSendGroupMessage(w http.ResponseWriter, r *http.Request) {
	groupID, ok := pathID(r, "groupID")
	if !ok {
		s.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid group id")
		return
	}

	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}

	msg, err := s.store.SendGroupMessage(currentUser(r).ID, groupID, req.Content, req.Type, req.AttachmentURL)
	switch {
	case errors.Is(err, store.ErrNotMember):
		s.writeError(w, http.StatusForbidden, "not_a_member", "You are not a member of this group")
		return
	case err != nil:
		log.Error("send group message failed", "error", err.Error())
		s.writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	s.hub.Router().DeliverGroup(groupID, realtime.EventGroupMessage, msg)

	s.writeJSON(w, http.StatusCreated, msg)
}

func (s *Server) handleDirectHistory(w http.ResponseWriter, r *http.Request) {
	otherID, ok := pathID(r, "userID")
	if !ok {
		s.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid user id")
		return
	}

	messages, err := s.store.DirectHistory(currentUser(r).ID, otherID,
		queryInt(r, "page", 1), queryInt(r, "page_size", 50))
	switch {
	case errors.Is(err, store.ErrNotContacts):
		s.writeError(w, http.StatusForbidden, "not_contacts", "You can only view contact conversations")
		return
	case err != nil:
		log.Error("direct history failed", "error", err.Error())
		s.writeError(w, http.StatusInternalServerError, "server_error", "Failed to load history")
		return
	}

	if messages == nil {
		messages = []store.Message{}
	}
	s.writeJSON(w, http.StatusOK, messages)
}

func (s *Server) handleGroupHistory(w http.ResponseWriter, r *http.Request) {
	groupID, ok := pathID(r, "groupID")
	if !ok {
		s.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid group id")
		return
	}

	messages, err := s.store.GroupHistory(groupID, currentUser(r).ID,
		queryInt(r, "page", 1), queryInt(r, "page_size", 50))
	switch {
	case errors.Is(err, store.ErrNotMember):
		s.writeError(w, http.StatusForbidden, "not_a_member", "You are not a member of this group")
		return
	case err != nil:
		log.Error("group history failed", "error", err.Error())
		s.writeError(w, http.StatusInternalServerError, "server_error", "Failed to load history")
		return
	}

	if messages == nil {
		messages = []store.Message{}
	}
	s.writeJSON(w, http.StatusOK, messages)
}

func (s *Server) handleDeleteMessage(w http.ResponseWriter, r *http.Request) {
	messageID, ok := pathID(r, "messageID")
	if !ok {
		s.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid message id")
		return
	}

	err := s.store.DeleteMessage(messageID, currentUser(r).ID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		s.writeError(w, http.StatusNotFound, "not_found", "Message not found or not yours")
	case err != nil:
		log.Error("delete message failed", "error", err.Error())
		s.writeError(w, http.StatusInternalServerError, "server_error", "Failed to delete message")
	default:
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	}
}

func (s *Server) handleListConversations(w http.ResponseWriter, r *http.Request) {
	convs, err := s.store.ListConversations(currentUser(r).ID)
	if err != nil {
		log.Error("list conversations failed", "error", err.Error())
		s.writeError(w, http.StatusInternalServerError, "server_error", "Failed to list conversations")
		return
	}
	if convs == nil {
		convs = []store.Conversation{}
	}
	s.writeJSON(w, http.StatusOK, convs)
}
