// internal/server/presence_handlers.go
package server

import "net/http"

func (s *Server) handleGetPresence(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(r, "userID")
	if !ok {
		s.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid user id")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"user_id": userID,
		"online":  s.hub.Presence().IsOnline(userID),
	})
}

func (s *Server) handleListPresence(w http.ResponseWriter, r *http.Request) {
	users := s.hub.Presence().OnlineUsers()
	if users == nil {
		users = []int64{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"online_count": s.hub.Presence().OnlineCount(),
		"online_users": users,
	})
}
