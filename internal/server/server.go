// internal/server/server.go
package server

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/ihor-shndr/mychat/internal/auth"
	"github.com/ihor-shndr/mychat/internal/db"
	"github.com/ihor-shndr/mychat/internal/log"
	"github.com/ihor-shndr/mychat/internal/realtime"
	"github.com/ihor-shndr/mychat/internal/storage"
	"github.com/ihor-shndr/mychat/internal/store"
)

type Server struct {
	db          *db.DB
	router      *chi.Mux
	authService *auth.Service
	store       *store.Store
	hub         *realtime.Hub
	images      *storage.Images

	// HTTP server for graceful shutdown
	httpServer *http.Server
}

// Config holds server configuration.
type Config struct {
	JWTSecret string
	Images    *storage.Images
}

func New(database *db.DB, cfg Config) *Server {
	chatStore := store.New(database)

	s := &Server{
		db:          database,
		router:      chi.NewRouter(),
		authService: auth.NewService(database, cfg.JWTSecret),
		store:       chatStore,
		hub:         realtime.NewHub(verifierFunc(chatStore.IsActiveGroupMember)),
		images:      cfg.Images,
	}

	s.setupRoutes()
	return s
}

// verifierFunc adapts the store's membership check to the hub's
// verifier interface.
type verifierFunc func(groupID, userID int64) (bool, error)

func (f verifierFunc) IsActiveGroupMember(groupID, userID int64) (bool, error) {
	return f(groupID, userID)
}

func (s *Server) setupRoutes() {
	// CORS middleware for browser-based clients
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	s.router.Use(log.RequestLogger)
	s.router.Use(middleware.Recoverer)

	s.router.Get("/health", s.handleHealth)

	// websocket handshake authenticates via token before upgrading
	s.router.Get("/ws", realtime.NewHandler(s.hub, s.authService, auth.UserIDFromClaims).ServeHTTP)

	s.router.Route("/api", func(r chi.Router) {
		r.Post("/auth/register", s.handleRegister)
		r.Post("/auth/login", s.handleLogin)

		// image downloads are anonymous, the keys are unguessable uuids
		r.Get("/images/{key}", s.handleGetImage)

		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Get("/auth/me", s.handleMe)

			r.Get("/users/search", s.handleSearchUsers)

			r.Get("/contacts", s.handleListContacts)
			r.Get("/contacts/invitations", s.handleListInvitations)
			r.Get("/contacts/invitations/sent", s.handleListSentInvitations)
			r.Post("/contacts/invite", s.handleSendInvitation)
			r.Post("/contacts/{userID}/accept", s.handleAcceptInvitation)
			r.Post("/contacts/{userID}/reject", s.handleRejectInvitation)
			r.Post("/contacts/{userID}/block", s.handleBlockContact)
			r.Delete("/contacts/{userID}", s.handleRemoveContact)

			r.Get("/groups", s.handleListGroups)
			r.Post("/groups", s.handleCreateGroup)
			r.Get("/groups/{groupID}", s.handleGetGroup)
			r.Put("/groups/{groupID}", s.handleUpdateGroup)
			r.Delete("/groups/{groupID}", s.handleDeleteGroup)
			r.Get("/groups/{groupID}/members", s.handleListMembers)
			r.Post("/groups/{groupID}/members", s.handleAddMember)
			r.Delete("/groups/{groupID}/members/{userID}", s.handleRemoveMember)
			r.Post("/groups/{groupID}/leave", s.handleLeaveGroup)

			r.Post("/messages/direct/{userID}", s.handleSendDirectMessage)
			r.Post("/messages/group/{groupID}", s.handleSendGroupMessage)
			r.Get("/messages/direct/{userID}", s.handleDirectHistory)
			r.Get("/messages/group/{groupID}", s.handleGroupHistory)
			r.Delete("/messages/{messageID}", s.handleDeleteMessage)

			r.Get("/conversations", s.handleListConversations)

			r.Post("/images/upload", s.handleUploadImage)

			r.Get("/presence/{userID}", s.handleGetPresence)
			r.Get("/presence", s.handleListPresence)
		})
	})
}

func (s *Server) Router() *chi.Mux {
	return s.router
}

// Hub exposes the realtime hub for stats and tests.
func (s *Server) Hub() *realtime.Hub {
	return s.hub
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	stats := s.hub.Stats()
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":       "healthy",
		"connections":  stats.Connections,
		"online_users": stats.OnlineUsers,
	})
}

func (s *Server) ListenAndServe(addr string) error {
	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: s.router,
	}
	return s.httpServer.ListenAndServe()
}

// Shutdown closes every live websocket and stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.CloseAll()
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			return err
		}
	}
	return nil
}

// ErrorResponse is the JSON error body for every API failure.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, status int, errCode, message string) {
	s.writeJSON(w, status, ErrorResponse{Error: errCode, Message: message})
}
