// internal/realtime/handler.go
package realtime

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
	"github.com/ihor-shndr/mychat/internal/log"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // CORS handled elsewhere
	},
}

// TokenValidator verifies access tokens for the websocket handshake.
// The auth service implements it.
type TokenValidator interface {
	ValidateAccessToken(token string) (jwt.MapClaims, error)
}

// UserIDExtractor reads the user id out of validated claims.
type UserIDExtractor func(jwt.MapClaims) (int64, error)

// Handler upgrades authenticated HTTP requests to websocket
// connections on the hub.
type Handler struct {
	hub       *Hub
	validator TokenValidator
	extractID UserIDExtractor
}

func NewHandler(hub *Hub, validator TokenValidator, extractID UserIDExtractor) *Handler {
	return &Handler{hub: hub, validator: validator, extractID: extractID}
}

// ServeHTTP validates the client's token before upgrading. A bad token
// is a plain 401 and no realtime state is touched.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		header := r.Header.Get("Authorization")
		token = strings.TrimPrefix(header, "Bearer ")
	}
	if token == "" {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return
	}

	claims, err := h.validator.ValidateAccessToken(token)
	if err != nil {
		log.Debug("realtime: rejected handshake", "error", err.Error())
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	userID, err := h.extractID(claims)
	if err != nil {
		log.Debug("realtime: rejected handshake", "error", err.Error())
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error("realtime: upgrade failed", "error", err.Error())
		return
	}

	conn := h.hub.NewConn(ws, userID)
	log.Debug("realtime: new connection", "conn_id", conn.ID(), "user_id", userID)

	go conn.WritePump()
	go conn.ReadPump()
}
