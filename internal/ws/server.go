package ws

import (
	"log/slog"
	"net/http"

	"walkie/internal/auth"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

type Server struct {
	auth       *auth.AuthService
	hub        *Hub
	dispatcher eventDispatcher
	upgrader   *websocket.Upgrader
	log        *slog.Logger
}

func NewServer(authService *auth.AuthService, hub *Hub, dispatcher eventDispatcher, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		auth:       authService,
		hub:        hub,
		dispatcher: dispatcher,
		log:        logger,
		upgrader: &websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // same-origin enforcement is left to the proxy
			},
		},
	}
}

// HandleConnections upgrades an authenticated request to a websocket and
// runs the connection until the socket or the server closes.
func (s *Server) HandleConnections(w http.ResponseWriter, r *http.Request) {
	username, err := s.auth.GetUsername(sessionToken(r))
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	socket, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error("websocket upgrade failed", "error", err)
		return
	}

	connID := uuid.NewString()
	s.log.Info("websocket connected", "conn_id", connID, "username", username)

	conn := NewConnection(s.hub, s.dispatcher, socket, connID)
	if err := conn.Handle(r.Context()); err != nil {
		if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
			s.log.Error("websocket closed unexpectedly", "conn_id", connID, "error", err)
		}
	}
	s.log.Info("websocket disconnected", "conn_id", connID)
}

// sessionToken extracts the session token from the request: the token
// header, a token query parameter, or the session cookie.
func sessionToken(r *http.Request) string {
	if token := r.Header.Get("token"); token != "" {
		return token
	}
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}
	if cookie, err := r.Cookie("token"); err == nil {
		return cookie.Value
	}
	return ""
}
