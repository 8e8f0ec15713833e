package http

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	"walkie/internal/api"
	"walkie/internal/auth"
	"walkie/internal/filestore"
	"walkie/internal/push"
	"walkie/internal/relay"
	"walkie/internal/ws"
)

type APIServer struct {
	server *http.Server
	log    *slog.Logger
	wg     sync.WaitGroup
}

func NewAPIServer(
	authService *auth.AuthService,
	engine *relay.Engine,
	hub *ws.Hub,
	files filestore.FileStore,
	notifier *push.Notifier,
	addr string,
	logger *slog.Logger,
) *APIServer {
	if logger == nil {
		logger = slog.Default()
	}

	wsServer := ws.NewServer(authService, hub, engine, logger)
	handlers := api.New(authService, engine, files, notifier, logger)

	mux := http.NewServeMux()

	mux.HandleFunc("POST /register", handlers.RegisterHandler)
	mux.HandleFunc("POST /login", handlers.LoginHandler)
	mux.HandleFunc("POST /logout", handlers.LogoffHandler)
	mux.HandleFunc("GET /session", handlers.SessionHandler)

	mux.HandleFunc("GET /messages", handlers.RequireAuth(handlers.MessagesHandler))
	mux.HandleFunc("POST /clearMessages", handlers.RequireAuth(handlers.ClearMessagesHandler))

	mux.HandleFunc("POST /upload", handlers.UploadHandler)
	mux.HandleFunc("GET /uploads/{name}", handlers.GetUploadHandler)

	mux.HandleFunc("GET /push/key", handlers.PushKeyHandler)
	mux.HandleFunc("POST /push/subscribe", handlers.PushSubscribeHandler)

	// WebSocket endpoint
	mux.HandleFunc("/ws", wsServer.HandleConnections)

	if addr == "" {
		addr = ":3000"
	}

	return &APIServer{
		server: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
		log: logger,
	}
}

func (s *APIServer) Start() error {
	s.log.Info("server started", "addr", s.server.Addr)
	s.wg.Add(1)
	defer s.wg.Done()

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *APIServer) Shutdown(ctx context.Context) error {
	defer s.wg.Wait()
	return s.server.Shutdown(ctx)
}
