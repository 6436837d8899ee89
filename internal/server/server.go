package server

import (
	"context"
	"errors"
	"log"
	"net/http"
	"sync"

	"github.com/Tyrowin/roomchat/internal/realtime"
	"github.com/gorilla/websocket"
)

// Server assembles the realtime router, the client hub and the HTTP
// endpoints that feed them.
type Server struct {
	cfg      Config
	hub      *Hub
	router   *realtime.Router
	origins  *originPolicy
	upgrader websocket.Upgrader

	startOnce sync.Once
	http      *http.Server
}

// New creates a Server from cfg and the realtime collaborators.
func New(cfg Config, deps realtime.Deps) *Server {
	cfg = sanitizeConfig(cfg)
	s := &Server{
		cfg:     cfg,
		hub:     NewHub(),
		router:  realtime.NewRouter(deps),
		origins: newOriginPolicy(cfg.AllowedOrigins),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.origins.check,
	}
	s.http = CreateServer(cfg.Port, SetupRoutes(s))
	return s
}

// Hub returns the client hub.
func (s *Server) Hub() *Hub { return s.hub }

// Router returns the realtime router.
func (s *Server) Router() *realtime.Router { return s.router }

// Handler returns the HTTP handler with all routes mounted.
func (s *Server) Handler() http.Handler { return s.http.Handler }

// StartHub launches the hub loop. It is safe to call more than once.
func (s *Server) StartHub() {
	s.startOnce.Do(func() {
		go s.hub.Run()
		log.Println("Hub started and ready to manage WebSocket connections")
	})
}

// ListenAndServe starts the hub and serves HTTP until Shutdown is called.
func (s *Server) ListenAndServe() error {
	s.StartHub()
	err := StartServer(s.http)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// ShutdownHTTP stops accepting requests and waits for in-flight ones.
func (s *Server) ShutdownHTTP(ctx context.Context) error {
	return ShutdownServer(ctx, s.http)
}

// ShutdownHub closes every client, which lets the router tear down their
// sessions, and waits for the pumps to exit.
func (s *Server) ShutdownHub(ctx context.Context) error {
	s.StartHub()
	timeout := s.cfg.ShutdownTimeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = timeUntil(deadline)
	}
	return s.hub.Shutdown(timeout)
}
