// Package gateway exposes live run events over websocket, plus the
// Prometheus metrics and health endpoints. Clients are read-only
// observers: the gateway never accepts commands over the socket.
package gateway

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"

	"github.com/strixops/strix/internal/observability"
	"github.com/strixops/strix/pkg/agent"
)

// Config holds gateway configuration.
type Config struct {
	Addr string

	// SharedSecret, when set, is required as the token query parameter
	// on /ws. Empty disables auth, for loopback deployments.
	SharedSecret string

	Logger zerolog.Logger
}

type client struct {
	id   string
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) write(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// Server broadcasts run events to all connected websocket clients.
type Server struct {
	cfg      Config
	server   *http.Server
	upgrader websocket.Upgrader
	logger   zerolog.Logger

	mu      sync.RWMutex
	clients map[string]*client
}

// NewServer creates a gateway server.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("listen address is required")
	}
	observability.EnsureRegistered()

	s := &Server{
		cfg:     cfg,
		logger:  cfg.Logger,
		clients: make(map[string]*client),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	mux.Handle("/metrics", observability.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	s.server = &http.Server{Addr: cfg.Addr, Handler: mux}
	return s, nil
}

// Start serves until Shutdown. It blocks.
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.cfg.Addr).Msg("Gateway listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("gateway server failed: %w", err)
	}
	return nil
}

// Shutdown closes all client connections and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	for id, c := range s.clients {
		c.conn.Close()
		delete(s.clients, id)
	}
	s.mu.Unlock()

	return s.server.Shutdown(ctx)
}

// ClientCount returns the number of connected observers.
func (s *Server) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// Broadcast sends one run event to every connected client. A client
// whose write fails is dropped; the run never waits on a slow observer.
func (s *Server) Broadcast(evt agent.Event) {
	data, err := json.Marshal(evt)
	if err != nil {
		s.logger.Error().Err(err).Str("type", string(evt.Type)).Msg("Failed to marshal event")
		return
	}

	s.mu.RLock()
	clients := make([]*client, 0, len(s.clients))
	for _, c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.RUnlock()

	for _, c := range clients {
		if err := c.write(data); err != nil {
			s.logger.Warn().Err(err).Str("client_id", c.id).Msg("Dropping client after failed write")
			s.removeClient(c.id)
		}
	}
}

// Publish consumes a run's event stream to completion, broadcasting
// every event. It returns when the stream closes.
func (s *Server) Publish(events <-chan agent.Event) {
	for evt := range events {
		s.Broadcast(evt)
	}
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	if s.cfg.SharedSecret != "" {
		token := r.URL.Query().Get("token")
		if subtle.ConstantTimeCompare([]byte(token), []byte(s.cfg.SharedSecret)) != 1 {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Websocket upgrade failed")
		return
	}

	id, err := gonanoid.New()
	if err != nil {
		id = fmt.Sprintf("client-%d", time.Now().UnixNano())
	}

	c := &client{id: id, conn: conn}
	s.mu.Lock()
	s.clients[id] = c
	s.mu.Unlock()

	s.logger.Info().Str("client_id", id).Str("remote", r.RemoteAddr).Msg("Observer connected")

	// Clients are observers; the read loop only detects disconnects.
	go func() {
		defer s.removeClient(id)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (s *Server) removeClient(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.clients[id]; ok {
		c.conn.Close()
		delete(s.clients, id)
	}
}
