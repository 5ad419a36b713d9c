// Package server exposes the latest channel status over HTTP: a JSON
// snapshot endpoint and a websocket stream of updates.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"kickwatch/pkg/status"
)

const wsWriteTimeout = 5 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		host := strings.ToLower(strings.TrimSpace(r.Host))
		originHost := strings.ToLower(strings.TrimSpace(u.Host))
		return host == originHost
	},
}

// Server wraps HTTP serving of the status API and websocket stream. It acts
// as one observer of the monitor: the host forwards every status update to
// Publish.
type Server struct {
	httpServer *http.Server
	log        *logrus.Logger

	mu     sync.RWMutex
	latest *status.Record

	clientsMu sync.Mutex
	clients   map[*websocket.Conn]struct{}
}

// New creates a configured status server.
func New(addr string, log *logrus.Logger) *Server {
	mux := http.NewServeMux()
	s := &Server{
		httpServer: &http.Server{Addr: addr, Handler: mux},
		log:        log,
		clients:    make(map[*websocket.Conn]struct{}),
	}
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/ws", s.handleWS)
	return s
}

// Run blocks and serves HTTP traffic.
func (s *Server) Run() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts the server down.
func (s *Server) Shutdown(ctx context.Context) error {
	s.clientsMu.Lock()
	for conn := range s.clients {
		conn.Close()
	}
	s.clients = make(map[*websocket.Conn]struct{})
	s.clientsMu.Unlock()
	return s.httpServer.Shutdown(ctx)
}

// Publish stores the newest record and pushes it to connected clients.
func (s *Server) Publish(rec *status.Record) {
	s.mu.Lock()
	s.latest = rec
	s.mu.Unlock()

	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	for conn := range s.clients {
		if err := writeRecord(conn, rec); err != nil {
			conn.Close()
			delete(s.clients, conn)
		}
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	rec := s.latest
	s.mu.RUnlock()

	if rec == nil {
		writeJSON(w, http.StatusOK, map[string]any{"status": nil})
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		if s.log != nil {
			s.log.Warnf("websocket upgrade failed: %v", err)
		}
		return
	}

	s.mu.RLock()
	rec := s.latest
	s.mu.RUnlock()
	if rec != nil {
		if err := writeRecord(conn, rec); err != nil {
			conn.Close()
			return
		}
	}

	s.clientsMu.Lock()
	s.clients[conn] = struct{}{}
	s.clientsMu.Unlock()

	// Reader loop only detects disconnects; clients send nothing we use.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				s.clientsMu.Lock()
				delete(s.clients, conn)
				s.clientsMu.Unlock()
				conn.Close()
				return
			}
		}
	}()
}

func writeRecord(conn *websocket.Conn, rec *status.Record) error {
	conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return conn.WriteJSON(rec)
}

func writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}
