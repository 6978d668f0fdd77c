// Package diag publishes live config and performance snapshots over a
// loopback websocket. The external configuration panel subscribes here
// instead of poking at interposer memory.
package diag

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/frameweave/agent/internal/framegen"
	"github.com/frameweave/agent/internal/logging"
)

// publishInterval is the snapshot cadence (~4 Hz). The panel is a human
// surface; faster updates just burn cycles inside the host process.
const publishInterval = 250 * time.Millisecond

// Snapshot is one published state sample.
type Snapshot struct {
	SessionID string          `json:"sessionId"`
	Timestamp time.Time       `json:"timestamp"`
	Config    framegen.Config `json:"config"`
	Stats     framegen.Stats  `json:"stats"`
}

// Source supplies the state to publish.
type Source interface {
	Snapshot() (framegen.Config, framegen.Stats)
}

// Server accepts panel subscriptions and broadcasts snapshots.
type Server struct {
	log       *slog.Logger
	source    Source
	sessionID string

	upgrader websocket.Upgrader
	httpSrv  *http.Server

	mu      sync.Mutex
	addr    string
	clients map[*websocket.Conn]struct{}
}

// NewServer returns an unstarted diagnostics server. listenAddr "" binds an
// ephemeral loopback port.
func NewServer(source Source, listenAddr string) *Server {
	if listenAddr == "" {
		listenAddr = "127.0.0.1:0"
	}
	return &Server{
		log:       logging.L("diag"),
		source:    source,
		sessionID: uuid.NewString(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// Loopback only; the listener never leaves 127.0.0.1.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		addr:    listenAddr,
		clients: make(map[*websocket.Conn]struct{}),
	}
}

// Start binds the listener and launches the broadcast loop. Runs until ctx
// is cancelled.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.addr = ln.Addr().String()
	s.mu.Unlock()

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	s.httpSrv = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		s.closeAll()
		s.httpSrv.Close()
	}()
	go s.httpSrv.Serve(ln)
	go s.broadcastLoop(ctx)

	s.log.Info("diagnostics endpoint listening", "addr", s.addr, "session", s.sessionID)
	return nil
}

// Addr returns the bound address once Start has succeeded.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", logging.KeyError, err)
		return
	}

	s.mu.Lock()
	s.clients[conn] = struct{}{}
	n := len(s.clients)
	s.mu.Unlock()
	s.log.Info("panel subscribed", "clients", n)

	// Reader goroutine: we never expect inbound data, but reading drains
	// control frames and detects disconnects.
	go func() {
		defer s.drop(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (s *Server) broadcastLoop(ctx context.Context) {
	ticker := time.NewTicker(publishInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.publish()
		}
	}
}

func (s *Server) publish() {
	s.mu.Lock()
	if len(s.clients) == 0 {
		s.mu.Unlock()
		return
	}
	conns := make([]*websocket.Conn, 0, len(s.clients))
	for c := range s.clients {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	cfg, stats := s.source.Snapshot()
	snap := Snapshot{
		SessionID: s.sessionID,
		Timestamp: time.Now(),
		Config:    cfg,
		Stats:     stats,
	}

	for _, c := range conns {
		c.SetWriteDeadline(time.Now().Add(publishInterval))
		if err := c.WriteJSON(snap); err != nil {
			// A stalled panel must not back-pressure the host.
			s.drop(c)
		}
	}
}

func (s *Server) drop(conn *websocket.Conn) {
	s.mu.Lock()
	_, present := s.clients[conn]
	delete(s.clients, conn)
	s.mu.Unlock()
	if present {
		conn.Close()
	}
}

func (s *Server) closeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		c.Close()
	}
	s.clients = make(map[*websocket.Conn]struct{})
}
