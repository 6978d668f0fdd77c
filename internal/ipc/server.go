package ipc

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/process"

	"github.com/frameweave/agent/internal/logging"
)

// commandRate bounds how fast one client may issue commands.
const (
	commandRateMax    = 60
	commandRateWindow = 10 * time.Second
)

// Handler is the interposer-side implementation of the control protocol.
type Handler interface {
	Status() StatusReply
	Toggle(target string) (bool, error)
	Set(key, value string) error
}

// Server answers CLI requests on the local control endpoint.
type Server struct {
	log     *slog.Logger
	handler Handler
	limiter *RateLimiter

	mu sync.Mutex
	ln net.Listener
}

// NewServer returns an unstarted control server.
func NewServer(handler Handler) *Server {
	return &Server{
		log:     logging.L("ipc"),
		handler: handler,
		limiter: NewRateLimiter(commandRateMax, commandRateWindow),
	}
}

// Start opens the endpoint and serves until ctx is cancelled. Failure to
// listen is not fatal to the interposer; the CLI just cannot connect.
func (s *Server) Start(ctx context.Context) error {
	ln, err := Listen()
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.ln = ln
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	go s.acceptLoop(ctx, ln)
	s.log.Info("control endpoint listening")
	return nil
}

// Close shuts the listener down.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	err := s.ln.Close()
	s.ln = nil
	return err
}

func (s *Server) acceptLoop(ctx context.Context, ln net.Listener) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return
			}
			s.log.Warn("accept failed", logging.KeyError, err)
			continue
		}
		go s.serveConn(ctx, conn)
	}
}

func (s *Server) serveConn(ctx context.Context, raw net.Conn) {
	key := raw.RemoteAddr().String()
	conn := NewConn(raw)
	defer conn.Close()
	defer s.limiter.Forget(key)

	for ctx.Err() == nil {
		env, err := conn.Recv()
		if err != nil {
			return
		}
		if !s.limiter.Allow(key) {
			conn.SendError(env.ID, TypeAck, "rate limited")
			continue
		}
		s.dispatch(conn, env)
	}
}

func (s *Server) dispatch(conn *Conn, env *Envelope) {
	switch env.Type {
	case TypePing:
		conn.SendTyped(env.ID, TypePong, nil)

	case TypeStatusRequest:
		reply := s.handler.Status()
		reply.ProtocolVersion = ProtocolVersion
		reply.Host = collectHostInfo()
		conn.SendTyped(env.ID, TypeStatusReply, reply)

	case TypeToggle:
		var req ToggleRequest
		if err := unmarshalPayload(env, &req); err != nil {
			conn.SendError(env.ID, TypeToggleReply, err.Error())
			return
		}
		enabled, err := s.handler.Toggle(req.Target)
		if err != nil {
			conn.SendError(env.ID, TypeToggleReply, err.Error())
			return
		}
		conn.SendTyped(env.ID, TypeToggleReply, ToggleReply{Target: req.Target, Enabled: enabled})

	case TypeSet:
		var req SetRequest
		if err := unmarshalPayload(env, &req); err != nil {
			conn.SendError(env.ID, TypeAck, err.Error())
			return
		}
		if err := s.handler.Set(req.Key, req.Value); err != nil {
			conn.SendError(env.ID, TypeAck, err.Error())
			return
		}
		conn.SendTyped(env.ID, TypeAck, nil)

	default:
		conn.SendError(env.ID, TypeAck, "unknown message type: "+env.Type)
	}
}

// collectHostInfo snapshots the process the interposer is loaded into.
func collectHostInfo() HostInfo {
	info := HostInfo{PID: int32(os.Getpid())}

	if hn, err := os.Hostname(); err == nil {
		info.Hostname = hn
	}
	if up, err := host.Uptime(); err == nil {
		info.UptimeSeconds = float64(up)
	}
	if proc, err := process.NewProcess(info.PID); err == nil {
		if exe, err := proc.Exe(); err == nil {
			info.Executable = exe
		}
		if mem, err := proc.MemoryInfo(); err == nil && mem != nil {
			info.RSSBytes = mem.RSS
		}
		if cpu, err := proc.CPUPercent(); err == nil {
			info.CPUPercent = cpu
		}
	}
	return info
}

func unmarshalPayload(env *Envelope, v any) error {
	if len(env.Payload) == 0 {
		return errors.New("missing payload")
	}
	return json.Unmarshal(env.Payload, v)
}
