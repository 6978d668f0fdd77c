package ipc

import (
	"context"
	"errors"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/frameweave/agent/internal/framegen"
)

func connPair(t *testing.T) (*Conn, *Conn) {
	t.Helper()
	a, b := net.Pipe()
	t.Cleanup(func() { a.Close(); b.Close() })
	return NewConn(a), NewConn(b)
}

func TestEnvelopeRoundTrip(t *testing.T) {
	client, server := connPair(t)

	done := make(chan error, 1)
	go func() {
		done <- client.SendTyped("req-1", TypeToggle, ToggleRequest{Target: TargetGeneration})
	}()

	env, err := server.Recv()
	if err != nil {
		t.Fatalf("Recv: %v", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("Send: %v", err)
	}

	if env.ID != "req-1" || env.Type != TypeToggle {
		t.Fatalf("envelope = %+v, want req-1/toggle", env)
	}
	if env.Seq != 1 {
		t.Fatalf("first message seq = %d, want 1", env.Seq)
	}
	if !strings.Contains(string(env.Payload), TargetGeneration) {
		t.Fatalf("payload = %s, want toggle target", env.Payload)
	}
}

func TestRecvRejectsReplayedSequence(t *testing.T) {
	client, server := connPair(t)

	go func() {
		client.Send(&Envelope{ID: "a", Type: TypePing})
	}()
	if _, err := server.Recv(); err != nil {
		t.Fatalf("first Recv: %v", err)
	}

	go func() {
		client.sendSeq.Store(0) // forces the next Send to reuse seq 1
		client.Send(&Envelope{ID: "b", Type: TypePing})
	}()

	if _, err := server.Recv(); err == nil {
		t.Fatal("replayed sequence number must be rejected")
	}
}

func contextWithTimeout(t *testing.T) (context.Context, context.CancelFunc) {
	t.Helper()
	return context.WithTimeout(context.Background(), 5*time.Second)
}

type fakeHandler struct {
	enabled bool
	sets    map[string]string
}

func (h *fakeHandler) Status() StatusReply {
	return StatusReply{
		Initialized: true,
		Config:      framegen.DefaultConfig(),
		Stats:       framegen.Stats{FramesGenerated: 12},
	}
}

func (h *fakeHandler) Toggle(target string) (bool, error) {
	if target != TargetGeneration && target != TargetOverlay {
		return false, errors.New("unknown target")
	}
	h.enabled = !h.enabled
	return h.enabled, nil
}

func (h *fakeHandler) Set(key, value string) error {
	if h.sets == nil {
		h.sets = make(map[string]string)
	}
	h.sets[key] = value
	return nil
}

func TestServerDispatch(t *testing.T) {
	handler := &fakeHandler{}
	server := NewServer(handler)

	clientRaw, serverRaw := net.Pipe()
	t.Cleanup(func() { clientRaw.Close(); serverRaw.Close() })

	ctx, cancel := contextWithTimeout(t)
	defer cancel()
	go server.serveConn(ctx, serverRaw)

	client := &Client{conn: NewConn(clientRaw), timeout: 5 * time.Second}

	status, err := client.Status()
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if !status.Initialized || status.Stats.FramesGenerated != 12 {
		t.Fatalf("status = %+v, want initialized with 12 generated", status)
	}
	if status.ProtocolVersion != ProtocolVersion {
		t.Fatalf("protocol version = %d, want %d", status.ProtocolVersion, ProtocolVersion)
	}

	toggled, err := client.Toggle(TargetGeneration)
	if err != nil {
		t.Fatalf("Toggle: %v", err)
	}
	if !toggled.Enabled {
		t.Fatal("first toggle should enable generation")
	}

	if _, err := client.Toggle("bogus"); err == nil {
		t.Fatal("unknown toggle target should error")
	}

	if err := client.Set("sharpness", "0.8"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if handler.sets["sharpness"] != "0.8" {
		t.Fatalf("handler sets = %v, want sharpness=0.8", handler.sets)
	}
}

func TestRateLimiterSlidingWindow(t *testing.T) {
	rl := NewRateLimiter(3, 50*time.Millisecond)

	for i := 0; i < 3; i++ {
		if !rl.Allow("conn") {
			t.Fatalf("attempt %d should be allowed", i+1)
		}
	}
	if rl.Allow("conn") {
		t.Fatal("fourth attempt inside window should be denied")
	}
	if !rl.Allow("other") {
		t.Fatal("independent key should not be affected")
	}

	time.Sleep(60 * time.Millisecond)
	if !rl.Allow("conn") {
		t.Fatal("attempt after window expiry should be allowed")
	}
}
