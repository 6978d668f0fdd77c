package hook

import (
	"context"
	"testing"
	"time"

	"github.com/frameweave/agent/internal/d3d"
)

func TestOptionsDefaults(t *testing.T) {
	got := Options{}.withDefaults()
	if got.MaxRetries != 100 {
		t.Fatalf("MaxRetries = %d, want 100", got.MaxRetries)
	}
	if got.RetryInterval != 100*time.Millisecond {
		t.Fatalf("RetryInterval = %v, want 100ms", got.RetryInterval)
	}
	if got.PreferredAPI != d3d.APID3D12 {
		t.Fatalf("PreferredAPI = %v, want d3d12", got.PreferredAPI)
	}
}

func TestOptionsExplicitValuesKept(t *testing.T) {
	in := Options{
		PreferredAPI:  d3d.APID3D11,
		WindowTitles:  []string{"HostGame"},
		MaxRetries:    3,
		RetryInterval: time.Second,
	}
	got := in.withDefaults()
	if got.PreferredAPI != d3d.APID3D11 || got.MaxRetries != 3 || got.RetryInterval != time.Second {
		t.Fatalf("explicit options were overridden: %+v", got)
	}
	if len(got.WindowTitles) != 1 || got.WindowTitles[0] != "HostGame" {
		t.Fatalf("window titles lost: %+v", got.WindowTitles)
	}
}

func TestSleepCtxCancelledReturnsImmediately(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	if sleepCtx(ctx, 10*time.Second) {
		t.Fatal("sleepCtx reported a full wait on a cancelled context")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("cancelled sleep blocked for %v", elapsed)
	}
}

func TestSleepCtxCompletesWait(t *testing.T) {
	if !sleepCtx(context.Background(), time.Millisecond) {
		t.Fatal("uncancelled sleep reported cancellation")
	}
}
