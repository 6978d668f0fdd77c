package framegen

import (
	"image"
	"log/slog"
	"sync"
	"time"

	"github.com/frameweave/agent/internal/logging"
	"github.com/frameweave/agent/internal/workerpool"
)

// interpolationFactor places the synthesized frame midway between the two
// newest real frames.
const interpolationFactor = 0.5

// SoftGenerator runs the full synthesis pipeline on CPU surfaces. It is the
// reference the GPU backends are validated against and the only path on
// builds without a hooked graphics API.
type SoftGenerator struct {
	log     *slog.Logger
	backend Backend

	ring    *HistoryRing
	est     *MotionEstimator
	policy  InjectionPolicy
	tracker Tracker
	differ  frameDiffer

	mu              sync.Mutex
	quality         QualityPreset
	sharpness       float32
	sharpnessManual bool
}

// NewSoftGenerator returns a CPU generator tagged as backend. pool feeds
// motion-estimation row parallelism and may be nil.
func NewSoftGenerator(backend Backend, pool *workerpool.Pool) *SoftGenerator {
	return &SoftGenerator{
		log:       logging.L("framegen"),
		backend:   backend,
		ring:      NewHistoryRing(HistoryCapacity),
		est:       NewMotionEstimator(pool),
		quality:   PresetBalanced,
		sharpness: PresetBalanced.Sharpness(),
	}
}

// Resize sizes the history ring for w×h frames, dropping history when the
// dimensions actually change.
func (g *SoftGenerator) Resize(w, h int) error {
	pw, ph := g.ring.Dimensions()
	if err := g.ring.Resize(w, h); err != nil {
		return err
	}
	if pw != w || ph != h {
		g.differ.Reset()
		g.tracker.Reset()
		g.log.Info("resized", "width", w, "height", h)
	}
	return nil
}

// ProcessFrame records one presented frame and, when the cadence calls for
// it, returns a synthesized intermediate frame. The boolean reports whether
// synthesis happened. Errors on the frame path are absorbed into the missed
// counter; a nil return with false means pass the real frame through.
func (g *SoftGenerator) ProcessFrame(surface *image.RGBA) (*image.RGBA, bool) {
	g.tracker.MarkPresent(time.Now())

	changed := g.differ.Changed(surface.Pix)
	if err := g.ring.Push(surface); err != nil {
		g.log.Warn("history push failed", logging.KeyError, err)
		return nil, false
	}

	if !g.policy.Decide(g.ring.Len()) {
		return nil, false
	}
	if !changed {
		// Static scene: an interpolated copy adds latency for nothing.
		g.policy.RecordMissed()
		return nil, false
	}

	curr, err := g.ring.Frame(0)
	if err != nil {
		g.policy.RecordMissed()
		return nil, false
	}
	prev, err := g.ring.Frame(1)
	if err != nil {
		g.policy.RecordMissed()
		return nil, false
	}

	g.mu.Lock()
	sharpness := g.sharpness
	g.mu.Unlock()

	start := time.Now()
	field := g.est.Estimate(prev, curr)
	synth := Interpolate(prev, curr, field, interpolationFactor, sharpness)
	g.tracker.MarkGPU(time.Since(start))

	g.policy.RecordGenerated()
	return synth, true
}

// SetQuality applies a preset. The preset's sharpness takes effect unless a
// manual override is active.
func (g *SoftGenerator) SetQuality(q QualityPreset) {
	if !q.Valid() {
		q = PresetBalanced
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.quality = q
	if !g.sharpnessManual {
		g.sharpness = q.Sharpness()
	}
}

// Quality returns the active preset.
func (g *SoftGenerator) Quality() QualityPreset {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.quality
}

// SetSharpness overrides the preset sharpness, clamped to [0,1].
func (g *SoftGenerator) SetSharpness(s float32) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sharpness = ClampSharpness(s)
	g.sharpnessManual = true
}

// Sharpness returns the effective sharpening strength.
func (g *SoftGenerator) Sharpness() float32 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.sharpness
}

// Reset drops history, counters, and timings.
func (g *SoftGenerator) Reset() {
	w, h := g.ring.Dimensions()
	if w > 0 && h > 0 {
		ring := NewHistoryRing(g.ring.Capacity())
		ring.Resize(w, h)
		g.ring = ring
	}
	g.policy.Reset()
	g.tracker.Reset()
	g.differ.Reset()
}

// Snapshot assembles the performance counters. Output FPS is doubled base
// FPS while synthesis is keeping up.
func (g *SoftGenerator) Snapshot() Stats {
	baseFPS, frameMs, gpuMs := g.tracker.Timings()
	observed, generated, missed := g.policy.Counters()

	outputFPS := baseFPS
	if generated > 0 {
		outputFPS = baseFPS * 2
	}
	return Stats{
		BaseFPS:         baseFPS,
		OutputFPS:       outputFPS,
		FrameTimeMs:     frameMs,
		GPUTimeMs:       gpuMs,
		FramesObserved:  observed,
		FramesGenerated: generated,
		FramesMissed:    missed,
	}
}

// Backend reports the tag this generator was created with.
func (g *SoftGenerator) Backend() Backend {
	return g.backend
}

// Close is a no-op for the CPU pipeline.
func (g *SoftGenerator) Close() error {
	return nil
}
