package framegen

import "sync/atomic"

// minHistoryForSynthesis is how many real frames must exist before an
// intermediate frame can be produced between the two newest.
const minHistoryForSynthesis = 2

// InjectionPolicy decides, per observed present, whether a synthesized
// frame should be spliced in. The cadence alternates so every second
// observed frame triggers a synthesis cycle once enough history exists,
// doubling the effective frame rate. All counters are atomics; the decision
// runs on the host's present thread.
type InjectionPolicy struct {
	observed  atomic.Uint64
	generated atomic.Uint64
	missed    atomic.Uint64
}

// Decide records one observed present and reports whether this present
// should trigger a synthesis cycle.
func (p *InjectionPolicy) Decide(historyLen int) bool {
	n := p.observed.Add(1)
	if historyLen < minHistoryForSynthesis {
		return false
	}
	return n%2 == 0
}

// RecordGenerated counts one successfully spliced frame.
func (p *InjectionPolicy) RecordGenerated() {
	p.generated.Add(1)
}

// RecordMissed counts one synthesis cycle that was due but skipped, e.g. a
// fence timeout or a static frame.
func (p *InjectionPolicy) RecordMissed() {
	p.missed.Add(1)
}

// Counters returns the observed/generated/missed totals.
func (p *InjectionPolicy) Counters() (observed, generated, missed uint64) {
	return p.observed.Load(), p.generated.Load(), p.missed.Load()
}

// Reset zeroes all counters. Used when the swap chain is replaced and the
// cadence restarts from an empty ring.
func (p *InjectionPolicy) Reset() {
	p.observed.Store(0)
	p.generated.Store(0)
	p.missed.Store(0)
}
