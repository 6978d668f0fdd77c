package framegen

// PresentProcessor is implemented by backends that synthesize directly on
// the captured swap-chain surfaces. The runtime calls ProcessPresent from
// the hooked presentation entry, before the real present is forwarded, so
// any work recorded here executes ahead of the host's flip.
type PresentProcessor interface {
	Generator
	// ProcessPresent captures the pending back buffer into history and, on
	// generation cycles, overwrites it with a synthesized intermediate
	// frame. Failures degrade to passthrough and count as missed.
	ProcessPresent()
}
