// Package framegen synthesizes intermediate frames between consecutive
// presented frames. The portable pipeline here (history ring, block-matching
// motion estimation, motion-compensated interpolation, injection policy) is
// the reference implementation; the GPU backends mirror it over textures.
package framegen

// Generator is the control surface every backend exposes. Frame processing
// itself is backend-specific: the soft generator works on CPU surfaces, the
// GPU backends on captured device handles.
type Generator interface {
	// Resize releases and recreates size-dependent resources. Idempotent,
	// callable before the first frame.
	Resize(w, h int) error
	// SetQuality applies a preset and its default sharpness, unless
	// sharpness was overridden explicitly.
	SetQuality(QualityPreset)
	// SetSharpness overrides the preset sharpness, clamped to [0,1].
	SetSharpness(float32)
	// Reset drops history and counters, e.g. on surface replacement.
	Reset()
	// Snapshot returns the current performance counters.
	Snapshot() Stats
	// Backend identifies the implementation.
	Backend() Backend
	// Close releases backend resources. The generator is unusable after.
	Close() error
}

// Vendor-native frame generation only ships for one GPU vendor and one
// hardware generation; everything else gets the spatial-temporal path.
const (
	vendorIDSupported  = 0x10DE
	vendorDeviceIDLow  = 0x2700
	vendorDeviceIDHigh = 0x2800
)

// VendorHardwareSupported reports whether the adapter identified by
// vendorID/deviceID can run the vendor-native backend.
func VendorHardwareSupported(vendorID, deviceID uint32) bool {
	return vendorID == vendorIDSupported &&
		deviceID >= vendorDeviceIDLow && deviceID < vendorDeviceIDHigh
}
