package environment

// SnowBuilderOption configures a snow system during construction.
type SnowBuilderOption func(*snow)

// NewSnow creates a snow accumulation system with camera-centered clipmap
// rings.
//
// Parameters:
//   - opts: optional configuration options
//
// Returns:
//   - Snow: the configured snow system
func NewSnow(opts ...SnowBuilderOption) Snow {
	s := &snow{
		baseExtent:       32,
		captureHeight:    200,
		captureRange:     400,
		accumulationRate: 0.02,
		meltRate:         0.005,
		restorationRate:  0.01,
		snowDensity:      0.35,
		params: GPUSnowParams{
			SnowColor:      [3]float32{0.92, 0.94, 0.98},
			CoverageScale:  1,
			Roughness:      0.65,
			NormalStrength: 0.4,
			HeightScale:    0.3,
			SlopeCutoff:    0.55,
			UVScale:        8,
			SSSStrength:    0.5,
		},
		enabled:   true,
		deformers: make([]GPUSnowDeformer, 0, MaxSnowDeformers),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// WithSnowBaseExtent sets the innermost clipmap ring's half-extent; ring i
// covers baseExtent * 2^i.
//
// Parameters:
//   - extent: half-extent in world units
//
// Returns:
//   - SnowBuilderOption: the configuration option
func WithSnowBaseExtent(extent float32) SnowBuilderOption {
	return func(s *snow) {
		s.baseExtent = extent
	}
}

// WithSnowRates sets the accumulation dynamics.
//
// Parameters:
//   - accumulation: depth gain per second while snowing
//   - melt: depth loss per second above freezing
//   - restoration: deformation recovery per second
//
// Returns:
//   - SnowBuilderOption: the configuration option
func WithSnowRates(accumulation, melt, restoration float32) SnowBuilderOption {
	return func(s *snow) {
		s.accumulationRate = accumulation
		s.meltRate = melt
		s.restorationRate = restoration
	}
}

// WithSnowDensity sets the snow density used by the deform kernel.
//
// Parameters:
//   - density: pack density in [0, 1]
//
// Returns:
//   - SnowBuilderOption: the configuration option
func WithSnowDensity(density float32) SnowBuilderOption {
	return func(s *snow) {
		s.snowDensity = density
	}
}

// WithSnowCapture sets the top-down capture volume for the ring matrices.
//
// Parameters:
//   - height: eye height above the camera
//   - depthRange: far plane distance of the capture volume
//
// Returns:
//   - SnowBuilderOption: the configuration option
func WithSnowCapture(height, depthRange float32) SnowBuilderOption {
	return func(s *snow) {
		s.captureHeight = height
		s.captureRange = depthRange
	}
}

// WithSnowParams replaces the appearance block.
//
// Parameters:
//   - params: the snow appearance parameters
//
// Returns:
//   - SnowBuilderOption: the configuration option
func WithSnowParams(params GPUSnowParams) SnowBuilderOption {
	return func(s *snow) {
		s.params = params
	}
}

// WithSnowEnabled sets the initial enabled state.
//
// Parameters:
//   - enabled: whether accumulation runs
//
// Returns:
//   - SnowBuilderOption: the configuration option
func WithSnowEnabled(enabled bool) SnowBuilderOption {
	return func(s *snow) {
		s.enabled = enabled
	}
}
