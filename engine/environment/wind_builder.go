package environment

// WindBuilderOption configures a wind system during construction.
type WindBuilderOption func(*wind)

// NewWind creates a wind system with a camera-centered grid.
//
// Parameters:
//   - opts: optional configuration options
//
// Returns:
//   - Wind: the configured wind system
func NewWind(opts ...WindBuilderOption) Wind {
	w := &wind{
		direction:     [3]float32{1, 0, 0},
		speed:         4,
		gustStrength:  0.4,
		gustFrequency: 0.5,
		turbIntensity: 0.25,
		turbScale:     0.05,
		gridWorldSize: 256,
		enabled:       true,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// WithWindDirection sets the base wind direction.
//
// Parameters:
//   - x, y, z: direction vector (normalized internally, zero falls back to +X)
//
// Returns:
//   - WindBuilderOption: the configuration option
func WithWindDirection(x, y, z float32) WindBuilderOption {
	return func(w *wind) {
		w.direction = [3]float32{x, y, z}
	}
}

// WithWindSpeed sets the base wind speed in world units per second.
//
// Parameters:
//   - speed: base speed
//
// Returns:
//   - WindBuilderOption: the configuration option
func WithWindSpeed(speed float32) WindBuilderOption {
	return func(w *wind) {
		w.speed = speed
	}
}

// WithGust sets the gust modulation parameters.
//
// Parameters:
//   - strength: gust amplitude relative to base speed
//   - frequency: gust oscillations per second
//
// Returns:
//   - WindBuilderOption: the configuration option
func WithGust(strength, frequency float32) WindBuilderOption {
	return func(w *wind) {
		w.gustStrength = strength
		w.gustFrequency = frequency
	}
}

// WithTurbulence sets the turbulence noise parameters used by the generation
// kernel.
//
// Parameters:
//   - intensity: turbulence amplitude relative to base speed
//   - scale: noise frequency in inverse world units
//
// Returns:
//   - WindBuilderOption: the configuration option
func WithTurbulence(intensity, scale float32) WindBuilderOption {
	return func(w *wind) {
		w.turbIntensity = intensity
		w.turbScale = scale
	}
}

// WithWindGridWorldSize sets the wind grid AABB edge length.
//
// Parameters:
//   - size: edge length in world units
//
// Returns:
//   - WindBuilderOption: the configuration option
func WithWindGridWorldSize(size float32) WindBuilderOption {
	return func(w *wind) {
		w.gridWorldSize = size
	}
}

// WithWindEnabled sets the initial enabled state.
//
// Parameters:
//   - enabled: whether the field regenerates each frame
//
// Returns:
//   - WindBuilderOption: the configuration option
func WithWindEnabled(enabled bool) WindBuilderOption {
	return func(w *wind) {
		w.enabled = enabled
	}
}
