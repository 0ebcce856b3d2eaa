package particle

// SystemBuilderOption configures a particle system during construction.
type SystemBuilderOption func(*system)

// NewSystem creates a particle system with an initialized pool.
//
// Parameters:
//   - opts: optional configuration options
//
// Returns:
//   - System: the configured particle system
func NewSystem(opts ...SystemBuilderOption) System {
	s := &system{
		drag:     0.1,
		gravityY: -9.81,
	}
	maxParticles := DefaultMaxParticles
	for _, opt := range opts {
		opt(s)
	}
	if s.pool == nil {
		s.pool = NewPool(maxParticles)
	}
	s.staging = make([]GPUParticle, 0, MaxEmitBatch)
	return s
}

// WithMaxParticles sets the pool capacity.
//
// Parameters:
//   - maxParticles: pool size in slots
//
// Returns:
//   - SystemBuilderOption: the configuration option
func WithMaxParticles(maxParticles int) SystemBuilderOption {
	return func(s *system) {
		s.pool = NewPool(maxParticles)
	}
}

// WithDrag sets the velocity damping coefficient.
//
// Parameters:
//   - drag: damping per second (0 disables)
//
// Returns:
//   - SystemBuilderOption: the configuration option
func WithDrag(drag float32) SystemBuilderOption {
	return func(s *system) {
		s.drag = drag
	}
}

// WithGravity sets the vertical acceleration applied to particles carrying
// the gravity flag.
//
// Parameters:
//   - gravityY: acceleration in world units per second squared
//
// Returns:
//   - SystemBuilderOption: the configuration option
func WithGravity(gravityY float32) SystemBuilderOption {
	return func(s *system) {
		s.gravityY = gravityY
	}
}
