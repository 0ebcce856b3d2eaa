package particle

import (
	"github.com/chewxy/math32"
)

// Emitter describes one particle source. An emitter accumulates fractional
// emission across frames so low rates still emit.
type Emitter struct {
	Position  [3]float32
	Direction [3]float32
	// Rate is particles per second.
	Rate float32
	// Spread is the half-angle jitter applied to Direction, in radians.
	Spread float32
	// Speed is the initial velocity magnitude.
	Speed float32
	// LifeMin and LifeMax bound the per-particle lifetime in seconds.
	LifeMin float32
	LifeMax float32
	// SizeMin and SizeMax bound the per-particle quad half-extent.
	SizeMin float32
	SizeMax float32
	Color   [4]float32
	// Flags are the per-particle behavior bits (gravity, wind).
	Flags uint32

	accum float32
	seed  uint32
}

// System owns the particle pool, the emitters, and the per-frame staging
// buffer. Update runs the CPU reference simulation; the renderer dispatches
// the equivalent kernels against the GPU buffers and uses the System only for
// staging and uniform data.
type System interface {
	// Pool returns the CPU mirror of the particle buffers.
	Pool() *Pool
	// AddEmitter registers an emitter and returns it for later adjustment.
	AddEmitter(e Emitter) *Emitter
	// RemoveEmitter unregisters an emitter returned by AddEmitter.
	RemoveEmitter(e *Emitter)
	// Stage collects up to MaxEmitBatch particles from the emitters for this
	// frame and returns the staged slice. Overflow is dropped.
	Stage(dt float32) []GPUParticle
	// Update advances the CPU reference simulation one frame: stage, emit,
	// simulate, compact, build indirect.
	Update(dt float32)
	// SimUniform builds the simulate-kernel parameter block for this frame.
	SimUniform(dt float32) GPUParticleSimUniform
	// SetWind attaches a wind field sampler and its grid placement.
	SetWind(sampler WindSampler, gridMin [3]float32, gridSize, strength float32)
	// Shutdown releases the pool.
	Shutdown()
}

var _ System = &system{}

type system struct {
	pool     *Pool
	emitters []*Emitter
	staging  []GPUParticle

	drag     float32
	gravityY float32

	wind         WindSampler
	windGridMin  [3]float32
	windGridSize float32
	windStrength float32

	frameSeed uint32
}

func (s *system) Pool() *Pool {
	return s.pool
}

func (s *system) AddEmitter(e Emitter) *Emitter {
	em := e
	em.seed = s.frameSeed*2654435761 + uint32(len(s.emitters))*97
	s.emitters = append(s.emitters, &em)
	return &em
}

func (s *system) RemoveEmitter(e *Emitter) {
	for i, em := range s.emitters {
		if em == e {
			s.emitters = append(s.emitters[:i], s.emitters[i+1:]...)
			return
		}
	}
}

func (s *system) Stage(dt float32) []GPUParticle {
	s.staging = s.staging[:0]
	s.frameSeed++
	for _, em := range s.emitters {
		em.accum += em.Rate * dt
		n := int(em.accum)
		em.accum -= float32(n)
		for i := 0; i < n; i++ {
			if len(s.staging) >= MaxEmitBatch {
				return s.staging
			}
			s.staging = append(s.staging, s.spawn(em, uint32(i)))
		}
	}
	return s.staging
}

// spawn builds one staged particle: direction jittered inside the spread
// cone, lifetime and size drawn from the emitter's ranges.
func (s *system) spawn(em *Emitter, lane uint32) GPUParticle {
	em.seed = em.seed*1664525 + 1013904223
	seed := em.seed ^ s.frameSeed<<16 ^ lane

	dir := normalize3(em.Direction)
	if em.Spread > 0 {
		jitter := em.Spread
		dir = normalize3([3]float32{
			dir[0] + randomSpread(seed, 0)*jitter,
			dir[1] + randomSpread(seed, 1)*jitter,
			dir[2] + randomSpread(seed, 2)*jitter,
		})
	}

	life := em.LifeMin + (em.LifeMax-em.LifeMin)*unitRandom(seed, 3)
	size := em.SizeMin + (em.SizeMax-em.SizeMin)*unitRandom(seed, 4)
	return GPUParticle{
		Position: em.Position,
		Velocity: [3]float32{dir[0] * em.Speed, dir[1] * em.Speed, dir[2] * em.Speed},
		Life:     life,
		Color:    em.Color,
		QuadSize: size,
		Rotation: randomSpread(seed, 5) * math32.Pi,
		Flags:    em.Flags,
		Seed:     seed,
	}
}

func unitRandom(seed, lane uint32) float32 {
	return randomSpread(seed, lane)*0.5 + 0.5
}

func (s *system) Update(dt float32) {
	staged := s.Stage(dt)
	s.pool.Emit(staged)
	s.pool.Simulate(dt, s.SimUniform(dt), s.wind)
	s.pool.Compact()
	s.pool.BuildIndirect()
}

func (s *system) SimUniform(dt float32) GPUParticleSimUniform {
	u := GPUParticleSimUniform{
		Dt:           dt,
		Drag:         s.drag,
		GravityY:     s.gravityY,
		EmitCount:    float32(len(s.staging)),
		WindGridMin:  s.windGridMin,
		WindGridSize: s.windGridSize,
		WindStrength: s.windStrength,
		MaxParticles: uint32(s.pool.Capacity()),
	}
	if s.wind != nil {
		u.WindEnabled = 1
	}
	return u
}

func (s *system) SetWind(sampler WindSampler, gridMin [3]float32, gridSize, strength float32) {
	s.wind = sampler
	s.windGridMin = gridMin
	s.windGridSize = gridSize
	s.windStrength = strength
}

func (s *system) Shutdown() {
	s.pool.Shutdown()
	s.emitters = nil
	s.staging = nil
}
