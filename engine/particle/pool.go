package particle

import (
	"github.com/chewxy/math32"
)

// WindSampler supplies wind velocity at a world position for the simulation
// step. The environment package's wind system satisfies this.
type WindSampler interface {
	// WindAt returns the wind velocity at a world-space position.
	//
	// Parameters:
	//   - x, y, z: world-space position
	//
	// Returns:
	//   - [3]float32: wind velocity in world units per second
	WindAt(x, y, z float32) [3]float32
}

// Pool is the CPU mirror of the GPU particle buffers. It implements the same
// four phases as the compute kernels (emit, simulate, compact, build
// indirect) with identical free-list and counter semantics, and doubles as
// the upload source when the pool is (re)initialized.
type Pool struct {
	particles []GPUParticle
	freeList  []uint32
	aliveList []uint32
	counters  GPUParticleCounters
	indirect  GPUDrawIndirectArgs
}

// NewPool creates an initialized particle pool.
//
// Parameters:
//   - maxParticles: pool capacity (values < 1 use DefaultMaxParticles)
//
// Returns:
//   - *Pool: the pool with a full free list
func NewPool(maxParticles int) *Pool {
	p := &Pool{}
	p.Init(maxParticles)
	return p
}

// Init resets the pool: the free list holds every slot index [0, N),
// counters are {alive: 0, dead: N, emit: 0}, and the indirect draw arguments
// are zeroed except for the fixed six-index quad.
//
// Parameters:
//   - maxParticles: pool capacity (values < 1 use DefaultMaxParticles)
func (p *Pool) Init(maxParticles int) {
	if maxParticles < 1 {
		maxParticles = DefaultMaxParticles
	}
	p.particles = make([]GPUParticle, maxParticles)
	p.freeList = make([]uint32, maxParticles)
	for i := range p.freeList {
		p.freeList[i] = uint32(i)
	}
	p.aliveList = p.aliveList[:0]
	p.counters = GPUParticleCounters{Dead: uint32(maxParticles)}
	p.indirect = GPUDrawIndirectArgs{IndexCount: 6}
}

// Shutdown releases the pool storage. The GPU-side buffers are released by
// the owning system.
func (p *Pool) Shutdown() {
	p.particles = nil
	p.freeList = nil
	p.aliveList = nil
	p.counters = GPUParticleCounters{}
	p.indirect = GPUDrawIndirectArgs{}
}

// Capacity returns the pool size in slots.
func (p *Pool) Capacity() int {
	return len(p.particles)
}

// Counters returns a copy of the current counters.
func (p *Pool) Counters() GPUParticleCounters {
	return p.counters
}

// IndirectArgs returns a copy of the current indirect draw arguments.
func (p *Pool) IndirectArgs() GPUDrawIndirectArgs {
	return p.indirect
}

// AliveIndices returns the compacted alive-index list as of the last Compact.
func (p *Pool) AliveIndices() []uint32 {
	return p.aliveList
}

// Particle returns a copy of the pool slot at index.
func (p *Pool) Particle(index uint32) GPUParticle {
	return p.particles[index]
}

// Emit writes staged particles into free pool slots, mirroring the emit
// kernel: pop a free-list index per staged particle, mark it alive, bump the
// emit counter. Staged particles beyond the free-list size are dropped.
//
// Parameters:
//   - staged: the particles produced by the CPU this frame
//
// Returns:
//   - int: the number of particles actually emitted
func (p *Pool) Emit(staged []GPUParticle) int {
	emitted := 0
	for _, sp := range staged {
		if len(p.freeList) == 0 {
			break
		}
		idx := p.freeList[len(p.freeList)-1]
		p.freeList = p.freeList[:len(p.freeList)-1]

		sp.Age = 0
		sp.Flags |= ParticleFlagAlive
		p.particles[idx] = sp

		p.counters.Emit++
		p.counters.Dead--
		p.counters.Alive++
		emitted++
	}
	return emitted
}

// Simulate advances every alive particle by dt, mirroring the simulate
// kernel: integrate velocity, gravity, and drag, sample wind inside the grid
// AABB, age the particle, and recycle expired slots into the free list.
//
// Parameters:
//   - dt: frame time in seconds
//   - uniform: the simulation parameters
//   - wind: optional wind field sampler (nil disables wind)
func (p *Pool) Simulate(dt float32, uniform GPUParticleSimUniform, wind WindSampler) {
	for i := range p.particles {
		pt := &p.particles[i]
		if pt.Flags&ParticleFlagAlive == 0 {
			continue
		}

		if pt.Flags&ParticleFlagGravity != 0 {
			pt.Velocity[1] += uniform.GravityY * dt
		}
		if wind != nil && uniform.WindEnabled > 0 && pt.Flags&ParticleFlagWind != 0 {
			if insideWindGrid(pt.Position, uniform) {
				w := wind.WindAt(pt.Position[0], pt.Position[1], pt.Position[2])
				pt.Velocity[0] += w[0] * uniform.WindStrength * dt
				pt.Velocity[1] += w[1] * uniform.WindStrength * dt
				pt.Velocity[2] += w[2] * uniform.WindStrength * dt
			}
		}

		damp := 1 - uniform.Drag*dt
		if damp < 0 {
			damp = 0
		}
		pt.Velocity[0] *= damp
		pt.Velocity[1] *= damp
		pt.Velocity[2] *= damp

		pt.Position[0] += pt.Velocity[0] * dt
		pt.Position[1] += pt.Velocity[1] * dt
		pt.Position[2] += pt.Velocity[2] * dt

		pt.Age += dt
		if pt.Age > pt.Life {
			pt.Flags &^= ParticleFlagAlive
			p.freeList = append(p.freeList, uint32(i))
			p.counters.Alive--
			p.counters.Dead++
		}
	}
}

func insideWindGrid(pos [3]float32, u GPUParticleSimUniform) bool {
	for a := 0; a < 3; a++ {
		if pos[a] < u.WindGridMin[a] || pos[a] > u.WindGridMin[a]+u.WindGridSize {
			return false
		}
	}
	return true
}

// Compact rebuilds the alive-index list from the pool, recomputes the alive
// and dead counters, and clears the emit counter, mirroring the compact
// kernel.
func (p *Pool) Compact() {
	p.aliveList = p.aliveList[:0]
	for i := range p.particles {
		if p.particles[i].Flags&ParticleFlagAlive != 0 {
			p.aliveList = append(p.aliveList, uint32(i))
		}
	}
	p.counters.Alive = uint32(len(p.aliveList))
	p.counters.Dead = uint32(len(p.particles)) - p.counters.Alive
	p.counters.Emit = 0
}

// BuildIndirect refreshes the indirect draw arguments from the alive
// counter, mirroring the build-indirect kernel.
func (p *Pool) BuildIndirect() {
	p.indirect = GPUDrawIndirectArgs{
		IndexCount:    6,
		InstanceCount: p.counters.Alive,
	}
}

// randomSpread returns a deterministic pseudo-random offset in [-1, 1] for a
// seed and lane, used by the emission presets.
func randomSpread(seed uint32, lane uint32) float32 {
	h := seed*747796405 + lane*2891336453
	h = ((h >> ((h >> 28) + 4)) ^ h) * 277803737
	h = (h >> 22) ^ h
	return float32(h)/2147483648.0 - 1.0
}

// normalize3 returns v scaled to unit length, or +Y when degenerate.
func normalize3(v [3]float32) [3]float32 {
	l := math32.Sqrt(v[0]*v[0] + v[1]*v[1] + v[2]*v[2])
	if l < 1e-6 {
		return [3]float32{0, 1, 0}
	}
	return [3]float32{v[0] / l, v[1] / l, v[2] / l}
}
