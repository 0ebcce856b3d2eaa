package particle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stagedParticle(life float32) GPUParticle {
	return GPUParticle{
		Velocity: [3]float32{0, 1, 0},
		Life:     life,
		Color:    [4]float32{1, 1, 1, 1},
		QuadSize: 0.1,
	}
}

// assertPoolInvariants checks the free-list bookkeeping the kernels rely on:
// alive + dead always equals capacity and no slot index appears twice.
func assertPoolInvariants(t *testing.T, p *Pool) {
	t.Helper()
	c := p.Counters()
	assert.Equal(t, uint32(p.Capacity()), c.Alive+c.Dead)
	assert.Equal(t, int(c.Dead), len(p.freeList))

	seen := make(map[uint32]bool, len(p.freeList))
	for _, idx := range p.freeList {
		require.Less(t, idx, uint32(p.Capacity()))
		require.False(t, seen[idx], "slot %d appears twice in the free list", idx)
		seen[idx] = true
	}
	for _, idx := range p.freeList {
		assert.Zero(t, p.Particle(idx).Flags&ParticleFlagAlive,
			"free slot %d still flagged alive", idx)
	}
}

func TestPoolInitFillsFreeList(t *testing.T) {
	p := NewPool(128)

	c := p.Counters()
	assert.Equal(t, uint32(0), c.Alive)
	assert.Equal(t, uint32(128), c.Dead)
	assert.Equal(t, uint32(0), c.Emit)

	require.Len(t, p.freeList, 128)
	for i, idx := range p.freeList {
		assert.Equal(t, uint32(i), idx)
	}

	ind := p.IndirectArgs()
	assert.Equal(t, uint32(6), ind.IndexCount)
	assert.Equal(t, uint32(0), ind.InstanceCount)
}

func TestPoolEmitPopsFreeSlots(t *testing.T) {
	p := NewPool(8)

	staged := []GPUParticle{stagedParticle(1), stagedParticle(2), stagedParticle(3)}
	emitted := p.Emit(staged)
	assert.Equal(t, 3, emitted)

	c := p.Counters()
	assert.Equal(t, uint32(3), c.Alive)
	assert.Equal(t, uint32(5), c.Dead)
	assert.Equal(t, uint32(3), c.Emit)
	assertPoolInvariants(t, p)

	// Emitted particles start at age zero with the alive flag set.
	pt := p.Particle(7)
	assert.Equal(t, float32(0), pt.Age)
	assert.NotZero(t, pt.Flags&ParticleFlagAlive)
}

func TestPoolEmitDropsWhenFull(t *testing.T) {
	p := NewPool(4)

	staged := make([]GPUParticle, 10)
	for i := range staged {
		staged[i] = stagedParticle(1)
	}
	emitted := p.Emit(staged)
	assert.Equal(t, 4, emitted)

	c := p.Counters()
	assert.Equal(t, uint32(4), c.Alive)
	assert.Equal(t, uint32(0), c.Dead)
	assertPoolInvariants(t, p)
}

func TestPoolSimulateRecyclesExpiredSlots(t *testing.T) {
	p := NewPool(16)
	p.Emit([]GPUParticle{stagedParticle(0.5), stagedParticle(5)})

	u := GPUParticleSimUniform{Dt: 1, MaxParticles: 16}
	p.Simulate(1, u, nil)

	// The half-second particle died and its slot returned to the free list.
	c := p.Counters()
	assert.Equal(t, uint32(1), c.Alive)
	assert.Equal(t, uint32(15), c.Dead)
	assertPoolInvariants(t, p)
}

func TestPoolSimulateIntegratesGravityAndDrag(t *testing.T) {
	p := NewPool(4)
	sp := stagedParticle(10)
	sp.Velocity = [3]float32{2, 0, 0}
	sp.Flags = ParticleFlagGravity
	p.Emit([]GPUParticle{sp})

	u := GPUParticleSimUniform{Dt: 0.5, Drag: 0.2, GravityY: -10, MaxParticles: 4}
	p.Simulate(0.5, u, nil)

	pt := p.Particle(3)
	// Gravity then drag: vy = -10*0.5 = -5, damped by 1-0.2*0.5 = 0.9.
	assert.InDelta(t, -4.5, pt.Velocity[1], 1e-5)
	assert.InDelta(t, 1.8, pt.Velocity[0], 1e-5)
	assert.InDelta(t, 0.9, pt.Position[0], 1e-5)
	assert.InDelta(t, 0.5, pt.Age, 1e-6)
}

type constantWind struct{ v [3]float32 }

func (w constantWind) WindAt(x, y, z float32) [3]float32 { return w.v }

func TestPoolSimulateAppliesWindInsideGridOnly(t *testing.T) {
	p := NewPool(4)

	inside := stagedParticle(10)
	inside.Flags = ParticleFlagWind
	outside := stagedParticle(10)
	outside.Flags = ParticleFlagWind
	outside.Position = [3]float32{500, 0, 0}
	p.Emit([]GPUParticle{inside, outside})

	u := GPUParticleSimUniform{
		Dt:           1,
		WindGridMin:  [3]float32{-64, -64, -64},
		WindEnabled:  1,
		WindGridSize: 128,
		WindStrength: 1,
		MaxParticles: 4,
	}
	p.Simulate(1, u, constantWind{[3]float32{3, 0, 0}})

	// Slots pop from the back of the free list: inside landed in 3, outside in 2.
	assert.InDelta(t, 3.0, p.Particle(3).Velocity[0], 1e-5)
	assert.InDelta(t, 0.0, p.Particle(2).Velocity[0], 1e-5)
}

func TestPoolCompactRebuildsAliveList(t *testing.T) {
	p := NewPool(16)
	p.Emit([]GPUParticle{stagedParticle(0.5), stagedParticle(5), stagedParticle(5)})
	p.Simulate(1, GPUParticleSimUniform{Dt: 1, MaxParticles: 16}, nil)
	p.Compact()

	assert.Len(t, p.AliveIndices(), 2)
	c := p.Counters()
	assert.Equal(t, uint32(2), c.Alive)
	assert.Equal(t, uint32(14), c.Dead)
	assert.Equal(t, uint32(0), c.Emit, "compact clears the emit counter")

	p.BuildIndirect()
	ind := p.IndirectArgs()
	assert.Equal(t, uint32(6), ind.IndexCount)
	assert.Equal(t, uint32(2), ind.InstanceCount)
}

func TestPoolChurnPreservesFreeListInvariants(t *testing.T) {
	s := NewSystem(WithMaxParticles(256))
	defer s.Shutdown()
	s.AddEmitter(Emitter{
		Direction: [3]float32{0, 1, 0},
		Rate:      400,
		Speed:     1,
		LifeMin:   0.05,
		LifeMax:   0.2,
		SizeMin:   0.1,
		SizeMax:   0.1,
	})

	pool := s.Pool()
	for frame := 0; frame < 120; frame++ {
		s.Update(1.0 / 60.0)
		assertPoolInvariants(t, pool)
	}

	// The pool churned through far more particles than its capacity.
	c := pool.Counters()
	assert.Greater(t, c.Alive, uint32(0))
	assert.Less(t, c.Alive, uint32(256))
}

func TestSystemStageCapsAtEmitBatch(t *testing.T) {
	s := NewSystem(WithMaxParticles(DefaultMaxParticles))
	defer s.Shutdown()
	s.AddEmitter(SnowfallEmitter([3]float32{0, 50, 0}, 100000))

	staged := s.Stage(1)
	assert.Len(t, staged, MaxEmitBatch)
}

func TestSystemStageAccumulatesFractionalRate(t *testing.T) {
	s := NewSystem()
	defer s.Shutdown()
	s.AddEmitter(Emitter{Direction: [3]float32{0, 1, 0}, Rate: 10, LifeMin: 1, LifeMax: 1})

	// 10/s at 60 fps emits one particle every sixth frame.
	total := 0
	for i := 0; i < 60; i++ {
		total += len(s.Stage(1.0 / 60.0))
	}
	assert.Equal(t, 10, total)
}

func TestSystemSimUniformReflectsWind(t *testing.T) {
	s := NewSystem(WithDrag(0.3), WithGravity(-5))
	defer s.Shutdown()

	u := s.SimUniform(0.016)
	assert.Equal(t, float32(0), u.WindEnabled)
	assert.Equal(t, float32(0.3), u.Drag)
	assert.Equal(t, float32(-5), u.GravityY)

	s.SetWind(constantWind{}, [3]float32{-64, 0, -64}, 128, 2)
	u = s.SimUniform(0.016)
	assert.Equal(t, float32(1), u.WindEnabled)
	assert.Equal(t, float32(128), u.WindGridSize)
	assert.Equal(t, float32(2), u.WindStrength)
	assert.Equal(t, uint32(DefaultMaxParticles), u.MaxParticles)
}

func TestGPUParticleMarshalLayout(t *testing.T) {
	p := GPUParticle{
		Position: [3]float32{1, 2, 3},
		Age:      0.5,
		Life:     4,
		Flags:    ParticleFlagAlive | ParticleFlagWind,
		Seed:     42,
	}
	require.Equal(t, 64, p.Size())

	buf := p.Marshal()
	require.Len(t, buf, 64)
	assert.Equal(t, uint32(0x3f800000), leU32(buf[0:4]))    // position.x = 1.0
	assert.Equal(t, ParticleFlagAlive|ParticleFlagWind, leU32(buf[56:60]))
	assert.Equal(t, uint32(42), leU32(buf[60:64]))
}

func TestSimUniformMarshalLayout(t *testing.T) {
	u := GPUParticleSimUniform{Dt: 1, MaxParticles: 4096}
	require.Equal(t, 64, u.Size())

	buf := u.Marshal()
	require.Len(t, buf, 64)
	assert.Equal(t, uint32(0x3f800000), leU32(buf[0:4]))
	assert.Equal(t, uint32(4096), leU32(buf[48:52]))
}

func leU32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}
