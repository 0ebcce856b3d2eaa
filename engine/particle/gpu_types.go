package particle

import (
	_ "embed"
	"encoding/binary"
	"math"
	"unsafe"
)

// DefaultMaxParticles is the default particle pool capacity.
const DefaultMaxParticles = 65536

// MaxEmitBatch is the most particles the CPU can stage for the emit kernel in
// one frame; further emissions that frame are dropped.
const MaxEmitBatch = 256

// Bind group slots shared by the particle kernels and the draw shader.
const (
	// ParticlePoolBinding is the main particle SSBO slot.
	ParticlePoolBinding = 11
	// FreeListBinding is the free-slot index stack SSBO slot.
	FreeListBinding = 12
	// AliveListBinding is the compacted alive-index SSBO slot.
	AliveListBinding = 13
	// CountersBinding is the atomic counters SSBO slot.
	CountersBinding = 14
)

// GPUParticleSource is the canonical WGSL definition of the Particle struct.
// Matches GPUParticle layout exactly (64 bytes, std430 aligned).
//
//go:embed assets/particle.wgsl
var GPUParticleSource string

// GPUEmitKernelSource pops free slots and writes staged particles into the
// pool, one thread per staging slot.
//
//go:embed assets/emit.wgsl
var GPUEmitKernelSource string

// GPUSimulateKernelSource integrates alive particles, one thread per pool
// slot, recycling dead slots into the free list.
//
//go:embed assets/simulate.wgsl
var GPUSimulateKernelSource string

// GPUCompactKernelSource rebuilds the alive-index list and counters.
//
//go:embed assets/compact.wgsl
var GPUCompactKernelSource string

// GPUBuildIndirectKernelSource writes the indirect draw arguments from the
// alive counter.
//
//go:embed assets/build_indirect.wgsl
var GPUBuildIndirectKernelSource string

// GPUBillboardShaderSource renders the alive particles as camera-facing soft
// quads. Needs the CameraUniform and Particle definitions prepended; entry
// points vs_main and fs_main.
//
//go:embed assets/billboard.wgsl
var GPUBillboardShaderSource string

// ParticleWorkgroupSize is the workgroup width shared by the particle
// kernels; dispatch ceil(n / ParticleWorkgroupSize) groups.
const ParticleWorkgroupSize = 64

// GPUParticle is the GPU-aligned representation of one particle pool slot.
// Matches the WGSL Particle struct layout exactly (see GPUParticleSource).
// Size: 64 bytes (std430 aligned).
type GPUParticle struct {
	Position [3]float32 // offset  0: world-space position
	Age      float32    // offset 12: seconds since emission
	Velocity [3]float32 // offset 16: world-space velocity
	Life     float32    // offset 28: lifetime in seconds; age > life means dead
	Color    [4]float32 // offset 32: RGBA tint
	QuadSize float32    // offset 48: world-space quad half-extent
	Rotation float32    // offset 52: billboard rotation in radians
	Flags    uint32     // offset 56: bit 0 = alive, bit 1 = gravity, bit 2 = wind
	Seed     uint32     // offset 60: per-particle random seed
}

// Particle flag bits.
const (
	ParticleFlagAlive   uint32 = 1 << 0
	ParticleFlagGravity uint32 = 1 << 1
	ParticleFlagWind    uint32 = 1 << 2
)

// Size returns the size of the GPUParticle struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (64)
func (p *GPUParticle) Size() int {
	return int(unsafe.Sizeof(*p))
}

// Marshal serializes the GPUParticle struct into a byte buffer suitable for
// GPU upload.
//
// Returns:
//   - []byte: 64-byte buffer ready for GPU upload
func (p *GPUParticle) Marshal() []byte {
	buf := make([]byte, 64)
	off := 0
	putF32 := func(v float32) {
		binary.LittleEndian.PutUint32(buf[off:off+4], math.Float32bits(v))
		off += 4
	}
	putF32(p.Position[0])
	putF32(p.Position[1])
	putF32(p.Position[2])
	putF32(p.Age)
	putF32(p.Velocity[0])
	putF32(p.Velocity[1])
	putF32(p.Velocity[2])
	putF32(p.Life)
	putF32(p.Color[0])
	putF32(p.Color[1])
	putF32(p.Color[2])
	putF32(p.Color[3])
	putF32(p.QuadSize)
	putF32(p.Rotation)
	binary.LittleEndian.PutUint32(buf[56:60], p.Flags)
	binary.LittleEndian.PutUint32(buf[60:64], p.Seed)
	return buf
}

// GPUParticleCounters mirrors the atomic counters SSBO.
// Size: 16 bytes.
type GPUParticleCounters struct {
	Alive uint32 // offset  0: particles currently alive
	Dead  uint32 // offset  4: free slots available
	Emit  uint32 // offset  8: particles emitted since the last compact
	_pad  uint32 // offset 12
}

// Size returns the size of the GPUParticleCounters struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (16)
func (c *GPUParticleCounters) Size() int {
	return int(unsafe.Sizeof(*c))
}

// Marshal serializes the counters into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: 16-byte buffer ready for GPU upload
func (c *GPUParticleCounters) Marshal() []byte {
	buf := make([]byte, 16)
	binary.LittleEndian.PutUint32(buf[0:4], c.Alive)
	binary.LittleEndian.PutUint32(buf[4:8], c.Dead)
	binary.LittleEndian.PutUint32(buf[8:12], c.Emit)
	return buf
}

// GPUDrawIndirectArgs mirrors the indexed indirect draw argument buffer the
// build-indirect kernel writes: six indices (a camera-facing quad) per alive
// particle instance. Size: 20 bytes.
type GPUDrawIndirectArgs struct {
	IndexCount    uint32 // always 6
	InstanceCount uint32 // alive particle count
	FirstIndex    uint32
	BaseVertex    uint32
	BaseInstance  uint32
}

// Size returns the size of the GPUDrawIndirectArgs struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (20)
func (a *GPUDrawIndirectArgs) Size() int {
	return int(unsafe.Sizeof(*a))
}

// Marshal serializes the indirect arguments into a byte buffer suitable for
// GPU upload.
//
// Returns:
//   - []byte: 20-byte buffer ready for GPU upload
func (a *GPUDrawIndirectArgs) Marshal() []byte {
	buf := make([]byte, 20)
	binary.LittleEndian.PutUint32(buf[0:4], a.IndexCount)
	binary.LittleEndian.PutUint32(buf[4:8], a.InstanceCount)
	binary.LittleEndian.PutUint32(buf[8:12], a.FirstIndex)
	binary.LittleEndian.PutUint32(buf[12:16], a.BaseVertex)
	binary.LittleEndian.PutUint32(buf[16:20], a.BaseInstance)
	return buf
}

// GPUParticleSimUniformSource is the canonical WGSL definition of the
// SimUniform struct. Matches GPUParticleSimUniform layout exactly (64 bytes).
//
//go:embed assets/sim_uniform.wgsl
var GPUParticleSimUniformSource string

// GPUParticleSimUniform is the parameter block for the simulate kernel.
// Matches the WGSL SimUniform struct layout exactly (see
// GPUParticleSimUniformSource). Size: 64 bytes.
//
// Layout:
//
//	vec4<f32> step      (16 bytes, offset  0)  x=dt y=drag z=gravity_y w=emit_count
//	vec4<f32> wind_min  (16 bytes, offset 16)  xyz=wind grid min, w=wind_enabled
//	vec4<f32> wind_size (16 bytes, offset 32)  x=grid world size y=wind_strength
//	vec4<u32> counts    (16 bytes, offset 48)  x=max_particles
type GPUParticleSimUniform struct {
	Dt           float32
	Drag         float32
	GravityY     float32
	EmitCount    float32
	WindGridMin  [3]float32
	WindEnabled  float32
	WindGridSize float32
	WindStrength float32
	_pad0        [2]float32
	MaxParticles uint32
	_pad1        [3]uint32
}

// Size returns the size of the GPUParticleSimUniform struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (64)
func (u *GPUParticleSimUniform) Size() int {
	return int(unsafe.Sizeof(*u))
}

// Marshal serializes the uniform into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: 64-byte buffer ready for GPU upload
func (u *GPUParticleSimUniform) Marshal() []byte {
	buf := make([]byte, 64)
	off := 0
	putF32 := func(v float32) {
		binary.LittleEndian.PutUint32(buf[off:off+4], math.Float32bits(v))
		off += 4
	}
	putF32(u.Dt)
	putF32(u.Drag)
	putF32(u.GravityY)
	putF32(u.EmitCount)
	putF32(u.WindGridMin[0])
	putF32(u.WindGridMin[1])
	putF32(u.WindGridMin[2])
	putF32(u.WindEnabled)
	putF32(u.WindGridSize)
	putF32(u.WindStrength)
	putF32(0)
	putF32(0)
	binary.LittleEndian.PutUint32(buf[48:52], u.MaxParticles)
	return buf
}
