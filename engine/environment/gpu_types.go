package environment

import (
	_ "embed"
	"encoding/binary"
	"math"
	"unsafe"
)

// WindGridResolution is the edge length of the 3D wind texture in texels.
const WindGridResolution = 128

// WindWorkgroupSize is the per-axis workgroup width of the wind generation
// kernel; dispatch ceil(WindGridResolution / WindWorkgroupSize) groups per
// axis.
const WindWorkgroupSize = 8

// SnowDepthResolution is the edge length of the snow depth texture in texels.
const SnowDepthResolution = 2048

// SnowClipmapRings is the number of camera-centered snow clipmap rings.
// Ring i covers extent baseExtent * 2^i.
const SnowClipmapRings = 3

// SnowWorkgroupSize is the per-axis workgroup width of the snow kernels.
const SnowWorkgroupSize = 8

// MaxSnowDeformers is the deformer stamp SSBO capacity; stamps submitted
// beyond this in one frame are dropped.
const MaxSnowDeformers = 64

// Bind group slots for the volumetric systems.
const (
	// SnowDeformerBinding is the deformer stamp SSBO slot.
	SnowDeformerBinding = 7
	// SnowParamsBinding is the snow appearance uniform slot.
	SnowParamsBinding = 13
	// WindUniformBinding is the wind parameter uniform slot.
	WindUniformBinding = 15
	// SnowUniformBinding is the snow accumulation uniform slot.
	SnowUniformBinding = 16
)

// GPUWindUniformSource is the canonical WGSL definition of the WindUniform
// struct. Matches GPUWindUniform layout exactly (64 bytes).
//
//go:embed assets/wind_uniform.wgsl
var GPUWindUniformSource string

// GPUWindGenerateKernelSource fills the 3D wind texture from the analytical
// wind model, one thread per texel.
//
//go:embed assets/wind_generate.wgsl
var GPUWindGenerateKernelSource string

// GPUSnowUniformSource is the canonical WGSL definition of the snow
// accumulation uniform. Matches GPUSnowAccumulationUniform layout exactly
// (320 bytes).
//
//go:embed assets/snow_uniform.wgsl
var GPUSnowUniformSource string

// GPUSnowParamsSource is the canonical WGSL definition of the snow
// appearance uniform sampled by the PBR and terrain shaders (80 bytes).
//
//go:embed assets/snow_params.wgsl
var GPUSnowParamsSource string

// GPUSnowAccumulateKernelSource integrates snow growth, melt, and
// restoration at each depth texel.
//
//go:embed assets/snow_accumulate.wgsl
var GPUSnowAccumulateKernelSource string

// GPUSnowDeformKernelSource compresses snow around each submitted deformer
// stamp.
//
//go:embed assets/snow_deform.wgsl
var GPUSnowDeformKernelSource string

// GPUSnowClearKernelSource zeroes the snow depth texture.
//
//go:embed assets/snow_clear.wgsl
var GPUSnowClearKernelSource string

// GPUWindUniform is the parameter block for the wind generation kernel and
// the wind samplers. Matches the WGSL WindUniform struct layout exactly (see
// GPUWindUniformSource). Size: 64 bytes.
type GPUWindUniform struct {
	Direction      [3]float32 // offset  0: normalized wind direction
	Speed          float32    // offset 12: base speed in units per second
	GustStrength   float32    // offset 16
	GustFrequency  float32    // offset 20
	TurbIntensity  float32    // offset 24
	TurbScale      float32    // offset 28
	GridMin        [3]float32 // offset 32: AABB min corner, camera centered
	GridWorldSize  float32    // offset 44: AABB edge length
	Time           float32    // offset 48: elapsed seconds
	Enabled        float32    // offset 52: 1 when the field updates
	GridResolution float32    // offset 56
	_pad           float32    // offset 60
}

// Size returns the size of the GPUWindUniform struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (64)
func (u *GPUWindUniform) Size() int {
	return int(unsafe.Sizeof(*u))
}

// Marshal serializes the uniform into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: 64-byte buffer ready for GPU upload
func (u *GPUWindUniform) Marshal() []byte {
	buf := make([]byte, 64)
	off := 0
	putF32 := func(v float32) {
		binary.LittleEndian.PutUint32(buf[off:off+4], math.Float32bits(v))
		off += 4
	}
	putF32(u.Direction[0])
	putF32(u.Direction[1])
	putF32(u.Direction[2])
	putF32(u.Speed)
	putF32(u.GustStrength)
	putF32(u.GustFrequency)
	putF32(u.TurbIntensity)
	putF32(u.TurbScale)
	putF32(u.GridMin[0])
	putF32(u.GridMin[1])
	putF32(u.GridMin[2])
	putF32(u.GridWorldSize)
	putF32(u.Time)
	putF32(u.Enabled)
	putF32(u.GridResolution)
	return buf
}

// GPUSnowDeformer is one deformer stamp in the SSBO at SnowDeformerBinding.
// Size: 32 bytes (std430 aligned).
type GPUSnowDeformer struct {
	Position   [3]float32 // offset  0: world-space stamp center
	Radius     float32    // offset 12: stamp radius in world units
	Depth      float32    // offset 16: compression depth in snow units
	Falloff    float32    // offset 20: 0 = hard edge, 1 = smooth
	Compaction float32    // offset 24: fraction of displaced snow kept as a rim
	_pad       float32    // offset 28
}

// Size returns the size of the GPUSnowDeformer struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (32)
func (d *GPUSnowDeformer) Size() int {
	return int(unsafe.Sizeof(*d))
}

// MarshalSnowDeformers serializes stamps into the fixed-capacity SSBO image.
// Stamps beyond MaxSnowDeformers are ignored.
//
// Parameters:
//   - stamps: the deformer stamps submitted this frame
//
// Returns:
//   - []byte: MaxSnowDeformers*32-byte buffer ready for GPU upload
func MarshalSnowDeformers(stamps []GPUSnowDeformer) []byte {
	buf := make([]byte, MaxSnowDeformers*32)
	n := len(stamps)
	if n > MaxSnowDeformers {
		n = MaxSnowDeformers
	}
	for i := 0; i < n; i++ {
		d := &stamps[i]
		off := i * 32
		putF32 := func(slot int, v float32) {
			binary.LittleEndian.PutUint32(buf[off+slot*4:off+slot*4+4], math.Float32bits(v))
		}
		putF32(0, d.Position[0])
		putF32(1, d.Position[1])
		putF32(2, d.Position[2])
		putF32(3, d.Radius)
		putF32(4, d.Depth)
		putF32(5, d.Falloff)
		putF32(6, d.Compaction)
	}
	return buf
}

// GPUSnowAccumulationUniform is the parameter block for the snow kernels and
// the clipmap samplers. Matches the WGSL SnowUniform struct layout exactly
// (see GPUSnowUniformSource). Size: 320 bytes.
//
// Layout:
//
//	mat4x4<f32> ring_vp[3]            (192 bytes, offset   0)
//	vec4<f32> ring_center_extent[3]   ( 48 bytes, offset 192)  xy=center, z=extent, w=texel size
//	vec4<f32> rates                   ( 16 bytes, offset 240)  accumulation, melt, restoration, density
//	vec4<f32> params                  ( 16 bytes, offset 256)  enabled, ring count, time, deformer count
//	vec4<f32> reserved[3]             ( 48 bytes, offset 272)
type GPUSnowAccumulationUniform struct {
	RingVP           [SnowClipmapRings][16]float32
	RingCenterExtent [SnowClipmapRings][4]float32
	AccumulationRate float32
	MeltRate         float32
	RestorationRate  float32
	SnowDensity      float32
	Enabled          float32
	RingCount        float32
	Time             float32
	DeformerCount    float32
	_reserved        [12]float32
}

// Size returns the size of the GPUSnowAccumulationUniform struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (320)
func (u *GPUSnowAccumulationUniform) Size() int {
	return int(unsafe.Sizeof(*u))
}

// Marshal serializes the uniform into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: 320-byte buffer ready for GPU upload
func (u *GPUSnowAccumulationUniform) Marshal() []byte {
	buf := make([]byte, 320)
	off := 0
	putF32 := func(v float32) {
		binary.LittleEndian.PutUint32(buf[off:off+4], math.Float32bits(v))
		off += 4
	}
	for r := 0; r < SnowClipmapRings; r++ {
		for i := 0; i < 16; i++ {
			putF32(u.RingVP[r][i])
		}
	}
	for r := 0; r < SnowClipmapRings; r++ {
		for i := 0; i < 4; i++ {
			putF32(u.RingCenterExtent[r][i])
		}
	}
	putF32(u.AccumulationRate)
	putF32(u.MeltRate)
	putF32(u.RestorationRate)
	putF32(u.SnowDensity)
	putF32(u.Enabled)
	putF32(u.RingCount)
	putF32(u.Time)
	putF32(u.DeformerCount)
	return buf
}

// GPUSnowParams is the snow appearance block sampled by the PBR and terrain
// shaders. Size: 80 bytes.
type GPUSnowParams struct {
	SnowColor      [3]float32 // offset  0
	CoverageScale  float32    // offset 12: global snow coverage multiplier
	Roughness      float32    // offset 16
	NormalStrength float32    // offset 20: sparkle normal perturbation
	HeightScale    float32    // offset 24: displacement scale for tessellation
	SlopeCutoff    float32    // offset 28: cos of the steepest snow-holding slope
	UVScale        float32    // offset 32: detail noise tiling
	SSSStrength    float32    // offset 36: subsurface scattering weight
	_pad0          [2]float32 // offset 40
	_reserved      [8]float32 // offset 48
}

// Size returns the size of the GPUSnowParams struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (80)
func (p *GPUSnowParams) Size() int {
	return int(unsafe.Sizeof(*p))
}

// Marshal serializes the params into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: 80-byte buffer ready for GPU upload
func (p *GPUSnowParams) Marshal() []byte {
	buf := make([]byte, 80)
	off := 0
	putF32 := func(v float32) {
		binary.LittleEndian.PutUint32(buf[off:off+4], math.Float32bits(v))
		off += 4
	}
	putF32(p.SnowColor[0])
	putF32(p.SnowColor[1])
	putF32(p.SnowColor[2])
	putF32(p.CoverageScale)
	putF32(p.Roughness)
	putF32(p.NormalStrength)
	putF32(p.HeightScale)
	putF32(p.SlopeCutoff)
	putF32(p.UVScale)
	putF32(p.SSSStrength)
	return buf
}
