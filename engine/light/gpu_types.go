package light

import (
	_ "embed"
	"encoding/binary"
	"math"
	"unsafe"

	"github.com/chewxy/math32"
)

// MaxUBOLights is the number of light slots in the per-frame light uniform
// buffer. The CPU-side light list is unbounded; when more lights are enabled
// than fit, the scene sorts by priority and the rest are dropped for the frame.
const MaxUBOLights = 32

// LightBufferBinding is the bind group slot of the light uniform buffer.
const LightBufferBinding = 5

// ShadowUniformBinding is the bind group slot of the shadow uniform buffer.
const ShadowUniformBinding = 6

// GPULightDataSource is the canonical WGSL definition of the LightData struct.
// Matches GPULightData layout exactly (80 bytes, std140 aligned).
//
//go:embed assets/light_data.wgsl
var GPULightDataSource string

// GPULightData is the GPU-aligned representation of a single light source.
// Matches the WGSL LightData struct layout exactly (see GPULightDataSource).
// Size: 80 bytes (std140 / WGSL aligned).
type GPULightData struct {
	Position       [3]float32 // offset  0: world-space position (point/spot) or unused (directional)
	LightType      uint32     // offset 12: 0 = directional, 1 = point, 2 = spot
	Color          [3]float32 // offset 16: RGB color
	Intensity      float32    // offset 28: scalar multiplier
	Direction      [3]float32 // offset 32: normalized direction (directional/spot) or unused (point)
	LightRange     float32    // offset 44: attenuation cutoff distance
	InnerCone      float32    // offset 48: cos(inner half-angle) for spot
	OuterCone      float32    // offset 52: cos(outer half-angle) for spot
	CastsShadows   uint32     // offset 56: 1 = casts shadows, 0 = does not
	ShadowMapIndex uint32     // offset 60: spot layer or point cube slot, or 0xFFFFFFFF
	SourceRadius   float32    // offset 64: emitter radius for soft specular highlights
	_pad           [3]uint32  // offset 68: padding to 80-byte stride
}

// NoShadowMap is the ShadowMapIndex value for lights without a shadow map slot.
const NoShadowMap uint32 = 0xFFFFFFFF

// Size returns the size of the GPULightData struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (80)
func (g *GPULightData) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the GPULightData struct into a byte buffer suitable for
// GPU upload.
//
// Returns:
//   - []byte: 80-byte buffer ready for GPU upload
func (g *GPULightData) Marshal() []byte {
	buf := make([]byte, 80)
	binary.LittleEndian.PutUint32(buf[0:4], math.Float32bits(g.Position[0]))
	binary.LittleEndian.PutUint32(buf[4:8], math.Float32bits(g.Position[1]))
	binary.LittleEndian.PutUint32(buf[8:12], math.Float32bits(g.Position[2]))
	binary.LittleEndian.PutUint32(buf[12:16], g.LightType)
	binary.LittleEndian.PutUint32(buf[16:20], math.Float32bits(g.Color[0]))
	binary.LittleEndian.PutUint32(buf[20:24], math.Float32bits(g.Color[1]))
	binary.LittleEndian.PutUint32(buf[24:28], math.Float32bits(g.Color[2]))
	binary.LittleEndian.PutUint32(buf[28:32], math.Float32bits(g.Intensity))
	binary.LittleEndian.PutUint32(buf[32:36], math.Float32bits(g.Direction[0]))
	binary.LittleEndian.PutUint32(buf[36:40], math.Float32bits(g.Direction[1]))
	binary.LittleEndian.PutUint32(buf[40:44], math.Float32bits(g.Direction[2]))
	binary.LittleEndian.PutUint32(buf[44:48], math.Float32bits(g.LightRange))
	binary.LittleEndian.PutUint32(buf[48:52], math.Float32bits(g.InnerCone))
	binary.LittleEndian.PutUint32(buf[52:56], math.Float32bits(g.OuterCone))
	binary.LittleEndian.PutUint32(buf[56:60], g.CastsShadows)
	binary.LittleEndian.PutUint32(buf[60:64], g.ShadowMapIndex)
	binary.LittleEndian.PutUint32(buf[64:68], math.Float32bits(g.SourceRadius))
	binary.LittleEndian.PutUint32(buf[68:72], 0)
	binary.LittleEndian.PutUint32(buf[72:76], 0)
	binary.LittleEndian.PutUint32(buf[76:80], 0)
	return buf
}

// GPULightHeaderSource is the canonical WGSL definition of the LightHeader
// struct. Matches GPULightHeader layout exactly (48 bytes, std140 aligned).
//
//go:embed assets/light_header.wgsl
var GPULightHeaderSource string

// GPULightHeader is the header at the front of the light uniform buffer.
// Matches the WGSL LightHeader struct layout exactly (see GPULightHeaderSource).
// Size: 48 bytes.
type GPULightHeader struct {
	AmbientColor   [3]float32 // offset  0: scene ambient RGB
	LightCount     uint32     // offset 12: number of active lights following the header
	CameraPosition [3]float32 // offset 16: world-space camera position for specular
	Time           float32    // offset 28: elapsed scene time in seconds
	_reserved      [4]float32 // offset 32: padding to 48 bytes
}

// Size returns the size of the GPULightHeader struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (48)
func (h *GPULightHeader) Size() int {
	return int(unsafe.Sizeof(*h))
}

// Marshal serializes the GPULightHeader struct into a byte buffer suitable
// for GPU upload.
//
// Returns:
//   - []byte: 48-byte buffer ready for GPU upload
func (h *GPULightHeader) Marshal() []byte {
	buf := make([]byte, 48)
	binary.LittleEndian.PutUint32(buf[0:4], math.Float32bits(h.AmbientColor[0]))
	binary.LittleEndian.PutUint32(buf[4:8], math.Float32bits(h.AmbientColor[1]))
	binary.LittleEndian.PutUint32(buf[8:12], math.Float32bits(h.AmbientColor[2]))
	binary.LittleEndian.PutUint32(buf[12:16], h.LightCount)
	binary.LittleEndian.PutUint32(buf[16:20], math.Float32bits(h.CameraPosition[0]))
	binary.LittleEndian.PutUint32(buf[20:24], math.Float32bits(h.CameraPosition[1]))
	binary.LittleEndian.PutUint32(buf[24:28], math.Float32bits(h.CameraPosition[2]))
	binary.LittleEndian.PutUint32(buf[28:32], math.Float32bits(h.Time))
	return buf
}

// LightBufferSize is the fixed byte size of the light uniform buffer:
// a 48-byte header followed by MaxUBOLights 80-byte light entries.
const LightBufferSize = 48 + MaxUBOLights*80

// GPUShadowUniformSource is the canonical WGSL definition of the ShadowUniform
// struct. Matches GPUShadowUniform layout exactly (768 bytes, std140 aligned).
//
//go:embed assets/shadow_uniform.wgsl
var GPUShadowUniformSource string

// GPUShadowUniform is the GPU-aligned shadow uniform consumed by the lit pass.
// Matches the WGSL ShadowUniform struct layout exactly (see
// GPUShadowUniformSource). Size: 768 bytes (std140 / WGSL aligned).
//
// Layout:
//
//	array<mat4x4<f32>, 4> cascade_vp      (256 bytes, offset   0)
//	array<mat4x4<f32>, 4> spot_vp         (256 bytes, offset 256)
//	vec4<f32>             cascade_splits  ( 16 bytes, offset 512)
//	array<vec4<f32>, 4>   point_params    ( 64 bytes, offset 528)
//	vec4<f32>             bias_params     ( 16 bytes, offset 592)
//	vec4<u32>             counts          ( 16 bytes, offset 608)
//	vec4<f32>             misc            ( 16 bytes, offset 624)
//	array<vec4<f32>, 8>   reserved        (128 bytes, offset 640)
type GPUShadowUniform struct {
	CascadeVP     [MaxCSMCascades][16]float32 // texel-snapped cascade view-projections
	SpotVP        [MaxSpotShadows][16]float32 // spot light view-projections
	CascadeSplits [4]float32                  // view-space far distance of each cascade
	PointParams   [MaxPointShadows][4]float32 // xyz = light position, w = range
	Bias          float32                     // constant depth bias
	NormalBias    float32                     // world-space normal-offset distance
	Softness      float32                     // PCF kernel scale
	MaxDistance   float32                     // shadow fade-out distance
	CascadeCount  uint32
	SpotCount     uint32
	PointCount    uint32
	DebugCascades uint32     // 1 = tint the scene by cascade index
	Resolution    float32    // shadow map size in texels
	SplitLambda   float32    // split scheme blend factor
	Enabled       float32    // 1.0 = shadows on, 0.0 = off
	_pad          float32    // padding to 16-byte alignment
	_reserved     [32]uint32 // offset 640: reserved for future use
}

// Size returns the size of the GPUShadowUniform struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (768)
func (u *GPUShadowUniform) Size() int {
	return int(unsafe.Sizeof(*u))
}

// Marshal serializes the GPUShadowUniform struct into a byte buffer suitable
// for GPU uniform upload.
//
// Returns:
//   - []byte: 768-byte buffer ready for GPU upload
func (u *GPUShadowUniform) Marshal() []byte {
	buf := make([]byte, 768)
	off := 0

	// cascade_vp (256 bytes)
	for c := range u.CascadeVP {
		for i := range 16 {
			binary.LittleEndian.PutUint32(buf[off:off+4], math.Float32bits(u.CascadeVP[c][i]))
			off += 4
		}
	}
	// spot_vp (256 bytes)
	for s := range u.SpotVP {
		for i := range 16 {
			binary.LittleEndian.PutUint32(buf[off:off+4], math.Float32bits(u.SpotVP[s][i]))
			off += 4
		}
	}
	// cascade_splits
	for i := range 4 {
		binary.LittleEndian.PutUint32(buf[off:off+4], math.Float32bits(u.CascadeSplits[i]))
		off += 4
	}
	// point_params
	for p := range u.PointParams {
		for i := range 4 {
			binary.LittleEndian.PutUint32(buf[off:off+4], math.Float32bits(u.PointParams[p][i]))
			off += 4
		}
	}
	// bias_params
	binary.LittleEndian.PutUint32(buf[off:off+4], math.Float32bits(u.Bias))
	off += 4
	binary.LittleEndian.PutUint32(buf[off:off+4], math.Float32bits(u.NormalBias))
	off += 4
	binary.LittleEndian.PutUint32(buf[off:off+4], math.Float32bits(u.Softness))
	off += 4
	binary.LittleEndian.PutUint32(buf[off:off+4], math.Float32bits(u.MaxDistance))
	off += 4
	// counts
	binary.LittleEndian.PutUint32(buf[off:off+4], u.CascadeCount)
	off += 4
	binary.LittleEndian.PutUint32(buf[off:off+4], u.SpotCount)
	off += 4
	binary.LittleEndian.PutUint32(buf[off:off+4], u.PointCount)
	off += 4
	binary.LittleEndian.PutUint32(buf[off:off+4], u.DebugCascades)
	off += 4
	// misc
	binary.LittleEndian.PutUint32(buf[off:off+4], math.Float32bits(u.Resolution))
	off += 4
	binary.LittleEndian.PutUint32(buf[off:off+4], math.Float32bits(u.SplitLambda))
	off += 4
	binary.LittleEndian.PutUint32(buf[off:off+4], math.Float32bits(u.Enabled))
	off += 4
	binary.LittleEndian.PutUint32(buf[off:off+4], 0)

	// reserved tail is zero-initialized by make
	return buf
}

// ComputeNormalBias derives the world-space normal-offset bias for the first
// cascade from the shadow map parameters and stores it in the receiver. The
// result is the distance that fragment positions are shifted along their
// surface normal before projecting into light clip space.
//
// Parameters:
//   - radius: orthographic half-extent of cascade 0 in world units
//   - scale: multiplier on the per-texel world size (typically 2.0–4.0)
//   - resolution: shadow map resolution in texels
func (u *GPUShadowUniform) ComputeNormalBias(radius, scale float32, resolution int) {
	texelWorldSize := 2.0 * radius / float32(resolution)
	u.NormalBias = texelWorldSize * scale
}

// BuildShadowUniform assembles the per-frame shadow uniform from the computed
// cascade set, the shadow-casting spot and point lights, and the settings.
// Spot and point lights beyond the shadow map budget are dropped in order.
//
// Parameters:
//   - cascades: the cascade set computed this frame
//   - spots: shadow-casting spot lights, already priority-sorted
//   - points: shadow-casting point lights, already priority-sorted
//   - settings: the active shadow configuration
//
// Returns:
//   - GPUShadowUniform: the assembled uniform ready to Marshal
func BuildShadowUniform(cascades *CascadeSet, spots, points []Light, settings ShadowSettings) GPUShadowUniform {
	u := GPUShadowUniform{
		Bias:         settings.Bias,
		Softness:     settings.Softness,
		MaxDistance:  settings.MaxDistance,
		CascadeCount: MaxCSMCascades,
		Resolution:   float32(settings.Resolution),
		SplitLambda:  settings.CascadeSplitLambda,
	}
	if settings.Enabled {
		u.Enabled = 1
	}
	if settings.DebugCascades {
		u.DebugCascades = 1
	}

	for i := range cascades.Cascades {
		u.CascadeVP[i] = cascades.Cascades[i].ViewProj
		u.CascadeSplits[i] = cascades.Cascades[i].SplitFar
	}
	u.ComputeNormalBias(cascades.Cascades[0].Radius, settings.NormalBiasScale, settings.Resolution)

	for _, l := range spots {
		if u.SpotCount >= MaxSpotShadows {
			break
		}
		// OuterCone is stored as a cosine; the projection wants the half-angle.
		u.SpotVP[u.SpotCount] = SpotShadowMatrix(l.Position(), l.Direction(), math32.Acos(l.OuterCone()), l.Range())
		u.SpotCount++
	}
	for _, l := range points {
		if u.PointCount >= MaxPointShadows {
			break
		}
		pos := l.Position()
		u.PointParams[u.PointCount] = [4]float32{pos[0], pos[1], pos[2], l.Range()}
		u.PointCount++
	}
	return u
}

// ToGPULightData converts a Light interface value into the GPU-aligned
// GPULightData struct suitable for writing into the light uniform buffer.
//
// Parameters:
//   - l: the Light to convert
//   - shadowMapIndex: spot layer / point cube slot, or NoShadowMap
//
// Returns:
//   - GPULightData: the GPU-aligned representation
func ToGPULightData(l Light, shadowMapIndex uint32) GPULightData {
	shadowVal := uint32(0)
	if l.CastsShadows() {
		shadowVal = 1
	}
	return GPULightData{
		Position:       l.Position(),
		LightType:      uint32(l.Type()),
		Color:          l.Color(),
		Intensity:      l.Intensity(),
		Direction:      l.Direction(),
		LightRange:     l.Range(),
		InnerCone:      l.InnerCone(),
		OuterCone:      l.OuterCone(),
		CastsShadows:   shadowVal,
		ShadowMapIndex: shadowMapIndex,
	}
}

// MarshalLightBuffer marshals the enabled lights into the fixed-size light
// uniform buffer. The buffer layout is:
//
//	[GPULightHeader (48 bytes)] [GPULightData × MaxUBOLights (80 bytes each)]
//
// Only enabled lights are included, up to MaxUBOLights; callers should
// pre-sort by priority if truncation is expected. Unused slots are zeroed.
//
// Parameters:
//   - lights: the lights to marshal (disabled lights are skipped)
//   - ambient: the scene ambient color as RGB
//   - cameraPos: world-space camera position
//   - time: elapsed scene time in seconds
//
// Returns:
//   - []byte: the LightBufferSize-byte buffer ready for GPU upload
func MarshalLightBuffer(lights []Light, ambient, cameraPos [3]float32, time float32) []byte {
	buf := make([]byte, LightBufferSize)

	offset := 48
	written := uint32(0)
	for _, l := range lights {
		if !l.Enabled() {
			continue
		}
		if written >= MaxUBOLights {
			break
		}
		gpu := ToGPULightData(l, NoShadowMap)
		copy(buf[offset:offset+80], gpu.Marshal())
		offset += 80
		written++
	}

	header := GPULightHeader{
		AmbientColor:   ambient,
		LightCount:     written,
		CameraPosition: cameraPos,
		Time:           time,
	}
	copy(buf[0:48], header.Marshal())
	return buf
}
