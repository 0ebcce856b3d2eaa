package terrain

import (
	_ "embed"
	"encoding/binary"
	"math"
	"unsafe"
)

// TerrainUniformBinding is the bind group slot of the terrain uniform buffer.
const TerrainUniformBinding = 10

// GPUTerrainUniformSource is the canonical WGSL definition of the
// TerrainUniform struct. Matches GPUTerrainUniform layout exactly (112 bytes,
// std140 aligned).
//
//go:embed assets/terrain_uniform.wgsl
var GPUTerrainUniformSource string

// GPUTerrainUniform is the per-patch uniform consumed by the terrain
// tessellation and PBR shaders. Matches the WGSL TerrainUniform struct layout
// exactly (see GPUTerrainUniformSource). Size: 112 bytes.
//
// Layout:
//
//	vec4<f32> world_params    ( 16 bytes, offset  0)  x=world_size_x y=world_size_z z=height_scale w=chunk_size
//	vec4<f32> edge_tess       ( 16 bytes, offset 16)  -X, +X, -Z, +Z edge factors
//	vec4<f32> patch_params    ( 16 bytes, offset 32)  x=tess_inner y=morph z=lod_level w=tess_enabled
//	2 × vec4  tiling_scales   ( 32 bytes, offset 48)  per-layer UV multipliers
//	2 × vec4  blend_sharpness ( 32 bytes, offset 80)  per-layer splat contrast
type GPUTerrainUniform struct {
	WorldSizeX     float32
	WorldSizeZ     float32
	HeightScale    float32
	ChunkSize      float32
	EdgeTess       [4]float32
	TessInner      float32
	Morph          float32
	LODLevel       float32
	TessEnabled    float32
	TilingScales   [MaxTerrainLayers]float32
	BlendSharpness [MaxTerrainLayers]float32
}

// Size returns the size of the GPUTerrainUniform struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (112)
func (u *GPUTerrainUniform) Size() int {
	return int(unsafe.Sizeof(*u))
}

// Marshal serializes the GPUTerrainUniform struct into a byte buffer suitable
// for GPU uniform upload.
//
// Returns:
//   - []byte: 112-byte buffer ready for GPU upload
func (u *GPUTerrainUniform) Marshal() []byte {
	buf := make([]byte, 112)
	off := 0
	putF32 := func(v float32) {
		binary.LittleEndian.PutUint32(buf[off:off+4], math.Float32bits(v))
		off += 4
	}

	putF32(u.WorldSizeX)
	putF32(u.WorldSizeZ)
	putF32(u.HeightScale)
	putF32(u.ChunkSize)
	for _, v := range u.EdgeTess {
		putF32(v)
	}
	putF32(u.TessInner)
	putF32(u.Morph)
	putF32(u.LODLevel)
	putF32(u.TessEnabled)
	for _, v := range u.TilingScales {
		putF32(v)
	}
	for _, v := range u.BlendSharpness {
		putF32(v)
	}
	return buf
}

// ApplySelection fills the per-patch fields from a selected quadtree node.
//
// Parameters:
//   - sel: the node selected for this patch
//   - tessEnabled: whether hardware tessellation is active
func (u *GPUTerrainUniform) ApplySelection(sel SelectedNode, tessEnabled bool) {
	u.EdgeTess = sel.TessEdges
	u.TessInner = sel.TessInner
	u.Morph = sel.Morph
	u.LODLevel = float32(sel.LODLevel)
	if tessEnabled {
		u.TessEnabled = 1
	} else {
		u.TessEnabled = 0
	}
}

// GPUErosionUniformSource is the canonical WGSL definition of the
// ErosionUniform struct. Matches GPUErosionUniform layout exactly (64 bytes).
//
//go:embed assets/erosion_uniform.wgsl
var GPUErosionUniformSource string

// GPUErosionKernelSource is the droplet erosion compute kernel. One thread
// simulates one droplet against the heightmap storage texture.
//
//go:embed assets/erode.wgsl
var GPUErosionKernelSource string

// ErosionWorkgroupSize is the kernel's workgroup width; dispatch
// ceil(dropletCount / ErosionWorkgroupSize) groups.
const ErosionWorkgroupSize = 64

// GPUErosionUniform is the parameter block for the erosion kernel.
// Matches the WGSL ErosionUniform struct layout exactly (see
// GPUErosionUniformSource). Size: 64 bytes.
//
// Layout:
//
//	vec4<u32> counts  (16 bytes, offset  0)  x=resolution y=droplet_count z=max_steps w=erosion_radius
//	vec4<f32> motion  (16 bytes, offset 16)  x=inertia y=capacity_factor z=min_capacity w=deposit_speed
//	vec4<f32> forces  (16 bytes, offset 32)  x=erode_speed y=evaporate_speed z=gravity w=unused
//	vec4<u32> control (16 bytes, offset 48)  x=seed y=iteration z,w=unused
type GPUErosionUniform struct {
	Resolution     uint32
	DropletCount   uint32
	MaxSteps       uint32
	ErosionRadius  uint32
	Inertia        float32
	CapacityFactor float32
	MinCapacity    float32
	DepositSpeed   float32
	ErodeSpeed     float32
	EvaporateSpeed float32
	Gravity        float32
	_pad0          float32
	Seed           uint32
	Iteration      uint32
	_pad1          [2]uint32
}

// Size returns the size of the GPUErosionUniform struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (64)
func (u *GPUErosionUniform) Size() int {
	return int(unsafe.Sizeof(*u))
}

// Marshal serializes the GPUErosionUniform struct into a byte buffer suitable
// for GPU uniform upload.
//
// Returns:
//   - []byte: 64-byte buffer ready for GPU upload
func (u *GPUErosionUniform) Marshal() []byte {
	buf := make([]byte, 64)
	binary.LittleEndian.PutUint32(buf[0:4], u.Resolution)
	binary.LittleEndian.PutUint32(buf[4:8], u.DropletCount)
	binary.LittleEndian.PutUint32(buf[8:12], u.MaxSteps)
	binary.LittleEndian.PutUint32(buf[12:16], u.ErosionRadius)
	binary.LittleEndian.PutUint32(buf[16:20], math.Float32bits(u.Inertia))
	binary.LittleEndian.PutUint32(buf[20:24], math.Float32bits(u.CapacityFactor))
	binary.LittleEndian.PutUint32(buf[24:28], math.Float32bits(u.MinCapacity))
	binary.LittleEndian.PutUint32(buf[28:32], math.Float32bits(u.DepositSpeed))
	binary.LittleEndian.PutUint32(buf[32:36], math.Float32bits(u.ErodeSpeed))
	binary.LittleEndian.PutUint32(buf[36:40], math.Float32bits(u.EvaporateSpeed))
	binary.LittleEndian.PutUint32(buf[40:44], math.Float32bits(u.Gravity))
	binary.LittleEndian.PutUint32(buf[44:48], 0)
	binary.LittleEndian.PutUint32(buf[48:52], u.Seed)
	binary.LittleEndian.PutUint32(buf[52:56], u.Iteration)
	binary.LittleEndian.PutUint32(buf[56:60], 0)
	binary.LittleEndian.PutUint32(buf[60:64], 0)
	return buf
}

// FromParams fills the uniform from the shared erosion parameter block.
//
// Parameters:
//   - params: the erosion configuration
//   - resolution: heightmap resolution in texels
//   - iteration: the current multi-iteration index
func (u *GPUErosionUniform) FromParams(params ErosionParams, resolution, iteration int) {
	u.Resolution = uint32(resolution)
	u.DropletCount = uint32(params.DropletCount)
	u.MaxSteps = uint32(params.MaxDropletSteps)
	u.ErosionRadius = uint32(params.ErosionRadius)
	u.Inertia = params.Inertia
	u.CapacityFactor = params.SedimentCapacityFactor
	u.MinCapacity = params.MinSedimentCapacity
	u.DepositSpeed = params.DepositSpeed
	u.ErodeSpeed = params.ErodeSpeed
	u.EvaporateSpeed = params.EvaporateSpeed
	u.Gravity = params.Gravity
	u.Seed = uint32(params.Seed) + uint32(iteration)*2654435761
	u.Iteration = uint32(iteration)
}
