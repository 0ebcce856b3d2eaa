package material

import (
	_ "embed"
	"encoding/binary"
	"math"
	"unsafe"
)

// MaterialUniformBinding is the PBR material uniform slot.
const MaterialUniformBinding = 2

// GPUMaterialParamsSource is the canonical WGSL definition of the
// MaterialParams struct. Matches GPUMaterialParams layout exactly (96 bytes).
//
//go:embed assets/material_params.wgsl
var GPUMaterialParamsSource string

// GPUMaterialParams is the GPU-aligned PBR material uniform.
// Matches the WGSL MaterialParams struct layout exactly (see
// GPUMaterialParamsSource). Size: 96 bytes.
type GPUMaterialParams struct {
	BaseColor         [4]float32 // offset  0: albedo RGBA
	Emissive          [3]float32 // offset 16: emissive RGB
	NormalScale       float32    // offset 28
	Metallic          float32    // offset 32
	Roughness         float32    // offset 36
	OcclusionStrength float32    // offset 40
	TextureFlags      uint32     // offset 44: bit per bound Slot* index
	_reserved         [12]float32 // offset 48: pad to 96 bytes
}

// Size returns the size of the GPUMaterialParams struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (96)
func (g *GPUMaterialParams) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the GPUMaterialParams struct into a byte buffer suitable
// for GPU upload.
//
// Returns:
//   - []byte: 96-byte buffer ready for GPU upload
func (g *GPUMaterialParams) Marshal() []byte {
	buf := make([]byte, 96)
	off := 0
	putF32 := func(v float32) {
		binary.LittleEndian.PutUint32(buf[off:off+4], math.Float32bits(v))
		off += 4
	}
	putF32(g.BaseColor[0])
	putF32(g.BaseColor[1])
	putF32(g.BaseColor[2])
	putF32(g.BaseColor[3])
	putF32(g.Emissive[0])
	putF32(g.Emissive[1])
	putF32(g.Emissive[2])
	putF32(g.NormalScale)
	putF32(g.Metallic)
	putF32(g.Roughness)
	putF32(g.OcclusionStrength)
	binary.LittleEndian.PutUint32(buf[44:48], g.TextureFlags)
	return buf
}

// FromMaterial fills the uniform from a material's surface properties.
// TextureFlags gets one bit per bound texture slot so the shader can branch
// on texture presence without extra uniforms.
//
// Parameters:
//   - m: the material to serialize
func (g *GPUMaterialParams) FromMaterial(m Material) {
	g.BaseColor = m.BaseColor()
	g.Emissive = m.Emissive()
	g.NormalScale = m.NormalScale()
	g.Metallic = m.Metallic()
	g.Roughness = m.Roughness()
	g.OcclusionStrength = m.OcclusionStrength()
	g.TextureFlags = 0
	for _, slot := range []int{
		SlotAlbedo, SlotMetallicRoughness, SlotNormal, SlotAO, SlotEmissive,
		SlotEnvironment, SlotIrradiance, SlotPrefilter, SlotBRDFLUT,
	} {
		if m.Texture(slot) != nil {
			g.TextureFlags |= 1 << uint(slot)
		}
	}
}
