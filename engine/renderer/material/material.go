package material

import (
	"github.com/oloengine/olo/common"
	"github.com/oloengine/olo/engine/renderer/bind_group_provider"
)

// Texture slots for the PBR pass, matching the shared binding layout.
const (
	SlotAlbedo            = 0
	SlotMetallicRoughness = 1
	SlotNormal            = 2
	SlotAO                = 4
	SlotEmissive          = 5
	SlotEnvironment       = 9
	SlotIrradiance        = 10
	SlotPrefilter         = 11
	SlotBRDFLUT           = 12
)

// material is the implementation of the Material interface.
type material struct {
	name              string
	baseColor         [4]float32
	emissive          [3]float32
	metallic          float32
	roughness         float32
	normalScale       float32
	occlusionStrength float32
	textures          map[int]*common.ImportedTexture
	pipelineKey       string
	bindGroupProvider bind_group_provider.BindGroupProvider
}

// Material defines the interface for a PBR render material, encapsulating
// surface properties, texture slot references, and GPU resource bindings
// needed for draw calls.
//
// Surface scalars are clamped at construction: metallic, roughness, and
// occlusion strength to [0, 1], normal scale to >= 0. GPU resource
// references (pipeline key, bind group provider) are mutable so they can be
// configured after construction during the Loader GPU-init phase.
type Material interface {
	// Name retrieves the material identifier.
	//
	// Returns:
	//   - string: the name of the material
	Name() string

	// BaseColor retrieves the albedo RGBA color of the material.
	//
	// Returns:
	//   - [4]float32: the base color as RGBA values
	BaseColor() [4]float32

	// Emissive retrieves the emissive RGB color of the material.
	//
	// Returns:
	//   - [3]float32: the emissive color
	Emissive() [3]float32

	// Metallic retrieves the metallic factor of the material.
	// A value of 0.0 represents a dielectric surface, 1.0 represents a fully metallic surface.
	//
	// Returns:
	//   - float32: the metallic factor
	Metallic() float32

	// Roughness retrieves the roughness factor of the material.
	// A value of 0.0 represents a perfectly smooth surface, 1.0 represents a fully rough surface.
	//
	// Returns:
	//   - float32: the roughness factor
	Roughness() float32

	// NormalScale retrieves the normal map intensity multiplier.
	//
	// Returns:
	//   - float32: the normal scale (>= 0)
	NormalScale() float32

	// OcclusionStrength retrieves the ambient occlusion texture weight.
	//
	// Returns:
	//   - float32: the occlusion strength in [0, 1]
	OcclusionStrength() float32

	// Texture retrieves the texture bound at a PBR slot, or nil if none is set.
	//
	// Parameters:
	//   - slot: one of the Slot* constants
	//
	// Returns:
	//   - *common.ImportedTexture: the texture, or nil
	Texture(slot int) *common.ImportedTexture

	// SetTexture binds a texture at a PBR slot.
	//
	// Parameters:
	//   - slot: one of the Slot* constants
	//   - tex: the imported texture data, or nil to clear the slot
	SetTexture(slot int, tex *common.ImportedTexture)

	// DiffuseTexture retrieves the texture at SlotAlbedo, or nil if none is set.
	//
	// Returns:
	//   - *common.ImportedTexture: the albedo texture, or nil
	DiffuseTexture() *common.ImportedTexture

	// NormalTexture retrieves the texture at SlotNormal, or nil if none is set.
	//
	// Returns:
	//   - *common.ImportedTexture: the normal texture, or nil
	NormalTexture() *common.ImportedTexture

	// MetallicRoughnessTexture retrieves the texture at SlotMetallicRoughness, or nil if none is set.
	//
	// Returns:
	//   - *common.ImportedTexture: the metallic-roughness texture, or nil
	MetallicRoughnessTexture() *common.ImportedTexture

	// Fingerprint retrieves the 64-bit hash of all surface properties and
	// texture bindings, used by the command bucket for sorting and batching.
	// Materials with equal fingerprints render identically.
	//
	// Returns:
	//   - uint64: the FNV-1a fingerprint
	Fingerprint() uint64

	// PipelineKey retrieves the key identifying the render pipeline this material uses.
	//
	// Returns:
	//   - string: the pipeline key
	PipelineKey() string

	// BindGroupProvider retrieves the bind group provider holding GPU-side resources for this material.
	//
	// Returns:
	//   - bind_group_provider.BindGroupProvider: the bind group provider, or nil if not yet initialized
	BindGroupProvider() bind_group_provider.BindGroupProvider

	// SetPipelineKey sets the render pipeline key for this material.
	//
	// Parameters:
	//   - key: the pipeline key to associate with this material
	SetPipelineKey(key string)

	// SetBindGroupProvider sets the bind group provider for this material.
	//
	// Parameters:
	//   - provider: the bind group provider containing GPU resources for this material
	SetBindGroupProvider(provider bind_group_provider.BindGroupProvider)
}

var _ Material = &material{}

// NewMaterial creates a new Material instance configured with the provided options.
// Out-of-range scalars are clamped rather than rejected.
//
// Parameters:
//   - options: variadic list of MaterialBuilderOption functions to configure the material
//
// Returns:
//   - Material: a new Material instance
func NewMaterial(options ...MaterialBuilderOption) Material {
	m := &material{
		baseColor:         [4]float32{1, 1, 1, 1},
		metallic:          0.0,
		roughness:         1.0,
		normalScale:       1.0,
		occlusionStrength: 1.0,
		textures:          make(map[int]*common.ImportedTexture),
	}
	for _, opt := range options {
		opt(m)
	}
	m.metallic = clamp01(m.metallic)
	m.roughness = clamp01(m.roughness)
	m.occlusionStrength = clamp01(m.occlusionStrength)
	if m.normalScale < 0 {
		m.normalScale = 0
	}
	return m
}

func clamp01(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func (m *material) Name() string {
	return m.name
}

func (m *material) BaseColor() [4]float32 {
	return m.baseColor
}

func (m *material) Emissive() [3]float32 {
	return m.emissive
}

func (m *material) Metallic() float32 {
	return m.metallic
}

func (m *material) Roughness() float32 {
	return m.roughness
}

func (m *material) NormalScale() float32 {
	return m.normalScale
}

func (m *material) OcclusionStrength() float32 {
	return m.occlusionStrength
}

func (m *material) Texture(slot int) *common.ImportedTexture {
	return m.textures[slot]
}

func (m *material) SetTexture(slot int, tex *common.ImportedTexture) {
	if tex == nil {
		delete(m.textures, slot)
		return
	}
	m.textures[slot] = tex
}

func (m *material) DiffuseTexture() *common.ImportedTexture {
	return m.textures[SlotAlbedo]
}

func (m *material) NormalTexture() *common.ImportedTexture {
	return m.textures[SlotNormal]
}

func (m *material) MetallicRoughnessTexture() *common.ImportedTexture {
	return m.textures[SlotMetallicRoughness]
}

func (m *material) PipelineKey() string {
	return m.pipelineKey
}

func (m *material) BindGroupProvider() bind_group_provider.BindGroupProvider {
	return m.bindGroupProvider
}

func (m *material) SetPipelineKey(key string) {
	m.pipelineKey = key
}

func (m *material) SetBindGroupProvider(provider bind_group_provider.BindGroupProvider) {
	m.bindGroupProvider = provider
}
