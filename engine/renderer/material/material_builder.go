package material

import (
	"github.com/oloengine/olo/common"
	"github.com/oloengine/olo/engine/renderer/bind_group_provider"
)

// MaterialBuilderOption is a function that configures a material instance during construction.
type MaterialBuilderOption func(*material)

// WithName is an option builder that sets the name of the material.
//
// Parameters:
//   - name: the identifier for the material
//
// Returns:
//   - MaterialBuilderOption: a function that applies the name option to a material
func WithName(name string) MaterialBuilderOption {
	return func(m *material) {
		m.name = name
	}
}

// WithBaseColor is an option builder that sets the albedo RGBA color of the material.
//
// Parameters:
//   - color: the base color as RGBA float32 values
//
// Returns:
//   - MaterialBuilderOption: a function that applies the base color option to a material
func WithBaseColor(color [4]float32) MaterialBuilderOption {
	return func(m *material) {
		m.baseColor = color
	}
}

// WithEmissive is an option builder that sets the emissive RGB color of the material.
//
// Parameters:
//   - color: the emissive color as RGB float32 values
//
// Returns:
//   - MaterialBuilderOption: a function that applies the emissive option to a material
func WithEmissive(color [3]float32) MaterialBuilderOption {
	return func(m *material) {
		m.emissive = color
	}
}

// WithMetallic is an option builder that sets the metallic factor of the material.
//
// Parameters:
//   - metallic: the metallic factor (0.0 = dielectric, 1.0 = metal; clamped)
//
// Returns:
//   - MaterialBuilderOption: a function that applies the metallic option to a material
func WithMetallic(metallic float32) MaterialBuilderOption {
	return func(m *material) {
		m.metallic = metallic
	}
}

// WithRoughness is an option builder that sets the roughness factor of the material.
//
// Parameters:
//   - roughness: the roughness factor (0.0 = smooth, 1.0 = rough; clamped)
//
// Returns:
//   - MaterialBuilderOption: a function that applies the roughness option to a material
func WithRoughness(roughness float32) MaterialBuilderOption {
	return func(m *material) {
		m.roughness = roughness
	}
}

// WithNormalScale is an option builder that sets the normal map intensity.
//
// Parameters:
//   - scale: the normal scale (negative values clamp to 0)
//
// Returns:
//   - MaterialBuilderOption: a function that applies the normal scale option to a material
func WithNormalScale(scale float32) MaterialBuilderOption {
	return func(m *material) {
		m.normalScale = scale
	}
}

// WithOcclusionStrength is an option builder that sets the AO texture weight.
//
// Parameters:
//   - strength: the occlusion strength (clamped to [0, 1])
//
// Returns:
//   - MaterialBuilderOption: a function that applies the occlusion option to a material
func WithOcclusionStrength(strength float32) MaterialBuilderOption {
	return func(m *material) {
		m.occlusionStrength = strength
	}
}

// WithTexture is an option builder that binds a texture at a PBR slot.
//
// Parameters:
//   - slot: one of the Slot* constants
//   - tex: the imported texture data (nil is ignored)
//
// Returns:
//   - MaterialBuilderOption: a function that applies the texture option to a material
func WithTexture(slot int, tex *common.ImportedTexture) MaterialBuilderOption {
	return func(m *material) {
		if tex != nil {
			m.textures[slot] = tex
		}
	}
}

// WithDiffuseTexture is an option builder that binds the albedo texture at SlotAlbedo.
//
// Parameters:
//   - tex: the imported texture data for the albedo map
//
// Returns:
//   - MaterialBuilderOption: a function that applies the albedo texture option to a material
func WithDiffuseTexture(tex *common.ImportedTexture) MaterialBuilderOption {
	return WithTexture(SlotAlbedo, tex)
}

// WithNormalTexture is an option builder that binds the normal map at SlotNormal.
//
// Parameters:
//   - tex: the imported texture data for the normal map
//
// Returns:
//   - MaterialBuilderOption: a function that applies the normal texture option to a material
func WithNormalTexture(tex *common.ImportedTexture) MaterialBuilderOption {
	return WithTexture(SlotNormal, tex)
}

// WithMetallicRoughnessTexture is an option builder that binds the metallic-roughness
// texture at SlotMetallicRoughness.
//
// Parameters:
//   - tex: the imported texture data for the metallic-roughness map
//
// Returns:
//   - MaterialBuilderOption: a function that applies the metallic-roughness texture option to a material
func WithMetallicRoughnessTexture(tex *common.ImportedTexture) MaterialBuilderOption {
	return WithTexture(SlotMetallicRoughness, tex)
}

// WithPipelineKey is an option builder that sets the render pipeline key for the material.
//
// Parameters:
//   - key: the pipeline key to associate with the material
//
// Returns:
//   - MaterialBuilderOption: a function that applies the pipeline key option to a material
func WithPipelineKey(key string) MaterialBuilderOption {
	return func(m *material) {
		m.pipelineKey = key
	}
}

// WithBindGroupProvider is an option builder that sets the bind group provider for the material.
//
// Parameters:
//   - provider: the bind group provider containing GPU resources for the material
//
// Returns:
//   - MaterialBuilderOption: a function that applies the bind group provider option to a material
func WithBindGroupProvider(provider bind_group_provider.BindGroupProvider) MaterialBuilderOption {
	return func(m *material) {
		m.bindGroupProvider = provider
	}
}
