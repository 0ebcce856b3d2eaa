// package common contains common types that are used throughout this engine. They are not interface-wrapped structs, just plain structs that express
// commonly used data-types.
package common

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"github.com/cogentcore/webgpu/wgpu"
)

// TextureStagingData holds RGBA pixel data for a texture binding pending GPU upload.
// This is primarily used to stage texture data before creating the GPU texture and bind group.
type TextureStagingData struct {
	// Pixels is the byte slice representing the actual pixel data for the texture. It should be in RGBA format, with 4 bytes per pixel.
	Pixels []byte
	// Width is the width of the texture in pixels. This is required to correctly create the GPU texture and interpret the pixel data.
	Width uint32
	// Height is the height of the texture in pixels. This is required to correctly create the GPU texture and interpret the pixel data.
	Height uint32
}

// StorageTextureStagingData describes a texture created for compute shader
// load/store access. Unlike TextureStagingData there are no staged pixels;
// storage textures start zeroed and are written by kernels. Depth > 1
// creates a 3D texture.
type StorageTextureStagingData struct {
	// Width, Height, Depth are the texture dimensions in texels. Depth of 0 or 1 creates a 2D texture.
	Width, Height, Depth uint32
	// Format is the texel format. It must match the format declared on the shader's texture_storage binding.
	Format wgpu.TextureFormat
}

// SamplerStagingData holds the configuration for a sampler binding pending GPU creation.
type SamplerStagingData struct {
	// AddressModeU, AddressModeV, AddressModeW specify the addressing mode for texture coordinates outside the [0, 1] range in each dimension (U, V, W).
	AddressModeU, AddressModeV, AddressModeW wgpu.AddressMode
	// MagFilter and MinFilter specify the filtering mode for magnification and minification.
	MagFilter, MinFilter wgpu.FilterMode
	// MipmapFilter specifies the filtering mode for mipmap level selection.
	MipmapFilter wgpu.MipmapFilterMode
	// LodMinClamp and LodMaxClamp specify the minimum and maximum level of detail (LOD) for mipmapping.
	LodMinClamp, LodMaxClamp float32
	// Compare specifies the comparison function for comparison samplers, used in shadow mapping and similar techniques.
	Compare wgpu.CompareFunction
	// MaxAnisotropy specifies the maximum anisotropy level for anisotropic filtering, which can improve texture quality at oblique viewing angles.
	MaxAnisotropy uint16
}

// AABB is a world-space axis-aligned bounding box.
type AABB struct {
	Min [3]float32
	Max [3]float32
}

// Center returns the midpoint of the box.
func (b AABB) Center() [3]float32 {
	return [3]float32{
		(b.Min[0] + b.Max[0]) * 0.5,
		(b.Min[1] + b.Max[1]) * 0.5,
		(b.Min[2] + b.Max[2]) * 0.5,
	}
}

// Expand grows the box to include the given point.
//
// Parameters:
//   - x, y, z: the point to include
func (b *AABB) Expand(x, y, z float32) {
	if x < b.Min[0] {
		b.Min[0] = x
	}
	if y < b.Min[1] {
		b.Min[1] = y
	}
	if z < b.Min[2] {
		b.Min[2] = z
	}
	if x > b.Max[0] {
		b.Max[0] = x
	}
	if y > b.Max[1] {
		b.Max[1] = y
	}
	if z > b.Max[2] {
		b.Max[2] = z
	}
}

// DirtyRect is an inclusive texel-space rectangle marking a modified region.
// The zero value is the canonical empty rectangle.
type DirtyRect struct {
	MinX, MinY int
	MaxX, MaxY int
	valid      bool
}

// Empty reports whether no texels have been added to the rectangle.
func (r DirtyRect) Empty() bool {
	return !r.valid
}

// Add grows the rectangle to include the given texel.
//
// Parameters:
//   - x, y: the texel coordinate to include
func (r *DirtyRect) Add(x, y int) {
	if !r.valid {
		r.MinX, r.MinY, r.MaxX, r.MaxY = x, y, x, y
		r.valid = true
		return
	}
	if x < r.MinX {
		r.MinX = x
	}
	if y < r.MinY {
		r.MinY = y
	}
	if x > r.MaxX {
		r.MaxX = x
	}
	if y > r.MaxY {
		r.MaxY = y
	}
}

// Union merges another rectangle into this one.
//
// Parameters:
//   - other: the rectangle to merge
func (r *DirtyRect) Union(other DirtyRect) {
	if other.Empty() {
		return
	}
	r.Add(other.MinX, other.MinY)
	r.Add(other.MaxX, other.MaxY)
}

// Contains reports whether the rectangle includes the given texel.
//
// Parameters:
//   - x, y: the texel coordinate to test
//
// Returns:
//   - bool: true if the texel is inside the rectangle
func (r DirtyRect) Contains(x, y int) bool {
	return r.valid && x >= r.MinX && x <= r.MaxX && y >= r.MinY && y <= r.MaxY
}

// ImportedMaterial represents material properties from an imported model file.
type ImportedMaterial struct {
	// Name is the material identifier.
	Name string

	// BaseColor is the albedo/diffuse color (RGBA).
	BaseColor [4]float32

	// Metallic factor (0.0 = dielectric, 1.0 = metal).
	Metallic float32

	// Roughness factor (0.0 = smooth, 1.0 = rough).
	Roughness float32

	// DiffuseTexturePath is the file path for the diffuse/albedo texture.
	DiffuseTexturePath string

	// NormalTexturePath is the file path for the normal map texture.
	NormalTexturePath string

	// MetallicTexturePath is the file path for the metallic-roughness texture.
	MetallicTexturePath string

	// DiffuseTexture holds embedded texture data (if present).
	DiffuseTexture *ImportedTexture

	// NormalTexture holds embedded normal map data (if present).
	NormalTexture *ImportedTexture

	// MetallicRoughnessTexture holds embedded metallic/roughness data (if present).
	MetallicRoughnessTexture *ImportedTexture
}

// ImportedTexture represents texture data extracted from a model file.
// For embedded textures (GLB), the Data field contains raw image bytes.
// For external textures, the Path field contains the file path.
type ImportedTexture struct {
	// Name is an identifier for this texture (e.g., "diffuse", "normal").
	Name string

	// Path is the file path for external textures (empty for embedded).
	Path string

	// Data contains raw image bytes for embedded textures (PNG/JPEG).
	Data []byte

	// MimeType indicates the image format (e.g., "image/png", "image/jpeg").
	MimeType string

	// Width is the texture width in pixels (populated after Decode).
	Width int

	// Height is the texture height in pixels (populated after Decode).
	Height int

	// SamplerData holds GPU sampler parameters extracted from the model file.
	// When non-nil, these values override the default linear/repeat settings
	// used during material GPU initialization.
	SamplerData *SamplerStagingData
}

// Decode decodes the texture to raw RGBA pixel data.
// Uses either embedded Data bytes or loads from Path on disk.
// Supports PNG and JPEG formats.
//
// Returns:
//   - []byte: raw RGBA pixel data (4 bytes per pixel, row-major order)
//   - uint32: texture width in pixels
//   - uint32: texture height in pixels
//   - error: error if decoding fails
func (t *ImportedTexture) Decode() ([]byte, uint32, uint32, error) {
	if t == nil {
		return nil, 0, 0, fmt.Errorf("texture is nil")
	}

	var img image.Image
	var err error

	if len(t.Data) > 0 {
		img, _, err = image.Decode(bytes.NewReader(t.Data))
		if err != nil {
			return nil, 0, 0, fmt.Errorf("failed to decode embedded image: %w", err)
		}
	} else if t.Path != "" {
		file, fileErr := os.Open(t.Path)
		if fileErr != nil {
			return nil, 0, 0, fmt.Errorf("failed to open texture file %s: %w", t.Path, fileErr)
		}
		defer file.Close()

		img, _, err = image.Decode(file)
		if err != nil {
			return nil, 0, 0, fmt.Errorf("failed to decode texture file %s: %w", t.Path, err)
		}
	} else {
		return nil, 0, 0, fmt.Errorf("texture %q has no data or path", t.Name)
	}

	bounds := img.Bounds()
	rgba := image.NewRGBA(bounds)
	draw.Draw(rgba, bounds, img, bounds.Min, draw.Src)

	t.Width = bounds.Dx()
	t.Height = bounds.Dy()
	return rgba.Pix, uint32(t.Width), uint32(t.Height), nil
}

// DecodeTextureFile loads an image file from disk and converts it to raw RGBA
// pixel data suitable for GPU upload. Supports PNG and JPEG formats.
//
// Parameters:
//   - path: the image file to load
//
// Returns:
//   - TextureStagingData: the decoded RGBA pixels and dimensions
//   - error: error if the file cannot be opened or decoded
func DecodeTextureFile(path string) (TextureStagingData, error) {
	file, err := os.Open(path)
	if err != nil {
		return TextureStagingData{}, fmt.Errorf("failed to open texture file %s: %w", path, err)
	}
	defer file.Close()

	img, _, err := image.Decode(file)
	if err != nil {
		return TextureStagingData{}, fmt.Errorf("failed to decode texture file %s: %w", path, err)
	}

	bounds := img.Bounds()
	rgba := image.NewRGBA(bounds)
	draw.Draw(rgba, bounds, img, bounds.Min, draw.Src)

	return TextureStagingData{
		Pixels: rgba.Pix,
		Width:  uint32(bounds.Dx()),
		Height: uint32(bounds.Dy()),
	}, nil
}
