package terrain

import (
	"fmt"
	"image"

	xdraw "golang.org/x/image/draw"

	"github.com/oloengine/olo/common"
)

// DefaultLayerTextureSize is the per-layer texture resolution the arrays are
// resampled to when layers disagree.
const DefaultLayerTextureSize = 512

// TerrainLayer describes one paintable material layer. Empty texture paths
// fall back to procedural defaults synthesized from the scalar parameters.
type TerrainLayer struct {
	// Name identifies the layer in tooling and logs.
	Name string
	// AlbedoPath, NormalPath, ARMPath are optional texture files. ARM packs
	// ambient occlusion, roughness, and metallic into RGB.
	AlbedoPath string
	NormalPath string
	ARMPath    string
	// BaseColor is the albedo fallback when AlbedoPath is empty.
	BaseColor [3]float32
	// Roughness and Metallic fill the ARM fallback when ARMPath is empty.
	Roughness float32
	Metallic  float32
	// TilingScale is the UV multiplier applied in the terrain shader.
	TilingScale float32
	// BlendSharpness controls the splat weight contrast for this layer.
	BlendSharpness float32
}

// LayerTextureArrays holds the assembled CPU data for the three terrain
// Texture2DArrays. Pixels[layer][mip] is tightly packed RGBA8. All layers
// share Size and the same mip chain length.
type LayerTextureArrays struct {
	// Size is the base mip resolution per axis.
	Size int
	// LayerCount is the number of array slices.
	LayerCount int
	// MipLevels is the length of each slice's mip chain.
	MipLevels int
	// Albedo, Normal, ARM are indexed [layer][mip].
	Albedo [][][]byte
	Normal [][][]byte
	ARM    [][][]byte
}

// BuildLayerTextures loads or synthesizes the textures of every layer,
// resamples them to a common resolution, and generates full mip chains.
//
// Parameters:
//   - layers: the material layers (at most MaxTerrainLayers are used)
//   - size: target resolution per axis; <= 0 uses DefaultLayerTextureSize
//
// Returns:
//   - *LayerTextureArrays: the assembled array data
//   - error: nil on success; a failed texture load aborts the build
func BuildLayerTextures(layers []TerrainLayer, size int) (*LayerTextureArrays, error) {
	if size <= 0 {
		size = DefaultLayerTextureSize
	}
	if len(layers) > MaxTerrainLayers {
		layers = layers[:MaxTerrainLayers]
	}

	out := &LayerTextureArrays{
		Size:       size,
		LayerCount: len(layers),
		MipLevels:  mipLevelCount(size),
	}

	for i, layer := range layers {
		albedo, err := loadOrSynthesize(layer.AlbedoPath, size, func() []byte {
			return solidColor(size, byte(clamp01(layer.BaseColor[0])*255), byte(clamp01(layer.BaseColor[1])*255), byte(clamp01(layer.BaseColor[2])*255), 255)
		})
		if err != nil {
			return nil, fmt.Errorf("layer %d (%s) albedo: %w", i, layer.Name, err)
		}
		normal, err := loadOrSynthesize(layer.NormalPath, size, func() []byte {
			// Flat tangent-space normal.
			return solidColor(size, 128, 128, 255, 255)
		})
		if err != nil {
			return nil, fmt.Errorf("layer %d (%s) normal: %w", i, layer.Name, err)
		}
		arm, err := loadOrSynthesize(layer.ARMPath, size, func() []byte {
			return solidColor(size, 255, byte(clamp01(layer.Roughness)*255), byte(clamp01(layer.Metallic)*255), 255)
		})
		if err != nil {
			return nil, fmt.Errorf("layer %d (%s) arm: %w", i, layer.Name, err)
		}

		out.Albedo = append(out.Albedo, generateMipChain(albedo, size))
		out.Normal = append(out.Normal, generateMipChain(normal, size))
		out.ARM = append(out.ARM, generateMipChain(arm, size))
	}
	return out, nil
}

// loadOrSynthesize loads and resamples a texture, or calls the fallback when
// the path is empty.
func loadOrSynthesize(path string, size int, fallback func() []byte) ([]byte, error) {
	if path == "" {
		return fallback(), nil
	}
	staging, err := common.DecodeTextureFile(path)
	if err != nil {
		return nil, err
	}
	if int(staging.Width) == size && int(staging.Height) == size {
		return staging.Pixels, nil
	}
	return resampleNearest(staging.Pixels, int(staging.Width), int(staging.Height), size), nil
}

// resampleNearest rescales RGBA pixels to size×size with nearest-neighbor
// filtering.
func resampleNearest(pixels []byte, width, height, size int) []byte {
	src := &image.RGBA{
		Pix:    pixels,
		Stride: width * 4,
		Rect:   image.Rect(0, 0, width, height),
	}
	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	xdraw.NearestNeighbor.Scale(dst, dst.Rect, src, src.Rect, xdraw.Src, nil)
	return dst.Pix
}

func solidColor(size int, r, g, b, a byte) []byte {
	px := make([]byte, size*size*4)
	for i := 0; i < len(px); i += 4 {
		px[i] = r
		px[i+1] = g
		px[i+2] = b
		px[i+3] = a
	}
	return px
}

// mipLevelCount returns the full chain length for a square texture.
func mipLevelCount(size int) int {
	levels := 1
	for size > 1 {
		size >>= 1
		levels++
	}
	return levels
}

// generateMipChain builds the full mip chain for square RGBA pixels using a
// 2×2 box filter per level. Level 0 is the input.
func generateMipChain(base []byte, size int) [][]byte {
	chain := [][]byte{base}
	prev := base
	prevSize := size
	for prevSize > 1 {
		next := prevSize >> 1
		if next < 1 {
			next = 1
		}
		mip := make([]byte, next*next*4)
		for y := 0; y < next; y++ {
			for x := 0; x < next; x++ {
				for c := 0; c < 4; c++ {
					sum := int(prev[((y*2)*prevSize+x*2)*4+c]) +
						int(prev[((y*2)*prevSize+minInt(x*2+1, prevSize-1))*4+c]) +
						int(prev[(minInt(y*2+1, prevSize-1)*prevSize+x*2)*4+c]) +
						int(prev[(minInt(y*2+1, prevSize-1)*prevSize+minInt(x*2+1, prevSize-1))*4+c])
					mip[(y*next+x)*4+c] = byte(sum / 4)
				}
			}
		}
		chain = append(chain, mip)
		prev = mip
		prevSize = next
	}
	return chain
}
