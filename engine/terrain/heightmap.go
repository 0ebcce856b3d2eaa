package terrain

import (
	"encoding/binary"
	"fmt"
	"image"
	"image/png"
	"math"
	"os"

	"github.com/chewxy/math32"
)

// Heightmap stores terrain elevation as row-major float32 values in [0, 1].
// The CPU copy is authoritative; the GPU mirror (an R32F texture) is uploaded
// from it whenever a region is modified.
type Heightmap struct {
	resolution int
	data       []float32
}

// NewHeightmap allocates a flat heightmap of resolution×resolution samples.
//
// Parameters:
//   - resolution: number of samples per axis (must be > 1)
//
// Returns:
//   - *Heightmap: the zero-initialized heightmap
func NewHeightmap(resolution int) *Heightmap {
	if resolution < 2 {
		resolution = 2
	}
	return &Heightmap{
		resolution: resolution,
		data:       make([]float32, resolution*resolution),
	}
}

// Resolution returns the number of samples per axis.
func (h *Heightmap) Resolution() int {
	return h.resolution
}

// Data returns the underlying row-major sample slice. Mutations through the
// returned slice are visible to subsequent sampling calls.
func (h *Heightmap) Data() []float32 {
	return h.data
}

// At returns the sample at texel (x, y), clamping out-of-range coordinates to
// the nearest edge texel.
func (h *Heightmap) At(x, y int) float32 {
	if x < 0 {
		x = 0
	} else if x >= h.resolution {
		x = h.resolution - 1
	}
	if y < 0 {
		y = 0
	} else if y >= h.resolution {
		y = h.resolution - 1
	}
	return h.data[y*h.resolution+x]
}

// Set writes the sample at texel (x, y), clamping the value to [0, 1].
// Out-of-range coordinates are ignored.
func (h *Heightmap) Set(x, y int, v float32) {
	if x < 0 || x >= h.resolution || y < 0 || y >= h.resolution {
		return
	}
	if v < 0 {
		v = 0
	} else if v > 1 {
		v = 1
	}
	h.data[y*h.resolution+x] = v
}

// GetHeightAt samples the heightmap at normalized coordinates (u, v) in
// [0, 1] with bilinear filtering. Coordinates outside the range are clamped.
//
// Parameters:
//   - u: normalized X coordinate
//   - v: normalized Z coordinate
//
// Returns:
//   - float32: interpolated height in [0, 1]
func (h *Heightmap) GetHeightAt(u, v float32) float32 {
	fx := clamp01(u) * float32(h.resolution-1)
	fy := clamp01(v) * float32(h.resolution-1)

	x0 := int(fx)
	y0 := int(fy)
	tx := fx - float32(x0)
	ty := fy - float32(y0)

	h00 := h.At(x0, y0)
	h10 := h.At(x0+1, y0)
	h01 := h.At(x0, y0+1)
	h11 := h.At(x0+1, y0+1)

	top := h00 + (h10-h00)*tx
	bottom := h01 + (h11-h01)*tx
	return top + (bottom-top)*ty
}

// GetNormalAt computes the world-space surface normal at normalized
// coordinates (u, v) from central differences of neighboring texels.
//
// Parameters:
//   - u, v: normalized terrain coordinates
//   - worldSizeX, worldSizeZ: terrain extent in world units per axis
//   - heightScale: world-unit height of a sample value of 1.0
//
// Returns:
//   - [3]float32: the normalized surface normal
func (h *Heightmap) GetNormalAt(u, v, worldSizeX, worldSizeZ, heightScale float32) [3]float32 {
	x := int(clamp01(u) * float32(h.resolution-1))
	y := int(clamp01(v) * float32(h.resolution-1))

	texelX := worldSizeX / float32(h.resolution-1)
	texelZ := worldSizeZ / float32(h.resolution-1)

	dhdx := (h.At(x+1, y) - h.At(x-1, y)) * heightScale / (2 * texelX)
	dhdz := (h.At(x, y+1) - h.At(x, y-1)) * heightScale / (2 * texelZ)

	nx, ny, nz := -dhdx, float32(1), -dhdz
	inv := 1.0 / math32.Sqrt(nx*nx+ny*ny+nz*nz)
	return [3]float32{nx * inv, ny * inv, nz * inv}
}

// GenerateFBM fills the heightmap with fractal Brownian motion simplex noise.
// The summed octaves are remapped from their signed range into [0, 1] and
// clamped. Equal parameters always produce equal terrain.
//
// Parameters:
//   - params: the fBm configuration
func (h *Heightmap) GenerateFBM(params FBMParams) {
	if params.Octaves < 1 {
		params.Octaves = 1
	}
	noise := newSimplexNoise(params.Seed)

	// Normalization factor: the worst-case sum of octave amplitudes.
	maxAmp := float32(0)
	amp := params.Amplitude
	for o := 0; o < params.Octaves; o++ {
		maxAmp += amp
		amp *= params.Persistence
	}
	if maxAmp <= 0 {
		maxAmp = 1
	}

	inv := 1.0 / float32(h.resolution-1)
	for y := 0; y < h.resolution; y++ {
		for x := 0; x < h.resolution; x++ {
			n := fbm(noise, params, float32(x)*inv, float32(y)*inv)
			h.data[y*h.resolution+x] = clamp01(0.5 + 0.5*n/maxAmp)
		}
	}
}

// LoadHeightmapPNG16 loads a heightmap from a 16-bit grayscale PNG. 8-bit
// grayscale images are accepted and upscaled; other color models are an error.
//
// Parameters:
//   - path: file path of the PNG image
//
// Returns:
//   - *Heightmap: the loaded heightmap
//   - error: nil on success
func LoadHeightmapPNG16(path string) (*Heightmap, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open heightmap %s: %w", path, err)
	}
	defer f.Close()

	img, err := png.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode heightmap %s: %w", path, err)
	}

	bounds := img.Bounds()
	if bounds.Dx() != bounds.Dy() {
		return nil, fmt.Errorf("heightmap %s is not square (%dx%d)", path, bounds.Dx(), bounds.Dy())
	}

	h := NewHeightmap(bounds.Dx())
	switch src := img.(type) {
	case *image.Gray16:
		for y := 0; y < h.resolution; y++ {
			for x := 0; x < h.resolution; x++ {
				v := binary.BigEndian.Uint16(src.Pix[y*src.Stride+x*2:])
				h.data[y*h.resolution+x] = float32(v) / 65535.0
			}
		}
	case *image.Gray:
		for y := 0; y < h.resolution; y++ {
			for x := 0; x < h.resolution; x++ {
				h.data[y*h.resolution+x] = float32(src.Pix[y*src.Stride+x]) / 255.0
			}
		}
	default:
		return nil, fmt.Errorf("heightmap %s: unsupported color model %T, want 16-bit grayscale", path, img)
	}
	return h, nil
}

// LoadHeightmapRaw32 loads a heightmap from raw little-endian float32 data.
// The file size must be exactly resolution² × 4 bytes.
//
// Parameters:
//   - path: file path of the raw R32F dump
//   - resolution: samples per axis
//
// Returns:
//   - *Heightmap: the loaded heightmap
//   - error: nil on success
func LoadHeightmapRaw32(path string, resolution int) (*Heightmap, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read heightmap %s: %w", path, err)
	}
	want := resolution * resolution * 4
	if len(raw) != want {
		return nil, fmt.Errorf("heightmap %s: size %d does not match resolution %d (want %d bytes)", path, len(raw), resolution, want)
	}

	h := NewHeightmap(resolution)
	for i := range h.data {
		h.data[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
	}
	return h, nil
}

// SaveRaw32 writes the heightmap as raw little-endian float32 data.
//
// Parameters:
//   - path: destination file path
//
// Returns:
//   - error: nil on success
func (h *Heightmap) SaveRaw32(path string) error {
	buf := make([]byte, len(h.data)*4)
	for i, v := range h.data {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		return fmt.Errorf("failed to write heightmap %s: %w", path, err)
	}
	return nil
}

// SavePNG16 writes the heightmap as a 16-bit grayscale PNG.
//
// Parameters:
//   - path: destination file path
//
// Returns:
//   - error: nil on success
func (h *Heightmap) SavePNG16(path string) error {
	img := image.NewGray16(image.Rect(0, 0, h.resolution, h.resolution))
	for y := 0; y < h.resolution; y++ {
		for x := 0; x < h.resolution; x++ {
			v := uint16(clamp01(h.data[y*h.resolution+x]) * 65535.0)
			binary.BigEndian.PutUint16(img.Pix[y*img.Stride+x*2:], v)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create heightmap %s: %w", path, err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		return fmt.Errorf("failed to encode heightmap %s: %w", path, err)
	}
	return nil
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
