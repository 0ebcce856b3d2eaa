package ibl

import (
	"encoding/binary"
	"fmt"
	"image"
	"math"

	"github.com/chewxy/math32"
)

// Texel format tags stored in Entry.Format.
const (
	// FormatRGBA32Float is four float32 channels per texel.
	FormatRGBA32Float uint32 = 1

	// FormatRG32Float is two float32 channels per texel, used by the BRDF LUT.
	FormatRG32Float uint32 = 2
)

// Environment is a linear-light equirectangular radiance map, the source for
// the irradiance and prefilter convolutions. Pixels holds RGB triplets in
// row-major order.
type Environment struct {
	Width  int
	Height int
	Pixels []float32
}

// EnvironmentFromImage converts a decoded image to a linear-light environment
// map. Channels are de-gamma'd from sRGB.
//
// Parameters:
//   - img: the decoded equirectangular image
//
// Returns:
//   - *Environment: the linear radiance map
//   - error: an error if the image is empty
func EnvironmentFromImage(img image.Image) (*Environment, error) {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("environment image is empty")
	}

	env := &Environment{
		Width:  w,
		Height: h,
		Pixels: make([]float32, w*h*3),
	}
	i := 0
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			env.Pixels[i+0] = srgbToLinear(float32(r) / 65535)
			env.Pixels[i+1] = srgbToLinear(float32(g) / 65535)
			env.Pixels[i+2] = srgbToLinear(float32(b) / 65535)
			i += 3
		}
	}
	return env, nil
}

// srgbToLinear applies the sRGB electro-optical transfer function.
func srgbToLinear(c float32) float32 {
	if c <= 0.04045 {
		return c / 12.92
	}
	return math32.Pow((c+0.055)/1.055, 2.4)
}

// Sample returns the radiance along a direction using the equirectangular
// mapping. Nearest-texel lookup; the convolutions average thousands of
// samples, so filtering here buys nothing.
//
// Parameters:
//   - dir: the (not necessarily normalized) sample direction
//
// Returns:
//   - [3]float32: the RGB radiance
func (e *Environment) Sample(dir [3]float32) [3]float32 {
	d := normalize3(dir)
	u := math32.Atan2(d[2], d[0])/(2*math32.Pi) + 0.5
	v := math32.Acos(clampf(d[1], -1, 1)) / math32.Pi

	x := int(u * float32(e.Width))
	y := int(v * float32(e.Height))
	if x >= e.Width {
		x = e.Width - 1
	}
	if y >= e.Height {
		y = e.Height - 1
	}
	if x < 0 {
		x = 0
	}
	if y < 0 {
		y = 0
	}

	i := (y*e.Width + x) * 3
	return [3]float32{e.Pixels[i], e.Pixels[i+1], e.Pixels[i+2]}
}

// BakeBRDFLUT integrates the split-sum environment BRDF into a
// BRDFLUTSize² RG32Float lookup table: R is the Fresnel scale term, G the
// bias. X indexes N·V, Y indexes roughness.
//
// Parameters:
//   - cfg: the IBL configuration (BRDFLUTSize, SampleCount)
//
// Returns:
//   - *Entry: the LUT as a single-face, single-mip entry
func BakeBRDFLUT(cfg Config) *Entry {
	size := int(cfg.BRDFLUTSize)
	data := make([]byte, 0, size*size*8)

	for y := 0; y < size; y++ {
		roughness := (float32(y) + 0.5) / float32(size)
		for x := 0; x < size; x++ {
			nov := (float32(x) + 0.5) / float32(size)
			scale, bias := integrateBRDF(nov, roughness, cfg.SampleCount)
			data = appendFloat32(data, scale)
			data = appendFloat32(data, bias)
		}
	}

	return &Entry{
		Width:     cfg.BRDFLUTSize,
		Height:    cfg.BRDFLUTSize,
		Format:    FormatRG32Float,
		MipLevels: 1,
		FaceCount: 1,
		Data:      data,
	}
}

// integrateBRDF Monte Carlo integrates the GGX environment BRDF for one
// (N·V, roughness) pair, returning the F0 scale and bias of the split-sum
// approximation.
func integrateBRDF(nov, roughness float32, samples uint32) (scale, bias float32) {
	v := [3]float32{math32.Sqrt(1 - nov*nov), 0, nov}
	n := [3]float32{0, 0, 1}

	for i := uint32(0); i < samples; i++ {
		x1, x2 := hammersley(i, samples)
		h := importanceSampleGGX(x1, x2, roughness, n)
		l := reflect3(neg3(v), h)

		nol := l[2]
		if nol <= 0 {
			continue
		}
		noh := math32.Max(h[2], 0)
		voh := math32.Max(dot3(v, h), 0)

		g := geometrySmithIBL(nov, nol, roughness)
		gvis := g * voh / (noh * nov)
		fc := math32.Pow(1-voh, 5)

		scale += (1 - fc) * gvis
		bias += fc * gvis
	}

	inv := 1 / float32(samples)
	return scale * inv, bias * inv
}

// BakeIrradiance convolves the environment into a diffuse irradiance cubemap
// using cosine-weighted hemisphere sampling. Faces are packed +X, -X, +Y, -Y,
// +Z, -Z, each IrradianceSize² RGBA32Float texels.
//
// Parameters:
//   - env: the source environment map
//   - cfg: the IBL configuration (IrradianceSize, SampleCount)
//
// Returns:
//   - *Entry: the six-face, single-mip irradiance cubemap
func BakeIrradiance(env *Environment, cfg Config) *Entry {
	size := int(cfg.IrradianceSize)
	data := make([]byte, 0, 6*size*size*16)

	for face := 0; face < 6; face++ {
		for y := 0; y < size; y++ {
			for x := 0; x < size; x++ {
				n := faceDirection(face, x, y, size)
				data = appendRGBA(data, convolveIrradiance(env, n, cfg.SampleCount))
			}
		}
	}

	return &Entry{
		Width:     cfg.IrradianceSize,
		Height:    cfg.IrradianceSize,
		Format:    FormatRGBA32Float,
		MipLevels: 1,
		FaceCount: 6,
		Data:      data,
	}
}

// convolveIrradiance averages cosine-weighted environment samples over the
// hemisphere around n. With cosine-weighted importance sampling the
// cos/pdf terms cancel, leaving a plain average.
func convolveIrradiance(env *Environment, n [3]float32, samples uint32) [3]float32 {
	tangent, bitangent := orthonormalBasis(n)

	var sum [3]float32
	for i := uint32(0); i < samples; i++ {
		x1, x2 := hammersley(i, samples)

		// Cosine-weighted hemisphere direction in tangent space.
		r := math32.Sqrt(x1)
		phi := 2 * math32.Pi * x2
		local := [3]float32{r * math32.Cos(phi), r * math32.Sin(phi), math32.Sqrt(1 - x1)}

		dir := [3]float32{
			tangent[0]*local[0] + bitangent[0]*local[1] + n[0]*local[2],
			tangent[1]*local[0] + bitangent[1]*local[1] + n[1]*local[2],
			tangent[2]*local[0] + bitangent[2]*local[1] + n[2]*local[2],
		}
		c := env.Sample(dir)
		sum[0] += c[0]
		sum[1] += c[1]
		sum[2] += c[2]
	}

	inv := 1 / float32(samples)
	return [3]float32{sum[0] * inv, sum[1] * inv, sum[2] * inv}
}

// BakePrefilter convolves the environment into the specular prefiltered
// cubemap: each mip holds the GGX radiance lobe for roughness
// mip/(PrefilterMipLevels-1), faces packed +X, -X, +Y, -Y, +Z, -Z within each
// mip, RGBA32Float texels.
//
// Parameters:
//   - env: the source environment map
//   - cfg: the IBL configuration (PrefilterSize, PrefilterMipLevels, SampleCount)
//
// Returns:
//   - *Entry: the six-face, mip-chained prefilter cubemap
func BakePrefilter(env *Environment, cfg Config) *Entry {
	mips := int(cfg.PrefilterMipLevels)
	if mips < 1 {
		mips = 1
	}

	var data []byte
	for mip := 0; mip < mips; mip++ {
		size := int(cfg.PrefilterSize) >> mip
		if size < 1 {
			size = 1
		}
		roughness := float32(0)
		if mips > 1 {
			roughness = float32(mip) / float32(mips-1)
		}

		for face := 0; face < 6; face++ {
			for y := 0; y < size; y++ {
				for x := 0; x < size; x++ {
					n := faceDirection(face, x, y, size)
					data = appendRGBA(data, convolvePrefilter(env, n, roughness, cfg.SampleCount))
				}
			}
		}
	}

	return &Entry{
		Width:     cfg.PrefilterSize,
		Height:    cfg.PrefilterSize,
		Format:    FormatRGBA32Float,
		MipLevels: uint32(mips),
		FaceCount: 6,
		Data:      data,
	}
}

// convolvePrefilter integrates the GGX specular lobe around n, with the
// usual N = V = R simplification.
func convolvePrefilter(env *Environment, n [3]float32, roughness float32, samples uint32) [3]float32 {
	if roughness <= 0 {
		return env.Sample(n)
	}

	var sum [3]float32
	var weight float32
	for i := uint32(0); i < samples; i++ {
		x1, x2 := hammersley(i, samples)
		h := importanceSampleGGX(x1, x2, roughness, n)
		l := reflect3(neg3(n), h)

		nol := dot3(n, l)
		if nol <= 0 {
			continue
		}
		c := env.Sample(l)
		sum[0] += c[0] * nol
		sum[1] += c[1] * nol
		sum[2] += c[2] * nol
		weight += nol
	}

	if weight == 0 {
		return env.Sample(n)
	}
	return [3]float32{sum[0] / weight, sum[1] / weight, sum[2] / weight}
}

// faceDirection maps a cubemap texel to its world-space direction. Face order
// matches wgpu cube layer order: +X, -X, +Y, -Y, +Z, -Z.
func faceDirection(face, x, y, size int) [3]float32 {
	u := 2*(float32(x)+0.5)/float32(size) - 1
	v := 2*(float32(y)+0.5)/float32(size) - 1

	var dir [3]float32
	switch face {
	case 0:
		dir = [3]float32{1, -v, -u}
	case 1:
		dir = [3]float32{-1, -v, u}
	case 2:
		dir = [3]float32{u, 1, v}
	case 3:
		dir = [3]float32{u, -1, -v}
	case 4:
		dir = [3]float32{u, -v, 1}
	default:
		dir = [3]float32{-u, -v, -1}
	}
	return normalize3(dir)
}

// hammersley returns the i-th point of the n-point Hammersley low-discrepancy
// sequence via radical inverse bit reversal.
func hammersley(i, n uint32) (float32, float32) {
	bits := i
	bits = (bits << 16) | (bits >> 16)
	bits = ((bits & 0x55555555) << 1) | ((bits & 0xAAAAAAAA) >> 1)
	bits = ((bits & 0x33333333) << 2) | ((bits & 0xCCCCCCCC) >> 2)
	bits = ((bits & 0x0F0F0F0F) << 4) | ((bits & 0xF0F0F0F0) >> 4)
	bits = ((bits & 0x00FF00FF) << 8) | ((bits & 0xFF00FF00) >> 8)
	return float32(i) / float32(n), float32(bits) * 2.3283064365386963e-10
}

// importanceSampleGGX maps a 2D sample point to a GGX half vector around n.
func importanceSampleGGX(x1, x2, roughness float32, n [3]float32) [3]float32 {
	a := roughness * roughness

	phi := 2 * math32.Pi * x1
	cosTheta := math32.Sqrt((1 - x2) / (1 + (a*a-1)*x2))
	sinTheta := math32.Sqrt(1 - cosTheta*cosTheta)

	local := [3]float32{sinTheta * math32.Cos(phi), sinTheta * math32.Sin(phi), cosTheta}

	tangent, bitangent := orthonormalBasis(n)
	return [3]float32{
		tangent[0]*local[0] + bitangent[0]*local[1] + n[0]*local[2],
		tangent[1]*local[0] + bitangent[1]*local[1] + n[1]*local[2],
		tangent[2]*local[0] + bitangent[2]*local[1] + n[2]*local[2],
	}
}

// geometrySmithIBL is the Smith height-correlated visibility term with the
// IBL k remapping (k = a²/2).
func geometrySmithIBL(nov, nol, roughness float32) float32 {
	a := roughness * roughness
	k := a / 2
	gv := nov / (nov*(1-k) + k)
	gl := nol / (nol*(1-k) + k)
	return gv * gl
}

// orthonormalBasis builds tangent and bitangent vectors perpendicular to n.
func orthonormalBasis(n [3]float32) (tangent, bitangent [3]float32) {
	up := [3]float32{0, 0, 1}
	if math32.Abs(n[2]) > 0.999 {
		up = [3]float32{1, 0, 0}
	}
	tangent = normalize3(cross3(up, n))
	bitangent = cross3(n, tangent)
	return tangent, bitangent
}

func dot3(a, b [3]float32) float32 {
	return a[0]*b[0] + a[1]*b[1] + a[2]*b[2]
}

func cross3(a, b [3]float32) [3]float32 {
	return [3]float32{
		a[1]*b[2] - a[2]*b[1],
		a[2]*b[0] - a[0]*b[2],
		a[0]*b[1] - a[1]*b[0],
	}
}

func neg3(v [3]float32) [3]float32 {
	return [3]float32{-v[0], -v[1], -v[2]}
}

func normalize3(v [3]float32) [3]float32 {
	n := math32.Sqrt(dot3(v, v))
	if n == 0 {
		return v
	}
	return [3]float32{v[0] / n, v[1] / n, v[2] / n}
}

// reflect3 mirrors the incident vector i across the normal n.
func reflect3(i, n [3]float32) [3]float32 {
	d := 2 * dot3(i, n)
	return [3]float32{i[0] - d*n[0], i[1] - d*n[1], i[2] - d*n[2]}
}

func clampf(v, lo, hi float32) float32 {
	return math32.Min(math32.Max(v, lo), hi)
}

func appendFloat32(data []byte, v float32) []byte {
	return binary.LittleEndian.AppendUint32(data, math.Float32bits(v))
}

// appendRGBA appends an RGB triplet as an RGBA32Float texel with alpha 1.
func appendRGBA(data []byte, c [3]float32) []byte {
	data = appendFloat32(data, c[0])
	data = appendFloat32(data, c[1])
	data = appendFloat32(data, c[2])
	return appendFloat32(data, 1)
}
