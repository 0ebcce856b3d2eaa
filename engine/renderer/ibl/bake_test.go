package ibl

import (
	"encoding/binary"
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// constantEnvironment builds a uniform radiance map.
func constantEnvironment(r, g, b float32) *Environment {
	const w, h = 16, 8
	env := &Environment{Width: w, Height: h, Pixels: make([]float32, w*h*3)}
	for i := 0; i < w*h; i++ {
		env.Pixels[i*3+0] = r
		env.Pixels[i*3+1] = g
		env.Pixels[i*3+2] = b
	}
	return env
}

func texelRGB(data []byte, texel int) [3]float32 {
	off := texel * 16
	return [3]float32{
		math.Float32frombits(binary.LittleEndian.Uint32(data[off:])),
		math.Float32frombits(binary.LittleEndian.Uint32(data[off+4:])),
		math.Float32frombits(binary.LittleEndian.Uint32(data[off+8:])),
	}
}

func TestBakeBRDFLUTStaysEnergyConserving(t *testing.T) {
	cfg := Config{BRDFLUTSize: 16, SampleCount: 256}
	entry := BakeBRDFLUT(cfg)

	assert.Equal(t, uint32(16), entry.Width)
	assert.Equal(t, FormatRG32Float, entry.Format)
	assert.Equal(t, uint32(1), entry.FaceCount)
	require.Len(t, entry.Data, 16*16*8)

	for i := 0; i < 16*16; i++ {
		scale := math.Float32frombits(binary.LittleEndian.Uint32(entry.Data[i*8:]))
		bias := math.Float32frombits(binary.LittleEndian.Uint32(entry.Data[i*8+4:]))
		assert.GreaterOrEqual(t, scale, float32(0))
		assert.GreaterOrEqual(t, bias, float32(0))
		assert.LessOrEqual(t, scale+bias, float32(1.05), "texel %d exceeds unit response", i)
	}
}

func TestBakeIrradianceOfUniformEnvironmentIsUniform(t *testing.T) {
	env := constantEnvironment(0.2, 0.5, 0.8)
	cfg := Config{IrradianceSize: 4, SampleCount: 64}
	entry := BakeIrradiance(env, cfg)

	assert.Equal(t, uint32(6), entry.FaceCount)
	assert.Equal(t, FormatRGBA32Float, entry.Format)
	require.Len(t, entry.Data, 6*4*4*16)

	// A constant environment convolves to itself under the cosine kernel.
	for texel := 0; texel < 6*4*4; texel++ {
		c := texelRGB(entry.Data, texel)
		assert.InDelta(t, 0.2, c[0], 1e-4)
		assert.InDelta(t, 0.5, c[1], 1e-4)
		assert.InDelta(t, 0.8, c[2], 1e-4)
	}
}

func TestBakePrefilterMipChainLayout(t *testing.T) {
	env := constantEnvironment(1, 1, 1)
	cfg := Config{PrefilterSize: 8, PrefilterMipLevels: 4, SampleCount: 32}
	entry := BakePrefilter(env, cfg)

	assert.Equal(t, uint32(8), entry.Width)
	assert.Equal(t, uint32(4), entry.MipLevels)
	assert.Equal(t, uint32(6), entry.FaceCount)

	// Mip sizes 8, 4, 2, 1; six RGBA32Float faces each.
	want := 0
	for _, size := range []int{8, 4, 2, 1} {
		want += 6 * size * size * 16
	}
	require.Len(t, entry.Data, want)

	// A white environment stays white at every roughness.
	for texel := 0; texel < 6*8*8; texel++ {
		c := texelRGB(entry.Data, texel)
		assert.InDelta(t, 1.0, c[0], 1e-4)
	}
	lastMipOffset := want - 6*16
	for texel := 0; texel < 6; texel++ {
		c := texelRGB(entry.Data[lastMipOffset:], texel)
		assert.InDelta(t, 1.0, c[1], 1e-4)
	}
}

func TestEnvironmentFromImageLinearizesChannels(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	for y := 0; y < 2; y++ {
		for x := 0; x < 2; x++ {
			img.Set(x, y, color.RGBA{R: 255, G: 255, B: 255, A: 255})
		}
	}

	env, err := EnvironmentFromImage(img)
	require.NoError(t, err)
	assert.Equal(t, 2, env.Width)
	assert.Equal(t, 2, env.Height)
	require.Len(t, env.Pixels, 12)
	for _, p := range env.Pixels {
		assert.InDelta(t, 1.0, p, 1e-4, "white stays white after linearization")
	}

	// Mid-gray moves toward zero under the sRGB curve.
	img.Set(0, 0, color.RGBA{R: 128, G: 128, B: 128, A: 255})
	env, err = EnvironmentFromImage(img)
	require.NoError(t, err)
	assert.InDelta(t, 0.2158, env.Pixels[0], 1e-3)
}

func TestBakedEntriesRoundTripThroughCache(t *testing.T) {
	c := NewCache(t.TempDir())
	cfg := Config{BRDFLUTSize: 8, SampleCount: 64}

	entry := BakeBRDFLUT(cfg)
	require.NoError(t, c.Store(EntryBRDFLUT, "", cfg, entry))

	loaded, err := c.Load(EntryBRDFLUT, "", cfg)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, entry.Format, loaded.Format)
	assert.Equal(t, entry.Data, loaded.Data)
}
