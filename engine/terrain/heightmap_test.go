package terrain

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetHeightAtBilinear(t *testing.T) {
	h := NewHeightmap(3)
	h.Set(0, 0, 0.0)
	h.Set(2, 0, 1.0)
	h.Set(0, 2, 0.0)
	h.Set(2, 2, 1.0)
	h.Set(1, 0, 0.5)
	h.Set(1, 2, 0.5)

	// Exact texel hits.
	assert.InDelta(t, 0.0, h.GetHeightAt(0, 0), 1e-6)
	assert.InDelta(t, 1.0, h.GetHeightAt(1, 0), 1e-6)

	// Midway between texels (0,0) and (1,0): u=0.25 lands halfway along
	// the first cell.
	assert.InDelta(t, 0.25, h.GetHeightAt(0.25, 0), 1e-6)

	// Out-of-range coordinates clamp to the edge.
	assert.InDelta(t, 0.0, h.GetHeightAt(-5, 0.5), 1e-6)
	assert.InDelta(t, 1.0, h.GetHeightAt(5, 0.5), 1e-6)
}

func TestGetNormalAtFlatTerrainPointsUp(t *testing.T) {
	h := NewHeightmap(16)
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			h.Set(x, y, 0.5)
		}
	}

	n := h.GetNormalAt(0.5, 0.5, 100, 100, 50)
	assert.InDelta(t, 0.0, n[0], 1e-6)
	assert.InDelta(t, 1.0, n[1], 1e-6)
	assert.InDelta(t, 0.0, n[2], 1e-6)
}

func TestGetNormalAtSlopeTiltsAgainstGradient(t *testing.T) {
	h := NewHeightmap(16)
	// Ramp rising along +X.
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			h.Set(x, y, float32(x)/15.0)
		}
	}

	n := h.GetNormalAt(0.5, 0.5, 100, 100, 50)
	assert.Negative(t, n[0], "normal must lean away from the uphill direction")
	assert.Positive(t, n[1])
	assert.InDelta(t, 0.0, n[2], 1e-5)

	// Unit length.
	lenSq := n[0]*n[0] + n[1]*n[1] + n[2]*n[2]
	assert.InDelta(t, 1.0, lenSq, 1e-5)
}

func TestGenerateFBMDeterministicAndInRange(t *testing.T) {
	params := DefaultFBMParams()
	params.Seed = 42

	a := NewHeightmap(64)
	a.GenerateFBM(params)
	b := NewHeightmap(64)
	b.GenerateFBM(params)

	assert.Equal(t, a.Data(), b.Data(), "equal seeds must generate equal terrain")

	minV, maxV := float32(1), float32(0)
	for _, v := range a.Data() {
		require.GreaterOrEqual(t, v, float32(0))
		require.LessOrEqual(t, v, float32(1))
		if v < minV {
			minV = v
		}
		if v > maxV {
			maxV = v
		}
	}
	assert.Greater(t, maxV-minV, float32(0.05), "generated terrain should not be flat")

	params.Seed = 43
	c := NewHeightmap(64)
	c.GenerateFBM(params)
	assert.NotEqual(t, a.Data(), c.Data(), "different seeds must differ")
}

func TestRaw32RoundTrip(t *testing.T) {
	h := NewHeightmap(8)
	h.GenerateFBM(DefaultFBMParams())

	path := filepath.Join(t.TempDir(), "tile.r32")
	require.NoError(t, h.SaveRaw32(path))

	loaded, err := LoadHeightmapRaw32(path, 8)
	require.NoError(t, err)
	assert.Equal(t, h.Data(), loaded.Data())

	_, err = LoadHeightmapRaw32(path, 16)
	assert.Error(t, err, "resolution mismatch must be rejected")
}

func TestPNG16RoundTrip(t *testing.T) {
	h := NewHeightmap(8)
	h.GenerateFBM(DefaultFBMParams())

	path := filepath.Join(t.TempDir(), "tile.png")
	require.NoError(t, h.SavePNG16(path))

	loaded, err := LoadHeightmapPNG16(path)
	require.NoError(t, err)
	require.Equal(t, 8, loaded.Resolution())
	for i := range h.Data() {
		assert.InDelta(t, h.Data()[i], loaded.Data()[i], 1.0/65535.0*2)
	}
}
