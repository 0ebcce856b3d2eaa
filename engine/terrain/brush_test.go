package terrain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func flatHeightmap(res int, height float32) *Heightmap {
	h := NewHeightmap(res)
	for i := range h.Data() {
		h.Data()[i] = height
	}
	return h
}

func centerBrush(radius float32) BrushParams {
	return BrushParams{
		CenterU:   0.5,
		CenterV:   0.5,
		Radius:    radius,
		Strength:  1.0,
		Falloff:   0.5,
		DeltaTime: 0.1,
	}
}

func TestSculptRaiseAndLower(t *testing.T) {
	h := flatHeightmap(65, 0.5)
	before := h.GetHeightAt(0.5, 0.5)

	dirty := ApplySculpt(h, SculptRaise, centerBrush(0.1), 64)
	require.False(t, dirty.Empty())
	assert.Greater(t, h.GetHeightAt(0.5, 0.5), before)

	// Texels outside the brush are untouched.
	assert.Equal(t, float32(0.5), h.GetHeightAt(0.05, 0.05))

	h2 := flatHeightmap(65, 0.5)
	ApplySculpt(h2, SculptLower, centerBrush(0.1), 64)
	assert.Less(t, h2.GetHeightAt(0.5, 0.5), before)
}

func TestSculptClampsToUnitRange(t *testing.T) {
	h := flatHeightmap(65, 0.99)
	p := centerBrush(0.2)
	p.Strength = 100

	ApplySculpt(h, SculptRaise, p, 1)
	for _, v := range h.Data() {
		assert.LessOrEqual(t, v, float32(1))
	}

	h2 := flatHeightmap(65, 0.01)
	ApplySculpt(h2, SculptLower, p, 1)
	for _, v := range h2.Data() {
		assert.GreaterOrEqual(t, v, float32(0))
	}
}

func TestSculptDirtyRectBoundsTheBrush(t *testing.T) {
	h := flatHeightmap(129, 0.5)
	dirty := ApplySculpt(h, SculptRaise, centerBrush(0.1), 64)
	require.False(t, dirty.Empty())

	// radius 0.1 of 128 texels = 12.8 around texel 64.
	assert.GreaterOrEqual(t, dirty.MinX, 50)
	assert.LessOrEqual(t, dirty.MaxX, 78)
	assert.GreaterOrEqual(t, dirty.MinY, 50)
	assert.LessOrEqual(t, dirty.MaxY, 78)
}

func TestSculptSmoothReducesRoughness(t *testing.T) {
	h := NewHeightmap(65)
	params := DefaultFBMParams()
	params.Seed = 3
	h.GenerateFBM(params)

	roughBefore := roughness(h, 20, 44)
	p := centerBrush(0.4)
	p.Strength = 5
	ApplySculpt(h, SculptSmooth, p, 64)
	roughAfter := roughness(h, 20, 44)

	assert.Less(t, roughAfter, roughBefore)
}

// roughness sums absolute height steps between horizontal neighbors in the
// given texel window.
func roughness(h *Heightmap, lo, hi int) float32 {
	var sum float32
	for y := lo; y < hi; y++ {
		for x := lo; x < hi-1; x++ {
			sum += abs32(h.At(x+1, y) - h.At(x, y))
		}
	}
	return sum
}

func TestSculptFlattenPullsTowardCenterHeight(t *testing.T) {
	h := NewHeightmap(65)
	params := DefaultFBMParams()
	params.Seed = 9
	h.GenerateFBM(params)

	target := h.GetHeightAt(0.5, 0.5)
	sample := h.At(34, 32)
	distBefore := abs32(sample - target)

	p := centerBrush(0.2)
	p.Strength = 5
	ApplySculpt(h, SculptFlatten, p, 64)

	distAfter := abs32(h.At(34, 32) - target)
	assert.LessOrEqual(t, distAfter, distBefore)
}

func TestSculptLevelUsesTargetHeight(t *testing.T) {
	h := flatHeightmap(65, 0.2)
	p := centerBrush(0.2)
	p.Strength = 50
	p.TargetHeight = 0.8

	ApplySculpt(h, SculptLevel, p, 64)
	assert.InDelta(t, 0.8, h.GetHeightAt(0.5, 0.5), 1e-3)
}

func TestBrushWeightProfile(t *testing.T) {
	// Full weight at the center, zero at and beyond the radius.
	assert.InDelta(t, 1.0, brushWeight(0, 0), 1e-6)
	assert.InDelta(t, 1.0, brushWeight(0, 1), 1e-6)
	assert.Equal(t, float32(0), brushWeight(1, 0.5))
	assert.Equal(t, float32(0), brushWeight(2, 0.5))

	// Monotonically non-increasing with distance for any falloff blend.
	for _, falloff := range []float32{0, 0.5, 1} {
		prev := brushWeight(0, falloff)
		for d := float32(0.1); d < 1; d += 0.1 {
			w := brushWeight(d, falloff)
			assert.LessOrEqual(t, w, prev)
			prev = w
		}
	}
}
