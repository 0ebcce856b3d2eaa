package terrain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func channelSum(s *SplatmapSet, x, y int) int {
	sum := 0
	for l := 0; l < MaxTerrainLayers; l++ {
		sum += int(s.Weight(l, x, y))
	}
	return sum
}

func TestNewSplatmapSetInitializesLayerZero(t *testing.T) {
	s := NewSplatmapSet(16, 4)
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			assert.Equal(t, byte(255), s.Weight(0, x, y))
			assert.Equal(t, 255, channelSum(s, x, y))
		}
	}

	// With no layers, the maps stay zeroed.
	empty := NewSplatmapSet(4, 0)
	assert.Equal(t, byte(0), empty.Weight(0, 1, 1))
}

func TestPaintAddsWeightAndKeepsSumNormalized(t *testing.T) {
	s := NewSplatmapSet(64, 8)
	p := centerBrush(0.2)
	p.Strength = 10

	dirty := s.Paint(3, p)
	require.False(t, dirty.Empty())

	// The painted layer gained weight at the brush center.
	assert.Greater(t, s.Weight(3, 32, 32), byte(0))
	// Layer 0 lost a corresponding share.
	assert.Less(t, s.Weight(0, 32, 32), byte(255))

	// Every painted texel still sums to 255 across all eight channels.
	for y := dirty.MinY; y <= dirty.MaxY; y++ {
		for x := dirty.MinX; x <= dirty.MaxX; x++ {
			assert.Equal(t, 255, channelSum(s, x, y), "texel (%d,%d)", x, y)
		}
	}
}

func TestPaintSecondSplatmapLayer(t *testing.T) {
	s := NewSplatmapSet(32, 8)
	p := centerBrush(0.3)
	p.Strength = 50
	p.DeltaTime = 1

	// Layer 6 lives in channel 2 of the second splatmap.
	dirty := s.Paint(6, p)
	require.False(t, dirty.Empty())
	assert.Greater(t, s.Weight(6, 16, 16), byte(0))
	assert.Equal(t, 255, channelSum(s, 16, 16))

	px := s.Pixels(1)
	assert.Greater(t, px[(16*32+16)*4+2], byte(0))
}

func TestPaintRejectsInvalidLayer(t *testing.T) {
	s := NewSplatmapSet(16, 8)
	assert.True(t, s.Paint(-1, centerBrush(0.2)).Empty())
	assert.True(t, s.Paint(MaxTerrainLayers, centerBrush(0.2)).Empty())
}

func TestPaintFullStrengthMakesPaintedLayerDominant(t *testing.T) {
	s := NewSplatmapSet(256, 8)
	p := centerBrush(0.05)
	p.Strength = 1000
	p.DeltaTime = 1

	dirty := s.Paint(2, p)
	require.False(t, dirty.Empty())

	// Full-strength paint over a layer-0=255 texel rescales both channels to
	// 127; the rounding remainder must land on the painted layer, not layer 0.
	cx, cy := 128, 128
	assert.Equal(t, 255, channelSum(s, cx, cy))
	painted := s.Weight(2, cx, cy)
	for l := 0; l < MaxTerrainLayers; l++ {
		if l == 2 {
			continue
		}
		assert.LessOrEqual(t, s.Weight(l, cx, cy), painted, "layer %d outweighs the painted layer", l)
	}
	assert.Greater(t, painted, byte(0))
}

func TestRepeatedPaintSaturates(t *testing.T) {
	s := NewSplatmapSet(32, 8)
	p := centerBrush(0.3)
	p.Strength = 100
	p.DeltaTime = 1

	for i := 0; i < 10; i++ {
		s.Paint(5, p)
	}
	// The painted layer dominates its texel but the sum invariant holds.
	assert.Greater(t, s.Weight(5, 16, 16), byte(200))
	assert.Equal(t, 255, channelSum(s, 16, 16))
}
