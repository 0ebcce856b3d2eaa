package environment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnowRingExtentsDouble(t *testing.T) {
	s := NewSnow(WithSnowBaseExtent(32))
	s.Update([3]float32{0, 10, 0}, 1)

	u := s.Uniform()
	assert.Equal(t, float32(32), u.RingCenterExtent[0][2])
	assert.Equal(t, float32(64), u.RingCenterExtent[1][2])
	assert.Equal(t, float32(128), u.RingCenterExtent[2][2])
	assert.Equal(t, float32(SnowClipmapRings), u.RingCount)
}

func TestSnowRingCentersSnapToTexelGrid(t *testing.T) {
	s := NewSnow(WithSnowBaseExtent(32))

	s.Update([3]float32{0, 10, 0}, 1)
	a := s.Uniform()

	// A sub-texel camera move must not change the ring matrices.
	texel := a.RingCenterExtent[0][3]
	require.Greater(t, texel, float32(0))
	s.Update([3]float32{texel * 0.4, 10, texel * 0.4}, 2)
	b := s.Uniform()

	for r := 0; r < SnowClipmapRings; r++ {
		assert.Equal(t, a.RingVP[r], b.RingVP[r], "ring %d shifted inside one texel", r)
		assert.Equal(t, a.RingCenterExtent[r][0], b.RingCenterExtent[r][0])
	}

	// A whole-texel move shifts the center by exactly one texel.
	s.Update([3]float32{texel, 10, 0}, 3)
	c := s.Uniform()
	assert.InDelta(t, float64(a.RingCenterExtent[0][0]+texel), float64(c.RingCenterExtent[0][0]), 1e-5)
}

func TestSnowDeformerBudget(t *testing.T) {
	s := NewSnow()
	for i := 0; i < MaxSnowDeformers; i++ {
		require.True(t, s.SubmitDeformer(GPUSnowDeformer{Radius: 1, Depth: 0.1}))
	}
	assert.False(t, s.SubmitDeformer(GPUSnowDeformer{}), "budget exhausted")

	u := s.Uniform()
	assert.Equal(t, float32(MaxSnowDeformers), u.DeformerCount)

	taken := s.TakeDeformers()
	assert.Len(t, taken, MaxSnowDeformers)
	assert.Empty(t, s.TakeDeformers(), "queue clears after take")
	assert.True(t, s.SubmitDeformer(GPUSnowDeformer{}), "budget resets after take")
}

func TestSnowPendingClearConsumedOnce(t *testing.T) {
	s := NewSnow()
	assert.False(t, s.TakePendingClear())

	s.RequestClear()
	assert.True(t, s.TakePendingClear())
	assert.False(t, s.TakePendingClear())
}

func TestSnowUniformMarshalLayout(t *testing.T) {
	s := NewSnow(WithSnowRates(0.5, 0.25, 0.125), WithSnowDensity(1))
	s.Update([3]float32{0, 10, 0}, 2)

	u := s.Uniform()
	require.Equal(t, 320, u.Size())

	buf := u.Marshal()
	require.Len(t, buf, 320)
	assert.Equal(t, uint32(0x3f000000), leU32(buf[240:244])) // accumulation = 0.5
	assert.Equal(t, uint32(0x3e800000), leU32(buf[244:248])) // melt = 0.25
	assert.Equal(t, uint32(0x3f800000), leU32(buf[256:260])) // enabled = 1.0
	assert.Equal(t, uint32(0x40000000), leU32(buf[264:268])) // time = 2.0
}

func TestSnowDeformerMarshalFixedCapacity(t *testing.T) {
	d := GPUSnowDeformer{Position: [3]float32{1, 0, 2}, Radius: 3, Depth: 0.5}
	require.Equal(t, 32, d.Size())

	buf := MarshalSnowDeformers([]GPUSnowDeformer{d})
	require.Len(t, buf, MaxSnowDeformers*32)
	assert.Equal(t, uint32(0x3f800000), leU32(buf[0:4]))   // position.x = 1.0
	assert.Equal(t, uint32(0x40400000), leU32(buf[12:16])) // radius = 3.0
	assert.Equal(t, uint32(0), leU32(buf[32:36]), "unused slots stay zero")
}

func TestSnowParamsMarshal(t *testing.T) {
	p := GPUSnowParams{SnowColor: [3]float32{1, 1, 1}, CoverageScale: 1}
	require.Equal(t, 80, p.Size())
	buf := p.Marshal()
	require.Len(t, buf, 80)
	assert.Equal(t, uint32(0x3f800000), leU32(buf[12:16]))
}
