package environment

import (
	"testing"

	"github.com/chewxy/math32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWindUpdateCentersGridOnCamera(t *testing.T) {
	w := NewWind(WithWindGridWorldSize(128))
	w.Update([3]float32{100, 20, -40}, 3)

	u := w.Uniform()
	assert.Equal(t, [3]float32{36, -44, -104}, u.GridMin)
	assert.Equal(t, float32(128), u.GridWorldSize)
	assert.Equal(t, float32(3), u.Time)
	assert.Equal(t, float32(WindGridResolution), u.GridResolution)
	assert.Equal(t, float32(1), u.Enabled)
}

func TestWindDirectionFallsBackToPlusX(t *testing.T) {
	w := NewWind(WithWindDirection(0, 0, 0))
	u := w.Uniform()
	assert.Equal(t, [3]float32{1, 0, 0}, u.Direction)

	w.SetDirection(0, 0, 3)
	u = w.Uniform()
	assert.InDelta(t, 1.0, u.Direction[2], 1e-6)
}

func TestWindAtFollowsBaseDirectionAndGust(t *testing.T) {
	w := NewWind(
		WithWindDirection(0, 0, 1),
		WithWindSpeed(5),
		WithGust(0.5, 1),
	)
	w.Update([3]float32{}, 0)

	v := w.WindAt(0, 0, 0)
	assert.Equal(t, float32(0), v[0])
	assert.Equal(t, float32(0), v[1])

	// Gust modulates magnitude within [speed*(1-g), speed*(1+g)].
	mag := math32.Abs(v[2])
	assert.GreaterOrEqual(t, mag, float32(2.5)-1e-4)
	assert.LessOrEqual(t, mag, float32(7.5)+1e-4)
}

func TestWindAtDisabledReturnsZero(t *testing.T) {
	w := NewWind(WithWindEnabled(false))
	assert.Equal(t, [3]float32{}, w.WindAt(1, 2, 3))
	assert.False(t, w.Enabled())

	w.SetEnabled(true)
	assert.True(t, w.Enabled())
	assert.NotEqual(t, [3]float32{}, w.WindAt(1, 2, 3))
}

func TestWindUniformMarshalLayout(t *testing.T) {
	u := GPUWindUniform{
		Direction: [3]float32{1, 0, 0},
		Speed:     4,
		Time:      2,
	}
	require.Equal(t, 64, u.Size())

	buf := u.Marshal()
	require.Len(t, buf, 64)
	assert.Equal(t, uint32(0x3f800000), leU32(buf[0:4]))  // direction.x = 1.0
	assert.Equal(t, uint32(0x40800000), leU32(buf[12:16])) // speed = 4.0
	assert.Equal(t, uint32(0x40000000), leU32(buf[48:52])) // time = 2.0
}

func leU32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}
