package light

import (
	"testing"

	"github.com/chewxy/math32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oloengine/olo/common"
)

func testCamera(dirX, dirZ float32) (view, proj [16]float32) {
	common.LookAt(view[:], 0, 5, 0, dirX, 5, dirZ, 0, 1, 0)
	common.Perspective(proj[:], math32.Pi/3, 16.0/9.0, 0.1, 500.0)
	return view, proj
}

func TestCascadeSplitsIncreaseAndClampToMaxDistance(t *testing.T) {
	settings := DefaultShadowSettings()
	view, proj := testCamera(0, -1)

	var set CascadeSet
	ComputeCascades(&set, settings, [3]float32{0.5, -0.7, 0.3}, view[:], proj[:], 0.1, 500.0)

	prev := float32(0.1)
	for i, c := range set.Cascades {
		assert.Greater(t, c.SplitFar, prev, "cascade %d split must increase", i)
		assert.Greater(t, c.Radius, float32(0), "cascade %d radius must be positive", i)
		prev = c.SplitFar
	}
	// The far plane exceeds MaxDistance, so the last split lands on it.
	assert.InDelta(t, settings.MaxDistance, set.Cascades[MaxCSMCascades-1].SplitFar, 1e-3)
}

func TestCascadeRadiiStableUnderCameraYaw(t *testing.T) {
	settings := DefaultShadowSettings()
	lightDir := [3]float32{0.3, -0.8, 0.5}

	view1, proj := testCamera(0, -1)
	yaw := float32(5.0 * math32.Pi / 180.0)
	view2, _ := testCamera(math32.Sin(yaw), -math32.Cos(yaw))

	var set1, set2 CascadeSet
	ComputeCascades(&set1, settings, lightDir, view1[:], proj[:], 0.1, 500.0)
	ComputeCascades(&set2, settings, lightDir, view2[:], proj[:], 0.1, 500.0)

	// The bounding sphere of a rotated sub-frustum is congruent, so the
	// quantized radii must not drift by more than one quantization step.
	for i := range set1.Cascades {
		assert.InDelta(t, set1.Cascades[i].Radius, set2.Cascades[i].Radius, 1.0/16.0+1e-3,
			"cascade %d ortho extent changed under yaw", i)
		assert.InDelta(t, set1.Cascades[i].SplitFar, set2.Cascades[i].SplitFar, 1e-4)
	}
}

func TestCascadeRadiusQuantization(t *testing.T) {
	settings := DefaultShadowSettings()
	view, proj := testCamera(0, -1)

	var set CascadeSet
	ComputeCascades(&set, settings, [3]float32{0, -1, 0.01}, view[:], proj[:], 0.1, 500.0)

	for i, c := range set.Cascades {
		scaled := c.Radius * 16.0
		assert.InDelta(t, math32.Round(scaled), scaled, 1e-3,
			"cascade %d radius not on the 1/16 grid", i)
	}
}

func TestCascadeProjectionSnapsToTexelGrid(t *testing.T) {
	settings := DefaultShadowSettings()
	view, proj := testCamera(0, -1)

	var set CascadeSet
	ComputeCascades(&set, settings, [3]float32{0.4, -0.6, 0.2}, view[:], proj[:], 0.1, 500.0)

	halfRes := float32(settings.Resolution) / 2.0
	for i, c := range set.Cascades {
		ox, oy, _, _ := common.TransformPoint(c.ViewProj[:], 0, 0, 0)
		sx := ox * halfRes
		sy := oy * halfRes
		assert.InDelta(t, math32.Round(sx), sx, 1e-2, "cascade %d origin off texel grid in X", i)
		assert.InDelta(t, math32.Round(sy), sy, 1e-2, "cascade %d origin off texel grid in Y", i)
	}
}

func TestSpotShadowMatrixCoversCone(t *testing.T) {
	pos := [3]float32{2, 3, 4}
	dir := [3]float32{0, 0, -1}
	vp := SpotShadowMatrix(pos, dir, math32.Pi/6, 20.0)

	// A point on the cone axis at mid-range projects to the clip center.
	x, y, _, w := common.TransformPoint(vp[:], pos[0], pos[1], pos[2]-10)
	require.Greater(t, w, float32(0))
	assert.InDelta(t, 0, x/w, 1e-4)
	assert.InDelta(t, 0, y/w, 1e-4)
}

func TestPointShadowMatricesFaceOrder(t *testing.T) {
	pos := [3]float32{0, 0, 0}
	mats := PointShadowMatrices(pos, 50.0)

	// A point straight down +X must land at the center of face 0 and behind
	// the camera for face 1.
	x, y, _, w := common.TransformPoint(mats[0][:], 10, 0, 0)
	require.Greater(t, w, float32(0))
	assert.InDelta(t, 0, x/w, 1e-4)
	assert.InDelta(t, 0, y/w, 1e-4)

	_, _, _, w = common.TransformPoint(mats[1][:], 10, 0, 0)
	assert.Less(t, w, float32(0))
}

func TestBuildShadowUniformClampsShadowCasterCounts(t *testing.T) {
	settings := DefaultShadowSettings()
	view, proj := testCamera(0, -1)

	var set CascadeSet
	ComputeCascades(&set, settings, [3]float32{0, -1, 0.01}, view[:], proj[:], 0.1, 500.0)

	var spots, points []Light
	for i := 0; i < MaxSpotShadows+3; i++ {
		spots = append(spots, NewLight(LightTypeSpot,
			WithPosition(float32(i), 5, 0),
			WithDirection(0, -1, 0),
			WithCastsShadows(true),
		))
	}
	for i := 0; i < MaxPointShadows+2; i++ {
		points = append(points, NewLight(LightTypePoint,
			WithPosition(0, float32(i), 0),
			WithCastsShadows(true),
		))
	}

	u := BuildShadowUniform(&set, spots, points, settings)
	assert.Equal(t, uint32(MaxSpotShadows), u.SpotCount)
	assert.Equal(t, uint32(MaxPointShadows), u.PointCount)
	assert.Equal(t, uint32(MaxCSMCascades), u.CascadeCount)
	assert.Equal(t, float32(1), u.Enabled)
}

func TestShadowUniformMarshalLayout(t *testing.T) {
	u := GPUShadowUniform{}
	require.Equal(t, 768, u.Size())

	u.CascadeSplits = [4]float32{1, 2, 3, 4}
	u.CascadeCount = 4
	buf := u.Marshal()
	require.Len(t, buf, 768)

	// cascade_splits sits at offset 512, counts at 608.
	assert.Equal(t, float32(1), math32.Float32frombits(leUint32(buf[512:516])))
	assert.Equal(t, float32(4), math32.Float32frombits(leUint32(buf[524:528])))
	assert.Equal(t, uint32(4), leUint32(buf[608:612]))
}

func TestMarshalLightBufferSkipsDisabledAndTruncates(t *testing.T) {
	var lights []Light
	for i := 0; i < MaxUBOLights*2; i++ {
		lights = append(lights, NewLight(LightTypePoint,
			WithPosition(float32(i), 0, 0),
			WithEnabled(i%2 == 1),
		))
	}

	buf := MarshalLightBuffer(lights, [3]float32{0.1, 0.1, 0.1}, [3]float32{0, 5, 0}, 1.5)
	require.Len(t, buf, LightBufferSize)

	// Half the lights are enabled; the count still clamps to the slot budget.
	count := leUint32(buf[12:16])
	assert.Equal(t, uint32(MaxUBOLights), count)

	// First entry follows the 48-byte header and is the first enabled light.
	assert.Equal(t, float32(1), math32.Float32frombits(leUint32(buf[48:52])))
}

func leUint32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}
