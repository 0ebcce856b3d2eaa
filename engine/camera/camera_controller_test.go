package camera

import (
	"testing"

	"github.com/chewxy/math32"
	"github.com/stretchr/testify/assert"
)

func TestControllerDerivesPositionFromSphericalCoords(t *testing.T) {
	cc := NewCameraController(
		WithTarget(0, 40, 0),
		WithRadius(100),
		WithAzimuth(0),
		WithElevation(0.3),
	)

	x, y, z := cc.Position()
	assert.InDelta(t, 0, x, 1e-4)
	assert.InDelta(t, 40+100*math32.Sin(0.3), y, 1e-3)
	assert.InDelta(t, 100*math32.Cos(0.3), z, 1e-3)
}

func TestControllerClampsRadiusAndElevation(t *testing.T) {
	cc := NewCameraController(
		WithRadiusBounds(10, 500),
		WithElevationBounds(0.1, 1.2),
	)

	cc.SetRadius(5)
	assert.Equal(t, float32(10), cc.Radius())
	cc.SetRadius(9000)
	assert.Equal(t, float32(500), cc.Radius())

	cc.SetElevation(-1)
	assert.Equal(t, float32(0.1), cc.Elevation())
	cc.SetElevation(2)
	assert.Equal(t, float32(1.2), cc.Elevation())
}

func TestControllerZoomMovesAlongViewRay(t *testing.T) {
	cc := NewCameraController(
		WithTarget(0, 0, 0),
		WithRadius(200),
		WithZoomSpeed(10),
		WithRadiusBounds(1, 2000),
	)

	cc.Zoom(5) // positive delta zooms in
	assert.InDelta(t, 150, cc.Radius(), 1e-4)

	// Distance from target matches the radius after the zoom.
	x, y, z := cc.Position()
	dist := math32.Sqrt(x*x + y*y + z*z)
	assert.InDelta(t, cc.Radius(), dist, 1e-2)
}

func TestControllerPanMovesTargetAndPositionTogether(t *testing.T) {
	cc := NewCameraController(
		WithTarget(0, 0, 0),
		WithRadius(100),
		WithAzimuth(0),
		WithElevation(0.5),
		WithPanSpeed(2),
	)

	px, py, pz := cc.Position()
	cc.PanRight(3)

	tx, ty, tz := cc.Target()
	nx, ny, nz := cc.Position()

	// With azimuth 0 the camera looks down -Z, so right is world +X.
	assert.InDelta(t, 6, tx, 1e-3)
	assert.InDelta(t, 0, ty, 1e-4)
	assert.InDelta(t, 0, tz, 1e-4)
	assert.InDelta(t, px+6, nx, 1e-3)
	assert.InDelta(t, py, ny, 1e-4)
	assert.InDelta(t, pz, nz, 1e-4)
}

func TestControllerOrbitKeepsTargetFixed(t *testing.T) {
	cc := NewCameraController(WithTarget(5, 5, 5), WithRadius(50))

	for i := 0; i < 10; i++ {
		cc.OrbitLeft()
		cc.OrbitUp()
	}

	tx, ty, tz := cc.Target()
	assert.Equal(t, float32(5), tx)
	assert.Equal(t, float32(5), ty)
	assert.Equal(t, float32(5), tz)

	x, y, z := cc.Position()
	dist := math32.Sqrt((x-5)*(x-5) + (y-5)*(y-5) + (z-5)*(z-5))
	assert.InDelta(t, 50, dist, 1e-2)
}
