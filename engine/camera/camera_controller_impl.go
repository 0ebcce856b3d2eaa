package camera

import (
	"sync"

	"github.com/chewxy/math32"
)

// cameraControllerImpl implements CameraController as an orbit rig with planar
// panning layered on top. The camera position is always derived from the
// target plus spherical coordinates; pan operations move target and position
// together so the orbit relationship survives.
type cameraControllerImpl struct {
	mu sync.Mutex

	position [3]float32
	target   [3]float32

	// Spherical offset from the target.
	radius    float32
	azimuth   float32 // angle around the world Y axis
	elevation float32 // angle above the horizontal plane

	minRadius    float32
	maxRadius    float32
	minElevation float32
	maxElevation float32

	orbitSpeed       float32
	mouseSensitivity float32
	zoomSpeed        float32
	panSpeed         float32
}

var _ CameraController = &cameraControllerImpl{}

// NewCameraController creates a camera controller with orbit and planar
// controls. Defaults frame a mid-sized scene from a shallow angle.
//
// Parameters:
//   - options: functional options to configure the controller
//
// Returns:
//   - CameraController: the newly created controller
func NewCameraController(options ...CameraControllerOption) CameraController {
	cc := &cameraControllerImpl{
		radius:    250.0,
		elevation: math32.Pi / 6,

		minRadius:    20.0,
		maxRadius:    2000.0,
		minElevation: 0.05,
		maxElevation: math32.Pi/2 - 0.1,

		orbitSpeed:       0.03,
		mouseSensitivity: 0.005,
		zoomSpeed:        15.0,
		panSpeed:         1.0,
	}

	for _, option := range options {
		option(cc)
	}

	cc.refresh()
	return cc
}

// refresh recomputes the camera position from the spherical coordinates.
// Caller holds the mutex (or owns the controller exclusively, as in the
// constructor).
func (cc *cameraControllerImpl) refresh() {
	horiz := cc.radius * math32.Cos(cc.elevation)
	cc.position = [3]float32{
		cc.target[0] + horiz*math32.Sin(cc.azimuth),
		cc.target[1] + cc.radius*math32.Sin(cc.elevation),
		cc.target[2] + horiz*math32.Cos(cc.azimuth),
	}
}

// clampf bounds v to [lo, hi].
func clampf(v, lo, hi float32) float32 {
	return math32.Min(math32.Max(v, lo), hi)
}

// axes derives the camera-local right, up, and forward vectors from the
// current position and target, matching the basis a LookAt view matrix
// would produce with a (0,1,0) world up. Returns zero vectors when position
// and target coincide or the view is vertical. Caller holds the mutex.
func (cc *cameraControllerImpl) axes() (right, up, forward [3]float32) {
	back := [3]float32{
		cc.position[0] - cc.target[0],
		cc.position[1] - cc.target[1],
		cc.position[2] - cc.target[2],
	}
	n := math32.Sqrt(back[0]*back[0] + back[1]*back[1] + back[2]*back[2])
	if n < 1e-8 {
		return
	}
	back[0] /= n
	back[1] /= n
	back[2] /= n

	// right = normalize(cross(worldUp, back)); with worldUp=(0,1,0) the Y
	// component vanishes, leaving (back.z, 0, -back.x).
	right = [3]float32{back[2], 0, -back[0]}
	rn := math32.Hypot(right[0], right[2])
	if rn < 1e-8 {
		return [3]float32{}, [3]float32{}, [3]float32{}
	}
	right[0] /= rn
	right[2] /= rn

	// up = cross(back, right)
	up = [3]float32{
		back[1]*right[2] - back[2]*right[1],
		back[2]*right[0] - back[0]*right[2],
		back[0]*right[1] - back[1]*right[0],
	}

	forward = [3]float32{-back[0], -back[1], -back[2]}
	return right, up, forward
}

// translate shifts both the target and the position along dir.
// Caller holds the mutex.
func (cc *cameraControllerImpl) translate(dir [3]float32, dist float32) {
	cc.target[0] += dir[0] * dist
	cc.target[1] += dir[1] * dist
	cc.target[2] += dir[2] * dist
	cc.position[0] += dir[0] * dist
	cc.position[1] += dir[1] * dist
	cc.position[2] += dir[2] * dist
}

func (cc *cameraControllerImpl) Position() (x, y, z float32) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.position[0], cc.position[1], cc.position[2]
}

func (cc *cameraControllerImpl) SetPosition(x, y, z float32) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.position = [3]float32{x, y, z}
}

func (cc *cameraControllerImpl) Target() (x, y, z float32) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.target[0], cc.target[1], cc.target[2]
}

func (cc *cameraControllerImpl) SetTarget(x, y, z float32) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.target = [3]float32{x, y, z}
	cc.refresh()
}

func (cc *cameraControllerImpl) Zoom(delta float32) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.radius = clampf(cc.radius-delta*cc.zoomSpeed, cc.minRadius, cc.maxRadius)
	cc.refresh()
}

func (cc *cameraControllerImpl) OrbitLeft() {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.azimuth -= cc.orbitSpeed
	cc.refresh()
}

func (cc *cameraControllerImpl) OrbitRight() {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.azimuth += cc.orbitSpeed
	cc.refresh()
}

func (cc *cameraControllerImpl) OrbitUp() {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.elevation = clampf(cc.elevation+cc.orbitSpeed, cc.minElevation, cc.maxElevation)
	cc.refresh()
}

func (cc *cameraControllerImpl) OrbitDown() {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.elevation = clampf(cc.elevation-cc.orbitSpeed, cc.minElevation, cc.maxElevation)
	cc.refresh()
}

func (cc *cameraControllerImpl) Radius() float32 {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.radius
}

func (cc *cameraControllerImpl) SetRadius(radius float32) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.radius = clampf(radius, cc.minRadius, cc.maxRadius)
	cc.refresh()
}

func (cc *cameraControllerImpl) MinRadius() float32 {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.minRadius
}

func (cc *cameraControllerImpl) MaxRadius() float32 {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.maxRadius
}

func (cc *cameraControllerImpl) Azimuth() float32 {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.azimuth
}

func (cc *cameraControllerImpl) SetAzimuth(azimuth float32) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.azimuth = azimuth
	cc.refresh()
}

func (cc *cameraControllerImpl) Elevation() float32 {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.elevation
}

func (cc *cameraControllerImpl) SetElevation(elevation float32) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.elevation = clampf(elevation, cc.minElevation, cc.maxElevation)
	cc.refresh()
}

func (cc *cameraControllerImpl) MinElevation() float32 {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.minElevation
}

func (cc *cameraControllerImpl) MaxElevation() float32 {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.maxElevation
}

func (cc *cameraControllerImpl) OrbitSpeed() float32 {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.orbitSpeed
}

func (cc *cameraControllerImpl) MouseSensitivity() float32 {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.mouseSensitivity
}

func (cc *cameraControllerImpl) ZoomSpeed() float32 {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.zoomSpeed
}

func (cc *cameraControllerImpl) PanRight(delta float32) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	right, _, _ := cc.axes()
	cc.translate(right, delta*cc.panSpeed)
}

func (cc *cameraControllerImpl) PanUp(delta float32) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	_, up, _ := cc.axes()
	cc.translate(up, delta*cc.panSpeed)
}

func (cc *cameraControllerImpl) PanForward(delta float32) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	_, _, forward := cc.axes()
	cc.translate(forward, delta*cc.panSpeed)
}

func (cc *cameraControllerImpl) PanSpeed() float32 {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.panSpeed
}
