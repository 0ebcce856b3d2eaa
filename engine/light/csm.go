package light

import (
	"github.com/chewxy/math32"

	"github.com/oloengine/olo/common"
)

// Cascade holds the light-space transform for one slice of the cascaded
// shadow map, plus the data the lit pass needs to pick a cascade per pixel.
type Cascade struct {
	// ViewProj is the texel-snapped light view-projection for this cascade.
	ViewProj [16]float32
	// SplitFar is the view-space distance at which this cascade ends.
	SplitFar float32
	// Radius is the bounding-sphere radius of the cascade's sub-frustum,
	// which doubles as the orthographic half-extent.
	Radius float32
}

// CascadeSet is the full set of directional-light cascades recomputed each
// frame by the shadow subsystem.
type CascadeSet struct {
	Cascades [MaxCSMCascades]Cascade
}

// ComputeCascades fills the cascade set for a directional light using the
// practical split scheme, a rotation-stable bounding sphere per cascade, and
// texel snapping of the resulting projection.
//
// The far plane is clamped to settings.MaxDistance first. Split i (1-based)
// is lambda·(near·(far/near)^(i/N)) + (1−lambda)·(near + (far−near)·i/N).
// Each sub-frustum's world-space corners are enclosed in a bounding sphere so
// the orthographic extents do not change as the camera rotates, and the
// projection translation is snapped to the shadow texel grid to eliminate
// per-frame shimmer.
//
// Parameters:
//   - set: destination cascade set
//   - settings: shadow configuration (resolution, lambda, max distance)
//   - lightDir: normalized direction the light points
//   - camView: camera view matrix (16 elements, column-major)
//   - camProj: camera projection matrix (16 elements, column-major)
//   - near: camera near plane distance
//   - far: camera far plane distance
func ComputeCascades(set *CascadeSet, settings ShadowSettings, lightDir [3]float32, camView, camProj []float32, near, far float32) {
	if far > settings.MaxDistance {
		far = settings.MaxDistance
	}

	// Practical split scheme: blend logarithmic and uniform distributions.
	lambda := settings.CascadeSplitLambda
	var splits [MaxCSMCascades]float32
	for i := 1; i <= MaxCSMCascades; i++ {
		p := float32(i) / float32(MaxCSMCascades)
		logSplit := near * math32.Pow(far/near, p)
		uniSplit := near + (far-near)*p
		splits[i-1] = lambda*logSplit + (1-lambda)*uniSplit
	}

	nearCorners, farCorners := frustumCornersWorldSpace(camView, camProj)

	splitNear := near
	for i := 0; i < MaxCSMCascades; i++ {
		splitFar := splits[i]

		// Sub-frustum corners by interpolating along the four frustum rays.
		t0 := (splitNear - near) / (far - near)
		t1 := (splitFar - near) / (far - near)
		var corners [8][3]float32
		for c := 0; c < 4; c++ {
			for a := 0; a < 3; a++ {
				d := farCorners[c][a] - nearCorners[c][a]
				corners[c][a] = nearCorners[c][a] + d*t0
				corners[c+4][a] = nearCorners[c][a] + d*t1
			}
		}

		// Bounding sphere center: average of the eight corners.
		var center [3]float32
		for c := range corners {
			center[0] += corners[c][0]
			center[1] += corners[c][1]
			center[2] += corners[c][2]
		}
		center[0] /= 8
		center[1] /= 8
		center[2] /= 8

		radius := float32(0)
		for c := range corners {
			dx := corners[c][0] - center[0]
			dy := corners[c][1] - center[1]
			dz := corners[c][2] - center[2]
			if d := math32.Sqrt(dx*dx + dy*dy + dz*dz); d > radius {
				radius = d
			}
		}
		// Quantize the radius upward so it only changes in discrete steps;
		// combined with the sphere this keeps the ortho extents stable.
		radius = math32.Ceil(radius*16.0) / 16.0

		// Light view: look at the sphere center along the light direction from
		// a distance of one radius. Choose an up vector that is not parallel
		// to the light direction.
		upX, upY, upZ := float32(0), float32(1), float32(0)
		if math32.Abs(lightDir[1]) > 0.99 {
			upX, upY, upZ = 1, 0, 0
		}
		eye := [3]float32{
			center[0] - lightDir[0]*radius,
			center[1] - lightDir[1]*radius,
			center[2] - lightDir[2]*radius,
		}
		var view [16]float32
		common.LookAt(view[:], eye[0], eye[1], eye[2], center[0], center[1], center[2], upX, upY, upZ)

		// Light-space depth range of the sub-frustum, padded to include
		// casters outside the camera frustum.
		minZ, maxZ := math32.Inf(1), math32.Inf(-1)
		for c := range corners {
			_, _, z, _ := common.TransformPoint(view[:], corners[c][0], corners[c][1], corners[c][2])
			if z < minZ {
				minZ = z
			}
			if z > maxZ {
				maxZ = z
			}
		}

		var proj [16]float32
		common.Ortho(proj[:], -radius, radius, -radius, radius, -maxZ-cascadeZPadding, -minZ+cascadeZPadding)

		cascade := &set.Cascades[i]
		common.Mul4(cascade.ViewProj[:], proj[:], view[:])
		snapToTexelGrid(cascade.ViewProj[:], settings.Resolution)
		cascade.SplitFar = splitFar
		cascade.Radius = radius

		splitNear = splitFar
	}
}

// snapToTexelGrid adjusts a light view-projection so the world origin lands
// on an exact shadow-map texel boundary. Projects the origin, rounds the
// result to the nearest texel, and folds the rounding offset back into the
// matrix translation. Without this the shadow edge crawls one texel per frame
// as the camera moves.
func snapToTexelGrid(viewProj []float32, resolution int) {
	halfRes := float32(resolution) / 2.0

	ox, oy, _, _ := common.TransformPoint(viewProj, 0, 0, 0)
	sx := ox * halfRes
	sy := oy * halfRes
	dx := (math32.Round(sx) - sx) / halfRes
	dy := (math32.Round(sy) - sy) / halfRes

	viewProj[12] += dx
	viewProj[13] += dy
}

// frustumCornersWorldSpace unprojects the eight corners of the camera frustum
// by inverting the view-projection matrix. Returns the four near-plane
// corners and the four far-plane corners in matching ray order.
func frustumCornersWorldSpace(camView, camProj []float32) (near, far [4][3]float32) {
	var viewProj, inv [16]float32
	common.Mul4(viewProj[:], camProj, camView)
	if !common.Invert4(inv[:], viewProj[:]) {
		return
	}

	ndc := [4][2]float32{{-1, -1}, {1, -1}, {1, 1}, {-1, 1}}
	for c := 0; c < 4; c++ {
		// WebGPU clip space: depth 0 at the near plane, 1 at the far plane.
		x, y, z, w := common.TransformPoint(inv[:], ndc[c][0], ndc[c][1], 0)
		near[c] = [3]float32{x / w, y / w, z / w}
		x, y, z, w = common.TransformPoint(inv[:], ndc[c][0], ndc[c][1], 1)
		far[c] = [3]float32{x / w, y / w, z / w}
	}
	return
}

// SpotShadowMatrix builds the perspective light view-projection for a
// shadow-casting spot light. The field of view is twice the outer cone
// half-angle so the projection exactly covers the cone.
//
// Parameters:
//   - position: world-space light position
//   - direction: normalized direction the light points
//   - outerCutoff: outer cone half-angle in radians
//   - lightRange: attenuation cutoff distance, used as the far plane
//
// Returns:
//   - [16]float32: the light view-projection matrix
func SpotShadowMatrix(position, direction [3]float32, outerCutoff, lightRange float32) [16]float32 {
	upX, upY, upZ := float32(0), float32(1), float32(0)
	if math32.Abs(direction[1]) > 0.99 {
		upX, upY, upZ = 1, 0, 0
	}

	var view, proj, viewProj [16]float32
	common.LookAt(view[:],
		position[0], position[1], position[2],
		position[0]+direction[0], position[1]+direction[1], position[2]+direction[2],
		upX, upY, upZ,
	)
	common.Perspective(proj[:], 2*outerCutoff, 1.0, SpotShadowNear, lightRange)
	common.Mul4(viewProj[:], proj[:], view[:])
	return viewProj
}

// cubeFaceDirections enumerates the look direction and up vector for each
// cube map face in the +X, −X, +Y, −Y, +Z, −Z layer order.
var cubeFaceDirections = [6][2][3]float32{
	{{1, 0, 0}, {0, -1, 0}},
	{{-1, 0, 0}, {0, -1, 0}},
	{{0, 1, 0}, {0, 0, 1}},
	{{0, -1, 0}, {0, 0, -1}},
	{{0, 0, 1}, {0, -1, 0}},
	{{0, 0, -1}, {0, -1, 0}},
}

// PointShadowMatrices builds the six cube-face view-projections for a
// shadow-casting point light, using a 90° perspective projection per face.
//
// Parameters:
//   - position: world-space light position
//   - lightRange: attenuation cutoff distance, used as the far plane
//
// Returns:
//   - [6][16]float32: one view-projection per cube face
func PointShadowMatrices(position [3]float32, lightRange float32) [6][16]float32 {
	var out [6][16]float32
	var proj [16]float32
	common.Perspective(proj[:], math32.Pi/2, 1.0, SpotShadowNear, lightRange)

	for face := 0; face < 6; face++ {
		dir := cubeFaceDirections[face][0]
		up := cubeFaceDirections[face][1]
		var view [16]float32
		common.LookAt(view[:],
			position[0], position[1], position[2],
			position[0]+dir[0], position[1]+dir[1], position[2]+dir[2],
			up[0], up[1], up[2],
		)
		common.Mul4(out[face][:], proj[:], view[:])
	}
	return out
}
