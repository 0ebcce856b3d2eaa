package environment

import (
	"github.com/chewxy/math32"
)

// Wind maintains the camera-centered 3D wind field parameters. The renderer
// regenerates the wind volume texture each frame from Uniform(); WindAt
// offers a cheap analytical approximation of the same field for audio and
// gameplay queries.
type Wind interface {
	// Update recenters the wind grid on the camera and advances time.
	//
	// Parameters:
	//   - cameraPos: world-space camera position
	//   - time: elapsed seconds
	Update(cameraPos [3]float32, time float32)
	// Uniform returns the parameter block for the generation kernel.
	Uniform() GPUWindUniform
	// WindAt returns the analytical wind velocity at a world position.
	WindAt(x, y, z float32) [3]float32
	// SetDirection replaces the base wind direction. A zero-length vector
	// falls back to +X.
	SetDirection(x, y, z float32)
	// SetSpeed replaces the base wind speed.
	SetSpeed(speed float32)
	// SetEnabled toggles wind field regeneration.
	SetEnabled(enabled bool)
	// Enabled reports whether the field updates.
	Enabled() bool
}

var _ Wind = &wind{}

type wind struct {
	direction     [3]float32
	speed         float32
	gustStrength  float32
	gustFrequency float32
	turbIntensity float32
	turbScale     float32
	gridWorldSize float32
	gridMin       [3]float32
	time          float32
	enabled       bool
}

func (w *wind) Update(cameraPos [3]float32, time float32) {
	half := w.gridWorldSize * 0.5
	w.gridMin = [3]float32{cameraPos[0] - half, cameraPos[1] - half, cameraPos[2] - half}
	w.time = time
}

func (w *wind) Uniform() GPUWindUniform {
	u := GPUWindUniform{
		Direction:      safeNormalize(w.direction),
		Speed:          w.speed,
		GustStrength:   w.gustStrength,
		GustFrequency:  w.gustFrequency,
		TurbIntensity:  w.turbIntensity,
		TurbScale:      w.turbScale,
		GridMin:        w.gridMin,
		GridWorldSize:  w.gridWorldSize,
		Time:           w.time,
		GridResolution: WindGridResolution,
	}
	if w.enabled {
		u.Enabled = 1
	}
	return u
}

// WindAt evaluates the analytical base of the wind model: direction scaled
// by speed and a positional gust sine. The GPU field adds turbulence on top;
// this approximation is close enough for audio attenuation and gameplay.
func (w *wind) WindAt(x, y, z float32) [3]float32 {
	if !w.enabled {
		return [3]float32{}
	}
	dir := safeNormalize(w.direction)
	phase := (x*dir[0] + z*dir[2]) * 0.1
	gust := 1 + w.gustStrength*math32.Sin(w.time*w.gustFrequency+phase)
	s := w.speed * gust
	return [3]float32{dir[0] * s, dir[1] * s, dir[2] * s}
}

func (w *wind) SetDirection(x, y, z float32) {
	w.direction = [3]float32{x, y, z}
}

func (w *wind) SetSpeed(speed float32) {
	w.speed = speed
}

func (w *wind) SetEnabled(enabled bool) {
	w.enabled = enabled
}

func (w *wind) Enabled() bool {
	return w.enabled
}

// safeNormalize returns v at unit length, falling back to +X when v is
// (near) zero.
func safeNormalize(v [3]float32) [3]float32 {
	l := math32.Sqrt(v[0]*v[0] + v[1]*v[1] + v[2]*v[2])
	if l < 1e-6 {
		return [3]float32{1, 0, 0}
	}
	return [3]float32{v[0] / l, v[1] / l, v[2] / l}
}
