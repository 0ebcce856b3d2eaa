package environment

import (
	"github.com/chewxy/math32"
	"github.com/oloengine/olo/common"
)

// Snow maintains the camera-centered snow depth clipmap parameters and the
// per-frame deformer stamp queue. The renderer dispatches the clear,
// accumulate, and deform kernels against the depth texture using Uniform()
// and TakeDeformers().
type Snow interface {
	// Update recomputes the clipmap ring matrices around the camera.
	//
	// Parameters:
	//   - cameraPos: world-space camera position
	//   - time: elapsed seconds
	Update(cameraPos [3]float32, time float32)
	// Uniform returns the accumulation parameter block for this frame.
	Uniform() GPUSnowAccumulationUniform
	// Params returns the snow appearance block.
	Params() GPUSnowParams
	// SubmitDeformer queues a stamp for the deform kernel this frame.
	//
	// Parameters:
	//   - d: the deformer stamp
	//
	// Returns:
	//   - bool: false when the per-frame stamp budget is exhausted
	SubmitDeformer(d GPUSnowDeformer) bool
	// TakeDeformers returns and clears this frame's stamp queue.
	TakeDeformers() []GPUSnowDeformer
	// RequestClear schedules a full depth clear before the next accumulate.
	RequestClear()
	// TakePendingClear reports and consumes the pending clear flag.
	TakePendingClear() bool
	// SetEnabled toggles accumulation.
	SetEnabled(enabled bool)
	// Enabled reports whether accumulation runs.
	Enabled() bool
}

var _ Snow = &snow{}

type snow struct {
	baseExtent       float32
	captureHeight    float32
	captureRange     float32
	accumulationRate float32
	meltRate         float32
	restorationRate  float32
	snowDensity      float32
	params           GPUSnowParams

	rings        [SnowClipmapRings]snowRing
	time         float32
	enabled      bool
	pendingClear bool
	deformers    []GPUSnowDeformer
	dropped      int
}

type snowRing struct {
	viewProj [16]float32
	centerX  float32
	centerZ  float32
	extent   float32
	texel    float32
}

func (s *snow) Update(cameraPos [3]float32, time float32) {
	s.time = time
	for i := 0; i < SnowClipmapRings; i++ {
		extent := s.baseExtent * float32(int(1)<<uint(i))
		// Texel-snap the ring center so the ortho window slides in whole
		// texels under camera motion.
		texel := (2 * extent) / SnowDepthResolution
		cx := math32.Floor(cameraPos[0]/texel) * texel
		cz := math32.Floor(cameraPos[2]/texel) * texel

		var view, proj [16]float32
		eyeY := cameraPos[1] + s.captureHeight
		common.LookAt(view[:], cx, eyeY, cz, cx, eyeY-1, cz, 0, 0, 1)
		common.Ortho(proj[:], -extent, extent, -extent, extent, 0.1, s.captureRange)

		ring := &s.rings[i]
		common.Mul4(ring.viewProj[:], proj[:], view[:])
		ring.centerX = cx
		ring.centerZ = cz
		ring.extent = extent
		ring.texel = texel
	}
}

func (s *snow) Uniform() GPUSnowAccumulationUniform {
	u := GPUSnowAccumulationUniform{
		AccumulationRate: s.accumulationRate,
		MeltRate:         s.meltRate,
		RestorationRate:  s.restorationRate,
		SnowDensity:      s.snowDensity,
		RingCount:        SnowClipmapRings,
		Time:             s.time,
		DeformerCount:    float32(len(s.deformers)),
	}
	if s.enabled {
		u.Enabled = 1
	}
	for i := 0; i < SnowClipmapRings; i++ {
		r := &s.rings[i]
		u.RingVP[i] = r.viewProj
		u.RingCenterExtent[i] = [4]float32{r.centerX, r.centerZ, r.extent, r.texel}
	}
	return u
}

func (s *snow) Params() GPUSnowParams {
	return s.params
}

func (s *snow) SubmitDeformer(d GPUSnowDeformer) bool {
	if len(s.deformers) >= MaxSnowDeformers {
		s.dropped++
		return false
	}
	s.deformers = append(s.deformers, d)
	return true
}

func (s *snow) TakeDeformers() []GPUSnowDeformer {
	out := s.deformers
	s.deformers = s.deformers[len(s.deformers):]
	s.dropped = 0
	return out
}

func (s *snow) RequestClear() {
	s.pendingClear = true
}

func (s *snow) TakePendingClear() bool {
	pending := s.pendingClear
	s.pendingClear = false
	return pending
}

func (s *snow) SetEnabled(enabled bool) {
	s.enabled = enabled
}

func (s *snow) Enabled() bool {
	return s.enabled
}
