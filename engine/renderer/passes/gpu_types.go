package passes

import (
	_ "embed"
	"encoding/binary"
	"math"
)

// PostProcessUniformBinding is the uniform slot for post-process parameters.
const PostProcessUniformBinding = 7

// MotionBlurUniformBinding is the uniform slot for motion blur matrices.
const MotionBlurUniformBinding = 8

// FullscreenShaderSource is the shared fullscreen triangle vertex stage.
//
//go:embed assets/fullscreen.wgsl
var FullscreenShaderSource string

// SSAOShaderSource is the hemisphere occlusion fragment stage.
//
//go:embed assets/ssao.wgsl
var SSAOShaderSource string

// SSAOBlurShaderSource is the separable bilateral blur fragment stage.
//
//go:embed assets/ssao_blur.wgsl
var SSAOBlurShaderSource string

// SSSBlurShaderSource is the subsurface scattering blur fragment stage.
//
//go:embed assets/sss_blur.wgsl
var SSSBlurShaderSource string

// PostProcessShaderSource holds the effect chain fragment entry points.
//
//go:embed assets/post_process.wgsl
var PostProcessShaderSource string

// BlitShaderSource is the final surface blit fragment stage.
//
//go:embed assets/blit.wgsl
var BlitShaderSource string

// GPUPostProcessParams is the GPU-aligned post-process uniform. Matches the
// WGSL PostProcessParams struct layout exactly. Size: 80 bytes.
type GPUPostProcessParams struct {
	BloomThreshold   float32    // offset  0
	BloomIntensity   float32    // offset  4
	VignetteStrength float32    // offset  8
	AberrationOffset float32    // offset 12
	DOFFocusDistance float32    // offset 16
	DOFFocusRange    float32    // offset 20
	Exposure         float32    // offset 24
	GradingStrength  float32    // offset 28
	ScreenSize       [2]float32 // offset 32
	Time             float32    // offset 40
	_pad0            float32    // offset 44
	_reserved        [8]float32 // offset 48: pad to 80 bytes
}

// Marshal serializes the params into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: 80-byte buffer ready for GPU upload
func (g *GPUPostProcessParams) Marshal() []byte {
	buf := make([]byte, 80)
	off := 0
	putF32 := func(v float32) {
		binary.LittleEndian.PutUint32(buf[off:off+4], math.Float32bits(v))
		off += 4
	}
	putF32(g.BloomThreshold)
	putF32(g.BloomIntensity)
	putF32(g.VignetteStrength)
	putF32(g.AberrationOffset)
	putF32(g.DOFFocusDistance)
	putF32(g.DOFFocusRange)
	putF32(g.Exposure)
	putF32(g.GradingStrength)
	putF32(g.ScreenSize[0])
	putF32(g.ScreenSize[1])
	putF32(g.Time)
	return buf
}

// GPUMotionBlurParams is the GPU-aligned motion blur uniform: the current
// frame's inverse view-projection and the previous frame's view-projection,
// used to reconstruct per-pixel screen-space velocity. Size: 128 bytes.
type GPUMotionBlurParams struct {
	InvViewProjection  [16]float32 // offset  0
	PrevViewProjection [16]float32 // offset 64
}

// Marshal serializes the params into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: 128-byte buffer ready for GPU upload
func (g *GPUMotionBlurParams) Marshal() []byte {
	buf := make([]byte, 128)
	off := 0
	putF32 := func(v float32) {
		binary.LittleEndian.PutUint32(buf[off:off+4], math.Float32bits(v))
		off += 4
	}
	for _, v := range g.InvViewProjection {
		putF32(v)
	}
	for _, v := range g.PrevViewProjection {
		putF32(v)
	}
	return buf
}
