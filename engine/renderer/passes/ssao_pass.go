package passes

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/chewxy/math32"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/oloengine/olo/common"
	"github.com/oloengine/olo/engine/renderer"
	"github.com/oloengine/olo/engine/renderer/bind_group_provider"
)

// SSAOUniformBinding is the uniform slot for SSAO parameters.
const SSAOUniformBinding = 9

// SSAONoiseSize is the side length of the tiled rotation noise texture.
const SSAONoiseSize = 4

// MinSSAOSamples and MaxSSAOSamples bound the configurable kernel size.
const (
	MinSSAOSamples = 4
	MaxSSAOSamples = 64
)

// GPUSSAOParams is the GPU-aligned SSAO uniform. Size: 160 bytes.
type GPUSSAOParams struct {
	Projection    [16]float32 // offset   0: camera projection
	InvProjection [16]float32 // offset  64: inverse projection for depth reconstruction
	Radius        float32     // offset 128: occlusion hemisphere radius
	Bias          float32     // offset 132: depth bias against self-occlusion
	Intensity     float32     // offset 136: occlusion strength multiplier
	SampleCount   uint32      // offset 140
	ScreenSize    [2]float32  // offset 144: half-resolution target size
	NoiseScale    [2]float32  // offset 152: screen size / noise size tiling factor
}

// Marshal serializes the params into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: 160-byte buffer ready for GPU upload
func (g *GPUSSAOParams) Marshal() []byte {
	buf := make([]byte, 160)
	off := 0
	putF32 := func(v float32) {
		binary.LittleEndian.PutUint32(buf[off:off+4], math.Float32bits(v))
		off += 4
	}
	for _, v := range g.Projection {
		putF32(v)
	}
	for _, v := range g.InvProjection {
		putF32(v)
	}
	putF32(g.Radius)
	putF32(g.Bias)
	putF32(g.Intensity)
	binary.LittleEndian.PutUint32(buf[140:144], g.SampleCount)
	off = 144
	putF32(g.ScreenSize[0])
	putF32(g.ScreenSize[1])
	putF32(g.NoiseScale[0])
	putF32(g.NoiseScale[1])
	return buf
}

// SSAOKernel generates sampleCount hemisphere sample vectors as vec4 entries
// (w unused). Samples lie in the +Z hemisphere and are scaled toward the
// origin so occlusion concentrates near the shaded point. The count is
// clamped to [MinSSAOSamples, MaxSSAOSamples]. Generation is deterministic
// for a given seed.
//
// Parameters:
//   - sampleCount: the requested kernel size
//   - seed: the hash seed
//
// Returns:
//   - []float32: sampleCount*4 floats, xyz = sample vector, w = 0
func SSAOKernel(sampleCount int, seed uint32) []float32 {
	if sampleCount < MinSSAOSamples {
		sampleCount = MinSSAOSamples
	}
	if sampleCount > MaxSSAOSamples {
		sampleCount = MaxSSAOSamples
	}

	kernel := make([]float32, 0, sampleCount*4)
	for i := 0; i < sampleCount; i++ {
		x := hashUnit(seed, uint32(i)*3+0)*2 - 1
		y := hashUnit(seed, uint32(i)*3+1)*2 - 1
		z := hashUnit(seed, uint32(i)*3+2)

		length := math32.Sqrt(x*x + y*y + z*z)
		if length < 1e-6 {
			z, length = 1, 1
		}
		x, y, z = x/length, y/length, z/length

		// Accelerating scale distributes more samples near the origin.
		t := float32(i) / float32(sampleCount)
		scale := 0.1 + 0.9*t*t
		kernel = append(kernel, x*scale, y*scale, z*scale, 0)
	}
	return kernel
}

// SSAONoise generates the 4x4 rotation noise texture as vec4 texels. Each
// texel is a random rotation about Z (z = 0) used to tilt the sample kernel,
// breaking up banding when the texture tiles across the screen.
//
// Parameters:
//   - seed: the hash seed
//
// Returns:
//   - []float32: SSAONoiseSize*SSAONoiseSize*4 floats
func SSAONoise(seed uint32) []float32 {
	texels := make([]float32, 0, SSAONoiseSize*SSAONoiseSize*4)
	for i := 0; i < SSAONoiseSize*SSAONoiseSize; i++ {
		x := hashUnit(seed^0x9E3779B9, uint32(i)*2+0)*2 - 1
		y := hashUnit(seed^0x9E3779B9, uint32(i)*2+1)*2 - 1
		texels = append(texels, x, y, 0, 0)
	}
	return texels
}

// ssaoBlurDepthSigma weights the bilateral range term; larger values stop the
// blur harder at depth discontinuities.
const ssaoBlurDepthSigma = 16.0

// GPUSSAOBlurParams is the GPU-aligned bilateral blur uniform. Size: 32 bytes.
type GPUSSAOBlurParams struct {
	Direction  [2]float32 // offset  0: (1,0) horizontal, (0,1) vertical
	TexelSize  [2]float32 // offset  8: 1 / half-resolution target size
	DepthSigma float32    // offset 16: bilateral range weight
}

// Marshal serializes the params into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: 32-byte buffer ready for GPU upload
func (g *GPUSSAOBlurParams) Marshal() []byte {
	buf := make([]byte, 32)
	putF32 := func(off int, v float32) {
		binary.LittleEndian.PutUint32(buf[off:off+4], math.Float32bits(v))
	}
	putF32(0, g.Direction[0])
	putF32(4, g.Direction[1])
	putF32(8, g.TexelSize[0])
	putF32(12, g.TexelSize[1])
	putF32(16, g.DepthSigma)
	return buf
}

// hashUnit maps (seed, n) to a deterministic float in [0, 1).
func hashUnit(seed, n uint32) float32 {
	h := seed ^ (n * 0x85EBCA6B)
	h ^= h >> 13
	h *= 0xC2B2AE35
	h ^= h >> 16
	return float32(h) / float32(1<<32)
}

// ssaoPass computes half-resolution ambient occlusion from scene depth and
// view-space normals, then runs a separable bilateral blur with depth as the
// edge stopper. Output is single-channel AO in an RG16F target (second
// channel unused). The blur ping-pongs: horizontal into the blur target,
// vertical back into the occlusion target, which Target then returns.
type ssaoPass struct {
	basePass

	params GPUSSAOParams
	kernel []float32
	noise  []float32

	scene           renderer.Framebuffer
	occlusionTarget renderer.Framebuffer
	blurTarget      renderer.Framebuffer

	triangle       bind_group_provider.BindGroupProvider
	inputs         bind_group_provider.BindGroupProvider
	inputsGen      uint64
	kernelUploaded bool
	blurH, blurV   ssaoBlurBinding
}

// ssaoBlurBinding owns the bind group for one blur direction: the blur uniform,
// the AO source, the scene depth used as the edge stopper, and a sampler.
type ssaoBlurBinding struct {
	provider bind_group_provider.BindGroupProvider
	source   renderer.Framebuffer
	aoGen    uint64
	sceneGen uint64
}

// SSAOPass extends RenderPass with parameter staging and the blurred AO
// target the scene pass binds at the AO texture slot.
type SSAOPass interface {
	RenderPass

	// SetParams stages the SSAO uniform for the next Execute. The sample
	// count is clamped to the valid kernel range.
	//
	// Parameters:
	//   - params: the SSAO parameters
	SetParams(params GPUSSAOParams)

	// Params returns the staged parameters after clamping.
	//
	// Returns:
	//   - GPUSSAOParams: the active parameters
	Params() GPUSSAOParams

	// SetScene stages the scene framebuffer whose depth and normal attachments
	// feed the occlusion shader.
	//
	// Parameters:
	//   - scene: the scene G-buffer framebuffer
	SetScene(scene renderer.Framebuffer)

	// Target returns the blurred AO framebuffer.
	//
	// Returns:
	//   - renderer.Framebuffer: the blurred AO target
	Target() renderer.Framebuffer
}

var _ SSAOPass = &ssaoPass{}

// NewSSAOPass creates the SSAO pass with a deterministic sample kernel and
// rotation noise derived from the given seed.
//
// Parameters:
//   - params: the initial SSAO parameters
//   - seed: the kernel and noise hash seed
//
// Returns:
//   - SSAOPass: the pass
func NewSSAOPass(params GPUSSAOParams, seed uint32) SSAOPass {
	p := &ssaoPass{
		basePass: basePass{name: "SSAOPass", enabled: true},
		noise:    SSAONoise(seed),
	}
	p.SetParams(params)
	p.kernel = SSAOKernel(int(p.params.SampleCount), seed)
	return p
}

func (p *ssaoPass) Init(ctx *PassContext) error {
	p.ctx = ctx
	// AO runs at half resolution; the bilateral blur keeps edges crisp when
	// the scene pass samples it back up.
	spec := renderer.FramebufferSpec{
		Width:        max(ctx.Width/2, 1),
		Height:       max(ctx.Height/2, 1),
		ColorFormats: []renderer.AttachmentFormat{renderer.FormatRG16F},
	}
	var err error
	if p.occlusionTarget, err = renderer.NewFramebuffer(ctx.Allocator, ctx.Resources, spec); err != nil {
		return fmt.Errorf("failed to create occlusion target: %w", err)
	}
	if p.blurTarget, err = renderer.NewFramebuffer(ctx.Allocator, ctx.Resources, spec); err != nil {
		return fmt.Errorf("failed to create blur target: %w", err)
	}
	return nil
}

func (p *ssaoPass) SetParams(params GPUSSAOParams) {
	if params.SampleCount < MinSSAOSamples {
		params.SampleCount = MinSSAOSamples
	}
	if params.SampleCount > MaxSSAOSamples {
		params.SampleCount = MaxSSAOSamples
	}
	p.params = params
}

func (p *ssaoPass) Params() GPUSSAOParams {
	return p.params
}

func (p *ssaoPass) SetScene(scene renderer.Framebuffer) {
	p.scene = scene
}

func (p *ssaoPass) Target() renderer.Framebuffer {
	// The vertical blur writes back into the occlusion target, so it holds the
	// final blurred AO.
	return p.occlusionTarget
}

func (p *ssaoPass) Execute(ctx *PassContext) error {
	if p.occlusionTarget == nil || p.scene == nil {
		return nil
	}
	spec := p.occlusionTarget.Spec()
	p.params.ScreenSize = [2]float32{float32(spec.Width), float32(spec.Height)}
	p.params.NoiseScale = [2]float32{
		float32(spec.Width) / SSAONoiseSize,
		float32(spec.Height) / SSAONoiseSize,
	}

	for _, key := range []string{"ssao_occlusion", "ssao_blur_horizontal", "ssao_blur_vertical"} {
		if ctx.Renderer.Pipeline(key) == nil {
			return fmt.Errorf("ssao pipeline %q not loaded", key)
		}
	}

	if err := p.ensureResources(ctx); err != nil {
		return err
	}
	ctx.Renderer.WriteBuffers([]bind_group_provider.BufferWrite{
		{Provider: p.inputs, Binding: 0, Data: p.params.Marshal()},
	})

	// Occlusion from scene depth and view-space normals.
	if err := p.fullscreenDraw(ctx, "ssao_occlusion", p.occlusionTarget, p.inputs); err != nil {
		return err
	}

	// Separable bilateral blur: horizontal into the blur target, vertical back.
	hInputs, err := p.blurH.bind(ctx, "ssao blur horizontal", [2]float32{1, 0}, p.occlusionTarget, p.scene)
	if err != nil {
		return err
	}
	if err := p.fullscreenDraw(ctx, "ssao_blur_horizontal", p.blurTarget, hInputs); err != nil {
		return err
	}
	vInputs, err := p.blurV.bind(ctx, "ssao blur vertical", [2]float32{0, 1}, p.blurTarget, p.scene)
	if err != nil {
		return err
	}
	return p.fullscreenDraw(ctx, "ssao_blur_vertical", p.occlusionTarget, vInputs)
}

// bind rebuilds the blur bind group when the AO source or scene depth
// attachments changed, and writes the direction uniform for this draw.
func (b *ssaoBlurBinding) bind(ctx *PassContext, label string, direction [2]float32, source, scene renderer.Framebuffer) (bind_group_provider.BindGroupProvider, error) {
	aoTarget := source.ColorTarget(0)
	depthTarget := scene.DepthTarget()
	if aoTarget == nil || depthTarget == nil {
		return nil, fmt.Errorf("ssao blur missing ao or depth attachment")
	}

	if b.provider == nil || b.source != source || b.aoGen != source.Generation() || b.sceneGen != scene.Generation() {
		if b.provider == nil {
			b.provider = bind_group_provider.NewBindGroupProvider(label)
			if err := ctx.Renderer.InitSampler(b.provider, 3, common.SamplerStagingData{
				AddressModeU: wgpu.AddressModeClampToEdge,
				AddressModeV: wgpu.AddressModeClampToEdge,
			}); err != nil {
				return nil, err
			}
		}
		// Both directions share the horizontal pipeline's shader layout.
		descriptor, err := fragmentGroupLayout(ctx, "ssao_blur_horizontal")
		if err != nil {
			return nil, err
		}
		b.provider.SetTextureView(1, aoTarget.View)
		b.provider.SetTextureView(2, depthTarget.View)
		if bg := b.provider.BindGroup(); bg != nil {
			bg.Release()
		}
		if err := ctx.Renderer.InitBindGroup(b.provider, descriptor, nil, nil); err != nil {
			return nil, err
		}
		b.source = source
		b.aoGen = source.Generation()
		b.sceneGen = scene.Generation()
	}

	spec := source.Spec()
	params := GPUSSAOBlurParams{
		Direction:  direction,
		TexelSize:  [2]float32{1 / float32(spec.Width), 1 / float32(spec.Height)},
		DepthSigma: ssaoBlurDepthSigma,
	}
	ctx.Renderer.WriteBuffers([]bind_group_provider.BufferWrite{
		{Provider: b.provider, Binding: 0, Data: params.Marshal()},
	})
	return b.provider, nil
}

// fullscreenDraw records one fullscreen triangle draw into the target.
func (p *ssaoPass) fullscreenDraw(ctx *PassContext, key string, target renderer.Framebuffer, inputs bind_group_provider.BindGroupProvider) error {
	if err := ctx.Renderer.BeginColorPass(target); err != nil {
		return err
	}
	defer ctx.Renderer.EndColorPass()
	return ctx.Renderer.DrawCall(key, p.triangle, 1, []bind_group_provider.BindGroupProvider{inputs})
}

// ensureResources lazily creates the triangle, noise texture, sampler, kernel
// buffer, and uniform buffer, and rebinds the scene depth and normal views
// whenever the scene framebuffer's attachments are reallocated.
func (p *ssaoPass) ensureResources(ctx *PassContext) error {
	if p.triangle == nil {
		triangle, err := newScreenTriangle(ctx, "ssao triangle")
		if err != nil {
			return err
		}
		p.triangle = triangle
	}

	sceneGen := p.scene.Generation()
	if p.inputs != nil && p.inputsGen == sceneGen {
		return nil
	}

	if p.inputs == nil {
		p.inputs = bind_group_provider.NewBindGroupProvider("ssao inputs")
		if err := ctx.Renderer.InitSampler(p.inputs, 5, common.SamplerStagingData{
			AddressModeU: wgpu.AddressModeClampToEdge,
			AddressModeV: wgpu.AddressModeClampToEdge,
		}); err != nil {
			return err
		}
		if err := ctx.Renderer.InitTextureView(p.inputs, 4, common.TextureStagingData{
			Width:  SSAONoiseSize,
			Height: SSAONoiseSize,
			Pixels: noisePixels(p.noise),
		}); err != nil {
			return err
		}
	}

	depthTarget := p.scene.DepthTarget()
	normalTarget := p.scene.ColorTarget(1)
	if depthTarget == nil || normalTarget == nil {
		return fmt.Errorf("ssao scene framebuffer missing depth or normal attachment")
	}
	p.inputs.SetTextureView(2, depthTarget.View)
	p.inputs.SetTextureView(3, normalTarget.View)
	if bg := p.inputs.BindGroup(); bg != nil {
		bg.Release()
	}
	descriptor, err := fragmentGroupLayout(ctx, "ssao_occlusion")
	if err != nil {
		return err
	}
	// The kernel is a runtime-sized storage array; size the buffer for the
	// largest kernel so SetParams can grow the sample count without realloc.
	sizeOverrides := map[int]uint64{1: MaxSSAOSamples * 16}
	if err := ctx.Renderer.InitBindGroup(p.inputs, descriptor, nil, sizeOverrides); err != nil {
		return err
	}
	if !p.kernelUploaded {
		ctx.Renderer.WriteBuffers([]bind_group_provider.BufferWrite{
			{Provider: p.inputs, Binding: 1, Data: common.SliceToBytes(p.kernel)},
		})
		p.kernelUploaded = true
	}
	p.inputsGen = sceneGen
	return nil
}

// noisePixels quantizes the [-1, 1] rotation noise into RGBA8 texels; the
// shader remaps with v * 2 - 1.
func noisePixels(noise []float32) []byte {
	pixels := make([]byte, len(noise))
	for i, v := range noise {
		pixels[i] = byte((v*0.5 + 0.5) * 255)
	}
	return pixels
}

func (p *ssaoPass) Resize(width, height int) error {
	for _, fb := range []renderer.Framebuffer{p.occlusionTarget, p.blurTarget} {
		if fb == nil {
			continue
		}
		if err := fb.Resize(max(width/2, 1), max(height/2, 1)); err != nil {
			return err
		}
	}
	return nil
}

func (p *ssaoPass) Reset() error {
	for _, fb := range []renderer.Framebuffer{p.occlusionTarget, p.blurTarget} {
		if fb == nil {
			continue
		}
		if err := fb.Reset(); err != nil {
			return err
		}
	}
	return nil
}
