package passes

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/oloengine/olo/common"
	"github.com/oloengine/olo/engine/renderer"
	"github.com/oloengine/olo/engine/renderer/bind_group_provider"
)

// SSSUniformBinding is the uniform slot for subsurface scattering blur parameters.
const SSSUniformBinding = 14

// GPUSSSParams is the GPU-aligned subsurface scattering blur uniform.
// Size: 32 bytes.
type GPUSSSParams struct {
	Strength   float32    // offset  0: scatter strength multiplier
	Width      float32    // offset  4: blur kernel width in texels
	Falloff    [3]float32 // offset  8: per-channel falloff color
	_pad0      float32    // offset 20
	ScreenSize [2]float32 // offset 24: full-resolution target size
}

// Marshal serializes the params into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: 32-byte buffer ready for GPU upload
func (g *GPUSSSParams) Marshal() []byte {
	buf := make([]byte, 32)
	putF32 := func(off int, v float32) {
		binary.LittleEndian.PutUint32(buf[off:off+4], math.Float32bits(v))
	}
	putF32(0, g.Strength)
	putF32(4, g.Width)
	putF32(8, g.Falloff[0])
	putF32(12, g.Falloff[1])
	putF32(16, g.Falloff[2])
	putF32(24, g.ScreenSize[0])
	putF32(28, g.ScreenSize[1])
	return buf
}

// sssPass blurs subsurface-scattering contribution for snow-tagged
// materials. The scene pass writes an SSS mask into the alpha channel of its
// color target; this pass copies scene color to a staging texture first so
// the blur shader never reads and writes the same texture, then writes the
// blurred result back to the scene framebuffer's color-0.
type sssPass struct {
	basePass

	params  GPUSSSParams
	scene   renderer.Framebuffer
	staging renderer.Framebuffer

	triangle  bind_group_provider.BindGroupProvider
	inputs    bind_group_provider.BindGroupProvider
	inputsGen uint64

	// copies counts staging copies for the profiler.
	copies int
}

// SSSPass extends RenderPass with parameter and scene framebuffer staging.
type SSSPass interface {
	RenderPass

	// SetParams stages the blur parameters for the next Execute.
	//
	// Parameters:
	//   - params: the blur parameters
	SetParams(params GPUSSSParams)

	// SetScene stages the scene framebuffer whose color-0 holds scene color
	// and whose alpha channel holds the SSS mask.
	//
	// Parameters:
	//   - scene: the scene framebuffer
	SetScene(scene renderer.Framebuffer)

	// StagingTarget returns the staging copy framebuffer.
	//
	// Returns:
	//   - renderer.Framebuffer: the staging target
	StagingTarget() renderer.Framebuffer
}

var _ SSSPass = &sssPass{}

// NewSSSPass creates the subsurface scattering pass. Disabled by default;
// the scene enables it only when snow-tagged materials are visible.
//
// Parameters:
//   - params: the initial blur parameters
//
// Returns:
//   - SSSPass: the pass
func NewSSSPass(params GPUSSSParams) SSSPass {
	return &sssPass{
		basePass: basePass{name: "SSSPass"},
		params:   params,
	}
}

func (p *sssPass) Init(ctx *PassContext) error {
	p.ctx = ctx
	var err error
	p.staging, err = renderer.NewFramebuffer(ctx.Allocator, ctx.Resources, renderer.FramebufferSpec{
		Width:        ctx.Width,
		Height:       ctx.Height,
		ColorFormats: []renderer.AttachmentFormat{renderer.FormatRGBA16F},
	})
	if err != nil {
		return fmt.Errorf("failed to create staging target: %w", err)
	}
	return nil
}

func (p *sssPass) SetParams(params GPUSSSParams) {
	p.params = params
}

func (p *sssPass) SetScene(scene renderer.Framebuffer) {
	p.scene = scene
}

func (p *sssPass) StagingTarget() renderer.Framebuffer {
	return p.staging
}

func (p *sssPass) Execute(ctx *PassContext) error {
	if p.scene == nil || p.staging == nil {
		return nil
	}
	spec := p.staging.Spec()
	p.params.ScreenSize = [2]float32{float32(spec.Width), float32(spec.Height)}

	if ctx.Renderer.Pipeline("sss_blur") == nil {
		return fmt.Errorf("sss pipeline %q not loaded", "sss_blur")
	}

	if err := p.ensureResources(ctx); err != nil {
		return err
	}

	// Snapshot scene color so the blur never samples its own render target.
	if err := ctx.Renderer.CopyColorTarget(p.scene, p.staging); err != nil {
		return err
	}
	p.copies++

	ctx.Renderer.WriteBuffers([]bind_group_provider.BufferWrite{
		{Provider: p.inputs, Binding: 0, Data: p.params.Marshal()},
	})

	// Blur back into scene color-0 only; normals and picking stay untouched.
	if err := ctx.Renderer.BeginColorAttachmentPass(p.scene, 0); err != nil {
		return err
	}
	defer ctx.Renderer.EndColorPass()
	return ctx.Renderer.DrawCall("sss_blur", p.triangle, 1, []bind_group_provider.BindGroupProvider{p.inputs})
}

// ensureResources lazily creates the triangle, params uniform, and sampler,
// and rebinds the staging color view whenever the staging framebuffer's
// attachments are reallocated.
func (p *sssPass) ensureResources(ctx *PassContext) error {
	if p.triangle == nil {
		triangle, err := newScreenTriangle(ctx, "sss triangle")
		if err != nil {
			return err
		}
		p.triangle = triangle
	}

	stagingGen := p.staging.Generation()
	if p.inputs != nil && p.inputsGen == stagingGen {
		return nil
	}

	if p.inputs == nil {
		p.inputs = bind_group_provider.NewBindGroupProvider("sss inputs")
		if err := ctx.Renderer.InitSampler(p.inputs, 2, common.SamplerStagingData{
			AddressModeU: wgpu.AddressModeClampToEdge,
			AddressModeV: wgpu.AddressModeClampToEdge,
		}); err != nil {
			return err
		}
	}

	target := p.staging.ColorTarget(0)
	if target == nil {
		return fmt.Errorf("sss staging framebuffer has no color attachment")
	}
	p.inputs.SetTextureView(1, target.View)
	if bg := p.inputs.BindGroup(); bg != nil {
		bg.Release()
	}
	descriptor, err := fragmentGroupLayout(ctx, "sss_blur")
	if err != nil {
		return err
	}
	if err := ctx.Renderer.InitBindGroup(p.inputs, descriptor, nil, nil); err != nil {
		return err
	}
	p.inputsGen = stagingGen
	return nil
}

func (p *sssPass) Resize(width, height int) error {
	if p.staging == nil {
		return nil
	}
	return p.staging.Resize(width, height)
}

func (p *sssPass) Reset() error {
	if p.staging == nil {
		return nil
	}
	return p.staging.Reset()
}
