package passes

import (
	"fmt"
	"log"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/oloengine/olo/common"
	"github.com/oloengine/olo/engine/renderer"
	"github.com/oloengine/olo/engine/renderer/bind_group_provider"
)

// TonemapOperator selects the HDR-to-LDR mapping applied at the end of the
// post-process chain.
type TonemapOperator int

const (
	// TonemapNone disables tone mapping. HDR values are written as-is.
	TonemapNone TonemapOperator = iota

	// TonemapReinhard applies the classic Reinhard operator.
	TonemapReinhard

	// TonemapACES applies the ACES filmic approximation.
	TonemapACES

	// TonemapUncharted2 applies the Uncharted 2 filmic curve.
	TonemapUncharted2
)

// Effect identifies one entry of the post-process chain. The declaration
// order here is the execution order: effects always run in this sequence
// regardless of the order they were enabled in.
type Effect int

const (
	// EffectSSAOModulate multiplies scene color by the blurred AO term.
	EffectSSAOModulate Effect = iota

	// EffectBloom adds thresholded bright-pass blur back onto the scene.
	EffectBloom

	// EffectDOF applies depth-of-field blur.
	EffectDOF

	// EffectMotionBlur applies camera motion blur from the previous frame's view-projection.
	EffectMotionBlur

	// EffectChromaticAberration offsets color channels radially.
	EffectChromaticAberration

	// EffectColorGrading applies the color-grading LUT.
	EffectColorGrading

	// EffectTonemap applies the configured tonemap operator.
	EffectTonemap

	// EffectVignette darkens the frame edges.
	EffectVignette

	// EffectFXAA applies fast approximate anti-aliasing. Always last.
	EffectFXAA
)

// PostProcessSettings selects which effects run. The chain order is fixed;
// settings only toggle membership.
type PostProcessSettings struct {
	SSAOModulate        bool
	Bloom               bool
	DOF                 bool
	MotionBlur          bool
	ChromaticAberration bool
	ColorGrading        bool
	Tonemap             TonemapOperator
	Vignette            bool
	FXAA                bool
}

// EffectChain returns the enabled effects in execution order. Tone mapping is
// included whenever the operator is not TonemapNone, even if it is the only
// enabled effect.
//
// Returns:
//   - []Effect: the ordered enabled effects, empty when nothing is enabled
func (s PostProcessSettings) EffectChain() []Effect {
	var chain []Effect
	if s.SSAOModulate {
		chain = append(chain, EffectSSAOModulate)
	}
	if s.Bloom {
		chain = append(chain, EffectBloom)
	}
	if s.DOF {
		chain = append(chain, EffectDOF)
	}
	if s.MotionBlur {
		chain = append(chain, EffectMotionBlur)
	}
	if s.ChromaticAberration {
		chain = append(chain, EffectChromaticAberration)
	}
	if s.ColorGrading {
		chain = append(chain, EffectColorGrading)
	}
	if s.Tonemap != TonemapNone {
		chain = append(chain, EffectTonemap)
	}
	if s.Vignette {
		chain = append(chain, EffectVignette)
	}
	if s.FXAA {
		chain = append(chain, EffectFXAA)
	}
	return chain
}

// postProcessPass ping-pongs the scene color between two RGBA16F targets,
// applying the enabled effect chain. With no effects enabled the pass is a
// passthrough: Target returns the input framebuffer and neither ping nor
// pong is touched.
type postProcessPass struct {
	basePass

	settings PostProcessSettings
	params   GPUPostProcessParams
	input    renderer.Framebuffer
	aoInput  renderer.Framebuffer
	target   renderer.Framebuffer
	ping     renderer.Framebuffer
	pong     renderer.Framebuffer
	triangle bind_group_provider.BindGroupProvider
	sources  map[renderer.Framebuffer]*postBinding

	// pingWrites and pongWrites count effect writes per target, exposed for
	// the profiler and the passthrough contract.
	pingWrites, pongWrites int
}

// postBinding owns the bind group reading one ping-pong source: the effect
// uniform, the source color, a clamp sampler, and the blurred AO term.
type postBinding struct {
	provider bind_group_provider.BindGroupProvider
	gen      uint64
	aoGen    uint64
}

// PostProcessPass extends RenderPass with input staging, settings control,
// and the output target query the final blit samples from.
type PostProcessPass interface {
	RenderPass

	// SetInput stages the framebuffer holding the scene color for this frame.
	//
	// Parameters:
	//   - input: the scene color framebuffer
	SetInput(input renderer.Framebuffer)

	// SetAOInput stages the blurred ambient occlusion framebuffer the SSAO
	// modulate effect reads. Nil falls back to the source color, leaving the
	// effect a no-op multiply by its own luminance-independent channel.
	//
	// Parameters:
	//   - ao: the blurred AO framebuffer, or nil
	SetAOInput(ao renderer.Framebuffer)

	// SetParams stages the effect uniform for the next Execute. Screen size
	// is filled in from the ping target each frame.
	//
	// Parameters:
	//   - params: the effect parameters
	SetParams(params GPUPostProcessParams)

	// SetSettings replaces the effect settings.
	//
	// Parameters:
	//   - settings: the new settings
	SetSettings(settings PostProcessSettings)

	// Settings returns the active effect settings.
	//
	// Returns:
	//   - PostProcessSettings: the active settings
	Settings() PostProcessSettings

	// Target returns the framebuffer holding the final processed color. When
	// no effect is enabled this is the input framebuffer itself.
	//
	// Returns:
	//   - renderer.Framebuffer: the output framebuffer
	Target() renderer.Framebuffer
}

var _ PostProcessPass = &postProcessPass{}

// NewPostProcessPass creates the post-process pass with the given settings.
//
// Parameters:
//   - settings: the initial effect settings
//
// Returns:
//   - PostProcessPass: the pass
func NewPostProcessPass(settings PostProcessSettings) PostProcessPass {
	return &postProcessPass{
		basePass: basePass{name: "PostProcessPass", enabled: true},
		settings: settings,
	}
}

func (p *postProcessPass) Init(ctx *PassContext) error {
	p.ctx = ctx
	var err error
	spec := renderer.FramebufferSpec{
		Width:        ctx.Width,
		Height:       ctx.Height,
		ColorFormats: []renderer.AttachmentFormat{renderer.FormatRGBA16F},
	}
	if p.ping, err = renderer.NewFramebuffer(ctx.Allocator, ctx.Resources, spec); err != nil {
		return fmt.Errorf("failed to create ping target: %w", err)
	}
	if p.pong, err = renderer.NewFramebuffer(ctx.Allocator, ctx.Resources, spec); err != nil {
		return fmt.Errorf("failed to create pong target: %w", err)
	}

	if p.triangle, err = newScreenTriangle(ctx, "post triangle"); err != nil {
		return fmt.Errorf("failed to create fullscreen triangle: %w", err)
	}
	p.sources = make(map[renderer.Framebuffer]*postBinding)
	return nil
}

func (p *postProcessPass) SetInput(input renderer.Framebuffer) {
	p.input = input
}

func (p *postProcessPass) SetAOInput(ao renderer.Framebuffer) {
	p.aoInput = ao
}

func (p *postProcessPass) SetParams(params GPUPostProcessParams) {
	p.params = params
}

func (p *postProcessPass) SetSettings(settings PostProcessSettings) {
	p.settings = settings
}

func (p *postProcessPass) Settings() PostProcessSettings {
	return p.settings
}

func (p *postProcessPass) Target() renderer.Framebuffer {
	return p.target
}

func (p *postProcessPass) Execute(ctx *PassContext) error {
	chain := p.settings.EffectChain()
	if len(chain) == 0 {
		// Passthrough: the final blit samples the scene framebuffer directly.
		p.target = p.input
		return nil
	}

	source := p.input
	dest := p.ping
	for _, effect := range chain {
		written, err := p.applyEffect(ctx, effect, source, dest)
		if err != nil {
			return err
		}
		if !written {
			continue
		}
		if dest == p.ping {
			p.pingWrites++
		} else {
			p.pongWrites++
		}
		source = dest
		if source == p.ping {
			dest = p.pong
		} else {
			dest = p.ping
		}
	}
	p.target = source
	return nil
}

// applyEffect draws a fullscreen triangle running one effect shader, reading
// source color-0 and writing dest color-0. A missing pipeline means the
// effect shader failed to load; the entry is skipped so the chain keeps
// reading from the last successfully written target.
func (p *postProcessPass) applyEffect(ctx *PassContext, effect Effect, source, dest renderer.Framebuffer) (bool, error) {
	key := EffectPipelineKey(effect, p.settings.Tonemap)
	if ctx.Renderer.Pipeline(key) == nil {
		log.Printf("[Passes] effect pipeline %q not loaded, skipping", key)
		return false, nil
	}
	if p.triangle == nil {
		return false, nil
	}

	binding := p.sources[source]
	if binding == nil {
		binding = &postBinding{}
		p.sources[source] = binding
	}
	inputs, err := binding.bind(ctx, key, source, p.aoInput)
	if err != nil {
		return false, err
	}

	spec := dest.Spec()
	p.params.ScreenSize = [2]float32{float32(spec.Width), float32(spec.Height)}
	ctx.Renderer.WriteBuffers([]bind_group_provider.BufferWrite{
		{Provider: inputs, Binding: 0, Data: p.params.Marshal()},
	})

	if err := ctx.Renderer.BeginColorPass(dest); err != nil {
		return false, err
	}
	err = ctx.Renderer.DrawCall(key, p.triangle, 1, []bind_group_provider.BindGroupProvider{inputs})
	ctx.Renderer.EndColorPass()
	if err != nil {
		return false, err
	}
	return true, nil
}

// bind rebuilds the bind group when the source or AO attachments changed. A
// nil AO framebuffer binds the source color again at the AO slot so every
// effect pipeline sees a complete group.
func (b *postBinding) bind(ctx *PassContext, pipelineKey string, source, ao renderer.Framebuffer) (bind_group_provider.BindGroupProvider, error) {
	sourceTarget := source.ColorTarget(0)
	if sourceTarget == nil {
		return nil, fmt.Errorf("post source framebuffer has no color attachment")
	}
	aoView := sourceTarget.View
	var aoGen uint64
	if ao != nil {
		if target := ao.ColorTarget(0); target != nil {
			aoView = target.View
			aoGen = ao.Generation()
		}
	}

	if b.provider != nil && b.gen == source.Generation() && b.aoGen == aoGen {
		return b.provider, nil
	}

	if b.provider == nil {
		b.provider = bind_group_provider.NewBindGroupProvider("post source")
		if err := ctx.Renderer.InitSampler(b.provider, 2, common.SamplerStagingData{
			AddressModeU: wgpu.AddressModeClampToEdge,
			AddressModeV: wgpu.AddressModeClampToEdge,
		}); err != nil {
			return nil, err
		}
	}

	descriptor, err := fragmentGroupLayout(ctx, pipelineKey)
	if err != nil {
		return nil, err
	}
	b.provider.SetTextureView(1, sourceTarget.View)
	b.provider.SetTextureView(3, aoView)
	if bg := b.provider.BindGroup(); bg != nil {
		bg.Release()
	}
	if err := ctx.Renderer.InitBindGroup(b.provider, descriptor, nil, nil); err != nil {
		return nil, err
	}
	b.gen = source.Generation()
	b.aoGen = aoGen
	return b.provider, nil
}

// EffectPipelineKey returns the pipeline cache key for an effect. Tone
// mapping keys encode the operator so switching operators selects a
// different pipeline.
//
// Parameters:
//   - effect: the chain entry
//   - op: the tonemap operator, consulted only for EffectTonemap
//
// Returns:
//   - string: the pipeline cache key
func EffectPipelineKey(effect Effect, op TonemapOperator) string {
	switch effect {
	case EffectSSAOModulate:
		return "post_ssao_modulate"
	case EffectBloom:
		return "post_bloom"
	case EffectDOF:
		return "post_dof"
	case EffectMotionBlur:
		return "post_motion_blur"
	case EffectChromaticAberration:
		return "post_chromatic_aberration"
	case EffectColorGrading:
		return "post_color_grading"
	case EffectTonemap:
		switch op {
		case TonemapReinhard:
			return "post_tonemap_reinhard"
		case TonemapACES:
			return "post_tonemap_aces"
		case TonemapUncharted2:
			return "post_tonemap_uncharted2"
		default:
			return "post_tonemap_none"
		}
	case EffectVignette:
		return "post_vignette"
	case EffectFXAA:
		return "post_fxaa"
	default:
		return fmt.Sprintf("post_effect_%d", effect)
	}
}

func (p *postProcessPass) Resize(width, height int) error {
	for _, fb := range []renderer.Framebuffer{p.ping, p.pong} {
		if fb == nil {
			continue
		}
		if err := fb.Resize(width, height); err != nil {
			return err
		}
	}
	return nil
}

func (p *postProcessPass) Reset() error {
	for _, fb := range []renderer.Framebuffer{p.ping, p.pong} {
		if fb == nil {
			continue
		}
		if err := fb.Reset(); err != nil {
			return err
		}
	}
	return nil
}
