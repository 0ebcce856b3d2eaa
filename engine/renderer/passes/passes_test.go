package passes

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/oloengine/olo/common"
	"github.com/oloengine/olo/engine/light"
	"github.com/oloengine/olo/engine/renderer"
	"github.com/oloengine/olo/engine/renderer/bind_group_provider"
	"github.com/oloengine/olo/engine/renderer/pipeline"
	"github.com/oloengine/olo/engine/renderer/shader"
)

// stubPass records lifecycle calls for chain ordering assertions.
type stubPass struct {
	basePass
	initCalls    int
	executeCalls int
	resizeCalls  int
	executeErr   error
}

func newStubPass(name string) *stubPass {
	return &stubPass{basePass: basePass{name: name, enabled: true}}
}

func (s *stubPass) Init(ctx *PassContext) error { s.initCalls++; return nil }
func (s *stubPass) Execute(ctx *PassContext) error {
	s.executeCalls++
	return s.executeErr
}
func (s *stubPass) Resize(width, height int) error { s.resizeCalls++; return nil }
func (s *stubPass) Reset() error                   { return nil }

// fakeAllocator satisfies renderer.TargetAllocator without a GPU device.
type fakeAllocator struct{}

func (fakeAllocator) CreateTarget(format renderer.AttachmentFormat, width, height, samples, layers int) (*renderer.RenderTarget, error) {
	target := &renderer.RenderTarget{Format: format}
	if layers > 1 {
		target.LayerViews = make([]*wgpu.TextureView, layers)
	}
	return target, nil
}

func (fakeAllocator) DestroyTarget(target *renderer.RenderTarget) {}

func TestChainExecutesEnabledPassesInOrder(t *testing.T) {
	a := newStubPass("a")
	b := newStubPass("b")
	c := newStubPass("c")
	b.SetEnabled(false)

	chain := NewChain(a, b, c)
	chain.Init(&PassContext{Width: 100, Height: 100})
	chain.Execute(&PassContext{})

	assert.Equal(t, 1, a.executeCalls)
	assert.Equal(t, 0, b.executeCalls, "disabled pass must not run")
	assert.Equal(t, 1, c.executeCalls)
}

func TestChainDisablesPassAfterExecuteError(t *testing.T) {
	failing := newStubPass("failing")
	failing.executeErr = errors.New("device lost")
	chain := NewChain(failing)

	chain.Execute(&PassContext{})
	chain.Execute(&PassContext{})

	assert.Equal(t, 1, failing.executeCalls, "failed pass is disabled for the session")
	assert.False(t, failing.Enabled())
}

func TestChainResizePropagatesToDisabledPasses(t *testing.T) {
	p := newStubPass("p")
	p.SetEnabled(false)
	chain := NewChain(p)
	chain.Resize(800, 600)
	assert.Equal(t, 1, p.resizeCalls)
}

func TestEffectChainFixedOrder(t *testing.T) {
	settings := PostProcessSettings{
		FXAA:    true,
		Bloom:   true,
		Tonemap: TonemapACES,
	}
	chain := settings.EffectChain()
	assert.Equal(t, []Effect{EffectBloom, EffectTonemap, EffectFXAA}, chain,
		"effects run in declaration order regardless of enable order")
}

func TestEffectChainTonemapAloneStillRuns(t *testing.T) {
	settings := PostProcessSettings{Tonemap: TonemapReinhard}
	assert.Equal(t, []Effect{EffectTonemap}, settings.EffectChain())
}

func TestEffectChainEmptyWhenNothingEnabled(t *testing.T) {
	assert.Empty(t, PostProcessSettings{}.EffectChain())
}

func TestPostProcessPassthroughReturnsInputUntouched(t *testing.T) {
	input, err := renderer.NewFramebuffer(fakeAllocator{}, nil, renderer.FramebufferSpec{
		Width:        64,
		Height:       64,
		ColorFormats: []renderer.AttachmentFormat{renderer.FormatRGBA16F},
	})
	require.NoError(t, err)

	pass := NewPostProcessPass(PostProcessSettings{})
	pass.SetInput(input)
	require.NoError(t, pass.Execute(&PassContext{}))

	assert.Same(t, input, pass.Target(), "disabled chain must hand the input framebuffer through")
	impl := pass.(*postProcessPass)
	assert.Nil(t, impl.ping, "ping target untouched before Init in passthrough mode")
	assert.Equal(t, 0, impl.pingWrites)
	assert.Equal(t, 0, impl.pongWrites)
}

func TestEffectPipelineKeysEncodeTonemapOperator(t *testing.T) {
	assert.Equal(t, "post_tonemap_reinhard", EffectPipelineKey(EffectTonemap, TonemapReinhard))
	assert.Equal(t, "post_tonemap_aces", EffectPipelineKey(EffectTonemap, TonemapACES))
	assert.Equal(t, "post_tonemap_uncharted2", EffectPipelineKey(EffectTonemap, TonemapUncharted2))
	assert.Equal(t, "post_bloom", EffectPipelineKey(EffectBloom, TonemapNone))
}

func TestSSAOKernelClampsSampleCount(t *testing.T) {
	assert.Len(t, SSAOKernel(1, 42), MinSSAOSamples*4)
	assert.Len(t, SSAOKernel(500, 42), MaxSSAOSamples*4)
	assert.Len(t, SSAOKernel(16, 42), 16*4)
}

func TestSSAOKernelSamplesLieInHemisphere(t *testing.T) {
	kernel := SSAOKernel(32, 7)
	for i := 0; i < len(kernel); i += 4 {
		x, y, z := kernel[i], kernel[i+1], kernel[i+2]
		assert.GreaterOrEqual(t, z, float32(0), "sample %d must lie in the +Z hemisphere", i/4)
		length := x*x + y*y + z*z
		assert.LessOrEqual(t, length, float32(1.0001), "sample %d must lie inside the unit sphere", i/4)
	}
}

func TestSSAOKernelDeterministicForSeed(t *testing.T) {
	assert.Equal(t, SSAOKernel(16, 99), SSAOKernel(16, 99))
	assert.NotEqual(t, SSAOKernel(16, 99), SSAOKernel(16, 100))
}

func TestSSAONoiseSizeAndRange(t *testing.T) {
	noise := SSAONoise(3)
	require.Len(t, noise, SSAONoiseSize*SSAONoiseSize*4)
	for i := 0; i < len(noise); i += 4 {
		assert.GreaterOrEqual(t, noise[i], float32(-1))
		assert.LessOrEqual(t, noise[i], float32(1))
		assert.Zero(t, noise[i+2], "rotation noise is planar")
	}
}

func TestSSAOPassClampsParams(t *testing.T) {
	pass := NewSSAOPass(GPUSSAOParams{SampleCount: 1000}, 1)
	assert.Equal(t, uint32(MaxSSAOSamples), pass.Params().SampleCount)

	pass.SetParams(GPUSSAOParams{SampleCount: 0})
	assert.Equal(t, uint32(MinSSAOSamples), pass.Params().SampleCount)
}

func TestSSAOPassAllocatesHalfResolutionTargets(t *testing.T) {
	pass := NewSSAOPass(GPUSSAOParams{SampleCount: 16}, 1)
	require.NoError(t, pass.Init(&PassContext{Allocator: fakeAllocator{}, Width: 1920, Height: 1080}))

	spec := pass.Target().Spec()
	assert.Equal(t, 960, spec.Width)
	assert.Equal(t, 540, spec.Height)
	assert.Equal(t, []renderer.AttachmentFormat{renderer.FormatRG16F}, spec.ColorFormats)
}

func TestGPUSSAOParamsMarshalLayout(t *testing.T) {
	params := GPUSSAOParams{
		Radius:      0.5,
		Bias:        0.025,
		Intensity:   1.5,
		SampleCount: 32,
	}
	params.Projection[0] = 2.0
	buf := params.Marshal()
	require.Len(t, buf, 160)
	assert.Equal(t, float32(2.0), leF32(buf[0:4]))
	assert.Equal(t, float32(0.5), leF32(buf[128:132]))
	assert.Equal(t, float32(0.025), leF32(buf[132:136]))
	assert.Equal(t, uint32(32), leU32(buf[140:144]))
}

func TestGPUSSSParamsMarshalLayout(t *testing.T) {
	params := GPUSSSParams{
		Strength:   0.8,
		Width:      4,
		Falloff:    [3]float32{1, 0.4, 0.25},
		ScreenSize: [2]float32{1280, 720},
	}
	buf := params.Marshal()
	require.Len(t, buf, 32)
	assert.Equal(t, float32(0.8), leF32(buf[0:4]))
	assert.Equal(t, float32(0.25), leF32(buf[16:20]))
	assert.Equal(t, float32(1280), leF32(buf[24:28]))
}

func TestShadowPassAllocatesLayeredDepthArrays(t *testing.T) {
	pass := NewShadowPass(2048, nil)
	require.NoError(t, pass.Init(&PassContext{Allocator: fakeAllocator{}}))

	assert.Equal(t, light.MaxCSMCascades, pass.CSMTarget().Spec().DepthLayers)
	assert.Equal(t, light.MaxSpotShadows, pass.SpotTarget().Spec().DepthLayers)
	assert.Equal(t, 6*light.MaxPointShadows, pass.PointTarget().Spec().DepthLayers)
	assert.Equal(t, 2048, pass.CSMTarget().Spec().Width)

	for layer := 0; layer < light.MaxCSMCascades; layer++ {
		_, err := pass.CSMTarget().DepthLayerView(layer)
		assert.NoError(t, err)
	}
}

func TestScenePassTargetCarriesPickingAndNormalAttachments(t *testing.T) {
	pass := NewScenePass()
	require.NoError(t, pass.Init(&PassContext{Allocator: fakeAllocator{}, Width: 640, Height: 480}))

	spec := pass.Target().Spec()
	require.Len(t, spec.ColorFormats, 3)
	assert.Equal(t, renderer.FormatRGBA16F, spec.ColorFormats[0])
	assert.Equal(t, renderer.FormatRGBA16F, spec.ColorFormats[1])
	assert.Equal(t, renderer.FormatRedInt32, spec.ColorFormats[2])
	assert.True(t, spec.HasDepth)
}

// fakeRenderer records pass recording calls without a GPU device. Pipelines
// are real pipeline objects built from the embedded pass shaders, so bind
// group layouts resolve exactly as they would against a live backend.
type fakeRenderer struct {
	renderer.Renderer

	pipelines   map[string]pipeline.Pipeline
	draws       []fakeDraw
	copies      [][2]renderer.Framebuffer
	events      []string
	passTarget renderer.Framebuffer
	passOpen   bool
	writes     map[int]int // binding -> write count, across providers
	initErr    error
}

type fakeDraw struct {
	key        string
	target     renderer.Framebuffer // nil = surface
	bindGroups int
}

func newFakeRenderer() *fakeRenderer {
	return &fakeRenderer{
		pipelines: make(map[string]pipeline.Pipeline),
		writes:    make(map[int]int),
	}
}

func (f *fakeRenderer) Pipeline(key string) pipeline.Pipeline {
	return f.pipelines[key]
}

func (f *fakeRenderer) RegisterPipelines(ps ...pipeline.Pipeline) error {
	for _, p := range ps {
		f.pipelines[p.PipelineKey()] = p
	}
	return nil
}

func (f *fakeRenderer) RegisterTargetPipeline(p pipeline.Pipeline, spec renderer.FramebufferSpec) error {
	f.pipelines[p.PipelineKey()] = p
	return nil
}

func (f *fakeRenderer) InitMeshBuffers(provider bind_group_provider.BindGroupProvider, vertexData, indexData []byte, indexCount int) error {
	provider.SetIndexCount(indexCount)
	return nil
}

func (f *fakeRenderer) InitBindGroup(provider bind_group_provider.BindGroupProvider, descriptor wgpu.BindGroupLayoutDescriptor, usageOverrides map[int]wgpu.BufferUsage, sizeOverrides map[int]uint64) error {
	return f.initErr
}

func (f *fakeRenderer) InitTextureView(provider bind_group_provider.BindGroupProvider, bindingKey int, stagingData common.TextureStagingData) error {
	return nil
}

func (f *fakeRenderer) InitSampler(provider bind_group_provider.BindGroupProvider, bindingKey int, samplerStagingData common.SamplerStagingData) error {
	return nil
}

func (f *fakeRenderer) WriteBuffers(writes []bind_group_provider.BufferWrite) {
	for _, w := range writes {
		f.writes[w.Binding]++
	}
}

func (f *fakeRenderer) BeginColorPass(fb renderer.Framebuffer) error {
	f.passOpen = true
	f.passTarget = fb
	return nil
}

func (f *fakeRenderer) BeginColorAttachmentPass(fb renderer.Framebuffer, index int) error {
	f.passOpen = true
	f.passTarget = fb
	return nil
}

func (f *fakeRenderer) EndColorPass() {
	f.passOpen = false
	f.passTarget = nil
}

func (f *fakeRenderer) DrawCall(key string, mesh bind_group_provider.BindGroupProvider, instances uint32, bindGroups []bind_group_provider.BindGroupProvider) error {
	f.draws = append(f.draws, fakeDraw{key: key, target: f.passTarget, bindGroups: len(bindGroups)})
	f.events = append(f.events, "draw:"+key)
	return nil
}

func (f *fakeRenderer) CopyColorTarget(src, dst renderer.Framebuffer) error {
	f.copies = append(f.copies, [2]renderer.Framebuffer{src, dst})
	f.events = append(f.events, "copy")
	return nil
}

func (f *fakeRenderer) drawKeys() []string {
	keys := make([]string, 0, len(f.draws))
	for _, d := range f.draws {
		keys = append(keys, d.key)
	}
	return keys
}

func newChainContext(t *testing.T, width, height int) (*fakeRenderer, *PassContext) {
	t.Helper()
	fake := newFakeRenderer()
	require.NoError(t, RegisterPipelines(fake))
	return fake, &PassContext{Renderer: fake, Allocator: fakeAllocator{}, Width: width, Height: height}
}

func newSceneFramebuffer(t *testing.T, width, height int) renderer.Framebuffer {
	t.Helper()
	fb, err := renderer.NewFramebuffer(fakeAllocator{}, nil, ScenePassSpec(width, height))
	require.NoError(t, err)
	return fb
}

func TestRegisterPipelinesProvidesChainPipelines(t *testing.T) {
	fake := newFakeRenderer()
	require.NoError(t, RegisterPipelines(fake))

	for _, key := range []string{
		"ssao_occlusion", "ssao_blur_horizontal", "ssao_blur_vertical",
		"sss_blur", "final_blit",
		"post_vignette", "post_tonemap_aces", "post_tonemap_reinhard",
		"post_tonemap_uncharted2", "post_bloom", "post_ssao_modulate",
		"post_chromatic_aberration", "post_color_grading",
	} {
		assert.NotNil(t, fake.Pipeline(key), "pipeline %q must be registered", key)
	}
}

func TestPassShaderUniformsMatchMarshalledSizes(t *testing.T) {
	fake := newFakeRenderer()
	require.NoError(t, RegisterPipelines(fake))

	uniformSize := func(key string) uint64 {
		frag := fake.Pipeline(key).Shader(shader.ShaderTypeFragment)
		require.NotNil(t, frag)
		desc := frag.BindGroupLayoutDescriptor(0)
		require.NotEmpty(t, desc.Entries)
		return desc.Entries[0].Buffer.MinBindingSize
	}

	ssao := GPUSSAOParams{}
	blur := GPUSSAOBlurParams{}
	sss := GPUSSSParams{}
	post := GPUPostProcessParams{}
	assert.Equal(t, uint64(len(ssao.Marshal())), uniformSize("ssao_occlusion"))
	assert.Equal(t, uint64(len(blur.Marshal())), uniformSize("ssao_blur_horizontal"))
	assert.Equal(t, uint64(len(sss.Marshal())), uniformSize("sss_blur"))
	assert.Equal(t, uint64(len(post.Marshal())), uniformSize("post_vignette"))
}

func TestScenePassRunsBucketAndDrawHookInsideColorPass(t *testing.T) {
	fake, ctx := newChainContext(t, 320, 240)
	pass := NewScenePass()
	require.NoError(t, pass.Init(ctx))

	hookCalls := 0
	pass.SetDrawFunc(func() error {
		hookCalls++
		assert.True(t, fake.passOpen, "scene draws must be recorded inside the scene color pass")
		assert.Same(t, pass.Target(), fake.passTarget)
		return nil
	})

	require.NoError(t, pass.Execute(ctx))
	assert.Equal(t, 1, hookCalls)
	assert.False(t, fake.passOpen, "color pass must be closed after Execute")
}

func TestSSAOPassRecordsOcclusionAndSeparableBlur(t *testing.T) {
	fake, ctx := newChainContext(t, 640, 480)
	pass := NewSSAOPass(GPUSSAOParams{SampleCount: 16}, 1)
	require.NoError(t, pass.Init(ctx))
	pass.SetScene(newSceneFramebuffer(t, 640, 480))

	require.NoError(t, pass.Execute(ctx))

	require.Equal(t, []string{"ssao_occlusion", "ssao_blur_horizontal", "ssao_blur_vertical"}, fake.drawKeys())
	for _, d := range fake.draws {
		assert.Equal(t, 1, d.bindGroups)
	}
	impl := pass.(*ssaoPass)
	assert.Same(t, impl.occlusionTarget, fake.draws[0].target)
	assert.Same(t, impl.blurTarget, fake.draws[1].target)
	assert.Same(t, impl.occlusionTarget, fake.draws[2].target, "vertical blur writes back into the occlusion target")
	assert.Same(t, pass.Target(), fake.draws[2].target)
}

func TestSSSPassSnapshotsSceneBeforeBlurringIntoIt(t *testing.T) {
	fake, ctx := newChainContext(t, 320, 240)
	pass := NewSSSPass(GPUSSSParams{Strength: 0.5, Width: 3})
	require.NoError(t, pass.Init(ctx))
	scene := newSceneFramebuffer(t, 320, 240)
	pass.SetScene(scene)

	require.NoError(t, pass.Execute(ctx))

	require.Equal(t, []string{"copy", "draw:sss_blur"}, fake.events,
		"scene color must be copied to staging before the blur samples it")
	require.Len(t, fake.copies, 1)
	assert.Same(t, scene, fake.copies[0][0])
	assert.Same(t, pass.StagingTarget(), fake.copies[0][1])
	assert.Same(t, scene, fake.draws[0].target, "blur writes back into the scene framebuffer")
}

func TestPostProcessEffectsPingPongBetweenTargets(t *testing.T) {
	fake, ctx := newChainContext(t, 320, 240)
	pass := NewPostProcessPass(PostProcessSettings{Vignette: true, Tonemap: TonemapACES})
	require.NoError(t, pass.Init(ctx))
	scene := newSceneFramebuffer(t, 320, 240)
	pass.SetInput(scene)

	require.NoError(t, pass.Execute(ctx))

	require.Equal(t, []string{"post_tonemap_aces", "post_vignette"}, fake.drawKeys())
	impl := pass.(*postProcessPass)
	assert.Same(t, impl.ping, fake.draws[0].target)
	assert.Same(t, impl.pong, fake.draws[1].target)
	assert.Same(t, impl.pong, pass.Target())
	assert.Equal(t, 1, impl.pingWrites)
	assert.Equal(t, 1, impl.pongWrites)
}

func TestPostProcessSkipsEffectsWithoutPipelines(t *testing.T) {
	fake, ctx := newChainContext(t, 320, 240)
	// DOF has no registered pipeline; the chain must keep reading from the
	// last successfully written target.
	pass := NewPostProcessPass(PostProcessSettings{DOF: true, Vignette: true})
	require.NoError(t, pass.Init(ctx))
	pass.SetInput(newSceneFramebuffer(t, 320, 240))

	require.NoError(t, pass.Execute(ctx))

	require.Equal(t, []string{"post_vignette"}, fake.drawKeys())
	impl := pass.(*postProcessPass)
	assert.Same(t, impl.ping, pass.Target())
}

func TestFinalPassBlitsProcessedSourceOntoSurface(t *testing.T) {
	fake, ctx := newChainContext(t, 320, 240)
	source := newSceneFramebuffer(t, 320, 240)
	pass := NewFinalPass(func() renderer.Framebuffer { return source })
	require.NoError(t, pass.Init(ctx))

	require.NoError(t, pass.Execute(ctx))

	require.Equal(t, []string{"final_blit"}, fake.drawKeys())
	assert.Nil(t, fake.draws[0].target, "blit draws into the surface frame, not an offscreen pass")
	assert.Equal(t, 1, fake.draws[0].bindGroups, "blit must bind the processed color as its source")
}

func leF32(b []byte) float32 {
	return math.Float32frombits(leU32(b))
}

func leU32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}
