package scene

import (
	"encoding/binary"
	"fmt"
	"math"
	"testing"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/oloengine/olo/common"
	"github.com/oloengine/olo/engine/camera"
	"github.com/oloengine/olo/engine/environment"
	"github.com/oloengine/olo/engine/particle"
	"github.com/oloengine/olo/engine/renderer"
	"github.com/oloengine/olo/engine/renderer/bind_group_provider"
	"github.com/oloengine/olo/engine/renderer/pipeline"
	"github.com/oloengine/olo/engine/renderer/shader"
	"github.com/oloengine/olo/engine/terrain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// simRenderer records pipeline registrations, buffer writes, dispatches, and
// barriers so the kernel drivers can be asserted without a GPU.
type simRenderer struct {
	renderer.Renderer

	pipelines map[string]pipeline.Pipeline
	writes    []simWrite
	events    []string
	barriers  []renderer.BarrierFlags

	indirectDraws []simIndirectDraw

	readback []byte
	reads    int
}

type simWrite struct {
	provider bind_group_provider.BindGroupProvider
	binding  int
	data     []byte
}

type simIndirectDraw struct {
	key        string
	mesh       bind_group_provider.BindGroupProvider
	bindGroups []bind_group_provider.BindGroupProvider
}

func newSimRenderer() *simRenderer {
	return &simRenderer{pipelines: map[string]pipeline.Pipeline{}}
}

func (r *simRenderer) Pipeline(key string) pipeline.Pipeline { return r.pipelines[key] }

func (r *simRenderer) RegisterPipelines(ps ...pipeline.Pipeline) error {
	for _, p := range ps {
		if _, ok := r.pipelines[p.PipelineKey()]; ok {
			continue
		}
		r.pipelines[p.PipelineKey()] = p
	}
	return nil
}

func (r *simRenderer) InitBindGroup(provider bind_group_provider.BindGroupProvider, descriptor wgpu.BindGroupLayoutDescriptor, _ map[int]wgpu.BufferUsage, _ map[int]uint64) error {
	for _, entry := range descriptor.Entries {
		binding := int(entry.Binding)
		switch {
		case entry.StorageTexture.Format != wgpu.TextureFormatUndefined,
			entry.Texture.SampleType != wgpu.TextureSampleTypeUndefined:
			if provider.TextureView(binding) == nil {
				return fmt.Errorf("binding %d has no texture view", binding)
			}
		case entry.Sampler.Type != wgpu.SamplerBindingTypeUndefined:
			if provider.Sampler(binding) == nil {
				return fmt.Errorf("binding %d has no sampler", binding)
			}
		default:
			if provider.Buffer(binding) == nil {
				provider.SetBuffer(binding, &wgpu.Buffer{})
			}
		}
	}
	return nil
}

func (r *simRenderer) InitSampler(provider bind_group_provider.BindGroupProvider, bindingKey int, _ common.SamplerStagingData) error {
	provider.SetSampler(bindingKey, &wgpu.Sampler{})
	return nil
}

func (r *simRenderer) InitStorageTexture(provider bind_group_provider.BindGroupProvider, bindingKey int, _ common.StorageTextureStagingData) error {
	provider.SetTextureView(bindingKey, &wgpu.TextureView{})
	return nil
}

func (r *simRenderer) InitMeshBuffers(provider bind_group_provider.BindGroupProvider, _, _ []byte, indexCount int) error {
	provider.SetVertexBuffer(&wgpu.Buffer{})
	provider.SetIndexBuffer(&wgpu.Buffer{})
	provider.SetIndexCount(indexCount)
	return nil
}

func (r *simRenderer) WriteBuffers(writes []bind_group_provider.BufferWrite) {
	for _, w := range writes {
		r.writes = append(r.writes, simWrite{
			provider: w.Provider,
			binding:  w.Binding,
			data:     append([]byte(nil), w.Data...),
		})
		r.events = append(r.events, fmt.Sprintf("write:%d", w.Binding))
	}
}

func (r *simRenderer) DispatchCompute(key string, _ bind_group_provider.BindGroupProvider, groups [3]uint32) {
	r.events = append(r.events, fmt.Sprintf("dispatch:%s:%dx%dx%d", key, groups[0], groups[1], groups[2]))
}

func (r *simRenderer) MemoryBarrier(flags renderer.BarrierFlags) {
	r.barriers = append(r.barriers, flags)
	r.events = append(r.events, "barrier")
}

func (r *simRenderer) ReadBuffer(_ *wgpu.Buffer, _, size uint64) ([]byte, error) {
	r.reads++
	if r.readback != nil {
		return r.readback, nil
	}
	return make([]byte, size), nil
}

func (r *simRenderer) DrawCall(string, bind_group_provider.BindGroupProvider, uint32, []bind_group_provider.BindGroupProvider) error {
	return nil
}

func (r *simRenderer) DrawCallIndirect(key string, mesh bind_group_provider.BindGroupProvider, _ *wgpu.Buffer, bindGroups []bind_group_provider.BindGroupProvider) error {
	r.indirectDraws = append(r.indirectDraws, simIndirectDraw{key: key, mesh: mesh, bindGroups: bindGroups})
	return nil
}

// lastWrite returns the most recent recorded write to the given binding.
func (r *simRenderer) lastWrite(binding int) *simWrite {
	for i := len(r.writes) - 1; i >= 0; i-- {
		if r.writes[i].binding == binding {
			return &r.writes[i]
		}
	}
	return nil
}

type simCamera struct {
	camera.Camera
	bgp bind_group_provider.BindGroupProvider
}

func (c *simCamera) BindGroupProvider() bind_group_provider.BindGroupProvider { return c.bgp }
func (c *simCamera) Update()                                                  {}
func (c *simCamera) Controller() camera.CameraController                      { return nil }
func (c *simCamera) ViewProjectionMatrix() [16]float32 {
	var m [16]float32
	m[0], m[5], m[10], m[15] = 1, 1, 1, 1
	return m
}

type simShader struct{ shader.Shader }

func (s *simShader) BindGroupVarNames() map[int]map[int]string {
	return map[int]map[int]string{0: {0: "camera"}}
}

func (s *simShader) BindGroupLayoutDescriptor(int) wgpu.BindGroupLayoutDescriptor {
	return wgpu.BindGroupLayoutDescriptor{}
}

func newSimScene(t *testing.T) (Scene, *simRenderer) {
	t.Helper()
	r := newSimRenderer()
	cam := &simCamera{bgp: bind_group_provider.NewBindGroupProvider("sim camera")}
	return NewScene("sim", cam, r, &simShader{}), r
}

func TestAttachParticlesRegistersKernelsAndSeedsPool(t *testing.T) {
	s, r := newSimScene(t)

	s.AttachParticles(particle.NewSystem(particle.WithMaxParticles(256)))

	for _, key := range []string{
		particleEmitPipelineKey,
		particleSimulatePipelineKey,
		particleCompactPipelineKey,
		particleBuildIndirectPipelineKey,
		particleBillboardPipelineKey,
	} {
		require.NotNil(t, r.pipelines[key], key)
	}

	// Kernel sources parse with their shared struct definitions prepended.
	emit := r.pipelines[particleEmitPipelineKey].Shader(shader.ShaderTypeCompute)
	require.NotNil(t, emit)
	assert.Equal(t, [3]uint32{particle.ParticleWorkgroupSize, 1, 1}, emit.WorkgroupSize())

	free := r.lastWrite(particle.FreeListBinding)
	require.NotNil(t, free)
	require.Len(t, free.data, 256*4)
	assert.Equal(t, uint32(0), binary.LittleEndian.Uint32(free.data[0:4]))
	assert.Equal(t, uint32(255), binary.LittleEndian.Uint32(free.data[255*4:]))

	// Counters start with every slot on the dead list.
	counters := r.lastWrite(particle.CountersBinding)
	require.NotNil(t, counters)
	assert.Equal(t, uint32(0), binary.LittleEndian.Uint32(counters.data[0:4]))
	assert.Equal(t, uint32(256), binary.LittleEndian.Uint32(counters.data[4:8]))
}

func TestParticleKernelChainDispatchOrder(t *testing.T) {
	s, r := newSimScene(t)
	sys := particle.NewSystem(particle.WithMaxParticles(128))
	sys.AddEmitter(particle.Emitter{
		Direction: [3]float32{0, 1, 0},
		Rate:      100,
		Speed:     1,
		LifeMin:   1,
		LifeMax:   2,
		SizeMin:   0.1,
		SizeMax:   0.2,
	})
	s.AttachParticles(sys)
	r.events = nil
	r.barriers = nil

	s.PrepareCompute(1.0)

	// Camera uniform, then the sim uniform and the 100 staged particles,
	// then the kernel chain with the alive counter zeroed between the
	// simulate and compact dispatches.
	assert.Equal(t, []string{
		"write:0",
		"write:0",
		"write:1",
		"dispatch:particle_emit:2x1x1",
		"barrier",
		"dispatch:particle_simulate:2x1x1",
		"barrier",
		"write:14",
		"dispatch:particle_compact:2x1x1",
		"barrier",
		"dispatch:particle_build_indirect:1x1x1",
		"barrier",
	}, r.events)

	require.Len(t, r.barriers, 4)
	assert.True(t, r.barriers[0].Has(renderer.BarrierShaderStorage))
	assert.True(t, r.barriers[1].Has(renderer.BarrierAtomicCounter))
	assert.True(t, r.barriers[2].Has(renderer.BarrierShaderStorage))
	assert.True(t, r.barriers[3].Has(renderer.BarrierCommand))

	// The zeroed alive counter write is 4 bytes at the counter buffer head.
	counters := r.lastWrite(particle.CountersBinding)
	require.NotNil(t, counters)
	assert.Equal(t, []byte{0, 0, 0, 0}, counters.data)
}

func TestWindAndSnowKernelsDispatchEachFrame(t *testing.T) {
	s, r := newSimScene(t)
	s.SetWind(environment.NewWind())

	sn := environment.NewSnow()
	sn.SetEnabled(true)
	sn.RequestClear()
	s.SetSnow(sn)
	sn.SubmitDeformer(environment.GPUSnowDeformer{
		Position: [3]float32{1, 0, 1},
		Radius:   2,
		Depth:    0.5,
	})
	r.events = nil

	s.PrepareCompute(0.016)

	assert.Contains(t, r.events, "dispatch:env_wind_generate:16x16x16")
	assert.Contains(t, r.events, "dispatch:snow_clear:256x256x1")
	assert.Contains(t, r.events, "dispatch:snow_deform:256x256x1")
	assert.Contains(t, r.events, "dispatch:snow_accumulate:256x256x1")

	wind := r.lastWrite(environment.WindUniformBinding)
	require.NotNil(t, wind)
	assert.Len(t, wind.data, 64)

	// The uniform captures the stamp count before the queue is drained.
	snowUniform := r.lastWrite(environment.SnowUniformBinding)
	require.NotNil(t, snowUniform)
	require.Len(t, snowUniform.data, 320)
	deformerCount := math.Float32frombits(binary.LittleEndian.Uint32(snowUniform.data[268:272]))
	assert.Equal(t, float32(1), deformerCount)

	// Clear and deform are one-shot: the next frame only accumulates.
	r.events = nil
	s.PrepareCompute(0.016)
	assert.NotContains(t, r.events, "dispatch:snow_clear:256x256x1")
	assert.NotContains(t, r.events, "dispatch:snow_deform:256x256x1")
	assert.Contains(t, r.events, "dispatch:snow_accumulate:256x256x1")
}

func TestQueueErosionStepsIterationsAndReadsBack(t *testing.T) {
	s, r := newSimScene(t)

	h := terrain.NewHeightmap(4)
	data := h.Data()
	for i := range data {
		data[i] = 0.25
	}

	params := terrain.DefaultErosionParams()
	params.DropletCount = 128

	readback := make([]byte, 16*4)
	for i := 0; i < 16; i++ {
		binary.LittleEndian.PutUint32(readback[i*4:], uint32(0.5*erosionHeightScale))
	}
	r.readback = readback

	s.QueueErosion(h, params, 2)
	assert.True(t, s.ErosionPending())

	// The upload is the fixed-point image the kernel's atomics operate on.
	up := r.lastWrite(erosionHeightsBinding)
	require.NotNil(t, up)
	require.Len(t, up.data, 16*4)
	assert.Equal(t, uint32(0.25*erosionHeightScale), binary.LittleEndian.Uint32(up.data[0:4]))

	s.PrepareCompute(0.016)
	assert.True(t, s.ErosionPending())
	assert.Zero(t, r.reads)
	assert.Contains(t, r.events, "dispatch:terrain_erode:2x1x1")

	s.PrepareCompute(0.016)
	assert.False(t, s.ErosionPending())
	assert.Equal(t, 1, r.reads)
	assert.InDelta(t, 0.5, float64(h.At(0, 0)), 1e-6)
	assert.InDelta(t, 0.5, float64(h.At(3, 3)), 1e-6)
}

func TestDrawCallsSubmitsIndirectBillboards(t *testing.T) {
	s, r := newSimScene(t)
	s.AttachParticles(particle.NewSystem(particle.WithMaxParticles(64)))

	require.NoError(t, s.DrawCalls())

	require.Len(t, r.indirectDraws, 1)
	draw := r.indirectDraws[0]
	assert.Equal(t, particleBillboardPipelineKey, draw.key)
	require.Len(t, draw.bindGroups, 2)
	assert.Equal(t, 6, draw.mesh.IndexCount())
}
