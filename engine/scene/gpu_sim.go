package scene

import (
	"encoding/binary"
	"fmt"
	"log"

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
)

// Compute pipeline keys for the scene-driven GPU simulations.
const (
	particleEmitPipelineKey          = "particle_emit"
	particleSimulatePipelineKey      = "particle_simulate"
	particleCompactPipelineKey       = "particle_compact"
	particleBuildIndirectPipelineKey = "particle_build_indirect"
	particleBillboardPipelineKey     = "particle_billboard"
	windGeneratePipelineKey          = "env_wind_generate"
	snowClearPipelineKey             = "snow_clear"
	snowDeformPipelineKey            = "snow_deform"
	snowAccumulatePipelineKey        = "snow_accumulate"
	terrainErodePipelineKey          = "terrain_erode"
)

// Kernel binding slots that have no exported constant in their package: the
// shared simulation uniform, the emit staging buffer, the indirect args slot,
// the wind sampler, the wind volume the simulate kernel samples, and the
// storage texture slot the wind/snow kernels write.
const (
	simUniformBinding     = 0
	emitStagingBinding    = 1
	indirectArgsBinding   = 2
	windSamplerBinding    = 3
	windVolumeBinding     = 15
	storageTextureBinding = 0
	erosionUniformBinding = 0
	erosionHeightsBinding = 1
)

// erosionHeightScale matches the erosion kernel's fixed-point scale: heights
// travel as u32 height*scale so concurrent droplets can accumulate deltas
// with atomics.
const erosionHeightScale = 1048576.0

// particleSim is the GPU residency of the attached particle system: the
// pool, free-list, counter, and indirect buffers shared across the kernel
// bind groups, plus the billboard draw resources.
type particleSim struct {
	system   particle.System
	capacity uint32

	emitBGP     bind_group_provider.BindGroupProvider
	simulateBGP bind_group_provider.BindGroupProvider
	compactBGP  bind_group_provider.BindGroupProvider
	indirectBGP bind_group_provider.BindGroupProvider

	// simulateDesc is kept so SetWind can rebuild the simulate bind group
	// around a new wind volume view.
	simulateDesc wgpu.BindGroupLayoutDescriptor

	quadBGP bind_group_provider.BindGroupProvider
	drawBGP bind_group_provider.BindGroupProvider
}

// windSim holds the wind volume texture and the generation kernel's bind group.
type windSim struct {
	wind environment.Wind
	bgp  bind_group_provider.BindGroupProvider
}

// snowSim holds the snow depth texture and the three kernel bind groups, all
// referencing the same texture view.
type snowSim struct {
	snow      environment.Snow
	clearBGP  bind_group_provider.BindGroupProvider
	deformBGP bind_group_provider.BindGroupProvider
	accumBGP  bind_group_provider.BindGroupProvider
}

// erosionJob tracks a queued GPU erosion run. One iteration dispatches per
// frame; after the last, the heights are read back into the heightmap.
type erosionJob struct {
	heightmap  *terrain.Heightmap
	params     terrain.ErosionParams
	iterations int
	iteration  int
	bgp        bind_group_provider.BindGroupProvider
}

// shareBuffers points dst at src's buffers for the given bindings so both
// bind groups reference the same GPU memory.
func shareBuffers(src, dst bind_group_provider.BindGroupProvider, bindings ...int) {
	for _, b := range bindings {
		if buf := src.Buffer(b); buf != nil {
			dst.SetBuffer(b, buf)
		}
	}
}

func (s *scene) AttachParticles(sys particle.System) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sys == nil {
		panic("scene: AttachParticles requires a non-nil System")
	}

	capacity := uint32(sys.Pool().Capacity())
	ps := &particleSim{system: sys, capacity: capacity}

	emitShader := shader.NewShaderFromSource(particleEmitPipelineKey, shader.ShaderTypeCompute,
		particle.GPUParticleSource+"\n"+particle.GPUParticleSimUniformSource+"\n"+particle.GPUEmitKernelSource, "")
	simulateShader := shader.NewShaderFromSource(particleSimulatePipelineKey, shader.ShaderTypeCompute,
		particle.GPUParticleSource+"\n"+particle.GPUParticleSimUniformSource+"\n"+particle.GPUSimulateKernelSource, "")
	compactShader := shader.NewShaderFromSource(particleCompactPipelineKey, shader.ShaderTypeCompute,
		particle.GPUParticleSource+"\n"+particle.GPUParticleSimUniformSource+"\n"+particle.GPUCompactKernelSource, "")
	indirectShader := shader.NewShaderFromSource(particleBuildIndirectPipelineKey, shader.ShaderTypeCompute,
		particle.GPUBuildIndirectKernelSource, "")

	if err := s.r.RegisterPipelines(
		pipeline.NewPipeline(particleEmitPipelineKey, pipeline.PipelineTypeCompute, pipeline.WithComputeShader(emitShader)),
		pipeline.NewPipeline(particleSimulatePipelineKey, pipeline.PipelineTypeCompute, pipeline.WithComputeShader(simulateShader)),
		pipeline.NewPipeline(particleCompactPipelineKey, pipeline.PipelineTypeCompute, pipeline.WithComputeShader(compactShader)),
		pipeline.NewPipeline(particleBuildIndirectPipelineKey, pipeline.PipelineTypeCompute, pipeline.WithComputeShader(indirectShader)),
	); err != nil {
		panic(fmt.Sprintf("scene: failed to register particle kernels: %v", err))
	}

	particleBytes := uint64(capacity) * 64
	indexBytes := uint64(capacity) * 4

	// The emit group creates the pool, free-list, counter, and uniform
	// buffers; the other groups reference the same buffers.
	ps.emitBGP = bind_group_provider.NewBindGroupProvider("Particle Emit")
	if err := s.r.InitBindGroup(ps.emitBGP, emitShader.BindGroupLayoutDescriptor(0), nil, map[int]uint64{
		emitStagingBinding:           uint64(particle.MaxEmitBatch) * 64,
		particle.ParticlePoolBinding: particleBytes,
		particle.FreeListBinding:     indexBytes,
	}); err != nil {
		panic(fmt.Sprintf("scene: failed to init particle emit bind group: %v", err))
	}

	ps.simulateBGP = bind_group_provider.NewBindGroupProvider("Particle Simulate")
	shareBuffers(ps.emitBGP, ps.simulateBGP, simUniformBinding, particle.ParticlePoolBinding, particle.FreeListBinding, particle.CountersBinding)
	if err := s.r.InitSampler(ps.simulateBGP, windSamplerBinding, common.SamplerStagingData{
		AddressModeU: wgpu.AddressModeClampToEdge,
		AddressModeV: wgpu.AddressModeClampToEdge,
		AddressModeW: wgpu.AddressModeClampToEdge,
		MagFilter:    wgpu.FilterModeLinear,
		MinFilter:    wgpu.FilterModeLinear,
	}); err != nil {
		panic(fmt.Sprintf("scene: failed to init particle wind sampler: %v", err))
	}
	// Bind the wind volume when a wind field is attached; otherwise a 1×1×1
	// zero texture keeps the layout satisfied and the kernel samples no wind.
	if s.windSim != nil {
		ps.simulateBGP.SetTextureView(windVolumeBinding, s.windSim.bgp.TextureView(storageTextureBinding))
	} else if err := s.r.InitStorageTexture(ps.simulateBGP, windVolumeBinding, common.StorageTextureStagingData{
		Width: 1, Height: 1, Depth: 1, Format: wgpu.TextureFormatRGBA16Float,
	}); err != nil {
		panic(fmt.Sprintf("scene: failed to init wind fallback texture: %v", err))
	}
	ps.simulateDesc = simulateShader.BindGroupLayoutDescriptor(0)
	if err := s.r.InitBindGroup(ps.simulateBGP, ps.simulateDesc, nil, nil); err != nil {
		panic(fmt.Sprintf("scene: failed to init particle simulate bind group: %v", err))
	}

	ps.compactBGP = bind_group_provider.NewBindGroupProvider("Particle Compact")
	shareBuffers(ps.emitBGP, ps.compactBGP, simUniformBinding, particle.ParticlePoolBinding, particle.CountersBinding)
	if err := s.r.InitBindGroup(ps.compactBGP, compactShader.BindGroupLayoutDescriptor(0), nil, map[int]uint64{
		particle.AliveListBinding: indexBytes,
	}); err != nil {
		panic(fmt.Sprintf("scene: failed to init particle compact bind group: %v", err))
	}

	ps.indirectBGP = bind_group_provider.NewBindGroupProvider("Particle Indirect Args")
	shareBuffers(ps.emitBGP, ps.indirectBGP, particle.CountersBinding)
	if err := s.r.InitBindGroup(ps.indirectBGP, indirectShader.BindGroupLayoutDescriptor(0), map[int]wgpu.BufferUsage{
		indirectArgsBinding: wgpu.BufferUsageIndirect,
	}, nil); err != nil {
		panic(fmt.Sprintf("scene: failed to init particle indirect bind group: %v", err))
	}

	// Seed the free list with every slot and the dead counter with the
	// capacity; the pool and alive list start zeroed.
	freeList := make([]byte, indexBytes)
	for i := uint32(0); i < capacity; i++ {
		binary.LittleEndian.PutUint32(freeList[i*4:], i)
	}
	counters := particle.GPUParticleCounters{Dead: capacity}
	s.r.WriteBuffers([]bind_group_provider.BufferWrite{
		{Provider: ps.emitBGP, Binding: particle.FreeListBinding, Offset: 0, Data: freeList},
		{Provider: ps.emitBGP, Binding: particle.CountersBinding, Offset: 0, Data: counters.Marshal()},
	})

	drawSource := camera.GPUCameraUniformSource + "\n" + particle.GPUParticleSource + "\n" + particle.GPUBillboardShaderSource
	billboardVS := shader.NewShaderFromSource(particleBillboardPipelineKey+"_vs", shader.ShaderTypeVertex, drawSource, "vs_main")
	billboardFS := shader.NewShaderFromSource(particleBillboardPipelineKey+"_fs", shader.ShaderTypeFragment, drawSource, "fs_main")
	if err := s.r.RegisterPipelines(pipeline.NewPipeline(particleBillboardPipelineKey, pipeline.PipelineTypeRender,
		pipeline.WithVertexShader(billboardVS),
		pipeline.WithFragmentShader(billboardFS),
		pipeline.WithBlendEnabled(true),
		pipeline.WithDepthWriteEnabled(false),
	)); err != nil {
		panic(fmt.Sprintf("scene: failed to register particle billboard pipeline: %v", err))
	}

	ps.quadBGP = bind_group_provider.NewBindGroupProvider("Particle Quad")
	corners := []float32{-1, -1, 1, -1, 1, 1, -1, 1}
	if err := s.r.InitMeshBuffers(ps.quadBGP, common.SliceToBytes(corners), common.SliceToBytes([]uint32{0, 1, 2, 0, 2, 3}), 6); err != nil {
		panic(fmt.Sprintf("scene: failed to init particle quad mesh: %v", err))
	}

	ps.drawBGP = bind_group_provider.NewBindGroupProvider("Particle Draw")
	shareBuffers(ps.emitBGP, ps.drawBGP, particle.ParticlePoolBinding)
	shareBuffers(ps.compactBGP, ps.drawBGP, particle.AliveListBinding)
	if err := s.r.InitBindGroup(ps.drawBGP, billboardVS.BindGroupLayoutDescriptor(1), nil, nil); err != nil {
		panic(fmt.Sprintf("scene: failed to init particle draw bind group: %v", err))
	}

	s.particles = ps
}

func (s *scene) SetWind(w environment.Wind) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if w == nil {
		s.windSim = nil
		return
	}

	windShader := shader.NewShaderFromSource(windGeneratePipelineKey, shader.ShaderTypeCompute,
		environment.GPUWindUniformSource+"\n"+environment.GPUWindGenerateKernelSource, "")
	if err := s.r.RegisterPipelines(pipeline.NewPipeline(windGeneratePipelineKey, pipeline.PipelineTypeCompute, pipeline.WithComputeShader(windShader))); err != nil {
		panic(fmt.Sprintf("scene: failed to register wind kernel: %v", err))
	}

	bgp := bind_group_provider.NewBindGroupProvider("Wind Volume")
	if err := s.r.InitStorageTexture(bgp, storageTextureBinding, common.StorageTextureStagingData{
		Width:  environment.WindGridResolution,
		Height: environment.WindGridResolution,
		Depth:  environment.WindGridResolution,
		Format: wgpu.TextureFormatRGBA16Float,
	}); err != nil {
		panic(fmt.Sprintf("scene: failed to init wind volume texture: %v", err))
	}
	if err := s.r.InitBindGroup(bgp, windShader.BindGroupLayoutDescriptor(0), nil, nil); err != nil {
		panic(fmt.Sprintf("scene: failed to init wind bind group: %v", err))
	}

	s.windSim = &windSim{wind: w, bgp: bgp}

	// Rebuild the particle simulate bind group so the kernel samples this
	// volume instead of the fallback texture.
	if ps := s.particles; ps != nil {
		ps.simulateBGP.SetTextureView(windVolumeBinding, bgp.TextureView(storageTextureBinding))
		if old := ps.simulateBGP.BindGroup(); old != nil {
			old.Release()
		}
		if err := s.r.InitBindGroup(ps.simulateBGP, ps.simulateDesc, nil, nil); err != nil {
			panic(fmt.Sprintf("scene: failed to rebind particle wind volume: %v", err))
		}
	}
}

func (s *scene) SetSnow(sn environment.Snow) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sn == nil {
		s.snowSim = nil
		return
	}

	clearShader := shader.NewShaderFromSource(snowClearPipelineKey, shader.ShaderTypeCompute,
		environment.GPUSnowClearKernelSource, "")
	deformShader := shader.NewShaderFromSource(snowDeformPipelineKey, shader.ShaderTypeCompute,
		environment.GPUSnowUniformSource+"\n"+environment.GPUSnowDeformKernelSource, "")
	accumShader := shader.NewShaderFromSource(snowAccumulatePipelineKey, shader.ShaderTypeCompute,
		environment.GPUSnowUniformSource+"\n"+environment.GPUSnowAccumulateKernelSource, "")
	if err := s.r.RegisterPipelines(
		pipeline.NewPipeline(snowClearPipelineKey, pipeline.PipelineTypeCompute, pipeline.WithComputeShader(clearShader)),
		pipeline.NewPipeline(snowDeformPipelineKey, pipeline.PipelineTypeCompute, pipeline.WithComputeShader(deformShader)),
		pipeline.NewPipeline(snowAccumulatePipelineKey, pipeline.PipelineTypeCompute, pipeline.WithComputeShader(accumShader)),
	); err != nil {
		panic(fmt.Sprintf("scene: failed to register snow kernels: %v", err))
	}

	// The accumulate group owns the depth texture and the uniform buffer;
	// the deform and clear groups reference the same texture view.
	accumBGP := bind_group_provider.NewBindGroupProvider("Snow Accumulate")
	if err := s.r.InitStorageTexture(accumBGP, storageTextureBinding, common.StorageTextureStagingData{
		Width:  environment.SnowDepthResolution,
		Height: environment.SnowDepthResolution,
		Depth:  1,
		Format: wgpu.TextureFormatR32Float,
	}); err != nil {
		panic(fmt.Sprintf("scene: failed to init snow depth texture: %v", err))
	}
	if err := s.r.InitBindGroup(accumBGP, accumShader.BindGroupLayoutDescriptor(0), nil, nil); err != nil {
		panic(fmt.Sprintf("scene: failed to init snow accumulate bind group: %v", err))
	}

	depthView := accumBGP.TextureView(storageTextureBinding)

	deformBGP := bind_group_provider.NewBindGroupProvider("Snow Deform")
	deformBGP.SetTextureView(storageTextureBinding, depthView)
	deformBGP.SetBuffer(environment.SnowUniformBinding, accumBGP.Buffer(environment.SnowUniformBinding))
	if err := s.r.InitBindGroup(deformBGP, deformShader.BindGroupLayoutDescriptor(0), nil, nil); err != nil {
		panic(fmt.Sprintf("scene: failed to init snow deform bind group: %v", err))
	}

	clearBGP := bind_group_provider.NewBindGroupProvider("Snow Clear")
	clearBGP.SetTextureView(storageTextureBinding, depthView)
	if err := s.r.InitBindGroup(clearBGP, clearShader.BindGroupLayoutDescriptor(0), nil, nil); err != nil {
		panic(fmt.Sprintf("scene: failed to init snow clear bind group: %v", err))
	}

	s.snowSim = &snowSim{snow: sn, clearBGP: clearBGP, deformBGP: deformBGP, accumBGP: accumBGP}
}

func (s *scene) QueueErosion(h *terrain.Heightmap, params terrain.ErosionParams, iterations int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if h == nil || iterations <= 0 {
		return
	}

	erodeShader := shader.NewShaderFromSource(terrainErodePipelineKey, shader.ShaderTypeCompute,
		terrain.GPUErosionKernelSource, "")
	if err := s.r.RegisterPipelines(pipeline.NewPipeline(terrainErodePipelineKey, pipeline.PipelineTypeCompute, pipeline.WithComputeShader(erodeShader))); err != nil {
		panic(fmt.Sprintf("scene: failed to register erosion kernel: %v", err))
	}

	res := h.Resolution()
	bgp := bind_group_provider.NewBindGroupProvider("Terrain Erosion")
	if err := s.r.InitBindGroup(bgp, erodeShader.BindGroupLayoutDescriptor(0), map[int]wgpu.BufferUsage{
		erosionHeightsBinding: wgpu.BufferUsageCopySrc,
	}, map[int]uint64{
		erosionHeightsBinding: uint64(res*res) * 4,
	}); err != nil {
		panic(fmt.Sprintf("scene: failed to init erosion bind group: %v", err))
	}

	// Upload the fixed-point height image the kernel's atomics operate on.
	heights := make([]byte, res*res*4)
	for i, v := range h.Data() {
		if v < 0 {
			v = 0
		}
		binary.LittleEndian.PutUint32(heights[i*4:], uint32(v*erosionHeightScale))
	}
	s.r.WriteBuffers([]bind_group_provider.BufferWrite{
		{Provider: bgp, Binding: erosionHeightsBinding, Offset: 0, Data: heights},
	})

	s.erosion = &erosionJob{heightmap: h, params: params, iterations: iterations, bgp: bgp}
}

func (s *scene) ErosionPending() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.erosion != nil
}

// dispatchSimulations runs the per-frame GPU simulation work: the wind and
// snow texture kernels, the particle kernel chain, and one queued erosion
// iteration. Runs inside the batched compute frame; each barrier splits the
// submission at a producer/consumer edge.
func (s *scene) dispatchSimulations(deltaTime float32, camPos [3]float32) {
	s.dispatchWind(camPos)
	s.dispatchSnow(camPos)
	s.dispatchParticles(deltaTime)
	s.stepErosion()
}

func (s *scene) dispatchWind(camPos [3]float32) {
	w := s.windSim
	if w == nil || !w.wind.Enabled() {
		return
	}

	w.wind.Update(camPos, s.elapsed)
	uniform := w.wind.Uniform()
	s.r.WriteBuffers([]bind_group_provider.BufferWrite{
		{Provider: w.bgp, Binding: environment.WindUniformBinding, Offset: 0, Data: uniform.Marshal()},
	})

	groups := uint32(environment.WindGridResolution / environment.WindWorkgroupSize)
	s.r.DispatchCompute(windGeneratePipelineKey, w.bgp, [3]uint32{groups, groups, groups})
	// The particle simulate kernel samples the volume this same frame.
	s.r.MemoryBarrier(renderer.BarrierTextureFetch)
}

func (s *scene) dispatchSnow(camPos [3]float32) {
	sn := s.snowSim
	if sn == nil || !sn.snow.Enabled() {
		return
	}

	sn.snow.Update(camPos, s.elapsed)
	uniform := sn.snow.Uniform() // captures this frame's deformer count
	stamps := sn.snow.TakeDeformers()

	writes := []bind_group_provider.BufferWrite{
		{Provider: sn.accumBGP, Binding: environment.SnowUniformBinding, Offset: 0, Data: uniform.Marshal()},
	}
	if len(stamps) > 0 {
		writes = append(writes, bind_group_provider.BufferWrite{
			Provider: sn.deformBGP,
			Binding:  environment.SnowDeformerBinding,
			Offset:   0,
			Data:     environment.MarshalSnowDeformers(stamps),
		})
	}
	s.r.WriteBuffers(writes)

	groups := uint32(environment.SnowDepthResolution / environment.SnowWorkgroupSize)
	if sn.snow.TakePendingClear() {
		s.r.DispatchCompute(snowClearPipelineKey, sn.clearBGP, [3]uint32{groups, groups, 1})
		s.r.MemoryBarrier(renderer.BarrierShaderImageAccess)
	}
	if len(stamps) > 0 {
		s.r.DispatchCompute(snowDeformPipelineKey, sn.deformBGP, [3]uint32{groups, groups, 1})
		s.r.MemoryBarrier(renderer.BarrierShaderImageAccess)
	}
	s.r.DispatchCompute(snowAccumulatePipelineKey, sn.accumBGP, [3]uint32{groups, groups, 1})
	// Terrain and PBR shaders sample the depth texture during the draw phase.
	s.r.MemoryBarrier(renderer.BarrierTextureFetch)
}

func (s *scene) dispatchParticles(deltaTime float32) {
	ps := s.particles
	if ps == nil {
		return
	}

	staged := ps.system.Stage(deltaTime)
	uniform := ps.system.SimUniform(deltaTime)
	writes := []bind_group_provider.BufferWrite{
		{Provider: ps.emitBGP, Binding: simUniformBinding, Offset: 0, Data: uniform.Marshal()},
	}
	if len(staged) > 0 {
		data := make([]byte, 0, len(staged)*64)
		for i := range staged {
			data = append(data, staged[i].Marshal()...)
		}
		writes = append(writes, bind_group_provider.BufferWrite{
			Provider: ps.emitBGP, Binding: emitStagingBinding, Offset: 0, Data: data,
		})
	}
	s.r.WriteBuffers(writes)

	if len(staged) > 0 {
		groups := (uint32(len(staged)) + particle.ParticleWorkgroupSize - 1) / particle.ParticleWorkgroupSize
		s.r.DispatchCompute(particleEmitPipelineKey, ps.emitBGP, [3]uint32{groups, 1, 1})
		s.r.MemoryBarrier(renderer.BarrierShaderStorage)
	}

	poolGroups := (ps.capacity + particle.ParticleWorkgroupSize - 1) / particle.ParticleWorkgroupSize
	s.r.DispatchCompute(particleSimulatePipelineKey, ps.simulateBGP, [3]uint32{poolGroups, 1, 1})
	s.r.MemoryBarrier(renderer.BarrierShaderStorage | renderer.BarrierAtomicCounter)

	// The compact kernel repopulates the alive list from a zeroed counter.
	// Queue writes land before the next split's submission executes.
	s.r.WriteBuffers([]bind_group_provider.BufferWrite{
		{Provider: ps.emitBGP, Binding: particle.CountersBinding, Offset: 0, Data: []byte{0, 0, 0, 0}},
	})
	s.r.DispatchCompute(particleCompactPipelineKey, ps.compactBGP, [3]uint32{poolGroups, 1, 1})
	s.r.MemoryBarrier(renderer.BarrierShaderStorage)

	s.r.DispatchCompute(particleBuildIndirectPipelineKey, ps.indirectBGP, [3]uint32{1, 1, 1})
	// The draw phase consumes the indirect args buffer.
	s.r.MemoryBarrier(renderer.BarrierCommand)
}

func (s *scene) stepErosion() {
	job := s.erosion
	if job == nil {
		return
	}

	res := job.heightmap.Resolution()
	var uniform terrain.GPUErosionUniform
	uniform.FromParams(job.params, res, job.iteration)
	s.r.WriteBuffers([]bind_group_provider.BufferWrite{
		{Provider: job.bgp, Binding: erosionUniformBinding, Offset: 0, Data: uniform.Marshal()},
	})

	groups := (uint32(job.params.DropletCount) + terrain.ErosionWorkgroupSize - 1) / terrain.ErosionWorkgroupSize
	s.r.DispatchCompute(terrainErodePipelineKey, job.bgp, [3]uint32{groups, 1, 1})
	s.r.MemoryBarrier(renderer.BarrierShaderStorage | renderer.BarrierAtomicCounter)

	job.iteration++
	if job.iteration < job.iterations {
		return
	}
	s.erosion = nil

	// The barrier above submitted the final iteration, so the readback
	// observes its writes.
	data, err := s.r.ReadBuffer(job.bgp.Buffer(erosionHeightsBinding), 0, uint64(res*res)*4)
	if err != nil {
		log.Printf("[Scene] erosion readback failed: %v", err)
		return
	}
	heights := job.heightmap.Data()
	for i := range heights {
		fixed := binary.LittleEndian.Uint32(data[i*4:])
		heights[i] = float32(fixed) / erosionHeightScale
	}
}
