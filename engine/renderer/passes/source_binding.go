package passes

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/oloengine/olo/common"
	"github.com/oloengine/olo/engine/renderer"
	"github.com/oloengine/olo/engine/renderer/bind_group_provider"
	"github.com/oloengine/olo/engine/renderer/shader"
)

// newScreenTriangle creates the single oversized triangle fullscreen passes
// draw with. One triangle covers the screen without a seam down the middle;
// UVs are derived from clip position in the shaders.
func newScreenTriangle(ctx *PassContext, label string) (bind_group_provider.BindGroupProvider, error) {
	triangle := bind_group_provider.NewBindGroupProvider(label)
	vertices := []float32{
		-1, -1, 0, 1,
		3, -1, 0, 1,
		-1, 3, 0, 1,
	}
	if err := ctx.Renderer.InitMeshBuffers(triangle, common.SliceToBytes(vertices), common.SliceToBytes([]uint32{0, 1, 2}), 3); err != nil {
		return nil, err
	}
	return triangle, nil
}

// fragmentGroupLayout returns group 0 of the named pipeline's fragment shader
// so pass bind groups always match the layout the pipeline was created with.
func fragmentGroupLayout(ctx *PassContext, pipelineKey string) (wgpu.BindGroupLayoutDescriptor, error) {
	p := ctx.Renderer.Pipeline(pipelineKey)
	if p == nil {
		return wgpu.BindGroupLayoutDescriptor{}, fmt.Errorf("pipeline %q not loaded", pipelineKey)
	}
	frag := p.Shader(shader.ShaderTypeFragment)
	if frag == nil {
		return wgpu.BindGroupLayoutDescriptor{}, fmt.Errorf("pipeline %q has no fragment shader", pipelineKey)
	}
	return frag.BindGroupLayoutDescriptor(0), nil
}

// sourceBinding owns the bind group for one fullscreen source framebuffer and
// rebuilds it whenever the framebuffer's attachments are reallocated.
type sourceBinding struct {
	provider bind_group_provider.BindGroupProvider
	source   renderer.Framebuffer
	gen      uint64
}

// bind returns the provider bound to the framebuffer's color attachment 0 at
// binding 0 with a clamp sampler at binding 1, matching the named pipeline's
// fragment layout. The bind group is rebuilt when the source framebuffer or
// its generation changed.
func (s *sourceBinding) bind(ctx *PassContext, label, pipelineKey string, fb renderer.Framebuffer) (bind_group_provider.BindGroupProvider, error) {
	if fb == nil || fb.ColorTarget(0) == nil {
		return nil, fmt.Errorf("source framebuffer has no color attachment")
	}
	if s.provider != nil && s.source == fb && s.gen == fb.Generation() {
		return s.provider, nil
	}

	if s.provider == nil {
		s.provider = bind_group_provider.NewBindGroupProvider(label)
		if err := ctx.Renderer.InitSampler(s.provider, 1, common.SamplerStagingData{
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
	s.provider.SetTextureView(0, fb.ColorTarget(0).View)
	if bg := s.provider.BindGroup(); bg != nil {
		bg.Release()
	}
	if err := ctx.Renderer.InitBindGroup(s.provider, descriptor, nil, nil); err != nil {
		return nil, err
	}
	s.source = fb
	s.gen = fb.Generation()
	return s.provider, nil
}
