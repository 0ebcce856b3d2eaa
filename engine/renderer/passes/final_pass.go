package passes

import (
	"fmt"

	"github.com/oloengine/olo/common"
	"github.com/oloengine/olo/engine/renderer"
	"github.com/oloengine/olo/engine/renderer/bind_group_provider"
)

// finalPass blits the post-process output to the default framebuffer with a
// single fullscreen triangle. It runs inside the surface frame, after the
// offscreen pass frame has been submitted.
type finalPass struct {
	basePass

	source   func() renderer.Framebuffer
	triangle bind_group_provider.BindGroupProvider
	binding  sourceBinding
}

var _ RenderPass = &finalPass{}

// NewFinalPass creates the final blit pass. The source function is queried
// each frame so the blit follows the post-process chain's passthrough
// decision without explicit rewiring.
//
// Parameters:
//   - source: returns the framebuffer to present this frame
//
// Returns:
//   - RenderPass: the pass
func NewFinalPass(source func() renderer.Framebuffer) RenderPass {
	return &finalPass{
		basePass: basePass{name: "FinalPass", enabled: true},
		source:   source,
	}
}

func (p *finalPass) Init(ctx *PassContext) error {
	p.ctx = ctx
	p.triangle = bind_group_provider.NewBindGroupProvider("final blit triangle")
	vertices := []float32{
		-1, -1, 0, 1,
		3, -1, 0, 1,
		-1, 3, 0, 1,
	}
	if err := ctx.Renderer.InitMeshBuffers(p.triangle, common.SliceToBytes(vertices), common.SliceToBytes([]uint32{0, 1, 2}), 3); err != nil {
		return fmt.Errorf("failed to create blit triangle: %w", err)
	}
	return nil
}

func (p *finalPass) Execute(ctx *PassContext) error {
	if p.source == nil {
		return nil
	}
	src := p.source()
	if src == nil {
		return nil
	}
	if ctx.Renderer.Pipeline("final_blit") == nil {
		return fmt.Errorf("final blit pipeline not loaded")
	}
	inputs, err := p.binding.bind(ctx, "final blit source", "final_blit", src)
	if err != nil {
		return err
	}
	// Runs inside the surface frame, so the draw lands on the swapchain.
	return ctx.Renderer.DrawCall("final_blit", p.triangle, 1, []bind_group_provider.BindGroupProvider{inputs})
}

func (p *finalPass) Resize(width, height int) error {
	return nil
}

func (p *finalPass) Reset() error {
	return nil
}
