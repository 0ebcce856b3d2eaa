package passes

import (
	"fmt"

	"github.com/oloengine/olo/engine/renderer"
	"github.com/oloengine/olo/engine/renderer/command"
)

// Scene pass texture slots for the shared binding layout. PBR material
// textures occupy slots 0-12; shadow arrays follow.
const (
	// SlotShadowCSMArray is the cascade depth array sampler slot.
	SlotShadowCSMArray = 8

	// SlotShadowSpotArray is the spot shadow depth array sampler slot.
	SlotShadowSpotArray = 13

	// SlotShadowPointFirst is the first of four point shadow cube slots (14-17).
	SlotShadowPointFirst = 14
)

// scenePass draws the frame's geometry from the command bucket into an HDR
// color target with a view-space-normal attachment for SSAO and an entity ID
// attachment for picking. The bucket's sort key puts opaque packets before
// transparent ones, so a single sorted walk renders both ranges in order.
type scenePass struct {
	basePass

	bucket command.Bucket
	target renderer.Framebuffer
	stats  command.Stats
	draw   func() error
}

// ScenePass extends RenderPass with bucket access and the HDR target the
// post-process chain reads from.
type ScenePass interface {
	RenderPass

	// Bucket returns the command bucket packets are submitted to.
	//
	// Returns:
	//   - command.Bucket: the frame's draw bucket
	Bucket() command.Bucket

	// Target returns the HDR scene framebuffer.
	//
	// Returns:
	//   - renderer.Framebuffer: the scene target
	Target() renderer.Framebuffer

	// Stats returns the bucket statistics from the last Execute.
	//
	// Returns:
	//   - command.Stats: the last frame's draw statistics
	Stats() command.Stats

	// SetDrawFunc registers a callback invoked inside the pass's render target
	// after the bucket's own packets execute. The engine points this at the
	// active scenes' draw submission so scene geometry lands in the same
	// G-buffer pass.
	//
	// Parameters:
	//   - draw: the callback, or nil to clear
	SetDrawFunc(draw func() error)
}

var _ ScenePass = &scenePass{}

// NewScenePass creates the scene geometry pass with an empty command bucket.
//
// Returns:
//   - ScenePass: the pass
func NewScenePass() ScenePass {
	return &scenePass{
		basePass: basePass{name: "ScenePass", enabled: true},
		bucket:   command.NewBucket(),
	}
}

func (p *scenePass) Init(ctx *PassContext) error {
	p.ctx = ctx
	var err error
	p.target, err = renderer.NewFramebuffer(ctx.Allocator, ctx.Resources, ScenePassSpec(ctx.Width, ctx.Height))
	if err != nil {
		return fmt.Errorf("failed to create scene target: %w", err)
	}
	return nil
}

func (p *scenePass) Bucket() command.Bucket {
	return p.bucket
}

func (p *scenePass) Target() renderer.Framebuffer {
	return p.target
}

func (p *scenePass) Stats() command.Stats {
	return p.stats
}

func (p *scenePass) SetDrawFunc(draw func() error) {
	p.draw = draw
}

func (p *scenePass) Execute(ctx *PassContext) error {
	if err := ctx.Renderer.BeginColorPass(p.target); err != nil {
		return err
	}
	defer ctx.Renderer.EndColorPass()

	p.bucket.Sort()
	p.bucket.Batch()
	err := p.bucket.Execute(ctx.Renderer)
	p.stats = p.bucket.Stats()
	p.bucket.Reset()
	if err != nil {
		return err
	}
	if p.draw != nil {
		return p.draw()
	}
	return nil
}

func (p *scenePass) Resize(width, height int) error {
	if p.target == nil {
		return nil
	}
	return p.target.Resize(width, height)
}

func (p *scenePass) Reset() error {
	if p.target == nil {
		return nil
	}
	return p.target.Reset()
}
