package passes

import (
	"fmt"

	"github.com/oloengine/olo/engine/light"
	"github.com/oloengine/olo/engine/renderer"
)

// ShadowPassType identifies which shadow map family a caster enumeration
// targets.
type ShadowPassType int

const (
	// ShadowPassCSM renders into one directional cascade layer.
	ShadowPassCSM ShadowPassType = iota

	// ShadowPassSpot renders into one spot shadow array layer.
	ShadowPassSpot

	// ShadowPassPoint renders into one point shadow cube face.
	ShadowPassPoint
)

// CasterEnumeration is the per-layer render request handed to the scene's
// caster callback. For point lights, LightPosition and FarPlane feed the
// linear depth comparison in the lighting shader.
type CasterEnumeration struct {
	// LightVP is the light-space view-projection matrix for this layer.
	LightVP [16]float32

	// Layer is the cascade index, spot index, or cube-face index (face = layer % 6).
	Layer int

	// Type identifies the shadow map family.
	Type ShadowPassType

	// LightPosition is the light world position. Point lights only.
	LightPosition [3]float32

	// FarPlane is the light range. Point lights only.
	FarPlane float32
}

// CasterCallback is supplied by the scene to draw all shadow casters for one
// layer. The callback runs inside an open shadow pass and must only issue
// shadow draw calls.
type CasterCallback func(ctx *PassContext, enum CasterEnumeration) error

// ShadowFrame is the per-frame input to the shadow pass: the precomputed
// light-space matrices for every active shadow map layer.
type ShadowFrame struct {
	// Cascades holds the directional CSM matrices, one per active cascade.
	Cascades []([16]float32)

	// Spots holds one matrix per active spot shadow.
	Spots []([16]float32)

	// Points holds six face matrices per active point shadow, along with the
	// light position and range.
	Points []PointShadowFrame
}

// PointShadowFrame is the shadow input for one point light.
type PointShadowFrame struct {
	// Faces are the six cube-face view-projection matrices in +X, -X, +Y, -Y, +Z, -Z order.
	Faces [6][16]float32

	// Position is the light world position.
	Position [3]float32

	// Range is the light range, used as the comparison far plane.
	Range float32
}

// shadowPass renders all shadow-casting geometry once per cascade, spot
// layer, and point cube face into depth-only framebuffers. Front-face
// culling (configured on the shadow pipeline) reduces self-shadowing.
type shadowPass struct {
	basePass

	resolution int
	callback   CasterCallback
	frame      ShadowFrame

	csmTarget   renderer.Framebuffer
	spotTarget  renderer.Framebuffer
	pointTarget renderer.Framebuffer
}

// ShadowPass extends RenderPass with the per-frame matrix staging and the
// depth array targets the scene binds for shadow sampling.
type ShadowPass interface {
	RenderPass

	// SetFrame stages the shadow matrices for the next Execute.
	//
	// Parameters:
	//   - frame: the per-frame shadow matrices
	SetFrame(frame ShadowFrame)

	// CSMTarget returns the cascade depth array framebuffer.
	//
	// Returns:
	//   - renderer.Framebuffer: the CSM depth array
	CSMTarget() renderer.Framebuffer

	// SpotTarget returns the spot shadow depth array framebuffer.
	//
	// Returns:
	//   - renderer.Framebuffer: the spot depth array
	SpotTarget() renderer.Framebuffer

	// PointTarget returns the point shadow cube array framebuffer.
	//
	// Returns:
	//   - renderer.Framebuffer: the point cube depth array
	PointTarget() renderer.Framebuffer
}

var _ ShadowPass = &shadowPass{}

// NewShadowPass creates the shadow pass. The caster callback is invoked once
// per active shadow layer during Execute.
//
// Parameters:
//   - resolution: the shadow map resolution in texels per side (non-positive falls back to the default)
//   - callback: the scene's caster enumeration callback
//
// Returns:
//   - ShadowPass: the shadow pass
func NewShadowPass(resolution int, callback CasterCallback) ShadowPass {
	if resolution < 1 {
		resolution = light.DefaultShadowMapResolution
	}
	return &shadowPass{
		basePass:   basePass{name: "ShadowPass", enabled: true},
		resolution: resolution,
		callback:   callback,
	}
}

func (p *shadowPass) Init(ctx *PassContext) error {
	p.ctx = ctx
	var err error
	p.csmTarget, err = renderer.NewFramebuffer(ctx.Allocator, ctx.Resources, renderer.FramebufferSpec{
		Width:       p.resolution,
		Height:      p.resolution,
		HasDepth:    true,
		DepthFormat: renderer.FormatShadowDepth,
		DepthLayers: light.MaxCSMCascades,
	})
	if err != nil {
		return fmt.Errorf("failed to create CSM depth array: %w", err)
	}
	p.spotTarget, err = renderer.NewFramebuffer(ctx.Allocator, ctx.Resources, renderer.FramebufferSpec{
		Width:       p.resolution,
		Height:      p.resolution,
		HasDepth:    true,
		DepthFormat: renderer.FormatShadowDepth,
		DepthLayers: light.MaxSpotShadows,
	})
	if err != nil {
		return fmt.Errorf("failed to create spot shadow array: %w", err)
	}
	// Point cubes are stored as one 6*MaxPointShadows layer array; face views
	// are layer views at index light*6+face.
	p.pointTarget, err = renderer.NewFramebuffer(ctx.Allocator, ctx.Resources, renderer.FramebufferSpec{
		Width:       p.resolution,
		Height:      p.resolution,
		HasDepth:    true,
		DepthFormat: renderer.FormatShadowDepth,
		DepthLayers: 6 * light.MaxPointShadows,
	})
	if err != nil {
		return fmt.Errorf("failed to create point shadow cube array: %w", err)
	}
	return nil
}

// SetFrame stages the shadow matrices for the next Execute.
//
// Parameters:
//   - frame: the per-frame shadow matrices
func (p *shadowPass) SetFrame(frame ShadowFrame) {
	p.frame = frame
}

// CSMTarget returns the cascade depth array framebuffer for sampler binding.
//
// Returns:
//   - renderer.Framebuffer: the CSM depth array
func (p *shadowPass) CSMTarget() renderer.Framebuffer {
	return p.csmTarget
}

// SpotTarget returns the spot shadow depth array framebuffer.
//
// Returns:
//   - renderer.Framebuffer: the spot depth array
func (p *shadowPass) SpotTarget() renderer.Framebuffer {
	return p.spotTarget
}

// PointTarget returns the point shadow cube array framebuffer.
//
// Returns:
//   - renderer.Framebuffer: the point cube depth array
func (p *shadowPass) PointTarget() renderer.Framebuffer {
	return p.pointTarget
}

func (p *shadowPass) Execute(ctx *PassContext) error {
	if p.callback == nil {
		return nil
	}
	// Each layer gets its own shadow frame submission. The callback stages a
	// per-layer light VP uniform through the queue, and queued writes only
	// land ahead of command buffers submitted after them, so batching every
	// layer into one submission would leave all layers reading the last VP.
	run := func(target renderer.Framebuffer, layer int, enum CasterEnumeration) error {
		view, err := target.DepthLayerView(layer)
		if err != nil {
			return err
		}
		if err := ctx.Renderer.BeginShadowFrame(); err != nil {
			return err
		}
		defer ctx.Renderer.EndShadowFrame()
		ctx.Renderer.BeginShadowPass(view)
		defer ctx.Renderer.EndShadowPass()
		return p.callback(ctx, enum)
	}

	for i, vp := range p.frame.Cascades {
		if i >= light.MaxCSMCascades {
			break
		}
		if err := run(p.csmTarget, i, CasterEnumeration{LightVP: vp, Layer: i, Type: ShadowPassCSM}); err != nil {
			return err
		}
	}
	for i, vp := range p.frame.Spots {
		if i >= light.MaxSpotShadows {
			break
		}
		if err := run(p.spotTarget, i, CasterEnumeration{LightVP: vp, Layer: i, Type: ShadowPassSpot}); err != nil {
			return err
		}
	}
	for i, point := range p.frame.Points {
		if i >= light.MaxPointShadows {
			break
		}
		for face := 0; face < 6; face++ {
			enum := CasterEnumeration{
				LightVP:       point.Faces[face],
				Layer:         i*6 + face,
				Type:          ShadowPassPoint,
				LightPosition: point.Position,
				FarPlane:      point.Range,
			}
			if err := run(p.pointTarget, i*6+face, enum); err != nil {
				return err
			}
		}
	}
	return nil
}

func (p *shadowPass) Resize(width, height int) error {
	// Shadow maps are resolution-fixed; surface resizes do not affect them.
	return nil
}

func (p *shadowPass) Reset() error {
	for _, target := range []renderer.Framebuffer{p.csmTarget, p.spotTarget, p.pointTarget} {
		if target == nil {
			continue
		}
		if err := target.Reset(); err != nil {
			return err
		}
	}
	return nil
}
