package renderer

// BarrierFlags is a bitmask of memory barrier categories. Any compute dispatch
// that writes a resource consumed by a later rasterization call must be
// followed by a barrier whose flags match the resource type (BarrierShaderStorage
// for storage buffers, BarrierTextureFetch for image writes, BarrierCommand for
// indirect-draw argument buffers).
type BarrierFlags uint32

const (
	// BarrierVertexAttribArray orders writes consumed as vertex attribute data.
	BarrierVertexAttribArray BarrierFlags = 1 << iota

	// BarrierElementArray orders writes consumed as index buffer data.
	BarrierElementArray

	// BarrierUniform orders writes consumed as uniform buffer data.
	BarrierUniform

	// BarrierTextureFetch orders image writes consumed by texture sampling.
	BarrierTextureFetch

	// BarrierShaderImageAccess orders image load/store accesses between dispatches.
	BarrierShaderImageAccess

	// BarrierCommand orders writes consumed as indirect draw/dispatch arguments.
	BarrierCommand

	// BarrierPixelBuffer orders writes consumed by pixel pack/unpack operations.
	BarrierPixelBuffer

	// BarrierTextureUpdate orders writes consumed by texture upload/copy operations.
	BarrierTextureUpdate

	// BarrierBufferUpdate orders writes consumed by buffer upload/copy operations.
	BarrierBufferUpdate

	// BarrierFramebuffer orders writes consumed as framebuffer attachments.
	BarrierFramebuffer

	// BarrierShaderStorage orders storage buffer writes consumed by later shader reads.
	BarrierShaderStorage

	// BarrierAtomicCounter orders atomic counter buffer accesses.
	BarrierAtomicCounter

	// BarrierQueryBuffer orders query result buffer accesses.
	BarrierQueryBuffer

	// BarrierAll orders every access category. Maximally conservative.
	BarrierAll BarrierFlags = 0xFFFFFFFF
)

// Has reports whether every bit in flags is set on b.
//
// Parameters:
//   - flags: the barrier categories to test for
//
// Returns:
//   - bool: true if all requested categories are present
func (b BarrierFlags) Has(flags BarrierFlags) bool {
	return b&flags == flags
}

// BlendMode selects the fixed-function blend equation for a draw.
type BlendMode uint8

const (
	// BlendOpaque disables blending. Destination is overwritten.
	BlendOpaque BlendMode = iota

	// BlendAlpha uses standard source-alpha blending for transparent geometry.
	BlendAlpha

	// BlendAdditive adds source color to destination, used for particles and glows.
	BlendAdditive
)

// CullFace selects which triangle winding is discarded during rasterization.
type CullFace uint8

const (
	// CullBack discards back-facing triangles. The default for opaque geometry.
	CullBack CullFace = iota

	// CullFront discards front-facing triangles. Used by the shadow pass to
	// reduce self-shadowing acne.
	CullFront

	// CullNone rasterizes both windings.
	CullNone
)

// PolygonMode selects filled or wireframe rasterization.
type PolygonMode uint8

const (
	// PolygonFill rasterizes filled triangles.
	PolygonFill PolygonMode = iota

	// PolygonLine rasterizes triangle edges only.
	PolygonLine
)

// RenderState is the complete fixed-function state applied before a draw.
// The struct is comparable so the command bucket can count state transitions
// between consecutive packets.
type RenderState struct {
	// ViewportX, ViewportY, ViewportW, ViewportH define the viewport rectangle in pixels.
	ViewportX, ViewportY, ViewportW, ViewportH int

	// ClearColor is the RGBA clear value applied when a pass clears its color target.
	ClearColor [4]float32

	// DepthTest enables depth comparison during rasterization.
	DepthTest bool

	// DepthMask enables depth buffer writes.
	DepthMask bool

	// Blend selects the blend equation.
	Blend BlendMode

	// Cull selects the face culling mode.
	Cull CullFace

	// Polygon selects filled or wireframe rasterization.
	Polygon PolygonMode

	// ScissorEnabled enables the scissor rectangle below.
	ScissorEnabled bool

	// ScissorX, ScissorY, ScissorW, ScissorH define the scissor rectangle in pixels.
	ScissorX, ScissorY, ScissorW, ScissorH int
}

// DefaultRenderState returns the state assumed at the start of every pass:
// depth test and writes on, opaque blending, back-face culling, filled
// polygons, no scissor.
//
// Returns:
//   - RenderState: the baseline pass state
func DefaultRenderState() RenderState {
	return RenderState{
		DepthTest: true,
		DepthMask: true,
		Blend:     BlendOpaque,
		Cull:      CullBack,
		Polygon:   PolygonFill,
	}
}
