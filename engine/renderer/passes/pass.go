// Package passes implements the render pass chain: an ordered list of passes
// executed once per frame. Dependencies between passes are implicit in their
// order; each pass only knows its own target framebuffer and, where needed,
// the framebuffer of the pass before it.
package passes

import (
	"log"

	"github.com/oloengine/olo/engine/renderer"
)

// PassContext carries the shared resources a pass needs during Init and
// Execute: the renderer, the attachment allocator, the resource table, and
// the current surface dimensions.
type PassContext struct {
	// Renderer issues draw calls and compute dispatches.
	Renderer renderer.Renderer

	// Allocator creates framebuffer attachments.
	Allocator renderer.TargetAllocator

	// Resources tracks framebuffer lifetimes.
	Resources renderer.ResourceTable

	// Width and Height are the current surface dimensions in pixels.
	Width, Height int
}

// RenderPass is one stage of the frame. Implementations create their target
// framebuffer in Init, record work in Execute, rebuild size-dependent
// resources in Resize, and drop and recreate all GPU resources in Reset
// (after device loss or a settings change).
type RenderPass interface {
	// Name returns the pass identifier used in logs and profiler output.
	//
	// Returns:
	//   - string: the pass name
	Name() string

	// Init creates the pass's target framebuffer and static resources.
	//
	// Parameters:
	//   - ctx: the shared pass context
	//
	// Returns:
	//   - error: an error if resource creation fails
	Init(ctx *PassContext) error

	// Execute records the pass's work for the current frame.
	//
	// Parameters:
	//   - ctx: the shared pass context
	//
	// Returns:
	//   - error: an error if recording fails
	Execute(ctx *PassContext) error

	// Resize rebuilds the target framebuffer and dependent resources at new
	// surface dimensions.
	//
	// Parameters:
	//   - width, height: the new surface dimensions in pixels
	//
	// Returns:
	//   - error: an error if reallocation fails
	Resize(width, height int) error

	// Reset drops and recreates all GPU resources at current dimensions.
	//
	// Returns:
	//   - error: an error if recreation fails
	Reset() error

	// Enabled reports whether the pass runs this frame.
	//
	// Returns:
	//   - bool: true if the pass executes
	Enabled() bool

	// SetEnabled toggles the pass. A pass whose shader failed to load is
	// disabled for the session rather than crashing the frame.
	//
	// Parameters:
	//   - enabled: whether the pass should execute
	SetEnabled(enabled bool)
}

// Chain is the ordered pass list executed each frame.
type Chain struct {
	passes []RenderPass
}

// NewChain creates a Chain from passes in execution order.
//
// Parameters:
//   - passes: the passes, first-executed first
//
// Returns:
//   - *Chain: the chain
func NewChain(passes ...RenderPass) *Chain {
	return &Chain{passes: passes}
}

// Passes returns the chain's passes in execution order.
//
// Returns:
//   - []RenderPass: the ordered pass list
func (c *Chain) Passes() []RenderPass {
	return c.passes
}

// Init initializes every pass. A pass that fails to initialize is disabled
// for the session and logged; the chain itself stays usable.
//
// Parameters:
//   - ctx: the shared pass context
func (c *Chain) Init(ctx *PassContext) {
	for _, p := range c.passes {
		if err := p.Init(ctx); err != nil {
			log.Printf("[Passes] %s disabled: init failed: %v", p.Name(), err)
			p.SetEnabled(false)
		}
	}
}

// Execute runs every enabled pass in order. A pass error disables the pass
// for the rest of the session rather than aborting the frame.
//
// Parameters:
//   - ctx: the shared pass context
func (c *Chain) Execute(ctx *PassContext) {
	for _, p := range c.passes {
		if !p.Enabled() {
			continue
		}
		if err := p.Execute(ctx); err != nil {
			log.Printf("[Passes] %s disabled: execute failed: %v", p.Name(), err)
			p.SetEnabled(false)
		}
	}
}

// Resize propagates new surface dimensions to every pass, enabled or not.
//
// Parameters:
//   - width, height: the new surface dimensions in pixels
func (c *Chain) Resize(width, height int) {
	for _, p := range c.passes {
		if err := p.Resize(width, height); err != nil {
			log.Printf("[Passes] %s resize failed: %v", p.Name(), err)
		}
	}
}

// Reset drops and recreates GPU resources on every pass, used after device
// loss or a settings change.
func (c *Chain) Reset() {
	for _, p := range c.passes {
		if err := p.Reset(); err != nil {
			log.Printf("[Passes] %s reset failed: %v", p.Name(), err)
			p.SetEnabled(false)
		}
	}
}

// basePass carries the name and enabled flag shared by all pass implementations.
type basePass struct {
	name    string
	enabled bool
	ctx     *PassContext
}

func (b *basePass) Name() string {
	return b.name
}

func (b *basePass) Enabled() bool {
	return b.enabled
}

func (b *basePass) SetEnabled(enabled bool) {
	b.enabled = enabled
}
