package renderer

import (
	"fmt"
	"log"

	"github.com/cogentcore/webgpu/wgpu"
)

// AttachmentFormat enumerates the texel formats accepted for framebuffer
// attachments. Formats with no exact WebGPU equivalent map to the nearest
// superset (RGB8 is stored as RGBA8).
type AttachmentFormat uint8

const (
	// FormatR8 is single-channel 8-bit unsigned normalized.
	FormatR8 AttachmentFormat = iota

	// FormatRGB8 is three-channel 8-bit unsigned normalized. Stored as RGBA8 on the GPU.
	FormatRGB8

	// FormatRGBA8 is four-channel 8-bit unsigned normalized.
	FormatRGBA8

	// FormatRGBA16F is four-channel 16-bit float. Used by HDR scene and post-process targets.
	FormatRGBA16F

	// FormatRGBA32F is four-channel 32-bit float.
	FormatRGBA32F

	// FormatR32F is single-channel 32-bit float. Used by terrain heightmaps and snow accumulation.
	FormatR32F

	// FormatRG16F is two-channel 16-bit float. Used by the SSAO target.
	FormatRG16F

	// FormatRedInt32 is single-channel 32-bit signed integer. Used for entity ID picking.
	FormatRedInt32

	// FormatShadowDepth is a 32-bit float depth format with comparison sampling,
	// used by shadow map arrays.
	FormatShadowDepth

	// FormatDepth24Stencil8 is combined 24-bit depth and 8-bit stencil.
	FormatDepth24Stencil8

	// FormatDepthComponent32F is 32-bit float depth without stencil.
	FormatDepthComponent32F
)

// IsDepth reports whether the format is a depth or depth-stencil format.
//
// Returns:
//   - bool: true for depth formats
func (f AttachmentFormat) IsDepth() bool {
	switch f {
	case FormatShadowDepth, FormatDepth24Stencil8, FormatDepthComponent32F:
		return true
	default:
		return false
	}
}

// WGPUFormat returns the WebGPU texture format backing this attachment format.
//
// Returns:
//   - wgpu.TextureFormat: the backing texture format
func (f AttachmentFormat) WGPUFormat() wgpu.TextureFormat {
	switch f {
	case FormatR8:
		return wgpu.TextureFormatR8Unorm
	case FormatRGB8, FormatRGBA8:
		return wgpu.TextureFormatRGBA8Unorm
	case FormatRGBA16F:
		return wgpu.TextureFormatRGBA16Float
	case FormatRGBA32F:
		return wgpu.TextureFormatRGBA32Float
	case FormatR32F:
		return wgpu.TextureFormatR32Float
	case FormatRG16F:
		return wgpu.TextureFormatRG16Float
	case FormatRedInt32:
		return wgpu.TextureFormatR32Sint
	case FormatShadowDepth, FormatDepthComponent32F:
		return wgpu.TextureFormatDepth32Float
	case FormatDepth24Stencil8:
		return wgpu.TextureFormatDepth24PlusStencil8
	default:
		return wgpu.TextureFormatRGBA8Unorm
	}
}

// FramebufferSpec describes an offscreen render target: its dimensions, MSAA
// sample count, color attachment formats, and optionally a layered depth
// attachment (DepthLayers > 1 allocates a depth texture array, used by CSM).
type FramebufferSpec struct {
	// Width and Height are the target dimensions in pixels.
	Width, Height int

	// Samples is the MSAA sample count. Zero means 1 (no MSAA).
	Samples int

	// ColorFormats lists the color attachment formats in attachment order.
	ColorFormats []AttachmentFormat

	// DepthFormat is the depth attachment format, or zero value none if HasDepth is false.
	DepthFormat AttachmentFormat

	// HasDepth enables the depth attachment.
	HasDepth bool

	// DepthLayers is the number of depth texture array layers. Zero or one
	// allocates a plain 2D depth texture.
	DepthLayers int
}

// RenderTarget is one allocated attachment: the texture, its full view, and
// per-layer views when the attachment is an array.
type RenderTarget struct {
	// Format is the attachment format this target was allocated with.
	Format AttachmentFormat

	// Texture is the backing GPU texture. Nil under test allocators.
	Texture *wgpu.Texture

	// View is the full texture view.
	View *wgpu.TextureView

	// LayerViews holds one view per array layer for layered attachments.
	LayerViews []*wgpu.TextureView
}

// TargetAllocator creates and destroys framebuffer attachments. The production
// implementation allocates WebGPU textures; tests substitute a recording fake.
type TargetAllocator interface {
	// CreateTarget allocates a texture and its views.
	//
	// Parameters:
	//   - format: the attachment format
	//   - width, height: the texture dimensions in pixels
	//   - samples: the MSAA sample count
	//   - layers: the array layer count (1 for plain 2D)
	//
	// Returns:
	//   - *RenderTarget: the allocated target
	//   - error: an error if allocation fails
	CreateTarget(format AttachmentFormat, width, height, samples, layers int) (*RenderTarget, error)

	// DestroyTarget releases a target's texture and views.
	//
	// Parameters:
	//   - target: the target to release
	DestroyTarget(target *RenderTarget)
}

// framebuffer is the implementation of the Framebuffer interface.
type framebuffer struct {
	alloc      TargetAllocator
	table      ResourceTable
	handle     Handle
	spec       FramebufferSpec
	colors     []*RenderTarget
	depth      *RenderTarget
	generation uint64
}

// Framebuffer is an offscreen render target with color and optional depth
// attachments. Resize and Reset invalidate and rebuild all attachments; views
// held by callers become stale, so callers re-fetch views each frame and can
// compare Generation to detect rebuilds.
type Framebuffer interface {
	// Spec returns the current specification including any clamped dimensions.
	//
	// Returns:
	//   - FramebufferSpec: the active spec
	Spec() FramebufferSpec

	// ColorTarget returns the color attachment at the given index, or nil if out of range.
	//
	// Parameters:
	//   - index: the attachment index
	//
	// Returns:
	//   - *RenderTarget: the attachment, or nil
	ColorTarget(index int) *RenderTarget

	// DepthTarget returns the depth attachment, or nil if the spec has no depth.
	//
	// Returns:
	//   - *RenderTarget: the depth attachment, or nil
	DepthTarget() *RenderTarget

	// DepthLayerView returns the view for one layer of a layered depth
	// attachment, used to bind a single CSM cascade or shadow array slice.
	//
	// Parameters:
	//   - layer: the array layer index
	//
	// Returns:
	//   - *wgpu.TextureView: the layer view
	//   - error: an error if the framebuffer has no layered depth or the layer is out of range
	DepthLayerView(layer int) (*wgpu.TextureView, error)

	// Resize drops all attachments and rebuilds them at the new dimensions.
	//
	// Parameters:
	//   - width, height: the new dimensions in pixels
	//
	// Returns:
	//   - error: an error if reallocation fails
	Resize(width, height int) error

	// Reset drops and recreates all attachments at the current dimensions,
	// used after device loss or a settings change.
	//
	// Returns:
	//   - error: an error if reallocation fails
	Reset() error

	// Generation returns a counter incremented on every rebuild.
	//
	// Returns:
	//   - uint64: the rebuild generation
	Generation() uint64

	// Release destroys all attachments and drops the framebuffer's resource
	// table reference.
	Release()
}

var _ Framebuffer = &framebuffer{}

// NewFramebuffer allocates a framebuffer per the given spec. Zero or negative
// dimensions are clamped to 1 with a warning; a zero sample count becomes 1.
//
// Parameters:
//   - alloc: the attachment allocator
//   - table: the resource table tracking the framebuffer's lifetime (nil to skip tracking)
//   - spec: the framebuffer specification
//
// Returns:
//   - Framebuffer: the allocated framebuffer
//   - error: an error if attachment allocation fails
func NewFramebuffer(alloc TargetAllocator, table ResourceTable, spec FramebufferSpec) (Framebuffer, error) {
	if spec.Width < 1 || spec.Height < 1 {
		log.Printf("[Renderer] framebuffer dimensions %dx%d clamped to minimum 1x1", spec.Width, spec.Height)
		spec.Width = max(spec.Width, 1)
		spec.Height = max(spec.Height, 1)
	}
	if spec.Samples < 1 {
		spec.Samples = 1
	}
	if spec.DepthLayers < 1 {
		spec.DepthLayers = 1
	}

	fb := &framebuffer{alloc: alloc, table: table, spec: spec}
	if err := fb.rebuild(); err != nil {
		return nil, err
	}
	if table != nil {
		fb.handle = table.Acquire(ResourceKindFramebuffer, fmt.Sprintf("framebuffer %dx%d", spec.Width, spec.Height), fb.destroyTargets)
	}
	return fb, nil
}

func (f *framebuffer) Spec() FramebufferSpec {
	return f.spec
}

func (f *framebuffer) ColorTarget(index int) *RenderTarget {
	if index < 0 || index >= len(f.colors) {
		return nil
	}
	return f.colors[index]
}

func (f *framebuffer) DepthTarget() *RenderTarget {
	return f.depth
}

func (f *framebuffer) DepthLayerView(layer int) (*wgpu.TextureView, error) {
	if f.depth == nil {
		return nil, fmt.Errorf("framebuffer has no depth attachment")
	}
	if layer < 0 || layer >= len(f.depth.LayerViews) {
		return nil, fmt.Errorf("depth layer %d out of range (framebuffer has %d layers)", layer, len(f.depth.LayerViews))
	}
	return f.depth.LayerViews[layer], nil
}

func (f *framebuffer) Resize(width, height int) error {
	if width < 1 || height < 1 {
		log.Printf("[Renderer] framebuffer resize to %dx%d clamped to minimum 1x1", width, height)
		width = max(width, 1)
		height = max(height, 1)
	}
	f.spec.Width = width
	f.spec.Height = height
	f.destroyTargets()
	return f.rebuild()
}

func (f *framebuffer) Reset() error {
	f.destroyTargets()
	return f.rebuild()
}

func (f *framebuffer) Generation() uint64 {
	return f.generation
}

func (f *framebuffer) Release() {
	if f.table != nil && !f.handle.IsZero() {
		f.table.Release(f.handle)
		return
	}
	f.destroyTargets()
}

func (f *framebuffer) rebuild() error {
	f.colors = make([]*RenderTarget, 0, len(f.spec.ColorFormats))
	for _, format := range f.spec.ColorFormats {
		target, err := f.alloc.CreateTarget(format, f.spec.Width, f.spec.Height, f.spec.Samples, 1)
		if err != nil {
			f.destroyTargets()
			return fmt.Errorf("failed to create color attachment: %w", err)
		}
		f.colors = append(f.colors, target)
	}
	if f.spec.HasDepth {
		target, err := f.alloc.CreateTarget(f.spec.DepthFormat, f.spec.Width, f.spec.Height, f.spec.Samples, f.spec.DepthLayers)
		if err != nil {
			f.destroyTargets()
			return fmt.Errorf("failed to create depth attachment: %w", err)
		}
		f.depth = target
	}
	f.generation++
	return nil
}

func (f *framebuffer) destroyTargets() {
	for _, target := range f.colors {
		f.alloc.DestroyTarget(target)
	}
	f.colors = nil
	if f.depth != nil {
		f.alloc.DestroyTarget(f.depth)
		f.depth = nil
	}
}

// wgpuTargetAllocator allocates framebuffer attachments as WebGPU textures.
type wgpuTargetAllocator struct {
	device *wgpu.Device
}

var _ TargetAllocator = &wgpuTargetAllocator{}

// NewWGPUTargetAllocator creates a TargetAllocator backed by a WebGPU device.
//
// Parameters:
//   - device: the WebGPU device to allocate textures from
//
// Returns:
//   - TargetAllocator: the device-backed allocator
func NewWGPUTargetAllocator(device *wgpu.Device) TargetAllocator {
	return &wgpuTargetAllocator{device: device}
}

func (a *wgpuTargetAllocator) CreateTarget(format AttachmentFormat, width, height, samples, layers int) (*RenderTarget, error) {
	// CopySrc/CopyDst let passes snapshot an attachment (the SSS staging copy)
	// without re-rendering it.
	usage := wgpu.TextureUsageRenderAttachment | wgpu.TextureUsageTextureBinding |
		wgpu.TextureUsageCopySrc | wgpu.TextureUsageCopyDst
	texture, err := a.device.CreateTexture(&wgpu.TextureDescriptor{
		Label: "framebuffer attachment",
		Size: wgpu.Extent3D{
			Width:              uint32(width),
			Height:             uint32(height),
			DepthOrArrayLayers: uint32(layers),
		},
		MipLevelCount: 1,
		SampleCount:   uint32(samples),
		Dimension:     wgpu.TextureDimension2D,
		Format:        format.WGPUFormat(),
		Usage:         usage,
	})
	if err != nil {
		return nil, err
	}

	target := &RenderTarget{Format: format, Texture: texture}
	target.View, err = texture.CreateView(nil)
	if err != nil {
		texture.Release()
		return nil, err
	}

	if layers > 1 {
		target.LayerViews = make([]*wgpu.TextureView, layers)
		for layer := 0; layer < layers; layer++ {
			view, err := texture.CreateView(&wgpu.TextureViewDescriptor{
				Label:           fmt.Sprintf("attachment layer %d", layer),
				Format:          format.WGPUFormat(),
				Dimension:       wgpu.TextureViewDimension2D,
				BaseMipLevel:    0,
				MipLevelCount:   1,
				BaseArrayLayer:  uint32(layer),
				ArrayLayerCount: 1,
			})
			if err != nil {
				a.DestroyTarget(target)
				return nil, err
			}
			target.LayerViews[layer] = view
		}
	}
	return target, nil
}

func (a *wgpuTargetAllocator) DestroyTarget(target *RenderTarget) {
	if target == nil {
		return
	}
	for _, view := range target.LayerViews {
		if view != nil {
			view.Release()
		}
	}
	if target.View != nil {
		target.View.Release()
	}
	if target.Texture != nil {
		target.Texture.Release()
	}
}
