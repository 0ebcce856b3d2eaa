package renderer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cogentcore/webgpu/wgpu"
)

// fakeTargetAllocator records allocations without touching a GPU device.
type fakeTargetAllocator struct {
	created   int
	destroyed int
}

var _ TargetAllocator = &fakeTargetAllocator{}

func (a *fakeTargetAllocator) CreateTarget(format AttachmentFormat, width, height, samples, layers int) (*RenderTarget, error) {
	a.created++
	target := &RenderTarget{Format: format}
	if layers > 1 {
		target.LayerViews = make([]*wgpu.TextureView, layers)
	}
	return target, nil
}

func (a *fakeTargetAllocator) DestroyTarget(target *RenderTarget) {
	a.destroyed++
}

func TestFramebufferAllocatesAllAttachments(t *testing.T) {
	alloc := &fakeTargetAllocator{}
	fb, err := NewFramebuffer(alloc, nil, FramebufferSpec{
		Width:        1280,
		Height:       720,
		ColorFormats: []AttachmentFormat{FormatRGBA16F, FormatRG16F, FormatRedInt32},
		HasDepth:     true,
		DepthFormat:  FormatDepthComponent32F,
	})
	require.NoError(t, err)

	assert.Equal(t, 4, alloc.created)
	assert.Equal(t, FormatRGBA16F, fb.ColorTarget(0).Format)
	assert.Equal(t, FormatRG16F, fb.ColorTarget(1).Format)
	assert.Equal(t, FormatRedInt32, fb.ColorTarget(2).Format)
	assert.Nil(t, fb.ColorTarget(3))
	require.NotNil(t, fb.DepthTarget())
	assert.Equal(t, FormatDepthComponent32F, fb.DepthTarget().Format)
	assert.Equal(t, 1, fb.Spec().Samples, "zero sample count defaults to 1")
}

func TestFramebufferClampsDegenerateDimensions(t *testing.T) {
	alloc := &fakeTargetAllocator{}
	fb, err := NewFramebuffer(alloc, nil, FramebufferSpec{
		Width:        0,
		Height:       -4,
		ColorFormats: []AttachmentFormat{FormatRGBA8},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, fb.Spec().Width)
	assert.Equal(t, 1, fb.Spec().Height)
}

func TestFramebufferResizeRebuildsAndBumpsGeneration(t *testing.T) {
	alloc := &fakeTargetAllocator{}
	fb, err := NewFramebuffer(alloc, nil, FramebufferSpec{
		Width:        640,
		Height:       360,
		ColorFormats: []AttachmentFormat{FormatRGBA16F},
		HasDepth:     true,
		DepthFormat:  FormatDepth24Stencil8,
	})
	require.NoError(t, err)
	gen := fb.Generation()

	require.NoError(t, fb.Resize(1920, 1080))
	assert.Equal(t, 1920, fb.Spec().Width)
	assert.Equal(t, 1080, fb.Spec().Height)
	assert.Equal(t, 2, alloc.destroyed, "old attachments released on resize")
	assert.Equal(t, 4, alloc.created)
	assert.Greater(t, fb.Generation(), gen)
}

func TestFramebufferLayeredDepthForCascades(t *testing.T) {
	alloc := &fakeTargetAllocator{}
	fb, err := NewFramebuffer(alloc, nil, FramebufferSpec{
		Width:       2048,
		Height:      2048,
		HasDepth:    true,
		DepthFormat: FormatShadowDepth,
		DepthLayers: 4,
	})
	require.NoError(t, err)

	for layer := 0; layer < 4; layer++ {
		_, err := fb.DepthLayerView(layer)
		assert.NoError(t, err)
	}
	_, err = fb.DepthLayerView(4)
	assert.Error(t, err)
	_, err = fb.DepthLayerView(-1)
	assert.Error(t, err)
}

func TestFramebufferDepthLayerViewWithoutDepth(t *testing.T) {
	alloc := &fakeTargetAllocator{}
	fb, err := NewFramebuffer(alloc, nil, FramebufferSpec{
		Width:        64,
		Height:       64,
		ColorFormats: []AttachmentFormat{FormatRGBA8},
	})
	require.NoError(t, err)
	_, err = fb.DepthLayerView(0)
	assert.Error(t, err)
}

func TestFramebufferReleaseThroughResourceTable(t *testing.T) {
	alloc := &fakeTargetAllocator{}
	table := NewResourceTable()
	fb, err := NewFramebuffer(alloc, table, FramebufferSpec{
		Width:        64,
		Height:       64,
		ColorFormats: []AttachmentFormat{FormatRGBA8},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, table.LiveCount())

	fb.Release()
	assert.Equal(t, 0, alloc.destroyed, "destruction deferred to the render thread flush")
	table.FlushReleases()
	assert.Equal(t, 1, alloc.destroyed)
	assert.Equal(t, 0, table.LiveCount())
}

func TestAttachmentFormatDepthClassification(t *testing.T) {
	assert.True(t, FormatShadowDepth.IsDepth())
	assert.True(t, FormatDepth24Stencil8.IsDepth())
	assert.True(t, FormatDepthComponent32F.IsDepth())
	assert.False(t, FormatRGBA16F.IsDepth())
	assert.False(t, FormatRedInt32.IsDepth())
}

func TestAttachmentFormatWGPUMapping(t *testing.T) {
	assert.Equal(t, wgpu.TextureFormatRGBA8Unorm, FormatRGB8.WGPUFormat(), "RGB8 widens to RGBA8")
	assert.Equal(t, wgpu.TextureFormatR32Sint, FormatRedInt32.WGPUFormat())
	assert.Equal(t, wgpu.TextureFormatDepth32Float, FormatShadowDepth.WGPUFormat())
}
