package renderer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResourceTableDefersDestructionUntilFlush(t *testing.T) {
	table := NewResourceTable()
	destroyed := false
	h := table.Acquire(ResourceKindBuffer, "vertex buffer", func() { destroyed = true })

	require.True(t, table.Resolve(h))
	table.Release(h)

	assert.False(t, destroyed, "destructor must not run inline on release")
	assert.False(t, table.Resolve(h), "released handle must not resolve")

	ran := table.FlushReleases()
	assert.Equal(t, 1, ran)
	assert.True(t, destroyed)
}

func TestResourceTableRetainKeepsResourceAlive(t *testing.T) {
	table := NewResourceTable()
	destroyed := false
	h := table.Acquire(ResourceKindTexture, "shadow map", func() { destroyed = true })

	require.NoError(t, table.Retain(h))
	table.Release(h)
	table.FlushReleases()
	assert.False(t, destroyed, "one reference still outstanding")
	assert.True(t, table.Resolve(h))

	table.Release(h)
	table.FlushReleases()
	assert.True(t, destroyed)
}

func TestResourceTableStaleHandleAfterSlotReuse(t *testing.T) {
	table := NewResourceTable()
	first := table.Acquire(ResourceKindBuffer, "first", nil)
	table.Release(first)
	table.FlushReleases()

	second := table.Acquire(ResourceKindBuffer, "second", nil)
	assert.True(t, table.Resolve(second))
	assert.False(t, table.Resolve(first), "stale handle must not alias the slot's new occupant")
	assert.Error(t, table.Retain(first))
}

func TestResourceTableReleaseOfStaleHandleIsNoOp(t *testing.T) {
	table := NewResourceTable()
	h := table.Acquire(ResourceKindSampler, "sampler", nil)
	table.Release(h)
	table.Release(h)
	table.Release(h)
	assert.Equal(t, 1, table.FlushReleases())
}

func TestResourceTableLiveReferences(t *testing.T) {
	table := NewResourceTable()
	table.Acquire(ResourceKindBuffer, "a", nil)
	b := table.Acquire(ResourceKindTexture, "b", nil)
	require.NoError(t, table.Retain(b))

	refs := table.LiveReferences()
	require.Len(t, refs, 2)
	assert.Equal(t, 2, table.LiveCount())
	assert.Equal(t, "a", refs[0].Name)
	assert.Equal(t, 1, refs[0].RefCount)
	assert.Equal(t, "b", refs[1].Name)
	assert.Equal(t, 2, refs[1].RefCount)
}

func TestResourceTableOperationsAfterShutdownAreNoOps(t *testing.T) {
	table := NewResourceTable()
	destroyed := 0
	h := table.Acquire(ResourceKindBuffer, "leaked", func() { destroyed++ })
	table.Shutdown()

	// Double-free guard: releasing tracked handles after shutdown must do nothing.
	table.Release(h)
	assert.Equal(t, 0, table.FlushReleases())
	assert.False(t, table.Resolve(h))
	assert.Error(t, table.Retain(h))
	assert.True(t, table.Acquire(ResourceKindBuffer, "late", nil).IsZero())
	assert.Equal(t, 0, destroyed, "leaked resources are reported, not destroyed")
}

func TestResourceTableShutdownFlushesPendingReleases(t *testing.T) {
	table := NewResourceTable()
	destroyed := false
	h := table.Acquire(ResourceKindPipeline, "pipeline", func() { destroyed = true })
	table.Release(h)
	table.Shutdown()
	assert.True(t, destroyed)
}

func TestBarrierFlagsHas(t *testing.T) {
	flags := BarrierShaderStorage | BarrierCommand
	assert.True(t, flags.Has(BarrierShaderStorage))
	assert.True(t, flags.Has(BarrierCommand))
	assert.False(t, flags.Has(BarrierTextureFetch))
	assert.True(t, BarrierAll.Has(BarrierVertexAttribArray|BarrierQueryBuffer))
}
