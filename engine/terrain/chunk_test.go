package terrain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oloengine/olo/common"
)

func TestChunkManagerGridDimensions(t *testing.T) {
	h := hillHeightmap(257)
	m := NewChunkManager(h, WithWorldSize(512, 512), WithHeightScale(64), WithBuildWorkers(2))

	// ceil(257 / 64) = 5 chunks per axis.
	assert.Equal(t, 5, m.NumChunksX())
	assert.Equal(t, 5, m.NumChunksZ())
	assert.Len(t, m.Chunks(), 25)
}

func TestChunkMeshesBuiltWithValidBounds(t *testing.T) {
	h := hillHeightmap(129)
	m := NewChunkManager(h, WithWorldSize(256, 256), WithHeightScale(32))

	for _, c := range m.Chunks() {
		require.NotNil(t, c.Mesh, "chunk (%d,%d) has no mesh", c.GridX, c.GridZ)
		require.NotEmpty(t, c.Mesh.Vertices)
		require.NotEmpty(t, c.Mesh.Indices)
		assert.Zero(t, len(c.Mesh.Vertices)%VertexStride)
		assert.Zero(t, len(c.Mesh.Indices)%3)

		// Bounds must contain every vertex position.
		for i := 0; i < len(c.Mesh.Vertices); i += VertexStride {
			x := c.Mesh.Vertices[i]
			y := c.Mesh.Vertices[i+1]
			z := c.Mesh.Vertices[i+2]
			assert.GreaterOrEqual(t, x, c.Bounds.Min[0])
			assert.LessOrEqual(t, x, c.Bounds.Max[0])
			assert.GreaterOrEqual(t, y, c.Bounds.Min[1])
			assert.LessOrEqual(t, y, c.Bounds.Max[1])
			assert.GreaterOrEqual(t, z, c.Bounds.Min[2])
			assert.LessOrEqual(t, z, c.Bounds.Max[2])
		}
		assert.False(t, c.Uploaded)
	}
}

func TestRebuildRegionTouchesOnlyIntersectingChunks(t *testing.T) {
	h := hillHeightmap(257)
	m := NewChunkManager(h, WithWorldSize(256, 256))

	for _, c := range m.Chunks() {
		c.Uploaded = true
	}

	// Dirty a small region inside chunk (1, 1).
	var dirty common.DirtyRect
	dirty.Add(80, 90)
	dirty.Add(100, 110)

	rebuilt := m.RebuildRegion(dirty)
	assert.Equal(t, 1, rebuilt)

	for _, c := range m.Chunks() {
		if c.GridX == 1 && c.GridZ == 1 {
			assert.False(t, c.Uploaded, "rebuilt chunk must need re-upload")
		} else {
			assert.True(t, c.Uploaded, "chunk (%d,%d) should not have been rebuilt", c.GridX, c.GridZ)
		}
	}

	// A dirty texel on a chunk border rebuilds both sides.
	for _, c := range m.Chunks() {
		c.Uploaded = true
	}
	var border common.DirtyRect
	border.Add(64, 90)
	assert.Equal(t, 2, m.RebuildRegion(border))

	assert.Zero(t, m.RebuildRegion(common.DirtyRect{}))
}

func TestVisibleChunksCullsBehindCamera(t *testing.T) {
	h := flatHeightmap(129, 0.5)
	m := NewChunkManager(h, WithWorldSize(256, 256), WithHeightScale(32))

	// Camera at the terrain center looking along +Z.
	var view, proj, vp [16]float32
	common.LookAt(view[:], 128, 30, 128, 128, 30, 256, 0, 1, 0)
	common.Perspective(proj[:], 1.2, 1.0, 0.1, 1000)
	common.Mul4(vp[:], proj[:], view[:])
	frustum := common.ExtractFrustumFromMatrix(vp[:])

	visible := m.VisibleChunks(&frustum, nil)
	require.NotEmpty(t, visible)
	assert.Less(t, len(visible), len(m.Chunks()), "chunks behind the camera must be culled")

	for _, c := range visible {
		// Everything fully behind the camera plane is rejected.
		assert.Greater(t, c.Bounds.Max[2], float32(100))
	}
}
