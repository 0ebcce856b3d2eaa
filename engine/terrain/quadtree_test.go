package terrain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func hillHeightmap(res int) *Heightmap {
	h := NewHeightmap(res)
	params := DefaultFBMParams()
	params.Seed = 7
	h.GenerateFBM(params)
	return h
}

func TestQuadtreeDepthFormula(t *testing.T) {
	h := hillHeightmap(64)

	// 16 chunks per axis: ceil(log2(16)) = 4.
	assert.Equal(t, 4, NewQuadtree(h, 16, 16, 256, 256, 64).Depth())
	// Small multi-chunk grids clamp to the minimum depth of 2.
	assert.Equal(t, 2, NewQuadtree(h, 3, 2, 256, 256, 64).Depth())
	// A single chunk builds only the root.
	assert.Equal(t, 0, NewQuadtree(h, 1, 1, 256, 256, 64).Depth())
}

func TestSingleChunkSelectsExactlyTheRoot(t *testing.T) {
	h := hillHeightmap(65)
	qt := NewQuadtree(h, 1, 1, 64, 64, 10)
	require.Equal(t, 0, qt.Depth())

	nodes := qt.Select(LODSelectParams{
		CameraPos: [3]float32{32, 20, 32},
		ProjScale: 500,
	})
	require.Len(t, nodes, 1)
	assert.Equal(t, float32(0), nodes[0].MinU)
	assert.Equal(t, float32(0), nodes[0].MinV)
	assert.Equal(t, float32(1), nodes[0].MaxU)
	assert.Equal(t, float32(1), nodes[0].MaxV)
}

func TestSelectReturnsCoarserNodesForDistantCamera(t *testing.T) {
	h := hillHeightmap(256)
	qt := NewQuadtree(h, 4, 4, 256, 256, 64)

	near := qt.Select(LODSelectParams{
		CameraPos: [3]float32{128, 30, 128},
		ProjScale: 500,
	})
	far := qt.Select(LODSelectParams{
		CameraPos: [3]float32{128, 30000, 128},
		ProjScale: 500,
	})

	require.NotEmpty(t, near)
	require.NotEmpty(t, far)
	assert.Greater(t, len(near), len(far), "a distant camera must select fewer, coarser nodes")
}

func TestSelectCoversTerrainWithoutOverlap(t *testing.T) {
	h := hillHeightmap(256)
	qt := NewQuadtree(h, 4, 4, 256, 256, 64)

	nodes := qt.Select(LODSelectParams{
		CameraPos: [3]float32{0, 50, 0},
		ProjScale: 800,
	})
	require.NotEmpty(t, nodes)

	// Selected node areas tile the unit square exactly.
	var area float32
	for _, n := range nodes {
		area += (n.MaxU - n.MinU) * (n.MaxV - n.MinV)
	}
	assert.InDelta(t, 1.0, area, 1e-4)
}

func TestNeighborEdgeTessellationMatches(t *testing.T) {
	h := hillHeightmap(256)
	qt := NewQuadtree(h, 8, 8, 256, 256, 64)

	// A corner camera forces mixed LOD levels across the terrain.
	nodes := qt.Select(LODSelectParams{
		CameraPos: [3]float32{0, 20, 0},
		ProjScale: 800,
	})
	require.NotEmpty(t, nodes)

	// For every pair of edge-adjacent selected nodes, the factors each
	// assigned to the shared edge must agree.
	const eps = 1e-5
	for i := range nodes {
		for j := range nodes {
			a, b := &nodes[i], &nodes[j]
			// b directly right of a, sharing a vertical edge span?
			if abs32(a.MaxU-b.MinU) < eps && overlaps(a.MinV, a.MaxV, b.MinV, b.MaxV) {
				assert.Equal(t, a.TessEdges[EdgePosX], b.TessEdges[EdgeNegX],
					"shared vertical edge factors differ between (%v,%v) and (%v,%v)", a.MinU, a.MinV, b.MinU, b.MinV)
			}
			// b directly below a, sharing a horizontal edge span?
			if abs32(a.MaxV-b.MinV) < eps && overlaps(a.MinU, a.MaxU, b.MinU, b.MaxU) {
				assert.Equal(t, a.TessEdges[EdgePosZ], b.TessEdges[EdgeNegZ],
					"shared horizontal edge factors differ")
			}
		}
	}
}

// overlaps reports whether [a0,a1] and [b0,b1] share more than a point.
func overlaps(a0, a1, b0, b1 float32) bool {
	lo := a0
	if b0 > lo {
		lo = b0
	}
	hi := a1
	if b1 < hi {
		hi = b1
	}
	return hi-lo > 1e-5
}

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}

func TestEdgeTessNeverExceedsInner(t *testing.T) {
	h := hillHeightmap(256)
	qt := NewQuadtree(h, 8, 8, 256, 256, 64)

	nodes := qt.Select(LODSelectParams{
		CameraPos: [3]float32{64, 20, 64},
		ProjScale: 600,
	})
	for _, n := range nodes {
		for e, f := range n.TessEdges {
			assert.LessOrEqual(t, f, n.TessInner, "edge %d factor above inner", e)
			assert.GreaterOrEqual(t, f, float32(1))
		}
		assert.GreaterOrEqual(t, n.Morph, float32(0))
		assert.LessOrEqual(t, n.Morph, float32(1))
	}
}

func TestTessFactorForLOD(t *testing.T) {
	assert.Equal(t, float32(64), TessFactorForLOD(0))
	assert.Equal(t, float32(32), TessFactorForLOD(1))
	assert.Equal(t, float32(1), TessFactorForLOD(10), "factor floors at 1")
}
