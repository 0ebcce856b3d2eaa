package terrain

import (
	"github.com/chewxy/math32"

	"github.com/oloengine/olo/common"
)

// MaxTessellationFactor is the patch tessellation factor at the finest LOD.
// Each coarser LOD level halves it, down to a floor of 1.
const MaxTessellationFactor = 64.0

// DefaultMorphRegion is the fraction of a node's error interval over which
// vertices morph toward the coarser LOD before the switch.
const DefaultMorphRegion float32 = 0.3

// DefaultTargetTriangleSize is the screen-space geometric error threshold in
// pixels below which a node is detailed enough to select.
const DefaultTargetTriangleSize float32 = 8.0

// edge indices for SelectedNode.TessEdges.
const (
	EdgeNegX = iota
	EdgePosX
	EdgeNegZ
	EdgePosZ
)

// SelectedNode is one quadtree node chosen for rendering this frame, with
// the tessellation factors the terrain vertex shader consumes.
type SelectedNode struct {
	// MinU, MinV, MaxU, MaxV span the node in normalized terrain space.
	MinU, MinV, MaxU, MaxV float32
	// LODLevel is 0 at the finest level, increasing toward the root.
	LODLevel int
	// Morph is the blend factor toward the next coarser LOD, in [0, 1].
	Morph float32
	// TessInner is the node's own tessellation factor.
	TessInner float32
	// TessEdges holds the per-edge factors after neighbor matching, indexed
	// by EdgeNegX..EdgePosZ. Each is min(self, neighbor) so adjacent patches
	// subdivide their shared edge identically.
	TessEdges [4]float32
}

// LODSelectParams carries the per-frame camera state for LOD selection.
type LODSelectParams struct {
	// CameraPos is the world-space camera position.
	CameraPos [3]float32
	// Frustum culls nodes before error evaluation; nil disables culling.
	Frustum *common.Frustum
	// ProjScale is proj[1][1] · viewportHeight / 2.
	ProjScale float32
	// TargetTriangleSize is the selection threshold in pixels; zero uses
	// DefaultTargetTriangleSize.
	TargetTriangleSize float32
	// MorphRegion overrides DefaultMorphRegion when > 0.
	MorphRegion float32
}

// Quadtree selects terrain LOD per frame by recursive screen-space error
// evaluation, producing crack-free tessellation factors.
type Quadtree interface {
	// Depth returns the tree depth (root is depth 0's parent level count).
	Depth() int

	// Select walks the tree and returns the nodes to render this frame.
	// Selected leaves get edge tessellation factors matched against their
	// cardinal neighbors.
	//
	// Parameters:
	//   - params: camera state and thresholds
	//
	// Returns:
	//   - []SelectedNode: the nodes to render, coarse to fine order not guaranteed
	Select(params LODSelectParams) []SelectedNode
}

type quadtreeNode struct {
	minU, minV float32
	maxU, maxV float32
	lodLevel   int
	bounds     common.AABB
	children   [4]*quadtreeNode

	// selection state for the current frame
	selected    bool
	selectedLOD int
	morph       float32
}

type quadtree struct {
	root       *quadtreeNode
	depth      int
	worldSizeX float32
	worldSizeZ float32
}

var _ Quadtree = &quadtree{}

// NewQuadtree builds the LOD tree over a heightmap. Depth is
// ceil(log2(max(numChunksX, numChunksZ))) with a minimum of 2, except that a
// single-chunk terrain builds a tree of just the root node. Node bounds
// sample the heightmap at a coarse step plus the four corners.
//
// Parameters:
//   - heightmap: the source heightmap
//   - numChunksX, numChunksZ: chunk grid dimensions
//   - worldSizeX, worldSizeZ: terrain extent in world units
//   - heightScale: world-unit height of a sample value of 1.0
//
// Returns:
//   - Quadtree: the built tree
func NewQuadtree(heightmap *Heightmap, numChunksX, numChunksZ int, worldSizeX, worldSizeZ, heightScale float32) Quadtree {
	chunks := maxInt(numChunksX, numChunksZ)
	depth := int(math32.Ceil(math32.Log2(float32(chunks))))
	if chunks <= 1 {
		// One chunk has nothing to subdivide; selection returns the root.
		depth = 0
	} else if depth < 2 {
		depth = 2
	}

	t := &quadtree{
		depth:      depth,
		worldSizeX: worldSizeX,
		worldSizeZ: worldSizeZ,
	}
	t.root = t.buildNode(heightmap, 0, 0, 1, 1, depth, heightScale)
	return t
}

func (t *quadtree) buildNode(h *Heightmap, minU, minV, maxU, maxV float32, levelsLeft int, heightScale float32) *quadtreeNode {
	n := &quadtreeNode{
		minU: minU, minV: minV,
		maxU: maxU, maxV: maxV,
		lodLevel: levelsLeft,
	}
	n.bounds = t.sampleBounds(h, n, heightScale)

	if levelsLeft > 0 {
		midU := (minU + maxU) * 0.5
		midV := (minV + maxV) * 0.5
		n.children[0] = t.buildNode(h, minU, minV, midU, midV, levelsLeft-1, heightScale)
		n.children[1] = t.buildNode(h, midU, minV, maxU, midV, levelsLeft-1, heightScale)
		n.children[2] = t.buildNode(h, minU, midV, midU, maxV, levelsLeft-1, heightScale)
		n.children[3] = t.buildNode(h, midU, midV, maxU, maxV, levelsLeft-1, heightScale)
	}
	return n
}

// sampleBounds derives a node's world AABB by sampling the heightmap over the
// node's texel footprint at a step of max(1, edge/16), plus the four corners.
func (t *quadtree) sampleBounds(h *Heightmap, n *quadtreeNode, heightScale float32) common.AABB {
	res := h.Resolution()
	x0 := int(n.minU * float32(res-1))
	x1 := int(n.maxU * float32(res-1))
	y0 := int(n.minV * float32(res-1))
	y1 := int(n.maxV * float32(res-1))

	step := maxInt(1, (x1-x0)/16)

	minH, maxH := float32(1), float32(0)
	sample := func(x, y int) {
		v := h.At(x, y)
		if v < minH {
			minH = v
		}
		if v > maxH {
			maxH = v
		}
	}
	for y := y0; y <= y1; y += step {
		for x := x0; x <= x1; x += step {
			sample(x, y)
		}
	}
	sample(x0, y0)
	sample(x1, y0)
	sample(x0, y1)
	sample(x1, y1)

	return common.AABB{
		Min: [3]float32{n.minU * t.worldSizeX, minH * heightScale, n.minV * t.worldSizeZ},
		Max: [3]float32{n.maxU * t.worldSizeX, maxH * heightScale, n.maxV * t.worldSizeZ},
	}
}

func (t *quadtree) Depth() int {
	return t.depth
}

// TessFactorForLOD returns the tessellation factor for a LOD level: the
// maximum factor halved per level, floored at 1.
//
// Parameters:
//   - lod: the LOD level, 0 = finest
//
// Returns:
//   - float32: the tessellation factor
func TessFactorForLOD(lod int) float32 {
	f := float32(MaxTessellationFactor)
	for i := 0; i < lod; i++ {
		f *= 0.5
	}
	if f < 1 {
		f = 1
	}
	return f
}

func (t *quadtree) Select(params LODSelectParams) []SelectedNode {
	if params.TargetTriangleSize <= 0 {
		params.TargetTriangleSize = DefaultTargetTriangleSize
	}
	if params.MorphRegion <= 0 {
		params.MorphRegion = DefaultMorphRegion
	}

	t.clearSelection(t.root)
	t.selectNode(t.root, params)

	var out []SelectedNode
	out = t.collect(t.root, params, out)
	return out
}

func (t *quadtree) clearSelection(n *quadtreeNode) {
	n.selected = false
	for _, c := range n.children {
		if c != nil {
			t.clearSelection(c)
		}
	}
}

// selectNode implements the recursive LOD walk: cull, accept if detailed
// enough or a leaf, otherwise descend.
func (t *quadtree) selectNode(n *quadtreeNode, params LODSelectParams) {
	if params.Frustum != nil && !params.Frustum.IntersectsAABB(
		n.bounds.Min[0], n.bounds.Min[1], n.bounds.Min[2],
		n.bounds.Max[0], n.bounds.Max[1], n.bounds.Max[2],
	) {
		return
	}

	err, morph := t.screenSpaceError(n, params)
	if n.children[0] == nil || err < params.TargetTriangleSize {
		n.selected = true
		n.selectedLOD = n.lodLevel
		n.morph = morph
		return
	}
	for _, c := range n.children {
		t.selectNode(c, params)
	}
}

// screenSpaceError projects the node's world size to pixels and derives the
// morph factor from how close the error is to the selection threshold.
func (t *quadtree) screenSpaceError(n *quadtreeNode, params LODSelectParams) (err, morph float32) {
	sizeX := n.bounds.Max[0] - n.bounds.Min[0]
	sizeZ := n.bounds.Max[2] - n.bounds.Min[2]
	worldSize := sizeX
	if sizeZ > worldSize {
		worldSize = sizeZ
	}

	dist := distanceToAABB(params.CameraPos, n.bounds)
	if dist < 0.001 {
		dist = 0.001
	}
	err = worldSize * params.ProjScale / dist

	// Morph ramps 0 → 1 across the last MorphRegion fraction of the interval
	// below the threshold, so vertices ease toward the coarser level before
	// the selection flips.
	lo := params.TargetTriangleSize * (1 - params.MorphRegion)
	if err > lo {
		morph = (err - lo) / (params.TargetTriangleSize * params.MorphRegion)
		if morph > 1 {
			morph = 1
		}
	}
	return err, morph
}

func distanceToAABB(p [3]float32, b common.AABB) float32 {
	var d float32
	for i := 0; i < 3; i++ {
		v := p[i]
		if v < b.Min[i] {
			d += (b.Min[i] - v) * (b.Min[i] - v)
		} else if v > b.Max[i] {
			d += (v - b.Max[i]) * (v - b.Max[i])
		}
	}
	return math32.Sqrt(d)
}

// collect gathers selected nodes and resolves edge tessellation against each
// node's cardinal neighbors so shared edges subdivide identically.
func (t *quadtree) collect(n *quadtreeNode, params LODSelectParams, out []SelectedNode) []SelectedNode {
	if n.selected {
		self := TessFactorForLOD(n.selectedLOD)
		sel := SelectedNode{
			MinU: n.minU, MinV: n.minV,
			MaxU: n.maxU, MaxV: n.maxV,
			LODLevel:  n.selectedLOD,
			Morph:     n.morph,
			TessInner: self,
		}

		// Probe just outside each edge midpoint; the containing selected
		// node is the rendered neighbor on that side.
		const eps = 1e-4
		midU := (n.minU + n.maxU) * 0.5
		midV := (n.minV + n.maxV) * 0.5
		probes := [4][2]float32{
			{n.minU - eps, midV}, // -X
			{n.maxU + eps, midV}, // +X
			{midU, n.minV - eps}, // -Z
			{midU, n.maxV + eps}, // +Z
		}
		for e, p := range probes {
			neighborLOD := t.selectedLODAt(p[0], p[1], n.selectedLOD)
			neighbor := TessFactorForLOD(neighborLOD)
			if neighbor < self {
				sel.TessEdges[e] = neighbor
			} else {
				sel.TessEdges[e] = self
			}
		}
		return append(out, sel)
	}
	for _, c := range n.children {
		if c != nil {
			out = t.collect(c, params, out)
		}
	}
	return out
}

// selectedLODAt walks from the root to the selected node containing (u, v).
// Points off the terrain, or in culled regions with no selected node, report
// the fallback LOD so border edges keep their own factor.
func (t *quadtree) selectedLODAt(u, v float32, fallback int) int {
	if u < 0 || u > 1 || v < 0 || v > 1 {
		return fallback
	}
	n := t.root
	for n != nil {
		if n.selected {
			return n.selectedLOD
		}
		if n.children[0] == nil {
			return fallback
		}
		midU := (n.minU + n.maxU) * 0.5
		midV := (n.minV + n.maxV) * 0.5
		idx := 0
		if u >= midU {
			idx |= 1
		}
		if v >= midV {
			idx |= 2
		}
		n = n.children[idx]
	}
	return fallback
}
