package terrain

import (
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"

	"github.com/oloengine/olo/common"
)

// ChunkSize is the number of quads per chunk edge. The terrain grid is tiled
// into ceil(resolution / ChunkSize) chunks per axis.
const ChunkSize = 64

// ChunkMesh is CPU-side geometry for one terrain chunk: interleaved
// position(3) + normal(3) + uv(2) vertices and a triangle index list. Meshes
// are generated on worker threads and uploaded on the render thread.
type ChunkMesh struct {
	Vertices []float32
	Indices  []uint32
}

// VertexStride is the number of floats per terrain vertex.
const VertexStride = 8

// Chunk is one tile of the terrain grid with its world-space bounds.
type Chunk struct {
	// GridX, GridZ locate the chunk in the chunk grid.
	GridX, GridZ int
	// Bounds is the world-space AABB with Y-extents sampled from the heightmap.
	Bounds common.AABB
	// Mesh is the generated geometry; nil until the first build completes.
	Mesh *ChunkMesh
	// Uploaded marks whether the current mesh has been pushed to the GPU.
	// Cleared whenever the chunk is rebuilt.
	Uploaded bool
}

// ChunkManager owns the chunk grid for one terrain tile and rebuilds chunk
// meshes when the heightmap changes. Mesh generation is CPU-only and runs in
// parallel on a worker pool; workers never touch the GPU.
type ChunkManager interface {
	// Chunks returns all chunks in row-major grid order.
	//
	// Returns:
	//   - []*Chunk: the chunk grid
	Chunks() []*Chunk

	// NumChunksX returns the chunk count along the X axis.
	NumChunksX() int

	// NumChunksZ returns the chunk count along the Z axis.
	NumChunksZ() int

	// BuildAll (re)generates every chunk mesh in parallel and blocks until
	// all meshes are ready.
	BuildAll()

	// RebuildRegion regenerates only the chunks whose texel footprint
	// intersects the dirty rectangle, in parallel, and blocks until done.
	//
	// Parameters:
	//   - dirty: the modified heightmap region in texels
	//
	// Returns:
	//   - int: the number of chunks rebuilt
	RebuildRegion(dirty common.DirtyRect) int

	// VisibleChunks appends the chunks whose bounds intersect the frustum.
	//
	// Parameters:
	//   - frustum: the camera frustum
	//   - out: destination slice, reused across frames
	//
	// Returns:
	//   - []*Chunk: out extended with the visible chunks
	VisibleChunks(frustum *common.Frustum, out []*Chunk) []*Chunk
}

type chunkManager struct {
	heightmap  *Heightmap
	worldSizeX float32
	worldSizeZ float32
	heightScale float32

	numChunksX int
	numChunksZ int
	chunks     []*Chunk

	buildWorkers int
	buildPool    worker.DynamicWorkerPool
}

var _ ChunkManager = &chunkManager{}

// NewChunkManager creates the chunk grid for a heightmap and builds all chunk
// meshes before returning.
//
// Parameters:
//   - heightmap: the source heightmap (retained, not copied)
//   - opts: variadic list of ChunkManagerOption functions
//
// Returns:
//   - ChunkManager: the ready chunk manager
func NewChunkManager(heightmap *Heightmap, opts ...ChunkManagerOption) ChunkManager {
	m := &chunkManager{
		heightmap:    heightmap,
		worldSizeX:   256,
		worldSizeZ:   256,
		heightScale:  64,
		buildWorkers: 4,
	}
	for _, opt := range opts {
		opt(m)
	}

	res := heightmap.Resolution()
	m.numChunksX = (res + ChunkSize - 1) / ChunkSize
	m.numChunksZ = (res + ChunkSize - 1) / ChunkSize

	m.chunks = make([]*Chunk, 0, m.numChunksX*m.numChunksZ)
	for cz := 0; cz < m.numChunksZ; cz++ {
		for cx := 0; cx < m.numChunksX; cx++ {
			m.chunks = append(m.chunks, &Chunk{GridX: cx, GridZ: cz})
		}
	}

	// Queue size of 256 covers the largest practical chunk grids.
	m.buildPool = worker.NewDynamicWorkerPool(m.buildWorkers, 256, 1*time.Second)

	m.BuildAll()
	return m
}

func (m *chunkManager) Chunks() []*Chunk {
	return m.chunks
}

func (m *chunkManager) NumChunksX() int {
	return m.numChunksX
}

func (m *chunkManager) NumChunksZ() int {
	return m.numChunksZ
}

func (m *chunkManager) BuildAll() {
	m.buildChunks(m.chunks)
}

func (m *chunkManager) RebuildRegion(dirty common.DirtyRect) int {
	if dirty.Empty() {
		return 0
	}

	// Expand by one texel: a modified sample feeds the normals of its
	// neighbors, which may belong to the adjacent chunk.
	cx0 := maxInt(0, (dirty.MinX-1)/ChunkSize)
	cx1 := minInt(m.numChunksX-1, (dirty.MaxX+1)/ChunkSize)
	cz0 := maxInt(0, (dirty.MinY-1)/ChunkSize)
	cz1 := minInt(m.numChunksZ-1, (dirty.MaxY+1)/ChunkSize)

	var affected []*Chunk
	for cz := cz0; cz <= cz1; cz++ {
		for cx := cx0; cx <= cx1; cx++ {
			affected = append(affected, m.chunks[cz*m.numChunksX+cx])
		}
	}
	m.buildChunks(affected)
	return len(affected)
}

func (m *chunkManager) VisibleChunks(frustum *common.Frustum, out []*Chunk) []*Chunk {
	for _, c := range m.chunks {
		if frustum.IntersectsAABB(
			c.Bounds.Min[0], c.Bounds.Min[1], c.Bounds.Min[2],
			c.Bounds.Max[0], c.Bounds.Max[1], c.Bounds.Max[2],
		) {
			out = append(out, c)
		}
	}
	return out
}

// buildChunks regenerates the given chunks on the worker pool and waits for
// completion. Workers only read the heightmap and write their own chunk.
func (m *chunkManager) buildChunks(chunks []*Chunk) {
	var wg sync.WaitGroup
	for taskID, c := range chunks {
		wg.Add(1)
		chunk := c
		m.buildPool.SubmitTask(worker.Task{
			ID: taskID,
			Do: func() (any, error) {
				defer wg.Done()
				m.buildChunkMesh(chunk)
				return nil, nil
			},
		})
	}
	wg.Wait()
}

// buildChunkMesh generates the vertex and index data for one chunk and
// refreshes its bounds from the heightmap.
func (m *chunkManager) buildChunkMesh(c *Chunk) {
	res := m.heightmap.Resolution()
	invRes := 1.0 / float32(res-1)

	// The chunk's texel span, clamped at the terrain edge.
	tx0 := c.GridX * ChunkSize
	tz0 := c.GridZ * ChunkSize
	tx1 := minInt(tx0+ChunkSize, res-1)
	tz1 := minInt(tz0+ChunkSize, res-1)

	vertsX := tx1 - tx0 + 1
	vertsZ := tz1 - tz0 + 1

	mesh := &ChunkMesh{
		Vertices: make([]float32, 0, vertsX*vertsZ*VertexStride),
		Indices:  make([]uint32, 0, (vertsX-1)*(vertsZ-1)*6),
	}

	bounds := common.AABB{
		Min: [3]float32{float32(tx0) * invRes * m.worldSizeX, m.heightScale, float32(tz0) * invRes * m.worldSizeZ},
		Max: [3]float32{float32(tx1) * invRes * m.worldSizeX, 0, float32(tz1) * invRes * m.worldSizeZ},
	}

	for tz := tz0; tz <= tz1; tz++ {
		for tx := tx0; tx <= tx1; tx++ {
			u := float32(tx) * invRes
			v := float32(tz) * invRes
			height := m.heightmap.At(tx, tz) * m.heightScale
			normal := m.heightmap.GetNormalAt(u, v, m.worldSizeX, m.worldSizeZ, m.heightScale)

			mesh.Vertices = append(mesh.Vertices,
				u*m.worldSizeX, height, v*m.worldSizeZ,
				normal[0], normal[1], normal[2],
				u, v,
			)
			bounds.Expand(u*m.worldSizeX, height, v*m.worldSizeZ)
		}
	}

	for z := 0; z < vertsZ-1; z++ {
		for x := 0; x < vertsX-1; x++ {
			i0 := uint32(z*vertsX + x)
			i1 := i0 + 1
			i2 := i0 + uint32(vertsX)
			i3 := i2 + 1
			mesh.Indices = append(mesh.Indices, i0, i2, i1, i1, i2, i3)
		}
	}

	c.Mesh = mesh
	c.Bounds = bounds
	c.Uploaded = false
}
