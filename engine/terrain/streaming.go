package terrain

import (
	"log"
	"sort"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"

	"github.com/chewxy/math32"
)

// TileState tracks a streamed tile through its load lifecycle.
type TileState int

const (
	// TileLoading: the heightmap parse is running on a background worker.
	TileLoading TileState = iota
	// TileLoaded: heightmap is in memory, GPU resources not yet built.
	TileLoaded
	// TileReady: chunk manager built, tile is renderable.
	TileReady
)

// Tile is one streamed terrain tile on the infinite grid.
type Tile struct {
	// GridX, GridZ index the tile on the integer grid.
	GridX, GridZ int
	// Heightmap is the tile's height data, nil while loading.
	Heightmap *Heightmap
	// Chunks is the tile's chunk manager, nil until BuildGPUResources ran.
	Chunks ChunkManager
	// State is the tile's lifecycle phase.
	State TileState
	// LastUsedFrame is the most recent frame the tile was inside LoadRadius.
	LastUsedFrame uint64
}

// TileLoadFunc produces the heightmap for a grid cell. It runs on a worker
// thread and must not touch the GPU. File-backed and procedural sources both
// fit this signature.
type TileLoadFunc func(gridX, gridZ int) (*Heightmap, error)

// Streamer pages terrain tiles in and out around the camera. Update queues
// asynchronous CPU loads; ProcessCompleted finalizes them on the render
// thread (edge stitching, chunk building). Loaded tiles beyond MaxLoadedTiles
// are evicted oldest-first.
type Streamer interface {
	// Update marks every tile within the load radius of the camera as needed,
	// queues loads for missing tiles, refreshes LRU stamps on present ones,
	// and evicts the least recently used tiles over the budget.
	//
	// Parameters:
	//   - cameraPos: world-space camera position
	//   - frameNumber: monotonically increasing frame counter
	Update(cameraPos [3]float32, frameNumber uint64)

	// ProcessCompleted finalizes up to maxTiles finished background loads:
	// stitches shared edges with loaded neighbors and builds the chunk
	// manager. Must be called from the render thread.
	//
	// Parameters:
	//   - maxTiles: finalization budget for this frame (<= 0 means all)
	//
	// Returns:
	//   - int: the number of tiles finalized
	ProcessCompleted(maxTiles int) int

	// TileAt returns the tile at a grid cell, or nil if not resident.
	TileAt(gridX, gridZ int) *Tile

	// LoadedTiles returns all resident tiles in unspecified order.
	LoadedTiles() []*Tile

	// UnloadAll drains pending loads and drops every tile. Blocks until all
	// outstanding background work has finished.
	UnloadAll()
}

// ProceduralTileSource returns a TileLoadFunc that generates tiles from a
// single continuous fBm field: tile (gx, gz) samples global coordinates
// offset by the grid cell, so adjacent tiles line up without stitching error
// beyond float rounding.
//
// Parameters:
//   - samples: heightmap resolution per tile
//   - params: the shared fBm configuration
//
// Returns:
//   - TileLoadFunc: the procedural tile source
func ProceduralTileSource(samples int, params FBMParams) TileLoadFunc {
	noise := newSimplexNoise(params.Seed)

	maxAmp := float32(0)
	amp := params.Amplitude
	for o := 0; o < params.Octaves; o++ {
		maxAmp += amp
		amp *= params.Persistence
	}
	if maxAmp <= 0 {
		maxAmp = 1
	}

	return func(gridX, gridZ int) (*Heightmap, error) {
		h := NewHeightmap(samples)
		inv := 1.0 / float32(samples-1)
		for y := 0; y < samples; y++ {
			for x := 0; x < samples; x++ {
				gu := float32(gridX) + float32(x)*inv
				gv := float32(gridZ) + float32(y)*inv
				n := fbm(noise, params, gu, gv)
				h.data[y*samples+x] = clamp01(0.5 + 0.5*n/maxAmp)
			}
		}
		return h, nil
	}
}

type loadResult struct {
	gridX, gridZ int
	heightmap    *Heightmap
	err          error
}

type streamer struct {
	mu    sync.Mutex
	tiles map[[2]int]*Tile

	tileWorldSize float32
	tileSamples   int
	loadRadius    int
	maxTiles      int
	heightScale   float32

	loadFunc TileLoadFunc
	loadPool worker.DynamicWorkerPool
	pending  sync.WaitGroup
	results  chan loadResult
}

var _ Streamer = &streamer{}

// NewStreamer creates a terrain streamer around a tile source.
//
// Parameters:
//   - loadFunc: heightmap source for grid cells
//   - opts: variadic list of StreamerOption functions
//
// Returns:
//   - Streamer: the streamer, empty until the first Update
func NewStreamer(loadFunc TileLoadFunc, opts ...StreamerOption) Streamer {
	s := &streamer{
		tiles:         make(map[[2]int]*Tile),
		tileWorldSize: 256,
		tileSamples:   513,
		loadRadius:    2,
		maxTiles:      25,
		heightScale:   64,
		loadFunc:      loadFunc,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.loadPool = worker.NewDynamicWorkerPool(2, 256, 1*time.Second)
	s.results = make(chan loadResult, 256)
	return s
}

func (s *streamer) Update(cameraPos [3]float32, frameNumber uint64) {
	centerX := int(math32.Floor(cameraPos[0] / s.tileWorldSize))
	centerZ := int(math32.Floor(cameraPos[2] / s.tileWorldSize))

	s.mu.Lock()
	defer s.mu.Unlock()

	for dz := -s.loadRadius; dz <= s.loadRadius; dz++ {
		for dx := -s.loadRadius; dx <= s.loadRadius; dx++ {
			key := [2]int{centerX + dx, centerZ + dz}
			if t, ok := s.tiles[key]; ok {
				t.LastUsedFrame = frameNumber
				continue
			}
			t := &Tile{GridX: key[0], GridZ: key[1], State: TileLoading, LastUsedFrame: frameNumber}
			s.tiles[key] = t
			s.queueLoad(key[0], key[1])
		}
	}

	s.evictLocked()
}

// queueLoad submits a background heightmap parse. Caller holds s.mu.
func (s *streamer) queueLoad(gx, gz int) {
	s.pending.Add(1)
	s.loadPool.SubmitTask(worker.Task{
		ID: gx*73856093 ^ gz*19349663,
		Do: func() (any, error) {
			defer s.pending.Done()
			hm, err := s.loadFunc(gx, gz)
			s.results <- loadResult{gridX: gx, gridZ: gz, heightmap: hm, err: err}
			return nil, nil
		},
	})
}

func (s *streamer) ProcessCompleted(maxTiles int) int {
	finalized := 0
	for maxTiles <= 0 || finalized < maxTiles {
		select {
		case r := <-s.results:
			s.finalize(r)
			finalized++
		default:
			return finalized
		}
	}
	return finalized
}

// finalize installs a finished load: stitch edges against resident neighbors,
// then build GPU-side resources.
func (s *streamer) finalize(r loadResult) {
	s.mu.Lock()
	t, ok := s.tiles[[2]int{r.gridX, r.gridZ}]
	s.mu.Unlock()
	if !ok {
		// Evicted (or unloaded) while the load was in flight; drop the data.
		return
	}
	if r.err != nil {
		log.Printf("[Terrain] tile (%d, %d) load failed: %v", r.gridX, r.gridZ, r.err)
		s.mu.Lock()
		delete(s.tiles, [2]int{r.gridX, r.gridZ})
		s.mu.Unlock()
		return
	}

	if r.heightmap.Resolution() != s.tileSamples {
		log.Printf("[Terrain] tile (%d, %d) resolution %d differs from configured %d", r.gridX, r.gridZ, r.heightmap.Resolution(), s.tileSamples)
	}
	t.Heightmap = r.heightmap
	t.State = TileLoaded

	s.stitchEdges(t)
	s.buildGPUResources(t)
}

// stitchEdges averages the shared 1-texel overlap rows/columns between this
// tile and each loaded cardinal neighbor, writing the result into both
// heightmaps so the seam is watertight.
func (s *streamer) stitchEdges(t *Tile) {
	res := t.Heightmap.Resolution()

	s.mu.Lock()
	left := s.residentLocked(t.GridX-1, t.GridZ)
	right := s.residentLocked(t.GridX+1, t.GridZ)
	up := s.residentLocked(t.GridX, t.GridZ-1)
	down := s.residentLocked(t.GridX, t.GridZ+1)
	s.mu.Unlock()

	if left != nil {
		for y := 0; y < res; y++ {
			avg := (t.Heightmap.At(0, y) + left.Heightmap.At(res-1, y)) * 0.5
			t.Heightmap.Set(0, y, avg)
			left.Heightmap.Set(res-1, y, avg)
		}
		s.refreshEdge(left)
	}
	if right != nil {
		for y := 0; y < res; y++ {
			avg := (t.Heightmap.At(res-1, y) + right.Heightmap.At(0, y)) * 0.5
			t.Heightmap.Set(res-1, y, avg)
			right.Heightmap.Set(0, y, avg)
		}
		s.refreshEdge(right)
	}
	if up != nil {
		for x := 0; x < res; x++ {
			avg := (t.Heightmap.At(x, 0) + up.Heightmap.At(x, res-1)) * 0.5
			t.Heightmap.Set(x, 0, avg)
			up.Heightmap.Set(x, res-1, avg)
		}
		s.refreshEdge(up)
	}
	if down != nil {
		for x := 0; x < res; x++ {
			avg := (t.Heightmap.At(x, res-1) + down.Heightmap.At(x, 0)) * 0.5
			t.Heightmap.Set(x, res-1, avg)
			down.Heightmap.Set(x, 0, avg)
		}
		s.refreshEdge(down)
	}
}

// residentLocked returns a tile with CPU height data present. Caller holds s.mu.
func (s *streamer) residentLocked(gx, gz int) *Tile {
	t, ok := s.tiles[[2]int{gx, gz}]
	if !ok || t.Heightmap == nil {
		return nil
	}
	return t
}

// refreshEdge rebuilds a neighbor's edge chunks after stitching moved its
// border heights.
func (s *streamer) refreshEdge(t *Tile) {
	if t.Chunks == nil {
		return
	}
	t.Chunks.BuildAll()
}

// buildGPUResources creates the tile's chunk manager. The meshes build in
// parallel; uploads happen later on the render thread via the chunk manager.
func (s *streamer) buildGPUResources(t *Tile) {
	t.Chunks = NewChunkManager(t.Heightmap,
		WithWorldSize(s.tileWorldSize, s.tileWorldSize),
		WithHeightScale(s.heightScale),
	)
	t.State = TileReady
}

// evictLocked removes the oldest tiles above the budget. Caller holds s.mu.
func (s *streamer) evictLocked() {
	excess := len(s.tiles) - s.maxTiles
	if excess <= 0 {
		return
	}

	type aged struct {
		key   [2]int
		frame uint64
	}
	all := make([]aged, 0, len(s.tiles))
	for k, t := range s.tiles {
		all = append(all, aged{key: k, frame: t.LastUsedFrame})
	}
	sort.Slice(all, func(i, j int) bool { return all[i].frame < all[j].frame })

	for i := 0; i < excess; i++ {
		delete(s.tiles, all[i].key)
	}
}

func (s *streamer) TileAt(gridX, gridZ int) *Tile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tiles[[2]int{gridX, gridZ}]
}

func (s *streamer) LoadedTiles() []*Tile {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Tile, 0, len(s.tiles))
	for _, t := range s.tiles {
		out = append(out, t)
	}
	return out
}

func (s *streamer) UnloadAll() {
	// Keep draining results while waiting so an in-flight load can never
	// block on a full channel.
	done := make(chan struct{})
	go func() {
		s.pending.Wait()
		close(done)
	}()
	for {
		select {
		case <-s.results:
		case <-done:
			for {
				select {
				case <-s.results:
				default:
					s.mu.Lock()
					s.tiles = make(map[[2]int]*Tile)
					s.mu.Unlock()
					return
				}
			}
		}
	}
}
