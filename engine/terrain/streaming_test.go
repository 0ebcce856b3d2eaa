package terrain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStreamer(radius, maxTiles int) Streamer {
	src := ProceduralTileSource(33, FBMParams{
		Seed: 5, Octaves: 3, Frequency: 2, Amplitude: 1, Lacunarity: 2, Persistence: 0.5,
	})
	return NewStreamer(src,
		WithTileWorldSize(100),
		WithTileSamples(33),
		WithLoadRadius(radius),
		WithMaxLoadedTiles(maxTiles),
	)
}

// waitReady pumps ProcessCompleted until want tiles are ready or the deadline
// passes.
func waitReady(t *testing.T, s Streamer, want int) {
	t.Helper()
	require.Eventually(t, func() bool {
		s.ProcessCompleted(0)
		ready := 0
		for _, tile := range s.LoadedTiles() {
			if tile.State == TileReady {
				ready++
			}
		}
		return ready >= want
	}, 5*time.Second, 5*time.Millisecond)
}

func TestUpdateLoadsTilesAroundCamera(t *testing.T) {
	s := testStreamer(1, 64)
	defer s.UnloadAll()

	s.Update([3]float32{50, 0, 50}, 1)
	waitReady(t, s, 9)

	// Camera sits in tile (0, 0); the 3×3 neighborhood must be resident.
	for gz := -1; gz <= 1; gz++ {
		for gx := -1; gx <= 1; gx++ {
			tile := s.TileAt(gx, gz)
			require.NotNil(t, tile, "tile (%d,%d) missing", gx, gz)
			assert.Equal(t, TileReady, tile.State)
			assert.NotNil(t, tile.Chunks)
		}
	}
	assert.Nil(t, s.TileAt(5, 5))
}

func TestLRUEvictionDropsOldestTiles(t *testing.T) {
	s := testStreamer(0, 2)
	defer s.UnloadAll()

	s.Update([3]float32{50, 0, 50}, 1)    // tile (0,0)
	s.Update([3]float32{150, 0, 50}, 2)   // tile (1,0)
	s.Update([3]float32{250, 0, 50}, 3)   // tile (2,0) exceeds budget of 2

	// Oldest tile (0,0) was evicted during the third update.
	assert.Nil(t, s.TileAt(0, 0))
	assert.NotNil(t, s.TileAt(1, 0))
	assert.NotNil(t, s.TileAt(2, 0))
}

func TestLRURefreshKeepsRecentlyUsedTile(t *testing.T) {
	s := testStreamer(0, 2)
	defer s.UnloadAll()

	s.Update([3]float32{50, 0, 50}, 1)  // tile (0,0)
	s.Update([3]float32{150, 0, 50}, 2) // tile (1,0)
	s.Update([3]float32{50, 0, 50}, 3)  // refresh (0,0)
	s.Update([3]float32{250, 0, 50}, 4) // (2,0): evicts (1,0), not (0,0)

	assert.NotNil(t, s.TileAt(0, 0))
	assert.Nil(t, s.TileAt(1, 0))
	assert.NotNil(t, s.TileAt(2, 0))
}

func TestNeighborEdgeStitching(t *testing.T) {
	s := testStreamer(1, 64)
	defer s.UnloadAll()

	s.Update([3]float32{50, 0, 50}, 1)
	waitReady(t, s, 9)

	a := s.TileAt(0, 0)
	b := s.TileAt(1, 0)
	require.NotNil(t, a)
	require.NotNil(t, b)

	res := a.Heightmap.Resolution()
	for y := 0; y < res; y++ {
		assert.Equal(t, a.Heightmap.At(res-1, y), b.Heightmap.At(0, y),
			"row %d: shared edge heights must match after stitching", y)
	}
}

func TestUnloadAllDrainsAndEmpties(t *testing.T) {
	s := testStreamer(2, 64)
	s.Update([3]float32{0, 0, 0}, 1)

	// Unload immediately, with loads still in flight.
	s.UnloadAll()
	assert.Empty(t, s.LoadedTiles())

	// The streamer keeps working after a full unload.
	s.Update([3]float32{0, 0, 0}, 2)
	waitReady(t, s, 1)
	assert.NotEmpty(t, s.LoadedTiles())
}
