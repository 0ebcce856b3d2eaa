package terrain

// ChunkManagerOption is a functional option for configuring a ChunkManager.
type ChunkManagerOption func(*chunkManager)

// WithWorldSize sets the terrain extent in world units per axis.
//
// Parameters:
//   - sizeX: extent along X in world units
//   - sizeZ: extent along Z in world units
//
// Returns:
//   - ChunkManagerOption: the option function
func WithWorldSize(sizeX, sizeZ float32) ChunkManagerOption {
	return func(m *chunkManager) {
		if sizeX > 0 {
			m.worldSizeX = sizeX
		}
		if sizeZ > 0 {
			m.worldSizeZ = sizeZ
		}
	}
}

// WithHeightScale sets the world-unit height of a heightmap value of 1.0.
//
// Parameters:
//   - scale: height scale in world units
//
// Returns:
//   - ChunkManagerOption: the option function
func WithHeightScale(scale float32) ChunkManagerOption {
	return func(m *chunkManager) {
		if scale > 0 {
			m.heightScale = scale
		}
	}
}

// WithBuildWorkers sets the number of worker goroutines used for parallel
// chunk mesh generation.
//
// Parameters:
//   - workers: worker count (values < 1 are ignored)
//
// Returns:
//   - ChunkManagerOption: the option function
func WithBuildWorkers(workers int) ChunkManagerOption {
	return func(m *chunkManager) {
		if workers >= 1 {
			m.buildWorkers = workers
		}
	}
}
