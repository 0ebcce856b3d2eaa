package terrain

// StreamerOption is a functional option for configuring a Streamer.
type StreamerOption func(*streamer)

// WithTileWorldSize sets the world-unit extent of one tile.
//
// Parameters:
//   - size: tile extent in world units (values <= 0 are ignored)
//
// Returns:
//   - StreamerOption: the option function
func WithTileWorldSize(size float32) StreamerOption {
	return func(s *streamer) {
		if size > 0 {
			s.tileWorldSize = size
		}
	}
}

// WithTileSamples sets the heightmap resolution per tile. Tiles share a
// 1-texel edge overlap, so 2^n + 1 values stitch cleanly.
//
// Parameters:
//   - samples: samples per tile axis (values < 2 are ignored)
//
// Returns:
//   - StreamerOption: the option function
func WithTileSamples(samples int) StreamerOption {
	return func(s *streamer) {
		if samples >= 2 {
			s.tileSamples = samples
		}
	}
}

// WithLoadRadius sets how many tiles around the camera stay resident.
//
// Parameters:
//   - radius: Chebyshev radius in tiles (values < 0 are ignored)
//
// Returns:
//   - StreamerOption: the option function
func WithLoadRadius(radius int) StreamerOption {
	return func(s *streamer) {
		if radius >= 0 {
			s.loadRadius = radius
		}
	}
}

// WithMaxLoadedTiles sets the residency budget before LRU eviction.
//
// Parameters:
//   - max: maximum resident tiles (values < 1 are ignored)
//
// Returns:
//   - StreamerOption: the option function
func WithMaxLoadedTiles(max int) StreamerOption {
	return func(s *streamer) {
		if max >= 1 {
			s.maxTiles = max
		}
	}
}

// WithStreamerHeightScale sets the height scale applied to streamed tiles.
//
// Parameters:
//   - scale: height scale in world units (values <= 0 are ignored)
//
// Returns:
//   - StreamerOption: the option function
func WithStreamerHeightScale(scale float32) StreamerOption {
	return func(s *streamer) {
		if scale > 0 {
			s.heightScale = scale
		}
	}
}
