package terrain

import (
	"github.com/chewxy/math32"

	"github.com/oloengine/olo/common"
)

// MaxTerrainLayers is the number of paintable material layers. Layer weights
// live in two RGBA8 splatmaps of four channels each.
const MaxTerrainLayers = 8

// SplatmapSet holds the CPU copies of the two RGBA8 splatmaps that control
// per-texel material layer blending. Channel c of splatmap s holds the weight
// of layer s*4+c. Across both maps the eight weights of a texel always sum to
// 255 after painting.
type SplatmapSet struct {
	resolution int
	maps       [2][]byte
}

// NewSplatmapSet allocates two zeroed RGBA8 splatmaps. When layerCount > 0
// the first map is initialized so layer 0 has full weight everywhere.
//
// Parameters:
//   - resolution: texels per axis
//   - layerCount: number of active material layers
//
// Returns:
//   - *SplatmapSet: the initialized splatmap pair
func NewSplatmapSet(resolution, layerCount int) *SplatmapSet {
	if resolution < 1 {
		resolution = 1
	}
	s := &SplatmapSet{resolution: resolution}
	for i := range s.maps {
		s.maps[i] = make([]byte, resolution*resolution*4)
	}
	if layerCount > 0 {
		px := s.maps[0]
		for i := 0; i < len(px); i += 4 {
			px[i] = 255
		}
	}
	return s
}

// Resolution returns the number of texels per axis.
func (s *SplatmapSet) Resolution() int {
	return s.resolution
}

// Pixels returns the raw RGBA8 data of splatmap index (0 or 1).
func (s *SplatmapSet) Pixels(index int) []byte {
	return s.maps[index&1]
}

// Weight returns the weight of the given layer at texel (x, y).
func (s *SplatmapSet) Weight(layer, x, y int) byte {
	m := s.maps[layer/4]
	return m[(y*s.resolution+x)*4+layer%4]
}

// Paint applies a paint brush stroke to the target layer and renormalizes
// affected texels so all eight channels sum to 255. Returns the dirty texel
// rectangle; callers re-upload that region of one or both splatmaps.
//
// Parameters:
//   - layer: target layer index in [0, MaxTerrainLayers)
//   - params: brush placement and strength
//
// Returns:
//   - common.DirtyRect: the modified texel region (empty if nothing changed)
func (s *SplatmapSet) Paint(layer int, params BrushParams) common.DirtyRect {
	var dirty common.DirtyRect
	if layer < 0 || layer >= MaxTerrainLayers || params.Radius <= 0 || params.DeltaTime <= 0 {
		return dirty
	}

	res := s.resolution
	cx := params.CenterU * float32(res-1)
	cy := params.CenterV * float32(res-1)
	radius := params.Radius * float32(res-1)

	x0 := maxInt(0, int(math32.Floor(cx-radius)))
	x1 := minInt(res-1, int(math32.Ceil(cx+radius)))
	y0 := maxInt(0, int(math32.Floor(cy-radius)))
	y1 := minInt(res-1, int(math32.Ceil(cy+radius)))

	targetMap := s.maps[layer/4]
	targetChan := layer % 4

	for y := y0; y <= y1; y++ {
		for x := x0; x <= x1; x++ {
			dx := float32(x) - cx
			dy := float32(y) - cy
			d := math32.Sqrt(dx*dx+dy*dy) / radius
			w := brushWeight(d, params.Falloff)
			if w <= 0 {
				continue
			}

			add := w * params.Strength * params.DeltaTime * 255.0
			if add < 1 {
				add = 1 // a touching stroke always leaves a mark
			}
			idx := (y*res + x) * 4
			v := float32(targetMap[idx+targetChan]) + add
			if v > 255 {
				v = 255
			}
			targetMap[idx+targetChan] = byte(v)

			s.normalizeTexel(x, y, layer)
			dirty.Add(x, y)
		}
	}
	return dirty
}

// normalizeTexel rescales the eight channel weights at (x, y) so they sum to
// 255, distributing rounding error onto the heaviest channel. Ties resolve
// toward the freshly painted layer so a full-strength stroke always ends up
// dominant at the texel it hit.
func (s *SplatmapSet) normalizeTexel(x, y, painted int) {
	idx := (y*s.resolution + x) * 4

	var sum int
	var weights [MaxTerrainLayers]int
	for l := 0; l < MaxTerrainLayers; l++ {
		weights[l] = int(s.maps[l/4][idx+l%4])
		sum += weights[l]
	}
	if sum == 0 {
		// Nothing painted anywhere; give layer 0 full weight.
		s.maps[0][idx] = 255
		return
	}
	if sum == 255 {
		return
	}

	total := 0
	heaviest := painted
	for l := 0; l < MaxTerrainLayers; l++ {
		scaled := weights[l] * 255 / sum
		s.maps[l/4][idx+l%4] = byte(scaled)
		total += scaled
		if weights[l] > weights[heaviest] {
			heaviest = l
		}
	}
	// Push the rounding remainder onto the dominant layer.
	if total != 255 {
		m := s.maps[heaviest/4]
		m[idx+heaviest%4] = byte(int(m[idx+heaviest%4]) + 255 - total)
	}
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
