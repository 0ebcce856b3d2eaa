package terrain

import (
	"github.com/chewxy/math32"

	"github.com/oloengine/olo/common"
)

// SculptTool identifies one of the terrain sculpting operations.
type SculptTool int

const (
	// SculptRaise adds height inside the brush radius.
	SculptRaise SculptTool = iota
	// SculptLower removes height inside the brush radius.
	SculptLower
	// SculptSmooth pulls each sample toward the average of its neighbors.
	SculptSmooth
	// SculptFlatten pulls samples toward the height at the brush center.
	SculptFlatten
	// SculptLevel behaves like flatten but against a caller-provided height.
	SculptLevel
)

// BrushParams describes a single sculpt or paint application.
type BrushParams struct {
	// CenterU, CenterV: brush center in normalized terrain coordinates.
	CenterU, CenterV float32
	// Radius in normalized terrain units.
	Radius float32
	// Strength scales the per-second effect magnitude.
	Strength float32
	// Falloff in [0, 1] blends the linear profile toward a cosine profile.
	Falloff float32
	// DeltaTime is the frame time in seconds.
	DeltaTime float32
	// TargetHeight is the level target for SculptLevel, in [0, 1].
	TargetHeight float32
}

// brushWeight returns the falloff weight in [0, 1] for a sample at normalized
// distance d (0 at the brush center, 1 at the radius). The linear profile is
// blended with a cosine profile by the falloff parameter.
func brushWeight(d, falloff float32) float32 {
	if d >= 1 {
		return 0
	}
	linear := 1 - d
	cosine := 0.5 + 0.5*math32.Cos(d*math32.Pi)
	return linear*(1-falloff) + cosine*falloff
}

// ApplySculpt runs one sculpt brush application against the heightmap and
// returns the texel rectangle that was modified, for partial GPU re-upload.
// All resulting heights are clamped to [0, 1].
//
// Parameters:
//   - h: the heightmap to modify
//   - tool: which sculpt operation to run
//   - params: brush placement and strength
//   - heightScale: world-unit height of a sample value of 1.0, used to keep
//     raise/lower speed constant in world units
//
// Returns:
//   - common.DirtyRect: the modified texel region (empty if nothing changed)
func ApplySculpt(h *Heightmap, tool SculptTool, params BrushParams, heightScale float32) common.DirtyRect {
	var dirty common.DirtyRect
	if params.Radius <= 0 || params.DeltaTime <= 0 || heightScale <= 0 {
		return dirty
	}

	res := h.Resolution()
	cx := params.CenterU * float32(res-1)
	cy := params.CenterV * float32(res-1)
	radius := params.Radius * float32(res-1)

	x0 := int(math32.Floor(cx - radius))
	x1 := int(math32.Ceil(cx + radius))
	y0 := int(math32.Floor(cy - radius))
	y1 := int(math32.Ceil(cy + radius))
	if x0 < 0 {
		x0 = 0
	}
	if y0 < 0 {
		y0 = 0
	}
	if x1 >= res {
		x1 = res - 1
	}
	if y1 >= res {
		y1 = res - 1
	}

	target := params.TargetHeight
	if tool == SculptFlatten {
		target = h.GetHeightAt(params.CenterU, params.CenterV)
	}

	// Smooth reads neighbors, so it works on a snapshot of the affected rows
	// to keep the result independent of iteration order.
	var snapshot []float32
	if tool == SculptSmooth {
		snapshot = make([]float32, len(h.data))
		copy(snapshot, h.data)
	}

	for y := y0; y <= y1; y++ {
		for x := x0; x <= x1; x++ {
			dx := float32(x) - cx
			dy := float32(y) - cy
			d := math32.Sqrt(dx*dx+dy*dy) / radius
			w := brushWeight(d, params.Falloff)
			if w <= 0 {
				continue
			}

			idx := y*res + x
			old := h.data[idx]
			var next float32
			switch tool {
			case SculptRaise:
				next = old + w*params.Strength*params.DeltaTime/heightScale
			case SculptLower:
				next = old - w*params.Strength*params.DeltaTime/heightScale
			case SculptSmooth:
				avg := (sampleSnapshot(snapshot, res, x-1, y) +
					sampleSnapshot(snapshot, res, x+1, y) +
					sampleSnapshot(snapshot, res, x, y-1) +
					sampleSnapshot(snapshot, res, x, y+1)) * 0.25
				t := w * params.Strength * params.DeltaTime
				if t > 1 {
					t = 1
				}
				next = old + (avg-old)*t
			case SculptFlatten, SculptLevel:
				t := w * params.Strength * params.DeltaTime
				if t > 1 {
					t = 1
				}
				next = old + (target-old)*t
			default:
				continue
			}

			next = clamp01(next)
			if next != old {
				h.data[idx] = next
				dirty.Add(x, y)
			}
		}
	}
	return dirty
}

// sampleSnapshot reads a texel from the pre-brush copy with edge clamping.
func sampleSnapshot(data []float32, res, x, y int) float32 {
	if x < 0 {
		x = 0
	} else if x >= res {
		x = res - 1
	}
	if y < 0 {
		y = 0
	} else if y >= res {
		y = res - 1
	}
	return data[y*res+x]
}
