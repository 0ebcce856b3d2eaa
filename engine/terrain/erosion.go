package terrain

import (
	"math/rand"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/oloengine/olo/common"
)

// ErosionParams governs the droplet hydraulic erosion simulation. The same
// parameter block drives both the compute kernel and the CPU fallback, so
// results can be validated off-GPU.
type ErosionParams struct {
	// DropletCount is the number of droplets simulated per iteration.
	DropletCount int
	// MaxDropletSteps caps each droplet's random walk length.
	MaxDropletSteps int
	// Inertia in [0, 1] blends old direction against the downhill gradient.
	Inertia float32
	// SedimentCapacityFactor scales how much sediment a droplet can carry.
	SedimentCapacityFactor float32
	// MinSedimentCapacity keeps capacity positive on flat ground.
	MinSedimentCapacity float32
	// DepositSpeed in [0, 1] is the fraction of surplus sediment dropped per step.
	DepositSpeed float32
	// ErodeSpeed in [0, 1] is the fraction of spare capacity eroded per step.
	ErodeSpeed float32
	// EvaporateSpeed in [0, 1] shrinks droplet water per step.
	EvaporateSpeed float32
	// Gravity accelerates droplets downhill.
	Gravity float32
	// ErosionRadius is the deposition/erosion brush radius in texels.
	ErosionRadius int
	// Seed drives droplet placement; equal seeds give equal results.
	Seed int64
}

// DefaultErosionParams returns parameters tuned for natural-looking valleys
// on a 1024² heightmap.
//
// Returns:
//   - ErosionParams: the default erosion configuration
func DefaultErosionParams() ErosionParams {
	return ErosionParams{
		DropletCount:           50000,
		MaxDropletSteps:        64,
		Inertia:                0.05,
		SedimentCapacityFactor: 4.0,
		MinSedimentCapacity:    0.01,
		DepositSpeed:           0.3,
		ErodeSpeed:             0.3,
		EvaporateSpeed:         0.01,
		Gravity:                4.0,
		ErosionRadius:          3,
		Seed:                   1,
	}
}

// SimulateDroplets runs the droplet erosion simulation on the CPU, modifying
// the heightmap in place. Each droplet random-walks downhill picking up and
// depositing sediment per the parameters; this mirrors the compute kernel one
// thread per droplet.
//
// Parameters:
//   - h: the heightmap to erode
//   - params: the erosion configuration
//
// Returns:
//   - common.DirtyRect: the modified texel region for partial re-upload
func SimulateDroplets(h *Heightmap, params ErosionParams) common.DirtyRect {
	var dirty common.DirtyRect
	res := h.Resolution()
	rng := rand.New(rand.NewSource(params.Seed))

	brush := buildErosionBrush(params.ErosionRadius)

	for d := 0; d < params.DropletCount; d++ {
		pos := mgl32.Vec2{
			rng.Float32() * float32(res-1),
			rng.Float32() * float32(res-1),
		}
		dir := mgl32.Vec2{}
		speed := float32(1)
		water := float32(1)
		sediment := float32(0)

		for step := 0; step < params.MaxDropletSteps; step++ {
			nodeX := int(pos.X())
			nodeY := int(pos.Y())
			cellX := pos.X() - float32(nodeX)
			cellY := pos.Y() - float32(nodeY)

			grad, height := gradientAndHeight(h, pos)

			dir = dir.Mul(params.Inertia).Sub(grad.Mul(1 - params.Inertia))
			if dir.Len() < 1e-7 {
				// Flat ground: pick a random direction to keep moving.
				angle := rng.Float32() * 2 * math32.Pi
				dir = mgl32.Vec2{math32.Cos(angle), math32.Sin(angle)}
			} else {
				dir = dir.Normalize()
			}

			pos = pos.Add(dir)
			if pos.X() < 0 || pos.X() >= float32(res-1) || pos.Y() < 0 || pos.Y() >= float32(res-1) {
				break
			}

			_, newHeight := gradientAndHeight(h, pos)
			deltaH := newHeight - height

			capacity := -deltaH * speed * water * params.SedimentCapacityFactor
			if capacity < params.MinSedimentCapacity {
				capacity = params.MinSedimentCapacity
			}

			if sediment > capacity || deltaH > 0 {
				// Moving uphill or over capacity: deposit at the old cell.
				var amount float32
				if deltaH > 0 {
					amount = deltaH
					if sediment < amount {
						amount = sediment
					}
				} else {
					amount = (sediment - capacity) * params.DepositSpeed
				}
				sediment -= amount

				depositBilinear(h, nodeX, nodeY, cellX, cellY, amount, &dirty)
			} else {
				amount := (capacity - sediment) * params.ErodeSpeed
				if amount > -deltaH {
					amount = -deltaH
				}
				sediment += erodeWithBrush(h, brush, nodeX, nodeY, amount, &dirty)
			}

			speedSq := speed*speed + deltaH*params.Gravity
			if speedSq < 0 {
				speedSq = 0
			}
			speed = math32.Sqrt(speedSq)
			water *= 1 - params.EvaporateSpeed
		}
	}
	return dirty
}

// gradientAndHeight bilinearly samples the height and its gradient at a
// fractional texel position.
func gradientAndHeight(h *Heightmap, pos mgl32.Vec2) (grad mgl32.Vec2, height float32) {
	x := int(pos.X())
	y := int(pos.Y())
	u := pos.X() - float32(x)
	v := pos.Y() - float32(y)

	h00 := h.At(x, y)
	h10 := h.At(x+1, y)
	h01 := h.At(x, y+1)
	h11 := h.At(x+1, y+1)

	grad = mgl32.Vec2{
		(h10-h00)*(1-v) + (h11-h01)*v,
		(h01-h00)*(1-u) + (h11-h10)*u,
	}
	height = h00*(1-u)*(1-v) + h10*u*(1-v) + h01*(1-u)*v + h11*u*v
	return grad, height
}

// depositBilinear spreads sediment over the four texels around a fractional
// position, weighted bilinearly.
func depositBilinear(h *Heightmap, x, y int, u, v, amount float32, dirty *common.DirtyRect) {
	addHeight(h, x, y, amount*(1-u)*(1-v), dirty)
	addHeight(h, x+1, y, amount*u*(1-v), dirty)
	addHeight(h, x, y+1, amount*(1-u)*v, dirty)
	addHeight(h, x+1, y+1, amount*u*v, dirty)
}

func addHeight(h *Heightmap, x, y int, delta float32, dirty *common.DirtyRect) {
	if x < 0 || x >= h.resolution || y < 0 || y >= h.resolution {
		return
	}
	h.Set(x, y, h.At(x, y)+delta)
	dirty.Add(x, y)
}

// erosionBrushPoint is one weighted texel offset of the erosion brush.
type erosionBrushPoint struct {
	dx, dy int
	weight float32
}

// buildErosionBrush precomputes the normalized radial weights used to spread
// erosion over a neighborhood instead of carving single-texel trenches.
func buildErosionBrush(radius int) []erosionBrushPoint {
	if radius < 1 {
		radius = 1
	}
	var points []erosionBrushPoint
	var total float32
	for dy := -radius; dy <= radius; dy++ {
		for dx := -radius; dx <= radius; dx++ {
			d := math32.Sqrt(float32(dx*dx + dy*dy))
			if d > float32(radius) {
				continue
			}
			w := 1 - d/float32(radius)
			points = append(points, erosionBrushPoint{dx: dx, dy: dy, weight: w})
			total += w
		}
	}
	for i := range points {
		points[i].weight /= total
	}
	return points
}

// erodeWithBrush removes up to amount of height spread over the brush area
// around (x, y) and returns the sediment actually picked up. Texels cannot
// erode below zero.
func erodeWithBrush(h *Heightmap, brush []erosionBrushPoint, x, y int, amount float32, dirty *common.DirtyRect) float32 {
	var picked float32
	for _, p := range brush {
		tx := x + p.dx
		ty := y + p.dy
		if tx < 0 || tx >= h.resolution || ty < 0 || ty >= h.resolution {
			continue
		}
		take := amount * p.weight
		cur := h.At(tx, ty)
		if take > cur {
			take = cur
		}
		if take <= 0 {
			continue
		}
		h.Set(tx, ty, cur-take)
		dirty.Add(tx, ty)
		picked += take
	}
	return picked
}
