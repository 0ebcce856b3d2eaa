package terrain

import (
	"math/rand"

	"github.com/chewxy/math32"
)

// simplexNoise is a seeded 2D simplex noise generator. Output is in [-1, 1].
// Each instance owns its own shuffled permutation table so two generators
// with the same seed produce identical fields.
type simplexNoise struct {
	perm [512]uint8
}

// grad2 holds the twelve gradient directions used by 2D simplex noise.
var grad2 = [12][2]float32{
	{1, 1}, {-1, 1}, {1, -1}, {-1, -1},
	{1, 0}, {-1, 0}, {1, 0}, {-1, 0},
	{0, 1}, {0, -1}, {0, 1}, {0, -1},
}

const (
	skew2   = 0.3660254037844386  // (sqrt(3) - 1) / 2
	unskew2 = 0.21132486540518713 // (3 - sqrt(3)) / 6
)

func newSimplexNoise(seed int64) *simplexNoise {
	n := &simplexNoise{}
	var base [256]uint8
	for i := range base {
		base[i] = uint8(i)
	}
	rng := rand.New(rand.NewSource(seed))
	rng.Shuffle(256, func(i, j int) {
		base[i], base[j] = base[j], base[i]
	})
	for i := 0; i < 512; i++ {
		n.perm[i] = base[i&255]
	}
	return n
}

// sample evaluates the noise field at (x, y).
func (n *simplexNoise) sample(x, y float32) float32 {
	s := (x + y) * skew2
	i := math32.Floor(x + s)
	j := math32.Floor(y + s)

	t := (i + j) * unskew2
	x0 := x - (i - t)
	y0 := y - (j - t)

	// Which simplex triangle the point falls in.
	var i1, j1 float32
	if x0 > y0 {
		i1, j1 = 1, 0
	} else {
		i1, j1 = 0, 1
	}

	x1 := x0 - i1 + unskew2
	y1 := y0 - j1 + unskew2
	x2 := x0 - 1 + 2*unskew2
	y2 := y0 - 1 + 2*unskew2

	ii := int(i) & 255
	jj := int(j) & 255

	var total float32
	corners := [3][3]float32{
		{x0, y0, 0},
		{x1, y1, i1},
		{x2, y2, 1},
	}
	for c, corner := range corners {
		cx, cy := corner[0], corner[1]
		att := 0.5 - cx*cx - cy*cy
		if att <= 0 {
			continue
		}
		var gi int
		switch c {
		case 0:
			gi = int(n.perm[ii+int(n.perm[jj])]) % 12
		case 1:
			gi = int(n.perm[ii+int(corner[2])+int(n.perm[jj+int(j1)])]) % 12
		default:
			gi = int(n.perm[ii+1+int(n.perm[jj+1])]) % 12
		}
		att *= att
		total += att * att * (grad2[gi][0]*cx + grad2[gi][1]*cy)
	}

	// Scale to roughly [-1, 1].
	return 70.0 * total
}

// FBMParams configures fractal Brownian motion heightmap generation.
type FBMParams struct {
	// Seed selects the permutation table; equal seeds give equal terrain.
	Seed int64
	// Octaves is the number of noise layers summed.
	Octaves int
	// Frequency is the base sampling frequency in cycles per terrain span.
	Frequency float32
	// Amplitude is the base layer amplitude.
	Amplitude float32
	// Lacunarity multiplies the frequency per octave.
	Lacunarity float32
	// Persistence multiplies the amplitude per octave.
	Persistence float32
}

// DefaultFBMParams returns generation parameters that produce rolling hills.
//
// Returns:
//   - FBMParams: the default fBm configuration
func DefaultFBMParams() FBMParams {
	return FBMParams{
		Seed:        1,
		Octaves:     6,
		Frequency:   4.0,
		Amplitude:   1.0,
		Lacunarity:  2.0,
		Persistence: 0.5,
	}
}

// fbm sums Octaves layers of simplex noise at (x, y) in normalized terrain
// space. Output is in [-maxAmplitude, maxAmplitude].
func fbm(n *simplexNoise, p FBMParams, x, y float32) float32 {
	freq := p.Frequency
	amp := p.Amplitude
	var total float32
	for o := 0; o < p.Octaves; o++ {
		total += n.sample(x*freq, y*freq) * amp
		freq *= p.Lacunarity
		amp *= p.Persistence
	}
	return total
}
