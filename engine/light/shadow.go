package light

// MaxCSMCascades is the number of cascades in the directional-light cascaded
// shadow map. The cascade matrices, split distances, and depth texture array
// layers are all sized to this.
const MaxCSMCascades = 4

// MaxSpotShadows is the number of spot lights that can cast shadows
// simultaneously. Each occupies one layer of the spot shadow depth array.
const MaxSpotShadows = 4

// MaxPointShadows is the number of point lights that can cast shadows
// simultaneously. Each owns a depth cube map.
const MaxPointShadows = 4

// DefaultShadowMapResolution is the default width and height in texels of
// every shadow depth texture (cascade layers, spot layers, cube faces).
const DefaultShadowMapResolution = 1024

// DefaultShadowBias is the constant depth bias applied to shadow comparisons
// to reduce shadow acne artifacts.
const DefaultShadowBias float32 = 0.005

// DefaultShadowNormalBiasScale is the multiplier applied to the shadow map
// texel world-size to compute the normal-offset bias. Higher values push
// the shadow sample point further along the surface normal, reducing
// self-shadowing on concave geometry at the cost of slight shadow
// detachment from contact points. Typical values are 2.0–4.0.
const DefaultShadowNormalBiasScale float32 = 3.0

// DefaultShadowSoftness is the default PCF kernel softness factor.
const DefaultShadowSoftness float32 = 1.0

// DefaultShadowMaxDistance is the default view-space distance beyond which
// directional shadows fade out; the camera far plane is clamped to this when
// computing cascades.
const DefaultShadowMaxDistance float32 = 200.0

// DefaultCascadeSplitLambda blends logarithmic and uniform cascade split
// schemes: 1.0 is fully logarithmic (tight near cascades), 0.0 fully uniform.
const DefaultCascadeSplitLambda float32 = 0.75

// cascadeZPadding extends each cascade's light-space depth range by a fixed
// world-unit amount so casters outside the camera frustum still land in the
// shadow map.
const cascadeZPadding float32 = 50.0

// SpotShadowNear is the near plane for spot and point shadow projections.
const SpotShadowNear float32 = 0.1

// ShadowSettings configures the shadow subsystem. Out-of-range values are
// clamped by Validate rather than propagated.
type ShadowSettings struct {
	// Resolution is the width and height of each shadow map in texels.
	Resolution int
	// Bias is the constant depth comparison bias.
	Bias float32
	// NormalBiasScale multiplies the per-texel world size to produce the
	// normal-offset bias distance.
	NormalBiasScale float32
	// Softness scales the PCF kernel radius.
	Softness float32
	// MaxDistance is the furthest view-space distance covered by cascades.
	MaxDistance float32
	// CascadeSplitLambda blends logarithmic and uniform splits, in [0, 1].
	CascadeSplitLambda float32
	// Enabled toggles the entire shadow subsystem.
	Enabled bool
	// DebugCascades tints the scene by cascade index when set.
	DebugCascades bool
}

// DefaultShadowSettings returns settings matching the engine defaults.
//
// Returns:
//   - ShadowSettings: the default shadow configuration
func DefaultShadowSettings() ShadowSettings {
	return ShadowSettings{
		Resolution:         DefaultShadowMapResolution,
		Bias:               DefaultShadowBias,
		NormalBiasScale:    DefaultShadowNormalBiasScale,
		Softness:           DefaultShadowSoftness,
		MaxDistance:        DefaultShadowMaxDistance,
		CascadeSplitLambda: DefaultCascadeSplitLambda,
		Enabled:            true,
	}
}

// Validate clamps out-of-range fields to their valid ranges, returning the
// names of any fields that were adjusted so callers can log a warning.
//
// Returns:
//   - []string: names of clamped fields (nil when nothing was adjusted)
func (s *ShadowSettings) Validate() []string {
	var clamped []string
	if s.Resolution <= 0 {
		s.Resolution = DefaultShadowMapResolution
		clamped = append(clamped, "Resolution")
	}
	if s.Bias < 0 {
		s.Bias = 0
		clamped = append(clamped, "Bias")
	}
	if s.NormalBiasScale < 0 {
		s.NormalBiasScale = 0
		clamped = append(clamped, "NormalBiasScale")
	}
	if s.MaxDistance <= 0 {
		s.MaxDistance = DefaultShadowMaxDistance
		clamped = append(clamped, "MaxDistance")
	}
	if s.CascadeSplitLambda < 0 {
		s.CascadeSplitLambda = 0
		clamped = append(clamped, "CascadeSplitLambda")
	} else if s.CascadeSplitLambda > 1 {
		s.CascadeSplitLambda = 1
		clamped = append(clamped, "CascadeSplitLambda")
	}
	return clamped
}
