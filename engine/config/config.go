// Package config loads engine settings from TOML. Every section maps onto
// one subsystem's native settings or builder options. Out-of-range values
// never propagate: Validate clamps them and the loader logs the adjusted
// fields.
package config

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/oloengine/olo/engine/environment"
	"github.com/oloengine/olo/engine/light"
	"github.com/oloengine/olo/engine/particle"
	"github.com/oloengine/olo/engine/renderer/passes"
	"github.com/oloengine/olo/engine/terrain"
	"github.com/pelletier/go-toml/v2"
)

// EngineConfig is the root of the TOML settings file. Zero values in the file
// keep the defaults from Default(), since Load unmarshals over a default-
// initialized config.
type EngineConfig struct {
	Shadow      ShadowConfig      `toml:"shadow"`
	PostProcess PostProcessConfig `toml:"post_process"`
	SSAO        SSAOConfig        `toml:"ssao"`
	SSS         SSSConfig         `toml:"sss"`
	Terrain     TerrainConfig     `toml:"terrain"`
	Particles   ParticleConfig    `toml:"particles"`
	Wind        WindConfig        `toml:"wind"`
	Snow        SnowConfig        `toml:"snow"`
}

// ShadowConfig mirrors light.ShadowSettings.
type ShadowConfig struct {
	Resolution         int     `toml:"resolution"`
	Bias               float32 `toml:"bias"`
	NormalBiasScale    float32 `toml:"normal_bias_scale"`
	Softness           float32 `toml:"softness"`
	MaxDistance        float32 `toml:"max_distance"`
	CascadeSplitLambda float32 `toml:"cascade_split_lambda"`
	Enabled            bool    `toml:"enabled"`
	DebugCascades      bool    `toml:"debug_cascades"`
}

// PostProcessConfig selects the post-process effect chain. Tonemap is one of
// "none", "reinhard", "aces", or "uncharted2".
type PostProcessConfig struct {
	SSAOModulate        bool   `toml:"ssao_modulate"`
	Bloom               bool   `toml:"bloom"`
	DOF                 bool   `toml:"dof"`
	MotionBlur          bool   `toml:"motion_blur"`
	ChromaticAberration bool   `toml:"chromatic_aberration"`
	ColorGrading        bool   `toml:"color_grading"`
	Tonemap             string `toml:"tonemap"`
	Vignette            bool   `toml:"vignette"`
	FXAA                bool   `toml:"fxaa"`
}

// SSAOConfig holds the CPU-tunable part of the SSAO uniform. The projection
// matrices and screen size are filled in per frame by the pass.
type SSAOConfig struct {
	Radius    float32 `toml:"radius"`
	Bias      float32 `toml:"bias"`
	Intensity float32 `toml:"intensity"`
	Samples   int     `toml:"samples"`
}

// SSSConfig holds the subsurface scattering blur parameters.
type SSSConfig struct {
	Strength float32    `toml:"strength"`
	Width    float32    `toml:"width"`
	Falloff  [3]float32 `toml:"falloff"`
}

// TerrainConfig holds the tile streaming parameters.
type TerrainConfig struct {
	TileWorldSize  float32 `toml:"tile_world_size"`
	TileSamples    int     `toml:"tile_samples"`
	LoadRadius     int     `toml:"load_radius"`
	MaxLoadedTiles int     `toml:"max_loaded_tiles"`
	HeightScale    float32 `toml:"height_scale"`
}

// ParticleConfig holds the particle system pool parameters.
type ParticleConfig struct {
	MaxParticles int     `toml:"max_particles"`
	Drag         float32 `toml:"drag"`
	GravityY     float32 `toml:"gravity_y"`
}

// WindConfig holds the wind volume parameters.
type WindConfig struct {
	Direction           [3]float32 `toml:"direction"`
	Speed               float32    `toml:"speed"`
	GustStrength        float32    `toml:"gust_strength"`
	GustFrequency       float32    `toml:"gust_frequency"`
	TurbulenceIntensity float32    `toml:"turbulence_intensity"`
	TurbulenceScale     float32    `toml:"turbulence_scale"`
	GridWorldSize       float32    `toml:"grid_world_size"`
	Enabled             bool       `toml:"enabled"`
}

// SnowConfig holds the snow clipmap parameters.
type SnowConfig struct {
	BaseExtent       float32 `toml:"base_extent"`
	AccumulationRate float32 `toml:"accumulation_rate"`
	MeltRate         float32 `toml:"melt_rate"`
	RestorationRate  float32 `toml:"restoration_rate"`
	Density          float32 `toml:"density"`
	CaptureHeight    float32 `toml:"capture_height"`
	CaptureRange     float32 `toml:"capture_range"`
	Enabled          bool    `toml:"enabled"`
}

// Default returns the engine's built-in settings, matching each subsystem's
// own defaults.
//
// Returns:
//   - EngineConfig: the default configuration
func Default() EngineConfig {
	shadow := light.DefaultShadowSettings()
	return EngineConfig{
		Shadow: ShadowConfig{
			Resolution:         shadow.Resolution,
			Bias:               shadow.Bias,
			NormalBiasScale:    shadow.NormalBiasScale,
			Softness:           shadow.Softness,
			MaxDistance:        shadow.MaxDistance,
			CascadeSplitLambda: shadow.CascadeSplitLambda,
			Enabled:            shadow.Enabled,
		},
		PostProcess: PostProcessConfig{
			Tonemap: "aces",
			FXAA:    true,
		},
		SSAO: SSAOConfig{
			Radius:    0.5,
			Bias:      0.025,
			Intensity: 1.0,
			Samples:   32,
		},
		SSS: SSSConfig{
			Strength: 1.0,
			Width:    4.0,
			Falloff:  [3]float32{1.0, 0.85, 0.7},
		},
		Terrain: TerrainConfig{
			TileWorldSize:  256,
			TileSamples:    513,
			LoadRadius:     2,
			MaxLoadedTiles: 64,
			HeightScale:    64,
		},
		Particles: ParticleConfig{
			MaxParticles: particle.DefaultMaxParticles,
			Drag:         0.02,
			GravityY:     -9.81,
		},
		Wind: WindConfig{
			Direction:           [3]float32{1, 0, 0},
			Speed:               4.0,
			GustStrength:        0.3,
			GustFrequency:       0.5,
			TurbulenceIntensity: 0.25,
			TurbulenceScale:     0.1,
			GridWorldSize:       512,
			Enabled:             true,
		},
		Snow: SnowConfig{
			BaseExtent:       128,
			AccumulationRate: 0.05,
			MeltRate:         0.01,
			RestorationRate:  0.02,
			Density:          1.0,
			CaptureHeight:    100,
			CaptureRange:     200,
		},
	}
}

// Load reads a TOML settings file over the defaults, clamps out-of-range
// values, and logs any fields that were adjusted.
//
// Parameters:
//   - path: the TOML file path
//
// Returns:
//   - EngineConfig: the validated configuration
//   - error: an error if the file cannot be read or parsed
func Load(path string) (EngineConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return EngineConfig{}, fmt.Errorf("failed to read config %q: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals TOML bytes over the defaults and validates the result.
//
// Parameters:
//   - data: raw TOML
//
// Returns:
//   - EngineConfig: the validated configuration
//   - error: an error if the TOML cannot be parsed
func Parse(data []byte) (EngineConfig, error) {
	cfg := Default()
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return EngineConfig{}, fmt.Errorf("failed to parse config: %w", err)
	}
	if clamped := cfg.Validate(); len(clamped) > 0 {
		log.Printf("[Config] clamped out-of-range settings: %s", strings.Join(clamped, ", "))
	}
	return cfg, nil
}

// Validate clamps every out-of-range field to its valid range, returning the
// qualified names of the adjusted fields.
//
// Returns:
//   - []string: "section.field" names of clamped entries (nil when clean)
func (c *EngineConfig) Validate() []string {
	var clamped []string

	shadow := c.Shadow.Settings()
	for _, field := range shadow.Validate() {
		clamped = append(clamped, "shadow."+field)
	}
	c.Shadow = ShadowConfig{
		Resolution:         shadow.Resolution,
		Bias:               shadow.Bias,
		NormalBiasScale:    shadow.NormalBiasScale,
		Softness:           shadow.Softness,
		MaxDistance:        shadow.MaxDistance,
		CascadeSplitLambda: shadow.CascadeSplitLambda,
		Enabled:            shadow.Enabled,
		DebugCascades:      shadow.DebugCascades,
	}

	if _, ok := tonemapOperators[strings.ToLower(c.PostProcess.Tonemap)]; !ok {
		c.PostProcess.Tonemap = "aces"
		clamped = append(clamped, "post_process.tonemap")
	}

	if c.SSAO.Radius <= 0 {
		c.SSAO.Radius = 0.5
		clamped = append(clamped, "ssao.radius")
	}
	if c.SSAO.Bias < 0 {
		c.SSAO.Bias = 0
		clamped = append(clamped, "ssao.bias")
	}
	if c.SSAO.Intensity < 0 {
		c.SSAO.Intensity = 0
		clamped = append(clamped, "ssao.intensity")
	}
	if c.SSAO.Samples < passes.MinSSAOSamples {
		c.SSAO.Samples = passes.MinSSAOSamples
		clamped = append(clamped, "ssao.samples")
	} else if c.SSAO.Samples > passes.MaxSSAOSamples {
		c.SSAO.Samples = passes.MaxSSAOSamples
		clamped = append(clamped, "ssao.samples")
	}

	if c.SSS.Strength < 0 {
		c.SSS.Strength = 0
		clamped = append(clamped, "sss.strength")
	}
	if c.SSS.Width <= 0 {
		c.SSS.Width = 1
		clamped = append(clamped, "sss.width")
	}

	if c.Terrain.TileWorldSize <= 0 {
		c.Terrain.TileWorldSize = 256
		clamped = append(clamped, "terrain.tile_world_size")
	}
	if c.Terrain.TileSamples < 2 {
		c.Terrain.TileSamples = 513
		clamped = append(clamped, "terrain.tile_samples")
	}
	if c.Terrain.LoadRadius < 0 {
		c.Terrain.LoadRadius = 0
		clamped = append(clamped, "terrain.load_radius")
	}
	if c.Terrain.MaxLoadedTiles < 1 {
		c.Terrain.MaxLoadedTiles = 1
		clamped = append(clamped, "terrain.max_loaded_tiles")
	}
	if c.Terrain.HeightScale <= 0 {
		c.Terrain.HeightScale = 64
		clamped = append(clamped, "terrain.height_scale")
	}

	if c.Particles.MaxParticles < 1 {
		c.Particles.MaxParticles = particle.DefaultMaxParticles
		clamped = append(clamped, "particles.max_particles")
	}
	if c.Particles.Drag < 0 {
		c.Particles.Drag = 0
		clamped = append(clamped, "particles.drag")
	}

	if c.Wind.Speed < 0 {
		c.Wind.Speed = 0
		clamped = append(clamped, "wind.speed")
	}
	if c.Wind.GridWorldSize <= 0 {
		c.Wind.GridWorldSize = 512
		clamped = append(clamped, "wind.grid_world_size")
	}

	if c.Snow.BaseExtent <= 0 {
		c.Snow.BaseExtent = 128
		clamped = append(clamped, "snow.base_extent")
	}
	if c.Snow.Density <= 0 {
		c.Snow.Density = 1
		clamped = append(clamped, "snow.density")
	}

	return clamped
}

// tonemapOperators maps the TOML enum strings onto the pass operators.
var tonemapOperators = map[string]passes.TonemapOperator{
	"none":       passes.TonemapNone,
	"reinhard":   passes.TonemapReinhard,
	"aces":       passes.TonemapACES,
	"uncharted2": passes.TonemapUncharted2,
}

// Settings converts the shadow section to the light package's native type.
//
// Returns:
//   - light.ShadowSettings: the shadow configuration
func (c ShadowConfig) Settings() light.ShadowSettings {
	return light.ShadowSettings{
		Resolution:         c.Resolution,
		Bias:               c.Bias,
		NormalBiasScale:    c.NormalBiasScale,
		Softness:           c.Softness,
		MaxDistance:        c.MaxDistance,
		CascadeSplitLambda: c.CascadeSplitLambda,
		Enabled:            c.Enabled,
		DebugCascades:      c.DebugCascades,
	}
}

// Settings converts the post-process section to the pass package's native
// type. An unrecognized tonemap string falls back to ACES; Validate reports
// that case before this is called.
//
// Returns:
//   - passes.PostProcessSettings: the effect chain configuration
func (c PostProcessConfig) Settings() passes.PostProcessSettings {
	op, ok := tonemapOperators[strings.ToLower(c.Tonemap)]
	if !ok {
		op = passes.TonemapACES
	}
	return passes.PostProcessSettings{
		SSAOModulate:        c.SSAOModulate,
		Bloom:               c.Bloom,
		DOF:                 c.DOF,
		MotionBlur:          c.MotionBlur,
		ChromaticAberration: c.ChromaticAberration,
		ColorGrading:        c.ColorGrading,
		Tonemap:             op,
		Vignette:            c.Vignette,
		FXAA:                c.FXAA,
	}
}

// Params converts the SSAO section to the pass uniform. The projection
// matrices and screen-size fields stay zero; the pass fills them per frame.
//
// Returns:
//   - passes.GPUSSAOParams: the partially populated SSAO uniform
func (c SSAOConfig) Params() passes.GPUSSAOParams {
	return passes.GPUSSAOParams{
		Radius:      c.Radius,
		Bias:        c.Bias,
		Intensity:   c.Intensity,
		SampleCount: uint32(c.Samples),
	}
}

// Params converts the SSS section to the pass uniform. ScreenSize stays zero;
// the pass fills it per frame.
//
// Returns:
//   - passes.GPUSSSParams: the partially populated SSS uniform
func (c SSSConfig) Params() passes.GPUSSSParams {
	return passes.GPUSSSParams{
		Strength: c.Strength,
		Width:    c.Width,
		Falloff:  c.Falloff,
	}
}

// Options converts the terrain section to streamer builder options.
//
// Returns:
//   - []terrain.StreamerOption: options for terrain.NewStreamer
func (c TerrainConfig) Options() []terrain.StreamerOption {
	return []terrain.StreamerOption{
		terrain.WithTileWorldSize(c.TileWorldSize),
		terrain.WithTileSamples(c.TileSamples),
		terrain.WithLoadRadius(c.LoadRadius),
		terrain.WithMaxLoadedTiles(c.MaxLoadedTiles),
		terrain.WithStreamerHeightScale(c.HeightScale),
	}
}

// Options converts the particle section to system builder options.
//
// Returns:
//   - []particle.SystemBuilderOption: options for particle.NewSystem
func (c ParticleConfig) Options() []particle.SystemBuilderOption {
	return []particle.SystemBuilderOption{
		particle.WithMaxParticles(c.MaxParticles),
		particle.WithDrag(c.Drag),
		particle.WithGravity(c.GravityY),
	}
}

// Options converts the wind section to wind builder options.
//
// Returns:
//   - []environment.WindBuilderOption: options for environment.NewWind
func (c WindConfig) Options() []environment.WindBuilderOption {
	return []environment.WindBuilderOption{
		environment.WithWindDirection(c.Direction[0], c.Direction[1], c.Direction[2]),
		environment.WithWindSpeed(c.Speed),
		environment.WithGust(c.GustStrength, c.GustFrequency),
		environment.WithTurbulence(c.TurbulenceIntensity, c.TurbulenceScale),
		environment.WithWindGridWorldSize(c.GridWorldSize),
		environment.WithWindEnabled(c.Enabled),
	}
}

// Options converts the snow section to snow builder options.
//
// Returns:
//   - []environment.SnowBuilderOption: options for environment.NewSnow
func (c SnowConfig) Options() []environment.SnowBuilderOption {
	return []environment.SnowBuilderOption{
		environment.WithSnowBaseExtent(c.BaseExtent),
		environment.WithSnowRates(c.AccumulationRate, c.MeltRate, c.RestorationRate),
		environment.WithSnowDensity(c.Density),
		environment.WithSnowCapture(c.CaptureHeight, c.CaptureRange),
		environment.WithSnowEnabled(c.Enabled),
	}
}
