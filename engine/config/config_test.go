package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/oloengine/olo/engine/light"
	"github.com/oloengine/olo/engine/renderer/passes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOverridesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
[shadow]
resolution = 2048
max_distance = 500.0

[post_process]
tonemap = "reinhard"
bloom = true

[wind]
direction = [0.0, 0.0, 1.0]
speed = 7.5
`))
	require.NoError(t, err)

	assert.Equal(t, 2048, cfg.Shadow.Resolution)
	assert.Equal(t, float32(500), cfg.Shadow.MaxDistance)
	// Untouched fields keep the engine defaults.
	assert.Equal(t, light.DefaultShadowBias, cfg.Shadow.Bias)

	assert.True(t, cfg.PostProcess.Bloom)
	assert.Equal(t, passes.TonemapReinhard, cfg.PostProcess.Settings().Tonemap)

	assert.Equal(t, [3]float32{0, 0, 1}, cfg.Wind.Direction)
	assert.Equal(t, float32(7.5), cfg.Wind.Speed)
}

func TestParseRejectsMalformedTOML(t *testing.T) {
	_, err := Parse([]byte(`[shadow`))
	require.Error(t, err)
}

func TestValidateClampsOutOfRange(t *testing.T) {
	cfg := Default()
	cfg.Shadow.Resolution = -1
	cfg.Shadow.CascadeSplitLambda = 3.0
	cfg.SSAO.Samples = 1000
	cfg.SSAO.Radius = -2
	cfg.Particles.MaxParticles = 0
	cfg.PostProcess.Tonemap = "vibes"

	clamped := cfg.Validate()

	assert.Contains(t, clamped, "shadow.Resolution")
	assert.Contains(t, clamped, "shadow.CascadeSplitLambda")
	assert.Contains(t, clamped, "ssao.samples")
	assert.Contains(t, clamped, "ssao.radius")
	assert.Contains(t, clamped, "particles.max_particles")
	assert.Contains(t, clamped, "post_process.tonemap")

	assert.Equal(t, light.DefaultShadowMapResolution, cfg.Shadow.Resolution)
	assert.Equal(t, float32(1), cfg.Shadow.CascadeSplitLambda)
	assert.Equal(t, passes.MaxSSAOSamples, cfg.SSAO.Samples)
	assert.Equal(t, "aces", cfg.PostProcess.Tonemap)
}

func TestValidateCleanConfigReportsNothing(t *testing.T) {
	cfg := Default()
	assert.Empty(t, cfg.Validate())
}

func TestLoadReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engine.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[terrain]
load_radius = 4

[snow]
enabled = true
base_extent = 256.0
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Terrain.LoadRadius)
	assert.True(t, cfg.Snow.Enabled)
	assert.Equal(t, float32(256), cfg.Snow.BaseExtent)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)
}

func TestShadowSettingsRoundTrip(t *testing.T) {
	cfg := Default()
	settings := cfg.Shadow.Settings()
	assert.Equal(t, light.DefaultShadowSettings(), settings)
}

func TestSSAOParamsConversion(t *testing.T) {
	c := SSAOConfig{Radius: 0.75, Bias: 0.01, Intensity: 2, Samples: 16}
	p := c.Params()
	assert.Equal(t, float32(0.75), p.Radius)
	assert.Equal(t, uint32(16), p.SampleCount)
	// Projection and screen size belong to the pass, not the config.
	assert.Equal(t, [16]float32{}, p.Projection)
	assert.Equal(t, [2]float32{}, p.ScreenSize)
}
