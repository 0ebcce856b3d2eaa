package engine

import (
	"testing"

	"github.com/oloengine/olo/engine/audio"
	"github.com/oloengine/olo/engine/config"
	"github.com/oloengine/olo/engine/renderer/passes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithConfigAppliesPassParameters(t *testing.T) {
	cfg := config.Default()
	cfg.SSAO.Radius = 1.25
	cfg.SSAO.Samples = 16
	cfg.SSS.Strength = 0.4
	cfg.PostProcess.Bloom = true
	cfg.PostProcess.Tonemap = "reinhard"

	e := NewEngine(WithConfig(cfg)).(*engine)

	assert.True(t, e.renderPassesEnabled)
	assert.Equal(t, float32(1.25), e.ssaoParams.Radius)
	assert.Equal(t, uint32(16), e.ssaoParams.SampleCount)
	assert.Equal(t, float32(0.4), e.sssParams.Strength)
	assert.True(t, e.postSettings.Bloom)
	assert.Equal(t, passes.TonemapReinhard, e.postSettings.Tonemap)

	require.NotNil(t, e.shadowSettings)
	assert.Equal(t, cfg.Shadow.Resolution, e.shadowSettings.Resolution)
}

func TestEngineDefaultsPassParametersWithoutConfig(t *testing.T) {
	e := NewEngine().(*engine)

	assert.False(t, e.renderPassesEnabled)
	assert.Equal(t, float32(0.5), e.ssaoParams.Radius)
	assert.Equal(t, uint32(32), e.ssaoParams.SampleCount)
	assert.Equal(t, float32(0.6), e.sssParams.Strength)
	assert.Nil(t, e.shadowSettings)
}

func TestQuitStopsAttachedAudioThread(t *testing.T) {
	a := audio.NewThread()
	e := NewEngine(WithAudio(a))

	assert.Same(t, a, e.Audio())

	a.Start()
	require.True(t, a.Running())

	e.Quit()
	assert.False(t, a.Running())
}
