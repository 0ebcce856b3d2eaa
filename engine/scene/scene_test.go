package scene

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oloengine/olo/engine/camera"
	"github.com/oloengine/olo/engine/light"
	"github.com/oloengine/olo/engine/renderer"
	"github.com/oloengine/olo/engine/renderer/bind_group_provider"
	"github.com/oloengine/olo/engine/renderer/shader"
)

// Stubs embed the interfaces and override only what NewScene touches. The
// camera stub returns a nil bind group provider so no GPU init happens.
type stubCamera struct{ camera.Camera }

func (c *stubCamera) BindGroupProvider() bind_group_provider.BindGroupProvider { return nil }

type stubRenderer struct{ renderer.Renderer }

type stubShader struct{ shader.Shader }

func (s *stubShader) BindGroupVarNames() map[int]map[int]string {
	return map[int]map[int]string{0: {0: "camera"}}
}

func newTestScene(t *testing.T, opts ...SceneBuilderOption) Scene {
	t.Helper()
	return NewScene("test", &stubCamera{}, &stubRenderer{}, &stubShader{}, opts...)
}

func TestNewSceneDefaults(t *testing.T) {
	s := newTestScene(t)

	assert.Equal(t, "test", s.Name())
	assert.False(t, s.Active())
	assert.False(t, s.CullingDisabled())
	assert.Equal(t, light.DefaultShadowSettings(), s.ShadowSettings())
	assert.Equal(t, [3]float32{}, s.AmbientColor())
	assert.Zero(t, s.Count())
	assert.Zero(t, s.DrawStats().DrawCalls)
}

func TestNewSceneRequiresDependencies(t *testing.T) {
	assert.Panics(t, func() {
		NewScene("bad", nil, &stubRenderer{}, &stubShader{})
	})
	assert.Panics(t, func() {
		NewScene("bad", &stubCamera{}, nil, &stubShader{})
	})
	assert.Panics(t, func() {
		NewScene("bad", &stubCamera{}, &stubRenderer{}, nil)
	})
}

func TestSceneBuilderOptions(t *testing.T) {
	settings := light.DefaultShadowSettings()
	settings.MaxDistance = 500

	s := newTestScene(t,
		WithActive(true),
		WithCullingDisabled(true),
		WithAmbientColor([3]float32{0.1, 0.2, 0.3}),
		WithShadowSettings(settings),
	)

	assert.True(t, s.Active())
	assert.True(t, s.CullingDisabled())
	assert.Equal(t, [3]float32{0.1, 0.2, 0.3}, s.AmbientColor())
	assert.Equal(t, float32(500), s.ShadowSettings().MaxDistance)
}

func TestSetShadowSettingsClampsOutOfRange(t *testing.T) {
	s := newTestScene(t)

	bad := light.DefaultShadowSettings()
	bad.Resolution = -1
	bad.CascadeSplitLambda = 2.0
	s.SetShadowSettings(bad)

	got := s.ShadowSettings()
	assert.Equal(t, 1024, got.Resolution)
	assert.Equal(t, float32(1.0), got.CascadeSplitLambda)
}

func TestLightRegistry(t *testing.T) {
	s := newTestScene(t)

	sun := light.NewLight(light.LightTypeDirectional, light.WithDirection(0, -1, 0))
	lamp := light.NewLight(light.LightTypePoint, light.WithPosition(1, 2, 3))

	s.AddLight(sun)
	s.AddLight(lamp)
	require.Len(t, s.Lights(), 2)

	s.RemoveLight(sun)
	got := s.Lights()
	require.Len(t, got, 1)
	assert.Equal(t, light.LightTypePoint, got[0].Type())

	// Lights returns a copy; mutating it must not affect the scene.
	got[0] = sun
	assert.Equal(t, light.LightTypePoint, s.Lights()[0].Type())

	// Removing a light that was never added is a no-op.
	s.RemoveLight(sun)
	assert.Len(t, s.Lights(), 1)
}

func TestSceneStateSetters(t *testing.T) {
	s := newTestScene(t)

	s.SetName("renamed")
	s.SetActive(true)
	s.SetCullingDisabled(true)
	s.SetAmbientColor([3]float32{0.5, 0.5, 0.5})

	assert.Equal(t, "renamed", s.Name())
	assert.True(t, s.Active())
	assert.True(t, s.CullingDisabled())
	assert.Equal(t, [3]float32{0.5, 0.5, 0.5}, s.AmbientColor())
}
