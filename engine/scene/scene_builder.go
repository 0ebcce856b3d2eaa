package scene

import (
	"github.com/oloengine/olo/engine/game_object"
	"github.com/oloengine/olo/engine/light"
)

// SceneBuilderOption is a functional option for configuring a Scene.
// Use the With* functions to create options.
type SceneBuilderOption func(s *scene)

// WithActive sets whether the scene is active for rendering.
//
// Parameters:
//   - active: whether the scene is active
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithActive(active bool) SceneBuilderOption {
	return func(s *scene) {
		s.active = active
	}
}

// WithObjects adds initial objects to the scene.
// Objects without IDs will be assigned new IDs.
// Non-ephemeral objects are persisted in the registry; their animators are auto-registered.
//
// Parameters:
//   - objects: the objects to add
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithObjects(objects ...game_object.GameObject) SceneBuilderOption {
	return func(s *scene) {
		for _, obj := range objects {
			if obj.ID() == 0 {
				obj.SetID(s.nextID)
				s.nextID++
			}
			if !obj.Ephemeral() {
				s.registry[obj.ID()] = obj
			}
		}
	}
}

// WithComputeWorkers sets the number of worker goroutines used during the parallel
// CPU prep phase of PrepareCompute. Defaults to runtime.NumCPU()-1.
// Higher values may improve throughput with many animator groups or skeletal
// animators; lower values reduce scheduling overhead for simple scenes.
//
// Parameters:
//   - n: the number of compute workers (minimum 1)
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithComputeWorkers(n int) SceneBuilderOption {
	return func(s *scene) {
		if n < 1 {
			n = 1
		}
		s.computeWorkers = n
	}
}

// WithCullingDisabled disables GPU frustum culling for the scene. When set to true,
// the scene will not distribute frustum planes to animators, causing them to remain
// in non-culled mode and use regular draw calls instead of indirect draw calls.
// By default culling is enabled (disabled = false).
//
// Parameters:
//   - disabled: true to disable frustum culling, false to enable it (default)
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithCullingDisabled(disabled bool) SceneBuilderOption {
	return func(s *scene) {
		s.cullingDisabled = disabled
	}
}

// WithShadowSettings sets the scene's shadow configuration. Out-of-range fields
// are clamped by NewScene with a logged warning rather than propagated.
// Resolution must be set before InitShadowMap / InitLighting is called, as the
// shadow depth arrays are allocated once. Default is light.DefaultShadowSettings().
//
// Parameters:
//   - settings: the shadow configuration (resolution, bias, cascade split lambda, ...)
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithShadowSettings(settings light.ShadowSettings) SceneBuilderOption {
	return func(s *scene) {
		s.shadowSettings = settings
	}
}

// WithAmbientColor sets the scene's initial ambient light color.
//
// Parameters:
//   - color: the ambient RGB color
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithAmbientColor(color [3]float32) SceneBuilderOption {
	return func(s *scene) {
		s.ambientColor = color
	}
}
