package engine

import (
	"time"

	"github.com/oloengine/olo/engine/audio"
	"github.com/oloengine/olo/engine/config"
	"github.com/oloengine/olo/engine/renderer/passes"
	"github.com/oloengine/olo/engine/scene"
	"github.com/oloengine/olo/engine/window"
)

// EngineBuilderOption is a functional option for configuring an Engine.
// Use the With* functions to create options that are applied directly to the engine instance.
type EngineBuilderOption func(*engine)

// WithProfiling enables or disables performance profiling output.
//
// Parameters:
//   - enabled: if true, enables performance profiling
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithProfiling(enabled bool) EngineBuilderOption {
	return func(e *engine) {
		e.profilingEnabled = enabled
	}
}

// WithTickRate sets the engine tick rate in frames per second.
// The tick callback will be called at this rate for game logic updates.
// Values <= 0 will be treated as the default (60Hz).
//
// Parameters:
//   - fps: target ticks per second (default 60)
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithTickRate(fps float64) EngineBuilderOption {
	return func(e *engine) {
		if fps <= 0 {
			fps = 60.0
		}
		e.engineTickRate = time.Second / time.Duration(fps)
	}
}

// WithStatsServer streams profiler and command-bucket statistics over a
// websocket at ws://<addr>/stats while the engine runs. Intended for local
// overlay tooling; bind to loopback.
//
// Parameters:
//   - addr: the listen address, e.g. "127.0.0.1:8077" (empty disables)
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithStatsServer(addr string) EngineBuilderOption {
	return func(e *engine) {
		e.statsAddr = addr
	}
}

// WithWindow sets a custom configured window for the engine to use rather than allowing the engine
// to create and manage one internally.
//
// Parameters:
//   - w: a pre-configured Window instance
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithWindow(w window.Window) EngineBuilderOption {
	return func(e *engine) {
		e.window = w
	}
}

// WithScene registers a scene at the given z-index key during engine construction.
// Scenes are rendered in ascending key order during the render loop.
//
// Parameters:
//   - key: the z-index determining render order (lower renders first)
//   - s: the Scene to register
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithScene(key int, s scene.Scene) EngineBuilderOption {
	return func(e *engine) {
		if e.shadowSettings != nil {
			s.SetShadowSettings(*e.shadowSettings)
		}
		e.scenes[key] = s
	}
}

// WithRenderPasses routes scene rendering through the offscreen pass chain:
// geometry draws into an HDR G-buffer, SSAO, subsurface scattering, and the
// enabled post-process effects run over it, and the surface frame blits the
// result. Scene geometry pipelines must be registered for the G-buffer layout
// via Renderer.RegisterTargetPipeline with passes.ScenePassSpec; if the chain
// cannot initialize, scenes fall back to drawing directly to the surface.
//
// Parameters:
//   - settings: the post-process effect settings
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithRenderPasses(settings passes.PostProcessSettings) EngineBuilderOption {
	return func(e *engine) {
		e.renderPassesEnabled = true
		e.postSettings = settings
	}
}

// WithConfig applies a loaded TOML configuration to the engine: the SSAO and
// SSS pass uniforms, the post-process effect chain (which also enables the
// offscreen pass chain), and the shadow settings, which are pushed onto every
// scene registered before or after this option runs.
//
// Subsystem sections that are built per scene (terrain, particles, wind,
// snow) are consumed through their Options() converters at scene
// construction; this option covers the engine-owned sections.
//
// Parameters:
//   - cfg: the validated engine configuration
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithConfig(cfg config.EngineConfig) EngineBuilderOption {
	return func(e *engine) {
		e.ssaoParams = cfg.SSAO.Params()
		e.sssParams = cfg.SSS.Params()
		e.renderPassesEnabled = true
		e.postSettings = cfg.PostProcess.Settings()

		shadow := cfg.Shadow.Settings()
		e.shadowSettings = &shadow
		for _, s := range e.scenes {
			s.SetShadowSettings(shadow)
		}
	}
}

// WithAudio attaches a dedicated audio thread to the engine. The thread is
// started when Run begins and stopped (draining pending tasks) when the
// engine quits.
//
// Parameters:
//   - t: the audio thread to manage
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithAudio(t *audio.Thread) EngineBuilderOption {
	return func(e *engine) {
		e.audioThread = t
	}
}

// WithRenderFrameLimit sets an optional render frame rate cap in frames per second.
// Pass 0 to uncap the render loop (default).
//
// Parameters:
//   - fps: maximum render frames per second (0 = uncapped)
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithRenderFrameLimit(fps float64) EngineBuilderOption {
	return func(e *engine) {
		if fps <= 0 {
			e.renderFrameLimit = 0
			return
		}
		e.renderFrameLimit = time.Second / time.Duration(fps)
	}
}
