package engine

import (
	"log"
	"sort"
	"sync"
	"time"

	"github.com/oloengine/olo/engine/audio"
	"github.com/oloengine/olo/engine/light"
	"github.com/oloengine/olo/engine/profiler"
	"github.com/oloengine/olo/engine/renderer"
	"github.com/oloengine/olo/engine/renderer/passes"
	"github.com/oloengine/olo/engine/scene"
	"github.com/oloengine/olo/engine/window"
)

// engine implements the Engine interface.
// Coordinates engine, render, and window threads.
type engine struct {
	tickRateChannel chan time.Duration // Channel for dynamic tick rate updates

	running bool
	wg      sync.WaitGroup

	quitChannel chan struct{}
	quitOnce    sync.Once // Ensures quitChannel is only closed once

	window window.Window

	profiler         *profiler.Profiler
	profilingEnabled bool
	statsAddr        string
	statsServer      profiler.StatsServer

	engineTickRate time.Duration
	tickCallback   func(deltaTime float32)
	renderCallback func(deltaTime float32)

	scenes map[int]scene.Scene

	// shadowSettings, when set, is applied to every scene as it is
	// registered, overriding the scene's own defaults.
	shadowSettings *light.ShadowSettings

	audioThread *audio.Thread

	renderFrameLimit time.Duration // minimum frame duration; 0 = uncapped

	// Offscreen pass chain state, built lazily on the first rendered frame
	// when render passes are enabled.
	renderPassesEnabled bool
	postSettings        passes.PostProcessSettings
	ssaoParams          passes.GPUSSAOParams
	sssParams           passes.GPUSSSParams
	passCtx             *passes.PassContext
	passChain           *passes.Chain
	scenePass           passes.ScenePass
	ssaoPass            passes.SSAOPass
	sssPass             passes.SSSPass
	postPass            passes.PostProcessPass
	finalPass           passes.RenderPass
	passInitFailed      bool
}

// Engine is the main entry point for the engine.
// It orchestrates the engine loop, render loop, and window management.
type Engine interface {
	// Init initializes the window with the provided options.
	//
	// Parameters:
	//   - options: functional options for window configuration
	//
	// Returns:
	//   - error: error if initialization fails
	// Init(options ...window.WindowBuilderOption) error

	// Window returns the underlying window.
	//
	// Returns:
	//   - window.Window: the window instance
	Window() window.Window

	// EnableProfiler enables performance profiling output to the log.
	EnableProfiler()

	// DisableProfiler disables performance profiling output.
	DisableProfiler()

	// SetTickRate sets the engine tick rate in frames per second.
	// The tick callback will be called at this rate for game logic updates.
	//
	// Parameters:
	//   - fps: target frames per second (defaults to 60 if <= 0)
	SetTickRate(fps float64)

	// SetTickCallback registers the function called each engine tick.
	// Use this for game logic, physics, input processing, and animation updates.
	//
	// Parameters:
	//   - callback: function to call at the configured tick rate, receiving the delta time in seconds
	SetTickCallback(callback func(deltaTime float32))

	// SetRenderCallback registers the function called each render frame.
	// Use this for GPU buffer updates and scene rendering.
	//
	// Parameters:
	//   - callback: function to call each render frame, receiving the delta time in seconds
	SetRenderCallback(callback func(deltaTime float32))

	// SetRenderFrameLimit sets an optional render frame rate cap in frames per second.
	// Pass 0 to uncap the render loop (default).
	//
	// Parameters:
	//   - fps: maximum render frames per second (0 = uncapped)
	SetRenderFrameLimit(fps float64)

	// AddScene registers a scene at the given z-index key.
	// Scenes are rendered in ascending key order during the render loop.
	//
	// Parameters:
	//   - key: the z-index determining render order (lower renders first)
	//   - s: the Scene to register
	AddScene(key int, s scene.Scene)

	// RemoveScene removes the scene at the given z-index key.
	//
	// Parameters:
	//   - key: the z-index of the scene to remove
	RemoveScene(key int)

	// Scene retrieves the scene registered at the given z-index key.
	// Returns nil if no scene exists at that key.
	//
	// Parameters:
	//   - key: the z-index of the scene to retrieve
	//
	// Returns:
	//   - scene.Scene: the scene at the key, or nil if not found
	Scene(key int) scene.Scene

	// Scenes returns a copy of all registered scenes keyed by z-index.
	//
	// Returns:
	//   - map[int]scene.Scene: a copy of the scenes map
	Scenes() map[int]scene.Scene

	// Audio returns the engine's audio thread, or nil when none was
	// configured via WithAudio.
	//
	// Returns:
	//   - *audio.Thread: the audio thread, or nil
	Audio() *audio.Thread

	// Run starts the main engine loop (blocks until window closes).
	Run()

	// Quit signals all engine goroutines to stop and shuts down the engine.
	// This is an alternative to submitting a MessageShutdown message.
	// Safe to call multiple times; subsequent calls are no-ops.
	Quit()
}

// NewEngine creates a new Engine instance with the provided options.
// Initializes message channels and profiler with sensible defaults.
// Options are applied directly to the engine struct via the option-builder pattern.
//
// Parameters:
//   - options: functional options for engine configuration (profiling, tick rate, etc.)
//
// Returns:
//   - Engine: the newly created engine
func NewEngine(options ...EngineBuilderOption) Engine {
	e := &engine{
		tickRateChannel:  make(chan time.Duration, 1),
		quitChannel:      make(chan struct{}),
		scenes:           make(map[int]scene.Scene),
		running:          false,
		wg:               sync.WaitGroup{},
		profiler:         profiler.NewProfiler(),
		profilingEnabled: false,
		engineTickRate:   time.Second / 60,
		ssaoParams: passes.GPUSSAOParams{
			Radius:      0.5,
			Bias:        0.025,
			Intensity:   1.0,
			SampleCount: 32,
		},
		sssParams: passes.GPUSSSParams{
			Strength: 0.6,
			Width:    3.0,
			Falloff:  [3]float32{1.0, 0.6, 0.45},
		},
	}

	for _, opt := range options {
		opt(e)
	}

	if e.window != nil {
		e.window.SetResizeCallback(func(width, height int) {
			for _, s := range e.scenes {
				if r := s.Renderer(); r != nil {
					r.Resize(width, height)
				}
				if c := s.Camera(); c != nil {
					c.SetAspect(float32(width) / float32(height))
				}
			}
			if e.passChain != nil {
				e.passCtx.Width, e.passCtx.Height = width, height
				e.passChain.Resize(width, height)
			}
		})
	}

	return e
}

func (e *engine) Window() window.Window {
	return e.window
}

func (e *engine) Audio() *audio.Thread {
	return e.audioThread
}

func (e *engine) Run() {
	if e.audioThread != nil {
		e.audioThread.Start()
	}
	if e.statsAddr != "" {
		srv, err := profiler.NewStatsServer(e.statsAddr, e.statsSnapshot)
		if err != nil {
			log.Printf("[Profiler] stats server disabled: %v", err)
		} else {
			e.statsServer = srv
		}
	}
	e.handle()
	e.window.ProcessMessages()
}

// statsSnapshot assembles the per-scene bucket statistics and profiler frame
// rate for the websocket stats stream.
func (e *engine) statsSnapshot() profiler.Snapshot {
	snap := profiler.Snapshot{FPS: e.profiler.FPS()}
	keys := make([]int, 0, len(e.scenes))
	for k := range e.scenes {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	for _, k := range keys {
		s := e.scenes[k]
		snap.Scenes = append(snap.Scenes, profiler.NewSceneStats(s.Name(), s.DrawStats()))
	}
	for _, k := range keys {
		if r := e.scenes[k].Renderer(); r != nil {
			snap.LiveHandles = r.Resources().LiveCount()
			break
		}
	}
	return snap
}

// Quit signals all engine goroutines to stop and shuts down the engine.
// Safe to call multiple times; subsequent calls are no-ops due to sync.Once.
func (e *engine) Quit() {
	e.signalQuit()
}

// signalQuit closes the quit channel to signal all goroutines to exit.
// Uses sync.Once to ensure the channel is only closed once.
func (e *engine) signalQuit() {
	e.quitOnce.Do(func() {
		e.running = false
		close(e.quitChannel)
		if e.statsServer != nil {
			e.statsServer.Close()
		}
		if e.audioThread != nil {
			e.audioThread.Stop()
		}
	})
}

// handle launches the engine, render, and quit goroutines.
// Each goroutine is tracked by the engine's WaitGroup.
func (e *engine) handle() {
	e.wg.Add(3)
	go e.handleEngine()
	go e.handleRender()
	go e.handleQuit()
}

// handleEngine runs the fixed-rate engine tick loop in its own goroutine.
// Fires the tick callback at the configured tick rate and listens for dynamic rate changes
// via tickRateChannel. Exits when the quit channel is closed.
func (e *engine) handleEngine() {
	defer e.wg.Done()

	ticker := time.NewTicker(e.engineTickRate)
	defer ticker.Stop()

	lastTick := time.Now()

	for {
		select {
		case <-e.quitChannel:
			return
		case <-ticker.C:
			now := time.Now()
			dt := float32(now.Sub(lastTick).Seconds())
			lastTick = now

			if e.tickCallback != nil {
				e.tickCallback(dt)
			}
		case newRate := <-e.tickRateChannel:
			ticker.Reset(newRate)
			e.engineTickRate = newRate
		}
	}
}

// handleRender runs the uncapped (or frame-limited) render loop in its own goroutine.
// Iterates active scenes in ascending z-index order, executing the full frame lifecycle:
// compute dispatch, shadow passes, and draw calls.
// Recovers from panics to avoid crashing the process and signals quit on recovery.
func (e *engine) handleRender() {
	defer e.wg.Done()
	// Recover from panics inside the render goroutine to avoid crashing the whole process.
	defer func() {
		if r := recover(); r != nil {
			log.Printf("render goroutine recovered from panic: %v", r)
			e.signalQuit()
		}
	}()

	lastRender := time.Now()

	for {
		select {
		case <-e.quitChannel:
			return
		default:
			now := time.Now()
			dt := float32(now.Sub(lastRender).Seconds())
			lastRender = now

			// Draw all active scenes in ascending z-index order.
			// The engine owns the frame lifecycle: BeginFrame once, Render each scene, EndFrame + Present once.
			// All scenes sharing the same renderer are rendered within a single render pass, enabling layered compositing.
			keys := make([]int, 0, len(e.scenes))
			for k := range e.scenes {
				keys = append(keys, k)
			}
			sort.Ints(keys)

			// Collect active scenes and find the renderer for the frame
			var activeScenes []scene.Scene
			for _, k := range keys {
				s := e.scenes[k]
				if s.Active() {
					activeScenes = append(activeScenes, s)
				}
			}

			if len(activeScenes) > 0 {
				// Use the first active scene's renderer to manage the frame
				frameRenderer := activeScenes[0].Renderer()
				if frameRenderer != nil {
					// Phase 1 — Compute: batch all compute dispatches into a single GPU submission
					if err := frameRenderer.BeginComputeFrame(); err == nil {
						for _, s := range activeScenes {
							s.PrepareCompute(dt)
						}
						frameRenderer.EndComputeFrame()
					}

					// Phase 1b — Shadows: render the depth-only cascade, spot, and point passes.
					for _, s := range activeScenes {
						s.PrepareShadows()
					}

					// Phase 1c — Offscreen passes: scene geometry into the G-buffer,
					// then SSAO, SSS, and the post-process chain, in their own
					// submission so the surface frame only runs the final blit.
					usedChain := e.executePassChain(activeScenes)

					// Phase 2 — Render: batch all draw calls into a single render pass
					if err := frameRenderer.BeginFrame(); err == nil {
						blitted := false
						if usedChain {
							if err := e.finalPass.Execute(e.passCtx); err != nil {
								log.Printf("[Passes] %s disabled: execute failed: %v", e.finalPass.Name(), err)
								e.finalPass.SetEnabled(false)
							} else {
								blitted = true
							}
						}
						if !blitted {
							// Direct path: scenes draw straight to the surface.
							for _, s := range activeScenes {
								_ = s.DrawCalls()
							}
						}
						frameRenderer.EndFrame()
						frameRenderer.Present()
					}
				}
			}

			if e.renderCallback != nil {
				e.renderCallback(dt)
			}

			if e.profilingEnabled && e.profiler != nil {
				e.profiler.Tick()
			}

			// Frame rate limiting
			if e.renderFrameLimit > 0 {
				elapsed := time.Since(lastRender)
				if remaining := e.renderFrameLimit - elapsed; remaining > 0 {
					time.Sleep(remaining)
				}
			}
		}
	}
}

// ensurePassChain builds the pass chain on the first rendered frame: pass
// pipelines are registered, the chain passes allocate their targets, and the
// final blit initializes. A failure disables the chain for the session and
// the engine keeps drawing scenes directly to the surface.
func (e *engine) ensurePassChain(r renderer.Renderer) {
	if !e.renderPassesEnabled || e.passInitFailed || e.passChain != nil || e.window == nil {
		return
	}
	width, height := e.window.Width(), e.window.Height()
	if width <= 0 || height <= 0 {
		return
	}

	if err := passes.RegisterPipelines(r); err != nil {
		log.Printf("[Passes] chain disabled: %v", err)
		e.passInitFailed = true
		return
	}

	e.passCtx = &passes.PassContext{
		Renderer:  r,
		Allocator: r.Targets(),
		Resources: r.Resources(),
		Width:     width,
		Height:    height,
	}
	e.scenePass = passes.NewScenePass()
	e.ssaoPass = passes.NewSSAOPass(e.ssaoParams, 1)
	e.sssPass = passes.NewSSSPass(e.sssParams)
	e.postPass = passes.NewPostProcessPass(e.postSettings)
	e.finalPass = passes.NewFinalPass(func() renderer.Framebuffer {
		return e.postPass.Target()
	})

	e.passChain = passes.NewChain(e.scenePass, e.ssaoPass, e.sssPass, e.postPass)
	e.passChain.Init(e.passCtx)
	if err := e.finalPass.Init(e.passCtx); err != nil {
		log.Printf("[Passes] %s disabled: init failed: %v", e.finalPass.Name(), err)
		e.finalPass.SetEnabled(false)
	}
}

// executePassChain runs the offscreen portion of the frame and reports
// whether the surface frame should blit the chain's output instead of
// drawing scenes directly.
func (e *engine) executePassChain(activeScenes []scene.Scene) bool {
	frameRenderer := activeScenes[0].Renderer()
	e.ensurePassChain(frameRenderer)
	if e.passChain == nil || e.passCtx.Renderer != frameRenderer {
		return false
	}
	if !e.scenePass.Enabled() || !e.finalPass.Enabled() {
		return false
	}

	e.scenePass.SetDrawFunc(func() error {
		for _, s := range activeScenes {
			if err := s.DrawCalls(); err != nil {
				return err
			}
		}
		return nil
	})
	e.ssaoPass.SetScene(e.scenePass.Target())
	e.sssPass.SetScene(e.scenePass.Target())
	e.postPass.SetInput(e.scenePass.Target())
	e.postPass.SetAOInput(e.ssaoPass.Target())
	if cam := activeScenes[0].Camera(); cam != nil {
		params := e.ssaoPass.Params()
		params.Projection = cam.ProjectionMatrix()
		params.InvProjection = cam.InverseProjectionMatrix()
		e.ssaoPass.SetParams(params)
	}

	if err := frameRenderer.BeginPassFrame(); err != nil {
		return false
	}
	e.passChain.Execute(e.passCtx)
	frameRenderer.EndPassFrame()
	return e.postPass.Target() != nil
}

// handleQuit blocks until the quit channel is closed, then decrements the WaitGroup.
func (e *engine) handleQuit() {
	defer e.wg.Done()
	<-e.quitChannel
}

// EnableProfiler enables performance profiling output to the log.
func (e *engine) EnableProfiler() {
	e.profilingEnabled = true
}

// DisableProfiler disables performance profiling output.
func (e *engine) DisableProfiler() {
	e.profilingEnabled = false
}

// SetTickRate sets the engine tick rate in frames per second.
// If the engine is running, the change takes effect immediately.
func (e *engine) SetTickRate(fps float64) {
	if fps <= 0 {
		fps = 60
	}
	newRate := time.Second / time.Duration(fps)

	if e.running {
		// Send to channel for immediate update in running engine loop
		// Non-blocking send - if channel is full, replace the pending value
		select {
		case e.tickRateChannel <- newRate:
		default:
			// Channel has a pending update, drain and send new value
			select {
			case <-e.tickRateChannel:
			default:
			}
			e.tickRateChannel <- newRate
		}
	} else {
		// Engine not running, just update the field
		e.engineTickRate = newRate
	}
}

// SetTickCallback registers the function called each engine tick.
func (e *engine) SetTickCallback(callback func(deltaTime float32)) {
	e.tickCallback = callback
}

// SetRenderCallback registers the function called each render frame.
func (e *engine) SetRenderCallback(callback func(deltaTime float32)) {
	e.renderCallback = callback
}

// SetRenderFrameLimit sets an optional render frame rate cap.
// Pass 0 to uncap the render loop.
func (e *engine) SetRenderFrameLimit(fps float64) {
	if fps <= 0 {
		e.renderFrameLimit = 0
		return
	}
	e.renderFrameLimit = time.Second / time.Duration(fps)
}

func (e *engine) AddScene(key int, s scene.Scene) {
	if e.shadowSettings != nil {
		s.SetShadowSettings(*e.shadowSettings)
	}
	e.scenes[key] = s
}

func (e *engine) RemoveScene(key int) {
	delete(e.scenes, key)
}

func (e *engine) Scene(key int) scene.Scene {
	return e.scenes[key]
}

func (e *engine) Scenes() map[int]scene.Scene {
	cp := make(map[int]scene.Scene, len(e.scenes))
	for k, v := range e.scenes {
		cp[k] = v
	}
	return cp
}
