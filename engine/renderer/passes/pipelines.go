package passes

import (
	"fmt"

	"github.com/oloengine/olo/engine/renderer"
	"github.com/oloengine/olo/engine/renderer/pipeline"
	"github.com/oloengine/olo/engine/renderer/shader"
)

// ScenePassSpec returns the G-buffer layout the scene pass renders into: HDR
// color with the SSS mask in alpha, view-space normals, an entity ID channel
// for picking, and a 32-bit depth attachment. Scene geometry pipelines must be
// registered against this spec to draw inside the pass chain.
//
// Parameters:
//   - width, height: the surface dimensions in pixels
//
// Returns:
//   - renderer.FramebufferSpec: the scene target layout
func ScenePassSpec(width, height int) renderer.FramebufferSpec {
	return renderer.FramebufferSpec{
		Width:  width,
		Height: height,
		ColorFormats: []renderer.AttachmentFormat{
			renderer.FormatRGBA16F,
			renderer.FormatRGBA16F,
			renderer.FormatRedInt32,
		},
		HasDepth:    true,
		DepthFormat: renderer.FormatDepthComponent32F,
	}
}

// RegisterPipelines compiles the embedded screen-space shaders and registers
// every pass pipeline: offscreen pipelines against the target layouts they
// draw into, and the final blit against the surface. Effects whose fragment
// stage is not present in the embedded source simply stay unregistered; the
// chain skips them at execute time. Already-registered keys are left alone.
//
// Parameters:
//   - r: the renderer to register with
//
// Returns:
//   - error: an error if pipeline creation fails
func RegisterPipelines(r renderer.Renderer) error {
	vertex := shader.NewShaderFromSource("fullscreen_triangle", shader.ShaderTypeVertex, FullscreenShaderSource, "")

	aoSpec := renderer.FramebufferSpec{ColorFormats: []renderer.AttachmentFormat{renderer.FormatRG16F}}
	colorSpec := renderer.FramebufferSpec{ColorFormats: []renderer.AttachmentFormat{renderer.FormatRGBA16F}}

	entries := []struct {
		key        string
		source     string
		entryPoint string
		spec       renderer.FramebufferSpec
	}{
		{"ssao_occlusion", SSAOShaderSource, "", aoSpec},
		{"ssao_blur_horizontal", SSAOBlurShaderSource, "", aoSpec},
		{"ssao_blur_vertical", SSAOBlurShaderSource, "", aoSpec},
		{"sss_blur", SSSBlurShaderSource, "", colorSpec},
		{EffectPipelineKey(EffectSSAOModulate, TonemapNone), PostProcessShaderSource, "fs_ssao_modulate", colorSpec},
		{EffectPipelineKey(EffectBloom, TonemapNone), PostProcessShaderSource, "fs_bloom", colorSpec},
		{EffectPipelineKey(EffectChromaticAberration, TonemapNone), PostProcessShaderSource, "fs_chromatic_aberration", colorSpec},
		{EffectPipelineKey(EffectColorGrading, TonemapNone), PostProcessShaderSource, "fs_color_grading", colorSpec},
		{EffectPipelineKey(EffectTonemap, TonemapReinhard), PostProcessShaderSource, "fs_tonemap_reinhard", colorSpec},
		{EffectPipelineKey(EffectTonemap, TonemapACES), PostProcessShaderSource, "fs_tonemap_aces", colorSpec},
		{EffectPipelineKey(EffectTonemap, TonemapUncharted2), PostProcessShaderSource, "fs_tonemap_uncharted2", colorSpec},
		{EffectPipelineKey(EffectVignette, TonemapNone), PostProcessShaderSource, "fs_vignette", colorSpec},
	}
	for _, e := range entries {
		frag := shader.NewShaderFromSource(e.key, shader.ShaderTypeFragment, e.source, e.entryPoint)
		p := pipeline.NewPipeline(e.key, pipeline.PipelineTypeRender,
			pipeline.WithVertexShader(vertex),
			pipeline.WithFragmentShader(frag),
			pipeline.WithDepthTestEnabled(false),
			pipeline.WithDepthWriteEnabled(false),
		)
		if err := r.RegisterTargetPipeline(p, e.spec); err != nil {
			return fmt.Errorf("failed to register pass pipeline %q: %w", e.key, err)
		}
	}

	// The blit draws inside the surface frame, so it registers like geometry
	// pipelines do, with depth disabled.
	if r.Pipeline("final_blit") == nil {
		blitFrag := shader.NewShaderFromSource("final_blit", shader.ShaderTypeFragment, BlitShaderSource, "")
		blit := pipeline.NewPipeline("final_blit", pipeline.PipelineTypeRender,
			pipeline.WithVertexShader(vertex),
			pipeline.WithFragmentShader(blitFrag),
			pipeline.WithDepthTestEnabled(false),
			pipeline.WithDepthWriteEnabled(false),
		)
		if err := r.RegisterPipelines(blit); err != nil {
			return fmt.Errorf("failed to register final blit pipeline: %w", err)
		}
	}
	return nil
}
