package renderer

import (
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"

	"github.com/Faultbox/midgard-gfx/internal/engine/framebuffer"
	"github.com/Faultbox/midgard-gfx/internal/engine/lighting"
	"github.com/Faultbox/midgard-gfx/internal/engine/registry"
	"github.com/Faultbox/midgard-gfx/internal/engine/renderqueue"
	"github.com/Faultbox/midgard-gfx/internal/engine/resource"
	"github.com/Faultbox/midgard-gfx/internal/logger"
)

// Pass names a pipeline pass.
type Pass string

const (
	PassGeometry Pass = "geometry"
	PassLighting Pass = "lighting"
	PassPost     Pass = "post"
	PassUI       Pass = "ui"
)

// FrameStats describes the last executed frame.
type FrameStats struct {
	Frame     uint64
	Commands  int
	Batches   int
	DrawCalls int
	Lights    int
	// Passes lists the passes in execution order.
	Passes []Pass
}

// PointLight is a light consumed by the lighting pass.
type PointLight = lighting.PointLight

func lightUniform(i int, field string) string {
	return fmt.Sprintf("u_lights[%d].%s", i, field)
}

// SetLights replaces the lights of the following frames. Lights beyond the
// configured maximum are dropped.
func (r *Renderer) SetLights(lights []PointLight) {
	if dropped := r.lights.SetLights(lights); dropped > 0 {
		logger.Warn("too many lights, extra lights ignored",
			zap.Int("lights", len(lights)),
			zap.Int("max", r.lights.Max()))
	}
}

// Frame renders one frame from the queued draw commands and clears the
// queue. All passes run even if an earlier pass fails; their errors are
// joined.
func (r *Renderer) Frame() error {
	defer r.queue.Reset()

	now := r.clock()
	r.delta = max(now.Sub(r.last), 0)
	r.last = now
	r.frame++

	r.queue.Sort()
	stats := FrameStats{
		Frame:    r.frame,
		Commands: r.queue.Len(),
		Batches:  len(r.queue.Runs()),
	}

	passes := []struct {
		name Pass
		run  func(*FrameStats) error
	}{
		{PassGeometry, r.geometryPass},
		{PassLighting, r.lightingPass},
		{PassPost, r.postPass},
		{PassUI, r.uiPass},
	}
	var errs []error
	for _, p := range passes {
		stats.Passes = append(stats.Passes, p.name)
		if err := p.run(&stats); err != nil {
			errs = append(errs, fmt.Errorf("%s pass: %w", p.name, err))
		}
	}
	r.stats = stats
	return errors.Join(errs...)
}

// geometryPass fills the G-buffer from the sorted queue, one material bind
// per run, then copies the albedo attachment to the back buffer.
func (r *Renderer) geometryPass(stats *FrameStats) error {
	g := r.gbuffer
	if err := r.Targets.Bind(g.fb); err != nil {
		return err
	}
	r.dev.SetDepthTest(true)
	for i := 0; i < gbufferColorCount; i++ {
		r.dev.ClearColorAttachment(i, r.config.ClearColor)
	}
	r.dev.ClearDepthStencil(1, 0)
	if err := r.Shaders.Use(g.program); err != nil {
		return err
	}

	var errs []error
	err := r.queue.ForEachGroup(func(mh registry.Handle, group []renderqueue.Command) error {
		mat, err := r.Assets.Materials.Lookup(mh)
		if err != nil {
			errs = append(errs, fmt.Errorf("material: %w", err))
			return nil
		}
		r.bindMaterial(mat)
		if err := errors.Join(
			r.Shaders.SetMat4("u_view", r.matrix(r.view)),
			r.Shaders.SetMat4("u_projection", r.matrix(r.projection)),
		); err != nil {
			return err
		}

		for _, c := range group {
			mesh, err := r.Assets.Meshes.Lookup(c.Mesh)
			if err != nil {
				errs = append(errs, fmt.Errorf("mesh: %w", err))
				continue
			}
			if !mesh.Uploaded() {
				errs = append(errs, fmt.Errorf("mesh %q not uploaded", mesh.Name))
				continue
			}
			snap := r.queue.Snapshot(c)
			if err := errors.Join(
				r.Shaders.SetMat4("u_model", snap.Model),
				r.Shaders.SetMat3("u_normal", snap.Normal),
			); err != nil {
				return err
			}
			r.dev.BindVertexArray(mesh.VAO)
			r.dev.DrawIndexed(mesh.IndexCount, mesh.IndexType)
			stats.DrawCalls++
		}
		return nil
	})
	r.dev.BindVertexArray(0)
	if err != nil {
		errs = append(errs, err)
	}

	// The visible output is a direct copy of the albedo channel.
	if err := r.Targets.Blit(g.fb, gbufferAlbedoSpec, framebuffer.Default); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// bindMaterial binds the material textures, substituting placeholders for
// unset or missing slots.
func (r *Renderer) bindMaterial(mat *resource.Material) {
	r.dev.BindTexture(unitDiffuse, r.textureOr(mat.Diffuse, r.missingDiffuse))
	r.dev.BindTexture(unitSpecular, r.textureOr(mat.Specular, r.missingSpecular))
}

func (r *Renderer) textureOr(h registry.Handle, fallback *resource.Texture) uint32 {
	if tex := r.Assets.Textures.Get(h); tex != nil && tex.Uploaded() {
		return tex.DeviceID
	}
	return fallback.DeviceID
}

// lightingPass binds the G-buffer for sampling and uploads the camera and
// per-light uniforms. It draws nothing: the geometry pass blit stays the
// visible output.
func (r *Renderer) lightingPass(stats *FrameStats) error {
	if err := r.Shaders.Use(r.lighting); err != nil {
		return err
	}
	r.dev.BindTexture(unitPosition, r.gbuffer.texture(gbufferPosition))
	r.dev.BindTexture(unitNormal, r.gbuffer.texture(gbufferNormal))
	r.dev.BindTexture(unitAlbedo, r.gbuffer.texture(gbufferAlbedoSpec))

	var viewPos mgl32.Vec3
	if r.cameraPos != nil {
		viewPos = *r.cameraPos
	}
	errs := []error{
		r.Shaders.SetVec3("u_view_pos", viewPos),
		r.Shaders.SetInt("u_light_count", int32(r.lights.Len())),
	}
	for i, l := range r.lights.Lights() {
		errs = append(errs,
			r.Shaders.SetVec3(lightUniform(i, "position"), l.Position),
			r.Shaders.SetVec3(lightUniform(i, "color"), l.Color),
			r.Shaders.SetFloat(lightUniform(i, "radius"), l.Radius),
		)
	}
	stats.Lights = r.lights.Len()
	return errors.Join(errs...)
}

// postPass has no effects yet.
func (r *Renderer) postPass(*FrameStats) error { return nil }

// uiPass has no overlay yet.
func (r *Renderer) uiPass(*FrameStats) error { return nil }
