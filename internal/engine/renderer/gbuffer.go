package renderer

import (
	"github.com/Faultbox/midgard-gfx/internal/engine/registry"
	"github.com/Faultbox/midgard-gfx/internal/engine/resource"
	"github.com/Faultbox/midgard-gfx/internal/gpu"
)

// G-buffer color attachments, in fragment output order.
const (
	gbufferPosition = iota
	gbufferNormal
	gbufferAlbedoSpec
	gbufferColorCount
)

// Texture units used by the passes.
const (
	unitDiffuse  = 0
	unitSpecular = 1

	unitPosition = 0
	unitNormal   = 1
	unitAlbedo   = 2
)

// gbuffer is the geometry pass target: world position, world normal and
// albedo with specular intensity in alpha, plus depth-stencil.
type gbuffer struct {
	fb      registry.Handle
	depth   registry.Handle
	color   [gbufferColorCount]*resource.Texture
	program registry.Handle
}

func newGBuffer(r *Renderer, program registry.Handle) (*gbuffer, error) {
	w, h := r.config.Width, r.config.Height
	g := &gbuffer{
		fb:      r.Targets.CreateFramebuffer("gbuffer"),
		program: program,
		color: [gbufferColorCount]*resource.Texture{
			resource.NewRenderTexture("gbuffer-position", w, h, r.config.PositionFormat),
			resource.NewRenderTexture("gbuffer-normal", w, h, r.config.NormalFormat),
			resource.NewRenderTexture("gbuffer-albedo-spec", w, h, gpu.FormatRGBA8),
		},
	}
	var err error
	if g.depth, err = r.Targets.CreateRenderbuffer("gbuffer-depth", gpu.FormatDepth24Stencil8, w, h); err != nil {
		return nil, err
	}
	if err := g.attach(r); err != nil {
		return nil, err
	}
	points := make([]gpu.AttachmentPoint, gbufferColorCount)
	for i := range points {
		points[i] = gpu.ColorAttachment(i)
	}
	if err := r.Targets.SetActiveColorAttachments(g.fb, points...); err != nil {
		return nil, err
	}
	if err := r.Targets.Check(g.fb); err != nil {
		return nil, err
	}
	return g, nil
}

// attach uploads the color textures and attaches every target.
func (g *gbuffer) attach(r *Renderer) error {
	for i, tex := range g.color {
		if err := r.Uploader.Texture(tex); err != nil {
			return err
		}
		if err := r.Targets.AttachTexture(g.fb, tex, gpu.ColorAttachment(i)); err != nil {
			return err
		}
	}
	return r.Targets.AttachRenderbuffer(g.fb, g.depth, gpu.AttachmentDepthStencil)
}

func (g *gbuffer) resize(r *Renderer, width, height int) error {
	for _, tex := range g.color {
		r.Uploader.ReleaseTexture(tex)
		tex.Desc.Width, tex.Desc.Height = width, height
	}
	if err := r.Targets.ResizeRenderbuffer(g.depth, width, height); err != nil {
		return err
	}
	if err := g.attach(r); err != nil {
		return err
	}
	return r.Targets.Check(g.fb)
}

// texture returns the device id of a color attachment.
func (g *gbuffer) texture(i int) uint32 {
	return g.color[i].DeviceID
}

func (g *gbuffer) release(r *Renderer) {
	for _, tex := range g.color {
		r.Uploader.ReleaseTexture(tex)
	}
	_ = r.Targets.DestroyFramebuffer(g.fb)
}
