// Package renderer drives the deferred shading pipeline.
//
// A Renderer is the explicit context of the rendering core: it owns the
// shader library, render targets, upload layer and render queue of one
// device. Each Frame sorts the queue and runs the geometry, lighting,
// post-processing and UI passes in that order.
package renderer

import (
	"errors"
	"fmt"
	"image/color"
	"path/filepath"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"

	"github.com/Faultbox/midgard-gfx/internal/config"
	"github.com/Faultbox/midgard-gfx/internal/engine/debug"
	"github.com/Faultbox/midgard-gfx/internal/engine/framebuffer"
	"github.com/Faultbox/midgard-gfx/internal/engine/lighting"
	"github.com/Faultbox/midgard-gfx/internal/engine/registry"
	"github.com/Faultbox/midgard-gfx/internal/engine/renderer/shaders"
	"github.com/Faultbox/midgard-gfx/internal/engine/renderqueue"
	"github.com/Faultbox/midgard-gfx/internal/engine/resource"
	"github.com/Faultbox/midgard-gfx/internal/engine/shader"
	"github.com/Faultbox/midgard-gfx/internal/engine/transform"
	"github.com/Faultbox/midgard-gfx/internal/engine/upload"
	"github.com/Faultbox/midgard-gfx/internal/gpu"
	"github.com/Faultbox/midgard-gfx/internal/logger"
)

// MaxLights is the size of the light array in the lighting shader.
const MaxLights = 32

// Config holds renderer configuration.
type Config struct {
	Width  int
	Height int

	ClearColor        [4]float32
	TransposeMatrices bool
	// ShaderDir loads shader files from disk instead of the embedded sources.
	ShaderDir      string
	PositionFormat gpu.TextureFormat
	NormalFormat   gpu.TextureFormat
	MaxLights      int

	// Clock samples the frame time; nil uses time.Now.
	Clock func() time.Time
}

// DefaultConfig returns the configuration of config.Default.
func DefaultConfig() Config {
	cfg, _ := ConfigFrom(config.Default())
	return cfg
}

// ConfigFrom converts the application config.
func ConfigFrom(c *config.Config) (Config, error) {
	pos, err := gpu.ParseTextureFormat(c.Renderer.PositionFormat)
	if err != nil {
		return Config{}, fmt.Errorf("position format: %w", err)
	}
	nrm, err := gpu.ParseTextureFormat(c.Renderer.NormalFormat)
	if err != nil {
		return Config{}, fmt.Errorf("normal format: %w", err)
	}
	return Config{
		Width:             c.Graphics.Width,
		Height:            c.Graphics.Height,
		ClearColor:        c.Renderer.ClearColor,
		TransposeMatrices: c.Renderer.TransposeMatrices,
		ShaderDir:         c.Renderer.ShaderDir,
		PositionFormat:    pos,
		NormalFormat:      nrm,
		MaxLights:         c.Renderer.MaxLights,
	}, nil
}

// Renderer is the rendering context of one device.
type Renderer struct {
	config Config
	dev    gpu.Device

	Shaders  *shader.Library
	Targets  *framebuffer.Manager
	Uploader *upload.Uploader
	// Assets holds the meshes, materials and textures draw commands refer to.
	Assets *resource.Library

	queue    *renderqueue.Queue
	gbuffer  *gbuffer
	lighting registry.Handle

	// Placeholders for unset material slots.
	missingDiffuse  *resource.Texture
	missingSpecular *resource.Texture

	// Non-owning camera state read every frame.
	view       *mgl32.Mat4
	projection *mgl32.Mat4
	cameraPos  *mgl32.Vec3

	lights *lighting.PointLightBuffer

	clock func() time.Time
	last  time.Time
	delta time.Duration

	frame uint64
	stats FrameStats

	screenshots *debug.ScreenshotCapture
}

// New creates a renderer on dev. assets may be nil for an empty library.
// IMPORTANT: dev must wrap a current graphics context.
func New(dev gpu.Device, cfg Config, assets *resource.Library) (*Renderer, error) {
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("invalid renderer size %dx%d", cfg.Width, cfg.Height)
	}
	if cfg.MaxLights > MaxLights || cfg.MaxLights < 0 {
		logger.Warn("max lights clamped", zap.Int("requested", cfg.MaxLights), zap.Int("max", MaxLights))
		cfg.MaxLights = min(max(cfg.MaxLights, 0), MaxLights)
	}
	if assets == nil {
		assets = resource.NewLibrary()
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}

	r := &Renderer{
		config:   cfg,
		dev:      dev,
		Shaders:  shader.NewLibrary(dev, cfg.TransposeMatrices),
		Targets:  framebuffer.NewManager(dev, cfg.Width, cfg.Height),
		Uploader: upload.New(dev),
		Assets:   assets,
		queue:    renderqueue.New(256),
		lighting: registry.Invalid,
		lights:   lighting.NewPointLightBuffer(cfg.MaxLights),
		clock:    cfg.Clock,
	}

	if err := r.init(); err != nil {
		r.Close()
		return nil, err
	}
	r.last = r.clock()

	info := dev.Info()
	logger.Info("renderer initialized",
		zap.String("vendor", info.Vendor),
		zap.String("renderer", info.Renderer),
		zap.String("version", info.Version),
		zap.Int("max_color_attachments", info.MaxColorAttachments),
		zap.Int("width", cfg.Width),
		zap.Int("height", cfg.Height))
	return r, nil
}

func (r *Renderer) init() error {
	r.missingDiffuse = resource.Checkerboard("missing-diffuse", 8, 4,
		color.RGBA{255, 0, 255, 255}, color.RGBA{0, 0, 0, 255})
	r.missingSpecular = resource.Solid("missing-specular", color.RGBA{0, 0, 0, 255})
	if err := errors.Join(r.Uploader.Texture(r.missingDiffuse), r.Uploader.Texture(r.missingSpecular)); err != nil {
		return fmt.Errorf("placeholder textures: %w", err)
	}

	gbufferProgram, err := r.createProgram("gbuffer", resource.StandardLayout.Attributes,
		"gbuffer.vert", "gbuffer.frag", gbufferUniforms)
	if err != nil {
		return err
	}
	if r.lighting, err = r.createProgram("lighting", nil,
		"lighting.vert", "lighting.frag", r.lightingUniforms()); err != nil {
		return err
	}

	r.gbuffer, err = newGBuffer(r, gbufferProgram)
	if err != nil {
		return fmt.Errorf("g-buffer: %w", err)
	}

	// Samplers read fixed texture units.
	if err := r.Shaders.Use(gbufferProgram); err != nil {
		return err
	}
	if err := errors.Join(
		r.Shaders.SetInt("u_diffuse", unitDiffuse),
		r.Shaders.SetInt("u_specular", unitSpecular),
	); err != nil {
		return err
	}
	if err := r.Shaders.Use(r.lighting); err != nil {
		return err
	}
	return errors.Join(
		r.Shaders.SetInt("u_gposition", unitPosition),
		r.Shaders.SetInt("u_gnormal", unitNormal),
		r.Shaders.SetInt("u_galbedo", unitAlbedo),
	)
}

type uniformDecl struct {
	name string
	typ  shader.UniformType
}

var gbufferUniforms = []uniformDecl{
	{"u_model", shader.UniformMat4},
	{"u_view", shader.UniformMat4},
	{"u_projection", shader.UniformMat4},
	{"u_normal", shader.UniformMat3},
	{"u_diffuse", shader.UniformInt},
	{"u_specular", shader.UniformInt},
}

func (r *Renderer) lightingUniforms() []uniformDecl {
	decls := []uniformDecl{
		{"u_gposition", shader.UniformInt},
		{"u_gnormal", shader.UniformInt},
		{"u_galbedo", shader.UniformInt},
		{"u_view_pos", shader.UniformVec3},
		{"u_light_count", shader.UniformInt},
	}
	for i := 0; i < r.config.MaxLights; i++ {
		decls = append(decls,
			uniformDecl{lightUniform(i, "position"), shader.UniformVec3},
			uniformDecl{lightUniform(i, "color"), shader.UniformVec3},
			uniformDecl{lightUniform(i, "radius"), shader.UniformFloat},
		)
	}
	return decls
}

// createProgram loads a vertex and fragment stage, links them and resolves
// the declared uniforms.
func (r *Renderer) createProgram(name string, attrs []resource.VertexAttribute, vert, frag string, uniforms []uniformDecl) (registry.Handle, error) {
	vs, err := r.loadStage(vert, gpu.ShaderVertex)
	if err != nil {
		return registry.Invalid, err
	}
	fs, err := r.loadStage(frag, gpu.ShaderFragment)
	if err != nil {
		return registry.Invalid, err
	}
	h, err := r.Shaders.CreateProgram(name, attrs, vs, fs)
	if err != nil {
		return registry.Invalid, err
	}
	for _, u := range uniforms {
		if err := r.Shaders.DeclareUniform(h, u.name, u.typ); err != nil {
			return registry.Invalid, err
		}
	}
	if err := r.Shaders.ResolveUniforms(h); err != nil {
		return registry.Invalid, err
	}
	return h, nil
}

func (r *Renderer) loadStage(file string, kind gpu.ShaderKind) (registry.Handle, error) {
	if r.config.ShaderDir != "" {
		return r.Shaders.LoadStage(file, filepath.Join(r.config.ShaderDir, file), kind)
	}
	src, ok := shaders.Sources[file]
	if !ok {
		return registry.Invalid, fmt.Errorf("no embedded shader %q", file)
	}
	return r.Shaders.LoadStageSource(file, src, kind), nil
}

// Close releases every device object owned by the renderer.
func (r *Renderer) Close() {
	logger.Info("closing renderer")
	if r.gbuffer != nil {
		r.gbuffer.release(r)
	}
	r.Uploader.ReleaseLibrary(r.Assets)
	for _, t := range []*resource.Texture{r.missingDiffuse, r.missingSpecular} {
		if t != nil {
			r.Uploader.ReleaseTexture(t)
		}
	}
	r.Targets.Shutdown()
	r.Shaders.Shutdown()
}

// Resize resizes the back buffer and reallocates the G-buffer.
func (r *Renderer) Resize(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("invalid renderer size %dx%d", width, height)
	}
	if width == r.config.Width && height == r.config.Height {
		return nil
	}
	// The size is committed only once the g-buffer matches it, so a failed
	// resize can be retried with the same dimensions.
	if err := r.gbuffer.resize(r, width, height); err != nil {
		return fmt.Errorf("resize g-buffer: %w", err)
	}
	r.config.Width, r.config.Height = width, height
	r.Targets.SetDefaultSize(width, height)
	logger.Debug("renderer resized", zap.Int("width", width), zap.Int("height", height))
	return nil
}

// Size returns the back buffer size.
func (r *Renderer) Size() (width, height int) {
	return r.config.Width, r.config.Height
}

// SetViewMatrix sets the camera view matrix read every frame. The renderer
// keeps the pointer; nil means identity.
func (r *Renderer) SetViewMatrix(view *mgl32.Mat4) { r.view = view }

// SetProjectionMatrix sets the projection matrix read every frame.
func (r *Renderer) SetProjectionMatrix(projection *mgl32.Mat4) { r.projection = projection }

// SetCameraPosition sets the camera position read by the lighting pass.
func (r *Renderer) SetCameraPosition(pos *mgl32.Vec3) { r.cameraPos = pos }

// QueueDrawCommand queues mesh drawn with material at t for the next frame.
// The transform is snapshotted, so it may change after the call.
func (r *Renderer) QueueDrawCommand(mesh, material registry.Handle, t *transform.Transform) {
	r.queue.Submit(mesh, material, t)
}

// Queue exposes the render queue.
func (r *Renderer) Queue() *renderqueue.Queue { return r.queue }

// FrameTimeDelta returns the time between the last two frames.
func (r *Renderer) FrameTimeDelta() time.Duration { return r.delta }

// DeviceInfo returns the device strings queried at init.
func (r *Renderer) DeviceInfo() gpu.Info { return r.dev.Info() }

// Stats returns the statistics of the last frame.
func (r *Renderer) Stats() FrameStats { return r.stats }

// SaveScreenshot writes the back buffer as PNG into dir.
func (r *Renderer) SaveScreenshot(dir string) (string, error) {
	if r.screenshots == nil {
		r.screenshots = debug.NewScreenshotCapture(dir, "gfx")
	}
	r.screenshots.SetOutputDir(dir)
	pixels, rect, err := r.Targets.ReadPixels(framebuffer.Default)
	if err != nil {
		return "", err
	}
	path, err := r.screenshots.CaptureFromPixels(pixels, rect.Dx(), rect.Dy())
	if err != nil {
		return "", fmt.Errorf("screenshot: %w", err)
	}
	logger.Info("screenshot saved", zap.String("path", path))
	return path, nil
}

func (r *Renderer) matrix(m *mgl32.Mat4) mgl32.Mat4 {
	if m == nil {
		return mgl32.Ident4()
	}
	return *m
}
