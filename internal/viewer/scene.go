package viewer

import (
	"fmt"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"

	"github.com/Faultbox/midgard-gfx/internal/config"
	"github.com/Faultbox/midgard-gfx/internal/engine/registry"
	"github.com/Faultbox/midgard-gfx/internal/engine/renderer"
	"github.com/Faultbox/midgard-gfx/internal/engine/resource"
	"github.com/Faultbox/midgard-gfx/internal/engine/transform"
	"github.com/Faultbox/midgard-gfx/internal/logger"
)

const (
	cubeSize    = 1.0
	cubeSpacing = 2.0
	spinSpeed   = 0.8 // radians per second
	orbitSpeed  = 0.5
	lightCount  = 4
)

var palette = []color.RGBA{
	{R: 200, G: 60, B: 50, A: 255},
	{R: 60, G: 160, B: 80, A: 255},
	{R: 50, G: 90, B: 200, A: 255},
	{R: 220, G: 180, B: 60, A: 255},
}

var imageExts = []string{".png", ".jpg", ".jpeg", ".bmp", ".tga"}

type object struct {
	mesh     registry.Handle
	material registry.Handle
	xf       *transform.Transform
}

// Scene is a grid of spinning cubes lit by orbiting point lights.
type Scene struct {
	Assets  *resource.Library
	objects []object
	lights  []renderer.PointLight
	radius  float32
	angle   float32
}

// BuildScene creates the assets and objects described by cfg. The assets
// are not uploaded.
func BuildScene(cfg config.ViewerConfig) (*Scene, error) {
	if cfg.GridSize <= 0 {
		return nil, fmt.Errorf("invalid grid size %d", cfg.GridSize)
	}
	lib := resource.NewLibrary()
	cube, err := resource.Cube("cube", cubeSize)
	if err != nil {
		return nil, err
	}
	meshHandle := lib.Meshes.Add(cube)

	materials, err := buildMaterials(lib, cfg)
	if err != nil {
		return nil, err
	}

	s := &Scene{
		Assets: lib,
		radius: float32(cfg.GridSize) * cubeSpacing / 2,
	}
	offset := float32(cfg.GridSize-1) * cubeSpacing / 2
	for z := 0; z < cfg.GridSize; z++ {
		for x := 0; x < cfg.GridSize; x++ {
			pos := mgl32.Vec3{float32(x)*cubeSpacing - offset, 0, float32(z)*cubeSpacing - offset}
			s.objects = append(s.objects, object{
				mesh:     meshHandle,
				material: materials[(x+z)%len(materials)],
				xf:       transform.At(pos),
			})
		}
	}
	s.placeLights()
	logger.Info("scene built",
		zap.Int("objects", len(s.objects)),
		zap.Int("materials", len(materials)),
		zap.Int("lights", len(s.lights)))
	return s, nil
}

// buildMaterials creates cfg.Materials generated materials plus one per
// image in cfg.TextureDir. The last generated material has no textures.
func buildMaterials(lib *resource.Library, cfg config.ViewerConfig) ([]registry.Handle, error) {
	var handles []registry.Handle
	specular := lib.Textures.Add(resource.Solid("specular-grey", color.RGBA{R: 128, G: 128, B: 128, A: 255}))
	n := max(cfg.Materials, 1)
	for i := 0; i < n; i++ {
		m := resource.NewMaterial(fmt.Sprintf("material-%d", i))
		if i < n-1 || n == 1 {
			c := palette[i%len(palette)]
			m.Diffuse = lib.Textures.Add(resource.Checkerboard(m.Name+"-diffuse", 64, 8, c, color.RGBA{R: 240, G: 240, B: 240, A: 255}))
			if i%2 == 0 {
				m.Specular = specular
			}
		}
		handles = append(handles, lib.Materials.Add(m))
	}

	if cfg.TextureDir == "" {
		return handles, nil
	}
	entries, err := os.ReadDir(cfg.TextureDir)
	if err != nil {
		return nil, fmt.Errorf("texture dir: %w", err)
	}
	for _, e := range entries {
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if e.IsDir() || !slices.Contains(imageExts, ext) {
			continue
		}
		tex, err := resource.LoadTexture(e.Name(), filepath.Join(cfg.TextureDir, e.Name()))
		if err != nil {
			logger.Warn("skipping texture", zap.String("file", e.Name()), zap.Error(err))
			continue
		}
		m := resource.NewMaterial(strings.TrimSuffix(e.Name(), filepath.Ext(e.Name())))
		m.Diffuse = lib.Textures.Add(tex)
		m.Specular = specular
		handles = append(handles, lib.Materials.Add(m))
	}
	return handles, nil
}

// Bounds returns the box enclosing the grid.
func (s *Scene) Bounds() (lo, hi mgl32.Vec3) {
	r := s.radius
	return mgl32.Vec3{-r, -cubeSize, -r}, mgl32.Vec3{r, cubeSize, r}
}

// Len returns the number of objects.
func (s *Scene) Len() int { return len(s.objects) }

// Lights returns the current lights.
func (s *Scene) Lights() []renderer.PointLight { return s.lights }

// Update advances the animation by dt seconds.
func (s *Scene) Update(dt float32) {
	for _, o := range s.objects {
		o.xf.Rotate(dt*spinSpeed, mgl32.Vec3{0, 1, 0})
	}
	s.angle += dt * orbitSpeed
	s.placeLights()
}

func (s *Scene) placeLights() {
	s.lights = s.lights[:0]
	for i := 0; i < lightCount; i++ {
		a := float64(s.angle) + float64(i)*2*math.Pi/lightCount
		c := palette[i%len(palette)]
		s.lights = append(s.lights, renderer.PointLight{
			Position: mgl32.Vec3{s.radius * float32(math.Cos(a)), 2, s.radius * float32(math.Sin(a))},
			Color:    mgl32.Vec3{float32(c.R) / 255, float32(c.G) / 255, float32(c.B) / 255},
			Radius:   s.radius * 2,
		})
	}
}

// Submit queues every object and sets the lights for the next frame.
func (s *Scene) Submit(r *renderer.Renderer) {
	for _, o := range s.objects {
		r.QueueDrawCommand(o.mesh, o.material, o.xf)
	}
	r.SetLights(s.lights)
}
