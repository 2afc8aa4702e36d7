// Package resource defines the CPU-side records the renderer consumes:
// textures, meshes, vertex layouts and materials.
package resource

import "github.com/Faultbox/midgard-gfx/internal/engine/registry"

// Material references textures by handle into a Library's texture registry.
// registry.Invalid leaves a slot unset.
type Material struct {
	Name      string
	Diffuse   registry.Handle
	Normal    registry.Handle
	Specular  registry.Handle
	Shininess float32
}

// NewMaterial returns a material with every texture slot unset.
func NewMaterial(name string) *Material {
	return &Material{
		Name:      name,
		Diffuse:   registry.Invalid,
		Normal:    registry.Invalid,
		Specular:  registry.Invalid,
		Shininess: 32,
	}
}

// Library owns the asset registries referenced by draw commands.
type Library struct {
	Textures  *registry.Registry[Texture]
	Meshes    *registry.Registry[Mesh]
	Materials *registry.Registry[Material]
}

// NewLibrary creates empty registries.
func NewLibrary() *Library {
	return &Library{
		Textures:  registry.New(func(t *Texture) string { return t.Name }),
		Meshes:    registry.New(func(m *Mesh) string { return m.Name }),
		Materials: registry.New(func(m *Material) string { return m.Name }),
	}
}
