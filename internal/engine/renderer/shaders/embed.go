// Package shaders provides the embedded GLSL sources of the deferred pipeline.
package shaders

import _ "embed"

// GBufferVertexShader transforms meshes into world space for the geometry pass.
//
//go:embed gbuffer.vert
var GBufferVertexShader string

// GBufferFragmentShader writes position, normal and albedo+specular.
//
//go:embed gbuffer.frag
var GBufferFragmentShader string

// LightingVertexShader emits a full-screen triangle.
//
//go:embed lighting.vert
var LightingVertexShader string

// LightingFragmentShader shades G-buffer texels with point lights.
//
//go:embed lighting.frag
var LightingFragmentShader string

// Sources maps file names to the embedded sources.
var Sources = map[string]string{
	"gbuffer.vert":  GBufferVertexShader,
	"gbuffer.frag":  GBufferFragmentShader,
	"lighting.vert": LightingVertexShader,
	"lighting.frag": LightingFragmentShader,
}
