// Package lighting provides point light storage for the lighting pass.
package lighting

import "github.com/go-gl/mathgl/mgl32"

// DefaultRadius replaces non-positive light radii.
const DefaultRadius = 10.0

// PointLight represents a point light source for GPU upload.
type PointLight struct {
	Position mgl32.Vec3 // World position
	Color    mgl32.Vec3 // RGB color (0-1 range)
	Radius   float32    // Falloff distance
}

// Sanitized clamps the color to the 0-1 range and defaults the radius.
func (l PointLight) Sanitized() PointLight {
	for i := range l.Color {
		l.Color[i] = mgl32.Clamp(l.Color[i], 0, 1)
	}
	if l.Radius <= 0 {
		l.Radius = DefaultRadius
	}
	return l
}

// PointLightBuffer holds a bounded number of lights for GPU upload.
type PointLightBuffer struct {
	lights []PointLight
	max    int
}

// NewPointLightBuffer creates an empty buffer holding up to capacity lights.
func NewPointLightBuffer(capacity int) *PointLightBuffer {
	return &PointLightBuffer{
		lights: make([]PointLight, 0, capacity),
		max:    capacity,
	}
}

// Max returns the capacity of the buffer.
func (b *PointLightBuffer) Max() int { return b.max }

// Len returns the number of lights.
func (b *PointLightBuffer) Len() int { return len(b.lights) }

// Lights returns the stored lights. The slice is reused by later calls.
func (b *PointLightBuffer) Lights() []PointLight { return b.lights }

// Clear removes all lights from the buffer.
func (b *PointLightBuffer) Clear() {
	b.lights = b.lights[:0]
}

// AddLight adds a sanitized point light to the buffer.
// Returns false if buffer is full.
func (b *PointLightBuffer) AddLight(light PointLight) bool {
	if len(b.lights) >= b.max {
		return false
	}
	b.lights = append(b.lights, light.Sanitized())
	return true
}

// SetLights replaces all lights in the buffer and returns how many did not
// fit.
func (b *PointLightBuffer) SetLights(lights []PointLight) (dropped int) {
	b.Clear()
	for i, l := range lights {
		if !b.AddLight(l) {
			return len(lights) - i
		}
	}
	return 0
}
