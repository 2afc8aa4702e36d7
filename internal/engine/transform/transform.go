// Package transform provides a position/rotation/scale transform with cached
// model and normal matrices.
package transform

import "github.com/go-gl/mathgl/mgl32"

// Transform is owned by the entity it places. Setters mark it dirty; Update
// recomputes the cached matrices.
type Transform struct {
	position mgl32.Vec3
	rotation mgl32.Quat
	scale    mgl32.Vec3

	model  mgl32.Mat4
	normal mgl32.Mat3
	dirty  bool
}

// New returns an identity transform.
func New() *Transform {
	return &Transform{
		rotation: mgl32.QuatIdent(),
		scale:    mgl32.Vec3{1, 1, 1},
		model:    mgl32.Ident4(),
		normal:   mgl32.Ident3(),
	}
}

// At returns an unrotated, unscaled transform at position.
func At(position mgl32.Vec3) *Transform {
	t := New()
	t.SetPosition(position)
	return t
}

func (t *Transform) Position() mgl32.Vec3 { return t.position }
func (t *Transform) Rotation() mgl32.Quat { return t.rotation }
func (t *Transform) Scale() mgl32.Vec3    { return t.scale }

// Dirty reports whether the cached matrices are stale.
func (t *Transform) Dirty() bool { return t.dirty }

func (t *Transform) SetPosition(p mgl32.Vec3) {
	t.position = p
	t.dirty = true
}

func (t *Transform) SetRotation(q mgl32.Quat) {
	t.rotation = q.Normalize()
	t.dirty = true
}

func (t *Transform) SetScale(s mgl32.Vec3) {
	t.scale = s
	t.dirty = true
}

// Translate moves the transform by delta.
func (t *Transform) Translate(delta mgl32.Vec3) {
	t.SetPosition(t.position.Add(delta))
}

// Rotate applies an additional rotation of angle radians around axis.
func (t *Transform) Rotate(angle float32, axis mgl32.Vec3) {
	t.SetRotation(mgl32.QuatRotate(angle, axis.Normalize()).Mul(t.rotation))
}

// Update recomputes the model and normal matrices if dirty and reports
// whether it did.
func (t *Transform) Update() bool {
	if !t.dirty {
		return false
	}
	t.model = mgl32.Translate3D(t.position[0], t.position[1], t.position[2]).
		Mul4(t.rotation.Mat4()).
		Mul4(mgl32.Scale3D(t.scale[0], t.scale[1], t.scale[2]))
	// Inverse-transpose keeps normals perpendicular under non-uniform scale.
	t.normal = t.model.Mat3().Inv().Transpose()
	t.dirty = false
	return true
}

// Model returns the cached model matrix; call Update first.
func (t *Transform) Model() mgl32.Mat4 { return t.model }

// Normal returns the cached normal matrix; call Update first.
func (t *Transform) Normal() mgl32.Mat3 { return t.normal }
