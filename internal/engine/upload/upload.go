// Package upload moves CPU-side textures and meshes into device memory.
//
// Uploads are one-shot: uploading a resource that already has device handles
// is a caller bug, logged and reported with ErrAlreadyUploaded, and the
// existing handles are left untouched.
package upload

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/Faultbox/midgard-gfx/internal/engine/registry"
	"github.com/Faultbox/midgard-gfx/internal/engine/resource"
	"github.com/Faultbox/midgard-gfx/internal/gpu"
	"github.com/Faultbox/midgard-gfx/internal/logger"
)

var (
	ErrAlreadyUploaded = errors.New("already uploaded")
	ErrNotUploaded     = errors.New("not uploaded")
	ErrNotDynamic      = errors.New("mesh is not dynamic")
)

// Uploader creates device objects for resources.
type Uploader struct {
	dev gpu.Device
}

// New returns an uploader for dev.
func New(dev gpu.Device) *Uploader {
	return &Uploader{dev: dev}
}

// Texture uploads tex and stores its device handle.
func (u *Uploader) Texture(tex *resource.Texture) error {
	if tex.Uploaded() {
		logger.Warn("texture already uploaded", zap.String("texture", tex.Name), zap.Uint32("id", tex.DeviceID))
		return fmt.Errorf("texture %q: %w", tex.Name, ErrAlreadyUploaded)
	}
	if err := tex.CheckPixels(); err != nil {
		return err
	}
	tex.DeviceID = u.dev.CreateTexture(tex.Desc, tex.Pixels)
	return nil
}

// ReleaseTexture deletes the device texture so tex can be uploaded again.
func (u *Uploader) ReleaseTexture(tex *resource.Texture) {
	if tex.DeviceID != 0 {
		u.dev.DeleteTexture(tex.DeviceID)
		tex.DeviceID = 0
	}
}

// Mesh creates the vertex array, vertex buffer and index buffer of m.
// Attribute pointers use each attribute's explicit offset.
func (u *Uploader) Mesh(m *resource.Mesh) error {
	if m.Uploaded() {
		logger.Warn("mesh already uploaded", zap.String("mesh", m.Name), zap.Uint32("vao", m.VAO))
		return fmt.Errorf("mesh %q: %w", m.Name, ErrAlreadyUploaded)
	}
	if err := m.Layout.Validate(); err != nil {
		return fmt.Errorf("mesh %q: %w", m.Name, err)
	}

	usage := gpu.UsageStatic
	if m.Dynamic {
		usage = gpu.UsageDynamic
	}

	m.VAO = u.dev.CreateVertexArray()
	m.VBO = u.dev.CreateBuffer(gpu.BufferVertex, m.Vertices, len(m.Vertices), usage)
	for _, a := range m.Layout.Attributes {
		if !a.Active {
			continue
		}
		u.dev.VertexAttribPointer(a.Slot, a.Count, a.Type, a.Normalized, m.Layout.Stride, a.Offset)
	}
	// The index buffer binding is captured by the vertex array bound above.
	m.EBO = u.dev.CreateBuffer(gpu.BufferIndex, m.Indices, len(m.Indices), gpu.UsageStatic)
	u.dev.BindVertexArray(0)

	logger.Debug("mesh uploaded",
		zap.String("mesh", m.Name),
		zap.Int("vertices", m.VertexCount),
		zap.Int("indices", m.IndexCount),
		zap.Stringer("usage", usage))
	return nil
}

// UpdateMesh replaces the vertex bytes of an uploaded dynamic mesh. The
// vertex count and layout must not change.
func (u *Uploader) UpdateMesh(m *resource.Mesh, vertices []byte) error {
	if !m.Uploaded() {
		return fmt.Errorf("mesh %q: %w", m.Name, ErrNotUploaded)
	}
	if !m.Dynamic {
		return fmt.Errorf("mesh %q: %w", m.Name, ErrNotDynamic)
	}
	if len(vertices) != len(m.Vertices) {
		return fmt.Errorf("mesh %q: vertex data size mismatch: expected %d, got %d", m.Name, len(m.Vertices), len(vertices))
	}
	m.Vertices = vertices
	u.dev.UpdateBuffer(gpu.BufferVertex, m.VBO, 0, vertices)
	return nil
}

// ReleaseMesh deletes the device objects of m so it can be uploaded again.
func (u *Uploader) ReleaseMesh(m *resource.Mesh) {
	if m.VAO != 0 {
		u.dev.DeleteVertexArray(m.VAO)
		m.VAO = 0
	}
	if m.VBO != 0 {
		u.dev.DeleteBuffer(m.VBO)
		m.VBO = 0
	}
	if m.EBO != 0 {
		u.dev.DeleteBuffer(m.EBO)
		m.EBO = 0
	}
}

// Library uploads every texture and mesh of lib that is not uploaded yet.
func (u *Uploader) Library(lib *resource.Library) error {
	var errs []error
	lib.Textures.Each(func(_ registry.Handle, t *resource.Texture) {
		if !t.Uploaded() {
			errs = append(errs, u.Texture(t))
		}
	})
	lib.Meshes.Each(func(_ registry.Handle, m *resource.Mesh) {
		if !m.Uploaded() {
			errs = append(errs, u.Mesh(m))
		}
	})
	return errors.Join(errs...)
}

// ReleaseLibrary releases every texture and mesh of lib.
func (u *Uploader) ReleaseLibrary(lib *resource.Library) {
	lib.Textures.Each(func(_ registry.Handle, t *resource.Texture) { u.ReleaseTexture(t) })
	lib.Meshes.Each(func(_ registry.Handle, m *resource.Mesh) { u.ReleaseMesh(m) })
}
