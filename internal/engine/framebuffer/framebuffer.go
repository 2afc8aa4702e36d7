// Package framebuffer manages render targets: framebuffers, renderbuffers and
// the attachment of textures and renderbuffers to them.
package framebuffer

import (
	"errors"
	"fmt"
	"image"

	"go.uber.org/zap"

	"github.com/Faultbox/midgard-gfx/internal/engine/registry"
	"github.com/Faultbox/midgard-gfx/internal/engine/resource"
	"github.com/Faultbox/midgard-gfx/internal/gpu"
	"github.com/Faultbox/midgard-gfx/internal/logger"
)

var (
	ErrAttachmentMismatch = errors.New("attachment point does not match resource format")
	ErrAttachmentRange    = errors.New("color attachment index out of range")
	ErrTooManyAttachments = errors.New("too many active color attachments")
	ErrIncomplete         = errors.New("framebuffer incomplete")
	ErrNotUploaded        = errors.New("texture not uploaded")
	ErrDefaultFramebuffer = errors.New("default framebuffer cannot be modified")
)

// Default is the pre-registered handle of the back buffer.
const Default registry.Handle = 0

// Framebuffer is a render target container. Attached resources are not owned.
type Framebuffer struct {
	Name     string
	DeviceID uint32
	// Width and Height follow the most recently attached resource.
	Width, Height int
	// Active lists the color attachments fragment outputs write to, in output order.
	Active []gpu.AttachmentPoint
}

// Bounds returns the framebuffer rectangle.
func (fb *Framebuffer) Bounds() image.Rectangle {
	return image.Rect(0, 0, fb.Width, fb.Height)
}

// Renderbuffer is render-only storage for a framebuffer attachment.
type Renderbuffer struct {
	Name          string
	DeviceID      uint32
	Format        gpu.TextureFormat
	Width, Height int
	// Point is the attachment point it was last attached to.
	Point gpu.AttachmentPoint
}

// Manager owns the framebuffer and renderbuffer registries of one device.
type Manager struct {
	dev      gpu.Device
	maxColor int

	framebuffers  *registry.Registry[Framebuffer]
	renderbuffers *registry.Registry[Renderbuffer]
	bound         registry.Handle
}

// NewManager registers the default framebuffer at handle Default with the
// given back buffer size.
func NewManager(dev gpu.Device, width, height int) *Manager {
	m := &Manager{
		dev:           dev,
		maxColor:      dev.Info().MaxColorAttachments,
		framebuffers:  registry.New(func(f *Framebuffer) string { return f.Name }),
		renderbuffers: registry.New(func(r *Renderbuffer) string { return r.Name }),
		bound:         Default,
	}
	m.framebuffers.Add(&Framebuffer{Name: "default", Width: width, Height: height})
	return m
}

// MaxColorAttachments returns the device limit.
func (m *Manager) MaxColorAttachments() int { return m.maxColor }

// SetDefaultSize updates the back buffer size after a window resize.
func (m *Manager) SetDefaultSize(width, height int) {
	fb := m.framebuffers.Get(Default)
	fb.Width, fb.Height = width, height
}

// Framebuffer returns the framebuffer for h or nil.
func (m *Manager) Framebuffer(h registry.Handle) *Framebuffer { return m.framebuffers.Get(h) }

// FindFramebuffer returns the handle of the framebuffer called name, or registry.Invalid.
func (m *Manager) FindFramebuffer(name string) registry.Handle { return m.framebuffers.Find(name) }

// Renderbuffer returns the renderbuffer for h or nil.
func (m *Manager) Renderbuffer(h registry.Handle) *Renderbuffer { return m.renderbuffers.Get(h) }

// FindRenderbuffer returns the handle of the renderbuffer called name, or registry.Invalid.
func (m *Manager) FindRenderbuffer(name string) registry.Handle { return m.renderbuffers.Find(name) }

// CreateFramebuffer allocates an empty framebuffer.
func (m *Manager) CreateFramebuffer(name string) registry.Handle {
	return m.framebuffers.Add(&Framebuffer{Name: name, DeviceID: m.dev.CreateFramebuffer()})
}

// CreateRenderbuffer allocates a renderbuffer with backing storage.
func (m *Manager) CreateRenderbuffer(name string, format gpu.TextureFormat, width, height int) (registry.Handle, error) {
	if width <= 0 || height <= 0 {
		return registry.Invalid, fmt.Errorf("renderbuffer %q: invalid size %dx%d", name, width, height)
	}
	rb := &Renderbuffer{
		Name:     name,
		DeviceID: m.dev.CreateRenderbuffer(format, width, height),
		Format:   format,
		Width:    width,
		Height:   height,
	}
	return m.renderbuffers.Add(rb), nil
}

// ResizeRenderbuffer replaces the backing storage. The caller reattaches it.
func (m *Manager) ResizeRenderbuffer(h registry.Handle, width, height int) error {
	rb, err := m.renderbuffers.Lookup(h)
	if err != nil {
		return fmt.Errorf("resize renderbuffer: %w", err)
	}
	if width <= 0 || height <= 0 {
		return fmt.Errorf("renderbuffer %q: invalid size %dx%d", rb.Name, width, height)
	}
	if rb.Width == width && rb.Height == height {
		return nil
	}
	if rb.DeviceID != 0 {
		m.dev.DeleteRenderbuffer(rb.DeviceID)
	}
	rb.DeviceID = m.dev.CreateRenderbuffer(rb.Format, width, height)
	rb.Width, rb.Height = width, height
	return nil
}

// checkPoint verifies a resource of format may be attached at point.
// Depth, stencil and depth-stencil resources need their exact point; color
// resources need a color point below the device limit.
func (m *Manager) checkPoint(format gpu.TextureFormat, point gpu.AttachmentPoint) error {
	if !point.Valid() {
		return fmt.Errorf("%w: %s attachment point", ErrAttachmentRange, point)
	}
	if format.Class() != point.Class() {
		return fmt.Errorf("%w: %s resource at %s", ErrAttachmentMismatch, format, point)
	}
	if idx := point.ColorIndex(); idx >= m.maxColor {
		return fmt.Errorf("%w: %s, device supports %d", ErrAttachmentRange, point, m.maxColor)
	}
	return nil
}

func (m *Manager) target(h registry.Handle) (*Framebuffer, error) {
	if h == Default {
		return nil, ErrDefaultFramebuffer
	}
	return m.framebuffers.Lookup(h)
}

// AttachRenderbuffer attaches rb to fb at point.
func (m *Manager) AttachRenderbuffer(fbh, rbh registry.Handle, point gpu.AttachmentPoint) error {
	fb, err := m.target(fbh)
	if err != nil {
		return fmt.Errorf("attach renderbuffer: %w", err)
	}
	rb, err := m.renderbuffers.Lookup(rbh)
	if err != nil {
		return fmt.Errorf("attach renderbuffer to %q: %w", fb.Name, err)
	}
	if err := m.checkPoint(rb.Format, point); err != nil {
		return fmt.Errorf("attach renderbuffer %q to %q: %w", rb.Name, fb.Name, err)
	}
	m.dev.FramebufferRenderbuffer(fb.DeviceID, point, rb.DeviceID)
	rb.Point = point
	fb.Width, fb.Height = rb.Width, rb.Height
	return nil
}

// AttachTexture attaches an uploaded texture to fb at point.
func (m *Manager) AttachTexture(fbh registry.Handle, tex *resource.Texture, point gpu.AttachmentPoint) error {
	fb, err := m.target(fbh)
	if err != nil {
		return fmt.Errorf("attach texture: %w", err)
	}
	if !tex.Uploaded() {
		return fmt.Errorf("attach texture %q to %q: %w", tex.Name, fb.Name, ErrNotUploaded)
	}
	if err := m.checkPoint(tex.Desc.Format, point); err != nil {
		return fmt.Errorf("attach texture %q to %q: %w", tex.Name, fb.Name, err)
	}
	m.dev.FramebufferTexture(fb.DeviceID, point, tex.DeviceID)
	fb.Width, fb.Height = tex.Desc.Width, tex.Desc.Height
	return nil
}

// SetActiveColorAttachments maps fragment outputs 0..n-1 to points in order.
func (m *Manager) SetActiveColorAttachments(fbh registry.Handle, points ...gpu.AttachmentPoint) error {
	fb, err := m.target(fbh)
	if err != nil {
		return fmt.Errorf("set active attachments: %w", err)
	}
	if len(points) > m.maxColor {
		logger.Warn("too many active color attachments",
			zap.String("framebuffer", fb.Name),
			zap.Int("requested", len(points)),
			zap.Int("max", m.maxColor))
		return fmt.Errorf("framebuffer %q: %w: %d > %d", fb.Name, ErrTooManyAttachments, len(points), m.maxColor)
	}
	seen := make(map[gpu.AttachmentPoint]bool, len(points))
	for _, p := range points {
		if !p.Valid() || p.ColorIndex() >= m.maxColor {
			return fmt.Errorf("framebuffer %q: %w: %s", fb.Name, ErrAttachmentRange, p)
		}
		if p.Class() != gpu.ClassColor {
			return fmt.Errorf("framebuffer %q: %w: %s is not a color point", fb.Name, ErrAttachmentMismatch, p)
		}
		if seen[p] {
			return fmt.Errorf("framebuffer %q: %w: %s listed twice", fb.Name, ErrAttachmentMismatch, p)
		}
		seen[p] = true
	}
	m.dev.DrawBuffers(fb.DeviceID, points)
	fb.Active = append(fb.Active[:0], points...)
	return nil
}

// Check returns an ErrIncomplete error carrying the device status when fb
// cannot be rendered to.
func (m *Manager) Check(h registry.Handle) error {
	fb, err := m.framebuffers.Lookup(h)
	if err != nil {
		return fmt.Errorf("check framebuffer: %w", err)
	}
	if err := m.dev.CheckFramebuffer(fb.DeviceID); err != nil {
		return fmt.Errorf("framebuffer %q: %w: %w", fb.Name, ErrIncomplete, err)
	}
	return nil
}

// IsComplete reports whether fb passes the device completeness check.
func (m *Manager) IsComplete(h registry.Handle) bool {
	return m.Check(h) == nil
}

// Bind makes fb the render target and sets the viewport to its size.
func (m *Manager) Bind(h registry.Handle) error {
	fb, err := m.framebuffers.Lookup(h)
	if err != nil {
		return fmt.Errorf("bind framebuffer: %w", err)
	}
	m.dev.BindFramebuffer(fb.DeviceID)
	m.dev.Viewport(fb.Bounds())
	m.bound = h
	return nil
}

// Bound returns the handle of the bound framebuffer.
func (m *Manager) Bound() registry.Handle { return m.bound }

// Blit copies color attachment srcColor of src into dst, scaling to dst's size.
// dst is left bound.
func (m *Manager) Blit(src registry.Handle, srcColor int, dst registry.Handle) error {
	s, err := m.framebuffers.Lookup(src)
	if err != nil {
		return fmt.Errorf("blit source: %w", err)
	}
	d, err := m.framebuffers.Lookup(dst)
	if err != nil {
		return fmt.Errorf("blit destination: %w", err)
	}
	if src != Default && (srcColor < 0 || srcColor >= m.maxColor) {
		return fmt.Errorf("blit from %q: %w: color%d", s.Name, ErrAttachmentRange, srcColor)
	}
	m.dev.BlitFramebuffer(s.DeviceID, srcColor, d.DeviceID, s.Bounds(), d.Bounds())
	m.bound = dst
	return nil
}

// ReadPixels returns the RGBA8 contents of fb, bottom row first.
func (m *Manager) ReadPixels(h registry.Handle) ([]byte, image.Rectangle, error) {
	fb, err := m.framebuffers.Lookup(h)
	if err != nil {
		return nil, image.Rectangle{}, fmt.Errorf("read pixels: %w", err)
	}
	rect := fb.Bounds()
	pixels := make([]byte, rect.Dx()*rect.Dy()*4)
	m.dev.ReadPixels(fb.DeviceID, rect, pixels)
	return pixels, rect, nil
}

// DestroyFramebuffer deletes the device object; the handle stays reserved.
func (m *Manager) DestroyFramebuffer(h registry.Handle) error {
	fb, err := m.target(h)
	if err != nil {
		return fmt.Errorf("destroy framebuffer: %w", err)
	}
	if fb.DeviceID != 0 {
		m.dev.DeleteFramebuffer(fb.DeviceID)
		fb.DeviceID = 0
	}
	if m.bound == h {
		m.dev.BindFramebuffer(0)
		m.bound = Default
	}
	return nil
}

// Shutdown deletes every framebuffer and renderbuffer.
func (m *Manager) Shutdown() {
	m.framebuffers.Each(func(h registry.Handle, _ *Framebuffer) {
		if h != Default {
			_ = m.DestroyFramebuffer(h)
		}
	})
	m.renderbuffers.Each(func(_ registry.Handle, rb *Renderbuffer) {
		if rb.DeviceID != 0 {
			m.dev.DeleteRenderbuffer(rb.DeviceID)
			rb.DeviceID = 0
		}
	})
}
