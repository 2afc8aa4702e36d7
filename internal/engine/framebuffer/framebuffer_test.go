package framebuffer

import (
	"errors"
	"image"
	"testing"

	"github.com/Faultbox/midgard-gfx/internal/engine/registry"
	"github.com/Faultbox/midgard-gfx/internal/engine/resource"
	"github.com/Faultbox/midgard-gfx/internal/gpu"
	"github.com/Faultbox/midgard-gfx/internal/gpu/gputest"
)

func uploaded(dev *gputest.Device, name string, format gpu.TextureFormat) *resource.Texture {
	tex := resource.NewRenderTexture(name, 320, 240, format)
	tex.DeviceID = dev.CreateTexture(tex.Desc, nil)
	return tex
}

func TestDefaultFramebufferIsPreRegistered(t *testing.T) {
	m := NewManager(gputest.New(), 800, 600)
	fb := m.Framebuffer(Default)
	if fb == nil || fb.DeviceID != 0 || fb.Bounds() != image.Rect(0, 0, 800, 600) {
		t.Fatalf("default framebuffer = %+v", fb)
	}
	if m.FindFramebuffer("default") != Default {
		t.Error("default framebuffer not found by name")
	}
	if !m.IsComplete(Default) {
		t.Error("default framebuffer should be complete")
	}
	if err := m.SetActiveColorAttachments(Default, gpu.ColorAttachment(0)); !errors.Is(err, ErrDefaultFramebuffer) {
		t.Errorf("modifying default = %v", err)
	}
}

func TestAttachTextureChecksFormat(t *testing.T) {
	dev := gputest.New()
	m := NewManager(dev, 800, 600)
	fb := m.CreateFramebuffer("target")

	tests := []struct {
		name   string
		format gpu.TextureFormat
		point  gpu.AttachmentPoint
		want   error
	}{
		{"color at color0", gpu.FormatRGBA8, gpu.ColorAttachment(0), nil},
		{"float color at color7", gpu.FormatRGBA16F, gpu.ColorAttachment(7), nil},
		{"depth at depth", gpu.FormatDepth24, gpu.AttachmentDepth, nil},
		{"depth at color0", gpu.FormatDepth24, gpu.ColorAttachment(0), ErrAttachmentMismatch},
		{"color at depth", gpu.FormatRGBA8, gpu.AttachmentDepth, ErrAttachmentMismatch},
		{"depth-stencil at depth", gpu.FormatDepth24Stencil8, gpu.AttachmentDepth, ErrAttachmentMismatch},
		{"stencil at stencil", gpu.FormatStencil8, gpu.AttachmentStencil, nil},
		{"color one past max", gpu.FormatRGBA8, gpu.ColorAttachment(8), ErrAttachmentRange},
		{"depth at negative color index", gpu.FormatDepth24Stencil8, gpu.ColorAttachment(-1), ErrAttachmentRange},
		{"depth at wrapping color index", gpu.FormatDepth24, gpu.ColorAttachment(253), ErrAttachmentRange},
		{"color at wrapping color index", gpu.FormatRGBA8, gpu.ColorAttachment(256), ErrAttachmentRange},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := m.AttachTexture(fb, uploaded(dev, tt.name, tt.format), tt.point)
			if tt.want == nil && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Fatalf("error = %v, want %v", err, tt.want)
			}
		})
	}
	if got := len(dev.Framebuffers[m.Framebuffer(fb).DeviceID].Attachments); got != 4 {
		t.Errorf("%d attachments recorded, want 4", got)
	}
}

func TestAttachRequiresUploadedTexture(t *testing.T) {
	m := NewManager(gputest.New(), 64, 64)
	fb := m.CreateFramebuffer("target")
	tex := resource.NewRenderTexture("albedo", 64, 64, gpu.FormatRGBA8)
	if err := m.AttachTexture(fb, tex, gpu.ColorAttachment(0)); !errors.Is(err, ErrNotUploaded) {
		t.Errorf("error = %v, want ErrNotUploaded", err)
	}
}

func TestRenderbufferAttachment(t *testing.T) {
	dev := gputest.New()
	m := NewManager(dev, 800, 600)
	fb := m.CreateFramebuffer("gbuffer")

	rb, err := m.CreateRenderbuffer("depth", gpu.FormatDepth24Stencil8, 1024, 768)
	if err != nil {
		t.Fatal(err)
	}
	if err := m.AttachRenderbuffer(fb, rb, gpu.ColorAttachment(0)); !errors.Is(err, ErrAttachmentMismatch) {
		t.Errorf("depth-stencil at color0 = %v", err)
	}
	if err := m.AttachRenderbuffer(fb, rb, gpu.AttachmentDepthStencil); err != nil {
		t.Fatalf("AttachRenderbuffer: %v", err)
	}
	if m.Renderbuffer(rb).Point != gpu.AttachmentDepthStencil {
		t.Error("renderbuffer point tag not recorded")
	}
	if f := m.Framebuffer(fb); f.Width != 1024 || f.Height != 768 {
		t.Errorf("framebuffer size = %dx%d", f.Width, f.Height)
	}

	color, _ := m.CreateRenderbuffer("color", gpu.FormatRGBA8, 16, 16)
	if err := m.AttachRenderbuffer(fb, color, gpu.ColorAttachment(dev.DeviceInfo.MaxColorAttachments)); !errors.Is(err, ErrAttachmentRange) {
		t.Errorf("one past max = %v, want ErrAttachmentRange", err)
	}
	if _, err := m.CreateRenderbuffer("empty", gpu.FormatRGBA8, 0, 16); err == nil {
		t.Error("expected error for zero width")
	}
	if err := m.AttachRenderbuffer(fb, registry.Handle(42), gpu.AttachmentDepth); !errors.Is(err, registry.ErrInvalidHandle) {
		t.Errorf("unknown renderbuffer = %v", err)
	}
}

func TestResizeRenderbuffer(t *testing.T) {
	dev := gputest.New()
	m := NewManager(dev, 800, 600)
	rb, _ := m.CreateRenderbuffer("depth", gpu.FormatDepth24Stencil8, 800, 600)
	old := m.Renderbuffer(rb).DeviceID

	if err := m.ResizeRenderbuffer(rb, 800, 600); err != nil {
		t.Fatal(err)
	}
	if dev.Count("DeleteRenderbuffer") != 0 {
		t.Error("same-size resize should not reallocate")
	}
	if err := m.ResizeRenderbuffer(rb, 1280, 720); err != nil {
		t.Fatal(err)
	}
	r := m.Renderbuffer(rb)
	if r.DeviceID == old || r.Width != 1280 || r.Height != 720 {
		t.Errorf("renderbuffer after resize = %+v", r)
	}
	if _, ok := dev.Renderbuffers[old]; ok {
		t.Error("old storage not deleted")
	}
}

func TestSetActiveColorAttachments(t *testing.T) {
	dev := gputest.New()
	m := NewManager(dev, 800, 600)
	fb := m.CreateFramebuffer("mrt")

	points := []gpu.AttachmentPoint{gpu.ColorAttachment(0), gpu.ColorAttachment(1), gpu.ColorAttachment(2)}
	if err := m.SetActiveColorAttachments(fb, points...); err != nil {
		t.Fatal(err)
	}
	if got := dev.Framebuffers[m.Framebuffer(fb).DeviceID].DrawBuffers; len(got) != 3 || got[2] != gpu.ColorAttachment(2) {
		t.Errorf("draw buffers = %v", got)
	}

	tooMany := make([]gpu.AttachmentPoint, 9)
	for i := range tooMany {
		tooMany[i] = gpu.ColorAttachment(i)
	}
	if err := m.SetActiveColorAttachments(fb, tooMany...); !errors.Is(err, ErrTooManyAttachments) {
		t.Errorf("9 attachments = %v, want ErrTooManyAttachments", err)
	}
	if err := m.SetActiveColorAttachments(fb, gpu.AttachmentDepth); !errors.Is(err, ErrAttachmentMismatch) {
		t.Errorf("depth as draw buffer = %v", err)
	}
	if err := m.SetActiveColorAttachments(fb, gpu.ColorAttachment(0), gpu.ColorAttachment(1), gpu.ColorAttachment(0)); !errors.Is(err, ErrAttachmentMismatch) {
		t.Errorf("duplicate draw buffer = %v, want ErrAttachmentMismatch", err)
	}
	if err := m.SetActiveColorAttachments(fb, gpu.ColorAttachment(-1)); !errors.Is(err, ErrAttachmentRange) {
		t.Errorf("invalid draw buffer = %v, want ErrAttachmentRange", err)
	}
	if len(m.Framebuffer(fb).Active) != 3 {
		t.Error("failed call must keep the previous active list")
	}
}

func TestCompletenessAndBlit(t *testing.T) {
	dev := gputest.New()
	m := NewManager(dev, 800, 600)
	fb := m.CreateFramebuffer("offscreen")

	if m.IsComplete(fb) {
		t.Error("framebuffer without attachments should be incomplete")
	}
	if err := m.AttachTexture(fb, uploaded(dev, "color", gpu.FormatRGBA8), gpu.ColorAttachment(0)); err != nil {
		t.Fatal(err)
	}
	if err := m.Check(fb); err != nil {
		t.Errorf("Check = %v", err)
	}
	dev.Incomplete[m.Framebuffer(fb).DeviceID] = true
	if err := m.Check(fb); !errors.Is(err, ErrIncomplete) {
		t.Errorf("Check = %v, want ErrIncomplete", err)
	}

	if err := m.Bind(fb); err != nil {
		t.Fatal(err)
	}
	if err := m.Blit(fb, 0, Default); err != nil {
		t.Fatal(err)
	}
	calls := dev.Find("BlitFramebuffer")
	if len(calls) != 1 {
		t.Fatalf("blit calls = %d", len(calls))
	}
	args := calls[0].Args
	if args[0] != m.Framebuffer(fb).DeviceID || args[2] != uint32(0) {
		t.Errorf("blit from %v to %v", args[0], args[2])
	}
	if args[3] != image.Rect(0, 0, 320, 240) || args[4] != image.Rect(0, 0, 800, 600) {
		t.Errorf("blit rects %v -> %v", args[3], args[4])
	}
	if m.Bound() != Default || dev.Framebuffer != 0 {
		t.Error("blit should leave the destination bound")
	}
	if err := m.Blit(fb, 8, Default); !errors.Is(err, ErrAttachmentRange) {
		t.Errorf("blit from color8 = %v", err)
	}
}

func TestReadPixelsAndShutdown(t *testing.T) {
	dev := gputest.New()
	dev.Pixel = [4]byte{10, 20, 30, 255}
	m := NewManager(dev, 4, 2)
	pixels, rect, err := m.ReadPixels(Default)
	if err != nil {
		t.Fatal(err)
	}
	if rect.Dx() != 4 || rect.Dy() != 2 || len(pixels) != 32 || pixels[4] != 10 {
		t.Errorf("read %v bytes over %v", len(pixels), rect)
	}

	fb := m.CreateFramebuffer("a")
	_, _ = m.CreateRenderbuffer("rb", gpu.FormatDepth24, 4, 4)
	m.Shutdown()
	if len(dev.Framebuffers) != 0 || len(dev.Renderbuffers) != 0 {
		t.Errorf("leaked %d framebuffers, %d renderbuffers", len(dev.Framebuffers), len(dev.Renderbuffers))
	}
	if m.Framebuffer(fb).DeviceID != 0 {
		t.Error("destroyed framebuffer keeps a device id")
	}
}
