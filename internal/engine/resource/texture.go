package resource

import (
	"fmt"
	"image"
	"image/color"

	"golang.org/x/image/draw"

	"github.com/Faultbox/midgard-gfx/internal/gpu"
)

// Texture is CPU-side texture data plus its device handle once uploaded.
type Texture struct {
	Name     string
	Desc     gpu.TextureDesc
	Pixels   []byte // nil allocates uninitialized storage
	DeviceID uint32
}

// Uploaded reports whether the texture has device storage.
func (t *Texture) Uploaded() bool {
	return t.DeviceID != 0
}

// CheckPixels verifies the pixel data matches the description.
func (t *Texture) CheckPixels() error {
	if t.Desc.Width <= 0 || t.Desc.Height <= 0 {
		return fmt.Errorf("texture %q: invalid size %dx%d", t.Name, t.Desc.Width, t.Desc.Height)
	}
	if t.Pixels == nil {
		return nil
	}
	want := t.Desc.Width * t.Desc.Height * t.Desc.Format.BytesPerPixel()
	if len(t.Pixels) != want {
		return fmt.Errorf("texture %q: pixel data size mismatch: expected %d, got %d", t.Name, want, len(t.Pixels))
	}
	return nil
}

// NewRenderTexture describes an uninitialized render target texture.
func NewRenderTexture(name string, width, height int, format gpu.TextureFormat) *Texture {
	return &Texture{
		Name: name,
		Desc: gpu.TextureDesc{
			Width:  width,
			Height: height,
			Format: format,
			Filter: gpu.FilterNearest,
			Wrap:   gpu.WrapClamp,
		},
	}
}

// TextureFromImage converts any image to an RGBA8 texture.
func TextureFromImage(name string, img image.Image) *Texture {
	b := img.Bounds()
	rgba, ok := img.(*image.RGBA)
	if !ok || rgba.Stride != b.Dx()*4 {
		rgba = image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
	}
	return &Texture{
		Name:   name,
		Desc:   gpu.TextureDesc{Width: b.Dx(), Height: b.Dy(), Format: gpu.FormatRGBA8, Mipmaps: true},
		Pixels: rgba.Pix,
	}
}

// Checkerboard generates a size x size texture of alternating cells.
func Checkerboard(name string, size, cell int, a, b color.RGBA) *Texture {
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			c := a
			if (x/cell+y/cell)%2 == 1 {
				c = b
			}
			img.SetRGBA(x, y, c)
		}
	}
	t := TextureFromImage(name, img)
	t.Desc.Filter = gpu.FilterNearest
	t.Desc.Mipmaps = false
	return t
}

// Solid generates a 1x1 texture of a single color.
func Solid(name string, c color.RGBA) *Texture {
	img := image.NewRGBA(image.Rect(0, 0, 1, 1))
	img.SetRGBA(0, 0, c)
	t := TextureFromImage(name, img)
	t.Desc.Mipmaps = false
	return t
}
