package resource

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg" // JPEG decoder registration
	_ "image/png"  // PNG decoder registration
	"os"
	"path/filepath"
	"strings"

	_ "golang.org/x/image/bmp" // BMP decoder registration
)

// ErrUnsupportedImage reports an image encoding the loader cannot decode.
var ErrUnsupportedImage = errors.New("unsupported image")

// LoadTexture decodes an image file into an RGBA8 texture. TGA files are
// recognized by extension; other formats by their header.
func LoadTexture(name, path string) (*Texture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading texture %q: %w", name, err)
	}
	img, err := DecodeImage(data, filepath.Ext(path))
	if err != nil {
		return nil, fmt.Errorf("texture %q: %w", name, err)
	}
	return TextureFromImage(name, img), nil
}

// DecodeImage decodes PNG, JPEG, BMP or, when ext is ".tga", TGA data.
func DecodeImage(data []byte, ext string) (image.Image, error) {
	if strings.EqualFold(ext, ".tga") {
		return decodeTGA(data)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnsupportedImage, err)
	}
	return img, nil
}

// TGA image types.
const (
	tgaTrueColor    = 2
	tgaTrueColorRLE = 10
)

// decodeTGA decodes uncompressed and RLE true-color TGA images with 24 or
// 32 bits per pixel.
func decodeTGA(data []byte) (image.Image, error) {
	if len(data) < 18 {
		return nil, fmt.Errorf("%w: TGA data too short", ErrUnsupportedImage)
	}
	idLength := int(data[0])
	colorMapType, imageType := data[1], data[2]
	width := int(data[12]) | int(data[13])<<8
	height := int(data[14]) | int(data[15])<<8
	bpp := int(data[16])
	topToBottom := data[17]&0x20 != 0

	switch {
	case colorMapType != 0:
		return nil, fmt.Errorf("%w: color-mapped TGA", ErrUnsupportedImage)
	case imageType != tgaTrueColor && imageType != tgaTrueColorRLE:
		return nil, fmt.Errorf("%w: TGA type %d", ErrUnsupportedImage, imageType)
	case bpp != 24 && bpp != 32:
		return nil, fmt.Errorf("%w: TGA bit depth %d", ErrUnsupportedImage, bpp)
	case width == 0 || height == 0:
		return nil, fmt.Errorf("%w: empty TGA", ErrUnsupportedImage)
	}
	offset := 18 + idLength
	if offset > len(data) {
		return nil, fmt.Errorf("%w: TGA data truncated", ErrUnsupportedImage)
	}
	src := data[offset:]
	bytesPerPixel := bpp / 8

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	n := 0
	put := func(c color.RGBA) {
		y := n / width
		if !topToBottom {
			y = height - 1 - y
		}
		img.SetRGBA(n%width, y, c)
		n++
	}
	pixel := func() (color.RGBA, bool) {
		if len(src) < bytesPerPixel {
			return color.RGBA{}, false
		}
		c := color.RGBA{R: src[2], G: src[1], B: src[0], A: 255}
		if bytesPerPixel == 4 {
			c.A = src[3]
		}
		src = src[bytesPerPixel:]
		return c, true
	}

	total := width * height
	if imageType == tgaTrueColor {
		if len(src) < total*bytesPerPixel {
			return nil, fmt.Errorf("%w: TGA pixel data truncated", ErrUnsupportedImage)
		}
		for n < total {
			c, _ := pixel()
			put(c)
		}
		return img, nil
	}

	for n < total && len(src) > 0 {
		packet := src[0]
		src = src[1:]
		count := int(packet&0x7F) + 1
		if packet&0x80 != 0 {
			c, ok := pixel()
			if !ok {
				break
			}
			for i := 0; i < count && n < total; i++ {
				put(c)
			}
			continue
		}
		for i := 0; i < count && n < total; i++ {
			c, ok := pixel()
			if !ok {
				break
			}
			put(c)
		}
	}
	return img, nil
}
