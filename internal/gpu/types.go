package gpu

import (
	"fmt"
	"math"
)

// ShaderKind identifies a programmable pipeline stage.
type ShaderKind uint8

const (
	ShaderVertex ShaderKind = iota
	ShaderTessControl
	ShaderTessEval
	ShaderGeometry
	ShaderFragment
	ShaderCompute

	ShaderKindCount = 6
)

// Bit returns the kind's flag in a linked-kind bitmask.
func (k ShaderKind) Bit() uint8 {
	return 1 << k
}

func (k ShaderKind) String() string {
	switch k {
	case ShaderVertex:
		return "vertex"
	case ShaderTessControl:
		return "tess-control"
	case ShaderTessEval:
		return "tess-eval"
	case ShaderGeometry:
		return "geometry"
	case ShaderFragment:
		return "fragment"
	case ShaderCompute:
		return "compute"
	}
	return fmt.Sprintf("ShaderKind(%d)", uint8(k))
}

// DataType is a scalar element type of vertex attributes and index buffers.
type DataType uint8

const (
	TypeFloat DataType = iota
	TypeInt
	TypeUInt
	TypeShort
	TypeUShort
	TypeByte
	TypeUByte
)

// Size returns the byte size of one element.
func (t DataType) Size() int {
	switch t {
	case TypeFloat, TypeInt, TypeUInt:
		return 4
	case TypeShort, TypeUShort:
		return 2
	default:
		return 1
	}
}

func (t DataType) String() string {
	switch t {
	case TypeFloat:
		return "float"
	case TypeInt:
		return "int"
	case TypeUInt:
		return "uint"
	case TypeShort:
		return "short"
	case TypeUShort:
		return "ushort"
	case TypeByte:
		return "byte"
	case TypeUByte:
		return "ubyte"
	}
	return fmt.Sprintf("DataType(%d)", uint8(t))
}

// IndexType is the element type of an index buffer.
type IndexType uint8

const (
	Index16 IndexType = iota
	Index32
)

// Size returns the byte size of one index.
func (t IndexType) Size() int {
	if t == Index16 {
		return 2
	}
	return 4
}

// BufferTarget selects the binding point a buffer is created for.
type BufferTarget uint8

const (
	BufferVertex BufferTarget = iota
	BufferIndex
	BufferUniform
)

// BufferUsage is the storage hint of a buffer.
type BufferUsage uint8

const (
	UsageStatic BufferUsage = iota
	UsageDynamic
	UsageStream
)

func (u BufferUsage) String() string {
	switch u {
	case UsageStatic:
		return "static"
	case UsageDynamic:
		return "dynamic"
	case UsageStream:
		return "stream"
	}
	return fmt.Sprintf("BufferUsage(%d)", uint8(u))
}

// StorageFlags describe how a uniform buffer may be accessed after creation.
type StorageFlags uint8

const (
	StoragePersistent StorageFlags = 1 << iota
	StorageCoherent
	StorageRead
	StorageWrite
	StorageDynamic
)

// Has reports whether all of flags are set.
func (s StorageFlags) Has(flags StorageFlags) bool {
	return s&flags == flags
}

// Usage picks the buffer usage hint implied by the flags.
func (s StorageFlags) Usage() BufferUsage {
	if s&(StorageDynamic|StoragePersistent) != 0 {
		return UsageDynamic
	}
	return UsageStatic
}

// TextureFormat is the internal format of textures and renderbuffers.
type TextureFormat uint8

const (
	FormatR8 TextureFormat = iota
	FormatRGB8
	FormatRGBA8
	FormatRGBA16F
	FormatRGBA32F
	FormatDepth24
	FormatDepth32F
	FormatStencil8
	FormatDepth24Stencil8
)

// BytesPerPixel returns the size of one texel as uploaded from the CPU.
func (f TextureFormat) BytesPerPixel() int {
	switch f {
	case FormatR8, FormatStencil8:
		return 1
	case FormatRGB8:
		return 3
	case FormatRGBA16F, FormatRGBA32F:
		// Float formats are uploaded from float32 data.
		return 16
	default:
		return 4
	}
}

// Class returns which kind of attachment point the format can be attached to.
func (f TextureFormat) Class() AttachmentClass {
	switch f {
	case FormatDepth24, FormatDepth32F:
		return ClassDepth
	case FormatStencil8:
		return ClassStencil
	case FormatDepth24Stencil8:
		return ClassDepthStencil
	default:
		return ClassColor
	}
}

func (f TextureFormat) String() string {
	switch f {
	case FormatR8:
		return "r8"
	case FormatRGB8:
		return "rgb8"
	case FormatRGBA8:
		return "rgba8"
	case FormatRGBA16F:
		return "rgba16f"
	case FormatRGBA32F:
		return "rgba32f"
	case FormatDepth24:
		return "depth24"
	case FormatDepth32F:
		return "depth32f"
	case FormatStencil8:
		return "stencil8"
	case FormatDepth24Stencil8:
		return "depth24stencil8"
	}
	return fmt.Sprintf("TextureFormat(%d)", uint8(f))
}

// ParseTextureFormat maps a config name to a format.
func ParseTextureFormat(name string) (TextureFormat, error) {
	for f := FormatR8; f <= FormatDepth24Stencil8; f++ {
		if f.String() == name {
			return f, nil
		}
	}
	return 0, fmt.Errorf("unknown texture format %q", name)
}

// AttachmentClass groups attachment points by the resources they accept.
type AttachmentClass uint8

const (
	ClassColor AttachmentClass = iota
	ClassDepth
	ClassStencil
	ClassDepthStencil
)

func (c AttachmentClass) String() string {
	switch c {
	case ClassColor:
		return "color"
	case ClassDepth:
		return "depth"
	case ClassStencil:
		return "stencil"
	case ClassDepthStencil:
		return "depth-stencil"
	}
	return fmt.Sprintf("AttachmentClass(%d)", uint8(c))
}

// AttachmentPoint is a framebuffer attachment slot.
// Color points are AttachmentColor0+i.
type AttachmentPoint uint8

const (
	AttachmentDepth AttachmentPoint = iota
	AttachmentStencil
	AttachmentDepthStencil
	AttachmentColor0

	// AttachmentInvalid is returned for color indices outside the
	// representable range. No device accepts it.
	AttachmentInvalid AttachmentPoint = math.MaxUint8
)

// MaxColorIndex is the largest index ColorAttachment represents.
const MaxColorIndex = int(AttachmentInvalid-AttachmentColor0) - 1

// ColorAttachment returns the i-th color attachment point, or
// AttachmentInvalid when i is negative or above MaxColorIndex.
func ColorAttachment(i int) AttachmentPoint {
	if i < 0 || i > MaxColorIndex {
		return AttachmentInvalid
	}
	return AttachmentColor0 + AttachmentPoint(i)
}

// Valid reports whether a names an attachment slot.
func (a AttachmentPoint) Valid() bool {
	return a != AttachmentInvalid
}

// Class returns the class of resources accepted by the point.
func (a AttachmentPoint) Class() AttachmentClass {
	switch a {
	case AttachmentDepth:
		return ClassDepth
	case AttachmentStencil:
		return ClassStencil
	case AttachmentDepthStencil:
		return ClassDepthStencil
	default:
		return ClassColor
	}
}

// ColorIndex returns the color slot index, or -1 for non-color points.
func (a AttachmentPoint) ColorIndex() int {
	if a < AttachmentColor0 || a == AttachmentInvalid {
		return -1
	}
	return int(a - AttachmentColor0)
}

func (a AttachmentPoint) String() string {
	switch a {
	case AttachmentDepth:
		return "depth"
	case AttachmentStencil:
		return "stencil"
	case AttachmentDepthStencil:
		return "depth-stencil"
	case AttachmentInvalid:
		return "invalid"
	}
	return fmt.Sprintf("color%d", a.ColorIndex())
}

// Filter is a texture sampling filter.
type Filter uint8

const (
	FilterLinear Filter = iota
	FilterNearest
)

// Wrap is a texture coordinate wrap mode.
type Wrap uint8

const (
	WrapRepeat Wrap = iota
	WrapClamp
)

// TextureDesc describes the storage of a 2D texture.
type TextureDesc struct {
	Width   int
	Height  int
	Format  TextureFormat
	Filter  Filter
	Wrap    Wrap
	Mipmaps bool
}

// Info describes the device, queried once at init.
type Info struct {
	Vendor              string
	Renderer            string
	Version             string
	MaxColorAttachments int
}
