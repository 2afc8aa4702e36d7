package resource

import (
	"fmt"

	"github.com/Faultbox/midgard-gfx/internal/gpu"
)

// VertexAttribute describes one attribute of an interleaved vertex.
// Offset is explicit so upload does not depend on declaration order.
type VertexAttribute struct {
	Name       string
	Slot       uint32
	Count      int
	Type       gpu.DataType
	Normalized bool
	Offset     int
	Active     bool
}

// Attr returns an active attribute with offset 0; PackedLayout fills offsets.
func Attr(name string, slot uint32, count int, typ gpu.DataType) VertexAttribute {
	return VertexAttribute{Name: name, Slot: slot, Count: count, Type: typ, Active: true}
}

// Size returns the attribute's byte size.
func (a VertexAttribute) Size() int {
	return a.Count * a.Type.Size()
}

// VertexLayout is the byte layout of one vertex.
type VertexLayout struct {
	Stride     int
	Attributes []VertexAttribute
}

// PackedLayout assigns tightly packed offsets in the given order and sets the stride.
func PackedLayout(attrs ...VertexAttribute) VertexLayout {
	layout := VertexLayout{Attributes: make([]VertexAttribute, len(attrs))}
	offset := 0
	for i, a := range attrs {
		a.Offset = offset
		offset += a.Size()
		layout.Attributes[i] = a
	}
	layout.Stride = offset
	return layout
}

// Validate checks that every attribute fits in the stride and slots are unique.
func (l VertexLayout) Validate() error {
	if l.Stride <= 0 {
		return fmt.Errorf("vertex layout stride must be positive, got %d", l.Stride)
	}
	slots := make(map[uint32]string, len(l.Attributes))
	for _, a := range l.Attributes {
		if a.Count < 1 || a.Count > 4 {
			return fmt.Errorf("attribute %q: element count %d out of range 1..4", a.Name, a.Count)
		}
		if a.Offset < 0 || a.Offset+a.Size() > l.Stride {
			return fmt.Errorf("attribute %q: bytes [%d,%d) exceed stride %d", a.Name, a.Offset, a.Offset+a.Size(), l.Stride)
		}
		if other, dup := slots[a.Slot]; dup {
			return fmt.Errorf("attributes %q and %q share slot %d", other, a.Name, a.Slot)
		}
		slots[a.Slot] = a.Name
	}
	return nil
}

// Vertex is the standard lit, textured vertex.
type Vertex struct {
	Position [3]float32
	Normal   [3]float32
	TexCoord [2]float32
}

// StandardLayout matches Vertex.
var StandardLayout = PackedLayout(
	Attr("a_position", 0, 3, gpu.TypeFloat),
	Attr("a_normal", 1, 3, gpu.TypeFloat),
	Attr("a_texcoord", 2, 2, gpu.TypeFloat),
)
