package resource

import (
	"encoding/binary"
	"fmt"
	"math"
	"unsafe"

	"github.com/Faultbox/midgard-gfx/internal/gpu"
)

// Mesh holds interleaved vertex bytes and indices plus device handles once uploaded.
type Mesh struct {
	Name        string
	Vertices    []byte
	VertexCount int
	Layout      VertexLayout
	Indices     []byte // encoded as IndexType, little endian
	IndexCount  int
	IndexType   gpu.IndexType
	Dynamic     bool

	VAO uint32
	VBO uint32
	EBO uint32
}

// Uploaded reports whether the mesh has device buffers.
func (m *Mesh) Uploaded() bool {
	return m.VAO != 0
}

// IndexTypeFor picks 16-bit indices while the vertex count stays below
// 0xFFFE, keeping the two top values unused.
func IndexTypeFor(vertexCount int) gpu.IndexType {
	if vertexCount < math.MaxUint16-1 {
		return gpu.Index16
	}
	return gpu.Index32
}

// BuildMesh validates vertex data against the layout and encodes the indices.
func BuildMesh(name string, vertices []byte, vertexCount int, layout VertexLayout, indices []uint32, dynamic bool) (*Mesh, error) {
	if err := layout.Validate(); err != nil {
		return nil, fmt.Errorf("mesh %q: %w", name, err)
	}
	if len(vertices) != vertexCount*layout.Stride {
		return nil, fmt.Errorf("mesh %q: %d vertex bytes for %d vertices of stride %d", name, len(vertices), vertexCount, layout.Stride)
	}
	if len(indices) == 0 {
		return nil, fmt.Errorf("mesh %q: no indices", name)
	}

	typ := IndexTypeFor(vertexCount)
	encoded := make([]byte, 0, len(indices)*typ.Size())
	for i, idx := range indices {
		if int(idx) >= vertexCount {
			return nil, fmt.Errorf("mesh %q: index %d at %d out of range (%d vertices)", name, idx, i, vertexCount)
		}
		if typ == gpu.Index16 {
			encoded = binary.LittleEndian.AppendUint16(encoded, uint16(idx))
		} else {
			encoded = binary.LittleEndian.AppendUint32(encoded, idx)
		}
	}

	return &Mesh{
		Name:        name,
		Vertices:    vertices,
		VertexCount: vertexCount,
		Layout:      layout,
		Indices:     encoded,
		IndexCount:  len(indices),
		IndexType:   typ,
		Dynamic:     dynamic,
	}, nil
}

// BuildStandardMesh builds a mesh of Vertex values.
func BuildStandardMesh(name string, vertices []Vertex, indices []uint32, dynamic bool) (*Mesh, error) {
	return BuildMesh(name, VertexBytes(vertices), len(vertices), StandardLayout, indices, dynamic)
}

// VertexBytes reinterprets a slice of plain vertex structs as bytes without copying.
func VertexBytes[T any](v []T) []byte {
	if len(v) == 0 {
		return nil
	}
	var zero T
	return unsafe.Slice((*byte)(unsafe.Pointer(unsafe.SliceData(v))), len(v)*int(unsafe.Sizeof(zero)))
}
