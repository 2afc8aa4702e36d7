package upload

import (
	"errors"
	"image/color"
	"slices"
	"testing"

	"github.com/Faultbox/midgard-gfx/internal/engine/resource"
	"github.com/Faultbox/midgard-gfx/internal/gpu"
	"github.com/Faultbox/midgard-gfx/internal/gpu/gputest"
)

func TestTextureUploadIsOneShot(t *testing.T) {
	dev := gputest.New()
	u := New(dev)
	tex := resource.Solid("white", color.RGBA{255, 255, 255, 255})

	if err := u.Texture(tex); err != nil {
		t.Fatalf("first upload: %v", err)
	}
	first := tex.DeviceID
	if first == 0 {
		t.Fatal("upload did not set a device id")
	}
	if err := u.Texture(tex); !errors.Is(err, ErrAlreadyUploaded) {
		t.Errorf("second upload = %v, want ErrAlreadyUploaded", err)
	}
	if tex.DeviceID != first {
		t.Errorf("device id changed from %d to %d", first, tex.DeviceID)
	}
	if got := dev.Count("CreateTexture"); got != 1 {
		t.Errorf("CreateTexture called %d times", got)
	}

	u.ReleaseTexture(tex)
	if tex.Uploaded() || len(dev.Textures) != 0 {
		t.Error("release should delete the device texture")
	}
	if err := u.Texture(tex); err != nil {
		t.Errorf("upload after release: %v", err)
	}
}

func TestTextureUploadRejectsBadPixels(t *testing.T) {
	u := New(gputest.New())
	tex := &resource.Texture{
		Name:   "short",
		Desc:   gpu.TextureDesc{Width: 4, Height: 4, Format: gpu.FormatRGBA8},
		Pixels: make([]byte, 10),
	}
	if err := u.Texture(tex); err == nil || tex.Uploaded() {
		t.Errorf("expected size error, got %v (uploaded=%v)", err, tex.Uploaded())
	}
}

func TestMeshUpload(t *testing.T) {
	tests := []struct {
		name    string
		dynamic bool
		usage   gpu.BufferUsage
	}{
		{"static", false, gpu.UsageStatic},
		{"dynamic", true, gpu.UsageDynamic},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := gputest.New()
			u := New(dev)
			m, err := resource.Cube("cube", 1)
			if err != nil {
				t.Fatal(err)
			}
			m.Dynamic = tt.dynamic

			if err := u.Mesh(m); err != nil {
				t.Fatalf("Mesh: %v", err)
			}
			if m.VAO == 0 || m.VBO == 0 || m.EBO == 0 {
				t.Fatalf("handles not set: %+v", m)
			}
			if vb := dev.Buffers[m.VBO]; vb.Usage != tt.usage || len(vb.Data) != len(m.Vertices) {
				t.Errorf("vertex buffer usage %s, %d bytes", vb.Usage, len(vb.Data))
			}
			if ib := dev.Buffers[m.EBO]; ib.Target != gpu.BufferIndex || len(ib.Data) != 36*2 {
				t.Errorf("index buffer %+v", ib)
			}
			if dev.VertexArray != 0 {
				t.Error("vertex array should be unbound after upload")
			}
			if err := u.Mesh(m); !errors.Is(err, ErrAlreadyUploaded) {
				t.Errorf("second upload = %v", err)
			}
		})
	}
}

func TestMeshUploadUsesExplicitOffsets(t *testing.T) {
	dev := gputest.New()
	u := New(dev)

	// Declared out of byte order, with an inactive attribute in between.
	layout := resource.VertexLayout{Stride: 36, Attributes: []resource.VertexAttribute{
		{Name: "a_color", Slot: 2, Count: 4, Type: gpu.TypeUByte, Normalized: true, Offset: 32, Active: true},
		{Name: "a_unused", Slot: 3, Count: 2, Type: gpu.TypeFloat, Offset: 24},
		{Name: "a_position", Slot: 0, Count: 3, Type: gpu.TypeFloat, Offset: 0, Active: true},
		{Name: "a_normal", Slot: 1, Count: 3, Type: gpu.TypeFloat, Offset: 12, Active: true},
	}}
	m, err := resource.BuildMesh("custom", make([]byte, 3*36), 3, layout, []uint32{0, 1, 2}, false)
	if err != nil {
		t.Fatal(err)
	}
	if err := u.Mesh(m); err != nil {
		t.Fatal(err)
	}

	calls := dev.Find("VertexAttribPointer")
	if len(calls) != 3 {
		t.Fatalf("%d attribute pointers, want 3", len(calls))
	}
	offsets := map[uint32]int{}
	for _, c := range calls {
		offsets[c.Args[0].(uint32)] = c.Args[5].(int)
		if c.Args[4].(int) != 36 {
			t.Errorf("stride = %v", c.Args[4])
		}
	}
	want := map[uint32]int{0: 0, 1: 12, 2: 32}
	for slot, off := range want {
		if offsets[slot] != off {
			t.Errorf("slot %d offset %d, want %d", slot, offsets[slot], off)
		}
	}

	// Index buffer creation must happen while the vertex array is bound.
	ops := dev.Ops()
	unbind := slices.Index(ops, "BindVertexArray")
	ebo := -1
	for i, op := range ops {
		if op == "CreateBuffer" {
			ebo = i
		}
	}
	if unbind < 0 || ebo < 0 || ebo > unbind {
		t.Errorf("unexpected call order %v", ops)
	}
}

func TestUpdateMesh(t *testing.T) {
	dev := gputest.New()
	u := New(dev)
	static, _ := resource.Cube("static", 1)
	if err := u.UpdateMesh(static, static.Vertices); !errors.Is(err, ErrNotUploaded) {
		t.Errorf("update before upload = %v", err)
	}
	_ = u.Mesh(static)
	if err := u.UpdateMesh(static, static.Vertices); !errors.Is(err, ErrNotDynamic) {
		t.Errorf("update static = %v", err)
	}

	dyn, _ := resource.Cube("dynamic", 1)
	dyn.Dynamic = true
	_ = u.Mesh(dyn)
	next := make([]byte, len(dyn.Vertices))
	next[0] = 7
	if err := u.UpdateMesh(dyn, next); err != nil {
		t.Fatal(err)
	}
	if dev.Buffers[dyn.VBO].Data[0] != 7 {
		t.Error("vertex buffer not updated")
	}
	if err := u.UpdateMesh(dyn, next[:10]); err == nil {
		t.Error("expected size mismatch")
	}
}

func TestLibraryUploadAndRelease(t *testing.T) {
	dev := gputest.New()
	u := New(dev)
	lib := resource.NewLibrary()
	cube, _ := resource.Cube("cube", 1)
	lib.Meshes.Add(cube)
	lib.Textures.Add(resource.Solid("black", color.RGBA{A: 255}))

	if err := u.Library(lib); err != nil {
		t.Fatal(err)
	}
	if err := u.Library(lib); err != nil {
		t.Errorf("second library upload should skip uploaded resources: %v", err)
	}
	u.ReleaseLibrary(lib)
	if len(dev.Buffers) != 0 || len(dev.Textures) != 0 || len(dev.VertexArrays) != 0 {
		t.Errorf("leaked objects: %d buffers, %d textures, %d vaos", len(dev.Buffers), len(dev.Textures), len(dev.VertexArrays))
	}
}
