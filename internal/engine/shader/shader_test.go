package shader

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/midgard-gfx/internal/engine/registry"
	"github.com/Faultbox/midgard-gfx/internal/engine/resource"
	"github.com/Faultbox/midgard-gfx/internal/gpu"
	"github.com/Faultbox/midgard-gfx/internal/gpu/gputest"
)

const (
	vertSrc = "#version 410 core\nvoid main() { gl_Position = vec4(0); }\n"
	fragSrc = "#version 410 core\nout vec4 color;\nvoid main() { color = vec4(1); }\n"
)

func newProgram(t *testing.T, lib *Library) registry.Handle {
	t.Helper()
	vs := lib.LoadStageSource("basic.vert", vertSrc, gpu.ShaderVertex)
	fs := lib.LoadStageSource("basic.frag", fragSrc, gpu.ShaderFragment)
	h, err := lib.CreateProgram("basic", resource.StandardLayout.Attributes, vs, fs)
	if err != nil {
		t.Fatalf("CreateProgram: %v", err)
	}
	return h
}

func TestLoadStageFromDisk(t *testing.T) {
	dev := gputest.New()
	lib := NewLibrary(dev, false)

	path := filepath.Join(t.TempDir(), "basic.vert")
	if err := os.WriteFile(path, []byte(vertSrc), 0o644); err != nil {
		t.Fatal(err)
	}
	h, err := lib.LoadStage("basic.vert", path, gpu.ShaderVertex)
	if err != nil {
		t.Fatalf("LoadStage: %v", err)
	}
	s := lib.Stage(h)
	if s.Source != vertSrc || s.Path != path || s.State != StageLoaded || s.DeviceID != 0 {
		t.Errorf("unexpected stage after load: %+v", s)
	}
	if dev.Count("CreateShader") != 0 {
		t.Error("loading must not compile")
	}
	if lib.FindStage("basic.vert") != h {
		t.Error("FindStage did not return the loaded stage")
	}

	if _, err := lib.LoadStage("missing", filepath.Join(t.TempDir(), "nope.frag"), gpu.ShaderFragment); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestCreateProgramLinksAndReleasesStages(t *testing.T) {
	dev := gputest.New()
	lib := NewLibrary(dev, false)
	h := newProgram(t, lib)

	p := lib.Program(h)
	if p.State != ProgramLinked {
		t.Fatalf("state = %s, want linked", p.State)
	}
	if !p.HasKind(gpu.ShaderVertex) || !p.HasKind(gpu.ShaderFragment) || p.HasKind(gpu.ShaderGeometry) {
		t.Errorf("linked mask = %06b", p.Linked)
	}
	for _, sh := range []registry.Handle{p.Stages[gpu.ShaderVertex], p.Stages[gpu.ShaderFragment]} {
		s := lib.Stage(sh)
		if s.State != StageReleased || s.DeviceID != 0 {
			t.Errorf("stage %s not released: %+v", s.Name, s)
		}
	}
	if got := dev.Count("DeleteShader"); got != 2 {
		t.Errorf("DeleteShader called %d times, want 2", got)
	}
	attribs := dev.Programs[p.DeviceID].Attribs
	if attribs["a_position"] != 0 || attribs["a_normal"] != 1 || attribs["a_texcoord"] != 2 {
		t.Errorf("attribute bindings = %v", attribs)
	}
}

func TestCreateProgramSkipsDuplicateKind(t *testing.T) {
	dev := gputest.New()
	lib := NewLibrary(dev, false)
	vs := lib.LoadStageSource("a.vert", vertSrc, gpu.ShaderVertex)
	vs2 := lib.LoadStageSource("b.vert", vertSrc, gpu.ShaderVertex)
	fs := lib.LoadStageSource("a.frag", fragSrc, gpu.ShaderFragment)

	h, err := lib.CreateProgram("dup", nil, vs, vs2, fs)
	if err != nil {
		t.Fatalf("CreateProgram: %v", err)
	}
	p := lib.Program(h)
	if p.Stages[gpu.ShaderVertex] != vs {
		t.Errorf("vertex slot = %s, want first stage %s", p.Stages[gpu.ShaderVertex], vs)
	}
	if s := lib.Stage(vs2); s.State != StageLoaded {
		t.Errorf("skipped stage state = %s, want loaded", s.State)
	}
	if got := dev.Count("AttachShader"); got != 2 {
		t.Errorf("AttachShader called %d times, want 2", got)
	}
}

func TestFragmentCompileFailure(t *testing.T) {
	dev := gputest.New()
	lib := NewLibrary(dev, false)
	vs := lib.LoadStageSource("ok.vert", vertSrc, gpu.ShaderVertex)
	fs := lib.LoadStageSource("broken.frag", fragSrc+gputest.CompileError, gpu.ShaderFragment)

	h, err := lib.CreateProgram("broken", nil, vs, fs)
	if !errors.Is(err, ErrLink) || !errors.Is(err, ErrCompile) {
		t.Fatalf("error = %v, want ErrLink and ErrCompile", err)
	}
	p := lib.Program(h)
	if p.State != ProgramFailed || p.Diagnostic == "" {
		t.Errorf("program = %s with diagnostic %q", p.State, p.Diagnostic)
	}
	frag := lib.Stage(fs)
	if frag.State != StageAttached || frag.DeviceID != 0 {
		t.Errorf("fragment stage = %s id %d, want attached with no device object", frag.State, frag.DeviceID)
	}
	vert := lib.Stage(vs)
	if vert.State != StageReleased || vert.DeviceID != 0 {
		t.Errorf("vertex stage = %s id %d, want released", vert.State, vert.DeviceID)
	}
	if got := dev.Count("DeleteShader"); got != 2 {
		t.Errorf("DeleteShader called %d times, want 2", got)
	}
	if dev.Count("LinkProgram") != 0 {
		t.Error("link must not be attempted after a compile failure")
	}
	if err := lib.Use(h); !errors.Is(err, ErrNotLinked) {
		t.Errorf("Use(failed) = %v, want ErrNotLinked", err)
	}
}

func TestLinkAndValidateFailures(t *testing.T) {
	tests := []struct {
		name string
		set  func(*gputest.Device)
		want error
	}{
		{"link", func(d *gputest.Device) { d.FailLink = true }, ErrLink},
		{"validate", func(d *gputest.Device) { d.FailValidate = true }, ErrValidate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := gputest.New()
			tt.set(dev)
			lib := NewLibrary(dev, false)
			vs := lib.LoadStageSource("v", vertSrc, gpu.ShaderVertex)
			fs := lib.LoadStageSource("f", fragSrc, gpu.ShaderFragment)
			h, err := lib.CreateProgram("p", nil, vs, fs)
			if !errors.Is(err, tt.want) {
				t.Fatalf("error = %v, want %v", err, tt.want)
			}
			p := lib.Program(h)
			if p.State != ProgramFailed || p.DeviceID != 0 {
				t.Errorf("program = %+v", p)
			}
			if dev.Count("DeleteProgram") != 1 {
				t.Error("failed program should be deleted on the device")
			}
		})
	}
}

func TestReleasedStageCannotBeRelinked(t *testing.T) {
	lib := NewLibrary(gputest.New(), false)
	h := newProgram(t, lib)
	vs := lib.Program(h).Stages[gpu.ShaderVertex]
	if _, err := lib.CreateProgram("again", nil, vs); !errors.Is(err, ErrStageReleased) {
		t.Errorf("error = %v, want ErrStageReleased", err)
	}
	if _, err := lib.CreateProgram("bogus", nil, registry.Handle(99)); !errors.Is(err, registry.ErrInvalidHandle) {
		t.Errorf("error = %v, want ErrInvalidHandle", err)
	}
}

func TestResolveUniformsIsStable(t *testing.T) {
	dev := gputest.New()
	dev.InactiveUniforms["u_unused"] = true
	lib := NewLibrary(dev, false)
	h := newProgram(t, lib)

	for _, u := range []struct {
		name string
		typ  UniformType
	}{
		{"u_model", UniformMat4},
		{"u_normal", UniformMat3},
		{"u_shininess", UniformFloat},
		{"u_unused", UniformVec3},
	} {
		if err := lib.DeclareUniform(h, u.name, u.typ); err != nil {
			t.Fatalf("DeclareUniform(%s): %v", u.name, err)
		}
	}
	if err := lib.ResolveUniforms(h); err != nil {
		t.Fatalf("ResolveUniforms: %v", err)
	}
	p := lib.Program(h)
	first := append([]Uniform(nil), p.Uniforms...)
	if err := lib.ResolveUniforms(h); err != nil {
		t.Fatalf("second ResolveUniforms: %v", err)
	}
	for i, u := range p.Uniforms {
		if u.Location != first[i].Location {
			t.Errorf("%s moved from %d to %d", u.Name, first[i].Location, u.Location)
		}
	}
	if p.State != ProgramReady {
		t.Errorf("state = %s, want ready", p.State)
	}
	if p.uniform("u_unused").Location != -1 {
		t.Error("inactive uniform should resolve to -1")
	}
}

func TestDeclareUniformRejectsBadNames(t *testing.T) {
	lib := NewLibrary(gputest.New(), false)
	h := newProgram(t, lib)

	tests := []struct {
		name string
		want error
	}{
		{"", ErrUniformName},
		{"u_bad\x00name", ErrUniformName},
	}
	for _, tt := range tests {
		if err := lib.DeclareUniform(h, tt.name, UniformInt); !errors.Is(err, tt.want) {
			t.Errorf("DeclareUniform(%q) = %v, want %v", tt.name, err, tt.want)
		}
	}
	if err := lib.DeclareUniform(h, "u_x", UniformInt); err != nil {
		t.Fatal(err)
	}
	if err := lib.DeclareUniform(h, "u_x", UniformFloat); !errors.Is(err, ErrDuplicateUniform) {
		t.Errorf("duplicate declare = %v", err)
	}
}

func TestSetUniforms(t *testing.T) {
	dev := gputest.New()
	lib := NewLibrary(dev, true)
	h := newProgram(t, lib)
	_ = lib.DeclareUniform(h, "u_model", UniformMat4)
	_ = lib.DeclareUniform(h, "u_diffuse", UniformInt)
	_ = lib.DeclareUniform(h, "u_color", UniformVec4)

	if err := lib.SetInt("u_diffuse", 0); !errors.Is(err, ErrNotBound) {
		t.Errorf("set before bind = %v, want ErrNotBound", err)
	}
	if err := lib.Use(h); err != nil {
		t.Fatal(err)
	}
	if err := lib.SetInt("u_diffuse", 0); !errors.Is(err, ErrUnresolved) {
		t.Errorf("set before resolve = %v, want ErrUnresolved", err)
	}
	if err := lib.ResolveUniforms(h); err != nil {
		t.Fatal(err)
	}

	model := mgl32.Translate3D(1, 2, 3)
	if err := lib.SetMat4("u_model", model); err != nil {
		t.Fatalf("SetMat4: %v", err)
	}
	calls := dev.Find("SetUniformMat4")
	if len(calls) != 1 || calls[0].Args[1] != true {
		t.Errorf("matrix upload should honor transpose flag: %+v", calls)
	}
	loc := lib.Program(h).uniform("u_model").Location
	if got := dev.Uniforms[loc]; got != [16]float32(model) {
		t.Errorf("uploaded %v", got)
	}

	if err := lib.SetFloat("u_model", 1); !errors.Is(err, ErrUniformType) {
		t.Errorf("type mismatch = %v, want ErrUniformType", err)
	}
	if err := lib.SetVec3("u_missing", mgl32.Vec3{}); !errors.Is(err, ErrUnknownUniform) {
		t.Errorf("unknown uniform = %v, want ErrUnknownUniform", err)
	}
	if err := lib.SetVec4("u_color", mgl32.Vec4{1, 0, 1, 1}); err != nil {
		t.Errorf("SetVec4: %v", err)
	}
}

func TestUseSkipsRedundantBinds(t *testing.T) {
	dev := gputest.New()
	lib := NewLibrary(dev, false)
	h := newProgram(t, lib)
	for range 3 {
		if err := lib.Use(h); err != nil {
			t.Fatal(err)
		}
	}
	if got := dev.Count("UseProgram"); got != 1 {
		t.Errorf("UseProgram called %d times, want 1", got)
	}
}

func TestUniformBuffers(t *testing.T) {
	dev := gputest.New()
	lib := NewLibrary(dev, false)

	rw, err := lib.CreateUniformBuffer("lights", 64, gpu.StorageRead|gpu.StorageWrite, []byte{1, 2, 3, 4})
	if err != nil {
		t.Fatalf("CreateUniformBuffer: %v", err)
	}
	if b := lib.UniformBuffer(rw); b.Binding != -1 {
		t.Errorf("new buffer binding = %d, want -1", b.Binding)
	}
	if err := lib.WriteUniformBuffer(rw, 8, []byte{9, 9}); err != nil {
		t.Fatalf("write: %v", err)
	}
	out := make([]byte, 10)
	if err := lib.ReadUniformBuffer(rw, 0, out); err != nil {
		t.Fatalf("read: %v", err)
	}
	want := []byte{1, 2, 3, 4, 0, 0, 0, 0, 9, 9}
	if string(out) != string(want) {
		t.Errorf("read back %v, want %v", out, want)
	}
	if err := lib.WriteUniformBuffer(rw, 60, make([]byte, 8)); !errors.Is(err, ErrBufferRange) {
		t.Errorf("overflow write = %v, want ErrBufferRange", err)
	}

	wo, _ := lib.CreateUniformBuffer("camera", 16, gpu.StorageDynamic, nil)
	if err := lib.ReadUniformBuffer(wo, 0, make([]byte, 4)); !errors.Is(err, ErrBufferAccess) {
		t.Errorf("read without flag = %v, want ErrBufferAccess", err)
	}
	if dev.Buffers[lib.UniformBuffer(wo).DeviceID].Usage != gpu.UsageDynamic {
		t.Error("dynamic flag should create a dynamic buffer")
	}
	ro, _ := lib.CreateUniformBuffer("const", 16, gpu.StorageRead, nil)
	if err := lib.WriteUniformBuffer(ro, 0, []byte{1}); !errors.Is(err, ErrBufferAccess) {
		t.Errorf("write without flag = %v, want ErrBufferAccess", err)
	}

	if err := lib.BindUniformBuffer(rw, 3); err != nil {
		t.Fatal(err)
	}
	if dev.Buffers[lib.UniformBuffer(rw).DeviceID].Base != 3 || lib.UniformBuffer(rw).Binding != 3 {
		t.Error("buffer not bound to slot 3")
	}
	if _, err := lib.CreateUniformBuffer("zero", 0, 0, nil); err == nil {
		t.Error("expected error for zero size")
	}
}

func TestUniformBlockBinding(t *testing.T) {
	dev := gputest.New()
	lib := NewLibrary(dev, false)
	h := newProgram(t, lib)
	if err := lib.DeclareUniformBlock(h, "Lights", 64, 2); err != nil {
		t.Fatal(err)
	}
	if err := lib.ResolveUniforms(h); err != nil {
		t.Fatal(err)
	}
	if got := dev.Programs[lib.Program(h).DeviceID].Blocks["Lights"]; got != 2 {
		t.Errorf("block binding = %d, want 2", got)
	}
}

func TestDestroyProgram(t *testing.T) {
	dev := gputest.New()
	lib := NewLibrary(dev, false)
	h := newProgram(t, lib)
	_ = lib.Use(h)

	if err := lib.DestroyProgram(h); err != nil {
		t.Fatal(err)
	}
	if err := lib.DestroyProgram(h); err != nil {
		t.Errorf("second destroy = %v", err)
	}
	p := lib.Program(h)
	if p.State != ProgramDestroyed || p.DeviceID != 0 {
		t.Errorf("program = %+v", p)
	}
	if lib.Current() != registry.Invalid {
		t.Error("destroying the bound program should unbind it")
	}
	if dev.Count("DeleteProgram") != 1 {
		t.Errorf("DeleteProgram called %d times", dev.Count("DeleteProgram"))
	}

	// Handles are never reused.
	h2 := newProgram(t, lib)
	if h2 == h {
		t.Error("new program reused a destroyed handle")
	}
}
