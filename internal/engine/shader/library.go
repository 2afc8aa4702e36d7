package shader

import (
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/Faultbox/midgard-gfx/internal/engine/registry"
	"github.com/Faultbox/midgard-gfx/internal/engine/resource"
	"github.com/Faultbox/midgard-gfx/internal/gpu"
	"github.com/Faultbox/midgard-gfx/internal/logger"
)

// Library owns the stage, program and uniform buffer registries of one device.
type Library struct {
	dev gpu.Device
	// transpose is passed to every matrix upload.
	transpose bool

	stages   *registry.Registry[Stage]
	programs *registry.Registry[Program]
	buffers  *registry.Registry[UniformBuffer]

	current registry.Handle
}

// NewLibrary creates an empty library. transpose selects row-major matrix
// uploads for every program.
func NewLibrary(dev gpu.Device, transpose bool) *Library {
	return &Library{
		dev:       dev,
		transpose: transpose,
		stages:    registry.New(func(s *Stage) string { return s.Name }),
		programs:  registry.New(func(p *Program) string { return p.Name }),
		buffers:   registry.New(func(b *UniformBuffer) string { return b.Name }),
		current:   registry.Invalid,
	}
}

// LoadStage reads a whole shader source file. It does not compile.
func (l *Library) LoadStage(name, path string, kind gpu.ShaderKind) (registry.Handle, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return registry.Invalid, fmt.Errorf("load %s stage %q: %w", kind, name, err)
	}
	h := l.LoadStageSource(name, string(src), kind)
	l.stages.Get(h).Path = path
	return h, nil
}

// LoadStageSource registers an in-memory shader source.
func (l *Library) LoadStageSource(name, source string, kind gpu.ShaderKind) registry.Handle {
	return l.stages.Add(&Stage{Name: name, Source: source, Kind: kind})
}

// Stage returns the stage for h or nil.
func (l *Library) Stage(h registry.Handle) *Stage { return l.stages.Get(h) }

// FindStage returns the handle of the stage called name, or registry.Invalid.
func (l *Library) FindStage(name string) registry.Handle { return l.stages.Find(name) }

// Program returns the program for h or nil.
func (l *Library) Program(h registry.Handle) *Program { return l.programs.Get(h) }

// FindProgram returns the handle of the program called name, or registry.Invalid.
func (l *Library) FindProgram(name string) registry.Handle { return l.programs.Find(name) }

// CreateProgram compiles the given stages, binds attrs to their slots, links
// and validates. A stage whose kind is already attached is skipped with a
// warning. The program is registered even when an error is returned, in
// state ProgramFailed with Diagnostic set.
func (l *Library) CreateProgram(name string, attrs []resource.VertexAttribute, stages ...registry.Handle) (registry.Handle, error) {
	p := &Program{Name: name, Attributes: attrs}
	for i := range p.Stages {
		p.Stages[i] = registry.Invalid
	}
	h := l.programs.Add(p)

	p.DeviceID = l.dev.CreateProgram()

	var compileErrs []error
	for _, sh := range stages {
		stage, err := l.stages.Lookup(sh)
		if err != nil {
			return h, l.fail(p, fmt.Errorf("program %q: stage %w", name, err))
		}
		if stage.State == StageReleased {
			return h, l.fail(p, fmt.Errorf("program %q: %w: %q", name, ErrStageReleased, stage.Name))
		}
		if p.Stages[stage.Kind] != registry.Invalid {
			logger.Warn("skipping stage, kind already attached",
				zap.String("program", name),
				zap.String("stage", stage.Name),
				zap.Stringer("kind", stage.Kind))
			continue
		}
		p.Stages[stage.Kind] = sh
		if err := l.compile(stage); err != nil {
			compileErrs = append(compileErrs, err)
			continue
		}
		l.dev.AttachShader(p.DeviceID, stage.DeviceID)
		p.Linked |= stage.Kind.Bit()
	}
	if p.State == ProgramCreated && p.Linked != 0 {
		p.State = ProgramAttached
	}
	if len(compileErrs) > 0 {
		err := errors.Join(compileErrs...)
		p.Diagnostic = err.Error()
		return h, l.fail(p, fmt.Errorf("program %q: %w", name, errors.Join(ErrLink, err)))
	}

	for _, a := range attrs {
		if a.Active {
			l.dev.BindAttribLocation(p.DeviceID, a.Slot, a.Name)
		}
	}

	if err := l.dev.LinkProgram(p.DeviceID); err != nil {
		p.Diagnostic = err.Error()
		return h, l.fail(p, fmt.Errorf("program %q: %w: %w", name, ErrLink, err))
	}
	if err := l.dev.ValidateProgram(p.DeviceID); err != nil {
		p.Diagnostic = err.Error()
		return h, l.fail(p, fmt.Errorf("program %q: %w: %w", name, ErrValidate, err))
	}
	p.State = ProgramLinked

	// Linked programs keep their binaries; the stage objects can go.
	for _, sh := range p.Stages {
		if stage := l.stages.Get(sh); stage != nil {
			l.release(stage)
		}
	}

	logger.Debug("program linked", zap.String("program", name), zap.Uint32("id", p.DeviceID))
	return h, nil
}

func (l *Library) compile(stage *Stage) error {
	stage.State = StageAttached
	if stage.DeviceID == 0 {
		stage.DeviceID = l.dev.CreateShader(stage.Kind, stage.Source)
	}
	if err := l.dev.CompileShader(stage.DeviceID); err != nil {
		l.dev.DeleteShader(stage.DeviceID)
		stage.DeviceID = 0
		return fmt.Errorf("%w: %s stage %q: %w", ErrCompile, stage.Kind, stage.Name, err)
	}
	stage.State = StageCompiled
	return nil
}

func (l *Library) release(stage *Stage) {
	if stage.DeviceID != 0 {
		l.dev.DeleteShader(stage.DeviceID)
		stage.DeviceID = 0
	}
	stage.State = StageReleased
}

// fail moves p to ProgramFailed, frees its device program and the shader
// objects of its compiled stages, and logs err.
func (l *Library) fail(p *Program, err error) error {
	if p.DeviceID != 0 {
		l.dev.DeleteProgram(p.DeviceID)
		p.DeviceID = 0
	}
	for _, sh := range p.Stages {
		if stage := l.stages.Get(sh); stage != nil && stage.State == StageCompiled {
			l.release(stage)
		}
	}
	p.State = ProgramFailed
	if p.Diagnostic == "" {
		p.Diagnostic = err.Error()
	}
	logger.Error("shader program failed", zap.String("program", p.Name), zap.Error(err))
	return err
}

// Use binds the program for subsequent uniform uploads and draws.
func (l *Library) Use(h registry.Handle) error {
	p, err := l.programs.Lookup(h)
	if err != nil {
		return fmt.Errorf("use program: %w", err)
	}
	if p.State != ProgramLinked && p.State != ProgramReady {
		return fmt.Errorf("use program %q (%s): %w", p.Name, p.State, ErrNotLinked)
	}
	if l.current != h {
		l.dev.UseProgram(p.DeviceID)
		l.current = h
	}
	return nil
}

// Unbind clears the current program.
func (l *Library) Unbind() {
	if l.current != registry.Invalid {
		l.dev.UseProgram(0)
		l.current = registry.Invalid
	}
}

// Current returns the bound program handle, registry.Invalid if none.
func (l *Library) Current() registry.Handle { return l.current }

// DestroyProgram releases the device program. The handle stays reserved and
// the program ends in ProgramDestroyed. Destroying twice is a no-op.
func (l *Library) DestroyProgram(h registry.Handle) error {
	p, err := l.programs.Lookup(h)
	if err != nil {
		return fmt.Errorf("destroy program: %w", err)
	}
	if p.State == ProgramDestroyed {
		return nil
	}
	if l.current == h {
		l.Unbind()
	}
	if p.DeviceID != 0 {
		l.dev.DeleteProgram(p.DeviceID)
		p.DeviceID = 0
	}
	for i := range p.Uniforms {
		p.Uniforms[i].Location = -1
	}
	p.State = ProgramDestroyed
	return nil
}

// Shutdown destroys every program, stage and uniform buffer.
func (l *Library) Shutdown() {
	l.Unbind()
	l.programs.Each(func(h registry.Handle, _ *Program) {
		_ = l.DestroyProgram(h)
	})
	l.stages.Each(func(_ registry.Handle, s *Stage) {
		l.release(s)
	})
	l.buffers.Each(func(_ registry.Handle, b *UniformBuffer) {
		if b.DeviceID != 0 {
			l.dev.DeleteBuffer(b.DeviceID)
			b.DeviceID = 0
		}
	})
}
