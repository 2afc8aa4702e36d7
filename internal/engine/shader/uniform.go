package shader

import (
	"fmt"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"

	"github.com/Faultbox/midgard-gfx/internal/engine/registry"
	"github.com/Faultbox/midgard-gfx/internal/logger"
)

func (l *Library) linked(h registry.Handle) (*Program, error) {
	p, err := l.programs.Lookup(h)
	if err != nil {
		return nil, err
	}
	if p.State != ProgramLinked && p.State != ProgramReady {
		return nil, fmt.Errorf("program %q (%s): %w", p.Name, p.State, ErrNotLinked)
	}
	return p, nil
}

// DeclareUniform adds a uniform to the program's interface. A Ready program
// drops back to Linked until ResolveUniforms runs again.
func (l *Library) DeclareUniform(h registry.Handle, name string, typ UniformType) error {
	p, err := l.linked(h)
	if err != nil {
		return fmt.Errorf("declare uniform %q: %w", name, err)
	}
	if name == "" || strings.IndexByte(name, 0) >= 0 {
		return fmt.Errorf("declare uniform %q in %q: %w", name, p.Name, ErrUniformName)
	}
	if p.uniform(name) != nil {
		return fmt.Errorf("declare uniform %q in %q: %w", name, p.Name, ErrDuplicateUniform)
	}
	p.Uniforms = append(p.Uniforms, Uniform{Name: name, Type: typ, Location: -1})
	p.State = ProgramLinked
	return nil
}

// DeclareUniformBlock adds a uniform block bound to binding on resolve.
func (l *Library) DeclareUniformBlock(h registry.Handle, name string, size int, binding uint32) error {
	p, err := l.linked(h)
	if err != nil {
		return fmt.Errorf("declare block %q: %w", name, err)
	}
	if name == "" || strings.IndexByte(name, 0) >= 0 {
		return fmt.Errorf("declare block %q in %q: %w", name, p.Name, ErrUniformName)
	}
	p.Blocks = append(p.Blocks, UniformBlock{Name: name, Size: size, Binding: binding})
	p.State = ProgramLinked
	return nil
}

// ResolveUniforms looks up the device location of every declared uniform and
// binds declared blocks. Uniforms the driver optimized out resolve to -1 and
// setting them is a no-op. Resolving again yields the same locations.
func (l *Library) ResolveUniforms(h registry.Handle) error {
	p, err := l.linked(h)
	if err != nil {
		return fmt.Errorf("resolve uniforms: %w", err)
	}
	for i := range p.Uniforms {
		u := &p.Uniforms[i]
		u.Location = l.dev.UniformLocation(p.DeviceID, u.Name)
		if u.Location < 0 {
			logger.Warn("uniform inactive",
				zap.String("program", p.Name),
				zap.String("uniform", u.Name))
		}
	}
	for _, b := range p.Blocks {
		if err := l.dev.UniformBlockBinding(p.DeviceID, b.Name, b.Binding); err != nil {
			return fmt.Errorf("program %q block %q: %w", p.Name, b.Name, err)
		}
	}
	p.State = ProgramReady
	return nil
}

// location returns the resolved location of a uniform of the bound program,
// checking that it was declared with typ.
func (l *Library) location(name string, typ UniformType) (int32, error) {
	if l.current == registry.Invalid {
		return -1, fmt.Errorf("set uniform %q: %w", name, ErrNotBound)
	}
	p := l.programs.Get(l.current)
	if p.State != ProgramReady {
		return -1, fmt.Errorf("set uniform %q in %q: %w", name, p.Name, ErrUnresolved)
	}
	u := p.uniform(name)
	if u == nil {
		return -1, fmt.Errorf("set uniform %q in %q: %w", name, p.Name, ErrUnknownUniform)
	}
	if u.Type != typ {
		return -1, fmt.Errorf("set uniform %q in %q: %w: declared %s, got %s", name, p.Name, ErrUniformType, u.Type, typ)
	}
	return u.Location, nil
}

func (l *Library) SetInt(name string, v int32) error {
	loc, err := l.location(name, UniformInt)
	if err == nil && loc >= 0 {
		l.dev.SetUniformInt(loc, v)
	}
	return err
}

func (l *Library) SetFloat(name string, v float32) error {
	loc, err := l.location(name, UniformFloat)
	if err == nil && loc >= 0 {
		l.dev.SetUniformFloat(loc, v)
	}
	return err
}

func (l *Library) SetVec2(name string, v mgl32.Vec2) error {
	loc, err := l.location(name, UniformVec2)
	if err == nil && loc >= 0 {
		l.dev.SetUniformVec2(loc, v)
	}
	return err
}

func (l *Library) SetVec3(name string, v mgl32.Vec3) error {
	loc, err := l.location(name, UniformVec3)
	if err == nil && loc >= 0 {
		l.dev.SetUniformVec3(loc, v)
	}
	return err
}

func (l *Library) SetVec4(name string, v mgl32.Vec4) error {
	loc, err := l.location(name, UniformVec4)
	if err == nil && loc >= 0 {
		l.dev.SetUniformVec4(loc, v)
	}
	return err
}

// SetMat3 uploads m honoring the library's transpose flag.
func (l *Library) SetMat3(name string, m mgl32.Mat3) error {
	loc, err := l.location(name, UniformMat3)
	if err == nil && loc >= 0 {
		l.dev.SetUniformMat3(loc, l.transpose, m)
	}
	return err
}

// SetMat4 uploads m honoring the library's transpose flag.
func (l *Library) SetMat4(name string, m mgl32.Mat4) error {
	loc, err := l.location(name, UniformMat4)
	if err == nil && loc >= 0 {
		l.dev.SetUniformMat4(loc, l.transpose, m)
	}
	return err
}
