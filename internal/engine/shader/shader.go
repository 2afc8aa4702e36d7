// Package shader compiles shader stages, links them into programs, resolves
// uniform locations and manages uniform buffers.
//
// A program moves through Created → Attached → Linked → Ready. Any compile,
// link or validate error moves it to Failed and is returned to the caller
// with the device diagnostic attached.
package shader

import (
	"errors"
	"fmt"

	"github.com/Faultbox/midgard-gfx/internal/engine/registry"
	"github.com/Faultbox/midgard-gfx/internal/engine/resource"
	"github.com/Faultbox/midgard-gfx/internal/gpu"
)

var (
	ErrCompile           = errors.New("shader compile failed")
	ErrLink              = errors.New("program link failed")
	ErrValidate          = errors.New("program validation failed")
	ErrStageReleased     = errors.New("shader stage already released")
	ErrStageKindAttached = errors.New("stage kind already attached")
	ErrNotLinked         = errors.New("program not linked")
	ErrUnresolved        = errors.New("uniform locations not resolved")
	ErrNotBound          = errors.New("no program bound")
	ErrUnknownUniform    = errors.New("unknown uniform")
	ErrUniformType       = errors.New("uniform type mismatch")
	ErrUniformName       = errors.New("invalid uniform name")
	ErrDuplicateUniform  = errors.New("uniform already declared")
	ErrBufferAccess      = errors.New("uniform buffer access not permitted")
	ErrBufferRange       = errors.New("uniform buffer range out of bounds")
)

// StageState tracks a stage from load to release of its device object.
type StageState uint8

const (
	StageLoaded StageState = iota
	// StageAttached stages are claimed by a program but not compiled.
	StageAttached
	StageCompiled
	// StageReleased stages were linked and their device object deleted.
	StageReleased
)

func (s StageState) String() string {
	switch s {
	case StageLoaded:
		return "loaded"
	case StageAttached:
		return "attached"
	case StageCompiled:
		return "compiled"
	case StageReleased:
		return "released"
	}
	return fmt.Sprintf("StageState(%d)", uint8(s))
}

// Stage is one shader source of a single kind.
type Stage struct {
	Name     string
	Path     string // empty for embedded sources
	Source   string
	Kind     gpu.ShaderKind
	DeviceID uint32
	State    StageState
}

// ProgramState is the program state machine.
type ProgramState uint8

const (
	ProgramCreated ProgramState = iota
	ProgramAttached
	ProgramLinked
	ProgramReady
	ProgramFailed
	ProgramDestroyed
)

func (s ProgramState) String() string {
	switch s {
	case ProgramCreated:
		return "created"
	case ProgramAttached:
		return "attached"
	case ProgramLinked:
		return "linked"
	case ProgramReady:
		return "ready"
	case ProgramFailed:
		return "failed"
	case ProgramDestroyed:
		return "destroyed"
	}
	return fmt.Sprintf("ProgramState(%d)", uint8(s))
}

// UniformType is the declared data type of a uniform.
type UniformType uint8

const (
	UniformInt UniformType = iota
	UniformFloat
	UniformVec2
	UniformVec3
	UniformVec4
	UniformMat3
	UniformMat4
)

func (t UniformType) String() string {
	switch t {
	case UniformInt:
		return "int"
	case UniformFloat:
		return "float"
	case UniformVec2:
		return "vec2"
	case UniformVec3:
		return "vec3"
	case UniformVec4:
		return "vec4"
	case UniformMat3:
		return "mat3"
	case UniformMat4:
		return "mat4"
	}
	return fmt.Sprintf("UniformType(%d)", uint8(t))
}

// Uniform is a declared uniform and its resolved location.
// Location -1 means unresolved or inactive in the linked program.
type Uniform struct {
	Name     string
	Type     UniformType
	Location int32
}

// UniformBlock is a declared uniform block and the binding slot it reads from.
type UniformBlock struct {
	Name    string
	Size    int
	Binding uint32
}

// Program is a linked set of stages with its declared interface.
type Program struct {
	Name     string
	DeviceID uint32
	// Stages holds at most one stage per kind, registry.Invalid if absent.
	Stages [gpu.ShaderKindCount]registry.Handle
	// Linked has ShaderKind.Bit set for every stage compiled into the program.
	Linked     uint8
	Attributes []resource.VertexAttribute
	Uniforms   []Uniform
	Blocks     []UniformBlock
	State      ProgramState
	// Diagnostic is the compiler or linker log of the last failure.
	Diagnostic string
}

// HasKind reports whether a stage of kind is linked into the program.
func (p *Program) HasKind(kind gpu.ShaderKind) bool {
	return p.Linked&kind.Bit() != 0
}

func (p *Program) uniform(name string) *Uniform {
	for i := range p.Uniforms {
		if p.Uniforms[i].Name == name {
			return &p.Uniforms[i]
		}
	}
	return nil
}

// UniformBuffer is a device buffer shared by uniform blocks.
type UniformBuffer struct {
	Name string
	Size int
	// Binding is the indexed binding slot, -1 until bound.
	Binding  int
	Flags    gpu.StorageFlags
	DeviceID uint32
}
