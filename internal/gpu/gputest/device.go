// Package gputest provides an in-memory gpu.Device that records every call,
// for testing renderer logic without a graphics context.
package gputest

import (
	"errors"
	"fmt"
	"image"
	"strings"

	"github.com/Faultbox/midgard-gfx/internal/gpu"
)

// CompileError makes any shader whose source contains it fail to compile.
const CompileError = "#error"

// Call is one recorded device call.
type Call struct {
	Op   string
	Args []any
}

// Shader is a fake shader object.
type Shader struct {
	Kind     gpu.ShaderKind
	Source   string
	Compiled bool
	Deleted  bool
}

// Program is a fake program object.
type Program struct {
	Shaders []uint32
	Attribs map[string]uint32
	Blocks  map[string]uint32
	Linked  bool
	Deleted bool
}

// Buffer is a fake buffer object.
type Buffer struct {
	Target gpu.BufferTarget
	Usage  gpu.BufferUsage
	Data   []byte
	// Base is the last indexed binding of the buffer, -1 if never bound.
	Base int
}

// Texture is a fake texture object.
type Texture struct {
	Desc   gpu.TextureDesc
	Pixels []byte
}

// Renderbuffer is a fake renderbuffer object.
type Renderbuffer struct {
	Format        gpu.TextureFormat
	Width, Height int
}

// Framebuffer is a fake framebuffer object.
type Framebuffer struct {
	Attachments map[gpu.AttachmentPoint]uint32
	DrawBuffers []gpu.AttachmentPoint
}

// Device is a recording gpu.Device.
type Device struct {
	DeviceInfo gpu.Info

	FailLink     bool
	FailValidate bool
	// Incomplete framebuffer ids are reported incomplete by CheckFramebuffer.
	Incomplete map[uint32]bool
	// InactiveUniforms resolve to location -1.
	InactiveUniforms map[string]bool
	// Pixel is returned for every texel by ReadPixels.
	Pixel [4]byte

	Calls []Call

	Shaders       map[uint32]*Shader
	Programs      map[uint32]*Program
	Buffers       map[uint32]*Buffer
	VertexArrays  map[uint32]bool
	Textures      map[uint32]*Texture
	Renderbuffers map[uint32]*Renderbuffer
	Framebuffers  map[uint32]*Framebuffer

	// Bound state.
	Program     uint32
	VertexArray uint32
	Framebuffer uint32
	TextureUnit map[int]uint32
	// Uniforms holds the last value set per location.
	Uniforms map[int32]any

	locations map[uint32]map[string]int32
	nextID    uint32
	nextLoc   int32
}

var _ gpu.Device = (*Device)(nil)

// New returns a device reporting 8 color attachments.
func New() *Device {
	return &Device{
		DeviceInfo: gpu.Info{
			Vendor:              "gputest",
			Renderer:            "recording device",
			Version:             "4.1 fake",
			MaxColorAttachments: 8,
		},
		Incomplete:       make(map[uint32]bool),
		InactiveUniforms: make(map[string]bool),
		Shaders:          make(map[uint32]*Shader),
		Programs:         make(map[uint32]*Program),
		Buffers:          make(map[uint32]*Buffer),
		VertexArrays:     make(map[uint32]bool),
		Textures:         make(map[uint32]*Texture),
		Renderbuffers:    make(map[uint32]*Renderbuffer),
		Framebuffers:     make(map[uint32]*Framebuffer),
		TextureUnit:      make(map[int]uint32),
		Uniforms:         make(map[int32]any),
		locations:        make(map[uint32]map[string]int32),
	}
}

func (d *Device) record(op string, args ...any) {
	d.Calls = append(d.Calls, Call{Op: op, Args: args})
}

func (d *Device) id() uint32 {
	d.nextID++
	return d.nextID
}

// Count returns how many times op was called.
func (d *Device) Count(op string) int {
	n := 0
	for _, c := range d.Calls {
		if c.Op == op {
			n++
		}
	}
	return n
}

// Ops returns the recorded operation names in call order.
func (d *Device) Ops() []string {
	ops := make([]string, len(d.Calls))
	for i, c := range d.Calls {
		ops[i] = c.Op
	}
	return ops
}

// Find returns the recorded calls of op.
func (d *Device) Find(op string) []Call {
	var out []Call
	for _, c := range d.Calls {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

// ResetCalls clears the call log but keeps objects.
func (d *Device) ResetCalls() {
	d.Calls = nil
}

func (d *Device) Info() gpu.Info {
	return d.DeviceInfo
}

func (d *Device) CreateShader(kind gpu.ShaderKind, source string) uint32 {
	id := d.id()
	d.Shaders[id] = &Shader{Kind: kind, Source: source}
	d.record("CreateShader", kind, id)
	return id
}

func (d *Device) CompileShader(shader uint32) error {
	d.record("CompileShader", shader)
	s, ok := d.Shaders[shader]
	if !ok || s.Deleted {
		return fmt.Errorf("invalid shader %d", shader)
	}
	if strings.Contains(s.Source, CompileError) {
		return fmt.Errorf("0:1(1): error: %s shader contains %s", s.Kind, CompileError)
	}
	s.Compiled = true
	return nil
}

func (d *Device) DeleteShader(shader uint32) {
	d.record("DeleteShader", shader)
	if s, ok := d.Shaders[shader]; ok {
		s.Deleted = true
	}
}

func (d *Device) CreateProgram() uint32 {
	id := d.id()
	d.Programs[id] = &Program{Attribs: make(map[string]uint32), Blocks: make(map[string]uint32)}
	d.record("CreateProgram", id)
	return id
}

func (d *Device) AttachShader(program, shader uint32) {
	d.record("AttachShader", program, shader)
	if p, ok := d.Programs[program]; ok {
		p.Shaders = append(p.Shaders, shader)
	}
}

func (d *Device) BindAttribLocation(program uint32, slot uint32, name string) {
	d.record("BindAttribLocation", program, slot, name)
	if p, ok := d.Programs[program]; ok {
		p.Attribs[name] = slot
	}
}

func (d *Device) LinkProgram(program uint32) error {
	d.record("LinkProgram", program)
	p, ok := d.Programs[program]
	if !ok || p.Deleted {
		return fmt.Errorf("invalid program %d", program)
	}
	if d.FailLink {
		return errors.New("error: linking with uncompiled/unspecialized shader")
	}
	if len(p.Shaders) == 0 {
		return errors.New("error: no shaders attached")
	}
	for _, id := range p.Shaders {
		if s := d.Shaders[id]; s == nil || !s.Compiled {
			return fmt.Errorf("error: shader %d is not compiled", id)
		}
	}
	p.Linked = true
	return nil
}

func (d *Device) ValidateProgram(program uint32) error {
	d.record("ValidateProgram", program)
	if d.FailValidate {
		return errors.New("validation failed: sampler type mismatch")
	}
	return nil
}

func (d *Device) DeleteProgram(program uint32) {
	d.record("DeleteProgram", program)
	if p, ok := d.Programs[program]; ok {
		p.Deleted = true
	}
}

func (d *Device) UseProgram(program uint32) {
	d.record("UseProgram", program)
	d.Program = program
}

func (d *Device) UniformLocation(program uint32, name string) int32 {
	d.record("UniformLocation", program, name)
	if d.InactiveUniforms[name] {
		return -1
	}
	locs, ok := d.locations[program]
	if !ok {
		locs = make(map[string]int32)
		d.locations[program] = locs
	}
	loc, ok := locs[name]
	if !ok {
		loc = d.nextLoc
		d.nextLoc++
		locs[name] = loc
	}
	return loc
}

func (d *Device) UniformBlockBinding(program uint32, block string, binding uint32) error {
	d.record("UniformBlockBinding", program, block, binding)
	p, ok := d.Programs[program]
	if !ok || !p.Linked {
		return fmt.Errorf("program %d is not linked", program)
	}
	p.Blocks[block] = binding
	return nil
}

func (d *Device) setUniform(op string, loc int32, v any) {
	d.record(op, loc, v)
	d.Uniforms[loc] = v
}

func (d *Device) SetUniformInt(loc int32, v int32)       { d.setUniform("SetUniformInt", loc, v) }
func (d *Device) SetUniformFloat(loc int32, v float32)   { d.setUniform("SetUniformFloat", loc, v) }
func (d *Device) SetUniformVec2(loc int32, v [2]float32) { d.setUniform("SetUniformVec2", loc, v) }
func (d *Device) SetUniformVec3(loc int32, v [3]float32) { d.setUniform("SetUniformVec3", loc, v) }
func (d *Device) SetUniformVec4(loc int32, v [4]float32) { d.setUniform("SetUniformVec4", loc, v) }

func (d *Device) SetUniformMat3(loc int32, transpose bool, m [9]float32) {
	d.record("SetUniformMat3", loc, transpose, m)
	d.Uniforms[loc] = m
}

func (d *Device) SetUniformMat4(loc int32, transpose bool, m [16]float32) {
	d.record("SetUniformMat4", loc, transpose, m)
	d.Uniforms[loc] = m
}

func (d *Device) CreateVertexArray() uint32 {
	id := d.id()
	d.VertexArrays[id] = true
	d.VertexArray = id
	d.record("CreateVertexArray", id)
	return id
}

func (d *Device) BindVertexArray(vao uint32) {
	d.record("BindVertexArray", vao)
	d.VertexArray = vao
}

func (d *Device) DeleteVertexArray(vao uint32) {
	d.record("DeleteVertexArray", vao)
	delete(d.VertexArrays, vao)
}

func (d *Device) CreateBuffer(target gpu.BufferTarget, data []byte, size int, usage gpu.BufferUsage) uint32 {
	id := d.id()
	buf := make([]byte, size)
	copy(buf, data)
	d.Buffers[id] = &Buffer{Target: target, Usage: usage, Data: buf, Base: -1}
	d.record("CreateBuffer", target, id, size, usage)
	return id
}

func (d *Device) UpdateBuffer(target gpu.BufferTarget, buffer uint32, offset int, data []byte) {
	d.record("UpdateBuffer", target, buffer, offset, len(data))
	if b, ok := d.Buffers[buffer]; ok {
		copy(b.Data[offset:], data)
	}
}

func (d *Device) ReadBuffer(target gpu.BufferTarget, buffer uint32, offset int, out []byte) {
	d.record("ReadBuffer", target, buffer, offset, len(out))
	if b, ok := d.Buffers[buffer]; ok {
		copy(out, b.Data[offset:])
	}
}

func (d *Device) BindBufferBase(target gpu.BufferTarget, binding uint32, buffer uint32) {
	d.record("BindBufferBase", target, binding, buffer)
	if b, ok := d.Buffers[buffer]; ok {
		b.Base = int(binding)
	}
}

func (d *Device) DeleteBuffer(buffer uint32) {
	d.record("DeleteBuffer", buffer)
	delete(d.Buffers, buffer)
}

func (d *Device) VertexAttribPointer(slot uint32, count int, typ gpu.DataType, normalized bool, stride, offset int) {
	d.record("VertexAttribPointer", slot, count, typ, normalized, stride, offset)
}

func (d *Device) CreateTexture(desc gpu.TextureDesc, pixels []byte) uint32 {
	id := d.id()
	var cp []byte
	if pixels != nil {
		cp = append([]byte(nil), pixels...)
	}
	d.Textures[id] = &Texture{Desc: desc, Pixels: cp}
	d.record("CreateTexture", id, desc)
	return id
}

func (d *Device) BindTexture(unit int, texture uint32) {
	d.record("BindTexture", unit, texture)
	d.TextureUnit[unit] = texture
}

func (d *Device) DeleteTexture(texture uint32) {
	d.record("DeleteTexture", texture)
	delete(d.Textures, texture)
}

func (d *Device) CreateFramebuffer() uint32 {
	id := d.id()
	d.Framebuffers[id] = &Framebuffer{Attachments: make(map[gpu.AttachmentPoint]uint32)}
	d.record("CreateFramebuffer", id)
	return id
}

func (d *Device) BindFramebuffer(fb uint32) {
	d.record("BindFramebuffer", fb)
	d.Framebuffer = fb
}

func (d *Device) DeleteFramebuffer(fb uint32) {
	d.record("DeleteFramebuffer", fb)
	delete(d.Framebuffers, fb)
}

func (d *Device) CreateRenderbuffer(format gpu.TextureFormat, width, height int) uint32 {
	id := d.id()
	d.Renderbuffers[id] = &Renderbuffer{Format: format, Width: width, Height: height}
	d.record("CreateRenderbuffer", id, format, width, height)
	return id
}

func (d *Device) DeleteRenderbuffer(rb uint32) {
	d.record("DeleteRenderbuffer", rb)
	delete(d.Renderbuffers, rb)
}

func (d *Device) FramebufferTexture(fb uint32, point gpu.AttachmentPoint, texture uint32) {
	d.record("FramebufferTexture", fb, point, texture)
	if f, ok := d.Framebuffers[fb]; ok {
		f.Attachments[point] = texture
	}
}

func (d *Device) FramebufferRenderbuffer(fb uint32, point gpu.AttachmentPoint, rb uint32) {
	d.record("FramebufferRenderbuffer", fb, point, rb)
	if f, ok := d.Framebuffers[fb]; ok {
		f.Attachments[point] = rb
	}
}

func (d *Device) DrawBuffers(fb uint32, points []gpu.AttachmentPoint) {
	d.record("DrawBuffers", fb, points)
	if f, ok := d.Framebuffers[fb]; ok {
		f.DrawBuffers = append([]gpu.AttachmentPoint(nil), points...)
	}
}

func (d *Device) CheckFramebuffer(fb uint32) error {
	d.record("CheckFramebuffer", fb)
	if fb == 0 {
		return nil
	}
	f, ok := d.Framebuffers[fb]
	if !ok {
		return fmt.Errorf("framebuffer %d does not exist", fb)
	}
	if d.Incomplete[fb] || len(f.Attachments) == 0 {
		return fmt.Errorf("framebuffer %d incomplete: 0x8cd6", fb)
	}
	return nil
}

func (d *Device) BlitFramebuffer(src uint32, srcColor int, dst uint32, srcRect, dstRect image.Rectangle) {
	d.record("BlitFramebuffer", src, srcColor, dst, srcRect, dstRect)
	d.Framebuffer = dst
}

func (d *Device) ReadPixels(fb uint32, rect image.Rectangle, out []byte) {
	d.record("ReadPixels", fb, rect)
	for i := 0; i+3 < len(out); i += 4 {
		copy(out[i:i+4], d.Pixel[:])
	}
}

func (d *Device) Viewport(rect image.Rectangle) {
	d.record("Viewport", rect)
}

func (d *Device) SetDepthTest(enable bool) {
	d.record("SetDepthTest", enable)
}

func (d *Device) ClearColorAttachment(index int, rgba [4]float32) {
	d.record("ClearColorAttachment", index, rgba)
}

func (d *Device) ClearDepthStencil(depth float32, stencil int32) {
	d.record("ClearDepthStencil", depth, stencil)
}

func (d *Device) DrawIndexed(count int, typ gpu.IndexType) {
	d.record("DrawIndexed", count, typ)
}
