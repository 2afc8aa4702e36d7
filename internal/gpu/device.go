// Package gpu defines the engine-neutral graphics device contract used by the
// renderer core. Object handles are device integers; 0 means "no object",
// except for framebuffers where 0 is the default back buffer.
package gpu

import "image"

// Device abstracts a stateful OpenGL-style graphics API. All calls are
// synchronous and must be made from the thread owning the context.
type Device interface {
	Info() Info

	CreateShader(kind ShaderKind, source string) uint32
	// CompileShader returns the compiler diagnostic as an error on failure.
	CompileShader(shader uint32) error
	DeleteShader(shader uint32)

	CreateProgram() uint32
	AttachShader(program, shader uint32)
	BindAttribLocation(program uint32, slot uint32, name string)
	// LinkProgram and ValidateProgram return the linker diagnostic on failure.
	LinkProgram(program uint32) error
	ValidateProgram(program uint32) error
	DeleteProgram(program uint32)
	UseProgram(program uint32)
	// UniformLocation returns -1 for unknown or inactive uniforms.
	UniformLocation(program uint32, name string) int32
	UniformBlockBinding(program uint32, block string, binding uint32) error

	SetUniformInt(loc int32, v int32)
	SetUniformFloat(loc int32, v float32)
	SetUniformVec2(loc int32, v [2]float32)
	SetUniformVec3(loc int32, v [3]float32)
	SetUniformVec4(loc int32, v [4]float32)
	SetUniformMat3(loc int32, transpose bool, m [9]float32)
	SetUniformMat4(loc int32, transpose bool, m [16]float32)

	CreateVertexArray() uint32
	BindVertexArray(vao uint32)
	DeleteVertexArray(vao uint32)
	// CreateBuffer allocates size bytes and uploads data (which may be nil or shorter).
	CreateBuffer(target BufferTarget, data []byte, size int, usage BufferUsage) uint32
	UpdateBuffer(target BufferTarget, buffer uint32, offset int, data []byte)
	ReadBuffer(target BufferTarget, buffer uint32, offset int, out []byte)
	BindBufferBase(target BufferTarget, binding uint32, buffer uint32)
	DeleteBuffer(buffer uint32)
	// VertexAttribPointer configures and enables a slot of the bound vertex array.
	VertexAttribPointer(slot uint32, count int, typ DataType, normalized bool, stride, offset int)

	CreateTexture(desc TextureDesc, pixels []byte) uint32
	BindTexture(unit int, texture uint32)
	DeleteTexture(texture uint32)

	CreateFramebuffer() uint32
	BindFramebuffer(fb uint32)
	DeleteFramebuffer(fb uint32)
	CreateRenderbuffer(format TextureFormat, width, height int) uint32
	DeleteRenderbuffer(rb uint32)
	FramebufferTexture(fb uint32, point AttachmentPoint, texture uint32)
	FramebufferRenderbuffer(fb uint32, point AttachmentPoint, rb uint32)
	DrawBuffers(fb uint32, points []AttachmentPoint)
	// CheckFramebuffer returns nil when fb is complete.
	CheckFramebuffer(fb uint32) error
	// BlitFramebuffer copies color attachment srcColor of src into the draw
	// buffers of dst. srcColor is ignored when src is the default framebuffer.
	BlitFramebuffer(src uint32, srcColor int, dst uint32, srcRect, dstRect image.Rectangle)
	ReadPixels(fb uint32, rect image.Rectangle, out []byte)

	Viewport(rect image.Rectangle)
	SetDepthTest(enable bool)
	ClearColorAttachment(index int, rgba [4]float32)
	ClearDepthStencil(depth float32, stencil int32)
	DrawIndexed(count int, typ IndexType)
}
