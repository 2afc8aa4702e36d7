// Package gldevice implements gpu.Device on OpenGL 4.1 core.
// IMPORTANT: New must be called after an OpenGL context is current.
package gldevice

import (
	"errors"
	"fmt"
	"image"
	"unsafe"

	"go.uber.org/zap"

	"github.com/Faultbox/midgard-gfx/internal/gpu"
	"github.com/Faultbox/midgard-gfx/internal/logger"
	"github.com/go-gl/gl/v4.1-core/gl"
)

// Device is the OpenGL implementation of gpu.Device.
type Device struct {
	info gpu.Info
	// debug enables driver diagnostics: the KHR_debug message callback when
	// available, otherwise glGetError polling after each call.
	debug bool
	// callback is set when the KHR_debug callback is installed.
	callback bool
}

var _ gpu.Device = (*Device)(nil)

// New loads the GL function pointers and queries device information.
func New(debug bool) (*Device, error) {
	if err := gl.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize OpenGL: %w", err)
	}

	var maxColor int32
	gl.GetIntegerv(gl.MAX_COLOR_ATTACHMENTS, &maxColor)

	d := &Device{
		debug: debug,
		info: gpu.Info{
			Vendor:              gl.GoStr(gl.GetString(gl.VENDOR)),
			Renderer:            gl.GoStr(gl.GetString(gl.RENDERER)),
			Version:             gl.GoStr(gl.GetString(gl.VERSION)),
			MaxColorAttachments: int(maxColor),
		},
	}

	if debug {
		d.callback = installDebugCallback()
		if !d.callback {
			logger.Warn("no GL debug extension, polling glGetError instead")
		}
	}

	logger.Info("OpenGL initialized",
		zap.String("vendor", d.info.Vendor),
		zap.String("renderer", d.info.Renderer),
		zap.String("version", d.info.Version),
		zap.Int("max_color_attachments", d.info.MaxColorAttachments),
		zap.Bool("debug", debug),
		zap.Bool("debug_callback", d.callback),
	)

	gl.Enable(gl.DEPTH_TEST)
	gl.DepthFunc(gl.LESS)
	return d, nil
}

func (d *Device) Info() gpu.Info {
	return d.info
}

// check drains the GL error queue when debugging without a callback.
func (d *Device) check(op string) {
	if !d.debug || d.callback {
		return
	}
	for code := gl.GetError(); code != gl.NO_ERROR; code = gl.GetError() {
		logger.Error("gl error", zap.String("op", op), zap.String("code", fmt.Sprintf("0x%04x", code)))
	}
}

var shaderKinds = [gpu.ShaderKindCount]uint32{
	gpu.ShaderVertex:      gl.VERTEX_SHADER,
	gpu.ShaderTessControl: gl.TESS_CONTROL_SHADER,
	gpu.ShaderTessEval:    gl.TESS_EVALUATION_SHADER,
	gpu.ShaderGeometry:    gl.GEOMETRY_SHADER,
	gpu.ShaderFragment:    gl.FRAGMENT_SHADER,
	// Compute needs 4.3; creation fails and is reported by CompileShader.
	gpu.ShaderCompute: 0x91B9,
}

func (d *Device) CreateShader(kind gpu.ShaderKind, source string) uint32 {
	shader := gl.CreateShader(shaderKinds[kind])
	if shader == 0 {
		d.check("CreateShader")
		return 0
	}
	csource, free := gl.Strs(source + "\x00")
	gl.ShaderSource(shader, 1, csource, nil)
	free()
	d.check("ShaderSource")
	return shader
}

func (d *Device) CompileShader(shader uint32) error {
	if shader == 0 {
		return errors.New("shader object was not created")
	}
	gl.CompileShader(shader)

	var status int32
	gl.GetShaderiv(shader, gl.COMPILE_STATUS, &status)
	if status == gl.FALSE {
		var logLen int32
		gl.GetShaderiv(shader, gl.INFO_LOG_LENGTH, &logLen)
		return errors.New(infoLog(logLen, func(n int32, buf *uint8) { gl.GetShaderInfoLog(shader, n, nil, buf) }))
	}
	return nil
}

func (d *Device) DeleteShader(shader uint32) {
	gl.DeleteShader(shader)
	d.check("DeleteShader")
}

func (d *Device) CreateProgram() uint32 {
	return gl.CreateProgram()
}

func (d *Device) AttachShader(program, shader uint32) {
	gl.AttachShader(program, shader)
	d.check("AttachShader")
}

func (d *Device) BindAttribLocation(program uint32, slot uint32, name string) {
	gl.BindAttribLocation(program, slot, gl.Str(name+"\x00"))
	d.check("BindAttribLocation")
}

func (d *Device) LinkProgram(program uint32) error {
	gl.LinkProgram(program)
	return programStatus(program, gl.LINK_STATUS)
}

func (d *Device) ValidateProgram(program uint32) error {
	gl.ValidateProgram(program)
	return programStatus(program, gl.VALIDATE_STATUS)
}

func programStatus(program uint32, pname uint32) error {
	var status int32
	gl.GetProgramiv(program, pname, &status)
	if status != gl.FALSE {
		return nil
	}
	var logLen int32
	gl.GetProgramiv(program, gl.INFO_LOG_LENGTH, &logLen)
	return errors.New(infoLog(logLen, func(n int32, buf *uint8) { gl.GetProgramInfoLog(program, n, nil, buf) }))
}

// infoLog reads a driver diagnostic of logLen bytes.
func infoLog(logLen int32, read func(int32, *uint8)) string {
	if logLen <= 0 {
		return "no diagnostic available"
	}
	buf := make([]byte, logLen)
	read(logLen, &buf[0])
	return gl.GoStr(&buf[0])
}

func (d *Device) DeleteProgram(program uint32) {
	gl.DeleteProgram(program)
	d.check("DeleteProgram")
}

func (d *Device) UseProgram(program uint32) {
	gl.UseProgram(program)
	d.check("UseProgram")
}

func (d *Device) UniformLocation(program uint32, name string) int32 {
	return gl.GetUniformLocation(program, gl.Str(name+"\x00"))
}

func (d *Device) UniformBlockBinding(program uint32, block string, binding uint32) error {
	index := gl.GetUniformBlockIndex(program, gl.Str(block+"\x00"))
	if index == gl.INVALID_INDEX {
		return fmt.Errorf("uniform block %q not active in program %d", block, program)
	}
	gl.UniformBlockBinding(program, index, binding)
	d.check("UniformBlockBinding")
	return nil
}

func (d *Device) SetUniformInt(loc int32, v int32) { gl.Uniform1i(loc, v) }

func (d *Device) SetUniformFloat(loc int32, v float32) { gl.Uniform1f(loc, v) }

func (d *Device) SetUniformVec2(loc int32, v [2]float32) { gl.Uniform2f(loc, v[0], v[1]) }

func (d *Device) SetUniformVec3(loc int32, v [3]float32) { gl.Uniform3f(loc, v[0], v[1], v[2]) }

func (d *Device) SetUniformVec4(loc int32, v [4]float32) { gl.Uniform4f(loc, v[0], v[1], v[2], v[3]) }

func (d *Device) SetUniformMat3(loc int32, transpose bool, m [9]float32) {
	gl.UniformMatrix3fv(loc, 1, transpose, &m[0])
}

func (d *Device) SetUniformMat4(loc int32, transpose bool, m [16]float32) {
	gl.UniformMatrix4fv(loc, 1, transpose, &m[0])
}

func (d *Device) CreateVertexArray() uint32 {
	var vao uint32
	gl.GenVertexArrays(1, &vao)
	gl.BindVertexArray(vao)
	return vao
}

func (d *Device) BindVertexArray(vao uint32) {
	gl.BindVertexArray(vao)
}

func (d *Device) DeleteVertexArray(vao uint32) {
	gl.DeleteVertexArrays(1, &vao)
}

var bufferTargets = [...]uint32{
	gpu.BufferVertex:  gl.ARRAY_BUFFER,
	gpu.BufferIndex:   gl.ELEMENT_ARRAY_BUFFER,
	gpu.BufferUniform: gl.UNIFORM_BUFFER,
}

var bufferUsages = [...]uint32{
	gpu.UsageStatic:  gl.STATIC_DRAW,
	gpu.UsageDynamic: gl.DYNAMIC_DRAW,
	gpu.UsageStream:  gl.STREAM_DRAW,
}

func (d *Device) CreateBuffer(target gpu.BufferTarget, data []byte, size int, usage gpu.BufferUsage) uint32 {
	var buf uint32
	gl.GenBuffers(1, &buf)
	t := bufferTargets[target]
	gl.BindBuffer(t, buf)
	gl.BufferData(t, size, nil, bufferUsages[usage])
	if len(data) > 0 {
		gl.BufferSubData(t, 0, len(data), gl.Ptr(data))
	}
	d.check("CreateBuffer")
	return buf
}

func (d *Device) UpdateBuffer(target gpu.BufferTarget, buffer uint32, offset int, data []byte) {
	if len(data) == 0 {
		return
	}
	t := bufferTargets[target]
	gl.BindBuffer(t, buffer)
	gl.BufferSubData(t, offset, len(data), gl.Ptr(data))
	d.check("UpdateBuffer")
}

func (d *Device) ReadBuffer(target gpu.BufferTarget, buffer uint32, offset int, out []byte) {
	if len(out) == 0 {
		return
	}
	t := bufferTargets[target]
	gl.BindBuffer(t, buffer)
	gl.GetBufferSubData(t, offset, len(out), gl.Ptr(out))
	d.check("ReadBuffer")
}

func (d *Device) BindBufferBase(target gpu.BufferTarget, binding uint32, buffer uint32) {
	gl.BindBufferBase(bufferTargets[target], binding, buffer)
	d.check("BindBufferBase")
}

func (d *Device) DeleteBuffer(buffer uint32) {
	gl.DeleteBuffers(1, &buffer)
}

var dataTypes = [...]uint32{
	gpu.TypeFloat:  gl.FLOAT,
	gpu.TypeInt:    gl.INT,
	gpu.TypeUInt:   gl.UNSIGNED_INT,
	gpu.TypeShort:  gl.SHORT,
	gpu.TypeUShort: gl.UNSIGNED_SHORT,
	gpu.TypeByte:   gl.BYTE,
	gpu.TypeUByte:  gl.UNSIGNED_BYTE,
}

func (d *Device) VertexAttribPointer(slot uint32, count int, typ gpu.DataType, normalized bool, stride, offset int) {
	if typ != gpu.TypeFloat && !normalized {
		gl.VertexAttribIPointer(slot, int32(count), dataTypes[typ], int32(stride), gl.PtrOffset(offset))
	} else {
		gl.VertexAttribPointer(slot, int32(count), dataTypes[typ], normalized, int32(stride), gl.PtrOffset(offset))
	}
	gl.EnableVertexAttribArray(slot)
	d.check("VertexAttribPointer")
}

type glFormat struct {
	internal uint32
	format   uint32
	xtype    uint32
}

var textureFormats = [...]glFormat{
	gpu.FormatR8:              {gl.R8, gl.RED, gl.UNSIGNED_BYTE},
	gpu.FormatRGB8:            {gl.RGB8, gl.RGB, gl.UNSIGNED_BYTE},
	gpu.FormatRGBA8:           {gl.RGBA8, gl.RGBA, gl.UNSIGNED_BYTE},
	gpu.FormatRGBA16F:         {gl.RGBA16F, gl.RGBA, gl.FLOAT},
	gpu.FormatRGBA32F:         {gl.RGBA32F, gl.RGBA, gl.FLOAT},
	gpu.FormatDepth24:         {gl.DEPTH_COMPONENT24, gl.DEPTH_COMPONENT, gl.UNSIGNED_INT},
	gpu.FormatDepth32F:        {gl.DEPTH_COMPONENT32F, gl.DEPTH_COMPONENT, gl.FLOAT},
	gpu.FormatStencil8:        {gl.STENCIL_INDEX8, gl.STENCIL_INDEX, gl.UNSIGNED_BYTE},
	gpu.FormatDepth24Stencil8: {gl.DEPTH24_STENCIL8, gl.DEPTH_STENCIL, gl.UNSIGNED_INT_24_8},
}

func (d *Device) CreateTexture(desc gpu.TextureDesc, pixels []byte) uint32 {
	var tex uint32
	gl.GenTextures(1, &tex)
	gl.BindTexture(gl.TEXTURE_2D, tex)

	f := textureFormats[desc.Format]
	var ptr unsafe.Pointer
	if len(pixels) > 0 {
		ptr = gl.Ptr(pixels)
		gl.PixelStorei(gl.UNPACK_ALIGNMENT, 1)
	}
	gl.TexImage2D(gl.TEXTURE_2D, 0, int32(f.internal), int32(desc.Width), int32(desc.Height), 0, f.format, f.xtype, ptr)

	minFilter, magFilter := int32(gl.LINEAR), int32(gl.LINEAR)
	if desc.Filter == gpu.FilterNearest {
		minFilter, magFilter = gl.NEAREST, gl.NEAREST
	}
	if desc.Mipmaps {
		gl.GenerateMipmap(gl.TEXTURE_2D)
		minFilter = gl.LINEAR_MIPMAP_LINEAR
	}
	wrap := int32(gl.REPEAT)
	if desc.Wrap == gpu.WrapClamp {
		wrap = gl.CLAMP_TO_EDGE
	}
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, minFilter)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, magFilter)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, wrap)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, wrap)

	gl.BindTexture(gl.TEXTURE_2D, 0)
	d.check("CreateTexture")
	return tex
}

func (d *Device) BindTexture(unit int, texture uint32) {
	gl.ActiveTexture(gl.TEXTURE0 + uint32(unit))
	gl.BindTexture(gl.TEXTURE_2D, texture)
}

func (d *Device) DeleteTexture(texture uint32) {
	gl.DeleteTextures(1, &texture)
}

func (d *Device) CreateFramebuffer() uint32 {
	var fb uint32
	gl.GenFramebuffers(1, &fb)
	return fb
}

func (d *Device) BindFramebuffer(fb uint32) {
	gl.BindFramebuffer(gl.FRAMEBUFFER, fb)
	d.check("BindFramebuffer")
}

func (d *Device) DeleteFramebuffer(fb uint32) {
	gl.DeleteFramebuffers(1, &fb)
}

func (d *Device) CreateRenderbuffer(format gpu.TextureFormat, width, height int) uint32 {
	var rb uint32
	gl.GenRenderbuffers(1, &rb)
	gl.BindRenderbuffer(gl.RENDERBUFFER, rb)
	gl.RenderbufferStorage(gl.RENDERBUFFER, textureFormats[format].internal, int32(width), int32(height))
	gl.BindRenderbuffer(gl.RENDERBUFFER, 0)
	d.check("CreateRenderbuffer")
	return rb
}

func (d *Device) DeleteRenderbuffer(rb uint32) {
	gl.DeleteRenderbuffers(1, &rb)
}

func attachment(point gpu.AttachmentPoint) uint32 {
	switch point {
	case gpu.AttachmentDepth:
		return gl.DEPTH_ATTACHMENT
	case gpu.AttachmentStencil:
		return gl.STENCIL_ATTACHMENT
	case gpu.AttachmentDepthStencil:
		return gl.DEPTH_STENCIL_ATTACHMENT
	}
	return gl.COLOR_ATTACHMENT0 + uint32(point.ColorIndex())
}

func (d *Device) FramebufferTexture(fb uint32, point gpu.AttachmentPoint, texture uint32) {
	gl.BindFramebuffer(gl.FRAMEBUFFER, fb)
	gl.FramebufferTexture2D(gl.FRAMEBUFFER, attachment(point), gl.TEXTURE_2D, texture, 0)
	d.check("FramebufferTexture")
}

func (d *Device) FramebufferRenderbuffer(fb uint32, point gpu.AttachmentPoint, rb uint32) {
	gl.BindFramebuffer(gl.FRAMEBUFFER, fb)
	gl.FramebufferRenderbuffer(gl.FRAMEBUFFER, attachment(point), gl.RENDERBUFFER, rb)
	d.check("FramebufferRenderbuffer")
}

func (d *Device) DrawBuffers(fb uint32, points []gpu.AttachmentPoint) {
	gl.BindFramebuffer(gl.FRAMEBUFFER, fb)
	if len(points) == 0 {
		gl.DrawBuffer(gl.NONE)
		d.check("DrawBuffers")
		return
	}
	bufs := make([]uint32, len(points))
	for i, p := range points {
		bufs[i] = attachment(p)
	}
	gl.DrawBuffers(int32(len(bufs)), &bufs[0])
	d.check("DrawBuffers")
}

func (d *Device) CheckFramebuffer(fb uint32) error {
	gl.BindFramebuffer(gl.FRAMEBUFFER, fb)
	if status := gl.CheckFramebufferStatus(gl.FRAMEBUFFER); status != gl.FRAMEBUFFER_COMPLETE {
		return fmt.Errorf("framebuffer %d incomplete: 0x%x", fb, status)
	}
	return nil
}

func (d *Device) BlitFramebuffer(src uint32, srcColor int, dst uint32, srcRect, dstRect image.Rectangle) {
	gl.BindFramebuffer(gl.READ_FRAMEBUFFER, src)
	if src == 0 {
		gl.ReadBuffer(gl.BACK)
	} else {
		gl.ReadBuffer(gl.COLOR_ATTACHMENT0 + uint32(srcColor))
	}
	gl.BindFramebuffer(gl.DRAW_FRAMEBUFFER, dst)
	gl.BlitFramebuffer(
		int32(srcRect.Min.X), int32(srcRect.Min.Y), int32(srcRect.Max.X), int32(srcRect.Max.Y),
		int32(dstRect.Min.X), int32(dstRect.Min.Y), int32(dstRect.Max.X), int32(dstRect.Max.Y),
		gl.COLOR_BUFFER_BIT, gl.NEAREST,
	)
	gl.BindFramebuffer(gl.FRAMEBUFFER, dst)
	d.check("BlitFramebuffer")
}

func (d *Device) ReadPixels(fb uint32, rect image.Rectangle, out []byte) {
	gl.BindFramebuffer(gl.READ_FRAMEBUFFER, fb)
	gl.PixelStorei(gl.PACK_ALIGNMENT, 1)
	gl.ReadPixels(int32(rect.Min.X), int32(rect.Min.Y), int32(rect.Dx()), int32(rect.Dy()), gl.RGBA, gl.UNSIGNED_BYTE, gl.Ptr(out))
	d.check("ReadPixels")
}

func (d *Device) Viewport(rect image.Rectangle) {
	gl.Viewport(int32(rect.Min.X), int32(rect.Min.Y), int32(rect.Dx()), int32(rect.Dy()))
}

func (d *Device) SetDepthTest(enable bool) {
	if enable {
		gl.Enable(gl.DEPTH_TEST)
	} else {
		gl.Disable(gl.DEPTH_TEST)
	}
}

func (d *Device) ClearColorAttachment(index int, rgba [4]float32) {
	gl.ClearBufferfv(gl.COLOR, int32(index), &rgba[0])
	d.check("ClearColorAttachment")
}

func (d *Device) ClearDepthStencil(depth float32, stencil int32) {
	gl.DepthMask(true)
	gl.ClearBufferfi(gl.DEPTH_STENCIL, 0, depth, stencil)
	d.check("ClearDepthStencil")
}

func (d *Device) DrawIndexed(count int, typ gpu.IndexType) {
	xtype := uint32(gl.UNSIGNED_INT)
	if typ == gpu.Index16 {
		xtype = gl.UNSIGNED_SHORT
	}
	gl.DrawElements(gl.TRIANGLES, int32(count), xtype, gl.PtrOffset(0))
	d.check("DrawIndexed")
}
