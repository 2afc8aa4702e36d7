package shader

import (
	"fmt"

	"github.com/Faultbox/midgard-gfx/internal/engine/registry"
	"github.com/Faultbox/midgard-gfx/internal/gpu"
)

// CreateUniformBuffer allocates size bytes, optionally initialized from data.
func (l *Library) CreateUniformBuffer(name string, size int, flags gpu.StorageFlags, data []byte) (registry.Handle, error) {
	if size <= 0 {
		return registry.Invalid, fmt.Errorf("uniform buffer %q: size must be positive, got %d", name, size)
	}
	if len(data) > size {
		return registry.Invalid, fmt.Errorf("uniform buffer %q: %w: %d initial bytes for size %d", name, ErrBufferRange, len(data), size)
	}
	id := l.dev.CreateBuffer(gpu.BufferUniform, data, size, flags.Usage())
	return l.buffers.Add(&UniformBuffer{Name: name, Size: size, Binding: -1, Flags: flags, DeviceID: id}), nil
}

// UniformBuffer returns the buffer for h or nil.
func (l *Library) UniformBuffer(h registry.Handle) *UniformBuffer { return l.buffers.Get(h) }

// FindUniformBuffer returns the handle of the buffer called name, or registry.Invalid.
func (l *Library) FindUniformBuffer(name string) registry.Handle { return l.buffers.Find(name) }

// BindUniformBuffer attaches the buffer to an indexed binding slot read by
// uniform blocks declared with the same binding.
func (l *Library) BindUniformBuffer(h registry.Handle, binding uint32) error {
	b, err := l.buffers.Lookup(h)
	if err != nil {
		return fmt.Errorf("bind uniform buffer: %w", err)
	}
	l.dev.BindBufferBase(gpu.BufferUniform, binding, b.DeviceID)
	b.Binding = int(binding)
	return nil
}

func (b *UniformBuffer) checkRange(offset, n int) error {
	if offset < 0 || offset+n > b.Size {
		return fmt.Errorf("uniform buffer %q: %w: [%d,%d) of %d", b.Name, ErrBufferRange, offset, offset+n, b.Size)
	}
	return nil
}

// WriteUniformBuffer replaces bytes at offset. The buffer needs the write or
// dynamic storage flag.
func (l *Library) WriteUniformBuffer(h registry.Handle, offset int, data []byte) error {
	b, err := l.buffers.Lookup(h)
	if err != nil {
		return fmt.Errorf("write uniform buffer: %w", err)
	}
	if !b.Flags.Has(gpu.StorageWrite) && !b.Flags.Has(gpu.StorageDynamic) {
		return fmt.Errorf("write uniform buffer %q: %w", b.Name, ErrBufferAccess)
	}
	if err := b.checkRange(offset, len(data)); err != nil {
		return err
	}
	l.dev.UpdateBuffer(gpu.BufferUniform, b.DeviceID, offset, data)
	return nil
}

// ReadUniformBuffer copies len(out) bytes at offset back from the device.
// The buffer needs the read storage flag.
func (l *Library) ReadUniformBuffer(h registry.Handle, offset int, out []byte) error {
	b, err := l.buffers.Lookup(h)
	if err != nil {
		return fmt.Errorf("read uniform buffer: %w", err)
	}
	if !b.Flags.Has(gpu.StorageRead) {
		return fmt.Errorf("read uniform buffer %q: %w", b.Name, ErrBufferAccess)
	}
	if err := b.checkRange(offset, len(out)); err != nil {
		return err
	}
	l.dev.ReadBuffer(gpu.BufferUniform, b.DeviceID, offset, out)
	return nil
}
