package gpu

import (
	"fmt"
	"testing"
)

func TestShaderKindBits(t *testing.T) {
	var mask uint8
	for k := ShaderVertex; k < ShaderKindCount; k++ {
		if mask&k.Bit() != 0 {
			t.Fatalf("%s bit overlaps earlier kinds", k)
		}
		mask |= k.Bit()
	}
	if mask != 0x3f {
		t.Errorf("mask = %#x, want 0x3f", mask)
	}
}

func TestAttachmentPoints(t *testing.T) {
	tests := []struct {
		point AttachmentPoint
		class AttachmentClass
		index int
		name  string
	}{
		{AttachmentDepth, ClassDepth, -1, "depth"},
		{AttachmentStencil, ClassStencil, -1, "stencil"},
		{AttachmentDepthStencil, ClassDepthStencil, -1, "depth-stencil"},
		{ColorAttachment(0), ClassColor, 0, "color0"},
		{ColorAttachment(5), ClassColor, 5, "color5"},
		{ColorAttachment(MaxColorIndex), ClassColor, MaxColorIndex, fmt.Sprintf("color%d", MaxColorIndex)},
		{ColorAttachment(-1), ClassColor, -1, "invalid"},
		{ColorAttachment(MaxColorIndex + 1), ClassColor, -1, "invalid"},
		{ColorAttachment(253), ClassColor, -1, "invalid"},
	}
	for _, tt := range tests {
		if got := tt.point.Class(); got != tt.class {
			t.Errorf("%s.Class() = %s, want %s", tt.point, got, tt.class)
		}
		if got := tt.point.ColorIndex(); got != tt.index {
			t.Errorf("%s.ColorIndex() = %d, want %d", tt.point, got, tt.index)
		}
		if got := tt.point.Valid(); got != (tt.name != "invalid") {
			t.Errorf("%s.Valid() = %v", tt.point, got)
		}
		if got := tt.point.String(); got != tt.name {
			t.Errorf("String() = %q, want %q", got, tt.name)
		}
	}
}

func TestTextureFormatClass(t *testing.T) {
	tests := []struct {
		format TextureFormat
		class  AttachmentClass
	}{
		{FormatRGBA8, ClassColor},
		{FormatRGBA16F, ClassColor},
		{FormatDepth24, ClassDepth},
		{FormatDepth32F, ClassDepth},
		{FormatStencil8, ClassStencil},
		{FormatDepth24Stencil8, ClassDepthStencil},
	}
	for _, tt := range tests {
		if got := tt.format.Class(); got != tt.class {
			t.Errorf("%s.Class() = %s, want %s", tt.format, got, tt.class)
		}
	}
}

func TestParseTextureFormat(t *testing.T) {
	for f := FormatR8; f <= FormatDepth24Stencil8; f++ {
		got, err := ParseTextureFormat(f.String())
		if err != nil || got != f {
			t.Errorf("ParseTextureFormat(%q) = %v, %v", f.String(), got, err)
		}
	}
	if _, err := ParseTextureFormat("bgra4"); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestStorageFlags(t *testing.T) {
	f := StorageRead | StorageWrite
	if !f.Has(StorageRead) || f.Has(StorageRead|StoragePersistent) {
		t.Errorf("Has() wrong for %b", f)
	}
	if f.Usage() != UsageStatic {
		t.Errorf("read/write buffer usage = %s", f.Usage())
	}
	if (f | StorageDynamic).Usage() != UsageDynamic {
		t.Error("dynamic flag should select dynamic usage")
	}
}
