package lighting

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func TestSanitized(t *testing.T) {
	got := PointLight{Color: mgl32.Vec3{2, -1, 0.5}}.Sanitized()
	if got.Color != (mgl32.Vec3{1, 0, 0.5}) {
		t.Errorf("color = %v", got.Color)
	}
	if got.Radius != DefaultRadius {
		t.Errorf("radius = %v, want %v", got.Radius, DefaultRadius)
	}
	if r := (PointLight{Radius: 3}).Sanitized().Radius; r != 3 {
		t.Errorf("positive radius changed to %v", r)
	}
}

func TestPointLightBuffer(t *testing.T) {
	tests := []struct {
		name        string
		max         int
		lights      int
		wantLen     int
		wantDropped int
	}{
		{"empty", 4, 0, 0, 0},
		{"fits", 4, 4, 4, 0},
		{"overflow", 4, 7, 4, 3},
		{"zero capacity", 0, 2, 0, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewPointLightBuffer(tt.max)
			lights := make([]PointLight, tt.lights)
			for i := range lights {
				lights[i].Position = mgl32.Vec3{float32(i), 0, 0}
			}
			if dropped := b.SetLights(lights); dropped != tt.wantDropped {
				t.Errorf("dropped = %d, want %d", dropped, tt.wantDropped)
			}
			if b.Len() != tt.wantLen {
				t.Errorf("Len() = %d, want %d", b.Len(), tt.wantLen)
			}
			for i, l := range b.Lights() {
				if l.Position[0] != float32(i) {
					t.Errorf("light %d out of order", i)
				}
			}
		})
	}
}

func TestAddLightStopsAtMax(t *testing.T) {
	b := NewPointLightBuffer(1)
	if !b.AddLight(PointLight{}) {
		t.Fatal("first AddLight failed")
	}
	if b.AddLight(PointLight{}) {
		t.Error("AddLight beyond max succeeded")
	}
	b.Clear()
	if b.Len() != 0 || b.Max() != 1 {
		t.Errorf("after Clear Len=%d Max=%d", b.Len(), b.Max())
	}
}
