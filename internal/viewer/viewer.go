// Package viewer implements the demo application: a window, the deferred
// renderer and an animated test scene driven by an orbit camera.
package viewer

import (
	"fmt"
	"time"

	"github.com/veandco/go-sdl2/sdl"
	"go.uber.org/zap"

	"github.com/Faultbox/midgard-gfx/internal/config"
	"github.com/Faultbox/midgard-gfx/internal/engine/camera"
	"github.com/Faultbox/midgard-gfx/internal/engine/input"
	"github.com/Faultbox/midgard-gfx/internal/engine/renderer"
	"github.com/Faultbox/midgard-gfx/internal/engine/window"
	"github.com/Faultbox/midgard-gfx/internal/gpu/gldevice"
	"github.com/Faultbox/midgard-gfx/internal/logger"
)

const title = "Midgard GFX"

// Viewer is the main application instance.
type Viewer struct {
	cfg      *config.Config
	running  bool
	window   *window.Window
	renderer *renderer.Renderer
	input    *input.Input
	camera   *camera.OrbitCamera
	scene    *Scene
}

// New creates the window, device, renderer and scene.
func New(cfg *config.Config) (*Viewer, error) {
	v := &Viewer{cfg: cfg, input: input.New(), camera: camera.NewOrbitCamera()}

	var err error
	v.window, err = window.New(window.Config{
		Title:        title,
		Width:        cfg.Graphics.Width,
		Height:       cfg.Graphics.Height,
		Fullscreen:   cfg.Graphics.Fullscreen,
		VSync:        cfg.Graphics.VSync,
		DebugContext: cfg.Graphics.DebugGL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create window: %w", err)
	}

	// Device and renderer need the GL context created by the window.
	dev, err := gldevice.New(cfg.Graphics.DebugGL)
	if err != nil {
		v.Close()
		return nil, err
	}
	rcfg, err := renderer.ConfigFrom(cfg)
	if err != nil {
		v.Close()
		return nil, err
	}
	rcfg.Width, rcfg.Height = v.window.DrawableSize()

	if v.scene, err = BuildScene(cfg.Viewer); err != nil {
		v.Close()
		return nil, fmt.Errorf("failed to build scene: %w", err)
	}
	if v.renderer, err = renderer.New(dev, rcfg, v.scene.Assets); err != nil {
		v.Close()
		return nil, fmt.Errorf("failed to create renderer: %w", err)
	}
	if err := v.renderer.Uploader.Library(v.scene.Assets); err != nil {
		v.Close()
		return nil, fmt.Errorf("failed to upload scene: %w", err)
	}

	v.camera.FitToBounds(v.scene.Bounds())
	v.renderer.SetViewMatrix(&v.camera.View)
	v.renderer.SetProjectionMatrix(&v.camera.Projection)
	v.renderer.SetCameraPosition(&v.camera.Eye)

	logger.Info("viewer initialized")
	return v, nil
}

// Run runs the main loop until the window is closed or Escape is pressed.
func (v *Viewer) Run() error {
	v.running = true
	frameCount := 0
	fpsTimer := time.Now()

	logger.Info("starting main loop")
	for v.running {
		if v.input.Update() {
			v.running = false
			break
		}
		if err := v.handleEvents(); err != nil {
			return err
		}

		w, h := v.renderer.Size()
		v.camera.Update(float32(w) / float32(h))
		v.scene.Update(float32(v.renderer.FrameTimeDelta().Seconds()))
		v.scene.Submit(v.renderer)

		if err := v.renderer.Frame(); err != nil {
			return fmt.Errorf("render error: %w", err)
		}
		v.window.SwapBuffers()

		frameCount++
		if elapsed := time.Since(fpsTimer); elapsed >= time.Second {
			stats := v.renderer.Stats()
			fps := float64(frameCount) / elapsed.Seconds()
			v.window.SetTitle(fmt.Sprintf("%s - %.0f fps, %d draws, %d batches",
				title, fps, stats.DrawCalls, stats.Batches))
			logger.Debug("fps",
				zap.Float64("fps", fps),
				zap.Int("draw_calls", stats.DrawCalls),
				zap.Int("batches", stats.Batches),
				zap.Int("lights", stats.Lights))
			frameCount = 0
			fpsTimer = time.Now()
		}
	}
	return nil
}

func (v *Viewer) handleEvents() error {
	for _, event := range v.input.Events() {
		switch event.Type {
		case input.EventWindowResize:
			w, h := v.window.DrawableSize()
			if w == 0 || h == 0 {
				continue // minimized
			}
			if err := v.renderer.Resize(w, h); err != nil {
				return err
			}
		case input.EventMouseDrag:
			v.camera.HandleDrag(event.DX, event.DY)
		case input.EventMouseWheel:
			v.camera.HandleZoom(event.DY)
		case input.EventKeyDown:
			switch event.Key {
			case sdl.SCANCODE_ESCAPE:
				v.running = false
			case sdl.SCANCODE_V:
				v.window.SetVSync(!v.window.VSync())
			case sdl.SCANCODE_F12:
				if _, err := v.renderer.SaveScreenshot(v.cfg.Viewer.ScreenshotDir); err != nil {
					logger.Warn("screenshot failed", zap.Error(err))
				}
			}
		}
	}
	return nil
}

// Close releases the renderer and the window.
func (v *Viewer) Close() {
	logger.Info("closing viewer")
	if v.renderer != nil {
		v.renderer.Close()
	}
	if v.window != nil {
		v.window.Close()
	}
}
