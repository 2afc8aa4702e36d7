// Package config handles renderer and viewer configuration loading.
package config

// Config holds all settings.
type Config struct {
	Graphics GraphicsConfig `yaml:"graphics"`
	Renderer RendererConfig `yaml:"renderer"`
	Viewer   ViewerConfig   `yaml:"viewer"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// GraphicsConfig holds display and device settings.
type GraphicsConfig struct {
	Width      int  `yaml:"width"`
	Height     int  `yaml:"height"`
	Fullscreen bool `yaml:"fullscreen"`
	VSync      bool `yaml:"vsync"`
	// DebugGL polls the device error state after every call.
	DebugGL bool `yaml:"debug_gl"`
}

// RendererConfig holds deferred pipeline settings.
type RendererConfig struct {
	ClearColor [4]float32 `yaml:"clear_color"`
	// TransposeMatrices uploads matrices row-major. Applies to every matrix upload.
	TransposeMatrices bool   `yaml:"transpose_matrices"`
	ShaderDir         string `yaml:"shader_dir"` // Empty uses the embedded shaders
	PositionFormat    string `yaml:"position_format"`
	NormalFormat      string `yaml:"normal_format"`
	MaxLights         int    `yaml:"max_lights"`
}

// ViewerConfig holds settings of the demo viewer.
type ViewerConfig struct {
	GridSize      int    `yaml:"grid_size"`
	Materials     int    `yaml:"materials"`
	ScreenshotDir string `yaml:"screenshot_dir"`
	// TextureDir adds one material per image file found in it.
	TextureDir string `yaml:"texture_dir"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Graphics: GraphicsConfig{
			Width:  1280,
			Height: 720,
			VSync:  true,
		},
		Renderer: RendererConfig{
			ClearColor:     [4]float32{0.0, 0.0, 0.0, 1.0},
			PositionFormat: "rgba16f",
			NormalFormat:   "rgba16f",
			MaxLights:      32,
		},
		Viewer: ViewerConfig{
			GridSize:      4,
			Materials:     3,
			ScreenshotDir: "screenshots",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}
