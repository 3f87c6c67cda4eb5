package core

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hubastard/terra/engine/colors"
	"github.com/hubastard/terra/engine/gfx/driver"
)

// Backends accepted in Config.Backend.
const (
	BackendVulkan = "vulkan"
	BackendGL     = "gl"
)

// Config for the engine run. It is loaded from YAML; unset fields keep
// their DefaultConfig values.
type Config struct {
	Title      string       `yaml:"title"`
	Width      int          `yaml:"width"`
	Height     int          `yaml:"height"`
	VSync      bool         `yaml:"vsync"`
	Backend    string       `yaml:"backend"`
	Validation bool         `yaml:"validation"`
	Editor     bool         `yaml:"editor"`
	LogLevel   string       `yaml:"log_level"`
	ClearColor colors.Color `yaml:"clear_color"`

	SpriteDir string `yaml:"sprite_dir"`
	ShaderDir string `yaml:"shader_dir"`
	// Sampler is the sprite sampler address mode: clamp-to-border,
	// clamp-to-edge or repeat.
	Sampler string `yaml:"sampler"`
	// MaxSprites bounds the descriptor sets the Vulkan backend can allocate.
	MaxSprites int `yaml:"max_sprites"`
	// FenceTimeout bounds the wait for a frame's GPU work; 0 waits forever.
	FenceTimeout time.Duration `yaml:"fence_timeout"`

	Camera CameraConfig     `yaml:"camera"`
	Scene  []InstanceConfig `yaml:"scene"`
}

type CameraConfig struct {
	Size       float32 `yaml:"size"`
	Near       float32 `yaml:"near"`
	Far        float32 `yaml:"far"`
	KeepAspect bool    `yaml:"keep_aspect"`
}

// InstanceConfig places one sprite instance at startup.
type InstanceConfig struct {
	Name     string     `yaml:"name"`
	Sprite   string     `yaml:"sprite"` // file name inside SpriteDir
	Position [2]float32 `yaml:"position"`
	Scale    [2]float32 `yaml:"scale"`
	Rotation float32    `yaml:"rotation"` // degrees
	Color    [3]float32 `yaml:"color"`
}

// DefaultConfig is the configuration used when no file is given.
func DefaultConfig() Config {
	return Config{
		Title:      "terra",
		Width:      1280,
		Height:     720,
		VSync:      true,
		Backend:    BackendVulkan,
		LogLevel:   "info",
		ClearColor: colors.Black,
		SpriteDir:  "assets/sprites",
		ShaderDir:  "assets/shaders",
		Sampler:    "clamp-to-border",
		MaxSprites: 256,
		Camera:     CameraConfig{Size: 5, Near: -1, Far: 1},
	}
}

// LoadConfig reads a YAML file over DefaultConfig and validates the result.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %q: %w", path, err)
	}
	for i := range cfg.Scene {
		in := &cfg.Scene[i]
		if in.Scale == ([2]float32{}) {
			in.Scale = [2]float32{1, 1}
		}
		if in.Color == ([3]float32{}) {
			in.Color = [3]float32{1, 1, 1}
		}
		if in.Name == "" {
			in.Name = in.Sprite
		}
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config %q: %w", path, err)
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error
	if c.Width <= 0 || c.Height <= 0 {
		errs = append(errs, fmt.Errorf("window size %dx%d", c.Width, c.Height))
	}
	if c.Backend != BackendVulkan && c.Backend != BackendGL {
		errs = append(errs, fmt.Errorf("backend %q: want %q or %q", c.Backend, BackendVulkan, BackendGL))
	}
	if _, err := c.Level(); err != nil {
		errs = append(errs, err)
	}
	if _, err := driver.ParseAddressMode(c.Sampler); err != nil {
		errs = append(errs, err)
	}
	if c.MaxSprites <= 0 {
		errs = append(errs, fmt.Errorf("max_sprites %d", c.MaxSprites))
	}
	if c.FenceTimeout < 0 {
		errs = append(errs, fmt.Errorf("fence_timeout %s", c.FenceTimeout))
	}
	if c.Camera.Size <= 0 {
		errs = append(errs, fmt.Errorf("camera size %g", c.Camera.Size))
	}
	if c.Camera.Near >= c.Camera.Far {
		errs = append(errs, fmt.Errorf("camera near %g not below far %g", c.Camera.Near, c.Camera.Far))
	}
	for _, in := range c.Scene {
		if in.Sprite == "" {
			errs = append(errs, fmt.Errorf("scene instance %q has no sprite", in.Name))
		}
	}
	return errors.Join(errs...)
}

// Level parses LogLevel.
func (c Config) Level() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("log_level: %w", err)
	}
	return l, nil
}

// AddressMode parses Sampler.
func (c Config) AddressMode() driver.AddressMode {
	m, _ := driver.ParseAddressMode(c.Sampler)
	return m
}
