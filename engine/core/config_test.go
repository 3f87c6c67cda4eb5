package core

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hubastard/terra/engine/gfx/driver"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "terra.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, driver.AddressClampToBorder, cfg.AddressMode())
	lvl, err := cfg.Level()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelInfo, lvl)
}

func TestLoadConfigOverlaysDefaults(t *testing.T) {
	path := writeConfig(t, `
backend: gl
editor: true
log_level: debug
sampler: repeat
fence_timeout: 2s
camera:
  size: 8
scene:
  - sprite: ship.png
    position: [2, 0]
  - name: tinted
    sprite: rock.png
    scale: [2, 3]
    rotation: 45
    color: [1, 0, 0]
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, BackendGL, cfg.Backend)
	assert.True(t, cfg.Editor)
	assert.Equal(t, 2*time.Second, cfg.FenceTimeout)
	assert.Equal(t, driver.AddressRepeat, cfg.AddressMode())
	assert.Equal(t, float32(8), cfg.Camera.Size)
	assert.Equal(t, float32(-1), cfg.Camera.Near, "unset keeps the default")
	assert.Equal(t, 1280, cfg.Width)

	require.Len(t, cfg.Scene, 2)
	ship := cfg.Scene[0]
	assert.Equal(t, "ship.png", ship.Name)
	assert.Equal(t, [2]float32{2, 0}, ship.Position)
	assert.Equal(t, [2]float32{1, 1}, ship.Scale)
	assert.Equal(t, [3]float32{1, 1, 1}, ship.Color)
	assert.Equal(t, [3]float32{1, 0, 0}, cfg.Scene[1].Color)
	assert.Equal(t, float32(45), cfg.Scene[1].Rotation)
}

func TestLoadConfigRejects(t *testing.T) {
	for name, body := range map[string]string{
		"backend":   "backend: metal",
		"level":     "log_level: loud",
		"sampler":   "sampler: mirror",
		"size":      "width: 0",
		"camera":    "camera: {near: 1, far: 1}",
		"no sprite": "scene: [{name: empty}]",
		"syntax":    "width: [",
	} {
		_, err := LoadConfig(writeConfig(t, body))
		assert.Error(t, err, name)
	}

	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestInputScrollIsTakenOnce(t *testing.T) {
	in := NewInput()
	in.Handle(EventScroll{Yoff: 1})
	in.Handle(EventScroll{Yoff: 0.5})
	_, y := in.TakeScroll()
	assert.Equal(t, 1.5, y)
	_, y = in.TakeScroll()
	assert.Zero(t, y)

	in.Handle(EventKey{Key: KeyW, Down: true})
	assert.True(t, in.IsKeyDown(KeyW))
	in.Handle(EventKey{Key: KeyW})
	assert.False(t, in.IsKeyDown(KeyW))
}
