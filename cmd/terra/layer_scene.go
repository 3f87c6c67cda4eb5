package main

import (
	"log/slog"
	"os"
	"path/filepath"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/hubastard/terra/engine/colors"
	"github.com/hubastard/terra/engine/core"
	"github.com/hubastard/terra/engine/gfx/render"
	"github.com/hubastard/terra/engine/profiler"
	"github.com/hubastard/terra/engine/scene"
	"github.com/hubastard/terra/engine/sprite"
)

// SceneLayer loads the configured scene and drives the camera.
type SceneLayer struct {
	cfg     core.Config
	rend    *render.Renderer
	ctrl    *scene.CameraController
	catalog *sprite.Catalog
	// placed in creation order; Delete removes the newest
	placed []scene.InstanceID
}

func (l *SceneLayer) OnAttach(e *core.Engine) {
	cam := l.rend.Camera()
	cam.Size = l.cfg.Camera.Size
	cam.Near, cam.Far = l.cfg.Camera.Near, l.cfg.Camera.Far
	cam.KeepAspect = l.cfg.Camera.KeepAspect
	cam.ClearColor = l.cfg.ClearColor
	l.ctrl = scene.NewCameraController(cam)

	var err error
	if l.catalog, err = sprite.Scan(l.cfg.SpriteDir); err != nil {
		slog.Warn("sprite directory unavailable", "dir", l.cfg.SpriteDir, "error", err)
	}
	for _, ic := range l.cfg.Scene {
		l.place(ic)
	}
	slog.Info("scene loaded", "instances", l.rend.Scene().Len(), "sprites", l.rend.Sprites().Len())
}

func (l *SceneLayer) place(ic core.InstanceConfig) {
	s, ok := sprite.Sprite{}, false
	if l.catalog != nil {
		s, ok = l.catalog.ByName(ic.Sprite)
	}
	if !ok {
		var err error
		if s, err = sprite.New(filepath.Join(l.cfg.SpriteDir, ic.Sprite)); err != nil {
			slog.Error("scene instance skipped", "name", ic.Name, "error", err)
			return
		}
	}
	in := scene.NewInstance(ic.Name, s)
	in.Transform.Position = mgl32.Vec2(ic.Position)
	in.Transform.Scale = mgl32.Vec2(ic.Scale)
	in.Transform.Rotation = ic.Rotation
	in.Color = colors.RGB(ic.Color[0], ic.Color[1], ic.Color[2])
	if err := l.rend.Scene().Add(in); err != nil {
		slog.Error("scene instance skipped", "name", ic.Name, "error", err)
		return
	}
	l.placed = append(l.placed, in.ID)
}

func (l *SceneLayer) OnDetach(e *core.Engine) {}

func (l *SceneLayer) OnUpdate(e *core.Engine, dt float64) {
	l.ctrl.Update(e.Input, float32(dt))
}

func (l *SceneLayer) OnRender(e *core.Engine, alpha float64) {}

func (l *SceneLayer) OnEvent(e *core.Engine, ev core.Event) bool {
	k, ok := ev.(core.EventKey)
	if !ok || !k.Down {
		return false
	}
	switch {
	case k.Key == core.KeyEscape:
		e.Window.RequestClose()
		return true
	case k.Key == core.KeyP && k.Mods&core.ModCtrl != 0:
		if path, err := profiler.Dump(os.TempDir()); err == nil {
			slog.Info("speedscope dump written", "path", path)
		} else {
			slog.Warn("profiler dump failed", "error", err)
		}
		return true
	case k.Key == core.KeyDelete:
		l.removeNewest()
		return true
	case k.Key == core.KeyR && k.Mods&core.ModCtrl != 0:
		l.reload()
		return true
	}
	return false
}

func (l *SceneLayer) removeNewest() {
	if len(l.placed) == 0 {
		return
	}
	id := l.placed[len(l.placed)-1]
	l.placed = l.placed[:len(l.placed)-1]
	if err := l.rend.Scene().Remove(id); err != nil {
		slog.Warn("remove instance", "id", id, "error", err)
	}
}

// reload drops every file-backed sprite from the GPU and loads it again
// from disk.
func (l *SceneLayer) reload() {
	for _, s := range l.rend.Scene().Sprites() {
		if s.InMemory() {
			continue
		}
		if _, err := l.rend.Evict(s.ID); err != nil {
			slog.Error("evict sprite", "sprite", s.Path, "error", err)
			return
		}
	}
	if err := l.rend.Reload(); err != nil {
		slog.Error("reload sprites", "error", err)
	}
}
