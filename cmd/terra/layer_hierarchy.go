package main

import (
	"image/color"
	"log/slog"
	"strings"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/hubastard/terra/engine/assets"
	"github.com/hubastard/terra/engine/core"
	"github.com/hubastard/terra/engine/gfx/render"
	"github.com/hubastard/terra/engine/scene"
	"github.com/hubastard/terra/engine/sprite"
	"github.com/hubastard/terra/engine/text"
)

const hierarchySprite = "editor-hierarchy"

// HierarchyLayer lists the scene instances in a label pinned to the top
// left of the view. H toggles it.
type HierarchyLayer struct {
	rend    *render.Renderer
	font    *text.Font
	label   *scene.Instance
	content string
	size    [2]int
	hidden  bool
}

func (l *HierarchyLayer) OnAttach(e *core.Engine) {
	var err error
	if l.font, err = text.Default(18); err != nil {
		slog.Error("hierarchy font", "error", err)
	}
}

func (l *HierarchyLayer) OnDetach(e *core.Engine) {
	l.font.Close()
}

func (l *HierarchyLayer) OnUpdate(e *core.Engine, dt float64) {
	if l.font == nil || l.hidden {
		return
	}
	if s := l.describe(); s != l.content {
		l.refresh(s)
	}
	l.pin()
}

func (l *HierarchyLayer) OnRender(e *core.Engine, alpha float64) {}

func (l *HierarchyLayer) OnEvent(e *core.Engine, ev core.Event) bool {
	if k, ok := ev.(core.EventKey); ok && k.Down && k.Key == core.KeyH {
		l.hidden = !l.hidden
		if l.hidden {
			l.drop()
		}
		return true
	}
	return false
}

// describe lists instance names, leaving out the label itself.
func (l *HierarchyLayer) describe() string {
	var b strings.Builder
	b.WriteString("Scene")
	for _, in := range l.rend.Scene().Instances() {
		if l.label != nil && in.ID == l.label.ID {
			continue
		}
		b.WriteString("\n  ")
		b.WriteString(in.Name)
	}
	return b.String()
}

// refresh swaps the label for one showing s. The memory sprite keeps its
// id, so its old resource is evicted before the new pixels are added.
func (l *HierarchyLayer) refresh(s string) {
	l.drop()
	img := l.font.Render(s, color.White, 4)
	sp := sprite.FromImage(hierarchySprite, img)
	if _, err := l.rend.Evict(sp.ID); err != nil {
		slog.Error("hierarchy label", "error", err)
		return
	}
	l.label = scene.NewInstance(hierarchySprite, sp)
	if err := l.rend.Scene().Add(l.label); err != nil {
		slog.Error("hierarchy label", "error", err)
		l.label = nil
		return
	}
	l.content = s
	l.size = [2]int{img.Width, img.Height}
}

func (l *HierarchyLayer) drop() {
	if l.label == nil {
		return
	}
	if err := l.rend.Scene().Remove(l.label.ID); err != nil {
		slog.Warn("hierarchy label", "error", err)
	}
	l.label, l.content = nil, ""
}

// pin keeps the label in the top-left corner of the camera view.
func (l *HierarchyLayer) pin() {
	if l.label == nil {
		return
	}
	cam := l.rend.Camera()
	half := mgl32.Vec2{cam.Size, cam.Size}
	if ext := l.rend.Extent(); cam.KeepAspect && !ext.Zero() {
		if aspect := float32(ext.Width) / float32(ext.Height); aspect >= 1 {
			half[0] *= aspect
		} else {
			half[1] /= aspect
		}
	}

	scale := cam.Size * 0.5
	q := assets.Image{Width: l.size[0], Height: l.size[1]}
	w, h := quadSize(q, scale)
	margin := cam.Size * 0.05
	local := mgl32.Vec2{-half[0] + margin + w/2, half[1] - margin - h/2}
	rot := mgl32.Rotate2D(mgl32.DegToRad(cam.Transform.Rotation))

	t := &l.label.Transform
	t.Position = cam.Transform.Position.Add(rot.Mul2x1(local))
	t.Rotation = cam.Transform.Rotation
	t.Scale = mgl32.Vec2{scale, scale}
}

// quadSize is the world size of a sprite quad of img at uniform scale.
// The longer side of a quad is one unit.
func quadSize(img assets.Image, scale float32) (w, h float32) {
	if img.Width >= img.Height {
		return scale, scale * float32(img.Height) / float32(max(img.Width, 1))
	}
	return scale * float32(img.Width) / float32(img.Height), scale
}
