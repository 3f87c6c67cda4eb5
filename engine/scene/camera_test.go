package scene

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"

	"github.com/hubastard/terra/engine/core"
	"github.com/hubastard/terra/engine/gfx/driver"
)

func assertVec(t *testing.T, want, got mgl32.Vec4) {
	t.Helper()
	assert.True(t, want.ApproxEqualThreshold(got, 1e-5), "want %v, got %v", want, got)
}

func TestProjectionMapsSizeToClipEdges(t *testing.T) {
	cam := NewCamera()
	assert.Equal(t, float32(5), cam.Size)
	p := cam.Projection(driver.Extent{Width: 800, Height: 600})

	assertVec(t, mgl32.Vec4{1, 1, 0, 1}, p.Mul4x1(mgl32.Vec4{5, 5, 0, 1}))
	assertVec(t, mgl32.Vec4{-1, -1, 0, 1}, p.Mul4x1(mgl32.Vec4{-5, -5, 0, 1}))
	assertVec(t, mgl32.Vec4{0.4, 0, 0, 1}, p.Mul4x1(mgl32.Vec4{2, 0, 0, 1}))
}

func TestProjectionKeepAspect(t *testing.T) {
	cam := NewCamera()
	cam.KeepAspect = true
	p := cam.Projection(driver.Extent{Width: 800, Height: 400})
	// x extends to ±10 on a 2:1 target, y stays ±5
	assertVec(t, mgl32.Vec4{1, 1, 0, 1}, p.Mul4x1(mgl32.Vec4{10, 5, 0, 1}))

	p = cam.Projection(driver.Extent{Width: 400, Height: 800})
	assertVec(t, mgl32.Vec4{1, 1, 0, 1}, p.Mul4x1(mgl32.Vec4{5, 10, 0, 1}))
}

func TestProjectionKeepAspectDegenerateViewport(t *testing.T) {
	cam := NewCamera()
	cam.KeepAspect = true
	for _, r := range []Rect{{Width: 1, Height: 0}, {Width: 0, Height: 1}} {
		cam.Viewport = &r
		p := cam.Projection(driver.Extent{Width: 800, Height: 600})
		for i, v := range p {
			assert.False(t, math.IsNaN(float64(v)) || math.IsInf(float64(v), 0), "element %d of %v", i, r)
		}
		assertVec(t, mgl32.Vec4{1, 1, 0, 1}, p.Mul4x1(mgl32.Vec4{5, 5, 0, 1}))
	}
}

func TestViewInvertsCameraPlacement(t *testing.T) {
	cam := NewCamera()
	cam.Transform.Position = mgl32.Vec2{3, 1}
	cam.Transform.Rotation = 90
	// the point the camera sits on is the view origin
	assertVec(t, mgl32.Vec4{0, 0, 0, 1}, cam.View().Mul4x1(mgl32.Vec4{3, 1, 0, 1}))
	// one unit along the camera's local +x
	assertVec(t, mgl32.Vec4{1, 0, 0, 1}, cam.View().Mul4x1(mgl32.Vec4{3, 2, 0, 1}))
}

func TestTransformMatrixScalesRotatesThenTranslates(t *testing.T) {
	tr := Transform{Position: mgl32.Vec2{2, 0}, Scale: mgl32.Vec2{2, 1}, Rotation: 90}
	// (1,0) scaled to (2,0), rotated to (0,2), moved to (2,2)
	assertVec(t, mgl32.Vec4{2, 2, 0, 1}, tr.Matrix().Mul4x1(mgl32.Vec4{1, 0, 0, 1}))

	m := Transform{Position: mgl32.Vec2{2, 0}, Scale: mgl32.Vec2{1, 1}}.Matrix()
	assert.Equal(t, mgl32.Translate3D(2, 0, 0), m)
}

func TestViewportIn(t *testing.T) {
	cam := NewCamera()
	e := driver.Extent{Width: 200, Height: 100}
	assert.Equal(t, driver.FullViewport(e), cam.ViewportIn(e))

	cam.Viewport = &Rect{X: 0.5, Y: 0, Width: 0.5, Height: 1}
	assert.Equal(t, driver.Viewport{X: 100, Y: 0, Width: 100, Height: 100}, cam.ViewportIn(e))
}

func TestControllerPansRotatesZooms(t *testing.T) {
	cam := NewCamera()
	cc := NewCameraController(cam)
	in := core.NewInput()

	in.Handle(core.EventKey{Key: core.KeyD, Down: true})
	cc.Update(in, 0.5)
	assert.InDelta(t, 2.5, cam.Transform.Position.X(), 1e-5)

	in.Handle(core.EventKey{Key: core.KeyD, Down: false})
	in.Handle(core.EventKey{Key: core.KeyQ, Down: true})
	cc.Update(in, 1)
	assert.InDelta(t, 90, cam.Transform.Rotation, 1e-5)

	in.Handle(core.EventKey{Key: core.KeyQ, Down: false})
	in.Handle(core.EventScroll{Yoff: 1})
	cc.Update(in, 1)
	assert.InDelta(t, 5/1.1, cam.Size, 1e-4)

	cc.Update(in, 1)
	assert.InDelta(t, 5/1.1, cam.Size, 1e-4, "scroll is consumed once")
}
