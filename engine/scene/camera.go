package scene

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/hubastard/terra/engine/colors"
	"github.com/hubastard/terra/engine/gfx/driver"
)

// Camera defaults.
const (
	DefaultSize = 5
	DefaultNear = -1
	DefaultFar  = 1
)

// Rect is a viewport in normalized [0,1] framebuffer coordinates.
type Rect struct {
	X, Y, Width, Height float32
}

// Camera is an orthographic 2D camera. Size is the half extent of the view
// volume in world units.
type Camera struct {
	Transform Transform
	Size      float32
	Near, Far float32
	// KeepAspect widens the shorter axis so world units stay square on
	// non-square targets. Off, ±Size maps to the framebuffer edges.
	KeepAspect bool
	// Viewport narrows drawing to part of the framebuffer; nil is all of it.
	Viewport   *Rect
	ClearColor colors.Color
}

func NewCamera() *Camera {
	return &Camera{
		Transform:  Identity(),
		Size:       DefaultSize,
		Near:       DefaultNear,
		Far:        DefaultFar,
		ClearColor: colors.Black,
	}
}

// Projection maps (±Size, ±Size) to the clip-space corners for an OpenGL
// style clip space. Backends with another convention correct it afterwards.
func (c *Camera) Projection(extent driver.Extent) mgl32.Mat4 {
	sx, sy := c.Size, c.Size
	if c.KeepAspect && !extent.Zero() {
		vp := c.ViewportIn(extent)
		if vp.Width > 0 && vp.Height > 0 {
			aspect := vp.Width / vp.Height
			if aspect >= 1 {
				sx *= aspect
			} else {
				sy /= aspect
			}
		}
	}
	return mgl32.Ortho(-sx, sx, -sy, sy, c.Near, c.Far)
}

// View is the inverse of the camera placement; camera scale is ignored.
func (c *Camera) View() mgl32.Mat4 {
	t := c.Transform
	return mgl32.HomogRotate3DZ(mgl32.DegToRad(-t.Rotation)).
		Mul4(mgl32.Translate3D(-t.Position.X(), -t.Position.Y(), 0))
}

// ViewportIn resolves the camera viewport against a framebuffer extent.
func (c *Camera) ViewportIn(extent driver.Extent) driver.Viewport {
	full := driver.FullViewport(extent)
	if c.Viewport == nil {
		return full
	}
	r := c.Viewport
	return driver.Viewport{
		X:      r.X * full.Width,
		Y:      r.Y * full.Height,
		Width:  r.Width * full.Width,
		Height: r.Height * full.Height,
	}
}

// Zoom multiplies Size by f, clamped to a small positive minimum.
func (c *Camera) Zoom(f float32) {
	c.Size *= f
	if c.Size < 0.05 {
		c.Size = 0.05
	}
}
