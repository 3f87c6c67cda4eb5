// Package scene holds what gets drawn: transforms, the camera, sprite
// instances and the registry that groups instances by sprite.
package scene

import "github.com/go-gl/mathgl/mgl32"

// Transform places an object in the 2D world. Rotation is in degrees,
// counter-clockwise.
type Transform struct {
	Position mgl32.Vec2
	Scale    mgl32.Vec2
	Rotation float32
}

// Identity is the transform at the origin with unit scale.
func Identity() Transform {
	return Transform{Scale: mgl32.Vec2{1, 1}}
}

// Matrix returns the model matrix: scale, then rotate, then translate.
func (t Transform) Matrix() mgl32.Mat4 {
	return mgl32.Translate3D(t.Position.X(), t.Position.Y(), 0).
		Mul4(mgl32.HomogRotate3DZ(mgl32.DegToRad(t.Rotation))).
		Mul4(mgl32.Scale3D(t.Scale.X(), t.Scale.Y(), 1))
}

func (t *Transform) Translate(d mgl32.Vec2) { t.Position = t.Position.Add(d) }
func (t *Transform) Rotate(deg float32)     { t.Rotation += deg }
