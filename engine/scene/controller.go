package scene

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/hubastard/terra/engine/core"
)

// CameraController: WASD pan, Q/E rotate, scroll zoom.
type CameraController struct {
	MoveSpeed float32 // camera sizes per second
	RotSpeed  float32 // degrees per second
	ZoomStep  float32 // size factor per scroll notch
	Camera    *Camera
}

func NewCameraController(cam *Camera) *CameraController {
	return &CameraController{
		MoveSpeed: 1,
		RotSpeed:  90,
		ZoomStep:  1.1,
		Camera:    cam,
	}
}

func (cc *CameraController) Update(in *core.Input, dt float32) {
	// pan speed follows zoom so the motion feels the same at any size
	speed := cc.MoveSpeed * cc.Camera.Size * dt

	var d mgl32.Vec2
	if in.IsKeyDown(core.KeyW) {
		d[1] += speed
	}
	if in.IsKeyDown(core.KeyS) {
		d[1] -= speed
	}
	if in.IsKeyDown(core.KeyA) {
		d[0] -= speed
	}
	if in.IsKeyDown(core.KeyD) {
		d[0] += speed
	}
	if d != (mgl32.Vec2{}) {
		// pan along the camera's own axes
		rot := mgl32.Rotate2D(mgl32.DegToRad(cc.Camera.Transform.Rotation))
		cc.Camera.Transform.Translate(rot.Mul2x1(d))
	}

	if in.IsKeyDown(core.KeyQ) {
		cc.Camera.Transform.Rotate(cc.RotSpeed * dt)
	}
	if in.IsKeyDown(core.KeyE) {
		cc.Camera.Transform.Rotate(-cc.RotSpeed * dt)
	}

	if _, y := in.TakeScroll(); y != 0 {
		// scrolling up zooms in
		cc.Camera.Zoom(float32(math.Pow(float64(cc.ZoomStep), -y)))
	}
}
