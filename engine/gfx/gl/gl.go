// Package glbackend implements the driver contract on OpenGL 3.3 core.
//
// GL executes immediately, so command buffers record closures that Submit
// replays on the context thread. Fences are sync objects and semaphores are
// no-ops. The default framebuffer is the only swapchain image.
//
// Shaders follow a fixed naming scheme: the uniform block for binding b of
// set slot s is named "Set<s>_<b>", a sampled image is the sampler2D
// uniform "uSet<s>_<b>", and push constants live in the "PushConstants"
// block.
package glbackend

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-gl/gl/v3.3-core/gl"

	"github.com/hubastard/terra/engine/gfx/driver"
)

const (
	// pushBinding is the uniform binding point of the PushConstants block.
	pushBinding = 15
	// pushSize matches the smallest push constant range Vulkan guarantees.
	pushSize = 128
	// bindingsPerSet spaces binding points and texture units per set slot.
	bindingsPerSet = 4
)

var errDestroyed = errors.New("used after destroy")

// Window is the surface GL renders into. Its context must be current on
// the calling thread.
type Window interface {
	SwapBuffers()
}

type Options struct {
	Log *slog.Logger
}

type Device struct {
	win   Window
	log   *slog.Logger
	info  driver.Info
	queue *Queue
	push  uint32
}

var _ driver.Device = (*Device)(nil)

// Open loads the GL entry points for the current context.
func Open(win Window, opts Options) (*Device, error) {
	if opts.Log == nil {
		opts.Log = slog.Default()
	}
	if err := gl.Init(); err != nil {
		return nil, fmt.Errorf("init OpenGL: %w", err)
	}
	d := &Device{win: win, log: opts.Log}
	d.queue = &Queue{dev: d}
	renderer := gl.GoStr(gl.GetString(gl.RENDERER))
	d.info = driver.Info{
		Backend:      "opengl",
		Vendor:       gl.GoStr(gl.GetString(gl.VENDOR)),
		Renderer:     renderer,
		Version:      gl.GoStr(gl.GetString(gl.VERSION)),
		DeviceType:   deviceType(renderer),
		ShaderFormat: driver.ShaderGLSL,
	}

	gl.GenBuffers(1, &d.push)
	gl.BindBuffer(gl.UNIFORM_BUFFER, d.push)
	gl.BufferData(gl.UNIFORM_BUFFER, pushSize, nil, gl.DYNAMIC_DRAW)
	gl.BindBufferBase(gl.UNIFORM_BUFFER, pushBinding, d.push)
	gl.BindBuffer(gl.UNIFORM_BUFFER, 0)
	gl.Enable(gl.SCISSOR_TEST)
	if err := glError("open"); err != nil {
		d.Destroy()
		return nil, err
	}
	d.log.Info("opengl device ready", "renderer", d.info.Renderer, "version", d.info.Version)
	return d, nil
}

// deviceType guesses the device class from the GL renderer string.
func deviceType(renderer string) driver.DeviceType {
	r := strings.ToLower(renderer)
	for _, soft := range []string{"llvmpipe", "softpipe", "swiftshader", "software"} {
		if strings.Contains(r, soft) {
			return driver.DeviceCPU
		}
	}
	return driver.DeviceOther
}

func (d *Device) Info() driver.Info   { return d.info }
func (d *Device) Queue() driver.Queue { return d.queue }

func (d *Device) WaitIdle() error {
	gl.Finish()
	return glError("finish")
}

func (d *Device) Destroy() {
	if d.push != 0 {
		gl.DeleteBuffers(1, &d.push)
		d.push = 0
	}
}

func glError(op string) error {
	if e := gl.GetError(); e != gl.NO_ERROR {
		return fmt.Errorf("opengl %s: error %#x", op, e)
	}
	return nil
}

func destroyed(kind, op string) error {
	return &driver.ResourceError{Resource: kind, Op: op, Err: errDestroyed}
}
