// Package render assembles the presentation target, resource pool, sprite
// program, sprite cache, scene registry and frame loop into a
// core.Renderer.
package render

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/hubastard/terra/engine/assets"
	"github.com/hubastard/terra/engine/gfx/driver"
	"github.com/hubastard/terra/engine/gfx/frame"
	"github.com/hubastard/terra/engine/gfx/renderer2d"
	"github.com/hubastard/terra/engine/gfx/resources"
	"github.com/hubastard/terra/engine/gfx/target"
	"github.com/hubastard/terra/engine/scene"
	"github.com/hubastard/terra/engine/sprite"
)

type Options struct {
	Extent  driver.Extent
	Shaders assets.ShaderProgram
	Sampler driver.AddressMode
	Editor  bool
	// FenceTimeout bounds the per-frame GPU wait; 0 waits forever.
	FenceTimeout time.Duration
	// Decode loads sprite files; nil uses assets.DecodeFile.
	Decode sprite.Decoder
	Log    *slog.Logger
}

// Renderer owns the device and everything built on it.
type Renderer struct {
	dev  driver.Device
	log  *slog.Logger
	info driver.Info

	targets *target.Manager
	pool    *resources.Pool
	program *renderer2d.Program
	sprites *sprite.Cache
	reg     *scene.Registry
	camera  *scene.Camera
	loop    *frame.Loop
}

// New builds the renderer on dev. On failure everything created so far is
// released, but dev itself is left to the caller.
func New(dev driver.Device, opts Options) (*Renderer, error) {
	if opts.Log == nil {
		opts.Log = slog.Default()
	}
	r := &Renderer{dev: dev, log: opts.Log, info: dev.Info(), camera: scene.NewCamera()}
	ready := false
	defer func() {
		if !ready {
			r.release()
		}
	}()

	var err error

	if r.targets, err = target.New(dev, opts.Extent, opts.Log); err != nil {
		return nil, fmt.Errorf("presentation target: %w", err)
	}
	if r.pool, err = resources.New(dev, resources.Options{Address: opts.Sampler}); err != nil {
		return nil, fmt.Errorf("resource pool: %w", err)
	}
	r.program, err = renderer2d.New(dev, r.pool, r.targets.RenderPass(), opts.Shaders, renderer2d.Options{
		Editor: opts.Editor,
		Log:    opts.Log,
	})
	if err != nil {
		return nil, err
	}
	r.sprites = sprite.NewCache(r.pool, r.program, opts.Decode, opts.Log)
	r.reg = scene.NewRegistry(r.sprites, opts.Log)

	r.loop, err = frame.New(dev, r.targets, frame.RecorderFunc(r.record), frame.Options{
		FenceTimeout: opts.FenceTimeout,
		OnRetarget:   r.program.Rebuild,
		Log:          opts.Log,
	})
	if err != nil {
		return nil, err
	}

	ready = true
	r.log.Info("renderer ready",
		"backend", r.info.Backend,
		"device", r.info.Renderer,
		"type", r.info.DeviceType,
		"extent", r.targets.Extent(),
		"images", r.targets.ImageCount(),
	)
	return r, nil
}

func (r *Renderer) record(cb driver.CommandBuffer, f target.Frame) error {
	return r.program.Draw(cb, f, renderer2d.Scene{Camera: r.camera, Registry: r.reg, Sprites: r.sprites})
}

// Resize schedules a target recreation for the new framebuffer size.
func (r *Renderer) Resize(w, h int) {
	r.loop.Resize(driver.Extent{Width: w, Height: h})
}

// RenderFrame draws and presents one frame. Frames skipped while the
// surface is unusable are not errors.
func (r *Renderer) RenderFrame() error {
	_, err := r.loop.Frame()
	return err
}

// Shutdown waits for the device and frees every GPU object, the device
// included.
func (r *Renderer) Shutdown() {
	if err := r.dev.WaitIdle(); err != nil {
		r.log.Warn("wait idle on shutdown", "error", err)
	}
	r.release()
	r.dev.Destroy()
	r.log.Info("renderer shut down", "frames", r.Frames())
}

func (r *Renderer) release() {
	if r.loop != nil {
		r.loop.Destroy()
	}
	if r.sprites != nil {
		r.sprites.Destroy()
	}
	if r.program != nil {
		r.program.Destroy()
	}
	if r.pool != nil {
		r.pool.Destroy()
	}
	if r.targets != nil {
		r.targets.Destroy()
	}
}

func (r *Renderer) Scene() *scene.Registry       { return r.reg }
func (r *Renderer) Camera() *scene.Camera        { return r.camera }
func (r *Renderer) Sprites() *sprite.Cache       { return r.sprites }
func (r *Renderer) Info() driver.Info            { return r.info }
func (r *Renderer) Extent() driver.Extent        { return r.targets.Extent() }
func (r *Renderer) Program() *renderer2d.Program { return r.program }

// Stats are the counts of the last recorded frame.
func (r *Renderer) Stats() renderer2d.Statistics { return r.program.Stats() }

// Frames counts presented frames.
func (r *Renderer) Frames() uint64 {
	if r.loop == nil {
		return 0
	}
	return r.loop.Frames()
}

// Evict frees the GPU resource of a sprite once the device is idle.
// Instances of the sprite stay registered and are skipped until the sprite
// is loaded again.
func (r *Renderer) Evict(id sprite.ID) (bool, error) {
	if err := r.dev.WaitIdle(); err != nil {
		return false, fmt.Errorf("evict sprite %s: %w", id, err)
	}
	return r.sprites.Evict(id), nil
}

// Reload loads the resource of every registered sprite that is not
// resident, for instance after an Evict.
func (r *Renderer) Reload() error {
	for _, s := range r.reg.Sprites() {
		if _, err := r.sprites.GetOrCreate(s); err != nil {
			return err
		}
	}
	return nil
}
