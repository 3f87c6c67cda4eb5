// Package frame drives presentation: acquire a swapchain image, record and
// submit the frame, present it, and recreate the target when the surface
// changes. One frame is in flight at a time.
package frame

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hubastard/terra/engine/gfx/driver"
	"github.com/hubastard/terra/engine/gfx/target"
	"github.com/hubastard/terra/engine/profiler"
)

// Recorder fills the command buffer for one target frame.
type Recorder interface {
	Record(cb driver.CommandBuffer, f target.Frame) error
}

// RecorderFunc adapts a function to Recorder.
type RecorderFunc func(cb driver.CommandBuffer, f target.Frame) error

func (fn RecorderFunc) Record(cb driver.CommandBuffer, f target.Frame) error { return fn(cb, f) }

// Targets is the presentation target the loop renders into.
// target.Manager implements it.
type Targets interface {
	Recreate(extent driver.Extent) error
	Acquire(signal driver.Semaphore) (int, error)
	Frame(i int) target.Frame
	Swapchain() driver.Swapchain
	RenderPass() driver.RenderPass
}

type Options struct {
	// FenceTimeout bounds the wait for a submitted frame; 0 waits forever.
	FenceTimeout time.Duration
	// OnRetarget runs after a recreation that replaced the render pass.
	OnRetarget func(pass driver.RenderPass) error
	Log        *slog.Logger
}

// Result tells what happened to one Frame call.
type Result int

const (
	Presented Result = iota
	// Skipped means nothing was submitted; the next call retries.
	Skipped
)

func (r Result) String() string {
	if r == Skipped {
		return "skipped"
	}
	return "presented"
}

type Loop struct {
	dev     driver.Device
	targets Targets
	rec     Recorder
	opts    Options
	log     *slog.Logger

	cb          driver.CommandBuffer
	imageReady  driver.Semaphore
	renderDone  driver.Semaphore
	inFlight    driver.Fence
	extent      driver.Extent
	recreate    bool
	frames      uint64
	recreations int
}

func New(dev driver.Device, targets Targets, rec Recorder, opts Options) (*Loop, error) {
	if opts.Log == nil {
		opts.Log = slog.Default()
	}
	l := &Loop{dev: dev, targets: targets, rec: rec, opts: opts, log: opts.Log}
	var err error
	if l.cb, err = dev.NewCommandBuffer(); err != nil {
		return nil, fmt.Errorf("frame command buffer: %w", err)
	}
	if l.imageReady, err = dev.NewSemaphore(); err != nil {
		l.Destroy()
		return nil, fmt.Errorf("image semaphore: %w", err)
	}
	if l.renderDone, err = dev.NewSemaphore(); err != nil {
		l.Destroy()
		return nil, fmt.Errorf("render semaphore: %w", err)
	}
	if l.inFlight, err = dev.NewFence(); err != nil {
		l.Destroy()
		return nil, fmt.Errorf("frame fence: %w", err)
	}
	return l, nil
}

// Resize asks for the target to be recreated at extent before the next
// frame. A zero extent is kept pending until a usable size arrives.
func (l *Loop) Resize(extent driver.Extent) {
	l.extent = extent
	l.recreate = true
}

// Pending reports whether a recreation is waiting.
func (l *Loop) Pending() bool { return l.recreate }

// Frames counts presented frames.
func (l *Loop) Frames() uint64 { return l.frames }

// Recreations counts successful target recreations.
func (l *Loop) Recreations() int { return l.recreations }

// Frame renders and presents one frame. Out-of-date and suboptimal
// swapchains are handled here and never returned; every returned error is
// fatal.
func (l *Loop) Frame() (Result, error) {
	defer profiler.Start("frame.Frame")()

	if l.recreate {
		end := profiler.Start("frame.retarget")
		ok, err := l.retarget()
		end()
		if err != nil || !ok {
			return Skipped, err
		}
	}

	end := profiler.Start("frame.acquire")
	img, err := l.targets.Acquire(l.imageReady)
	end()
	switch {
	case errors.Is(err, driver.ErrOutOfDate):
		l.log.Debug("swapchain out of date on acquire")
		l.markRecreate()
		return Skipped, nil
	case errors.Is(err, driver.ErrSuboptimal):
		l.markRecreate()
	case err != nil:
		return Skipped, fmt.Errorf("acquire: %w", err)
	}

	if err := l.record(img); err != nil {
		return Skipped, err
	}

	q := l.dev.Queue()
	end = profiler.Start("frame.submit")
	err = q.Submit(l.cb, l.imageReady, l.renderDone, l.inFlight)
	end()
	if err != nil {
		return Skipped, fmt.Errorf("submit: %w", err)
	}

	end = profiler.Start("frame.present")
	err = q.Present(l.targets.Swapchain(), img, l.renderDone)
	end()
	presented := !errors.Is(err, driver.ErrOutOfDate)
	if driver.Transient(err) {
		l.markRecreate()
	} else if err != nil {
		return Skipped, fmt.Errorf("present: %w", err)
	}

	if err := l.wait(); err != nil {
		return Skipped, err
	}
	if !presented {
		return Skipped, nil
	}
	l.frames++
	return Presented, nil
}

func (l *Loop) record(img int) error {
	defer profiler.Start("frame.record")()
	if err := l.cb.Reset(); err != nil {
		return fmt.Errorf("reset command buffer: %w", err)
	}
	if err := l.rec.Record(l.cb, l.targets.Frame(img)); err != nil {
		return fmt.Errorf("record frame: %w", err)
	}
	return nil
}

func (l *Loop) markRecreate() {
	if l.extent.Zero() {
		if sc := l.targets.Swapchain(); sc != nil {
			l.extent = sc.Extent()
		}
	}
	l.recreate = true
}

// wait blocks until the submitted frame has finished on the GPU, so the
// command buffer and the global uniform can be reused.
func (l *Loop) wait() error {
	defer profiler.Start("frame.fence")()
	if err := l.inFlight.Wait(l.opts.FenceTimeout); err != nil {
		if errors.Is(err, driver.ErrTimeout) {
			return fmt.Errorf("frame fence not signaled after %s: %w", l.opts.FenceTimeout, err)
		}
		return fmt.Errorf("wait frame fence: %w", err)
	}
	if err := l.inFlight.Reset(); err != nil {
		return fmt.Errorf("reset frame fence: %w", err)
	}
	return nil
}

// retarget runs a pending recreation. It returns false when the surface is
// not ready and the frame must be skipped.
func (l *Loop) retarget() (bool, error) {
	pass := l.targets.RenderPass()
	err := l.targets.Recreate(l.extent)
	if errors.Is(err, target.ErrRetryLater) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("recreate target: %w", err)
	}
	l.recreate = false
	l.recreations++
	l.log.Debug("presentation target ready", "extent", l.extent)

	if np := l.targets.RenderPass(); np != pass && l.opts.OnRetarget != nil {
		if err := l.opts.OnRetarget(np); err != nil {
			return false, fmt.Errorf("retarget: %w", err)
		}
	}
	return true, nil
}

func (l *Loop) Destroy() {
	for _, d := range []driver.Destroyer{l.inFlight, l.renderDone, l.imageReady, l.cb} {
		if d != nil {
			d.Destroy()
		}
	}
}
