package core

import (
	"fmt"
	"log/slog"
	"runtime"
	"time"
)

// Run wires the platform window + renderer and executes the main loop. It
// returns when the window closes or when the renderer reports a fatal error.
func Run(app App, cfg Config, newWindow func(Config) (Window, error), newRenderer func(Window, Config) (Renderer, error)) (err error) {
	// Graphics contexts and GLFW require the main OS thread.
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	win, err := newWindow(cfg)
	if err != nil {
		return fmt.Errorf("create window: %w", err)
	}
	defer win.Destroy()

	rend, err := newRenderer(win, cfg)
	if err != nil {
		return fmt.Errorf("create renderer: %w", err)
	}
	defer rend.Shutdown()

	w, h := win.FramebufferSize()
	rend.Resize(w, h)

	eng := &Engine{Window: win, Renderer: rend, Input: NewInput(), start: time.Now()}
	win.SetEventCallback(func(ev Event) {
		eng.Input.Handle(ev)
		switch e := ev.(type) {
		case EventResize:
			// zero sizes are forwarded too; the renderer skips frames until
			// the window is usable again
			rend.Resize(e.W, e.H)
		case EventCloseRequested:
			win.RequestClose()
		}
		handled := false
		eng.Layers.ForEachReverse(func(l Layer) bool {
			handled = l.OnEvent(eng, ev)
			return handled
		})
		if !handled {
			app.OnEvent(eng, ev)
		}
	})

	app.OnStart(eng)
	defer func() {
		eng.Layers.ForEachReverse(func(l Layer) bool {
			l.OnDetach(eng)
			return false
		})
		app.OnShutdown(eng)
		slog.Info("engine exit", "uptime", eng.Uptime().Round(time.Millisecond), "error", err)
	}()

	// Fixed-timestep (60 Hz) with interpolation
	const tick = time.Second / 60
	var (
		accum   time.Duration
		prev    = time.Now()
		maxStep = 10 // prevent spiral of death
	)

	for !win.ShouldClose() {
		now := time.Now()
		accum += now.Sub(prev)
		prev = now

		// Poll OS events (platform will emit via callbacks)
		win.PollEvents()

		steps := 0
		for accum >= tick && steps < maxStep {
			dt := float64(tick) / float64(time.Second)
			app.OnUpdate(eng, dt)
			eng.Layers.ForEach(func(l Layer) { l.OnUpdate(eng, dt) })
			accum -= tick
			steps++
		}
		if steps == maxStep {
			accum = 0
		}
		alpha := float64(accum) / float64(tick)

		app.OnRender(eng, alpha)
		eng.Layers.ForEach(func(l Layer) { l.OnRender(eng, alpha) })

		if err := rend.RenderFrame(); err != nil {
			return fmt.Errorf("render frame: %w", err)
		}
	}
	return nil
}
