package core

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWindow struct {
	polls     int
	closeAt   int
	closed    bool
	destroyed bool
	cb        func(Event)
	queued    []Event
}

func (w *fakeWindow) PollEvents() {
	w.polls++
	for _, ev := range w.queued {
		w.cb(ev)
	}
	w.queued = nil
}
func (w *fakeWindow) ShouldClose() bool               { return w.closed || (w.closeAt > 0 && w.polls >= w.closeAt) }
func (w *fakeWindow) RequestClose()                   { w.closed = true }
func (w *fakeWindow) FramebufferSize() (int, int)     { return 640, 480 }
func (w *fakeWindow) SetTitle(string)                 {}
func (w *fakeWindow) SetEventCallback(cb func(Event)) { w.cb = cb }
func (w *fakeWindow) Destroy()                        { w.destroyed = true }

type fakeRenderer struct {
	sizes    [][2]int
	frames   int
	failAt   int
	shutdown bool
}

func (r *fakeRenderer) Resize(w, h int) { r.sizes = append(r.sizes, [2]int{w, h}) }
func (r *fakeRenderer) RenderFrame() error {
	r.frames++
	if r.failAt > 0 && r.frames == r.failAt {
		return errors.New("device lost")
	}
	return nil
}
func (r *fakeRenderer) Shutdown() { r.shutdown = true }

type recordingApp struct {
	started, stopped bool
	events           []Event
	renders          int
}

func (a *recordingApp) OnStart(*Engine)             { a.started = true }
func (a *recordingApp) OnUpdate(*Engine, float64)   {}
func (a *recordingApp) OnRender(*Engine, float64)   { a.renders++ }
func (a *recordingApp) OnEvent(_ *Engine, ev Event) { a.events = append(a.events, ev) }
func (a *recordingApp) OnShutdown(*Engine)          { a.stopped = true }

func run(app App, win *fakeWindow, rend *fakeRenderer) error {
	return Run(app, DefaultConfig(),
		func(Config) (Window, error) { return win, nil },
		func(Window, Config) (Renderer, error) { return rend, nil },
	)
}

func TestRunRendersUntilClose(t *testing.T) {
	win := &fakeWindow{closeAt: 3, queued: []Event{EventResize{W: 0, H: 0}, EventKey{Key: KeyW, Down: true}}}
	rend := &fakeRenderer{}
	app := &recordingApp{}

	require.NoError(t, run(app, win, rend))

	assert.True(t, app.started)
	assert.True(t, app.stopped)
	assert.Equal(t, 3, rend.frames)
	assert.Equal(t, 3, app.renders)
	assert.Equal(t, [][2]int{{640, 480}, {0, 0}}, rend.sizes)
	assert.Len(t, app.events, 2)
	assert.True(t, rend.shutdown)
	assert.True(t, win.destroyed)
}

func TestRunStopsOnRenderError(t *testing.T) {
	win := &fakeWindow{}
	rend := &fakeRenderer{failAt: 2}
	app := &recordingApp{}

	err := run(app, win, rend)
	assert.ErrorContains(t, err, "device lost")
	assert.Equal(t, 2, rend.frames)
	assert.True(t, app.stopped)
	assert.True(t, rend.shutdown)
}

type handlingLayer struct {
	attached bool
	seen     int
}

func (l *handlingLayer) OnAttach(*Engine)            { l.attached = true }
func (l *handlingLayer) OnDetach(*Engine)            { l.attached = false }
func (l *handlingLayer) OnUpdate(*Engine, float64)   {}
func (l *handlingLayer) OnRender(*Engine, float64)   {}
func (l *handlingLayer) OnEvent(*Engine, Event) bool { l.seen++; return true }

type layeredApp struct {
	recordingApp
	layer *handlingLayer
}

func (a *layeredApp) OnStart(e *Engine) { e.Layers.Push(e, a.layer) }

func TestLayersConsumeEvents(t *testing.T) {
	win := &fakeWindow{closeAt: 1, queued: []Event{EventMouseMove{X: 1, Y: 2}}}
	app := &layeredApp{layer: &handlingLayer{}}

	require.NoError(t, run(app, win, &fakeRenderer{}))
	assert.Equal(t, 1, app.layer.seen)
	assert.Empty(t, app.events)
	assert.False(t, app.layer.attached, "detached on exit")
}
