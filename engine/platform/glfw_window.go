// Package platform opens the GLFW window and turns its callbacks into
// core events.
package platform

import (
	"errors"
	"fmt"
	"log/slog"
	"unsafe"

	"github.com/go-gl/glfw/v3.3/glfw"

	"github.com/hubastard/terra/engine/core"
)

// API selects the client API the window is created for.
type API int

const (
	// APIOpenGL creates a GL 3.3 core context and makes it current.
	APIOpenGL API = iota
	// APIVulkan creates a window without a context.
	APIVulkan
)

// APIFor maps a config backend name to the window API it needs.
func APIFor(backend string) (API, error) {
	switch backend {
	case core.BackendVulkan:
		return APIVulkan, nil
	case core.BackendGL:
		return APIOpenGL, nil
	}
	return 0, fmt.Errorf("unknown backend %q", backend)
}

// GLFWWindow implements core.Window and pushes events to the app via a handler.
type GLFWWindow struct {
	w    *glfw.Window
	api  API
	onEv func(core.Event)
}

// NewGLFWWindow must be called on the main thread, which core.Run locks.
func NewGLFWWindow(cfg core.Config, api API) (*GLFWWindow, error) {
	if err := glfw.Init(); err != nil {
		return nil, fmt.Errorf("init glfw: %w", err)
	}

	glfw.DefaultWindowHints()
	switch api {
	case APIVulkan:
		if !glfw.VulkanSupported() {
			glfw.Terminate()
			return nil, errors.New("glfw: no Vulkan loader found")
		}
		glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	default:
		// GL 3.3 core profile (Mac requires forward-compatible flag).
		glfw.WindowHint(glfw.ContextVersionMajor, 3)
		glfw.WindowHint(glfw.ContextVersionMinor, 3)
		glfw.WindowHint(glfw.OpenGLProfile, glfw.OpenGLCoreProfile)
		glfw.WindowHint(glfw.OpenGLForwardCompatible, glfw.True)
		glfw.WindowHint(glfw.SRGBCapable, glfw.True)
	}
	glfw.WindowHint(glfw.Samples, 0)

	win, err := glfw.CreateWindow(cfg.Width, cfg.Height, cfg.Title, nil, nil)
	if err != nil {
		glfw.Terminate()
		return nil, fmt.Errorf("create window: %w", err)
	}
	if api == APIOpenGL {
		win.MakeContextCurrent()
		if cfg.VSync {
			glfw.SwapInterval(1)
		} else {
			glfw.SwapInterval(0)
		}
	}
	slog.Debug("window created", "width", cfg.Width, "height", cfg.Height, "api", api)

	gw := &GLFWWindow{w: win, api: api}

	// Callbacks -> translate to core.Event
	win.SetCloseCallback(func(*glfw.Window) { gw.emit(core.EventCloseRequested{}) })
	win.SetFramebufferSizeCallback(func(_ *glfw.Window, w, h int) {
		gw.emit(core.EventResize{W: w, H: h})
	})
	win.SetCursorPosCallback(func(_ *glfw.Window, x, y float64) {
		gw.emit(core.EventMouseMove{X: x, Y: y})
	})
	win.SetKeyCallback(func(_ *glfw.Window, key glfw.Key, scancode int, action glfw.Action, mods glfw.ModifierKey) {
		k := translateKey(key)
		if k == core.KeyUnknown || action == glfw.Repeat {
			return
		}
		gw.emit(core.EventKey{Key: k, Down: action != glfw.Release, Mods: translateMods(mods)})
	})
	win.SetScrollCallback(func(_ *glfw.Window, xoff, yoff float64) {
		gw.emit(core.EventScroll{Xoff: xoff, Yoff: yoff})
	})

	return gw, nil
}

func (g *GLFWWindow) emit(ev core.Event) {
	if g.onEv != nil {
		g.onEv(ev)
	}
}

// core.Window impl
func (g *GLFWWindow) PollEvents()                          { glfw.PollEvents() }
func (g *GLFWWindow) ShouldClose() bool                    { return g.w.ShouldClose() }
func (g *GLFWWindow) RequestClose()                        { g.w.SetShouldClose(true) }
func (g *GLFWWindow) FramebufferSize() (int, int)          { return g.w.GetFramebufferSize() }
func (g *GLFWWindow) SetTitle(t string)                    { g.w.SetTitle(t) }
func (g *GLFWWindow) SetEventCallback(cb func(core.Event)) { g.onEv = cb }

// SwapBuffers presents the GL back buffer.
func (g *GLFWWindow) SwapBuffers() { g.w.SwapBuffers() }

// GLFW exposes the native window for Vulkan surface creation.
func (g *GLFWWindow) GLFW() *glfw.Window { return g.w }

// VulkanProcAddr is vkGetInstanceProcAddr as resolved by GLFW's loader.
func (g *GLFWWindow) VulkanProcAddr() unsafe.Pointer {
	return glfw.GetVulkanGetInstanceProcAddress()
}

func (g *GLFWWindow) Destroy() {
	g.w.Destroy()
	glfw.Terminate()
}

var keys = map[glfw.Key]core.Key{
	glfw.KeyEscape: core.KeyEscape,
	glfw.KeySpace:  core.KeySpace,
	glfw.KeyW:      core.KeyW,
	glfw.KeyA:      core.KeyA,
	glfw.KeyS:      core.KeyS,
	glfw.KeyD:      core.KeyD,
	glfw.KeyQ:      core.KeyQ,
	glfw.KeyE:      core.KeyE,
	glfw.KeyH:      core.KeyH,
	glfw.KeyP:      core.KeyP,
	glfw.KeyR:      core.KeyR,
	glfw.KeyDelete: core.KeyDelete,
}

func translateKey(k glfw.Key) core.Key {
	if ck, ok := keys[k]; ok {
		return ck
	}
	return core.KeyUnknown
}

func translateMods(m glfw.ModifierKey) core.Mod {
	var out core.Mod
	if m&glfw.ModShift != 0 {
		out |= core.ModShift
	}
	if m&glfw.ModControl != 0 {
		out |= core.ModCtrl
	}
	if m&glfw.ModAlt != 0 {
		out |= core.ModAlt
	}
	if m&glfw.ModSuper != 0 {
		out |= core.ModSuper
	}
	return out
}
