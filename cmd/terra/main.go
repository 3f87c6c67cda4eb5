// Command terra opens a window and renders a sprite scene described by a
// YAML config, on Vulkan or OpenGL.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/hubastard/terra/engine/assets"
	"github.com/hubastard/terra/engine/core"
	glbackend "github.com/hubastard/terra/engine/gfx/gl"
	"github.com/hubastard/terra/engine/gfx/driver"
	"github.com/hubastard/terra/engine/gfx/render"
	vkbackend "github.com/hubastard/terra/engine/gfx/vulkan"
	"github.com/hubastard/terra/engine/platform"
	"github.com/hubastard/terra/engine/profiler"
)

type App struct {
	cfg       core.Config
	rend      *render.Renderer
	lastTitle time.Time
	frames    uint64
	mem       profiler.Memory
}

func (a *App) OnStart(e *core.Engine) {
	profiler.Init(1 << 12)
	e.Layers.Push(e, &SceneLayer{cfg: a.cfg, rend: a.rend})
	if a.cfg.Editor {
		e.Layers.Push(e, &HierarchyLayer{rend: a.rend})
	}
	a.lastTitle = time.Now()
	a.mem = profiler.ReadMemory()
}

// OnUpdate refreshes the window title with frame statistics once a second.
func (a *App) OnUpdate(e *core.Engine, dt float64) {
	now := time.Now()
	elapsed := now.Sub(a.lastTitle)
	if elapsed < time.Second {
		return
	}
	frames := a.rend.Frames()
	fps := float64(frames-a.frames) / elapsed.Seconds()
	st := a.rend.Stats()
	mem := profiler.ReadMemory()
	title := fmt.Sprintf("%s | %s | %.0f fps | %d draws | %d sprites | %s | %.0f allocs/frame",
		a.cfg.Title, a.rend.Info().Backend, fps, st.DrawCalls, st.SpriteBinds,
		mem, mem.AllocsPerFrame(a.mem, frames-a.frames))
	// frame.Frame encloses every other scope
	for _, sc := range profiler.Scopes() {
		if sc.Name != "frame.Frame" {
			title += " | slowest " + sc.String()
			break
		}
	}
	e.Window.SetTitle(title)
	a.frames, a.lastTitle, a.mem = frames, now, mem
}

func (a *App) OnRender(e *core.Engine, alpha float64) {}
func (a *App) OnEvent(e *core.Engine, ev core.Event)    {}
func (a *App) OnShutdown(e *core.Engine)                {}

func main() {
	var (
		configPath = flag.String("config", "", "YAML config `file`")
		backend    = flag.String("backend", "", "graphics backend: vulkan or gl")
		editor     = flag.Bool("editor", false, "start in editor mode")
		validation = flag.Bool("validation", false, "enable Vulkan validation layers")
	)
	flag.Parse()

	cfg := core.DefaultConfig()
	if *configPath != "" {
		var err error
		if cfg, err = core.LoadConfig(*configPath); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(2)
		}
	}
	// only flags given on the command line override the file
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "backend":
			cfg.Backend = *backend
		case "editor":
			cfg.Editor = *editor
		case "validation":
			cfg.Validation = *validation
		}
	})
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	level, _ := cfg.Level()
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	if err := run(cfg); err != nil {
		slog.Error("terra stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg core.Config) error {
	api, err := platform.APIFor(cfg.Backend)
	if err != nil {
		return err
	}
	app := &App{cfg: cfg}

	newWindow := func(cfg core.Config) (core.Window, error) {
		return platform.NewGLFWWindow(cfg, api)
	}
	newRenderer := func(win core.Window, cfg core.Config) (core.Renderer, error) {
		rend, err := newRenderer(win.(*platform.GLFWWindow), cfg)
		if err != nil {
			return nil, err
		}
		app.rend = rend
		return rend, nil
	}
	return core.Run(app, cfg, newWindow, newRenderer)
}

func openDevice(win *platform.GLFWWindow, cfg core.Config) (driver.Device, error) {
	log := slog.Default().With("backend", cfg.Backend)
	if cfg.Backend == core.BackendGL {
		return glbackend.Open(win, glbackend.Options{Log: log})
	}
	return vkbackend.Open(win.GLFW(), vkbackend.Options{
		ProcAddr:   win.VulkanProcAddr(),
		Validation: cfg.Validation,
		VSync:      cfg.VSync,
		MaxSets:    cfg.MaxSprites + 1,
		AppName:    cfg.Title,
		Log:        log,
	})
}

func newRenderer(win *platform.GLFWWindow, cfg core.Config) (*render.Renderer, error) {
	dev, err := openDevice(win, cfg)
	if err != nil {
		return nil, err
	}
	shaders, err := assets.NewShaderLibrary(os.DirFS(cfg.ShaderDir)).Load("sprite", dev.Info().ShaderFormat)
	if err != nil {
		dev.Destroy()
		return nil, err
	}
	w, h := win.FramebufferSize()
	rend, err := render.New(dev, render.Options{
		Extent:       driver.Extent{Width: w, Height: h},
		Shaders:      shaders,
		Sampler:      cfg.AddressMode(),
		Editor:       cfg.Editor,
		FenceTimeout: cfg.FenceTimeout,
	})
	if err != nil {
		dev.Destroy()
		return nil, err
	}
	return rend, nil
}
