// Package renderer2d is the sprite render program: it owns the sprite
// pipeline and records one command buffer per frame from the scene.
package renderer2d

import (
	"fmt"
	"log/slog"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/hubastard/terra/engine/assets"
	"github.com/hubastard/terra/engine/colors"
	"github.com/hubastard/terra/engine/gfx/driver"
	"github.com/hubastard/terra/engine/gfx/resources"
	"github.com/hubastard/terra/engine/gfx/target"
	"github.com/hubastard/terra/engine/profiler"
	"github.com/hubastard/terra/engine/scene"
	"github.com/hubastard/terra/engine/scratch"
	"github.com/hubastard/terra/engine/sprite"
)

// PushConstantSize is the per-draw block: model matrix then RGBA tint.
const PushConstantSize = 64 + 16

// Descriptor set slots of the sprite pipeline.
const (
	GlobalSlot  = 0
	TextureSlot = sprite.TextureSlot
)

// clipCorrection turns an OpenGL style clip space into Vulkan's: y flipped
// and depth remapped from [-1,1] to [0,1].
var clipCorrection = mgl32.Mat4{
	1, 0, 0, 0,
	0, -1, 0, 0,
	0, 0, 0.5, 0,
	0, 0, 0.5, 1,
}

// Statistics captures the counts generated during a frame.
type Statistics struct {
	DrawCalls   int
	SpriteBinds int
	// Skipped counts instances whose sprite has no resident resource.
	Skipped int
}

// TotalIndexCount reports indices submitted this frame.
func (s Statistics) TotalIndexCount() int { return s.DrawCalls * len(resources.QuadIndices) }

// ResourceSource finds the resident resource of a sprite. sprite.Cache
// implements it.
type ResourceSource interface {
	Get(id sprite.ID) *sprite.Resource
}

// Scene is what one frame draws.
type Scene struct {
	Camera   *scene.Camera
	Registry *scene.Registry
	Sprites  ResourceSource
}

type Options struct {
	// Editor clears to colors.EditorGray instead of the camera colour.
	Editor bool
	Log    *slog.Logger
}

type Program struct {
	dev  driver.Device
	pool *resources.Pool
	info driver.Info
	opts Options
	log  *slog.Logger

	vs, fs  driver.Shader
	pipe    driver.Pipeline
	globals driver.DescriptorSet

	arena *scratch.Arena
	stats Statistics
}

// New compiles the shaders and builds the sprite pipeline for pass.
func New(dev driver.Device, pool *resources.Pool, pass driver.RenderPass, shaders assets.ShaderProgram, opts Options) (*Program, error) {
	if opts.Log == nil {
		opts.Log = slog.Default()
	}
	info := dev.Info()
	if shaders.Format != info.ShaderFormat {
		return nil, fmt.Errorf("shader %q is %s, %s backend wants %s", shaders.Name, shaders.Format, info.Backend, info.ShaderFormat)
	}
	p := &Program{dev: dev, pool: pool, info: info, opts: opts, log: opts.Log, arena: scratch.New(256)}

	var err error
	if p.vs, err = dev.NewShader(driver.StageVertex, shaders.Vertex, shaders.VertexEntry); err != nil {
		return nil, fmt.Errorf("vertex shader %q: %w", shaders.Name, err)
	}
	if p.fs, err = dev.NewShader(driver.StageFragment, shaders.Fragment, shaders.FragmentEntry); err != nil {
		p.vs.Destroy()
		return nil, fmt.Errorf("fragment shader %q: %w", shaders.Name, err)
	}
	if err := p.build(pass); err != nil {
		p.fs.Destroy()
		p.vs.Destroy()
		return nil, err
	}
	return p, nil
}

func (p *Program) build(pass driver.RenderPass) error {
	pipe, err := p.dev.NewPipeline(driver.PipelineDesc{
		Name:     "sprite",
		Vertex:   p.vs,
		Fragment: p.fs,
		Layout: driver.VertexLayout{
			Stride:     sprite.VertexStride,
			Attributes: []driver.VertexAttrib{{Location: 0, Components: 4, Offset: 0}},
		},
		Sets: []driver.SetLayout{
			GlobalSlot: {Bindings: []driver.LayoutBinding{
				{Binding: 0, Kind: driver.BindUniformBuffer, Stages: driver.VertexBit},
			}},
			TextureSlot: {Bindings: []driver.LayoutBinding{
				{Binding: 0, Kind: driver.BindSampledImage, Stages: driver.FragmentBit},
				{Binding: 1, Kind: driver.BindSampler, Stages: driver.FragmentBit},
			}},
		},
		PushConstants: driver.PushConstantRange{Stages: driver.VertexBit | driver.FragmentBit, Size: PushConstantSize},
		RenderPass:    pass,
		Blend:         true,
	})
	if err != nil {
		return fmt.Errorf("sprite pipeline: %w", err)
	}
	if p.pipe != nil {
		// set layouts are shared between builds, so the global set carries over
		p.pipe.Destroy()
		p.pipe = pipe
		return nil
	}
	globals, err := p.pool.BindBuffer(pipe, GlobalSlot, p.pool.Globals())
	if err != nil {
		pipe.Destroy()
		return fmt.Errorf("global descriptor set: %w", err)
	}
	p.pipe, p.globals = pipe, globals
	return nil
}

// Pipeline is the layout sprite descriptor sets are built against.
func (p *Program) Pipeline() driver.Pipeline { return p.pipe }

// Rebuild recreates the pipeline for a new render pass. The global set and
// the sprite sets built against the old pipeline stay valid: the set
// layouts do not change. No descriptor set is allocated.
func (p *Program) Rebuild(pass driver.RenderPass) error {
	if err := p.build(pass); err != nil {
		return err
	}
	p.log.Debug("sprite pipeline rebuilt", "format", pass.Format())
	return nil
}

// Stats returns the counts of the last recorded frame.
func (p *Program) Stats() Statistics { return p.stats }

func (p *Program) SetEditor(on bool) { p.opts.Editor = on }
func (p *Program) Editor() bool      { return p.opts.Editor }

// Projection is the camera projection in the device's clip space.
func (p *Program) Projection(cam *scene.Camera, extent driver.Extent) mgl32.Mat4 {
	proj := cam.Projection(extent)
	if p.info.YDown && p.info.DepthZeroToOne {
		proj = clipCorrection.Mul4(proj)
	}
	return proj
}

func (p *Program) clearColor(cam *scene.Camera) colors.Color {
	if p.opts.Editor {
		return colors.EditorGray
	}
	return cam.ClearColor
}

// Draw records the frame into cb. It writes the global uniform, so the
// previous frame reading it must have completed.
func (p *Program) Draw(cb driver.CommandBuffer, f target.Frame, sc Scene) error {
	defer profiler.Start("renderer2d.Draw")()
	p.stats = Statistics{}

	if err := cb.Begin(); err != nil {
		return fmt.Errorf("begin command buffer: %w", err)
	}
	cb.BeginRenderPass(f.Pass, f.Framebuffer, p.clearColor(sc.Camera))
	cb.SetViewport(sc.Camera.ViewportIn(f.Extent))
	cb.BindPipeline(p.pipe)

	if err := p.pool.WriteGlobals(p.Projection(sc.Camera, f.Extent), sc.Camera.View()); err != nil {
		return fmt.Errorf("write camera uniform: %w", err)
	}
	cb.BindDescriptorSet(p.pipe, GlobalSlot, p.globals)

	indices, count := p.pool.QuadIndices(), p.pool.QuadIndexCount()
	sc.Registry.Each(func(b *scene.Bucket) bool {
		res := sc.Sprites.Get(b.Sprite.ID)
		if res == nil {
			p.stats.Skipped += len(b.Instances)
			return true
		}
		cb.BindVertexBuffer(res.Vertices)
		cb.BindIndexBuffer(indices)
		cb.BindDescriptorSet(p.pipe, TextureSlot, res.Set)
		p.stats.SpriteBinds++

		for _, in := range b.Instances {
			c := in.Color.Opaque()
			p.arena.Reset()
			p.arena.Mat4(in.Transform.Matrix()).F32(c[:]...)
			cb.PushConstants(p.pipe, 0, p.arena.BytesFrom(0))
			cb.DrawIndexed(count, 1)
			p.stats.DrawCalls++
		}
		return true
	})

	cb.EndRenderPass()
	if err := cb.End(); err != nil {
		return fmt.Errorf("end command buffer: %w", err)
	}
	return nil
}

func (p *Program) Destroy() {
	p.globals.Destroy()
	p.pipe.Destroy()
	p.fs.Destroy()
	p.vs.Destroy()
}
