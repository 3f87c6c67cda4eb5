package glbackend

import (
	"errors"
	"fmt"
	"math"
	"time"
	"unsafe"

	"github.com/go-gl/gl/v3.3-core/gl"

	"github.com/hubastard/terra/engine/gfx/driver"
)

// execState is the GL state a replay tracks between commands.
type execState struct {
	pipeline *Pipeline
	height   int32
}

type command struct {
	op   string
	data []byte
	run  func(s *execState) error
}

type CommandBuffer struct {
	dev       *Device
	cmds      []command
	recording bool
	inPass    bool
	ended     bool
	err       error
}

func (d *Device) NewCommandBuffer() (driver.CommandBuffer, error) {
	return &CommandBuffer{dev: d}, nil
}

func (c *CommandBuffer) fail(err error) {
	if c.err == nil {
		c.err = err
	}
}

func (c *CommandBuffer) record(op string, data []byte, run func(s *execState) error) {
	if !c.recording {
		c.fail(fmt.Errorf("%s recorded outside Begin/End", op))
	}
	c.cmds = append(c.cmds, command{op: op, data: data, run: run})
}

func (c *CommandBuffer) Reset() error {
	c.cmds = c.cmds[:0]
	c.recording, c.inPass, c.ended, c.err = false, false, false, nil
	return nil
}

func (c *CommandBuffer) Begin() error {
	if c.recording {
		return errors.New("command buffer already recording")
	}
	c.Reset()
	c.recording = true
	return nil
}

func (c *CommandBuffer) BeginRenderPass(pass driver.RenderPass, fb driver.Framebuffer, clear [4]float32) {
	if c.inPass {
		c.fail(errors.New("render pass already open"))
	}
	c.inPass = true
	p, f := pass.(*RenderPass), fb.(*Framebuffer)
	c.record("begin-render-pass", nil, func(s *execState) error {
		if p.destroyed {
			return destroyed("render pass", "begin-render-pass")
		}
		if f.destroyed {
			return destroyed("framebuffer", "begin-render-pass")
		}
		s.height = int32(f.extent.Height)
		gl.BindFramebuffer(gl.FRAMEBUFFER, 0)
		if srgb(p.format) {
			gl.Enable(gl.FRAMEBUFFER_SRGB)
		} else {
			gl.Disable(gl.FRAMEBUFFER_SRGB)
		}
		gl.Viewport(0, 0, int32(f.extent.Width), s.height)
		gl.Scissor(0, 0, int32(f.extent.Width), s.height)
		gl.ClearColor(clear[0], clear[1], clear[2], clear[3])
		gl.Clear(gl.COLOR_BUFFER_BIT)
		return nil
	})
}

func srgb(f driver.Format) bool {
	return f == driver.FormatRGBA8SRGB || f == driver.FormatBGRA8SRGB
}

// SetViewport flips the rectangle into GL's bottom-left origin.
func (c *CommandBuffer) SetViewport(vp driver.Viewport) {
	c.record("set-viewport", nil, func(s *execState) error {
		x, y := int32(vp.X), s.height-int32(vp.Y+vp.Height)
		w, h := int32(vp.Width), int32(vp.Height)
		gl.Viewport(x, y, w, h)
		gl.Scissor(x, y, w, h)
		return nil
	})
}

func (c *CommandBuffer) BindPipeline(dp driver.Pipeline) {
	p := dp.(*Pipeline)
	c.record("bind-pipeline", nil, func(s *execState) error {
		if p.program == 0 {
			return destroyed("pipeline "+p.name, "bind-pipeline")
		}
		gl.UseProgram(p.program)
		gl.BindVertexArray(p.vao)
		if p.blend {
			gl.Enable(gl.BLEND)
			gl.BlendFuncSeparate(gl.SRC_ALPHA, gl.ONE_MINUS_SRC_ALPHA, gl.ONE, gl.ONE_MINUS_SRC_ALPHA)
		} else {
			gl.Disable(gl.BLEND)
		}
		s.pipeline = p
		return nil
	})
}

func (c *CommandBuffer) BindDescriptorSet(_ driver.Pipeline, _ int, set driver.DescriptorSet) {
	ds := set.(*DescriptorSet)
	c.record("bind-descriptor-set", nil, func(*execState) error {
		if err := ds.check(); err != nil {
			return err
		}
		ds.bind()
		return nil
	})
}

// BindVertexBuffer also applies the vertex layout of the bound pipeline,
// since GL 3.3 latches attribute pointers to the current array buffer.
func (c *CommandBuffer) BindVertexBuffer(b driver.Buffer) {
	buf := b.(*Buffer)
	c.record("bind-vertex-buffer", nil, func(s *execState) error {
		if buf.id == 0 {
			return destroyed("buffer", "bind-vertex-buffer")
		}
		if s.pipeline == nil {
			return errors.New("vertex buffer bound before a pipeline")
		}
		l := s.pipeline.layout
		gl.BindBuffer(gl.ARRAY_BUFFER, buf.id)
		for _, a := range l.Attributes {
			gl.EnableVertexAttribArray(uint32(a.Location))
			gl.VertexAttribPointer(uint32(a.Location), int32(a.Components), gl.FLOAT, false, int32(l.Stride), unsafe.Pointer(uintptr(a.Offset)))
		}
		return nil
	})
}

func (c *CommandBuffer) BindIndexBuffer(b driver.Buffer) {
	buf := b.(*Buffer)
	c.record("bind-index-buffer", nil, func(s *execState) error {
		if buf.id == 0 {
			return destroyed("buffer", "bind-index-buffer")
		}
		if s.pipeline == nil {
			return errors.New("index buffer bound before a pipeline")
		}
		gl.BindBuffer(gl.ELEMENT_ARRAY_BUFFER, buf.id)
		return nil
	})
}

// PushConstants copies data at record time; callers may reuse their slice.
func (c *CommandBuffer) PushConstants(_ driver.Pipeline, offset int, data []byte) {
	if offset < 0 || offset+len(data) > pushSize {
		c.fail(fmt.Errorf("push constants [%d,%d) exceed %d bytes", offset, offset+len(data), pushSize))
		return
	}
	cp := append([]byte(nil), data...)
	push := c.dev.push
	c.record("push-constants", cp, func(*execState) error {
		if len(cp) == 0 {
			return nil
		}
		gl.BindBuffer(gl.UNIFORM_BUFFER, push)
		gl.BufferSubData(gl.UNIFORM_BUFFER, offset, len(cp), gl.Ptr(cp))
		return nil
	})
}

func (c *CommandBuffer) DrawIndexed(indexCount, instanceCount int) {
	if !c.inPass {
		c.fail(errors.New("draw outside render pass"))
	}
	c.record("draw-indexed", nil, func(s *execState) error {
		if s.pipeline == nil {
			return errors.New("draw without a pipeline")
		}
		gl.DrawElementsInstanced(gl.TRIANGLES, int32(indexCount), gl.UNSIGNED_INT, nil, int32(instanceCount))
		return nil
	})
}

func (c *CommandBuffer) EndRenderPass() {
	if !c.inPass {
		c.fail(errors.New("end of a render pass that was not begun"))
	}
	c.inPass = false
	c.record("end-render-pass", nil, func(*execState) error {
		gl.BindVertexArray(0)
		gl.UseProgram(0)
		return nil
	})
}

func (c *CommandBuffer) End() error {
	if c.inPass {
		c.fail(errors.New("command buffer ended inside a render pass"))
	}
	c.recording = false
	c.ended = true
	return c.err
}

func (c *CommandBuffer) execute() error {
	var s execState
	for _, cmd := range c.cmds {
		if err := cmd.run(&s); err != nil {
			return fmt.Errorf("%s: %w", cmd.op, err)
		}
	}
	return glError("submit")
}

func (c *CommandBuffer) Destroy() { c.cmds = nil }

// Semaphore orders nothing: GL commands already execute in order.
type Semaphore struct{}

func (d *Device) NewSemaphore() (driver.Semaphore, error) { return &Semaphore{}, nil }
func (*Semaphore) Destroy()                             {}

// Fence wraps the sync object inserted by the submission it guards.
type Fence struct {
	sync uintptr
}

func (d *Device) NewFence() (driver.Fence, error) { return &Fence{}, nil }

func (f *Fence) Wait(timeout time.Duration) error {
	if f.sync == 0 {
		return errors.New("wait on a fence that was never submitted")
	}
	ns := uint64(math.MaxUint64)
	if timeout > 0 {
		ns = uint64(timeout.Nanoseconds())
	}
	switch gl.ClientWaitSync(f.sync, gl.SYNC_FLUSH_COMMANDS_BIT, ns) {
	case gl.ALREADY_SIGNALED, gl.CONDITION_SATISFIED:
		return nil
	case gl.TIMEOUT_EXPIRED:
		return driver.ErrTimeout
	}
	if err := glError("wait fence"); err != nil {
		return err
	}
	return errors.New("wait fence failed")
}

func (f *Fence) Reset() error {
	f.Destroy()
	return nil
}

func (f *Fence) Destroy() {
	if f.sync != 0 {
		gl.DeleteSync(f.sync)
		f.sync = 0
	}
}

type Queue struct {
	dev *Device
}

func (q *Queue) Submit(cb driver.CommandBuffer, _, _ driver.Semaphore, fence driver.Fence) error {
	c := cb.(*CommandBuffer)
	if !c.ended || c.err != nil {
		return errors.New("submit: not a completed recording")
	}
	if err := c.execute(); err != nil {
		return err
	}
	if f, ok := fence.(*Fence); ok && f != nil {
		f.Destroy()
		f.sync = gl.FenceSync(gl.SYNC_GPU_COMMANDS_COMPLETE, 0)
	}
	return nil
}

func (q *Queue) Present(sc driver.Swapchain, _ int, _ driver.Semaphore) error {
	if sc.(*Swapchain).destroyed {
		return destroyed("swapchain", "present")
	}
	q.dev.win.SwapBuffers()
	return nil
}

// Swapchain stands for the window's default framebuffer. The window system
// owns its images; the extent only tracks what the caller asked for.
type Swapchain struct {
	extent    driver.Extent
	destroyed bool
}

func (d *Device) NewSwapchain(extent driver.Extent, _ driver.Swapchain) (driver.Swapchain, error) {
	if extent.Zero() {
		return nil, driver.ErrExtentUnsupported
	}
	return &Swapchain{extent: extent}, nil
}

func (s *Swapchain) Extent() driver.Extent { return s.extent }
func (s *Swapchain) Format() driver.Format { return driver.FormatRGBA8SRGB }
func (s *Swapchain) ImageCount() int       { return 1 }
func (s *Swapchain) Destroy()              { s.destroyed = true }

func (s *Swapchain) Acquire(driver.Semaphore) (int, error) {
	if s.destroyed {
		return -1, destroyed("swapchain", "acquire")
	}
	return 0, nil
}

type RenderPass struct {
	format    driver.Format
	destroyed bool
}

func (d *Device) NewRenderPass(format driver.Format) (driver.RenderPass, error) {
	return &RenderPass{format: format}, nil
}

func (p *RenderPass) Format() driver.Format { return p.format }
func (p *RenderPass) Destroy()              { p.destroyed = true }

type Framebuffer struct {
	extent    driver.Extent
	destroyed bool
}

func (d *Device) NewFramebuffer(_ driver.RenderPass, sc driver.Swapchain, image int) (driver.Framebuffer, error) {
	if image != 0 {
		return nil, fmt.Errorf("default framebuffer has no image %d", image)
	}
	return &Framebuffer{extent: sc.Extent()}, nil
}

func (f *Framebuffer) Extent() driver.Extent { return f.extent }
func (f *Framebuffer) Destroy()              { f.destroyed = true }
