package drivertest

import (
	"errors"
	"fmt"

	"github.com/hubastard/terra/engine/gfx/driver"
)

type Op int

const (
	OpBeginRenderPass Op = iota
	OpSetViewport
	OpBindPipeline
	OpBindDescriptorSet
	OpBindVertexBuffer
	OpBindIndexBuffer
	OpPushConstants
	OpDrawIndexed
	OpEndRenderPass
)

func (o Op) String() string {
	return [...]string{
		"begin-render-pass", "set-viewport", "bind-pipeline", "bind-descriptor-set",
		"bind-vertex-buffer", "bind-index-buffer", "push-constants", "draw-indexed",
		"end-render-pass",
	}[o]
}

// Command is one recorded command. Only the fields relevant to Op are set.
type Command struct {
	Op            Op
	Pass          *RenderPass
	Framebuffer   *Framebuffer
	Clear         [4]float32
	Viewport      driver.Viewport
	Pipeline      *Pipeline
	Slot          int
	Set           *DescriptorSet
	Buffer        *Buffer
	Offset        int
	Data          []byte
	IndexCount    int
	InstanceCount int
}

type CommandBuffer struct {
	*object
	recording bool
	inPass    bool
	ended     bool
	err       error
	Commands  []Command
}

func (d *Device) NewCommandBuffer() (driver.CommandBuffer, error) {
	return &CommandBuffer{object: d.track("commandbuffer")}, nil
}

func (c *CommandBuffer) Reset() error {
	c.recording, c.inPass, c.ended, c.err = false, false, false, nil
	c.Commands = c.Commands[:0]
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

func (c *CommandBuffer) record(cmd Command) {
	if !c.recording && c.err == nil {
		c.err = fmt.Errorf("%s recorded outside Begin/End", cmd.Op)
	}
	c.Commands = append(c.Commands, cmd)
}

func (c *CommandBuffer) BeginRenderPass(pass driver.RenderPass, fb driver.Framebuffer, clear [4]float32) {
	if c.inPass && c.err == nil {
		c.err = errors.New("render pass already open")
	}
	c.inPass = true
	c.record(Command{Op: OpBeginRenderPass, Pass: pass.(*RenderPass), Framebuffer: fb.(*Framebuffer), Clear: clear})
}

func (c *CommandBuffer) SetViewport(vp driver.Viewport) {
	c.record(Command{Op: OpSetViewport, Viewport: vp})
}

func (c *CommandBuffer) BindPipeline(p driver.Pipeline) {
	c.record(Command{Op: OpBindPipeline, Pipeline: p.(*Pipeline)})
}

func (c *CommandBuffer) BindDescriptorSet(p driver.Pipeline, slot int, set driver.DescriptorSet) {
	c.record(Command{Op: OpBindDescriptorSet, Pipeline: p.(*Pipeline), Slot: slot, Set: set.(*DescriptorSet)})
}

func (c *CommandBuffer) BindVertexBuffer(b driver.Buffer) {
	c.record(Command{Op: OpBindVertexBuffer, Buffer: b.(*Buffer)})
}

func (c *CommandBuffer) BindIndexBuffer(b driver.Buffer) {
	c.record(Command{Op: OpBindIndexBuffer, Buffer: b.(*Buffer)})
}

func (c *CommandBuffer) PushConstants(p driver.Pipeline, offset int, data []byte) {
	c.record(Command{Op: OpPushConstants, Pipeline: p.(*Pipeline), Offset: offset, Data: append([]byte(nil), data...)})
}

func (c *CommandBuffer) DrawIndexed(indexCount, instanceCount int) {
	if !c.inPass && c.err == nil {
		c.err = errors.New("draw outside render pass")
	}
	c.record(Command{Op: OpDrawIndexed, IndexCount: indexCount, InstanceCount: instanceCount})
}

func (c *CommandBuffer) EndRenderPass() {
	if !c.inPass && c.err == nil {
		c.err = errors.New("end of a render pass that was not begun")
	}
	c.inPass = false
	c.record(Command{Op: OpEndRenderPass})
}

func (c *CommandBuffer) End() error {
	if c.inPass && c.err == nil {
		c.err = errors.New("command buffer ended inside a render pass")
	}
	c.recording = false
	c.ended = true
	return c.err
}

// Draw is a DrawIndexed together with the state bound when it was issued.
type Draw struct {
	Pipeline      *Pipeline
	VertexBuffer  *Buffer
	IndexBuffer   *Buffer
	Sets          map[int]*DescriptorSet
	PushConstants []byte
	IndexCount    int
	InstanceCount int
}

// Draws replays the recorded commands and returns every draw with its
// bound state.
func (c *CommandBuffer) Draws() []Draw {
	var (
		out  []Draw
		cur  Draw
		push []byte
	)
	cur.Sets = map[int]*DescriptorSet{}
	for _, cmd := range c.Commands {
		switch cmd.Op {
		case OpBindPipeline:
			cur.Pipeline = cmd.Pipeline
		case OpBindDescriptorSet:
			cur.Sets[cmd.Slot] = cmd.Set
		case OpBindVertexBuffer:
			cur.VertexBuffer = cmd.Buffer
		case OpBindIndexBuffer:
			cur.IndexBuffer = cmd.Buffer
		case OpPushConstants:
			if need := cmd.Offset + len(cmd.Data); need > len(push) {
				push = append(push, make([]byte, need-len(push))...)
			}
			copy(push[cmd.Offset:], cmd.Data)
		case OpDrawIndexed:
			d := cur
			d.Sets = make(map[int]*DescriptorSet, len(cur.Sets))
			for k, v := range cur.Sets {
				d.Sets[k] = v
			}
			d.PushConstants = append([]byte(nil), push...)
			d.IndexCount, d.InstanceCount = cmd.IndexCount, cmd.InstanceCount
			out = append(out, d)
		}
	}
	return out
}

// Count returns how many commands of op were recorded.
func (c *CommandBuffer) Count(op Op) int {
	n := 0
	for _, cmd := range c.Commands {
		if cmd.Op == op {
			n++
		}
	}
	return n
}

// Ops lists the recorded operations in order.
func (c *CommandBuffer) Ops() []Op {
	out := make([]Op, len(c.Commands))
	for i, cmd := range c.Commands {
		out[i] = cmd.Op
	}
	return out
}

// Queue records submissions and presents.
type Queue struct {
	dev       *Device
	Submitted []*CommandBuffer
	Presented []int
}

// Last returns the most recently submitted command buffer.
func (q *Queue) Last() *CommandBuffer {
	if len(q.Submitted) == 0 {
		return nil
	}
	return q.Submitted[len(q.Submitted)-1]
}

func (q *Queue) Submit(cb driver.CommandBuffer, wait, signal driver.Semaphore, fence driver.Fence) error {
	if q.dev.SubmitErr != nil {
		err := q.dev.SubmitErr
		q.dev.SubmitErr = nil
		return err
	}
	c := cb.(*CommandBuffer)
	if !c.ended || c.err != nil {
		return fmt.Errorf("submit %s: not a completed recording", c)
	}
	if err := c.validate(); err != nil {
		return err
	}
	if w, ok := wait.(*Semaphore); ok {
		w.Signaled = false
	}
	if s, ok := signal.(*Semaphore); ok {
		s.Signaled = true
	}
	if f, ok := fence.(*Fence); ok && !q.dev.Stall {
		f.Signaled = true
	}
	// Snapshot so later re-recording does not rewrite history.
	snap := &CommandBuffer{object: c.object, ended: true, Commands: append([]Command(nil), c.Commands...)}
	q.Submitted = append(q.Submitted, snap)
	return nil
}

type tracked interface {
	Destroyed() bool
	String() string
}

func (c *CommandBuffer) validate() error {
	for _, cmd := range c.Commands {
		var refs []tracked
		switch {
		case cmd.Buffer != nil:
			refs = append(refs, cmd.Buffer)
		case cmd.Set != nil:
			refs = append(refs, cmd.Set)
			for _, r := range cmd.Set.Resources {
				for _, v := range []any{r.Buffer, r.Image, r.Sampler} {
					if t, ok := v.(tracked); ok {
						refs = append(refs, t)
					}
				}
			}
		case cmd.Pipeline != nil:
			refs = append(refs, cmd.Pipeline)
		case cmd.Framebuffer != nil:
			refs = append(refs, cmd.Framebuffer)
		}
		for _, o := range refs {
			if o.Destroyed() {
				return &driver.ResourceError{Resource: o.String(), Op: cmd.Op.String(), Err: errDestroyed}
			}
		}
	}
	return nil
}

func (q *Queue) Present(sc driver.Swapchain, image int, wait driver.Semaphore) error {
	s := sc.(*Swapchain)
	if s.destroyed {
		return &driver.ResourceError{Resource: s.String(), Op: "present", Err: errDestroyed}
	}
	var err error
	if len(q.dev.PresentErrs) > 0 {
		err = q.dev.PresentErrs[0]
		q.dev.PresentErrs = q.dev.PresentErrs[1:]
	}
	if err != nil && !errors.Is(err, driver.ErrSuboptimal) {
		return err
	}
	if w, ok := wait.(*Semaphore); ok {
		w.Signaled = false
	}
	q.Presented = append(q.Presented, image)
	return err
}
