package vkbackend

import (
	"time"
	"unsafe"

	vk "github.com/vulkan-go/vulkan"

	"github.com/hubastard/terra/engine/gfx/driver"
)

type CommandBuffer struct {
	dev    *Device
	handle vk.CommandBuffer
	// pass extent, for the render area
	extent vk.Extent2D
}

func (d *Device) NewCommandBuffer() (driver.CommandBuffer, error) {
	alloc := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        d.cmdPool,
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: 1,
	}
	cbs := make([]vk.CommandBuffer, 1)
	if err := check(vk.AllocateCommandBuffers(d.device, &alloc, cbs), "allocate command buffer"); err != nil {
		return nil, err
	}
	return &CommandBuffer{dev: d, handle: cbs[0]}, nil
}

func (c *CommandBuffer) Reset() error {
	return check(vk.ResetCommandBuffer(c.handle, 0), "reset command buffer")
}

func (c *CommandBuffer) Begin() error {
	info := vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit),
	}
	return check(vk.BeginCommandBuffer(c.handle, &info), "begin command buffer")
}

func (c *CommandBuffer) BeginRenderPass(pass driver.RenderPass, fb driver.Framebuffer, clear [4]float32) {
	f := fb.(*Framebuffer)
	c.extent = vk.Extent2D{Width: uint32(f.extent.Width), Height: uint32(f.extent.Height)}
	var cv vk.ClearValue
	cv.SetColor(clear[:])
	info := vk.RenderPassBeginInfo{
		SType:           vk.StructureTypeRenderPassBeginInfo,
		RenderPass:      pass.(*RenderPass).handle,
		Framebuffer:     f.handle,
		RenderArea:      vk.Rect2D{Extent: c.extent},
		ClearValueCount: 1,
		PClearValues:    []vk.ClearValue{cv},
	}
	vk.CmdBeginRenderPass(c.handle, &info, vk.SubpassContentsInline)
}

func (c *CommandBuffer) SetViewport(vp driver.Viewport) {
	vk.CmdSetViewport(c.handle, 0, 1, []vk.Viewport{{
		X: vp.X, Y: vp.Y, Width: vp.Width, Height: vp.Height, MinDepth: 0, MaxDepth: 1,
	}})
	vk.CmdSetScissor(c.handle, 0, 1, []vk.Rect2D{{
		Offset: vk.Offset2D{X: int32(vp.X), Y: int32(vp.Y)},
		Extent: vk.Extent2D{Width: uint32(vp.Width), Height: uint32(vp.Height)},
	}})
}

func (c *CommandBuffer) BindPipeline(p driver.Pipeline) {
	vk.CmdBindPipeline(c.handle, vk.PipelineBindPointGraphics, p.(*Pipeline).handle)
}

func (c *CommandBuffer) BindDescriptorSet(p driver.Pipeline, slot int, set driver.DescriptorSet) {
	vk.CmdBindDescriptorSets(c.handle, vk.PipelineBindPointGraphics, p.(*Pipeline).layout,
		uint32(slot), 1, []vk.DescriptorSet{set.(*DescriptorSet).handle}, 0, nil)
}

func (c *CommandBuffer) BindVertexBuffer(b driver.Buffer) {
	vk.CmdBindVertexBuffers(c.handle, 0, 1, []vk.Buffer{b.(*Buffer).handle}, []vk.DeviceSize{0})
}

func (c *CommandBuffer) BindIndexBuffer(b driver.Buffer) {
	vk.CmdBindIndexBuffer(c.handle, b.(*Buffer).handle, 0, vk.IndexTypeUint32)
}

// PushConstants copies data into the command buffer at record time.
func (c *CommandBuffer) PushConstants(p driver.Pipeline, offset int, data []byte) {
	if len(data) == 0 {
		return
	}
	pl := p.(*Pipeline)
	vk.CmdPushConstants(c.handle, pl.layout, pl.push, uint32(offset), uint32(len(data)), unsafe.Pointer(&data[0]))
}

func (c *CommandBuffer) DrawIndexed(indexCount, instanceCount int) {
	vk.CmdDrawIndexed(c.handle, uint32(indexCount), uint32(instanceCount), 0, 0, 0)
}

func (c *CommandBuffer) EndRenderPass() { vk.CmdEndRenderPass(c.handle) }

func (c *CommandBuffer) End() error {
	return check(vk.EndCommandBuffer(c.handle), "end command buffer")
}

func (c *CommandBuffer) Destroy() {
	if c.handle != nil {
		vk.FreeCommandBuffers(c.dev.device, c.dev.cmdPool, 1, []vk.CommandBuffer{c.handle})
		c.handle = nil
	}
}

type Semaphore struct {
	dev    *Device
	handle vk.Semaphore
}

func (d *Device) NewSemaphore() (driver.Semaphore, error) {
	info := vk.SemaphoreCreateInfo{SType: vk.StructureTypeSemaphoreCreateInfo}
	s := &Semaphore{dev: d}
	if err := check(vk.CreateSemaphore(d.device, &info, nil, &s.handle), "create semaphore"); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Semaphore) Destroy() {
	if s.handle != vk.Semaphore(vk.NullHandle) {
		vk.DestroySemaphore(s.dev.device, s.handle, nil)
		s.handle = vk.Semaphore(vk.NullHandle)
	}
}

// Fence starts unsignaled.
type Fence struct {
	dev    *Device
	handle vk.Fence
}

func (d *Device) NewFence() (driver.Fence, error) {
	info := vk.FenceCreateInfo{SType: vk.StructureTypeFenceCreateInfo}
	f := &Fence{dev: d}
	if err := check(vk.CreateFence(d.device, &info, nil, &f.handle), "create fence"); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *Fence) Wait(timeout time.Duration) error {
	ns := uint64(vk.MaxUint64)
	if timeout > 0 {
		ns = uint64(timeout.Nanoseconds())
	}
	return check(vk.WaitForFences(f.dev.device, 1, []vk.Fence{f.handle}, vk.True, ns), "wait fence")
}

func (f *Fence) Reset() error {
	return check(vk.ResetFences(f.dev.device, 1, []vk.Fence{f.handle}), "reset fence")
}

func (f *Fence) Destroy() {
	if f.handle != vk.NullFence {
		vk.DestroyFence(f.dev.device, f.handle, nil)
		f.handle = vk.NullFence
	}
}

type Queue struct {
	dev    *Device
	handle vk.Queue
}

func (q *Queue) Submit(cb driver.CommandBuffer, wait, signal driver.Semaphore, fence driver.Fence) error {
	info := vk.SubmitInfo{
		SType:              vk.StructureTypeSubmitInfo,
		CommandBufferCount: 1,
		PCommandBuffers:    []vk.CommandBuffer{cb.(*CommandBuffer).handle},
	}
	if w, ok := wait.(*Semaphore); ok && w != nil {
		info.WaitSemaphoreCount = 1
		info.PWaitSemaphores = []vk.Semaphore{w.handle}
		info.PWaitDstStageMask = []vk.PipelineStageFlags{vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit)}
	}
	if s, ok := signal.(*Semaphore); ok && s != nil {
		info.SignalSemaphoreCount = 1
		info.PSignalSemaphores = []vk.Semaphore{s.handle}
	}
	fh := vk.NullFence
	if f, ok := fence.(*Fence); ok && f != nil {
		fh = f.handle
	}
	return check(vk.QueueSubmit(q.handle, 1, []vk.SubmitInfo{info}, fh), "queue submit")
}

func (q *Queue) Present(sc driver.Swapchain, image int, wait driver.Semaphore) error {
	info := vk.PresentInfo{
		SType:          vk.StructureTypePresentInfo,
		SwapchainCount: 1,
		PSwapchains:    []vk.Swapchain{sc.(*Swapchain).handle},
		PImageIndices:  []uint32{uint32(image)},
	}
	if w, ok := wait.(*Semaphore); ok && w != nil {
		info.WaitSemaphoreCount = 1
		info.PWaitSemaphores = []vk.Semaphore{w.handle}
	}
	return check(vk.QueuePresent(q.handle, &info), "present")
}
