// Package driver defines the backend-agnostic GPU contract the renderer is
// written against. Backends (Vulkan, OpenGL, the recording test driver)
// implement these interfaces; everything above this package only speaks
// driver types.
package driver

import "time"

// Destroyer is implemented by every GPU object owned by the caller.
type Destroyer interface {
	Destroy()
}

// Device is a logical device with a single graphics queue.
type Device interface {
	Destroyer

	Info() Info
	Queue() Queue

	// NewBuffer creates a host-visible buffer of size bytes.
	NewBuffer(usage BufferUsage, size int) (Buffer, error)
	// NewImage creates a device-local 2D image that can be sampled.
	NewImage(extent Extent, format Format) (Image, error)
	// UploadImage copies tightly packed pixels into img with a one-time
	// transfer and blocks until the transfer has completed.
	UploadImage(img Image, pixels []byte) error
	NewSampler(desc SamplerDesc) (Sampler, error)
	NewShader(stage Stage, code []byte, entry string) (Shader, error)
	NewRenderPass(format Format) (RenderPass, error)
	NewPipeline(desc PipelineDesc) (Pipeline, error)
	// NewDescriptorSet builds a set for the layout at slot of p and writes
	// the given resources into it.
	NewDescriptorSet(p Pipeline, slot int, res ...Resource) (DescriptorSet, error)
	// NewSwapchain creates a swapchain of the requested extent. When old is
	// not nil it is handed to the platform for reuse; the caller still owns
	// and destroys it. A temporarily invalid extent yields
	// ErrExtentUnsupported and leaves old untouched.
	NewSwapchain(extent Extent, old Swapchain) (Swapchain, error)
	NewFramebuffer(pass RenderPass, sc Swapchain, image int) (Framebuffer, error)
	NewCommandBuffer() (CommandBuffer, error)
	NewSemaphore() (Semaphore, error)
	NewFence() (Fence, error)

	WaitIdle() error
}

// Queue is the graphics/present queue.
type Queue interface {
	// Submit executes cb after wait is signaled, then signals signal and
	// fence. wait and signal may be nil.
	Submit(cb CommandBuffer, wait, signal Semaphore, fence Fence) error
	// Present queues image for display once wait is signaled. It returns
	// ErrSuboptimal (the image was presented) or ErrOutOfDate (it was not).
	Present(sc Swapchain, image int, wait Semaphore) error
}

type Buffer interface {
	Destroyer
	Usage() BufferUsage
	Size() int
	Write(offset int, data []byte) error
}

type Image interface {
	Destroyer
	Extent() Extent
	Format() Format
}

type Sampler interface{ Destroyer }

type Shader interface {
	Destroyer
	Stage() Stage
}

type RenderPass interface {
	Destroyer
	Format() Format
}

type Pipeline interface{ Destroyer }

type DescriptorSet interface{ Destroyer }

type Framebuffer interface {
	Destroyer
	Extent() Extent
}

type Swapchain interface {
	Destroyer
	Extent() Extent
	Format() Format
	ImageCount() int
	// Acquire returns the index of the next presentable image; signal is
	// signaled when the image is ready to be rendered to. ErrSuboptimal
	// comes with a valid index, ErrOutOfDate does not.
	Acquire(signal Semaphore) (int, error)
}

// CommandBuffer records commands for a single submission. Recording errors
// surface from End.
type CommandBuffer interface {
	Destroyer
	Reset() error
	Begin() error
	BeginRenderPass(pass RenderPass, fb Framebuffer, clear [4]float32)
	SetViewport(vp Viewport)
	BindPipeline(p Pipeline)
	BindDescriptorSet(p Pipeline, slot int, set DescriptorSet)
	BindVertexBuffer(b Buffer)
	BindIndexBuffer(b Buffer)
	PushConstants(p Pipeline, offset int, data []byte)
	DrawIndexed(indexCount, instanceCount int)
	EndRenderPass()
	End() error
}

type Semaphore interface{ Destroyer }

type Fence interface {
	Destroyer
	// Wait blocks until the fence is signaled. A zero timeout waits forever;
	// otherwise ErrTimeout is returned once it elapses.
	Wait(timeout time.Duration) error
	Reset() error
}
