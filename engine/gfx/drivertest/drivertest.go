// Package drivertest provides an in-memory driver.Device that records every
// object and command, for testing code written against the driver package.
package drivertest

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hubastard/terra/engine/gfx/driver"
)

var errDestroyed = errors.New("used after destroy")

// Device is a recording driver.Device. Fields ending in Err or Errs inject
// failures into the next matching call; they are consumed when returned.
type Device struct {
	mu      sync.Mutex
	next    int
	objects []*object
	info    driver.Info
	queue   *Queue

	// SwapchainImages is the image count of new swapchains (default 3).
	SwapchainImages int
	// SwapchainFormat is the format of new swapchains (default BGRA8 sRGB).
	SwapchainFormat driver.Format

	SwapchainErr   error
	FramebufferErr error
	UploadErr      error
	AcquireErrs    []error
	PresentErrs    []error
	SubmitErr      error
	// Stall leaves fences of later submissions unsignaled, as if the GPU
	// never finished.
	Stall bool

	Uploads   int
	IdleWaits int
}

// New returns a device reporting a y-up, [-1,1] depth clip space so
// projections can be checked without backend correction.
func New() *Device {
	d := &Device{
		SwapchainImages: 3,
		SwapchainFormat: driver.FormatBGRA8SRGB,
		info: driver.Info{
			Backend:      "recording",
			Vendor:       "terra",
			Renderer:     "drivertest",
			Version:      "1.0",
			DeviceType:   driver.DeviceCPU,
			ShaderFormat: driver.ShaderSPIRV,
		},
	}
	d.queue = &Queue{dev: d}
	return d
}

// SetInfo replaces the reported device info.
func (d *Device) SetInfo(info driver.Info) { d.info = info }

type object struct {
	handle    int
	kind      string
	destroyed bool
}

func (o *object) Destroy()        { o.destroyed = true }
func (o *object) Handle() int     { return o.handle }
func (o *object) Destroyed() bool { return o.destroyed }
func (o *object) String() string  { return fmt.Sprintf("%s#%d", o.kind, o.handle) }

func (d *Device) track(kind string) *object {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.next++
	o := &object{handle: d.next, kind: kind}
	d.objects = append(d.objects, o)
	return o
}

// Live counts objects of kind that have not been destroyed.
func (d *Device) Live(kind string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, o := range d.objects {
		if o.kind == kind && !o.destroyed {
			n++
		}
	}
	return n
}

// Created counts every object of kind ever created.
func (d *Device) Created(kind string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, o := range d.objects {
		if o.kind == kind {
			n++
		}
	}
	return n
}

func (d *Device) Destroy()            {}
func (d *Device) Info() driver.Info   { return d.info }
func (d *Device) Queue() driver.Queue { return d.queue }

// Recorder returns the concrete queue for inspecting submissions.
func (d *Device) Recorder() *Queue { return d.queue }

func (d *Device) WaitIdle() error {
	d.IdleWaits++
	return nil
}

type Buffer struct {
	*object
	usage driver.BufferUsage
	Data  []byte
}

func (b *Buffer) Usage() driver.BufferUsage { return b.usage }
func (b *Buffer) Size() int                 { return len(b.Data) }

func (b *Buffer) Write(offset int, data []byte) error {
	if b.destroyed {
		return &driver.ResourceError{Resource: b.String(), Op: "write", Err: errDestroyed}
	}
	if offset < 0 || offset+len(data) > len(b.Data) {
		return fmt.Errorf("write %d bytes at %d: buffer %s holds %d", len(data), offset, b, len(b.Data))
	}
	copy(b.Data[offset:], data)
	return nil
}

func (d *Device) NewBuffer(usage driver.BufferUsage, size int) (driver.Buffer, error) {
	if size <= 0 {
		return nil, fmt.Errorf("buffer size %d", size)
	}
	return &Buffer{object: d.track("buffer"), usage: usage, Data: make([]byte, size)}, nil
}

type Image struct {
	*object
	extent driver.Extent
	format driver.Format
	Pixels []byte
}

func (i *Image) Extent() driver.Extent { return i.extent }
func (i *Image) Format() driver.Format { return i.format }

func (d *Device) NewImage(extent driver.Extent, format driver.Format) (driver.Image, error) {
	if extent.Zero() {
		return nil, fmt.Errorf("image extent %s", extent)
	}
	return &Image{object: d.track("image"), extent: extent, format: format}, nil
}

func (d *Device) UploadImage(img driver.Image, pixels []byte) error {
	if d.UploadErr != nil {
		err := d.UploadErr
		d.UploadErr = nil
		return err
	}
	im := img.(*Image)
	want := im.extent.Width * im.extent.Height * 4
	if len(pixels) != want {
		return fmt.Errorf("upload %d bytes into %s image of %d", len(pixels), im.extent, want)
	}
	im.Pixels = append([]byte(nil), pixels...)
	d.Uploads++
	return nil
}

type Sampler struct {
	*object
	Desc driver.SamplerDesc
}

func (d *Device) NewSampler(desc driver.SamplerDesc) (driver.Sampler, error) {
	return &Sampler{object: d.track("sampler"), Desc: desc}, nil
}

type Shader struct {
	*object
	stage driver.Stage
	Code  []byte
	Entry string
}

func (s *Shader) Stage() driver.Stage { return s.stage }

func (d *Device) NewShader(stage driver.Stage, code []byte, entry string) (driver.Shader, error) {
	if len(code) == 0 {
		return nil, errors.New("empty shader code")
	}
	return &Shader{object: d.track("shader"), stage: stage, Code: code, Entry: entry}, nil
}

type RenderPass struct {
	*object
	format driver.Format
}

func (p *RenderPass) Format() driver.Format { return p.format }

func (d *Device) NewRenderPass(format driver.Format) (driver.RenderPass, error) {
	return &RenderPass{object: d.track("renderpass"), format: format}, nil
}

type Pipeline struct {
	*object
	Desc driver.PipelineDesc
}

func (d *Device) NewPipeline(desc driver.PipelineDesc) (driver.Pipeline, error) {
	if desc.Vertex == nil || desc.Fragment == nil {
		return nil, errors.New("pipeline needs vertex and fragment shaders")
	}
	if desc.RenderPass == nil {
		return nil, errors.New("pipeline needs a render pass")
	}
	return &Pipeline{object: d.track("pipeline"), Desc: desc}, nil
}

type DescriptorSet struct {
	*object
	Pipeline  *Pipeline
	Slot      int
	Resources []driver.Resource
}

func (d *Device) NewDescriptorSet(p driver.Pipeline, slot int, res ...driver.Resource) (driver.DescriptorSet, error) {
	pl := p.(*Pipeline)
	if slot < 0 || slot >= len(pl.Desc.Sets) {
		return nil, fmt.Errorf("pipeline %s has no set slot %d", pl, slot)
	}
	return &DescriptorSet{object: d.track("descriptorset"), Pipeline: pl, Slot: slot, Resources: res}, nil
}

type Swapchain struct {
	*object
	dev    *Device
	extent driver.Extent
	format driver.Format
	count  int
	next   int
	Old    driver.Swapchain
}

func (s *Swapchain) Extent() driver.Extent { return s.extent }
func (s *Swapchain) Format() driver.Format { return s.format }
func (s *Swapchain) ImageCount() int       { return s.count }

func (s *Swapchain) Acquire(signal driver.Semaphore) (int, error) {
	if s.destroyed {
		return -1, &driver.ResourceError{Resource: s.String(), Op: "acquire", Err: errDestroyed}
	}
	var err error
	if len(s.dev.AcquireErrs) > 0 {
		err = s.dev.AcquireErrs[0]
		s.dev.AcquireErrs = s.dev.AcquireErrs[1:]
	}
	if err != nil && !errors.Is(err, driver.ErrSuboptimal) {
		return -1, err
	}
	idx := s.next
	s.next = (s.next + 1) % s.count
	if sem, ok := signal.(*Semaphore); ok {
		sem.Signaled = true
	}
	return idx, err
}

func (d *Device) NewSwapchain(extent driver.Extent, old driver.Swapchain) (driver.Swapchain, error) {
	if extent.Zero() {
		return nil, driver.ErrExtentUnsupported
	}
	if d.SwapchainErr != nil {
		err := d.SwapchainErr
		d.SwapchainErr = nil
		return nil, err
	}
	return &Swapchain{
		object: d.track("swapchain"),
		dev:    d,
		extent: extent,
		format: d.SwapchainFormat,
		count:  d.SwapchainImages,
		Old:    old,
	}, nil
}

type Framebuffer struct {
	*object
	Pass      *RenderPass
	Swapchain *Swapchain
	Image     int
}

func (f *Framebuffer) Extent() driver.Extent { return f.Swapchain.extent }

func (d *Device) NewFramebuffer(pass driver.RenderPass, sc driver.Swapchain, image int) (driver.Framebuffer, error) {
	if d.FramebufferErr != nil {
		err := d.FramebufferErr
		d.FramebufferErr = nil
		return nil, err
	}
	s := sc.(*Swapchain)
	if image < 0 || image >= s.count {
		return nil, fmt.Errorf("swapchain %s has no image %d", s, image)
	}
	return &Framebuffer{object: d.track("framebuffer"), Pass: pass.(*RenderPass), Swapchain: s, Image: image}, nil
}

type Semaphore struct {
	*object
	Signaled bool
}

func (d *Device) NewSemaphore() (driver.Semaphore, error) {
	return &Semaphore{object: d.track("semaphore")}, nil
}

type Fence struct {
	*object
	Signaled bool
	Waits    int
}

func (f *Fence) Wait(timeout time.Duration) error {
	f.Waits++
	if f.Signaled {
		return nil
	}
	if timeout > 0 {
		return driver.ErrTimeout
	}
	return fmt.Errorf("fence %s would block forever", f)
}

func (f *Fence) Reset() error {
	f.Signaled = false
	return nil
}

func (d *Device) NewFence() (driver.Fence, error) {
	return &Fence{object: d.track("fence")}, nil
}
