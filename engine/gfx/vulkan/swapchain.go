package vkbackend

import (
	"errors"
	"fmt"
	"math"

	vk "github.com/vulkan-go/vulkan"

	"github.com/hubastard/terra/engine/gfx/driver"
)

type Swapchain struct {
	dev    *Device
	handle vk.Swapchain
	images []vk.Image
	views  []vk.ImageView
	extent driver.Extent
	format driver.Format
	vkfmt  vk.Format
}

func (s *Swapchain) Extent() driver.Extent { return s.extent }
func (s *Swapchain) Format() driver.Format { return s.format }
func (s *Swapchain) ImageCount() int       { return len(s.images) }

// chooseExtent picks the swapchain extent. The surface dictates it unless
// it reports the special 0xFFFFFFFF width, in which case want is clamped to
// the supported range. ok is false for an empty extent.
func chooseExtent(cur, lo, hi vk.Extent2D, want driver.Extent) (vk.Extent2D, bool) {
	e := cur
	if cur.Width == math.MaxUint32 {
		e = vk.Extent2D{
			Width:  clampU32(uint32(max(want.Width, 0)), lo.Width, hi.Width),
			Height: clampU32(uint32(max(want.Height, 0)), lo.Height, hi.Height),
		}
	}
	return e, e.Width > 0 && e.Height > 0
}

func clampU32(v, lo, hi uint32) uint32 {
	return min(max(v, lo), hi)
}

func choosePresentMode(modes []vk.PresentMode, vsync bool) vk.PresentMode {
	if vsync {
		return vk.PresentModeFifo
	}
	for _, want := range []vk.PresentMode{vk.PresentModeMailbox, vk.PresentModeImmediate} {
		for _, m := range modes {
			if m == want {
				return m
			}
		}
	}
	return vk.PresentModeFifo
}

func chooseFormat(formats []vk.SurfaceFormat) (vk.SurfaceFormat, error) {
	for _, want := range []vk.Format{vk.FormatB8g8r8a8Srgb, vk.FormatR8g8b8a8Srgb} {
		for _, f := range formats {
			if f.Format == want && f.ColorSpace == vk.ColorSpaceSrgbNonlinear {
				return f, nil
			}
		}
	}
	for _, f := range formats {
		if fromVkFormat(f.Format) != driver.FormatUndefined {
			return f, nil
		}
	}
	return vk.SurfaceFormat{}, errors.New("surface offers no 8-bit RGBA format")
}

func (d *Device) NewSwapchain(extent driver.Extent, old driver.Swapchain) (driver.Swapchain, error) {
	var caps vk.SurfaceCapabilities
	if err := check(vk.GetPhysicalDeviceSurfaceCapabilities(d.physical, d.surface, &caps), "surface capabilities"); err != nil {
		return nil, err
	}
	caps.Deref()
	caps.CurrentExtent.Deref()
	caps.MinImageExtent.Deref()
	caps.MaxImageExtent.Deref()

	ext, ok := chooseExtent(caps.CurrentExtent, caps.MinImageExtent, caps.MaxImageExtent, extent)
	if !ok {
		return nil, driver.ErrExtentUnsupported
	}
	formats, modes, err := d.surfaceSupport(d.physical)
	if err != nil {
		return nil, err
	}
	sf, err := chooseFormat(formats)
	if err != nil {
		return nil, err
	}

	count := caps.MinImageCount + 1
	if caps.MaxImageCount > 0 && count > caps.MaxImageCount {
		count = caps.MaxImageCount
	}
	info := vk.SwapchainCreateInfo{
		SType:            vk.StructureTypeSwapchainCreateInfo,
		Surface:          d.surface,
		MinImageCount:    count,
		ImageFormat:      sf.Format,
		ImageColorSpace:  sf.ColorSpace,
		ImageExtent:      ext,
		ImageArrayLayers: 1,
		ImageUsage:       vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit),
		ImageSharingMode: vk.SharingModeExclusive,
		PreTransform:     caps.CurrentTransform,
		CompositeAlpha:   vk.CompositeAlphaOpaqueBit,
		PresentMode:      choosePresentMode(modes, d.opts.VSync),
		Clipped:          vk.True,
		OldSwapchain:     vk.NullSwapchain,
	}
	if prev, ok := old.(*Swapchain); ok && prev != nil {
		info.OldSwapchain = prev.handle
	}

	s := &Swapchain{
		dev:    d,
		extent: driver.Extent{Width: int(ext.Width), Height: int(ext.Height)},
		format: fromVkFormat(sf.Format),
		vkfmt:  sf.Format,
	}
	if err := check(vk.CreateSwapchain(d.device, &info, nil, &s.handle), "create swapchain"); err != nil {
		return nil, err
	}
	var n uint32
	vk.GetSwapchainImages(d.device, s.handle, &n, nil)
	s.images = make([]vk.Image, n)
	vk.GetSwapchainImages(d.device, s.handle, &n, s.images)
	for _, img := range s.images {
		v, err := d.imageView(img, sf.Format)
		if err != nil {
			s.Destroy()
			return nil, err
		}
		s.views = append(s.views, v)
	}
	return s, nil
}

func (s *Swapchain) Acquire(signal driver.Semaphore) (int, error) {
	sem := vk.Semaphore(vk.NullHandle)
	if x, ok := signal.(*Semaphore); ok {
		sem = x.handle
	}
	var idx uint32
	res := vk.AcquireNextImage(s.dev.device, s.handle, vk.MaxUint64, sem, vk.NullFence, &idx)
	if res == vk.Success {
		return int(idx), nil
	}
	err := check(res, "acquire image")
	if res == vk.Suboptimal {
		return int(idx), err
	}
	return -1, err
}

func (s *Swapchain) Destroy() {
	for _, v := range s.views {
		vk.DestroyImageView(s.dev.device, v, nil)
	}
	s.views, s.images = nil, nil
	if s.handle != vk.NullSwapchain {
		vk.DestroySwapchain(s.dev.device, s.handle, nil)
		s.handle = vk.NullSwapchain
	}
}

type RenderPass struct {
	dev    *Device
	handle vk.RenderPass
	format driver.Format
}

func (p *RenderPass) Format() driver.Format { return p.format }

// NewRenderPass builds a single-subpass pass that clears the colour
// attachment and leaves it ready to present.
func (d *Device) NewRenderPass(format driver.Format) (driver.RenderPass, error) {
	color := vk.AttachmentDescription{
		Format:         vkFormat(format),
		Samples:        vk.SampleCount1Bit,
		LoadOp:         vk.AttachmentLoadOpClear,
		StoreOp:        vk.AttachmentStoreOpStore,
		StencilLoadOp:  vk.AttachmentLoadOpDontCare,
		StencilStoreOp: vk.AttachmentStoreOpDontCare,
		InitialLayout:  vk.ImageLayoutUndefined,
		FinalLayout:    vk.ImageLayoutPresentSrc,
	}
	subpass := vk.SubpassDescription{
		PipelineBindPoint:    vk.PipelineBindPointGraphics,
		ColorAttachmentCount: 1,
		PColorAttachments: []vk.AttachmentReference{{
			Attachment: 0,
			Layout:     vk.ImageLayoutColorAttachmentOptimal,
		}},
	}
	dep := vk.SubpassDependency{
		SrcSubpass:    vk.SubpassExternal,
		DstSubpass:    0,
		SrcStageMask:  vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
		DstStageMask:  vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
		DstAccessMask: vk.AccessFlags(vk.AccessColorAttachmentWriteBit),
	}
	info := vk.RenderPassCreateInfo{
		SType:           vk.StructureTypeRenderPassCreateInfo,
		AttachmentCount: 1,
		PAttachments:    []vk.AttachmentDescription{color},
		SubpassCount:    1,
		PSubpasses:      []vk.SubpassDescription{subpass},
		DependencyCount: 1,
		PDependencies:   []vk.SubpassDependency{dep},
	}
	p := &RenderPass{dev: d, format: format}
	if err := check(vk.CreateRenderPass(d.device, &info, nil, &p.handle), "create render pass"); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *RenderPass) Destroy() {
	if p.handle != vk.NullRenderPass {
		vk.DestroyRenderPass(p.dev.device, p.handle, nil)
		p.handle = vk.NullRenderPass
	}
}

type Framebuffer struct {
	dev    *Device
	handle vk.Framebuffer
	extent driver.Extent
}

func (f *Framebuffer) Extent() driver.Extent { return f.extent }

func (d *Device) NewFramebuffer(pass driver.RenderPass, sc driver.Swapchain, image int) (driver.Framebuffer, error) {
	p, s := pass.(*RenderPass), sc.(*Swapchain)
	if image < 0 || image >= len(s.views) {
		return nil, fmt.Errorf("swapchain has no image %d", image)
	}
	info := vk.FramebufferCreateInfo{
		SType:           vk.StructureTypeFramebufferCreateInfo,
		RenderPass:      p.handle,
		AttachmentCount: 1,
		PAttachments:    []vk.ImageView{s.views[image]},
		Width:           uint32(s.extent.Width),
		Height:          uint32(s.extent.Height),
		Layers:          1,
	}
	f := &Framebuffer{dev: d, extent: s.extent}
	if err := check(vk.CreateFramebuffer(d.device, &info, nil, &f.handle), "create framebuffer"); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *Framebuffer) Destroy() {
	if f.handle != vk.NullFramebuffer {
		vk.DestroyFramebuffer(f.dev.device, f.handle, nil)
		f.handle = vk.NullFramebuffer
	}
}
