package vkbackend

import (
	"fmt"
	"unsafe"

	vk "github.com/vulkan-go/vulkan"

	"github.com/hubastard/terra/engine/gfx/driver"
)

func (d *Device) memoryType(bits uint32, props vk.MemoryPropertyFlags) (uint32, error) {
	for i := uint32(0); i < d.memory.MemoryTypeCount; i++ {
		t := d.memory.MemoryTypes[i]
		t.Deref()
		if bits&(1<<i) != 0 && t.PropertyFlags&props == props {
			return i, nil
		}
	}
	return 0, fmt.Errorf("no memory type with properties %#x", props)
}

func (d *Device) allocate(req vk.MemoryRequirements, props vk.MemoryPropertyFlags) (vk.DeviceMemory, error) {
	req.Deref()
	idx, err := d.memoryType(req.MemoryTypeBits, props)
	if err != nil {
		return vk.NullDeviceMemory, err
	}
	info := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  req.Size,
		MemoryTypeIndex: idx,
	}
	var mem vk.DeviceMemory
	if err := check(vk.AllocateMemory(d.device, &info, nil, &mem), "allocate memory"); err != nil {
		return vk.NullDeviceMemory, err
	}
	return mem, nil
}

var hostVisible = vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit) | vk.MemoryPropertyFlags(vk.MemoryPropertyHostCoherentBit)

// Buffer is host visible and stays mapped for its whole life.
type Buffer struct {
	dev    *Device
	handle vk.Buffer
	mem    vk.DeviceMemory
	mapped unsafe.Pointer
	usage  driver.BufferUsage
	size   int
}

func bufferUsage(u driver.BufferUsage) vk.BufferUsageFlags {
	switch u {
	case driver.UsageVertex:
		return vk.BufferUsageFlags(vk.BufferUsageVertexBufferBit)
	case driver.UsageIndex:
		return vk.BufferUsageFlags(vk.BufferUsageIndexBufferBit)
	case driver.UsageUniform:
		return vk.BufferUsageFlags(vk.BufferUsageUniformBufferBit)
	}
	return vk.BufferUsageFlags(vk.BufferUsageTransferSrcBit)
}

func (d *Device) NewBuffer(usage driver.BufferUsage, size int) (driver.Buffer, error) {
	return d.newBuffer(usage, bufferUsage(usage), size)
}

func (d *Device) newBuffer(usage driver.BufferUsage, flags vk.BufferUsageFlags, size int) (*Buffer, error) {
	if size <= 0 {
		return nil, fmt.Errorf("buffer size %d", size)
	}
	info := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(size),
		Usage:       flags,
		SharingMode: vk.SharingModeExclusive,
	}
	b := &Buffer{dev: d, usage: usage, size: size}
	if err := check(vk.CreateBuffer(d.device, &info, nil, &b.handle), "create "+usage.String()+" buffer"); err != nil {
		return nil, err
	}
	var req vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(d.device, b.handle, &req)
	mem, err := d.allocate(req, hostVisible)
	if err != nil {
		b.Destroy()
		return nil, err
	}
	b.mem = mem
	if err := check(vk.BindBufferMemory(d.device, b.handle, mem, 0), "bind buffer memory"); err != nil {
		b.Destroy()
		return nil, err
	}
	if err := check(vk.MapMemory(d.device, mem, 0, vk.DeviceSize(size), 0, &b.mapped), "map buffer"); err != nil {
		b.Destroy()
		return nil, err
	}
	return b, nil
}

func (b *Buffer) Usage() driver.BufferUsage { return b.usage }
func (b *Buffer) Size() int                 { return b.size }

func (b *Buffer) Write(offset int, data []byte) error {
	if b.mapped == nil {
		return &driver.ResourceError{Resource: b.usage.String() + " buffer", Op: "write", Err: errDestroyed}
	}
	if offset < 0 || offset+len(data) > b.size {
		return fmt.Errorf("write %d bytes at %d into %d byte buffer", len(data), offset, b.size)
	}
	vk.Memcopy(unsafe.Add(b.mapped, offset), data)
	return nil
}

func (b *Buffer) Destroy() {
	if b.mapped != nil {
		vk.UnmapMemory(b.dev.device, b.mem)
		b.mapped = nil
	}
	if b.handle != vk.NullBuffer {
		vk.DestroyBuffer(b.dev.device, b.handle, nil)
		b.handle = vk.NullBuffer
	}
	if b.mem != vk.NullDeviceMemory {
		vk.FreeMemory(b.dev.device, b.mem, nil)
		b.mem = vk.NullDeviceMemory
	}
}

func vkFormat(f driver.Format) vk.Format {
	switch f {
	case driver.FormatRGBA8:
		return vk.FormatR8g8b8a8Unorm
	case driver.FormatRGBA8SRGB:
		return vk.FormatR8g8b8a8Srgb
	case driver.FormatBGRA8:
		return vk.FormatB8g8r8a8Unorm
	case driver.FormatBGRA8SRGB:
		return vk.FormatB8g8r8a8Srgb
	}
	return vk.FormatUndefined
}

func fromVkFormat(f vk.Format) driver.Format {
	switch f {
	case vk.FormatR8g8b8a8Unorm:
		return driver.FormatRGBA8
	case vk.FormatR8g8b8a8Srgb:
		return driver.FormatRGBA8SRGB
	case vk.FormatB8g8r8a8Unorm:
		return driver.FormatBGRA8
	case vk.FormatB8g8r8a8Srgb:
		return driver.FormatBGRA8SRGB
	}
	return driver.FormatUndefined
}

// Image is a device-local sampled 2D image with its view.
type Image struct {
	dev    *Device
	handle vk.Image
	mem    vk.DeviceMemory
	view   vk.ImageView
	extent driver.Extent
	format driver.Format
}

func (i *Image) Extent() driver.Extent { return i.extent }
func (i *Image) Format() driver.Format { return i.format }

func (d *Device) NewImage(extent driver.Extent, format driver.Format) (driver.Image, error) {
	if extent.Zero() {
		return nil, fmt.Errorf("image extent %s", extent)
	}
	vf := vkFormat(format)
	if vf == vk.FormatUndefined {
		return nil, fmt.Errorf("image format %s", format)
	}
	info := vk.ImageCreateInfo{
		SType:         vk.StructureTypeImageCreateInfo,
		ImageType:     vk.ImageType2d,
		Extent:        vk.Extent3D{Width: uint32(extent.Width), Height: uint32(extent.Height), Depth: 1},
		MipLevels:     1,
		ArrayLayers:   1,
		Format:        vf,
		Tiling:        vk.ImageTilingOptimal,
		InitialLayout: vk.ImageLayoutUndefined,
		Usage:         vk.ImageUsageFlags(vk.ImageUsageTransferDstBit) | vk.ImageUsageFlags(vk.ImageUsageSampledBit),
		SharingMode:   vk.SharingModeExclusive,
		Samples:       vk.SampleCount1Bit,
	}
	img := &Image{dev: d, extent: extent, format: format}
	if err := check(vk.CreateImage(d.device, &info, nil, &img.handle), "create image"); err != nil {
		return nil, err
	}
	var req vk.MemoryRequirements
	vk.GetImageMemoryRequirements(d.device, img.handle, &req)
	mem, err := d.allocate(req, vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit))
	if err != nil {
		img.Destroy()
		return nil, err
	}
	img.mem = mem
	if err := check(vk.BindImageMemory(d.device, img.handle, mem, 0), "bind image memory"); err != nil {
		img.Destroy()
		return nil, err
	}
	if img.view, err = d.imageView(img.handle, vf); err != nil {
		img.Destroy()
		return nil, err
	}
	return img, nil
}

func (d *Device) imageView(img vk.Image, format vk.Format) (vk.ImageView, error) {
	info := vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    img,
		ViewType: vk.ImageViewType2d,
		Format:   format,
		Components: vk.ComponentMapping{
			R: vk.ComponentSwizzleIdentity,
			G: vk.ComponentSwizzleIdentity,
			B: vk.ComponentSwizzleIdentity,
			A: vk.ComponentSwizzleIdentity,
		},
		SubresourceRange: colorRange,
	}
	var view vk.ImageView
	if err := check(vk.CreateImageView(d.device, &info, nil, &view), "create image view"); err != nil {
		return vk.NullImageView, err
	}
	return view, nil
}

var colorRange = vk.ImageSubresourceRange{
	AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
	LevelCount: 1,
	LayerCount: 1,
}

func (i *Image) Destroy() {
	if i.view != vk.NullImageView {
		vk.DestroyImageView(i.dev.device, i.view, nil)
		i.view = vk.NullImageView
	}
	if i.handle != vk.NullImage {
		vk.DestroyImage(i.dev.device, i.handle, nil)
		i.handle = vk.NullImage
	}
	if i.mem != vk.NullDeviceMemory {
		vk.FreeMemory(i.dev.device, i.mem, nil)
		i.mem = vk.NullDeviceMemory
	}
}

// UploadImage copies pixels through a staging buffer and waits on a fence
// for the transfer, leaving the image in shader-read layout.
func (d *Device) UploadImage(dst driver.Image, pixels []byte) error {
	img, ok := dst.(*Image)
	if !ok || img.handle == vk.NullImage {
		return &driver.ResourceError{Resource: "image", Op: "upload", Err: errDestroyed}
	}
	if want := img.extent.Width * img.extent.Height * 4; len(pixels) != want {
		return fmt.Errorf("upload %d bytes into %s image of %d", len(pixels), img.extent, want)
	}
	staging, err := d.newBuffer(driver.UsageVertex, vk.BufferUsageFlags(vk.BufferUsageTransferSrcBit), len(pixels))
	if err != nil {
		return fmt.Errorf("staging buffer: %w", err)
	}
	defer staging.Destroy()
	if err := staging.Write(0, pixels); err != nil {
		return err
	}

	return d.oneShot(func(cb vk.CommandBuffer) {
		barrier(cb, img.handle, vk.ImageLayoutUndefined, vk.ImageLayoutTransferDstOptimal)
		region := vk.BufferImageCopy{
			ImageSubresource: vk.ImageSubresourceLayers{
				AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
				LayerCount: 1,
			},
			ImageExtent: vk.Extent3D{Width: uint32(img.extent.Width), Height: uint32(img.extent.Height), Depth: 1},
		}
		vk.CmdCopyBufferToImage(cb, staging.handle, img.handle, vk.ImageLayoutTransferDstOptimal, 1, []vk.BufferImageCopy{region})
		barrier(cb, img.handle, vk.ImageLayoutTransferDstOptimal, vk.ImageLayoutShaderReadOnlyOptimal)
	})
}

func barrier(cb vk.CommandBuffer, img vk.Image, from, to vk.ImageLayout) {
	b := vk.ImageMemoryBarrier{
		SType:               vk.StructureTypeImageMemoryBarrier,
		OldLayout:           from,
		NewLayout:           to,
		SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
		DstQueueFamilyIndex: vk.QueueFamilyIgnored,
		Image:               img,
		SubresourceRange:    colorRange,
	}
	var src, dst vk.PipelineStageFlags
	if to == vk.ImageLayoutTransferDstOptimal {
		b.DstAccessMask = vk.AccessFlags(vk.AccessTransferWriteBit)
		src = vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit)
		dst = vk.PipelineStageFlags(vk.PipelineStageTransferBit)
	} else {
		b.SrcAccessMask = vk.AccessFlags(vk.AccessTransferWriteBit)
		b.DstAccessMask = vk.AccessFlags(vk.AccessShaderReadBit)
		src = vk.PipelineStageFlags(vk.PipelineStageTransferBit)
		dst = vk.PipelineStageFlags(vk.PipelineStageFragmentShaderBit)
	}
	vk.CmdPipelineBarrier(cb, src, dst, 0, 0, nil, 0, nil, 1, []vk.ImageMemoryBarrier{b})
}

// oneShot records and submits a throwaway command buffer and blocks on a
// fence until it has executed.
func (d *Device) oneShot(record func(cb vk.CommandBuffer)) error {
	alloc := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        d.cmdPool,
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: 1,
	}
	cbs := make([]vk.CommandBuffer, 1)
	if err := check(vk.AllocateCommandBuffers(d.device, &alloc, cbs), "allocate upload commands"); err != nil {
		return err
	}
	defer vk.FreeCommandBuffers(d.device, d.cmdPool, 1, cbs)

	begin := vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit),
	}
	if err := check(vk.BeginCommandBuffer(cbs[0], &begin), "begin upload commands"); err != nil {
		return err
	}
	record(cbs[0])
	if err := check(vk.EndCommandBuffer(cbs[0]), "end upload commands"); err != nil {
		return err
	}

	f, err := d.NewFence()
	if err != nil {
		return err
	}
	defer f.Destroy()
	submit := vk.SubmitInfo{
		SType:              vk.StructureTypeSubmitInfo,
		CommandBufferCount: 1,
		PCommandBuffers:    cbs,
	}
	if err := check(vk.QueueSubmit(d.queue.handle, 1, []vk.SubmitInfo{submit}, f.(*Fence).handle), "submit upload"); err != nil {
		return err
	}
	return f.Wait(0)
}

type Sampler struct {
	dev    *Device
	handle vk.Sampler
}

func addressMode(m driver.AddressMode) vk.SamplerAddressMode {
	switch m {
	case driver.AddressClampToEdge:
		return vk.SamplerAddressModeClampToEdge
	case driver.AddressRepeat:
		return vk.SamplerAddressModeRepeat
	}
	return vk.SamplerAddressModeClampToBorder
}

func filter(f driver.Filter) vk.Filter {
	if f == driver.FilterNearest {
		return vk.FilterNearest
	}
	return vk.FilterLinear
}

func (d *Device) NewSampler(desc driver.SamplerDesc) (driver.Sampler, error) {
	mode := addressMode(desc.Address)
	info := vk.SamplerCreateInfo{
		SType:            vk.StructureTypeSamplerCreateInfo,
		MagFilter:        filter(desc.Mag),
		MinFilter:        filter(desc.Min),
		AddressModeU:     mode,
		AddressModeV:     mode,
		AddressModeW:     mode,
		BorderColor:      vk.BorderColorFloatTransparentBlack,
		CompareOp:        vk.CompareOpAlways,
		MipmapMode:       vk.SamplerMipmapModeLinear,
		AnisotropyEnable: vk.False,
		MaxAnisotropy:    1,
	}
	s := &Sampler{dev: d}
	if err := check(vk.CreateSampler(d.device, &info, nil, &s.handle), "create sampler"); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Sampler) Destroy() {
	if s.handle != vk.NullSampler {
		vk.DestroySampler(s.dev.device, s.handle, nil)
		s.handle = vk.NullSampler
	}
}
