// Package vkbackend implements the driver contract on Vulkan through
// vulkan-go. It uses one graphics queue that can also present and allocates
// every buffer and image from dedicated host-visible or device-local
// memory.
package vkbackend

import (
	"fmt"
	"log/slog"
	"unsafe"

	vk "github.com/vulkan-go/vulkan"

	"github.com/hubastard/terra/engine/gfx/driver"
)

const validationLayer = "VK_LAYER_KHRONOS_validation"

// Window is the part of a GLFW window the backend needs. *glfw.Window
// implements it.
type Window interface {
	GetRequiredInstanceExtensions() []string
	CreateWindowSurface(instance interface{}, allocCallbacks unsafe.Pointer) (uintptr, error)
}

type Options struct {
	// ProcAddr is vkGetInstanceProcAddr, usually
	// glfw.GetVulkanGetInstanceProcAddress().
	ProcAddr   unsafe.Pointer
	Validation bool
	VSync      bool
	// MaxSets bounds the descriptor sets alive at once.
	MaxSets int
	AppName string
	Log     *slog.Logger
}

type Device struct {
	opts Options
	log  *slog.Logger
	info driver.Info

	instance vk.Instance
	surface  vk.Surface
	physical vk.PhysicalDevice
	memory   vk.PhysicalDeviceMemoryProperties
	device   vk.Device
	family   uint32
	queue    *Queue

	cmdPool  vk.CommandPool
	descPool vk.DescriptorPool
	// set layouts are shared by every pipeline with the same bindings, so
	// descriptor sets outlive pipeline rebuilds
	setLayouts map[string]vk.DescriptorSetLayout
}

var _ driver.Device = (*Device)(nil)

// Open creates the instance, surface and logical device for win.
func Open(win Window, opts Options) (*Device, error) {
	if opts.Log == nil {
		opts.Log = slog.Default()
	}
	if opts.MaxSets <= 0 {
		opts.MaxSets = 256
	}
	if opts.AppName == "" {
		opts.AppName = "terra"
	}
	d := &Device{opts: opts, log: opts.Log, setLayouts: map[string]vk.DescriptorSetLayout{}}

	if opts.ProcAddr != nil {
		vk.SetGetInstanceProcAddr(opts.ProcAddr)
	}
	if err := vk.Init(); err != nil {
		return nil, fmt.Errorf("load vulkan: %w", err)
	}
	if err := d.createInstance(win); err != nil {
		return nil, err
	}
	surf, err := win.CreateWindowSurface(d.instance, nil)
	if err != nil {
		d.Destroy()
		return nil, fmt.Errorf("window surface: %w", err)
	}
	d.surface = vk.SurfaceFromPointer(surf)

	cands, err := d.candidates()
	if err != nil {
		d.Destroy()
		return nil, err
	}
	i, err := pick(cands)
	if err != nil {
		d.Destroy()
		return nil, err
	}
	d.physical, d.family = cands[i].handle, uint32(cands[i].family)

	if err := d.createDevice(); err != nil {
		d.Destroy()
		return nil, err
	}
	d.log.Info("vulkan device selected",
		"device", d.info.Renderer,
		"vendor", d.info.Vendor,
		"type", d.info.DeviceType,
		"api", d.info.Version,
	)
	return d, nil
}

func (d *Device) createInstance(win Window) error {
	exts := win.GetRequiredInstanceExtensions()
	var layers []string
	if d.opts.Validation {
		if hasLayer(validationLayer) {
			layers = append(layers, validationLayer+"\x00")
		} else {
			d.log.Warn("validation requested but layer missing", "layer", validationLayer)
		}
	}
	app := vk.ApplicationInfo{
		SType:              vk.StructureTypeApplicationInfo,
		PApplicationName:   d.opts.AppName + "\x00",
		ApplicationVersion: vk.MakeVersion(1, 0, 0),
		PEngineName:        "terra\x00",
		EngineVersion:      vk.MakeVersion(1, 0, 0),
		ApiVersion:         vk.ApiVersion10,
	}
	info := vk.InstanceCreateInfo{
		SType:                   vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo:        &app,
		EnabledExtensionCount:   uint32(len(exts)),
		PpEnabledExtensionNames: nullTerminated(exts),
		EnabledLayerCount:       uint32(len(layers)),
		PpEnabledLayerNames:     layers,
	}
	var inst vk.Instance
	if err := check(vk.CreateInstance(&info, nil, &inst), "create instance"); err != nil {
		return err
	}
	d.instance = inst
	if err := vk.InitInstance(inst); err != nil {
		return fmt.Errorf("load instance functions: %w", err)
	}
	return nil
}

func (d *Device) createDevice() error {
	queueInfo := vk.DeviceQueueCreateInfo{
		SType:            vk.StructureTypeDeviceQueueCreateInfo,
		QueueFamilyIndex: d.family,
		QueueCount:       1,
		PQueuePriorities: []float32{1},
	}
	exts := []string{vk.KhrSwapchainExtensionName + "\x00"}
	info := vk.DeviceCreateInfo{
		SType:                   vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount:    1,
		PQueueCreateInfos:       []vk.DeviceQueueCreateInfo{queueInfo},
		EnabledExtensionCount:   uint32(len(exts)),
		PpEnabledExtensionNames: exts,
	}
	var dev vk.Device
	if err := check(vk.CreateDevice(d.physical, &info, nil, &dev), "create device"); err != nil {
		return err
	}
	d.device = dev

	var q vk.Queue
	vk.GetDeviceQueue(dev, d.family, 0, &q)
	d.queue = &Queue{dev: d, handle: q}

	vk.GetPhysicalDeviceMemoryProperties(d.physical, &d.memory)
	d.memory.Deref()

	var props vk.PhysicalDeviceProperties
	vk.GetPhysicalDeviceProperties(d.physical, &props)
	props.Deref()
	d.info = driver.Info{
		Backend:        "vulkan",
		Vendor:         vendorName(props.VendorID),
		Renderer:       vk.ToString(props.DeviceName[:]),
		Version:        versionString(props.ApiVersion),
		DeviceType:     deviceType(props.DeviceType),
		ShaderFormat:   driver.ShaderSPIRV,
		YDown:          true,
		DepthZeroToOne: true,
	}

	poolInfo := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit),
		QueueFamilyIndex: d.family,
	}
	if err := check(vk.CreateCommandPool(dev, &poolInfo, nil, &d.cmdPool), "create command pool"); err != nil {
		return err
	}

	n := uint32(d.opts.MaxSets)
	sizes := []vk.DescriptorPoolSize{
		{Type: vk.DescriptorTypeUniformBuffer, DescriptorCount: n},
		{Type: vk.DescriptorTypeSampledImage, DescriptorCount: n},
		{Type: vk.DescriptorTypeSampler, DescriptorCount: n},
	}
	descInfo := vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		Flags:         vk.DescriptorPoolCreateFlags(vk.DescriptorPoolCreateFreeDescriptorSetBit),
		MaxSets:       n,
		PoolSizeCount: uint32(len(sizes)),
		PPoolSizes:    sizes,
	}
	return check(vk.CreateDescriptorPool(dev, &descInfo, nil, &d.descPool), "create descriptor pool")
}

func (d *Device) Info() driver.Info   { return d.info }
func (d *Device) Queue() driver.Queue { return d.queue }

func (d *Device) WaitIdle() error {
	return check(vk.DeviceWaitIdle(d.device), "wait idle")
}

// Destroy releases the device, surface and instance. Every object created
// from the device must already be destroyed.
func (d *Device) Destroy() {
	if d.device != nil {
		vk.DeviceWaitIdle(d.device)
		for _, l := range d.setLayouts {
			vk.DestroyDescriptorSetLayout(d.device, l, nil)
		}
		d.setLayouts = nil
		if d.descPool != vk.NullDescriptorPool {
			vk.DestroyDescriptorPool(d.device, d.descPool, nil)
		}
		if d.cmdPool != vk.NullCommandPool {
			vk.DestroyCommandPool(d.device, d.cmdPool, nil)
		}
		vk.DestroyDevice(d.device, nil)
		d.device = nil
	}
	if d.surface != vk.NullSurface {
		vk.DestroySurface(d.instance, d.surface, nil)
		d.surface = vk.NullSurface
	}
	if d.instance != nil {
		vk.DestroyInstance(d.instance, nil)
		d.instance = nil
	}
}

func nullTerminated(names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		if len(n) == 0 || n[len(n)-1] != 0 {
			n += "\x00"
		}
		out[i] = n
	}
	return out
}
