package vkbackend

import (
	"fmt"

	vk "github.com/vulkan-go/vulkan"

	"github.com/hubastard/terra/engine/gfx/driver"
)

// candidate is a physical device as seen by selection.
type candidate struct {
	handle vk.PhysicalDevice
	name   string
	kind   vk.PhysicalDeviceType
	family int // graphics family that can present, -1 if none
	// reason is set when the device cannot be used.
	reason string
}

func score(t vk.PhysicalDeviceType) int {
	switch t {
	case vk.PhysicalDeviceTypeDiscreteGpu:
		return 4
	case vk.PhysicalDeviceTypeIntegratedGpu:
		return 3
	case vk.PhysicalDeviceTypeVirtualGpu:
		return 2
	case vk.PhysicalDeviceTypeCpu:
		return 1
	}
	return 0
}

func deviceType(t vk.PhysicalDeviceType) driver.DeviceType {
	switch t {
	case vk.PhysicalDeviceTypeDiscreteGpu:
		return driver.DeviceDiscrete
	case vk.PhysicalDeviceTypeIntegratedGpu:
		return driver.DeviceIntegrated
	case vk.PhysicalDeviceTypeVirtualGpu:
		return driver.DeviceVirtual
	case vk.PhysicalDeviceTypeCpu:
		return driver.DeviceCPU
	}
	return driver.DeviceOther
}

// pick returns the index of the best usable candidate. Ties keep the first
// enumerated device.
func pick(cands []candidate) (int, error) {
	best, bestScore := -1, -1
	var last string
	for i, c := range cands {
		if c.reason != "" {
			last = fmt.Sprintf("%s: %s", c.name, c.reason)
			continue
		}
		if s := score(c.kind); s > bestScore {
			best, bestScore = i, s
		}
	}
	if best >= 0 {
		return best, nil
	}
	if last == "" {
		return -1, fmt.Errorf("%w: no Vulkan devices", driver.ErrNoDevice)
	}
	return -1, fmt.Errorf("%w: %s", driver.ErrNoDevice, last)
}

func (d *Device) candidates() ([]candidate, error) {
	var count uint32
	if err := check(vk.EnumeratePhysicalDevices(d.instance, &count, nil), "enumerate devices"); err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, nil
	}
	handles := make([]vk.PhysicalDevice, count)
	if err := check(vk.EnumeratePhysicalDevices(d.instance, &count, handles), "enumerate devices"); err != nil {
		return nil, err
	}
	out := make([]candidate, 0, count)
	for _, h := range handles[:count] {
		var props vk.PhysicalDeviceProperties
		vk.GetPhysicalDeviceProperties(h, &props)
		props.Deref()
		c := candidate{handle: h, name: vk.ToString(props.DeviceName[:]), kind: props.DeviceType, family: -1}
		c.reason = d.unsuitable(&c)
		d.log.Debug("vulkan device", "name", c.name, "type", deviceType(c.kind), "score", score(c.kind), "rejected", c.reason)
		out = append(out, c)
	}
	return out, nil
}

// unsuitable reports why c cannot drive the surface, or "" when it can.
// It fills in c.family.
func (d *Device) unsuitable(c *candidate) string {
	var n uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(c.handle, &n, nil)
	families := make([]vk.QueueFamilyProperties, n)
	vk.GetPhysicalDeviceQueueFamilyProperties(c.handle, &n, families)
	for i, f := range families {
		f.Deref()
		if f.QueueFlags&vk.QueueFlags(vk.QueueGraphicsBit) == 0 {
			continue
		}
		var present vk.Bool32
		if vk.GetPhysicalDeviceSurfaceSupport(c.handle, uint32(i), d.surface, &present) == vk.Success && present.B() {
			c.family = i
			break
		}
	}
	if c.family < 0 {
		return "no graphics queue that can present"
	}
	if !hasExtension(c.handle, vk.KhrSwapchainExtensionName) {
		return "no " + vk.KhrSwapchainExtensionName
	}
	formats, modes, err := d.surfaceSupport(c.handle)
	if err != nil {
		return err.Error()
	}
	if len(formats) == 0 || len(modes) == 0 {
		return "surface reports no formats or present modes"
	}
	return ""
}

func hasExtension(pd vk.PhysicalDevice, name string) bool {
	var n uint32
	if vk.EnumerateDeviceExtensionProperties(pd, "", &n, nil) != vk.Success {
		return false
	}
	exts := make([]vk.ExtensionProperties, n)
	if vk.EnumerateDeviceExtensionProperties(pd, "", &n, exts) != vk.Success {
		return false
	}
	for _, e := range exts {
		e.Deref()
		if vk.ToString(e.ExtensionName[:]) == name {
			return true
		}
	}
	return false
}

func (d *Device) surfaceSupport(pd vk.PhysicalDevice) ([]vk.SurfaceFormat, []vk.PresentMode, error) {
	var n uint32
	if err := check(vk.GetPhysicalDeviceSurfaceFormats(pd, d.surface, &n, nil), "surface formats"); err != nil {
		return nil, nil, err
	}
	formats := make([]vk.SurfaceFormat, n)
	if n > 0 {
		vk.GetPhysicalDeviceSurfaceFormats(pd, d.surface, &n, formats)
		for i := range formats {
			formats[i].Deref()
		}
	}
	if err := check(vk.GetPhysicalDeviceSurfacePresentModes(pd, d.surface, &n, nil), "present modes"); err != nil {
		return nil, nil, err
	}
	modes := make([]vk.PresentMode, n)
	if n > 0 {
		vk.GetPhysicalDeviceSurfacePresentModes(pd, d.surface, &n, modes)
	}
	return formats, modes, nil
}

func hasLayer(name string) bool {
	var n uint32
	if vk.EnumerateInstanceLayerProperties(&n, nil) != vk.Success {
		return false
	}
	layers := make([]vk.LayerProperties, n)
	if vk.EnumerateInstanceLayerProperties(&n, layers) != vk.Success {
		return false
	}
	for _, l := range layers {
		l.Deref()
		if vk.ToString(l.LayerName[:]) == name {
			return true
		}
	}
	return false
}

func vendorName(id uint32) string {
	switch id {
	case 0x1002:
		return "AMD"
	case 0x10DE:
		return "NVIDIA"
	case 0x8086:
		return "Intel"
	case 0x13B5:
		return "ARM"
	case 0x5143:
		return "Qualcomm"
	case 0x106B:
		return "Apple"
	}
	return fmt.Sprintf("0x%04x", id)
}

func versionString(v uint32) string {
	return fmt.Sprintf("%d.%d.%d", v>>22, (v>>12)&0x3ff, v&0xfff)
}
