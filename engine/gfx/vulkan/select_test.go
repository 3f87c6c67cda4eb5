package vkbackend

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	vk "github.com/vulkan-go/vulkan"

	"github.com/hubastard/terra/engine/gfx/driver"
)

func TestPickPrefersDiscrete(t *testing.T) {
	cands := []candidate{
		{name: "llvmpipe", kind: vk.PhysicalDeviceTypeCpu},
		{name: "intel", kind: vk.PhysicalDeviceTypeIntegratedGpu},
		{name: "nvidia", kind: vk.PhysicalDeviceTypeDiscreteGpu},
		{name: "amd", kind: vk.PhysicalDeviceTypeDiscreteGpu},
	}
	i, err := pick(cands)
	require.NoError(t, err)
	assert.Equal(t, "nvidia", cands[i].name)
}

func TestPickSkipsUnsuitable(t *testing.T) {
	cands := []candidate{
		{name: "nvidia", kind: vk.PhysicalDeviceTypeDiscreteGpu, reason: "no present support"},
		{name: "llvmpipe", kind: vk.PhysicalDeviceTypeCpu},
	}
	i, err := pick(cands)
	require.NoError(t, err)
	assert.Equal(t, 1, i)
}

func TestPickFailsWithReason(t *testing.T) {
	_, err := pick([]candidate{{name: "gpu", reason: "missing VK_KHR_swapchain"}})
	assert.ErrorIs(t, err, driver.ErrNoDevice)
	assert.ErrorContains(t, err, "VK_KHR_swapchain")

	_, err = pick(nil)
	assert.ErrorIs(t, err, driver.ErrNoDevice)
}

func TestChooseExtent(t *testing.T) {
	lo := vk.Extent2D{Width: 1, Height: 1}
	hi := vk.Extent2D{Width: 4096, Height: 4096}

	e, ok := chooseExtent(vk.Extent2D{Width: 800, Height: 600}, lo, hi, driver.Extent{Width: 10, Height: 10})
	assert.True(t, ok)
	assert.Equal(t, vk.Extent2D{Width: 800, Height: 600}, e)

	free := vk.Extent2D{Width: math.MaxUint32, Height: math.MaxUint32}
	e, ok = chooseExtent(free, lo, hi, driver.Extent{Width: 9000, Height: 300})
	assert.True(t, ok)
	assert.Equal(t, vk.Extent2D{Width: 4096, Height: 300}, e)

	_, ok = chooseExtent(vk.Extent2D{}, vk.Extent2D{}, vk.Extent2D{}, driver.Extent{})
	assert.False(t, ok)
}

func TestChoosePresentMode(t *testing.T) {
	all := []vk.PresentMode{vk.PresentModeImmediate, vk.PresentModeFifo, vk.PresentModeMailbox}
	assert.Equal(t, vk.PresentModeFifo, choosePresentMode(all, true))
	assert.Equal(t, vk.PresentModeMailbox, choosePresentMode(all, false))
	assert.Equal(t, vk.PresentModeImmediate, choosePresentMode(all[:2], false))
	assert.Equal(t, vk.PresentModeFifo, choosePresentMode(nil, false))
}

func TestChooseFormat(t *testing.T) {
	f, err := chooseFormat([]vk.SurfaceFormat{
		{Format: vk.FormatR8g8b8a8Unorm, ColorSpace: vk.ColorSpaceSrgbNonlinear},
		{Format: vk.FormatB8g8r8a8Srgb, ColorSpace: vk.ColorSpaceSrgbNonlinear},
	})
	require.NoError(t, err)
	assert.Equal(t, vk.FormatB8g8r8a8Srgb, f.Format)

	f, err = chooseFormat([]vk.SurfaceFormat{{Format: vk.FormatR8g8b8a8Unorm}})
	require.NoError(t, err)
	assert.Equal(t, driver.FormatRGBA8, fromVkFormat(f.Format))

	_, err = chooseFormat([]vk.SurfaceFormat{{Format: vk.FormatR5g6b5UnormPack16}})
	assert.Error(t, err)
}

func TestFormatRoundTrip(t *testing.T) {
	for _, f := range []driver.Format{driver.FormatRGBA8, driver.FormatRGBA8SRGB, driver.FormatBGRA8, driver.FormatBGRA8SRGB} {
		assert.Equal(t, f, fromVkFormat(vkFormat(f)), f.String())
	}
	assert.Equal(t, vk.FormatUndefined, vkFormat(driver.FormatUndefined))
}

func TestCheckMapsResults(t *testing.T) {
	assert.NoError(t, check(vk.Success, "x"))
	assert.ErrorIs(t, check(vk.Suboptimal, "x"), driver.ErrSuboptimal)
	assert.ErrorIs(t, check(vk.ErrorOutOfDate, "x"), driver.ErrOutOfDate)
	assert.ErrorIs(t, check(vk.ErrorDeviceLost, "x"), driver.ErrDeviceLost)
	assert.ErrorIs(t, check(vk.Timeout, "x"), driver.ErrTimeout)

	err := check(vk.ErrorOutOfDeviceMemory, "allocate")
	assert.ErrorContains(t, err, "allocate")
	assert.False(t, errors.Is(err, driver.ErrOutOfDate))
}

func TestLayoutKeyDistinguishesBindings(t *testing.T) {
	a := driver.SetLayout{Bindings: []driver.LayoutBinding{{Binding: 0, Kind: driver.BindUniformBuffer, Stages: driver.VertexBit}}}
	b := driver.SetLayout{Bindings: []driver.LayoutBinding{{Binding: 0, Kind: driver.BindSampledImage, Stages: driver.FragmentBit}}}
	assert.Equal(t, layoutKey(a), layoutKey(a))
	assert.NotEqual(t, layoutKey(a), layoutKey(b))
}

func TestAttribFormat(t *testing.T) {
	f, err := attribFormat(4)
	require.NoError(t, err)
	assert.Equal(t, vk.FormatR32g32b32a32Sfloat, f)
	_, err = attribFormat(5)
	assert.Error(t, err)
}
