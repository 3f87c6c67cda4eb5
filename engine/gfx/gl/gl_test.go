package glbackend

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hubastard/terra/engine/gfx/driver"
)

// Recording never touches GL, so these run without a context.

func newRecording(t *testing.T) *CommandBuffer {
	t.Helper()
	d := &Device{}
	cb, err := d.NewCommandBuffer()
	require.NoError(t, err)
	c := cb.(*CommandBuffer)
	require.NoError(t, c.Begin())
	return c
}

func TestPushConstantsAreCopied(t *testing.T) {
	c := newRecording(t)
	data := []byte{1, 2, 3, 4}
	c.PushConstants(&Pipeline{}, 16, data)
	data[0] = 9

	require.Len(t, c.cmds, 1)
	assert.Equal(t, []byte{1, 2, 3, 4}, c.cmds[0].data)
}

func TestPushConstantsOutOfRange(t *testing.T) {
	c := newRecording(t)
	c.PushConstants(&Pipeline{}, pushSize-4, make([]byte, 8))
	assert.ErrorContains(t, c.End(), "exceed")
}

func TestDrawOutsidePassFailsAtEnd(t *testing.T) {
	c := newRecording(t)
	c.DrawIndexed(6, 1)
	assert.ErrorContains(t, c.End(), "outside render pass")
}

func TestRecordingOutsideBegin(t *testing.T) {
	c := &CommandBuffer{dev: &Device{}}
	c.SetViewport(driver.Viewport{Width: 1, Height: 1})
	assert.Error(t, c.End())
}

func TestDestroyedPassFailsReplay(t *testing.T) {
	c := newRecording(t)
	pass := &RenderPass{format: driver.FormatRGBA8}
	fb := &Framebuffer{extent: driver.Extent{Width: 4, Height: 4}}
	pass.Destroy()
	c.BeginRenderPass(pass, fb, [4]float32{})
	c.EndRenderPass()
	require.NoError(t, c.End())

	var re *driver.ResourceError
	require.ErrorAs(t, c.execute(), &re)
	assert.Equal(t, "render pass", re.Resource)
}

func TestVertexBufferNeedsPipeline(t *testing.T) {
	c := newRecording(t)
	c.BindVertexBuffer(&Buffer{id: 1})
	require.NoError(t, c.End())
	assert.ErrorContains(t, c.execute(), "before a pipeline")
}

func TestBindingNames(t *testing.T) {
	assert.Equal(t, "Set0_0", blockName(0, 0))
	assert.Equal(t, "uSet1_0", samplerName(1, 0))
	assert.Equal(t, uint32(5), bindingPoint(1, 1))
}

func TestDeviceType(t *testing.T) {
	assert.Equal(t, driver.DeviceCPU, deviceType("llvmpipe (LLVM 15.0.7, 256 bits)"))
	assert.Equal(t, driver.DeviceOther, deviceType("NVIDIA GeForce RTX 3070/PCIe/SSE2"))
}

func TestSwapchainRejectsZeroExtent(t *testing.T) {
	d := &Device{}
	_, err := d.NewSwapchain(driver.Extent{Width: 0, Height: 10}, nil)
	assert.ErrorIs(t, err, driver.ErrExtentUnsupported)

	sc, err := d.NewSwapchain(driver.Extent{Width: 10, Height: 10}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, sc.ImageCount())
	idx, err := sc.Acquire(nil)
	require.NoError(t, err)
	assert.Equal(t, 0, idx)

	_, err = d.NewFramebuffer(nil, sc, 1)
	assert.Error(t, err)
}

func TestDescriptorSetChecksResources(t *testing.T) {
	d := &Device{}
	p := &Pipeline{name: "sprite", sets: []driver.SetLayout{{}, {}}}
	img := &Image{id: 3}
	set, err := d.NewDescriptorSet(p, 1,
		driver.Resource{Binding: 0, Image: img},
		driver.Resource{Binding: 1, Sampler: &Sampler{id: 4}},
	)
	require.NoError(t, err)
	ds := set.(*DescriptorSet)
	assert.Equal(t, uint32(4), ds.textures[0].unit)
	assert.NoError(t, ds.check())

	img.id = 0
	assert.Error(t, ds.check())

	_, err = d.NewDescriptorSet(p, 2)
	assert.Error(t, err)
}
