package target

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hubastard/terra/engine/gfx/driver"
	"github.com/hubastard/terra/engine/gfx/drivertest"
)

func TestNewBuildsOneFramebufferPerImage(t *testing.T) {
	dev := drivertest.New()
	m, err := New(dev, driver.Extent{Width: 800, Height: 600}, nil)
	require.NoError(t, err)

	assert.Equal(t, 3, m.ImageCount())
	assert.Equal(t, 3, dev.Live("framebuffer"))
	assert.Equal(t, 1, dev.Live("swapchain"))
	assert.Equal(t, 1, dev.Live("renderpass"))
	assert.Equal(t, driver.Viewport{Width: 800, Height: 600}, m.Viewport())
	assert.Equal(t, 1, m.Generation())
}

func TestNewRejectsZeroExtent(t *testing.T) {
	_, err := New(drivertest.New(), driver.Extent{Width: 0, Height: 600}, nil)
	assert.ErrorIs(t, err, ErrRetryLater)
}

func TestRecreateZeroExtentKeepsTarget(t *testing.T) {
	dev := drivertest.New()
	m, err := New(dev, driver.Extent{Width: 800, Height: 600}, nil)
	require.NoError(t, err)
	sc, fb0 := m.Swapchain(), m.Framebuffer(0)

	for _, e := range []driver.Extent{{Width: 0, Height: 0}, {Width: 640, Height: 0}} {
		assert.ErrorIs(t, m.Recreate(e), ErrRetryLater)
	}

	assert.Same(t, sc, m.Swapchain())
	assert.Same(t, fb0, m.Framebuffer(0))
	assert.Equal(t, driver.Extent{Width: 800, Height: 600}, m.Extent())
	assert.Equal(t, 1, m.Generation())
	assert.Equal(t, 0, dev.IdleWaits)
}

func TestRecreateUnsupportedExtentKeepsTarget(t *testing.T) {
	dev := drivertest.New()
	m, err := New(dev, driver.Extent{Width: 800, Height: 600}, nil)
	require.NoError(t, err)
	sc := m.Swapchain()

	dev.SwapchainErr = driver.ErrExtentUnsupported
	assert.ErrorIs(t, m.Recreate(driver.Extent{Width: 1024, Height: 768}), ErrRetryLater)
	assert.Same(t, sc, m.Swapchain())
	assert.False(t, sc.(*drivertest.Swapchain).Destroyed())
	assert.Equal(t, 3, dev.Live("framebuffer"))
}

func TestRecreateReplacesSetAsUnit(t *testing.T) {
	dev := drivertest.New()
	m, err := New(dev, driver.Extent{Width: 800, Height: 600}, nil)
	require.NoError(t, err)
	old := m.Swapchain().(*drivertest.Swapchain)
	pass := m.RenderPass()

	require.NoError(t, m.Recreate(driver.Extent{Width: 1024, Height: 768}))

	assert.True(t, old.Destroyed())
	assert.Same(t, old, m.Swapchain().(*drivertest.Swapchain).Old)
	assert.Same(t, pass, m.RenderPass(), "same format keeps the render pass")
	assert.Equal(t, 3, dev.Live("framebuffer"))
	assert.Equal(t, 6, dev.Created("framebuffer"))
	assert.Equal(t, driver.Extent{Width: 1024, Height: 768}, m.Frame(1).Extent)
	assert.Equal(t, 2, m.Generation())
	assert.Equal(t, 2, dev.IdleWaits)
}

func TestRecreateNewFormatRebuildsPass(t *testing.T) {
	dev := drivertest.New()
	m, err := New(dev, driver.Extent{Width: 800, Height: 600}, nil)
	require.NoError(t, err)
	pass := m.RenderPass()

	dev.SwapchainFormat = driver.FormatRGBA8
	require.NoError(t, m.Recreate(driver.Extent{Width: 800, Height: 600}))

	assert.NotSame(t, pass, m.RenderPass())
	assert.Equal(t, driver.FormatRGBA8, m.RenderPass().Format())
	assert.Equal(t, 1, dev.Live("renderpass"))
}

func TestRecreateFramebufferFailureIsFatal(t *testing.T) {
	dev := drivertest.New()
	m, err := New(dev, driver.Extent{Width: 800, Height: 600}, nil)
	require.NoError(t, err)
	sc := m.Swapchain()

	boom := errors.New("out of memory")
	dev.FramebufferErr = boom
	err = m.Recreate(driver.Extent{Width: 1024, Height: 768})
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrRetryLater)
	assert.Same(t, sc, m.Swapchain())
	assert.Equal(t, 1, dev.Live("swapchain"))
}

func TestDestroy(t *testing.T) {
	dev := drivertest.New()
	m, err := New(dev, driver.Extent{Width: 8, Height: 8}, nil)
	require.NoError(t, err)
	m.Destroy()
	for _, kind := range []string{"framebuffer", "swapchain", "renderpass"} {
		assert.Zero(t, dev.Live(kind), kind)
	}
}
