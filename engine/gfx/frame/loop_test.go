package frame

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hubastard/terra/engine/gfx/driver"
	"github.com/hubastard/terra/engine/gfx/drivertest"
	"github.com/hubastard/terra/engine/gfx/target"
)

type setup struct {
	dev     *drivertest.Device
	targets *target.Manager
	loop    *Loop
	frames  []target.Frame
	passes  []driver.RenderPass
}

func newSetup(t *testing.T, opts Options) *setup {
	t.Helper()
	s := &setup{dev: drivertest.New()}
	var err error
	s.targets, err = target.New(s.dev, driver.Extent{Width: 640, Height: 480}, nil)
	require.NoError(t, err)

	rec := RecorderFunc(func(cb driver.CommandBuffer, f target.Frame) error {
		s.frames = append(s.frames, f)
		if err := cb.Begin(); err != nil {
			return err
		}
		cb.BeginRenderPass(f.Pass, f.Framebuffer, [4]float32{})
		cb.EndRenderPass()
		return cb.End()
	})
	opts.OnRetarget = func(p driver.RenderPass) error {
		s.passes = append(s.passes, p)
		return nil
	}
	s.loop, err = New(s.dev, s.targets, rec, opts)
	require.NoError(t, err)
	return s
}

func TestFramePresentsAcquiredImage(t *testing.T) {
	s := newSetup(t, Options{})
	for i := 0; i < 4; i++ {
		res, err := s.loop.Frame()
		require.NoError(t, err)
		assert.Equal(t, Presented, res)
	}
	q := s.dev.Recorder()
	assert.Equal(t, []int{0, 1, 2, 0}, q.Presented)
	assert.Len(t, q.Submitted, 4)
	assert.Equal(t, uint64(4), s.loop.Frames())
	for i, f := range s.frames {
		assert.Equal(t, q.Presented[i], f.Index)
	}
}

func TestAcquireOutOfDateSkipsAndRecreates(t *testing.T) {
	s := newSetup(t, Options{})
	old := s.targets.Swapchain()
	s.dev.AcquireErrs = []error{driver.ErrOutOfDate}

	res, err := s.loop.Frame()
	require.NoError(t, err)
	assert.Equal(t, Skipped, res)
	assert.True(t, s.loop.Pending())
	assert.Empty(t, s.dev.Recorder().Submitted)

	res, err = s.loop.Frame()
	require.NoError(t, err)
	assert.Equal(t, Presented, res)
	assert.NotSame(t, old, s.targets.Swapchain())
	assert.Equal(t, driver.Extent{Width: 640, Height: 480}, s.targets.Extent())
	assert.Equal(t, 1, s.loop.Recreations())
	assert.Empty(t, s.passes, "same format keeps the pass")
}

func TestSuboptimalPresentsThenRecreates(t *testing.T) {
	s := newSetup(t, Options{})
	s.dev.AcquireErrs = []error{driver.ErrSuboptimal}

	res, err := s.loop.Frame()
	require.NoError(t, err)
	assert.Equal(t, Presented, res)
	assert.True(t, s.loop.Pending())

	s.dev.PresentErrs = []error{driver.ErrSuboptimal}
	_, err = s.loop.Frame()
	require.NoError(t, err)
	assert.Equal(t, 1, s.loop.Recreations())
	assert.True(t, s.loop.Pending())
}

func TestPresentOutOfDateIsNotPresented(t *testing.T) {
	s := newSetup(t, Options{})
	s.dev.PresentErrs = []error{driver.ErrOutOfDate}

	res, err := s.loop.Frame()
	require.NoError(t, err)
	assert.Equal(t, Skipped, res)
	assert.Empty(t, s.dev.Recorder().Presented)
	assert.True(t, s.loop.Pending())
}

func TestZeroExtentSkipsUntilUsable(t *testing.T) {
	s := newSetup(t, Options{})
	sc := s.targets.Swapchain()

	s.loop.Resize(driver.Extent{})
	for i := 0; i < 3; i++ {
		res, err := s.loop.Frame()
		require.NoError(t, err)
		assert.Equal(t, Skipped, res)
	}
	assert.Same(t, sc, s.targets.Swapchain())
	assert.True(t, s.loop.Pending())

	s.loop.Resize(driver.Extent{Width: 1024, Height: 768})
	res, err := s.loop.Frame()
	require.NoError(t, err)
	assert.Equal(t, Presented, res)
	assert.Equal(t, driver.Extent{Width: 1024, Height: 768}, s.frames[0].Extent)
	assert.False(t, s.loop.Pending())
}

func TestUnsupportedExtentRetries(t *testing.T) {
	s := newSetup(t, Options{})
	s.loop.Resize(driver.Extent{Width: 1, Height: 1})
	s.dev.SwapchainErr = driver.ErrExtentUnsupported

	res, err := s.loop.Frame()
	require.NoError(t, err)
	assert.Equal(t, Skipped, res)

	res, err = s.loop.Frame()
	require.NoError(t, err)
	assert.Equal(t, Presented, res)
}

func TestFormatChangeRetargets(t *testing.T) {
	s := newSetup(t, Options{})
	s.dev.SwapchainFormat = driver.FormatRGBA8
	s.loop.Resize(driver.Extent{Width: 640, Height: 480})

	_, err := s.loop.Frame()
	require.NoError(t, err)
	require.Len(t, s.passes, 1)
	assert.Equal(t, driver.FormatRGBA8, s.passes[0].Format())
}

func TestResourceConflictIsFatal(t *testing.T) {
	s := newSetup(t, Options{})
	s.targets.Framebuffer(0).Destroy()

	_, err := s.loop.Frame()
	var re *driver.ResourceError
	require.ErrorAs(t, err, &re)
	assert.Contains(t, re.Resource, "framebuffer")
}

func TestFenceTimeoutIsFatal(t *testing.T) {
	s := newSetup(t, Options{FenceTimeout: time.Millisecond})
	s.dev.Stall = true

	_, err := s.loop.Frame()
	assert.ErrorIs(t, err, driver.ErrTimeout)
}

func TestSubmitFailureIsFatal(t *testing.T) {
	s := newSetup(t, Options{})
	boom := errors.New("queue lost")
	s.dev.SubmitErr = boom

	_, err := s.loop.Frame()
	assert.ErrorIs(t, err, boom)
}

func TestRecreateFailureIsFatal(t *testing.T) {
	s := newSetup(t, Options{})
	s.loop.Resize(driver.Extent{Width: 800, Height: 600})
	s.dev.FramebufferErr = errors.New("out of memory")

	_, err := s.loop.Frame()
	assert.ErrorContains(t, err, "out of memory")
}
