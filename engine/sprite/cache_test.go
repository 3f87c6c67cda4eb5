package sprite

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hubastard/terra/engine/assets"
	"github.com/hubastard/terra/engine/gfx/driver"
	"github.com/hubastard/terra/engine/gfx/drivertest"
	"github.com/hubastard/terra/engine/gfx/resources"
	"github.com/hubastard/terra/engine/scratch"
)

type layout struct{ p driver.Pipeline }

func (l layout) Pipeline() driver.Pipeline { return l.p }

func newCache(t *testing.T, decode Decoder) (*Cache, *drivertest.Device) {
	t.Helper()
	dev := drivertest.New()
	pool, err := resources.New(dev, resources.Options{})
	require.NoError(t, err)

	vs, err := dev.NewShader(driver.StageVertex, []byte{1}, "vs_main")
	require.NoError(t, err)
	fs, err := dev.NewShader(driver.StageFragment, []byte{1}, "fs_main")
	require.NoError(t, err)
	pass, err := dev.NewRenderPass(driver.FormatBGRA8SRGB)
	require.NoError(t, err)
	pipe, err := dev.NewPipeline(driver.PipelineDesc{
		Vertex: vs, Fragment: fs, RenderPass: pass,
		Sets: []driver.SetLayout{{}, {}},
	})
	require.NoError(t, err)

	return NewCache(pool, layout{pipe}, decode, nil), dev
}

func solid(w, h int) assets.Image {
	px := make([]byte, w*h*4)
	for i := range px {
		px[i] = 0xff
	}
	return assets.Image{Width: w, Height: h, Pixels: px}
}

func TestGetOrCreateReturnsSameResource(t *testing.T) {
	var decodes int
	c, dev := newCache(t, func(string) (assets.Image, error) {
		decodes++
		return solid(4, 2), nil
	})
	s, err := New("ship.png")
	require.NoError(t, err)

	a, err := c.GetOrCreate(s)
	require.NoError(t, err)
	b, err := c.GetOrCreate(s)
	require.NoError(t, err)

	assert.Same(t, a, b)
	assert.Same(t, a.Image, b.Image)
	assert.Same(t, a.Set, b.Set)
	assert.Equal(t, 1, dev.Uploads)
	assert.Equal(t, 1, decodes)
	assert.Equal(t, 1, c.Len())

	assert.Equal(t, 4, a.Width)
	assert.Equal(t, 2, a.Height)
	v := scratch.Float32s(a.Vertices.(*drivertest.Buffer).Data)
	assert.Equal(t, []float32{-0.5, 0.25, 0, 0}, v[:4])

	set := a.Set.(*drivertest.DescriptorSet)
	assert.Equal(t, TextureSlot, set.Slot)
	assert.Same(t, a.Image, set.Resources[0].Image)
}

func TestIndependentIdentities(t *testing.T) {
	c, dev := newCache(t, func(string) (assets.Image, error) { return solid(1, 1), nil })
	a, err := c.GetOrCreate(FromImage("a", solid(2, 2)))
	require.NoError(t, err)
	b, err := c.GetOrCreate(FromImage("b", solid(2, 2)))
	require.NoError(t, err)

	assert.NotSame(t, a.Image, b.Image)
	assert.NotSame(t, a.Vertices, b.Vertices)
	assert.Equal(t, 2, dev.Uploads)
	assert.Equal(t, 2, c.Len())
}

func TestFailuresAreNotCached(t *testing.T) {
	fail := true
	c, dev := newCache(t, func(string) (assets.Image, error) {
		if fail {
			return assets.Image{}, errors.New("corrupt")
		}
		return solid(1, 1), nil
	})
	s, err := New("broken.png")
	require.NoError(t, err)

	_, err = c.GetOrCreate(s)
	assert.ErrorContains(t, err, "corrupt")
	assert.Nil(t, c.Get(s.ID))
	assert.Zero(t, c.Len())

	dev.UploadErr = errors.New("device lost")
	fail = false
	_, err = c.GetOrCreate(s)
	assert.ErrorContains(t, err, "device lost")
	assert.Zero(t, dev.Live("image"))

	r, err := c.GetOrCreate(s)
	require.NoError(t, err)
	assert.Same(t, r, c.Get(s.ID))
}

func TestConcurrentRequestsCreateOnce(t *testing.T) {
	var decodes atomic.Int32
	release := make(chan struct{})
	c, dev := newCache(t, func(string) (assets.Image, error) {
		decodes.Add(1)
		<-release
		return solid(2, 2), nil
	})
	s, err := New("ship.png")
	require.NoError(t, err)

	const n = 8
	var (
		wg  sync.WaitGroup
		out [n]*Resource
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r, err := c.GetOrCreate(s)
			assert.NoError(t, err)
			out[i] = r
		}(i)
	}
	close(release)
	wg.Wait()

	for i := 1; i < n; i++ {
		assert.Same(t, out[0], out[i])
	}
	assert.Equal(t, 1, dev.Uploads)
	assert.Equal(t, int32(1), decodes.Load())
}

func TestEvictAndDestroy(t *testing.T) {
	c, dev := newCache(t, nil)
	a, err := c.GetOrCreate(FromImage("a", solid(1, 1)))
	require.NoError(t, err)
	_, err = c.GetOrCreate(FromImage("b", solid(1, 1)))
	require.NoError(t, err)

	assert.True(t, c.Evict(a.Sprite.ID))
	assert.False(t, c.Evict(a.Sprite.ID))
	assert.True(t, a.Image.(*drivertest.Image).Destroyed())
	assert.Equal(t, 1, c.Len())

	c.Destroy()
	assert.Zero(t, c.Len())
	assert.Zero(t, dev.Live("image"))
	assert.Zero(t, dev.Live("descriptorset"))
}
