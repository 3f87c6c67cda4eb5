// Package resources holds the GPU objects shared by every draw: the global
// frame uniform, the sprite sampler and the quad index buffer. It also builds
// descriptor sets and textures on behalf of the sprite cache.
package resources

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/hubastard/terra/engine/gfx/driver"
	"github.com/hubastard/terra/engine/scratch"
)

// GlobalsSize is the global uniform: projection then view, row-major.
const GlobalsSize = 2 * 64

// QuadIndices draws a quad as two triangles over the vertices built by
// sprite.QuadVertices.
var QuadIndices = [6]uint32{0, 1, 2, 1, 0, 3}

type Options struct {
	Address driver.AddressMode
}

type Pool struct {
	dev     driver.Device
	globals driver.Buffer
	sampler driver.Sampler
	indices driver.Buffer
	arena   *scratch.Arena
}

func New(dev driver.Device, opts Options) (*Pool, error) {
	p := &Pool{dev: dev, arena: scratch.New(GlobalsSize)}

	var err error
	if p.globals, err = dev.NewBuffer(driver.UsageUniform, GlobalsSize); err != nil {
		return nil, fmt.Errorf("global uniform: %w", err)
	}
	if err := p.WriteGlobals(mgl32.Ident4(), mgl32.Ident4()); err != nil {
		p.Destroy()
		return nil, err
	}

	p.sampler, err = dev.NewSampler(driver.SamplerDesc{
		Min:     driver.FilterLinear,
		Mag:     driver.FilterLinear,
		Address: opts.Address,
	})
	if err != nil {
		p.Destroy()
		return nil, fmt.Errorf("sprite sampler: %w", err)
	}

	a := scratch.New(len(QuadIndices) * 4)
	a.U32(QuadIndices[:]...)
	if p.indices, err = p.newBuffer(driver.UsageIndex, a.BytesFrom(0)); err != nil {
		p.Destroy()
		return nil, fmt.Errorf("quad index buffer: %w", err)
	}
	return p, nil
}

func (p *Pool) newBuffer(usage driver.BufferUsage, data []byte) (driver.Buffer, error) {
	b, err := p.dev.NewBuffer(usage, len(data))
	if err != nil {
		return nil, err
	}
	if err := b.Write(0, data); err != nil {
		b.Destroy()
		return nil, err
	}
	return b, nil
}

func (p *Pool) Device() driver.Device      { return p.dev }
func (p *Pool) Globals() driver.Buffer     { return p.globals }
func (p *Pool) Sampler() driver.Sampler    { return p.sampler }
func (p *Pool) QuadIndices() driver.Buffer { return p.indices }
func (p *Pool) QuadIndexCount() int        { return len(QuadIndices) }

// WriteGlobals stores the camera matrices. Callers must not write while a
// frame that reads the buffer is still in flight.
func (p *Pool) WriteGlobals(proj, view mgl32.Mat4) error {
	p.arena.Reset()
	p.arena.Mat4(proj).Mat4(view)
	return p.globals.Write(0, p.arena.BytesFrom(0))
}

// BindBuffer builds a set for slot of pipe with buf at binding 0.
func (p *Pool) BindBuffer(pipe driver.Pipeline, slot int, buf driver.Buffer) (driver.DescriptorSet, error) {
	set, err := p.dev.NewDescriptorSet(pipe, slot, driver.Resource{Binding: 0, Buffer: buf})
	if err != nil {
		return nil, fmt.Errorf("descriptor set %d: %w", slot, err)
	}
	return set, nil
}

// BindImage builds a set for slot of pipe with img at binding 0 and the
// shared sampler at binding 1.
func (p *Pool) BindImage(pipe driver.Pipeline, slot int, img driver.Image) (driver.DescriptorSet, error) {
	set, err := p.dev.NewDescriptorSet(pipe, slot,
		driver.Resource{Binding: 0, Image: img},
		driver.Resource{Binding: 1, Sampler: p.sampler},
	)
	if err != nil {
		return nil, fmt.Errorf("descriptor set %d: %w", slot, err)
	}
	return set, nil
}

// NewVertexBuffer uploads immutable vertex data.
func (p *Pool) NewVertexBuffer(data []byte) (driver.Buffer, error) {
	b, err := p.newBuffer(driver.UsageVertex, data)
	if err != nil {
		return nil, fmt.Errorf("vertex buffer: %w", err)
	}
	return b, nil
}

// NewTexture creates an RGBA8 sRGB image and uploads rgba into it. The
// upload has completed when NewTexture returns.
func (p *Pool) NewTexture(width, height int, rgba []byte) (driver.Image, error) {
	if want := width * height * 4; len(rgba) != want {
		return nil, fmt.Errorf("texture %dx%d: got %d bytes, want %d", width, height, len(rgba), want)
	}
	img, err := p.dev.NewImage(driver.Extent{Width: width, Height: height}, driver.FormatRGBA8SRGB)
	if err != nil {
		return nil, fmt.Errorf("texture image: %w", err)
	}
	if err := p.dev.UploadImage(img, rgba); err != nil {
		img.Destroy()
		return nil, fmt.Errorf("texture upload: %w", err)
	}
	return img, nil
}

func (p *Pool) Destroy() {
	for _, d := range []driver.Destroyer{p.indices, p.sampler, p.globals} {
		if d != nil {
			d.Destroy()
		}
	}
	p.indices, p.sampler, p.globals = nil, nil, nil
}
