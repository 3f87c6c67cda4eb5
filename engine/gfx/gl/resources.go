package glbackend

import (
	"fmt"

	"github.com/go-gl/gl/v3.3-core/gl"

	"github.com/hubastard/terra/engine/gfx/driver"
)

// Buffer data is always written through COPY_WRITE_BUFFER so that updates
// never disturb the vertex array or uniform bindings.
type Buffer struct {
	id    uint32
	usage driver.BufferUsage
	size  int
}

func (d *Device) NewBuffer(usage driver.BufferUsage, size int) (driver.Buffer, error) {
	if size <= 0 {
		return nil, fmt.Errorf("buffer size %d", size)
	}
	b := &Buffer{usage: usage, size: size}
	gl.GenBuffers(1, &b.id)
	gl.BindBuffer(gl.COPY_WRITE_BUFFER, b.id)
	gl.BufferData(gl.COPY_WRITE_BUFFER, size, nil, gl.DYNAMIC_DRAW)
	gl.BindBuffer(gl.COPY_WRITE_BUFFER, 0)
	if err := glError("create " + usage.String() + " buffer"); err != nil {
		b.Destroy()
		return nil, err
	}
	return b, nil
}

func (b *Buffer) Usage() driver.BufferUsage { return b.usage }
func (b *Buffer) Size() int                 { return b.size }

func (b *Buffer) Write(offset int, data []byte) error {
	if b.id == 0 {
		return destroyed("buffer", "write")
	}
	if offset < 0 || offset+len(data) > b.size {
		return fmt.Errorf("write %d bytes at %d: buffer holds %d", len(data), offset, b.size)
	}
	if len(data) == 0 {
		return nil
	}
	gl.BindBuffer(gl.COPY_WRITE_BUFFER, b.id)
	gl.BufferSubData(gl.COPY_WRITE_BUFFER, offset, len(data), gl.Ptr(data))
	gl.BindBuffer(gl.COPY_WRITE_BUFFER, 0)
	return glError("buffer write")
}

func (b *Buffer) Destroy() {
	if b.id != 0 {
		gl.DeleteBuffers(1, &b.id)
		b.id = 0
	}
}

type Image struct {
	id     uint32
	extent driver.Extent
	format driver.Format
}

// glFormat returns the internal format and the client pixel format.
func glFormat(f driver.Format) (internal int32, pixel uint32) {
	switch f {
	case driver.FormatRGBA8SRGB:
		return gl.SRGB8_ALPHA8, gl.RGBA
	case driver.FormatBGRA8:
		return gl.RGBA8, gl.BGRA
	case driver.FormatBGRA8SRGB:
		return gl.SRGB8_ALPHA8, gl.BGRA
	}
	return gl.RGBA8, gl.RGBA
}

func (d *Device) NewImage(extent driver.Extent, format driver.Format) (driver.Image, error) {
	if extent.Zero() {
		return nil, fmt.Errorf("image extent %s", extent)
	}
	img := &Image{extent: extent, format: format}
	internal, pixel := glFormat(format)
	gl.GenTextures(1, &img.id)
	gl.BindTexture(gl.TEXTURE_2D, img.id)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAX_LEVEL, 0)
	gl.TexImage2D(gl.TEXTURE_2D, 0, internal, int32(extent.Width), int32(extent.Height), 0, pixel, gl.UNSIGNED_BYTE, nil)
	gl.BindTexture(gl.TEXTURE_2D, 0)
	if err := glError("create image"); err != nil {
		img.Destroy()
		return nil, err
	}
	return img, nil
}

func (i *Image) Extent() driver.Extent { return i.extent }
func (i *Image) Format() driver.Format { return i.format }

func (i *Image) Destroy() {
	if i.id != 0 {
		gl.DeleteTextures(1, &i.id)
		i.id = 0
	}
}

// UploadImage is synchronous in GL: the driver copies pixels before
// returning.
func (d *Device) UploadImage(dst driver.Image, pixels []byte) error {
	img := dst.(*Image)
	if img.id == 0 {
		return destroyed("image", "upload")
	}
	if want := img.extent.Width * img.extent.Height * 4; len(pixels) != want {
		return fmt.Errorf("upload %d bytes into %s image of %d", len(pixels), img.extent, want)
	}
	_, pixel := glFormat(img.format)
	gl.BindTexture(gl.TEXTURE_2D, img.id)
	gl.PixelStorei(gl.UNPACK_ALIGNMENT, 1)
	gl.TexSubImage2D(gl.TEXTURE_2D, 0, 0, 0, int32(img.extent.Width), int32(img.extent.Height), pixel, gl.UNSIGNED_BYTE, gl.Ptr(pixels))
	gl.BindTexture(gl.TEXTURE_2D, 0)
	return glError("upload image")
}

type Sampler struct {
	id uint32
}

func wrapMode(m driver.AddressMode) int32 {
	switch m {
	case driver.AddressClampToEdge:
		return gl.CLAMP_TO_EDGE
	case driver.AddressRepeat:
		return gl.REPEAT
	}
	return gl.CLAMP_TO_BORDER
}

func filterMode(f driver.Filter) int32 {
	if f == driver.FilterNearest {
		return gl.NEAREST
	}
	return gl.LINEAR
}

// NewSampler leaves the border colour at GL's default, transparent black.
func (d *Device) NewSampler(desc driver.SamplerDesc) (driver.Sampler, error) {
	s := &Sampler{}
	gl.GenSamplers(1, &s.id)
	gl.SamplerParameteri(s.id, gl.TEXTURE_MIN_FILTER, filterMode(desc.Min))
	gl.SamplerParameteri(s.id, gl.TEXTURE_MAG_FILTER, filterMode(desc.Mag))
	gl.SamplerParameteri(s.id, gl.TEXTURE_WRAP_S, wrapMode(desc.Address))
	gl.SamplerParameteri(s.id, gl.TEXTURE_WRAP_T, wrapMode(desc.Address))
	if err := glError("create sampler"); err != nil {
		s.Destroy()
		return nil, err
	}
	return s, nil
}

func (s *Sampler) Destroy() {
	if s.id != 0 {
		gl.DeleteSamplers(1, &s.id)
		s.id = 0
	}
}
