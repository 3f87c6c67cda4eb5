package assets

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/bmp"
)

func checker() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, 3, 2))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	img.Set(0, 0, color.NRGBA{255, 0, 0, 255})
	img.Set(2, 1, color.NRGBA{0, 0, 255, 255})
	return img
}

func TestDecodeFileSniffsFormat(t *testing.T) {
	dir := t.TempDir()
	for name, enc := range map[string]func(*bytes.Buffer) error{
		// the extension is deliberately wrong: content decides
		"a.png": func(b *bytes.Buffer) error { return bmp.Encode(b, checker()) },
		"b.bmp": func(b *bytes.Buffer) error { return png.Encode(b, checker()) },
	} {
		var buf bytes.Buffer
		require.NoError(t, enc(&buf))
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))

		img, err := DecodeFile(path)
		require.NoError(t, err, name)
		assert.Equal(t, 3, img.Width)
		assert.Equal(t, 2, img.Height)
		require.Len(t, img.Pixels, 3*2*4)
		assert.Equal(t, []byte{255, 0, 0, 255}, img.Pixels[:4], name)
		assert.Equal(t, []byte{0, 0, 255, 255}, img.Pixels[len(img.Pixels)-4:], name)
	}
}

func TestDecodeFileErrors(t *testing.T) {
	_, err := DecodeFile(filepath.Join(t.TempDir(), "missing.png"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	path := filepath.Join(t.TempDir(), "junk.png")
	require.NoError(t, os.WriteFile(path, []byte("not an image"), 0o644))
	_, err = DecodeFile(path)
	assert.ErrorContains(t, err, "junk.png")
}

func TestFromImageRepacksSubImage(t *testing.T) {
	big := image.NewRGBA(image.Rect(0, 0, 4, 4))
	big.Set(1, 1, color.RGBA{9, 8, 7, 255})
	sub := big.SubImage(image.Rect(1, 1, 3, 3))

	img := FromImage(sub)
	assert.Equal(t, 2, img.Width)
	assert.Len(t, img.Pixels, 2*2*4)
	assert.Equal(t, []byte{9, 8, 7, 255}, img.Pixels[:4])
}

func TestDecodeKeepsStraightAlpha(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 1, 1))
	src.SetNRGBA(0, 0, color.NRGBA{255, 255, 255, 128})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, src))

	img, err := Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, []byte{255, 255, 255, 128}, img.Pixels)
}

func TestFromImageUnpremultiplies(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 1, 1))
	src.SetRGBA(0, 0, color.RGBA{100, 50, 0, 128})
	img := FromImage(src)
	assert.InDelta(t, 199, int(img.Pixels[0]), 1)
	assert.InDelta(t, 99, int(img.Pixels[1]), 1)
	assert.Equal(t, byte(128), img.Pixels[3])
}

func TestDecodeUnknownFormat(t *testing.T) {
	_, err := Decode(bytes.NewReader([]byte("GIF89a")))
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func tgaFile(imageType, depth, descriptor byte, w, h int, body []byte) []byte {
	hdr := make([]byte, 18)
	hdr[2] = imageType
	hdr[12], hdr[13] = byte(w), byte(w>>8)
	hdr[14], hdr[15] = byte(h), byte(h>>8)
	hdr[16] = depth
	hdr[17] = descriptor
	return append(hdr, body...)
}

func TestDecodeFileTGABottomUp(t *testing.T) {
	// 1x2, 24-bit BGR, stored bottom row first
	path := filepath.Join(t.TempDir(), "strip.TGA")
	require.NoError(t, os.WriteFile(path, tgaFile(2, 24, 0, 1, 2, []byte{
		0, 0, 255, // bottom: red
		255, 0, 0, // top: blue
	}), 0o644))

	img, err := DecodeFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 0, 255, 255, 255, 0, 0, 255}, img.Pixels)
}

func TestDecodeFileTGARunLength(t *testing.T) {
	// 3x1, 24-bit run of three identical pixels, top-left origin
	path := filepath.Join(t.TempDir(), "run.tga")
	require.NoError(t, os.WriteFile(path, tgaFile(10, 24, 0x20, 3, 1, []byte{0x82, 10, 20, 30}), 0o644))

	img, err := DecodeFile(path)
	require.NoError(t, err)
	assert.Equal(t, bytes.Repeat([]byte{30, 20, 10, 255}, 3), img.Pixels)
}

func TestTGAOnlyByExtension(t *testing.T) {
	data := tgaFile(2, 24, 0, 1, 1, []byte{1, 2, 3})
	path := filepath.Join(t.TempDir(), "pixel.png")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	_, err := DecodeFile(path)
	assert.ErrorIs(t, err, ErrUnknownFormat)
}
