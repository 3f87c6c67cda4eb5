package assets

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ftrvxmtrx/tga"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
)

// Image is a decoded picture as tightly packed, straight-alpha RGBA8 rows,
// top row first.
type Image struct {
	Width, Height int
	Pixels        []byte
}

var ErrUnknownFormat = errors.New("unknown image format")

type imageFormat struct {
	name   string
	magic  []string
	decode func(io.Reader) (image.Image, error)
}

// formats are matched on their leading bytes. TGA has no signature and is
// only tried for files with a .tga extension.
var formats = []imageFormat{
	{"png", []string{"\x89PNG\r\n\x1a\n"}, png.Decode},
	{"jpeg", []string{"\xff\xd8"}, jpeg.Decode},
	{"bmp", []string{"BM"}, bmp.Decode},
	{"tiff", []string{"II*\x00", "MM\x00*"}, tiff.Decode},
}

// DecodeFile decodes png, jpeg, bmp, tiff or tga.
func DecodeFile(path string) (Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return Image{}, fmt.Errorf("open %q: %w", path, err)
	}
	defer f.Close()

	img, err := decode(f, strings.EqualFold(filepath.Ext(path), ".tga"))
	if err != nil {
		return Image{}, fmt.Errorf("decode %q: %w", path, err)
	}
	return img, nil
}

// Decode sniffs png, jpeg, bmp or tiff from r.
func Decode(r io.Reader) (Image, error) {
	return decode(r, false)
}

func decode(r io.Reader, tgaFallback bool) (Image, error) {
	br := bufio.NewReader(r)
	head, _ := br.Peek(8)
	dec := sniff(head)
	if dec == nil {
		if !tgaFallback {
			return Image{}, ErrUnknownFormat
		}
		dec = tga.Decode
	}
	img, err := dec(br)
	if err != nil {
		return Image{}, err
	}
	return FromImage(img), nil
}

func sniff(head []byte) func(io.Reader) (image.Image, error) {
	for _, f := range formats {
		for _, m := range f.magic {
			if bytes.HasPrefix(head, []byte(m)) {
				return f.decode
			}
		}
	}
	return nil
}

// FromImage converts any image.Image into tight straight-alpha RGBA8.
func FromImage(img image.Image) Image {
	m := toNRGBA(img)
	w, h := m.Bounds().Dx(), m.Bounds().Dy()

	out := make([]byte, w*h*4)
	for y := 0; y < h; y++ {
		row := m.Pix[y*m.Stride:]
		copy(out[y*w*4:(y+1)*w*4], row[:w*4])
	}
	return Image{Width: w, Height: h, Pixels: out}
}

func toNRGBA(img image.Image) *image.NRGBA {
	if m, ok := img.(*image.NRGBA); ok && m.Rect.Min == (image.Point{}) {
		return m
	}
	dst := image.NewNRGBA(image.Rect(0, 0, img.Bounds().Dx(), img.Bounds().Dy()))
	draw.Draw(dst, dst.Bounds(), img, img.Bounds().Min, draw.Src)
	return dst
}
