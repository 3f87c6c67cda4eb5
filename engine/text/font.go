// Package text rasterizes labels into RGBA images that the renderer shows
// as ordinary sprites.
package text

import (
	"fmt"
	"image"
	"image/color"
	"os"
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"github.com/hubastard/terra/engine/assets"
)

type Font struct {
	SizePx                   float32
	Ascent, Descent, LineGap int
	face                     font.Face
}

// Default returns Go Regular at sizePx.
func Default(sizePx float32) (*Font, error) {
	return Parse(goregular.TTF, sizePx)
}

// LoadTTF reads an OpenType or TrueType font file.
func LoadTTF(path string, sizePx float32) (*Font, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read font: %w", err)
	}
	return Parse(data, sizePx)
}

func Parse(data []byte, sizePx float32) (*Font, error) {
	ft, err := opentype.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse font: %w", err)
	}
	face, err := opentype.NewFace(ft, &opentype.FaceOptions{
		Size: float64(sizePx), DPI: 72, Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("new face: %w", err)
	}

	// Metrics in pixels
	m := face.Metrics()
	ascent := m.Ascent.Round()
	descent := m.Descent.Round()
	return &Font{
		SizePx:  sizePx,
		Ascent:  ascent,
		Descent: descent,
		LineGap: max(m.Height.Round()-ascent-descent, 0),
		face:    face,
	}, nil
}

func (f *Font) Close() {
	if f != nil && f.face != nil {
		_ = f.face.Close()
		f.face = nil
	}
}

func (f *Font) LineHeight() int { return f.Ascent + f.Descent + f.LineGap }

// lineWidth is the advance of one line, kerning included.
func (f *Font) lineWidth(s string) fixed.Int26_6 {
	var w fixed.Int26_6
	prev := rune(-1)
	for _, r := range s {
		if prev >= 0 {
			w += f.face.Kern(prev, r)
		}
		adv, ok := f.face.GlyphAdvance(r)
		if !ok {
			adv, _ = f.face.GlyphAdvance(' ')
		}
		w += adv
		prev = r
	}
	return w
}

// Measure returns the pixel size of s. Lines are separated by '\n'.
func (f *Font) Measure(s string) (width, height int) {
	lines := strings.Split(s, "\n")
	for _, l := range lines {
		width = max(width, f.lineWidth(l).Ceil())
	}
	return width, len(lines)*f.LineHeight() - f.LineGap
}

// Render draws s tinted by col with straight (non-premultiplied) alpha,
// inset by pad pixels on every side.
func (f *Font) Render(s string, col color.Color, pad int) assets.Image {
	w, h := f.Measure(s)
	mask := image.NewAlpha(image.Rect(0, 0, max(w, 1)+2*pad, max(h, 1)+2*pad))
	d := &font.Drawer{Dst: mask, Src: image.Opaque, Face: f.face}

	baseline := pad + f.Ascent
	for _, line := range strings.Split(s, "\n") {
		d.Dot = fixed.P(pad, baseline)
		d.DrawString(line)
		baseline += f.LineHeight()
	}

	c := color.NRGBAModel.Convert(col).(color.NRGBA)
	b := mask.Bounds()
	out := assets.Image{Width: b.Dx(), Height: b.Dy(), Pixels: make([]byte, b.Dx()*b.Dy()*4)}
	for i, a := range mask.Pix {
		px := out.Pixels[i*4 : i*4+4]
		px[0], px[1], px[2] = c.R, c.G, c.B
		px[3] = uint8(uint16(a) * uint16(c.A) / 255)
	}
	return out
}
