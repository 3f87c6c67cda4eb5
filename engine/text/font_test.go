package text

import (
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMeasureGrowsWithText(t *testing.T) {
	f, err := Default(16)
	require.NoError(t, err)
	defer f.Close()

	w1, h1 := f.Measure("scene")
	w2, h2 := f.Measure("scene hierarchy")
	assert.Greater(t, w1, 0)
	assert.Greater(t, w2, w1)
	assert.Equal(t, h1, h2)

	_, h3 := f.Measure("a\nb")
	assert.Equal(t, h1+f.LineHeight(), h3)
}

func TestRenderHasCoverage(t *testing.T) {
	f, err := Default(16)
	require.NoError(t, err)
	defer f.Close()

	img := f.Render("Hi", color.White, 2)
	w, h := f.Measure("Hi")
	assert.Equal(t, w+4, img.Width)
	assert.Equal(t, h+4, img.Height)
	require.Len(t, img.Pixels, img.Width*img.Height*4)

	// the padding row stays transparent, the glyphs do not
	for x := 0; x < img.Width; x++ {
		assert.Zero(t, img.Pixels[x*4+3])
	}
	var covered int
	for i := 3; i < len(img.Pixels); i += 4 {
		if img.Pixels[i] > 0 {
			covered++
		}
	}
	assert.Greater(t, covered, 0)
}

func TestParseRejectsGarbage(t *testing.T) {
	_, err := Parse([]byte("not a font"), 12)
	assert.Error(t, err)
}
