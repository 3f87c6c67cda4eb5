package sprite

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hubastard/terra/engine/assets"
)

func TestHashPathStable(t *testing.T) {
	dir := t.TempDir()
	a, err := HashPath(filepath.Join(dir, "ship.png"))
	require.NoError(t, err)
	b, err := HashPath(filepath.Join(dir, "sub", "..", "ship.png"))
	require.NoError(t, err)
	c, err := HashPath(filepath.Join(dir, "rock.png"))
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestHashPathRelative(t *testing.T) {
	wd, err := os.Getwd()
	require.NoError(t, err)
	rel, err := HashPath("ship.png")
	require.NoError(t, err)
	abs, err := HashPath(filepath.Join(wd, "ship.png"))
	require.NoError(t, err)
	assert.Equal(t, abs, rel)
}

func TestNewNormalizesPath(t *testing.T) {
	s, err := New(filepath.Join(t.TempDir(), "a", "..", "ship.png"))
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(filepath.FromSlash(s.Path)))
	assert.NotContains(t, s.Path, `\`)
	assert.NotContains(t, s.Path, "..")
	assert.Equal(t, "ship.png", s.Name)
	assert.False(t, s.InMemory())
}

func TestFromImageDistinctFromFiles(t *testing.T) {
	m := FromImage("ship.png", assets.Image{Width: 1, Height: 1, Pixels: make([]byte, 4)})
	f, err := New("ship.png")
	require.NoError(t, err)
	assert.NotEqual(t, f.ID, m.ID)
	assert.True(t, m.InMemory())
	assert.Equal(t, m.ID, FromImage("ship.png", assets.Image{}).ID)
}

func TestScan(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.png", "a.JPG", "c.tga", "notes.txt", "d.tiff", "e.jpeg", "f.bmp"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "g.png"), 0o755))

	c, err := Scan(dir)
	require.NoError(t, err)
	require.Equal(t, 6, c.Len())

	var names []string
	for _, s := range c.All() {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{"a.JPG", "b.png", "c.tga", "d.tiff", "e.jpeg", "f.bmp"}, names)

	s, ok := c.ByName("c.tga")
	require.True(t, ok)
	got, ok := c.Lookup(s.ID)
	require.True(t, ok)
	assert.Equal(t, s, got)

	_, ok = c.ByName("notes.txt")
	assert.False(t, ok)

	_, err = Scan(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}

func TestQuadVertices(t *testing.T) {
	sq := QuadVertices(32, 32)
	assert.Equal(t, [4]float32{-0.5, 0.5, 0, 0}, sq[0])
	assert.Equal(t, [4]float32{0.5, -0.5, 1, 1}, sq[1])
	assert.Equal(t, [4]float32{-0.5, -0.5, 0, 1}, sq[2])
	assert.Equal(t, [4]float32{0.5, 0.5, 1, 0}, sq[3])

	wide := QuadVertices(200, 100)
	assert.Equal(t, float32(0.5), wide[3][0])
	assert.Equal(t, float32(0.25), wide[3][1])

	tall := QuadVertices(50, 100)
	assert.Equal(t, float32(0.25), tall[3][0])
	assert.Equal(t, float32(0.5), tall[3][1])
}
