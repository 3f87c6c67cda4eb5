package assets

import (
	"encoding/binary"
	"errors"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hubastard/terra/engine/gfx/driver"
)

func spirv(words ...uint32) []byte {
	b := make([]byte, 4*(len(words)+5))
	binary.LittleEndian.PutUint32(b, SPIRVMagic)
	for i, w := range words {
		binary.LittleEndian.PutUint32(b[4*(i+5):], w)
	}
	return b
}

func TestLoadSPIRV(t *testing.T) {
	lib := NewShaderLibrary(fstest.MapFS{"sprite.spv": {Data: spirv(1, 2)}})
	p, err := lib.Load("sprite", driver.ShaderSPIRV)
	require.NoError(t, err)
	assert.Equal(t, driver.ShaderSPIRV, p.Format)
	assert.Equal(t, p.Vertex, p.Fragment)
	assert.Equal(t, "vs_main", p.VertexEntry)
	assert.Equal(t, "fs_main", p.FragmentEntry)
}

func TestLoadSPIRVFallsBackToWGSL(t *testing.T) {
	lib := NewShaderLibrary(fstest.MapFS{"sprite.wgsl": {Data: []byte("// wgsl")}})
	var got string
	lib.compile = func(src string) ([]byte, error) {
		got = src
		return spirv(), nil
	}
	_, err := lib.Load("sprite", driver.ShaderSPIRV)
	require.NoError(t, err)
	assert.Equal(t, "// wgsl", got)

	lib.compile = func(string) ([]byte, error) { return nil, errors.New("parse error") }
	_, err = lib.Load("sprite", driver.ShaderSPIRV)
	assert.ErrorContains(t, err, "sprite.wgsl")
}

func TestLoadSPIRVErrorsNameTheFile(t *testing.T) {
	lib := NewShaderLibrary(fstest.MapFS{
		"short.spv": {Data: []byte{3, 2, 35, 7}},
		"magic.spv": {Data: make([]byte, 24)},
	})
	_, err := lib.Load("missing", driver.ShaderSPIRV)
	assert.ErrorContains(t, err, "missing.spv")

	_, err = lib.Load("short", driver.ShaderSPIRV)
	assert.ErrorContains(t, err, "short.spv")

	_, err = lib.Load("magic", driver.ShaderSPIRV)
	assert.ErrorContains(t, err, "magic")
}

func TestLoadGLSL(t *testing.T) {
	lib := NewShaderLibrary(fstest.MapFS{
		"sprite.vert.glsl": {Data: []byte("#version 330 core\nvoid main(){}")},
		"sprite.frag.glsl": {Data: []byte("#version 330 core\nvoid main(){}")},
		"half.vert.glsl":   {Data: []byte("#version 330 core")},
	})
	p, err := lib.Load("sprite", driver.ShaderGLSL)
	require.NoError(t, err)
	assert.Equal(t, driver.ShaderGLSL, p.Format)
	assert.Contains(t, string(p.Vertex), "#version")

	_, err = lib.Load("half", driver.ShaderGLSL)
	assert.ErrorContains(t, err, "half.frag.glsl")
}
