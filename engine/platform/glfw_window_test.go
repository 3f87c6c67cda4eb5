package platform

import (
	"testing"

	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hubastard/terra/engine/core"
)

func TestTranslateKey(t *testing.T) {
	assert.Equal(t, core.KeyDelete, translateKey(glfw.KeyDelete))
	assert.Equal(t, core.KeyP, translateKey(glfw.KeyP))
	assert.Equal(t, core.KeyUnknown, translateKey(glfw.KeyF12))
}

func TestTranslateMods(t *testing.T) {
	assert.Equal(t, core.ModCtrl|core.ModShift, translateMods(glfw.ModControl|glfw.ModShift))
	assert.Equal(t, core.ModNone, translateMods(0))
}

func TestAPIFor(t *testing.T) {
	api, err := APIFor(core.BackendGL)
	require.NoError(t, err)
	assert.Equal(t, APIOpenGL, api)

	api, err = APIFor(core.BackendVulkan)
	require.NoError(t, err)
	assert.Equal(t, APIVulkan, api)

	_, err = APIFor("metal")
	assert.Error(t, err)
}
