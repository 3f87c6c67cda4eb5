package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSpvPath(t *testing.T) {
	assert.Equal(t, "assets/shaders/sprite.spv", spvPath("assets/shaders/sprite.wgsl"))
	assert.Equal(t, "noext.spv", spvPath("noext"))
}
