package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hubastard/terra/engine/assets"
)

func TestQuadSizeKeepsAspect(t *testing.T) {
	w, h := quadSize(assets.Image{Width: 200, Height: 50}, 2)
	assert.InDelta(t, 2, w, 1e-6)
	assert.InDelta(t, 0.5, h, 1e-6)

	w, h = quadSize(assets.Image{Width: 10, Height: 40}, 1)
	assert.InDelta(t, 0.25, w, 1e-6)
	assert.InDelta(t, 1, h, 1e-6)
}
