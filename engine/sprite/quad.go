package sprite

import "github.com/hubastard/terra/engine/scratch"

// VertexStride is one vec4: xy position, zw texture coordinate.
const VertexStride = 16

// QuadVertices returns the four vertices of a quad centred on the origin
// with the aspect ratio of a w by h image. The longer side is one world
// unit. Texture coordinate (0,0) is the first (top) row of the image.
func QuadVertices(w, h int) [4][4]float32 {
	hw, hh := float32(0.5), float32(0.5)
	switch {
	case w > h:
		hh *= float32(h) / float32(w)
	case h > w:
		hw *= float32(w) / float32(h)
	}
	return [4][4]float32{
		{-hw, +hh, 0, 0},
		{+hw, -hh, 1, 1},
		{-hw, -hh, 0, 1},
		{+hw, +hh, 1, 0},
	}
}

func packQuad(a *scratch.Arena, q [4][4]float32) []byte {
	a.Reset()
	for _, v := range q {
		a.F32(v[:]...)
	}
	return a.BytesFrom(0)
}
