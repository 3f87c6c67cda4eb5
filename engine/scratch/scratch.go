// Package scratch is a reusable per-frame byte arena. The renderer packs
// uniform and push-constant data into it and the overlay formats its label
// text with it, so steady-state frames do not allocate.
//
// An Arena is single-threaded. Reset it once per frame; slices returned by
// it are valid until the next Reset.
package scratch

import (
	"encoding/binary"
	"math"
	"strconv"

	"github.com/go-gl/mathgl/mgl32"
)

type Arena struct {
	buf []byte
}

// New returns an arena with the given initial capacity.
func New(capacity int) *Arena {
	if capacity <= 0 {
		capacity = 1024
	}
	return &Arena{buf: make([]byte, 0, capacity)}
}

// Reset clears the arena without freeing memory.
func (a *Arena) Reset() { a.buf = a.buf[:0] }

func (a *Arena) Len() int { return len(a.buf) }
func (a *Arena) Cap() int { return cap(a.buf) }

// Ensure makes room for at least n more bytes. When it has to grow, earlier
// slices keep pointing at the old backing array, which stays valid.
func (a *Arena) Ensure(n int) {
	if len(a.buf)+n <= cap(a.buf) {
		return
	}
	c := cap(a.buf) * 2
	if c < len(a.buf)+n {
		c = len(a.buf) + n
	}
	nb := make([]byte, len(a.buf), c)
	copy(nb, a.buf)
	a.buf = nb
}

// Mark returns a bookmark for BytesFrom / StringFrom.
func (a *Arena) Mark() int { return len(a.buf) }

// BytesFrom returns the bytes written since mark. The result is capped so
// appending to it cannot overwrite later arena contents.
func (a *Arena) BytesFrom(mark int) []byte { return a.buf[mark:len(a.buf):len(a.buf)] }

// StringFrom copies the bytes written since mark into a string.
func (a *Arena) StringFrom(mark int) string { return string(a.buf[mark:]) }

// ----- GPU data packing, little endian -----

// F32 appends float32 values.
func (a *Arena) F32(vs ...float32) *Arena {
	a.Ensure(4 * len(vs))
	for _, v := range vs {
		a.buf = binary.LittleEndian.AppendUint32(a.buf, math.Float32bits(v))
	}
	return a
}

// U32 appends uint32 values.
func (a *Arena) U32(vs ...uint32) *Arena {
	a.Ensure(4 * len(vs))
	for _, v := range vs {
		a.buf = binary.LittleEndian.AppendUint32(a.buf, v)
	}
	return a
}

// Mat4 appends m in row-major order (mgl32 stores columns).
func (a *Arena) Mat4(m mgl32.Mat4) *Arena {
	t := m.Transpose()
	return a.F32(t[:]...)
}

// ----- label text -----

func (a *Arena) S(s string) *Arena {
	a.buf = append(a.buf, s...)
	return a
}

func (a *Arena) C(c byte) *Arena {
	a.buf = append(a.buf, c)
	return a
}

func (a *Arena) I(v int) *Arena {
	a.buf = strconv.AppendInt(a.buf, int64(v), 10)
	return a
}

// F64 appends v with prec digits after the decimal point.
func (a *Arena) F64(v float64, prec int) *Arena {
	a.buf = strconv.AppendFloat(a.buf, v, 'f', prec, 64)
	return a
}

// Pad appends n copies of c.
func (a *Arena) Pad(n int, c byte) *Arena {
	if n <= 0 {
		return a
	}
	a.Ensure(n)
	for i := 0; i < n; i++ {
		a.buf = append(a.buf, c)
	}
	return a
}

// Float32s decodes little-endian float32 values, the inverse of F32.
func Float32s(b []byte) []float32 {
	out := make([]float32, len(b)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return out
}
