// Package sprite identifies sprite images, catalogs them on disk and owns
// their GPU resources.
package sprite

import (
	"fmt"
	"hash/fnv"
	"path/filepath"
	"strconv"

	"github.com/hubastard/terra/engine/assets"
)

// ID is the stable identity of a sprite, derived from its path.
type ID uint64

func (id ID) String() string { return strconv.FormatUint(uint64(id), 16) }

// Sprite is an immutable image reference. Sprites built from memory carry
// their pixels; file sprites are decoded on first use.
type Sprite struct {
	ID   ID
	Path string
	Name string

	image *assets.Image
}

// New returns the sprite for the image file at path.
func New(path string) (Sprite, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return Sprite{}, fmt.Errorf("sprite path %q: %w", path, err)
	}
	abs = filepath.ToSlash(abs)
	return Sprite{ID: hash(abs), Path: abs, Name: filepath.Base(abs)}, nil
}

// HashPath returns the identity New assigns to path.
func HashPath(path string) (ID, error) {
	s, err := New(path)
	return s.ID, err
}

// FromImage wraps already decoded pixels. name must be unique among memory
// sprites; it never collides with a file path.
func FromImage(name string, img assets.Image) Sprite {
	return Sprite{ID: hash("mem:" + name), Name: name, image: &img}
}

// InMemory reports whether the sprite carries its own pixels.
func (s Sprite) InMemory() bool { return s.image != nil }

func hash(key string) ID {
	h := fnv.New64a()
	h.Write([]byte(key))
	return ID(h.Sum64())
}
