package sprite

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

var extensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true,
	".bmp": true, ".tga": true, ".tiff": true,
}

// Catalog is the set of sprite files found in a directory.
type Catalog struct {
	byID   map[ID]Sprite
	byName map[string]Sprite
	all    []Sprite
}

// Scan lists the image files directly inside dir. Subdirectories and files
// with other extensions are ignored.
func Scan(dir string) (*Catalog, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("scan sprites: %w", err)
	}
	c := &Catalog{byID: map[ID]Sprite{}, byName: map[string]Sprite{}}
	for _, e := range entries {
		if e.IsDir() || !extensions[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		s, err := New(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		c.byID[s.ID] = s
		c.byName[s.Name] = s
		c.all = append(c.all, s)
	}
	sort.Slice(c.all, func(i, j int) bool { return c.all[i].Path < c.all[j].Path })
	return c, nil
}

func (c *Catalog) Lookup(id ID) (Sprite, bool) {
	s, ok := c.byID[id]
	return s, ok
}

// ByName finds a sprite by file name, e.g. "ship.png".
func (c *Catalog) ByName(name string) (Sprite, bool) {
	s, ok := c.byName[name]
	return s, ok
}

// All returns the sprites sorted by path.
func (c *Catalog) All() []Sprite { return c.all }

func (c *Catalog) Len() int { return len(c.all) }
