package sprite

import (
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/hubastard/terra/engine/assets"
	"github.com/hubastard/terra/engine/gfx/driver"
	"github.com/hubastard/terra/engine/profiler"
	"github.com/hubastard/terra/engine/scratch"
)

// TextureSlot is the descriptor set slot holding a sprite's image and the
// shared sampler.
const TextureSlot = 1

// Uploader creates the GPU objects of a sprite. resources.Pool implements it.
type Uploader interface {
	NewTexture(width, height int, rgba []byte) (driver.Image, error)
	NewVertexBuffer(data []byte) (driver.Buffer, error)
	BindImage(p driver.Pipeline, slot int, img driver.Image) (driver.DescriptorSet, error)
}

// LayoutSource provides the pipeline whose slot layout sprite descriptor
// sets are built against.
type LayoutSource interface {
	Pipeline() driver.Pipeline
}

// Decoder loads a sprite file into tight RGBA8.
type Decoder func(path string) (assets.Image, error)

// Resource is the GPU side of a sprite. It is immutable once created and is
// shared by every instance that draws the sprite.
type Resource struct {
	Sprite   Sprite
	Width    int
	Height   int
	Image    driver.Image
	Vertices driver.Buffer
	Set      driver.DescriptorSet
}

func (r *Resource) Destroy() {
	r.Set.Destroy()
	r.Vertices.Destroy()
	r.Image.Destroy()
}

// Cache maps sprite identities to their resources. Resources live until
// Evict or Destroy; nothing is dropped implicitly.
type Cache struct {
	up     Uploader
	layout LayoutSource
	decode Decoder
	log    *slog.Logger

	mu      sync.RWMutex
	entries map[ID]*Resource

	group singleflight.Group
	// device work is serialized; the driver is not safe for concurrent use
	devMu sync.Mutex
	arena *scratch.Arena
}

func NewCache(up Uploader, layout LayoutSource, decode Decoder, log *slog.Logger) *Cache {
	if decode == nil {
		decode = assets.DecodeFile
	}
	if log == nil {
		log = slog.Default()
	}
	return &Cache{
		up:      up,
		layout:  layout,
		decode:  decode,
		log:     log,
		entries: map[ID]*Resource{},
		arena:   scratch.New(4 * VertexStride),
	}
}

// GetOrCreate returns the resource for s, creating it on first request.
// Concurrent requests for one identity share a single creation. A failure
// is returned to every waiter and is not remembered.
func (c *Cache) GetOrCreate(s Sprite) (*Resource, error) {
	if r := c.Get(s.ID); r != nil {
		return r, nil
	}
	v, err, _ := c.group.Do(s.ID.String(), func() (any, error) {
		if r := c.Get(s.ID); r != nil {
			return r, nil
		}
		r, err := c.create(s)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.entries[s.ID] = r
		c.mu.Unlock()
		return r, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Resource), nil
}

func (c *Cache) create(s Sprite) (*Resource, error) {
	var img assets.Image
	if s.image != nil {
		img = *s.image
	} else {
		var err error
		end := profiler.Start("sprite.decode")
		img, err = c.decode(s.Path)
		end()
		if err != nil {
			return nil, fmt.Errorf("sprite %s: %w", s.Name, err)
		}
	}

	c.devMu.Lock()
	defer c.devMu.Unlock()
	defer profiler.Start("sprite.upload")()

	tex, err := c.up.NewTexture(img.Width, img.Height, img.Pixels)
	if err != nil {
		return nil, fmt.Errorf("sprite %s: %w", s.Name, err)
	}
	vb, err := c.up.NewVertexBuffer(packQuad(c.arena, QuadVertices(img.Width, img.Height)))
	if err != nil {
		tex.Destroy()
		return nil, fmt.Errorf("sprite %s: %w", s.Name, err)
	}
	set, err := c.up.BindImage(c.layout.Pipeline(), TextureSlot, tex)
	if err != nil {
		vb.Destroy()
		tex.Destroy()
		return nil, fmt.Errorf("sprite %s: %w", s.Name, err)
	}

	c.log.Debug("sprite resource created", "sprite", s.Name, "id", s.ID, "width", img.Width, "height", img.Height)
	return &Resource{Sprite: s, Width: img.Width, Height: img.Height, Image: tex, Vertices: vb, Set: set}, nil
}

// Get returns the resident resource for id, or nil.
func (c *Cache) Get(id ID) *Resource {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.entries[id]
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Evict destroys the resource for id. The caller guarantees that no frame
// using it is in flight.
func (c *Cache) Evict(id ID) bool {
	c.mu.Lock()
	r, ok := c.entries[id]
	delete(c.entries, id)
	c.mu.Unlock()
	if !ok {
		return false
	}
	c.devMu.Lock()
	r.Destroy()
	c.devMu.Unlock()
	c.log.Debug("sprite resource evicted", "sprite", r.Sprite.Name, "id", id)
	return true
}

// Destroy frees every resident resource.
func (c *Cache) Destroy() {
	c.mu.Lock()
	entries := c.entries
	c.entries = map[ID]*Resource{}
	c.mu.Unlock()

	c.devMu.Lock()
	defer c.devMu.Unlock()
	for _, r := range entries {
		r.Destroy()
	}
}
