package scene

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/hubastard/terra/engine/sprite"
)

var (
	ErrDuplicateInstance = errors.New("instance already registered")
	ErrInstanceNotFound  = errors.New("instance not found")
	// ErrRegistryBusy is returned when the registry is mutated from inside
	// Each, e.g. while a frame is being recorded.
	ErrRegistryBusy = errors.New("registry is being iterated")
)

// ResourceLoader makes sure a sprite has GPU resources. sprite.Cache
// implements it.
type ResourceLoader interface {
	GetOrCreate(s sprite.Sprite) (*sprite.Resource, error)
}

// Bucket is every instance of one sprite, in insertion order.
type Bucket struct {
	Sprite    sprite.Sprite
	Instances []*Instance
}

// Registry groups instances by sprite. Buckets keep the order in which their
// sprite was first added. It is not safe for concurrent use.
type Registry struct {
	loader ResourceLoader
	log    *slog.Logger

	buckets []*Bucket
	index   map[sprite.ID]*Bucket
	owner   map[InstanceID]sprite.ID
	busy    bool
}

func NewRegistry(loader ResourceLoader, log *slog.Logger) *Registry {
	if log == nil {
		log = slog.Default()
	}
	return &Registry{
		loader: loader,
		log:    log,
		index:  map[sprite.ID]*Bucket{},
		owner:  map[InstanceID]sprite.ID{},
	}
}

// Add registers in and makes sure its sprite is loaded. A load failure is
// logged and the instance is kept; it is skipped when drawing until the
// sprite becomes resident.
func (r *Registry) Add(in *Instance) error {
	if r.busy {
		return ErrRegistryBusy
	}
	if _, ok := r.owner[in.ID]; ok {
		return fmt.Errorf("add %q (%d): %w", in.Name, in.ID, ErrDuplicateInstance)
	}
	b, ok := r.index[in.Sprite.ID]
	if !ok {
		b = &Bucket{Sprite: in.Sprite}
		r.index[in.Sprite.ID] = b
		r.buckets = append(r.buckets, b)
	}
	b.Instances = append(b.Instances, in)
	r.owner[in.ID] = in.Sprite.ID

	if r.loader != nil {
		if _, err := r.loader.GetOrCreate(in.Sprite); err != nil {
			r.log.Error("sprite not loaded", "sprite", in.Sprite.Name, "instance", in.Name, "error", err)
		}
	}
	return nil
}

// Remove unregisters the instance. The sprite resource stays cached.
func (r *Registry) Remove(id InstanceID) error {
	if r.busy {
		return ErrRegistryBusy
	}
	sid, ok := r.owner[id]
	if !ok {
		return fmt.Errorf("remove %d: %w", id, ErrInstanceNotFound)
	}
	b := r.index[sid]
	for i, in := range b.Instances {
		if in.ID == id {
			b.Instances = append(b.Instances[:i], b.Instances[i+1:]...)
			break
		}
	}
	delete(r.owner, id)
	return nil
}

// Each visits every non-empty bucket. The registry cannot be changed until
// fn returns; fn returning false stops the walk.
func (r *Registry) Each(fn func(b *Bucket) bool) {
	prev := r.busy
	r.busy = true
	defer func() { r.busy = prev }()
	for _, b := range r.buckets {
		if len(b.Instances) == 0 {
			continue
		}
		if !fn(b) {
			return
		}
	}
}

// Bucket returns a copy of the instances of a sprite.
func (r *Registry) Bucket(id sprite.ID) []*Instance {
	if b, ok := r.index[id]; ok {
		return slices.Clone(b.Instances)
	}
	return nil
}

// Find returns a registered instance.
func (r *Registry) Find(id InstanceID) (*Instance, bool) {
	sid, ok := r.owner[id]
	if !ok {
		return nil, false
	}
	for _, in := range r.index[sid].Instances {
		if in.ID == id {
			return in, true
		}
	}
	return nil, false
}

// Instances lists every instance, grouped by sprite.
func (r *Registry) Instances() []*Instance {
	out := make([]*Instance, 0, len(r.owner))
	for _, b := range r.buckets {
		out = append(out, b.Instances...)
	}
	return out
}

func (r *Registry) Len() int { return len(r.owner) }

// Sprites lists the sprites that have at least one instance.
func (r *Registry) Sprites() []sprite.Sprite {
	var out []sprite.Sprite
	for _, b := range r.buckets {
		if len(b.Instances) > 0 {
			out = append(out, b.Sprite)
		}
	}
	return out
}
