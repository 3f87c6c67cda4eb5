package scene

import (
	"sync/atomic"

	"github.com/hubastard/terra/engine/colors"
	"github.com/hubastard/terra/engine/sprite"
)

// InstanceID identifies a renderer instance for the life of the process.
type InstanceID uint64

var lastInstanceID atomic.Uint64

// NextInstanceID returns a fresh id; ids are never reused.
func NextInstanceID() InstanceID { return InstanceID(lastInstanceID.Add(1)) }

// Instance is one placement of a sprite in the scene.
type Instance struct {
	ID        InstanceID
	Name      string
	Sprite    sprite.Sprite
	Transform Transform
	// Color tints the sprite. Alpha is ignored; instances draw opaque.
	Color colors.Color
}

// NewInstance places s at the origin with a white tint.
func NewInstance(name string, s sprite.Sprite) *Instance {
	return &Instance{
		ID:        NextInstanceID(),
		Name:      name,
		Sprite:    s,
		Transform: Identity(),
		Color:     colors.White,
	}
}
