package necs

import (
	"github.com/df-mc/dragonfly/server/player"
	"github.com/df-mc/dragonfly/server/world"
)

// AttributeApplier pushes one replicated attribute value onto a Dragonfly
// player. Appliers run inside the player's world transaction.
type AttributeApplier func(p *player.Player, value any)

// PlayerHandle adapts a Dragonfly player to the runtime's Handle interface.
// It wraps the player's persistent EntityHandle, so the adapter stays valid
// across world transactions, and maps replicated attribute names onto
// player API calls through a table of appliers.
//
// Speed and MaxHealth appliers are installed by default; hosts add their own
// with WithPlayerAttribute. Attributes without an applier are ignored, since
// the engine exposes no generic attribute surface.
type PlayerHandle struct {
	h        *world.EntityHandle
	appliers map[string]AttributeApplier
}

// PlayerHandleOption configures a PlayerHandle.
type PlayerHandleOption func(*PlayerHandle)

// WithPlayerAttribute installs an applier for the named replicated
// attribute, replacing any default.
func WithPlayerAttribute(name string, fn AttributeApplier) PlayerHandleOption {
	return func(ph *PlayerHandle) {
		ph.appliers[name] = fn
	}
}

// NewPlayerHandle wraps a Dragonfly player for use as an entity handle.
func NewPlayerHandle(p *player.Player, opts ...PlayerHandleOption) *PlayerHandle {
	ph := &PlayerHandle{
		h: p.H(),
		appliers: map[string]AttributeApplier{
			"Speed": func(p *player.Player, value any) {
				if v, ok := asFloat(value); ok {
					p.SetSpeed(v)
				}
			},
			"MaxHealth": func(p *player.Player, value any) {
				if v, ok := asFloat(value); ok {
					p.SetMaxHealth(v)
				}
			},
		},
	}
	for _, opt := range opts {
		opt(ph)
	}
	return ph
}

// EntityHandle returns the wrapped Dragonfly entity handle.
func (ph *PlayerHandle) EntityHandle() *world.EntityHandle {
	return ph.h
}

// PublishAttribute applies the attribute inside the player's world
// transaction. Unmapped attributes and offline players are ignored.
func (ph *PlayerHandle) PublishAttribute(name string, value any) {
	fn, ok := ph.appliers[name]
	if !ok {
		return
	}
	ph.h.ExecWorld(func(tx *world.Tx, e world.Entity) {
		p, ok := e.(*player.Player)
		if !ok {
			return
		}
		fn(p, value)
	})
}

func asFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	}
	return 0, false
}
