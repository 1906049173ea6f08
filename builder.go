package necs

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// EntityBuilder assembles one entity's component set. Obtain a builder from
// Runtime.NewEntity, select an archetype or explicit component names, then
// call Build.
//
// Build instantiates the selected components in the loader's resolved
// dependency order. If any component's Create fails, everything constructed
// so far is destroyed in reverse order and the error propagates: a partially
// built entity is never published.
type EntityBuilder struct {
	rt     *Runtime
	handle Handle
	ctx    any
	names  []string
	err    error
}

// NewEntity begins building an entity around the given engine handle. ctx is
// the shared construction parameter object made available to every
// component's Create through Entity.Context.
func (rt *Runtime) NewEntity(handle Handle, ctx any) *EntityBuilder {
	return &EntityBuilder{rt: rt, handle: handle, ctx: ctx}
}

// WithArchetype appends the named archetype's component list to the build.
// An unknown archetype fails the eventual Build with ErrUnknownArchetype.
func (b *EntityBuilder) WithArchetype(name string) *EntityBuilder {
	if b.err != nil {
		return b
	}
	names, ok := b.rt.archetype(name)
	if !ok {
		b.err = fmt.Errorf("%w: %q", ErrUnknownArchetype, name)
		return b
	}
	b.names = append(b.names, names...)
	return b
}

// WithComponents appends explicit component names to the build.
func (b *EntityBuilder) WithComponents(names ...string) *EntityBuilder {
	b.names = append(b.names, names...)
	return b
}

// Build resolves the selected names into dependency order, constructs every
// component and registers the entity in the runtime's live registry. On
// success an EventEntityBuilt event is published. Duplicate builds for a
// handle that is already live are rejected with ErrDuplicateEntity.
func (b *EntityBuilder) Build() (*Entity, error) {
	if b.err != nil {
		return nil, b.err
	}
	if b.handle == nil {
		return nil, errors.New("necs: build with nil handle")
	}

	resolved, err := b.rt.loader.Resolve(dedupe(b.names))
	if err != nil {
		return nil, err
	}

	if err := b.rt.reserveHandle(b.handle); err != nil {
		return nil, err
	}

	e := &Entity{
		handle: b.handle,
		id:     uuid.New(),
		ctx:    b.ctx,
		rt:     b.rt,
		byName: make(map[string]ComponentInstance, len(resolved)),
	}

	// Components are inserted as soon as their Create returns, so each
	// Create can only observe already-constructed dependencies.
	for _, desc := range resolved {
		inst, err := desc.Create(e)
		if err != nil {
			b.rollback(e)
			b.rt.releaseHandle(b.handle)
			return nil, fmt.Errorf("%w: %q: %w", ErrComponentConstruction, desc.Name, err)
		}
		e.insert(desc, inst)
	}

	b.rt.addEntity(e)
	b.rt.log.Debug("entity built",
		zap.String("uuid", e.id.String()),
		zap.Strings("components", e.ComponentNames()))
	b.rt.bus.Publish(EventEntityBuilt, EntityBuiltEvent{Entity: e})
	return e, nil
}

// rollback destroys the instances created so far, in reverse creation
// order, leaving zero residue for the aborted entity.
func (b *EntityBuilder) rollback(e *Entity) {
	e.destroyed.Store(true)

	e.mu.Lock()
	instances := e.instances
	names := e.names
	e.instances = nil
	e.names = nil
	e.byName = nil
	e.updaters = nil
	e.mask = Bitmask{}
	e.mu.Unlock()

	for i := len(instances) - 1; i >= 0; i-- {
		b.rt.safely("build rollback", names[i], instances[i].Destroy)
	}
}

// dedupe removes repeated names, keeping first occurrences in order.
func dedupe(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, name := range names {
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}
