package necs

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// HookComponentName is the component name the hook component is registered
// and looked up under.
const HookComponentName = "hook"

// HookDefinition declares one toggleable effect in the runtime's catalog.
// OnActivate applies the effect to an entity and may return a cleanup func
// that undoes it; OnDeactivate, if set, runs after the cleanup on every
// deactivation.
type HookDefinition struct {
	// Name uniquely identifies the hook in the catalog.
	Name string

	// OnActivate applies the effect. Required.
	OnActivate func(e *Entity) (cleanup func())

	// OnDeactivate runs when the effect is removed. Optional.
	OnDeactivate func(e *Entity)
}

// HookLoader is the runtime-wide catalog of hook definitions. It is
// read-only after configuration; entities activate and deactivate catalog
// entries through their hook component.
type HookLoader struct {
	log *zap.Logger

	mu   sync.RWMutex
	defs map[string]HookDefinition
}

func newHookLoader(log *zap.Logger) *HookLoader {
	return &HookLoader{log: log, defs: make(map[string]HookDefinition)}
}

// Configure clears the catalog and reloads it from the given definitions.
// Loading is fail-fast, not partial: the first invalid or duplicate-named
// definition aborts the load and the catalog is left empty.
func (l *HookLoader) Configure(definitions []HookDefinition) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.defs = make(map[string]HookDefinition, len(definitions))
	for _, def := range definitions {
		if def.Name == "" {
			l.defs = make(map[string]HookDefinition)
			return fmt.Errorf("%w: empty name", ErrInvalidHook)
		}
		if def.OnActivate == nil {
			l.defs = make(map[string]HookDefinition)
			return fmt.Errorf("%w: %q has no OnActivate", ErrInvalidHook, def.Name)
		}
		if _, ok := l.defs[def.Name]; ok {
			l.defs = make(map[string]HookDefinition)
			return fmt.Errorf("%w: %q", ErrDuplicateHook, def.Name)
		}
		l.defs[def.Name] = def
	}
	return nil
}

// Lookup returns the named definition.
func (l *HookLoader) Lookup(name string) (HookDefinition, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	def, ok := l.defs[name]
	return def, ok
}

// Names returns every catalogued hook name.
func (l *HookLoader) Names() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	names := make([]string, 0, len(l.defs))
	for name := range l.defs {
		names = append(names, name)
	}
	return names
}

// HookDescriptor returns the descriptor for the built-in hook component.
func HookDescriptor() Descriptor {
	return Descriptor{
		Name: HookComponentName,
		Create: func(e *Entity) (ComponentInstance, error) {
			return &HookComponent{
				entity: e,
				rt:     e.rt,
				active: make(map[string]func()),
			}, nil
		},
	}
}

// Hooks returns the entity's hook component, or nil if absent.
func Hooks(e *Entity) *HookComponent {
	return Lookup[*HookComponent](e, HookComponentName)
}

// HookComponent is an entity's activation registry for catalogued hooks.
// Register and Unregister are idempotent: re-registering an active hook
// never double-applies its effect, and unregistering an inactive hook is a
// no-op.
type HookComponent struct {
	entity *Entity
	rt     *Runtime

	mu sync.Mutex

	// active maps hook names to their cleanup, nil while OnActivate is
	// still running. Presence in the map is what makes Register idempotent.
	active map[string]func()

	// order records activation order for reverse teardown.
	order []string
}

// Register activates the named hook on the entity. An unknown hook name is
// a no-op rather than an error, since callers routinely probe effects that
// may not be catalogued. Registering an already-active hook is a no-op.
func (c *HookComponent) Register(name string) {
	def, ok := c.rt.hooks.Lookup(name)
	if !ok {
		c.rt.log.Debug("hook not catalogued", zap.String("hook", name))
		return
	}

	c.mu.Lock()
	if _, on := c.active[name]; on {
		c.mu.Unlock()
		return
	}
	// Reserve the activation before running OnActivate so a concurrent
	// Register cannot double-apply the effect.
	c.active[name] = nil
	c.order = append(c.order, name)
	c.mu.Unlock()

	var cleanup func()
	c.rt.safely("hook activate", name, func() {
		cleanup = def.OnActivate(c.entity)
	})

	c.mu.Lock()
	if _, still := c.active[name]; still {
		c.active[name] = cleanup
		cleanup = nil
	}
	c.mu.Unlock()

	// The hook was unregistered while OnActivate ran; undo it.
	if cleanup != nil {
		c.rt.safely("hook cleanup", name, cleanup)
	}
}

// Unregister deactivates the named hook: its stored cleanup runs first,
// then OnDeactivate if declared, and the activation record is removed.
// Unregistering an inactive or unknown hook is a no-op.
func (c *HookComponent) Unregister(name string) {
	c.mu.Lock()
	cleanup, ok := c.active[name]
	if !ok {
		c.mu.Unlock()
		return
	}
	delete(c.active, name)
	for i, n := range c.order {
		if n == name {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	c.mu.Unlock()

	if cleanup != nil {
		c.rt.safely("hook cleanup", name, cleanup)
	}
	if def, ok := c.rt.hooks.Lookup(name); ok && def.OnDeactivate != nil {
		c.rt.safely("hook deactivate", name, func() {
			def.OnDeactivate(c.entity)
		})
	}
}

// Active reports whether the named hook is currently active on the entity.
func (c *HookComponent) Active(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.active[name]
	return ok
}

// ActiveHooks returns the active hook names in activation order.
func (c *HookComponent) ActiveHooks() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	names := make([]string, len(c.order))
	copy(names, c.order)
	return names
}

// Destroy deactivates every active hook in reverse activation order.
func (c *HookComponent) Destroy() {
	c.mu.Lock()
	order := make([]string, len(c.order))
	copy(order, c.order)
	c.mu.Unlock()

	for i := len(order) - 1; i >= 0; i-- {
		c.Unregister(order[i])
	}
}
