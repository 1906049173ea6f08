package necs

import "time"

// ComponentID is the index of a component type in the loader's resolved
// order. Valid IDs range from 0 to 254.
type ComponentID uint8

// MaxComponents is the maximum number of component types supported by the
// presence bitmask.
const MaxComponents = 255

// Handle is the engine-side object an entity is built around. The runtime
// treats it as an opaque identity except for attribute replication: every
// state or stat marked Replicate is pushed through PublishAttribute whenever
// its value changes.
//
// Handle values are used as registry keys and must therefore be comparable;
// in practice they are pointers into the hosting engine (see PlayerHandle
// for the Dragonfly adapter).
type Handle interface {
	// PublishAttribute replicates a named numeric or boolean value on the
	// underlying engine object. Implementations must tolerate attribute
	// names they do not recognise.
	PublishAttribute(name string, value any)
}

// Descriptor declares a component type: its unique name, the names of the
// components it depends on, an optional periodic update rate and the
// constructor invoked for every entity the component is built on.
//
// Descriptors are registered once with ComponentLoader.Configure and are
// immutable thereafter.
type Descriptor struct {
	// Name uniquely identifies the component type.
	Name string

	// Dependencies lists component names that must be constructed before
	// this component. Create may look them up on the entity.
	Dependencies []string

	// UpdateRate, if non-zero, makes the scheduler call the instance's
	// Update method at this interval. The instance must implement Updater.
	UpdateRate time.Duration

	// Create constructs the instance for one entity. The entity already
	// holds every dependency declared above; components registered later in
	// the resolved order are not yet visible. Create must not leave side
	// effects behind when it returns an error, since the builder rolls the
	// whole entity back.
	Create func(e *Entity) (ComponentInstance, error)
}

// ComponentInstance is the value a descriptor's Create produces. The runtime
// only requires teardown; everything else is component-specific API that
// siblings discover by name through the entity.
type ComponentInstance interface {
	// Destroy releases the instance. It is called exactly once, in reverse
	// construction order, and must be safe to call while deferred callbacks
	// scheduled by the instance are still pending.
	Destroy()
}

// Updater is implemented by component instances that declared an UpdateRate.
// Update runs on the scheduler goroutine; dt is the time elapsed since the
// previous update.
type Updater interface {
	Update(dt time.Duration)
}

// Lookup retrieves a component instance from the entity by name and asserts
// it to the concrete type T. It returns the zero value if the component is
// absent, the entity is destroyed or the instance has a different type.
// Absence is a normal case: callers routinely probe for optional components.
func Lookup[T ComponentInstance](e *Entity, name string) T {
	var zero T
	inst, ok := e.Component(name)
	if !ok {
		return zero
	}
	t, ok := inst.(T)
	if !ok {
		return zero
	}
	return t
}
