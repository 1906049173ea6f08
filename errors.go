package necs

import "errors"

// Configuration errors. These are fatal: a runtime whose configuration is
// rejected must not be used to build entities.
var (
	// ErrAlreadyConfigured is returned when Configure is called on a loader
	// that already holds a resolved component order.
	ErrAlreadyConfigured = errors.New("necs: component loader already configured")

	// ErrDuplicateComponent is returned when two descriptors declare the
	// same component name.
	ErrDuplicateComponent = errors.New("necs: duplicate component name")

	// ErrUnknownDependency is returned when a descriptor depends on a
	// component name that was never registered.
	ErrUnknownDependency = errors.New("necs: unknown dependency")

	// ErrCyclicDependency is returned when the declared dependencies form a
	// cycle and no valid construction order exists.
	ErrCyclicDependency = errors.New("necs: cyclic component dependency")

	// ErrTooManyComponents is returned when more component types are
	// registered than the presence bitmask can track.
	ErrTooManyComponents = errors.New("necs: component limit exceeded")

	// ErrInvalidHook is returned when a hook definition has an empty name or
	// a nil OnActivate callback.
	ErrInvalidHook = errors.New("necs: invalid hook definition")

	// ErrDuplicateHook is returned when two hook definitions share a name.
	ErrDuplicateHook = errors.New("necs: duplicate hook name")
)

// Build-time errors. These abort a single entity build and never corrupt the
// loader's resolved order.
var (
	// ErrUnknownComponent is returned by Resolve and Build when a requested
	// component name was never registered.
	ErrUnknownComponent = errors.New("necs: unknown component")

	// ErrUnknownArchetype is returned when WithArchetype names an archetype
	// that is not in the runtime's archetype table.
	ErrUnknownArchetype = errors.New("necs: unknown archetype")

	// ErrDuplicateEntity is returned when Build is called for a handle that
	// already has a live entity registered.
	ErrDuplicateEntity = errors.New("necs: entity already exists for handle")

	// ErrComponentConstruction wraps the error returned by a component's
	// Create during a build. All components created before the failure are
	// destroyed in reverse order before this is returned.
	ErrComponentConstruction = errors.New("necs: component construction failed")
)
