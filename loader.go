package necs

import (
	"fmt"
	"sync"
)

// ComponentLoader validates the set of available component descriptors and
// resolves the order entities construct them in. It is configured exactly
// once per runtime; the resolved order is cached and reused for every entity
// built against the same component set.
type ComponentLoader struct {
	mu         sync.RWMutex
	configured bool

	// order holds every descriptor in dependency order. A component's
	// position in this slice is its ComponentID.
	order []Descriptor

	// index maps component names to positions in order.
	index map[string]int
}

func newComponentLoader() *ComponentLoader {
	return &ComponentLoader{index: make(map[string]int)}
}

// Configure validates the descriptors and resolves their construction order.
// It fails with ErrAlreadyConfigured on a second call, ErrDuplicateComponent
// if two descriptors share a name, ErrUnknownDependency if a declared
// dependency does not resolve to a registered name and ErrCyclicDependency
// if no valid order exists. On failure no order is retained and the loader
// may be configured again.
func (l *ComponentLoader) Configure(descriptors []Descriptor) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.configured {
		return ErrAlreadyConfigured
	}
	if len(descriptors) > MaxComponents {
		return fmt.Errorf("%w: %d types (max %d)", ErrTooManyComponents, len(descriptors), MaxComponents)
	}

	declared := make(map[string]struct{}, len(descriptors))
	for _, d := range descriptors {
		if d.Name == "" {
			return fmt.Errorf("%w: empty name", ErrDuplicateComponent)
		}
		if _, ok := declared[d.Name]; ok {
			return fmt.Errorf("%w: %q", ErrDuplicateComponent, d.Name)
		}
		declared[d.Name] = struct{}{}
	}
	for _, d := range descriptors {
		for _, dep := range d.Dependencies {
			if _, ok := declared[dep]; !ok {
				return fmt.Errorf("%w: %q required by %q", ErrUnknownDependency, dep, d.Name)
			}
		}
	}

	order, err := sortDescriptors(descriptors)
	if err != nil {
		return err
	}

	l.order = order
	for i, d := range order {
		l.index[d.Name] = i
	}
	l.configured = true
	return nil
}

// sortDescriptors produces a deterministic topological order: repeated
// passes select the first descriptor, in declaration order, whose
// dependencies have all been placed.
func sortDescriptors(descriptors []Descriptor) ([]Descriptor, error) {
	placed := make(map[string]struct{}, len(descriptors))
	order := make([]Descriptor, 0, len(descriptors))
	remaining := make([]Descriptor, len(descriptors))
	copy(remaining, descriptors)

	for len(remaining) > 0 {
		progress := false
		next := remaining[:0]
		for _, d := range remaining {
			ready := true
			for _, dep := range d.Dependencies {
				if _, ok := placed[dep]; !ok {
					ready = false
					break
				}
			}
			if ready {
				order = append(order, d)
				placed[d.Name] = struct{}{}
				progress = true
			} else {
				next = append(next, d)
			}
		}
		if !progress {
			names := make([]string, 0, len(next))
			for _, d := range next {
				names = append(names, d.Name)
			}
			return nil, fmt.Errorf("%w: involving %v", ErrCyclicDependency, names)
		}
		remaining = next
	}
	return order, nil
}

// Configured reports whether the loader holds a resolved order.
func (l *ComponentLoader) Configured() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.configured
}

// AllNames returns every registered component name in resolved order.
func (l *ComponentLoader) AllNames() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	names := make([]string, len(l.order))
	for i, d := range l.order {
		names[i] = d.Name
	}
	return names
}

// Resolve filters the requested names into the global resolved order,
// preserving their relative order. It fails with ErrUnknownComponent if a
// requested name was never registered.
func (l *ComponentLoader) Resolve(names []string) ([]Descriptor, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	requested := make(map[string]struct{}, len(names))
	for _, name := range names {
		if _, ok := l.index[name]; !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownComponent, name)
		}
		requested[name] = struct{}{}
	}

	resolved := make([]Descriptor, 0, len(requested))
	for _, d := range l.order {
		if _, ok := requested[d.Name]; ok {
			resolved = append(resolved, d)
		}
	}
	return resolved, nil
}

// idOf returns the ComponentID for a registered name.
func (l *ComponentLoader) idOf(name string) (ComponentID, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	i, ok := l.index[name]
	if !ok {
		return 0, false
	}
	return ComponentID(i), true
}
