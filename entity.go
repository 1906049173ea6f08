package necs

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Entity owns the live component set built for one engine object. Components
// are stored in construction order (which is dependency order) and looked up
// by name; sibling components never hold direct references to each other.
//
// Entities are created by the runtime's builder and destroyed exactly once.
// After Destroy, every lookup returns absent rather than a stale instance.
type Entity struct {
	// handle is the opaque engine object this entity wraps.
	handle Handle

	// id is assigned at build time and never changes.
	id uuid.UUID

	// ctx carries the shared construction parameters passed to every
	// component's Create.
	ctx any

	// rt is the runtime that built and registered this entity.
	rt *Runtime

	// mu protects the component storage below.
	mu sync.RWMutex

	// names and instances are parallel slices in construction order.
	names     []string
	instances []ComponentInstance

	// byName indexes instances for lookup.
	byName map[string]ComponentInstance

	// mask tracks component presence by ComponentID.
	mask Bitmask

	// updaters holds the periodic update slots driven by the scheduler.
	updaters []*updateSlot

	// destroyed indicates the entity has been torn down.
	destroyed atomic.Bool

	// pendingTasks holds deferred work owned by this entity, cancelled on
	// destroy.
	pendingTasks []*scheduledTask
	taskMu       sync.Mutex
}

// updateSlot tracks periodic update timing for one component instance.
// Timing fields are owned by the scheduler goroutine.
type updateSlot struct {
	name     string
	updater  Updater
	interval time.Duration
	lastRun  time.Time
	nextRun  time.Time
}

// shouldRun checks if the slot is due at the given time.
func (u *updateSlot) shouldRun(now time.Time) bool {
	return !now.Before(u.nextRun)
}

// markRun updates the last run time and schedules the next run with
// drift-free timing, catching up if the scheduler fell behind.
func (u *updateSlot) markRun(now time.Time) {
	u.lastRun = now
	u.nextRun = u.nextRun.Add(u.interval)
	if u.nextRun.Before(now) {
		u.nextRun = now.Add(u.interval)
	}
}

// Handle returns the opaque engine object this entity wraps.
func (e *Entity) Handle() Handle {
	return e.handle
}

// UUID returns the entity's runtime-assigned identifier.
func (e *Entity) UUID() uuid.UUID {
	return e.id
}

// Context returns the shared construction parameters the entity was built
// with.
func (e *Entity) Context() any {
	return e.ctx
}

// Runtime returns the runtime that owns this entity.
func (e *Entity) Runtime() *Runtime {
	return e.rt
}

// Component returns the named component instance, or false if the component
// is absent or the entity has been destroyed. It never fails for an unknown
// name.
func (e *Entity) Component(name string) (ComponentInstance, bool) {
	if e == nil || e.destroyed.Load() {
		return nil, false
	}

	e.mu.RLock()
	inst, ok := e.byName[name]
	e.mu.RUnlock()
	return inst, ok
}

// Has reports whether the named component is present.
func (e *Entity) Has(name string) bool {
	if e == nil || e.destroyed.Load() {
		return false
	}

	id, ok := e.rt.loader.idOf(name)
	if !ok {
		return false
	}

	e.mu.RLock()
	has := e.mask.Has(id)
	e.mu.RUnlock()
	return has
}

// HasAll reports whether every named component is present, in a single mask
// comparison. An unregistered name reads as absent.
func (e *Entity) HasAll(names ...string) bool {
	if e == nil || e.destroyed.Load() {
		return false
	}

	var want Bitmask
	for _, name := range names {
		id, ok := e.rt.loader.idOf(name)
		if !ok {
			return false
		}
		want.Set(id)
	}

	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.mask.ContainsAll(want)
}

// ComponentNames returns the entity's component names in construction order.
func (e *Entity) ComponentNames() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	names := make([]string, len(e.names))
	copy(names, e.names)
	return names
}

// Destroyed reports whether the entity has been destroyed.
func (e *Entity) Destroyed() bool {
	return e.destroyed.Load()
}

// Destroy tears the entity down: it publishes EventEntityDestroyed, cancels
// all deferred work owned by the entity, destroys each component in reverse
// construction order and removes the entity from the runtime registry.
// Destroy is idempotent; a second call is a no-op.
//
// The event is published before teardown begins so that observers receive a
// reference to the entity while its components are still reachable through
// it at publish time.
func (e *Entity) Destroy() {
	if e.destroyed.Swap(true) {
		return
	}

	e.rt.bus.Publish(EventEntityDestroyed, EntityDestroyedEvent{Entity: e})

	// Cancel pending deferred work so timers and notifications owned by the
	// entity never fire against torn-down components.
	e.taskMu.Lock()
	tasks := e.pendingTasks
	e.pendingTasks = nil
	e.taskMu.Unlock()
	for _, t := range tasks {
		t.cancelled.Store(true)
	}

	e.mu.Lock()
	instances := e.instances
	names := e.names
	e.instances = nil
	e.names = nil
	e.byName = nil
	e.updaters = nil
	e.mask = Bitmask{}
	e.mu.Unlock()

	// Dependents are torn down before their dependencies.
	for i := len(instances) - 1; i >= 0; i-- {
		e.rt.safely("component destroy", names[i], instances[i].Destroy)
	}

	e.rt.removeEntity(e)
}

// insert stores a freshly constructed component. Called by the builder in
// construction order.
func (e *Entity) insert(desc Descriptor, inst ComponentInstance) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.names = append(e.names, desc.Name)
	e.instances = append(e.instances, inst)
	e.byName[desc.Name] = inst
	if id, ok := e.rt.loader.idOf(desc.Name); ok {
		e.mask.Set(id)
	}

	if desc.UpdateRate > 0 {
		if u, ok := inst.(Updater); ok {
			now := time.Now()
			e.updaters = append(e.updaters, &updateSlot{
				name:     desc.Name,
				updater:  u,
				interval: desc.UpdateRate,
				lastRun:  now,
				nextRun:  now.Add(desc.UpdateRate),
			})
		}
	}
}

// updateSlots returns the entity's periodic update slots, or nil once the
// entity is destroyed.
func (e *Entity) updateSlots() []*updateSlot {
	if e.destroyed.Load() {
		return nil
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.updaters
}

// addTask registers deferred work owned by this entity.
func (e *Entity) addTask(task *scheduledTask) {
	e.taskMu.Lock()
	e.pendingTasks = append(e.pendingTasks, task)
	e.taskMu.Unlock()
}

// removeTask unregisters completed deferred work.
func (e *Entity) removeTask(task *scheduledTask) {
	e.taskMu.Lock()
	for i, t := range e.pendingTasks {
		if t == task {
			e.pendingTasks = append(e.pendingTasks[:i], e.pendingTasks[i+1:]...)
			break
		}
	}
	e.taskMu.Unlock()
}

// String returns a string representation of the entity for debugging.
func (e *Entity) String() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return fmt.Sprintf("Entity{UUID: %s, Components: [%s]}", e.id, strings.Join(e.names, ", "))
}
