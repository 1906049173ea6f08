package necs

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Runtime is the central coordinator for one component runtime instance: it
// owns the component loader, the archetype table, the hook catalog, the
// live-entity registry, the event bus and the scheduler. Multiple Runtime
// instances can coexist in the same process; there is no ambient global
// state.
type Runtime struct {
	log *zap.Logger

	// loader holds the resolved component order.
	loader *ComponentLoader

	// hooks is the runtime-wide hook catalog.
	hooks *HookLoader

	// archetypes maps archetype names to ordered component-name lists.
	archetypes   map[string][]string
	archetypesMu sync.RWMutex

	// entities holds all live entities keyed by handle.
	entities   map[Handle]*Entity
	entitiesMu sync.RWMutex

	// entitiesByUUID provides UUID-based entity lookup.
	entitiesByUUID   map[uuid.UUID]*Entity
	entitiesByUUIDMu sync.RWMutex

	// building reserves handles for in-flight builds so two builds for the
	// same handle cannot race past the duplicate check.
	building map[Handle]struct{}

	// bus is the runtime's event bus.
	bus *EventBus

	// queue holds deferred tasks; scheduler drains it.
	queue     *taskQueue
	scheduler *Scheduler
}

// Option configures a Runtime.
type Option func(*runtimeOptions)

type runtimeOptions struct {
	log      *zap.Logger
	tickRate time.Duration
	signals  SignalFactory
}

// WithLogger sets the runtime's structured logger. The default is a no-op
// logger.
func WithLogger(log *zap.Logger) Option {
	return func(o *runtimeOptions) { o.log = log }
}

// WithTickRate sets the scheduler's tick interval. The default is 50ms
// (20 TPS).
func WithTickRate(d time.Duration) Option {
	return func(o *runtimeOptions) { o.tickRate = d }
}

// WithSignalFactory sets the event-signal constructor used by the event bus,
// allowing the host to supply its own signal implementation.
func WithSignalFactory(f SignalFactory) Option {
	return func(o *runtimeOptions) { o.signals = f }
}

// NewRuntime creates a runtime. Configure components, archetypes and hooks,
// then call Start before building entities.
func NewRuntime(opts ...Option) *Runtime {
	var o runtimeOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = zap.NewNop()
	}

	rt := &Runtime{
		log:            o.log,
		loader:         newComponentLoader(),
		archetypes:     make(map[string][]string),
		entities:       make(map[Handle]*Entity),
		entitiesByUUID: make(map[uuid.UUID]*Entity),
		building:       make(map[Handle]struct{}),
		queue:          newTaskQueue(),
	}
	rt.hooks = newHookLoader(rt.log)
	rt.bus = newEventBus(rt, o.signals)
	rt.scheduler = newScheduler(rt, o.tickRate)
	return rt
}

// ConfigureComponents registers the set of available component descriptors
// and resolves their construction order. It may succeed at most once per
// runtime.
func (rt *Runtime) ConfigureComponents(descriptors ...Descriptor) error {
	return rt.loader.Configure(descriptors)
}

// ConfigureArchetypes replaces the archetype table. Every component name in
// every archetype must already be registered.
func (rt *Runtime) ConfigureArchetypes(table map[string][]string) error {
	for arch, names := range table {
		for _, name := range names {
			if _, ok := rt.loader.idOf(name); !ok {
				return fmt.Errorf("%w: %q in archetype %q", ErrUnknownComponent, name, arch)
			}
		}
	}

	rt.archetypesMu.Lock()
	defer rt.archetypesMu.Unlock()
	rt.archetypes = make(map[string][]string, len(table))
	for arch, names := range table {
		rt.archetypes[arch] = append([]string(nil), names...)
	}
	return nil
}

// ConfigureHooks clears and reloads the runtime's hook catalog. Loading is
// fail-fast: the first invalid or duplicate definition aborts the whole
// load.
func (rt *Runtime) ConfigureHooks(definitions ...HookDefinition) error {
	return rt.hooks.Configure(definitions)
}

// Loader returns the runtime's component loader.
func (rt *Runtime) Loader() *ComponentLoader {
	return rt.loader
}

// Hooks returns the runtime's hook catalog.
func (rt *Runtime) Hooks() *HookLoader {
	return rt.hooks
}

// Events returns the runtime's event bus.
func (rt *Runtime) Events() *EventBus {
	return rt.bus
}

// archetype returns the component list for a named archetype.
func (rt *Runtime) archetype(name string) ([]string, bool) {
	rt.archetypesMu.RLock()
	defer rt.archetypesMu.RUnlock()
	names, ok := rt.archetypes[name]
	return names, ok
}

// Start starts the scheduler. Starting an already-started runtime is a
// no-op.
func (rt *Runtime) Start() {
	rt.scheduler.Start()
}

// Shutdown stops the scheduler and destroys every live entity.
func (rt *Runtime) Shutdown() {
	rt.entitiesMu.RLock()
	entities := make([]*Entity, 0, len(rt.entities))
	for _, e := range rt.entities {
		entities = append(entities, e)
	}
	rt.entitiesMu.RUnlock()

	for _, e := range entities {
		e.Destroy()
	}

	rt.scheduler.Stop()
	rt.queue.Clear()
}

// Entity retrieves the live entity for a handle, or nil.
func (rt *Runtime) Entity(handle Handle) *Entity {
	rt.entitiesMu.RLock()
	defer rt.entitiesMu.RUnlock()
	return rt.entities[handle]
}

// EntityByUUID retrieves a live entity by its runtime-assigned UUID, or nil.
func (rt *Runtime) EntityByUUID(id uuid.UUID) *Entity {
	rt.entitiesByUUIDMu.RLock()
	defer rt.entitiesByUUIDMu.RUnlock()
	return rt.entitiesByUUID[id]
}

// Entities returns a snapshot of all live entities.
func (rt *Runtime) Entities() []*Entity {
	rt.entitiesMu.RLock()
	defer rt.entitiesMu.RUnlock()

	entities := make([]*Entity, 0, len(rt.entities))
	for _, e := range rt.entities {
		if !e.destroyed.Load() {
			entities = append(entities, e)
		}
	}
	return entities
}

// EntityCount returns the number of live entities.
func (rt *Runtime) EntityCount() int {
	rt.entitiesMu.RLock()
	defer rt.entitiesMu.RUnlock()
	return len(rt.entities)
}

// reserveHandle claims a handle for an in-flight build. It fails with
// ErrDuplicateEntity if the handle already has a live entity or another
// build in flight.
func (rt *Runtime) reserveHandle(handle Handle) error {
	rt.entitiesMu.Lock()
	defer rt.entitiesMu.Unlock()

	if _, ok := rt.entities[handle]; ok {
		return ErrDuplicateEntity
	}
	if _, ok := rt.building[handle]; ok {
		return ErrDuplicateEntity
	}
	rt.building[handle] = struct{}{}
	return nil
}

// releaseHandle drops an in-flight build reservation after a failed build.
func (rt *Runtime) releaseHandle(handle Handle) {
	rt.entitiesMu.Lock()
	delete(rt.building, handle)
	rt.entitiesMu.Unlock()
}

// addEntity publishes a fully built entity into the live registry,
// consuming its build reservation.
func (rt *Runtime) addEntity(e *Entity) {
	rt.entitiesMu.Lock()
	delete(rt.building, e.handle)
	rt.entities[e.handle] = e
	rt.entitiesMu.Unlock()

	rt.entitiesByUUIDMu.Lock()
	rt.entitiesByUUID[e.id] = e
	rt.entitiesByUUIDMu.Unlock()
}

// removeEntity unregisters a destroyed entity.
func (rt *Runtime) removeEntity(e *Entity) {
	rt.entitiesMu.Lock()
	delete(rt.entities, e.handle)
	rt.entitiesMu.Unlock()

	rt.entitiesByUUIDMu.Lock()
	delete(rt.entitiesByUUID, e.id)
	rt.entitiesByUUIDMu.Unlock()
}

// Schedule enqueues fn for execution on the scheduler goroutine after the
// given delay. If entity is non-nil the task is owned by it and is cancelled
// when the entity is destroyed. Returns a handle that cancels the task; a
// cancelled or superseded task never runs.
func (rt *Runtime) Schedule(entity *Entity, delay time.Duration, fn func()) *TaskHandle {
	if entity != nil && entity.destroyed.Load() {
		return nil
	}

	task := &scheduledTask{
		runAt:  time.Now().Add(delay),
		entity: entity,
		fn:     fn,
	}
	if entity != nil {
		entity.addTask(task)
	}
	rt.queue.Push(task)
	return &TaskHandle{task: task}
}

// Dispatch enqueues fn for execution on the scheduler goroutine as soon as
// possible. This is the fire-and-forget primitive every change notification
// goes through.
func (rt *Runtime) Dispatch(entity *Entity, fn func()) *TaskHandle {
	return rt.Schedule(entity, 0, fn)
}

// safely runs fn, recovering and logging any panic. Deferred-task failures
// are isolated per callback; they never corrupt the emitting component or
// stop other tasks.
func (rt *Runtime) safely(kind, name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			rt.log.Error("recovered panic",
				zap.String("kind", kind),
				zap.String("name", name),
				zap.Any("panic", r))
		}
	}()
	fn()
}
