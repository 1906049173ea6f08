package necs

import (
	"sync"
	"time"
)

// StateComponentName is the component name the state component is registered
// and looked up under.
const StateComponentName = "state"

// StateDescriptor returns the descriptor for the built-in state component,
// bound to the given state definition table. Hosts register it with the
// loader alongside their own gameplay components.
func StateDescriptor(defs []StateDefinition) Descriptor {
	return Descriptor{
		Name: StateComponentName,
		Create: func(e *Entity) (ComponentInstance, error) {
			c := &StateComponent{
				entity: e,
				rt:     e.rt,
				defs:   make(map[string]StateDefinition, len(defs)),
				states: make(map[string]*stateValue, len(defs)),
				subs:   make(map[string]map[uint64]func(bool)),
			}
			for _, def := range defs {
				c.defs[def.Name] = def
				c.states[def.Name] = &stateValue{value: def.Default}
			}
			return c, nil
		},
	}
}

// States returns the entity's state component, or nil if absent.
func States(e *Entity) *StateComponent {
	return Lookup[*StateComponent](e, StateComponentName)
}

// StateComponent holds an entity's boolean state flags with declared mutual
// exclusion and optional timed auto-revert.
//
// Mutations are synchronous: SetState returns only after conflict resolution
// has settled. Change callbacks and replication are dispatched as deferred
// tasks and never block the mutating caller.
type StateComponent struct {
	entity *Entity
	rt     *Runtime

	mu      sync.Mutex
	defs    map[string]StateDefinition
	states  map[string]*stateValue
	subs    map[string]map[uint64]func(bool)
	nextSub uint64
}

// stateValue is the runtime value of one state.
type stateValue struct {
	value bool

	// timer is the active auto-revert task, if any. gen counts timer
	// generations and guards expiry: a timer may only revert the state
	// while the generation it was armed with is still current, so a
	// superseded or manually cleared timer never fires. The generation is
	// assigned under the component lock before the task is enqueued.
	timer    *TaskHandle
	gen      uint64
	deadline time.Time
}

// GetState returns the state's current value. Undeclared states read as
// false.
func (c *StateComponent) GetState(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	st, ok := c.states[name]
	if !ok {
		return false
	}
	return st.value
}

// SetState sets a state's value. Setting a state to the value it already has
// is a no-op and produces no notifications. Setting a state to true first
// forces every conflicting state to false, depth-first; the walk terminates
// on states that are already false and a visited set bounds it against
// conflict cycles.
func (c *StateComponent) SetState(name string, value bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setLocked(name, value, make(map[string]struct{}))
}

// SetStateWithDuration sets the state to true and arms a timer that forces
// it back to false after the given duration. Any timer already running for
// the state is cancelled and replaced; a replaced or cancelled timer never
// fires.
func (c *StateComponent) SetStateWithDuration(name string, duration time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	st, ok := c.states[name]
	if !ok {
		return
	}

	if st.timer != nil {
		st.timer.Cancel()
		st.timer = nil
	}

	c.setLocked(name, true, make(map[string]struct{}))

	// The generation is fixed before the task is enqueued: even a
	// zero-duration task that runs immediately blocks on the lock held here
	// and then sees a fully armed timer.
	st.gen++
	gen := st.gen
	st.timer = c.rt.Schedule(c.entity, duration, func() {
		c.expire(name, gen)
	})
	st.deadline = time.Now().Add(duration)
}

// GetStateTimeRemaining returns how long until the state's active timer
// elapses, or 0 if no timer is active.
func (c *StateComponent) GetStateTimeRemaining(name string) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()

	st, ok := c.states[name]
	if !ok || st.timer == nil {
		return 0
	}
	remaining := time.Until(st.deadline)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// OnStateChanged registers a callback invoked with the new value whenever
// the named state changes. Callbacks run as deferred tasks and must not
// assume the value they receive is still current. The returned func
// unsubscribes; multiple subscribers are independent. Subscribing to an
// undeclared state returns a no-op unsubscribe.
func (c *StateComponent) OnStateChanged(name string, fn func(value bool)) (unsubscribe func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.defs[name]; !ok {
		return func() {}
	}

	c.nextSub++
	id := c.nextSub
	if c.subs[name] == nil {
		c.subs[name] = make(map[uint64]func(bool))
	}
	c.subs[name][id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			if subs := c.subs[name]; subs != nil {
				delete(subs, id)
			}
			c.mu.Unlock()
		})
	}
}

// Destroy cancels every active timer and drops all subscribers. Deferred
// notifications still pending are cancelled by the owning entity.
func (c *StateComponent) Destroy() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, st := range c.states {
		if st.timer != nil {
			st.timer.Cancel()
			st.timer = nil
		}
	}
	c.subs = make(map[string]map[uint64]func(bool))
}

// setLocked is the single mutation path for state values. Caller must hold
// the lock. The visited set makes termination across conflict cycles an
// explicit invariant rather than relying on recursion depth.
func (c *StateComponent) setLocked(name string, value bool, visited map[string]struct{}) {
	if _, seen := visited[name]; seen {
		return
	}
	visited[name] = struct{}{}

	def, ok := c.defs[name]
	if !ok {
		return
	}
	st := c.states[name]
	if st.value == value {
		return
	}

	if value {
		for _, conflict := range def.Conflicts {
			c.setLocked(conflict, false, visited)
		}
	} else if st.timer != nil {
		st.timer.Cancel()
		st.timer = nil
		st.deadline = time.Time{}
	}

	st.value = value
	c.notifyLocked(def, value)
}

// expire is the timer's mutation path. It only reverts the state while the
// generation it was armed with is still current: a manual SetState(false)
// clears the timer and a newer SetStateWithDuration bumps the generation, so
// a stale timer must never fire.
func (c *StateComponent) expire(name string, gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	st, ok := c.states[name]
	if !ok || st.timer == nil || st.gen != gen {
		return
	}
	st.timer = nil
	st.deadline = time.Time{}
	c.setLocked(name, false, make(map[string]struct{}))
}

// notifyLocked dispatches replication and subscriber callbacks for a value
// change. Caller must hold the lock; the work itself runs later on the
// scheduler.
func (c *StateComponent) notifyLocked(def StateDefinition, value bool) {
	if def.Replicate {
		handle := c.entity.Handle()
		name := def.Name
		c.rt.Dispatch(c.entity, func() {
			handle.PublishAttribute(name, value)
		})
	}

	for _, fn := range c.subs[def.Name] {
		fn := fn
		c.rt.Dispatch(c.entity, func() {
			fn(value)
		})
	}
}
