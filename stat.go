package necs

import (
	"math"
	"sync"
)

// StatComponentName is the component name the stat component is registered
// and looked up under.
const StatComponentName = "stat"

// StatEpsilon is the minimum change in a stat's current value that produces
// a notification or replication. Smaller drifts still apply but are
// suppressed to avoid notification storms from negligible floating-point
// movement.
const StatEpsilon = 0.001

// StatDescriptor returns the descriptor for the built-in stat component,
// bound to the given stat definition table.
func StatDescriptor(defs []StatDefinition) Descriptor {
	return Descriptor{
		Name: StatComponentName,
		Create: func(e *Entity) (ComponentInstance, error) {
			c := &StatComponent{
				entity:     e,
				rt:         e.rt,
				defs:       make(map[string]StatDefinition, len(defs)),
				stats:      make(map[string]*statValue, len(defs)),
				dependents: make(map[string][]string),
				subs:       make(map[string]map[uint64]func(value, old float64)),
			}
			for _, def := range defs {
				c.defs[def.Name] = def
				c.stats[def.Name] = &statValue{base: def.Default, current: def.Default}
				if def.MaxStat != "" {
					c.dependents[def.MaxStat] = append(c.dependents[def.MaxStat], def.Name)
				}
			}
			// Initial values are clamped once all stats exist, since a
			// ceiling stat may be declared after its dependents.
			for _, def := range defs {
				st := c.stats[def.Name]
				st.current = c.clampLocked(def, st.current)
			}
			return c, nil
		},
	}
}

// Stats returns the entity's stat component, or nil if absent.
func Stats(e *Entity) *StatComponent {
	return Lookup[*StatComponent](e, StatComponentName)
}

// StatComponent holds an entity's clamped numeric stats. Each stat has a
// Base and a derived Current; Current always sits within [Min, effective
// max] after any mutation, where the effective max is min(Max, current
// value of MaxStat) when a ceiling stat is declared.
//
// When a stat's current value changes, every stat capped by it is re-clamped
// against the new ceiling: one level of cascade, not recursive beyond direct
// dependents. Change callbacks and replication are dispatched as deferred
// tasks.
type StatComponent struct {
	entity *Entity
	rt     *Runtime

	mu   sync.Mutex
	defs map[string]StatDefinition

	stats map[string]*statValue

	// dependents maps a stat name to the stats that use it as MaxStat.
	dependents map[string][]string

	subs    map[string]map[uint64]func(value, old float64)
	nextSub uint64
}

// statValue is the runtime value of one stat.
type statValue struct {
	base    float64
	current float64
}

// Stat returns the stat's current value. Undeclared stats read as 0.
func (c *StatComponent) Stat(name string) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	st, ok := c.stats[name]
	if !ok {
		return 0
	}
	return st.current
}

// BaseStat returns the stat's base value. Undeclared stats read as 0.
func (c *StatComponent) BaseStat(name string) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	st, ok := c.stats[name]
	if !ok {
		return 0
	}
	return st.base
}

// SetStat sets the stat's current value directly, clamped.
func (c *StatComponent) SetStat(name string, value float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.stats[name]; !ok {
		return
	}
	c.setCurrentLocked(name, value, true)
}

// ModifyStat adds delta to the stat's current value, clamped.
func (c *StatComponent) ModifyStat(name string, delta float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	st, ok := c.stats[name]
	if !ok {
		return
	}
	c.setCurrentLocked(name, st.current+delta, true)
}

// SetBaseStat sets the stat's base value and recomputes the current value
// from it, clamped.
func (c *StatComponent) SetBaseStat(name string, value float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	st, ok := c.stats[name]
	if !ok {
		return
	}
	st.base = value
	c.setCurrentLocked(name, st.base, true)
}

// ModifyBaseStat adds delta to the stat's base value and recomputes the
// current value from it, clamped.
func (c *StatComponent) ModifyBaseStat(name string, delta float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	st, ok := c.stats[name]
	if !ok {
		return
	}
	st.base += delta
	c.setCurrentLocked(name, st.base, true)
}

// RecalculateStat re-applies the clamping rules to the stat's current value
// without changing the nominal value. Used after an entity's configuration
// changes externally.
func (c *StatComponent) RecalculateStat(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	st, ok := c.stats[name]
	if !ok {
		return
	}
	c.setCurrentLocked(name, st.current, true)
}

// OnStatChanged registers a callback invoked with the new and previous
// current value whenever the named stat changes by at least StatEpsilon.
// Callbacks run as deferred tasks. The returned func unsubscribes.
// Subscribing to an undeclared stat returns a no-op unsubscribe.
func (c *StatComponent) OnStatChanged(name string, fn func(value, old float64)) (unsubscribe func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.defs[name]; !ok {
		return func() {}
	}

	c.nextSub++
	id := c.nextSub
	if c.subs[name] == nil {
		c.subs[name] = make(map[uint64]func(value, old float64))
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

// Destroy drops all subscribers. Deferred notifications still pending are
// cancelled by the owning entity.
func (c *StatComponent) Destroy() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subs = make(map[string]map[uint64]func(value, old float64))
}

// setCurrentLocked is the single mutation path for current values. Caller
// must hold the lock. cascade limits ceiling re-clamping to direct
// dependents: a dependent's own change never cascades further.
func (c *StatComponent) setCurrentLocked(name string, value float64, cascade bool) {
	def := c.defs[name]
	st := c.stats[name]

	clamped := c.clampLocked(def, value)
	old := st.current
	st.current = clamped

	if math.Abs(clamped-old) < StatEpsilon {
		return
	}

	c.notifyLocked(def, clamped, old)

	if cascade {
		for _, dep := range c.dependents[name] {
			c.setCurrentLocked(dep, c.stats[dep].current, false)
		}
	}
}

// clampLocked applies the Min floor, then the effective maximum: min(Max,
// current value of MaxStat) when both are set, or whichever bound is
// defined. Caller must hold the lock.
func (c *StatComponent) clampLocked(def StatDefinition, value float64) float64 {
	if def.Min != nil && value < *def.Min {
		value = *def.Min
	}

	ceiling := math.Inf(1)
	bounded := false
	if def.Max != nil {
		ceiling = *def.Max
		bounded = true
	}
	if def.MaxStat != "" {
		if ms, ok := c.stats[def.MaxStat]; ok {
			if !bounded || ms.current < ceiling {
				ceiling = ms.current
			}
			bounded = true
		}
	}
	if bounded && value > ceiling {
		value = ceiling
	}
	return value
}

// notifyLocked dispatches replication and subscriber callbacks for a value
// change. Caller must hold the lock; the work itself runs later on the
// scheduler.
func (c *StatComponent) notifyLocked(def StatDefinition, value, old float64) {
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
			fn(value, old)
		})
	}
}
