// Package necs provides a Named Entity Component System for game servers.
//
// NECS attaches named, interdependent component behaviours to live game
// entities and manages their ordered construction and teardown. It ships
// with three built-in subsystems entities rely on: a conflict-resolving
// boolean state machine, a clamped numeric stat system with dependent
// ranges, and a priority-ordered value-modifier pipeline. A parallel hook
// catalog toggles temporary effect bundles (buffs and debuffs) on an entity
// at any time.
//
// # Quick Start
//
// Configure a runtime once at startup:
//
//	defs, err := necs.LoadDefinitions("definitions.yml")
//	if err != nil {
//	    panic(err)
//	}
//
//	rt := necs.NewRuntime(necs.WithLogger(log))
//	err = rt.ConfigureComponents(
//	    necs.StateDescriptor(defs.States),
//	    necs.StatDescriptor(defs.Stats),
//	    necs.ModifierDescriptor(),
//	    necs.HookDescriptor(),
//	    CombatDescriptor(), // your own components
//	)
//	rt.ConfigureArchetypes(defs.Archetypes)
//	rt.Start()
//
// Build an entity around an engine handle:
//
//	e, err := rt.NewEntity(handle, ctx).WithArchetype("Fighter").Build()
//
// # Components
//
// Components are declared by descriptors: a unique name, the names of the
// components they depend on, an optional update rate and a constructor. The
// loader resolves a deterministic construction order from the declared
// dependencies; the builder instantiates components in that order and rolls
// the whole entity back if any constructor fails.
//
// Sibling components look each other up by name through the entity, never by
// direct reference:
//
//	if stats := necs.Stats(e); stats != nil {
//	    stats.ModifyStat("Health", -damage)
//	}
//
// # Scheduling
//
// Mutations are synchronous and return only after internal state, including
// cascading stat recalculation, is consistent. Every change notification,
// replication push and timer expiry is dispatched as an independent deferred
// task on the runtime's scheduler: dispatch never blocks, one failing
// callback never stops the others, and work enqueued by a single mutation
// stream runs in enqueue order.
package necs

// Version is the NECS version.
const Version = "1.0.0"
