package necs

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntityComponentLookup(t *testing.T) {
	rec := &recorder{}
	rt := newTestRuntime(t, probeDescriptor("stat", rec))

	e, err := rt.NewEntity(newTestHandle(), nil).WithComponents("stat").Build()
	require.NoError(t, err)

	inst, ok := e.Component("stat")
	require.True(t, ok)
	assert.NotNil(t, inst)
	assert.True(t, e.Has("stat"))

	// Unknown names never fail.
	_, ok = e.Component("ghost")
	assert.False(t, ok)
	assert.False(t, e.Has("ghost"))

	probe := Lookup[*probeComponent](e, "stat")
	require.NotNil(t, probe)
	assert.Equal(t, "stat", probe.name)
}

func TestEntityHasAll(t *testing.T) {
	rec := &recorder{}
	rt := newTestRuntime(t,
		probeDescriptor("stat", rec),
		probeDescriptor("state", rec, "stat"),
		probeDescriptor("combat", rec, "state"),
	)

	e, err := rt.NewEntity(newTestHandle(), nil).
		WithComponents("stat", "state").
		Build()
	require.NoError(t, err)

	assert.True(t, e.HasAll("stat", "state"))
	assert.True(t, e.HasAll("stat"))
	assert.True(t, e.HasAll())
	assert.False(t, e.HasAll("stat", "combat"))
	assert.False(t, e.HasAll("stat", "ghost"))

	e.Destroy()
	assert.False(t, e.HasAll("stat"))
}

func TestEntityDestroyReverseOrderAndIdempotent(t *testing.T) {
	rec := &recorder{}
	rt := newTestRuntime(t,
		probeDescriptor("stat", rec),
		probeDescriptor("state", rec, "stat"),
		probeDescriptor("combat", rec, "state"),
	)

	handle := newTestHandle()
	e, err := rt.NewEntity(handle, nil).
		WithComponents("stat", "state", "combat").
		Build()
	require.NoError(t, err)

	e.Destroy()
	e.Destroy() // no-op

	assert.Equal(t, []string{
		"create:stat", "create:state", "create:combat",
		"destroy:combat", "destroy:state", "destroy:stat",
	}, rec.snapshot())

	assert.True(t, e.Destroyed())
	assert.Nil(t, rt.Entity(handle))
	assert.Nil(t, rt.EntityByUUID(e.UUID()))

	// Lookups on a destroyed entity return absent, not stale handles.
	_, ok := e.Component("stat")
	assert.False(t, ok)
}

func TestEntityDestroyPublishesEventBeforeTeardown(t *testing.T) {
	rec := &recorder{}
	rt := newTestRuntime(t, probeDescriptor("stat", rec))

	var got atomic.Pointer[Entity]
	rt.Events().Subscribe(EventEntityDestroyed, func(payload any) {
		if ev, ok := payload.(EntityDestroyedEvent); ok {
			got.Store(ev.Entity)
		}
	})

	e, err := rt.NewEntity(newTestHandle(), nil).WithComponents("stat").Build()
	require.NoError(t, err)

	e.Destroy()
	require.Eventually(t, func() bool {
		return got.Load() == e
	}, time.Second, 5*time.Millisecond)
}

func TestEntityDestroyCancelsPendingTasks(t *testing.T) {
	rt := newTestRuntime(t, probeDescriptor("stat", &recorder{}))

	e, err := rt.NewEntity(newTestHandle(), nil).WithComponents("stat").Build()
	require.NoError(t, err)

	var fired atomic.Bool
	rt.Schedule(e, 30*time.Millisecond, func() {
		fired.Store(true)
	})

	e.Destroy()
	time.Sleep(100 * time.Millisecond)
	assert.False(t, fired.Load())
}

func TestRuntimeShutdownDestroysEntities(t *testing.T) {
	rec := &recorder{}
	rt := NewRuntime(WithTickRate(5 * time.Millisecond))
	require.NoError(t, rt.ConfigureComponents(probeDescriptor("stat", rec)))
	rt.Start()

	_, err := rt.NewEntity(newTestHandle(), nil).WithComponents("stat").Build()
	require.NoError(t, err)
	_, err = rt.NewEntity(newTestHandle(), nil).WithComponents("stat").Build()
	require.NoError(t, err)

	rt.Shutdown()
	assert.Zero(t, rt.EntityCount())
}

func TestSchedulerDrivesUpdaters(t *testing.T) {
	var ticks atomic.Int64
	rt := newTestRuntime(t, Descriptor{
		Name:       "pulse",
		UpdateRate: 10 * time.Millisecond,
		Create: func(e *Entity) (ComponentInstance, error) {
			return &pulseComponent{ticks: &ticks}, nil
		},
	})

	_, err := rt.NewEntity(newTestHandle(), nil).WithComponents("pulse").Build()
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return ticks.Load() >= 3
	}, time.Second, 5*time.Millisecond)
}

type pulseComponent struct {
	ticks *atomic.Int64
}

func (p *pulseComponent) Update(dt time.Duration) {
	p.ticks.Add(1)
}

func (p *pulseComponent) Destroy() {}
