package necs

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildConstructsInDependencyOrder(t *testing.T) {
	rec := &recorder{}
	rt := newTestRuntime(t,
		probeDescriptor("combat", rec, "stat"),
		probeDescriptor("stat", rec),
		probeDescriptor("state", rec, "stat"),
	)

	e, err := rt.NewEntity(newTestHandle(), nil).
		WithComponents("combat", "state", "stat").
		Build()
	require.NoError(t, err)

	assert.Equal(t, []string{"create:stat", "create:combat", "create:state"}, rec.snapshot())
	assert.Equal(t, []string{"stat", "combat", "state"}, e.ComponentNames())
}

func TestBuildRollsBackOnConstructionFailure(t *testing.T) {
	rec := &recorder{}
	boom := errors.New("boom")
	rt := newTestRuntime(t,
		probeDescriptor("stat", rec),
		probeDescriptor("state", rec, "stat"),
		Descriptor{
			Name:         "combat",
			Dependencies: []string{"state"},
			Create: func(e *Entity) (ComponentInstance, error) {
				return nil, boom
			},
		},
	)

	handle := newTestHandle()
	_, err := rt.NewEntity(handle, nil).
		WithComponents("stat", "state", "combat").
		Build()
	require.ErrorIs(t, err, ErrComponentConstruction)
	require.ErrorIs(t, err, boom)

	// Already-created instances were destroyed in reverse creation order
	// and nothing was published.
	assert.Equal(t, []string{
		"create:stat", "create:state",
		"destroy:state", "destroy:stat",
	}, rec.snapshot())
	assert.Nil(t, rt.Entity(handle))
	assert.Zero(t, rt.EntityCount())

	// The handle is free for a fresh build.
	_, err = rt.NewEntity(handle, nil).WithComponents("stat").Build()
	require.NoError(t, err)
}

func TestBuildRejectsDuplicateHandle(t *testing.T) {
	rec := &recorder{}
	rt := newTestRuntime(t, probeDescriptor("stat", rec))

	handle := newTestHandle()
	_, err := rt.NewEntity(handle, nil).WithComponents("stat").Build()
	require.NoError(t, err)

	_, err = rt.NewEntity(handle, nil).WithComponents("stat").Build()
	require.ErrorIs(t, err, ErrDuplicateEntity)
}

func TestBuildWithArchetype(t *testing.T) {
	rec := &recorder{}
	rt := newTestRuntime(t,
		probeDescriptor("stat", rec),
		probeDescriptor("state", rec, "stat"),
	)
	require.NoError(t, rt.ConfigureArchetypes(map[string][]string{
		"Fighter": {"state", "stat"},
	}))

	e, err := rt.NewEntity(newTestHandle(), nil).WithArchetype("Fighter").Build()
	require.NoError(t, err)
	assert.Equal(t, []string{"stat", "state"}, e.ComponentNames())
}

func TestBuildUnknownArchetype(t *testing.T) {
	rt := newTestRuntime(t, probeDescriptor("stat", &recorder{}))

	_, err := rt.NewEntity(newTestHandle(), nil).WithArchetype("Ghost").Build()
	require.ErrorIs(t, err, ErrUnknownArchetype)
}

func TestBuildUnknownComponent(t *testing.T) {
	rt := newTestRuntime(t, probeDescriptor("stat", &recorder{}))

	_, err := rt.NewEntity(newTestHandle(), nil).WithComponents("ghost").Build()
	require.ErrorIs(t, err, ErrUnknownComponent)
}

func TestBuildPublishesEntityBuilt(t *testing.T) {
	rt := newTestRuntime(t, probeDescriptor("stat", &recorder{}))

	var got atomic.Pointer[Entity]
	rt.Events().Subscribe(EventEntityBuilt, func(payload any) {
		if ev, ok := payload.(EntityBuiltEvent); ok {
			got.Store(ev.Entity)
		}
	})

	e, err := rt.NewEntity(newTestHandle(), nil).WithComponents("stat").Build()
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return got.Load() == e
	}, time.Second, 5*time.Millisecond)
}

func TestBuildContextReachesCreate(t *testing.T) {
	type buildCtx struct{ Level int }

	var seen atomic.Int64
	rt := newTestRuntime(t, Descriptor{
		Name: "stat",
		Create: func(e *Entity) (ComponentInstance, error) {
			if ctx, ok := e.Context().(buildCtx); ok {
				seen.Store(int64(ctx.Level))
			}
			return &probeComponent{name: "stat", rec: &recorder{}}, nil
		},
	})

	_, err := rt.NewEntity(newTestHandle(), buildCtx{Level: 7}).WithComponents("stat").Build()
	require.NoError(t, err)
	assert.EqualValues(t, 7, seen.Load())
}
