package necs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func desc(name string, deps ...string) Descriptor {
	return Descriptor{
		Name:         name,
		Dependencies: deps,
		Create: func(e *Entity) (ComponentInstance, error) {
			return &probeComponent{name: name, rec: &recorder{}}, nil
		},
	}
}

func TestLoaderOrdersDependenciesFirst(t *testing.T) {
	l := newComponentLoader()
	err := l.Configure([]Descriptor{
		desc("combat", "stat", "state"),
		desc("stat"),
		desc("state", "stat"),
		desc("hook"),
	})
	require.NoError(t, err)

	order := l.AllNames()
	pos := make(map[string]int, len(order))
	for i, name := range order {
		pos[name] = i
	}

	assert.Less(t, pos["stat"], pos["state"])
	assert.Less(t, pos["stat"], pos["combat"])
	assert.Less(t, pos["state"], pos["combat"])
}

func TestLoaderOrderIsDeterministic(t *testing.T) {
	// Independent components keep declaration order.
	l := newComponentLoader()
	err := l.Configure([]Descriptor{desc("c"), desc("a"), desc("b")})
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "a", "b"}, l.AllNames())
}

func TestLoaderRejectsSecondConfigure(t *testing.T) {
	l := newComponentLoader()
	require.NoError(t, l.Configure([]Descriptor{desc("a")}))

	err := l.Configure([]Descriptor{desc("b")})
	require.ErrorIs(t, err, ErrAlreadyConfigured)
}

func TestLoaderRejectsDuplicateNames(t *testing.T) {
	l := newComponentLoader()
	err := l.Configure([]Descriptor{desc("a"), desc("a")})
	require.ErrorIs(t, err, ErrDuplicateComponent)
	assert.False(t, l.Configured())
}

func TestLoaderRejectsUnknownDependency(t *testing.T) {
	l := newComponentLoader()
	err := l.Configure([]Descriptor{desc("a", "ghost")})
	require.ErrorIs(t, err, ErrUnknownDependency)
}

func TestLoaderRejectsCycle(t *testing.T) {
	l := newComponentLoader()
	err := l.Configure([]Descriptor{desc("a", "b"), desc("b", "a")})
	require.ErrorIs(t, err, ErrCyclicDependency)

	// No order is registered; the loader may be configured again.
	assert.False(t, l.Configured())
	assert.Empty(t, l.AllNames())
	require.NoError(t, l.Configure([]Descriptor{desc("a"), desc("b", "a")}))
}

func TestLoaderResolveFiltersIntoGlobalOrder(t *testing.T) {
	l := newComponentLoader()
	require.NoError(t, l.Configure([]Descriptor{
		desc("stat"),
		desc("state", "stat"),
		desc("modifier"),
		desc("combat", "state"),
	}))

	resolved, err := l.Resolve([]string{"combat", "stat"})
	require.NoError(t, err)

	names := make([]string, len(resolved))
	for i, d := range resolved {
		names[i] = d.Name
	}
	assert.Equal(t, []string{"stat", "combat"}, names)
}

func TestLoaderResolveUnknownComponent(t *testing.T) {
	l := newComponentLoader()
	require.NoError(t, l.Configure([]Descriptor{desc("a")}))

	_, err := l.Resolve([]string{"a", "ghost"})
	require.ErrorIs(t, err, ErrUnknownComponent)
}
