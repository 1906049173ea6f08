package necs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleDefinitions = `
states:
  - name: Stunned
    replicate: true
    conflicts: [Sprinting]
  - name: Sprinting
    conflicts: [Stunned]
stats:
  - name: MaxHealth
    default: 20
    min: 1
    max: 100
  - name: Health
    default: 20
    min: 0
    max_stat: MaxHealth
    replicate: true
archetypes:
  fighter: [state, stat]
`

func TestParseDefinitions(t *testing.T) {
	defs, err := ParseDefinitions([]byte(sampleDefinitions))
	require.NoError(t, err)

	require.Len(t, defs.States, 2)
	assert.Equal(t, "Stunned", defs.States[0].Name)
	assert.True(t, defs.States[0].Replicate)
	assert.Equal(t, []string{"Sprinting"}, defs.States[0].Conflicts)

	require.Len(t, defs.Stats, 2)
	health := defs.Stats[1]
	assert.Equal(t, "Health", health.Name)
	assert.Equal(t, 20.0, health.Default)
	require.NotNil(t, health.Min)
	assert.Equal(t, 0.0, *health.Min)
	assert.Nil(t, health.Max)
	assert.Equal(t, "MaxHealth", health.MaxStat)

	assert.Equal(t, []string{"state", "stat"}, defs.Archetypes["fighter"])
}

func TestParseDefinitionsRejectsMalformedYAML(t *testing.T) {
	_, err := ParseDefinitions([]byte("states: {not a list"))
	assert.Error(t, err)
}

func TestLoadDefinitions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "defs.yml")
	require.NoError(t, os.WriteFile(path, []byte(sampleDefinitions), 0o644))

	defs, err := LoadDefinitions(path)
	require.NoError(t, err)
	assert.Len(t, defs.Stats, 2)

	_, err = LoadDefinitions(filepath.Join(t.TempDir(), "missing.yml"))
	assert.Error(t, err)
}

func TestDefinitionsValidate(t *testing.T) {
	for name, defs := range map[string]Definitions{
		"empty state name": {
			States: []StateDefinition{{Name: ""}},
		},
		"duplicate state": {
			States: []StateDefinition{{Name: "Stunned"}, {Name: "Stunned"}},
		},
		"undeclared conflict": {
			States: []StateDefinition{{Name: "Stunned", Conflicts: []string{"Flying"}}},
		},
		"duplicate stat": {
			Stats: []StatDefinition{{Name: "Health"}, {Name: "Health"}},
		},
		"self max_stat": {
			Stats: []StatDefinition{{Name: "Health", MaxStat: "Health"}},
		},
		"undeclared max_stat": {
			Stats: []StatDefinition{{Name: "Health", MaxStat: "MaxHealth"}},
		},
		"min above max": {
			Stats: []StatDefinition{{Name: "Health", Min: fptr(10), Max: fptr(5)}},
		},
	} {
		defs := defs
		t.Run(name, func(t *testing.T) {
			assert.Error(t, defs.Validate())
		})
	}

	assert.NoError(t, (&Definitions{}).Validate())
}
