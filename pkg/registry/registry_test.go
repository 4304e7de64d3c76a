package registry_test

import (
	"testing"

	"github.com/aretw0/fixpoint/pkg/cfa"
	"github.com/aretw0/fixpoint/pkg/domains/location"
	"github.com/aretw0/fixpoint/pkg/ports"
	"github.com/aretw0/fixpoint/pkg/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_Default(t *testing.T) {
	reg := registry.Default()
	assert.Equal(t, []string{"location", "value"}, reg.Names())

	cpa, err := reg.Build([]string{"location", "value"}, nil, map[string]map[string]any{
		"value": {"merge": "join", "tracked": []string{"x"}},
	})
	require.NoError(t, err)
	assert.Len(t, cpa.Children(), 2)
	assert.NotNil(t, cpa.Reducer())
}

func TestRegistry_Errors(t *testing.T) {
	reg := registry.Default()

	_, err := reg.Create("octagon", nil, nil)
	assert.ErrorIs(t, err, registry.ErrUnknownCPA)

	_, err = reg.Build([]string{"location", "value"}, nil, map[string]map[string]any{
		"value": {"merge": "widen"},
	})
	assert.Error(t, err)

	_, err = reg.Build(nil, nil, nil)
	assert.Error(t, err)
}

func TestRegistry_RegisterOverrides(t *testing.T) {
	reg := registry.NewRegistry()
	calls := 0
	reg.Register("loc", func(*cfa.CFA, map[string]any) (ports.CPA, error) {
		calls++
		return location.New(), nil
	})
	_, err := reg.Build([]string{"loc"}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}
