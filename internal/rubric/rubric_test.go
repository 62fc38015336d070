package rubric

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/callcoach/callcoach/internal/types"
)

type fakeSource struct {
	rubrics map[string]*types.RubricDefinition
	loads   int
	err     error
}

func (f *fakeSource) LoadRubric(_ context.Context, dimension, version string) (*types.RubricDefinition, error) {
	f.loads++
	if f.err != nil {
		return nil, f.err
	}
	return f.rubrics[dimension+"/"+version], nil
}

func storedRubric() *types.RubricDefinition {
	return &types.RubricDefinition{
		Version:   "v2",
		Dimension: "discovery",
		Name:      "Five Wins (revised)",
		Criteria: []types.Criterion{
			{ID: "business_win", Name: "Business Win", MaxPoints: 40},
			{ID: "champion_win", Name: "Champion Win", MaxPoints: 30},
			{ID: "process_win", Name: "Process Win", MaxPoints: 30},
		},
	}
}

func TestLoad_EmbeddedDefaults(t *testing.T) {
	loader := NewLoader(nil)

	for _, dimension := range []string{"discovery", "engagement"} {
		def, err := loader.Load(context.Background(), dimension, "v1")
		require.NoError(t, err, dimension)
		assert.Equal(t, dimension, def.Dimension)
		assert.Equal(t, "v1", def.Version)
		assert.NoError(t, def.Validate())
	}
}

func TestLoad_SourcePreferredOverEmbedded(t *testing.T) {
	source := &fakeSource{rubrics: map[string]*types.RubricDefinition{
		"discovery/v2": storedRubric(),
	}}
	loader := NewLoader(source)

	def, err := loader.Load(context.Background(), "discovery", "v2")
	require.NoError(t, err)
	assert.Equal(t, "Five Wins (revised)", def.Name)

	// A version absent from the source falls back to the embedded default.
	def, err = loader.Load(context.Background(), "discovery", "v1")
	require.NoError(t, err)
	assert.Equal(t, "Five Wins", def.Name)
}

func TestLoad_CachesResolvedRubrics(t *testing.T) {
	source := &fakeSource{rubrics: map[string]*types.RubricDefinition{
		"discovery/v2": storedRubric(),
	}}
	loader := NewLoader(source)

	_, err := loader.Load(context.Background(), "discovery", "v2")
	require.NoError(t, err)
	_, err = loader.Load(context.Background(), "discovery", "v2")
	require.NoError(t, err)
	assert.Equal(t, 1, source.loads)
}

func TestLoad_NotFound(t *testing.T) {
	loader := NewLoader(nil)

	_, err := loader.Load(context.Background(), "discovery", "v99")
	require.Error(t, err)
	var notFound *NotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "discovery", notFound.Dimension)
	assert.Equal(t, "v99", notFound.Version)

	_, err = loader.Load(context.Background(), "charisma", "v1")
	assert.ErrorAs(t, err, &notFound)
}

func TestLoad_SourceErrorPropagates(t *testing.T) {
	source := &fakeSource{err: fmt.Errorf("database down")}
	loader := NewLoader(source)

	_, err := loader.Load(context.Background(), "discovery", "v1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database down")
}

func TestLoad_InvalidStoredRubricRejected(t *testing.T) {
	bad := storedRubric()
	bad.Criteria[0].MaxPoints = 50 // sum now 110
	source := &fakeSource{rubrics: map[string]*types.RubricDefinition{
		"discovery/v2": bad,
	}}
	loader := NewLoader(source)

	_, err := loader.Load(context.Background(), "discovery", "v2")
	assert.Error(t, err)
}

func TestEmbedded_DefaultsAreValid(t *testing.T) {
	def, err := Embedded("discovery", "v1")
	require.NoError(t, err)
	require.NoError(t, def.Validate())

	// The primary-criterion map covers every call type that routes coaching.
	for _, ct := range []types.CallType{
		types.CallTypeDiscovery, types.CallTypeDemo, types.CallTypeNegotiation, types.CallTypeRenewal,
	} {
		assert.Contains(t, def.PrimaryByCallType, ct)
	}
}
