package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validRubric() *RubricDefinition {
	return &RubricDefinition{
		Version:   "v1",
		Dimension: "discovery",
		Name:      "Five Wins",
		Criteria: []Criterion{
			{ID: "business_win", Name: "Business Win", MaxPoints: 35},
			{ID: "champion_win", Name: "Champion Win", MaxPoints: 25},
			{ID: "technical_win", Name: "Technical Win", MaxPoints: 15},
			{ID: "process_win", Name: "Process Win", MaxPoints: 15},
			{ID: "relationship_win", Name: "Relationship Win", MaxPoints: 10},
		},
		PrimaryByCallType: map[CallType]string{
			CallTypeDiscovery: "business_win",
		},
	}
}

func TestRubricDefinition_Validate(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		assert.NoError(t, validRubric().Validate())
	})

	t.Run("weights must sum to 100", func(t *testing.T) {
		r := validRubric()
		r.Criteria[0].MaxPoints = 40
		err := r.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "sum to 105")
	})

	t.Run("duplicate criterion id", func(t *testing.T) {
		r := validRubric()
		r.Criteria[1].ID = "business_win"
		assert.Error(t, r.Validate())
	})

	t.Run("non-positive weight", func(t *testing.T) {
		r := validRubric()
		r.Criteria[0].MaxPoints = 0
		assert.Error(t, r.Validate())
	})

	t.Run("primary must reference a criterion", func(t *testing.T) {
		r := validRubric()
		r.PrimaryByCallType[CallTypeDemo] = "missing_win"
		assert.Error(t, r.Validate())
	})

	t.Run("empty version", func(t *testing.T) {
		r := validRubric()
		r.Version = ""
		assert.Error(t, r.Validate())
	})
}

func TestRubricDefinition_Criterion(t *testing.T) {
	r := validRubric()
	c := r.Criterion("champion_win")
	require.NotNil(t, c)
	assert.Equal(t, 25, c.MaxPoints)
	assert.Nil(t, r.Criterion("nope"))
}

func TestStatusForScore(t *testing.T) {
	tests := []struct {
		name   string
		score  int
		max    int
		status CriterionStatus
	}{
		{"at met threshold", 28, 35, StatusMet},
		{"above met threshold", 35, 35, StatusMet},
		{"just under met", 27, 35, StatusPartial},
		{"at partial threshold", 3, 10, StatusPartial},
		{"just under partial", 2, 10, StatusMissed},
		{"zero", 0, 25, StatusMissed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.status, StatusForScore(tt.score, tt.max))
		})
	}
}
