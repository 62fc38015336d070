package types

import "fmt"

// RubricTotalPoints is the fixed total that criterion weights must sum to
const RubricTotalPoints = 100

// Aggregation describes how a criterion's per-chunk scores combine into a
// call-level score.
type Aggregation string

// Aggregation modes for combining per-chunk criterion scores
const (
	// AggregationMax keeps the best score observed in any chunk. Appropriate
	// for "was this ever demonstrated" criteria: a champion identified once
	// counts for the whole call.
	AggregationMax Aggregation = "max"
	// AggregationMean averages scores across chunks, for criteria that
	// represent sustained behavior.
	AggregationMean Aggregation = "mean"
)

// CallType categorizes a sales call; each type maps to a primary criterion
// for coaching-action selection.
type CallType string

// Call type constants
const (
	CallTypeDiscovery    CallType = "discovery"
	CallTypeDemo         CallType = "demo"
	CallTypeNegotiation  CallType = "negotiation"
	CallTypeRenewal      CallType = "renewal"
	CallTypeUnclassified CallType = "unclassified"
)

// Criterion represents one weighted "win" within a rubric
type Criterion struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	MaxPoints   int         `json:"max_points"`
	Description string      `json:"description"`
	Aggregation Aggregation `json:"aggregation,omitempty"` // defaults to max
}

// RubricDefinition is a versioned, named set of weighted criteria. Immutable
// per version; cached evaluations stay valid against the version they were
// computed with.
type RubricDefinition struct {
	Version   string      `json:"version"`
	Dimension string      `json:"dimension"`
	Name      string      `json:"name"`
	Context   string      `json:"context"` // static coaching-methodology text used as prompt prefix
	Criteria  []Criterion `json:"criteria"`

	// PrimaryByCallType maps a call type to the criterion coached first when
	// it scores below the "met" threshold.
	PrimaryByCallType map[CallType]string `json:"primary_by_call_type,omitempty"`
}

// Validate checks structural soundness: unique criterion IDs, positive
// weights, and weights summing to RubricTotalPoints.
func (r *RubricDefinition) Validate() error {
	if r.Version == "" {
		return fmt.Errorf("rubric version is empty")
	}
	if r.Dimension == "" {
		return fmt.Errorf("rubric dimension is empty")
	}
	if len(r.Criteria) == 0 {
		return fmt.Errorf("rubric %s has no criteria", r.Version)
	}

	sum := 0
	seen := make(map[string]bool, len(r.Criteria))
	for i, c := range r.Criteria {
		if c.ID == "" {
			return fmt.Errorf("criterion %d has empty id", i)
		}
		if seen[c.ID] {
			return fmt.Errorf("duplicate criterion id %q", c.ID)
		}
		seen[c.ID] = true
		if c.MaxPoints <= 0 {
			return fmt.Errorf("criterion %q has non-positive max_points %d", c.ID, c.MaxPoints)
		}
		sum += c.MaxPoints
	}
	if sum != RubricTotalPoints {
		return fmt.Errorf("criterion weights sum to %d, want %d", sum, RubricTotalPoints)
	}

	for callType, id := range r.PrimaryByCallType {
		if !seen[id] {
			return fmt.Errorf("primary criterion %q for call type %q not in rubric", id, callType)
		}
	}
	return nil
}

// Criterion returns the criterion with the given ID, or nil if absent
func (r *RubricDefinition) Criterion(id string) *Criterion {
	for i := range r.Criteria {
		if r.Criteria[i].ID == id {
			return &r.Criteria[i]
		}
	}
	return nil
}

// MaxScore returns the rubric's declared maximum overall score
func (r *RubricDefinition) MaxScore() int {
	return RubricTotalPoints
}
