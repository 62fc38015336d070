package types

// CriterionStatus is the qualitative tier derived from a criterion's
// score/max ratio.
type CriterionStatus string

// Criterion status tiers. The thresholds are design constants, not tunable
// per call: met at 80% of max and above, partial from 30% to just under 80%,
// missed below 30%.
const (
	StatusMet     CriterionStatus = "met"
	StatusPartial CriterionStatus = "partial"
	StatusMissed  CriterionStatus = "missed"
)

// Status ratio thresholds
const (
	MetThreshold     = 0.80
	PartialThreshold = 0.30
)

// StatusForScore derives the status tier for a score against a criterion maximum
func StatusForScore(score, maxPoints int) CriterionStatus {
	if maxPoints <= 0 {
		return StatusMissed
	}
	ratio := float64(score) / float64(maxPoints)
	switch {
	case ratio >= MetThreshold:
		return StatusMet
	case ratio >= PartialThreshold:
		return StatusPartial
	default:
		return StatusMissed
	}
}

// MaxEvidencePerCriterion bounds response size from the LLM
const MaxEvidencePerCriterion = 5

// Evidence is a timestamped multi-turn exchange supporting a criterion score
type Evidence struct {
	StartSec float64 `json:"start_sec"`
	EndSec   float64 `json:"end_sec"`
	Summary  string  `json:"summary"` // multi-turn exchange summary, not an isolated quote
	Impact   string  `json:"impact"`  // why this exchange matters for the criterion
}

// CriterionEvaluation is the scored outcome for one criterion within one chunk
type CriterionEvaluation struct {
	CriterionID string          `json:"criterion_id"`
	Score       int             `json:"score"`
	MaxPoints   int             `json:"max_points"`
	Status      CriterionStatus `json:"status"`
	Evidence    []Evidence      `json:"evidence,omitempty"`
	Explanation string          `json:"explanation,omitempty"` // present when status is not met
	Blocker     bool            `json:"blocker,omitempty"`     // explicit deal-blocker annotation
}

// Evaluation is the structured result of scoring one chunk against one
// dimension's rubric. Never mutated after creation; a new rubric version
// produces a new Evaluation.
type Evaluation struct {
	Dimension     string                         `json:"dimension"`
	RubricVersion string                         `json:"rubric_version"`
	ChunkIndex    int                            `json:"chunk_index"`
	Criteria      map[string]CriterionEvaluation `json:"criteria"`

	// DeclaredScore is the overall score the LLM reported. ScoreMismatch is
	// set when it disagrees with the sum of per-criterion scores; both values
	// are kept, never reconciled silently.
	DeclaredScore int  `json:"declared_score"`
	ScoreMismatch bool `json:"score_mismatch,omitempty"`

	// Degraded marks an evaluation whose upstream call failed after retries:
	// the score is withheld and DegradedReason explains why.
	Degraded       bool   `json:"degraded,omitempty"`
	DegradedReason string `json:"degraded_reason,omitempty"`
}

// CriterionScoreSum returns the sum of per-criterion scores
func (e *Evaluation) CriterionScoreSum() int {
	sum := 0
	for _, c := range e.Criteria {
		sum += c.Score
	}
	return sum
}
