package types

import (
	"time"

	"github.com/google/uuid"
)

// PrimaryAction is the single prioritized coaching instruction emitted per
// analysis. Exactly one is produced regardless of how many criteria fell
// short.
type PrimaryAction struct {
	CriterionID string    `json:"criterion_id"`
	Instruction string    `json:"instruction"`
	Evidence    *Evidence `json:"evidence,omitempty"`
}

// CriterionBreakdown is the consolidated call-level outcome for one criterion
type CriterionBreakdown struct {
	CriterionID string          `json:"criterion_id"`
	Name        string          `json:"name"`
	Score       int             `json:"score"`
	MaxPoints   int             `json:"max_points"`
	Status      CriterionStatus `json:"status"`
	Evidence    []Evidence      `json:"evidence,omitempty"`
	Explanation string          `json:"explanation,omitempty"`
	Blocker     bool            `json:"blocker,omitempty"`
}

// CoachingResult is the final consolidated output for one (call, rubric
// version) pair. Immutable: recomputation under a new rubric version creates
// a new result rather than overwriting, preserving historical comparability.
type CoachingResult struct {
	ID            uuid.UUID `json:"id"`
	CallID        uuid.UUID `json:"call_id"`
	Dimension     string    `json:"dimension"`
	RubricVersion string    `json:"rubric_version"`
	CallType      CallType  `json:"call_type"`

	OverallScore int                  `json:"overall_score"`
	MaxScore     int                  `json:"max_score"`
	WinsSecured  int                  `json:"wins_secured"` // criteria with status met
	Narrative    string               `json:"narrative"`
	Action       PrimaryAction        `json:"primary_action"`
	Breakdown    []CriterionBreakdown `json:"breakdown"`

	// IsPartial is set when any chunk evaluation was degraded or the overall
	// budget expired; PartialReasons lists the human-readable causes.
	IsPartial      bool     `json:"is_partial,omitempty"`
	PartialReasons []string `json:"partial_reasons,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}
