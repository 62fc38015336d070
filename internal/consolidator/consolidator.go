// Package consolidator merges per-chunk rubric evaluations into one
// coherent coaching result. Everything here is deterministic: the same
// evaluations always produce the same score, narrative, and action, which is
// what makes upstream caching and reproducibility hold.
package consolidator

import (
	"fmt"

	"github.com/callcoach/callcoach/internal/types"
)

// AllDegradedError reports that every chunk evaluation for a dimension was
// degraded, so there is nothing to score. Reasons carry the per-chunk causes;
// the caller decides whether that is fatal or a withheld partial result.
type AllDegradedError struct {
	Dimension string
	Reasons   []string
}

func (e *AllDegradedError) Error() string {
	return fmt.Sprintf("all %d chunk evaluations for %s degraded", len(e.Reasons), e.Dimension)
}

// Consolidate merges the ordered per-chunk evaluations for one dimension
// into a CoachingResult. Degraded evaluations are tolerated and surface as
// a partial result; at least one complete evaluation is required.
func Consolidate(evaluations []types.Evaluation, rubric *types.RubricDefinition, callType types.CallType) (*types.CoachingResult, error) {
	if len(evaluations) == 0 {
		return nil, fmt.Errorf("no evaluations to consolidate")
	}

	var complete []types.Evaluation
	var partialReasons []string
	for _, eval := range evaluations {
		if eval.Degraded {
			reason := eval.DegradedReason
			if reason == "" {
				reason = "evaluation unavailable"
			}
			partialReasons = append(partialReasons, fmt.Sprintf("chunk %d: %s", eval.ChunkIndex, reason))
			continue
		}
		complete = append(complete, eval)
	}
	if len(complete) == 0 {
		return nil, &AllDegradedError{Dimension: rubric.Dimension, Reasons: partialReasons}
	}

	breakdown := aggregate(complete, rubric)

	overall := 0
	wins := 0
	for _, b := range breakdown {
		overall += b.Score
		if b.Status == types.StatusMet {
			wins++
		}
	}
	if overall > rubric.MaxScore() {
		overall = rubric.MaxScore()
	}

	action := selectPrimaryAction(breakdown, rubric, callType)

	return &types.CoachingResult{
		Dimension:      rubric.Dimension,
		RubricVersion:  rubric.Version,
		CallType:       callType,
		OverallScore:   overall,
		MaxScore:       rubric.MaxScore(),
		WinsSecured:    wins,
		Narrative:      buildNarrative(breakdown, rubric, overall),
		Action:         action,
		Breakdown:      breakdown,
		IsPartial:      len(partialReasons) > 0,
		PartialReasons: partialReasons,
	}, nil
}

// aggregate combines per-chunk criterion scores into call-level scores,
// in rubric declaration order. Max across chunks is the default ("was this
// ever demonstrated"); criteria marked for mean aggregation average instead.
// Evidence and explanation follow the chunk that supplied the winning score.
func aggregate(complete []types.Evaluation, rubric *types.RubricDefinition) []types.CriterionBreakdown {
	breakdown := make([]types.CriterionBreakdown, 0, len(rubric.Criteria))
	for _, criterion := range rubric.Criteria {
		var best *types.CriterionEvaluation
		sum, observed := 0, 0
		blocker := false
		for i := range complete {
			ce, ok := complete[i].Criteria[criterion.ID]
			if !ok {
				continue
			}
			observed++
			sum += ce.Score
			blocker = blocker || ce.Blocker
			if best == nil || ce.Score > best.Score {
				copied := ce
				best = &copied
			}
		}

		entry := types.CriterionBreakdown{
			CriterionID: criterion.ID,
			Name:        criterion.Name,
			MaxPoints:   criterion.MaxPoints,
		}
		if best != nil {
			score := best.Score
			if criterion.Aggregation == types.AggregationMean && observed > 0 {
				// Round half up; scores are small integers.
				score = (sum + observed/2) / observed
			}
			entry.Score = score
			entry.Evidence = best.Evidence
			entry.Explanation = best.Explanation
			entry.Blocker = blocker
		}
		entry.Status = types.StatusForScore(entry.Score, criterion.MaxPoints)
		breakdown = append(breakdown, entry)
	}
	return breakdown
}
