package consolidator

import (
	"fmt"
	"sort"

	"github.com/callcoach/callcoach/internal/types"
)

// selectPrimaryAction picks the single coaching action, in strict priority
// order:
//
//  1. any explicit blocker: the highest-weighted blocked criterion;
//  2. the criterion designated primary for this call type, when it sits
//     below the "met" threshold;
//  3. the weakest criterion overall, by score-to-max ratio so a 5/35 ranks
//     below a 2/10.
//
// Weight ties break by rubric declaration order. A candidate without
// evidence yields to the next candidate that has some, because an action
// must point the rep at a specific moment in the call; if no candidate has
// evidence at all, the top candidate is emitted without one.
//
// Exactly one action comes out regardless of how many criteria fell short.
func selectPrimaryAction(breakdown []types.CriterionBreakdown, rubric *types.RubricDefinition, callType types.CallType) types.PrimaryAction {
	candidates := rankCandidates(breakdown, rubric, callType)
	if len(candidates) == 0 {
		// Every criterion met: reinforce the narrowest win.
		candidates = append(candidates, weakest(breakdown))
	}

	chosen := candidates[0]
	for _, candidate := range candidates {
		if len(candidate.Evidence) > 0 {
			chosen = candidate
			break
		}
	}

	action := types.PrimaryAction{
		CriterionID: chosen.CriterionID,
		Instruction: buildInstruction(chosen, rubric),
	}
	if len(chosen.Evidence) > 0 {
		ev := chosen.Evidence[0]
		action.Evidence = &ev
	}
	return action
}

// rankCandidates returns criteria in action-priority order
func rankCandidates(breakdown []types.CriterionBreakdown, rubric *types.RubricDefinition, callType types.CallType) []types.CriterionBreakdown {
	var blocked []types.CriterionBreakdown
	for _, b := range breakdown {
		if b.Blocker {
			blocked = append(blocked, b)
		}
	}
	sort.SliceStable(blocked, func(i, j int) bool {
		return blocked[i].MaxPoints > blocked[j].MaxPoints
	})

	var callTypePrimary []types.CriterionBreakdown
	if primaryID, ok := rubric.PrimaryByCallType[callType]; ok {
		for _, b := range breakdown {
			if b.CriterionID == primaryID && b.Status != types.StatusMet {
				callTypePrimary = append(callTypePrimary, b)
				break
			}
		}
	}

	var belowMet []types.CriterionBreakdown
	for _, b := range breakdown {
		if b.Status != types.StatusMet {
			belowMet = append(belowMet, b)
		}
	}
	sort.SliceStable(belowMet, func(i, j int) bool {
		return ratio(belowMet[i]) < ratio(belowMet[j])
	})

	ordered := append(blocked, callTypePrimary...)
	ordered = append(ordered, belowMet...)

	// Deduplicate while preserving priority order.
	seen := make(map[string]bool, len(ordered))
	out := ordered[:0]
	for _, b := range ordered {
		if seen[b.CriterionID] {
			continue
		}
		seen[b.CriterionID] = true
		out = append(out, b)
	}
	return out
}

func ratio(b types.CriterionBreakdown) float64 {
	if b.MaxPoints <= 0 {
		return 0
	}
	return float64(b.Score) / float64(b.MaxPoints)
}

func weakest(breakdown []types.CriterionBreakdown) types.CriterionBreakdown {
	chosen := breakdown[0]
	for _, b := range breakdown[1:] {
		if ratio(b) < ratio(chosen) {
			chosen = b
		}
	}
	return chosen
}

func buildInstruction(b types.CriterionBreakdown, rubric *types.RubricDefinition) string {
	criterion := rubric.Criterion(b.CriterionID)
	description := ""
	if criterion != nil {
		description = criterion.Description
	}

	switch {
	case b.Blocker:
		return fmt.Sprintf("Unblock %s before the next call: %s", b.Name, description)
	case b.Status == types.StatusMissed:
		return fmt.Sprintf("Prioritize %s on the next call: %s", b.Name, description)
	case b.Status == types.StatusPartial:
		return fmt.Sprintf("Strengthen %s: %s", b.Name, description)
	default:
		return fmt.Sprintf("Reinforce %s: %s", b.Name, description)
	}
}
