package consolidator

import (
	"fmt"
	"sort"
	"strings"

	"github.com/callcoach/callcoach/internal/types"
)

// buildNarrative synthesizes the prose summary from a fixed template: the
// strongest criteria first, then the at-risk list ordered by point weight
// descending, then a one-sentence net assessment. No LLM call; the same
// breakdown always yields the same prose.
func buildNarrative(breakdown []types.CriterionBreakdown, rubric *types.RubricDefinition, overall int) string {
	var addressed []string
	var atRisk []types.CriterionBreakdown
	for _, b := range breakdown {
		switch b.Status {
		case types.StatusMet:
			addressed = append(addressed, b.Name)
		case types.StatusMissed:
			atRisk = append(atRisk, b)
		}
	}

	// Heaviest at-risk criteria first; declaration order breaks weight ties
	// (breakdown is already in declaration order, and SliceStable keeps it).
	sort.SliceStable(atRisk, func(i, j int) bool {
		return atRisk[i].MaxPoints > atRisk[j].MaxPoints
	})

	var sb strings.Builder
	if len(addressed) > 0 {
		sb.WriteString("The rep addressed " + joinNames(addressed) + ".")
	} else {
		sb.WriteString("No criteria were fully addressed on this call.")
	}

	if len(atRisk) > 0 {
		names := make([]string, len(atRisk))
		for i, b := range atRisk {
			names[i] = fmt.Sprintf("%s (%d pts)", b.Name, b.MaxPoints)
		}
		sb.WriteString(" At risk: " + joinNames(names) + ".")
	}

	sb.WriteString(" " + netAssessment(overall, rubric.MaxScore()))
	return sb.String()
}

func netAssessment(overall, maxScore int) string {
	ratio := 0.0
	if maxScore > 0 {
		ratio = float64(overall) / float64(maxScore)
	}
	switch {
	case ratio >= types.MetThreshold:
		return fmt.Sprintf("Net: a strong call at %d/%d; keep reinforcing what worked.", overall, maxScore)
	case ratio >= types.PartialThreshold:
		return fmt.Sprintf("Net: progress at %d/%d, with clear gaps to close before this deal advances.", overall, maxScore)
	default:
		return fmt.Sprintf("Net: at %d/%d this opportunity is at risk without a change in approach.", overall, maxScore)
	}
}

func joinNames(names []string) string {
	switch len(names) {
	case 0:
		return ""
	case 1:
		return names[0]
	case 2:
		return names[0] + " and " + names[1]
	default:
		return strings.Join(names[:len(names)-1], ", ") + ", and " + names[len(names)-1]
	}
}
