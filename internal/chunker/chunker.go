// Package chunker splits call transcripts into overlapping token-bounded
// windows suitable for LLM evaluation.
package chunker

import (
	"fmt"

	"github.com/callcoach/callcoach/internal/types"
)

// EstimateTokens approximates the token count of text as ceil(len/4). The
// estimate only has to be stable and roughly proportional; cache keys hash
// chunk content, not token counts, so a tokenizer swap does not invalidate
// cached evaluations.
func EstimateTokens(text string) int {
	return (len(text) + 3) / 4
}

func utteranceTokens(u types.Utterance) int {
	// Matches the canonical "Speaker: text" rendering hashed for cache keys.
	return EstimateTokens(u.Speaker + ": " + u.Text)
}

// Chunk splits the transcript into ordered overlapping windows of at most
// maxTokens estimated tokens. Consecutive chunks share roughly
// overlapFraction*maxTokens tokens of trailing context, so an exchange that
// straddles a boundary is visible to both windows.
//
// The split is fully deterministic: identical inputs always yield identical
// boundaries.
func Chunk(t *types.Transcript, maxTokens int, overlapFraction float64) ([]types.Chunk, error) {
	if maxTokens <= 0 {
		return nil, fmt.Errorf("max tokens must be positive, got %d", maxTokens)
	}
	if overlapFraction < 0 || overlapFraction >= 0.5 {
		return nil, fmt.Errorf("overlap fraction must be in [0, 0.5), got %.2f", overlapFraction)
	}
	if len(t.Utterances) == 0 {
		return nil, fmt.Errorf("transcript has no utterances")
	}

	overlapTarget := int(overlapFraction * float64(maxTokens))
	utts := t.Utterances

	var chunks []types.Chunk
	start := 0
	overlapTokens := 0
	for start < len(utts) {
		tokens := 0
		end := start
		oversized := false
		for end < len(utts) {
			ut := utteranceTokens(utts[end])
			if end == start && ut > maxTokens {
				// A single utterance exceeding the budget gets its own
				// flagged chunk; there is no finer split boundary.
				tokens = ut
				end++
				oversized = true
				break
			}
			if tokens+ut > maxTokens {
				break
			}
			tokens += ut
			end++
		}

		chunks = append(chunks, types.Chunk{
			Index:         len(chunks),
			Utterances:    utts[start:end],
			TokenCount:    tokens,
			OverlapTokens: overlapTokens,
			Oversized:     oversized,
		})

		if end >= len(utts) {
			break
		}

		// Re-include trailing utterances until the overlap target is met,
		// always advancing past the previous chunk's start.
		next := end
		overlapTokens = 0
		if overlapTarget > 0 {
			for next > start+1 && overlapTokens < overlapTarget {
				overlapTokens += utteranceTokens(utts[next-1])
				next--
			}
		}
		start = next
	}
	return chunks, nil
}
