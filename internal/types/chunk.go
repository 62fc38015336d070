package types

// Chunk is a contiguous token-bounded window of a transcript's utterances.
// Chunks are derived, not stored: identical inputs always reproduce identical
// boundaries, which is what lets cache keys hash chunk content.
type Chunk struct {
	Index      int         `json:"index"`
	Utterances []Utterance `json:"utterances"`
	TokenCount int         `json:"token_count"`

	// OverlapTokens is how many estimated tokens at the head of this chunk
	// repeat the tail of the previous chunk.
	OverlapTokens int `json:"overlap_tokens,omitempty"`

	// Oversized flags the degenerate case of a single utterance exceeding
	// the maximum on its own.
	Oversized bool `json:"oversized,omitempty"`
}

// Text renders the chunk in the same canonical form as Transcript.Text
func (c *Chunk) Text() string {
	t := Transcript{Utterances: c.Utterances}
	return t.Text()
}
