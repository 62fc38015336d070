// Package types provides type definitions for structured data used throughout the call-coaching system.
//
//nolint:revive // types is a standard Go package name pattern
package types

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Utterance represents a single speaker turn within a call transcript
type Utterance struct {
	Speaker  string  `json:"speaker"`
	StartSec float64 `json:"start_sec"`
	EndSec   float64 `json:"end_sec"`
	Text     string  `json:"text"`
}

// Transcript represents an ordered sequence of utterances for one call.
// Transcripts are immutable once ingested; the owning call record lives
// outside this subsystem.
type Transcript struct {
	CallID     uuid.UUID   `json:"call_id"`
	Utterances []Utterance `json:"utterances"`
}

// SpeakerStats summarizes per-speaker participation in a transcript
type SpeakerStats struct {
	Speaker   string  `json:"speaker"`
	Turns     int     `json:"turns"`
	TalkSec   float64 `json:"talk_sec"`
	TalkRatio float64 `json:"talk_ratio"`
}

// ParseTranscript decodes a transcript from JSON and validates it
func ParseTranscript(data []byte) (*Transcript, error) {
	var t Transcript
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("failed to parse transcript JSON: %w", err)
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return &t, nil
}

// Validate checks that the transcript is well-formed: non-empty, utterances
// in chronological order, and each utterance carrying a speaker and text.
func (t *Transcript) Validate() error {
	if len(t.Utterances) == 0 {
		return fmt.Errorf("transcript has no utterances")
	}
	prevStart := -1.0
	for i, u := range t.Utterances {
		if strings.TrimSpace(u.Speaker) == "" {
			return fmt.Errorf("utterance %d: speaker is empty", i)
		}
		if u.EndSec < u.StartSec {
			return fmt.Errorf("utterance %d: end %.1fs before start %.1fs", i, u.EndSec, u.StartSec)
		}
		if u.StartSec < prevStart {
			return fmt.Errorf("utterance %d: out of chronological order", i)
		}
		prevStart = u.StartSec
	}
	return nil
}

// Text returns the full transcript rendered as "Speaker: text" lines.
// This rendering is the canonical form hashed for cache keys, so it must
// stay stable across releases.
func (t *Transcript) Text() string {
	var sb strings.Builder
	for i, u := range t.Utterances {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(u.Speaker)
		sb.WriteString(": ")
		sb.WriteString(u.Text)
	}
	return sb.String()
}

// DurationSec returns the span from the first utterance start to the last utterance end
func (t *Transcript) DurationSec() float64 {
	if len(t.Utterances) == 0 {
		return 0
	}
	return t.Utterances[len(t.Utterances)-1].EndSec - t.Utterances[0].StartSec
}

// ComputeSpeakerStats returns per-speaker turn counts and talk ratios,
// ordered by first appearance in the call.
func (t *Transcript) ComputeSpeakerStats() []SpeakerStats {
	var order []string
	totals := make(map[string]*SpeakerStats)
	var totalTalk float64

	for _, u := range t.Utterances {
		stats, ok := totals[u.Speaker]
		if !ok {
			stats = &SpeakerStats{Speaker: u.Speaker}
			totals[u.Speaker] = stats
			order = append(order, u.Speaker)
		}
		stats.Turns++
		talk := u.EndSec - u.StartSec
		stats.TalkSec += talk
		totalTalk += talk
	}

	out := make([]SpeakerStats, 0, len(order))
	for _, speaker := range order {
		stats := totals[speaker]
		if totalTalk > 0 {
			stats.TalkRatio = stats.TalkSec / totalTalk
		}
		out = append(out, *stats)
	}
	return out
}
