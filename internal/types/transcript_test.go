package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTranscript_Valid(t *testing.T) {
	data := []byte(`{
		"utterances": [
			{"speaker": "Rep", "start_sec": 0, "end_sec": 5.5, "text": "Thanks for joining."},
			{"speaker": "Buyer", "start_sec": 5.5, "end_sec": 12, "text": "Happy to be here."}
		]
	}`)

	transcript, err := ParseTranscript(data)
	require.NoError(t, err)
	require.Len(t, transcript.Utterances, 2)
	assert.Equal(t, "Rep", transcript.Utterances[0].Speaker)
	assert.InDelta(t, 12.0, transcript.DurationSec(), 0.001)
}

func TestParseTranscript_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"empty utterances", `{"utterances": []}`},
		{"missing speaker", `{"utterances": [{"speaker": " ", "start_sec": 0, "end_sec": 1, "text": "hi"}]}`},
		{"end before start", `{"utterances": [{"speaker": "Rep", "start_sec": 5, "end_sec": 2, "text": "hi"}]}`},
		{"out of order", `{"utterances": [
			{"speaker": "Rep", "start_sec": 10, "end_sec": 11, "text": "a"},
			{"speaker": "Buyer", "start_sec": 3, "end_sec": 4, "text": "b"}
		]}`},
		{"not json", `nope`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseTranscript([]byte(tt.data))
			assert.Error(t, err)
		})
	}
}

func TestTranscript_Text(t *testing.T) {
	transcript := &Transcript{Utterances: []Utterance{
		{Speaker: "Rep", StartSec: 0, EndSec: 1, Text: "Hello there"},
		{Speaker: "Buyer", StartSec: 1, EndSec: 2, Text: "Hi"},
	}}

	assert.Equal(t, "Rep: Hello there\nBuyer: Hi", transcript.Text())
}

func TestComputeSpeakerStats(t *testing.T) {
	transcript := &Transcript{Utterances: []Utterance{
		{Speaker: "Rep", StartSec: 0, EndSec: 30, Text: "a"},
		{Speaker: "Buyer", StartSec: 30, EndSec: 90, Text: "b"},
		{Speaker: "Rep", StartSec: 90, EndSec: 120, Text: "c"},
	}}

	stats := transcript.ComputeSpeakerStats()
	require.Len(t, stats, 2)

	// Ordered by first appearance.
	assert.Equal(t, "Rep", stats[0].Speaker)
	assert.Equal(t, 2, stats[0].Turns)
	assert.InDelta(t, 0.5, stats[0].TalkRatio, 0.001)
	assert.Equal(t, "Buyer", stats[1].Speaker)
	assert.InDelta(t, 0.5, stats[1].TalkRatio, 0.001)
}
