package prompts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender_ValidPrompt(t *testing.T) {
	ClearCache()

	prompt, err := Render("evaluation.json", "system-prefix", map[string]string{
		"RubricName":    "Five Wins",
		"RubricVersion": "v1",
		"Context":       "methodology text",
		"Criteria":      "- business_win | Business Win | 35 points | pain",
		"MaxEvidence":   "5",
	})
	require.NoError(t, err)
	assert.Contains(t, prompt, "expert sales-call coach")
	assert.Contains(t, prompt, `"Five Wins" rubric, version v1`)
	assert.Contains(t, prompt, "business_win")
	assert.NotContains(t, prompt, "{{")
}

func TestRender_MissingDataRendersEmpty(t *testing.T) {
	ClearCache()

	prompt, err := Render("evaluation.json", "evaluate-chunk", map[string]string{
		"Transcript": "Rep: Hello",
	})
	require.NoError(t, err)
	assert.Contains(t, prompt, "Rep: Hello")
	// Schema was not supplied; the placeholder renders as empty, not as an
	// unexpanded tag.
	assert.NotContains(t, prompt, "{{.Schema}}")
}

func TestRender_InvalidFile(t *testing.T) {
	ClearCache()

	_, err := Render("nonexistent.json", "some-key", nil)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read prompt file")
}

func TestRender_InvalidKey(t *testing.T) {
	ClearCache()

	_, err := Render("evaluation.json", "nonexistent-key", nil)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestMustRender_Panics(t *testing.T) {
	ClearCache()

	assert.Panics(t, func() {
		MustRender("nonexistent.json", "some-key", nil)
	})
}

func TestMustRender_ValidPrompt(t *testing.T) {
	ClearCache()

	assert.NotPanics(t, func() {
		prompt := MustRender("evaluation.json", "evaluate-chunk", map[string]string{
			"Transcript": "Rep: Hello",
			"Schema":     "{}",
		})
		assert.NotEmpty(t, prompt)
	})
}

func TestList(t *testing.T) {
	ClearCache()

	keys, err := List("evaluation.json")
	require.NoError(t, err)
	assert.Contains(t, keys, "system-prefix")
	assert.Contains(t, keys, "evaluate-chunk")
}

func TestCaching(t *testing.T) {
	ClearCache()

	data := map[string]string{"Transcript": "Rep: Hi", "Schema": "{}"}

	// First call parses the file; second is served from the cache.
	first, err := Render("evaluation.json", "evaluate-chunk", data)
	require.NoError(t, err)
	second, err := Render("evaluation.json", "evaluate-chunk", data)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}
