// Package evaluator runs the structured rubric evaluation of one transcript
// chunk against one dimension's rubric.
package evaluator

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/xeipuuv/gojsonschema"

	"github.com/callcoach/callcoach/internal/llm"
	"github.com/callcoach/callcoach/internal/logger"
	"github.com/callcoach/callcoach/internal/prompts"
	"github.com/callcoach/callcoach/internal/telemetry"
	"github.com/callcoach/callcoach/internal/types"
)

//go:embed schema.json
var outputSchema string

// Options tune retry and timeout behavior
type Options struct {
	// MaxRetries bounds additional attempts after the first; 0 means use
	// the default of 2 (3 attempts total).
	MaxRetries uint
	// CallTimeout bounds each individual upstream call
	CallTimeout time.Duration
	// NewBackOff overrides the retry schedule; tests inject a zero backoff
	NewBackOff func() backoff.BackOff
}

// DefaultOptions returns the production retry settings
func DefaultOptions() Options {
	return Options{
		MaxRetries:  2,
		CallTimeout: 45 * time.Second,
	}
}

// Evaluator orchestrates LLM calls for rubric scoring and validates the
// structured output.
type Evaluator struct {
	provider llm.Provider
	opts     Options
	log      *logger.Logger
	metrics  *telemetry.Metrics
}

// New creates an Evaluator
func New(provider llm.Provider, opts Options, log *logger.Logger, metrics *telemetry.Metrics) *Evaluator {
	if opts.MaxRetries == 0 {
		opts.MaxRetries = DefaultOptions().MaxRetries
	}
	if opts.CallTimeout == 0 {
		opts.CallTimeout = DefaultOptions().CallTimeout
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Evaluator{provider: provider, opts: opts, log: log, metrics: metrics}
}

// Evaluate scores one chunk against the rubric. Transient upstream failures
// and malformed output are retried with exponential backoff up to the
// attempt ceiling; after that the last typed error propagates so the
// orchestrator can record a degraded evaluation for this chunk.
func (e *Evaluator) Evaluate(ctx context.Context, chunk *types.Chunk, rubric *types.RubricDefinition) (*types.Evaluation, error) {
	req := llm.Request{
		SystemPrefix: BuildSystemPrefix(rubric),
		UserSuffix:   buildUserSuffix(chunk),
		OutputSchema: outputSchema,
		Tier:         llm.TierStandard,
	}

	started := time.Now()
	var eval *types.Evaluation

	operation := func() error {
		callCtx, cancel := context.WithTimeout(ctx, e.opts.CallTimeout)
		defer cancel()

		resp, err := e.provider.Complete(callCtx, req)
		if err != nil {
			var unavailable *llm.UpstreamUnavailableError
			var malformed *llm.MalformedResponseError
			if errors.As(err, &unavailable) || errors.As(err, &malformed) {
				return err
			}
			return backoff.Permanent(err)
		}

		e.metrics.RecordTokenUsage(ctx, e.provider.Name(),
			resp.Usage.PromptTokens, resp.Usage.CompletionTokens,
			resp.Usage.CachedPromptTokens, resp.Usage.PromptCacheHit)

		parsed, err := e.parseResponse(resp.Text, chunk.Index, rubric)
		if err != nil {
			return err
		}
		eval = parsed
		return nil
	}

	var schedule backoff.BackOff
	if e.opts.NewBackOff != nil {
		schedule = e.opts.NewBackOff()
	} else {
		schedule = backoff.NewExponentialBackOff()
	}
	schedule = backoff.WithContext(backoff.WithMaxRetries(schedule, uint64(e.opts.MaxRetries)), ctx)

	if err := backoff.Retry(operation, schedule); err != nil {
		e.metrics.RecordEvaluation(ctx, rubric.Dimension, time.Since(started), true)
		return nil, err
	}

	e.metrics.RecordEvaluation(ctx, rubric.Dimension, time.Since(started), false)
	return eval, nil
}

// wire structs mirror the JSON shape the model is instructed to emit
type wireEvaluation struct {
	OverallScore int             `json:"overall_score"`
	Criteria     []wireCriterion `json:"criteria"`
}

type wireCriterion struct {
	CriterionID string           `json:"criterion_id"`
	Score       int              `json:"score"`
	Evidence    []types.Evidence `json:"evidence,omitempty"`
	Explanation string           `json:"explanation,omitempty"`
	Blocker     bool             `json:"blocker,omitempty"`
}

// parseResponse validates the raw text against the output schema and
// converts it into a typed Evaluation. Any structural deviation is a
// MalformedResponseError; fields are never accessed optimistically.
func (e *Evaluator) parseResponse(raw string, chunkIndex int, rubric *types.RubricDefinition) (*types.Evaluation, error) {
	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(outputSchema),
		gojsonschema.NewStringLoader(raw),
	)
	if err != nil {
		return nil, &llm.MalformedResponseError{
			Message: "response is not valid JSON",
			RawText: raw,
			Cause:   err,
		}
	}
	if !result.Valid() {
		descs := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			descs = append(descs, desc.String())
		}
		return nil, &llm.MalformedResponseError{
			Message: "schema validation failed: " + strings.Join(descs, "; "),
			RawText: raw,
		}
	}

	var wire wireEvaluation
	if err := json.Unmarshal([]byte(raw), &wire); err != nil {
		return nil, &llm.MalformedResponseError{
			Message: "failed to decode response",
			RawText: raw,
			Cause:   err,
		}
	}

	eval := &types.Evaluation{
		Dimension:     rubric.Dimension,
		RubricVersion: rubric.Version,
		ChunkIndex:    chunkIndex,
		Criteria:      make(map[string]types.CriterionEvaluation, len(rubric.Criteria)),
		DeclaredScore: wire.OverallScore,
	}

	for _, wc := range wire.Criteria {
		criterion := rubric.Criterion(wc.CriterionID)
		if criterion == nil {
			return nil, &llm.MalformedResponseError{
				Message: fmt.Sprintf("unknown criterion %q in response", wc.CriterionID),
				RawText: raw,
			}
		}
		if _, dup := eval.Criteria[wc.CriterionID]; dup {
			return nil, &llm.MalformedResponseError{
				Message: fmt.Sprintf("duplicate criterion %q in response", wc.CriterionID),
				RawText: raw,
			}
		}
		if wc.Score < 0 || wc.Score > criterion.MaxPoints {
			return nil, &llm.MalformedResponseError{
				Message: fmt.Sprintf("criterion %q score %d outside 0..%d", wc.CriterionID, wc.Score, criterion.MaxPoints),
				RawText: raw,
			}
		}

		evidence := wc.Evidence
		if len(evidence) > types.MaxEvidencePerCriterion {
			evidence = evidence[:types.MaxEvidencePerCriterion]
		}

		eval.Criteria[wc.CriterionID] = types.CriterionEvaluation{
			CriterionID: wc.CriterionID,
			Score:       wc.Score,
			MaxPoints:   criterion.MaxPoints,
			Status:      types.StatusForScore(wc.Score, criterion.MaxPoints),
			Evidence:    evidence,
			Explanation: wc.Explanation,
			Blocker:     wc.Blocker,
		}
	}

	for _, criterion := range rubric.Criteria {
		if _, ok := eval.Criteria[criterion.ID]; !ok {
			return nil, &llm.MalformedResponseError{
				Message: fmt.Sprintf("criterion %q missing from response", criterion.ID),
				RawText: raw,
			}
		}
	}

	// The declared total is validated against the per-criterion sum but
	// never corrected: a mismatch is a detectable, non-fatal inconsistency
	// and both values stay exposed.
	if sum := eval.CriterionScoreSum(); sum != wire.OverallScore {
		eval.ScoreMismatch = true
		e.log.WithFields(map[string]interface{}{
			"dimension":      rubric.Dimension,
			"chunk_index":    chunkIndex,
			"declared_score": wire.OverallScore,
			"criterion_sum":  sum,
		}).Error("declared overall score does not match criterion sum")
	}

	return eval, nil
}

// BuildSystemPrefix renders the static, cache-friendly prompt prefix for a
// rubric: methodology context plus the criteria table. Identical for every
// chunk scored under the same rubric version, which is what lets the
// provider's prompt cache absorb it.
func BuildSystemPrefix(rubric *types.RubricDefinition) string {
	var criteria strings.Builder
	for _, c := range rubric.Criteria {
		criteria.WriteString(fmt.Sprintf("- %s | %s | %d points | %s\n", c.ID, c.Name, c.MaxPoints, c.Description))
	}

	return prompts.MustRender("evaluation.json", "system-prefix", map[string]string{
		"RubricName":    rubric.Name,
		"RubricVersion": rubric.Version,
		"Context":       rubric.Context,
		"Criteria":      strings.TrimSuffix(criteria.String(), "\n"),
		"MaxEvidence":   fmt.Sprintf("%d", types.MaxEvidencePerCriterion),
	})
}

func buildUserSuffix(chunk *types.Chunk) string {
	return prompts.MustRender("evaluation.json", "evaluate-chunk", map[string]string{
		"Transcript": chunk.Text(),
		"Schema":     outputSchema,
	})
}
