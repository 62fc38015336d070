// Package pipeline provides the high-level orchestration of one analysis
// request: chunk the transcript, scatter (chunk, dimension) evaluations
// across a bounded worker pool with cache short-circuiting, gather, and
// consolidate per dimension.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/callcoach/callcoach/internal/cache"
	"github.com/callcoach/callcoach/internal/cachekey"
	"github.com/callcoach/callcoach/internal/chunker"
	"github.com/callcoach/callcoach/internal/consolidator"
	"github.com/callcoach/callcoach/internal/evaluator"
	"github.com/callcoach/callcoach/internal/logger"
	"github.com/callcoach/callcoach/internal/rubric"
	"github.com/callcoach/callcoach/internal/telemetry"
	"github.com/callcoach/callcoach/internal/types"
)

// Request describes one analysis invocation
type Request struct {
	CallID        uuid.UUID
	Transcript    *types.Transcript
	Dimensions    []string
	RubricVersion string
	CallType      types.CallType

	// ForceRecompute bypasses cache lookup but still writes through on
	// completion.
	ForceRecompute bool
}

// ResultSink is the persistence collaborator for finished coaching results
type ResultSink interface {
	SaveResult(ctx context.Context, result *types.CoachingResult) error
}

// Options hold the orchestrator's tunables
type Options struct {
	MaxTokens       int
	OverlapFraction float64
	MaxConcurrency  int
	OverallBudget   time.Duration
}

// DefaultOptions returns production defaults
func DefaultOptions() Options {
	return Options{
		MaxTokens:       80000,
		OverlapFraction: 0.20,
		MaxConcurrency:  4,
		OverallBudget:   5 * time.Minute,
	}
}

// Orchestrator wires the chunker, cache, evaluator, and consolidator
// together. Construct once at process start with its collaborators injected;
// it holds no per-request state.
type Orchestrator struct {
	eval    *evaluator.Evaluator
	cache   *cache.ResultCache
	rubrics *rubric.Loader
	sink    ResultSink // may be nil
	opts    Options
	log     *logger.Logger
	metrics *telemetry.Metrics
}

// New creates an Orchestrator
func New(eval *evaluator.Evaluator, resultCache *cache.ResultCache, rubrics *rubric.Loader, sink ResultSink, opts Options, log *logger.Logger, metrics *telemetry.Metrics) *Orchestrator {
	if opts.MaxTokens == 0 {
		opts.MaxTokens = DefaultOptions().MaxTokens
	}
	if opts.OverlapFraction == 0 {
		opts.OverlapFraction = DefaultOptions().OverlapFraction
	}
	if opts.MaxConcurrency == 0 {
		opts.MaxConcurrency = DefaultOptions().MaxConcurrency
	}
	if opts.OverallBudget == 0 {
		opts.OverallBudget = DefaultOptions().OverallBudget
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Orchestrator{
		eval:    eval,
		cache:   resultCache,
		rubrics: rubrics,
		sink:    sink,
		opts:    opts,
		log:     log,
		metrics: metrics,
	}
}

// withheldResult is the clearly-incomplete result for a dimension none of
// whose chunks finished within the analysis budget. No scores are invented:
// the overall score stays zero and the breakdown empty.
func withheldResult(def *types.RubricDefinition, req Request, reasons []string) *types.CoachingResult {
	return &types.CoachingResult{
		Dimension:      def.Dimension,
		RubricVersion:  req.RubricVersion,
		CallType:       req.CallType,
		MaxScore:       def.MaxScore(),
		Narrative:      "Analysis did not finish within the time budget; scores are withheld.",
		IsPartial:      true,
		PartialReasons: reasons,
	}
}

// task is one (chunk, dimension) evaluation unit
type task struct {
	chunkIdx int
	dimIdx   int
	key      string
}

// Analyze runs the full pipeline for one call and returns one consolidated
// CoachingResult per requested dimension, in request order. Unknown rubric
// versions fail immediately; evaluation failures degrade individual chunks
// and surface as a partial result. A dimension whose every chunk exhausted
// its retries is a hard error. Budget expiry is not: when the overall budget
// or the caller's context runs out before a dimension completes, the result
// comes back partial with its scores withheld.
func (o *Orchestrator) Analyze(ctx context.Context, req Request) ([]*types.CoachingResult, error) {
	started := time.Now()

	if req.Transcript == nil {
		return nil, fmt.Errorf("transcript is required")
	}
	if len(req.Dimensions) == 0 {
		return nil, fmt.Errorf("at least one dimension is required")
	}
	if req.CallType == "" {
		req.CallType = types.CallTypeUnclassified
	}

	// Configuration errors surface before any LLM spend.
	rubrics := make([]*types.RubricDefinition, len(req.Dimensions))
	for i, dimension := range req.Dimensions {
		def, err := o.rubrics.Load(ctx, dimension, req.RubricVersion)
		if err != nil {
			return nil, err
		}
		rubrics[i] = def
	}

	chunks, err := chunker.Chunk(req.Transcript, o.opts.MaxTokens, o.opts.OverlapFraction)
	if err != nil {
		return nil, fmt.Errorf("chunking failed: %w", err)
	}
	for _, c := range chunks {
		if c.Oversized {
			o.log.WithAnalysis(req.CallID.String(), "", req.RubricVersion).
				WithField("chunk_index", c.Index).
				Warn("single utterance exceeds chunk budget, kept whole")
		}
	}

	tasks := make([]task, 0, len(chunks)*len(req.Dimensions))
	for d, dimension := range req.Dimensions {
		for c := range chunks {
			key, err := cachekey.DeriveKey(chunks[c].Text(), dimension, req.RubricVersion)
			if err != nil {
				return nil, fmt.Errorf("cache key derivation failed: %w", err)
			}
			tasks = append(tasks, task{chunkIdx: c, dimIdx: d, key: key})
		}
	}

	evaluations, budgetExceeded := o.scatter(ctx, req, rubrics, chunks, tasks)

	results := make([]*types.CoachingResult, len(req.Dimensions))
	for d, dimension := range req.Dimensions {
		result, err := consolidator.Consolidate(evaluations[d], rubrics[d], req.CallType)
		if err != nil {
			var allDegraded *consolidator.AllDegradedError
			if !budgetExceeded || !errors.As(err, &allDegraded) {
				return nil, fmt.Errorf("dimension %s: %w", dimension, err)
			}
			// Nothing finished before the budget ran out. That is a timeout,
			// not a failure: emit the result with scores withheld.
			result = withheldResult(rubrics[d], req, allDegraded.Reasons)
		}
		result.ID = uuid.New()
		result.CallID = req.CallID
		result.CreatedAt = time.Now().UTC()
		if budgetExceeded {
			result.IsPartial = true
			result.PartialReasons = append(result.PartialReasons, "overall analysis budget exceeded")
		}
		results[d] = result
	}

	if o.sink != nil {
		for _, result := range results {
			if err := o.sink.SaveResult(ctx, result); err != nil {
				o.log.WithError(err).Error("failed to persist coaching result")
			}
		}
	}

	for _, result := range results {
		o.metrics.RecordAnalysis(ctx, result.Dimension, result.IsPartial, time.Since(started))
	}
	return results, nil
}

// scatter fans the tasks out over a bounded worker pool and gathers
// per-dimension, per-chunk evaluations. When the overall budget expires the
// gather stops waiting and the unfinished slots come back degraded, but
// in-flight evaluations are not cancelled: the LLM cost is sunk either way,
// so they run to completion and populate the cache for future requests.
func (o *Orchestrator) scatter(ctx context.Context, req Request, rubrics []*types.RubricDefinition, chunks []types.Chunk, tasks []task) ([][]types.Evaluation, bool) {
	var mu sync.Mutex
	evaluations := make([][]types.Evaluation, len(rubrics))
	filled := make([][]bool, len(rubrics))
	for d := range rubrics {
		evaluations[d] = make([]types.Evaluation, len(chunks))
		filled[d] = make([]bool, len(chunks))
	}

	// Detached from the caller: a caller timeout must not kill in-flight
	// work that is about to be cached.
	workCtx := context.WithoutCancel(ctx)

	g := &errgroup.Group{}
	g.SetLimit(o.opts.MaxConcurrency)
	for _, t := range tasks {
		g.Go(func() error {
			eval := o.runTask(workCtx, req, rubrics[t.dimIdx], &chunks[t.chunkIdx], t)
			mu.Lock()
			evaluations[t.dimIdx][t.chunkIdx] = eval
			filled[t.dimIdx][t.chunkIdx] = true
			mu.Unlock()
			return nil
		})
	}

	done := make(chan struct{})
	go func() {
		_ = g.Wait()
		close(done)
	}()

	budgetExceeded := false
	select {
	case <-done:
	case <-time.After(o.opts.OverallBudget):
		budgetExceeded = true
	case <-ctx.Done():
		budgetExceeded = true
	}

	// Snapshot under the lock; stragglers may still write afterwards but
	// only into slots this analysis no longer reads.
	mu.Lock()
	defer mu.Unlock()
	out := make([][]types.Evaluation, len(rubrics))
	for d := range rubrics {
		out[d] = make([]types.Evaluation, len(chunks))
		copy(out[d], evaluations[d])
		for c := range chunks {
			if !filled[d][c] {
				out[d][c] = types.Evaluation{
					Dimension:      rubrics[d].Dimension,
					RubricVersion:  req.RubricVersion,
					ChunkIndex:     c,
					Degraded:       true,
					DegradedReason: "evaluation did not finish within the analysis budget",
				}
			}
		}
	}
	return out, budgetExceeded
}

// runTask resolves one (chunk, dimension) evaluation: cache first unless
// recomputation is forced, then the evaluator, then write-through. Failures
// degrade rather than abort; concurrent requests may race to populate the
// same key, which is safe because both writes carry equivalent output.
func (o *Orchestrator) runTask(ctx context.Context, req Request, def *types.RubricDefinition, chunk *types.Chunk, t task) types.Evaluation {
	log := o.log.WithAnalysis(req.CallID.String(), def.Dimension, req.RubricVersion).
		WithField("chunk_index", chunk.Index)

	if !req.ForceRecompute && o.cache != nil {
		lookup, err := o.cache.Get(ctx, t.key)
		if err != nil {
			log.WithField("error", err.Error()).Warn("durable cache read failed, recomputing")
		} else if lookup.Hit {
			log.WithField("cache_tier", lookup.Tier).Debug("evaluation served from cache")
			return *lookup.Evaluation
		}
	}

	eval, err := o.eval.Evaluate(ctx, chunk, def)
	if err != nil {
		log.WithField("error", err.Error()).Error("chunk evaluation failed after retries")
		return types.Evaluation{
			Dimension:      def.Dimension,
			RubricVersion:  req.RubricVersion,
			ChunkIndex:     chunk.Index,
			Degraded:       true,
			DegradedReason: err.Error(),
		}
	}

	if o.cache != nil {
		if err := o.cache.Set(ctx, t.key, eval); err != nil {
			log.WithField("error", err.Error()).Warn("failed to cache evaluation")
		}
	}
	return *eval
}
