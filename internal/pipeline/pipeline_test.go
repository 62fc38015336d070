package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/callcoach/callcoach/internal/cache"
	"github.com/callcoach/callcoach/internal/consolidator"
	"github.com/callcoach/callcoach/internal/evaluator"
	"github.com/callcoach/callcoach/internal/llm"
	"github.com/callcoach/callcoach/internal/rubric"
	"github.com/callcoach/callcoach/internal/types"
)

func discoveryResponse() *llm.Response {
	type criterion struct {
		CriterionID string           `json:"criterion_id"`
		Score       int              `json:"score"`
		Evidence    []types.Evidence `json:"evidence,omitempty"`
	}
	scores := map[string]int{
		"business_win": 30, "champion_win": 20, "technical_win": 12, "process_win": 12, "relationship_win": 8,
	}
	payload := struct {
		OverallScore int         `json:"overall_score"`
		Criteria     []criterion `json:"criteria"`
	}{OverallScore: 82}
	for _, id := range []string{"business_win", "champion_win", "technical_win", "process_win", "relationship_win"} {
		payload.Criteria = append(payload.Criteria, criterion{
			CriterionID: id,
			Score:       scores[id],
			Evidence: []types.Evidence{{
				StartSec: 0, EndSec: 30,
				Summary: "Rep and buyer worked through " + id,
				Impact:  "Demonstrates the win",
			}},
		})
	}
	data, _ := json.Marshal(payload)
	return &llm.Response{Text: string(data), Model: "mock-model"}
}

func shortTranscript() *types.Transcript {
	return &types.Transcript{
		CallID: uuid.New(),
		Utterances: []types.Utterance{
			{Speaker: "Rep", StartSec: 0, EndSec: 10, Text: "What is this outage costing you per quarter?"},
			{Speaker: "Buyer", StartSec: 10, EndSec: 30, Text: "Around two hundred thousand, and the CFO is watching it."},
			{Speaker: "Rep", StartSec: 30, EndSec: 45, Text: "Who owns the budget for fixing it?"},
		},
	}
}

// longTranscript produces a transcript that splits into multiple chunks at
// the given token budget.
func longTranscript(maxTokens int) *types.Transcript {
	filler := strings.Repeat("we talked about the renewal terms and the rollout plan ", 8)
	var utts []types.Utterance
	tokens := 0
	i := 0
	for tokens < maxTokens*3 {
		// The loop counter keeps every utterance distinct so no two chunks
		// share a cache key.
		text := fmt.Sprintf("%s turn %d", filler, i)
		utts = append(utts, types.Utterance{
			Speaker:  "Rep",
			StartSec: float64(i * 30),
			EndSec:   float64(i*30 + 25),
			Text:     text,
		})
		tokens += (len("Rep: "+text) + 3) / 4
		i++
	}
	return &types.Transcript{CallID: uuid.New(), Utterances: utts}
}

func newTestOrchestrator(provider llm.Provider, resultCache *cache.ResultCache, sink ResultSink, opts Options) *Orchestrator {
	eval := evaluator.New(provider, evaluator.Options{
		MaxRetries: 1,
		NewBackOff: func() backoff.BackOff { return &backoff.ZeroBackOff{} },
	}, nil, nil)
	return New(eval, resultCache, rubric.NewLoader(nil), sink, opts, nil, nil)
}

type memorySink struct {
	mu      sync.Mutex
	results []*types.CoachingResult
}

func (s *memorySink) SaveResult(_ context.Context, result *types.CoachingResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = append(s.results, result)
	return nil
}

func TestAnalyze_EndToEnd(t *testing.T) {
	provider := llm.NewMockProvider(discoveryResponse())
	resultCache := cache.New(cache.NewMemoryTier(), nil, time.Hour, nil, nil)
	sink := &memorySink{}
	o := newTestOrchestrator(provider, resultCache, sink, Options{})

	results, err := o.Analyze(context.Background(), Request{
		CallID:        uuid.New(),
		Transcript:    shortTranscript(),
		Dimensions:    []string{"discovery"},
		RubricVersion: "v1",
		CallType:      types.CallTypeDiscovery,
	})
	require.NoError(t, err)
	require.Len(t, results, 1)

	result := results[0]
	assert.Equal(t, 82, result.OverallScore)
	assert.Equal(t, 5, result.WinsSecured)
	assert.Equal(t, "discovery", result.Dimension)
	assert.False(t, result.IsPartial)
	assert.NotEqual(t, uuid.Nil, result.ID)
	assert.False(t, result.CreatedAt.IsZero())
	assert.Len(t, sink.results, 1)
}

func TestAnalyze_SecondCallServedFromCache(t *testing.T) {
	provider := llm.NewMockProvider(discoveryResponse())
	resultCache := cache.New(cache.NewMemoryTier(), nil, time.Hour, nil, nil)
	o := newTestOrchestrator(provider, resultCache, nil, Options{})

	req := Request{
		CallID:        uuid.New(),
		Transcript:    shortTranscript(),
		Dimensions:    []string{"discovery"},
		RubricVersion: "v1",
	}

	first, err := o.Analyze(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 1, provider.Calls())

	// Identical transcript and rubric version: no upstream call at all.
	second, err := o.Analyze(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 1, provider.Calls())
	assert.Equal(t, first[0].OverallScore, second[0].OverallScore)
}

func TestAnalyze_ForceRecomputeBypassesCache(t *testing.T) {
	provider := llm.NewMockProvider(discoveryResponse())
	resultCache := cache.New(cache.NewMemoryTier(), nil, time.Hour, nil, nil)
	o := newTestOrchestrator(provider, resultCache, nil, Options{})

	req := Request{
		CallID:        uuid.New(),
		Transcript:    shortTranscript(),
		Dimensions:    []string{"discovery"},
		RubricVersion: "v1",
	}

	_, err := o.Analyze(context.Background(), req)
	require.NoError(t, err)

	req.ForceRecompute = true
	_, err = o.Analyze(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 2, provider.Calls())

	// The recomputed evaluation was written back, so a normal request
	// still hits the cache.
	req.ForceRecompute = false
	_, err = o.Analyze(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 2, provider.Calls())
}

func TestAnalyze_MultiChunkCallsUpstreamPerChunk(t *testing.T) {
	provider := llm.NewMockProvider(discoveryResponse())
	resultCache := cache.New(cache.NewMemoryTier(), nil, time.Hour, nil, nil)
	o := newTestOrchestrator(provider, resultCache, nil, Options{
		MaxTokens:       500,
		OverlapFraction: 0.2,
	})

	_, err := o.Analyze(context.Background(), Request{
		CallID:        uuid.New(),
		Transcript:    longTranscript(500),
		Dimensions:    []string{"discovery"},
		RubricVersion: "v1",
	})
	require.NoError(t, err)
	assert.Greater(t, provider.Calls(), 1)
}

func TestAnalyze_DegradedChunkYieldsPartialResult(t *testing.T) {
	// The first chunk exhausts its retries; later chunks succeed.
	provider := llm.NewMockProvider(discoveryResponse()).FailWith(
		&llm.UpstreamUnavailableError{Provider: "mock", Message: "overloaded"},
		&llm.UpstreamUnavailableError{Provider: "mock", Message: "overloaded"},
	)
	resultCache := cache.New(cache.NewMemoryTier(), nil, time.Hour, nil, nil)
	o := newTestOrchestrator(provider, resultCache, nil, Options{
		MaxTokens:       500,
		OverlapFraction: 0.2,
		MaxConcurrency:  1,
	})

	results, err := o.Analyze(context.Background(), Request{
		CallID:        uuid.New(),
		Transcript:    longTranscript(500),
		Dimensions:    []string{"discovery"},
		RubricVersion: "v1",
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, results[0].IsPartial)
	require.NotEmpty(t, results[0].PartialReasons)
	assert.Contains(t, results[0].PartialReasons[0], "chunk 0")
}

// slowProvider blocks long enough for any analysis budget under test to
// expire before a response arrives.
type slowProvider struct {
	delay time.Duration
}

func (p *slowProvider) Complete(_ context.Context, _ llm.Request) (*llm.Response, error) {
	time.Sleep(p.delay)
	return discoveryResponse(), nil
}

func (p *slowProvider) Name() string { return "mock" }
func (p *slowProvider) Close() error { return nil }

func TestAnalyze_BudgetExpiryWithholdsScores(t *testing.T) {
	provider := &slowProvider{delay: 500 * time.Millisecond}
	resultCache := cache.New(cache.NewMemoryTier(), nil, time.Hour, nil, nil)
	o := newTestOrchestrator(provider, resultCache, nil, Options{
		OverallBudget: 30 * time.Millisecond,
	})

	results, err := o.Analyze(context.Background(), Request{
		CallID:        uuid.New(),
		Transcript:    shortTranscript(),
		Dimensions:    []string{"discovery"},
		RubricVersion: "v1",
	})
	require.NoError(t, err)
	require.Len(t, results, 1)

	// No chunk finished, so no scores are invented.
	result := results[0]
	assert.True(t, result.IsPartial)
	assert.Equal(t, 0, result.OverallScore)
	assert.Equal(t, 100, result.MaxScore)
	assert.Empty(t, result.Breakdown)
	require.NotEmpty(t, result.PartialReasons)
	assert.Contains(t, result.PartialReasons[0], "did not finish within the analysis budget")
	assert.Contains(t, result.PartialReasons, "overall analysis budget exceeded")
}

func TestAnalyze_CallerCancellationWithholdsScores(t *testing.T) {
	provider := &slowProvider{delay: 500 * time.Millisecond}
	resultCache := cache.New(cache.NewMemoryTier(), nil, time.Hour, nil, nil)
	o := newTestOrchestrator(provider, resultCache, nil, Options{})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	results, err := o.Analyze(ctx, Request{
		CallID:        uuid.New(),
		Transcript:    shortTranscript(),
		Dimensions:    []string{"discovery"},
		RubricVersion: "v1",
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, results[0].IsPartial)
	assert.Equal(t, 0, results[0].OverallScore)
}

func TestAnalyze_AllChunksExhaustedIsAnError(t *testing.T) {
	// Every attempt fails, so the single chunk exhausts its retries well
	// inside the budget. That is an upstream failure, not a timeout.
	provider := llm.NewMockProvider(discoveryResponse()).FailWith(
		&llm.UpstreamUnavailableError{Provider: "mock", Message: "overloaded"},
		&llm.UpstreamUnavailableError{Provider: "mock", Message: "overloaded"},
	)
	o := newTestOrchestrator(provider, nil, nil, Options{})

	_, err := o.Analyze(context.Background(), Request{
		CallID:        uuid.New(),
		Transcript:    shortTranscript(),
		Dimensions:    []string{"discovery"},
		RubricVersion: "v1",
	})
	require.Error(t, err)
	var allDegraded *consolidator.AllDegradedError
	require.ErrorAs(t, err, &allDegraded)
	assert.Equal(t, "discovery", allDegraded.Dimension)
}

func TestAnalyze_UnknownRubricVersionFailsFast(t *testing.T) {
	provider := llm.NewMockProvider(discoveryResponse())
	o := newTestOrchestrator(provider, nil, nil, Options{})

	_, err := o.Analyze(context.Background(), Request{
		CallID:        uuid.New(),
		Transcript:    shortTranscript(),
		Dimensions:    []string{"discovery"},
		RubricVersion: "v99",
	})
	require.Error(t, err)
	var notFound *rubric.NotFoundError
	assert.ErrorAs(t, err, &notFound)
	assert.Equal(t, 0, provider.Calls())
}

func TestAnalyze_ValidatesRequest(t *testing.T) {
	o := newTestOrchestrator(llm.NewMockProvider(), nil, nil, Options{})

	_, err := o.Analyze(context.Background(), Request{
		Dimensions:    []string{"discovery"},
		RubricVersion: "v1",
	})
	assert.Error(t, err)

	_, err = o.Analyze(context.Background(), Request{
		Transcript:    shortTranscript(),
		RubricVersion: "v1",
	})
	assert.Error(t, err)
}

func TestAnalyze_FastTierOutageStillAnalyzes(t *testing.T) {
	provider := llm.NewMockProvider(discoveryResponse())
	resultCache := cache.New(cache.UnavailableTier{}, nil, time.Hour, nil, nil)
	o := newTestOrchestrator(provider, resultCache, nil, Options{})

	req := Request{
		CallID:        uuid.New(),
		Transcript:    shortTranscript(),
		Dimensions:    []string{"discovery"},
		RubricVersion: "v1",
	}

	results, err := o.Analyze(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 82, results[0].OverallScore)

	// Without a working tier every request recomputes; still no error.
	_, err = o.Analyze(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 2, provider.Calls())
}

func TestAnalyze_MultipleDimensions(t *testing.T) {
	// Both embedded rubrics share the response shape only for discovery, so
	// script an engagement-shaped response too.
	engagementScores := map[string]int{
		"question_quality": 25, "listening_balance": 20, "objection_handling": 16, "multi_threading": 12, "momentum": 8,
	}
	type criterion struct {
		CriterionID string `json:"criterion_id"`
		Score       int    `json:"score"`
	}
	payload := struct {
		OverallScore int         `json:"overall_score"`
		Criteria     []criterion `json:"criteria"`
	}{OverallScore: 81}
	for id, score := range engagementScores {
		payload.Criteria = append(payload.Criteria, criterion{CriterionID: id, Score: score})
	}
	data, err := json.Marshal(payload)
	require.NoError(t, err)

	provider := &dimensionAwareProvider{
		responses: map[string]*llm.Response{
			"business_win":     discoveryResponse(),
			"question_quality": {Text: string(data)},
		},
	}
	resultCache := cache.New(cache.NewMemoryTier(), nil, time.Hour, nil, nil)
	o := newTestOrchestrator(provider, resultCache, nil, Options{})

	results, err := o.Analyze(context.Background(), Request{
		CallID:        uuid.New(),
		Transcript:    shortTranscript(),
		Dimensions:    []string{"discovery", "engagement"},
		RubricVersion: "v1",
	})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "discovery", results[0].Dimension)
	assert.Equal(t, "engagement", results[1].Dimension)
	assert.Equal(t, 82, results[0].OverallScore)
	assert.Equal(t, 81, results[1].OverallScore)
}

// dimensionAwareProvider routes by a criterion id appearing in the system
// prefix, since each rubric lists its own criteria there.
type dimensionAwareProvider struct {
	mu        sync.Mutex
	responses map[string]*llm.Response
	calls     int
}

func (p *dimensionAwareProvider) Complete(_ context.Context, req llm.Request) (*llm.Response, error) {
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()
	for marker, resp := range p.responses {
		if strings.Contains(req.SystemPrefix, marker) {
			return resp, nil
		}
	}
	return nil, &llm.MalformedResponseError{Message: "no scripted response for rubric"}
}

func (p *dimensionAwareProvider) Name() string { return "mock" }
func (p *dimensionAwareProvider) Close() error { return nil }
