// Package cache implements the two-tier evaluation result cache: a fast
// TTL key-value tier in front of the durable store. The fast tier is a cost
// optimization, never a correctness dependency: when it is down, every
// lookup degrades to a miss and the pipeline recomputes.
package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/callcoach/callcoach/internal/cachekey"
	"github.com/callcoach/callcoach/internal/logger"
	"github.com/callcoach/callcoach/internal/telemetry"
	"github.com/callcoach/callcoach/internal/types"
)

// FastTier is a TTL key-value store. Implementations report outages with
// CacheUnavailableError; ResultCache converts those into misses.
type FastTier interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	Keys(ctx context.Context) ([]string, error)
}

// DurableStore is the persisted-results fallback. A fast-tier miss does not
// mean "never computed": evaluations live here permanently.
type DurableStore interface {
	LoadEvaluation(ctx context.Context, key string) (*types.Evaluation, error)
	SaveEvaluation(ctx context.Context, key string, eval *types.Evaluation) error
	DeleteEvaluations(ctx context.Context, dimension, rubricVersion string) (int64, error)
}

// Lookup is the result of a cache read: a hit carrying the evaluation and
// the tier that served it, or a miss. Modeled as a value, not an error;
// errors are reserved for true faults.
type Lookup struct {
	Hit        bool
	Tier       string // "fast" or "durable" when Hit
	Evaluation *types.Evaluation
}

// Miss is the zero Lookup
var Miss = Lookup{}

// Predicate selects cache keys for bulk invalidation. Empty fields match
// anything, so {Dimension: "discovery"} invalidates every rubric version of
// that dimension.
type Predicate struct {
	Dimension     string
	RubricVersion string
}

// Matches reports whether a derived cache key satisfies the predicate
func (p Predicate) Matches(key string) bool {
	_, dimension, version, err := cachekey.Components(key)
	if err != nil {
		return false
	}
	if p.Dimension != "" && p.Dimension != dimension {
		return false
	}
	if p.RubricVersion != "" && p.RubricVersion != version {
		return false
	}
	return true
}

// ResultCache coordinates the two tiers. Either tier may be nil: a nil fast
// tier always misses, a nil durable store turns the cache into fast-only.
type ResultCache struct {
	fast    FastTier
	durable DurableStore
	ttl     time.Duration
	log     *logger.Logger
	metrics *telemetry.Metrics
}

// New builds a ResultCache
func New(fast FastTier, durable DurableStore, ttl time.Duration, log *logger.Logger, metrics *telemetry.Metrics) *ResultCache {
	if log == nil {
		log = logger.Discard()
	}
	return &ResultCache{
		fast:    fast,
		durable: durable,
		ttl:     ttl,
		log:     log,
		metrics: metrics,
	}
}

// Get looks the key up in the fast tier, then the durable store. Fast-tier
// failures are logged and treated as misses; only durable-store faults
// produce an error. A durable hit is written back to the fast tier.
func (c *ResultCache) Get(ctx context.Context, key string) (Lookup, error) {
	if c.fast != nil {
		data, ok, err := c.fast.Get(ctx, key)
		switch {
		case err != nil:
			c.log.WithError(err).Warn("fast cache tier read failed, falling through")
		case ok:
			var eval types.Evaluation
			if err := json.Unmarshal(data, &eval); err != nil {
				c.log.WithError(err).WithField("cache_key", key).Warn("corrupt fast tier entry, evicting")
				_ = c.fast.Delete(ctx, key)
			} else {
				c.metrics.RecordCacheLookup(ctx, "fast", true)
				return Lookup{Hit: true, Tier: "fast", Evaluation: &eval}, nil
			}
		}
		c.metrics.RecordCacheLookup(ctx, "fast", false)
	}

	if c.durable == nil {
		return Miss, nil
	}

	eval, err := c.durable.LoadEvaluation(ctx, key)
	if err != nil {
		return Miss, err
	}
	if eval == nil {
		c.metrics.RecordCacheLookup(ctx, "durable", false)
		return Miss, nil
	}
	c.metrics.RecordCacheLookup(ctx, "durable", true)

	// Promote so the next lookup stays off the database.
	c.setFast(ctx, key, eval)

	return Lookup{Hit: true, Tier: "durable", Evaluation: eval}, nil
}

// Set writes the evaluation through both tiers. Fast-tier failures are
// no-ops by contract; the durable write's error is returned since losing it
// silently would discard paid-for LLM output.
func (c *ResultCache) Set(ctx context.Context, key string, eval *types.Evaluation) error {
	c.setFast(ctx, key, eval)
	if c.durable == nil {
		return nil
	}
	return c.durable.SaveEvaluation(ctx, key, eval)
}

func (c *ResultCache) setFast(ctx context.Context, key string, eval *types.Evaluation) {
	if c.fast == nil {
		return
	}
	data, err := json.Marshal(eval)
	if err != nil {
		c.log.WithError(err).Error("failed to marshal evaluation for cache")
		return
	}
	if err := c.fast.Set(ctx, key, data, c.ttl); err != nil {
		c.log.WithError(err).Warn("fast cache tier write failed, skipping")
	}
}

// Invalidate removes every entry matching the predicate from both tiers,
// returning how many durable rows were deleted. Used when a rubric is
// revised, without needing individual transcript hashes.
func (c *ResultCache) Invalidate(ctx context.Context, pred Predicate) (int64, error) {
	if c.fast != nil {
		keys, err := c.fast.Keys(ctx)
		if err != nil {
			c.log.WithError(err).Warn("fast cache tier enumeration failed during invalidation")
		} else {
			var matched []string
			for _, key := range keys {
				if pred.Matches(key) {
					matched = append(matched, key)
				}
			}
			if len(matched) > 0 {
				if err := c.fast.Delete(ctx, matched...); err != nil {
					c.log.WithError(err).Warn("fast cache tier delete failed during invalidation")
				}
			}
		}
	}

	if c.durable == nil {
		return 0, nil
	}
	return c.durable.DeleteEvaluations(ctx, pred.Dimension, pred.RubricVersion)
}
