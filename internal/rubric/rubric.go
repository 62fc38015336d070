// Package rubric loads versioned rubric definitions. Lookup order is the
// durable store first, then the embedded defaults, so the pipeline runs
// without a database while deployments can ship revised rubrics through the
// store.
package rubric

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/callcoach/callcoach/internal/types"
)

//go:embed defaults/*.json
var defaultFiles embed.FS

// NotFoundError is a caller configuration error: the requested rubric
// version does not exist anywhere. Fatal, never retried.
type NotFoundError struct {
	Dimension string
	Version   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("rubric not found: dimension %q version %q", e.Dimension, e.Version)
}

// Source is the persistence collaborator's rubric lookup. (nil, nil) means
// not present.
type Source interface {
	LoadRubric(ctx context.Context, dimension, version string) (*types.RubricDefinition, error)
}

// Loader resolves rubric definitions with an in-process cache. Rubric
// versions are immutable, so cached entries never expire.
type Loader struct {
	source Source // may be nil

	mu    sync.RWMutex
	cache map[string]*types.RubricDefinition
}

// NewLoader creates a Loader backed by the given source
func NewLoader(source Source) *Loader {
	return &Loader{
		source: source,
		cache:  make(map[string]*types.RubricDefinition),
	}
}

// Load resolves one rubric version, returning *NotFoundError when neither
// the store nor the embedded defaults define it.
func (l *Loader) Load(ctx context.Context, dimension, version string) (*types.RubricDefinition, error) {
	key := dimension + "/" + version

	l.mu.RLock()
	cached, ok := l.cache[key]
	l.mu.RUnlock()
	if ok {
		return cached, nil
	}

	rubric, err := l.resolve(ctx, dimension, version)
	if err != nil {
		return nil, err
	}
	if err := rubric.Validate(); err != nil {
		return nil, fmt.Errorf("rubric %s is invalid: %w", key, err)
	}

	l.mu.Lock()
	l.cache[key] = rubric
	l.mu.Unlock()
	return rubric, nil
}

func (l *Loader) resolve(ctx context.Context, dimension, version string) (*types.RubricDefinition, error) {
	if l.source != nil {
		rubric, err := l.source.LoadRubric(ctx, dimension, version)
		if err != nil {
			return nil, err
		}
		if rubric != nil {
			return rubric, nil
		}
	}
	return Embedded(dimension, version)
}

// Embedded loads a rubric from the compiled-in defaults, returning
// *NotFoundError when no default exists for the pair.
func Embedded(dimension, version string) (*types.RubricDefinition, error) {
	data, err := defaultFiles.ReadFile(fmt.Sprintf("defaults/%s.%s.json", dimension, version))
	if err != nil {
		return nil, &NotFoundError{Dimension: dimension, Version: version}
	}

	var rubric types.RubricDefinition
	if err := json.Unmarshal(data, &rubric); err != nil {
		return nil, fmt.Errorf("failed to parse embedded rubric %s/%s: %w", dimension, version, err)
	}
	return &rubric, nil
}
