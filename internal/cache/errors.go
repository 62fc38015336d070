package cache

import "fmt"

// CacheUnavailableError signals that the fast tier could not be reached.
// It is never fatal: callers always degrade to recomputation. The two-tier
// cache itself swallows this error and returns a miss; the type exists so
// tier implementations can report outages distinctly from key absence.
type CacheUnavailableError struct {
	Tier    string
	Message string
	Cause   error
}

func (e *CacheUnavailableError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("cache tier %s unavailable: %s: %v", e.Tier, e.Message, e.Cause)
	}
	return fmt.Sprintf("cache tier %s unavailable: %s", e.Tier, e.Message)
}

func (e *CacheUnavailableError) Unwrap() error {
	return e.Cause
}
