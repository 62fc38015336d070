package llm

import "fmt"

// UpstreamUnavailableError represents a transient provider failure:
// transport errors, rate limits, server-side 5xx. Retryable.
type UpstreamUnavailableError struct {
	Provider string
	Message  string
	Cause    error
}

func (e *UpstreamUnavailableError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("upstream %s unavailable: %s: %v", e.Provider, e.Message, e.Cause)
	}
	return fmt.Sprintf("upstream %s unavailable: %s", e.Provider, e.Message)
}

func (e *UpstreamUnavailableError) Unwrap() error {
	return e.Cause
}

// MalformedResponseError represents LLM output that failed schema or
// structural validation. Retryable a bounded number of times, then fatal for
// the chunk it belongs to. RawText carries the offending output for
// diagnostics.
type MalformedResponseError struct {
	Message string
	RawText string
	Cause   error
}

func (e *MalformedResponseError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("malformed response: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("malformed response: %s", e.Message)
}

func (e *MalformedResponseError) Unwrap() error {
	return e.Cause
}
