package common

import (
	"fmt"
	"strings"
)

// UpstreamErrorKind classifies a failed upstream call.
type UpstreamErrorKind string

const (
	UpstreamRateLimited  UpstreamErrorKind = "rate_limited"
	UpstreamTimeout      UpstreamErrorKind = "timeout"
	UpstreamHTTPError    UpstreamErrorKind = "http_error"
	UpstreamNetworkError UpstreamErrorKind = "network_error"
	UpstreamInvalidShape UpstreamErrorKind = "invalid_shape"
)

// UpstreamError is raised by the transport layer. Transient kinds are
// recovered locally via retry; the rest propagate to the orchestrator.
type UpstreamError struct {
	Kind     UpstreamErrorKind
	Upstream string
	Status   int
	Err      error
}

func (e *UpstreamError) Error() string {
	msg := fmt.Sprintf("upstream %s: %s", e.Upstream, e.Kind)
	if e.Status != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.Status)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// Transient reports whether retrying the call could plausibly succeed.
// Rate limits, timeouts and network errors are transient, as are 5xx
// responses. 4xx responses other than 429 and shape mismatches are not.
func (e *UpstreamError) Transient() bool {
	switch e.Kind {
	case UpstreamRateLimited, UpstreamTimeout, UpstreamNetworkError:
		return true
	case UpstreamHTTPError:
		return e.Status >= 500
	}
	return false
}

// NormalizationErrorKind classifies a normalization failure.
type NormalizationErrorKind string

const NormalizationUnexpectedShape NormalizationErrorKind = "unexpected_shape"

// NormalizationError is raised when a required identity field is absent and
// no safe default exists. Optional fields degrade gracefully instead.
type NormalizationError struct {
	Kind   NormalizationErrorKind
	Source string
	Field  string
}

func (e *NormalizationError) Error() string {
	return fmt.Sprintf("normalize %s: %s: missing required field %q", e.Source, e.Kind, e.Field)
}

// AggregateErrorKind classifies an orchestration failure.
type AggregateErrorKind string

const AggregateAllSourcesFailed AggregateErrorKind = "all_sources_failed"

// AggregateError is the only error surfaced to the UI as a hard failure,
// raised when every parallel sub-call of an aggregation failed.
type AggregateError struct {
	Kind AggregateErrorKind
	Errs []error
}

func (e *AggregateError) Error() string {
	parts := make([]string, 0, len(e.Errs))
	for _, err := range e.Errs {
		if err != nil {
			parts = append(parts, err.Error())
		}
	}
	if len(parts) == 0 {
		return fmt.Sprintf("aggregate: %s", e.Kind)
	}
	return fmt.Sprintf("aggregate: %s: %s", e.Kind, strings.Join(parts, "; "))
}

func (e *AggregateError) Unwrap() []error { return e.Errs }
