// Package service implements the interpret → fetch → present pipeline stages.
package service

import (
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/flightfinder-eu/flightbot/pkg/metrics"
	"github.com/flightfinder-eu/flightbot/pkg/tracing"
)

// Reason names why a stage produced no usable result.
type Reason string

const (
	ReasonNone               Reason = ""
	ReasonInferenceFailed    Reason = "inference_failed"
	ReasonUnparsableOutput   Reason = "unparsable_output"
	ReasonMissingLocation    Reason = "missing_location"
	ReasonProviderFailed     Reason = "provider_failed"
	ReasonMalformedResponse  Reason = "malformed_response"
	ReasonInternal           Reason = "internal"
	ReasonPresentationFailed Reason = "presentation_failed"
)

// Stage names, used in metrics, spans and failures.
const (
	StageInterpret = "interpret"
	StageFetch     = "fetch"
	StagePresent   = "present"
)

// Failure is the typed error every stage returns instead of a bare error.
type Failure struct {
	Stage  string
	Reason Reason
	Err    error
}

func (f *Failure) Error() string {
	if f.Err == nil {
		return fmt.Sprintf("%s: %s", f.Stage, f.Reason)
	}
	return fmt.Sprintf("%s: %s: %v", f.Stage, f.Reason, f.Err)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// FailureReason extracts the reason from err, or ReasonNone.
func FailureReason(err error) Reason {
	var f *Failure
	if errors.As(err, &f) {
		return f.Reason
	}
	if err != nil {
		return ReasonInternal
	}
	return ReasonNone
}

var tracer = tracing.Tracer("github.com/flightfinder-eu/flightbot/internal/service")

// finishStage records metrics and closes the span for one stage run.
func finishStage(span trace.Span, stage string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = string(FailureReason(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
	}
	metrics.RecordStage(stage, outcome, time.Since(start).Seconds())
	span.End()
}
