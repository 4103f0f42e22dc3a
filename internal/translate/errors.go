// Package translate converts Source flag configuration into Target
// audiences, targeting rules and features.
package translate

import "errors"

// Translation errors. Any of them makes the owning feature or segment
// unsupported.
var (
	ErrUnsupportedOperator   = errors.New("unsupported operator")
	ErrUnsupportedDataType   = errors.New("unsupported value type")
	ErrMixedDataTypes        = errors.New("values must all share one type")
	ErrInvalidCountry        = errors.New("invalid country code")
	ErrPrerequisites         = errors.New("features with prerequisites are not supported")
	ErrWeightedRule          = errors.New("weighted rules are not supported in features")
	ErrUnknownVariation      = errors.New("unknown variation")
	ErrEmptyOutcome          = errors.New("rule has neither a variation nor a rollout")
	ErrMissingAudience       = errors.New("audience was not imported")
	ErrSegmentMatchInSegment = errors.New("Segment match rules are not supported in segments") //nolint:staticcheck // user-facing message
	ErrWeightedSegmentRule   = errors.New("Weighted rules are not supported in segments")      //nolint:staticcheck // user-facing message
)

// TranslationError records which entity and environment failed to translate.
// Its message is the message of the underlying error.
type TranslationError struct {
	Key         string
	Environment string
	Err         error
}

func (e *TranslationError) Error() string { return e.Err.Error() }

func (e *TranslationError) Unwrap() error { return e.Err }

// DependencyError is returned when a rule references a segment whose own
// translation failed. It carries the segment's error message unchanged.
type DependencyError struct {
	Audience string
	Err      error
}

func (e *DependencyError) Error() string { return e.Err.Error() }

func (e *DependencyError) Unwrap() error { return e.Err }
