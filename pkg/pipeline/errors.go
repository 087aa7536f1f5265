package pipeline

import (
	"context"
	"errors"
	"fmt"

	"scicontent/pkg/agent/llmerrors"
	"scicontent/pkg/agent/middleware/resilience/circuit"
	"scicontent/pkg/agent/toolloop"
)

// Failure categories beyond the llmerrors types.
const (
	CategoryMissingStateKey = "missing_state_key"
	CategoryMaxIterations   = "max_iterations"
	CategoryCircuitOpen     = "circuit_open"
	CategoryCanceled        = "canceled"
	CategoryTimeout         = "timeout"
)

// StageError reports the stage that failed a run.
type StageError struct {
	Stage    string
	Index    int // 1-based
	Category string
	Cause    error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %d (%s) failed [%s]: %v", e.Index, e.Stage, e.Category, e.Cause)
}

func (e *StageError) Unwrap() error { return e.Cause }

// Categorize names the cause of a stage failure.
func Categorize(err error) string {
	var missing *MissingStateKeyError
	var circuitErr *circuit.Error
	var llmErr *llmerrors.Error
	switch {
	case err == nil:
		return ""
	case errors.As(err, &missing):
		return CategoryMissingStateKey
	case errors.Is(err, toolloop.ErrMaxIterations):
		return CategoryMaxIterations
	case errors.As(err, &circuitErr):
		return CategoryCircuitOpen
	case errors.As(err, &llmErr):
		return llmErr.Type.String()
	case errors.Is(err, context.Canceled):
		return CategoryCanceled
	case errors.Is(err, context.DeadlineExceeded):
		return CategoryTimeout
	default:
		return llmerrors.ErrorTypeUnknown.String()
	}
}
