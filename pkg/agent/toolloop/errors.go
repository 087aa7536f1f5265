package toolloop

import "errors"

var (
	// ErrMaxIterations indicates the model kept calling tools until the iteration limit
	// without producing a final answer.
	ErrMaxIterations = errors.New("maximum tool iterations exceeded")

	// ErrNoTools indicates Run was called without a tool provider.
	ErrNoTools = errors.New("tool provider is required")
)
