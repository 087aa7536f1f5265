package pipeline

import (
	"errors"
	"fmt"
	"regexp"
)

// ErrMissingStateKey is wrapped by MissingStateKeyError.
var ErrMissingStateKey = errors.New("missing state key")

// MissingStateKeyError reports a stage whose required input is absent from the state.
type MissingStateKeyError struct {
	Stage string
	Key   string
}

func (e *MissingStateKeyError) Error() string {
	return fmt.Sprintf("stage %s: %v %q", e.Stage, ErrMissingStateKey, e.Key)
}

func (e *MissingStateKeyError) Unwrap() error { return ErrMissingStateKey }

var placeholderPattern = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Resolve substitutes a stage template.
//
// Every required input must be present in state. Placeholders naming a required
// input take the state value; other placeholders take vars; the rest stay
// literal. Substitution is a single pass: braces inside substituted values are
// never expanded.
func Resolve(stage Stage, state *State, vars map[string]string) (string, error) {
	required := make(map[string]string, len(stage.inputs))
	for _, key := range stage.inputs {
		value, ok := state.Get(key)
		if !ok {
			return "", &MissingStateKeyError{Stage: stage.name, Key: key}
		}
		required[key] = value
	}

	return placeholderPattern.ReplaceAllStringFunc(stage.template, func(match string) string {
		name := match[1 : len(match)-1]
		if v, ok := required[name]; ok {
			return v
		}
		if v, ok := vars[name]; ok {
			return v
		}
		return match
	}), nil
}
