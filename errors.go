package segward

import (
	"errors"

	segerrors "github.com/jurgen-kluft/segward/internal/errors"
)

// ErrOutOfMemory is returned by Allocate when every segment is FULL and no
// EMPTY or RETIRED segment is available to activate (spec.md §7's
// "out of memory" kind — a value the caller checks, never a panic).
var ErrOutOfMemory = errors.New("segward: out of memory: no EMPTY or RETIRED segment available")

// contractViolation panics with a *segerrors.StandardError wrapping code
// and message, matching spec.md §7's rule that contract violations
// (bad alignment, double free, deallocating a dead segment, nil pointer)
// are programmer bugs, not recoverable error values.
func contractViolation(code, message string, context map[string]interface{}) {
	panic(segerrors.ContractViolation(code, message, context))
}

func configurationError(code, message string, context map[string]interface{}) error {
	return segerrors.Configuration(code, message, context)
}
