package cellcaller

import "github.com/grailbio/base/errors"

// Kind classifies the error conditions the core can raise (spec 7).
type Kind int

const (
	// InvalidInput covers an empty haplotype block, zero ploidy, or an empty
	// sample list: fatal, surfaced to the caller.
	InvalidInput Kind = iota
	// InferenceUnderflow means every seed at a topology yielded -Inf
	// evidence; the topology gets zero posterior weight and is never picked
	// as the best topology unless every topology underflowed. If it holds at
	// K=1, the region emits no calls.
	InferenceUnderflow
	// CapacityExceeded means the genotype-combination cap was hit; the
	// search proceeds with the seeded subset. Not fatal. No diagnostic is
	// recorded for it and no error is returned.
	CapacityExceeded
	// Cancelled means the context was cancelled; the region returns an
	// empty call list, not an error.
	Cancelled
	// InternalInvariantViolation means the phylogeny is malformed (more than
	// two descendants). Fatal, unrecoverable.
	InternalInvariantViolation
)

func (k Kind) String() string {
	switch k {
	case InvalidInput:
		return "InvalidInput"
	case InferenceUnderflow:
		return "InferenceUnderflow"
	case CapacityExceeded:
		return "CapacityExceeded"
	case Cancelled:
		return "Cancelled"
	case InternalInvariantViolation:
		return "InternalInvariantViolation"
	default:
		return "Unknown"
	}
}

// Fatal reports whether kind must propagate to the region dispatcher
// (spec 7: "fatal conditions propagate ... which skips the region and
// logs"), as opposed to degrading the search in place.
func (k Kind) Fatal() bool {
	return k == InvalidInput || k == InternalInvariantViolation
}

// Error is the structured error type this package returns, carrying a Kind
// so callers can branch on recoverability without string matching
// (mirrors encoding/pam/fieldio/reader.go's errors.NotExist Kind check).
type Error struct {
	Kind Kind
	err  error
}

func (e *Error) Error() string { return e.err.Error() }
func (e *Error) Unwrap() error { return e.err }

// newError builds a Kind-tagged *Error using grailbio/base/errors' message
// construction, matching markduplicates/metrics.go's errors.E(...) idiom.
func newError(kind Kind, args ...interface{}) *Error {
	return &Error{Kind: kind, err: errors.E(args...)}
}
