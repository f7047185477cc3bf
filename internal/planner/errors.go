package planner

import (
	"errors"
	"fmt"
)

// The pipeline classifies its failures into three kinds. The top-level
// Generate call catches all of them and degrades to the deterministic
// fallback plan; they exist so the fallback transition can be logged with a
// precise cause and so tests can assert which stage gave up.

// BackendUnavailableError reports that the backend could not produce a reply:
// every candidate model identifier was rejected, or the call itself failed
// (network, auth, malformed response).
type BackendUnavailableError struct {
	Err error
}

func (e *BackendUnavailableError) Error() string {
	return fmt.Sprintf("backend unavailable: %v", e.Err)
}

func (e *BackendUnavailableError) Unwrap() error { return e.Err }

// UnparseableOutputError reports that every repair strategy failed on the
// reply text. Partial holds the best-effort text up to the deepest parse
// position, Offset the byte offset the most successful attempt reached.
type UnparseableOutputError struct {
	Partial string
	Offset  int64
	Err     error
}

func (e *UnparseableOutputError) Error() string {
	return fmt.Sprintf("unparseable backend output (deepest offset %d): %v", e.Offset, e.Err)
}

func (e *UnparseableOutputError) Unwrap() error { return e.Err }

// RecoveryExhaustedError reports that the bounded continuation attempts all
// ended without a parseable combined text.
type RecoveryExhaustedError struct {
	Attempts int
	Err      error
}

func (e *RecoveryExhaustedError) Error() string {
	return fmt.Sprintf("truncation recovery exhausted after %d attempts: %v", e.Attempts, e.Err)
}

func (e *RecoveryExhaustedError) Unwrap() error { return e.Err }

// errorKind names the classified failure for structured log events.
func errorKind(err error) string {
	var backend *BackendUnavailableError
	if errors.As(err, &backend) {
		return "backend_unavailable"
	}
	var unparseable *UnparseableOutputError
	if errors.As(err, &unparseable) {
		return "unparseable_output"
	}
	var exhausted *RecoveryExhaustedError
	if errors.As(err, &exhausted) {
		return "recovery_exhausted"
	}
	return "internal"
}
