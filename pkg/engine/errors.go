package engine

import "fmt"

// MissingObjectError is returned by Context Capture when a commit, tree, or
// blob referenced by the requested range cannot be resolved in the repository.
type MissingObjectError struct {
	SHA string
}

func (e *MissingObjectError) Error() string {
	return fmt.Sprintf("missing object: %s", e.SHA)
}

// TreeMismatchError is returned by the Executor when a materialized group's
// actual tree hash does not equal the Plan Builder's expected tree hash.
type TreeMismatchError struct {
	Group       string
	Expected    ObjectId
	Actual      ObjectId
	DiffSummary string
}

func (e *TreeMismatchError) Error() string {
	return fmt.Sprintf("group %s: tree mismatch: expected %s, got %s: %s",
		e.Group, e.Expected, e.Actual, e.DiffSummary)
}

// VerifyMismatchError is returned by the Verifier when the final leaf tree(s)
// of the executed stack do not reproduce the original head tree.
type VerifyMismatchError struct {
	Expected       ObjectId
	Actual         ObjectId
	DifferingPaths []string
}

func (e *VerifyMismatchError) Error() string {
	return fmt.Sprintf("verify mismatch: expected %s, got %s, %d differing paths",
		e.Expected, e.Actual, len(e.DifferingPaths))
}

// RefWriteFailureError is returned by the Executor when a branch ref could
// not be created or updated.
type RefWriteFailureError struct {
	Ref   string
	Cause error
}

func (e *RefWriteFailureError) Error() string {
	return fmt.Sprintf("ref write failed for %s: %v", e.Ref, e.Cause)
}

func (e *RefWriteFailureError) Unwrap() error {
	return e.Cause
}
