package canopy

import (
	"errors"
	"fmt"

	"github.com/canopydb/canopy/internal/record"
)

var (
	// ErrNotFound reports content the store does not hold.
	ErrNotFound = errors.New("canopy: not found")

	// ErrBranchMerged reports a mutation or rebase on a branch that has
	// already been merged.
	ErrBranchMerged = errors.New("canopy: branch already merged")

	// ErrInvalidLifetime reports a non-positive checkpoint lifetime.
	ErrInvalidLifetime = errors.New("canopy: checkpoint lifetime must be positive")
)

// CommitErrorKind classifies why a merge failed.
type CommitErrorKind uint8

const (
	// CommitRejected means a commit hook refused the candidate.
	CommitRejected CommitErrorKind = iota + 1
	// CommitConflict means the backing store could not apply the changes
	// on top of an intervening concurrent commit; rebase and retry.
	CommitConflict
	// CommitStoreFailure means the backing store failed for another
	// reason, typically I/O.
	CommitStoreFailure
)

func (k CommitErrorKind) String() string {
	switch k {
	case CommitRejected:
		return "rejected"
	case CommitConflict:
		return "conflict"
	case CommitStoreFailure:
		return "store failure"
	}
	return "unknown"
}

// CommitError reports a failed merge. Path names the offending node where
// one is known, otherwise it is empty.
type CommitError struct {
	Kind CommitErrorKind
	Path string
	Msg  string
	err  error
}

func (e *CommitError) Error() string {
	s := fmt.Sprintf("canopy: commit failed (%s)", e.Kind)
	if e.Path != "" {
		s += " at " + e.Path
	}
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	if e.err != nil {
		s += ": " + e.err.Error()
	}
	return s
}

func (e *CommitError) Unwrap() error { return e.err }

// IsConflict reports whether err is a recoverable commit conflict: the
// caller should rebase (or re-branch) and retry.
func IsConflict(err error) bool {
	var ce *CommitError
	if errors.As(err, &ce) {
		return ce.Kind == CommitConflict
	}
	return errors.Is(err, record.ErrConflict)
}

// rejectedError wraps a hook rejection.
func rejectedError(err error) *CommitError {
	return &CommitError{Kind: CommitRejected, err: err}
}

// storeCommitError classifies a backing store commit failure.
func storeCommitError(err error) *CommitError {
	var conflict *record.ConflictError
	if errors.As(err, &conflict) {
		return &CommitError{Kind: CommitConflict, Path: conflict.Path, Msg: conflict.Msg, err: err}
	}
	if errors.Is(err, record.ErrConflict) {
		return &CommitError{Kind: CommitConflict, err: err}
	}
	return &CommitError{Kind: CommitStoreFailure, err: err}
}
