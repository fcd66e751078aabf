package record

import (
	"errors"
	"fmt"
	"io"
	"time"
)

var (
	// ErrNotFound reports a record, blob or journal that the store does
	// not hold.
	ErrNotFound = errors.New("record: not found")

	// ErrConflict reports a commit or journal merge whose changes cannot
	// be applied on top of the journal's current head.
	ErrConflict = errors.New("record: conflicting concurrent change")

	// ErrInvalidLifetime reports a non-positive checkpoint lifetime.
	ErrInvalidLifetime = errors.New("record: checkpoint lifetime must be positive")
)

// ConflictError carries the tree path at which a merge could not be
// reconciled. It unwraps to ErrConflict.
type ConflictError struct {
	Path string
	Msg  string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("record: conflict at %s: %s", e.Path, e.Msg)
}

func (e *ConflictError) Unwrap() error { return ErrConflict }

// Store is the backing store contract: an append-only space of immutable
// node records plus a set of named journals, each tracking the head
// revision of one workspace. Implementations must be safe for concurrent
// use.
//
// Journals other than the root journal advance independently; MergeJournal
// folds a workspace's outstanding changes into the root journal and
// fast-forwards the workspace to the result. Propagation is strictly
// pull-based.
type Store interface {
	// Head returns the current head revision of the named journal. A
	// journal is created at the root journal's head on first use.
	Head(journal string) (Revision, error)

	// Get loads the node record with the given id.
	Get(id ID) (*Node, error)

	// Put stores a single node record and returns its id. Storing the
	// same content twice is a no-op.
	Put(n *Node) (ID, error)

	// PutMulti stores a batch of node records.
	PutMulti(ns []*Node) ([]ID, error)

	// Commit advances the named journal to the tree rooted at root. If
	// the journal head has moved past base, the committed changes are
	// replayed on top of the current head; irreconcilable overlap fails
	// with ErrConflict and leaves the journal untouched.
	Commit(root ID, base Revision, journal string) (Revision, error)

	// MergeJournal folds the named journal's changes since its last sync
	// point into the root journal and fast-forwards the named journal to
	// the merged result, which it returns.
	MergeJournal(journal string) (Revision, error)

	// Checkpoint pins the named journal's current head for the given
	// lifetime and returns the checkpoint id.
	Checkpoint(lifetime time.Duration, journal string) (string, error)

	// ReadCheckpoint resolves a checkpoint id to its pinned revision.
	// Expired or unknown checkpoints report ok == false, not an error.
	ReadCheckpoint(id string) (rev Revision, ok bool)

	// WriteBlob stores the stream's content and returns a reference to it.
	WriteBlob(r io.Reader) (BlobRef, error)

	// ReadBlob returns the content of a previously written blob.
	ReadBlob(ref BlobRef) ([]byte, error)
}
