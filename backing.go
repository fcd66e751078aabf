package canopy

import (
	"github.com/canopydb/canopy/internal/record"
)

// Store is the backing store contract: an append-only space of immutable
// node records with named workspace journals. Re-exported from
// internal/record for embedding and testing.
type Store = record.Store

// Revision identifies a committed root state in the backing store.
type Revision = record.Revision

// NewMemoryStore returns an in-memory backing store, usually for testing
// and single-process embedding.
func NewMemoryStore() Store {
	return record.NewMemoryStore()
}

// NewLocalStore creates or opens a filesystem-backed store rooted at dir,
// with zstd compression for node records.
func NewLocalStore(dir string) (Store, error) {
	return record.NewLocalStore(dir, true)
}
