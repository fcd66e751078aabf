package canopy

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/canopydb/canopy/internal/cache"
	"github.com/canopydb/canopy/internal/record"
)

// CacheStats is a snapshot of the revision cache counters.
type CacheStats = cache.Stats

// NodeStore is the shared root handle of one workspace: it exposes the
// workspace's current head state, opens branches for transactional edits,
// stores binaries, and pins historical snapshots through checkpoints.
//
// Any number of NodeStores may share one backing Store, each bound to its
// own workspace journal. A store is safe for concurrent use.
type NodeStore struct {
	rs      record.Store
	journal string
	reader  *treeReader
	log     *slog.Logger

	// mu guards the head check-and-swap so observers see a gap-free,
	// strictly ordered sequence of transitions.
	mu      sync.Mutex
	head    NodeState
	headRev record.Revision

	// mergeMu serializes the rebase-validate-commit sequence across all
	// branches of this store.
	mergeMu sync.Mutex

	observer atomic.Pointer[Observer]
}

// New opens a NodeStore over the given backing store.
func New(rs record.Store, opts ...Option) (*NodeStore, error) {
	options := defaultOptions()
	for _, opt := range opts {
		opt(options)
	}

	s := &NodeStore{
		rs:      rs,
		journal: options.Workspace,
		log:     options.Logger,
		reader: &treeReader{
			rs:    rs,
			cache: cache.New(options.CacheWeight),
			log:   options.Logger,
		},
	}
	s.SetObserver(options.Observer)

	rev, err := rs.Head(s.journal)
	if err != nil {
		return nil, fmt.Errorf("read head revision: %w", err)
	}
	root, err := s.reader.root(rev)
	if err != nil {
		return nil, fmt.Errorf("load root state: %w", err)
	}
	s.head, s.headRev = root, rev
	return s, nil
}

// Root returns the current head state. If the backing journal has advanced
// since the last observed value, the new root is loaded through the
// revision cache, the remembered head is swapped, and the observer is
// notified with the (old, new) pair before the new head becomes visible to
// other callers. Reads are monotonic.
func (s *NodeStore) Root() NodeState {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshLocked()
	return s.head
}

// current returns the head state together with the revision it was loaded
// from, captured as one atomic pair. Callers that commit against the
// returned revision can rely on the state matching it exactly.
func (s *NodeStore) current() (NodeState, record.Revision) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshLocked()
	return s.head, s.headRev
}

// refreshLocked reloads the head if the backing journal has advanced and
// notifies the observer of the transition. The caller holds s.mu.
func (s *NodeStore) refreshLocked() {
	rev, err := s.rs.Head(s.journal)
	if err != nil {
		s.log.Error("head revision read failed", "workspace", s.journal, "err", err)
		return
	}
	if rev == s.headRev {
		return
	}
	root, err := s.reader.root(rev)
	if err != nil {
		s.log.Error("root state load failed",
			"workspace", s.journal, "revision", string(rev), "err", err)
		return
	}
	before := s.head
	s.head, s.headRev = root, rev
	s.getObserver().ContentChanged(before, root)
}

// Branch opens a private branch based at the current head.
func (s *NodeStore) Branch() *NodeStoreBranch {
	base := s.Root()
	return &NodeStoreBranch{store: s, base: base, head: base}
}

// CreateBlob stores the stream's content and returns a reference usable in
// binary property values.
func (s *NodeStore) CreateBlob(r io.Reader) (BlobRef, error) {
	ref, err := s.rs.WriteBlob(r)
	if err != nil {
		return "", fmt.Errorf("canopy: create blob: %w", err)
	}
	return ref, nil
}

// ReadBlob returns the content of a previously created blob.
func (s *NodeStore) ReadBlob(ref BlobRef) ([]byte, error) {
	data, err := s.rs.ReadBlob(ref)
	if err != nil {
		return nil, fmt.Errorf("canopy: read blob: %w", err)
	}
	return data, nil
}

// Checkpoint pins this workspace's current head for the given lifetime and
// returns an id for later retrieval. The lifetime must be positive.
func (s *NodeStore) Checkpoint(lifetime time.Duration) (string, error) {
	if lifetime <= 0 {
		return "", ErrInvalidLifetime
	}
	id, err := s.rs.Checkpoint(lifetime, s.journal)
	if err != nil {
		return "", fmt.Errorf("canopy: checkpoint: %w", err)
	}
	return id, nil
}

// Retrieve returns the root state pinned by a checkpoint, or nil if the
// checkpoint has expired or never existed.
func (s *NodeStore) Retrieve(checkpointID string) NodeState {
	rev, ok := s.rs.ReadCheckpoint(checkpointID)
	if !ok {
		return nil
	}
	root, err := s.reader.root(rev)
	if err != nil {
		s.log.Error("checkpoint state load failed",
			"checkpoint", checkpointID, "revision", string(rev), "err", err)
		return nil
	}
	return root
}

// SetObserver replaces the head transition observer. Semantics are
// last-writer-wins; events are not queued for a replaced observer. A nil
// observer resets to EmptyObserver.
func (s *NodeStore) SetObserver(obs Observer) {
	if obs == nil {
		obs = EmptyObserver
	}
	s.observer.Store(&obs)
}

func (s *NodeStore) getObserver() Observer {
	return *s.observer.Load()
}

// Workspace returns the name of the journal this store is bound to; the
// empty string is the shared root workspace.
func (s *NodeStore) Workspace() string { return s.journal }

// CacheStats returns a snapshot of the revision cache counters.
func (s *NodeStore) CacheStats() CacheStats {
	return s.reader.cache.Stats()
}

// commit makes the candidate durable on this workspace's journal and
// returns the state of the revision the backing store produced, publishing
// it as the new head.
func (s *NodeStore) commit(candidate NodeState, base record.Revision) (NodeState, error) {
	rootID, err := writeTree(s.rs, candidate)
	if err != nil {
		return nil, storeCommitError(err)
	}
	rev, err := s.rs.Commit(rootID, base, s.journal)
	if err != nil {
		return nil, storeCommitError(err)
	}
	root, err := s.reader.root(rev)
	if err != nil {
		return nil, storeCommitError(err)
	}

	s.mu.Lock()
	switch s.headRev {
	case rev:
		// already observed through a refresh
	case base:
		before := s.head
		s.head, s.headRev = root, rev
		s.getObserver().ContentChanged(before, root)
	default:
		// the journal moved past base while we committed; let the
		// backing store tell us where the head is now
		s.refreshLocked()
	}
	s.mu.Unlock()
	return root, nil
}
