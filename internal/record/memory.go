package record

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is a Store held entirely in memory, usually for testing and
// for single-process embedding. Records are kept in their encoded form so
// reads exercise the same decode path as durable stores.
type MemoryStore struct {
	mu          sync.Mutex
	records     map[ID][]byte
	blobs       map[BlobRef][]byte
	journals    map[string]*journalState
	checkpoints map[string]checkpoint

	emptyID ID
}

type journalState struct {
	head Revision
	// base is the last point this journal was synchronized with the root
	// journal; the root journal's base always equals its head.
	base Revision
}

type checkpoint struct {
	rev     Revision
	expires time.Time
}

// NewMemoryStore returns an empty store whose root journal points at the
// empty tree.
func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{
		records:     make(map[ID][]byte),
		blobs:       make(map[BlobRef][]byte),
		journals:    make(map[string]*journalState),
		checkpoints: make(map[string]checkpoint),
	}
	id, err := s.putLocked(&Node{})
	if err != nil {
		panic(err)
	}
	s.emptyID = id
	rev := Revision(id)
	s.journals[RootJournal] = &journalState{head: rev, base: rev}
	return s
}

func (s *MemoryStore) Head(journal string) (Revision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.journalLocked(journal).head, nil
}

// journalLocked returns the named journal, creating it at the root
// journal's current head on first use.
func (s *MemoryStore) journalLocked(journal string) *journalState {
	j, ok := s.journals[journal]
	if !ok {
		root := s.journals[RootJournal]
		j = &journalState{head: root.head, base: root.head}
		s.journals[journal] = j
	}
	return j
}

func (s *MemoryStore) Get(id ID) (*Node, error) {
	s.mu.Lock()
	data, ok := s.records[id]
	s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("record %s: %w", id, ErrNotFound)
	}
	return std.decode(data)
}

func (s *MemoryStore) Put(n *Node) (ID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.putLocked(n)
}

func (s *MemoryStore) PutMulti(ns []*Node) ([]ID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]ID, len(ns))
	for i, n := range ns {
		id, err := s.putLocked(n)
		if err != nil {
			return nil, err
		}
		ids[i] = id
	}
	return ids, nil
}

func (s *MemoryStore) putLocked(n *Node) (ID, error) {
	id, data, err := std.encode(n)
	if err != nil {
		return "", err
	}
	if _, ok := s.records[id]; !ok {
		s.records[id] = data
	}
	return id, nil
}

func (s *MemoryStore) Commit(root ID, base Revision, journal string) (Revision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[root]; !ok {
		return "", fmt.Errorf("commit root %s: %w", root, ErrNotFound)
	}
	j := s.journalLocked(journal)
	if j.head == base {
		j.head = Revision(root)
		return j.head, nil
	}
	merged, err := merge3((*memoryIO)(s), base.RootID(), j.head.RootID(), root, "/")
	if err != nil {
		return "", err
	}
	j.head = Revision(merged)
	return j.head, nil
}

func (s *MemoryStore) MergeJournal(journal string) (Revision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	root := s.journals[RootJournal]
	if journal == RootJournal {
		return root.head, nil
	}
	j := s.journalLocked(journal)
	merged, err := merge3((*memoryIO)(s), j.base.RootID(), root.head.RootID(), j.head.RootID(), "/")
	if err != nil {
		return "", err
	}
	rev := Revision(merged)
	root.head, root.base = rev, rev
	j.head, j.base = rev, rev
	return rev, nil
}

func (s *MemoryStore) Checkpoint(lifetime time.Duration, journal string) (string, error) {
	if lifetime <= 0 {
		return "", ErrInvalidLifetime
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	id := uuid.NewString()
	s.checkpoints[id] = checkpoint{
		rev:     s.journalLocked(journal).head,
		expires: time.Now().Add(lifetime),
	}
	return id, nil
}

func (s *MemoryStore) ReadCheckpoint(id string) (Revision, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp, ok := s.checkpoints[id]
	if !ok {
		return "", false
	}
	if time.Now().After(cp.expires) {
		delete(s.checkpoints, id)
		return "", false
	}
	return cp.rev, true
}

func (s *MemoryStore) WriteBlob(r io.Reader) (BlobRef, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read blob stream: %w", err)
	}
	ref := hashBlob(data)
	s.mu.Lock()
	if _, ok := s.blobs[ref]; !ok {
		s.blobs[ref] = data
	}
	s.mu.Unlock()
	return ref, nil
}

func (s *MemoryStore) ReadBlob(ref BlobRef) ([]byte, error) {
	s.mu.Lock()
	data, ok := s.blobs[ref]
	s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("blob %s: %w", ref, ErrNotFound)
	}
	return data, nil
}

// memoryIO exposes unlocked record access for merges run under s.mu.
type memoryIO MemoryStore

func (m *memoryIO) get(id ID) (*Node, error) {
	data, ok := m.records[id]
	if !ok {
		return nil, fmt.Errorf("record %s: %w", id, ErrNotFound)
	}
	return std.decode(data)
}

func (m *memoryIO) put(n *Node) (ID, error) {
	return (*MemoryStore)(m).putLocked(n)
}
