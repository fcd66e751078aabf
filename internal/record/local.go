package record

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/pool"
)

// LocalStore implements Store on the local filesystem.
//
// Storage layout:
//
//	basePath/
//	  objects/
//	    ab/cd123...   (node records, zstd-compressed canonical CBOR)
//	  blobs/
//	    ab/cd123...   (binary values, raw)
//	  journals/
//	    root          (two lines: head revision, base revision)
//	    left
//	  checkpoints/
//	    <uuid>        (two lines: revision, expiry in unix milliseconds)
//
// Records and blobs are content-addressed and never rewritten; journal and
// checkpoint files are the only mutable state and are guarded by a mutex.
type LocalStore struct {
	basePath   string
	compressor *compressor
	writers    int

	mu sync.Mutex // journals and checkpoints
}

const rootJournalFile = "root"

// DefaultWriters bounds the parallelism of batched record writes.
const DefaultWriters = 8

// NewLocalStore creates or opens a store rooted at basePath. A fresh store
// starts with the root journal at the empty tree.
func NewLocalStore(basePath string, compressionEnabled bool) (*LocalStore, error) {
	for _, dir := range []string{"objects", "blobs", "journals", "checkpoints"} {
		if err := os.MkdirAll(filepath.Join(basePath, dir), 0755); err != nil {
			return nil, fmt.Errorf("create directory %s: %w", dir, err)
		}
	}

	compressor, err := newCompressor(compressionEnabled)
	if err != nil {
		return nil, fmt.Errorf("create compressor: %w", err)
	}

	s := &LocalStore{
		basePath:   basePath,
		compressor: compressor,
		writers:    DefaultWriters,
	}

	if _, err := os.Stat(s.journalPath(RootJournal)); os.IsNotExist(err) {
		id, err := s.Put(&Node{})
		if err != nil {
			return nil, fmt.Errorf("store empty root: %w", err)
		}
		if err := s.writeJournal(RootJournal, Revision(id), Revision(id)); err != nil {
			return nil, fmt.Errorf("init root journal: %w", err)
		}
	}
	return s, nil
}

func (s *LocalStore) Head(journal string) (Revision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, err := s.journalLocked(journal)
	if err != nil {
		return "", err
	}
	return j.head, nil
}

func (s *LocalStore) Get(id ID) (*Node, error) {
	compressed, err := os.ReadFile(s.objectPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("record %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("read record: %w", err)
	}
	return std.decode(s.compressor.Decompress(compressed))
}

func (s *LocalStore) Put(n *Node) (ID, error) {
	id, data, err := std.encode(n)
	if err != nil {
		return "", err
	}
	if err := s.writeObject(id, data); err != nil {
		return "", err
	}
	return id, nil
}

// PutMulti stores a batch of records, writing in parallel.
func (s *LocalStore) PutMulti(ns []*Node) ([]ID, error) {
	ids := make([]ID, len(ns))
	p := pool.New().WithMaxGoroutines(s.writers).WithErrors()
	for i, n := range ns {
		p.Go(func() error {
			id, err := s.Put(n)
			if err != nil {
				return err
			}
			ids[i] = id
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		return nil, err
	}
	return ids, nil
}

func (s *LocalStore) writeObject(id ID, data []byte) error {
	path := s.objectPath(id)
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create object directory: %w", err)
	}
	return os.WriteFile(path, s.compressor.Compress(data), 0644)
}

func (s *LocalStore) Commit(root ID, base Revision, journal string) (Revision, error) {
	if _, err := os.Stat(s.objectPath(root)); err != nil {
		return "", fmt.Errorf("commit root %s: %w", root, ErrNotFound)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	j, err := s.journalLocked(journal)
	if err != nil {
		return "", err
	}
	head := Revision(root)
	if j.head != base {
		merged, err := merge3(localIO{s}, base.RootID(), j.head.RootID(), root, "/")
		if err != nil {
			return "", err
		}
		head = Revision(merged)
	}
	if err := s.writeJournal(journal, head, j.base); err != nil {
		return "", err
	}
	return head, nil
}

func (s *LocalStore) MergeJournal(journal string) (Revision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	root, err := s.journalLocked(RootJournal)
	if err != nil {
		return "", err
	}
	if journal == RootJournal {
		return root.head, nil
	}
	j, err := s.journalLocked(journal)
	if err != nil {
		return "", err
	}
	merged, err := merge3(localIO{s}, j.base.RootID(), root.head.RootID(), j.head.RootID(), "/")
	if err != nil {
		return "", err
	}
	rev := Revision(merged)
	if err := s.writeJournal(RootJournal, rev, rev); err != nil {
		return "", err
	}
	if err := s.writeJournal(journal, rev, rev); err != nil {
		return "", err
	}
	return rev, nil
}

func (s *LocalStore) Checkpoint(lifetime time.Duration, journal string) (string, error) {
	if lifetime <= 0 {
		return "", ErrInvalidLifetime
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	j, err := s.journalLocked(journal)
	if err != nil {
		return "", err
	}
	id := uuid.NewString()
	expires := time.Now().Add(lifetime).UnixMilli()
	content := fmt.Sprintf("%s\n%d\n", j.head, expires)
	if err := os.WriteFile(s.checkpointPath(id), []byte(content), 0644); err != nil {
		return "", fmt.Errorf("write checkpoint: %w", err)
	}
	return id, nil
}

func (s *LocalStore) ReadCheckpoint(id string) (Revision, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := os.ReadFile(s.checkpointPath(id))
	if err != nil {
		return "", false
	}
	var rev string
	var expires int64
	if _, err := fmt.Sscanf(string(data), "%s\n%d", &rev, &expires); err != nil {
		return "", false
	}
	if time.Now().UnixMilli() > expires {
		os.Remove(s.checkpointPath(id))
		return "", false
	}
	return Revision(rev), true
}

func (s *LocalStore) WriteBlob(r io.Reader) (BlobRef, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read blob stream: %w", err)
	}
	ref := hashBlob(data)
	path := s.blobPath(ref)
	if _, err := os.Stat(path); err == nil {
		return ref, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("create blob directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("write blob: %w", err)
	}
	return ref, nil
}

func (s *LocalStore) ReadBlob(ref BlobRef) ([]byte, error) {
	data, err := os.ReadFile(s.blobPath(ref))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("blob %s: %w", ref, ErrNotFound)
		}
		return nil, fmt.Errorf("read blob: %w", err)
	}
	return data, nil
}

// Journals lists the journal names present in the store.
func (s *LocalStore) Journals() ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(s.basePath, "journals"))
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Name() == rootJournalFile {
			names = append(names, RootJournal)
			continue
		}
		names = append(names, e.Name())
	}
	return names, nil
}

// Checkpoints lists the ids of unexpired checkpoints.
func (s *LocalStore) Checkpoints() ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(s.basePath, "checkpoints"))
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, e := range entries {
		if _, ok := s.ReadCheckpoint(e.Name()); ok {
			ids = append(ids, e.Name())
		}
	}
	return ids, nil
}

func (s *LocalStore) journalLocked(journal string) (journalState, error) {
	data, err := os.ReadFile(s.journalPath(journal))
	if os.IsNotExist(err) && journal != RootJournal {
		// new journals fork from the root journal's current head
		root, err := s.journalLocked(RootJournal)
		if err != nil {
			return journalState{}, err
		}
		j := journalState{head: root.head, base: root.head}
		return j, s.writeJournal(journal, j.head, j.base)
	}
	if err != nil {
		return journalState{}, fmt.Errorf("read journal %q: %w", journal, err)
	}
	lines := strings.SplitN(strings.TrimSpace(string(data)), "\n", 2)
	j := journalState{head: Revision(lines[0])}
	if len(lines) > 1 {
		j.base = Revision(lines[1])
	}
	return j, nil
}

func (s *LocalStore) writeJournal(journal string, head, base Revision) error {
	content := fmt.Sprintf("%s\n%s\n", head, base)
	return os.WriteFile(s.journalPath(journal), []byte(content), 0644)
}

// objectPath returns the filesystem path for a record id.
// Git-style sharding: objects/ab/cd123...
func (s *LocalStore) objectPath(id ID) string {
	h := string(id)
	if len(h) < 2 {
		return filepath.Join(s.basePath, "objects", h)
	}
	return filepath.Join(s.basePath, "objects", h[:2], h[2:])
}

func (s *LocalStore) blobPath(ref BlobRef) string {
	h := string(ref)
	if len(h) < 2 {
		return filepath.Join(s.basePath, "blobs", h)
	}
	return filepath.Join(s.basePath, "blobs", h[:2], h[2:])
}

func (s *LocalStore) journalPath(journal string) string {
	name := journal
	if name == RootJournal {
		name = rootJournalFile
	}
	return filepath.Join(s.basePath, "journals", name)
}

func (s *LocalStore) checkpointPath(id string) string {
	return filepath.Join(s.basePath, "checkpoints", id)
}

// localIO reads and writes records directly; object files are immutable so
// no locking is needed for merge traversal.
type localIO struct{ s *LocalStore }

func (l localIO) get(id ID) (*Node, error) { return l.s.Get(id) }
func (l localIO) put(n *Node) (ID, error)  { return l.s.Put(n) }
