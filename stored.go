package canopy

import (
	"iter"
	"log/slog"
	"path"

	"github.com/canopydb/canopy/internal/cache"
	"github.com/canopydb/canopy/internal/record"
)

// treeReader materializes stored states through the revision cache.
type treeReader struct {
	rs    record.Store
	cache *cache.Cache
	log   *slog.Logger
}

// nodeData is the cached payload for one (revision, path): the converted
// properties plus the raw child references.
type nodeData struct {
	props    []PropertyState
	children []record.Child
}

// stateAt returns the stored state for a path within a revision, loading
// and caching its record eagerly so construction reports read errors.
func (r *treeReader) stateAt(rev record.Revision, p string, id record.ID) (*storedState, error) {
	st := &storedState{r: r, rev: rev, path: p, id: id}
	if _, err := st.load(); err != nil {
		return nil, err
	}
	return st, nil
}

func (r *treeReader) root(rev record.Revision) (*storedState, error) {
	return r.stateAt(rev, "/", rev.RootID())
}

func (r *treeReader) data(rev record.Revision, p string, id record.ID) (*nodeData, error) {
	v, err := r.cache.GetOrLoad(cache.Key{Revision: string(rev), Path: p}, func() (interface{}, int64, error) {
		n, err := r.rs.Get(id)
		if err != nil {
			return nil, 0, err
		}
		d := &nodeData{children: n.Children}
		for _, wp := range n.Props {
			prop, err := propFromWire(wp)
			if err != nil {
				return nil, 0, err
			}
			d.props = append(d.props, prop)
		}
		return d, n.ApproxSize(), nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*nodeData), nil
}

// storedState is a NodeState backed by a node record, materialized lazily
// through the revision cache and safe for concurrent readers.
type storedState struct {
	r    *treeReader
	rev  record.Revision
	path string
	id   record.ID
}

func (s *storedState) load() (*nodeData, error) {
	return s.r.data(s.rev, s.path, s.id)
}

// data returns the node payload, degrading to an empty node if the backing
// read fails after the state was first materialized.
func (s *storedState) data() *nodeData {
	d, err := s.load()
	if err != nil {
		s.r.log.Error("node record read failed",
			"revision", string(s.rev), "path", s.path, "err", err)
		return &nodeData{}
	}
	return d
}

func (s *storedState) Exists() bool { return true }

func (s *storedState) Property(name string) (PropertyState, bool) {
	for _, p := range s.data().props {
		if p.Name() == name {
			return p, true
		}
	}
	return PropertyState{}, false
}

func (s *storedState) Properties() iter.Seq[PropertyState] {
	return func(yield func(PropertyState) bool) {
		for _, p := range s.data().props {
			if !yield(p) {
				return
			}
		}
	}
}

func (s *storedState) PropertyCount() int { return len(s.data().props) }

func (s *storedState) HasChild(name string) bool {
	for _, c := range s.data().children {
		if c.Name == name {
			return true
		}
	}
	return false
}

func (s *storedState) Child(name string) NodeState {
	for _, c := range s.data().children {
		if c.Name == name {
			return &storedState{r: s.r, rev: s.rev, path: path.Join(s.path, name), id: c.ID}
		}
	}
	return Missing
}

func (s *storedState) Children() iter.Seq2[string, NodeState] {
	return func(yield func(string, NodeState) bool) {
		for _, c := range s.data().children {
			child := &storedState{r: s.r, rev: s.rev, path: path.Join(s.path, c.Name), id: c.ID}
			if !yield(c.Name, child) {
				return
			}
		}
	}
}

func (s *storedState) ChildNames() iter.Seq[string] {
	return func(yield func(string) bool) {
		for _, c := range s.data().children {
			if !yield(c.Name) {
				return
			}
		}
	}
}

func (s *storedState) ChildCount() int { return len(s.data().children) }

func (s *storedState) Builder() *NodeBuilder { return newBuilder(s) }

func (s *storedState) recordID() record.ID { return s.id }
