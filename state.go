package canopy

import (
	"iter"
	"path/filepath"
	"strings"

	"github.com/canopydb/canopy/internal/record"
)

// BlobRef is an opaque reference to a binary stored through a NodeStore.
type BlobRef = record.BlobRef

// NodeState is an immutable snapshot of a subtree. Two states are equal
// iff their property sets and child subtrees are recursively equal; use
// Equal for comparison. States are safely shared across goroutines.
type NodeState interface {
	// Exists reports whether this node exists. Child lookups on missing
	// names return a non-nil state with Exists() == false.
	Exists() bool

	// Property returns the named property, if present.
	Property(name string) (PropertyState, bool)

	// Properties iterates the node's properties in storage order.
	Properties() iter.Seq[PropertyState]

	// PropertyCount returns the number of properties.
	PropertyCount() int

	// HasChild reports whether a child with the given name exists.
	HasChild(name string) bool

	// Child returns the named child state, which may not exist.
	Child(name string) NodeState

	// Children iterates child names and states in storage order.
	Children() iter.Seq2[string, NodeState]

	// ChildNames iterates the child names in storage order.
	ChildNames() iter.Seq[string]

	// ChildCount returns the number of children.
	ChildCount() int

	// Builder returns a new staging builder based on this state.
	Builder() *NodeBuilder

	// recordID returns the backing record id, or "" when the state has
	// not been persisted. Closes the interface to this package.
	recordID() record.ID
}

// memoryState is a fully materialized NodeState, typically produced by a
// NodeBuilder. Property and child order is insertion order.
type memoryState struct {
	props      []PropertyState
	childNames []string
	children   map[string]NodeState
}

// EmptyState is an existing node with no properties and no children.
var EmptyState NodeState = &memoryState{}

// Missing is the shared state for nonexistent nodes.
var Missing NodeState = missing{}

func (s *memoryState) Exists() bool { return true }

func (s *memoryState) Property(name string) (PropertyState, bool) {
	for _, p := range s.props {
		if p.Name() == name {
			return p, true
		}
	}
	return PropertyState{}, false
}

func (s *memoryState) Properties() iter.Seq[PropertyState] {
	return func(yield func(PropertyState) bool) {
		for _, p := range s.props {
			if !yield(p) {
				return
			}
		}
	}
}

func (s *memoryState) PropertyCount() int { return len(s.props) }

func (s *memoryState) HasChild(name string) bool {
	_, ok := s.children[name]
	return ok
}

func (s *memoryState) Child(name string) NodeState {
	if c, ok := s.children[name]; ok {
		return c
	}
	return Missing
}

func (s *memoryState) Children() iter.Seq2[string, NodeState] {
	return func(yield func(string, NodeState) bool) {
		for _, name := range s.childNames {
			if !yield(name, s.children[name]) {
				return
			}
		}
	}
}

func (s *memoryState) ChildNames() iter.Seq[string] {
	return func(yield func(string) bool) {
		for _, name := range s.childNames {
			if !yield(name) {
				return
			}
		}
	}
}

func (s *memoryState) ChildCount() int { return len(s.childNames) }

func (s *memoryState) Builder() *NodeBuilder { return newBuilder(s) }

func (s *memoryState) recordID() record.ID { return "" }

// missing is the state of a node that does not exist.
type missing struct{}

func (missing) Exists() bool                          { return false }
func (missing) Property(string) (PropertyState, bool) { return PropertyState{}, false }
func (missing) PropertyCount() int                    { return 0 }
func (missing) HasChild(string) bool                  { return false }
func (missing) Child(string) NodeState                { return Missing }
func (missing) ChildCount() int                       { return 0 }
func (missing) Builder() *NodeBuilder                 { return newBuilder(Missing) }
func (missing) recordID() record.ID                   { return "" }

func (missing) Properties() iter.Seq[PropertyState] {
	return func(func(PropertyState) bool) {}
}

func (missing) Children() iter.Seq2[string, NodeState] {
	return func(func(string, NodeState) bool) {}
}

func (missing) ChildNames() iter.Seq[string] {
	return func(func(string) bool) {}
}

// Equal reports recursive structural equality of two states. Persisted
// states short-circuit on matching record ids.
func Equal(a, b NodeState) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a == b {
		return true
	}
	if a.Exists() != b.Exists() {
		return false
	}
	if !a.Exists() {
		return true
	}
	if ida, idb := a.recordID(), b.recordID(); ida != "" && idb != "" {
		return ida == idb
	}
	if a.PropertyCount() != b.PropertyCount() || a.ChildCount() != b.ChildCount() {
		return false
	}
	for p := range a.Properties() {
		op, ok := b.Property(p.Name())
		if !ok || !p.Equal(op) {
			return false
		}
	}
	for name, child := range a.Children() {
		other := b.Child(name)
		if !other.Exists() || !Equal(child, other) {
			return false
		}
	}
	return true
}

// stateAt resolves a slash-separated path against a state, returning
// Missing if any segment does not exist.
func stateAt(st NodeState, path string) NodeState {
	path = cleanPath(path)
	if path == "/" {
		return st
	}
	current := st
	for _, part := range strings.Split(strings.Trim(path, "/"), "/") {
		if part == "" {
			continue
		}
		current = current.Child(part)
		if !current.Exists() {
			return Missing
		}
	}
	return current
}

func cleanPath(path string) string {
	if path == "" || path == "." {
		return "/"
	}
	path = filepath.Clean("/" + strings.TrimPrefix(path, "/"))
	if path == "." {
		return "/"
	}
	return path
}

func splitPath(path string) (dir, name string) {
	path = cleanPath(path)
	if path == "/" {
		return "/", ""
	}
	dir, name = filepath.Split(path)
	if dir != "/" {
		dir = strings.TrimSuffix(dir, "/")
	}
	return dir, name
}
