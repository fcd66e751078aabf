package canopy

import (
	"path"
	"strings"
)

// OpKind identifies one kind of tree edit.
type OpKind uint8

const (
	// OpSetProperty sets or replaces a property on the node at Path.
	OpSetProperty OpKind = iota + 1
	// OpRemoveProperty removes the property Name from the node at Path.
	OpRemoveProperty
	// OpAddNode adds the subtree State at Path.
	OpAddNode
	// OpRemoveNode removes the subtree at Path.
	OpRemoveNode
)

// Op is a single tree edit.
type Op struct {
	Kind     OpKind
	Path     string
	Name     string        // property name for OpRemoveProperty
	Property PropertyState // payload for OpSetProperty
	State    NodeState     // subtree for OpAddNode, shared, not copied
}

// Changeset is an ordered list of edits: the net difference between two
// states, replayable onto any base.
type Changeset struct {
	ops []Op
}

// Compare computes the changeset that turns before into after. Identical
// subtrees are skipped via record-id short-circuit where available.
func Compare(before, after NodeState) *Changeset {
	c := &Changeset{}
	compareState(before, after, "/", c)
	return c
}

func compareState(before, after NodeState, at string, c *Changeset) {
	if before == after {
		return
	}
	if bid, aid := before.recordID(), after.recordID(); bid != "" && bid == aid {
		return
	}

	for p := range after.Properties() {
		bp, ok := before.Property(p.Name())
		if !ok || !p.Equal(bp) {
			c.ops = append(c.ops, Op{Kind: OpSetProperty, Path: at, Property: p})
		}
	}
	for p := range before.Properties() {
		if _, ok := after.Property(p.Name()); !ok {
			c.ops = append(c.ops, Op{Kind: OpRemoveProperty, Path: at, Name: p.Name()})
		}
	}

	for name, ac := range after.Children() {
		bc := before.Child(name)
		childPath := path.Join(at, name)
		if !bc.Exists() {
			c.ops = append(c.ops, Op{Kind: OpAddNode, Path: childPath, State: ac})
			continue
		}
		compareState(bc, ac, childPath, c)
	}
	for name := range before.ChildNames() {
		if !after.HasChild(name) {
			c.ops = append(c.ops, Op{Kind: OpRemoveNode, Path: path.Join(at, name)})
		}
	}
}

// Apply replays the changeset on top of base and returns the resulting
// state. Missing intermediate nodes are created; property overlap resolves
// in favor of the changeset (last write wins); disjoint edits union.
func (c *Changeset) Apply(base NodeState) NodeState {
	if c.Empty() {
		return base
	}
	root := base.Builder()
	for _, op := range c.ops {
		switch op.Kind {
		case OpSetProperty:
			builderAt(root, op.Path).SetProperty(op.Property)
		case OpRemoveProperty:
			builderAt(root, op.Path).RemoveProperty(op.Name)
		case OpAddNode:
			dir, name := splitPath(op.Path)
			builderAt(root, dir).SetNode(name, op.State)
		case OpRemoveNode:
			dir, name := splitPath(op.Path)
			builderAt(root, dir).RemoveChild(name)
		}
	}
	return root.NodeState()
}

// Empty reports whether the changeset carries no edits.
func (c *Changeset) Empty() bool { return len(c.ops) == 0 }

// Len returns the number of edits.
func (c *Changeset) Len() int { return len(c.ops) }

// Ops returns the edits in application order.
func (c *Changeset) Ops() []Op {
	ops := make([]Op, len(c.ops))
	copy(ops, c.ops)
	return ops
}

// builderAt descends to the builder for a path, creating missing
// intermediate nodes.
func builderAt(b *NodeBuilder, p string) *NodeBuilder {
	p = cleanPath(p)
	if p == "/" {
		return b
	}
	current := b
	for _, part := range strings.Split(strings.Trim(p, "/"), "/") {
		if part == "" {
			continue
		}
		current = current.Child(part)
	}
	return current
}
