package canopy

// NodeBuilder is a mutable staging area over a base NodeState. Edits
// accumulate in memory; NodeState materializes them into a new immutable
// state that shares every untouched subtree with the base.
//
// A builder is owned by a single logical writer; concurrent unsynchronized
// use is undefined.
type NodeBuilder struct {
	base NodeState

	setProps     map[string]PropertyState
	propOrder    []string
	removedProps map[string]struct{}

	staged        map[string]*NodeBuilder
	childOrder    []string
	removedChilds map[string]struct{}

	dirty bool
}

func newBuilder(base NodeState) *NodeBuilder {
	return &NodeBuilder{base: base}
}

// Base returns the state this builder was created from.
func (b *NodeBuilder) Base() NodeState { return b.base }

// SetProperty stages a property set, replacing any previous value.
func (b *NodeBuilder) SetProperty(p PropertyState) *NodeBuilder {
	if b.setProps == nil {
		b.setProps = make(map[string]PropertyState)
	}
	if _, staged := b.setProps[p.Name()]; !staged {
		b.propOrder = append(b.propOrder, p.Name())
	}
	b.setProps[p.Name()] = p
	delete(b.removedProps, p.Name())
	b.dirty = true
	return b
}

// SetString stages a single string property.
func (b *NodeBuilder) SetString(name, value string) *NodeBuilder {
	return b.SetProperty(StringProperty(name, value))
}

// SetLong stages a single long property.
func (b *NodeBuilder) SetLong(name string, value int64) *NodeBuilder {
	return b.SetProperty(LongProperty(name, value))
}

// RemoveProperty stages a property removal. Removing an absent property is
// a no-op.
func (b *NodeBuilder) RemoveProperty(name string) *NodeBuilder {
	if b.setProps != nil {
		if _, ok := b.setProps[name]; ok {
			delete(b.setProps, name)
			for i, n := range b.propOrder {
				if n == name {
					b.propOrder = append(b.propOrder[:i], b.propOrder[i+1:]...)
					break
				}
			}
		}
	}
	if _, ok := b.base.Property(name); ok {
		if b.removedProps == nil {
			b.removedProps = make(map[string]struct{})
		}
		b.removedProps[name] = struct{}{}
	}
	b.dirty = true
	return b
}

// Child returns a builder for the named child, creating the child if it
// does not exist.
func (b *NodeBuilder) Child(name string) *NodeBuilder {
	if c, ok := b.stagedChild(name); ok {
		return c
	}
	base := b.base.Child(name)
	if _, removed := b.removedChilds[name]; removed {
		base = Missing
	}
	child := newBuilder(base)
	if !base.Exists() {
		// bringing a new node into existence is itself an edit
		child.base = EmptyState
		child.dirty = true
		b.dirty = true
	}
	b.stage(name, child)
	return child
}

// HasChild reports whether the named child exists in the staged view.
func (b *NodeBuilder) HasChild(name string) bool {
	if _, ok := b.stagedChild(name); ok {
		return true
	}
	if _, removed := b.removedChilds[name]; removed {
		return false
	}
	return b.base.HasChild(name)
}

// SetNode stages a wholesale replacement of the named child with the given
// state. A non-existing state removes the child.
func (b *NodeBuilder) SetNode(name string, st NodeState) *NodeBuilder {
	if !st.Exists() {
		b.RemoveChild(name)
		return b
	}
	b.stage(name, newBuilder(st))
	b.dirty = true
	return b
}

// RemoveChild stages removal of the named child subtree. It reports
// whether the child existed.
func (b *NodeBuilder) RemoveChild(name string) bool {
	existed := b.HasChild(name)
	if b.staged != nil {
		delete(b.staged, name)
		for i, n := range b.childOrder {
			if n == name {
				b.childOrder = append(b.childOrder[:i], b.childOrder[i+1:]...)
				break
			}
		}
	}
	if b.base.HasChild(name) {
		if b.removedChilds == nil {
			b.removedChilds = make(map[string]struct{})
		}
		b.removedChilds[name] = struct{}{}
	}
	if existed {
		b.dirty = true
	}
	return existed
}

func (b *NodeBuilder) stage(name string, child *NodeBuilder) {
	if b.staged == nil {
		b.staged = make(map[string]*NodeBuilder)
	}
	if _, ok := b.staged[name]; !ok {
		b.childOrder = append(b.childOrder, name)
	}
	b.staged[name] = child
	delete(b.removedChilds, name)
}

func (b *NodeBuilder) stagedChild(name string) (*NodeBuilder, bool) {
	if b.staged == nil {
		return nil, false
	}
	c, ok := b.staged[name]
	return c, ok
}

func (b *NodeBuilder) isDirty() bool {
	if b.dirty {
		return true
	}
	for _, c := range b.staged {
		if c.isDirty() {
			return true
		}
	}
	return false
}

// NodeState materializes the staged edits into a new immutable state. A
// builder with no edits returns its base unchanged.
func (b *NodeBuilder) NodeState() NodeState {
	if !b.isDirty() {
		return b.base
	}

	st := &memoryState{children: make(map[string]NodeState)}

	for p := range b.base.Properties() {
		if _, removed := b.removedProps[p.Name()]; removed {
			continue
		}
		if override, ok := b.setProps[p.Name()]; ok {
			st.props = append(st.props, override)
			continue
		}
		st.props = append(st.props, p)
	}
	for _, name := range b.propOrder {
		if _, ok := b.base.Property(name); ok {
			continue // replaced in place above
		}
		st.props = append(st.props, b.setProps[name])
	}

	for name, child := range b.base.Children() {
		if _, removed := b.removedChilds[name]; removed {
			continue
		}
		if staged, ok := b.stagedChild(name); ok {
			if materialized := staged.NodeState(); materialized.Exists() {
				st.childNames = append(st.childNames, name)
				st.children[name] = materialized
			}
			continue
		}
		st.childNames = append(st.childNames, name)
		st.children[name] = child
	}
	for _, name := range b.childOrder {
		if b.base.HasChild(name) {
			continue // merged in base order above
		}
		child := b.staged[name].NodeState()
		if !child.Exists() {
			continue
		}
		st.childNames = append(st.childNames, name)
		st.children[name] = child
	}

	return st
}
