package canopy

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildState materializes a small tree for tests.
func buildState(edit func(b *NodeBuilder)) NodeState {
	b := EmptyState.Builder()
	edit(b)
	return b.NodeState()
}

func TestBuilderCleanReturnsBase(t *testing.T) {
	t.Parallel()

	base := buildState(func(b *NodeBuilder) {
		b.SetString("title", "hello")
	})
	assert.Same(t, base, base.Builder().NodeState())
}

func TestBuilderSetAndRemoveProperties(t *testing.T) {
	t.Parallel()

	st := buildState(func(b *NodeBuilder) {
		b.SetString("title", "hello")
		b.SetLong("count", 3)
		b.SetString("title", "replaced")
	})

	require.Equal(t, 2, st.PropertyCount())
	title, ok := st.Property("title")
	require.True(t, ok)
	assert.Equal(t, "replaced", title.Value().Text())

	next := st.Builder()
	next.RemoveProperty("count")
	next.RemoveProperty("never-existed")
	st2 := next.NodeState()

	assert.Equal(t, 1, st2.PropertyCount())
	_, ok = st2.Property("count")
	assert.False(t, ok)

	// the original state is untouched
	_, ok = st.Property("count")
	assert.True(t, ok)
}

func TestBuilderChildCreation(t *testing.T) {
	t.Parallel()

	st := buildState(func(b *NodeBuilder) {
		b.Child("a").Child("b").SetString("deep", "yes")
	})

	require.True(t, st.HasChild("a"))
	deep := st.Child("a").Child("b")
	require.True(t, deep.Exists())
	p, ok := deep.Property("deep")
	require.True(t, ok)
	assert.Equal(t, "yes", p.Value().Text())
}

func TestBuilderRemoveChild(t *testing.T) {
	t.Parallel()

	base := buildState(func(b *NodeBuilder) {
		b.Child("keep").SetString("k", "1")
		b.Child("drop").SetString("k", "2")
	})

	b := base.Builder()
	assert.True(t, b.RemoveChild("drop"))
	assert.False(t, b.RemoveChild("absent"))
	assert.False(t, b.HasChild("drop"))
	st := b.NodeState()

	assert.Equal(t, 1, st.ChildCount())
	assert.True(t, st.HasChild("keep"))
	assert.False(t, st.Child("drop").Exists())

	// removal then re-creation yields a fresh empty node
	b2 := st.Builder()
	b2.RemoveChild("keep")
	b2.Child("keep").SetString("fresh", "yes")
	st2 := b2.NodeState()
	_, ok := st2.Child("keep").Property("k")
	assert.False(t, ok)
	_, ok = st2.Child("keep").Property("fresh")
	assert.True(t, ok)
}

func TestBuilderSetNode(t *testing.T) {
	t.Parallel()

	subtree := buildState(func(b *NodeBuilder) {
		b.SetString("origin", "transplanted")
	})
	st := buildState(func(b *NodeBuilder) {
		b.SetNode("grafted", subtree)
	})

	assert.Same(t, subtree, st.Child("grafted"))
}

func TestBuilderSetNodeMissingRemoves(t *testing.T) {
	t.Parallel()

	base := buildState(func(b *NodeBuilder) {
		b.Child("doomed").SetString("k", "v")
		b.Child("kept").SetString("k", "v")
	})

	b := base.Builder()
	b.SetNode("doomed", Missing)
	assert.False(t, b.HasChild("doomed"))
	st := b.NodeState()

	// the staged view and the materialized state agree
	assert.False(t, st.HasChild("doomed"))
	assert.False(t, st.Child("doomed").Exists())
	assert.Equal(t, 1, st.ChildCount())
	assert.Equal(t, []string{"kept"}, slices.Collect(st.ChildNames()))

	// same for a child the base never had
	b2 := base.Builder()
	b2.SetNode("never", Missing)
	assert.False(t, b2.HasChild("never"))
	assert.Same(t, base, b2.NodeState())
}

func TestBuilderSharesUntouchedSubtrees(t *testing.T) {
	t.Parallel()

	base := buildState(func(b *NodeBuilder) {
		b.Child("stable").SetString("k", "v")
		b.Child("edited").SetString("k", "v")
	})

	b := base.Builder()
	b.Child("edited").SetString("k", "changed")
	st := b.NodeState()

	// the untouched sibling is shared by reference, not rebuilt
	assert.Same(t, base.Child("stable"), st.Child("stable"))
	assert.NotSame(t, base.Child("edited"), st.Child("edited"))
}

func TestBuilderMissingBase(t *testing.T) {
	t.Parallel()

	b := Missing.Builder()
	assert.False(t, b.HasChild("anything"))
	b.SetString("now", "exists")
	st := b.NodeState()
	assert.True(t, st.Exists())
	assert.Equal(t, 1, st.PropertyCount())
}

func TestStateEqual(t *testing.T) {
	t.Parallel()

	build := func() NodeState {
		return buildState(func(b *NodeBuilder) {
			b.SetString("title", "same")
			b.Child("c").SetLong("n", 1)
		})
	}

	a, b := build(), build()
	assert.True(t, Equal(a, b))
	assert.True(t, Equal(Missing, Missing))
	assert.False(t, Equal(a, Missing))
	assert.False(t, Equal(a, EmptyState))

	c := buildState(func(bld *NodeBuilder) {
		bld.SetString("title", "different")
		bld.Child("c").SetLong("n", 1)
	})
	assert.False(t, Equal(a, c))
}

func TestStateAt(t *testing.T) {
	t.Parallel()

	st := buildState(func(b *NodeBuilder) {
		b.Child("a").Child("b").SetString("k", "v")
	})

	assert.Same(t, st, stateAt(st, "/"))
	assert.Same(t, st, stateAt(st, ""))
	assert.True(t, stateAt(st, "/a/b").Exists())
	assert.True(t, stateAt(st, "a/b").Exists())
	assert.False(t, stateAt(st, "/a/missing").Exists())
	assert.False(t, stateAt(st, "/x").Exists())
}

func TestSplitPath(t *testing.T) {
	t.Parallel()

	dir, name := splitPath("/a/b/c")
	assert.Equal(t, "/a/b", dir)
	assert.Equal(t, "c", name)

	dir, name = splitPath("/top")
	assert.Equal(t, "/", dir)
	assert.Equal(t, "top", name)

	dir, name = splitPath("/")
	assert.Equal(t, "/", dir)
	assert.Equal(t, "", name)
}
