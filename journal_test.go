package canopy

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newWorkspaces opens one NodeStore per name over a shared backing store.
func newWorkspaces(t *testing.T, names ...string) (Store, map[string]*NodeStore) {
	t.Helper()
	rs := NewMemoryStore()
	stores := make(map[string]*NodeStore, len(names))
	for _, name := range names {
		s, err := New(rs, WithWorkspace(name))
		require.NoError(t, err)
		stores[name] = s
	}
	return rs, stores
}

func hasProp(st NodeState, name string) bool {
	_, ok := st.Property(name)
	return ok
}

func TestWorkspaceForksFromRootHead(t *testing.T) {
	t.Parallel()

	rs, stores := newWorkspaces(t, "")
	root := stores[""]
	mergeEdit(t, root, func(b *NodeBuilder) { b.SetString("existing", "content") })

	// a workspace opened now starts at the root journal's current head
	w, err := New(rs, WithWorkspace("fresh"))
	require.NoError(t, err)
	assert.True(t, hasProp(w.Root(), "existing"))
	assert.Equal(t, "fresh", w.Workspace())
}

func TestWorkspaceChangesStayPrivateUntilJournalMerge(t *testing.T) {
	t.Parallel()

	_, stores := newWorkspaces(t, "", "w")
	root, w := stores[""], stores["w"]

	mergeEdit(t, w, func(b *NodeBuilder) { b.SetString("draft", "private") })

	// the workspace sees its own merge, the root workspace does not
	assert.True(t, hasProp(w.Root(), "draft"))
	assert.False(t, hasProp(root.Root(), "draft"))

	_, err := w.Journal().Merge()
	require.NoError(t, err)

	assert.True(t, hasProp(root.Root(), "draft"))
}

func TestRootChangesReachWorkspaceOnItsMerge(t *testing.T) {
	t.Parallel()

	_, stores := newWorkspaces(t, "", "w")
	root, w := stores[""], stores["w"]

	// pin the workspace journal before the root moves
	_ = w.Root()

	mergeEdit(t, root, func(b *NodeBuilder) { b.SetString("published", "yes") })

	// propagation is pull-based: w keeps its prior head
	assert.False(t, hasProp(w.Root(), "published"))

	after, err := w.Journal().Merge()
	require.NoError(t, err)
	assert.True(t, hasProp(after, "published"))
	assert.True(t, hasProp(w.Root(), "published"))
}

func TestJournalMergeFastForwardsBothSides(t *testing.T) {
	t.Parallel()

	_, stores := newWorkspaces(t, "", "w")
	root, w := stores[""], stores["w"]

	mergeEdit(t, w, func(b *NodeBuilder) { b.SetString("from-w", "1") })
	mergeEdit(t, root, func(b *NodeBuilder) { b.SetString("from-root", "2") })

	after, err := w.Journal().Merge()
	require.NoError(t, err)

	// both journals land on the combined state
	for _, st := range []NodeState{after, w.Root(), root.Root()} {
		assert.True(t, hasProp(st, "from-w"))
		assert.True(t, hasProp(st, "from-root"))
	}
	assert.True(t, Equal(w.Root(), root.Root()))
}

func TestJournalMergeOnRootWorkspaceIsNoop(t *testing.T) {
	t.Parallel()

	_, stores := newWorkspaces(t, "")
	root := stores[""]
	mergeEdit(t, root, func(b *NodeBuilder) { b.SetString("k", "v") })

	before := root.Root()
	after, err := root.Journal().Merge()
	require.NoError(t, err)
	assert.True(t, Equal(before, after))
}

func TestDisjointWorkspacesConvergeToUnion(t *testing.T) {
	t.Parallel()

	names := []string{"left", "mid", "right"}
	_, stores := newWorkspaces(t, append([]string{""}, names...)...)

	for i, name := range names {
		w := stores[name]
		prop := fmt.Sprintf("set-by-%s", name)
		mergeEdit(t, w, func(b *NodeBuilder) {
			b.SetString(prop, fmt.Sprintf("%d", i))
		})
	}

	// merge each workspace journal in turn, then pull the others up
	for _, name := range names {
		_, err := stores[name].Journal().Merge()
		require.NoError(t, err)
	}
	for _, name := range names {
		_, err := stores[name].Journal().Merge()
		require.NoError(t, err)
	}

	want := stores[""].Root()
	for _, name := range names {
		got := stores[name].Root()
		for _, other := range names {
			assert.True(t, hasProp(got, "set-by-"+other),
				"workspace %s must see the edit from %s", name, other)
		}
		assert.True(t, Equal(want, got))
	}
}

func TestJournalMergeDuringBranchMergeIsPreserved(t *testing.T) {
	t.Parallel()

	_, stores := newWorkspaces(t, "", "w")
	root, w := stores[""], stores["w"]

	mergeEdit(t, w, func(b *NodeBuilder) { b.SetString("from-w", "1") })

	branch := root.Branch()
	b := branch.Head().Builder()
	b.SetString("from-branch", "2")
	require.NoError(t, branch.SetRoot(b.NodeState()))

	// fold the workspace journal into the root journal after the branch
	// merge has captured its base but before it commits
	fold := CommitHookFunc(func(_, after NodeState) (NodeState, error) {
		_, err := w.Journal().Merge()
		return after, err
	})

	_, err := branch.Merge(context.Background(), fold, nil)
	require.NoError(t, err)

	// neither side's edit may be dropped
	head := root.Root()
	assert.True(t, hasProp(head, "from-w"))
	assert.True(t, hasProp(head, "from-branch"))
}

func TestJournalMergeRepeatedIsIdempotent(t *testing.T) {
	t.Parallel()

	_, stores := newWorkspaces(t, "", "w")
	w := stores["w"]
	mergeEdit(t, w, func(b *NodeBuilder) { b.SetString("once", "1") })

	first, err := w.Journal().Merge()
	require.NoError(t, err)
	second, err := w.Journal().Merge()
	require.NoError(t, err)
	assert.True(t, Equal(first, second))
}
