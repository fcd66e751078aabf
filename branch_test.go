package canopy

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBranchIsolation(t *testing.T) {
	t.Parallel()

	s := newStore(t)
	branch := s.Branch()

	b := branch.Head().Builder()
	b.SetString("draft", "in progress")
	require.NoError(t, branch.SetRoot(b.NodeState()))

	// the store head does not see unmerged branch state
	_, ok := s.Root().Property("draft")
	assert.False(t, ok)
	_, ok = branch.Head().Property("draft")
	assert.True(t, ok)
	assert.True(t, Equal(branch.Base(), s.Root()))
}

func TestBranchMergeLifecycle(t *testing.T) {
	t.Parallel()

	s := newStore(t)
	branch := s.Branch()

	b := branch.Head().Builder()
	b.SetString("k", "v")
	require.NoError(t, branch.SetRoot(b.NodeState()))
	assert.False(t, branch.Merged())

	merged, err := branch.Merge(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.True(t, branch.Merged())
	assert.True(t, Equal(merged, s.Root()))

	// base and head stay readable, mutations fail
	assert.NotNil(t, branch.Base())
	assert.NotNil(t, branch.Head())
	assert.ErrorIs(t, branch.SetRoot(EmptyState), ErrBranchMerged)
	assert.ErrorIs(t, branch.Rebase(), ErrBranchMerged)
	_, err = branch.Move("/a", "/b")
	assert.ErrorIs(t, err, ErrBranchMerged)
	_, err = branch.Copy("/a", "/b")
	assert.ErrorIs(t, err, ErrBranchMerged)
	_, err = branch.Merge(context.Background(), nil, nil)
	assert.ErrorIs(t, err, ErrBranchMerged)
}

func TestBranchMergeCancelledContext(t *testing.T) {
	t.Parallel()

	s := newStore(t)
	branch := s.Branch()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := branch.Merge(ctx, nil, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, branch.Merged(), "a cancelled merge leaves the branch open")
}

func TestBranchMove(t *testing.T) {
	t.Parallel()

	s := newStore(t)
	mergeEdit(t, s, func(b *NodeBuilder) {
		b.Child("src").SetString("payload", "x")
		b.Child("dst")
	})
	branch := s.Branch()

	ok, err := branch.Move("/src", "/dst/moved")
	require.NoError(t, err)
	assert.True(t, ok)

	head := branch.Head()
	assert.False(t, head.HasChild("src"))
	p, found := head.Child("dst").Child("moved").Property("payload")
	require.True(t, found)
	assert.Equal(t, "x", p.Value().Text())
}

func TestBranchMoveExpectedFailures(t *testing.T) {
	t.Parallel()

	s := newStore(t)
	mergeEdit(t, s, func(b *NodeBuilder) {
		b.Child("a").SetString("k", "1")
		b.Child("b").SetString("k", "2")
	})
	branch := s.Branch()

	for name, tc := range map[string]struct{ source, target string }{
		"missing source":        {"/nope", "/a/x"},
		"missing target parent": {"/a", "/nowhere/x"},
		"target taken":          {"/a", "/b"},
	} {
		ok, err := branch.Move(tc.source, tc.target)
		require.NoError(t, err, name)
		assert.False(t, ok, name)
	}

	// failed moves leave the head untouched
	assert.True(t, Equal(branch.Base(), branch.Head()))
}

func TestBranchMoveIntoOwnSubtreeRefused(t *testing.T) {
	t.Parallel()

	s := newStore(t)
	mergeEdit(t, s, func(b *NodeBuilder) {
		a := b.Child("a")
		a.SetString("keep", "me")
		a.Child("b")
		a.Child("other")
	})
	branch := s.Branch()

	for name, tc := range map[string]struct{ source, target string }{
		"into own child":      {"/a", "/a/b"},
		"into own descendant": {"/a", "/a/b/c"},
		"onto itself":         {"/a", "/a"},
		"root anywhere":       {"/", "/a/b/root"},
	} {
		ok, err := branch.Move(tc.source, tc.target)
		require.NoError(t, err, name)
		assert.False(t, ok, name)
	}

	// nothing was destroyed by the refused moves
	head := branch.Head()
	p, found := head.Child("a").Property("keep")
	require.True(t, found)
	assert.Equal(t, "me", p.Value().Text())
	assert.True(t, head.Child("a").HasChild("b"))
	assert.True(t, head.Child("a").HasChild("other"))
	assert.True(t, Equal(branch.Base(), head))

	// only sibling-level prefixes are refused, not name prefixes
	ok, err := branch.Move("/a", "/ab")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestBranchCopyIntoOwnSubtree(t *testing.T) {
	t.Parallel()

	s := newStore(t)
	mergeEdit(t, s, func(b *NodeBuilder) {
		b.Child("a").SetString("k", "v")
	})
	branch := s.Branch()

	// copying grafts the source snapshot, so a target inside the source
	// stays well defined
	ok, err := branch.Copy("/a", "/a/inner")
	require.NoError(t, err)
	assert.True(t, ok)

	head := branch.Head()
	_, found := head.Child("a").Property("k")
	assert.True(t, found)
	_, found = head.Child("a").Child("inner").Property("k")
	assert.True(t, found)
	assert.False(t, head.Child("a").Child("inner").HasChild("inner"))
}

func TestBranchCopyKeepsSource(t *testing.T) {
	t.Parallel()

	s := newStore(t)
	mergeEdit(t, s, func(b *NodeBuilder) {
		b.Child("src").Child("nested").SetString("k", "v")
	})
	branch := s.Branch()

	ok, err := branch.Copy("/src", "/twin")
	require.NoError(t, err)
	assert.True(t, ok)

	head := branch.Head()
	assert.True(t, head.HasChild("src"))
	assert.True(t, head.HasChild("twin"))
	assert.True(t, Equal(head.Child("src"), head.Child("twin")))
}

func TestBranchRebasePicksUpStoreChanges(t *testing.T) {
	t.Parallel()

	s := newStore(t)
	branch := s.Branch()
	b := branch.Head().Builder()
	b.SetString("branch", "edit")
	require.NoError(t, branch.SetRoot(b.NodeState()))

	// the store moves on underneath the branch
	mergeEdit(t, s, func(b *NodeBuilder) { b.SetString("store", "edit") })

	require.NoError(t, branch.Rebase())

	head := branch.Head()
	_, ok := head.Property("branch")
	assert.True(t, ok, "local edit survives the rebase")
	_, ok = head.Property("store")
	assert.True(t, ok, "store edit is now visible")
	assert.True(t, Equal(branch.Base(), s.Root()))
}

func TestBranchRebaseWithoutEdits(t *testing.T) {
	t.Parallel()

	s := newStore(t)
	branch := s.Branch()
	mergeEdit(t, s, func(b *NodeBuilder) { b.SetString("store", "edit") })

	require.NoError(t, branch.Rebase())
	assert.True(t, Equal(branch.Head(), s.Root()))
}

func TestCommitHookTransformsCandidate(t *testing.T) {
	t.Parallel()

	s := newStore(t)
	branch := s.Branch()
	b := branch.Head().Builder()
	b.SetString("title", "raw")
	require.NoError(t, branch.SetRoot(b.NodeState()))

	stamp := CommitHookFunc(func(_, after NodeState) (NodeState, error) {
		nb := after.Builder()
		nb.SetString("stamped", "yes")
		return nb.NodeState(), nil
	})

	merged, err := branch.Merge(context.Background(), stamp, nil)
	require.NoError(t, err)
	_, ok := merged.Property("stamped")
	assert.True(t, ok)
}

func TestCommitHookRejection(t *testing.T) {
	t.Parallel()

	s := newStore(t)
	before := s.Root()
	branch := s.Branch()
	b := branch.Head().Builder()
	b.SetString("forbidden", "value")
	require.NoError(t, branch.SetRoot(b.NodeState()))

	veto := errors.New("schema violation")
	reject := CommitHookFunc(func(_, _ NodeState) (NodeState, error) {
		return nil, veto
	})

	_, err := branch.Merge(context.Background(), reject, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, veto)

	var ce *CommitError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, CommitRejected, ce.Kind)
	assert.False(t, IsConflict(err))

	// nothing was committed and the branch stays open for a retry
	assert.True(t, Equal(before, s.Root()))
	assert.False(t, branch.Merged())
}

func TestChainedHookOrder(t *testing.T) {
	t.Parallel()

	s := newStore(t)
	branch := s.Branch()
	b := branch.Head().Builder()
	b.SetLong("n", 0)
	require.NoError(t, branch.SetRoot(b.NodeState()))

	increment := CommitHookFunc(func(_, after NodeState) (NodeState, error) {
		p, _ := after.Property("n")
		nb := after.Builder()
		nb.SetLong("n", p.Value().Long()+1)
		return nb.NodeState(), nil
	})

	merged, err := branch.Merge(context.Background(), ChainedHook(increment, increment, increment), nil)
	require.NoError(t, err)
	p, _ := merged.Property("n")
	assert.Equal(t, int64(3), p.Value().Long())
}

func TestEmptyHookPassesThrough(t *testing.T) {
	t.Parallel()

	st := buildState(func(b *NodeBuilder) { b.SetString("k", "v") })
	out, err := EmptyHook.ProcessCommit(EmptyState, st)
	require.NoError(t, err)
	assert.Same(t, st, out)
}

func TestPostCommitHookFailureDoesNotUndoMerge(t *testing.T) {
	t.Parallel()

	s := newStore(t)
	branch := s.Branch()
	b := branch.Head().Builder()
	b.SetString("k", "v")
	require.NoError(t, branch.SetRoot(b.NodeState()))

	post := PostCommitHookFunc(func(_, _ NodeState) error {
		return errors.New("notification endpoint down")
	})

	merged, err := branch.Merge(context.Background(), nil, post)
	require.NoError(t, err, "post-commit failures are best-effort")
	assert.True(t, branch.Merged())
	assert.True(t, Equal(merged, s.Root()))
}

func TestPostCommitHookSeesDurableState(t *testing.T) {
	t.Parallel()

	s := newStore(t)
	branch := s.Branch()
	b := branch.Head().Builder()
	b.SetString("k", "v")
	require.NoError(t, branch.SetRoot(b.NodeState()))

	var sawBefore, sawAfter NodeState
	post := PostCommitHookFunc(func(before, after NodeState) error {
		sawBefore, sawAfter = before, after
		return nil
	})

	merged, err := branch.Merge(context.Background(), nil, post)
	require.NoError(t, err)
	assert.True(t, Equal(sawAfter, merged))
	_, ok := sawBefore.Property("k")
	assert.False(t, ok)
}

func TestDisjointBranchesMergeToUnion(t *testing.T) {
	t.Parallel()

	s := newStore(t)

	// two branches fork from the same base and set disjoint properties
	a := s.Branch()
	ab := a.Head().Builder()
	ab.SetString("foo", "bar")
	require.NoError(t, a.SetRoot(ab.NodeState()))

	b := s.Branch()
	bb := b.Head().Builder()
	bb.SetString("bar", "foo")
	require.NoError(t, b.SetRoot(bb.NodeState()))

	_, err := a.Merge(context.Background(), nil, nil)
	require.NoError(t, err)
	_, err = b.Merge(context.Background(), nil, nil)
	require.NoError(t, err)

	root := s.Root()
	foo, ok := root.Property("foo")
	require.True(t, ok)
	assert.Equal(t, "bar", foo.Value().Text())
	bar, ok := root.Property("bar")
	require.True(t, ok)
	assert.Equal(t, "foo", bar.Value().Text())
}

// staleHeadStore serves a pinned head revision while pinned is set, so a
// commit can be forced onto a base the journal has already left behind.
type staleHeadStore struct {
	Store
	mu     sync.Mutex
	pinned Revision
}

func (s *staleHeadStore) pin(rev Revision) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pinned = rev
}

func (s *staleHeadStore) Head(journal string) (Revision, error) {
	s.mu.Lock()
	pinned := s.pinned
	s.mu.Unlock()
	if pinned != "" {
		return pinned, nil
	}
	return s.Store.Head(journal)
}

func TestConflictingConcurrentCommits(t *testing.T) {
	t.Parallel()

	backing := NewMemoryStore()
	stale := &staleHeadStore{Store: backing}

	s1, err := New(backing)
	require.NoError(t, err)
	s2, err := New(stale)
	require.NoError(t, err)

	mergeEdit(t, s1, func(b *NodeBuilder) {
		b.Child("doc").SetString("state", "original")
	})

	// s2 observes /doc and stays pinned there while s1 moves on
	withDoc, err := backing.Head("")
	require.NoError(t, err)
	stale.pin(withDoc)

	modifier := s2.Branch()
	mb := modifier.Head().Builder()
	mb.Child("doc").SetString("state", "modified")
	require.NoError(t, modifier.SetRoot(mb.NodeState()))

	// s1 deletes the node the pinned writer is editing
	deleter := s1.Branch()
	db := deleter.Head().Builder()
	db.RemoveChild("doc")
	require.NoError(t, deleter.SetRoot(db.NodeState()))
	_, err = deleter.Merge(context.Background(), nil, nil)
	require.NoError(t, err)

	_, err = modifier.Merge(context.Background(), nil, nil)
	require.Error(t, err)
	assert.True(t, IsConflict(err))

	var ce *CommitError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, CommitConflict, ce.Kind)
	assert.Equal(t, "/doc", ce.Path)
	assert.False(t, modifier.Merged(), "a conflicted branch stays open")

	// once the writer sees the real head, a rebased retry replays the edit
	// and recreates the node
	stale.pin("")
	require.NoError(t, modifier.Rebase())
	merged, err := modifier.Merge(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.True(t, merged.HasChild("doc"))
}

// flakyHeadStore fails journal head reads on demand while every other
// operation keeps working.
type flakyHeadStore struct {
	Store
	mu   sync.Mutex
	fail bool
}

func (s *flakyHeadStore) setFail(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail = fail
}

func (s *flakyHeadStore) Head(journal string) (Revision, error) {
	s.mu.Lock()
	fail := s.fail
	s.mu.Unlock()
	if fail {
		return "", errors.New("journal unavailable")
	}
	return s.Store.Head(journal)
}

func TestMergeReturnsCommittedStateWhenHeadReadFails(t *testing.T) {
	t.Parallel()

	flaky := &flakyHeadStore{Store: NewMemoryStore()}
	s, err := New(flaky)
	require.NoError(t, err)

	branch := s.Branch()
	b := branch.Head().Builder()
	b.SetString("k", "v")
	require.NoError(t, branch.SetRoot(b.NodeState()))

	// head reads start failing once the candidate is validated; the merge
	// result must still be the committed revision, not a stale head
	cut := CommitHookFunc(func(_, after NodeState) (NodeState, error) {
		flaky.setFail(true)
		return after, nil
	})

	merged, err := branch.Merge(context.Background(), cut, nil)
	require.NoError(t, err)
	assert.True(t, branch.Merged())
	p, ok := merged.Property("k")
	require.True(t, ok)
	assert.Equal(t, "v", p.Value().Text())

	// the store itself already serves the committed head
	flaky.setFail(false)
	assert.True(t, Equal(merged, s.Root()))
}
