package canopy

import (
	"context"
	"strings"
)

// NodeStoreBranch is a private workspace over a NodeStore: a base snapshot
// fixed at creation plus a head that accumulates edits. Merging rebases
// the branch's net changes onto the store's current head, validates them
// through a commit hook, and commits the result; a merged branch is
// terminal.
//
// A branch is driven by one logical writer at a time; concurrent
// unsynchronized mutation of the same branch is undefined.
type NodeStoreBranch struct {
	store  *NodeStore
	base   NodeState
	head   NodeState
	merged bool
}

// Base returns the snapshot the branch was forked from. It stays readable
// after a merge.
func (b *NodeStoreBranch) Base() NodeState { return b.base }

// Head returns the branch's current state: the base plus all recorded
// edits. It stays readable after a merge.
func (b *NodeStoreBranch) Head() NodeState { return b.head }

// Merged reports whether the branch has been merged.
func (b *NodeStoreBranch) Merged() bool { return b.merged }

// SetRoot replaces the branch head wholesale.
func (b *NodeStoreBranch) SetRoot(newRoot NodeState) error {
	if b.merged {
		return ErrBranchMerged
	}
	b.head = newRoot
	return nil
}

// Move moves the node at source to target. It reports false, with no
// error, when the source does not exist, the target's parent does not
// exist, the target is already taken, or the target lies inside the
// source subtree; these are expected outcomes, not faults.
func (b *NodeStoreBranch) Move(source, target string) (bool, error) {
	if b.merged {
		return false, ErrBranchMerged
	}
	source, target = cleanPath(source), cleanPath(target)
	// a node cannot be moved into itself or its own subtree, and the
	// root node cannot be moved at all
	if source == "/" || target == source || strings.HasPrefix(target, source+"/") {
		return false, nil
	}
	return b.relocate(source, target, true)
}

// Copy copies the subtree at source to target under the same
// preconditions as Move.
func (b *NodeStoreBranch) Copy(source, target string) (bool, error) {
	if b.merged {
		return false, ErrBranchMerged
	}
	return b.relocate(source, target, false)
}

func (b *NodeStoreBranch) relocate(source, target string, removeSource bool) (bool, error) {
	subtree := stateAt(b.head, source)
	if !subtree.Exists() {
		return false, nil
	}
	targetDir, targetName := splitPath(target)
	if targetName == "" {
		return false, nil
	}
	parent := stateAt(b.head, targetDir)
	if !parent.Exists() || parent.HasChild(targetName) {
		return false, nil
	}

	root := b.head.Builder()
	if removeSource {
		sourceDir, sourceName := splitPath(source)
		builderAt(root, sourceDir).RemoveChild(sourceName)
	}
	builderAt(root, targetDir).SetNode(targetName, subtree)
	b.head = root.NodeState()
	return true, nil
}

// Rebase recomputes the head as the branch's net edits replayed on top of
// the store's current head, then adopts that head as the new base. A
// branch with no local edits ends up exactly at the store head.
func (b *NodeStoreBranch) Rebase() error {
	if b.merged {
		return ErrBranchMerged
	}
	current := b.store.Root()
	b.head = Compare(b.base, b.head).Apply(current)
	b.base = current
	return nil
}

// Merge folds the branch's changes into the store:
//
//  1. acquire the store-wide merge lock,
//  2. replay the branch's net edits on top of the store's current head,
//  3. run the commit hook on the candidate, which may transform or
//     reject it,
//  4. commit the result to the backing store and publish the new head,
//  5. invoke the post-commit hook best-effort.
//
// On success the branch becomes terminal and the merged state is
// returned. On failure no store state changes and the branch stays open
// for a retry; conflicts are reported as a CommitError with
// IsConflict(err) == true.
//
// A nil hook accepts every candidate; a nil post hook is skipped. Merge
// may block on the merge lock; ctx cancellation is honored only before
// the critical section begins.
func (b *NodeStoreBranch) Merge(ctx context.Context, hook CommitHook, post PostCommitHook) (NodeState, error) {
	if b.merged {
		return nil, ErrBranchMerged
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s := b.store
	s.mergeMu.Lock()
	defer s.mergeMu.Unlock()

	current, base := s.current()
	candidate := Compare(b.base, b.head).Apply(current)

	if hook != nil {
		transformed, err := hook.ProcessCommit(current, candidate)
		if err != nil {
			return nil, rejectedError(err)
		}
		candidate = transformed
	}

	merged, err := s.commit(candidate, base)
	if err != nil {
		return nil, err
	}

	if post != nil {
		if err := post.ContentCommitted(current, merged); err != nil {
			s.log.Warn("post-commit hook failed", "workspace", s.journal, "err", err)
		}
	}

	b.merged = true
	return merged, nil
}
