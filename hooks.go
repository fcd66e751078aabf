package canopy

// CommitHook validates or transforms a pending commit. It is invoked with
// the current head and the candidate state a merge would install, and
// returns the state to commit, possibly transformed. Returning an error
// aborts the merge with no change to store state.
type CommitHook interface {
	ProcessCommit(before, after NodeState) (NodeState, error)
}

// CommitHookFunc adapts a function to a CommitHook.
type CommitHookFunc func(before, after NodeState) (NodeState, error)

func (f CommitHookFunc) ProcessCommit(before, after NodeState) (NodeState, error) {
	return f(before, after)
}

// EmptyHook accepts every candidate unchanged.
var EmptyHook CommitHook = CommitHookFunc(func(_, after NodeState) (NodeState, error) {
	return after, nil
})

// ChainedHook runs hooks in order, feeding each hook the previous hook's
// output. The first error aborts the chain.
func ChainedHook(hooks ...CommitHook) CommitHook {
	return CommitHookFunc(func(before, after NodeState) (NodeState, error) {
		for _, h := range hooks {
			var err error
			after, err = h.ProcessCommit(before, after)
			if err != nil {
				return nil, err
			}
		}
		return after, nil
	})
}

// PostCommitHook performs best-effort side work after a merge has become
// durable. Errors are logged by the store, never propagated, and never
// undo the commit.
type PostCommitHook interface {
	ContentCommitted(before, after NodeState) error
}

// PostCommitHookFunc adapts a function to a PostCommitHook.
type PostCommitHookFunc func(before, after NodeState) error

func (f PostCommitHookFunc) ContentCommitted(before, after NodeState) error {
	return f(before, after)
}

// EmptyPostHook does nothing.
var EmptyPostHook PostCommitHook = PostCommitHookFunc(func(_, _ NodeState) error {
	return nil
})

// Observer is notified whenever a store's externally visible head moves.
// Notifications are synchronous, on the goroutine that detected the
// advance, and form a gap-free sequence of transitions.
//
// The callback runs while the store's head lock is held: it must not call
// back into the NodeStore (Root, Branch, Merge and the like) or it will
// deadlock. Work with the states it is handed, or hand heavier processing
// off to another goroutine.
type Observer interface {
	ContentChanged(before, after NodeState)
}

// ObserverFunc adapts a function to an Observer.
type ObserverFunc func(before, after NodeState)

func (f ObserverFunc) ContentChanged(before, after NodeState) { f(before, after) }

// EmptyObserver ignores all notifications.
var EmptyObserver Observer = ObserverFunc(func(_, _ NodeState) {})
