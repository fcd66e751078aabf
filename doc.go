// Package canopy implements a versioned, hierarchical content tree store:
// the repository is modeled as an immutable, content-addressed tree of
// nodes and properties, edited through private transactional branches
// that merge back into a shared head by rebase and fast-forward.
//
// Reading and editing:
//
//	store, _ := canopy.New(canopy.NewMemoryStore())
//
//	builder := store.Root().Builder()
//	builder.SetString("title", "hello")
//	builder.Child("content").SetLong("rev", 1)
//
//	branch := store.Branch()
//	branch.SetRoot(builder.NodeState())
//	merged, _ := branch.Merge(ctx, canopy.EmptyHook, canopy.EmptyPostHook)
//
// Merging rebases the branch's net changes onto the store's current head,
// runs them through the commit hook for validation, and commits the
// result; concurrent merges are serialized and the observer sees every
// head transition exactly once.
//
// Workspaces:
//
//	left, _ := canopy.New(backing, canopy.WithWorkspace("left"))
//
// Workspaces share one backing store but advance independently; changes
// propagate only when a workspace explicitly merges its journal:
//
//	left.Journal().Merge()
//
// Recently read tree fragments are cached per (revision, path) under a
// configurable total memory weight.
package canopy
