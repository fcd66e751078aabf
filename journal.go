package canopy

import "fmt"

// Journal is the pull-based propagation handle of a workspace. Merges
// performed on a workspace advance only that workspace's journal in the
// shared backing store; other workspaces keep their prior head until they
// explicitly merge their journal.
type Journal struct {
	store *NodeStore
}

// Journal returns this workspace's propagation handle.
func (s *NodeStore) Journal() *Journal {
	return &Journal{store: s}
}

// Merge folds the workspace's outstanding committed changes into the
// shared root journal and fast-forwards the workspace to the combined
// result, which becomes the new head on both sides. Workspaces with
// disjoint changes converge to their union; overlapping property changes
// resolve last-write-wins.
func (j *Journal) Merge() (NodeState, error) {
	s := j.store
	if _, err := s.rs.MergeJournal(s.journal); err != nil {
		return nil, fmt.Errorf("canopy: journal merge %q: %w", s.journal, err)
	}
	return s.Root(), nil
}
