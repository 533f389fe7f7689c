package sync

import (
	"sort"

	"github.com/notevec/notevec/internal/doc"
)

// ChangeSet partitions the union of new and existing DocumentIDs into
// four disjoint lists. Every DocumentID appears in exactly one list;
// this partition property is the correctness core of the engine.
type ChangeSet struct {
	Added     []*doc.Document // in store: no, in input: yes
	Updated   []*doc.Document // in both, fingerprint differs or missing
	Deleted   []string        // DocumentIDs in store but not in input
	Unchanged []string        // DocumentIDs in both, fingerprint equal
}

// Total returns the number of partitioned DocumentIDs.
func (c *ChangeSet) Total() int {
	return len(c.Added) + len(c.Updated) + len(c.Deleted) + len(c.Unchanged)
}

// HasWork reports whether the set implies any store mutation.
func (c *ChangeSet) HasWork() bool {
	return len(c.Added) > 0 || len(c.Updated) > 0 || len(c.Deleted) > 0
}

// DetectChanges diffs the new document list against the stored state.
// Classification is by DocumentID membership, then by fingerprint:
// a stored document with no recorded fingerprint is conservatively
// classified Updated. ChunkIDs embed the modified timestamp, so a
// document whose timestamp changed is Updated even when its content
// fingerprint is equal (the stored chunk IDs are stale either way).
// Duplicate DocumentIDs in the input keep the first occurrence; later
// duplicates are dropped. Deleted and Unchanged lists come out sorted
// for deterministic processing order.
func DetectChanges(docs []*doc.Document, existing ExistingState) *ChangeSet {
	cs := &ChangeSet{}

	seen := make(map[string]bool, len(docs))
	for _, d := range docs {
		id := d.ID()
		if seen[id] {
			continue
		}
		seen[id] = true

		state, ok := existing[id]
		if !ok {
			cs.Added = append(cs.Added, d)
			continue
		}
		if state.Fingerprint == "" || state.Fingerprint != d.Fingerprint() {
			cs.Updated = append(cs.Updated, d)
			continue
		}
		if len(state.ChunkIDs) > 0 && state.ChunkIDs[0] != doc.ChunkID(id, d.Modified, 0) {
			cs.Updated = append(cs.Updated, d)
			continue
		}
		cs.Unchanged = append(cs.Unchanged, id)
	}

	for id := range existing {
		if !seen[id] {
			cs.Deleted = append(cs.Deleted, id)
		}
	}

	sort.Strings(cs.Deleted)
	sort.Strings(cs.Unchanged)
	return cs
}
