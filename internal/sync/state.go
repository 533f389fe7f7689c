// Package sync implements the incremental synchronization engine: reading
// the vector store's existing state, diffing it against the current
// document set, computing chunk adjacency, and applying the resulting
// mutations.
package sync

import (
	"context"

	"github.com/notevec/notevec/internal/store"
)

// statePageSize bounds each page read while snapshotting a collection.
const statePageSize = 500

// DocState is the stored view of one document: its chunk identifiers in
// sequence order and the fingerprint recorded on its first chunk. An
// empty fingerprint means the stored document predates the first-chunk
// fingerprint convention and must be treated as changed.
type DocState struct {
	ChunkIDs    []string
	Fingerprint string
}

// ExistingState snapshots a collection's documents keyed by DocumentID.
// Built fresh on every run, never persisted.
type ExistingState map[string]*DocState

// ChunkCount returns the total number of stored chunks in the snapshot.
func (s ExistingState) ChunkCount() int {
	n := 0
	for _, d := range s {
		n += len(d.ChunkIDs)
	}
	return n
}

// ReadExistingState pages through the collection and reconstructs the
// per-document chunk sets and fingerprints. Records arrive ordered by
// (doc, seq), so chunk IDs accumulate in sequence order.
func ReadExistingState(ctx context.Context, col store.Collection) (ExistingState, error) {
	state := make(ExistingState)

	for offset := 0; ; offset += statePageSize {
		page, err := col.Get(ctx, store.Filter{}, statePageSize, offset)
		if err != nil {
			return nil, err
		}
		for _, rec := range page {
			ds, ok := state[rec.DocID]
			if !ok {
				ds = &DocState{}
				state[rec.DocID] = ds
			}
			ds.ChunkIDs = append(ds.ChunkIDs, rec.ID)
			if rec.Fingerprint != "" {
				ds.Fingerprint = rec.Fingerprint
			}
		}
		if len(page) < statePageSize {
			break
		}
	}
	return state, nil
}
