package sync

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notevec/notevec/internal/doc"
)

func testDoc(title, body string, created time.Time) *doc.Document {
	return &doc.Document{
		Title:    title,
		Body:     body,
		Created:  created,
		Modified: created.Add(time.Hour),
	}
}

func stateFor(docs ...*doc.Document) ExistingState {
	state := make(ExistingState)
	for _, d := range docs {
		id := d.ID()
		state[id] = &DocState{
			ChunkIDs: []string{
				doc.ChunkID(id, d.Modified, 0),
				doc.ChunkID(id, d.Modified, 1),
			},
			Fingerprint: d.Fingerprint(),
		}
	}
	return state
}

func TestDetectChanges_Classification(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	kept := testDoc("kept.md", "stable body", base)
	edited := testDoc("edited.md", "old body", base.Add(time.Minute))
	removed := testDoc("removed.md", "going away", base.Add(2*time.Minute))
	existing := stateFor(kept, edited, removed)

	editedNew := testDoc("edited.md", "new body", base.Add(time.Minute))
	added := testDoc("brand-new.md", "hello", base.Add(3*time.Minute))

	cs := DetectChanges([]*doc.Document{kept, editedNew, added}, existing)

	require.Len(t, cs.Added, 1)
	assert.Equal(t, "brand-new.md", cs.Added[0].Title)
	require.Len(t, cs.Updated, 1)
	assert.Equal(t, "edited.md", cs.Updated[0].Title)
	assert.Equal(t, []string{removed.ID()}, cs.Deleted)
	assert.Equal(t, []string{kept.ID()}, cs.Unchanged)
}

func TestDetectChanges_PartitionProperty(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	// Overlapping new and existing sets: docs 0-29 exist, docs 15-44 are
	// the new input, and every third overlapping doc has an edited body.
	var existingDocs []*doc.Document
	for i := 0; i < 30; i++ {
		existingDocs = append(existingDocs, testDoc(
			fmt.Sprintf("doc-%02d.md", i), fmt.Sprintf("body %d", i), base.Add(time.Duration(i)*time.Second)))
	}
	existing := stateFor(existingDocs...)

	var newDocs []*doc.Document
	for i := 15; i < 45; i++ {
		body := fmt.Sprintf("body %d", i)
		if i < 30 && i%3 == 0 {
			body += " edited"
		}
		newDocs = append(newDocs, testDoc(
			fmt.Sprintf("doc-%02d.md", i), body, base.Add(time.Duration(i)*time.Second)))
	}

	cs := DetectChanges(newDocs, existing)

	// Every DocumentID from either side lands in exactly one list.
	seen := make(map[string]int)
	for _, d := range cs.Added {
		seen[d.ID()]++
	}
	for _, d := range cs.Updated {
		seen[d.ID()]++
	}
	for _, id := range cs.Deleted {
		seen[id]++
	}
	for _, id := range cs.Unchanged {
		seen[id]++
	}

	union := make(map[string]bool)
	for _, d := range newDocs {
		union[d.ID()] = true
	}
	for id := range existing {
		union[id] = true
	}

	assert.Equal(t, len(union), cs.Total())
	for id := range union {
		assert.Equal(t, 1, seen[id], "document %s must appear exactly once", id)
	}
}

func TestDetectChanges_MissingFingerprintIsUpdated(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	d := testDoc("legacy.md", "unchanged body", base)

	existing := ExistingState{
		d.ID(): {ChunkIDs: []string{"c0"}, Fingerprint: ""},
	}

	cs := DetectChanges([]*doc.Document{d}, existing)
	require.Len(t, cs.Updated, 1)
	assert.Empty(t, cs.Unchanged)
}

func TestDetectChanges_RetitleIsUpdated(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	original := testDoc("old-title.md", "same body", base)
	existing := stateFor(original)

	// Same creation timestamp keeps the identity; the fingerprint moves.
	retitled := testDoc("new-title.md", "same body", base)

	cs := DetectChanges([]*doc.Document{retitled}, existing)
	require.Len(t, cs.Updated, 1)
	assert.Empty(t, cs.Added)
	assert.Empty(t, cs.Deleted)
	assert.Empty(t, cs.Unchanged)
}

func TestDetectChanges_TimestampOnlyChangeIsUpdated(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	original := testDoc("touched.md", "same body", base)
	existing := stateFor(original)

	// Identical content, bumped mtime. The stored ChunkIDs embed the old
	// timestamp, so the document must be rewritten.
	touched := testDoc("touched.md", "same body", base)
	touched.Modified = original.Modified.Add(time.Minute)

	cs := DetectChanges([]*doc.Document{touched}, existing)
	require.Len(t, cs.Updated, 1)
	assert.Empty(t, cs.Unchanged)
}

func TestDetectChanges_DuplicateInputKeepsFirst(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	a := testDoc("dup.md", "first", base)
	b := testDoc("dup.md", "second", base)
	require.Equal(t, a.ID(), b.ID())

	cs := DetectChanges([]*doc.Document{a, b}, ExistingState{})
	require.Len(t, cs.Added, 1)
	assert.Equal(t, "first", cs.Added[0].Body)
	assert.Equal(t, 1, cs.Total())
}

func TestDetectChanges_EmptyInputs(t *testing.T) {
	cs := DetectChanges(nil, ExistingState{})
	assert.Equal(t, 0, cs.Total())
	assert.False(t, cs.HasWork())
}
