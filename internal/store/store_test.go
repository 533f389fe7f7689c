package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runStoreTests exercises the Store contract against every implementation.
func runStoreTests(t *testing.T, newStore func(t *testing.T) Store) {
	ctx := context.Background()

	t.Run("CreateOpenDrop", func(t *testing.T) {
		s := newStore(t)
		defer s.Close()

		_, err := s.Open(ctx, "missing")
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrNotFound)

		created, err := s.Create(ctx, "notes", map[string]string{
			MetaSchemaVersion: CurrentSchemaVersion,
			MetaDescription:   "test corpus",
		})
		require.NoError(t, err)
		assert.Equal(t, "notes", created.Name())

		_, err = s.Create(ctx, "notes", nil)
		assert.Error(t, err, "duplicate create must fail")

		opened, err := s.Open(ctx, "notes")
		require.NoError(t, err)
		meta, err := opened.Metadata(ctx)
		require.NoError(t, err)
		assert.Equal(t, CurrentSchemaVersion, meta[MetaSchemaVersion])
		assert.Equal(t, "test corpus", meta[MetaDescription])

		names, err := s.List(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"notes"}, names)

		require.NoError(t, s.Drop(ctx, "notes"))
		_, err = s.Open(ctx, "notes")
		assert.ErrorIs(t, err, ErrNotFound)
		assert.ErrorIs(t, s.Drop(ctx, "notes"), ErrNotFound)
	})

	t.Run("AddGetDelete", func(t *testing.T) {
		s := newStore(t)
		defer s.Close()

		c, err := s.Create(ctx, "notes", nil)
		require.NoError(t, err)

		recs := []*Record{
			{ID: "c0", Content: "alpha", DocID: "doc1", Title: "One", Modified: 100, Seq: 0, Fingerprint: "fp1"},
			{ID: "c1", Content: "beta", DocID: "doc1", Title: "One", Modified: 100, Seq: 1, Adjacent: "|c0|c2|"},
			{ID: "c2", Content: "gamma", DocID: "doc1", Title: "One", Modified: 100, Seq: 2},
			{ID: "d0", Content: "delta", DocID: "doc2", Title: "Two", Modified: 200, Seq: 0, Fingerprint: "fp2"},
		}
		require.NoError(t, c.Add(ctx, recs, vecsFor(len(recs))))

		n, err := c.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 4, n)

		got, err := c.Get(ctx, Filter{DocID: "doc1"}, 0, 0)
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.Equal(t, "c0", got[0].ID)
		assert.Equal(t, "c1", got[1].ID)
		assert.Equal(t, "c2", got[2].ID)
		assert.Equal(t, "fp1", got[0].Fingerprint)
		assert.Equal(t, "|c0|c2|", got[1].Adjacent)

		got, err = c.Get(ctx, Filter{IDs: []string{"c2", "d0"}}, 0, 0)
		require.NoError(t, err)
		require.Len(t, got, 2)

		require.NoError(t, c.Delete(ctx, []string{"c1", "nope"}))
		n, err = c.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 3, n)
	})

	t.Run("GetPaging", func(t *testing.T) {
		s := newStore(t)
		defer s.Close()

		c, err := s.Create(ctx, "notes", nil)
		require.NoError(t, err)

		var recs []*Record
		for i := 0; i < 10; i++ {
			recs = append(recs, &Record{
				ID:      string(rune('a' + i)),
				Content: "x",
				DocID:   "doc1",
				Seq:     i,
			})
		}
		require.NoError(t, c.Add(ctx, recs, vecsFor(len(recs))))

		page1, err := c.Get(ctx, Filter{}, 4, 0)
		require.NoError(t, err)
		page2, err := c.Get(ctx, Filter{}, 4, 4)
		require.NoError(t, err)
		page3, err := c.Get(ctx, Filter{}, 4, 8)
		require.NoError(t, err)

		var seen []string
		for _, page := range [][]*Record{page1, page2, page3} {
			for _, r := range page {
				seen = append(seen, r.ID)
			}
		}
		assert.Len(t, seen, 10)
		for i := 1; i < len(seen); i++ {
			assert.Less(t, seen[i-1], seen[i], "paged reads must be ordered")
		}
	})

	t.Run("SeqRangeAndDisjunction", func(t *testing.T) {
		s := newStore(t)
		defer s.Close()

		c, err := s.Create(ctx, "notes", nil)
		require.NoError(t, err)

		var recs []*Record
		for i := 0; i < 6; i++ {
			recs = append(recs, &Record{ID: string(rune('a' + i)), Content: "x", DocID: "doc1", Seq: i})
		}
		recs = append(recs, &Record{ID: "z0", Content: "y", DocID: "doc2", Seq: 0})
		require.NoError(t, c.Add(ctx, recs, vecsFor(len(recs))))

		lo, hi := 1, 3
		got, err := c.Get(ctx, Filter{DocID: "doc1", SeqMin: &lo, SeqMax: &hi}, 0, 0)
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.Equal(t, 1, got[0].Seq)
		assert.Equal(t, 3, got[2].Seq)

		lo2, hi2 := 0, 0
		got, err = c.Get(ctx, Filter{Any: []Filter{
			{DocID: "doc1", SeqMin: &lo, SeqMax: &hi},
			{DocID: "doc2", SeqMin: &lo2, SeqMax: &hi2},
		}}, 0, 0)
		require.NoError(t, err)
		assert.Len(t, got, 4)
	})

	t.Run("QueryRanksNearest", func(t *testing.T) {
		s := newStore(t)
		defer s.Close()

		c, err := s.Create(ctx, "notes", nil)
		require.NoError(t, err)

		recs := []*Record{
			{ID: "x", Content: "x axis", DocID: "doc1", Seq: 0},
			{ID: "y", Content: "y axis", DocID: "doc1", Seq: 1},
			{ID: "xy", Content: "diagonal", DocID: "doc1", Seq: 2},
		}
		vectors := [][]float32{
			testVector(1, 0),
			testVector(0, 1),
			testVector(1, 1),
		}
		require.NoError(t, c.Add(ctx, recs, vectors))

		results, err := c.Query(ctx, testVector(1, 0.1), 2)
		require.NoError(t, err)
		require.Len(t, results, 2)
		assert.Equal(t, "x", results[0].Record.ID)
		assert.Equal(t, "xy", results[1].Record.ID)
		assert.Greater(t, results[0].Score, results[1].Score)
	})

	t.Run("QueryAfterDelete", func(t *testing.T) {
		s := newStore(t)
		defer s.Close()

		c, err := s.Create(ctx, "notes", nil)
		require.NoError(t, err)

		recs := []*Record{
			{ID: "x", Content: "x", DocID: "doc1", Seq: 0},
			{ID: "y", Content: "y", DocID: "doc1", Seq: 1},
		}
		require.NoError(t, c.Add(ctx, recs, [][]float32{testVector(1, 0), testVector(0, 1)}))

		// Force the index to exist, then delete through it.
		_, err = c.Query(ctx, testVector(1, 0), 1)
		require.NoError(t, err)
		require.NoError(t, c.Delete(ctx, []string{"x"}))

		results, err := c.Query(ctx, testVector(1, 0), 5)
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "y", results[0].Record.ID)
	})

	t.Run("UpsertReplaces", func(t *testing.T) {
		s := newStore(t)
		defer s.Close()

		c, err := s.Create(ctx, "notes", nil)
		require.NoError(t, err)

		r := &Record{ID: "c0", Content: "old", DocID: "doc1", Seq: 0}
		require.NoError(t, c.Add(ctx, []*Record{r}, vecsFor(1)))

		r2 := &Record{ID: "c0", Content: "new", DocID: "doc1", Seq: 0, Adjacent: "||c1|"}
		require.NoError(t, c.Add(ctx, []*Record{r2}, vecsFor(1)))

		n, err := c.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		got, err := c.Get(ctx, Filter{IDs: []string{"c0"}}, 0, 0)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "new", got[0].Content)
		assert.Equal(t, "||c1|", got[0].Adjacent)
	})

	t.Run("SetMetadata", func(t *testing.T) {
		s := newStore(t)
		defer s.Close()

		c, err := s.Create(ctx, "notes", map[string]string{MetaDocCount: "1"})
		require.NoError(t, err)

		require.NoError(t, c.SetMetadata(ctx, map[string]string{
			MetaDocCount:  "5",
			MetaUpdatedAt: "2026-08-30T00:00:00Z",
		}))
		meta, err := c.Metadata(ctx)
		require.NoError(t, err)
		assert.Equal(t, "5", meta[MetaDocCount])
		assert.Equal(t, "2026-08-30T00:00:00Z", meta[MetaUpdatedAt])
	})
}

func TestMemoryStore(t *testing.T) {
	runStoreTests(t, func(t *testing.T) Store {
		return NewMemoryStore()
	})
}

func TestLocalStore(t *testing.T) {
	runStoreTests(t, func(t *testing.T) Store {
		s, err := OpenLocalStore(t.TempDir(), 4)
		require.NoError(t, err)
		return s
	})
}

func TestLocalStore_ReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, err := OpenLocalStore(dir, 4)
	require.NoError(t, err)
	c, err := s.Create(ctx, "notes", map[string]string{MetaSchemaVersion: CurrentSchemaVersion})
	require.NoError(t, err)
	require.NoError(t, c.Add(ctx, []*Record{
		{ID: "x", Content: "x", DocID: "doc1", Seq: 0},
		{ID: "y", Content: "y", DocID: "doc1", Seq: 1},
	}, [][]float32{testVector(1, 0), testVector(0, 1)}))
	require.NoError(t, s.Close())

	s2, err := OpenLocalStore(dir, 4)
	require.NoError(t, err)
	defer s2.Close()

	c2, err := s2.Open(ctx, "notes")
	require.NoError(t, err)
	n, err := c2.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// Index rebuilds from stored embedding blobs.
	results, err := c2.Query(ctx, testVector(1, 0), 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "x", results[0].Record.ID)
}

func TestLocalStore_SecondOpenBlocked(t *testing.T) {
	dir := t.TempDir()

	s, err := OpenLocalStore(dir, 4)
	require.NoError(t, err)
	defer s.Close()

	_, err = OpenLocalStore(dir, 4)
	require.Error(t, err)
}

func TestEncodeDecodeVector(t *testing.T) {
	v := []float32{0.25, -1.5, 3.75, 0}
	blob := encodeVector(v)
	require.Len(t, blob, 16)

	decoded, err := decodeVector(blob)
	require.NoError(t, err)
	assert.Equal(t, v, decoded)

	_, err = decodeVector([]byte{1, 2, 3})
	assert.Error(t, err)
}

func TestFilterMatches(t *testing.T) {
	r := &Record{ID: "c1", DocID: "doc1", Seq: 3}

	assert.True(t, Filter{}.Matches(r))
	assert.True(t, Filter{DocID: "doc1"}.Matches(r))
	assert.False(t, Filter{DocID: "doc2"}.Matches(r))
	assert.True(t, Filter{IDs: []string{"c0", "c1"}}.Matches(r))
	assert.False(t, Filter{IDs: []string{"c0"}}.Matches(r))

	lo, hi := 2, 4
	assert.True(t, Filter{SeqMin: &lo, SeqMax: &hi}.Matches(r))
	lo2 := 4
	assert.False(t, Filter{SeqMin: &lo2}.Matches(r))

	assert.True(t, Filter{Any: []Filter{{DocID: "doc2"}, {DocID: "doc1"}}}.Matches(r))
	assert.False(t, Filter{Any: []Filter{{DocID: "doc2"}, {DocID: "doc3"}}}.Matches(r))
}

// vecsFor builds n distinct placeholder vectors of dimension 4.
func vecsFor(n int) [][]float32 {
	out := make([][]float32, n)
	for i := range out {
		out[i] = []float32{float32(i + 1), 1, 0, 0}
	}
	return out
}

// testVector builds a 4-dimensional vector from two leading components.
func testVector(a, b float32) []float32 {
	return []float32{a, b, 0, 0}
}
