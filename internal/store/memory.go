package store

import (
	"context"
	"math"
	"sort"
	"sync"

	syncerrors "github.com/notevec/notevec/internal/errors"
)

// MemoryStore is an in-memory Store. It keeps every record and embedding
// in maps and answers queries with a brute-force cosine scan. Suited to
// tests and small corpora.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]*memCollection
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{collections: make(map[string]*memCollection)}
}

// Create creates a collection with the given metadata.
func (s *MemoryStore) Create(ctx context.Context, name string, metadata map[string]string) (Collection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.collections[name]; ok {
		return nil, syncerrors.StorageError("collection already exists: "+name, nil)
	}
	c := newMemCollection(name, metadata)
	s.collections[name] = c
	return c, nil
}

// Open returns an existing collection, or ErrNotFound.
func (s *MemoryStore) Open(ctx context.Context, name string) (Collection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.collections[name]
	if !ok {
		return nil, syncerrors.New(syncerrors.ErrCodeCollectionNotFound, "collection not found: "+name, ErrNotFound)
	}
	return c, nil
}

// Drop removes a collection and all its records.
func (s *MemoryStore) Drop(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.collections[name]; !ok {
		return syncerrors.New(syncerrors.ErrCodeCollectionNotFound, "collection not found: "+name, ErrNotFound)
	}
	delete(s.collections, name)
	return nil
}

// List returns all collection names, sorted.
func (s *MemoryStore) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.collections))
	for name := range s.collections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Close releases resources. No-op for the in-memory store.
func (s *MemoryStore) Close() error {
	return nil
}

type memCollection struct {
	mu   sync.RWMutex
	name string
	meta map[string]string
	recs map[string]*Record
	vecs map[string][]float32
}

func newMemCollection(name string, metadata map[string]string) *memCollection {
	meta := make(map[string]string, len(metadata))
	for k, v := range metadata {
		meta[k] = v
	}
	return &memCollection{
		name: name,
		meta: meta,
		recs: make(map[string]*Record),
		vecs: make(map[string][]float32),
	}
}

func (c *memCollection) Name() string { return c.name }

func (c *memCollection) Metadata(ctx context.Context) (map[string]string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]string, len(c.meta))
	for k, v := range c.meta {
		out[k] = v
	}
	return out, nil
}

func (c *memCollection) SetMetadata(ctx context.Context, meta map[string]string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.meta = make(map[string]string, len(meta))
	for k, v := range meta {
		c.meta[k] = v
	}
	return nil
}

func (c *memCollection) Get(ctx context.Context, filter Filter, limit, offset int) ([]*Record, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var matched []*Record
	for _, r := range c.recs {
		if filter.Matches(r) {
			cp := *r
			matched = append(matched, &cp)
		}
	}
	sortRecords(matched)

	if offset > 0 {
		if offset >= len(matched) {
			return nil, nil
		}
		matched = matched[offset:]
	}
	if limit > 0 && limit < len(matched) {
		matched = matched[:limit]
	}
	return matched, nil
}

func (c *memCollection) Add(ctx context.Context, records []*Record, vectors [][]float32) error {
	if len(records) != len(vectors) {
		return syncerrors.StorageError("records and vectors length mismatch", nil)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for i, r := range records {
		cp := *r
		c.recs[r.ID] = &cp
		vec := make([]float32, len(vectors[i]))
		copy(vec, vectors[i])
		c.vecs[r.ID] = vec
	}
	return nil
}

func (c *memCollection) Delete(ctx context.Context, ids []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, id := range ids {
		delete(c.recs, id)
		delete(c.vecs, id)
	}
	return nil
}

func (c *memCollection) Query(ctx context.Context, vector []float32, topK int) ([]*QueryResult, error) {
	if topK <= 0 {
		return nil, nil
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	query := normalize(vector)
	results := make([]*QueryResult, 0, len(c.recs))
	for id, vec := range c.vecs {
		if len(vec) != len(query) {
			return nil, syncerrors.New(syncerrors.ErrCodeDimensionMismatch,
				"query dimension mismatch",
				ErrDimensionMismatch{Expected: len(vec), Got: len(query)})
		}
		dist := cosineDistance(query, vec)
		cp := *c.recs[id]
		results = append(results, &QueryResult{
			Record:   &cp,
			Score:    1 - dist/2,
			Distance: dist,
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Distance != results[j].Distance {
			return results[i].Distance < results[j].Distance
		}
		return results[i].Record.ID < results[j].Record.ID
	})
	if topK < len(results) {
		results = results[:topK]
	}
	return results, nil
}

func (c *memCollection) Count(ctx context.Context) (int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.recs), nil
}

// sortRecords orders records by (DocID, Seq, ID) so paged reads are
// deterministic.
func sortRecords(recs []*Record) {
	sort.Slice(recs, func(i, j int) bool {
		if recs[i].DocID != recs[j].DocID {
			return recs[i].DocID < recs[j].DocID
		}
		if recs[i].Seq != recs[j].Seq {
			return recs[i].Seq < recs[j].Seq
		}
		return recs[i].ID < recs[j].ID
	})
}

// cosineDistance computes 1 - cos(a, b) for a pre-normalized query against
// a stored vector, normalizing the stored side on the fly.
func cosineDistance(query, stored []float32) float32 {
	var dot, norm float64
	for i := range stored {
		dot += float64(query[i]) * float64(stored[i])
		norm += float64(stored[i]) * float64(stored[i])
	}
	if norm == 0 {
		return 1
	}
	cos := dot / math.Sqrt(norm)
	return float32(1 - cos)
}

func normalize(v []float32) []float32 {
	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	out := make([]float32, len(v))
	if norm == 0 {
		copy(out, v)
		return out
	}
	inv := 1 / math.Sqrt(norm)
	for i, x := range v {
		out[i] = float32(float64(x) * inv)
	}
	return out
}
