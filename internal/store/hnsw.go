package store

import (
	"math"
	"sync"

	"github.com/coder/hnsw"
)

const (
	defaultHNSWM        = 16
	defaultHNSWEfSearch = 20
)

// vectorIndex is an approximate nearest-neighbor index over chunk
// embeddings, backed by coder/hnsw. String chunk IDs are mapped to
// internal uint64 keys. Deletion is lazy: the node stays in the graph
// but its key mapping is removed, which sidesteps a coder/hnsw bug when
// deleting the last node. The index is rebuilt from the embedding blobs
// in SQLite on open, so it never persists itself.
type vectorIndex struct {
	mu         sync.RWMutex
	graph      *hnsw.Graph[uint64]
	dimensions int

	idMap   map[string]uint64
	keyMap  map[uint64]string
	nextKey uint64
}

func newVectorIndex(dimensions int) *vectorIndex {
	graph := hnsw.NewGraph[uint64]()
	graph.Distance = hnsw.CosineDistance
	graph.M = defaultHNSWM
	graph.EfSearch = defaultHNSWEfSearch
	graph.Ml = 0.25

	return &vectorIndex{
		graph:      graph,
		dimensions: dimensions,
		idMap:      make(map[string]uint64),
		keyMap:     make(map[uint64]string),
	}
}

// add inserts vectors, replacing any existing entries with the same ID.
func (x *vectorIndex) add(ids []string, vectors [][]float32) error {
	if len(ids) == 0 {
		return nil
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	for _, v := range vectors {
		if len(v) != x.dimensions {
			return ErrDimensionMismatch{Expected: x.dimensions, Got: len(v)}
		}
	}

	for i, id := range ids {
		if existing, ok := x.idMap[id]; ok {
			delete(x.keyMap, existing)
			delete(x.idMap, id)
		}

		key := x.nextKey
		x.nextKey++

		vec := make([]float32, len(vectors[i]))
		copy(vec, vectors[i])
		normalizeInPlace(vec)

		x.graph.Add(hnsw.MakeNode(key, vec))
		x.idMap[id] = key
		x.keyMap[key] = id
	}
	return nil
}

// remove drops IDs from the key mappings. Graph nodes are orphaned, not
// deleted, and get filtered out of search results.
func (x *vectorIndex) remove(ids []string) {
	x.mu.Lock()
	defer x.mu.Unlock()

	for _, id := range ids {
		if key, ok := x.idMap[id]; ok {
			delete(x.keyMap, key)
			delete(x.idMap, id)
		}
	}
}

type indexHit struct {
	id       string
	distance float32
	score    float32
}

// search returns up to k nearest live entries. Because orphans are
// filtered after the graph search, it over-fetches to compensate.
func (x *vectorIndex) search(query []float32, k int) ([]indexHit, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	if len(query) != x.dimensions {
		return nil, ErrDimensionMismatch{Expected: x.dimensions, Got: len(query)}
	}
	if x.graph.Len() == 0 || k <= 0 {
		return nil, nil
	}

	normalized := make([]float32, len(query))
	copy(normalized, query)
	normalizeInPlace(normalized)

	orphans := x.graph.Len() - len(x.idMap)
	nodes := x.graph.Search(normalized, k+orphans)

	hits := make([]indexHit, 0, k)
	for _, node := range nodes {
		id, ok := x.keyMap[node.Key]
		if !ok {
			continue
		}
		dist := x.graph.Distance(normalized, node.Value)
		hits = append(hits, indexHit{id: id, distance: dist, score: 1 - dist/2})
		if len(hits) == k {
			break
		}
	}
	return hits, nil
}

func (x *vectorIndex) count() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.idMap)
}

func normalizeInPlace(v []float32) {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}
	if sumSquares == 0 {
		return
	}
	inv := float32(1.0 / math.Sqrt(sumSquares))
	for i := range v {
		v[i] *= inv
	}
}
