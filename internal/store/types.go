// Package store provides the vector store boundary consumed by the
// synchronization engine, plus two implementations: an in-memory store and
// a durable SQLite+HNSW store. Collections hold chunk records with their
// embeddings and an open key-value metadata map.
package store

import (
	"context"
	"errors"
	"fmt"
)

// Collection metadata keys. The schema version marker gates incremental
// updates: collections written without it cannot be diffed against and
// must be recreated.
const (
	MetaSchemaVersion  = "schema_version"
	MetaEmbeddingModel = "embedding_model"
	MetaChunkSize      = "chunk_size"
	MetaDescription    = "description"
	MetaDocCount       = "doc_count"
	MetaUpdatedAt      = "updated_at"
)

// CurrentSchemaVersion is the chunk record schema written by this code.
// Version 2 adds the first-chunk fingerprint convention and adjacency
// metadata.
const CurrentSchemaVersion = "2"

// ErrNotFound indicates a collection that does not exist.
var ErrNotFound = errors.New("collection not found")

// Record is one persisted chunk with the metadata fields the engine
// consumes.
type Record struct {
	ID          string // chunk identifier
	Content     string // chunk text
	DocID       string // owning document identifier
	Title       string // owning document title
	Modified    int64  // document last-modified, unix seconds
	Seq         int    // zero-based sequence index within the document
	Fingerprint string // whole-document fingerprint, first chunk only
	Adjacent    string // encoded adjacency, empty for legacy records
}

// QueryResult is a ranked nearest-neighbor match.
type QueryResult struct {
	Record   *Record
	Score    float32 // normalized similarity, higher is better
	Distance float32 // raw cosine distance, lower is better
}

// Filter selects chunk records by metadata. Leaf conditions are conjoined;
// Any, when non-empty, additionally requires at least one sub-filter to
// match (the disjunctive form used by batched fallback fetches).
type Filter struct {
	DocID  string   // equality on document identifier ("" = any)
	IDs    []string // chunk-ID membership (nil = any)
	SeqMin *int     // inclusive lower bound on Seq (nil = unbounded)
	SeqMax *int     // inclusive upper bound on Seq (nil = unbounded)
	Any    []Filter // disjunction of sub-filters
}

// Matches reports whether the record satisfies the filter.
func (f Filter) Matches(r *Record) bool {
	if f.DocID != "" && r.DocID != f.DocID {
		return false
	}
	if f.IDs != nil {
		found := false
		for _, id := range f.IDs {
			if r.ID == id {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.SeqMin != nil && r.Seq < *f.SeqMin {
		return false
	}
	if f.SeqMax != nil && r.Seq > *f.SeqMax {
		return false
	}
	if len(f.Any) > 0 {
		for _, sub := range f.Any {
			if sub.Matches(r) {
				return true
			}
		}
		return false
	}
	return true
}

// Collection is one named set of chunk records with embeddings.
type Collection interface {
	// Name returns the collection name.
	Name() string

	// Metadata returns the collection metadata map.
	Metadata(ctx context.Context) (map[string]string, error)

	// SetMetadata replaces the collection metadata map.
	SetMetadata(ctx context.Context, meta map[string]string) error

	// Get returns records matching the filter, ordered by
	// (DocID, Seq, ID). limit <= 0 means no limit.
	Get(ctx context.Context, filter Filter, limit, offset int) ([]*Record, error)

	// Add bulk-inserts records with their embeddings. Existing IDs are
	// replaced.
	Add(ctx context.Context, records []*Record, vectors [][]float32) error

	// Delete bulk-removes records by identifier. Unknown IDs are ignored.
	Delete(ctx context.Context, ids []string) error

	// Query finds the topK nearest records to the query vector.
	Query(ctx context.Context, vector []float32, topK int) ([]*QueryResult, error)

	// Count returns the number of records.
	Count(ctx context.Context) (int, error)
}

// Store manages named collections.
type Store interface {
	// Create creates a collection with the given metadata.
	Create(ctx context.Context, name string, metadata map[string]string) (Collection, error)

	// Open returns an existing collection, or ErrNotFound.
	Open(ctx context.Context, name string) (Collection, error)

	// Drop removes a collection and all its records.
	Drop(ctx context.Context, name string) error

	// List returns all collection names.
	List(ctx context.Context) ([]string, error)

	// Close releases resources.
	Close() error
}

// ErrDimensionMismatch indicates a vector dimension mismatch between the
// query or inserted vectors and the collection.
type ErrDimensionMismatch struct {
	Expected int
	Got      int
}

func (e ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Got)
}
