package sync

import (
	"strings"

	"github.com/notevec/notevec/internal/chunk"
)

// adjacencyDelimiter separates the four neighbor slots in the stored
// encoding. Chunk IDs are hex, so the delimiter can never appear inside
// a slot.
const adjacencyDelimiter = "|"

// AdjacencyRecord holds up to four neighbor chunk IDs within one
// document, ordered by sequence index. An empty slot means the document
// boundary is closer than that neighbor position.
type AdjacencyRecord struct {
	Prev2 string // sequence index i-2
	Prev1 string // sequence index i-1
	Next1 string // sequence index i+1
	Next2 string // sequence index i+2
}

// Encode serializes the record as "prev2|prev1|next1|next2" with empty
// slots left blank. The all-empty record still encodes as "|||", which
// distinguishes a single-chunk document from legacy records that carry
// no adjacency at all.
func (r AdjacencyRecord) Encode() string {
	return r.Prev2 + adjacencyDelimiter + r.Prev1 + adjacencyDelimiter +
		r.Next1 + adjacencyDelimiter + r.Next2
}

// DecodeAdjacency parses a stored adjacency string. ok is false for the
// empty string (legacy record) or a malformed slot count.
func DecodeAdjacency(s string) (AdjacencyRecord, bool) {
	if s == "" {
		return AdjacencyRecord{}, false
	}
	parts := strings.Split(s, adjacencyDelimiter)
	if len(parts) != 4 {
		return AdjacencyRecord{}, false
	}
	return AdjacencyRecord{Prev2: parts[0], Prev1: parts[1], Next1: parts[2], Next2: parts[3]}, true
}

// Neighbors returns the present neighbor IDs in sequence order.
func (r AdjacencyRecord) Neighbors() []string {
	var out []string
	for _, id := range []string{r.Prev2, r.Prev1, r.Next1, r.Next2} {
		if id != "" {
			out = append(out, id)
		}
	}
	return out
}

// ComputeAdjacency builds one record per chunk from the complete ordered
// chunk list of a single document. It runs on every write so adjacency
// is always internally consistent per document; partial patching is
// never attempted.
func ComputeAdjacency(chunks []*chunk.Chunk) []AdjacencyRecord {
	n := len(chunks)
	records := make([]AdjacencyRecord, n)
	for i := range chunks {
		if i-2 >= 0 {
			records[i].Prev2 = chunks[i-2].ID
		}
		if i-1 >= 0 {
			records[i].Prev1 = chunks[i-1].ID
		}
		if i+1 < n {
			records[i].Next1 = chunks[i+1].ID
		}
		if i+2 < n {
			records[i].Next2 = chunks[i+2].ID
		}
	}
	return records
}
