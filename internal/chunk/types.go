package chunk

import (
	"time"
)

// Chunk size defaults, in characters.
const (
	// DefaultChunkSize is the target chunk size.
	DefaultChunkSize = 2048

	// DefaultOverlap is the overlap between consecutive size-split chunks.
	DefaultOverlap = 256

	// MinChunkSize is the smallest configurable target size.
	MinChunkSize = 128
)

// Chunk is a retrievable slice of one document's text.
type Chunk struct {
	ID          string    // derived from (documentID, modified, seq)
	DocumentID  string    // owning document
	Title       string    // owning document title
	Seq         int       // zero-based position within the document
	Content     string    // chunk text, always non-empty
	Fingerprint string    // whole-document fingerprint, set on Seq 0 only
	Modified    time.Time // owning document's last-modified timestamp
}
