// Package doc defines the document model and the identity hashes the
// synchronization engine is built on. DocumentID and fingerprints are pure
// functions of document fields so they can be recomputed identically on
// every run; nothing here is store-assigned.
package doc

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"time"
)

// Document is one source item to be indexed (a note or file).
type Document struct {
	// Title is the document title. Must be non-empty.
	Title string

	// Body is the indexable text.
	Body string

	// Modified is the last-modified timestamp. Chunk identifiers derive
	// from it, so a timestamp change regenerates every chunk ID.
	Modified time.Time

	// Created is the creation timestamp. Optional (zero value allowed);
	// anchors document identity when present.
	Created time.Time

	// Size is the document size in bytes.
	Size int64
}

// ID returns the stable DocumentID. Identity is anchored on the creation
// timestamp when one exists, so a retitled document stays the same
// logical document across runs (the retitle surfaces as an Updated
// classification through the fingerprint). Documents without a creation
// timestamp fall back to title identity.
func (d *Document) ID() string {
	if !d.Created.IsZero() {
		return hashFields("created", strconv.FormatInt(d.Created.Unix(), 10))
	}
	return hashFields("title", d.Title)
}

// Fingerprint returns the content fingerprint derived from (title, body).
// Unchanged title+body yields an unchanged fingerprint; any change to
// either changes it.
func (d *Document) Fingerprint() string {
	return Fingerprint(d.Title, d.Body)
}

// Fingerprint computes the content fingerprint for a (title, body) pair.
func Fingerprint(title, body string) string {
	return hashFields(title, body)
}

// ChunkID returns the identifier for the chunk at seq within a document.
// It derives from (documentID, modified, seq): stable across runs only
// while the document's modified timestamp is unchanged.
func ChunkID(documentID string, modified time.Time, seq int) string {
	return hashFields(documentID, strconv.FormatInt(modified.Unix(), 10), strconv.Itoa(seq))
}

// hashFields joins fields with a NUL separator and returns the first
// 16 bytes of the SHA-256 digest as hex.
func hashFields(fields ...string) string {
	h := sha256.New()
	for i, f := range fields {
		if i > 0 {
			h.Write([]byte{0})
		}
		h.Write([]byte(f))
	}
	sum := h.Sum(nil)
	return hex.EncodeToString(sum[:16])
}
