// Package chunk splits documents into ordered, identified chunks.
// Splitting preserves heading boundaries before falling back to size-based
// windows with overlap; oversized sections are subdivided.
package chunk

import (
	"regexp"
	"strings"

	"github.com/notevec/notevec/internal/doc"
	"github.com/notevec/notevec/internal/errors"
)

// headerPattern matches markdown headings: # Title, ## Title, etc.
var headerPattern = regexp.MustCompile(`(?m)^#{1,6}\s+.+$`)

// BuilderOptions configures the chunk builder.
type BuilderOptions struct {
	ChunkSize int // target chunk size in characters (default: DefaultChunkSize)
	Overlap   int // overlap between size-split chunks (default: DefaultOverlap)
}

// Builder splits one document into an ordered chunk sequence and assigns
// deterministic identifiers.
type Builder struct {
	options BuilderOptions
}

// NewBuilder creates a builder with default options.
func NewBuilder() *Builder {
	return NewBuilderWithOptions(BuilderOptions{})
}

// NewBuilderWithOptions creates a builder with custom options.
func NewBuilderWithOptions(opts BuilderOptions) *Builder {
	if opts.ChunkSize < MinChunkSize {
		opts.ChunkSize = DefaultChunkSize
	}
	if opts.Overlap <= 0 || opts.Overlap >= opts.ChunkSize {
		opts.Overlap = DefaultOverlap
		if opts.Overlap >= opts.ChunkSize {
			opts.Overlap = opts.ChunkSize / 8
		}
	}
	return &Builder{options: opts}
}

// ChunkSize returns the configured target chunk size.
func (b *Builder) ChunkSize() int {
	return b.options.ChunkSize
}

// Build splits the document into chunks with contiguous sequence indices
// starting at 0. The document's fingerprint is attached to chunk 0 only.
// Returns a chunking error if no non-empty chunk can be produced.
func (b *Builder) Build(d *doc.Document) ([]*Chunk, error) {
	if strings.TrimSpace(d.Title) == "" {
		return nil, errors.ChunkingError("document has empty title", nil)
	}

	var pieces []string
	for _, section := range b.splitSections(d.Body) {
		pieces = append(pieces, b.splitBySize(section)...)
	}

	if len(pieces) == 0 {
		return nil, errors.ChunkingError("document produced no chunks", nil).
			WithDetail("title", d.Title)
	}

	docID := d.ID()
	chunks := make([]*Chunk, len(pieces))
	for i, content := range pieces {
		chunks[i] = &Chunk{
			ID:         doc.ChunkID(docID, d.Modified, i),
			DocumentID: docID,
			Title:      d.Title,
			Seq:        i,
			Content:    content,
			Modified:   d.Modified,
		}
	}
	chunks[0].Fingerprint = d.Fingerprint()

	return chunks, nil
}

// splitSections splits the body at heading lines, keeping each heading
// with the content that follows it. Content before the first heading
// becomes its own section.
func (b *Builder) splitSections(body string) []string {
	locs := headerPattern.FindAllStringIndex(body, -1)
	if len(locs) == 0 {
		if trimmed := strings.TrimSpace(body); trimmed != "" {
			return []string{trimmed}
		}
		return nil
	}

	var sections []string
	appendSection := func(s string) {
		if trimmed := strings.TrimSpace(s); trimmed != "" {
			sections = append(sections, trimmed)
		}
	}

	appendSection(body[:locs[0][0]])
	for i, loc := range locs {
		end := len(body)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		appendSection(body[loc[0]:end])
	}

	return sections
}

// splitBySize subdivides an oversized section into overlapping windows.
// Break points prefer paragraph breaks, then line breaks, then spaces,
// falling back to a hard cut.
func (b *Builder) splitBySize(section string) []string {
	size := b.options.ChunkSize
	overlap := b.options.Overlap

	if len(section) <= size {
		return []string{section}
	}

	var pieces []string
	start := 0
	for start < len(section) {
		end := start + size
		if end >= len(section) {
			end = len(section)
		} else {
			end = breakPoint(section, start, end)
		}

		piece := strings.TrimSpace(section[start:end])
		if piece != "" {
			pieces = append(pieces, piece)
		}

		if end >= len(section) {
			break
		}

		next := end - overlap
		if next <= start {
			// Overlap would stall the window; force progress.
			next = end
		}
		start = next
	}

	return pieces
}

// breakPoint finds the best split position in section[start:limit].
func breakPoint(section string, start, limit int) int {
	window := section[start:limit]

	if idx := strings.LastIndex(window, "\n\n"); idx > 0 {
		return start + idx
	}
	if idx := strings.LastIndex(window, "\n"); idx > 0 {
		return start + idx
	}
	if idx := strings.LastIndex(window, " "); idx > 0 {
		return start + idx
	}
	return limit
}
