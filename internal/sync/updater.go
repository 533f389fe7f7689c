package sync

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/notevec/notevec/internal/chunk"
	"github.com/notevec/notevec/internal/doc"
	"github.com/notevec/notevec/internal/embed"
	syncerrors "github.com/notevec/notevec/internal/errors"
	"github.com/notevec/notevec/internal/store"
)

// UpdateStats summarizes one completed run. Counts are finalized only at
// the end; an aborted run reports nothing.
type UpdateStats struct {
	RunID         string
	Added         int
	Updated       int
	Deleted       int
	Unchanged     int
	ChunksWritten int
	ChunksDeleted int
	FailedDocs    []string // titles of documents that could not be chunked
	FailedChunks  []string // chunk IDs that could not be embedded
	Duration      time.Duration
}

// Updater applies a document set to a collection incrementally:
// snapshot, diff, delete-then-reinsert for changed documents, and
// collection bookkeeping. Collaborators are passed explicitly; nothing
// here is package-level state.
type Updater struct {
	embedder    embed.Embedder
	builder     *chunk.Builder
	description string
	logger      *slog.Logger
}

// NewUpdater creates an updater around an embedder and chunk builder.
// description becomes the collection description during bookkeeping.
func NewUpdater(embedder embed.Embedder, builder *chunk.Builder, description string, logger *slog.Logger) *Updater {
	if logger == nil {
		logger = slog.Default()
	}
	return &Updater{
		embedder:    embedder,
		builder:     builder,
		description: description,
		logger:      logger,
	}
}

// Run synchronizes the collection with docs. The collection must carry a
// compatible schema version; incompatible collections are rejected
// outright and must be recreated. Deletion or write failures abort the
// run before any metadata update. Chunking and embedding failures are
// collected per document and per chunk and reported in the stats.
func (u *Updater) Run(ctx context.Context, col store.Collection, docs []*doc.Document) (*UpdateStats, error) {
	start := time.Now()
	stats := &UpdateStats{RunID: uuid.NewString()}
	log := u.logger.With(slog.String("run_id", stats.RunID), slog.String("collection", col.Name()))

	meta, err := col.Metadata(ctx)
	if err != nil {
		return nil, err
	}
	if err := checkCompatibility(meta); err != nil {
		return nil, err
	}

	existing, err := ReadExistingState(ctx, col)
	if err != nil {
		return nil, err
	}

	changes := DetectChanges(docs, existing)
	stats.Unchanged = len(changes.Unchanged)
	log.Info("change detection complete",
		slog.Int("added", len(changes.Added)),
		slog.Int("updated", len(changes.Updated)),
		slog.Int("deleted", len(changes.Deleted)),
		slog.Int("unchanged", len(changes.Unchanged)))

	// Updates are delete-then-reinsert: chunk boundaries may shift, so
	// in-place mutation would leave stale trailing chunks behind.
	var staleIDs []string
	for _, id := range changes.Deleted {
		staleIDs = append(staleIDs, existing[id].ChunkIDs...)
	}
	for _, d := range changes.Updated {
		staleIDs = append(staleIDs, existing[d.ID()].ChunkIDs...)
	}
	if len(staleIDs) > 0 {
		if err := col.Delete(ctx, staleIDs); err != nil {
			return nil, syncerrors.New(syncerrors.ErrCodeSyncFailed, "delete stale chunks", err)
		}
		stats.ChunksDeleted = len(staleIDs)
	}
	stats.Deleted = len(changes.Deleted)

	var pending []*chunk.Chunk
	writeDocs := append(append([]*doc.Document{}, changes.Added...), changes.Updated...)
	chunked := make(map[string]bool, len(writeDocs))
	for _, d := range writeDocs {
		chunks, err := u.builder.Build(d)
		if err != nil {
			log.Warn("chunking failed, skipping document",
				slog.String("title", d.Title), slog.String("error", err.Error()))
			stats.FailedDocs = append(stats.FailedDocs, d.Title)
			continue
		}
		chunked[d.ID()] = true
		pending = append(pending, chunks...)
	}

	written, failed, err := u.embedAndWrite(ctx, col, pending, log)
	if err != nil {
		return nil, err
	}
	stats.ChunksWritten = written
	stats.FailedChunks = failed

	for _, d := range changes.Added {
		if chunked[d.ID()] {
			stats.Added++
		}
	}
	for _, d := range changes.Updated {
		if chunked[d.ID()] {
			stats.Updated++
		}
	}

	docCount := stats.Added + stats.Updated + stats.Unchanged
	if err := u.updateBookkeeping(ctx, col, meta, docCount); err != nil {
		return nil, err
	}

	stats.Duration = time.Since(start)
	log.Info("sync complete",
		slog.Int("chunks_written", stats.ChunksWritten),
		slog.Int("chunks_deleted", stats.ChunksDeleted),
		slog.Int("failed_docs", len(stats.FailedDocs)),
		slog.Int("failed_chunks", len(stats.FailedChunks)),
		slog.Duration("duration", stats.Duration))
	return stats, nil
}

// embedAndWrite embeds all pending chunks and writes them with their
// adjacency metadata. Batches that fail are retried chunk by chunk with
// backoff; chunks that still fail are dropped from the write and
// reported. A store write failure is fatal.
func (u *Updater) embedAndWrite(ctx context.Context, col store.Collection, pending []*chunk.Chunk, log *slog.Logger) (int, []string, error) {
	if len(pending) == 0 {
		return 0, nil, nil
	}

	// Adjacency is recomputed per document from the complete chunk list
	// on every write, never patched.
	adjacency := make(map[string]string, len(pending))
	for _, group := range groupByDoc(pending) {
		records := ComputeAdjacency(group)
		for i, c := range group {
			adjacency[c.ID] = records[i].Encode()
		}
	}

	batchSize := u.embedder.MaxBatch()
	if batchSize <= 0 {
		batchSize = embed.DefaultBatchSize
	}

	var failed []string
	var records []*store.Record
	var vectors [][]float32
	for lo := 0; lo < len(pending); lo += batchSize {
		hi := lo + batchSize
		if hi > len(pending) {
			hi = len(pending)
		}
		batch := pending[lo:hi]

		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Content
		}

		vecs, err := u.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			log.Warn("batch embedding failed, retrying per chunk",
				slog.Int("batch_size", len(batch)), slog.String("error", err.Error()))
			vecs = make([][]float32, len(batch))
			for i, c := range batch {
				vec, retryErr := u.embedChunkWithRetry(ctx, c.Content)
				if retryErr != nil {
					log.Warn("chunk embedding failed",
						slog.String("chunk_id", c.ID), slog.String("error", retryErr.Error()))
					failed = append(failed, c.ID)
					continue
				}
				vecs[i] = vec
			}
		}

		for i, c := range batch {
			if vecs[i] == nil {
				continue
			}
			records = append(records, &store.Record{
				ID:          c.ID,
				Content:     c.Content,
				DocID:       c.DocumentID,
				Title:       c.Title,
				Modified:    c.Modified.Unix(),
				Seq:         c.Seq,
				Fingerprint: c.Fingerprint,
				Adjacent:    adjacency[c.ID],
			})
			vectors = append(vectors, vecs[i])
		}
	}

	if len(records) > 0 {
		if err := col.Add(ctx, records, vectors); err != nil {
			return 0, failed, syncerrors.New(syncerrors.ErrCodeSyncFailed, "write chunks", err)
		}
	}
	return len(records), failed, nil
}

func (u *Updater) embedChunkWithRetry(ctx context.Context, text string) ([]float32, error) {
	var vec []float32
	err := embed.WithRetry(ctx, embed.DefaultRetryConfig(), func() error {
		var embedErr error
		vec, embedErr = u.embedder.Embed(ctx, text)
		return embedErr
	})
	return vec, err
}

// updateBookkeeping refreshes collection metadata. Description and
// document count are rewritten only when they changed; the updated-at
// timestamp always moves so a no-op run is still observable.
func (u *Updater) updateBookkeeping(ctx context.Context, col store.Collection, meta map[string]string, docCount int) error {
	count := strconv.Itoa(docCount)
	changed := meta[store.MetaDescription] != u.description || meta[store.MetaDocCount] != count

	updated := make(map[string]string, len(meta)+3)
	for k, v := range meta {
		updated[k] = v
	}
	if changed {
		updated[store.MetaDescription] = u.description
		updated[store.MetaDocCount] = count
	}
	updated[store.MetaUpdatedAt] = time.Now().UTC().Format(time.RFC3339)

	return col.SetMetadata(ctx, updated)
}

// checkCompatibility enforces the schema version gate. Collections
// written without a version marker predate the first-chunk fingerprint
// convention, so fingerprint comparison against them is meaningless;
// they must be dropped and recreated.
func checkCompatibility(meta map[string]string) error {
	version, ok := meta[store.MetaSchemaVersion]
	if !ok {
		return syncerrors.IncompatibleError(
			"collection has no schema version marker; recreate it to enable incremental sync")
	}
	if version != store.CurrentSchemaVersion {
		return syncerrors.IncompatibleError(fmt.Sprintf(
			"collection schema version %s is not supported (want %s); recreate the collection",
			version, store.CurrentSchemaVersion))
	}
	return nil
}

// groupByDoc splits chunks into per-document groups, preserving the
// builder's sequence order within each group.
func groupByDoc(chunks []*chunk.Chunk) map[string][]*chunk.Chunk {
	groups := make(map[string][]*chunk.Chunk)
	for _, c := range chunks {
		groups[c.DocumentID] = append(groups[c.DocumentID], c)
	}
	return groups
}

// NewCollectionMetadata builds the metadata for a freshly created
// collection so later runs pass the compatibility gate.
func NewCollectionMetadata(description, model string, chunkSize int) map[string]string {
	return map[string]string{
		store.MetaSchemaVersion:  store.CurrentSchemaVersion,
		store.MetaEmbeddingModel: model,
		store.MetaChunkSize:      strconv.Itoa(chunkSize),
		store.MetaDescription:    description,
		store.MetaDocCount:       "0",
		store.MetaUpdatedAt:      time.Now().UTC().Format(time.RFC3339),
	}
}
