package search

import (
	"context"
	"log/slog"

	"github.com/notevec/notevec/internal/embed"
	syncerrors "github.com/notevec/notevec/internal/errors"
	"github.com/notevec/notevec/internal/store"
)

// DefaultTopK is the default number of results per query.
const DefaultTopK = 5

// Searcher runs semantic queries against a collection and applies
// context expansion to the response. Searchers hold no mutable state, so
// concurrent queries against the same collection are safe.
type Searcher struct {
	embedder embed.Embedder
	expander *Expander
	logger   *slog.Logger
}

// NewSearcher creates a searcher around an embedder.
func NewSearcher(embedder embed.Embedder, logger *slog.Logger) *Searcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Searcher{
		embedder: embedder,
		expander: NewExpander(logger),
		logger:   logger,
	}
}

// Search embeds the query, retrieves the topK nearest chunks, and
// expands each match per the requested mode.
func (s *Searcher) Search(ctx context.Context, col store.Collection, query string, topK int, mode Mode) ([]*Result, error) {
	if topK <= 0 {
		topK = DefaultTopK
	}

	vector, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, syncerrors.New(syncerrors.ErrCodeEmbeddingFailed, "embed query", err)
	}

	matches, err := col.Query(ctx, vector, topK)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, nil
	}

	s.logger.Debug("query matched",
		slog.String("collection", col.Name()),
		slog.Int("matches", len(matches)),
		slog.String("mode", string(mode)))
	return s.expander.Expand(ctx, col, matches, mode), nil
}
