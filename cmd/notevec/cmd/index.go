package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/notevec/notevec/internal/config"
	"github.com/notevec/notevec/internal/loader"
	"github.com/notevec/notevec/internal/store"
	docsync "github.com/notevec/notevec/internal/sync"
)

func newIndexCmd() *cobra.Command {
	var recreate bool

	cmd := &cobra.Command{
		Use:   "index [path]",
		Short: "Synchronize the vector store with a note directory",
		Long: `Index walks the note directory, detects which documents were added,
updated, or removed since the last run, and applies only those changes to
the vector store. Unchanged documents are not re-embedded.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root := "."
			if len(args) == 1 {
				root = args[0]
			}
			cfg, err := loadConfig(root)
			if err != nil {
				return err
			}
			stats, err := runIndex(cmd.Context(), cfg, recreate)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(),
				"Indexed %q: %d added, %d updated, %d deleted, %d unchanged (%d chunks written, %s)\n",
				cfg.Collection.Name, stats.Added, stats.Updated, stats.Deleted,
				stats.Unchanged, stats.ChunksWritten, stats.Duration.Round(10*time.Millisecond))
			if len(stats.FailedDocs) > 0 || len(stats.FailedChunks) > 0 {
				fmt.Fprintf(cmd.OutOrStdout(),
					"Warnings: %d documents could not be chunked, %d chunks could not be embedded\n",
					len(stats.FailedDocs), len(stats.FailedChunks))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&recreate, "recreate", false, "Drop and rebuild the collection from scratch")
	return cmd
}

// runIndex performs one synchronization run. With recreate set, or when
// the existing collection is incompatible with incremental updates and
// the user asked for recreation, the collection is dropped first.
func runIndex(ctx context.Context, cfg *config.Config, recreate bool) (*docsync.UpdateStats, error) {
	docs, err := loader.Load(ctx, loader.Options{
		Root:            cfg.Corpus.Root,
		IncludePatterns: cfg.Corpus.Include,
		ExcludePatterns: cfg.Corpus.Exclude,
		MaxFileSize:     cfg.Corpus.MaxFileSize,
		Workers:         cfg.Corpus.Workers,
	}, slog.Default())
	if err != nil {
		return nil, err
	}
	slog.Info("corpus loaded", slog.Int("documents", len(docs)), slog.String("root", cfg.Corpus.Root))

	embedder, err := buildEmbedder(ctx, cfg)
	if err != nil {
		return nil, err
	}
	defer embedder.Close()

	st, err := openStore(cfg, embedder.Dimensions())
	if err != nil {
		return nil, err
	}
	defer st.Close()

	builder := newChunkBuilder(cfg)
	name := cfg.Collection.Name

	if recreate {
		if err := st.Drop(ctx, name); err != nil && !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
	}

	col, err := st.Open(ctx, name)
	if errors.Is(err, store.ErrNotFound) {
		col, err = st.Create(ctx, name,
			docsync.NewCollectionMetadata(cfg.Collection.Description, embedder.ModelName(), builder.ChunkSize()))
	}
	if err != nil {
		return nil, err
	}

	updater := docsync.NewUpdater(embedder, builder, cfg.Collection.Description, slog.Default())
	return updater.Run(ctx, col, docs)
}
