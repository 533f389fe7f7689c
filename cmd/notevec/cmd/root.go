// Package cmd provides the CLI commands for notevec.
package cmd

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/notevec/notevec/internal/chunk"
	"github.com/notevec/notevec/internal/config"
	"github.com/notevec/notevec/internal/embed"
	"github.com/notevec/notevec/internal/logging"
	"github.com/notevec/notevec/internal/store"
	"github.com/notevec/notevec/pkg/version"
)

var (
	flagConfig  string
	flagDataDir string
	flagOffline bool
	flagDebug   bool

	loggingCleanup func()
)

// NewRootCmd creates the root command for the notevec CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "notevec",
		Short: "Incremental vector indexing and semantic search for note corpora",
		Long: `notevec keeps a local vector store in sync with a directory of
markdown and text notes. Indexing is incremental: unchanged documents are
never re-embedded, and each chunk carries precomputed adjacency so search
results can be expanded with their surrounding context.`,
		Version:      version.Version,
		SilenceUsage: true,
	}
	cmd.SetVersionTemplate("notevec version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Config file (default: <root>/.notevec.yaml)")
	cmd.PersistentFlags().StringVar(&flagDataDir, "data-dir", "", "Store directory (default: ~/.notevec)")
	cmd.PersistentFlags().BoolVar(&flagOffline, "offline", false, "Use static embeddings instead of Ollama")
	cmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "Enable debug logging")

	cmd.PersistentPreRunE = setupLogging
	cmd.PersistentPostRun = func(*cobra.Command, []string) {
		if loggingCleanup != nil {
			loggingCleanup()
			loggingCleanup = nil
		}
	}

	cmd.AddCommand(newInitCmd())
	cmd.AddCommand(newIndexCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newWatchCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

func setupLogging(_ *cobra.Command, _ []string) error {
	level := "info"
	if flagDebug {
		level = "debug"
	}
	cleanup, err := logging.SetupDefault(logging.Config{Level: level, WriteToStderr: true})
	if err != nil {
		return fmt.Errorf("setup logging: %w", err)
	}
	loggingCleanup = cleanup
	return nil
}

// loadConfig resolves the effective configuration for a corpus root,
// applying the persistent flags on top of file and environment values.
func loadConfig(root string) (*config.Config, error) {
	path := flagConfig
	if path == "" {
		path = filepath.Join(root, config.DefaultFileName)
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if root != "" {
		cfg.Corpus.Root = root
	}
	if flagDataDir != "" {
		cfg.Collection.DataDir = flagDataDir
	}
	if flagOffline {
		cfg.Embeddings.Provider = "static"
	}
	if flagDebug {
		cfg.LogLevel = "debug"
	}
	return cfg, nil
}

// buildEmbedder constructs the configured embedding provider wrapped in
// the LRU cache.
func buildEmbedder(ctx context.Context, cfg *config.Config) (embed.Embedder, error) {
	var inner embed.Embedder
	switch cfg.Embeddings.Provider {
	case "static":
		inner = embed.NewStaticEmbedder()
	default:
		ollama, err := embed.NewOllamaEmbedder(ctx, embed.OllamaConfig{
			Host:       cfg.Embeddings.OllamaHost,
			Model:      cfg.Embeddings.Model,
			Dimensions: cfg.Embeddings.Dimensions,
			BatchSize:  cfg.Embeddings.BatchSize,
		})
		if err != nil {
			return nil, err
		}
		inner = ollama
	}
	return embed.NewCachedEmbedder(inner, cfg.Embeddings.CacheSize), nil
}

// openStore opens the durable local store for the configured data
// directory.
func openStore(cfg *config.Config, dimensions int) (*store.LocalStore, error) {
	return store.OpenLocalStore(cfg.Collection.DataDir, dimensions)
}

// newChunkBuilder constructs the chunk builder from config.
func newChunkBuilder(cfg *config.Config) *chunk.Builder {
	return chunk.NewBuilderWithOptions(chunk.BuilderOptions{
		ChunkSize: cfg.Chunking.Size,
		Overlap:   cfg.Chunking.Overlap,
	})
}
