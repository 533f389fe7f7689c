// Package config loads and validates notevec configuration from YAML,
// with environment variable overrides for deployment tuning.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/notevec/notevec/internal/chunk"
	"github.com/notevec/notevec/internal/embed"
	syncerrors "github.com/notevec/notevec/internal/errors"
)

// DefaultFileName is the config file looked up in the corpus root.
const DefaultFileName = ".notevec.yaml"

// Config is the complete notevec configuration.
type Config struct {
	Corpus     CorpusConfig     `yaml:"corpus"`
	Collection CollectionConfig `yaml:"collection"`
	Chunking   ChunkingConfig   `yaml:"chunking"`
	Embeddings EmbeddingsConfig `yaml:"embeddings"`
	Search     SearchConfig     `yaml:"search"`
	Watch      WatchConfig      `yaml:"watch"`
	LogLevel   string           `yaml:"log_level"`
}

// CorpusConfig selects which files are indexed.
type CorpusConfig struct {
	Root        string   `yaml:"root"`
	Include     []string `yaml:"include"`
	Exclude     []string `yaml:"exclude"`
	MaxFileSize int64    `yaml:"max_file_size"`
	Workers     int      `yaml:"workers"`
}

// CollectionConfig names the target collection.
type CollectionConfig struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	DataDir     string `yaml:"data_dir"`
}

// ChunkingConfig tunes the chunk builder.
type ChunkingConfig struct {
	Size    int `yaml:"size"`
	Overlap int `yaml:"overlap"`
}

// EmbeddingsConfig configures the embedding provider.
type EmbeddingsConfig struct {
	// Provider is "ollama" or "static" (offline hash embeddings, mainly
	// for tests and air-gapped setups).
	Provider   string `yaml:"provider"`
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
	BatchSize  int    `yaml:"batch_size"`
	OllamaHost string `yaml:"ollama_host"`
	CacheSize  int    `yaml:"cache_size"`
}

// SearchConfig tunes retrieval defaults.
type SearchConfig struct {
	TopK        int    `yaml:"top_k"`
	ContextMode string `yaml:"context_mode"`
}

// WatchConfig tunes watch mode.
type WatchConfig struct {
	Debounce Duration `yaml:"debounce"`
}

// Duration wraps time.Duration so YAML accepts values like "500ms" as
// well as raw nanosecond integers.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("invalid duration value: %w", err)
	}
	if parsed, err := time.ParseDuration(s); err == nil {
		*d = Duration(parsed)
		return nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid duration %q", s)
	}
	*d = Duration(n)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Corpus: CorpusConfig{
			Root: ".",
		},
		Collection: CollectionConfig{
			Name:    "notes",
			DataDir: defaultDataDir(),
		},
		Chunking: ChunkingConfig{
			Size:    chunk.DefaultChunkSize,
			Overlap: chunk.DefaultOverlap,
		},
		Embeddings: EmbeddingsConfig{
			Provider:   "ollama",
			Model:      embed.DefaultOllamaModel,
			BatchSize:  embed.DefaultBatchSize,
			OllamaHost: embed.DefaultOllamaHost,
			CacheSize:  embed.DefaultEmbeddingCacheSize,
		},
		Search: SearchConfig{
			TopK:        5,
			ContextMode: "adjacent",
		},
		Watch: WatchConfig{
			Debounce: Duration(500 * time.Millisecond),
		},
		LogLevel: "info",
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".notevec"
	}
	return home + "/.notevec"
}

// Load reads the config file at path, merging it over defaults and then
// applying environment overrides. A missing file is not an error; the
// defaults (plus environment) are returned.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// Defaults only.
	case err != nil:
		return nil, syncerrors.New(syncerrors.ErrCodeConfigNotFound,
			"read config file: "+path, err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, syncerrors.New(syncerrors.ErrCodeConfigInvalid,
				"parse config file: "+path, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides applies NOTEVEC_* environment variables, which take
// precedence over file values.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("NOTEVEC_OLLAMA_HOST"); v != "" {
		cfg.Embeddings.OllamaHost = v
	}
	if v := os.Getenv("NOTEVEC_EMBED_PROVIDER"); v != "" {
		cfg.Embeddings.Provider = v
	}
	if v := os.Getenv("NOTEVEC_EMBED_MODEL"); v != "" {
		cfg.Embeddings.Model = v
	}
	if v := os.Getenv("NOTEVEC_DATA_DIR"); v != "" {
		cfg.Collection.DataDir = v
	}
	if v := os.Getenv("NOTEVEC_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("NOTEVEC_BATCH_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Embeddings.BatchSize = n
		}
	}
}

// Validate rejects configurations the engine cannot run with.
func (c *Config) Validate() error {
	if c.Collection.Name == "" {
		return syncerrors.New(syncerrors.ErrCodeConfigInvalid, "collection.name must not be empty", nil)
	}
	switch c.Embeddings.Provider {
	case "ollama", "static":
	default:
		return syncerrors.New(syncerrors.ErrCodeConfigInvalid,
			fmt.Sprintf("unknown embeddings.provider %q (want ollama or static)", c.Embeddings.Provider), nil)
	}
	if c.Embeddings.BatchSize < embed.MinBatchSize || c.Embeddings.BatchSize > embed.MaxBatchSize {
		return syncerrors.New(syncerrors.ErrCodeConfigInvalid,
			fmt.Sprintf("embeddings.batch_size %d out of range [%d, %d]",
				c.Embeddings.BatchSize, embed.MinBatchSize, embed.MaxBatchSize), nil)
	}
	if c.Chunking.Size != 0 && c.Chunking.Size < chunk.MinChunkSize {
		return syncerrors.New(syncerrors.ErrCodeConfigInvalid,
			fmt.Sprintf("chunking.size %d below minimum %d", c.Chunking.Size, chunk.MinChunkSize), nil)
	}
	if c.Search.TopK < 0 {
		return syncerrors.New(syncerrors.ErrCodeConfigInvalid, "search.top_k must not be negative", nil)
	}
	if _, err := parseContextMode(c.Search.ContextMode); err != nil {
		return syncerrors.New(syncerrors.ErrCodeConfigInvalid, err.Error(), nil)
	}
	return nil
}

// parseContextMode mirrors the search package's mode names without
// importing it (config sits below search in the dependency order).
func parseContextMode(s string) (string, error) {
	switch s {
	case "", "chunk", "adjacent", "document":
		return s, nil
	default:
		return "", fmt.Errorf("unknown search.context_mode %q (want chunk, adjacent, or document)", s)
	}
}
