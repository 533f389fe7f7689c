// Package loader discovers and reads corpus documents from disk. It
// walks the corpus root, filters to indexable text files, and reads them
// concurrently into Documents for the sync engine.
package loader

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/notevec/notevec/internal/doc"
)

// DefaultMaxFileSize caps individual files at 1 MiB; anything larger is
// skipped with a warning.
const DefaultMaxFileSize = 1 << 20

// indexableExtensions are the file types treated as corpus documents.
var indexableExtensions = map[string]bool{
	".md":       true,
	".markdown": true,
	".txt":      true,
	".org":      true,
}

// defaultExcludeDirs are never descended into.
var defaultExcludeDirs = map[string]bool{
	".git":         true,
	".obsidian":    true,
	"node_modules": true,
}

// Options configures a corpus load.
type Options struct {
	Root            string   // corpus root directory
	IncludePatterns []string // glob patterns on the relative path; empty = all
	ExcludePatterns []string // glob patterns on the relative path
	MaxFileSize     int64    // bytes; <= 0 uses DefaultMaxFileSize
	Workers         int      // concurrent readers; <= 0 uses GOMAXPROCS
}

// Load walks the corpus root and returns all indexable documents sorted
// by title. Unreadable files are skipped with a warning rather than
// failing the load.
func Load(ctx context.Context, opts Options, logger *slog.Logger) ([]*doc.Document, error) {
	if logger == nil {
		logger = slog.Default()
	}
	maxSize := opts.MaxFileSize
	if maxSize <= 0 {
		maxSize = DefaultMaxFileSize
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	absRoot, err := filepath.Abs(opts.Root)
	if err != nil {
		return nil, fmt.Errorf("resolve corpus root: %w", err)
	}
	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, fmt.Errorf("stat corpus root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("corpus root is not a directory: %s", absRoot)
	}

	paths, err := discover(ctx, absRoot, opts, maxSize, logger)
	if err != nil {
		return nil, err
	}

	docs := make([]*doc.Document, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, rel := range paths {
		i, rel := i, rel
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			d, err := readDocument(absRoot, rel)
			if err != nil {
				logger.Warn("skipping unreadable file",
					slog.String("path", rel), slog.String("error", err.Error()))
				return nil
			}
			docs[i] = d
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := docs[:0]
	for _, d := range docs {
		if d != nil {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Title < out[j].Title })
	return out, nil
}

// discover walks the root and returns relative paths of indexable files.
func discover(ctx context.Context, absRoot string, opts Options, maxSize int64, logger *slog.Logger) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			return nil // skip unreadable entries
		}

		rel, err := filepath.Rel(absRoot, path)
		if err != nil || rel == "." {
			return nil
		}

		if d.IsDir() {
			if defaultExcludeDirs[d.Name()] || strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type()&fs.ModeSymlink != 0 {
			return nil
		}
		if !indexableExtensions[strings.ToLower(filepath.Ext(rel))] {
			return nil
		}
		if matchesAny(rel, opts.ExcludePatterns) {
			return nil
		}
		if len(opts.IncludePatterns) > 0 && !matchesAny(rel, opts.IncludePatterns) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return nil
		}
		if info.Size() > maxSize {
			logger.Warn("skipping oversized file",
				slog.String("path", rel), slog.Int64("size", info.Size()))
			return nil
		}

		paths = append(paths, rel)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return paths, nil
}

// matchesAny matches the relative path or its basename against globs.
func matchesAny(rel string, patterns []string) bool {
	base := filepath.Base(rel)
	for _, p := range patterns {
		if ok, _ := filepath.Match(p, rel); ok {
			return true
		}
		if ok, _ := filepath.Match(p, base); ok {
			return true
		}
		if strings.HasSuffix(p, "/**") {
			prefix := strings.TrimSuffix(p, "/**")
			if rel == prefix || strings.HasPrefix(rel, prefix+string(filepath.Separator)) {
				return true
			}
		}
	}
	return false
}

// readDocument reads one file into a Document. Binary content is
// rejected. The title is the root-relative path; a frontmatter created
// date, when present, anchors identity across renames.
func readDocument(absRoot, rel string) (*doc.Document, error) {
	path := filepath.Join(absRoot, rel)
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if bytes.Contains(content, []byte{0}) {
		return nil, fmt.Errorf("binary content")
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	return &doc.Document{
		Title:    filepath.ToSlash(rel),
		Body:     string(content),
		Modified: info.ModTime(),
		Created:  frontmatterCreated(content),
		Size:     info.Size(),
	}, nil
}

// createdLayouts are the timestamp formats accepted in frontmatter.
var createdLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// frontmatterCreated extracts a "created:" date from a leading YAML
// frontmatter block. Returns the zero time when absent or unparsable,
// which makes identity fall back to the title.
func frontmatterCreated(content []byte) time.Time {
	if !bytes.HasPrefix(content, []byte("---\n")) {
		return time.Time{}
	}
	end := bytes.Index(content[4:], []byte("\n---"))
	if end < 0 {
		return time.Time{}
	}
	block := string(content[4 : 4+end])

	for _, line := range strings.Split(block, "\n") {
		key, value, found := strings.Cut(line, ":")
		if !found || strings.TrimSpace(key) != "created" {
			continue
		}
		value = strings.Trim(strings.TrimSpace(value), `"'`)
		for _, layout := range createdLayouts {
			if ts, err := time.Parse(layout, value); err == nil {
				return ts
			}
		}
		return time.Time{}
	}
	return time.Time{}
}
