package loader

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestLoad_DiscoversIndexableFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "alpha.md", "# Alpha\n\nbody")
	writeFile(t, root, "nested/beta.txt", "plain text note")
	writeFile(t, root, "gamma.org", "* Org heading")
	writeFile(t, root, "ignored.pdf", "%PDF-1.4")
	writeFile(t, root, ".git/config", "[core]")
	writeFile(t, root, ".hidden/note.md", "hidden")

	docs, err := Load(context.Background(), Options{Root: root}, nil)
	require.NoError(t, err)
	require.Len(t, docs, 3)

	// Sorted by title, titles are slash-relative paths.
	assert.Equal(t, "alpha.md", docs[0].Title)
	assert.Equal(t, "gamma.org", docs[1].Title)
	assert.Equal(t, "nested/beta.txt", docs[2].Title)
	assert.Equal(t, "# Alpha\n\nbody", docs[0].Body)
	assert.False(t, docs[0].Modified.IsZero())
	assert.Equal(t, int64(len(docs[0].Body)), docs[0].Size)
}

func TestLoad_IncludeExcludePatterns(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "keep.md", "keep")
	writeFile(t, root, "drafts/wip.md", "draft")
	writeFile(t, root, "notes/deep/note.md", "note")

	docs, err := Load(context.Background(), Options{
		Root:            root,
		ExcludePatterns: []string{"drafts/**"},
	}, nil)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "keep.md", docs[0].Title)
	assert.Equal(t, "notes/deep/note.md", docs[1].Title)

	docs, err = Load(context.Background(), Options{
		Root:            root,
		IncludePatterns: []string{"keep.md"},
	}, nil)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "keep.md", docs[0].Title)
}

func TestLoad_SkipsOversizedAndBinary(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "small.md", "fits")
	writeFile(t, root, "big.md", "0123456789")
	writeFile(t, root, "binary.md", "broken\x00file")

	docs, err := Load(context.Background(), Options{Root: root, MaxFileSize: 5}, nil)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "small.md", docs[0].Title)
}

func TestLoad_FrontmatterCreatedAnchorsIdentity(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "dated.md", "---\ncreated: 2024-03-01\ntags: [a]\n---\n\nbody")
	writeFile(t, root, "undated.md", "no frontmatter")

	docs, err := Load(context.Background(), Options{Root: root}, nil)
	require.NoError(t, err)
	require.Len(t, docs, 2)

	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), docs[0].Created)
	assert.True(t, docs[1].Created.IsZero())
}

func TestLoad_MissingRoot(t *testing.T) {
	_, err := Load(context.Background(), Options{Root: filepath.Join(t.TempDir(), "nope")}, nil)
	assert.Error(t, err)
}

func TestFrontmatterCreated_Formats(t *testing.T) {
	cases := map[string]time.Time{
		"---\ncreated: 2024-03-01T10:30:00Z\n---\n": time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC),
		"---\ncreated: 2024-03-01 10:30\n---\n":     time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC),
		"---\ncreated: \"2024-03-01\"\n---\n":       time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		"---\ncreated: not-a-date\n---\n":           {},
		"no frontmatter at all":                     {},
		"---\ntags: [x]\n---\n":                     {},
	}
	for input, want := range cases {
		got := frontmatterCreated([]byte(input))
		assert.True(t, got.Equal(want), "input %q: got %v want %v", input, got, want)
	}
}
