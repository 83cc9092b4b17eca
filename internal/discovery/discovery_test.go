package discovery

import (
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func relPaths(files []SourceFile) []string {
	out := make([]string, 0, len(files))
	for _, f := range files {
		out = append(out, filepath.ToSlash(f.RelativePath))
	}
	sort.Strings(out)
	return out
}

func TestDiscover_FindsOnlySourceDirectoryStyles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "source", "global.css"), "a{}")
	writeFile(t, filepath.Join(root, "source", "notes.md"), "# nope")
	writeFile(t, filepath.Join(root, "cards", "source", "cards.css"), ".c{}")
	writeFile(t, filepath.Join(root, "cards", "deep", "nested", "source", "x.CSS"), ".x{}")
	writeFile(t, filepath.Join(root, "cards", "cards.css"), "/* compiled output */")
	writeFile(t, filepath.Join(root, "sources", "wrong.css"), "")
	writeFile(t, filepath.Join(root, "my-source", "wrong.css"), "")
	// Files below a sub-directory of source are not collected.
	writeFile(t, filepath.Join(root, "source", "partials", "p.css"), "")
	writeFile(t, filepath.Join(root, "source", "source", "inner.css"), "")

	files := New(Options{}).Discover([]string{root})

	assert.Equal(t, []string{
		"cards/source/cards.css",
		"source/global.css",
	}, relPaths(files))
	for _, f := range files {
		assert.True(t, filepath.IsAbs(f.Path))
		assert.Equal(t, root, f.Root)
	}
}

func TestDiscover_SkipsExcludedDirectories(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "node_modules", "pkg", "source", "a.css"), "")
	writeFile(t, filepath.Join(root, ".git", "source", "b.css"), "")
	writeFile(t, filepath.Join(root, "__dropins__", "source", "c.css"), "")
	writeFile(t, filepath.Join(root, "block", "source", "d.css"), "")

	files := New(Options{}).Discover([]string{root})
	assert.Equal(t, []string{"block/source/d.css"}, relPaths(files))

	custom := New(Options{Exclude: []string{"block"}}).Discover([]string{root})
	assert.Equal(t, []string{
		".git/source/b.css",
		"__dropins__/source/c.css",
		"node_modules/pkg/source/a.css",
	}, relPaths(custom))
}

func TestDiscover_MissingRootIsNotAnError(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "styles", "source", "a.css"), "")

	files := New(Options{}).Discover([]string{
		filepath.Join(root, "does-not-exist"),
		filepath.Join(root, "styles"),
	})
	require.Len(t, files, 1)
	assert.Equal(t, filepath.Join(root, "styles", "source", "a.css"), files[0].Path)
}

func TestDiscover_MultipleRootsKeepOrderAndDistinctTargets(t *testing.T) {
	base := t.TempDir()
	styles := filepath.Join(base, "styles")
	blocks := filepath.Join(base, "blocks")
	writeFile(t, filepath.Join(styles, "source", "styles.css"), "")
	writeFile(t, filepath.Join(blocks, "hero", "source", "hero.css"), "")
	writeFile(t, filepath.Join(blocks, "cards", "source", "cards.css"), "")

	files := New(Options{}).Discover([]string{styles, blocks})
	require.Len(t, files, 3)
	assert.Equal(t, styles, files[0].Root)
	assert.Equal(t, blocks, files[1].Root)
	assert.Equal(t, blocks, files[2].Root)

	targets := map[string]bool{}
	for _, f := range files {
		assert.False(t, targets[f.OutputPath()], "duplicate target %s", f.OutputPath())
		targets[f.OutputPath()] = true
	}
	assert.Empty(t, FindCollisions(files))
}

func TestDiscover_OverlappingRootsReportFileOnce(t *testing.T) {
	base := t.TempDir()
	writeFile(t, filepath.Join(base, "blocks", "hero", "source", "hero.css"), "")

	files := New(Options{}).Discover([]string{
		filepath.Join(base, "blocks"),
		filepath.Join(base, "blocks", "hero"),
	})
	require.Len(t, files, 1)
	assert.Equal(t, filepath.Join("hero", "source", "hero.css"), files[0].RelativePath)
}

func TestDiscover_CustomExtensions(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "source", "a.css"), "")
	writeFile(t, filepath.Join(root, "source", "b.pcss"), "")

	files := New(Options{Extensions: []string{"pcss"}}).Discover([]string{root})
	assert.Equal(t, []string{"source/b.pcss"}, relPaths(files))
}

func TestOutputTarget(t *testing.T) {
	src := filepath.Join("/repo", "blocks", "hero", "source", "hero.css")
	want := filepath.Join("/repo", "blocks", "hero", "hero.css")

	assert.Equal(t, want, OutputTarget(src))
	assert.Equal(t, OutputTarget(src), OutputTarget(src))
	assert.Equal(t, want, SourceFile{Path: src}.OutputPath())
}

func TestIsSourceFile(t *testing.T) {
	d := New(Options{})
	sep := string(filepath.Separator)
	join := func(parts ...string) string { return filepath.Join(parts...) }

	cases := []struct {
		rel  string
		want bool
	}{
		{join("source", "a.css"), true},
		{join("blocks", "hero", "source", "hero.css"), true},
		{join("blocks", "hero", "source", "hero.CSS"), false},
		{join("blocks", "hero", "hero.css"), false},
		{join("source", "nested", "a.css"), false},
		{join("source", "source", "a.css"), false},
		{join("node_modules", "x", "source", "a.css"), false},
		{join("__dropins__", "source", "a.css"), false},
		{join("source", "a.scss"), false},
		{join("source", "a.css.swp"), false},
		{join("sources", "a.css"), false},
		{"a.css", false},
		{".." + sep + join("source", "a.css"), false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, d.IsSourceFile(tc.rel), tc.rel)
	}
}

// Discovery and the watch filter must agree: every discovered file satisfies the predicate.
func TestDiscoverAgreesWithPredicate(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a", "source", "a.css"), "")
	writeFile(t, filepath.Join(root, "a", "b", "source", "b.css"), "")
	writeFile(t, filepath.Join(root, "source", "c.css"), "")

	d := New(Options{})
	for _, f := range d.Discover([]string{root}) {
		assert.True(t, d.IsSourceFile(f.RelativePath), f.RelativePath)
	}
}

func TestDiscover_ExtensionsMatchExactly(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "source", "a.css"), "")
	writeFile(t, filepath.Join(root, "source", "b.CSS"), "")
	writeFile(t, filepath.Join(root, "source", "c.Pcss"), "")

	assert.Equal(t, []string{"source/a.css"}, relPaths(New(Options{}).Discover([]string{root})))
	assert.Equal(t, []string{"source/c.Pcss"}, relPaths(New(Options{Extensions: []string{"Pcss"}}).Discover([]string{root})))
}
