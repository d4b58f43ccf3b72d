package main

import (
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bull/docqa/internal/extract"
)

func TestCollectFiles(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	write("a.txt", "alpha")
	write("notes/b.md", "# Beta")
	write("notes/image.png", "binary")

	supported := extract.NewRegistry(extract.NewPDF(nil, "")).Supported

	files, err := collectFiles(dir, supported)
	require.NoError(t, err)
	var names []string
	for _, f := range files {
		names = append(names, filepath.ToSlash(f.Name))
	}
	sort.Strings(names)
	assert.Equal(t, []string{
		filepath.ToSlash(filepath.Join(dir, "a.txt")),
		filepath.ToSlash(filepath.Join(dir, "notes/b.md")),
	}, names)

	// A named file is read even when its type is unsupported.
	files, err = collectFiles(filepath.Join(dir, "notes/image.png"), supported)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "binary", string(files[0].Data))

	_, err = collectFiles(filepath.Join(dir, "missing"), supported)
	assert.Error(t, err)
}
