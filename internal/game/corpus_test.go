// internal/game/corpus_test.go
package game

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCorpus(t *testing.T) {
	c := DefaultCorpus()
	assert.NotEmpty(t, c.Letters)
	assert.GreaterOrEqual(t, len(c.Categories), 12)
	assert.GreaterOrEqual(t, len(c.Teams), 2)
}

func TestParseCorpusCleansLists(t *testing.T) {
	c, err := ParseCorpus([]byte(`
teams: [Red, " Red ", Blue]
letters: [A, "", B]
categories:
  - Fruits
  - Fruits
  - "  Animals "
`))
	require.NoError(t, err)
	assert.Equal(t, []string{"Red", "Blue"}, c.Teams)
	assert.Equal(t, []string{"A", "B"}, c.Letters)
	assert.Equal(t, []string{"Fruits", "Animals"}, c.Categories)
}

func TestParseCorpusRejectsEmpty(t *testing.T) {
	_, err := ParseCorpus([]byte("letters: [A]\n"))
	assert.ErrorIs(t, err, ErrEmptyCorpus)

	_, err = ParseCorpus([]byte("letters: [A\n"))
	assert.Error(t, err)
}

func TestLoadCorpus(t *testing.T) {
	c, err := LoadCorpus("")
	require.NoError(t, err)
	assert.NotEmpty(t, c.Categories)

	path := filepath.Join(t.TempDir(), "corpus.yaml")
	require.NoError(t, os.WriteFile(path, []byte("letters: [Z]\ncategories: [Rivers]\n"), 0o644))
	c, err = LoadCorpus(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"Z"}, c.Letters)
	assert.Equal(t, []string{"Rivers"}, c.Categories)

	_, err = LoadCorpus(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
