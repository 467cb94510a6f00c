package index

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenRepoIndex(t *testing.T) {
	idx, err := Open(filepath.Join("..", "..", "recipes"))
	require.NoError(t, err)

	assert.Equal(t, []string{"aerospike-client-c", "aerospike-common"}, idx.Search(""))
	assert.Equal(t, []string{"aerospike-common"}, idx.Search("COMMON"))
	assert.Empty(t, idx.Search("zlib"))

	dir, err := idx.Lookup("aerospike-common")
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(dir))
	assert.FileExists(t, filepath.Join(dir, "recipe.toml"))
}

func TestLookupErrors(t *testing.T) {
	idx := &Index{basePath: t.TempDir()}
	_, err := idx.Lookup("nope")
	assert.ErrorIs(t, err, ErrUnknownRecipe)

	idx.SetRecipe("broken", "broken")
	_, err = idx.Lookup("broken")
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	idx, err := ParseIndex(strings.NewReader(`{"a": "recipes/a"}`), dir)
	require.NoError(t, err)

	idx.SetRecipe("b", filepath.Join("recipes", "b"))
	assert.True(t, idx.HasRecipe("b"))
	assert.True(t, idx.RemoveRecipe("a"))
	assert.False(t, idx.RemoveRecipe("a"))
	require.NoError(t, idx.Save())

	again, err := Open(dir)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"b": "recipes/b"}, again.Recipes)
	assert.Equal(t, dir, again.Path())
}

func TestParseIndexInvalid(t *testing.T) {
	_, err := ParseIndex(strings.NewReader(`["a"]`), "")
	assert.Error(t, err)
}

func TestLoadOrFetchUsesLocalFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, IndexFilename), []byte(`{"x": "x"}`), 0o644))

	idx, err := LoadOrFetchIndex(t.Context(), dir)
	require.NoError(t, err)
	assert.True(t, idx.HasRecipe("x"))
}
