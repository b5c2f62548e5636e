package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_IsOrderedAndComplete(t *testing.T) {
	r := Default()
	keys := r.Keys()
	require.NotEmpty(t, keys)
	assert.Equal(t, "openai-gpt-4o-mini", keys[0])
	assert.Equal(t, len(keys), r.Len())

	for _, k := range keys {
		c, ok := r.Lookup(k)
		require.True(t, ok, k)
		assert.NotEmpty(t, c.Model, k)
		assert.NotEmpty(t, c.APIKeyEnv, k)
	}
}

func TestNew_RejectsDuplicatesAndEmptyKeys(t *testing.T) {
	_, err := New(ModelCard{Key: "a", Model: "m"}, ModelCard{Key: "a", Model: "m2"})
	assert.ErrorContains(t, err, "duplicate model key")

	_, err = New(ModelCard{Key: "  ", Model: "m"})
	assert.ErrorContains(t, err, "key is required")

	_, err = New(ModelCard{Key: "a"})
	assert.ErrorContains(t, err, "model is required")
}

func TestKeys_ReturnsCopy(t *testing.T) {
	r, err := New(ModelCard{Key: "a", Model: "m"}, ModelCard{Key: "b", Model: "m"})
	require.NoError(t, err)

	keys := r.Keys()
	keys[0] = "mutated"
	assert.Equal(t, []string{"a", "b"}, r.Keys())
}

func TestLoad_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.yaml")
	doc := `models:
  - key: local
    provider: ollama
    model: llama3.2:1b
    base_url: http://localhost:11434/v1
    api_key_env: OLLAMA_API_KEY
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	r, err := Load(path)
	require.NoError(t, err)
	c, ok := r.Lookup("local")
	require.True(t, ok)
	assert.Equal(t, "ollama", c.Provider)
	assert.Equal(t, "http://localhost:11434/v1", c.BaseURL)

	_, ok = r.Lookup("openai-gpt-4o-mini")
	assert.False(t, ok, "file registry replaces the built-in one")
}

func TestLoad_MissingFileAndBadYAML(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("models: {not: [a list"), 0o644))
	_, err = Load(path)
	assert.ErrorContains(t, err, "failed to parse registry")
}
