package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitMissingFileKeepsDefaults(t *testing.T) {
	before := Keys
	err := Init(filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err)
	assert.Equal(t, before, Keys)
}

func TestInitOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"chunk_size": 500, "strict": true}`), 0o644))

	require.NoError(t, Init(path))
	assert.Equal(t, 500, Keys.ChunkSize)
	assert.True(t, Keys.Strict)
}

func TestInitRejectsUnknownField(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"bogus_field": 1}`), 0o644))

	err := Init(path)
	assert.Error(t, err)
}

func TestParseContextValidDocument(t *testing.T) {
	raw := []byte(`{
		"source": "input.csv",
		"mapping": {"slots": [{"sources": ["a"], "separator": " "}]},
		"skip_rows": "0,2-3"
	}`)
	ctx, err := ParseContext(raw)
	require.NoError(t, err)
	assert.Equal(t, "input.csv", ctx.Source)
	assert.Equal(t, []int{0, 2, 3}, ctx.SkipRows)
	assert.Len(t, ctx.Mapping, 1)
}

func TestParseContextAcceptsEmptyMapping(t *testing.T) {
	raw := []byte(`{"source": "input.csv", "mapping": {"slots": []}}`)
	ctx, err := ParseContext(raw)
	require.NoError(t, err)
	assert.Empty(t, ctx.Mapping)
}

func TestParseContextRejectsMissingSource(t *testing.T) {
	raw := []byte(`{"mapping": {"slots": []}}`)
	_, err := ParseContext(raw)
	assert.Error(t, err)
}
